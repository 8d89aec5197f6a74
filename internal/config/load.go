package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// maxExtendsDepth bounds template chains so cycles fail instead of recursing.
const maxExtendsDepth = 16

type rawFile struct {
	Grid             GridSize                  `yaml:"grid"`
	Catalog          Catalog                   `yaml:"catalog"`
	Templates        map[string]map[string]any `yaml:"templates"`
	Populations      []rawPopulation           `yaml:"populations"`
	ResultPopulation string                    `yaml:"resultPopulation"`
	Engine           EngineConfig              `yaml:"engine"`
}

type rawPopulation struct {
	Name   string           `yaml:"name"`
	Phases []map[string]any `yaml:"phases"`
}

// Default returns the built-in configuration.
func Default() (*Config, error) {
	return Parse(defaultYAML)
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, resolves phase templates and validates the result.
func Parse(data []byte) (*Config, error) {
	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("decode yaml: %v", err)}
	}

	defaults, err := toMap(phaseDefaults())
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Grid:             raw.Grid,
		Catalog:          raw.Catalog,
		ResultPopulation: raw.ResultPopulation,
		Engine:           raw.Engine,
		Populations:      make([]PopulationConfig, 0, len(raw.Populations)),
	}
	for _, rp := range raw.Populations {
		pop := PopulationConfig{Name: rp.Name, Phases: make([]Phase, 0, len(rp.Phases))}
		for i, rawPhase := range rp.Phases {
			field := fmt.Sprintf("populations.%s.phases[%d]", rp.Name, i)
			resolved, err := resolvePhase(normalize(rawPhase).(map[string]any), raw.Templates, 0)
			if err != nil {
				return nil, Errorf(field, "%v", err)
			}
			phase, err := decodePhase(Merge(defaults, resolved))
			if err != nil {
				return nil, Errorf(field, "%v", err)
			}
			pop.Phases = append(pop.Phases, phase)
		}
		cfg.Populations = append(cfg.Populations, pop)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolvePhase(phase map[string]any, templates map[string]map[string]any, depth int) (map[string]any, error) {
	name, ok := phase["extends"]
	if !ok {
		return phase, nil
	}
	if depth >= maxExtendsDepth {
		return nil, fmt.Errorf("extends chain deeper than %d", maxExtendsDepth)
	}
	tmplName, ok := name.(string)
	if !ok {
		return nil, fmt.Errorf("extends must name a template, got %v", name)
	}
	tmpl, ok := templates[tmplName]
	if !ok {
		return nil, fmt.Errorf("unknown template %q", tmplName)
	}
	base, err := resolvePhase(normalize(tmpl).(map[string]any), templates, depth+1)
	if err != nil {
		return nil, err
	}
	own := make(map[string]any, len(phase))
	for k, v := range phase {
		if k != "extends" {
			own[k] = v
		}
	}
	return Merge(base, own), nil
}

// Merge deep-merges override onto base and returns a new map. Nested maps
// merge recursively; every other value in override replaces the base value.
func Merge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if ov, ok := v.(map[string]any); ok {
			if bv, ok := out[k].(map[string]any); ok {
				out[k] = Merge(bv, ov)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// normalize turns yaml's map[any]any (non-string keys such as `1: 75`) into
// map[string]any all the way down.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case nil:
		return map[string]any{}
	default:
		return v
	}
}

func toMap(phase Phase) (map[string]any, error) {
	data, err := yaml.Marshal(phase)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return normalize(out).(map[string]any), nil
}

func decodePhase(m map[string]any) (Phase, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return Phase{}, err
	}
	var phase Phase
	if err := yaml.Unmarshal(data, &phase); err != nil {
		return Phase{}, err
	}
	return phase, nil
}

// phaseDefaults fills scalar parameters a phase leaves out. Scoring rules and
// weight overrides have no defaults.
func phaseDefaults() Phase {
	base := DefaultPhase()
	base.ComponentWeights = nil
	base.Scoring = nil
	base.Promotions = nil
	base.StalePruning = nil
	return base
}

// DefaultPhase mirrors the reference base phase.
func DefaultPhase() Phase {
	return Phase{
		Generations: 500,
		Algorithm: Algorithm{
			Families:                        40,
			MembersPerFamily:                3,
			OffspringPerMember:              10,
			RandomFamiliesPerGeneration:     30,
			RandomFamiliesInitialGeneration: 16000,
			SameFamilyHybrids:               1,
		},
		Mutation: Mutation{
			ComponentMutationRateMin: 0.05,
			ComponentMutationRateMax: 0.3,
			ComponentMutationWeights: map[string]float64{
				OpRandomize:     10,
				OpRandomizeType: 10,
				OpRemove:        0,
			},
			OverallMutationChance:             0.15,
			OverallAndComponentMutationChance: 0.5,
			OverallMutationRepeatChance:       0.15,
			OverallMutationWeights: map[string]float64{
				OpShift:         10,
				OpRotate:        15,
				OpScrambleArea:  3,
				OpScramble:      1,
				OpRandomizeArea: 2,
				OpReflectHalf:   1,
				OpCopyHalf:      1,
				OpCopyRandArea:  1,
			},
			RandomizeEmptyCellChance: 0.6,
		},
		Hybridization: Hybridization{
			HybridizationTypeWeights: map[string]float64{
				HybridMesh:  4,
				HybridHalve: 10,
			},
			HybridMutationChance: 0.3,
		},
		StalePruning: &StalePruning{
			PruneStaleFamilies:           true,
			KeepTopFamilies:              8,
			StaleGenerations:             25,
			PreserveStaleCounterOnHybrid: true,
		},
	}
}
