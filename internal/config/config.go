package config

import (
	"fmt"
	"time"

	"gridforge/internal/grid"
	"gridforge/internal/scoring"
)

// Component mutation operators.
const (
	OpRandomize     = "randomize"
	OpRandomizeType = "randomizeType"
	OpRemove        = "remove"
)

// Structural mutation operators.
const (
	OpShift         = "shift"
	OpRotate        = "rotate"
	OpScrambleArea  = "scrambleArea"
	OpScramble      = "scramble"
	OpRandomizeArea = "randomizeArea"
	OpReflectHalf   = "reflectHalf"
	OpCopyHalf      = "copyHalf"
	OpCopyRandArea  = "copyRandArea"
)

// Hybridization kinds.
const (
	HybridMesh  = "mesh"
	HybridHalve = "halve"
)

const DefaultConcurrency = 16

var (
	componentOps = []string{OpRandomize, OpRandomizeType, OpRemove}
	overallOps   = []string{OpShift, OpRotate, OpScrambleArea, OpScramble, OpRandomizeArea, OpReflectHalf, OpCopyHalf, OpCopyRandArea}
	hybridKinds  = []string{HybridMesh, HybridHalve}
)

type Config struct {
	Grid             GridSize           `yaml:"grid"`
	Catalog          Catalog            `yaml:"catalog"`
	Populations      []PopulationConfig `yaml:"populations" validate:"required,min=1,dive"`
	ResultPopulation string             `yaml:"resultPopulation"`
	Engine           EngineConfig       `yaml:"engine"`
}

type GridSize struct {
	Width  int `yaml:"width" validate:"gt=0"`
	Height int `yaml:"height" validate:"gt=0"`
}

// Catalog is the closed set of tokens with their base weights and costs.
type Catalog struct {
	Weights         map[grid.Token]float64 `yaml:"weights" validate:"required,min=1,dive,gte=0"`
	Costs           scoring.CostTable      `yaml:"costs" validate:"dive,gte=0"`
	ConsumableCosts scoring.CostTable      `yaml:"consumableCosts" validate:"dive,gte=0"`
	Groups          [][]grid.Token         `yaml:"groups"`
}

type EngineConfig struct {
	Concurrency           int           `yaml:"concurrency" validate:"gte=0"`
	EvaluationTimeout     time.Duration `yaml:"evaluationTimeout" validate:"gte=0"`
	SkipFailedEvaluations bool          `yaml:"skipFailedEvaluations"`
	Seed                  int64         `yaml:"seed"`
}

type PopulationConfig struct {
	Name   string  `yaml:"name" validate:"required"`
	Phases []Phase `yaml:"phases" validate:"required,min=1,dive"`
}

// Phase is the resolved configuration for one epoch of a population.
type Phase struct {
	Generations      int                    `yaml:"numGenerations" validate:"gt=0"`
	ComponentWeights map[grid.Token]float64 `yaml:"componentWeights,omitempty" validate:"dive,gte=0"`
	Scoring          scoring.RuleSet        `yaml:"scoring,omitempty"`
	Algorithm        Algorithm              `yaml:"algorithm"`
	Mutation         Mutation               `yaml:"mutation"`
	Hybridization    Hybridization          `yaml:"hybridization"`
	Promotions       *Promotions            `yaml:"promotions,omitempty"`
	StalePruning     *StalePruning          `yaml:"stalePruning,omitempty"`
}

type Algorithm struct {
	Families                        int `yaml:"families" validate:"gte=0"`
	MembersPerFamily                int `yaml:"membersPerFamily" validate:"gte=0"`
	OffspringPerMember              int `yaml:"offspringPerMember" validate:"gte=0"`
	RandomFamiliesPerGeneration     int `yaml:"randomFamiliesPerGeneration" validate:"gte=0"`
	RandomFamiliesInitialGeneration int `yaml:"randomFamiliesInitialGeneration" validate:"gte=0"`
	SameFamilyHybrids               int `yaml:"sameFamilyHybrids" validate:"gte=0"`
	CrossFamilyHybrids              int `yaml:"crossFamilyHybrids" validate:"gte=0"`
	CrossPopulationHybrids          int `yaml:"crossPopulationHybrids" validate:"gte=0"`
}

type Mutation struct {
	ComponentMutationRateMin          float64            `yaml:"componentMutationRateMin" validate:"gte=0,lte=1"`
	ComponentMutationRateMax          float64            `yaml:"componentMutationRateMax" validate:"gte=0,lte=1,gtefield=ComponentMutationRateMin"`
	ComponentMutationWeights          map[string]float64 `yaml:"componentMutationWeights" validate:"dive,gte=0"`
	OverallMutationChance             float64            `yaml:"overallMutationChance" validate:"gte=0,lte=1"`
	OverallAndComponentMutationChance float64            `yaml:"overallAndComponentMutationChance" validate:"gte=0,lte=1"`
	OverallMutationRepeatChance       float64            `yaml:"overallMutationRepeatChance" validate:"gte=0,lt=1"`
	OverallMutationWeights            map[string]float64 `yaml:"overallMutationWeights" validate:"dive,gte=0"`
	RandomizeEmptyCellChance          float64            `yaml:"randomizeEmptyCellChance" validate:"gte=0,lte=1"`
}

type Hybridization struct {
	HybridizationTypeWeights     map[string]float64 `yaml:"hybridizationTypeWeights" validate:"dive,gte=0"`
	HybridMutationChance         float64            `yaml:"hybridMutationChance" validate:"gte=0,lte=1"`
	CrossPopulationHybridWeights map[string]float64 `yaml:"crossPopulationHybridWeights,omitempty" validate:"dive,gte=0"`
}

// Promotions copies the best members of other populations into this one
// every PromotionInterval generations.
type Promotions struct {
	PrePromotionPruneFamilies  int      `yaml:"prePromotionPruneFamilies" validate:"gte=0"`
	PromotionInterval          int      `yaml:"promotionInterval" validate:"gt=0"`
	NumPromotionsPerPopulation int      `yaml:"numPromotionsPerPopulation" validate:"gte=0"`
	PromotedPopulations        []string `yaml:"promotedPopulations" validate:"required,min=1,dive,required"`
}

type StalePruning struct {
	PruneStaleFamilies           bool `yaml:"pruneStaleFamilies"`
	KeepTopFamilies              int  `yaml:"keepTopFamilies" validate:"gte=0"`
	StaleGenerations             int  `yaml:"staleGenerations" validate:"gte=0"`
	PreserveStaleCounterOnHybrid bool `yaml:"preserveStaleCounterOnHybrid"`
}

// Population returns the named population config.
func (c *Config) Population(name string) (*PopulationConfig, bool) {
	for i := range c.Populations {
		if c.Populations[i].Name == name {
			return &c.Populations[i], true
		}
	}
	return nil, false
}

// Names lists populations in processing order.
func (c *Config) Names() []string {
	names := make([]string, len(c.Populations))
	for i, p := range c.Populations {
		names[i] = p.Name
	}
	return names
}

// Concurrency returns the oracle concurrency cap.
func (c *Config) Concurrency() int {
	if c.Engine.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return c.Engine.Concurrency
}

// PhaseAt returns phase idx of the named population.
func (c *Config) PhaseAt(population string, idx int) (*Phase, error) {
	p, ok := c.Population(population)
	if !ok {
		return nil, &ConfigError{Field: "populations", Reason: fmt.Sprintf("unknown population %q", population)}
	}
	if idx < 0 || idx >= len(p.Phases) {
		return nil, &ConfigError{Field: "populations." + population, Reason: fmt.Sprintf("phase %d out of range [0,%d)", idx, len(p.Phases))}
	}
	return &p.Phases[idx], nil
}

// MergedWeights overlays the phase component weights on the catalog weights.
func (c *Config) MergedWeights(phase *Phase) map[grid.Token]float64 {
	out := make(map[grid.Token]float64, len(c.Catalog.Weights))
	for k, v := range c.Catalog.Weights {
		out[k] = v
	}
	if phase != nil {
		for k, v := range phase.ComponentWeights {
			out[k] = v
		}
	}
	return out
}
