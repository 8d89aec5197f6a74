package evo

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"gridforge/internal/config"
	"gridforge/internal/grid"
	"gridforge/internal/oracle"
	"gridforge/internal/scoring"
)

func testPhase() config.Phase {
	p := config.DefaultPhase()
	p.Generations = 2
	p.Algorithm = config.Algorithm{
		Families:                        4,
		MembersPerFamily:                2,
		OffspringPerMember:              1,
		RandomFamiliesPerGeneration:     1,
		RandomFamiliesInitialGeneration: 3,
		SameFamilyHybrids:               1,
		CrossFamilyHybrids:              1,
	}
	p.Scoring = scoring.RuleSet{scoring.FieldTotalCost: {Factor: -1}}
	return p
}

func testConfig(populations ...string) *config.Config {
	if len(populations) == 0 {
		populations = []string{"main"}
	}
	cfg := &config.Config{
		Grid: config.GridSize{Width: 3, Height: 2},
		Catalog: config.Catalog{
			Weights: map[grid.Token]float64{"A": 1, "B": 1, "C": 1, grid.Empty: 1},
			Costs:   scoring.CostTable{"A": 1, "B": 5, "C": 2},
			Groups:  [][]grid.Token{{"A", "B"}},
		},
		ResultPopulation: populations[0],
		Engine:           config.EngineConfig{Concurrency: 4},
	}
	for _, name := range populations {
		cfg.Populations = append(cfg.Populations, config.PopulationConfig{
			Name:   name,
			Phases: []config.Phase{testPhase()},
		})
	}
	return cfg
}

func testRand() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func emptyOracle() oracle.Oracle {
	return oracle.Func(func(context.Context, *grid.Grid) (scoring.Metrics, error) {
		return scoring.Metrics{}, nil
	})
}

func mustGrid(t *testing.T, w, h int, cells ...grid.Token) *grid.Grid {
	t.Helper()
	g, err := grid.New(w, h, cells)
	require.NoError(t, err)
	return g
}

func newTestMutator(t *testing.T, cfg *config.Config, phase *config.Phase) *Mutator {
	t.Helper()
	m, err := NewMutator(cfg, phase, testRand())
	require.NoError(t, err)
	return m
}

func newTestEngine(t *testing.T, cfg *config.Config, o oracle.Oracle) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, o, WithRand(testRand()), WithLogger(quietLogger()))
	require.NoError(t, err)
	return e
}
