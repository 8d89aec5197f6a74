package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gridforge/internal/grid"
	"gridforge/internal/scoring"
)

func (a *app) newSimulateCmd() *cobra.Command {
	var sim oracleFlags
	cmd := &cobra.Command{
		Use:   "simulate <grid-file>",
		Short: "Run the simulator on one grid and print its metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := readGrid(args[0])
			if err != nil {
				return err
			}
			o, err := a.oracle(sim)
			if err != nil {
				return err
			}
			metrics, err := o.Simulate(cmd.Context(), g)
			if err != nil {
				return err
			}
			return a.writeJSON(metrics)
		},
	}
	sim.register(cmd)
	return cmd
}

type scoreOutput struct {
	Population string          `json:"population"`
	Phase      int             `json:"phase"`
	Score      float64         `json:"score"`
	Metrics    scoring.Metrics `json:"metrics"`
}

func (a *app) newScoreCmd() *cobra.Command {
	var (
		configPath string
		population string
		phaseIdx   int
		sim        oracleFlags
	)
	cmd := &cobra.Command{
		Use:   "score <grid-file>",
		Short: "Simulate one grid and score it under a population phase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(configPath)
			if err != nil {
				return err
			}
			if population == "" {
				population = settings.ResultPopulation
			}
			if population == "" && len(settings.Populations) > 0 {
				population = settings.Populations[0].Name
			}
			phase, err := settings.PhaseAt(population, phaseIdx)
			if err != nil {
				return err
			}

			g, err := readGrid(args[0])
			if err != nil {
				return err
			}
			if g.Width() != settings.Grid.Width || g.Height() != settings.Grid.Height {
				return fmt.Errorf("%w: grid is %dx%d, config expects %dx%d",
					grid.ErrDimensionMismatch, g.Width(), g.Height(), settings.Grid.Width, settings.Grid.Height)
			}
			o, err := a.oracle(sim)
			if err != nil {
				return err
			}
			raw, err := o.Simulate(cmd.Context(), g)
			if err != nil {
				return err
			}
			score, metrics := scoring.Score(raw, g, settings.Catalog.Costs, settings.Catalog.ConsumableCosts, phase.Scoring)
			return a.writeJSON(scoreOutput{Population: population, Phase: phaseIdx, Score: score, Metrics: metrics})
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config YAML (default: built-in configuration)")
	cmd.Flags().StringVar(&population, "population", "", "population whose scoring rules apply (default: result population)")
	cmd.Flags().IntVar(&phaseIdx, "phase", 0, "phase index within the population")
	sim.register(cmd)
	return cmd
}

func readGrid(path string) (*grid.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := grid.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse grid %s: %w", path, err)
	}
	return g, nil
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
