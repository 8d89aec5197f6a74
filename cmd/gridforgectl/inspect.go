package main

import (
	"context"
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gridforge/internal/model"
	"gridforge/internal/storage"
)

func (a *app) openStore(ctx context.Context, f storeFlags) (storage.Store, func(), error) {
	logger, err := a.logger()
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.NewStore(f.kind, f.path, logger)
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		_ = storage.CloseIfSupported(store)
	}
	if err := store.Init(ctx); err != nil {
		closeStore()
		return nil, nil, err
	}
	return store, closeStore, nil
}

func (a *app) newSnapshotCmd() *cobra.Command {
	var (
		store   storeFlags
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Summarize the stored snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, closeStore, err := a.openStore(cmd.Context(), store)
			if err != nil {
				return err
			}
			defer closeStore()

			snap, ok, err := s.LoadSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a.stdout, "no snapshot found")
				return nil
			}
			if jsonOut {
				return a.writeJSON(snap)
			}
			a.printSnapshot(snap)
			return nil
		},
	}
	store.register(cmd)
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the full snapshot as JSON")
	return cmd
}

func (a *app) printSnapshot(snap model.Snapshot) {
	fmt.Fprintf(a.stdout, "run %s generation %d saved %s next member %d\n",
		snap.RunID, snap.Generation, snap.SavedAt.Format("2006-01-02T15:04:05Z07:00"), snap.NextMemberID)

	names := make([]string, 0, len(snap.Populations))
	for name := range snap.Populations {
		names = append(names, name)
	}
	slices.Sort(names)

	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "POPULATION\tPHASE\tPHASE_GEN\tFAMILIES\tMEMBERS\tBEST")
	for _, name := range names {
		pop := snap.Populations[name]
		members := 0
		best := "-"
		for _, f := range pop.Families {
			members += len(f.Members)
		}
		if len(pop.Families) > 0 && len(pop.Families[0].Members) > 0 {
			best = fmt.Sprintf("%.4f", pop.Families[0].Members[0].Score)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n", name, pop.Phase, pop.PhaseGeneration, len(pop.Families), members, best)
	}
	_ = w.Flush()
}

func (a *app) newDiagnosticsCmd() *cobra.Command {
	var (
		store storeFlags
		runID string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Print per-generation diagnostics of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, closeStore, err := a.openStore(cmd.Context(), store)
			if err != nil {
				return err
			}
			defer closeStore()

			if runID == "" {
				snap, ok, err := s.LoadSnapshot(cmd.Context())
				if err != nil {
					return err
				}
				if !ok || snap.RunID == "" {
					return fmt.Errorf("--run-id is required when no snapshot names a run")
				}
				runID = snap.RunID
			}
			diagnostics, ok, err := s.GetGenerationDiagnostics(cmd.Context(), runID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no diagnostics for run %s", runID)
			}
			if limit > 0 && len(diagnostics) > limit {
				diagnostics = diagnostics[len(diagnostics)-limit:]
			}

			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "GEN\tPOPULATION\tPHASE\tCANDIDATES\tFAILED\tFAMILIES\tPRUNED\tPROMOTED\tBEST\tMSEC")
			for _, d := range diagnostics {
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%.4f\t%d\n",
					d.Generation, d.Population, d.Phase, d.Candidates, d.Failed, d.Families, d.Pruned, d.Promoted, d.BestScore, d.ElapsedMsec)
			}
			return w.Flush()
		},
	}
	store.register(cmd)
	cmd.Flags().StringVar(&runID, "run-id", "", "run id (default: the run of the stored snapshot)")
	cmd.Flags().IntVar(&limit, "limit", 0, "show only the last N rows")
	return cmd
}

func (a *app) newValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load a config, resolve its phases and report the result",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			settings, err := loadSettings(configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "config ok: %dx%d grid, %d tokens, %d populations\n",
				settings.Grid.Width, settings.Grid.Height, len(settings.Catalog.Weights), len(settings.Populations))
			for _, pop := range settings.Populations {
				total := 0
				for _, phase := range pop.Phases {
					total += phase.Generations
				}
				fmt.Fprintf(a.stdout, "  %s: %d phases, %d generations per cycle\n", pop.Name, len(pop.Phases), total)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config YAML (default: built-in configuration)")
	return cmd
}
