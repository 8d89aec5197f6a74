package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"gridforge/internal/config"
	"gridforge/internal/logging"
	"gridforge/internal/oracle"
)

func main() {
	a := newApp(os.Stdout, os.Stderr)
	if err := a.newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	stdout io.Writer
	stderr io.Writer

	logLevel  string
	logFormat string

	newOracle func(path string, args []string) (oracle.Oracle, error)
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		newOracle: func(path string, args []string) (oracle.Oracle, error) {
			return oracle.NewCommand(path, args...)
		},
	}
}

func (a *app) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gridforgectl",
		Short:         "Evolve token grids against an external simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", logging.FormatText, "log format: text|json")

	root.AddCommand(
		a.newRunCmd(),
		a.newSimulateCmd(),
		a.newScoreCmd(),
		a.newSnapshotCmd(),
		a.newDiagnosticsCmd(),
		a.newValidateCmd(),
	)
	return root
}

func (a *app) logger() (*slog.Logger, error) {
	return logging.New(logging.Config{Level: a.logLevel, Format: a.logFormat, Output: a.stderr})
}

func loadSettings(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

// storeFlags are shared by every command that opens the store.
type storeFlags struct {
	kind string
	path string
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "store", "file", "store backend: memory|file|badger|sqlite")
	cmd.Flags().StringVar(&f.path, "path", "gridforge-state", "store location: directory for file and badger, database file for sqlite")
}

type oracleFlags struct {
	path string
	args []string
}

func (f *oracleFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.path, "oracle", "", "simulator command; reads a grid on stdin and prints JSON metrics")
	cmd.Flags().StringArrayVar(&f.args, "oracle-arg", nil, "argument passed to the simulator command (repeatable)")
}

func (a *app) oracle(f oracleFlags) (oracle.Oracle, error) {
	if f.path == "" {
		return nil, fmt.Errorf("--oracle is required")
	}
	return a.newOracle(f.path, f.args)
}
