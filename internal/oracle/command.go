package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"gridforge/internal/grid"
	"gridforge/internal/scoring"
)

// Command runs an external simulator per grid. The grid is written to stdin
// in text form and a JSON object of metrics is read from stdout.
type Command struct {
	Path string
	Args []string
	Env  []string
}

func NewCommand(path string, args ...string) (*Command, error) {
	if path == "" {
		return nil, fmt.Errorf("oracle command path is required")
	}
	return &Command{Path: path, Args: args}, nil
}

func (c *Command) Simulate(ctx context.Context, g *grid.Grid) (scoring.Metrics, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(cmd.Environ(), c.Env...)
	}
	cmd.Stdin = strings.NewReader(g.String())
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("run %s: %w: %s", c.Path, err, msg)
		}
		return nil, fmt.Errorf("run %s: %w", c.Path, err)
	}
	return decodeMetrics(stdout.Bytes())
}

func decodeMetrics(data []byte) (scoring.Metrics, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyOutput
	}
	var metrics scoring.Metrics
	if err := json.Unmarshal(data, &metrics); err != nil {
		return nil, fmt.Errorf("decode oracle output: %w", err)
	}
	if metrics == nil {
		return nil, ErrEmptyOutput
	}
	return metrics, nil
}
