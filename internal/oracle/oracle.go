// Package oracle defines the contract of the external simulator that turns a
// grid into performance metrics.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gridforge/internal/grid"
	"gridforge/internal/scoring"
)

var ErrEmptyOutput = errors.New("oracle returned no metrics")

// Oracle simulates a grid. Implementations must be safe for concurrent use
// and may return different metrics for the same grid across calls.
type Oracle interface {
	Simulate(ctx context.Context, g *grid.Grid) (scoring.Metrics, error)
}

// Func adapts a function to Oracle.
type Func func(ctx context.Context, g *grid.Grid) (scoring.Metrics, error)

func (f Func) Simulate(ctx context.Context, g *grid.Grid) (scoring.Metrics, error) {
	return f(ctx, g)
}

// WithTimeout bounds every call to o. A non-positive d returns o unchanged.
func WithTimeout(o Oracle, d time.Duration) Oracle {
	if d <= 0 {
		return o
	}
	return Func(func(ctx context.Context, g *grid.Grid) (scoring.Metrics, error) {
		callCtx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		metrics, err := o.Simulate(callCtx, g)
		if err != nil {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, fmt.Errorf("simulate timed out after %s: %w", d, err)
			}
			return nil, err
		}
		return metrics, nil
	})
}
