package evo

import (
	"gridforge/internal/config"
	"gridforge/internal/grid"
)

// AreaBounds constrains RandArea. Zero fields take their defaults: the full
// grid for the maxima, 1 for the minimum sides, 4 for MinCells and the grid
// size for MaxCells.
type AreaBounds struct {
	MaxW, MaxH int
	MinW, MinH int
	MinCells   int
	MaxCells   int
}

const defaultMinCells = 4

func (b AreaBounds) withDefaults(g *grid.Grid) AreaBounds {
	if b.MaxW <= 0 {
		b.MaxW = g.Width()
	}
	if b.MaxH <= 0 {
		b.MaxH = g.Height()
	}
	if b.MinW <= 0 {
		b.MinW = 1
	}
	if b.MinH <= 0 {
		b.MinH = 1
	}
	if b.MaxCells <= 0 {
		b.MaxCells = g.Len()
	}
	if b.MinCells <= 0 {
		b.MinCells = defaultMinCells
	}
	if b.MinCells > b.MaxW*b.MaxH {
		b.MinCells = b.MaxW * b.MaxH
	}
	return b
}

// satisfiable reports whether any w x h rectangle meets the bounds.
func (b AreaBounds) satisfiable() bool {
	for w := b.MinW; w <= b.MaxW; w++ {
		for h := b.MinH; h <= b.MaxH; h++ {
			if n := w * h; n >= b.MinCells && n <= b.MaxCells {
				return true
			}
		}
	}
	return false
}

// RandArea samples a rectangle inside g that satisfies b. The top-left corner
// is drawn from [0, MaxW-MinW] x [0, MaxH-MinH] and the sides are then drawn
// to fit. Bounds that no rectangle can meet yield a *config.ConfigError.
func (m *Mutator) RandArea(g *grid.Grid, b AreaBounds) (grid.Rect, error) {
	b = b.withDefaults(g)
	if b.MaxW > g.Width() || b.MaxH > g.Height() || b.MinW > b.MaxW || b.MinH > b.MaxH {
		return grid.Rect{}, config.Errorf("mutation.area", "bounds %+v do not fit a %dx%d grid", b, g.Width(), g.Height())
	}
	if !b.satisfiable() {
		return grid.Rect{}, config.Errorf("mutation.area", "no rectangle satisfies %+v", b)
	}

	for i := 0; i < maxAreaAttempts; i++ {
		x := m.rng.Intn(b.MaxW - b.MinW + 1)
		y := m.rng.Intn(b.MaxH - b.MinH + 1)
		w := m.rng.Intn(min(g.Width()-x-b.MinW+1, b.MaxW-b.MinW+1)) + b.MinW
		h := m.rng.Intn(min(g.Height()-y-b.MinH+1, b.MaxH-b.MinH+1)) + b.MinH
		if n := w * h; n >= b.MinCells && n <= b.MaxCells {
			return grid.Rect{X: x, Y: y, W: w, H: h}, nil
		}
	}
	return grid.Rect{}, config.Errorf("mutation.area", "no rectangle found for %+v after %d draws", b, maxAreaAttempts)
}
