package evo

import (
	"fmt"

	"gridforge/internal/config"
	"gridforge/internal/grid"
)

// Hybrid combines two parents of the same size into a new child. The kind is
// drawn from the phase's hybridization weights and the child is mutated with
// probability hybridMutationChance.
func (m *Mutator) Hybrid(a, b *grid.Grid) (*grid.Grid, error) {
	if !a.SameSize(b) {
		return nil, fmt.Errorf("%w: %dx%d and %dx%d", grid.ErrDimensionMismatch, a.Width(), a.Height(), b.Width(), b.Height())
	}
	if m.hybridOps.Len() == 0 {
		return nil, config.Errorf("hybridization.hybridizationTypeWeights", "no hybridization kinds configured")
	}
	kind, err := m.hybridOps.Pick(m.rng)
	if err != nil {
		return nil, err
	}

	var child *grid.Grid
	switch kind {
	case config.HybridMesh:
		child = m.HybridMesh(a, b)
	case config.HybridHalve:
		child = m.HybridHalve(a, b)
	default:
		return nil, config.Errorf("hybridization.hybridizationTypeWeights", "unknown hybridization kind %q", kind)
	}

	if m.rng.Float64() < m.hybrid.HybridMutationChance {
		return m.Mutate(child)
	}
	return child, nil
}

// HybridMesh picks every cell from either parent with equal probability.
func (m *Mutator) HybridMesh(a, b *grid.Grid) *grid.Grid {
	child := a.Clone()
	for i := 0; i < child.Len(); i++ {
		if m.rng.Float64() > 0.5 {
			continue
		}
		t, _ := b.At(i)
		_ = child.SetAt(i, t)
	}
	return child
}

// HybridHalve takes one half from each parent, in random order and along a
// random axis.
func (m *Mutator) HybridHalve(a, b *grid.Grid) *grid.Grid {
	if m.rng.Float64() > 0.5 {
		a, b = b, a
	}
	if m.rng.Float64() > 0.5 {
		return halveLeftRight(a, b)
	}
	return halveLinear(a, b)
}

// halveLeftRight takes the left columns from first and the right columns
// from second. On odd widths the middle column is split by row: rows in the
// top half come from first.
func halveLeftRight(first, second *grid.Grid) *grid.Grid {
	child := first.Clone()
	w, h := first.Width(), first.Height()
	cutoff := w / 2
	for i := 0; i < child.Len(); i++ {
		x, y := i%w, i/w
		fromFirst := x < cutoff
		if x == cutoff && w%2 == 1 {
			fromFirst = 2*y < h
		}
		if fromFirst {
			continue
		}
		t, _ := second.At(i)
		_ = child.SetAt(i, t)
	}
	return child
}

// halveLinear takes the first floor(n/2) cells in row-major order from first
// and the rest from second.
func halveLinear(first, second *grid.Grid) *grid.Grid {
	child := first.Clone()
	for i := child.Len() / 2; i < child.Len(); i++ {
		t, _ := second.At(i)
		_ = child.SetAt(i, t)
	}
	return child
}
