package evo

import (
	"fmt"
	"math/rand"

	"gridforge/internal/config"
	"gridforge/internal/grid"
	"gridforge/internal/weighted"
)

const (
	maxResampleAttempts = 1000
	maxComponentSweeps  = 1000
	maxAreaAttempts     = 10000
)

// Mutator applies the mutation and hybridization operators of one phase.
// It is not safe for concurrent use; it shares the engine's random source.
type Mutator struct {
	rng      *rand.Rand
	mutation config.Mutation
	hybrid   config.Hybridization

	weights   weighted.Table[grid.Token]
	positive  int
	siblings  map[grid.Token]weighted.Table[grid.Token]
	cellOps   weighted.Table[string]
	gridOps   weighted.Table[string]
	hybridOps weighted.Table[string]
}

// NewMutator resolves the phase's component weights over the catalog and
// builds the same-group sibling tables used by randomizeType.
func NewMutator(cfg *config.Config, phase *config.Phase, rng *rand.Rand) (*Mutator, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	merged := cfg.MergedWeights(phase)
	weights, err := weighted.FromMap(merged)
	if err != nil {
		return nil, config.Errorf("componentWeights", "%v", err)
	}
	m := &Mutator{
		rng:      rng,
		mutation: phase.Mutation,
		hybrid:   phase.Hybridization,
		weights:  weights,
		siblings: make(map[grid.Token]weighted.Table[grid.Token]),
	}
	for _, w := range merged {
		if w > 0 {
			m.positive++
		}
	}

	for _, group := range cfg.Catalog.Groups {
		groupWeights := make(map[grid.Token]float64, len(group))
		for _, token := range group {
			if w := merged[token]; w > 0 {
				groupWeights[token] = w
			}
		}
		if len(groupWeights) < 2 {
			continue
		}
		for _, token := range group {
			others := make(map[grid.Token]float64, len(groupWeights))
			for k, w := range groupWeights {
				if k != token {
					others[k] = w
				}
			}
			table, err := weighted.FromMap(others)
			if err != nil {
				return nil, config.Errorf("catalog.groups", "%v", err)
			}
			m.siblings[token] = table
		}
	}

	if m.cellOps, err = weighted.FromMap(phase.Mutation.ComponentMutationWeights); err != nil {
		return nil, config.Errorf("mutation.componentMutationWeights", "%v", err)
	}
	if m.gridOps, err = weighted.FromMap(phase.Mutation.OverallMutationWeights); err != nil {
		return nil, config.Errorf("mutation.overallMutationWeights", "%v", err)
	}
	if m.hybridOps, err = weighted.FromMap(phase.Hybridization.HybridizationTypeWeights); err != nil {
		return nil, config.Errorf("hybridization.hybridizationTypeWeights", "%v", err)
	}
	return m, nil
}

// RandomToken draws a token from the merged weights.
func (m *Mutator) RandomToken() (grid.Token, error) {
	return m.weights.Pick(m.rng)
}

// RandomizeComponent draws a token different from cur.
func (m *Mutator) RandomizeComponent(cur grid.Token) (grid.Token, error) {
	if !m.canDiffer(cur) {
		return "", config.Errorf("componentWeights", "no token other than %q can be drawn", cur)
	}
	for i := 0; i < maxResampleAttempts; i++ {
		next, err := m.weights.Pick(m.rng)
		if err != nil {
			return "", err
		}
		if next != cur {
			return next, nil
		}
	}
	return "", config.Errorf("componentWeights", "no replacement for %q after %d draws", cur, maxResampleAttempts)
}

func (m *Mutator) canDiffer(cur grid.Token) bool {
	if m.weights.Len() == 0 {
		return false
	}
	if m.weights.Total() <= 0 {
		return m.weights.Entries()[0].Key != cur
	}
	if m.weights.Weight(cur) > 0 {
		return m.positive > 1
	}
	return m.positive > 0
}

// RandomizeComponentType draws a different token from cur's group. It
// reports false when cur has no group or no weighted siblings.
func (m *Mutator) RandomizeComponentType(cur grid.Token) (grid.Token, bool, error) {
	table, ok := m.siblings[cur]
	if !ok || table.Len() == 0 {
		return "", false, nil
	}
	next, err := table.Pick(m.rng)
	if err != nil {
		return "", false, err
	}
	return next, true, nil
}

// RemoveComponent empties a cell. It reports false on an already empty cell.
func (m *Mutator) RemoveComponent(cur grid.Token) (grid.Token, bool) {
	if cur == grid.Empty {
		return "", false
	}
	return grid.Empty, true
}

// Mutate returns a mutated copy of g; g itself is never modified.
func (m *Mutator) Mutate(g *grid.Grid) (*grid.Grid, error) {
	out := g.Clone()

	mutateCells := true
	if m.rng.Float64() < m.mutation.OverallMutationChance && m.gridOps.Len() > 0 {
		mutateCells = m.rng.Float64() < m.mutation.OverallAndComponentMutationChance
		applied := false
		for {
			op, err := m.gridOps.Pick(m.rng)
			if err != nil {
				return nil, err
			}
			if applied, err = m.applyGridOp(op, out); err != nil {
				return nil, err
			}
			if m.rng.Float64() >= m.mutation.OverallMutationRepeatChance {
				break
			}
		}
		if !applied {
			mutateCells = true
		}
	}

	if mutateCells {
		if err := m.mutateCells(out); err != nil {
			return nil, err
		}
	}

	if m.rng.Float64() < m.mutation.RandomizeEmptyCellChance {
		for i := 0; i < out.Len(); i++ {
			cur, _ := out.At(i)
			if cur != grid.Empty {
				continue
			}
			next, err := m.RandomizeComponent(cur)
			if err != nil {
				return nil, err
			}
			_ = out.SetAt(i, next)
		}
	}
	return out, nil
}

// mutateCells sweeps the grid applying per-cell operators at a random rate
// until at least one cell changes.
func (m *Mutator) mutateCells(g *grid.Grid) error {
	lo, hi := m.mutation.ComponentMutationRateMin, m.mutation.ComponentMutationRateMax
	if hi <= 0 {
		return config.Errorf("mutation.componentMutationRateMax", "must be > 0 to mutate components")
	}
	if m.cellOps.Len() == 0 {
		return config.Errorf("mutation.componentMutationWeights", "no component operators configured")
	}
	rate := lo + m.rng.Float64()*(hi-lo)

	for sweep := 0; sweep < maxComponentSweeps; sweep++ {
		changed := false
		for i := 0; i < g.Len(); i++ {
			if m.rng.Float64() >= rate {
				continue
			}
			op, err := m.cellOps.Pick(m.rng)
			if err != nil {
				return err
			}
			cur, _ := g.At(i)
			next, ok, err := m.applyCellOp(op, cur)
			if err != nil {
				return err
			}
			if ok {
				_ = g.SetAt(i, next)
				changed = true
			}
		}
		if changed {
			return nil
		}
	}
	return config.Errorf("mutation.componentMutationWeights", "no cell changed after %d sweeps", maxComponentSweeps)
}

func (m *Mutator) applyCellOp(op string, cur grid.Token) (grid.Token, bool, error) {
	switch op {
	case config.OpRandomize:
		next, err := m.RandomizeComponent(cur)
		if err != nil {
			return "", false, err
		}
		return next, true, nil
	case config.OpRandomizeType:
		return m.RandomizeComponentType(cur)
	case config.OpRemove:
		next, ok := m.RemoveComponent(cur)
		return next, ok, nil
	default:
		return "", false, config.Errorf("mutation.componentMutationWeights", "unknown operator %q", op)
	}
}

func (m *Mutator) applyGridOp(op string, g *grid.Grid) (bool, error) {
	switch op {
	case config.OpShift:
		g.Shift(m.direction())
		return true, nil
	case config.OpRotate:
		g.Rotate(m.direction())
		return true, nil
	case config.OpScrambleArea:
		area, err := m.RandArea(g, AreaBounds{})
		if err != nil {
			return false, err
		}
		return true, m.ScrambleArea(g, area)
	case config.OpScramble:
		return true, m.ScrambleArea(g, grid.Rect{W: g.Width(), H: g.Height()})
	case config.OpRandomizeArea:
		return m.randomizeArea(g)
	case config.OpReflectHalf:
		g.ReflectHalf(m.direction())
		return true, nil
	case config.OpCopyHalf:
		return true, g.CopyHalf(m.direction())
	case config.OpCopyRandArea:
		return m.copyRandArea(g)
	default:
		return false, config.Errorf("mutation.overallMutationWeights", "unknown operator %q", op)
	}
}

func (m *Mutator) direction() grid.Direction {
	return grid.Directions[m.rng.Intn(len(grid.Directions))]
}

// ScrambleArea performs 2*w*h random swaps inside r.
func (m *Mutator) ScrambleArea(g *grid.Grid, r grid.Rect) error {
	swaps := 2 * r.Cells()
	for i := 0; i < swaps; i++ {
		x1 := r.X + m.rng.Intn(r.W)
		x2 := r.X + m.rng.Intn(r.W)
		y1 := r.Y + m.rng.Intn(r.H)
		y2 := r.Y + m.rng.Intn(r.H)
		if err := g.Swap(x1, y1, x2, y2); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mutator) randomizeArea(g *grid.Grid) (bool, error) {
	halfW, halfH := g.Width()/2, g.Height()/2
	if halfW < 1 || halfH < 1 {
		return false, nil
	}
	area, err := m.RandArea(g, AreaBounds{MaxW: halfW, MaxH: halfH})
	if err != nil {
		return false, err
	}
	for x := area.X; x < area.X+area.W; x++ {
		for y := area.Y; y < area.Y+area.H; y++ {
			cur, err := g.Get(x, y)
			if err != nil {
				return false, err
			}
			next, err := m.RandomizeComponent(cur)
			if err != nil {
				return false, err
			}
			_ = g.Set(x, y, next)
		}
	}
	return true, nil
}

func (m *Mutator) copyRandArea(g *grid.Grid) (bool, error) {
	halfW, halfH := g.Width()/2, g.Height()/2
	if halfW < 1 || halfH < 1 {
		return false, nil
	}
	for i := 0; i < maxAreaAttempts; i++ {
		area, err := m.RandArea(g, AreaBounds{MaxW: halfW, MaxH: halfH, MinCells: 2})
		if err != nil {
			return false, err
		}
		destX := m.rng.Intn(g.Width() - area.W)
		destY := m.rng.Intn(g.Height() - area.H)
		if destX == area.X && destY == area.Y {
			continue
		}
		return true, g.CopyArea(area, destX, destY)
	}
	return false, nil
}
