package evo

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"gridforge/internal/grid"
	"gridforge/internal/model"
)

// Snapshot returns a deep copy of the engine state.
func (e *Engine) Snapshot() model.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := model.Snapshot{
		NextMemberID: e.nextID,
		Generation:   e.generation,
		Populations:  make(map[string]model.PopulationRecord, len(e.populations)),
	}
	for name, p := range e.populations {
		rec := model.PopulationRecord{
			Phase:           p.Phase,
			PhaseGeneration: p.PhaseGeneration,
			Families:        make([]model.FamilyRecord, 0, p.Len()),
		}
		for _, f := range p.Families {
			fr := model.FamilyRecord{
				LastImproved: f.LastImproved,
				Members:      make([]model.MemberRecord, 0, len(f.Members)),
			}
			for _, m := range f.Members {
				fr.Members = append(fr.Members, model.MemberRecord{
					ID:      m.ID,
					Grid:    m.Grid.Clone(),
					Metrics: maps.Clone(m.Metrics),
					Score:   m.Score,
				})
			}
			rec.Families = append(rec.Families, fr)
		}
		snap.Populations[name] = rec
	}
	return snap
}

// Restore replaces the engine state with snap. Ids, family structure and
// phase positions are kept verbatim; every member is then re-run through the
// oracle and rescored under its population's current phase, since stored
// metrics are never trusted. Populations absent from the configuration are
// dropped and out-of-range phase positions restart at phase 0.
func (e *Engine) Restore(ctx context.Context, snap model.Snapshot) error {
	e.stepMu.Lock()
	defer e.stepMu.Unlock()

	pops := make(map[string]*Population, len(e.order))
	for _, name := range e.order {
		pops[name] = NewPopulation(name)
	}

	var maxID int64
	for _, name := range slices.Sorted(maps.Keys(snap.Populations)) {
		rec := snap.Populations[name]
		popCfg, ok := e.cfg.Population(name)
		if !ok {
			e.logger.Warn("snapshot population not configured, dropping", "population", name, "families", len(rec.Families))
			continue
		}
		p := pops[name]
		p.Phase, p.PhaseGeneration = rec.Phase, rec.PhaseGeneration
		if rec.Phase < 0 || rec.Phase >= len(popCfg.Phases) {
			e.logger.Warn("snapshot phase out of range, restarting schedule", "population", name, "phase", rec.Phase)
			p.Phase, p.PhaseGeneration = 0, 0
		}
		for _, fr := range rec.Families {
			f := &Family{LastImproved: fr.LastImproved}
			for _, mr := range fr.Members {
				if mr.Grid == nil {
					return fmt.Errorf("restore %s member %d: missing grid", name, mr.ID)
				}
				if mr.Grid.Width() != e.cfg.Grid.Width || mr.Grid.Height() != e.cfg.Grid.Height {
					return fmt.Errorf("restore %s member %d: %w: %dx%d, configured %dx%d",
						name, mr.ID, grid.ErrDimensionMismatch,
						mr.Grid.Width(), mr.Grid.Height(), e.cfg.Grid.Width, e.cfg.Grid.Height)
				}
				f.Members = append(f.Members, &Member{ID: mr.ID, Grid: mr.Grid.Clone(), Metrics: mr.Metrics, Score: mr.Score})
				maxID = max(maxID, mr.ID)
			}
			if len(f.Members) > 0 {
				p.Add(f)
			}
		}
	}

	for _, name := range e.order {
		if err := e.rescore(ctx, pops[name]); err != nil {
			return fmt.Errorf("rescore %s: %w", name, err)
		}
	}

	e.mu.Lock()
	e.populations = pops
	e.generation = snap.Generation
	e.nextID = max(snap.NextMemberID, maxID+1)
	e.mu.Unlock()

	e.logger.Info("state restored",
		"generation", snap.Generation,
		"next_member_id", e.nextID,
		"populations", len(snap.Populations),
	)
	return nil
}

// rescore evaluates every member of a freshly loaded population. Members
// whose evaluation fails are dropped when failed evaluations are skipped.
func (e *Engine) rescore(ctx context.Context, p *Population) error {
	popCfg, _ := e.cfg.Population(p.Name)
	phase := &popCfg.Phases[p.Phase]

	var cands []candidate
	for _, f := range p.Families {
		for _, m := range f.Members {
			cands = append(cands, candidate{grid: m.Grid, family: f, origin: "restore"})
		}
	}
	results, _, err := e.evaluate(ctx, p.Name, phase, cands)
	if err != nil {
		return err
	}

	i := 0
	for _, f := range p.Families {
		kept := f.Members[:0]
		for _, m := range f.Members {
			r := results[i]
			i++
			if !r.ok {
				continue
			}
			m.Metrics, m.Score = r.metrics, r.score
			kept = append(kept, m)
		}
		f.Members = kept
		f.SortMembers()
	}
	p.Families = slices.DeleteFunc(p.Families, func(f *Family) bool { return len(f.Members) == 0 })
	p.Resort(0, nil, 0, true)
	return nil
}
