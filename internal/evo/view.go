package evo

import (
	"maps"

	"gridforge/internal/grid"
	"gridforge/internal/scoring"
)

// Status is a point-in-time copy of the top of every population.
type Status struct {
	Generation  int                `json:"generation"`
	Populations []PopulationStatus `json:"populations"`
}

type PopulationStatus struct {
	Name            string         `json:"name"`
	Phase           int            `json:"phase"`
	PhaseGeneration int            `json:"phaseGeneration"`
	FamilyCount     int            `json:"familyCount"`
	Families        []FamilyStatus `json:"families"`
}

type FamilyStatus struct {
	LastImproved int            `json:"lastImproved"`
	Staleness    int            `json:"staleness"`
	MemberCount  int            `json:"memberCount"`
	Members      []MemberStatus `json:"members"`
}

type MemberStatus struct {
	ID      int64           `json:"id"`
	Grid    *grid.Grid      `json:"grid"`
	Metrics scoring.Metrics `json:"metrics"`
	Score   float64         `json:"score"`
}

func memberStatus(m *Member) MemberStatus {
	return MemberStatus{ID: m.ID, Grid: m.Grid.Clone(), Metrics: maps.Clone(m.Metrics), Score: m.Score}
}

// Status returns the top topFamilies families of each population, in
// configured order, with their top topMembers members.
func (e *Engine) Status(topFamilies, topMembers int) Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := Status{Generation: e.generation, Populations: make([]PopulationStatus, 0, len(e.order))}
	for _, name := range e.order {
		p := e.populations[name]
		ps := PopulationStatus{
			Name:            name,
			Phase:           p.Phase,
			PhaseGeneration: p.PhaseGeneration,
			FamilyCount:     p.Len(),
			Families:        []FamilyStatus{},
		}
		for _, f := range p.Families[:min(max(topFamilies, 0), p.Len())] {
			fs := FamilyStatus{
				LastImproved: f.LastImproved,
				Staleness:    f.Staleness(e.generation),
				MemberCount:  len(f.Members),
				Members:      []MemberStatus{},
			}
			for _, m := range f.Members[:min(max(topMembers, 0), len(f.Members))] {
				fs.Members = append(fs.Members, memberStatus(m))
			}
			ps.Families = append(ps.Families, fs)
		}
		out.Populations = append(out.Populations, ps)
	}
	return out
}

// Best returns the best member of the named population.
func (e *Engine) Best(population string) (MemberStatus, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.populations[population]
	if !ok {
		return MemberStatus{}, false
	}
	m := p.Best()
	if m == nil {
		return MemberStatus{}, false
	}
	return memberStatus(m), true
}
