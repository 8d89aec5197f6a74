package evo

import (
	"slices"

	"gridforge/internal/config"
	"gridforge/internal/grid"
	"gridforge/internal/scoring"
)

// ImprovementEpsilon is the smallest rise of a family's best score that
// resets its staleness counter.
const ImprovementEpsilon = 1e-5

// Member is one scored candidate. It is not modified after creation.
type Member struct {
	ID      int64
	Grid    *grid.Grid
	Metrics scoring.Metrics
	Score   float64
}

// Family keeps its members sorted by score, best first.
type Family struct {
	Members      []*Member
	LastImproved int
}

func NewFamily(generation int) *Family {
	return &Family{LastImproved: generation}
}

// MaxScore is the best member's score, or 0 for an empty family.
func (f *Family) MaxScore() float64 {
	if len(f.Members) == 0 {
		return 0
	}
	return f.Members[0].Score
}

// Best returns the top member or nil.
func (f *Family) Best() *Member {
	if len(f.Members) == 0 {
		return nil
	}
	return f.Members[0]
}

// Staleness is the number of generations since the best score last improved.
func (f *Family) Staleness(generation int) int {
	return generation - f.LastImproved
}

// AddMember inserts m ahead of every member scoring no more than it and
// truncates to maxMembers (non-positive means unbounded). A rise of the best
// score by at least ImprovementEpsilon marks the family improved at
// generation, except for the first member of an empty family.
func (f *Family) AddMember(m *Member, maxMembers, generation int) {
	first := len(f.Members) == 0
	oldMax := f.MaxScore()

	pos := len(f.Members)
	for i, existing := range f.Members {
		if existing.Score <= m.Score {
			pos = i
			break
		}
	}
	if maxMembers <= 0 || pos < maxMembers {
		f.Members = slices.Insert(f.Members, pos, m)
	}
	if maxMembers > 0 && len(f.Members) > maxMembers {
		f.Members = f.Members[:maxMembers]
	}

	newMax := f.MaxScore()
	if !first && newMax > oldMax && newMax-oldMax >= ImprovementEpsilon {
		f.LastImproved = generation
	}
}

// SortMembers restores descending order after scores were refreshed.
func (f *Family) SortMembers() {
	slices.SortStableFunc(f.Members, func(a, b *Member) int {
		return compareScoreDesc(a.Score, b.Score)
	})
}

func compareScoreDesc(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}

// FamilySet holds a population's families, best first after Resort.
type FamilySet struct {
	Families []*Family
}

func (s *FamilySet) Add(f *Family) {
	s.Families = append(s.Families, f)
}

func (s *FamilySet) Len() int { return len(s.Families) }

// Resort orders families by best score. Unless sortOnly, it then truncates
// to maxFamilies (non-positive means unbounded) and, when stale pruning is
// enabled, drops every family past the first KeepTopFamilies whose staleness
// exceeds StaleGenerations. It returns the removed families.
func (s *FamilySet) Resort(maxFamilies int, stale *config.StalePruning, generation int, sortOnly bool) []*Family {
	slices.SortStableFunc(s.Families, func(a, b *Family) int {
		return compareScoreDesc(a.MaxScore(), b.MaxScore())
	})
	if sortOnly {
		return nil
	}

	var removed []*Family
	if maxFamilies > 0 && len(s.Families) > maxFamilies {
		removed = append(removed, s.Families[maxFamilies:]...)
		s.Families = slices.Clip(s.Families[:maxFamilies])
	}
	if stale == nil || !stale.PruneStaleFamilies {
		return removed
	}

	kept := s.Families[:0]
	for idx, f := range s.Families {
		if idx >= stale.KeepTopFamilies && f.Staleness(generation) > stale.StaleGenerations {
			removed = append(removed, f)
			continue
		}
		kept = append(kept, f)
	}
	clear(s.Families[len(kept):])
	s.Families = kept
	return removed
}

// Population is one independently evolving set of families with its
// position in the phase schedule.
type Population struct {
	Name            string
	Phase           int
	PhaseGeneration int
	FamilySet
}

func NewPopulation(name string) *Population {
	return &Population{Name: name}
}

// Best returns the best member of the top family, or nil.
func (p *Population) Best() *Member {
	if len(p.Families) == 0 {
		return nil
	}
	return p.Families[0].Best()
}

// advancePhase moves to the next phase, wrapping past the last, once the
// current one has run its configured number of generations.
func (p *Population) advancePhase(phases []config.Phase) bool {
	if len(phases) == 0 || p.PhaseGeneration < phases[p.Phase].Generations {
		return false
	}
	p.Phase = (p.Phase + 1) % len(phases)
	p.PhaseGeneration = 0
	return true
}
