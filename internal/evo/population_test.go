package evo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridforge/internal/config"
)

func member(id int64, score float64) *Member {
	return &Member{ID: id, Score: score}
}

func familyWith(lastImproved int, scores ...float64) *Family {
	f := NewFamily(lastImproved)
	for i, s := range scores {
		f.AddMember(member(int64(i+1), s), 0, lastImproved)
	}
	return f
}

func TestAddMemberKeepsOrderAndCap(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		maxMembers := 1 + rng.Intn(5)
		f := NewFamily(0)
		for i := 0; i < 30; i++ {
			f.AddMember(member(int64(i), rng.NormFloat64()*10), maxMembers, i)
			require.LessOrEqual(t, len(f.Members), maxMembers)
			for j := 1; j < len(f.Members); j++ {
				require.GreaterOrEqual(t, f.Members[j-1].Score, f.Members[j].Score)
			}
		}
	}
}

func TestAddMemberDropsBelowCap(t *testing.T) {
	f := familyWith(0, 9, 8)
	f.AddMember(member(10, 1), 2, 3)
	require.Len(t, f.Members, 2)
	assert.Equal(t, []float64{9, 8}, []float64{f.Members[0].Score, f.Members[1].Score})

	f.AddMember(member(11, 8.5), 2, 3)
	assert.Equal(t, int64(11), f.Members[1].ID)
}

func TestAddMemberTiesInsertAhead(t *testing.T) {
	f := familyWith(0, 5)
	f.AddMember(member(9, 5), 0, 1)
	assert.Equal(t, int64(9), f.Members[0].ID)
}

func TestImprovementEpsilon(t *testing.T) {
	f := NewFamily(1)
	f.AddMember(member(1, 10), 3, 3)
	assert.Equal(t, 1, f.LastImproved, "first member is never an improvement")

	f.AddMember(member(2, 10+ImprovementEpsilon/2), 3, 5)
	assert.Equal(t, 1, f.LastImproved)

	f.AddMember(member(3, 9), 3, 6)
	assert.Equal(t, 1, f.LastImproved)

	f.AddMember(member(4, 10.5), 3, 7)
	assert.Equal(t, 7, f.LastImproved)
	assert.Equal(t, 2, f.Staleness(9))
}

func TestResortSortsOnly(t *testing.T) {
	var s FamilySet
	s.Add(familyWith(0, 1))
	s.Add(familyWith(0, 3))
	s.Add(familyWith(0, 2))

	removed := s.Resort(1, &config.StalePruning{PruneStaleFamilies: true}, 100, true)
	assert.Empty(t, removed)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, []float64{3, 2, 1}, []float64{s.Families[0].MaxScore(), s.Families[1].MaxScore(), s.Families[2].MaxScore()})
}

func TestResortProtectsTopFamilies(t *testing.T) {
	var s FamilySet
	for _, score := range []float64{1, 5, 3, 4, 2} {
		s.Add(familyWith(0, score))
	}
	stale := &config.StalePruning{PruneStaleFamilies: true, KeepTopFamilies: 2, StaleGenerations: 10}

	removed := s.Resort(0, stale, 50, false)
	assert.Len(t, removed, 3)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, 5.0, s.Families[0].MaxScore())
	assert.Equal(t, 4.0, s.Families[1].MaxScore())
}

func TestResortKeepsFreshFamilies(t *testing.T) {
	var s FamilySet
	s.Add(familyWith(0, 5))
	s.Add(familyWith(45, 1))
	s.Add(familyWith(0, 3))
	stale := &config.StalePruning{PruneStaleFamilies: true, KeepTopFamilies: 1, StaleGenerations: 10}

	s.Resort(0, stale, 50, false)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, 5.0, s.Families[0].MaxScore())
	assert.Equal(t, 1.0, s.Families[1].MaxScore())
}

func TestResortTruncatesBeforePruning(t *testing.T) {
	var s FamilySet
	s.Add(familyWith(0, 6))
	s.Add(familyWith(0, 5))
	s.Add(familyWith(50, 4))
	s.Add(familyWith(50, 3))
	s.Add(familyWith(50, 2))
	stale := &config.StalePruning{PruneStaleFamilies: true, KeepTopFamilies: 1, StaleGenerations: 10}

	removed := s.Resort(3, stale, 50, false)
	assert.Len(t, removed, 3)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, 6.0, s.Families[0].MaxScore())
	assert.Equal(t, 4.0, s.Families[1].MaxScore())
}

func TestResortWithoutStalePruning(t *testing.T) {
	var s FamilySet
	for i := 0; i < 5; i++ {
		s.Add(familyWith(0, float64(i)))
	}
	s.Resort(0, &config.StalePruning{PruneStaleFamilies: false, StaleGenerations: 1}, 100, false)
	assert.Equal(t, 5, s.Len())
	s.Resort(0, nil, 100, false)
	assert.Equal(t, 5, s.Len())
}

func TestAdvancePhaseWraps(t *testing.T) {
	phases := []config.Phase{{Generations: 2}, {Generations: 1}}
	p := NewPopulation("main")

	assert.False(t, p.advancePhase(phases))
	p.PhaseGeneration = 2
	assert.True(t, p.advancePhase(phases))
	assert.Equal(t, 1, p.Phase)
	assert.Equal(t, 0, p.PhaseGeneration)

	p.PhaseGeneration = 1
	assert.True(t, p.advancePhase(phases))
	assert.Equal(t, 0, p.Phase)
}
