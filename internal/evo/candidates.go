package evo

import (
	"gridforge/internal/config"
	"gridforge/internal/grid"
	"gridforge/internal/weighted"
)

const (
	originOffspring       = "offspring"
	originRandom          = "random"
	originSameFamily      = "same_family"
	originCrossFamily     = "cross_family"
	originCrossPopulation = "cross_population"
	originPromotion       = "promotion"
)

// candidate is an unscored grid waiting for evaluation. A nil family means
// the grid founds a new family.
type candidate struct {
	grid         *grid.Grid
	family       *Family
	lastImproved *int
	origin       string
}

// candidates builds the generation's batch for pop. Callers hold e.mu.
func (e *Engine) candidates(pop *Population, phase *config.Phase, mut *Mutator) ([]candidate, error) {
	var out []candidate
	algo := phase.Algorithm

	for _, f := range pop.Families {
		for _, m := range f.Members {
			for i := 0; i < algo.OffspringPerMember; i++ {
				child, err := mut.Mutate(m.Grid)
				if err != nil {
					return nil, err
				}
				out = append(out, candidate{grid: child, family: f, origin: originOffspring})
			}
		}
	}

	seeds := algo.RandomFamiliesPerGeneration
	if e.generation == 0 {
		seeds = algo.RandomFamiliesInitialGeneration
	}
	for i := 0; i < seeds; i++ {
		g, err := e.randomGrid()
		if err != nil {
			return nil, err
		}
		out = append(out, candidate{grid: g, origin: originRandom})
	}

	for i := 0; i < algo.SameFamilyHybrids; i++ {
		if pop.Len() == 0 {
			break
		}
		f := pop.Families[e.rng.Intn(pop.Len())]
		if len(f.Members) < 2 {
			continue
		}
		a, b := e.distinctPair(len(f.Members))
		child, err := mut.Hybrid(f.Members[a].Grid, f.Members[b].Grid)
		if err != nil {
			return nil, err
		}
		out = append(out, candidate{grid: child, family: f, origin: originSameFamily})
	}

	for i := 0; i < algo.CrossFamilyHybrids; i++ {
		if pop.Len() < 2 {
			break
		}
		a, b := e.distinctPair(pop.Len())
		c, ok, err := e.crossHybrid(mut, phase, pop.Families[a], pop.Families[b], originCrossFamily)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}

	if algo.CrossPopulationHybrids > 0 {
		cross, err := e.crossPopulationCandidates(phase, mut)
		if err != nil {
			return nil, err
		}
		out = append(out, cross...)
	}

	out = append(out, e.promotionCandidates(phase)...)
	return out, nil
}

func (e *Engine) crossPopulationCandidates(phase *config.Phase, mut *Mutator) ([]candidate, error) {
	table, err := weighted.FromMap(phase.Hybridization.CrossPopulationHybridWeights)
	if err != nil {
		return nil, config.Errorf("hybridization.crossPopulationHybridWeights", "%v", err)
	}
	if table.Len() == 0 {
		return nil, config.Errorf("hybridization.crossPopulationHybridWeights", "required when crossPopulationHybrids > 0")
	}

	var out []candidate
	for i := 0; i < phase.Algorithm.CrossPopulationHybrids; i++ {
		name1, err := table.Pick(e.rng)
		if err != nil {
			return nil, err
		}
		name2, err := table.Pick(e.rng)
		if err != nil {
			return nil, err
		}
		pop1, pop2 := e.populations[name1], e.populations[name2]
		if pop1 == nil || pop2 == nil {
			return nil, config.Errorf("hybridization.crossPopulationHybridWeights", "unknown population %q or %q", name1, name2)
		}
		if name1 == name2 && pop1.Len() < 2 {
			continue
		}
		if pop1.Len() < 1 || pop2.Len() < 1 {
			continue
		}

		var f1, f2 *Family
		if name1 == name2 {
			a, b := e.distinctPair(pop1.Len())
			f1, f2 = pop1.Families[a], pop1.Families[b]
		} else {
			f1 = pop1.Families[e.rng.Intn(pop1.Len())]
			f2 = pop2.Families[e.rng.Intn(pop2.Len())]
		}
		c, ok, err := e.crossHybrid(mut, phase, f1, f2, originCrossPopulation)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// crossHybrid crosses a random member of f1 with a random member of f2 into a
// new family candidate.
func (e *Engine) crossHybrid(mut *Mutator, phase *config.Phase, f1, f2 *Family, origin string) (candidate, bool, error) {
	if len(f1.Members) == 0 || len(f2.Members) == 0 {
		return candidate{}, false, nil
	}
	m1 := f1.Members[e.rng.Intn(len(f1.Members))]
	m2 := f2.Members[e.rng.Intn(len(f2.Members))]
	child, err := mut.Hybrid(m1.Grid, m2.Grid)
	if err != nil {
		return candidate{}, false, err
	}
	c := candidate{grid: child, origin: origin}
	if phase.StalePruning != nil && phase.StalePruning.PreserveStaleCounterOnHybrid {
		inherited := min(f1.LastImproved, f2.LastImproved)
		c.lastImproved = &inherited
	}
	return c, true, nil
}

// promotionCandidates copies the best member of the top families of each
// source population, once every PromotionInterval generations. Each source
// is first cut down to PrePromotionPruneFamilies.
func (e *Engine) promotionCandidates(phase *config.Phase) []candidate {
	promo := phase.Promotions
	if promo == nil || promo.PromotionInterval <= 0 {
		return nil
	}
	if e.generation%promo.PromotionInterval != promo.PromotionInterval-1 {
		return nil
	}

	var out []candidate
	for _, name := range promo.PromotedPopulations {
		src := e.populations[name]
		if src == nil {
			continue
		}
		if removed := src.Resort(promo.PrePromotionPruneFamilies, nil, e.generation, false); len(removed) > 0 {
			e.metrics.AddPruned(name, len(removed))
		}
		n := min(promo.NumPromotionsPerPopulation, src.Len())
		for _, f := range src.Families[:n] {
			if best := f.Best(); best != nil {
				out = append(out, candidate{grid: best.Grid.Clone(), origin: originPromotion})
			}
		}
	}
	return out
}

func (e *Engine) randomGrid() (*grid.Grid, error) {
	w, h := e.cfg.Grid.Width, e.cfg.Grid.Height
	cells := make([]grid.Token, w*h)
	for i := range cells {
		t, err := e.seedWeights.Pick(e.rng)
		if err != nil {
			return nil, err
		}
		cells[i] = t
	}
	return grid.New(w, h, cells)
}

// distinctPair draws two different indexes in [0,n). n must be at least 2.
func (e *Engine) distinctPair(n int) (int, int) {
	a := e.rng.Intn(n)
	b := e.rng.Intn(n - 1)
	if b >= a {
		b++
	}
	return a, b
}
