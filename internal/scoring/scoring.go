// Package scoring turns oracle metrics and grid composition into a scalar
// score through a set of per-field rules.
package scoring

import (
	"maps"
	"math"
	"slices"

	"gridforge/internal/grid"
)

// Metrics is the opaque record returned by the simulation oracle, keyed by
// field name.
type Metrics map[string]any

// CostTable maps tokens to a cost. Tokens absent from the table cost 0.
type CostTable map[grid.Token]float64

// Field names the oracle is expected to report.
const (
	FieldEfficiency                 = "efficiency"
	FieldEnergyPerTick              = "overallEUPerTick"
	FieldUsesSingleUseCoolant       = "usesSingleUseCoolant"
	FieldTimedOut                   = "timedOut"
	FieldCooldownTicks              = "cooldownTicks"
	FieldMark                       = "mark"
	FieldTicksUntilComponentFailure = "ticksUntilComponentFailure"
	FieldTicksUntilMeltdown         = "ticksUntilMeltdown"
)

// Synthetic fields added by Augment.
const (
	FieldTotalCost         = "totalCost"
	FieldConsumableCost    = "consumableCost"
	FieldUnusedColumns     = "unusedColumns"
	FieldTicksUntilFailure = "ticksUntilFailure"
	countPrefix            = "count"
)

// Never is the sentinel for "does not happen" in tick counters and numeric
// fields; factor rules skip it.
const Never = -1.0

const defaultLogBase = 10.0

// Rule scores one field. Every configured kind applies and the contributions
// add up.
type Rule struct {
	Factor    float64            `yaml:"factor,omitempty" json:"factor,omitempty"`
	Values    map[string]float64 `yaml:"values,omitempty" json:"values,omitempty"`
	Threshold *Threshold         `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	LogFactor float64            `yaml:"logFactor,omitempty" json:"logFactor,omitempty"`
	LogBase   float64            `yaml:"logBase,omitempty" json:"logBase,omitempty"`
	LogOffset float64            `yaml:"logOffset,omitempty" json:"logOffset,omitempty"`
}

type Threshold struct {
	Value   float64 `yaml:"value" json:"value"`
	Score   float64 `yaml:"score" json:"score"`
	IfEmpty float64 `yaml:"ifEmpty,omitempty" json:"ifEmpty,omitempty"`
}

// RuleSet maps field names to rules.
type RuleSet map[string]Rule

// CountField names the synthetic occurrence count of token.
func CountField(token grid.Token) string {
	return countPrefix + string(token)
}

// Augment returns a copy of metrics extended with cost totals, token counts,
// trailing empty columns and the derived ticks-until-failure.
func Augment(metrics Metrics, g *grid.Grid, costs, consumables CostTable) Metrics {
	out := make(Metrics, len(metrics)+8)
	for k, v := range metrics {
		out[k] = v
	}

	cells := g.Cells()
	out[FieldTotalCost] = sumCost(cells, costs)
	out[FieldConsumableCost] = sumCost(cells, consumables)
	for token, n := range g.Counts() {
		out[CountField(token)] = n
	}
	out[FieldUnusedColumns] = unusedColumns(g)

	if failure, ok := ticksUntilFailure(metrics); ok {
		out[FieldTicksUntilFailure] = failure
	}
	return out
}

func sumCost(cells []grid.Token, costs CostTable) float64 {
	total := 0.0
	for _, c := range cells {
		total += costs[c]
	}
	return total
}

// unusedColumns counts all-empty columns from the right edge inward.
func unusedColumns(g *grid.Grid) int {
	unused := 0
	for x := g.Width() - 1; x >= 0; x-- {
		for y := 0; y < g.Height(); y++ {
			if t, _ := g.Get(x, y); t != grid.Empty {
				return unused
			}
		}
		unused++
	}
	return unused
}

// ticksUntilFailure is the meltdown ETA when it is known and comes first,
// otherwise the component-failure ETA.
func ticksUntilFailure(metrics Metrics) (float64, bool) {
	component := ValueOf(metrics[FieldTicksUntilComponentFailure])
	meltdown := ValueOf(metrics[FieldTicksUntilMeltdown])
	if meltdown.IsNumber() && meltdown.Number >= 0 &&
		(!component.IsNumber() || meltdown.Number < component.Number || component.Number < 0) {
		return meltdown.Number, true
	}
	if component.IsNumber() {
		return component.Number, true
	}
	return 0, false
}

// Evaluate applies rules to already-augmented metrics. Fields missing from
// metrics contribute nothing.
func Evaluate(metrics Metrics, rules RuleSet) float64 {
	score := 0.0
	for _, field := range slices.Sorted(maps.Keys(rules)) {
		score += rules[field].apply(ValueOf(metrics[field]))
	}
	return score
}

func (r Rule) apply(v Value) float64 {
	score := 0.0
	if r.Factor != 0 && v.IsNumber() && v.Number != Never {
		score += r.Factor * v.Number
	}
	if len(r.Values) > 0 {
		// a mapped delta of 0 is indistinguishable from a missing entry
		if delta := r.Values[v.Key()]; delta != 0 {
			score += delta
		}
	}
	if r.Threshold != nil && v.IsNumber() {
		if r.Threshold.IfEmpty != 0 && (v.Number == 0 || v.Number == Never) {
			score += r.Threshold.IfEmpty
		} else if v.Number >= r.Threshold.Value {
			score += r.Threshold.Score
		}
	}
	if r.LogFactor != 0 && v.IsNumber() && v.Number > Never {
		base := r.LogBase
		if base == 0 {
			base = defaultLogBase
		}
		score += (math.Log(v.Number+1)/math.Log(base) + r.LogOffset) * r.LogFactor
	}
	return score
}

// Score augments metrics and evaluates rules. It returns the score and the
// augmented record that belongs with the scored member.
func Score(metrics Metrics, g *grid.Grid, costs, consumables CostTable, rules RuleSet) (float64, Metrics) {
	augmented := Augment(metrics, g, costs, consumables)
	return Evaluate(augmented, rules), augmented
}
