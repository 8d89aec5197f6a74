// Package weighted draws keys with probability proportional to their weight.
package weighted

import (
	"cmp"
	"errors"
	"fmt"
	"math/rand"
	"slices"
)

var (
	ErrNegativeWeight = errors.New("weight must be >= 0")
	ErrEmptyTable     = errors.New("weight table is empty")
)

type Entry[K cmp.Ordered] struct {
	Key    K
	Weight float64
}

// Table is an ordered list of weighted keys. Iteration order is fixed at
// construction, which makes draws reproducible for a given random source.
type Table[K cmp.Ordered] struct {
	entries []Entry[K]
	total   float64
}

// FromMap builds a table with keys in ascending order.
func FromMap[K cmp.Ordered](weights map[K]float64) (Table[K], error) {
	keys := make([]K, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	entries := make([]Entry[K], 0, len(keys))
	for _, k := range keys {
		entries = append(entries, Entry[K]{Key: k, Weight: weights[k]})
	}
	return New(entries...)
}

// New builds a table keeping the given entry order.
func New[K cmp.Ordered](entries ...Entry[K]) (Table[K], error) {
	t := Table[K]{entries: make([]Entry[K], 0, len(entries))}
	for _, e := range entries {
		if e.Weight < 0 {
			return Table[K]{}, fmt.Errorf("%w: %v=%v", ErrNegativeWeight, e.Key, e.Weight)
		}
		t.entries = append(t.entries, e)
		t.total += e.Weight
	}
	return t, nil
}

func (t Table[K]) Len() int            { return len(t.entries) }
func (t Table[K]) Total() float64      { return t.total }
func (t Table[K]) Entries() []Entry[K] { return slices.Clone(t.entries) }

// Weight returns the weight of key, or 0 when absent.
func (t Table[K]) Weight(key K) float64 {
	for _, e := range t.entries {
		if e.Key == key {
			return e.Weight
		}
	}
	return 0
}

// Pick draws a key with probability weight/total using a uniform float in
// [0, total), so fractional weights keep their share. With a zero total the
// first key is returned.
func (t Table[K]) Pick(rng *rand.Rand) (K, error) {
	var zero K
	if len(t.entries) == 0 {
		return zero, ErrEmptyTable
	}
	if t.total <= 0 {
		return t.entries[0].Key, nil
	}
	r := rng.Float64() * t.total
	remaining := t.total
	for _, e := range t.entries {
		remaining -= e.Weight
		if r >= remaining && e.Weight > 0 {
			return e.Key, nil
		}
	}
	// float residue; fall back to the last positive entry
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].Weight > 0 {
			return t.entries[i].Key, nil
		}
	}
	return t.entries[0].Key, nil
}
