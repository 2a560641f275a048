package aggregation

import (
	"github.com/shopspring/decimal"
)

// Group is the accumulator set for one dimension key. Derived metrics are
// memoized on the group once accumulation is complete.
type Group[K comparable] struct {
	Key  K
	Rows int64

	sums    map[string]decimal.Decimal
	derived map[string]Metric
}

// Sum returns the accumulator value for name (zero when never folded).
func (g *Group[K]) Sum(name string) decimal.Decimal {
	return g.sums[name]
}

// Active reports whether at least one row was folded into the group.
func (g *Group[K]) Active() bool {
	return g.Rows > 0
}

// Accumulators returns every accumulator as a defined Metric.
func (g *Group[K]) Accumulators() map[string]Metric {
	out := make(map[string]Metric, len(g.sums))
	for name, v := range g.sums {
		out[name] = Some(v)
	}
	return out
}

// Derive computes a derived metric once and returns the memoized value on later calls.
func (g *Group[K]) Derive(name string, fn func() Metric) Metric {
	if m, ok := g.derived[name]; ok {
		return m
	}
	m := fn()
	g.derived[name] = m
	return m
}

// Derived returns a previously derived metric, absent when it was never derived.
func (g *Group[K]) Derived(name string) Metric {
	return g.derived[name]
}

// DerivedMetrics returns a copy of all derived metrics.
func (g *Group[K]) DerivedMetrics() map[string]Metric {
	out := make(map[string]Metric, len(g.derived))
	for name, m := range g.derived {
		out[name] = m
	}
	return out
}

// Table groups rows by a composite key. Keys are seeded before any row is folded;
// groups keep seeding order.
type Table[K comparable] struct {
	fields    []Field
	order     []K
	groups    map[K]*Group[K]
	folded    bool
	sealed    bool
	discarded int
}

// NewTable creates an empty table with the given accumulation rule.
func NewTable[K comparable](fields ...Field) *Table[K] {
	return &Table[K]{
		fields: fields,
		groups: make(map[K]*Group[K]),
	}
}

// Seed allocates a zero-filled group for every key not yet present.
// Seeding after the first fold panics.
func (t *Table[K]) Seed(keys ...K) {
	if t.folded || t.sealed {
		panic("aggregation: seed after fold")
	}
	for _, k := range keys {
		if _, ok := t.groups[k]; ok {
			continue
		}
		g := &Group[K]{
			Key:     k,
			sums:    make(map[string]decimal.Decimal, len(t.fields)),
			derived: make(map[string]Metric),
		}
		for _, f := range t.fields {
			g.sums[f.Name] = decimal.Zero
		}
		t.groups[k] = g
		t.order = append(t.order, k)
	}
}

// Fold applies one row to the group for key. Rows for keys that were never
// seeded are discarded and counted. Folding after Seal panics.
func (t *Table[K]) Fold(key K, values Values) (*Group[K], bool) {
	if t.sealed {
		panic("aggregation: fold after seal")
	}
	t.folded = true
	g, ok := t.groups[key]
	if !ok {
		t.discarded++
		return nil, false
	}
	for _, f := range t.fields {
		g.sums[f.Name] = f.agg.Apply(g.sums[f.Name], values[f.Name])
	}
	g.Rows++
	return g, true
}

// Seal ends the accumulation pass. The table is read-only afterwards.
func (t *Table[K]) Seal() {
	t.sealed = true
}

// Lookup returns the group for key.
func (t *Table[K]) Lookup(key K) (*Group[K], bool) {
	g, ok := t.groups[key]
	return g, ok
}

// Must returns the group for key and panics when the key was never seeded.
func (t *Table[K]) Must(key K) *Group[K] {
	g, ok := t.groups[key]
	if !ok {
		panic("aggregation: unseeded key")
	}
	return g
}

// Keys returns the seeded keys in seeding order.
func (t *Table[K]) Keys() []K {
	out := make([]K, len(t.order))
	copy(out, t.order)
	return out
}

// Groups returns the groups in seeding order.
func (t *Table[K]) Groups() []*Group[K] {
	out := make([]*Group[K], 0, len(t.order))
	for _, k := range t.order {
		out = append(out, t.groups[k])
	}
	return out
}

// Len returns the number of seeded groups.
func (t *Table[K]) Len() int { return len(t.order) }

// Discarded returns how many rows were dropped for unseeded keys.
func (t *Table[K]) Discarded() int { return t.discarded }

// Totals sums every accumulator across all groups.
func (t *Table[K]) Totals() map[string]Metric {
	out := make(map[string]Metric, len(t.fields))
	for _, f := range t.fields {
		total := decimal.Zero
		for _, g := range t.groups {
			total = total.Add(g.sums[f.Name])
		}
		out[f.Name] = Some(total)
	}
	return out
}

// ActiveCount returns how many groups received at least one row.
func (t *Table[K]) ActiveCount() int {
	n := 0
	for _, g := range t.groups {
		if g.Active() {
			n++
		}
	}
	return n
}
