package aggregation

import "sort"

// Candidate is one rankable entry.
type Candidate[K any] struct {
	Key   K
	Value Metric
}

// TopN returns up to n candidates with the highest defined values. Absent
// values are skipped; equal values keep their input order.
func TopN[K any](candidates []Candidate[K], n int) []Candidate[K] {
	defined := make([]Candidate[K], 0, len(candidates))
	for _, c := range candidates {
		if c.Value.Valid() {
			defined = append(defined, c)
		}
	}
	sort.SliceStable(defined, func(i, j int) bool {
		a, _ := defined[i].Value.Value()
		b, _ := defined[j].Value.Value()
		return a.GreaterThan(b)
	})
	if n >= 0 && len(defined) > n {
		defined = defined[:n]
	}
	return defined
}

// BestWorst returns the highest and lowest defined candidates. The first
// occurrence wins a tie. ok is false when no candidate has a defined value.
func BestWorst[K any](candidates []Candidate[K]) (best, worst Candidate[K], ok bool) {
	for _, c := range candidates {
		v, defined := c.Value.Value()
		if !defined {
			continue
		}
		if !ok {
			best, worst, ok = c, c, true
			continue
		}
		b, _ := best.Value.Value()
		if v.GreaterThan(b) {
			best = c
		}
		w, _ := worst.Value.Value()
		if v.LessThan(w) {
			worst = c
		}
	}
	return best, worst, ok
}
