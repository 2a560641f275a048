// Package dataset defines the nested report structure handed to renderers.
package dataset

import (
	"github.com/farmlink-lab/farm-insights/internal/core/aggregation"
)

// Dataset is the complete output of one report pass.
type Dataset struct {
	Report      string              `json:"report"`
	Window      aggregation.Window  `json:"window"`
	Subject     *Subject            `json:"subject,omitempty"`
	Months      []aggregation.Month `json:"months"`
	Groups      []Group             `json:"groups"`
	Timeline    []Group             `json:"timeline,omitempty"`
	Ranking     Ranking             `json:"ranking"`
	Summary     Summary             `json:"summary"`
	Diagnostics Diagnostics         `json:"diagnostics"`
}

// Subject identifies the farm a farmer-facing report is about.
type Subject struct {
	ID       int64   `json:"id"`
	Name     *string `json:"name"`
	Location *string `json:"location"`
}

// Group is one dimension key with its accumulators, derived metrics and
// optional finer-grained sub-groups.
type Group struct {
	Key          string                        `json:"key"`
	Label        string                        `json:"label"`
	Attributes   map[string]*string            `json:"attributes,omitempty"`
	Accumulators map[string]aggregation.Metric `json:"accumulators"`
	Derived      map[string]aggregation.Metric `json:"derived"`
	SubGroups    []Group                       `json:"subGroups,omitempty"`
}

// Ranking holds the extremal and top-N keys for one metric.
type Ranking struct {
	Metric string   `json:"metric"`
	Best   *string  `json:"best"`
	Worst  *string  `json:"worst"`
	TopN   []string `json:"topN"`
}

// Extreme is one extremal entry of the summary.
type Extreme struct {
	Key   string             `json:"key"`
	Label string             `json:"label"`
	Value aggregation.Metric `json:"value"`
}

// Summary folds all groups into top-level totals and extremal entries.
type Summary struct {
	Totals       map[string]aggregation.Metric `json:"totals"`
	Metrics      map[string]aggregation.Metric `json:"metrics"`
	GroupCount   int                           `json:"groupCount"`
	ActiveGroups int                           `json:"activeGroups"`
	Extremes     map[string]*Extreme           `json:"extremes"`
}

// Diagnostics records rows the pass could not place.
type Diagnostics struct {
	Discarded    int      `json:"discarded"`
	Uncatalogued []string `json:"uncatalogued"`
	Notes        []string `json:"notes,omitempty"`
}

// Entry is one rankable group reference.
type Entry struct {
	Key   string
	Label string
	Value aggregation.Metric
}

// NewRanking ranks entries by value. Absent values never appear in any slot.
func NewRanking(metric string, entries []Entry, n int) Ranking {
	candidates := candidatesOf(entries)
	r := Ranking{Metric: metric, TopN: make([]string, 0, max(n, 0))}
	if best, worst, ok := aggregation.BestWorst(candidates); ok {
		r.Best = ptr(best.Key.Key)
		r.Worst = ptr(worst.Key.Key)
	}
	for _, c := range aggregation.TopN(candidates, n) {
		r.TopN = append(r.TopN, c.Key.Key)
	}
	return r
}

// NewSummary starts a summary with the given totals and no extremes.
func NewSummary(totals map[string]aggregation.Metric, groupCount, active int) Summary {
	if totals == nil {
		totals = make(map[string]aggregation.Metric)
	}
	return Summary{
		Totals:       totals,
		Metrics:      make(map[string]aggregation.Metric),
		GroupCount:   groupCount,
		ActiveGroups: active,
		Extremes:     make(map[string]*Extreme),
	}
}

// Highest records the entry with the highest defined value under name, or null.
func (s *Summary) Highest(name string, entries []Entry) {
	best, _ := BestWorst(entries)
	s.Extremes[name] = extremeOf(best)
}

// Lowest records the entry with the lowest defined value under name, or null.
func (s *Summary) Lowest(name string, entries []Entry) {
	_, worst := BestWorst(entries)
	s.Extremes[name] = extremeOf(worst)
}

// BestWorst returns the entries with the highest and lowest defined values,
// both nil when no entry is defined.
func BestWorst(entries []Entry) (best, worst *Entry) {
	b, w, ok := aggregation.BestWorst(candidatesOf(entries))
	if !ok {
		return nil, nil
	}
	return &b.Key, &w.Key
}

// Labels returns the labels of the best and worst entries, nil when none.
func Labels(entries []Entry) (best, worst *string) {
	b, w := BestWorst(entries)
	if b == nil {
		return nil, nil
	}
	return ptr(b.Label), ptr(w.Label)
}

func extremeOf(e *Entry) *Extreme {
	if e == nil {
		return nil
	}
	return &Extreme{Key: e.Key, Label: e.Label, Value: e.Value}
}

func candidatesOf(entries []Entry) []aggregation.Candidate[Entry] {
	out := make([]aggregation.Candidate[Entry], 0, len(entries))
	for _, e := range entries {
		out = append(out, aggregation.Candidate[Entry]{Key: e, Value: e.Value})
	}
	return out
}

// Diagnose builds diagnostics, always with a non-nil key list.
func Diagnose(discarded int, uncatalogued []string) Diagnostics {
	if uncatalogued == nil {
		uncatalogued = []string{}
	}
	return Diagnostics{Discarded: discarded, Uncatalogued: uncatalogued}
}

// WithNote returns d with a caveat about how a metric was computed.
func (d Diagnostics) WithNote(note string) Diagnostics {
	d.Notes = append(d.Notes, note)
	return d
}

func ptr(s string) *string { return &s }

// FromGroup snapshots an aggregation group under a display key and label.
func FromGroup[K comparable](g *aggregation.Group[K], key, label string) Group {
	return Group{
		Key:          key,
		Label:        label,
		Accumulators: g.Accumulators(),
		Derived:      g.DerivedMetrics(),
	}
}

// WithAttributes attaches descriptive attributes; nil values encode as null.
func (g Group) WithAttributes(attrs map[string]*string) Group {
	g.Attributes = attrs
	return g
}
