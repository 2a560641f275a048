package dataset

import (
	"encoding/json"
	"testing"

	"github.com/farmlink-lab/farm-insights/internal/core/aggregation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func entries() []Entry {
	return []Entry{
		{Key: "1", Label: "Kale", Value: aggregation.SomeInt(4)},
		{Key: "2", Label: "Leeks", Value: aggregation.None()},
		{Key: "3", Label: "Beets", Value: aggregation.SomeInt(9)},
		{Key: "4", Label: "Chard", Value: aggregation.SomeInt(1)},
	}
}

func TestNewRanking(t *testing.T) {
	r := NewRanking("quantity", entries(), 2)
	require.Equal(t, "quantity", r.Metric)
	require.Equal(t, "3", *r.Best)
	require.Equal(t, "4", *r.Worst)
	require.Equal(t, []string{"3", "1"}, r.TopN)

	empty := NewRanking("quantity", nil, -1)
	require.Nil(t, empty.Best)
	require.Nil(t, empty.Worst)
	require.NotNil(t, empty.TopN)
}

func TestSummaryExtremes(t *testing.T) {
	s := NewSummary(nil, 4, 3)
	s.Highest("top", entries())
	s.Lowest("low", entries())
	s.Highest("none", []Entry{{Key: "x", Value: aggregation.None()}})

	require.Equal(t, "Beets", s.Extremes["top"].Label)
	require.Equal(t, "Chard", s.Extremes["low"].Label)
	require.Nil(t, s.Extremes["none"])

	b, err := json.Marshal(s)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"totals": {},
		"metrics": {},
		"groupCount": 4,
		"activeGroups": 3,
		"extremes": {
			"top": {"key": "3", "label": "Beets", "value": 9},
			"low": {"key": "4", "label": "Chard", "value": 1},
			"none": null
		}
	}`, string(b))
}

func TestLabels(t *testing.T) {
	best, worst := Labels(entries())
	require.Equal(t, "Beets", *best)
	require.Equal(t, "Chard", *worst)

	best, worst = Labels([]Entry{{Key: "x", Value: aggregation.None()}})
	require.Nil(t, best)
	require.Nil(t, worst)
}

func TestFromGroupAndDiagnostics(t *testing.T) {
	table := aggregation.NewTable[string](aggregation.Sum("revenue"))
	table.Seed("herbs")
	table.Fold("herbs", aggregation.Values{"revenue": decimal.NewFromInt(12)})
	table.Seal()
	g := table.Must("herbs")
	g.Derive("share", func() aggregation.Metric { return aggregation.None() })

	grade := "A"
	dg := FromGroup(g, "herbs", "Herbs").WithAttributes(map[string]*string{"grade": &grade, "unit": nil})
	b, err := json.Marshal(dg)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"key": "herbs",
		"label": "Herbs",
		"attributes": {"grade": "A", "unit": null},
		"accumulators": {"revenue": 12},
		"derived": {"share": null}
	}`, string(b))

	d := Diagnose(2, nil)
	require.Equal(t, 2, d.Discarded)
	require.NotNil(t, d.Uncatalogued)
}
