// Package report turns normalized row sets into report datasets. Each builder
// is a single synchronous pass: normalize, seed, fold, derive, rank.
package report

import (
	"sort"
	"strconv"

	agg "github.com/farmlink-lab/farm-insights/internal/core/aggregation"
	"github.com/farmlink-lab/farm-insights/internal/core/dataset"
	"github.com/farmlink-lab/farm-insights/internal/core/storage"
	"github.com/shopspring/decimal"
)

// Report ids.
const (
	FarmProductivity    = "farmProductivity"
	LoyaltyEngagement   = "loyaltyEngagement"
	ProductSales        = "productSales"
	SubscriptionClients = "subscriptionClients"
	OrderSales          = "orderSales"
)

const defaultTopN = 5

var zero = decimal.Zero

// Input is everything one report pass reads.
type Input struct {
	Window    agg.Window
	Rows      map[storage.RowSet][]agg.RawRow
	Farm      *FarmRow
	ProductID int64
}

// Options tunes ranking output.
type Options struct {
	TopN int
}

func (o Options) topN() int {
	if o.TopN <= 0 {
		return defaultTopN
	}
	return o.TopN
}

// Builder produces one report type.
type Builder struct {
	ID         string
	RowSets    []storage.RowSet
	FarmScoped bool
	build      func(in Input, opts Options) dataset.Dataset
}

// Build runs the pass. It never fails: dirty or missing data yields a mostly empty dataset.
func (b Builder) Build(in Input, opts Options) dataset.Dataset {
	ds := b.build(in, opts)
	ds.Report = b.ID
	ds.Window = in.Window
	if in.Farm != nil {
		ds.Subject = &dataset.Subject{ID: in.Farm.FarmID, Name: in.Farm.Name, Location: in.Farm.Location}
	}
	return ds
}

var builders = map[string]Builder{
	FarmProductivity: {
		ID:      FarmProductivity,
		RowSets: []storage.RowSet{storage.ProductFarms, storage.InventoryByMonth, storage.SalesByProductMonth},
		build:   buildProductivity,
	},
	LoyaltyEngagement: {
		ID:      LoyaltyEngagement,
		RowSets: []storage.RowSet{storage.LoyaltyOrders},
		build:   buildLoyalty,
	},
	ProductSales: {
		ID:      ProductSales,
		RowSets: []storage.RowSet{storage.SalesByTypeMonth},
		build:   buildProductSales,
	},
	SubscriptionClients: {
		ID:         SubscriptionClients,
		RowSets:    []storage.RowSet{storage.FarmOfferings, storage.FarmInventoryPrices, storage.FarmSubscriptions},
		FarmScoped: true,
		build:      buildSubscriptions,
	},
	OrderSales: {
		ID:         OrderSales,
		RowSets:    []storage.RowSet{storage.FarmOrderTotals, storage.FarmOrdersByMonth},
		FarmScoped: true,
		build:      buildOrderSales,
	},
}

// Lookup returns the builder for a report id.
func Lookup(id string) (Builder, bool) {
	b, ok := builders[id]
	return b, ok
}

// IDs returns every registered report id in sorted order.
func IDs() []string {
	ids := make([]string, 0, len(builders))
	for id := range builders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// positive is defined only for values above zero; used where zero means "no activity".
func positive(m agg.Metric) agg.Metric {
	if v, ok := m.Value(); ok && v.IsPositive() {
		return m
	}
	return agg.None()
}

func monthGroups[K comparable](t *agg.Table[K], months []agg.Month, key func(agg.Month) K) []dataset.Group {
	out := make([]dataset.Group, 0, len(months))
	for _, m := range months {
		out = append(out, dataset.FromGroup(t.Must(key(m)), m.String(), m.Label()))
	}
	return out
}

func idKey(id int64) string { return strconv.FormatInt(id, 10) }

func strPtr(s string) *string { return &s }
