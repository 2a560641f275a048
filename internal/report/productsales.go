package report

import (
	"sort"

	agg "github.com/farmlink-lab/farm-insights/internal/core/aggregation"
	"github.com/farmlink-lab/farm-insights/internal/core/dataset"
	"github.com/farmlink-lab/farm-insights/internal/core/storage"
)

const (
	metricAverageUnitPrice = "averageUnitPrice"
	metricRevenueShare     = "revenueShare"
	metricTypeCount        = "productTypeCount"
)

type typeMonthKey struct {
	Type  string
	Month agg.Month
}

func buildProductSales(in Input, opts Options) dataset.Dataset {
	months := in.Window.Months()
	rows := normalizeTypeSalesMonths(in.Rows[storage.SalesByTypeMonth])

	// Product types are declared by the rows themselves.
	var types []string
	seen := make(map[string]bool)
	for _, r := range rows {
		if r.HasMonth && in.Window.Contains(r.Month) && !seen[r.ProductType] {
			seen[r.ProductType] = true
			types = append(types, r.ProductType)
		}
	}

	fields := []agg.Field{agg.Sum(accQuantity), agg.Sum(accRevenue)}
	byTypeMonth := agg.NewTable[typeMonthKey](fields...)
	byType := agg.NewTable[string](fields...)
	byMonth := agg.NewTable[agg.Month](fields...)
	for _, t := range types {
		byType.Seed(t)
		for _, m := range months {
			byTypeMonth.Seed(typeMonthKey{Type: t, Month: m})
		}
	}
	byMonth.Seed(months...)

	values := func(r TypeSalesMonthRow) agg.Values {
		return agg.Values{accQuantity: r.Quantity, accRevenue: r.Revenue}
	}
	agg.FoldAll(rows,
		agg.By(byTypeMonth, func(r TypeSalesMonthRow) (typeMonthKey, bool) {
			return typeMonthKey{Type: r.ProductType, Month: r.Month}, r.HasMonth
		}, values),
		agg.By(byType, func(r TypeSalesMonthRow) (string, bool) {
			return r.ProductType, r.HasMonth && in.Window.Contains(r.Month)
		}, values),
		agg.By(byMonth, func(r TypeSalesMonthRow) (agg.Month, bool) {
			return r.Month, r.HasMonth
		}, values),
	)
	byTypeMonth.Seal()
	byType.Seal()
	byMonth.Seal()

	totals := byType.Totals()
	totalRevenue := totals[accRevenue].Or(zero)

	for _, m := range months {
		g := byMonth.Must(m)
		g.Derive(metricAverageUnitPrice, func() agg.Metric { return agg.Average(g.Sum(accRevenue), g.Sum(accQuantity)) })
	}

	// Highest revenue first; equal revenue keeps type name order.
	ordered := append([]string(nil), types...)
	sort.Strings(ordered)
	sort.SliceStable(ordered, func(i, j int) bool {
		return byType.Must(ordered[i]).Sum(accRevenue).GreaterThan(byType.Must(ordered[j]).Sum(accRevenue))
	})

	groups := make([]dataset.Group, 0, len(ordered))
	revenueEntries := make([]dataset.Entry, 0, len(ordered))
	quantityEntries := make([]dataset.Entry, 0, len(ordered))
	for _, t := range ordered {
		g := byType.Must(t)
		g.Derive(metricAverageUnitPrice, func() agg.Metric { return agg.Average(g.Sum(accRevenue), g.Sum(accQuantity)) })
		g.Derive(metricRevenueShare, func() agg.Metric { return agg.Share(g.Sum(accRevenue), totalRevenue) })

		subGroups := make([]dataset.Group, 0, len(months))
		for _, m := range months {
			tm := byTypeMonth.Must(typeMonthKey{Type: t, Month: m})
			monthRevenue := byMonth.Must(m).Sum(accRevenue)
			tm.Derive(metricAverageUnitPrice, func() agg.Metric { return agg.Average(tm.Sum(accRevenue), tm.Sum(accQuantity)) })
			tm.Derive(metricRevenueShare, func() agg.Metric { return agg.Share(tm.Sum(accRevenue), monthRevenue) })
			subGroups = append(subGroups, dataset.FromGroup(tm, m.String(), m.Label()))
		}

		dg := dataset.FromGroup(g, t, t)
		dg.SubGroups = subGroups
		groups = append(groups, dg)

		revenueEntries = append(revenueEntries, dataset.Entry{Key: t, Label: t, Value: agg.Some(g.Sum(accRevenue))})
		quantityEntries = append(quantityEntries, dataset.Entry{Key: t, Label: t, Value: agg.Some(g.Sum(accQuantity))})
	}

	summary := dataset.NewSummary(totals, byType.Len(), byType.ActiveCount())
	summary.Metrics[metricTypeCount] = agg.SomeInt(int64(len(types)))
	summary.Metrics[metricAverageUnitPrice] = agg.Average(totalRevenue, totals[accQuantity].Or(zero))
	summary.Highest("topRevenueType", revenueEntries)
	summary.Highest("topQuantityType", quantityEntries)
	summary.Lowest("slowType", revenueEntries)

	return dataset.Dataset{
		Months:      months,
		Groups:      groups,
		Timeline:    monthGroups(byMonth, months, func(m agg.Month) agg.Month { return m }),
		Ranking:     dataset.NewRanking(accRevenue, revenueEntries, opts.topN()),
		Summary:     summary,
		Diagnostics: dataset.Diagnose(byTypeMonth.Discarded(), nil),
	}
}
