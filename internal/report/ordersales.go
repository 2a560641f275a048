package report

import (
	"fmt"
	"sort"

	agg "github.com/farmlink-lab/farm-insights/internal/core/aggregation"
	"github.com/farmlink-lab/farm-insights/internal/core/dataset"
	"github.com/farmlink-lab/farm-insights/internal/core/storage"
)

const (
	metricAvgOrderValue = "averageOrderValue"
	metricRevenueGrowth = "revenueGrowth"
	metricProductCount  = "productCount"
)

type orderProductMonthKey struct {
	ProductID int64
	Month     agg.Month
}

type orderProductInfo struct {
	name        string
	productType *string
	grade       *string
}

func buildOrderSales(in Input, opts Options) dataset.Dataset {
	months := in.Window.Months()
	totalRows := normalizeProductOrders(in.Rows[storage.FarmOrderTotals])
	monthRows := normalizeProductOrders(in.Rows[storage.FarmOrdersByMonth])

	// The totals rows declare the catalogue and its order; monthly rows carry
	// the numbers so the product totals always add up to the months.
	var products []int64
	info := make(map[int64]orderProductInfo)
	var uncatalogued []string
	declare := func(r ProductOrderRow) bool {
		if _, ok := info[r.ProductID]; ok {
			return false
		}
		products = append(products, r.ProductID)
		info[r.ProductID] = orderProductInfo{name: r.ProductName, productType: r.ProductType, grade: r.Grade}
		return true
	}
	for _, r := range totalRows {
		declare(r)
	}
	for _, r := range monthRows {
		if r.HasMonth && in.Window.Contains(r.Month) && declare(r) {
			uncatalogued = append(uncatalogued, fmt.Sprintf("product:%d", r.ProductID))
		}
	}

	fields := []agg.Field{agg.Sum(accQuantity), agg.Sum(accRevenue), agg.Sum(accOrders)}
	byProduct := agg.NewTable[int64](fields...)
	byProductMonth := agg.NewTable[orderProductMonthKey](fields...)
	byMonth := agg.NewTable[agg.Month](fields...)
	byProduct.Seed(products...)
	for _, pid := range products {
		for _, m := range months {
			byProductMonth.Seed(orderProductMonthKey{ProductID: pid, Month: m})
		}
	}
	byMonth.Seed(months...)

	values := func(r ProductOrderRow) agg.Values {
		return agg.Values{accQuantity: r.Quantity, accRevenue: r.Revenue, accOrders: r.Orders}
	}
	inWindow := func(r ProductOrderRow) bool { return r.HasMonth && in.Window.Contains(r.Month) }
	agg.FoldAll(monthRows,
		agg.By(byProduct, func(r ProductOrderRow) (int64, bool) { return r.ProductID, inWindow(r) }, values),
		agg.By(byProductMonth, func(r ProductOrderRow) (orderProductMonthKey, bool) {
			return orderProductMonthKey{ProductID: r.ProductID, Month: r.Month}, r.HasMonth
		}, values),
		agg.By(byMonth, func(r ProductOrderRow) (agg.Month, bool) { return r.Month, r.HasMonth }, values),
	)
	byProduct.Seal()
	byProductMonth.Seal()
	byMonth.Seal()

	for _, pid := range products {
		deriveOrderMetrics(byProduct.Must(pid))
		prev := agg.None()
		for _, m := range months {
			g := byProductMonth.Must(orderProductMonthKey{ProductID: pid, Month: m})
			deriveOrderMetrics(g)
			prev = deriveRevenueGrowth(g, prev)
		}
	}
	prev := agg.None()
	for _, m := range months {
		g := byMonth.Must(m)
		deriveOrderMetrics(g)
		prev = deriveRevenueGrowth(g, prev)
	}

	// Best sellers by quantity first; ties keep catalogue order.
	ordered := append([]int64(nil), products...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return byProduct.Must(ordered[i]).Sum(accQuantity).GreaterThan(byProduct.Must(ordered[j]).Sum(accQuantity))
	})

	groups := make([]dataset.Group, 0, len(ordered))
	quantityEntries := make([]dataset.Entry, 0, len(ordered))
	revenueEntries := make([]dataset.Entry, 0, len(ordered))
	for _, pid := range ordered {
		g := byProduct.Must(pid)
		meta := info[pid]
		key := idKey(pid)

		dg := dataset.FromGroup(g, key, meta.name).WithAttributes(map[string]*string{
			"name":  strPtr(meta.name),
			"type":  meta.productType,
			"grade": meta.grade,
		})
		dg.SubGroups = monthGroups(byProductMonth, months, func(m agg.Month) orderProductMonthKey {
			return orderProductMonthKey{ProductID: pid, Month: m}
		})
		groups = append(groups, dg)

		quantityEntries = append(quantityEntries, dataset.Entry{Key: key, Label: meta.name, Value: positive(agg.Some(g.Sum(accQuantity)))})
		revenueEntries = append(revenueEntries, dataset.Entry{Key: key, Label: meta.name, Value: positive(agg.Some(g.Sum(accRevenue)))})
	}

	totals := byProduct.Totals()
	summary := dataset.NewSummary(totals, byProduct.Len(), byProduct.ActiveCount())
	summary.Metrics[metricProductCount] = agg.SomeInt(int64(byProduct.ActiveCount()))
	summary.Metrics[metricAvgOrderValue] = agg.Average(totals[accRevenue].Or(zero), totals[accOrders].Or(zero))
	summary.Metrics[metricAverageUnitPrice] = agg.Average(totals[accRevenue].Or(zero), totals[accQuantity].Or(zero))
	summary.Highest("topProduct", quantityEntries)
	summary.Highest("topRevenueProduct", revenueEntries)

	return dataset.Dataset{
		Months:      months,
		Groups:      groups,
		Timeline:    monthGroups(byMonth, months, func(m agg.Month) agg.Month { return m }),
		Ranking:     dataset.NewRanking(accQuantity, quantityEntries, opts.topN()),
		Summary:     summary,
		Diagnostics: dataset.Diagnose(byProductMonth.Discarded(), uncatalogued),
	}
}

func deriveOrderMetrics[K comparable](g *agg.Group[K]) {
	g.Derive(metricAvgOrderValue, func() agg.Metric { return agg.Average(g.Sum(accRevenue), g.Sum(accOrders)) })
	g.Derive(metricAverageUnitPrice, func() agg.Metric { return agg.Average(g.Sum(accRevenue), g.Sum(accQuantity)) })
}

// deriveRevenueGrowth compares g's revenue with the previous month's and
// returns g's revenue for the next call.
func deriveRevenueGrowth[K comparable](g *agg.Group[K], prev agg.Metric) agg.Metric {
	revenue := agg.Some(g.Sum(accRevenue))
	g.Derive(metricRevenueGrowth, func() agg.Metric { return agg.PercentDelta(revenue, prev) })
	return revenue
}
