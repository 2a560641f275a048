package report

import (
	"fmt"
	"sort"

	agg "github.com/farmlink-lab/farm-insights/internal/core/aggregation"
	"github.com/farmlink-lab/farm-insights/internal/core/dataset"
	"github.com/farmlink-lab/farm-insights/internal/core/storage"
	"github.com/shopspring/decimal"
)

const (
	accPrograms       = "programs"
	accActive         = "active"
	accCancelled      = "cancelled"
	accPending        = "pending"
	accAvailableUnits = "availableUnits"

	sampPriceSum       = "priceSum"
	sampPriceCount     = "priceCount"
	sampQuantitySum    = "quantitySum"
	sampQuantityCount  = "quantityCount"
	sampIntervalSum    = "intervalSum"
	sampIntervalCount  = "intervalCount"
	sampProjectedSum   = "projectedSum"
	sampProjectedCount = "projectedCount"
	sampUnitPriceSum   = "unitPriceSum"
	sampUnitPriceCount = "unitPriceCount"

	metricUniqueClients     = "uniqueClients"
	metricAvgSubPrice       = "averageSubscriptionPrice"
	metricAvgQuantity       = "averageQuantity"
	metricAvgInterval       = "averageIntervalDays"
	metricProjectedRevenue  = "projectedMonthlyRevenue"
	metricOnDemandUnitPrice = "onDemandUnitPrice"
	metricPriceDelta        = "priceDelta"
	metricPriceDeltaPercent = "priceDeltaPercent"
	metricChurnRate         = "churnRate"
	metricOfferingCoverage  = "offeringCoverage"
)

var one = decimal.NewFromInt(1)

type offeringInfo struct {
	name           string
	productType    *string
	grade          *string
	populationUnit *string
	population     agg.Metric
}

func flag(b bool) decimal.Decimal {
	if b {
		return one
	}
	return zero
}

func buildSubscriptions(in Input, opts Options) dataset.Dataset {
	months := in.Window.Months()
	offerings := normalizeOfferings(in.Rows[storage.FarmOfferings])
	prices := normalizeInventoryPrices(in.Rows[storage.FarmInventoryPrices])
	subs := normalizeSubscriptions(in.Rows[storage.FarmSubscriptions])

	wanted := func(productID int64) bool { return in.ProductID == 0 || productID == in.ProductID }

	var products []int64
	info := make(map[int64]offeringInfo)
	var uncatalogued []string
	for _, o := range offerings {
		if _, ok := info[o.ProductID]; ok || !wanted(o.ProductID) {
			continue
		}
		products = append(products, o.ProductID)
		info[o.ProductID] = offeringInfo{
			name:           o.ProductName,
			productType:    o.ProductType,
			grade:          o.Grade,
			populationUnit: o.PopulationUnit,
			population:     o.Population,
		}
	}
	for _, s := range subs {
		if _, ok := info[s.ProductID]; ok || !wanted(s.ProductID) {
			continue
		}
		products = append(products, s.ProductID)
		info[s.ProductID] = offeringInfo{name: s.ProductName, productType: s.ProductType, grade: s.Grade}
		uncatalogued = append(uncatalogued, fmt.Sprintf("product:%d", s.ProductID))
	}

	byOffering := agg.NewTable[int64](
		agg.Count(accPrograms),
		agg.Sum(accActive),
		agg.Sum(accCancelled),
		agg.Sum(accPending),
	)
	samples := agg.NewTable[int64](
		agg.Sum(sampPriceSum), agg.Sum(sampPriceCount),
		agg.Sum(sampQuantitySum), agg.Sum(sampQuantityCount),
		agg.Sum(sampIntervalSum), agg.Sum(sampIntervalCount),
		agg.Sum(sampProjectedSum), agg.Sum(sampProjectedCount),
	)
	stock := agg.NewTable[int64](
		agg.Sum(sampUnitPriceSum), agg.Sum(sampUnitPriceCount), agg.Sum(accAvailableUnits),
	)
	started := agg.NewTable[agg.Month](agg.Count(accPrograms), agg.Sum(accActive))
	byOffering.Seed(products...)
	samples.Seed(products...)
	stock.Seed(products...)
	started.Seed(months...)

	productOf := func(s SubscriptionRow) (int64, bool) { return s.ProductID, wanted(s.ProductID) }
	agg.FoldAll(subs,
		agg.By(byOffering, productOf, func(s SubscriptionRow) agg.Values {
			return agg.Values{
				accActive:    flag(s.Status == StatusActive),
				accCancelled: flag(s.Status == StatusCancelled),
				accPending:   flag(s.Status != StatusActive && s.Status != StatusCancelled),
			}
		}),
		agg.By(samples, productOf, subscriptionSamples),
		agg.By(started, func(s SubscriptionRow) (agg.Month, bool) {
			return agg.MonthOf(s.StartDate), s.HasStartDate && wanted(s.ProductID)
		}, func(s SubscriptionRow) agg.Values {
			return agg.Values{accActive: flag(s.Status == StatusActive)}
		}),
	)
	agg.FoldAll(prices, agg.By(stock,
		func(p InventoryPriceRow) (int64, bool) { return p.ProductID, true },
		func(p InventoryPriceRow) agg.Values {
			v := agg.Values{accAvailableUnits: p.Quantity}
			if price, ok := p.Price.Value(); ok && p.Weight.IsPositive() {
				v[sampUnitPriceSum] = price.Div(p.Weight)
				v[sampUnitPriceCount] = one
			}
			return v
		},
	))
	byOffering.Seal()
	samples.Seal()
	stock.Seal()
	started.Seal()

	programs := make(map[int64][]dataset.Group, len(products))
	clients := make(map[int64]map[int64]bool, len(products))
	allClients := make(map[int64]bool)
	for _, s := range subs {
		if _, ok := info[s.ProductID]; !ok || !wanted(s.ProductID) {
			continue
		}
		programs[s.ProductID] = append(programs[s.ProductID], programGroup(s))
		if clients[s.ProductID] == nil {
			clients[s.ProductID] = make(map[int64]bool)
		}
		clients[s.ProductID][s.ClientID] = true
		allClients[s.ClientID] = true
	}

	for _, pid := range products {
		deriveOffering(byOffering.Must(pid), samples.Must(pid), stock.Must(pid), len(clients[pid]))
	}

	// Most active programs first, then product name.
	ordered := append([]int64(nil), products...)
	sort.SliceStable(ordered, func(i, j int) bool {
		ai, aj := byOffering.Must(ordered[i]).Sum(accActive), byOffering.Must(ordered[j]).Sum(accActive)
		if !ai.Equal(aj) {
			return ai.GreaterThan(aj)
		}
		return info[ordered[i]].name < info[ordered[j]].name
	})

	groups := make([]dataset.Group, 0, len(ordered))
	revenueEntries := make([]dataset.Entry, 0, len(ordered))
	churnEntries := make([]dataset.Entry, 0, len(ordered))
	projectedTotal := zero
	for _, pid := range ordered {
		g := byOffering.Must(pid)
		meta := info[pid]
		key := idKey(pid)

		dg := dataset.FromGroup(g, key, meta.name)
		dg.Accumulators[accAvailableUnits] = agg.Some(stock.Must(pid).Sum(accAvailableUnits))
		dg.Attributes = map[string]*string{
			"name":           strPtr(meta.name),
			"type":           meta.productType,
			"grade":          meta.grade,
			"populationUnit": meta.populationUnit,
		}
		dg.Derived[accPopulation] = meta.population
		dg.SubGroups = programs[pid]
		groups = append(groups, dg)

		projected := g.Derived(metricProjectedRevenue)
		projectedTotal = projectedTotal.Add(projected.Or(zero))
		revenueEntries = append(revenueEntries, dataset.Entry{Key: key, Label: meta.name, Value: projected})
		churn := agg.None()
		if g.Active() {
			churn = g.Derived(metricChurnRate)
		}
		churnEntries = append(churnEntries, dataset.Entry{Key: key, Label: meta.name, Value: churn})
	}

	summary := dataset.NewSummary(byOffering.Totals(), byOffering.Len(), byOffering.ActiveCount())
	summary.Metrics[metricUniqueClients] = agg.SomeInt(int64(len(allClients)))
	summary.Metrics[metricOfferingCoverage] = agg.SomeInt(int64(byOffering.ActiveCount()))
	summary.Metrics[metricProjectedRevenue] = agg.Some(projectedTotal)
	summary.Highest("topRevenueOffering", revenueEntries)
	summary.Highest("highestChurnOffering", churnEntries)

	return dataset.Dataset{
		Months:      months,
		Groups:      groups,
		Timeline:    monthGroups(started, months, func(m agg.Month) agg.Month { return m }),
		Ranking:     dataset.NewRanking(metricProjectedRevenue, revenueEntries, opts.topN()),
		Summary:     summary,
		Diagnostics: dataset.Diagnose(byOffering.Discarded()+stock.Discarded(), uncatalogued),
	}
}

// subscriptionSamples feeds the per-offering averages. Cadence and revenue
// projection only count active programs; quantity defaults to one unit.
func subscriptionSamples(s SubscriptionRow) agg.Values {
	v := agg.Values{}
	price, hasPrice := s.Price.Value()
	if hasPrice {
		v[sampPriceSum] = price
		v[sampPriceCount] = one
	}
	if q, ok := s.Quantity.Value(); ok {
		v[sampQuantitySum] = q
		v[sampQuantityCount] = one
	}
	interval, hasInterval := s.IntervalDays.Value()
	if s.Status != StatusActive || !hasInterval || interval.IsZero() {
		return v
	}
	v[sampIntervalSum] = interval
	v[sampIntervalCount] = one
	if hasPrice {
		if projected, ok := agg.MonthlyProjection(interval, price, s.Quantity.Or(one)).Value(); ok {
			v[sampProjectedSum] = projected
			v[sampProjectedCount] = one
		}
	}
	return v
}

func deriveOffering(g, samples, stock *agg.Group[int64], uniqueClients int) {
	avgPrice := g.Derive(metricAvgSubPrice, func() agg.Metric {
		return agg.Average(samples.Sum(sampPriceSum), samples.Sum(sampPriceCount))
	})
	g.Derive(metricAvgQuantity, func() agg.Metric {
		return agg.Average(samples.Sum(sampQuantitySum), samples.Sum(sampQuantityCount))
	})
	g.Derive(metricAvgInterval, func() agg.Metric {
		return agg.Average(samples.Sum(sampIntervalSum), samples.Sum(sampIntervalCount))
	})
	g.Derive(metricProjectedRevenue, func() agg.Metric {
		if samples.Sum(sampProjectedCount).IsZero() {
			return agg.None()
		}
		return agg.Some(samples.Sum(sampProjectedSum))
	})
	onDemand := g.Derive(metricOnDemandUnitPrice, func() agg.Metric {
		return agg.Average(stock.Sum(sampUnitPriceSum), stock.Sum(sampUnitPriceCount)).Round(2)
	})
	g.Derive(metricPriceDelta, func() agg.Metric { return agg.Difference(avgPrice, onDemand).Round(2) })
	g.Derive(metricPriceDeltaPercent, func() agg.Metric { return agg.PercentDelta(avgPrice, onDemand) })
	g.Derive(metricChurnRate, func() agg.Metric {
		return agg.ChurnRate(g.Sum(accCancelled), g.Sum(accActive), g.Sum(accPending))
	})
	g.Derive(metricUniqueClients, func() agg.Metric { return agg.SomeInt(int64(uniqueClients)) })
}

func programGroup(s SubscriptionRow) dataset.Group {
	var startDate *string
	if s.HasStartDate {
		startDate = strPtr(s.StartDate.Format("2006-01-02"))
	}
	return dataset.Group{
		Key:          idKey(s.ProgramID),
		Label:        s.ClientName,
		Accumulators: map[string]agg.Metric{},
		Derived: map[string]agg.Metric{
			"quantity":     s.Quantity,
			"intervalDays": s.IntervalDays,
			"price":        s.Price,
		},
		Attributes: map[string]*string{
			"clientName":  strPtr(s.ClientName),
			"company":     s.Company,
			"status":      strPtr(s.Status),
			"statusLabel": strPtr(StatusLabel(s.Status)),
			"startDate":   startDate,
		},
	}
}
