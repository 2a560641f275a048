package report

import (
	agg "github.com/farmlink-lab/farm-insights/internal/core/aggregation"
	"github.com/farmlink-lab/farm-insights/internal/core/dataset"
	"github.com/farmlink-lab/farm-insights/internal/core/storage"
)

const (
	accPointsRedeemed = "pointsRedeemed"
	accPointsEarned   = "pointsEarned"
	accOrders         = "orders"
	accGrossSales     = "grossSales"

	metricNetPoints           = "netPoints"
	metricAvgEarnedPerOrder   = "avgEarnedPerOrder"
	metricAvgRedeemedPerOrder = "avgRedeemedPerOrder"
)

func buildLoyalty(in Input, opts Options) dataset.Dataset {
	months := in.Window.Months()
	orders := normalizeLoyaltyOrders(in.Rows[storage.LoyaltyOrders])

	byMonth := agg.NewTable[agg.Month](
		agg.Sum(accPointsRedeemed),
		agg.Sum(accPointsEarned),
		agg.Count(accOrders),
		agg.Sum(accGrossSales),
	)
	byMonth.Seed(months...)
	agg.FoldAll(orders, agg.By(byMonth,
		func(r LoyaltyOrderRow) (agg.Month, bool) { return r.Month, r.HasMonth },
		func(r LoyaltyOrderRow) agg.Values {
			return agg.Values{
				accPointsRedeemed: r.PointsUsed,
				accPointsEarned:   r.PointsEarned,
				accGrossSales:     r.OrderTotal,
			}
		},
	))
	byMonth.Seal()

	netEntries := make([]dataset.Entry, 0, len(months))
	earnedEntries := make([]dataset.Entry, 0, len(months))
	redeemedEntries := make([]dataset.Entry, 0, len(months))
	for _, g := range byMonth.Groups() {
		deriveLoyalty(g)
		key, label := g.Key.String(), g.Key.Label()
		if !g.Active() {
			netEntries = append(netEntries, dataset.Entry{Key: key, Label: label, Value: agg.None()})
			earnedEntries = append(earnedEntries, dataset.Entry{Key: key, Label: label, Value: agg.None()})
			redeemedEntries = append(redeemedEntries, dataset.Entry{Key: key, Label: label, Value: agg.None()})
			continue
		}
		netEntries = append(netEntries, dataset.Entry{Key: key, Label: label, Value: g.Derived(metricNetPoints)})
		earnedEntries = append(earnedEntries, dataset.Entry{Key: key, Label: label, Value: agg.Some(g.Sum(accPointsEarned))})
		redeemedEntries = append(redeemedEntries, dataset.Entry{Key: key, Label: label, Value: agg.Some(g.Sum(accPointsRedeemed))})
	}

	totals := byMonth.Totals()
	summary := dataset.NewSummary(totals, byMonth.Len(), byMonth.ActiveCount())
	summary.Metrics[metricNetPoints] = agg.Difference(totals[accPointsEarned], totals[accPointsRedeemed])
	summary.Metrics[metricAvgEarnedPerOrder] = agg.Average(totals[accPointsEarned].Or(zero), totals[accOrders].Or(zero))
	summary.Metrics[metricAvgRedeemedPerOrder] = agg.Average(totals[accPointsRedeemed].Or(zero), totals[accOrders].Or(zero))
	summary.Highest("peakEarningMonth", earnedEntries)
	summary.Highest("peakRedemptionMonth", redeemedEntries)

	return dataset.Dataset{
		Months:      months,
		Groups:      monthGroups(byMonth, months, func(m agg.Month) agg.Month { return m }),
		Ranking:     dataset.NewRanking(metricNetPoints, netEntries, opts.topN()),
		Summary:     summary,
		Diagnostics: dataset.Diagnose(byMonth.Discarded(), nil),
	}
}

func deriveLoyalty(g *agg.Group[agg.Month]) {
	earned, redeemed, orders := g.Sum(accPointsEarned), g.Sum(accPointsRedeemed), g.Sum(accOrders)
	g.Derive(metricNetPoints, func() agg.Metric { return agg.Some(earned.Sub(redeemed)) })
	g.Derive(metricAvgEarnedPerOrder, func() agg.Metric { return agg.Average(earned, orders) })
	g.Derive(metricAvgRedeemedPerOrder, func() agg.Metric { return agg.Average(redeemed, orders) })
}
