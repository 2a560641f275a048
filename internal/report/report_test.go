package report

import (
	"encoding/json"
	"testing"

	agg "github.com/farmlink-lab/farm-insights/internal/core/aggregation"
	"github.com/farmlink-lab/farm-insights/internal/core/dataset"
	"github.com/farmlink-lab/farm-insights/internal/core/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func window(t *testing.T, from, to string) agg.Window {
	t.Helper()
	w, err := agg.ParseWindow(from, to)
	require.NoError(t, err)
	return w
}

func requireMetric(t *testing.T, want string, got agg.Metric) {
	t.Helper()
	if want == "" {
		require.False(t, got.Valid(), "expected no value, got %s", got)
		return
	}
	require.True(t, got.Valid(), "expected %s, got no value", want)
	v, _ := got.Value()
	require.True(t, v.Equal(decimal.RequireFromString(want)), "expected %s, got %s", want, v)
}

func groupByKey(t *testing.T, groups []dataset.Group, key string) dataset.Group {
	t.Helper()
	for _, g := range groups {
		if g.Key == key {
			return g
		}
	}
	t.Fatalf("group %q not found", key)
	return dataset.Group{}
}

func keys(groups []dataset.Group) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.Key)
	}
	return out
}

func build(t *testing.T, id string, in Input) dataset.Dataset {
	t.Helper()
	b, ok := Lookup(id)
	require.True(t, ok)
	return b.Build(in, Options{})
}

func TestIDs(t *testing.T) {
	require.Equal(t, []string{FarmProductivity, LoyaltyEngagement, OrderSales, ProductSales, SubscriptionClients}, IDs())
	_, ok := Lookup("weather")
	require.False(t, ok)

	b, _ := Lookup(OrderSales)
	require.True(t, b.FarmScoped)
	b, _ = Lookup(ProductSales)
	require.False(t, b.FarmScoped)
}

func TestEarnedPoints(t *testing.T) {
	tests := []struct {
		name  string
		total string
		used  string
		want  string
	}{
		{name: "one point per hundred", total: "510", used: "10", want: "5"},
		{name: "floors", total: "820", used: "20", want: "8"},
		{name: "below a hundred", total: "99.99", used: "0", want: "0"},
		{name: "never negative", total: "50", used: "400", want: "0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := EarnedPoints(decimal.RequireFromString(tc.total), decimal.RequireFromString(tc.used))
			require.True(t, got.Equal(decimal.RequireFromString(tc.want)), "got %s", got)
		})
	}
}

func TestLoyaltyEngagement(t *testing.T) {
	ds := build(t, LoyaltyEngagement, Input{
		Window: window(t, "2024-01-01", "2024-02-29"),
		Rows: map[storage.RowSet][]agg.RawRow{
			storage.LoyaltyOrders: {
				{"order_id": int64(1), "order_date": "2024-01-10", "loyalty_points_used": int64(10), "order_total": []byte("510.00")},
				{"order_id": int64(2), "order_date": "2024-01-20", "loyalty_points_used": int64(20), "order_total": 820.0},
				{"order_id": int64(3), "order_date": nil, "loyalty_points_used": int64(5), "order_total": 100.0},
			},
		},
	})

	require.Equal(t, LoyaltyEngagement, ds.Report)
	require.Nil(t, ds.Subject)
	require.Equal(t, []string{"2024-01-01", "2024-02-01"}, keys(ds.Groups))

	jan := ds.Groups[0]
	requireMetric(t, "30", jan.Accumulators[accPointsRedeemed])
	requireMetric(t, "13", jan.Accumulators[accPointsEarned])
	requireMetric(t, "2", jan.Accumulators[accOrders])
	requireMetric(t, "-17", jan.Derived[metricNetPoints])
	requireMetric(t, "6.5", jan.Derived[metricAvgEarnedPerOrder])

	feb := ds.Groups[1]
	requireMetric(t, "0", feb.Accumulators[accOrders])
	requireMetric(t, "", feb.Derived[metricAvgEarnedPerOrder])

	requireMetric(t, "-17", ds.Summary.Metrics[metricNetPoints])
	require.Equal(t, "2024-01-01", ds.Summary.Extremes["peakEarningMonth"].Key)
	require.Equal(t, "Jan 2024", ds.Summary.Extremes["peakRedemptionMonth"].Label)
	require.Equal(t, 1, ds.Summary.ActiveGroups)
	require.Equal(t, "2024-01-01", *ds.Ranking.Best)
	require.Equal(t, []string{"2024-01-01"}, ds.Ranking.TopN)
	require.Equal(t, 1, ds.Diagnostics.Discarded)
}

func TestFarmProductivity(t *testing.T) {
	ds := build(t, FarmProductivity, Input{
		Window: window(t, "2024-01-01", "2024-01-31"),
		Rows: map[storage.RowSet][]agg.RawRow{
			storage.ProductFarms: {
				{"product_id": int64(1), "product_name": "Tomato", "product_type": "Vegetable", "grade": "A", "farm_id": int64(10), "farm_name": "North", "population": int64(100)},
				{"product_id": int64(1), "product_name": "Tomato", "product_type": "Vegetable", "grade": "A", "farm_id": int64(11), "farm_name": "South", "population": int64(0)},
			},
			storage.InventoryByMonth: {
				{"product_id": int64(1), "farm_id": int64(10), "month_start": "2024-01-01", "total_quantity": int64(50)},
				{"product_id": int64(1), "farm_id": int64(11), "month_start": "2024-01-01", "total_quantity": int64(30)},
				{"product_id": int64(99), "farm_id": int64(10), "month_start": "2024-01-01", "total_quantity": int64(7)},
			},
			storage.SalesByProductMonth: {
				{"product_id": int64(1), "month_start": "2024-01-01", "total_quantity": int64(5), "total_revenue": "20.00"},
			},
		},
	})

	require.Equal(t, []string{"Tomato|Vegetable", "Product #99|Uncategorized"}, keys(ds.Groups))
	require.Equal(t, []string{"product:99"}, ds.Diagnostics.Uncatalogued)
	require.Equal(t, []string{noteAverageOfAverages}, ds.Diagnostics.Notes)

	tomato := ds.Groups[0]
	requireMetric(t, "0.5", tomato.Derived[metricAvgProductivity])
	requireMetric(t, "5", tomato.Accumulators[accSalesQty])
	require.Equal(t, "North", *tomato.Attributes["bestFarm"])
	require.Equal(t, "North", *tomato.Attributes["worstFarm"])

	jan := tomato.SubGroups[0]
	require.Equal(t, "North", *jan.Attributes["lowFarm"])
	south := groupByKey(t, jan.SubGroups, "11")
	requireMetric(t, "", south.Derived[metricProductivity])
	requireMetric(t, "30", south.Accumulators[accQuantity])

	unknown := ds.Groups[1]
	requireMetric(t, "", unknown.Derived[metricAvgProductivity])
	require.Nil(t, unknown.Attributes["bestFarm"])

	require.Equal(t, "Tomato|Vegetable", ds.Summary.Extremes["topProduct"].Key)
	require.Equal(t, "Tomato|Vegetable", ds.Summary.Extremes["lowProduct"].Key)
	require.Equal(t, []string{"Tomato|Vegetable"}, ds.Ranking.TopN)
	requireMetric(t, "0.5", ds.Summary.Metrics[metricAvgProductivity])
	requireMetric(t, "0.5", ds.Timeline[0].Derived[metricAvgProductivity])
}

func TestProductSales(t *testing.T) {
	ds := build(t, ProductSales, Input{
		Window: window(t, "2024-01-01", "2024-02-29"),
		Rows: map[storage.RowSet][]agg.RawRow{
			storage.SalesByTypeMonth: {
				{"month_start": "2024-01-01", "product_type": "Vegetable", "total_quantity": int64(10), "total_revenue": int64(100)},
				{"month_start": "2024-01-01", "product_type": "Fruit", "total_quantity": int64(5), "total_revenue": int64(100)},
				{"month_start": "2024-02-01", "product_type": "Vegetable", "total_quantity": int64(2), "total_revenue": int64(50)},
				{"month_start": "2024-03-01", "product_type": "Dairy", "total_quantity": int64(9), "total_revenue": int64(90)},
			},
		},
	})

	require.Equal(t, []string{"Vegetable", "Fruit"}, keys(ds.Groups))
	veg := ds.Groups[0]
	requireMetric(t, "150", veg.Accumulators[accRevenue])
	requireMetric(t, "60", veg.Derived[metricRevenueShare])
	requireMetric(t, "12.5", veg.Derived[metricAverageUnitPrice])
	requireMetric(t, "50", groupByKey(t, veg.SubGroups, "2024-01-01").Derived[metricRevenueShare])
	requireMetric(t, "100", groupByKey(t, veg.SubGroups, "2024-02-01").Derived[metricRevenueShare])

	requireMetric(t, "250", ds.Summary.Totals[accRevenue])
	requireMetric(t, "2", ds.Summary.Metrics[metricTypeCount])
	require.Equal(t, "Fruit", ds.Summary.Extremes["slowType"].Key)
	require.Equal(t, "Vegetable", ds.Summary.Extremes["topQuantityType"].Key)
	require.Equal(t, []string{"Vegetable", "Fruit"}, ds.Ranking.TopN)
	require.Equal(t, 1, ds.Diagnostics.Discarded)
}

func farmRow() *FarmRow {
	f := NormalizeFarm(agg.RawRow{"farm_id": int64(7), "farm_name": "Green Acres", "city": "Ames", "state": "IA"})
	return &f
}

func subscriptionRows() map[storage.RowSet][]agg.RawRow {
	sub := func(id, client int64, status any, interval, qty any) agg.RawRow {
		return agg.RawRow{
			"program_id": id, "product_id": int64(5), "client_id": client, "status": status,
			"order_interval_days": interval, "quantity": qty, "price": "14.00", "start_date": "2024-01-05",
			"first_name": "Client", "last_name": nil, "product_name": "Lettuce",
		}
	}
	return map[storage.RowSet][]agg.RawRow{
		storage.FarmOfferings: {
			{"product_id": int64(5), "product_name": "Lettuce", "product_type": "Vegetable", "population": int64(40)},
			{"product_id": int64(6), "product_name": "Basil", "product_type": "Herb"},
		},
		storage.FarmInventoryPrices: {
			{"product_id": int64(5), "price": 12.0, "weight": 2.0, "quantity": int64(40)},
			{"product_id": int64(5), "price": nil, "weight": 1.0, "quantity": int64(3)},
		},
		storage.FarmSubscriptions: {
			sub(1, 1, "ACTIVE", int64(7), int64(2)),
			sub(2, 2, "active", int64(30), nil),
			sub(3, 3, "ACTIVE", int64(30), nil),
			sub(4, 1, "CANCELLED", int64(7), int64(1)),
			sub(5, 4, "quoted", nil, nil),
		},
	}
}

func TestSubscriptionClients(t *testing.T) {
	ds := build(t, SubscriptionClients, Input{
		Window: window(t, "2024-01-01", "2024-03-31"),
		Rows:   subscriptionRows(),
		Farm:   farmRow(),
	})

	require.NotNil(t, ds.Subject)
	require.Equal(t, int64(7), ds.Subject.ID)
	require.Equal(t, "Ames, IA", *ds.Subject.Location)
	require.Equal(t, []string{"5", "6"}, keys(ds.Groups))

	lettuce := ds.Groups[0]
	requireMetric(t, "5", lettuce.Accumulators[accPrograms])
	requireMetric(t, "3", lettuce.Accumulators[accActive])
	requireMetric(t, "43", lettuce.Accumulators[accAvailableUnits])
	requireMetric(t, "20", lettuce.Derived[metricChurnRate])
	requireMetric(t, "4", lettuce.Derived[metricUniqueClients])
	requireMetric(t, "148", lettuce.Derived[metricProjectedRevenue])
	requireMetric(t, "14", lettuce.Derived[metricAvgSubPrice])
	requireMetric(t, "6", lettuce.Derived[metricOnDemandUnitPrice])
	requireMetric(t, "8", lettuce.Derived[metricPriceDelta])
	requireMetric(t, "133.3", lettuce.Derived[metricPriceDeltaPercent])
	require.Len(t, lettuce.SubGroups, 5)

	quoted := groupByKey(t, lettuce.SubGroups, "5")
	require.Equal(t, StatusQuoted, *quoted.Attributes["status"])
	require.Equal(t, "Quoted", *quoted.Attributes["statusLabel"])
	require.Equal(t, "Client", *quoted.Attributes["clientName"])
	require.Nil(t, quoted.Attributes["company"])

	basil := ds.Groups[1]
	requireMetric(t, "0", basil.Accumulators[accPrograms])
	requireMetric(t, "0", basil.Derived[metricChurnRate])
	requireMetric(t, "", basil.Derived[metricProjectedRevenue])
	requireMetric(t, "", basil.Derived[metricOnDemandUnitPrice])

	requireMetric(t, "4", ds.Summary.Metrics[metricUniqueClients])
	requireMetric(t, "1", ds.Summary.Metrics[metricOfferingCoverage])
	requireMetric(t, "148", ds.Summary.Metrics[metricProjectedRevenue])
	require.Equal(t, "5", ds.Summary.Extremes["highestChurnOffering"].Key)
	require.Equal(t, []string{"5"}, ds.Ranking.TopN)
	requireMetric(t, "5", ds.Timeline[0].Accumulators[accPrograms])
	require.Empty(t, ds.Diagnostics.Uncatalogued)
}

func TestSubscriptionClientsProductFilter(t *testing.T) {
	ds := build(t, SubscriptionClients, Input{
		Window:    window(t, "2024-01-01", "2024-03-31"),
		Rows:      subscriptionRows(),
		Farm:      farmRow(),
		ProductID: 6,
	})

	require.Equal(t, []string{"6"}, keys(ds.Groups))
	requireMetric(t, "0", ds.Summary.Metrics[metricUniqueClients])
	require.Empty(t, ds.Groups[0].SubGroups)
	require.Len(t, ds.Timeline, 3)
	for _, month := range ds.Timeline {
		requireMetric(t, "0", month.Accumulators[accPrograms])
	}
}

func TestOrderSales(t *testing.T) {
	ds := build(t, OrderSales, Input{
		Window: window(t, "2024-01-01", "2024-02-29"),
		Farm:   farmRow(),
		Rows: map[storage.RowSet][]agg.RawRow{
			storage.FarmOrderTotals: {
				{"product_id": int64(2), "product_name": "Honey", "total_quantity": int64(50)},
				{"product_id": int64(1), "product_name": "Eggs", "total_quantity": int64(30)},
			},
			storage.FarmOrdersByMonth: {
				{"product_id": int64(1), "product_name": "Eggs", "month_start": "2024-01-01", "total_quantity": int64(10), "total_revenue": int64(50), "orders_count": int64(2)},
				{"product_id": int64(1), "product_name": "Eggs", "month_start": "2024-02-01", "total_quantity": int64(20), "total_revenue": int64(100), "orders_count": int64(4)},
				{"product_id": int64(2), "product_name": "Honey", "month_start": "2024-01-01", "total_quantity": int64(50), "total_revenue": int64(500), "orders_count": int64(5)},
				{"product_id": int64(3), "product_name": "Jam", "month_start": "2024-02-01", "total_quantity": int64(1), "total_revenue": int64(1), "orders_count": int64(1)},
			},
		},
	})

	require.Equal(t, []string{"2", "1", "3"}, keys(ds.Groups))
	require.Equal(t, []string{"product:3"}, ds.Diagnostics.Uncatalogued)

	eggs := groupByKey(t, ds.Groups, "1")
	requireMetric(t, "30", eggs.Accumulators[accQuantity])
	requireMetric(t, "25", eggs.Derived[metricAvgOrderValue])
	requireMetric(t, "5", eggs.Derived[metricAverageUnitPrice])
	require.Len(t, eggs.SubGroups, 2)
	requireMetric(t, "", groupByKey(t, eggs.SubGroups, "2024-01-01").Derived[metricRevenueGrowth])
	requireMetric(t, "100", groupByKey(t, eggs.SubGroups, "2024-02-01").Derived[metricRevenueGrowth])

	honey := groupByKey(t, ds.Groups, "2")
	requireMetric(t, "-100", groupByKey(t, honey.SubGroups, "2024-02-01").Derived[metricRevenueGrowth])
	jam := groupByKey(t, ds.Groups, "3")
	requireMetric(t, "", groupByKey(t, jam.SubGroups, "2024-02-01").Derived[metricRevenueGrowth])

	requireMetric(t, "", ds.Timeline[0].Derived[metricRevenueGrowth])
	requireMetric(t, "-81.6", ds.Timeline[1].Derived[metricRevenueGrowth])

	require.Equal(t, "2", ds.Summary.Extremes["topProduct"].Key)
	require.Equal(t, "Honey", ds.Summary.Extremes["topRevenueProduct"].Label)
	requireMetric(t, "3", ds.Summary.Metrics[metricProductCount])
	require.Equal(t, []string{"2", "1", "3"}, ds.Ranking.TopN)
}

// Every group total must equal the sum of its monthly sub-groups, and the
// summary totals must equal the sum of the groups.
func TestOrderSalesAdditivity(t *testing.T) {
	in := Input{
		Window: window(t, "2024-01-01", "2024-03-31"),
		Farm:   farmRow(),
		Rows: map[storage.RowSet][]agg.RawRow{
			storage.FarmOrdersByMonth: {
				{"product_id": int64(1), "month_start": "2024-01-01", "total_quantity": 1.5, "total_revenue": "3.10", "orders_count": int64(1)},
				{"product_id": int64(1), "month_start": "2024-03-01", "total_quantity": 2.25, "total_revenue": "4.05", "orders_count": int64(2)},
				{"product_id": int64(2), "month_start": "2024-02-01", "total_quantity": int64(4), "total_revenue": "9.99", "orders_count": int64(3)},
				{"product_id": int64(2), "month_start": "2024-05-01", "total_quantity": int64(100), "total_revenue": "1", "orders_count": int64(1)},
			},
		},
	}
	ds := build(t, OrderSales, in)

	for _, name := range []string{accQuantity, accRevenue, accOrders} {
		groupSum := decimal.Zero
		for _, g := range ds.Groups {
			subSum := decimal.Zero
			for _, sg := range g.SubGroups {
				subSum = subSum.Add(sg.Accumulators[name].Or(decimal.Zero))
			}
			total := g.Accumulators[name].Or(decimal.Zero)
			require.True(t, subSum.Equal(total), "%s of %s: %s != %s", name, g.Key, subSum, total)
			groupSum = groupSum.Add(total)
		}
		require.True(t, groupSum.Equal(ds.Summary.Totals[name].Or(decimal.Zero)), name)

		timelineSum := decimal.Zero
		for _, m := range ds.Timeline {
			timelineSum = timelineSum.Add(m.Accumulators[name].Or(decimal.Zero))
		}
		require.True(t, timelineSum.Equal(groupSum), name)
	}
	require.Equal(t, 1, ds.Diagnostics.Discarded)
}

func TestBuildersHandleEmptyInput(t *testing.T) {
	w := window(t, "2024-01-01", "2024-03-31")
	for _, id := range IDs() {
		t.Run(id, func(t *testing.T) {
			b, _ := Lookup(id)
			var farm *FarmRow
			if b.FarmScoped {
				farm = farmRow()
			}
			ds := b.Build(Input{Window: w, Farm: farm}, Options{TopN: 3})

			require.Equal(t, id, ds.Report)
			require.Len(t, ds.Months, 3)
			require.NotNil(t, ds.Groups)
			require.Nil(t, ds.Ranking.Best)
			require.Empty(t, ds.Ranking.TopN)
			require.Zero(t, ds.Diagnostics.Discarded)
			require.Empty(t, ds.Diagnostics.Uncatalogued)
			require.Zero(t, ds.Summary.ActiveGroups)

			_, err := json.Marshal(ds)
			require.NoError(t, err)
		})
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	in := Input{
		Window: window(t, "2024-01-01", "2024-03-31"),
		Rows:   subscriptionRows(),
		Farm:   farmRow(),
	}
	for _, id := range []string{SubscriptionClients, OrderSales, LoyaltyEngagement} {
		first, err := json.Marshal(build(t, id, in))
		require.NoError(t, err)
		second, err := json.Marshal(build(t, id, in))
		require.NoError(t, err)
		require.JSONEq(t, string(first), string(second))
	}
}
