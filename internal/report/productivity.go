package report

import (
	"fmt"

	agg "github.com/farmlink-lab/farm-insights/internal/core/aggregation"
	"github.com/farmlink-lab/farm-insights/internal/core/dataset"
	"github.com/farmlink-lab/farm-insights/internal/core/storage"
)

const (
	accPopulation   = "population"
	accQuantity     = "quantity"
	accRevenue      = "revenue"
	accSalesQty     = "salesQty"
	accSalesRevenue = "salesRevenue"

	metricProductivity    = "productivity"
	metricAvgProductivity = "avgProductivity"

	noteAverageOfAverages = "product avgProductivity is the mean of monthly averages, not weighted by farm count"
)

// productKey merges catalogue products that share a name and type.
type productKey struct {
	Name string
	Type string
}

func (k productKey) String() string { return k.Name + "|" + k.Type }

type productFarmKey struct {
	Product productKey
	FarmID  int64
}

type productFarmMonthKey struct {
	Product productKey
	FarmID  int64
	Month   agg.Month
}

type productMonthKey struct {
	Product productKey
	Month   agg.Month
}

// productCatalog is the declared dimension set: products, the farms growing
// them, and any product referenced by activity rows but missing from the catalogue.
type productCatalog struct {
	products     []productKey
	byID         map[int64]productKey
	grades       map[productKey]*string
	farms        map[productKey][]int64
	farmNames    map[int64]string
	uncatalogued []string
}

func newProductCatalog() *productCatalog {
	return &productCatalog{
		byID:      make(map[int64]productKey),
		grades:    make(map[productKey]*string),
		farms:     make(map[productKey][]int64),
		farmNames: make(map[int64]string),
	}
}

func (c *productCatalog) addProduct(k productKey) {
	if _, ok := c.farms[k]; ok {
		return
	}
	c.products = append(c.products, k)
	c.farms[k] = nil
}

func (c *productCatalog) addFarm(k productKey, farmID int64) {
	for _, f := range c.farms[k] {
		if f == farmID {
			return
		}
	}
	c.farms[k] = append(c.farms[k], farmID)
	if _, ok := c.farmNames[farmID]; !ok {
		c.farmNames[farmID] = farmFallback(farmID)
	}
}

// resolve returns the key of a catalogue product, declaring a minimal entry for unknown ids.
func (c *productCatalog) resolve(productID int64) productKey {
	if k, ok := c.byID[productID]; ok {
		return k
	}
	k := productKey{Name: productFallback(productID), Type: uncategorized}
	c.byID[productID] = k
	c.addProduct(k)
	c.uncatalogued = append(c.uncatalogued, fmt.Sprintf("product:%d", productID))
	return k
}

func buildProductivity(in Input, opts Options) dataset.Dataset {
	months := in.Window.Months()
	productFarms := normalizeProductFarms(in.Rows[storage.ProductFarms])
	inventory := normalizeInventoryMonths(in.Rows[storage.InventoryByMonth])
	sales := normalizeProductSalesMonths(in.Rows[storage.SalesByProductMonth])

	cat := newProductCatalog()
	for _, row := range productFarms {
		k := productKey{Name: row.ProductName, Type: row.ProductType}
		cat.byID[row.ProductID] = k
		cat.addProduct(k)
		if cat.grades[k] == nil {
			cat.grades[k] = row.Grade
		}
		cat.farmNames[row.FarmID] = row.FarmName
		cat.addFarm(k, row.FarmID)
	}
	for _, row := range inventory {
		if row.HasMonth && in.Window.Contains(row.Month) {
			cat.addFarm(cat.resolve(row.ProductID), row.FarmID)
		}
	}
	for _, row := range sales {
		if row.HasMonth && in.Window.Contains(row.Month) {
			cat.resolve(row.ProductID)
		}
	}

	// Phase one: static population per product and farm.
	population := agg.NewTable[productFarmKey](agg.Sum(accPopulation))
	for _, p := range cat.products {
		for _, f := range cat.farms[p] {
			population.Seed(productFarmKey{Product: p, FarmID: f})
		}
	}
	for _, row := range productFarms {
		if v, ok := row.Population.Value(); ok {
			population.Fold(productFarmKey{Product: cat.byID[row.ProductID], FarmID: row.FarmID}, agg.Values{accPopulation: v})
		}
	}
	population.Seal()

	// Phase two: monthly inventory against the seeded population.
	stock := agg.NewTable[productFarmMonthKey](agg.Sum(accQuantity))
	for _, p := range cat.products {
		for _, f := range cat.farms[p] {
			for _, m := range months {
				stock.Seed(productFarmMonthKey{Product: p, FarmID: f, Month: m})
			}
		}
	}
	agg.FoldAll(inventory, agg.By(stock,
		func(r InventoryMonthRow) (productFarmMonthKey, bool) {
			return productFarmMonthKey{Product: cat.byID[r.ProductID], FarmID: r.FarmID, Month: r.Month}, r.HasMonth
		},
		func(r InventoryMonthRow) agg.Values { return agg.Values{accQuantity: r.Quantity} },
	))
	stock.Seal()

	salesFields := []agg.Field{agg.Sum(accSalesQty), agg.Sum(accSalesRevenue)}
	productMonthSales := agg.NewTable[productMonthKey](salesFields...)
	productSales := agg.NewTable[productKey](salesFields...)
	monthSales := agg.NewTable[agg.Month](salesFields...)
	for _, p := range cat.products {
		productSales.Seed(p)
		for _, m := range months {
			productMonthSales.Seed(productMonthKey{Product: p, Month: m})
		}
	}
	monthSales.Seed(months...)
	salesValues := func(r ProductSalesMonthRow) agg.Values {
		return agg.Values{accSalesQty: r.Quantity, accSalesRevenue: r.Revenue}
	}
	agg.FoldAll(sales,
		agg.By(productMonthSales, func(r ProductSalesMonthRow) (productMonthKey, bool) {
			return productMonthKey{Product: cat.byID[r.ProductID], Month: r.Month}, r.HasMonth
		}, salesValues),
		agg.By(productSales, func(r ProductSalesMonthRow) (productKey, bool) {
			k, ok := cat.byID[r.ProductID]
			return k, ok && r.HasMonth && in.Window.Contains(r.Month)
		}, salesValues),
		agg.By(monthSales, func(r ProductSalesMonthRow) (agg.Month, bool) {
			return r.Month, r.HasMonth
		}, salesValues),
	)
	productMonthSales.Seal()
	productSales.Seal()
	monthSales.Seal()

	groups := make([]dataset.Group, 0, len(cat.products))
	productEntries := make([]dataset.Entry, 0, len(cat.products))
	salesEntries := make([]dataset.Entry, 0, len(cat.products))
	monthAverages := make(map[agg.Month][]agg.Metric, len(months))
	active := 0

	for _, p := range cat.products {
		farms := cat.farms[p]
		farmSeries := make(map[int64][]agg.Metric, len(farms))
		monthly := make([]dataset.Group, 0, len(months))
		monthlyAverages := make([]agg.Metric, 0, len(months))
		productActive := false

		for _, m := range months {
			farmGroups := make([]dataset.Group, 0, len(farms))
			farmEntries := make([]dataset.Entry, 0, len(farms))
			values := make([]agg.Metric, 0, len(farms))
			for _, f := range farms {
				sg := stock.Must(productFarmMonthKey{Product: p, FarmID: f, Month: m})
				pop := population.Must(productFarmKey{Product: p, FarmID: f})
				v := sg.Derive(metricProductivity, func() agg.Metric {
					return agg.Ratio(agg.Some(sg.Sum(accQuantity)), populationOf(pop))
				})
				productActive = productActive || sg.Active()
				farmSeries[f] = append(farmSeries[f], v)
				values = append(values, v)

				name := cat.farmNames[f]
				farmEntries = append(farmEntries, dataset.Entry{Key: idKey(f), Label: name, Value: v})
				fg := dataset.FromGroup(sg, idKey(f), name)
				fg.Accumulators[accPopulation] = agg.Some(pop.Sum(accPopulation))
				farmGroups = append(farmGroups, fg)
			}

			pm := productMonthSales.Must(productMonthKey{Product: p, Month: m})
			avg := pm.Derive(metricAvgProductivity, func() agg.Metric { return agg.Mean(values...) })
			productActive = productActive || pm.Active()
			monthlyAverages = append(monthlyAverages, avg)
			monthAverages[m] = append(monthAverages[m], avg)

			best, low := dataset.Labels(farmEntries)
			mg := dataset.FromGroup(pm, m.String(), m.Label()).WithAttributes(map[string]*string{
				"bestFarm": best,
				"lowFarm":  low,
			})
			mg.SubGroups = farmGroups
			monthly = append(monthly, mg)
		}

		farmAverages := make([]dataset.Entry, 0, len(farms))
		for _, f := range farms {
			farmAverages = append(farmAverages, dataset.Entry{Key: idKey(f), Label: cat.farmNames[f], Value: agg.Mean(farmSeries[f]...)})
		}
		bestFarm, worstFarm := dataset.Labels(farmAverages)

		pg := productSales.Must(p)
		// Mean of monthly means, not a row-weighted mean.
		avg := pg.Derive(metricAvgProductivity, func() agg.Metric { return agg.Mean(monthlyAverages...) })
		if productActive {
			active++
		}

		name, typ := p.Name, p.Type
		g := dataset.FromGroup(pg, p.String(), p.Name).WithAttributes(map[string]*string{
			"name":      &name,
			"type":      &typ,
			"grade":     cat.grades[p],
			"bestFarm":  bestFarm,
			"worstFarm": worstFarm,
		})
		g.SubGroups = monthly
		groups = append(groups, g)

		productEntries = append(productEntries, dataset.Entry{Key: p.String(), Label: p.Name, Value: avg})
		salesEntries = append(salesEntries, dataset.Entry{Key: p.String(), Label: p.Name, Value: positive(agg.Some(pg.Sum(accSalesQty)))})
	}

	for _, m := range months {
		mg := monthSales.Must(m)
		mg.Derive(metricAvgProductivity, func() agg.Metric { return agg.Mean(monthAverages[m]...) })
	}

	productAverages := make([]agg.Metric, 0, len(productEntries))
	for _, e := range productEntries {
		productAverages = append(productAverages, e.Value)
	}

	summary := dataset.NewSummary(productSales.Totals(), productSales.Len(), active)
	summary.Metrics[metricAvgProductivity] = agg.Mean(productAverages...)
	summary.Highest("topProduct", productEntries)
	summary.Lowest("lowProduct", productEntries)
	summary.Highest("topSalesProduct", salesEntries)

	return dataset.Dataset{
		Months:      months,
		Groups:      groups,
		Timeline:    monthGroups(monthSales, months, func(m agg.Month) agg.Month { return m }),
		Ranking:     dataset.NewRanking(metricAvgProductivity, productEntries, opts.topN()),
		Summary:     summary,
		Diagnostics: dataset.Diagnose(stock.Discarded()+productMonthSales.Discarded(), cat.uncatalogued).
			WithNote(noteAverageOfAverages),
	}
}

// populationOf is absent when no population was recorded for the farm.
func populationOf(g *agg.Group[productFarmKey]) agg.Metric {
	if !g.Active() {
		return agg.None()
	}
	return agg.Some(g.Sum(accPopulation))
}
