package postgres

import "github.com/farmlink-lab/farm-insights/internal/core/storage"

const (
	queryProductFarms = `
		SELECT fp.product_id, rp.product_name, rp.product_type, rp.grade,
		       fp.farm_id, fp.population, f.name AS farm_name
		FROM farm_product AS fp
		JOIN raw_product AS rp ON fp.product_id = rp.product_id
		LEFT JOIN farm AS f ON fp.farm_id = f.farm_id
		ORDER BY fp.product_id, fp.farm_id
	`

	queryInventoryByMonth = `
		SELECT inv.product_id, inv.farm_id,
		       date_trunc('month', inv.exp_date)::date AS month_start,
		       SUM(inv.quantity) AS total_quantity
		FROM inventory AS inv
		WHERE inv.exp_date BETWEEN $1 AND $2
		GROUP BY inv.product_id, inv.farm_id, month_start
		ORDER BY month_start, inv.product_id, inv.farm_id
	`

	querySalesByProductMonth = `
		SELECT rp.product_id,
		       date_trunc('month', o.order_date)::date AS month_start,
		       SUM(o.quantity) AS total_quantity,
		       SUM(o.quantity * inv.price) AS total_revenue
		FROM orders AS o
		JOIN inventory AS inv ON o.batch_id = inv.batch_id
		JOIN raw_product AS rp ON inv.product_id = rp.product_id
		WHERE o.order_date BETWEEN $1 AND $2
		GROUP BY rp.product_id, month_start
		ORDER BY month_start, rp.product_id
	`

	queryLoyaltyOrders = `
		SELECT o.order_id, o.order_date, o.loyalty_points_used,
		       inv.price * o.quantity AS order_total
		FROM orders AS o
		JOIN inventory AS inv ON o.batch_id = inv.batch_id
		WHERE o.order_date BETWEEN $1 AND $2
		ORDER BY o.order_date, o.order_id
	`

	querySalesByTypeMonth = `
		SELECT date_trunc('month', o.order_date)::date AS month_start,
		       COALESCE(rp.product_type, 'Uncategorized') AS product_type,
		       SUM(o.quantity) AS total_quantity,
		       SUM(o.quantity * inv.price) AS total_revenue
		FROM orders AS o
		JOIN inventory AS inv ON o.batch_id = inv.batch_id
		JOIN raw_product AS rp ON inv.product_id = rp.product_id
		WHERE o.order_date BETWEEN $1 AND $2
		GROUP BY month_start, COALESCE(rp.product_type, 'Uncategorized')
		ORDER BY month_start, product_type
	`

	queryFarm = `
		SELECT f.farm_id, f.name AS farm_name, loc.street, loc.city, loc.state, loc.country
		FROM farm AS f
		LEFT JOIN location AS loc ON f.location_id = loc.location_id
		WHERE f.farm_id = $1
	`

	queryFarmOfferings = `
		SELECT fp.product_id, rp.product_name, rp.product_type, rp.grade,
		       fp.population, fp.population_unit
		FROM farm_product AS fp
		JOIN raw_product AS rp ON fp.product_id = rp.product_id
		WHERE fp.farm_id = $1
		  AND ($2::bigint = 0 OR fp.product_id = $2)
		ORDER BY rp.product_name, fp.product_id
	`

	queryFarmInventoryPrices = `
		SELECT inv.product_id, inv.price, inv.weight, inv.quantity
		FROM inventory AS inv
		WHERE inv.farm_id = $1
		  AND inv.price IS NOT NULL
		  AND inv.weight IS NOT NULL AND inv.weight > 0
		  AND ($2::bigint = 0 OR inv.product_id = $2)
		ORDER BY inv.product_id, inv.batch_id
	`

	queryFarmSubscriptions = `
		SELECT s.program_id, s.product_id, s.client_id, s.order_interval_days,
		       s.start_date, s.quantity, s.price, s.status,
		       c.first_name, c.last_name, c.company_name,
		       rp.product_name, rp.product_type, rp.grade
		FROM subscription AS s
		JOIN client AS c ON s.client_id = c.client_id
		JOIN raw_product AS rp ON s.product_id = rp.product_id
		WHERE s.farm_id = $1
		  AND s.start_date BETWEEN $2 AND $3
		  AND ($4::bigint = 0 OR s.product_id = $4)
		ORDER BY rp.product_name, s.start_date, s.program_id
	`

	queryFarmOrderTotals = `
		SELECT rp.product_id, rp.product_name, rp.product_type, rp.grade,
		       SUM(o.quantity) AS total_quantity,
		       SUM(o.quantity * inv.price) AS total_revenue,
		       COUNT(o.order_id) AS orders_count
		FROM orders AS o
		JOIN inventory AS inv ON o.batch_id = inv.batch_id
		JOIN raw_product AS rp ON inv.product_id = rp.product_id
		WHERE inv.farm_id = $1
		  AND o.order_date BETWEEN $2 AND $3
		GROUP BY rp.product_id, rp.product_name, rp.product_type, rp.grade
		ORDER BY total_quantity DESC, rp.product_id
	`

	queryFarmOrdersByMonth = `
		SELECT rp.product_id, rp.product_name, rp.product_type, rp.grade,
		       date_trunc('month', o.order_date)::date AS month_start,
		       SUM(o.quantity) AS total_quantity,
		       SUM(o.quantity * inv.price) AS total_revenue,
		       COUNT(o.order_id) AS orders_count
		FROM orders AS o
		JOIN inventory AS inv ON o.batch_id = inv.batch_id
		JOIN raw_product AS rp ON inv.product_id = rp.product_id
		WHERE inv.farm_id = $1
		  AND o.order_date BETWEEN $2 AND $3
		GROUP BY rp.product_id, rp.product_name, rp.product_type, rp.grade, month_start
		ORDER BY rp.product_name, month_start
	`

	queryTableExists = `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = $1
		)
	`
)

// requiredTables must exist before the adapter prepares its statements.
var requiredTables = []string{
	"farm", "location", "raw_product", "farm_product",
	"inventory", "orders", "client", "subscription",
}

type querySpec struct {
	set  storage.RowSet
	sql  string
	args func(storage.Params) []any
}

func windowArgs(p storage.Params) []any { return []any{p.From, p.To} }

// querySpecs is prepared in order at start-up.
var querySpecs = []querySpec{
	{set: storage.ProductFarms, sql: queryProductFarms, args: func(storage.Params) []any { return nil }},
	{set: storage.InventoryByMonth, sql: queryInventoryByMonth, args: windowArgs},
	{set: storage.SalesByProductMonth, sql: querySalesByProductMonth, args: windowArgs},
	{set: storage.LoyaltyOrders, sql: queryLoyaltyOrders, args: windowArgs},
	{set: storage.SalesByTypeMonth, sql: querySalesByTypeMonth, args: windowArgs},
	{set: storage.Farm, sql: queryFarm, args: func(p storage.Params) []any {
		return []any{p.FarmID}
	}},
	{set: storage.FarmOfferings, sql: queryFarmOfferings, args: func(p storage.Params) []any {
		return []any{p.FarmID, p.ProductID}
	}},
	{set: storage.FarmInventoryPrices, sql: queryFarmInventoryPrices, args: func(p storage.Params) []any {
		return []any{p.FarmID, p.ProductID}
	}},
	{set: storage.FarmSubscriptions, sql: queryFarmSubscriptions, args: func(p storage.Params) []any {
		return []any{p.FarmID, p.From, p.To, p.ProductID}
	}},
	{set: storage.FarmOrderTotals, sql: queryFarmOrderTotals, args: func(p storage.Params) []any {
		return []any{p.FarmID, p.From, p.To}
	}},
	{set: storage.FarmOrdersByMonth, sql: queryFarmOrdersByMonth, args: func(p storage.Params) []any {
		return []any{p.FarmID, p.From, p.To}
	}},
}
