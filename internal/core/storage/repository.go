package storage

import (
	"context"
	"errors"
	"time"

	"github.com/farmlink-lab/farm-insights/internal/core/aggregation"
)

// ErrUnknownRowSet is returned when a source has no query for the requested row set.
var ErrUnknownRowSet = errors.New("unknown row set")

// RowSet names one pre-grouped relational result the report engine consumes.
type RowSet string

const (
	ProductFarms        RowSet = "product_farms"
	InventoryByMonth    RowSet = "inventory_by_month"
	SalesByProductMonth RowSet = "sales_by_product_month"
	LoyaltyOrders       RowSet = "loyalty_orders"
	SalesByTypeMonth    RowSet = "sales_by_type_month"
	Farm                RowSet = "farm"
	FarmOfferings       RowSet = "farm_offerings"
	FarmInventoryPrices RowSet = "farm_inventory_prices"
	FarmSubscriptions   RowSet = "farm_subscriptions"
	FarmOrderTotals     RowSet = "farm_order_totals"
	FarmOrdersByMonth   RowSet = "farm_orders_by_month"
)

// Params scopes a row-set query. Zero FarmID or ProductID means "no filter".
type Params struct {
	From      time.Time
	To        time.Time
	FarmID    int64
	ProductID int64
}

// RowSource fetches raw rows for the report engine.
type RowSource interface {
	FetchRows(ctx context.Context, set RowSet, params Params) ([]aggregation.RawRow, error)
}
