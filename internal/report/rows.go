package report

import (
	"fmt"
	"strings"
	"time"

	agg "github.com/farmlink-lab/farm-insights/internal/core/aggregation"
	"github.com/shopspring/decimal"
)

const uncategorized = "Uncategorized"

// ProductFarmRow is the static population of one product at one farm.
type ProductFarmRow struct {
	ProductID   int64
	ProductName string
	ProductType string
	Grade       *string
	FarmID      int64
	FarmName    string
	Population  agg.Metric
}

var productFarmSchema = agg.Schema{
	agg.Number("product_id"), agg.Text("product_name"), agg.Text("product_type"), agg.Text("grade"),
	agg.Number("farm_id"), agg.Text("farm_name"), agg.Number("population"),
}

func normalizeProductFarms(raws []agg.RawRow) []ProductFarmRow {
	out := make([]ProductFarmRow, 0, len(raws))
	for _, raw := range raws {
		r := productFarmSchema.Normalize(raw)
		pid, fid := r.Int("product_id"), r.Int("farm_id")
		out = append(out, ProductFarmRow{
			ProductID:   pid,
			ProductName: r.TextOr("product_name", productFallback(pid)),
			ProductType: r.TextOr("product_type", uncategorized),
			Grade:       r.Text("grade"),
			FarmID:      fid,
			FarmName:    r.TextOr("farm_name", farmFallback(fid)),
			Population:  r.Metric("population"),
		})
	}
	return out
}

// InventoryMonthRow is the inventory quantity of one product at one farm in one month.
type InventoryMonthRow struct {
	ProductID int64
	FarmID    int64
	Month     agg.Month
	HasMonth  bool
	Quantity  decimal.Decimal
}

var inventoryMonthSchema = agg.Schema{
	agg.Number("product_id"), agg.Number("farm_id"), agg.Date("month_start"), agg.Number("total_quantity"),
}

func normalizeInventoryMonths(raws []agg.RawRow) []InventoryMonthRow {
	out := make([]InventoryMonthRow, 0, len(raws))
	for _, raw := range raws {
		r := inventoryMonthSchema.Normalize(raw)
		m, ok := monthField(r, "month_start")
		out = append(out, InventoryMonthRow{
			ProductID: r.Int("product_id"),
			FarmID:    r.Int("farm_id"),
			Month:     m,
			HasMonth:  ok,
			Quantity:  r.Num("total_quantity"),
		})
	}
	return out
}

// ProductSalesMonthRow is one product's sales in one month.
type ProductSalesMonthRow struct {
	ProductID int64
	Month     agg.Month
	HasMonth  bool
	Quantity  decimal.Decimal
	Revenue   decimal.Decimal
}

var productSalesMonthSchema = agg.Schema{
	agg.Number("product_id"), agg.Date("month_start"), agg.Number("total_quantity"), agg.Number("total_revenue"),
}

func normalizeProductSalesMonths(raws []agg.RawRow) []ProductSalesMonthRow {
	out := make([]ProductSalesMonthRow, 0, len(raws))
	for _, raw := range raws {
		r := productSalesMonthSchema.Normalize(raw)
		m, ok := monthField(r, "month_start")
		out = append(out, ProductSalesMonthRow{
			ProductID: r.Int("product_id"),
			Month:     m,
			HasMonth:  ok,
			Quantity:  r.Num("total_quantity"),
			Revenue:   r.Num("total_revenue"),
		})
	}
	return out
}

// LoyaltyOrderRow is one order with its loyalty points movement.
type LoyaltyOrderRow struct {
	OrderID      int64
	Month        agg.Month
	HasMonth     bool
	PointsUsed   decimal.Decimal
	OrderTotal   decimal.Decimal
	PointsEarned decimal.Decimal
}

var loyaltyOrderSchema = agg.Schema{
	agg.Number("order_id"), agg.Date("order_date"), agg.Number("loyalty_points_used"),
	agg.Number("order_total"), agg.Number("points_earned"),
}

func normalizeLoyaltyOrders(raws []agg.RawRow) []LoyaltyOrderRow {
	out := make([]LoyaltyOrderRow, 0, len(raws))
	for _, raw := range raws {
		r := loyaltyOrderSchema.Normalize(raw)
		m, ok := monthField(r, "order_date")
		used, total := r.Num("loyalty_points_used"), r.Num("order_total")
		earned, present := r.NumOK("points_earned")
		if !present {
			earned = EarnedPoints(total, used)
		}
		out = append(out, LoyaltyOrderRow{
			OrderID:      r.Int("order_id"),
			Month:        m,
			HasMonth:     ok,
			PointsUsed:   used,
			OrderTotal:   total,
			PointsEarned: earned,
		})
	}
	return out
}

var pointsDivisor = decimal.NewFromInt(100)

// EarnedPoints is one point per 100 currency units paid after redemption, never negative.
func EarnedPoints(orderTotal, pointsUsed decimal.Decimal) decimal.Decimal {
	earned := orderTotal.Sub(pointsUsed).Div(pointsDivisor).Floor()
	if earned.IsNegative() {
		return decimal.Zero
	}
	return earned
}

// TypeSalesMonthRow is the sales of one product type in one month.
type TypeSalesMonthRow struct {
	Month       agg.Month
	HasMonth    bool
	ProductType string
	Quantity    decimal.Decimal
	Revenue     decimal.Decimal
}

var typeSalesMonthSchema = agg.Schema{
	agg.Date("month_start"), agg.Text("product_type"), agg.Number("total_quantity"), agg.Number("total_revenue"),
}

func normalizeTypeSalesMonths(raws []agg.RawRow) []TypeSalesMonthRow {
	out := make([]TypeSalesMonthRow, 0, len(raws))
	for _, raw := range raws {
		r := typeSalesMonthSchema.Normalize(raw)
		m, ok := monthField(r, "month_start")
		out = append(out, TypeSalesMonthRow{
			Month:       m,
			HasMonth:    ok,
			ProductType: r.TextOr("product_type", uncategorized),
			Quantity:    r.Num("total_quantity"),
			Revenue:     r.Num("total_revenue"),
		})
	}
	return out
}

// FarmRow is the farm a farmer report is about.
type FarmRow struct {
	FarmID   int64
	Name     *string
	Location *string
}

var farmSchema = agg.Schema{
	agg.Number("farm_id"), agg.Text("farm_name"),
	agg.Text("street"), agg.Text("city"), agg.Text("state"), agg.Text("country"),
}

// NormalizeFarm converts the farm row. The location label joins the non-empty address parts.
func NormalizeFarm(raw agg.RawRow) FarmRow {
	r := farmSchema.Normalize(raw)
	var parts []string
	for _, name := range []string{"street", "city", "state", "country"} {
		if v := r.Text(name); v != nil {
			parts = append(parts, *v)
		}
	}
	row := FarmRow{FarmID: r.Int("farm_id"), Name: r.Text("farm_name")}
	if len(parts) > 0 {
		label := strings.Join(parts, ", ")
		row.Location = &label
	}
	return row
}

// OfferingRow is one product a farm offers.
type OfferingRow struct {
	ProductID      int64
	ProductName    string
	ProductType    *string
	Grade          *string
	Population     agg.Metric
	PopulationUnit *string
}

var offeringSchema = agg.Schema{
	agg.Number("product_id"), agg.Text("product_name"), agg.Text("product_type"), agg.Text("grade"),
	agg.Number("population"), agg.Text("population_unit"),
}

func normalizeOfferings(raws []agg.RawRow) []OfferingRow {
	out := make([]OfferingRow, 0, len(raws))
	for _, raw := range raws {
		r := offeringSchema.Normalize(raw)
		pid := r.Int("product_id")
		out = append(out, OfferingRow{
			ProductID:      pid,
			ProductName:    r.TextOr("product_name", productFallback(pid)),
			ProductType:    r.Text("product_type"),
			Grade:          r.Text("grade"),
			Population:     r.Metric("population"),
			PopulationUnit: r.Text("population_unit"),
		})
	}
	return out
}

// InventoryPriceRow is one priced inventory batch.
type InventoryPriceRow struct {
	ProductID int64
	Price     agg.Metric
	Weight    decimal.Decimal
	Quantity  decimal.Decimal
}

var inventoryPriceSchema = agg.Schema{
	agg.Number("product_id"), agg.Number("price"), agg.Number("weight"), agg.Number("quantity"),
}

func normalizeInventoryPrices(raws []agg.RawRow) []InventoryPriceRow {
	out := make([]InventoryPriceRow, 0, len(raws))
	for _, raw := range raws {
		r := inventoryPriceSchema.Normalize(raw)
		out = append(out, InventoryPriceRow{
			ProductID: r.Int("product_id"),
			Price:     r.Metric("price"),
			Weight:    r.Num("weight"),
			Quantity:  r.Num("quantity"),
		})
	}
	return out
}

// Subscription statuses.
const (
	StatusActive        = "ACTIVE"
	StatusCancelled     = "CANCELLED"
	StatusQuoted        = "QUOTED"
	StatusAwaitingQuote = "AWAITING_QUOTE"
)

var statusLabels = map[string]string{
	StatusActive:        "Active",
	StatusCancelled:     "Cancelled",
	StatusQuoted:        "Quoted",
	StatusAwaitingQuote: "Awaiting quote",
}

// StatusLabel returns the display label of a normalized status.
func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

// SubscriptionRow is one recurring program of a client.
type SubscriptionRow struct {
	ProgramID    int64
	ProductID    int64
	ProductName  string
	ProductType  *string
	Grade        *string
	ClientID     int64
	ClientName   string
	Company      *string
	StartDate    time.Time
	HasStartDate bool
	Quantity     agg.Metric
	IntervalDays agg.Metric
	Price        agg.Metric
	Status       string
}

var subscriptionSchema = agg.Schema{
	agg.Number("program_id"), agg.Number("product_id"), agg.Number("client_id"),
	agg.Number("order_interval_days"), agg.Date("start_date"), agg.Number("quantity"),
	agg.Number("price"), agg.Text("status"), agg.Text("first_name"), agg.Text("last_name"),
	agg.Text("company_name"), agg.Text("product_name"), agg.Text("product_type"), agg.Text("grade"),
}

func normalizeSubscriptions(raws []agg.RawRow) []SubscriptionRow {
	out := make([]SubscriptionRow, 0, len(raws))
	for _, raw := range raws {
		r := subscriptionSchema.Normalize(raw)
		pid, cid := r.Int("product_id"), r.Int("client_id")
		start, hasStart := r.Date("start_date")
		out = append(out, SubscriptionRow{
			ProgramID:    r.Int("program_id"),
			ProductID:    pid,
			ProductName:  r.TextOr("product_name", productFallback(pid)),
			ProductType:  r.Text("product_type"),
			Grade:        r.Text("grade"),
			ClientID:     cid,
			ClientName:   clientName(r.Text("first_name"), r.Text("last_name"), cid),
			Company:      r.Text("company_name"),
			StartDate:    start,
			HasStartDate: hasStart,
			Quantity:     r.Metric("quantity"),
			IntervalDays: r.Metric("order_interval_days"),
			Price:        r.Metric("price"),
			Status:       normalizeStatus(r.Text("status")),
		})
	}
	return out
}

func normalizeStatus(s *string) string {
	if s == nil {
		return StatusAwaitingQuote
	}
	return strings.ToUpper(*s)
}

func clientName(first, last *string, clientID int64) string {
	var parts []string
	for _, p := range []*string{first, last} {
		if p != nil {
			parts = append(parts, *p)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Client #%d", clientID)
	}
	return strings.Join(parts, " ")
}

// ProductOrderRow is one product's orders, either for the whole window or one month.
type ProductOrderRow struct {
	ProductID   int64
	ProductName string
	ProductType *string
	Grade       *string
	Month       agg.Month
	HasMonth    bool
	Quantity    decimal.Decimal
	Revenue     decimal.Decimal
	Orders      decimal.Decimal
}

var productOrderSchema = agg.Schema{
	agg.Number("product_id"), agg.Text("product_name"), agg.Text("product_type"), agg.Text("grade"),
	agg.Date("month_start"), agg.Number("total_quantity"), agg.Number("total_revenue"), agg.Number("orders_count"),
}

func normalizeProductOrders(raws []agg.RawRow) []ProductOrderRow {
	out := make([]ProductOrderRow, 0, len(raws))
	for _, raw := range raws {
		r := productOrderSchema.Normalize(raw)
		pid := r.Int("product_id")
		m, ok := monthField(r, "month_start")
		out = append(out, ProductOrderRow{
			ProductID:   pid,
			ProductName: r.TextOr("product_name", productFallback(pid)),
			ProductType: r.Text("product_type"),
			Grade:       r.Text("grade"),
			Month:       m,
			HasMonth:    ok,
			Quantity:    r.Num("total_quantity"),
			Revenue:     r.Num("total_revenue"),
			Orders:      r.Num("orders_count"),
		})
	}
	return out
}

func monthField(r agg.Record, name string) (agg.Month, bool) {
	t, ok := r.Date(name)
	if !ok {
		return agg.Month{}, false
	}
	return agg.MonthOf(t), true
}

func productFallback(id int64) string { return fmt.Sprintf("Product #%d", id) }

func farmFallback(id int64) string { return fmt.Sprintf("Farm #%d", id) }
