package aggregation

import (
	"github.com/shopspring/decimal"
)

// Aggregator defines how one accumulator folds an incoming row value.
// Accumulators always start at zero, so there is no separate initial step.
type Aggregator interface {
	Apply(current, incoming decimal.Decimal) decimal.Decimal
}

// Supported accumulation operators.
const (
	OpCount = "count"
	OpSum   = "sum"
)

// Operators is the registry of accumulation operators by name.
var Operators = map[string]Aggregator{
	OpCount: countAgg{},
	OpSum:   sumAgg{},
}

// ValidOperator reports whether op is a registered accumulation operator.
func ValidOperator(op string) bool {
	_, ok := Operators[op]
	return ok
}

// countAgg increments by 1 per row. The incoming value is ignored.
type countAgg struct{}

func (countAgg) Apply(cur, _ decimal.Decimal) decimal.Decimal { return cur.Add(decimal.NewFromInt(1)) }

// sumAgg accumulates the sum of incoming values.
type sumAgg struct{}

func (sumAgg) Apply(cur, inc decimal.Decimal) decimal.Decimal { return cur.Add(inc) }

// Field binds an accumulator name to its operator.
type Field struct {
	Name     string
	Operator string
	agg      Aggregator
}

// Sum declares an accumulator that adds the row's value for name.
func Sum(name string) Field {
	return Field{Name: name, Operator: OpSum, agg: Operators[OpSum]}
}

// Count declares an accumulator that counts folded rows.
func Count(name string) Field {
	return Field{Name: name, Operator: OpCount, agg: Operators[OpCount]}
}

// Values carries the numeric inputs of one row, keyed by accumulator name.
// Count accumulators do not need an entry.
type Values map[string]decimal.Decimal
