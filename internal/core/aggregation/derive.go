package aggregation

import (
	"github.com/shopspring/decimal"
)

var (
	hundred      = decimal.NewFromInt(100)
	daysPerMonth = decimal.NewFromInt(30)
)

// Mean averages the defined values. Absent when none is defined.
func Mean(values ...Metric) Metric {
	sum := decimal.Zero
	n := int64(0)
	for _, v := range values {
		if d, ok := v.Value(); ok {
			sum = sum.Add(d)
			n++
		}
	}
	if n == 0 {
		return None()
	}
	return Some(sum.Div(decimal.NewFromInt(n)))
}

// MeanOf averages plain decimals. Absent for an empty slice.
func MeanOf(values []decimal.Decimal) Metric {
	if len(values) == 0 {
		return None()
	}
	return Some(decimal.Sum(decimal.Zero, values...).Div(decimal.NewFromInt(int64(len(values)))))
}

// Average divides an accumulated sum by a count; no value for a zero count.
func Average(sum, count decimal.Decimal) Metric {
	if count.IsZero() {
		return None()
	}
	return Some(sum.Div(count))
}

// Ratio divides num by den. Both must be defined and non-zero.
func Ratio(num, den Metric) Metric {
	n, ok := num.Value()
	if !ok || n.IsZero() {
		return None()
	}
	d, ok := den.Value()
	if !ok || d.IsZero() {
		return None()
	}
	return Some(n.Div(d))
}

// Difference returns a-b, absent when either side is absent.
func Difference(a, b Metric) Metric {
	x, ok := a.Value()
	if !ok {
		return None()
	}
	y, ok := b.Value()
	if !ok {
		return None()
	}
	return Some(x.Sub(y))
}

// PercentDelta returns (a-b)/b*100 rounded to one decimal; absent when b is zero or absent.
func PercentDelta(a, b Metric) Metric {
	x, ok := a.Value()
	if !ok {
		return None()
	}
	y, ok := b.Value()
	if !ok || y.IsZero() {
		return None()
	}
	return Some(x.Sub(y).Div(y).Mul(hundred).Round(1))
}

// Share returns part as a percentage of whole rounded to one decimal; absent for a zero whole.
func Share(part, whole decimal.Decimal) Metric {
	if whole.IsZero() {
		return None()
	}
	return Some(part.Div(whole).Mul(hundred).Round(1))
}

// ChurnRate returns cancelled/(active+cancelled+pending) as a percentage
// rounded to one decimal, and zero when there are no arrangements at all.
func ChurnRate(cancelled, active, pending decimal.Decimal) Metric {
	denominator := active.Add(cancelled).Add(pending)
	if denominator.IsZero() {
		return Some(decimal.Zero)
	}
	return Some(cancelled.Div(denominator).Mul(hundred).Round(1))
}

// MonthlyProjection normalizes a recurring arrangement to 30 days:
// (30/intervalDays) * price * quantity. Absent for a non-positive cadence.
func MonthlyProjection(intervalDays, price, quantity decimal.Decimal) Metric {
	if !intervalDays.IsPositive() {
		return None()
	}
	return Some(price.Mul(quantity).Mul(daysPerMonth).Div(intervalDays))
}
