package aggregation

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

var jsonNull = []byte("null")

// Metric is a decimal value that may be absent. An absent metric is the
// "no data" marker: it is distinct from zero and is skipped by every
// averaging, ranking and summary step.
type Metric struct {
	value decimal.Decimal
	valid bool
}

// Some wraps a defined value.
func Some(v decimal.Decimal) Metric {
	return Metric{value: v, valid: true}
}

// SomeInt wraps a defined integer value.
func SomeInt(v int64) Metric {
	return Some(decimal.NewFromInt(v))
}

// None returns the absent marker.
func None() Metric {
	return Metric{}
}

// Valid reports whether the metric carries a value.
func (m Metric) Valid() bool { return m.valid }

// Value returns the value and whether it is defined.
func (m Metric) Value() (decimal.Decimal, bool) {
	return m.value, m.valid
}

// Or returns the value, or fallback when absent.
func (m Metric) Or(fallback decimal.Decimal) decimal.Decimal {
	if !m.valid {
		return fallback
	}
	return m.value
}

// IsZero reports whether the metric is defined and equal to zero.
func (m Metric) IsZero() bool {
	return m.valid && m.value.IsZero()
}

// Round rounds a defined value to places decimal places. Absent stays absent.
func (m Metric) Round(places int32) Metric {
	if !m.valid {
		return m
	}
	return Some(m.value.Round(places))
}

// Equal compares presence and value.
func (m Metric) Equal(o Metric) bool {
	if m.valid != o.valid {
		return false
	}
	return !m.valid || m.value.Equal(o.value)
}

func (m Metric) String() string {
	if !m.valid {
		return "none"
	}
	return m.value.String()
}

// MarshalJSON encodes a defined value as a plain JSON number and an absent one as null.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.valid {
		return jsonNull, nil
	}
	return []byte(m.value.String()), nil
}

// UnmarshalJSON accepts a JSON number, a quoted number or null.
func (m *Metric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		*m = None()
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("metric: %w", err)
	}
	*m = Some(d)
	return nil
}
