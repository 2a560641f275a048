package aggregation

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RawRow is one result row as returned by the query layer: column name to scalar.
type RawRow map[string]any

// Kind is the expected type of a schema field.
type Kind int

const (
	KindNumber Kind = iota
	KindText
	KindDate
)

// FieldSpec describes one expected column of a row kind.
type FieldSpec struct {
	Name    string
	Kind    Kind
	Default decimal.Decimal
}

// Number declares a numeric column defaulting to zero.
func Number(name string) FieldSpec {
	return FieldSpec{Name: name, Kind: KindNumber}
}

// NumberOr declares a numeric column with a non-zero default.
func NumberOr(name string, def decimal.Decimal) FieldSpec {
	return FieldSpec{Name: name, Kind: KindNumber, Default: def}
}

// Text declares an optional string column.
func Text(name string) FieldSpec {
	return FieldSpec{Name: name, Kind: KindText}
}

// Date declares a date column.
func Date(name string) FieldSpec {
	return FieldSpec{Name: name, Kind: KindDate}
}

// Schema is the set of columns a row kind expects.
type Schema []FieldSpec

// Record is a normalized row: every declared numeric field is coerced or
// defaulted, every optional text field is a value or nil.
type Record struct {
	nums    map[string]decimal.Decimal
	present map[string]bool
	texts   map[string]*string
	dates   map[string]time.Time
}

// Normalize coerces raw into a Record. It never fails; malformed input falls
// back to the field default.
func (s Schema) Normalize(raw RawRow) Record {
	rec := Record{
		nums:    make(map[string]decimal.Decimal),
		present: make(map[string]bool),
		texts:   make(map[string]*string),
		dates:   make(map[string]time.Time),
	}
	for _, f := range s {
		switch f.Kind {
		case KindNumber:
			if d, ok := ExtractDecimal(raw, f.Name); ok {
				rec.nums[f.Name] = d
				rec.present[f.Name] = true
			} else {
				rec.nums[f.Name] = f.Default
			}
		case KindText:
			rec.texts[f.Name] = ExtractText(raw, f.Name)
		case KindDate:
			if t, ok := ExtractTime(raw, f.Name); ok {
				rec.dates[f.Name] = t
			}
		}
	}
	return rec
}

// Num returns the coerced or defaulted numeric field.
func (r Record) Num(name string) decimal.Decimal {
	return r.nums[name]
}

// NumOK returns the numeric field and whether the source carried a parseable value.
func (r Record) NumOK(name string) (decimal.Decimal, bool) {
	return r.nums[name], r.present[name]
}

// Metric returns the numeric field as a Metric, absent when the source had no value.
func (r Record) Metric(name string) Metric {
	if !r.present[name] {
		return None()
	}
	return Some(r.nums[name])
}

// Int returns the numeric field truncated to an integer.
func (r Record) Int(name string) int64 {
	return r.nums[name].IntPart()
}

// Text returns the optional string field.
func (r Record) Text(name string) *string {
	return r.texts[name]
}

// TextOr returns the string field or fallback when it is null.
func (r Record) TextOr(name, fallback string) string {
	if v := r.texts[name]; v != nil {
		return *v
	}
	return fallback
}

// Date returns the date field and whether it was parseable.
func (r Record) Date(name string) (time.Time, bool) {
	t, ok := r.dates[name]
	return t, ok
}

// ExtractDecimal pulls a numeric value from the row by column name.
// lib/pq hands NUMERIC columns over as []byte, so byte slices parse like strings.
// The second result is false when the column is missing, null or not numeric.
func ExtractDecimal(row RawRow, field string) (decimal.Decimal, bool) {
	if field == "" {
		return decimal.Zero, false
	}
	v, ok := row[field]
	if !ok || v == nil {
		return decimal.Zero, false
	}
	switch val := v.(type) {
	case decimal.Decimal:
		return val, true
	case float64:
		return fromFloat(val)
	case float32:
		if !finite(float64(val)) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat32(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case int32:
		return decimal.NewFromInt(int64(val)), true
	case int16:
		return decimal.NewFromInt(int64(val)), true
	case int8:
		return decimal.NewFromInt(int64(val)), true
	case uint:
		return decimal.NewFromUint64(uint64(val)), true
	case uint64:
		return decimal.NewFromUint64(val), true
	case uint32:
		return decimal.NewFromUint64(uint64(val)), true
	case uint16:
		return decimal.NewFromUint64(uint64(val)), true
	case uint8:
		return decimal.NewFromUint64(uint64(val)), true
	case string:
		return parseDecimal(val)
	case []byte:
		return parseDecimal(string(val))
	}
	return decimal.Zero, false
}

// fromFloat rejects NaN and infinities, which double precision columns can hold.
func fromFloat(f float64) (decimal.Decimal, bool) {
	if !finite(f) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func parseDecimal(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ExtractText returns the column as a string, or nil when it is missing,
// null or blank.
func ExtractText(row RawRow, field string) *string {
	v, ok := row[field]
	if !ok || v == nil {
		return nil
	}
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case []byte:
		s = string(val)
	case int64:
		s = decimal.NewFromInt(val).String()
	case int:
		s = decimal.NewFromInt(int64(val)).String()
	default:
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

var dateLayouts = []string{dateLayout, time.RFC3339, "2006-01-02 15:04:05"}

// ExtractTime returns the column as a UTC time. Accepts time.Time and the
// common textual date layouts.
func ExtractTime(row RawRow, field string) (time.Time, bool) {
	v, ok := row[field]
	if !ok || v == nil {
		return time.Time{}, false
	}
	var s string
	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return time.Time{}, false
		}
		return val.UTC(), true
	case string:
		s = val
	case []byte:
		s = string(val)
	default:
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
