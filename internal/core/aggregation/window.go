package aggregation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ErrInvalidWindow marks an unparseable or reversed reporting window.
var ErrInvalidWindow = errors.New("invalid report window")

// Month identifies a calendar month. It is the time bucket of every monthly aggregate.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf floors t to its calendar month.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// Start returns the first day of the month at midnight UTC.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Next returns the following month, rolling December into January.
func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// Before reports whether m is earlier than o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// String renders the bucket as its first-of-month date.
func (m Month) String() string {
	return m.Start().Format(dateLayout)
}

// Label renders the month as "Jan 2024".
func (m Month) Label() string {
	return m.Start().Format("Jan 2006")
}

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(b []byte) error {
	t, err := time.Parse(dateLayout, string(b))
	if err != nil {
		return fmt.Errorf("month %q: %w", b, err)
	}
	*m = MonthOf(t)
	return nil
}

// MonthRange returns every month from floor(start) to floor(end), inclusive.
// A reversed range yields the start month alone, so callers never see zero buckets.
func MonthRange(start, end time.Time) []Month {
	first, last := MonthOf(start), MonthOf(end)
	if last.Before(first) {
		return []Month{first}
	}
	var months []Month
	for m := first; !last.Before(m); m = m.Next() {
		months = append(months, m)
	}
	return months
}

// Window is an inclusive reporting date range.
type Window struct {
	From time.Time
	To   time.Time
}

// ParseWindow validates a "YYYY-MM-DD" pair with from <= to.
func ParseWindow(from, to string) (Window, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return Window{}, fmt.Errorf("%w: from and to are required", ErrInvalidWindow)
	}
	start, err := time.Parse(dateLayout, from)
	if err != nil {
		return Window{}, fmt.Errorf("%w: from %q must be YYYY-MM-DD", ErrInvalidWindow, from)
	}
	end, err := time.Parse(dateLayout, to)
	if err != nil {
		return Window{}, fmt.Errorf("%w: to %q must be YYYY-MM-DD", ErrInvalidWindow, to)
	}
	if end.Before(start) {
		return Window{}, fmt.Errorf("%w: from %s is after to %s", ErrInvalidWindow, from, to)
	}
	return Window{From: start, To: end}, nil
}

// Months returns the window's month buckets.
func (w Window) Months() []Month {
	return MonthRange(w.From, w.To)
}

// MonthSpan counts the window's month buckets without building them.
func (w Window) MonthSpan() int {
	first, last := MonthOf(w.From), MonthOf(w.To)
	n := (last.Year-first.Year)*12 + int(last.Month-first.Month) + 1
	if n < 1 {
		return 1
	}
	return n
}

// Contains reports whether m is one of the window's buckets.
func (w Window) Contains(m Month) bool {
	first, last := MonthOf(w.From), MonthOf(w.To)
	if last.Before(first) {
		return m == first
	}
	return !m.Before(first) && !last.Before(m)
}

func (w Window) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`{"from":%q,"to":%q}`, w.From.Format(dateLayout), w.To.Format(dateLayout))), nil
}
