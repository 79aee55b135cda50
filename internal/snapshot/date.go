package snapshot

import (
	"fmt"
	"time"
)

// DateFormat is the wire format for series dates, matching the
// upstream daily-report file names (MM-DD-YYYY).
const DateFormat = "01-02-2006"

// Date is a calendar date at day granularity, no time component.
type Date struct {
	t time.Time
}

// ParseDate parses an MM-DD-YYYY string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// DateOf truncates a time to its calendar date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// NewDate builds a date from components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// String formats the date as MM-DD-YYYY.
func (d Date) String() string {
	return d.t.Format(DateFormat)
}

// Time returns the date as a UTC midnight time.
func (d Date) Time() time.Time {
	return d.t
}

// AddDays returns the date shifted by n days.
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

// Before reports whether d is earlier than o.
func (d Date) Before(o Date) bool {
	return d.t.Before(o.t)
}

// After reports whether d is later than o.
func (d Date) After(o Date) bool {
	return d.t.After(o.t)
}

// Equal reports whether d and o are the same calendar date.
func (d Date) Equal(o Date) bool {
	return d.t.Equal(o.t)
}

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool {
	return d.t.IsZero()
}
