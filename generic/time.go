package generic

import (
	"time"
)

// =============================================================================
// CLOCK - Injectable "now" for timestamp rules
// =============================================================================

// Clock supplies the current time to rules that compare against it.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant. Used in tests and replays.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

// =============================================================================
// TIMESTAMPS - Records carry nanoseconds since the Unix epoch
// =============================================================================

const (
	nanosPerDay  int64 = 24 * 60 * 60 * 1_000_000_000
	nanosPerHour int64 = 60 * 60 * 1_000_000_000
)

// Nanos converts t to the timestamp representation records use.
func Nanos(t time.Time) int64 {
	return t.UnixNano()
}

// =============================================================================
// CALENDAR DATES - YYYY-MM-DD strings
// =============================================================================
// Date arithmetic here is approximate: every year has 365 days and every
// month 30. The "too far in the future/past" rules are defined in these
// units, so they must not be replaced with real calendar math.

// Date is a parsed YYYY-MM-DD value. No month-length or leap-year check.
type Date struct {
	Year, Month, Day int
}

// ParseDate parses s if it has the exact YYYY-MM-DD shape with month 1-12
// and day 1-31.
func ParseDate(s string) (Date, bool) {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return Date{}, false
	}
	y, ok1 := digits(s[0:4])
	m, ok2 := digits(s[5:7])
	d, ok3 := digits(s[8:10])
	if !ok1 || !ok2 || !ok3 {
		return Date{}, false
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return Date{}, false
	}
	return Date{Year: y, Month: m, Day: d}, true
}

// IsValidDate reports whether s is a well-formed YYYY-MM-DD date.
func IsValidDate(s string) bool {
	_, ok := ParseDate(s)
	return ok
}

// Before orders dates lexically by (year, month, day).
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// ApproxNanos is the approximate epoch timestamp of the date.
func (d Date) ApproxNanos() int64 {
	days := int64(d.Year-1970)*365 + int64(d.Month-1)*30 + int64(d.Day)
	return days * nanosPerDay
}

// DateTooFarInFuture reports whether date lies more than days ahead of now.
// Unparseable dates are left to the format check and report false.
func DateTooFarInFuture(date string, days int, now time.Time) bool {
	d, ok := ParseDate(date)
	if !ok {
		return false
	}
	return d.ApproxNanos() > Nanos(now)+int64(days)*nanosPerDay
}

// DateTooOld reports whether date lies more than years (of 365 days) before now.
func DateTooOld(date string, years int, now time.Time) bool {
	d, ok := ParseDate(date)
	if !ok {
		return false
	}
	return d.ApproxNanos() < Nanos(now)-int64(years)*365*nanosPerDay
}

func digits(s string) (int, bool) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
