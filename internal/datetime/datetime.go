// Package datetime holds the calendar-day arithmetic used by the dashboard.
// Days are YYYY-MM-DD strings.
package datetime

import (
	"errors"
	"fmt"
	"time"
)

// Layout is the date key format used in URLs and API queries.
const Layout = "2006-01-02"

// ErrInvalidDate is returned for keys that are not YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid date format; expected YYYY-MM-DD")

// Clock supplies the current time. Tests pin it.
type Clock func() time.Time

// SystemClock returns a Clock reading time.Now in loc (Local when nil).
func SystemClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return func() time.Time { return time.Now().In(loc) }
}

// Fixed returns a Clock that always reports t.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}

// Parse validates a date key.
func Parse(date string) (time.Time, error) {
	t, err := time.Parse(Layout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return t, nil
}

// Valid reports whether date is a YYYY-MM-DD key.
func Valid(date string) bool {
	_, err := Parse(date)
	return err == nil
}

// Format renders t as a date key in t's own location.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Next returns the day after date.
func Next(date string) (string, error) {
	return shift(date, 1)
}

// Previous returns the day before date.
func Previous(date string) (string, error) {
	return shift(date, -1)
}

// Today returns the current day according to clock.
func Today(clock Clock) string {
	if clock == nil {
		clock = SystemClock(nil)
	}
	return Format(clock())
}

func shift(date string, days int) (string, error) {
	t, err := Parse(date)
	if err != nil {
		return "", err
	}
	return Format(t.AddDate(0, 0, days)), nil
}
