package utils

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the calendar-date format accepted and produced by the API.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned when a value is neither YYYY-MM-DD nor RFC3339.
var ErrInvalidDate = errors.New("invalid date")

// ParseDate parses a calendar date (YYYY-MM-DD) or a full RFC3339
// timestamp and returns it in UTC.  Bare dates are midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, ErrInvalidDate
}

// ParseRange parses both ends of a half-open range and requires
// start < end.
func ParseRange(start, end string) (time.Time, time.Time, error) {
	s, err := ParseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !s.Before(e) {
		return time.Time{}, time.Time{}, ErrInvalidDate
	}
	return s, e, nil
}

// FormatDate renders t as YYYY-MM-DD in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
