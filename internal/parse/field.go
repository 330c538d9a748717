// Package parse normalizes raw form input.
package parse

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	spaceRe     = regexp.MustCompile(`\s+`)
	mobileStrip = strings.NewReplacer(" ", "", "+", "")
	mobileRe    = regexp.MustCompile(`^(\d{3})(\d{4})(\d{4})$`)
)

// DateLayout is the wire format of report and invoice dates.
const DateLayout = "2006-01-02"

// Text trims s and collapses inner whitespace runs to one space.
func Text(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// MobileDigits strips spaces and plus signs. The result is what the length
// rule is checked against.
func MobileDigits(s string) string {
	return mobileStrip.Replace(strings.TrimSpace(s))
}

// ValidMobile reports whether s has exactly 11 characters once spaces and
// plus signs are removed.
func ValidMobile(s string) bool {
	return len(MobileDigits(s)) == 11
}

// FormatMobile renders an 11 digit number as "+974 XXXX XXXX". Input that
// does not fit is returned trimmed.
func FormatMobile(s string) string {
	m := mobileRe.FindStringSubmatch(MobileDigits(s))
	if m == nil {
		return strings.TrimSpace(s)
	}
	return fmt.Sprintf("+%s %s %s", m[1], m[2], m[3])
}

// Number parses a numeric input. Thousands separators are accepted.
func Number(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return n, nil
}

// Positive reports whether s parses to a number greater than zero.
func Positive(s string) bool {
	n, err := Number(s)
	return err == nil && n > 0
}

// Date parses a YYYY-MM-DD date.
func Date(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// DateRange parses an inclusive from/to pair. Empty bounds default to the
// first of the current month and today.
func DateRange(from, to string, now time.Time) (time.Time, time.Time, error) {
	var (
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end   = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		err   error
	)
	if strings.TrimSpace(from) != "" {
		if start, err = Date(from); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if strings.TrimSpace(to) != "" {
		if end, err = Date(to); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("date range ends before it starts: %s > %s", start.Format(DateLayout), end.Format(DateLayout))
	}
	return start, end, nil
}
