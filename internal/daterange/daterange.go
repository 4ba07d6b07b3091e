// Package daterange provides day-granularity calendar arithmetic for
// booking availability checks. All conversions anchor to UTC so results
// never shift across timezones or daylight-saving transitions.
package daterange

import (
	"fmt"
	"time"
)

// DayFormat is the canonical day-string layout.
const DayFormat = "2006-01-02"

// Range is a half-open interval [Start, End) of day strings.
// End is exclusive: the checkout day of one rental can be the pickup
// day of the next without the two overlapping.
type Range struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ToDayString returns the canonical YYYY-MM-DD string for t, computed
// from the UTC calendar date.
func ToDayString(t time.Time) string {
	return t.UTC().Format(DayFormat)
}

// ParseDay parses a canonical day string back into a UTC-midnight time.
func ParseDay(day string) (time.Time, error) {
	t, err := time.Parse(DayFormat, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day string %q: %w", day, err)
	}
	return t, nil
}

// AddDays returns the day string n calendar days after day. Negative n
// moves earlier. Arithmetic is on the UTC calendar date only, so a DST
// transition in any local zone cannot produce an off-by-one.
func AddDays(day string, n int) (string, error) {
	t, err := ParseDay(day)
	if err != nil {
		return "", err
	}
	return ToDayString(t.AddDate(0, 0, n)), nil
}

// RangesOverlap reports whether two half-open day ranges intersect.
// Day strings in YYYY-MM-DD form order lexically, so plain string
// comparison is correct here.
func RangesOverlap(startA, endA, startB, endB string) bool {
	return startA < endB && startB < endA
}

// Overlaps reports whether r intersects other.
func (r Range) Overlaps(other Range) bool {
	return RangesOverlap(r.Start, r.End, other.Start, other.End)
}

// Days returns the number of calendar days the range occupies.
func (r Range) Days() (int, error) {
	start, err := ParseDay(r.Start)
	if err != nil {
		return 0, err
	}
	end, err := ParseDay(r.End)
	if err != nil {
		return 0, err
	}
	return int(end.Sub(start).Hours() / 24), nil
}

// Normalize converts an inclusive pickup/return date pair into the
// half-open form used by RangesOverlap: End is the day after the return
// date. A same-day pickup and return yields a one-day range.
func Normalize(pickup, ret time.Time) (Range, error) {
	start := ToDayString(pickup)
	end, err := AddDays(ToDayString(ret), 1)
	if err != nil {
		return Range{}, err
	}
	if start >= end {
		return Range{}, fmt.Errorf("return date %s precedes pickup date %s", ToDayString(ret), start)
	}
	return Range{Start: start, End: end}, nil
}

// NormalizeDays is Normalize over day strings, for callers that already
// hold canonical YYYY-MM-DD values.
func NormalizeDays(pickupDay, returnDay string) (Range, error) {
	if _, err := ParseDay(pickupDay); err != nil {
		return Range{}, err
	}
	end, err := AddDays(returnDay, 1)
	if err != nil {
		return Range{}, err
	}
	if pickupDay >= end {
		return Range{}, fmt.Errorf("return date %s precedes pickup date %s", returnDay, pickupDay)
	}
	return Range{Start: pickupDay, End: end}, nil
}
