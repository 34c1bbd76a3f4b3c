package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// DEPRECIATION PERIOD - Closed interval [Start, End]
// =============================================================================

// DepreciationPeriod is the window a depreciation event covers.
type DepreciationPeriod struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses closed-interval semantics: touching windows (one ends on
// the day the other starts) overlap.
func (p DepreciationPeriod) Overlaps(other DepreciationPeriod) bool {
	return !p.Start.After(other.End) && !p.End.Before(other.Start)
}

// Months returns the whole calendar months the period spans.
func (p DepreciationPeriod) Months() int {
	return MonthsBetween(p.Start, p.End)
}

func (p DepreciationPeriod) String() string {
	return "[" + FormatTime(p.Start) + ", " + FormatTime(p.End) + "]"
}

// PeriodFromDetails reads the window recorded on a depreciation event.
func PeriodFromDetails(d Details) (DepreciationPeriod, error) {
	start, err := time.Parse(time.RFC3339Nano, d[DetailStartDate])
	if err != nil {
		return DepreciationPeriod{}, fmt.Errorf("invalid %s %q: %w", DetailStartDate, d[DetailStartDate], err)
	}
	end, err := time.Parse(time.RFC3339Nano, d[DetailEndDate])
	if err != nil {
		return DepreciationPeriod{}, fmt.Errorf("invalid %s %q: %w", DetailEndDate, d[DetailEndDate], err)
	}
	return DepreciationPeriod{Start: start, End: end}, nil
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// MonthsBetween counts whole calendar months from start to end, ignoring
// the day of month: Jan 31 -> Feb 1 is one month, Jan 1 -> Jan 31 is zero.
// The result is negative when end falls in an earlier month than start.
func MonthsBetween(start, end time.Time) int {
	return (end.Year()-start.Year())*12 + int(end.Month()-start.Month())
}

// FormatTime renders a time the way event details store it. Sub-second
// precision is kept so stored windows compare exactly.
func FormatTime(t time.Time) string { return t.Format(time.RFC3339Nano) }
