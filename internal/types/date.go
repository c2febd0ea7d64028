package types

import (
	"time"
)

// AddClampedDate adds years, months and days to t while clamping the day of
// month to the last valid day of the resulting month. time.AddDate would roll
// Jan 31 + 1 month over into March; billing dates must not do that.
func AddClampedDate(t time.Time, years, months, days int) time.Time {
	y, m, d := t.Date()
	h, min, sec := t.Clock()

	newY := y + years
	newM := time.Month(int(m) + months)
	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	lastDay := DaysInMonth(newY, newM)
	newD := d + days
	if newD > lastDay {
		newD = lastDay
	}

	return time.Date(newY, newM, newD, h, min, sec, t.Nanosecond(), t.Location())
}

// DaysInMonth returns the number of days in the given month
func DaysInMonth(year int, month time.Month) int {
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	return firstOfNext.Add(-24 * time.Hour).Day()
}

// AlignToDayAnchor moves t onto the anchor day of its month, clamped to the
// last day for short months. A zero anchor leaves t unchanged.
func AlignToDayAnchor(t time.Time, dayAnchor int) time.Time {
	if dayAnchor <= 0 {
		return t
	}
	h, min, sec := t.Clock()
	last := DaysInMonth(t.Year(), t.Month())
	day := dayAnchor
	if day > last {
		day = last
	}
	return time.Date(t.Year(), t.Month(), day, h, min, sec, t.Nanosecond(), t.Location())
}

// PeriodEnd computes the end of a billing period that starts at start with the
// given duration, aligned to the subscription container's anchors. Monthly
// plans align to the day anchor; quarterly and yearly plans additionally align
// to the month anchor when one is set.
func PeriodEnd(start time.Time, duration PlanDuration, dayAnchor, monthAnchor int) time.Time {
	end := AddClampedDate(start, 0, duration.Months(), 0)
	if monthAnchor > 0 && duration != PlanDurationMonthly {
		monthDelta := (monthAnchor - int(end.Month())) % duration.Months()
		if monthDelta < 0 {
			monthDelta += duration.Months()
		}
		end = AddClampedDate(end, 0, monthDelta, 0)
	}
	end = AlignToDayAnchor(end, dayAnchor)
	if !end.After(start) {
		end = AddClampedDate(start, 0, duration.Months(), 0)
	}
	return end
}

// DaysBetween returns the whole and fractional number of days between two
// instants, never negative
func DaysBetween(start, end time.Time) float64 {
	if end.Before(start) {
		return 0
	}
	return end.Sub(start).Hours() / 24
}

// Overlaps reports whether [aStart, aEnd] intersects [bStart, bEnd]
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !bStart.After(aEnd)
}

// GranularityDuration returns the bucket width for a granularity. Total maps
// to a coarse daily default so continuous aggregates stay bounded.
func GranularityDuration(g MetricGranularity) time.Duration {
	switch g {
	case GranularityMinute:
		return time.Minute
	case GranularityHour:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// TruncateToGranularity floors t to the start of its bucket
func TruncateToGranularity(t time.Time, g MetricGranularity) time.Time {
	t = t.UTC()
	switch g {
	case GranularityMinute:
		return t.Truncate(time.Minute)
	case GranularityHour:
		return t.Truncate(time.Hour)
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case GranularityQuarter:
		q := (int(t.Month()) - 1) / 3
		return time.Date(t.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
	case GranularityYear:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}
