package ark

import "time"

// RetentionPolicy is the declarative multi-tier snapshot-keep rule set.
// ShouldKeep is a pure function of the snapshot time and "now"; cleanup
// deletes exactly the snapshots it rejects.
//
// Tiers, newest to oldest: every snapshot inside the trailing hourly window
// survives; then only daily anchors (midnight UTC); then only weekly anchors
// (Monday midnight); then only monthly anchors (first-of-month midnight).
// Nothing survives past TotalRetentionDays.
type RetentionPolicy struct {
	HourlyCount        int // snapshots kept unconditionally, one per hour
	DailyCount         int // days in the daily-anchor window
	WeeklyCount        int // weeks in the weekly-anchor window
	MonthlyCount       int // months in the monthly-anchor window
	TotalRetentionDays int // hard cap; 0 means no cap
}

// DefaultRetentionPolicy mirrors the standard operator setup:
// 24 hourlies, 7 dailies, 4 weeklies, 18 months, capped at 548 days.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		HourlyCount:        24,
		DailyCount:         7,
		WeeklyCount:        4,
		MonthlyCount:       18,
		TotalRetentionDays: 548,
	}
}

// ShouldKeep reports whether a snapshot taken at snapTime survives cleanup
// at the instant now. All arithmetic is in UTC.
func (p RetentionPolicy) ShouldKeep(snapTime, now time.Time) bool {
	t := snapTime.UTC()
	n := now.UTC()

	age := n.Sub(t)
	if age < 0 {
		// Future-dated snapshot: clock skew, keep it.
		return true
	}

	if p.TotalRetentionDays > 0 && age > time.Duration(p.TotalRetentionDays)*24*time.Hour {
		return false
	}

	if age <= time.Duration(p.HourlyCount)*time.Hour {
		return true
	}

	if age <= time.Duration(p.DailyCount)*24*time.Hour {
		return isMidnight(t)
	}

	if age <= time.Duration(p.WeeklyCount)*7*24*time.Hour {
		return isMidnight(t) && t.Weekday() == time.Monday
	}

	if t.After(n.AddDate(0, -p.MonthlyCount, 0)) {
		return isMidnight(t) && t.Day() == 1
	}

	return false
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}
