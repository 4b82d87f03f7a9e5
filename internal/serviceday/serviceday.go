// Package serviceday computes which service day an instant belongs to.
// A service day starts at 05:00 KST, so 2025-08-27 04:30 KST still belongs
// to service day "2025-08-26" while 05:00 sharp opens "2025-08-27".
package serviceday

import (
	"fmt"
	"time"
)

const startHour = 5

// Fixed offset on purpose: the boundary must not depend on the host
// machine's timezone database or locale.
var kst = time.FixedZone("KST", 9*60*60)

// Day returns the "YYYY-MM-DD" service day containing now.
func Day(now time.Time) string {
	t := now.In(kst)
	if t.Hour() < startHour {
		t = t.AddDate(0, 0, -1)
	}
	return t.Format("2006-01-02")
}

// DayEnd returns the instant (in UTC) at which the given service day ends,
// i.e. the following calendar day's 05:00 KST.
func DayEnd(day string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, kst)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid service day %q: %w", day, err)
	}
	return t.AddDate(0, 0, 1).Add(startHour * time.Hour).UTC(), nil
}

// TimeLeft describes how much of the current service day remains at now.
type TimeLeft struct {
	Hours        int  `json:"hours"`
	Minutes      int  `json:"minutes"`
	TotalMinutes int  `json:"total_minutes"`
	IsExpired    bool `json:"is_expired"`
}

// Left computes the remaining time in now's service day.
func Left(now time.Time) TimeLeft {
	end, err := DayEnd(Day(now))
	if err != nil {
		return TimeLeft{IsExpired: true}
	}
	diff := end.Sub(now)
	if diff <= 0 {
		return TimeLeft{IsExpired: true}
	}
	// Round up so a sub-minute remainder still reads as "1분 남음"
	// rather than rendering like an expired day.
	total := int((diff + time.Minute - 1) / time.Minute)
	return TimeLeft{
		Hours:        total / 60,
		Minutes:      total % 60,
		TotalMinutes: total,
	}
}

// FormatLeft renders a TimeLeft as user-facing Korean text.
func FormatLeft(tl TimeLeft) string {
	switch {
	case tl.Hours == 0 && tl.Minutes == 0:
		return "마감됨"
	case tl.Hours == 0:
		return fmt.Sprintf("%d분 남음", tl.Minutes)
	case tl.Minutes == 0:
		return fmt.Sprintf("%d시간 남음", tl.Hours)
	default:
		return fmt.Sprintf("%d시간 %d분 남음", tl.Hours, tl.Minutes)
	}
}
