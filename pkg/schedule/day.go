package schedule

import "time"

// LagCutoff is the time of day up to which the previous day is still treated
// as today, because upstream data for the new day isn't reliably available
// until then.
const LagCutoff = time.Hour + 5*time.Minute

// EffectiveDay returns now shifted back a day when its time of day is at or
// before LagCutoff, and now unchanged otherwise.
func EffectiveDay(now time.Time) time.Time {
	if sinceMidnight(now) <= LagCutoff {
		return now.AddDate(0, 0, -1)
	}
	return now
}

// StartOfDay returns local midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sinceMidnight(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
}
