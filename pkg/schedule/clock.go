package schedule

import "time"

// Clock supplies the current time. Everything that depends on the time of
// day takes a Clock so it can be tested.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to a Clock.
type ClockFunc func() time.Time

// Now implements Clock
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return ClockFunc(time.Now)
}

// FixedClock always returns t. It is mostly useful in tests.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}
