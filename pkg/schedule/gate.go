package schedule

import (
	"fmt"
	"time"
)

// Window is an inclusive range of minutes past the hour.
type Window struct {
	From int
	To   int
}

// Contains reports whether minute falls inside the window.
func (w Window) Contains(minute int) bool {
	return minute >= w.From && minute <= w.To
}

// Gate decides whether a refresh is due from the minute of the hour alone. It
// holds no state so the same Gate can be shared by every sensor.
type Gate struct {
	windows []Window
}

// NewGate returns a Gate that is due inside any of the windows.
func NewGate(windows ...Window) (Gate, error) {
	for _, w := range windows {
		if w.From < 0 || w.To > 59 || w.From > w.To {
			return Gate{}, fmt.Errorf("invalid gate window %d-%d", w.From, w.To)
		}
	}
	return Gate{windows: windows}, nil
}

// DefaultGate is due between 1 and 5 and between 31 and 35 minutes past the
// hour. Data lands upstream on the half hour, and the five minute window
// leaves room for a retry if the first attempt fails.
func DefaultGate() Gate {
	return Gate{windows: []Window{{From: 1, To: 5}, {From: 31, To: 35}}}
}

// Due reports whether a refresh should run at t.
func (g Gate) Due(t time.Time) bool {
	m := t.Minute()
	for _, w := range g.windows {
		if w.Contains(m) {
			return true
		}
	}
	return false
}

// Windows returns a copy of the gate's windows.
func (g Gate) Windows() []Window {
	return append([]Window(nil), g.windows...)
}
