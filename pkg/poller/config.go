package poller

import (
	"fmt"

	"github.com/levenlabs/go-lflag"
)

// Configured returns a Poller configured from flags.
func Configured() *Poller {
	p := &Poller{}
	schedule := lflag.String("poll-schedule", DefaultSchedule, "Cron schedule the sensors are polled on")
	timeout := lflag.Duration("poll-timeout", DefaultTimeout, "Timeout for a single poll")

	lflag.Do(func() {
		if err := p.apply(Options{Schedule: *schedule, Timeout: *timeout}); err != nil {
			panic(fmt.Sprintf("poller init failed: %v", err))
		}
	})
	return p
}
