package sensor

import (
	"context"
	"log/slog"
	"time"

	"github.com/raterudder/glowmeter/pkg/log"
	"github.com/raterudder/glowmeter/pkg/schedule"
	"github.com/raterudder/glowmeter/pkg/types"
)

// ReadingAPI is the part of the Glowmarkt client needed to compute daily
// totals.
type ReadingAPI interface {
	Catchup(ctx context.Context, resourceID string) error
	GetReading(ctx context.Context, resourceID string, from, to time.Time, period types.Period) (types.Reading, error)
}

// Daily is the running total of a resource for the effective day.
type Daily struct {
	Value float64
	// LastReset is the start of the window the total accumulates from.
	LastReset time.Time
}

// DailyUsage computes today's running total of a resource from a daily
// reading.
type DailyUsage struct {
	api      ReadingAPI
	clock    schedule.Clock
	location *time.Location
}

// NewDailyUsage returns a calculator that works in the given location.
func NewDailyUsage(api ReadingAPI, clock schedule.Clock, loc *time.Location) *DailyUsage {
	if loc == nil {
		loc = time.Local
	}
	return &DailyUsage{
		api:      api,
		clock:    clock,
		location: loc,
	}
}

// Window returns the reading window for the effective day at now: from local
// midnight up to now truncated to the minute.
func (d *DailyUsage) Window(now time.Time) (time.Time, time.Time) {
	day := schedule.EffectiveDay(now.In(d.location))
	from := schedule.StartOfDay(day)
	to := time.Date(day.Year(), day.Month(), day.Day(), day.Hour(), day.Minute(), 0, 0, day.Location())
	return from, to
}

// Compute returns the total for the resource. The bool is false when the API
// has no readings for the window yet, which isn't an error.
func (d *DailyUsage) Compute(ctx context.Context, resourceID string) (Daily, bool, error) {
	now := d.clock.Now().In(d.location)
	from, to := d.Window(now)
	if from.Day() != now.Day() {
		log.Ctx(ctx).DebugContext(ctx, "fetching yesterday's data", slog.Time("now", now))
	}

	// pull the latest data from the meter, the reading below may still be
	// served from before the pull if it hasn't finished
	if err := d.api.Catchup(ctx, resourceID); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "glowmarkt catchup failed", slog.String("resourceID", resourceID), slog.Any("error", err))
	}

	reading, err := d.api.GetReading(ctx, resourceID, from, to, types.PeriodDaily)
	if err != nil {
		return Daily{}, false, err
	}
	if len(reading.Points) == 0 {
		log.Ctx(ctx).DebugContext(ctx, "no readings yet", slog.String("resourceID", resourceID), slog.Time("from", from))
		return Daily{}, false, nil
	}

	// the window can be split in two points across a boundary
	return Daily{
		Value:     reading.Sum(),
		LastReset: from,
	}, true, nil
}
