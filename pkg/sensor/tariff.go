package sensor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/raterudder/glowmeter/pkg/log"
	"github.com/raterudder/glowmeter/pkg/schedule"
	"github.com/raterudder/glowmeter/pkg/types"
)

// TariffAPI is the part of the Glowmarkt client needed to read tariffs.
type TariffAPI interface {
	GetTariff(ctx context.Context, resourceID string) (types.TariffRates, error)
}

// Tariff is the latest tariff of a resource in pence.
type Tariff struct {
	Rate           float64
	StandingCharge float64
	FetchedAt      time.Time
}

// TariffCoordinator fetches the tariff of one consumption resource once and
// hands it to every sensor subscribed to it.
type TariffCoordinator struct {
	api        TariffAPI
	resourceID string
	gate       schedule.Gate
	clock      schedule.Clock

	mu                  sync.Mutex
	rateInitialized     bool
	standingInitialized bool
	subscribers         []func(Tariff)
}

// NewTariffCoordinator returns a coordinator for the resource.
func NewTariffCoordinator(api TariffAPI, resourceID string, opts Options) *TariffCoordinator {
	return &TariffCoordinator{
		api:        api,
		resourceID: resourceID,
		gate:       opts.Gate,
		clock:      opts.Clock,
	}
}

// ResourceID returns the resource whose tariff is fetched.
func (c *TariffCoordinator) ResourceID() string {
	return c.resourceID
}

// Subscribe registers fn to be called with every refreshed tariff.
func (c *TariffCoordinator) Subscribe(fn func(Tariff)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Refresh fetches the tariff when either value has never been populated or
// the gate is due. The bool is false when nothing was fetched.
func (c *TariffCoordinator) Refresh(ctx context.Context) (Tariff, bool, error) {
	c.mu.Lock()
	populated := c.rateInitialized && c.standingInitialized
	c.mu.Unlock()
	if populated && !c.gate.Due(c.clock.Now()) {
		return Tariff{}, false, nil
	}

	rates, err := c.api.GetTariff(ctx, c.resourceID)
	if err != nil {
		return Tariff{}, false, err
	}

	c.mu.Lock()
	c.rateInitialized = true
	c.standingInitialized = true
	c.mu.Unlock()
	return Tariff{
		Rate:           rates.Rate,
		StandingCharge: rates.StandingCharge,
		FetchedAt:      c.clock.Now(),
	}, true, nil
}

// Update refreshes the tariff and notifies subscribers when one was fetched.
func (c *TariffCoordinator) Update(ctx context.Context) {
	ctx = log.WithAttrs(ctx, slog.String("tariffResourceID", c.resourceID))
	t, ok, err := c.Refresh(ctx)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to refresh tariff", slog.Any("error", err))
		return
	}
	if !ok {
		return
	}
	log.Ctx(ctx).DebugContext(ctx, "refreshed tariff", slog.Float64("rate", t.Rate), slog.Float64("standingCharge", t.StandingCharge))

	c.mu.Lock()
	subs := make([]func(Tariff), len(c.subscribers))
	copy(subs, c.subscribers)
	c.mu.Unlock()
	for _, fn := range subs {
		fn(t)
	}
}

// TariffSensor exposes one half of a coordinator's tariff. It has no refresh
// of its own and is updated by the coordinator.
type TariffSensor struct {
	pick func(Tariff) float64

	mu          sync.RWMutex
	state       State
	value       float64
	initialized bool
}

// NewRateSensor returns the unit rate sensor, in GBP/kWh, of a consumption
// resource.
func NewRateSensor(c *TariffCoordinator, dev Device) *TariffSensor {
	s := &TariffSensor{
		pick: func(t Tariff) float64 { return t.Rate },
		state: State{
			UniqueID: c.ResourceID() + "-rate",
			Name:     "Rate",
			Device:   dev,
			Unit:     "GBP/kWh",
			Icon:     "mdi:cash-multiple",
		},
	}
	c.Subscribe(s.handle)
	return s
}

// NewStandingSensor returns the daily standing charge sensor, in GBP, of a
// consumption resource.
func NewStandingSensor(c *TariffCoordinator, dev Device) *TariffSensor {
	s := &TariffSensor{
		pick: func(t Tariff) float64 { return t.StandingCharge },
		state: State{
			UniqueID:    c.ResourceID() + "-tariff",
			Name:        "Standing charge",
			Device:      dev,
			Unit:        "GBP",
			DeviceClass: DeviceClassMonetary,
		},
	}
	c.Subscribe(s.handle)
	return s
}

func (s *TariffSensor) handle(t Tariff) {
	v := round(s.pick(t)/100, 4)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.state.UpdatedAt = t.FetchedAt
	s.initialized = true
}

// ID implements Sensor
func (s *TariffSensor) ID() string {
	return s.state.UniqueID
}

// Update implements Sensor. The coordinator pushes new values so there is
// nothing to do.
func (s *TariffSensor) Update(context.Context) {}

// State implements Sensor
func (s *TariffSensor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if s.initialized {
		v := s.value
		st.Value = &v
	}
	return st
}
