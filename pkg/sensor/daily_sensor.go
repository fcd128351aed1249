package sensor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/raterudder/glowmeter/pkg/log"
	"github.com/raterudder/glowmeter/pkg/schedule"
	"github.com/raterudder/glowmeter/pkg/types"
)

// DailySensor exposes today's running usage or cost total of one resource.
type DailySensor struct {
	resourceID string
	calc       *DailyUsage
	gate       schedule.Gate
	clock      schedule.Clock
	zero       ZeroPolicy
	divisor    float64

	mu          sync.RWMutex
	state       State
	value       float64
	initialized bool
}

// NewUsageSensor returns the kWh usage sensor of a consumption resource.
func NewUsageSensor(r types.Resource, dev Device, calc *DailyUsage, opts Options) *DailySensor {
	s := newDailySensor(r.ResourceID, calc, opts, 1)
	s.state = State{
		UniqueID:         r.ResourceID,
		Name:             "Usage (today)",
		Device:           dev,
		Unit:             "kWh",
		DeviceClass:      DeviceClassEnergy,
		StateClass:       StateClassTotal,
		EnabledByDefault: true,
	}
	if supply, _ := r.Classifier.SupplyType(); supply == types.SupplyGas {
		s.state.Icon = "mdi:fire"
	}
	return s
}

// NewCostSensor returns the GBP cost sensor of a cost resource. dev is the
// device of the consumption meter the cost is priced against.
func NewCostSensor(r types.Resource, dev Device, calc *DailyUsage, opts Options) *DailySensor {
	// upstream reports cost in pence
	s := newDailySensor(r.ResourceID, calc, opts, 100)
	s.state = State{
		UniqueID:         r.ResourceID,
		Name:             "Cost (today)",
		Device:           dev,
		Unit:             "GBP",
		DeviceClass:      DeviceClassMonetary,
		StateClass:       StateClassTotal,
		EnabledByDefault: true,
	}
	return s
}

func newDailySensor(resourceID string, calc *DailyUsage, opts Options, divisor float64) *DailySensor {
	return &DailySensor{
		resourceID: resourceID,
		calc:       calc,
		gate:       opts.Gate,
		clock:      opts.Clock,
		zero:       opts.ZeroPolicy,
		divisor:    divisor,
	}
}

// ID implements Sensor
func (s *DailySensor) ID() string {
	return s.state.UniqueID
}

// ResourceID returns the resource the total is read from.
func (s *DailySensor) ResourceID() string {
	return s.resourceID
}

// Update implements Sensor. Until the first value arrives the sensor
// refreshes on every call, after that only when the gate is due.
func (s *DailySensor) Update(ctx context.Context) {
	now := s.clock.Now()

	s.mu.RLock()
	initialized := s.initialized
	s.mu.RUnlock()
	if initialized && !s.gate.Due(now) {
		return
	}

	ctx = log.WithAttrs(ctx, slog.String("sensor", s.ID()))
	d, ok, err := s.calc.Compute(ctx, s.resourceID)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to refresh daily total", slog.Any("error", err))
		return
	}
	if !ok {
		return
	}
	if d.Value == 0 && s.zero == ZeroIsNoData {
		log.Ctx(ctx).DebugContext(ctx, "ignoring zero daily total")
		return
	}

	v := round(d.Value/s.divisor, 2)
	log.Ctx(ctx).DebugContext(ctx, "updated daily total", slog.Float64("value", v), slog.Time("lastReset", d.LastReset))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.state.LastReset = d.LastReset
	s.state.UpdatedAt = now
	s.initialized = true
}

// State implements Sensor
func (s *DailySensor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if s.initialized {
		v := s.value
		st.Value = &v
	}
	return st
}
