package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raterudder/glowmeter/pkg/log"
	"github.com/raterudder/glowmeter/pkg/schedule"
	"github.com/raterudder/glowmeter/pkg/types"
)

const defaultConcurrency = 4

// API is the part of the Glowmarkt client the sensors refresh through.
type API interface {
	ReadingAPI
	TariffAPI
}

// Discoverer additionally lists what an account has so Setup can build the
// sensors.
type Discoverer interface {
	API
	ListVirtualEntities(ctx context.Context) ([]types.VirtualEntity, error)
	ListResources(ctx context.Context, veID string) ([]types.Resource, error)
}

// Options configure the sensors built by Setup.
type Options struct {
	Gate       schedule.Gate
	Clock      schedule.Clock
	Location   *time.Location
	ZeroPolicy ZeroPolicy
	// Concurrency bounds how many sensors refresh at once.
	Concurrency int
}

func (o Options) withDefaults() Options {
	if len(o.Gate.Windows()) == 0 {
		o.Gate = schedule.DefaultGate()
	}
	if o.Clock == nil {
		o.Clock = schedule.SystemClock()
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.ZeroPolicy == "" {
		o.ZeroPolicy = ZeroIsValue
	}
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency
	}
	return o
}

// Platform is the set of sensors and tariff coordinators of an account.
type Platform struct {
	sensors      []Sensor
	byID         map[string]Sensor
	coordinators []*TariffCoordinator
	concurrency  int
}

// Setup discovers every virtual entity and resource of the account and builds
// their sensors. Usage sensors and tariff coordinators are built first so
// cost sensors can be attached to the device of the meter they price.
func Setup(ctx context.Context, d Discoverer, opts Options) (*Platform, error) {
	opts = opts.withDefaults()
	if err := opts.ZeroPolicy.Validate(); err != nil {
		return nil, err
	}

	ves, err := d.ListVirtualEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list virtual entities: %w", err)
	}

	p := &Platform{
		byID:        map[string]Sensor{},
		concurrency: opts.Concurrency,
	}
	calc := NewDailyUsage(d, opts.Clock, opts.Location)
	for _, ve := range ves {
		vctx := log.WithAttrs(ctx, slog.String("veID", ve.ID))
		resources, err := d.ListResources(vctx, ve.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list resources for %s: %w", ve.ID, err)
		}

		// meters maps each consumption classifier to the resource that
		// meters it within this virtual entity
		meters := map[types.Classifier]string{}
		for _, r := range resources {
			if !r.Classifier.IsConsumption() {
				continue
			}
			dev, err := newDevice(ve, r, r.ResourceID)
			if err != nil {
				log.Ctx(vctx).ErrorContext(vctx, "skipping resource", slog.String("resourceID", r.ResourceID), slog.Any("error", err))
				continue
			}
			meters[r.Classifier] = r.ResourceID
			p.add(NewUsageSensor(r, dev, calc, opts))

			coord := NewTariffCoordinator(d, r.ResourceID, opts)
			p.coordinators = append(p.coordinators, coord)
			p.add(NewStandingSensor(coord, dev))
			p.add(NewRateSensor(coord, dev))
		}

		for _, r := range resources {
			if !r.Classifier.IsCost() {
				continue
			}
			consumption, _ := r.Classifier.ConsumptionClassifier()
			meterID, ok := meters[consumption]
			if !ok {
				log.Ctx(vctx).WarnContext(vctx, "no meter for cost resource", slog.String("resourceID", r.ResourceID), slog.String("classifier", string(r.Classifier)))
				continue
			}
			dev, err := newDevice(ve, r, meterID)
			if err != nil {
				log.Ctx(vctx).ErrorContext(vctx, "skipping resource", slog.String("resourceID", r.ResourceID), slog.Any("error", err))
				continue
			}
			p.add(NewCostSensor(r, dev, calc, opts))
		}
	}
	log.Ctx(ctx).InfoContext(ctx, "set up sensors", slog.Int("sensors", len(p.sensors)), slog.Int("tariffs", len(p.coordinators)))
	return p, nil
}

func (p *Platform) add(s Sensor) {
	if _, ok := p.byID[s.ID()]; ok {
		return
	}
	p.sensors = append(p.sensors, s)
	p.byID[s.ID()] = s
}

// Sensors returns every sensor in the order they were built.
func (p *Platform) Sensors() []Sensor {
	return p.sensors
}

// Sensor returns the sensor with the unique id.
func (p *Platform) Sensor(id string) (Sensor, bool) {
	s, ok := p.byID[id]
	return s, ok
}

// Coordinators returns every tariff coordinator.
func (p *Platform) Coordinators() []*TariffCoordinator {
	return p.coordinators
}

// States returns a snapshot of every sensor.
func (p *Platform) States() []State {
	states := make([]State, 0, len(p.sensors))
	for _, s := range p.sensors {
		states = append(states, s.State())
	}
	return states
}

// Refresh updates every coordinator and then every sensor. Failures are
// logged by each sensor and never returned.
func (p *Platform) Refresh(ctx context.Context) {
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for _, c := range p.coordinators {
		g.Go(func() error {
			c.Update(ctx)
			return nil
		})
	}
	g.Wait()

	for _, s := range p.sensors {
		g.Go(func() error {
			s.Update(ctx)
			return nil
		})
	}
	g.Wait()
}
