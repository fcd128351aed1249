package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/raterudder/glowmeter/pkg/log"
)

const (
	DefaultSchedule = "* * * * *"
	DefaultTimeout  = 2 * time.Minute
)

// Refresher is refreshed on every tick. sensor.Platform implements it.
type Refresher interface {
	Refresh(ctx context.Context)
}

// Options configure a Poller.
type Options struct {
	// Schedule is a standard cron expression.
	Schedule string
	// Timeout bounds a single tick.
	Timeout time.Duration
}

// Poller ticks a Refresher on a cron schedule.
type Poller struct {
	schedule cron.Schedule
	timeout  time.Duration
	cron     *cron.Cron
	job      cron.Job
	first    sync.WaitGroup

	mu        sync.Mutex
	ctx       context.Context
	refresher Refresher
	started   bool
}

// New returns a Poller that isn't running yet.
func New(opts Options) (*Poller, error) {
	p := &Poller{}
	if err := p.apply(opts); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Poller) apply(opts Options) error {
	if opts.Schedule == "" {
		opts.Schedule = DefaultSchedule
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	sched, err := cron.ParseStandard(opts.Schedule)
	if err != nil {
		return fmt.Errorf("invalid poll schedule %q: %w", opts.Schedule, err)
	}
	p.schedule = sched
	p.timeout = opts.Timeout
	p.cron = cron.New()
	// the first tick and the scheduled ticks share one job so they never
	// overlap
	p.job = cron.NewChain(cron.SkipIfStillRunning(cronLogger{})).Then(cron.FuncJob(p.tick))
	return nil
}

// Start refreshes r once in the background and then on every scheduled tick
// until Stop is called. It doesn't wait for the first refresh. Ticks run with
// ctx, so cancelling it aborts running refreshes.
func (p *Poller) Start(ctx context.Context, r Refresher) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("poller already started")
	}
	p.started = true
	p.ctx = ctx
	p.refresher = r
	p.mu.Unlock()

	// populate every sensor before the first scheduled tick
	p.first.Add(1)
	go func() {
		defer p.first.Done()
		p.job.Run()
	}()

	p.cron.Schedule(p.schedule, p.job)
	p.cron.Start()
	log.Ctx(ctx).DebugContext(ctx, "started poller", slog.Time("next", p.schedule.Next(time.Now())))
	return nil
}

// Stop stops scheduling ticks and waits for a running tick to finish.
func (p *Poller) Stop() {
	<-p.cron.Stop().Done()
	p.first.Wait()
}

func (p *Poller) tick() {
	p.mu.Lock()
	parent := p.ctx
	r := p.refresher
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, p.timeout)
	defer cancel()

	start := time.Now()
	r.Refresh(ctx)
	log.Ctx(ctx).DebugContext(ctx, "poll finished", slog.Duration("took", time.Since(start)))
	if err := ctx.Err(); err != nil && parent.Err() == nil {
		log.Ctx(ctx).WarnContext(ctx, "poll timed out", slog.Duration("timeout", p.timeout))
	}
}

// cronLogger sends cron's own logging to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	log.Ctx(context.Background()).Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	log.Ctx(context.Background()).Error("cron: "+msg, append([]any{slog.Any("error", err)}, keysAndValues...)...)
}
