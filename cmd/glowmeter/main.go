package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raterudder/glowmeter/pkg/glowmarkt"
	"github.com/raterudder/glowmeter/pkg/log"
	"github.com/raterudder/glowmeter/pkg/poller"
	"github.com/raterudder/glowmeter/pkg/sensor"
	"github.com/raterudder/glowmeter/pkg/server"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
)

// meterClient is the connected account the sensors read from.
type meterClient interface {
	sensor.Discoverer
	Connect(ctx context.Context) error
	Close() error
	Location() *time.Location
}

type runner interface {
	Run(ctx context.Context, p server.Platform) error
}

// run connects the client, builds the sensors and serves them until ctx is
// done. The client is closed before run returns once it has connected.
func run(ctx context.Context, client meterClient, opts sensor.Options, srv runner) error {
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to authenticate with glowmarkt: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close glowmarkt client", "error", err)
		}
	}()

	opts.Location = client.Location()
	platform, err := sensor.Setup(ctx, client, opts)
	if err != nil {
		return fmt.Errorf("failed to set up sensors: %w", err)
	}

	// Run will block until context is canceled or error happens
	if err := srv.Run(ctx, platform); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func main() {
	// init packages
	client := glowmarkt.Configured()
	opts := sensor.Configured()
	p := poller.Configured()

	// init server
	srv := server.Configured(p, client)

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, client, *opts, srv); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "glowmeter failed", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}
