package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"

	"github.com/grafana/flamekeeper/pkg/flamekeeper"
)

func run(ctx context.Context, f *flamekeeper.Flamekeeper) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := f.Start(ctx); err != nil {
		return err
	}
	level.Info(logger).Log("msg", "eviction service started", "interval", f.Cfg.Eviction.Interval)
	f.Eviction.Trigger()

	<-ctx.Done()
	level.Info(logger).Log("msg", "shutting down")
	return services.StopAndAwaitTerminated(context.Background(), f.Eviction)
}
