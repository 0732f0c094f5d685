// Package daemon wires the statistics engine together: registry,
// publisher, scheduler, clock sentinel and control socket.
package daemon

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"tally/config"
	"tally/ctl"
	"tally/publish"
	"tally/registry"
)

// Run starts the engine and blocks until ctx is cancelled. The scheduler
// is stopped before Run returns, so no publish pass fires after teardown.
func Run(ctx context.Context, cfg config.Config, socketPath string) error {
	reg := registry.New(cfg.Options())
	pub := &publish.Publisher{Registry: reg, Sink: publish.SlogSink{}}
	sched := &publish.Scheduler{Registry: reg, Publisher: pub}

	clock := NewClockChecker()
	go clock.Run(ctx)

	srv := &ctl.Server{
		Registry:  reg,
		Publisher: pub,
		Clock:     clock.Status,
		Reload: func(opts registry.Options) error {
			reg.SetOptions(opts)
			sched.Stop()
			sched.Start(ctx)
			slog.Info("Options reloaded.", "level", opts.Level, "log_freq", opts.LogFreq, "lifetime", opts.Lifetime)
			return nil
		},
	}

	sched.Start(ctx)
	defer sched.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(ctx, socketPath) })

	slog.Info("Statistics engine started.", "level", cfg.Level, "log_freq", cfg.LogFreq, "lifetime", cfg.Lifetime)
	return g.Wait()
}
