package publish

import (
	"context"
	"log/slog"
	"time"

	"tally/internal/check"
	"tally/registry"
)

// Runner is the publish pass as seen by the scheduler.
type Runner interface {
	Run() Result
}

// Scheduler drives the publisher with a single-shot timer that rearms
// after every pass. It owns its goroutine lifecycle via Start/Stop, and
// never fires after Stop returns.
type Scheduler struct {
	Registry  *registry.Registry
	Publisher Runner

	cancel context.CancelFunc
	done   chan struct{}
}

// Start arms the timer and launches the scheduling loop.
func (s *Scheduler) Start(ctx context.Context) {
	check.Assert(s.Registry != nil, "Scheduler.Start: Registry must not be nil")
	check.Assert(s.Publisher != nil, "Scheduler.Start: Publisher must not be nil")

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.run(ctx)
	}()
}

// Stop tears down the armed timer and waits for the loop to exit.
// Restarting after Stop rearms from the current options.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Scheduler) run(ctx context.Context) {
	timer := time.NewTimer(s.Frequency())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			res := s.Publisher.Run()
			if res.Dropped > 0 {
				slog.Debug("Pruned expired dynamic counters.", "dropped", res.Dropped)
			}
			timer.Reset(s.Frequency())
		}
	}
}

// Frequency returns the effective cadence: the configured publish
// frequency, or half the dynamic-counter lifetime (at least a second)
// when publishing is disabled so pruning still runs.
func (s *Scheduler) Frequency() time.Duration {
	opts := s.Registry.Options()
	if opts.LogFreq > 0 {
		return opts.LogFreq
	}
	freq := opts.Lifetime / 2
	if freq < time.Second {
		freq = time.Second
	}
	return freq
}
