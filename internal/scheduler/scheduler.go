package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CycleFunc is invoked once per polling interval.
type CycleFunc func(ctx context.Context, at time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
}

// Scheduler drives the periodic polling cycle. Cycle errors are logged
// and never terminate the loop; only context cancellation stops it.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the cycle function every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, cycle CycleFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := wait(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	// First cycle fires immediately unless aligned starts are requested;
	// the original behaviour is fetch-then-sleep, not sleep-then-fetch.
	next := time.Now().UTC()
	if s.opts.AlignToStart {
		next = s.nextAligned(next)
	}

	for {
		if delay := time.Until(next); delay > 0 {
			s.logger.Debug().Time("next_cycle", next).Msg("waiting for next cycle")
			if err := wait(ctx, delay); err != nil {
				return err
			}
		}

		at := next
		s.logger.Info().Time("cycle", at).Msg("executing poll cycle")

		if err := cycle(ctx, at); err != nil {
			s.logger.Error().Err(err).Time("cycle", at).Msg("poll cycle failed")
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		next = next.Add(s.opts.Interval)
		if now := time.Now().UTC(); next.Before(now) {
			// A slow cycle overran the interval; skip forward rather
			// than firing a burst of catch-up cycles.
			if s.opts.AlignToStart {
				next = s.nextAligned(now)
			} else {
				next = now.Add(s.opts.Interval)
			}
		}
	}
}

func (s *Scheduler) nextAligned(now time.Time) time.Time {
	aligned := now.Truncate(s.opts.Interval)
	if !aligned.After(now) {
		aligned = aligned.Add(s.opts.Interval)
	}
	return aligned
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
