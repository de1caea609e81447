package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"crypto-tracker/internal/config"
	"crypto-tracker/internal/fetcher"
	"crypto-tracker/internal/model"
	"crypto-tracker/internal/scheduler"
	"crypto-tracker/internal/sink"
)

// Service orchestrates the fetch, retry, and persist cycle.
type Service struct {
	scheduler *scheduler.Scheduler
	fetcher   fetcher.SnapshotFetcher
	sink      sink.TabularDataSink
	logger    zerolog.Logger

	maxAttempts int
	backoff     time.Duration
	exponential bool

	// wait is swapped out in tests to avoid real sleeps.
	wait func(ctx context.Context, d time.Duration) error
}

// New constructs the tracking service.
func New(cfg *config.Config, sched *scheduler.Scheduler, snapshots fetcher.SnapshotFetcher, dataSink sink.TabularDataSink, logger zerolog.Logger) *Service {
	return &Service{
		scheduler:   sched,
		fetcher:     snapshots,
		sink:        dataSink,
		logger:      logger.With().Str("component", "service").Logger(),
		maxAttempts: cfg.Retry.MaxAttempts,
		backoff:     cfg.Retry.Backoff,
		exponential: cfg.Retry.Exponential,
		wait:        waitTimer,
	}
}

// Run begins the polling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessCycle)
}

// ProcessCycle 执行单轮抓取并写入 sink；失败只影响本轮。
func (s *Service) ProcessCycle(ctx context.Context, at time.Time) error {
	batch, err := s.fetchWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("fetch top assets: %w", err)
	}

	if batch.Len() == 0 {
		s.logger.Warn().Time("cycle", at).Msg("empty batch; sink untouched")
		return nil
	}

	if err := s.sink.Write(ctx, batch); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}

	s.logger.Info().Time("cycle", at).
		Int("assets", batch.Len()).
		Time("fetched_at", batch.FetchedAt).
		Msg("batch written")
	return nil
}

// fetchWithRetry attempts the fetch up to maxAttempts times. Retryable
// failures back off between attempts; permanent provider errors and
// context cancellation abort immediately.
func (s *Service) fetchWithRetry(ctx context.Context) (model.SnapshotBatch, error) {
	delay := s.backoff
	var lastErr error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		batch, err := s.fetcher.FetchTopAssets(ctx)
		if err == nil {
			return batch, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return model.SnapshotBatch{}, ctx.Err()
		}
		if !isRetryable(err) {
			s.logger.Error().Err(err).Int("attempt", attempt).Msg("permanent fetch error; skipping cycle")
			return model.SnapshotBatch{}, err
		}

		if attempt < s.maxAttempts {
			s.logger.Warn().Err(err).
				Int("attempt", attempt).
				Int("max_attempts", s.maxAttempts).
				Dur("backoff", delay).
				Msg("fetch failed; retrying")
			if delay > 0 {
				if err := s.wait(ctx, delay); err != nil {
					return model.SnapshotBatch{}, err
				}
			}
			if s.exponential {
				delay *= 2
			}
		}
	}

	s.logger.Error().Err(lastErr).Int("attempts", s.maxAttempts).Msg("retries exhausted")
	return model.SnapshotBatch{}, lastErr
}

func isRetryable(err error) bool {
	var pe *fetcher.ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	// network faults, timeouts, malformed payloads: assume transient
	return true
}

func waitTimer(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
