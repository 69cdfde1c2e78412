package async

import (
	"context"
	"time"

	"github.com/lexatlas/toc-extractor/internal/observability"
	"github.com/lexatlas/toc-extractor/internal/storage"
)

// Evictor periodically removes job records older than the retention window.
type Evictor struct {
	repo      *storage.JobRepository
	logger    *observability.Logger
	retention time.Duration
	interval  time.Duration
}

// NewEvictor creates an evictor. Zero durations fall back to a 24h retention
// swept every 10 minutes.
func NewEvictor(repo *storage.JobRepository, logger *observability.Logger, retention, interval time.Duration) *Evictor {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Evictor{
		repo:      repo,
		logger:    logger.WithOperation("evictor"),
		retention: retention,
		interval:  interval,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (e *Evictor) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Info().
		Dur("retention", e.retention).
		Dur("interval", e.interval).
		Msg("starting job eviction sweeps")

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("stopping job eviction sweeps")
			return
		case <-ticker.C:
			e.Sweep(ctx)
		}
	}
}

// Sweep runs one eviction pass and returns the number of records removed.
func (e *Evictor) Sweep(ctx context.Context) (int64, error) {
	deleted, err := e.repo.DeleteOlderThan(ctx, e.retention)
	if err != nil {
		e.logger.Error().Err(err).Msg("job eviction sweep failed")
		return 0, err
	}
	if deleted > 0 {
		e.logger.Info().
			Int64("deleted", deleted).
			Dur("retention", e.retention).
			Msg("evicted expired job records")
	}
	return deleted, nil
}
