package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/FACorreiaa/go-complaint-auth/config"
)

// Cleaner deletes pending, unverified accounts created more than olderThan ago.
type Cleaner interface {
	CleanupPendingUsers(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CleanupJob sweeps abandoned registrations on a fixed interval.
type CleanupJob struct {
	cleaner    Cleaner
	logger     *slog.Logger
	interval   time.Duration
	pendingAge time.Duration
	timeout    time.Duration
}

func NewCleanupJob(cleaner Cleaner, cfg config.CleanupConfig, logger *slog.Logger) *CleanupJob {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	age := cfg.PendingAge
	if age <= 0 {
		age = 24 * time.Hour
	}
	return &CleanupJob{
		cleaner:    cleaner,
		logger:     logger.With(slog.String("worker", "CleanupJob")),
		interval:   interval,
		pendingAge: age,
		timeout:    time.Minute,
	}
}

// RunOnce performs a single sweep and returns the number of deleted accounts.
func (j *CleanupJob) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	return j.cleaner.CleanupPendingUsers(ctx, j.pendingAge)
}

// Start runs the sweep loop until ctx is cancelled. Blocking call.
func (j *CleanupJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	j.logger.InfoContext(ctx, "Cleanup worker started",
		slog.Duration("interval", j.interval),
		slog.Duration("pendingAge", j.pendingAge))

	for {
		select {
		case <-ctx.Done():
			j.logger.InfoContext(context.Background(), "Cleanup worker stopping")
			return
		case <-ticker.C:
			n, err := j.RunOnce(ctx)
			if err != nil {
				j.logger.ErrorContext(ctx, "Cleanup sweep failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				j.logger.InfoContext(ctx, "Cleanup sweep removed pending accounts", slog.Int64("deleted", n))
			}
		}
	}
}
