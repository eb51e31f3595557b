package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultOverdueSchedule sweeps every five minutes.
const DefaultOverdueSchedule = "@every 5m"

// OverdueSweeper marks Confirmed meetings that have ended as Overdue.
type OverdueSweeper interface {
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
}

// OverdueJob is a cron.Job running one sweep per tick.
type OverdueJob struct {
	sweeper OverdueSweeper
	now     func() time.Time
	timeout time.Duration
	logger  *zap.Logger
}

// NewOverdueJob wraps sweeper. Each run is bounded by timeout when positive.
func NewOverdueJob(sweeper OverdueSweeper, now func() time.Time, timeout time.Duration, logger *zap.Logger) *OverdueJob {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverdueJob{sweeper: sweeper, now: now, timeout: timeout, logger: logger.With(zap.String("job", "overdue"))}
}

// Run implements cron.Job.
func (j *OverdueJob) Run() {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}
	_, _ = j.RunOnce(ctx)
}

// RunOnce performs a single sweep at the current time.
func (j *OverdueJob) RunOnce(ctx context.Context) (int, error) {
	started := j.now()
	marked, err := j.sweeper.MarkOverdue(ctx, started)
	if err != nil {
		j.logger.Error("overdue sweep failed", zap.Int("marked", marked), zap.Error(err))
		return marked, err
	}
	if marked > 0 {
		j.logger.Info("meetings marked overdue", zap.Int("marked", marked), zap.Time("at", started))
	}
	return marked, nil
}
