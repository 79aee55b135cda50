package jobs

import (
	"context"
	"fmt"

	"github.com/epiwatch/covidtrack/internal/ingest"
	"github.com/epiwatch/covidtrack/pkg/logger"
)

// RefreshJobName is the registered name of the series refresh job,
// used by the manual-refresh API endpoint.
const RefreshJobName = "series_refresh"

// RefreshJob keeps the series current on each tick: a full backfill
// pass to catch any gaps, then live reconciliation of today's
// snapshot. The scheduler guarantees ticks never overlap.
type RefreshJob struct {
	backfiller *ingest.Backfiller
	reconciler *ingest.Reconciler
	schedule   string
	logger     *logger.Logger
}

// NewRefreshJob creates a refresh job with the given cron schedule.
func NewRefreshJob(b *ingest.Backfiller, r *ingest.Reconciler, schedule string, log *logger.Logger) *RefreshJob {
	return &RefreshJob{
		backfiller: b,
		reconciler: r,
		schedule:   schedule,
		logger:     log,
	}
}

// Name returns the job name.
func (j *RefreshJob) Name() string {
	return RefreshJobName
}

// Schedule returns the cron schedule expression.
func (j *RefreshJob) Schedule() string {
	return j.schedule
}

// Run executes one refresh tick. A backfill pass is fault-isolated
// per date and never fails as a whole short of cancellation; a
// reconciliation failure is reported through the job history but is
// not fatal to the process.
func (j *RefreshJob) Run(ctx context.Context) error {
	result, err := j.backfiller.Run(ctx)
	if err != nil {
		return fmt.Errorf("backfill pass: %w", err)
	}

	if result.Failed > 0 {
		j.logger.WithField("failed_dates", result.Failed).Warn("Backfill pass left gaps, will retry next tick")
	}

	if err := j.reconciler.Run(ctx); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	return nil
}
