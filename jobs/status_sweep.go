package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/storebridge/storebridge/internal/jobs"
	"github.com/storebridge/storebridge/internal/orders"
)

// StatusSweeper reconciles order statuses over a window.
type StatusSweeper interface {
	SweepStatuses(ctx context.Context, from, to time.Time) (*orders.SweepResult, error)
}

// StatusSweepJob runs the scheduled status sweep.
type StatusSweepJob struct {
	sweeper StatusSweeper
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewStatusSweepJob constructs the orders:status-sweep handler.
func NewStatusSweepJob(sweeper StatusSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatusSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusSweepJob{sweeper: sweeper, logger: logger, metrics: metrics, clock: func() time.Time { return time.Now().UTC() }}
}

// Handle processes TaskOrderStatusSweep tasks.
func (j *StatusSweepJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.sweeper == nil {
		return errors.New("status sweep job: sweeper not configured")
	}
	var payload StatusSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("status sweep job: %v: %w", err, asynq.SkipRetry)
		}
	}
	from, to, err := orders.SweepWindow("", "", payload.Days, j.clock())
	if err != nil {
		return fmt.Errorf("status sweep job: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.metrics.Track(TaskOrderStatusSweep)
	defer func() { err = tracker.End(err) }()

	res, err := j.sweeper.SweepStatuses(ctx, from, to)
	if err != nil {
		j.logger.Error("status sweep task failed", slog.Any("error", err))
		return err
	}
	j.metrics.AddOrders("shipped", res.Updated())
	j.logger.Info("status sweep task done",
		slog.String("from", res.From),
		slog.String("to", res.To),
		slog.Int("checked", res.Checked),
		slog.Int("updated", res.Updated()),
		slog.Int("failed", len(res.Failures)))
	return nil
}
