package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/storebridge/storebridge/internal/jobs"
	"github.com/storebridge/storebridge/internal/orders"
)

// OrderCreator is the order service surface used by the job.
type OrderCreator interface {
	Create(ctx context.Context, req orders.CreateRequest) (*orders.CreateResult, error)
	ReportFailure(ctx context.Context, req orders.CreateRequest, attempts int, cause error)
}

// OrderCreateJob runs one creation attempt per delivery; asynq owns the
// retry schedule.
type OrderCreateJob struct {
	orders  OrderCreator
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	// retryInfo reads the delivery counters; replaced in tests.
	retryInfo func(ctx context.Context) (retried, maxRetry int)
}

// NewOrderCreateJob constructs the order:create handler.
func NewOrderCreateJob(svc OrderCreator, logger *slog.Logger, metrics *jobmetrics.Metrics) *OrderCreateJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderCreateJob{orders: svc, logger: logger, metrics: metrics, retryInfo: asynqRetryInfo}
}

func asynqRetryInfo(ctx context.Context) (int, int) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return retried, maxRetry
}

// Handle processes TaskOrderCreate tasks. Final failures (non-retryable, or
// the last allowed attempt) are reported once and not retried.
func (j *OrderCreateJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.orders == nil {
		return errors.New("order create job: service not configured")
	}
	var payload OrderCreatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.OrderID <= 0 {
		return fmt.Errorf("order create job: bad payload: %w", asynq.SkipRetry)
	}
	tracker := j.metrics.Track(TaskOrderCreate)
	defer func() { err = tracker.End(err) }()

	req := orders.CreateRequest{OrderID: payload.OrderID, Payload: payload.Order}
	retried, maxRetry := j.retryInfo(ctx)
	attempt := retried + 1
	logger := j.logger.With(slog.Int64("order_id", payload.OrderID), slog.Int("attempt", attempt))

	res, err := j.orders.Create(ctx, req)
	if err == nil {
		outcome := "created"
		if res.AlreadyExists {
			outcome = "exists"
		}
		j.metrics.AddOrders(outcome, 1)
		logger.Info("order create task done", slog.String("sales_order_id", res.SalesOrderID), slog.String("outcome", outcome))
		return nil
	}

	if !orders.Retryable(err) || retried >= maxRetry {
		j.metrics.AddOrders("failed", 1)
		logger.Error("order create task failed", slog.Any("error", err))
		j.orders.ReportFailure(ctx, req, attempt, err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	logger.Warn("order create attempt failed, will retry", slog.Any("error", err))
	return err
}
