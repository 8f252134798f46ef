package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/storebridge/storebridge/internal/inventory"
	jobmetrics "github.com/storebridge/storebridge/internal/jobs"
)

// InventorySyncer runs one inventory sync.
type InventorySyncer interface {
	Sync(ctx context.Context, req inventory.Request) (*inventory.Summary, error)
}

// InventorySyncJob runs the scheduled inventory sync.
type InventorySyncJob struct {
	syncer  InventorySyncer
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewInventorySyncJob constructs the inventory:sync handler.
func NewInventorySyncJob(syncer InventorySyncer, logger *slog.Logger, metrics *jobmetrics.Metrics) *InventorySyncJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &InventorySyncJob{syncer: syncer, logger: logger, metrics: metrics}
}

// Handle processes TaskInventorySync tasks.
func (j *InventorySyncJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.syncer == nil {
		return errors.New("inventory sync job: syncer not configured")
	}
	var payload InventorySyncPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("inventory sync job: %v: %w", err, asynq.SkipRetry)
		}
	}
	tracker := j.metrics.Track(TaskInventorySync)
	defer func() { err = tracker.End(err) }()

	summary, err := j.syncer.Sync(ctx, inventory.Request{Limit: payload.Limit, Offset: payload.Offset})
	if summary != nil {
		j.metrics.AddInventory("synced", summary.Synced)
		j.metrics.AddInventory("skipped", summary.Skipped)
		j.metrics.AddInventory("error", summary.Errored)
		j.metrics.AddInventory("unchanged", summary.Unchanged)
	}
	if err != nil {
		j.logger.Error("inventory sync task failed", slog.Any("error", err))
		return err
	}
	j.logger.Info("inventory sync task done",
		slog.Int("total", summary.Total),
		slog.Int("synced", summary.Synced),
		slog.Int("errors", summary.Errored))
	return nil
}
