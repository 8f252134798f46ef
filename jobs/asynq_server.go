package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/storebridge/storebridge/internal/notify"
	"github.com/storebridge/storebridge/internal/orders"
	"github.com/storebridge/storebridge/internal/platform/httpx"
)

// Worker wraps the Asynq server and optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
	// OrderRetryDelay is the fixed wait between order creation attempts.
	OrderRetryDelay time.Duration
	Handlers        []TaskHandler
	Cron            []CronRegistration
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueCritical: 6,
			QueueDefault:  3,
		},
		RetryDelayFunc: retryDelay(cfg.OrderRetryDelay),
		Logger:         slogAdapter{logger: logger},
	})
	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			if _, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, fmt.Errorf("register %s: %w", entry.Task.Type(), err)
			}
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: logger}, nil
}

// retryDelay keeps order creation on a fixed schedule and leaves other
// tasks on asynq's exponential backoff.
func retryDelay(orderDelay time.Duration) asynq.RetryDelayFunc {
	return func(n int, err error, t *asynq.Task) time.Duration {
		if t.Type() == TaskOrderCreate && orderDelay > 0 {
			return orderDelay
		}
		return asynq.DefaultRetryDelayFunc(n, err, t)
	}
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	w.logger.Info("worker started")
	select {
	case <-ctx.Done():
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}

// Client submits jobs to the queue.
type Client struct {
	client        *asynq.Client
	tasks         taskStore
	orderAttempts int
}

// taskStore is the part of asynq.Inspector used to recycle finished tasks.
type taskStore interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
	Close() error
}

// NewClient constructs an Asynq client. orderAttempts bounds deliveries of
// an order creation task.
func NewClient(redisOpts asynq.RedisClientOpt, orderAttempts int) *Client {
	if orderAttempts < 1 {
		orderAttempts = 1
	}
	return &Client{
		client:        asynq.NewClient(redisOpts),
		tasks:         asynq.NewInspector(redisOpts),
		orderAttempts: orderAttempts,
	}
}

// EnqueueSendEmail enqueues a send-email task.
func (c *Client) EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error) {
	task, err := NewSendEmailTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(5))
}

// Send implements notify.Mailer by queueing the message.
func (c *Client) Send(ctx context.Context, msg notify.Message) error {
	_, err := c.EnqueueSendEmail(ctx, SendEmailPayload{To: msg.To, Subject: msg.Subject, Body: msg.Body})
	return err
}

// DispatchOrder queues order creation. An order already waiting in the
// queue is reported as such rather than queued twice; an order whose
// previous task failed for good and sits in the archive is queued again.
func (c *Client) DispatchOrder(ctx context.Context, req orders.CreateRequest) (string, error) {
	id := req.OrderID
	if id == 0 && req.Payload != nil {
		id = req.Payload.OrderID
	}
	task, err := NewOrderCreateTask(OrderCreatePayload{OrderID: id, Order: req.Payload}, c.orderAttempts-1)
	if err != nil {
		return "rejected", err
	}
	_, err = c.client.EnqueueContext(ctx, task)
	if err == nil {
		return "queued", nil
	}
	if !errors.Is(err, asynq.ErrTaskIDConflict) {
		return "failed", err
	}

	taskID := orderCreateTaskID(id)
	info, err := c.tasks.GetTaskInfo(QueueCritical, taskID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) {
			return "already_queued", nil
		}
		return "failed", fmt.Errorf("jobs: inspect %s: %w", taskID, err)
	}
	if info.State != asynq.TaskStateArchived && info.State != asynq.TaskStateCompleted {
		return "already_queued", nil
	}
	if err := c.tasks.DeleteTask(QueueCritical, taskID); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		return "failed", fmt.Errorf("jobs: drop finished %s: %w", taskID, err)
	}
	if _, err := c.client.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return "already_queued", nil
		}
		return "failed", err
	}
	return "requeued", nil
}

// Trigger enqueues a scheduled job by task type with default payload.
func (c *Client) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	var task *asynq.Task
	var err error
	switch name {
	case TaskInventorySync:
		task, err = NewInventorySyncTask(0, 0)
	case TaskOrderStatusSweep:
		task, err = NewStatusSweepTask(0)
	default:
		return nil, fmt.Errorf("jobs: unsupported job %q", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// Close releases client resources.
func (c *Client) Close() error {
	return errors.Join(c.client.Close(), c.tasks.Close())
}

// QueueStats summarises the state of one queue.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// QueueInspector reads queue state.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Stats reports every queue the worker consumes. Queues that were never
// used are reported empty.
func Stats(inspector QueueInspector) ([]QueueStats, error) {
	out := make([]QueueStats, 0, 2)
	for _, q := range []string{QueueCritical, QueueDefault} {
		stats := QueueStats{Queue: q}
		info, err := inspector.GetQueueInfo(q)
		if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, err
		}
		if info != nil {
			stats.Pending = info.Pending
			stats.Active = info.Active
			stats.Scheduled = info.Scheduled
			stats.Retry = info.Retry
			stats.Archived = info.Archived
		}
		out = append(out, stats)
	}
	return out, nil
}

// Control combines enqueueing and queue inspection for operators.
type Control struct {
	client    *Client
	inspector QueueInspector
}

// NewControl constructs a Control.
func NewControl(client *Client, inspector QueueInspector) *Control {
	return &Control{client: client, inspector: inspector}
}

// Trigger enqueues a scheduled job now and returns the task id.
func (c *Control) Trigger(ctx context.Context, name string) (string, error) {
	info, err := c.client.Trigger(ctx, name)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// Stats reports queue depths.
func (c *Control) Stats(_ context.Context) ([]QueueStats, error) {
	return Stats(c.inspector)
}

// Handler exposes HTTP endpoints for job observability.
type Handler struct {
	inspector QueueInspector
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints.
func NewHandler(inspector QueueInspector, logger *slog.Logger) *Handler {
	return &Handler{inspector: inspector, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		httpx.OK(w, []QueueStats{{Queue: QueueCritical}, {Queue: QueueDefault}})
		return
	}
	stats, err := Stats(h.inspector)
	if err != nil {
		h.logger.Warn("jobs health", slog.Any("error", err))
		httpx.Fail(w, http.StatusServiceUnavailable, "queue unavailable")
		return
	}
	httpx.OK(w, stats)
}

// slogAdapter routes asynq's internal logging through slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Debug(args ...any) { a.logger.Debug(fmt.Sprint(args...)) }
func (a slogAdapter) Info(args ...any)  { a.logger.Info(fmt.Sprint(args...)) }
func (a slogAdapter) Warn(args ...any)  { a.logger.Warn(fmt.Sprint(args...)) }
func (a slogAdapter) Error(args ...any) { a.logger.Error(fmt.Sprint(args...)) }
func (a slogAdapter) Fatal(args ...any) {
	a.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
