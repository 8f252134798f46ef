package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/storebridge/storebridge/internal/jobs"
	"github.com/storebridge/storebridge/internal/notify"
	"github.com/storebridge/storebridge/internal/orders"
	"github.com/storebridge/storebridge/internal/threedcart"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubCreator struct {
	err      error
	result   *orders.CreateResult
	calls    int
	reported []int
}

func (s *stubCreator) Create(context.Context, orders.CreateRequest) (*orders.CreateResult, error) {
	s.calls++
	return s.result, s.err
}

func (s *stubCreator) ReportFailure(_ context.Context, _ orders.CreateRequest, attempts int, _ error) {
	s.reported = append(s.reported, attempts)
}

func orderTask(t *testing.T, id int64) *asynq.Task {
	t.Helper()
	task, err := NewOrderCreateTask(OrderCreatePayload{OrderID: id}, 2)
	require.NoError(t, err)
	return task
}

func newOrderJob(creator OrderCreator, retried, maxRetry int) *OrderCreateJob {
	job := NewOrderCreateJob(creator, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.retryInfo = func(context.Context) (int, int) { return retried, maxRetry }
	return job
}

func TestOrderCreateJobSuccess(t *testing.T) {
	creator := &stubCreator{result: &orders.CreateResult{OrderID: 1, SalesOrderID: "so-1"}}
	err := newOrderJob(creator, 0, 2).Handle(context.Background(), orderTask(t, 1))
	require.NoError(t, err)
	require.Empty(t, creator.reported)
}

func TestOrderCreateJobRetriesTransientFailure(t *testing.T) {
	creator := &stubCreator{err: errors.New("connection reset")}
	err := newOrderJob(creator, 0, 2).Handle(context.Background(), orderTask(t, 1))
	require.Error(t, err)
	require.False(t, errors.Is(err, asynq.SkipRetry))
	require.Empty(t, creator.reported)
}

func TestOrderCreateJobReportsOnLastAttempt(t *testing.T) {
	creator := &stubCreator{err: errors.New("connection reset")}
	err := newOrderJob(creator, 2, 2).Handle(context.Background(), orderTask(t, 1))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Equal(t, []int{3}, creator.reported)
}

func TestOrderCreateJobStopsOnFinalError(t *testing.T) {
	creator := &stubCreator{err: &orders.CustomerNotFoundError{OrderID: 1}}
	err := newOrderJob(creator, 0, 2).Handle(context.Background(), orderTask(t, 1))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Equal(t, []int{1}, creator.reported)
}

func TestOrderCreateJobRejectsBadPayload(t *testing.T) {
	creator := &stubCreator{}
	err := newOrderJob(creator, 0, 2).Handle(context.Background(), asynq.NewTask(TaskOrderCreate, []byte(`{`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, creator.calls)
}

func TestMailJobSends(t *testing.T) {
	var sent []notify.Message
	mailer := notify.MailerFunc(func(_ context.Context, msg notify.Message) error {
		sent = append(sent, msg)
		return nil
	})
	task, err := NewSendEmailTask(SendEmailPayload{To: []string{"ops@example.com"}, Subject: "hi", Body: "body"})
	require.NoError(t, err)

	job := NewMailJob(mailer, quietLogger(), nil)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, sent, 1)
	require.Equal(t, "hi", sent[0].Subject)

	empty, err := NewSendEmailTask(SendEmailPayload{Subject: "nobody"})
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), empty), asynq.SkipRetry)
}

func TestRetryDelayFixedForOrders(t *testing.T) {
	fn := retryDelay(5 * time.Second)
	require.Equal(t, 5*time.Second, fn(3, errors.New("x"), asynq.NewTask(TaskOrderCreate, nil)))
	require.Equal(t, 5*time.Second, fn(0, errors.New("x"), asynq.NewTask(TaskOrderCreate, nil)))
}

func TestDispatchOrderDedupesPendingTasks(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()}, 3)
	defer func() { _ = client.Close() }()

	req := orders.CreateRequest{Payload: &threedcart.Order{OrderID: 42}}
	disposition, err := client.DispatchOrder(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "queued", disposition)

	disposition, err = client.DispatchOrder(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "already_queued", disposition)

	_, err = client.Trigger(context.Background(), "nope")
	require.Error(t, err)
}

func TestDispatchOrderRequeuesArchivedTask(t *testing.T) {
	mr := miniredis.RunT(t)
	opts := asynq.RedisClientOpt{Addr: mr.Addr()}
	client := NewClient(opts, 3)
	defer func() { _ = client.Close() }()
	inspector := asynq.NewInspector(opts)
	defer func() { _ = inspector.Close() }()

	req := orders.CreateRequest{OrderID: 77}
	disposition, err := client.DispatchOrder(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "queued", disposition)

	// A final failure leaves the task archived under the same id.
	require.NoError(t, inspector.ArchiveTask(QueueCritical, "order:create:77"))

	disposition, err = client.DispatchOrder(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "requeued", disposition)

	info, err := inspector.GetTaskInfo(QueueCritical, "order:create:77")
	require.NoError(t, err)
	require.Equal(t, asynq.TaskStatePending, info.State)

	disposition, err = client.DispatchOrder(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "already_queued", disposition)
}

type stubInspector map[string]*asynq.QueueInfo

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	info, ok := s[queue]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

func TestJobsHealthReportsQueues(t *testing.T) {
	h := NewHandler(stubInspector{QueueDefault: {Queue: QueueDefault, Pending: 4, Retry: 1}}, quietLogger())
	rec := httptest.NewRecorder()
	h.health(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"success":true,"data":[
		{"queue":"critical","pending":0,"active":0,"scheduled":0,"retry":0,"archived":0},
		{"queue":"default","pending":4,"active":0,"scheduled":0,"retry":1,"archived":0}]}`, rec.Body.String())
}
