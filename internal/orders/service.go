// Package orders reconciles commerce orders with ERP sales orders: status
// write-back from ERP fulfilment and sales order creation.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/storebridge/storebridge/internal/netsuite"
	"github.com/storebridge/storebridge/internal/notify"
	"github.com/storebridge/storebridge/internal/shared"
	"github.com/storebridge/storebridge/internal/synclog"
	"github.com/storebridge/storebridge/internal/threedcart"
)

const (
	msgNotSynced     = "not synced"
	msgNoUpdate      = "no update needed"
	sweepPageSize    = 100
	sweepMaxPages    = 50
	defaultAttempts  = 3
	defaultRetryWait = 5 * time.Second
)

// Config tunes the service.
type Config struct {
	StoreParentID     string
	SubsidiaryID      string
	LocationID        string
	PassThroughGroups []int64
	// WritebackStatus marks created orders as Processing on the commerce side.
	WritebackStatus bool
	RetryAttempts   int
	RetryDelay      time.Duration
}

// Service implements order status sync and creation.
type Service struct {
	commerce  Commerce
	erp       ERP
	notifier  Notifier
	log       synclog.Log
	customers *CustomerResolver
	validate  *validator.Validate
	retry     shared.RetryPolicy
	cfg       Config
	logger    *slog.Logger
}

// NewService constructs a Service.
func NewService(commerce Commerce, erp ERP, notifier Notifier, log synclog.Log, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if log == nil {
		log = synclog.NewMemoryLog(0)
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	delay := cfg.RetryDelay
	if delay < 0 {
		delay = defaultRetryWait
	}
	return &Service{
		commerce:  commerce,
		erp:       erp,
		notifier:  notifier,
		log:       log,
		customers: NewCustomerResolver(erp, cfg.StoreParentID, cfg.SubsidiaryID, cfg.PassThroughGroups),
		validate:  validator.New(),
		retry:     shared.RetryPolicy{Attempts: attempts, Delay: delay, Retryable: Retryable},
		cfg:       cfg,
		logger:    logger,
	}
}

// RetryPolicy exposes the configured creation retry policy.
func (s *Service) RetryPolicy() shared.RetryPolicy {
	return s.retry
}

// SyncLog exposes the sync log for read endpoints.
func (s *Service) SyncLog() synclog.Log {
	return s.log
}

// SyncStatus copies ERP fulfilment onto the commerce order: when the ERP
// sales order carries tracking numbers and the commerce order is not yet
// shipped or cancelled, the order is marked Shipped with a tracking comment.
// The ERP record is never modified.
func (s *Service) SyncStatus(ctx context.Context, orderID int64) (*StatusResult, error) {
	logger := s.logger.With(slog.Int64("order_id", orderID))
	order, err := s.commerce.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("orders: fetch order %d: %w", orderID, err)
	}
	so, err := s.erp.FindSalesOrderByExternalID(ctx, ExternalID(orderID))
	if err != nil {
		return nil, fmt.Errorf("orders: find sales order for %d: %w", orderID, err)
	}

	result := &StatusResult{OrderID: orderID, PreviousStatus: order.OrderStatusID, Status: order.OrderStatusID}
	if so == nil {
		result.Message = msgNotSynced
		s.record(ctx, synclog.Entry{OrderID: orderID, Operation: synclog.OpStatus, Outcome: synclog.OutcomeNotSynced})
		return result, nil
	}
	result.Synced = true
	result.SalesOrderID = so.ID

	if len(so.TrackingNumbers) == 0 || order.OrderStatusID.Final() {
		result.Message = msgNoUpdate
		s.record(ctx, synclog.Entry{OrderID: orderID, Operation: synclog.OpStatus, Outcome: synclog.OutcomeNoop, SalesOrderID: so.ID})
		return result, nil
	}

	comment := "Tracking: " + strings.Join(so.TrackingNumbers, ", ")
	if err := s.commerce.UpdateOrderStatus(ctx, orderID, threedcart.StatusShipped, appendComment(order.InternalComments, comment)); err != nil {
		return nil, fmt.Errorf("orders: mark order %d shipped: %w", orderID, err)
	}
	result.Updated = true
	result.Status = threedcart.StatusShipped
	result.TrackingNumbers = so.TrackingNumbers
	logger.Info("order marked shipped", slog.String("sales_order_id", so.ID), slog.Int("tracking_numbers", len(so.TrackingNumbers)))
	s.record(ctx, synclog.Entry{OrderID: orderID, Operation: synclog.OpStatus, Outcome: synclog.OutcomeUpdated, SalesOrderID: so.ID, Message: comment})
	return result, nil
}

// SyncStatuses runs SyncStatus for each id. A failing order is recorded
// and does not stop the batch.
func (s *Service) SyncStatuses(ctx context.Context, orderIDs []int64) *BatchResult {
	batch := &BatchResult{Results: []StatusResult{}, Failures: []BatchFailure{}}
	for _, id := range orderIDs {
		if ctx.Err() != nil {
			batch.Failures = append(batch.Failures, BatchFailure{OrderID: id, Error: ctx.Err().Error()})
			continue
		}
		res, err := s.SyncStatus(ctx, id)
		if err != nil {
			s.logger.Error("order status sync failed", slog.Int64("order_id", id), slog.Any("error", err))
			batch.Failures = append(batch.Failures, BatchFailure{OrderID: id, Error: err.Error()})
			s.record(ctx, synclog.Entry{OrderID: id, Operation: synclog.OpStatus, Outcome: synclog.OutcomeFailed, Message: err.Error()})
			continue
		}
		batch.Results = append(batch.Results, *res)
	}
	return batch
}

// MarkProcessing sets the commerce status to Processing unless it already is.
func (s *Service) MarkProcessing(ctx context.Context, orderID int64) (*StatusResult, error) {
	order, err := s.commerce.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("orders: fetch order %d: %w", orderID, err)
	}
	result := &StatusResult{OrderID: orderID, PreviousStatus: order.OrderStatusID, Status: order.OrderStatusID}
	if order.OrderStatusID == threedcart.StatusProcessing {
		result.Message = msgNoUpdate
		return result, nil
	}
	if err := s.commerce.UpdateOrderStatus(ctx, orderID, threedcart.StatusProcessing, ""); err != nil {
		return nil, fmt.Errorf("orders: mark order %d processing: %w", orderID, err)
	}
	result.Updated = true
	result.Status = threedcart.StatusProcessing
	return result, nil
}

// SweepStatuses syncs every Processing order placed between from and to
// (inclusive dates).
func (s *Service) SweepStatuses(ctx context.Context, from, to time.Time) (*SweepResult, error) {
	if to.Before(from) {
		return nil, &ValidationError{Fields: []string{"window end is before start"}}
	}
	var ids []int64
	for page := 0; page < sweepMaxPages; page++ {
		batch, err := s.commerce.ListOrders(ctx, threedcart.OrderFilter{
			DateStart: threedcart.FormatDate(from),
			DateEnd:   threedcart.FormatDate(to),
			Status:    threedcart.StatusProcessing,
			Limit:     sweepPageSize,
			Offset:    page * sweepPageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("orders: list processing orders: %w", err)
		}
		for _, o := range batch {
			ids = append(ids, o.OrderID)
		}
		if len(batch) < sweepPageSize {
			break
		}
	}

	res := &SweepResult{
		From:        from.Format("2006-01-02"),
		To:          to.Format("2006-01-02"),
		Checked:     len(ids),
		BatchResult: *s.SyncStatuses(ctx, ids),
	}
	s.logger.Info("status sweep finished",
		slog.String("from", res.From), slog.String("to", res.To),
		slog.Int("checked", res.Checked), slog.Int("updated", res.Updated()), slog.Int("failed", len(res.Failures)))

	if s.notifier != nil && (res.Updated() > 0 || len(res.Failures) > 0) {
		report := notify.StatusSweepReport{From: from, To: to, Checked: res.Checked, Updated: res.Updated(), Failed: len(res.Failures)}
		for _, r := range res.Results {
			if r.Updated {
				report.Lines = append(report.Lines, fmt.Sprintf("%d shipped (%s)", r.OrderID, strings.Join(r.TrackingNumbers, ", ")))
			}
		}
		for _, f := range res.Failures {
			report.Lines = append(report.Lines, fmt.Sprintf("%d failed: %s", f.OrderID, f.Error))
		}
		if err := s.notifier.StatusSweep(ctx, report); err != nil {
			s.logger.Warn("status sweep notification not delivered", slog.Any("error", err))
		}
	}
	return res, nil
}

// Create makes a single attempt at creating the ERP sales order for an
// order. Re-running it for an order that already has a sales order yields
// AlreadyExists.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	order, err := s.resolveOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With(slog.Int64("order_id", order.OrderID))
	if err := s.validateOrder(order); err != nil {
		return nil, err
	}

	externalID := ExternalID(order.OrderID)
	existing, err := s.erp.FindSalesOrderByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("orders: find sales order for %d: %w", order.OrderID, err)
	}
	if existing != nil {
		logger.Info("sales order already exists", slog.String("sales_order_id", existing.ID))
		s.record(ctx, synclog.Entry{OrderID: order.OrderID, Operation: synclog.OpCreate, Outcome: synclog.OutcomeExists, SalesOrderID: existing.ID})
		return &CreateResult{OrderID: order.OrderID, SalesOrderID: existing.ID, AlreadyExists: true}, nil
	}

	// Items are checked before the customer so an order with unknown SKUs
	// leaves no ERP records behind.
	skus := orderSKUs(order)
	items, err := s.erp.LookupItems(ctx, skus)
	if err != nil {
		return nil, fmt.Errorf("orders: resolve items: %w", err)
	}
	var unknown []string
	for _, sku := range skus {
		if _, ok := items[sku]; !ok {
			unknown = append(unknown, "unknown sku "+sku)
		}
	}
	if len(unknown) > 0 {
		return nil, &ValidationError{OrderID: order.OrderID, Fields: unknown}
	}

	customerID, created, err := s.customers.Resolve(ctx, order)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Info("erp customer created", slog.String("customer_id", customerID))
	}

	in := buildSalesOrder(order, customerID, items, salesOrderConfig{SubsidiaryID: s.cfg.SubsidiaryID, LocationID: s.cfg.LocationID})
	soID, err := s.erp.CreateSalesOrder(ctx, in)
	if err != nil {
		if errors.Is(err, netsuite.ErrDuplicateExternalID) {
			res := &CreateResult{OrderID: order.OrderID, CustomerID: customerID, AlreadyExists: true}
			if so, findErr := s.erp.FindSalesOrderByExternalID(ctx, externalID); findErr == nil && so != nil {
				res.SalesOrderID = so.ID
			}
			logger.Info("erp rejected duplicate external id", slog.String("sales_order_id", res.SalesOrderID))
			s.record(ctx, synclog.Entry{OrderID: order.OrderID, Operation: synclog.OpCreate, Outcome: synclog.OutcomeExists, SalesOrderID: res.SalesOrderID})
			return res, nil
		}
		return nil, fmt.Errorf("orders: create sales order for %d: %w", order.OrderID, err)
	}

	res := &CreateResult{OrderID: order.OrderID, SalesOrderID: soID, CustomerID: customerID, CustomerCreated: created}
	logger.Info("sales order created", slog.String("sales_order_id", soID), slog.String("customer_id", customerID))

	if s.cfg.WritebackStatus && order.OrderStatusID != threedcart.StatusProcessing {
		if err := s.commerce.UpdateOrderStatus(ctx, order.OrderID, threedcart.StatusProcessing, ""); err != nil {
			logger.Warn("status write-back failed", slog.Any("error", err))
		} else {
			res.StatusWrittenBack = true
		}
	}

	s.record(ctx, synclog.Entry{OrderID: order.OrderID, Operation: synclog.OpCreate, Outcome: synclog.OutcomeCreated, SalesOrderID: soID})
	if s.notifier != nil {
		ev := notify.OrderCreatedEvent{
			OrderID:      order.OrderID,
			Invoice:      order.Invoice(),
			SalesOrderID: soID,
			CustomerID:   customerID,
			Total:        order.OrderAmount.StringFixed(2),
		}
		if err := s.notifier.OrderCreated(ctx, ev); err != nil {
			logger.Warn("success notification not delivered", slog.Any("error", err))
		}
	}
	return res, nil
}

// CreateWithRetry retries Create with the fixed policy, blocking between
// attempts. Final failures are reported through ReportFailure.
func (s *Service) CreateWithRetry(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	var result *CreateResult
	attempts, err := s.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		res, err := s.Create(ctx, req)
		if err != nil {
			s.logger.Warn("order creation attempt failed",
				slog.Int64("order_id", req.id()),
				slog.Int("attempt", attempt),
				slog.Bool("retryable", Retryable(err)),
				slog.Any("error", err))
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		s.ReportFailure(ctx, req, attempts, err)
		return nil, err
	}
	result.Attempts = attempts
	return result, nil
}

// ReportFailure records a final creation failure and notifies: a missing
// store customer asks for manual action, anything else sends the failure
// notification with the attempted payload.
func (s *Service) ReportFailure(ctx context.Context, req CreateRequest, attempts int, cause error) {
	orderID := req.id()
	if IsCustomerNotFound(cause) {
		s.record(ctx, synclog.Entry{OrderID: orderID, Operation: synclog.OpCreate, Outcome: synclog.OutcomeManualAction, Message: cause.Error()})
		if s.notifier != nil {
			if err := s.notifier.ManualAction(ctx, notify.ManualActionEvent{OrderID: orderID, Reason: cause.Error()}); err != nil {
				s.logger.Warn("manual action notification not delivered", slog.Int64("order_id", orderID), slog.Any("error", err))
			}
		}
		return
	}
	s.record(ctx, synclog.Entry{OrderID: orderID, Operation: synclog.OpCreate, Outcome: synclog.OutcomeFailed, Message: cause.Error()})
	if s.notifier == nil {
		return
	}
	var payload any = map[string]int64{"OrderID": orderID}
	if req.Payload != nil {
		payload = req.Payload
	}
	ref, err := s.notifier.OrderFailed(ctx, notify.OrderFailedEvent{OrderID: orderID, Attempts: attempts, Err: cause, Payload: payload})
	if err != nil {
		s.logger.Warn("failure notification not delivered", slog.Int64("order_id", orderID), slog.Any("error", err))
		return
	}
	s.logger.Error("order creation failed", slog.Int64("order_id", orderID), slog.String("reference", ref), slog.Any("error", cause))
}

func (s *Service) resolveOrder(ctx context.Context, req CreateRequest) (*threedcart.Order, error) {
	if isComplete(req.Payload) {
		return req.Payload, nil
	}
	id := req.id()
	if id <= 0 {
		return nil, &ValidationError{Fields: []string{"OrderID"}}
	}
	order, err := s.commerce.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("orders: fetch order %d: %w", id, err)
	}
	return order, nil
}

func (s *Service) validateOrder(order *threedcart.Order) error {
	err := s.validate.Struct(order)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{OrderID: order.OrderID, Fields: []string{err.Error()}}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", strings.TrimPrefix(fe.Namespace(), "Order."), fe.Tag()))
	}
	return &ValidationError{OrderID: order.OrderID, Fields: fields}
}

func (s *Service) record(ctx context.Context, e synclog.Entry) {
	if err := s.log.Record(ctx, e); err != nil {
		s.logger.Warn("sync log write failed", slog.Int64("order_id", e.OrderID), slog.Any("error", err))
	}
}

func (r CreateRequest) id() int64 {
	if r.OrderID > 0 {
		return r.OrderID
	}
	if r.Payload != nil {
		return r.Payload.OrderID
	}
	return 0
}
