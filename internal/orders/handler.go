package orders

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/storebridge/storebridge/internal/netsuite"
	"github.com/storebridge/storebridge/internal/platform/httpx"
	"github.com/storebridge/storebridge/internal/platform/remote"
	"github.com/storebridge/storebridge/internal/shared"
	"github.com/storebridge/storebridge/internal/synclog"
	"github.com/storebridge/storebridge/internal/threedcart"
)

const maxBatchOrders = 500

// Creator hands order creation off, inline or to the queue.
type Creator interface {
	CreateOrder(ctx context.Context, req CreateRequest) (*CreateResult, error)
}

// CreatorFunc adapts a function to Creator.
type CreatorFunc func(ctx context.Context, req CreateRequest) (*CreateResult, error)

// CreateOrder implements Creator.
func (f CreatorFunc) CreateOrder(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	return f(ctx, req)
}

// Handler exposes order operations on the admin API.
type Handler struct {
	svc      *Service
	commerce Commerce
	erp      ERP
	creator  Creator
	baseURL  string
	logger   *slog.Logger
}

// NewHandler constructs a Handler. A nil creator runs CreateWithRetry inline.
func NewHandler(svc *Service, creator Creator, adminBaseURL string, logger *slog.Logger) *Handler {
	if creator == nil {
		creator = CreatorFunc(svc.CreateWithRetry)
	}
	return &Handler{svc: svc, commerce: svc.commerce, erp: svc.erp, creator: creator, baseURL: adminBaseURL, logger: logger}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sync-status", h.syncBatch)
	r.Post("/status-sweep", h.sweep)
	r.Get("/failures", h.failures)
	r.Route("/{orderID}", func(r chi.Router) {
		r.Post("/sync-status", h.syncOne)
		r.Post("/create", h.create)
		r.Post("/mark-processing", h.markProcessing)
		r.Get("/reconcile", h.reconcile)
	})
}

type batchRequest struct {
	OrderIDs []int64 `json:"order_ids"`
}

type sweepRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Days int    `json:"days"`
}

type reconcileResponse struct {
	OrderID      int64                `json:"order_id"`
	ExternalID   string               `json:"external_id"`
	Order        *threedcart.Order    `json:"order"`
	SalesOrder   *netsuite.SalesOrder `json:"sales_order"`
	InSync       bool                 `json:"in_sync"`
	History      []synclog.Entry      `json:"history"`
	ReconcileURL string               `json:"reconcile_url"`
}

func (h *Handler) syncOne(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	res, err := h.svc.SyncStatus(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, res)
}

func (h *Handler) syncBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if len(req.OrderIDs) == 0 {
		httpx.Fail(w, http.StatusBadRequest, "order_ids is required")
		return
	}
	if len(req.OrderIDs) > maxBatchOrders {
		httpx.Fail(w, http.StatusBadRequest, "too many order_ids")
		return
	}
	httpx.OK(w, h.svc.SyncStatuses(r.Context(), req.OrderIDs))
}

func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	from, to, err := SweepWindow(req.From, req.To, req.Days, time.Now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.svc.SweepStatuses(r.Context(), from, to)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, res)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	h.logger.Info("manual order create",
		slog.Int64("order_id", id),
		slog.String("principal", shared.PrincipalFromContext(r.Context())))
	res, err := h.creator.CreateOrder(r.Context(), CreateRequest{OrderID: id})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, res)
}

func (h *Handler) markProcessing(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	res, err := h.svc.MarkProcessing(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, res)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	resp := reconcileResponse{OrderID: id, ExternalID: ExternalID(id), ReconcileURL: ReconcileURL(h.baseURL, id)}
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		order, err := h.commerce.GetOrder(ctx, id)
		resp.Order = order
		return err
	})
	g.Go(func() error {
		so, err := h.erp.FindSalesOrderByExternalID(ctx, resp.ExternalID)
		resp.SalesOrder = so
		return err
	})
	g.Go(func() error {
		history, err := h.svc.SyncLog().History(ctx, id)
		resp.History = history
		return err
	})
	if err := g.Wait(); err != nil {
		h.respondError(w, err)
		return
	}
	if resp.History == nil {
		resp.History = []synclog.Entry{}
	}
	resp.InSync = resp.SalesOrder != nil &&
		(len(resp.SalesOrder.TrackingNumbers) == 0 || resp.Order.OrderStatusID.Final())
	httpx.OK(w, resp)
}

func (h *Handler) failures(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	entries, err := h.svc.SyncLog().Failures(r.Context(), limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if entries == nil {
		entries = []synclog.Entry{}
	}
	httpx.OK(w, entries)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var cnf *CustomerNotFoundError
	switch {
	case errors.Is(err, threedcart.ErrOrderNotFound):
		httpx.Fail(w, http.StatusNotFound, "order not found")
	case errors.Is(err, httpx.ErrValidation):
		httpx.Fail(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &cnf):
		httpx.Fail(w, http.StatusUnprocessableEntity, cnf.Error())
	case remote.IsTransient(err), isRemoteStatus(err):
		h.logger.Warn("upstream call failed", slog.Any("error", err))
		httpx.Fail(w, http.StatusBadGateway, "upstream request failed")
	default:
		h.logger.Error("order request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func isRemoteStatus(err error) bool {
	var statusErr *remote.StatusError
	return errors.As(err, &statusErr)
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Fail(w, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return id, true
}

// ReconcileURL links an order to its admin reconciliation view.
func ReconcileURL(base string, orderID int64) string {
	return base + "/api/orders/" + strconv.FormatInt(orderID, 10) + "/reconcile"
}

// SweepWindow resolves a sweep window from explicit YYYY-MM-DD dates or a
// trailing number of days ending today. Days defaults to 7.
func SweepWindow(from, to string, days int, now time.Time) (time.Time, time.Time, error) {
	const layout = "2006-01-02"
	end := now.UTC().Truncate(24 * time.Hour)
	if to != "" {
		t, err := time.Parse(layout, to)
		if err != nil {
			return time.Time{}, time.Time{}, &ValidationError{Fields: []string{"to must be YYYY-MM-DD"}}
		}
		end = t
	}
	if from != "" {
		start, err := time.Parse(layout, from)
		if err != nil {
			return time.Time{}, time.Time{}, &ValidationError{Fields: []string{"from must be YYYY-MM-DD"}}
		}
		if end.Before(start) {
			return time.Time{}, time.Time{}, &ValidationError{Fields: []string{"to is before from"}}
		}
		return start, end, nil
	}
	if days <= 0 {
		days = 7
	}
	return end.AddDate(0, 0, -days), end, nil
}
