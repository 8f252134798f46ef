// Package webhooks receives inbound notifications from the commerce
// platform, the CRM and the ERP and dispatches them to the sync services.
package webhooks

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/storebridge/storebridge/internal/hubspot"
	"github.com/storebridge/storebridge/internal/netsuite"
	"github.com/storebridge/storebridge/internal/orders"
	"github.com/storebridge/storebridge/internal/platform/httpx"
	"github.com/storebridge/storebridge/internal/shared"
	"github.com/storebridge/storebridge/internal/threedcart"
)

const (
	maxWebhookBody  = 2 << 20
	dedupeModule    = "hubspot-webhook"
	orderKeyHeader  = "X-Webhook-Key"
	erpSecretHeader = "X-Webhook-Secret"
)

// OrderDispatcher hands a commerce order to creation, queued or inline.
// It returns a short disposition such as "queued" or "created".
type OrderDispatcher interface {
	DispatchOrder(ctx context.Context, req orders.CreateRequest) (string, error)
}

// DispatchFunc adapts a function to OrderDispatcher.
type DispatchFunc func(ctx context.Context, req orders.CreateRequest) (string, error)

// DispatchOrder implements OrderDispatcher.
func (f DispatchFunc) DispatchOrder(ctx context.Context, req orders.CreateRequest) (string, error) {
	return f(ctx, req)
}

// InlineDispatcher runs creation with retries inside the request.
func InlineDispatcher(svc *orders.Service) OrderDispatcher {
	return DispatchFunc(func(ctx context.Context, req orders.CreateRequest) (string, error) {
		res, err := svc.CreateWithRetry(ctx, req)
		if err != nil {
			return "failed", err
		}
		if res.AlreadyExists {
			return "exists", nil
		}
		return "created", nil
	})
}

// Contacts is the CRM surface used by the webhooks.
type Contacts interface {
	GetObject(ctx context.Context, objectType, id string, properties []string) (*hubspot.Object, error)
	UpdateObject(ctx context.Context, objectType, id string, properties map[string]string) error
	FindContactByEmail(ctx context.Context, email string, properties []string) (*hubspot.Object, error)
}

// Customers is the ERP surface used by the webhooks.
type Customers interface {
	FindCustomerByEmail(ctx context.Context, email string) (*netsuite.Customer, error)
	UpdateCustomer(ctx context.Context, id string, fields map[string]any) error
}

// Deduper drops repeated event ids.
type Deduper interface {
	Claim(ctx context.Context, module, key string) error
	Release(ctx context.Context, module, key string) error
}

// Config holds the shared secrets.
type Config struct {
	ThreeDCartSecret string
	HubSpotSecret    string
	NetSuiteSecret   string
}

// Handler serves the webhook endpoints.
type Handler struct {
	cfg        Config
	dispatcher OrderDispatcher
	contacts   Contacts
	customers  Customers
	dedupe     Deduper
	fields     *FieldMap
	logger     *slog.Logger
	observer   Observer
	now        func() time.Time
}

// Observer counts webhook events by source and result.
type Observer interface {
	ObserveWebhook(source, result string, count int)
}

// NewHandler constructs a Handler. dedupe may be nil.
func NewHandler(cfg Config, dispatcher OrderDispatcher, contacts Contacts, customers Customers, dedupe Deduper, fields *FieldMap, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cfg:        cfg,
		dispatcher: dispatcher,
		contacts:   contacts,
		customers:  customers,
		dedupe:     dedupe,
		fields:     fields,
		logger:     logger,
		now:        time.Now,
	}
}

// WithObserver attaches event counters to the handler.
func (h *Handler) WithObserver(o Observer) *Handler {
	h.observer = o
	return h
}

func (h *Handler) observe(source, result string, count int) {
	if h.observer != nil {
		h.observer.ObserveWebhook(source, result, count)
	}
}

// MountRoutes registers webhook routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/3dcart/orders", h.threeDCartOrders)
	r.Post("/hubspot", h.hubSpotEvents)
	r.Post("/netsuite/hubspot", h.netSuiteToHubSpot)
}

type dispatchOutcome struct {
	OrderID     int64  `json:"order_id"`
	Disposition string `json:"disposition"`
	Error       string `json:"error,omitempty"`
}

func (h *Handler) threeDCartOrders(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		key = r.Header.Get(orderKeyHeader)
	}
	if !secretMatches(h.cfg.ThreeDCartSecret, key) {
		httpx.Fail(w, http.StatusUnauthorized, "invalid webhook key")
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := threedcart.DecodeOrders(body)
	if err != nil || len(list) == 0 {
		httpx.Fail(w, http.StatusBadRequest, "expected an order or an array of orders")
		return
	}

	outcomes := make([]dispatchOutcome, 0, len(list))
	for i := range list {
		order := list[i]
		if order.OrderID <= 0 {
			outcomes = append(outcomes, dispatchOutcome{Disposition: "rejected", Error: "missing OrderID"})
			continue
		}
		disposition, err := h.dispatcher.DispatchOrder(r.Context(), orders.CreateRequest{OrderID: order.OrderID, Payload: &order})
		out := dispatchOutcome{OrderID: order.OrderID, Disposition: disposition}
		if err != nil {
			h.logger.Error("order webhook dispatch failed", slog.Int64("order_id", order.OrderID), slog.Any("error", err))
			out.Error = err.Error()
		}
		outcomes = append(outcomes, out)
	}
	for _, out := range outcomes {
		h.observe("3dcart", out.Disposition, 1)
	}
	httpx.OK(w, outcomes)
}

type eventSummary struct {
	Received   int `json:"received"`
	Applied    int `json:"applied"`
	Ignored    int `json:"ignored"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

func (h *Handler) hubSpotEvents(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if h.cfg.HubSpotSecret == "" {
		httpx.Fail(w, http.StatusServiceUnavailable, "webhook not configured")
		return
	}
	err = hubspot.VerifySignature(h.cfg.HubSpotSecret, r.Method, requestURL(r), body,
		r.Header.Get(hubspot.TimestampHeader), r.Header.Get(hubspot.SignatureHeader), h.now())
	if err != nil {
		h.logger.Warn("hubspot signature rejected", slog.Any("error", err))
		httpx.Fail(w, http.StatusUnauthorized, "invalid signature")
		return
	}
	events, err := DecodeEvents(body)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	summary := eventSummary{Received: len(events)}
	for _, ev := range events {
		logger := h.logger.With(slog.String("event_id", ev.EventID()), slog.String("subscription", ev.Subscription()))
		if h.dedupe != nil {
			if err := h.dedupe.Claim(r.Context(), dedupeModule, ev.EventID()); err != nil {
				if errors.Is(err, shared.ErrIdempotencyConflict) {
					summary.Duplicates++
					continue
				}
				logger.Warn("event dedupe unavailable", slog.Any("error", err))
			}
		}
		applied, err := h.applyEvent(r.Context(), ev)
		switch {
		case err != nil:
			summary.Failed++
			logger.Error("hubspot event failed", slog.Any("error", err))
			if h.dedupe != nil {
				_ = h.dedupe.Release(r.Context(), dedupeModule, ev.EventID())
			}
		case applied:
			summary.Applied++
		default:
			summary.Ignored++
		}
	}
	h.observe("hubspot", "applied", summary.Applied)
	h.observe("hubspot", "ignored", summary.Ignored)
	h.observe("hubspot", "duplicate", summary.Duplicates)
	h.observe("hubspot", "failed", summary.Failed)
	if summary.Failed > 0 {
		// A non-2xx answer makes the CRM redeliver; applied events are deduped.
		httpx.JSON(w, http.StatusBadGateway, httpx.Envelope{Success: false, Data: summary, Error: "some events failed"})
		return
	}
	httpx.OK(w, summary)
}

// applyEvent writes mapped contact property changes to the ERP customer
// with the contact's email. Other events are acknowledged.
func (h *Handler) applyEvent(ctx context.Context, ev Event) (bool, error) {
	change, ok := ev.(ContactPropertyChange)
	if !ok {
		return false, nil
	}
	field, ok := h.fields.NetSuiteField(change.Property)
	if !ok {
		return false, nil
	}
	contact, err := h.contacts.GetObject(ctx, hubspot.ObjectContacts, strconv.FormatInt(change.ObjectID, 10), []string{"email"})
	if err != nil {
		if errors.Is(err, hubspot.ErrObjectNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load contact %d: %w", change.ObjectID, err)
	}
	email := contact.Properties["email"]
	if email == "" {
		return false, nil
	}
	customer, err := h.customers.FindCustomerByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("find customer: %w", err)
	}
	if customer == nil {
		return false, nil
	}
	if err := h.customers.UpdateCustomer(ctx, customer.ID, map[string]any{field: change.Value}); err != nil {
		return false, fmt.Errorf("update customer %s: %w", customer.ID, err)
	}
	return true, nil
}

type contactUpdate struct {
	ContactID  string            `json:"contact_id"`
	Properties map[string]string `json:"properties"`
}

func (h *Handler) netSuiteToHubSpot(w http.ResponseWriter, r *http.Request) {
	if !secretMatches(h.cfg.NetSuiteSecret, r.Header.Get(erpSecretHeader)) {
		httpx.Fail(w, http.StatusUnauthorized, "invalid webhook secret")
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil || len(fields) == 0 {
		httpx.Fail(w, http.StatusBadRequest, "expected a JSON object of ERP fields")
		return
	}
	props := h.fields.ToHubSpot(fields)
	if len(props) == 0 {
		httpx.Fail(w, http.StatusBadRequest, "no mapped fields in payload")
		return
	}

	contactID := lookup(fields, h.fields.ContactIDField)
	if contactID == "" {
		email := lookup(fields, h.fields.EmailField)
		contact, err := h.contacts.FindContactByEmail(r.Context(), email, nil)
		if err != nil {
			h.logger.Error("contact search failed", slog.Any("error", err))
			httpx.Fail(w, http.StatusBadGateway, "contact search failed")
			return
		}
		if contact == nil {
			httpx.Fail(w, http.StatusNotFound, "no matching contact")
			return
		}
		contactID = contact.ID
	}
	if err := h.contacts.UpdateObject(r.Context(), hubspot.ObjectContacts, contactID, props); err != nil {
		if errors.Is(err, hubspot.ErrObjectNotFound) {
			httpx.Fail(w, http.StatusNotFound, "no matching contact")
			return
		}
		h.logger.Error("contact update failed", slog.String("contact_id", contactID), slog.Any("error", err))
		httpx.Fail(w, http.StatusBadGateway, "contact update failed")
		return
	}
	h.observe("netsuite", "applied", 1)
	h.logger.Info("contact updated from erp", slog.String("contact_id", contactID), slog.Int("properties", len(props)))
	httpx.OK(w, contactUpdate{ContactID: contactID, Properties: props})
}

// secretMatches compares in constant time. An unset secret matches nothing.
func secretMatches(expected, got string) bool {
	if expected == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

// readBody rejects bodies over maxWebhookBody instead of truncating them.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: limit is %d bytes", httpx.ErrTooLarge, tooLarge.Limit)
		}
		return nil, fmt.Errorf("%w: read body: %v", httpx.ErrValidation, err)
	}
	return body, nil
}

// requestURL rebuilds the URL the sender signed.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
