package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Recipients resolves who receives a notification type.
type Recipients interface {
	Recipients(ctx context.Context, t Type) ([]string, error)
}

// Notifier formats operational notifications and hands them to a Mailer.
// Delivery problems are logged and returned; callers treat them as
// non-fatal.
type Notifier struct {
	recipients   Recipients
	mailer       Mailer
	logger       *slog.Logger
	adminBaseURL string
}

// NewNotifier constructs a Notifier.
func NewNotifier(recipients Recipients, mailer Mailer, adminBaseURL string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		recipients:   recipients,
		mailer:       mailer,
		logger:       logger,
		adminBaseURL: strings.TrimRight(adminBaseURL, "/"),
	}
}

// OrderCreatedEvent describes a created ERP sales order.
type OrderCreatedEvent struct {
	OrderID      int64
	Invoice      string
	SalesOrderID string
	CustomerID   string
	Total        string
}

// OrderFailedEvent describes an order that could not be created.
type OrderFailedEvent struct {
	OrderID  int64
	Attempts int
	Err      error
	Payload  any
}

// ManualActionEvent asks a human to reconcile an order.
type ManualActionEvent struct {
	OrderID int64
	Reason  string
}

// InventoryReport is the outcome of one inventory sync run.
type InventoryReport struct {
	Total       int
	Synced      int
	Skipped     int
	Errored     int
	Unchanged   int
	Changes     []string
	SkippedSKUs []string
	Errors      []string
	Fatal       string
}

// StatusSweepReport is the outcome of a status sweep.
type StatusSweepReport struct {
	From    time.Time
	To      time.Time
	Checked int
	Updated int
	Failed  int
	Lines   []string
}

// OrderCreated notifies about a new ERP sales order.
func (n *Notifier) OrderCreated(ctx context.Context, ev OrderCreatedEvent) error {
	subject := fmt.Sprintf("Order %d synced to ERP (sales order %s)", ev.OrderID, ev.SalesOrderID)
	var b strings.Builder
	fmt.Fprintf(&b, "Order: %d\n", ev.OrderID)
	if ev.Invoice != "" {
		fmt.Fprintf(&b, "Invoice: %s\n", ev.Invoice)
	}
	fmt.Fprintf(&b, "ERP sales order: %s\n", ev.SalesOrderID)
	if ev.CustomerID != "" {
		fmt.Fprintf(&b, "ERP customer: %s\n", ev.CustomerID)
	}
	if ev.Total != "" {
		fmt.Fprintf(&b, "Total: %s\n", ev.Total)
	}
	return n.deliver(ctx, TypeOrderSuccess, subject, b.String())
}

// OrderFailed reports a creation failure including the attempted payload.
// The returned reference id also appears in the email and the logs.
func (n *Notifier) OrderFailed(ctx context.Context, ev OrderFailedEvent) (string, error) {
	ref := uuid.NewString()
	subject := fmt.Sprintf("Order %d failed to sync to ERP [ref %s]", ev.OrderID, ref[:8])
	var b strings.Builder
	fmt.Fprintf(&b, "Order: %d\n", ev.OrderID)
	fmt.Fprintf(&b, "Reference: %s\n", ref)
	fmt.Fprintf(&b, "Attempts: %d\n", ev.Attempts)
	if ev.Err != nil {
		fmt.Fprintf(&b, "Error: %v\n", ev.Err)
	}
	if ev.Payload != nil {
		raw, err := json.MarshalIndent(ev.Payload, "", "  ")
		if err != nil {
			raw = []byte(fmt.Sprintf("%+v", ev.Payload))
		}
		b.WriteString("\nPayload:\n")
		b.Write(raw)
		b.WriteString("\n")
	}
	n.logger.Warn("order failure notification", slog.Int64("order_id", ev.OrderID), slog.String("reference", ref))
	return ref, n.deliver(ctx, TypeOrderFailure, subject, b.String())
}

// ManualAction asks a human to reconcile the order in the admin API.
func (n *Notifier) ManualAction(ctx context.Context, ev ManualActionEvent) error {
	subject := fmt.Sprintf("Order %d needs manual action", ev.OrderID)
	body := fmt.Sprintf("Order: %d\nReason: %s\n\nReconcile: %s\n", ev.OrderID, ev.Reason, n.ReconcileURL(ev.OrderID))
	return n.deliver(ctx, TypeManualAction, subject, body)
}

// ReconcileURL is the admin deep link for an order.
func (n *Notifier) ReconcileURL(orderID int64) string {
	return fmt.Sprintf("%s/api/orders/%d/reconcile", n.adminBaseURL, orderID)
}

// InventorySummary reports one inventory sync run.
func (n *Notifier) InventorySummary(ctx context.Context, r InventoryReport) error {
	subject := fmt.Sprintf("Inventory sync: %d synced, %d skipped, %d errors", r.Synced, r.Skipped, r.Errored)
	if r.Fatal != "" {
		subject = "Inventory sync failed"
	}
	var b strings.Builder
	if r.Fatal != "" {
		fmt.Fprintf(&b, "The run aborted: %s\n\n", r.Fatal)
	}
	fmt.Fprintf(&b, "Total: %d\nSynced: %d\nUnchanged: %d\nSkipped: %d\nErrors: %d\n", r.Total, r.Synced, r.Unchanged, r.Skipped, r.Errored)
	writeSection(&b, "Changes", r.Changes)
	writeSection(&b, "Skipped SKUs", r.SkippedSKUs)
	writeSection(&b, "Errors", r.Errors)
	return n.deliver(ctx, TypeInventorySummary, subject, b.String())
}

// StatusSweep reports a status sweep run.
func (n *Notifier) StatusSweep(ctx context.Context, r StatusSweepReport) error {
	subject := fmt.Sprintf("Order status sync: %d updated, %d failed", r.Updated, r.Failed)
	var b strings.Builder
	fmt.Fprintf(&b, "Window: %s to %s\n", r.From.Format("2006-01-02"), r.To.Format("2006-01-02"))
	fmt.Fprintf(&b, "Checked: %d\nUpdated: %d\nFailed: %d\n", r.Checked, r.Updated, r.Failed)
	writeSection(&b, "Details", r.Lines)
	return n.deliver(ctx, TypeStatusSync, subject, b.String())
}

func writeSection(b *strings.Builder, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, l := range lines {
		fmt.Fprintf(b, "  - %s\n", l)
	}
}

func (n *Notifier) deliver(ctx context.Context, t Type, subject, body string) error {
	if n == nil || n.mailer == nil {
		return nil
	}
	to, err := n.recipients.Recipients(ctx, t)
	if err != nil {
		n.logger.Error("load recipients", slog.String("type", string(t)), slog.Any("error", err))
		return err
	}
	if len(to) == 0 {
		n.logger.Info("no active recipients", slog.String("type", string(t)))
		return nil
	}
	if err := n.mailer.Send(ctx, Message{To: to, Subject: subject, Body: body}); err != nil {
		n.logger.Error("send notification", slog.String("type", string(t)), slog.Any("error", err))
		return err
	}
	return nil
}
