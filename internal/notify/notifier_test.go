package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type staticRecipients map[Type][]string

func (s staticRecipients) Recipients(ctx context.Context, t Type) ([]string, error) {
	return s[t], nil
}

type captureMailer struct {
	sent []Message
	err  error
}

func (m *captureMailer) Send(ctx context.Context, msg Message) error {
	m.sent = append(m.sent, msg)
	return m.err
}

func TestManualActionIncludesDeepLink(t *testing.T) {
	mailer := &captureMailer{}
	n := NewNotifier(staticRecipients{TypeManualAction: {"ops@example.com"}}, mailer, "https://bridge.example.com/", nil)

	require.NoError(t, n.ManualAction(context.Background(), ManualActionEvent{OrderID: 1001, Reason: "store customer not found"}))
	require.Len(t, mailer.sent, 1)
	require.Contains(t, mailer.sent[0].Body, "https://bridge.example.com/api/orders/1001/reconcile")
	require.Equal(t, []string{"ops@example.com"}, mailer.sent[0].To)
}

func TestOrderFailedIncludesPayloadAndReference(t *testing.T) {
	mailer := &captureMailer{}
	n := NewNotifier(staticRecipients{TypeOrderFailure: {"ops@example.com"}}, mailer, "", nil)

	ref, err := n.OrderFailed(context.Background(), OrderFailedEvent{
		OrderID:  42,
		Attempts: 3,
		Err:      errors.New("netsuite: status 503"),
		Payload:  map[string]any{"OrderID": 42},
	})
	require.NoError(t, err)
	require.NotEmpty(t, ref)
	body := mailer.sent[0].Body
	require.Contains(t, body, ref)
	require.Contains(t, body, "Attempts: 3")
	require.Contains(t, body, `"OrderID": 42`)
	require.Contains(t, mailer.sent[0].Subject, ref[:8])
}

func TestNoRecipientsSkipsDelivery(t *testing.T) {
	mailer := &captureMailer{}
	n := NewNotifier(staticRecipients{}, mailer, "", nil)
	require.NoError(t, n.InventorySummary(context.Background(), InventoryReport{Total: 3}))
	require.Empty(t, mailer.sent)
}

func TestInventorySummaryFatalSubject(t *testing.T) {
	mailer := &captureMailer{}
	n := NewNotifier(staticRecipients{TypeInventorySummary: {"a@b.co"}}, mailer, "", nil)
	require.NoError(t, n.InventorySummary(context.Background(), InventoryReport{Fatal: "threedcart: status 500", Errors: []string{"page fetch"}}))
	require.Equal(t, "Inventory sync failed", mailer.sent[0].Subject)
	require.Contains(t, mailer.sent[0].Body, "The run aborted")
}

func TestDeliveryErrorIsReturned(t *testing.T) {
	mailer := &captureMailer{err: errors.New("smtp down")}
	n := NewNotifier(staticRecipients{TypeOrderSuccess: {"a@b.co"}}, mailer, "", nil)
	require.EqualError(t, n.OrderCreated(context.Background(), OrderCreatedEvent{OrderID: 1, SalesOrderID: "9"}), "smtp down")
}
