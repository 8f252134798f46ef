package orders

import (
	"context"
	"strconv"

	"github.com/storebridge/storebridge/internal/netsuite"
	"github.com/storebridge/storebridge/internal/notify"
	"github.com/storebridge/storebridge/internal/threedcart"
)

// ExternalIDPrefix prefixes the commerce order id in the ERP external id.
const ExternalIDPrefix = "3DCART_"

// ExternalID is the idempotency key linking a commerce order to its ERP
// sales order.
func ExternalID(orderID int64) string {
	return ExternalIDPrefix + strconv.FormatInt(orderID, 10)
}

// Commerce is the commerce platform surface used by the service.
type Commerce interface {
	GetOrder(ctx context.Context, orderID int64) (*threedcart.Order, error)
	ListOrders(ctx context.Context, filter threedcart.OrderFilter) ([]threedcart.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status threedcart.Status, internalComments string) error
}

// ERP is the ERP surface used by the service.
type ERP interface {
	FindSalesOrderByExternalID(ctx context.Context, externalID string) (*netsuite.SalesOrder, error)
	CreateSalesOrder(ctx context.Context, in netsuite.SalesOrderInput) (string, error)
	FindCustomerByEmail(ctx context.Context, email string) (*netsuite.Customer, error)
	FindCustomerByPhone(ctx context.Context, phone string) (*netsuite.Customer, error)
	ChildCustomers(ctx context.Context, parentID string) ([]netsuite.Customer, error)
	CreateCustomer(ctx context.Context, in netsuite.CustomerInput) (string, error)
	LookupItems(ctx context.Context, skus []string) (map[string]netsuite.Item, error)
}

// Notifier receives order notifications.
type Notifier interface {
	OrderCreated(ctx context.Context, ev notify.OrderCreatedEvent) error
	OrderFailed(ctx context.Context, ev notify.OrderFailedEvent) (string, error)
	ManualAction(ctx context.Context, ev notify.ManualActionEvent) error
	StatusSweep(ctx context.Context, r notify.StatusSweepReport) error
}

// StatusResult is the outcome of reconciling one order's status.
type StatusResult struct {
	OrderID         int64             `json:"order_id"`
	Synced          bool              `json:"synced"`
	Updated         bool              `json:"updated"`
	SalesOrderID    string            `json:"sales_order_id,omitempty"`
	PreviousStatus  threedcart.Status `json:"previous_status,omitempty"`
	Status          threedcart.Status `json:"status,omitempty"`
	TrackingNumbers []string          `json:"tracking_numbers,omitempty"`
	Message         string            `json:"message,omitempty"`
}

// BatchFailure is an order whose sync raised an error.
type BatchFailure struct {
	OrderID int64  `json:"order_id"`
	Error   string `json:"error"`
}

// BatchResult collects per-order outcomes of a batch.
type BatchResult struct {
	Results  []StatusResult `json:"results"`
	Failures []BatchFailure `json:"failures"`
}

// Updated counts orders whose status was written.
func (b *BatchResult) Updated() int {
	n := 0
	for _, r := range b.Results {
		if r.Updated {
			n++
		}
	}
	return n
}

// SweepResult is the outcome of a status sweep over a date window.
type SweepResult struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Checked int    `json:"checked"`
	BatchResult
}

// CreateRequest asks for an ERP sales order. Payload, when complete, is
// used instead of fetching the order.
type CreateRequest struct {
	OrderID int64
	Payload *threedcart.Order
}

// CreateResult is the outcome of a creation.
type CreateResult struct {
	OrderID           int64  `json:"order_id"`
	SalesOrderID      string `json:"sales_order_id,omitempty"`
	CustomerID        string `json:"customer_id,omitempty"`
	CustomerCreated   bool   `json:"customer_created,omitempty"`
	AlreadyExists     bool   `json:"already_exists"`
	StatusWrittenBack bool   `json:"status_written_back"`
	Attempts          int    `json:"attempts,omitempty"`
}
