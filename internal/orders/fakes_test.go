package orders

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/storebridge/storebridge/internal/netsuite"
	"github.com/storebridge/storebridge/internal/notify"
	"github.com/storebridge/storebridge/internal/threedcart"
)

type statusUpdate struct {
	OrderID  int64
	Status   threedcart.Status
	Comments string
}

type fakeCommerce struct {
	mu       sync.Mutex
	orders   map[int64]*threedcart.Order
	updates  []statusUpdate
	failGet  error
	failList error
	gets     int
}

func newFakeCommerce(orders ...*threedcart.Order) *fakeCommerce {
	c := &fakeCommerce{orders: make(map[int64]*threedcart.Order)}
	for _, o := range orders {
		c.orders[o.OrderID] = o
	}
	return c
}

func (c *fakeCommerce) GetOrder(_ context.Context, id int64) (*threedcart.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.failGet != nil {
		return nil, c.failGet
	}
	o, ok := c.orders[id]
	if !ok {
		return nil, threedcart.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (c *fakeCommerce) ListOrders(_ context.Context, f threedcart.OrderFilter) ([]threedcart.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failList != nil {
		return nil, c.failList
	}
	ids := make([]int64, 0, len(c.orders))
	for id := range c.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var all []threedcart.Order
	for _, id := range ids {
		if o := c.orders[id]; f.Status == 0 || o.OrderStatusID == f.Status {
			all = append(all, *o)
		}
	}
	if f.Offset >= len(all) {
		return nil, nil
	}
	end := f.Offset + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[f.Offset:end], nil
}

func (c *fakeCommerce) UpdateOrderStatus(_ context.Context, id int64, status threedcart.Status, comments string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.orders[id]
	if !ok {
		return threedcart.ErrOrderNotFound
	}
	o.OrderStatusID = status
	if comments != "" {
		o.InternalComments = comments
	}
	c.updates = append(c.updates, statusUpdate{OrderID: id, Status: status, Comments: comments})
	return nil
}

type fakeERP struct {
	mu          sync.Mutex
	salesOrders map[string]*netsuite.SalesOrder
	customers   []netsuite.Customer
	children    []netsuite.Customer
	items       map[string]netsuite.Item
	created     []netsuite.SalesOrderInput
	newCustomer []netsuite.CustomerInput
	createErrs  []error
	duplicate   bool
}

func newFakeERP() *fakeERP {
	return &fakeERP{
		salesOrders: make(map[string]*netsuite.SalesOrder),
		items: map[string]netsuite.Item{
			"SKU-1": {ID: "101", SKU: "SKU-1"},
			"SKU-2": {ID: "102", SKU: "SKU-2"},
		},
	}
}

func (e *fakeERP) FindSalesOrderByExternalID(_ context.Context, externalID string) (*netsuite.SalesOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.salesOrders[externalID], nil
}

func (e *fakeERP) CreateSalesOrder(_ context.Context, in netsuite.SalesOrderInput) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.createErrs) > 0 {
		err := e.createErrs[0]
		e.createErrs = e.createErrs[1:]
		return "", err
	}
	if e.duplicate {
		e.salesOrders[in.ExternalID] = &netsuite.SalesOrder{ID: "so-existing", ExternalID: in.ExternalID}
		return "", netsuite.ErrDuplicateExternalID
	}
	e.created = append(e.created, in)
	id := fmt.Sprintf("so-%d", len(e.created))
	e.salesOrders[in.ExternalID] = &netsuite.SalesOrder{ID: id, ExternalID: in.ExternalID}
	return id, nil
}

func (e *fakeERP) FindCustomerByEmail(_ context.Context, email string) (*netsuite.Customer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.customers {
		if email != "" && c.Email == email {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

func (e *fakeERP) FindCustomerByPhone(_ context.Context, phone string) (*netsuite.Customer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.customers {
		if phone != "" && c.Phone == phone {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

func (e *fakeERP) ChildCustomers(_ context.Context, _ string) ([]netsuite.Customer, error) {
	return e.children, nil
}

func (e *fakeERP) CreateCustomer(_ context.Context, in netsuite.CustomerInput) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.newCustomer = append(e.newCustomer, in)
	return fmt.Sprintf("cust-%d", len(e.newCustomer)), nil
}

func (e *fakeERP) LookupItems(_ context.Context, skus []string) (map[string]netsuite.Item, error) {
	out := make(map[string]netsuite.Item)
	for _, sku := range skus {
		if item, ok := e.items[sku]; ok {
			out[sku] = item
		}
	}
	return out, nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	created []notify.OrderCreatedEvent
	failed  []notify.OrderFailedEvent
	manual  []notify.ManualActionEvent
	sweeps  []notify.StatusSweepReport
}

func (n *fakeNotifier) OrderCreated(_ context.Context, ev notify.OrderCreatedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, ev)
	return nil
}

func (n *fakeNotifier) OrderFailed(_ context.Context, ev notify.OrderFailedEvent) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, ev)
	return "ref-1", nil
}

func (n *fakeNotifier) ManualAction(_ context.Context, ev notify.ManualActionEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.manual = append(n.manual, ev)
	return nil
}

func (n *fakeNotifier) StatusSweep(_ context.Context, r notify.StatusSweepReport) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sweeps = append(n.sweeps, r)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleOrder(id int64) *threedcart.Order {
	return &threedcart.Order{
		OrderID:             id,
		InvoiceNumberPrefix: "AB-",
		InvoiceNumber:       id + 1000,
		OrderStatusID:       threedcart.StatusNew,
		CustomerID:          55,
		BillingFirstName:    "Ada",
		BillingLastName:     "Lovelace",
		BillingEmail:        "ada@example.com",
		BillingPhoneNumber:  "555-0100",
		OrderAmount:         decimal.RequireFromString("42.50"),
		OrderItemList: []threedcart.Item{
			{ItemID: "SKU-1", ItemQuantity: 2, ItemUnitPrice: decimal.RequireFromString("10.00")},
			{ItemID: "SKU-2", ItemQuantity: 1, ItemUnitPrice: decimal.RequireFromString("15.00")},
		},
		ShipmentList: []threedcart.Shipment{{ShipmentFirstName: "Ada", ShipmentLastName: "Lovelace", ShipmentCost: decimal.RequireFromString("7.50")}},
	}
}
