package threedcart

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Status is the commerce platform order status id.
type Status int

const (
	StatusNew              Status = 1
	StatusProcessing       Status = 2
	StatusPartial          Status = 3
	StatusShipped          Status = 4
	StatusCancelled        Status = 5
	StatusNotCompleted     Status = 6
	StatusUnpaid           Status = 7
	StatusBackordered      Status = 8
	StatusPendingReview    Status = 9
	StatusPartiallyShipped Status = 10
)

var statusNames = map[Status]string{
	StatusNew:              "New",
	StatusProcessing:       "Processing",
	StatusPartial:          "Partial",
	StatusShipped:          "Shipped",
	StatusCancelled:        "Cancelled",
	StatusNotCompleted:     "Not Completed",
	StatusUnpaid:           "Unpaid",
	StatusBackordered:      "Backordered",
	StatusPendingReview:    "Pending Review",
	StatusPartiallyShipped: "Partially Shipped",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Final reports whether no further fulfilment update applies.
func (s Status) Final() bool {
	return s == StatusShipped || s == StatusCancelled
}

// Order is the subset of the commerce order record the integrations read.
type Order struct {
	OrderID             int64           `json:"OrderID" validate:"required,gt=0"`
	InvoiceNumberPrefix string          `json:"InvoiceNumberPrefix,omitempty"`
	InvoiceNumber       int64           `json:"InvoiceNumber,omitempty"`
	OrderDate           string          `json:"OrderDate,omitempty"`
	OrderStatusID       Status          `json:"OrderStatusID"`
	CustomerID          int64           `json:"CustomerID,omitempty"`
	CustomerGroupID     int64           `json:"CustomerGroupID,omitempty"`
	BillingFirstName    string          `json:"BillingFirstName,omitempty"`
	BillingLastName     string          `json:"BillingLastName,omitempty"`
	BillingCompany      string          `json:"BillingCompany,omitempty"`
	BillingAddress      string          `json:"BillingAddress,omitempty"`
	BillingAddress2     string          `json:"BillingAddress2,omitempty"`
	BillingCity         string          `json:"BillingCity,omitempty"`
	BillingState        string          `json:"BillingState,omitempty"`
	BillingZipCode      string          `json:"BillingZipCode,omitempty"`
	BillingCountry      string          `json:"BillingCountry,omitempty"`
	BillingPhoneNumber  string          `json:"BillingPhoneNumber,omitempty" validate:"required_without=BillingEmail"`
	BillingEmail        string          `json:"BillingEmail,omitempty" validate:"omitempty,email"`
	OrderAmount         decimal.Decimal `json:"OrderAmount"`
	SalesTax            decimal.Decimal `json:"SalesTax"`
	CustomerComments    string          `json:"CustomerComments,omitempty"`
	InternalComments    string          `json:"InternalComments,omitempty"`
	OrderItemList       []Item          `json:"OrderItemList" validate:"required,min=1,dive"`
	ShipmentList        []Shipment      `json:"ShipmentList,omitempty"`
}

// Invoice renders the customer-facing invoice number.
func (o *Order) Invoice() string {
	if o.InvoiceNumber == 0 {
		return fmt.Sprintf("%d", o.OrderID)
	}
	return fmt.Sprintf("%s%d", o.InvoiceNumberPrefix, o.InvoiceNumber)
}

// BillingName joins the billing first and last name.
func (o *Order) BillingName() string {
	return strings.TrimSpace(o.BillingFirstName + " " + o.BillingLastName)
}

// Item is an order line. ItemID carries the SKU.
type Item struct {
	CatalogID       int64           `json:"CatalogID,omitempty"`
	ItemID          string          `json:"ItemID" validate:"required"`
	ItemDescription string          `json:"ItemDescription,omitempty"`
	ItemQuantity    float64         `json:"ItemQuantity" validate:"gt=0"`
	ItemUnitPrice   decimal.Decimal `json:"ItemUnitPrice"`
}

// Shipment is a shipping block of an order.
type Shipment struct {
	ShipmentID           int64           `json:"ShipmentID,omitempty"`
	ShipmentFirstName    string          `json:"ShipmentFirstName,omitempty"`
	ShipmentLastName     string          `json:"ShipmentLastName,omitempty"`
	ShipmentCompany      string          `json:"ShipmentCompany,omitempty"`
	ShipmentAddress      string          `json:"ShipmentAddress,omitempty"`
	ShipmentAddress2     string          `json:"ShipmentAddress2,omitempty"`
	ShipmentCity         string          `json:"ShipmentCity,omitempty"`
	ShipmentState        string          `json:"ShipmentState,omitempty"`
	ShipmentZipCode      string          `json:"ShipmentZipCode,omitempty"`
	ShipmentCountry      string          `json:"ShipmentCountry,omitempty"`
	ShipmentPhone        string          `json:"ShipmentPhone,omitempty"`
	ShipmentMethodName   string          `json:"ShipmentMethodName,omitempty"`
	ShipmentCost         decimal.Decimal `json:"ShipmentCost"`
	ShipmentTrackingCode string          `json:"ShipmentTrackingCode,omitempty"`
}

// Product is a catalog entry as returned by the products listing.
type Product struct {
	SKUInfo SKUInfo `json:"SKUInfo"`
}

// SKUInfo holds the stock-relevant fields of a product.
type SKUInfo struct {
	CatalogID int64           `json:"CatalogID"`
	SKU       string          `json:"SKU"`
	Name      string          `json:"Name,omitempty"`
	Price     decimal.Decimal `json:"Price"`
	Stock     int             `json:"Stock"`
}

// OrderFilter narrows an order listing.
type OrderFilter struct {
	// DateStart and DateEnd use the platform's MM/DD/YYYY format.
	DateStart string
	DateEnd   string
	Status    Status
	Limit     int
	Offset    int
}
