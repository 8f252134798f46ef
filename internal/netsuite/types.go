package netsuite

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Ref is a record reference as used in REST record bodies.
type Ref struct {
	ID      string `json:"id,omitempty"`
	RefName string `json:"refName,omitempty"`
}

// Customer is an ERP customer record.
type Customer struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	CompanyName string `json:"companyname"`
	FirstName   string `json:"firstname"`
	LastName    string `json:"lastname"`
	IsPerson    bool   `json:"isperson"`
	ParentID    string `json:"parent"`
}

// CustomerInput creates a customer.
type CustomerInput struct {
	ExternalID  string `json:"externalId,omitempty"`
	IsPerson    bool   `json:"isPerson"`
	CompanyName string `json:"companyName,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Parent      *Ref   `json:"parent,omitempty"`
	Subsidiary  *Ref   `json:"subsidiary,omitempty"`
}

// SalesOrder is the subset of a sales order read back for reconciliation.
type SalesOrder struct {
	ID              string          `json:"id"`
	ExternalID      string          `json:"externalId"`
	TranID          string          `json:"tranId"`
	Status          Ref             `json:"status"`
	Total           decimal.Decimal `json:"total"`
	LinkedTracking  string          `json:"linkedTrackingNumbers"`
	TrackingNumbers []string        `json:"-"`
}

// SalesOrderInput creates a sales order.
type SalesOrderInput struct {
	ExternalID      string          `json:"externalId"`
	Entity          Ref             `json:"entity"`
	OtherRefNum     string          `json:"otherRefNum,omitempty"`
	Memo            string          `json:"memo,omitempty"`
	Subsidiary      *Ref            `json:"subsidiary,omitempty"`
	Location        *Ref            `json:"location,omitempty"`
	ShippingCost    decimal.Decimal `json:"shippingCost"`
	ShippingAddress *Address        `json:"shippingAddress,omitempty"`
	Item            ItemList        `json:"item"`
}

// ItemList wraps sublist lines the way record bodies expect.
type ItemList struct {
	Items []OrderLine `json:"items"`
}

// OrderLine is one sales order line.
type OrderLine struct {
	Item        Ref             `json:"item"`
	Quantity    float64         `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	Description string          `json:"description,omitempty"`
}

// Address is a shipping address subrecord.
type Address struct {
	Addressee string `json:"addressee,omitempty"`
	Addr1     string `json:"addr1,omitempty"`
	Addr2     string `json:"addr2,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Zip       string `json:"zip,omitempty"`
	Country   string `json:"country,omitempty"`
	AddrPhone string `json:"addrPhone,omitempty"`
}

// Item is an inventory item resolved by SKU.
type Item struct {
	ID             string
	SKU            string
	QuantityOnHand int
}

var trackingSeparators = regexp.MustCompile(`(?i)<br\s*/?>|[\s,;]+`)

// ParseTrackingNumbers splits the linked tracking text into numbers,
// dropping blanks and duplicates while keeping order.
func ParseTrackingNumbers(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range trackingSeparators.Split(raw, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, ok := seen[part]; ok {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}
