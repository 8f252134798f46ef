package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/storebridge/storebridge/internal/netsuite"
	"github.com/storebridge/storebridge/internal/threedcart"
)

// CustomerResolver finds or creates the ERP customer for an order.
type CustomerResolver struct {
	erp          ERP
	parentID     string
	subsidiaryID string
	passThrough  map[int64]bool
}

// NewCustomerResolver constructs a CustomerResolver. Orders whose customer
// group is in passThroughGroups belong to store accounts under parentID.
func NewCustomerResolver(erp ERP, parentID, subsidiaryID string, passThroughGroups []int64) *CustomerResolver {
	groups := make(map[int64]bool, len(passThroughGroups))
	for _, g := range passThroughGroups {
		groups[g] = true
	}
	return &CustomerResolver{erp: erp, parentID: parentID, subsidiaryID: subsidiaryID, passThrough: groups}
}

// IsPassThrough reports whether order belongs to a store account.
func (r *CustomerResolver) IsPassThrough(order *threedcart.Order) bool {
	return order.CustomerGroupID != 0 && r.passThrough[order.CustomerGroupID]
}

// Resolve matches by email, then phone, then (store accounts only) company
// name under the parent account. Unmatched regular customers are created.
func (r *CustomerResolver) Resolve(ctx context.Context, order *threedcart.Order) (id string, created bool, err error) {
	if c, err := r.erp.FindCustomerByEmail(ctx, order.BillingEmail); err != nil {
		return "", false, fmt.Errorf("orders: customer by email: %w", err)
	} else if c != nil {
		return c.ID, false, nil
	}
	if c, err := r.erp.FindCustomerByPhone(ctx, order.BillingPhoneNumber); err != nil {
		return "", false, fmt.Errorf("orders: customer by phone: %w", err)
	} else if c != nil {
		return c.ID, false, nil
	}

	if r.IsPassThrough(order) {
		if company := normalizeCompany(order.BillingCompany); company != "" && r.parentID != "" {
			children, err := r.erp.ChildCustomers(ctx, r.parentID)
			if err != nil {
				return "", false, fmt.Errorf("orders: store customers: %w", err)
			}
			for _, c := range children {
				if normalizeCompany(c.CompanyName) == company {
					return c.ID, false, nil
				}
			}
		}
		return "", false, &CustomerNotFoundError{OrderID: order.OrderID, Email: order.BillingEmail, Company: order.BillingCompany}
	}

	in := netsuite.CustomerInput{
		IsPerson:    strings.TrimSpace(order.BillingCompany) == "",
		CompanyName: strings.TrimSpace(order.BillingCompany),
		FirstName:   strings.TrimSpace(order.BillingFirstName),
		LastName:    strings.TrimSpace(order.BillingLastName),
		Email:       strings.TrimSpace(order.BillingEmail),
		Phone:       strings.TrimSpace(order.BillingPhoneNumber),
	}
	if order.CustomerID > 0 {
		in.ExternalID = ExternalIDPrefix + "CUST_" + strconv.FormatInt(order.CustomerID, 10)
	}
	if r.subsidiaryID != "" {
		in.Subsidiary = &netsuite.Ref{ID: r.subsidiaryID}
	}
	id, err = r.erp.CreateCustomer(ctx, in)
	if err != nil {
		if errors.Is(err, netsuite.ErrDuplicateExternalID) {
			return "", false, fmt.Errorf("orders: customer %s exists but did not match by email or phone: %w", in.ExternalID, err)
		}
		return "", false, fmt.Errorf("orders: create customer: %w", err)
	}
	return id, true, nil
}

// normalizeCompany folds case and collapses whitespace so "ACME  Corp" and
// "acme corp" compare equal.
func normalizeCompany(name string) string {
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}
