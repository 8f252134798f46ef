package orders

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/storebridge/storebridge/internal/netsuite"
	"github.com/storebridge/storebridge/internal/threedcart"
)

// salesOrderConfig carries the ERP references every sales order needs.
type salesOrderConfig struct {
	SubsidiaryID string
	LocationID   string
}

func buildSalesOrder(order *threedcart.Order, customerID string, items map[string]netsuite.Item, cfg salesOrderConfig) netsuite.SalesOrderInput {
	in := netsuite.SalesOrderInput{
		ExternalID:  ExternalID(order.OrderID),
		Entity:      netsuite.Ref{ID: customerID},
		OtherRefNum: order.Invoice(),
		Memo:        fmt.Sprintf("3dcart order %d", order.OrderID),
	}
	if cfg.SubsidiaryID != "" {
		in.Subsidiary = &netsuite.Ref{ID: cfg.SubsidiaryID}
	}
	if cfg.LocationID != "" {
		in.Location = &netsuite.Ref{ID: cfg.LocationID}
	}
	for _, line := range order.OrderItemList {
		item := items[strings.TrimSpace(line.ItemID)]
		in.Item.Items = append(in.Item.Items, netsuite.OrderLine{
			Item:        netsuite.Ref{ID: item.ID},
			Quantity:    line.ItemQuantity,
			Rate:        line.ItemUnitPrice,
			Description: line.ItemDescription,
		})
	}
	shipping := decimal.Zero
	for _, sh := range order.ShipmentList {
		shipping = shipping.Add(sh.ShipmentCost)
	}
	in.ShippingCost = shipping
	if len(order.ShipmentList) > 0 {
		sh := order.ShipmentList[0]
		in.ShippingAddress = &netsuite.Address{
			Addressee: strings.TrimSpace(strings.TrimSpace(sh.ShipmentFirstName+" "+sh.ShipmentLastName) + companySuffix(sh.ShipmentCompany)),
			Addr1:     sh.ShipmentAddress,
			Addr2:     sh.ShipmentAddress2,
			City:      sh.ShipmentCity,
			State:     sh.ShipmentState,
			Zip:       sh.ShipmentZipCode,
			Country:   sh.ShipmentCountry,
			AddrPhone: sh.ShipmentPhone,
		}
	}
	return in
}

func companySuffix(company string) string {
	company = strings.TrimSpace(company)
	if company == "" {
		return ""
	}
	return " (" + company + ")"
}

// orderSKUs returns the distinct SKUs of an order in line order.
func orderSKUs(order *threedcart.Order) []string {
	seen := make(map[string]bool)
	var out []string
	for _, line := range order.OrderItemList {
		sku := strings.TrimSpace(line.ItemID)
		if sku == "" || seen[sku] {
			continue
		}
		seen[sku] = true
		out = append(out, sku)
	}
	return out
}

// appendComment adds line to existing internal comments unless present.
func appendComment(existing, line string) string {
	existing = strings.TrimRight(existing, "\r\n ")
	if strings.Contains(existing, line) {
		return existing
	}
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}

// isComplete is the payload completeness heuristic: a webhook payload with
// line items and a billing email is used as-is.
func isComplete(order *threedcart.Order) bool {
	return order != nil && order.OrderID > 0 && len(order.OrderItemList) > 0 && strings.TrimSpace(order.BillingEmail) != ""
}
