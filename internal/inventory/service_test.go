package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storebridge/storebridge/internal/netsuite"
	"github.com/storebridge/storebridge/internal/notify"
	"github.com/storebridge/storebridge/internal/threedcart"
)

type memoryCatalog struct {
	products  []threedcart.Product
	listErr   error
	failStock map[int64]bool
	updates   map[int64]int
}

func (c *memoryCatalog) ListProducts(ctx context.Context, limit, offset int) ([]threedcart.Product, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	if offset >= len(c.products) {
		return nil, nil
	}
	end := offset + limit
	if end > len(c.products) {
		end = len(c.products)
	}
	return c.products[offset:end], nil
}

func (c *memoryCatalog) UpdateStock(ctx context.Context, catalogID int64, stock int) error {
	if c.failStock[catalogID] {
		return errors.New("threedcart: status 500")
	}
	if c.updates == nil {
		c.updates = make(map[int64]int)
	}
	c.updates[catalogID] = stock
	return nil
}

type memoryStock struct {
	items map[string]int
	err   error
}

func (s *memoryStock) LookupItems(ctx context.Context, skus []string) (map[string]netsuite.Item, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]netsuite.Item)
	for _, sku := range skus {
		if qty, ok := s.items[sku]; ok {
			out[sku] = netsuite.Item{SKU: sku, QuantityOnHand: qty}
		}
	}
	return out, nil
}

type countingNotifier struct {
	reports []notify.InventoryReport
}

func (n *countingNotifier) InventorySummary(ctx context.Context, r notify.InventoryReport) error {
	n.reports = append(n.reports, r)
	return nil
}

func product(id int64, sku string, stock int) threedcart.Product {
	return threedcart.Product{SKUInfo: threedcart.SKUInfo{CatalogID: id, SKU: sku, Stock: stock}}
}

func TestSyncClassifiesProducts(t *testing.T) {
	catalog := &memoryCatalog{
		products: []threedcart.Product{
			product(1, "A", 5), // changed
			product(2, "B", 3), // unchanged
			product(3, "", 1),  // no sku
			product(4, "Z", 9), // unknown to ERP
			product(5, "C", 0), // update fails
		},
		failStock: map[int64]bool{5: true},
	}
	stock := &memoryStock{items: map[string]int{"A": 8, "B": 3, "C": 4}}
	notifier := &countingNotifier{}
	svc := NewService(catalog, stock, notifier, nil)

	summary, err := svc.Sync(context.Background(), Request{})
	require.NoError(t, err)
	require.Equal(t, 5, summary.Total)
	require.Equal(t, 1, summary.Synced)
	require.Equal(t, 1, summary.Unchanged)
	require.Equal(t, 2, summary.Skipped)
	require.Equal(t, 1, summary.Errored)
	require.Equal(t, []Change{{SKU: "A", CatalogID: 1, Before: 5, After: 8}}, summary.Changes)
	require.Contains(t, summary.SkippedSKUs, "Z")
	require.Equal(t, map[int64]int{1: 8}, catalog.updates)
	require.Len(t, notifier.reports, 1)
	require.Equal(t, []string{"A: 5 -> 8"}, notifier.reports[0].Changes)
}

func TestSyncRespectsPage(t *testing.T) {
	catalog := &memoryCatalog{products: []threedcart.Product{product(1, "A", 1), product(2, "B", 1), product(3, "C", 1)}}
	stock := &memoryStock{items: map[string]int{"A": 2, "B": 2, "C": 2}}
	svc := NewService(catalog, stock, nil, nil)

	summary, err := svc.Sync(context.Background(), Request{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Equal(t, 2, summary.Total)
	require.Equal(t, map[int64]int{2: 2, 3: 2}, catalog.updates)
}

func TestSyncERPFailureMarksErrored(t *testing.T) {
	catalog := &memoryCatalog{products: []threedcart.Product{product(1, "A", 1), product(2, "", 1)}}
	svc := NewService(catalog, &memoryStock{err: errors.New("netsuite: status 503")}, nil, nil)

	summary, err := svc.Sync(context.Background(), Request{})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Errored)
	require.Equal(t, 1, summary.Skipped)
	require.Empty(t, catalog.updates)
}

func TestSyncPageFailureStillReports(t *testing.T) {
	notifier := &countingNotifier{}
	svc := NewService(&memoryCatalog{listErr: errors.New("threedcart: status 502")}, &memoryStock{}, notifier, nil)

	summary, err := svc.Sync(context.Background(), Request{})
	require.Error(t, err)
	require.NotNil(t, summary)
	require.Len(t, notifier.reports, 1)
	require.Contains(t, notifier.reports[0].Fatal, "status 502")
}
