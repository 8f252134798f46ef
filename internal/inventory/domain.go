package inventory

import (
	"context"

	"github.com/storebridge/storebridge/internal/netsuite"
	"github.com/storebridge/storebridge/internal/notify"
	"github.com/storebridge/storebridge/internal/threedcart"
)

// Catalog is the commerce side of the sync.
type Catalog interface {
	ListProducts(ctx context.Context, limit, offset int) ([]threedcart.Product, error)
	UpdateStock(ctx context.Context, catalogID int64, stock int) error
}

// StockSource resolves ERP on-hand quantities by SKU.
type StockSource interface {
	LookupItems(ctx context.Context, skus []string) (map[string]netsuite.Item, error)
}

// Notifier receives the run summary.
type Notifier interface {
	InventorySummary(ctx context.Context, r notify.InventoryReport) error
}

// Request selects the catalog page to sync.
type Request struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Change records one stock update pushed to the catalog.
type Change struct {
	SKU       string `json:"sku"`
	CatalogID int64  `json:"catalog_id"`
	Before    int    `json:"before"`
	After     int    `json:"after"`
}

// Summary is the outcome of one run.
type Summary struct {
	Total       int      `json:"total_count"`
	Synced      int      `json:"synced_count"`
	Skipped     int      `json:"skipped_count"`
	Errored     int      `json:"error_count"`
	Unchanged   int      `json:"unchanged_count"`
	Changes     []Change `json:"changes"`
	SkippedSKUs []string `json:"skipped_skus"`
	Errors      []string `json:"errors"`
}
