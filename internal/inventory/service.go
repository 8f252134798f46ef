// Package inventory copies ERP on-hand quantities onto the commerce catalog.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/storebridge/storebridge/internal/notify"
	"github.com/storebridge/storebridge/internal/shared"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

// Service runs inventory syncs.
type Service struct {
	catalog  Catalog
	stock    StockSource
	notifier Notifier
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(catalog Catalog, stock StockSource, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{catalog: catalog, stock: stock, notifier: notifier, logger: logger}
}

// Sync processes one catalog page. Individual product problems are counted
// in the summary; only a failed page fetch returns an error. Exactly one
// summary notification is sent per call.
func (s *Service) Sync(ctx context.Context, req Request) (*Summary, error) {
	page := shared.NewPage(req.Limit, req.Offset, defaultLimit, maxLimit)
	logger := s.logger.With(slog.Int("limit", page.Limit), slog.Int("offset", page.Offset))
	summary := &Summary{Changes: []Change{}, SkippedSKUs: []string{}, Errors: []string{}}

	products, err := s.catalog.ListProducts(ctx, page.Limit, page.Offset)
	if err != nil {
		logger.Error("inventory page fetch failed", slog.Any("error", err))
		summary.Errors = append(summary.Errors, fmt.Sprintf("fetch products: %v", err))
		s.report(ctx, summary, err)
		return summary, fmt.Errorf("inventory: list products: %w", err)
	}
	summary.Total = len(products)

	skus := make([]string, 0, len(products))
	for _, p := range products {
		if sku := strings.TrimSpace(p.SKUInfo.SKU); sku != "" {
			skus = append(skus, sku)
		}
	}

	var onHand map[string]int
	var lookupErr error
	if len(skus) > 0 {
		found, err := s.stock.LookupItems(ctx, skus)
		if err != nil {
			lookupErr = err
			logger.Error("erp stock lookup failed", slog.Any("error", err))
		} else {
			onHand = make(map[string]int, len(found))
			for sku, item := range found {
				onHand[sku] = item.QuantityOnHand
			}
		}
	}

	for _, p := range products {
		sku := strings.TrimSpace(p.SKUInfo.SKU)
		switch {
		case sku == "":
			summary.Skipped++
			summary.SkippedSKUs = append(summary.SkippedSKUs, fmt.Sprintf("(catalog %d: no sku)", p.SKUInfo.CatalogID))
			continue
		case lookupErr != nil:
			summary.Errored++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: erp lookup: %v", sku, lookupErr))
			continue
		}
		qty, ok := onHand[sku]
		if !ok {
			summary.Skipped++
			summary.SkippedSKUs = append(summary.SkippedSKUs, sku)
			continue
		}
		if qty == p.SKUInfo.Stock {
			summary.Unchanged++
			continue
		}
		if err := s.catalog.UpdateStock(ctx, p.SKUInfo.CatalogID, qty); err != nil {
			summary.Errored++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: update stock: %v", sku, err))
			logger.Warn("stock update failed", slog.String("sku", sku), slog.Any("error", err))
			continue
		}
		summary.Synced++
		summary.Changes = append(summary.Changes, Change{SKU: sku, CatalogID: p.SKUInfo.CatalogID, Before: p.SKUInfo.Stock, After: qty})
	}

	logger.Info("inventory sync finished",
		slog.Int("total", summary.Total),
		slog.Int("synced", summary.Synced),
		slog.Int("skipped", summary.Skipped),
		slog.Int("errored", summary.Errored))
	s.report(ctx, summary, nil)
	return summary, nil
}

func (s *Service) report(ctx context.Context, summary *Summary, fatal error) {
	if s.notifier == nil {
		return
	}
	r := notify.InventoryReport{
		Total:       summary.Total,
		Synced:      summary.Synced,
		Skipped:     summary.Skipped,
		Errored:     summary.Errored,
		Unchanged:   summary.Unchanged,
		SkippedSKUs: summary.SkippedSKUs,
		Errors:      summary.Errors,
	}
	for _, c := range summary.Changes {
		r.Changes = append(r.Changes, fmt.Sprintf("%s: %d -> %d", c.SKU, c.Before, c.After))
	}
	if fatal != nil {
		r.Fatal = fatal.Error()
	}
	if err := s.notifier.InventorySummary(ctx, r); err != nil {
		s.logger.Warn("inventory summary not delivered", slog.Any("error", err))
	}
}
