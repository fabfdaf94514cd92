package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/esencia-erp/esencia/internal/inventory"
)

// LowStockScanner reports products that fell below their minimum stock
// after the day's sales. The output is the structured log stream; the
// back-office dashboard tails it for the replenishment list.
type LowStockScanner struct {
	logger *slog.Logger
	repo   inventory.Repository
}

// NewLowStockScanner builds the scan handler.
func NewLowStockScanner(logger *slog.Logger, repo inventory.Repository) *LowStockScanner {
	return &LowStockScanner{logger: logger, repo: repo}
}

// Handle processes TaskLowStockScan tasks.
func (s *LowStockScanner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	products, err := s.repo.ListBelowMinimum(ctx)
	if err != nil {
		return err
	}

	if len(products) == 0 {
		s.logger.Info("low stock scan clean", "scheduled_for", payload.ScheduledFor)
		return nil
	}
	for _, p := range products {
		s.logger.Warn("product below minimum stock",
			"product_id", p.ID,
			"sku", p.SKU,
			"name", p.Name,
			"stock", p.Stock,
			"min_stock", p.MinStock,
		)
	}
	s.logger.Info("low stock scan finished", "flagged", len(products))
	return nil
}
