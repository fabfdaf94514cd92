package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/esencia-erp/esencia/internal/shared"
)

// defaultIdempotencyRetention keeps keys long enough to absorb any
// realistic client retry window.
const defaultIdempotencyRetention = 48 * time.Hour

// IdempotencyCleaner prunes processed request keys.
type IdempotencyCleaner struct {
	logger *slog.Logger
	store  *shared.IdempotencyStore
}

// NewIdempotencyCleaner builds the cleanup handler.
func NewIdempotencyCleaner(logger *slog.Logger, store *shared.IdempotencyStore) *IdempotencyCleaner {
	return &IdempotencyCleaner{logger: logger, store: store}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (c *IdempotencyCleaner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := payload.Retention
	if retention <= 0 {
		retention = defaultIdempotencyRetention
	}

	if err := c.store.Cleanup(ctx, retention); err != nil {
		return err
	}
	c.logger.Info("idempotency cleanup finished", "retention", retention)
	return nil
}
