package shipments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/esencia-erp/esencia/internal/platform/cache"
	"github.com/esencia-erp/esencia/internal/sales"
	"github.com/esencia-erp/esencia/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SaleReader fetches the sale a shipment outcome cascaded onto.
type SaleReader interface {
	Get(ctx context.Context, id int64) (*sales.Sale, error)
}

// Service owns batch generation and outcome propagation. Each operation is
// one unit of work: a batch is created whole or not at all, and a
// distributor outcome lands on the record and the sale in the same commit.
type Service struct {
	logger *slog.Logger
	repo   Repository
	sales  SaleReader
	cache  *cache.Cache
	audit  AuditPort
}

// NewService builds a Service. Cache and audit are optional.
func NewService(logger *slog.Logger, repo Repository, saleReader SaleReader, c *cache.Cache, audit AuditPort) *Service {
	return &Service{logger: logger, repo: repo, sales: saleReader, cache: c, audit: audit}
}

// GenerateBatch groups the selected eligible sales into one batch. Every
// member needs a complete delivery address; one incomplete address aborts
// the whole batch and the error lists all offenders.
func (s *Service) GenerateBatch(ctx context.Context, req GenerateBatchRequest, operatorID int64) (*BatchSummary, error) {
	now := time.Now()
	var summary BatchSummary

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		candidates, err := tx.ListCandidates(ctx, req)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return ErrNoCandidates
		}

		var incomplete []IncompleteAddress
		for _, cd := range candidates {
			if missing := cd.Customer.MissingAddressFields(); len(missing) > 0 {
				incomplete = append(incomplete, IncompleteAddress{
					SaleID:       cd.SaleID,
					SaleNumber:   cd.SaleNumber,
					CustomerName: cd.Customer.Name,
					Address:      cd.Customer.FullAddress(),
					Missing:      missing,
				})
			}
		}
		if len(incomplete) > 0 {
			return &IncompleteAddressError{Sales: incomplete}
		}

		seq, err := tx.NextBatchSequence(ctx, now.Format("20060102"))
		if err != nil {
			return err
		}
		batchID := fmt.Sprintf("ENV-%s-%02d", now.Format("20060102-1504"), seq)

		items := 0
		for _, cd := range candidates {
			if !sales.CanTransition(cd.Status, sales.StatusShipped) {
				return fmt.Errorf("shipments: sale %s cannot transition to shipped from %s", cd.SaleNumber, cd.Status)
			}
			if _, err := tx.InsertRecord(ctx, ShipmentRecord{
				BatchID:   batchID,
				SaleID:    cd.SaleID,
				Status:    DeliveryPending,
				Payment:   OutcomePending,
				UpdatedBy: operatorID,
			}); err != nil {
				return err
			}
			if err := tx.SetSaleStatus(ctx, cd.SaleID, sales.StatusShipped); err != nil {
				return err
			}
			items += cd.ItemCount
		}

		summary = BatchSummary{BatchID: batchID, Members: len(candidates), Items: items}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, operatorID, "shipments:generate_batch", summary.BatchID, map[string]any{
		"members": summary.Members,
		"items":   summary.Items,
	})
	return &summary, nil
}

// UpdateShipment applies a distributor outcome to one record and propagates
// it to the sale in the same commit. Delivery and payment outcomes are
// applied independently; either may fire alone.
func (s *Service) UpdateShipment(ctx context.Context, shipmentID int64, req UpdateShipmentRequest, operatorID int64) (*ShipmentRecord, *sales.Sale, error) {
	if err := validateUpdate(req); err != nil {
		return nil, nil, err
	}

	var batchID string
	var saleID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.GetRecordForUpdate(ctx, shipmentID)
		if err != nil {
			return err
		}
		batchID = rec.BatchID
		saleID = rec.SaleID
		return s.applyUpdate(ctx, tx, rec, req, operatorID)
	})
	if err != nil {
		return nil, nil, err
	}

	s.invalidateManifest(ctx, batchID)
	s.recordAudit(ctx, operatorID, "shipments:update", fmt.Sprintf("%d", shipmentID), nil)

	rec, err := s.repo.GetRecord(ctx, shipmentID)
	if err != nil {
		return nil, nil, err
	}
	sale, err := s.sales.Get(ctx, saleID)
	if err != nil {
		return nil, nil, err
	}
	return rec, sale, nil
}

// UpdateBatch applies per-member outcomes inside one unit of work. A
// missing member yields a not-found outcome without failing the rest.
func (s *Service) UpdateBatch(ctx context.Context, batchID string, items []BatchUpdateItem, operatorID int64) ([]MemberOutcome, error) {
	for _, item := range items {
		if err := validateUpdate(item.UpdateShipmentRequest); err != nil {
			return nil, err
		}
	}

	outcomes := make([]MemberOutcome, 0, len(items))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, item := range items {
			rec, err := tx.GetRecordForUpdate(ctx, item.ShipmentID)
			if errors.Is(err, ErrNotFound) {
				outcomes = append(outcomes, MemberOutcome{ShipmentID: item.ShipmentID, Reason: "not found"})
				continue
			}
			if err != nil {
				return err
			}
			if rec.BatchID != batchID {
				outcomes = append(outcomes, MemberOutcome{ShipmentID: item.ShipmentID, Reason: "not in batch"})
				continue
			}
			if err := s.applyUpdate(ctx, tx, rec, item.UpdateShipmentRequest, operatorID); err != nil {
				return err
			}
			outcomes = append(outcomes, MemberOutcome{ShipmentID: item.ShipmentID, Updated: true})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateManifest(ctx, batchID)
	s.recordAudit(ctx, operatorID, "shipments:update_batch", batchID, map[string]any{"members": len(items)})
	return outcomes, nil
}

// applyUpdate writes the record fields and propagates outcomes onto the
// sale. Status propagation consults the sale transition table; an outcome
// that the sale's current state cannot accept is skipped rather than
// corrupting the lifecycle.
func (s *Service) applyUpdate(ctx context.Context, tx TxRepository, rec *ShipmentRecord, req UpdateShipmentRequest, operatorID int64) error {
	updates := map[string]any{"updated_by": operatorID}
	if req.Delivery != nil {
		updates["estado"] = *req.Delivery
	}
	if req.Payment != nil {
		updates["estado_pago"] = *req.Payment
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if err := tx.UpdateRecord(ctx, rec.ID, updates); err != nil {
		return err
	}

	status, _, err := tx.GetSaleState(ctx, rec.SaleID)
	if err != nil {
		return err
	}

	if req.Delivery != nil {
		if target, ok := saleStatusFor[*req.Delivery]; ok {
			if sales.CanTransition(status, target) {
				if err := tx.SetSaleStatus(ctx, rec.SaleID, target); err != nil {
					return err
				}
			} else if s.logger != nil {
				s.logger.Warn("skipping sale status propagation",
					"sale_id", rec.SaleID, "from", status, "to", target)
			}
		}
	}
	if req.Payment != nil {
		if target, ok := salePaymentFor[*req.Payment]; ok {
			if err := tx.SetSalePayment(ctx, rec.SaleID, target); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetBatch renders the distributor-facing manifest for one batch, cached
// for a short TTL since distributors poll it while on the road.
func (s *Service) GetBatch(ctx context.Context, batchID string) (*Manifest, error) {
	key := manifestKey(batchID)
	var cached Manifest
	if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	rows, err := s.repo.ListManifestRows(ctx, batchID)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{BatchID: batchID, GeneratedAt: rows[0].CreatedAt}
	total := decimal.Zero
	for _, row := range rows {
		manifest.Entries = append(manifest.Entries, ManifestEntry{
			ShipmentID:   row.ShipmentID,
			SaleNumber:   row.SaleNumber,
			CustomerName: row.Customer.Name,
			Address:      row.Customer.FullAddress(),
			Phone:        row.Customer.Phone,
			Items:        row.Items,
			Amount:       shared.FormatAmount(row.Amount),
			Status:       row.Status,
			Payment:      row.Payment,
		})
		total = total.Add(row.Amount)
	}
	manifest.TotalAmount = shared.FormatAmount(total)

	if err := s.cache.SetJSON(ctx, key, manifest); err != nil && s.logger != nil {
		s.logger.Warn("manifest cache write failed", "batch_id", batchID, "error", err)
	}
	return manifest, nil
}

// GetRecord returns one shipment record.
func (s *Service) GetRecord(ctx context.Context, id int64) (*ShipmentRecord, error) {
	return s.repo.GetRecord(ctx, id)
}

func (s *Service) invalidateManifest(ctx context.Context, batchID string) {
	if err := s.cache.Invalidate(ctx, manifestKey(batchID)); err != nil && s.logger != nil {
		s.logger.Warn("manifest cache invalidation failed", "batch_id", batchID, "error", err)
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "shipment_batch",
		EntityID: entityID,
		Meta:     meta,
	})
}

func manifestKey(batchID string) string {
	return "shipments:manifest:" + batchID
}

func validateUpdate(req UpdateShipmentRequest) error {
	if req.Delivery != nil && !validDelivery(*req.Delivery) {
		return fmt.Errorf("%w: unknown delivery status %q", ErrInvalidStatus, *req.Delivery)
	}
	if req.Payment != nil && !validOutcome(*req.Payment) {
		return fmt.Errorf("%w: unknown payment outcome %q", ErrInvalidStatus, *req.Payment)
	}
	return nil
}
