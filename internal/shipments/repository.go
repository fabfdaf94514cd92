package shipments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/esencia-erp/esencia/internal/masterdata"
	"github.com/esencia-erp/esencia/internal/platform/db"
	"github.com/esencia-erp/esencia/internal/sales"
)

// Candidate is one sale eligible for a new batch, joined with the customer
// record the address gate inspects.
type Candidate struct {
	SaleID     int64
	SaleNumber string
	Status     sales.SaleStatus
	Total      decimal.Decimal
	ItemCount  int
	Customer   masterdata.Customer
}

// ManifestRow is one batch member before presentation formatting.
type ManifestRow struct {
	ShipmentID int64
	SaleNumber string
	Customer   masterdata.Customer
	Items      int
	Amount     decimal.Decimal
	Status     DeliveryStatus
	Payment    PaymentOutcome
	CreatedAt  time.Time
}

// Repository is the read side plus the unit-of-work entry point.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRecord(ctx context.Context, id int64) (*ShipmentRecord, error)
	ListByBatch(ctx context.Context, batchID string) ([]ShipmentRecord, error)
	ListManifestRows(ctx context.Context, batchID string) ([]ManifestRow, error)
}

// TxRepository exposes the writes of one batch unit of work. Sale status
// writes live here because outcome propagation must commit atomically with
// the shipment record update.
type TxRepository interface {
	ListCandidates(ctx context.Context, req GenerateBatchRequest) ([]Candidate, error)
	NextBatchSequence(ctx context.Context, day string) (int64, error)
	InsertRecord(ctx context.Context, rec ShipmentRecord) (int64, error)
	GetRecordForUpdate(ctx context.Context, id int64) (*ShipmentRecord, error)
	UpdateRecord(ctx context.Context, id int64, updates map[string]any) error
	GetSaleState(ctx context.Context, saleID int64) (sales.SaleStatus, sales.PaymentStatus, error)
	SetSaleStatus(ctx context.Context, saleID int64, status sales.SaleStatus) error
	SetSalePayment(ctx context.Context, saleID int64, payment sales.PaymentStatus) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const recordColumns = `id, batch_id, sale_id, estado, estado_pago, notes, updated_by, created_at, updated_at`

func scanRecord(row pgx.Row) (*ShipmentRecord, error) {
	var rec ShipmentRecord
	var notes pgtype.Text
	err := row.Scan(&rec.ID, &rec.BatchID, &rec.SaleID, &rec.Status, &rec.Payment,
		&notes, &rec.UpdatedBy, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if notes.Valid {
		rec.Notes = &notes.String
	}
	return &rec, nil
}

func (r *repository) GetRecord(ctx context.Context, id int64) (*ShipmentRecord, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM shipment_records WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (r *repository) ListByBatch(ctx context.Context, batchID string) ([]ShipmentRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM shipment_records WHERE batch_id = $1 ORDER BY id`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ShipmentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

func (r *repository) ListManifestRows(ctx context.Context, batchID string) ([]ManifestRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, s.numero, s.total, r.estado, r.estado_pago, r.created_at,
		       c.id, c.name, c.street, c.street_number, c.postal_code, c.city, c.province,
		       COALESCE(c.phone, ''), c.active,
		       COALESCE((SELECT SUM(l.cantidad) FROM sale_lines l WHERE l.sale_id = s.id), 0)
		FROM shipment_records r
		JOIN sales s ON r.sale_id = s.id
		JOIN customers c ON s.customer_id = c.id
		WHERE r.batch_id = $1
		ORDER BY r.id
	`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ManifestRow
	for rows.Next() {
		var m ManifestRow
		var total pgtype.Numeric
		var items int64
		err := rows.Scan(&m.ShipmentID, &m.SaleNumber, &total, &m.Status, &m.Payment, &m.CreatedAt,
			&m.Customer.ID, &m.Customer.Name, &m.Customer.Street, &m.Customer.StreetNumber,
			&m.Customer.PostalCode, &m.Customer.City, &m.Customer.Province,
			&m.Customer.Phone, &m.Customer.Active, &items)
		if err != nil {
			return nil, err
		}
		m.Amount = db.Decimal(total)
		m.Items = int(items)
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// ListCandidates selects and locks the eligible sales. The sale rows are
// locked up front so a concurrent edit or second batch generation waits
// until this unit of work settles.
func (t *txRepository) ListCandidates(ctx context.Context, req GenerateBatchRequest) ([]Candidate, error) {
	conditions := []string{`s.estado IN ('EN_PROCESO', 'REPROGRAMADA')`}
	var args []any
	argPos := 1

	if len(req.SaleIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("s.id = ANY($%d)", argPos))
		args = append(args, req.SaleIDs)
		argPos++
	}
	if req.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("s.fecha >= $%d", argPos))
		args = append(args, *req.DateFrom)
		argPos++
	}
	if req.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("s.fecha <= $%d", argPos))
		args = append(args, *req.DateTo)
		argPos++
	}

	where := conditions[0]
	for i := 1; i < len(conditions); i++ {
		where += " AND " + conditions[i]
	}

	rows, err := t.tx.Query(ctx, fmt.Sprintf(`
		SELECT s.id, s.numero, s.estado, s.total,
		       c.id, c.name, c.street, c.street_number, c.postal_code, c.city, c.province,
		       COALESCE(c.phone, ''), c.active
		FROM sales s
		JOIN customers c ON s.customer_id = c.id
		WHERE %s
		ORDER BY s.id
		FOR UPDATE OF s
	`, where), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []Candidate
	var ids []int64
	for rows.Next() {
		var cd Candidate
		var total pgtype.Numeric
		err := rows.Scan(&cd.SaleID, &cd.SaleNumber, &cd.Status, &total,
			&cd.Customer.ID, &cd.Customer.Name, &cd.Customer.Street, &cd.Customer.StreetNumber,
			&cd.Customer.PostalCode, &cd.Customer.City, &cd.Customer.Province,
			&cd.Customer.Phone, &cd.Customer.Active)
		if err != nil {
			return nil, err
		}
		cd.Total = db.Decimal(total)
		candidates = append(candidates, cd)
		ids = append(ids, cd.SaleID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return candidates, nil
	}

	// Aggregates cannot ride along with FOR UPDATE, so item counts come
	// from a second query over the locked set.
	counts := make(map[int64]int, len(ids))
	countRows, err := t.tx.Query(ctx,
		`SELECT sale_id, SUM(cantidad) FROM sale_lines WHERE sale_id = ANY($1) GROUP BY sale_id`, ids)
	if err != nil {
		return nil, err
	}
	defer countRows.Close()
	for countRows.Next() {
		var saleID, qty int64
		if err := countRows.Scan(&saleID, &qty); err != nil {
			return nil, err
		}
		counts[saleID] = int(qty)
	}
	if err := countRows.Err(); err != nil {
		return nil, err
	}
	for i := range candidates {
		candidates[i].ItemCount = counts[candidates[i].SaleID]
	}
	return candidates, nil
}

// NextBatchSequence advances the per-day batch counter atomically, same
// scheme as the sale number counter.
func (t *txRepository) NextBatchSequence(ctx context.Context, day string) (int64, error) {
	var counter int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO shipment_batch_counters (day, counter) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET counter = shipment_batch_counters.counter + 1
		RETURNING counter
	`, day).Scan(&counter)
	if err != nil {
		return 0, fmt.Errorf("shipments: next batch sequence for %s: %w", day, err)
	}
	return counter, nil
}

func (t *txRepository) InsertRecord(ctx context.Context, rec ShipmentRecord) (int64, error) {
	var notes pgtype.Text
	if rec.Notes != nil {
		notes = pgtype.Text{String: *rec.Notes, Valid: true}
	}
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO shipment_records (batch_id, sale_id, estado, estado_pago, notes, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, rec.BatchID, rec.SaleID, rec.Status, rec.Payment, notes, rec.UpdatedBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("shipments: insert record: %w", err)
	}
	return id, nil
}

func (t *txRepository) GetRecordForUpdate(ctx context.Context, id int64) (*ShipmentRecord, error) {
	rec, err := scanRecord(t.tx.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM shipment_records WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (t *txRepository) UpdateRecord(ctx context.Context, id int64, updates map[string]any) error {
	query := "UPDATE shipment_records SET updated_at = NOW()"
	var args []any
	argPos := 1

	for _, col := range []string{"estado", "estado_pago", "notes", "updated_by"} {
		if v, ok := updates[col]; ok {
			query += fmt.Sprintf(", %s = $%d", col, argPos)
			args = append(args, v)
			argPos++
		}
	}

	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	_, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("shipments: update record %d: %w", id, err)
	}
	return nil
}

func (t *txRepository) GetSaleState(ctx context.Context, saleID int64) (sales.SaleStatus, sales.PaymentStatus, error) {
	var status sales.SaleStatus
	var payment sales.PaymentStatus
	err := t.tx.QueryRow(ctx,
		`SELECT estado, estado_pago FROM sales WHERE id = $1 FOR UPDATE`, saleID).Scan(&status, &payment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", ErrNotFound
		}
		return "", "", err
	}
	return status, payment, nil
}

func (t *txRepository) SetSaleStatus(ctx context.Context, saleID int64, status sales.SaleStatus) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE sales SET estado = $2, updated_at = NOW() WHERE id = $1`, saleID, status)
	if err != nil {
		return fmt.Errorf("shipments: set sale %d status: %w", saleID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) SetSalePayment(ctx context.Context, saleID int64, payment sales.PaymentStatus) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE sales SET estado_pago = $2, updated_at = NOW() WHERE id = $1`, saleID, payment)
	if err != nil {
		return fmt.Errorf("shipments: set sale %d payment: %w", saleID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
