package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/esencia-erp/esencia/internal/inventory"
	"github.com/esencia-erp/esencia/internal/platform/db"
)

// Repository is the read side plus the unit-of-work entry point.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*Sale, error)
	GetByNumber(ctx context.Context, number string) (*Sale, error)
	List(ctx context.Context, req ListSalesRequest) ([]SaleWithCustomer, int, error)
}

// TxRepository exposes the writes of one unit of work. Stock operations run
// on the same transaction, so an aborted sale never leaves a stock delta
// behind.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (*Sale, error)
	NextNumber(ctx context.Context, at time.Time) (string, error)
	InsertSale(ctx context.Context, s Sale) (int64, error)
	UpdateSale(ctx context.Context, id int64, updates map[string]any) error
	InsertLine(ctx context.Context, l SaleLine) (int64, error)
	DeleteLines(ctx context.Context, saleID int64) error
	DeleteSale(ctx context.Context, saleID int64) error
	ReserveStock(ctx context.Context, productID int64, qty int) error
	ReleaseStock(ctx context.Context, productID int64, qty int) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

type txRepository struct {
	tx     pgx.Tx
	ledger *inventory.Ledger
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, ledger: inventory.NewLedger(tx)})
	})
}

const saleColumns = `id, numero, fecha, customer_id, operator_id, payment_method_id,
	payment_reference, subtotal, descuento_total, costo_envio, total,
	estado, estado_pago, notes, created_at, updated_at`

func scanSale(row pgx.Row) (*Sale, error) {
	var s Sale
	var paymentRef, notes pgtype.Text
	var subtotal, discountTotal, shipping, total pgtype.Numeric
	err := row.Scan(
		&s.ID, &s.Number, &s.Date, &s.CustomerID, &s.OperatorID, &s.PaymentMethodID,
		&paymentRef, &subtotal, &discountTotal, &shipping, &total,
		&s.Status, &s.Payment, &notes, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if paymentRef.Valid {
		s.PaymentReference = &paymentRef.String
	}
	if notes.Valid {
		s.Notes = &notes.String
	}
	s.Subtotal = db.Decimal(subtotal)
	s.DiscountTotal = db.Decimal(discountTotal)
	s.ShippingCost = db.Decimal(shipping)
	s.Total = db.Decimal(total)
	return &s, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getSale(ctx context.Context, q queryer, query string, arg any) (*Sale, error) {
	s, err := scanSale(q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	lines, err := getLines(ctx, q, s.ID)
	if err != nil {
		return nil, err
	}
	s.Lines = lines
	return s, nil
}

func getLines(ctx context.Context, q queryer, saleID int64) ([]SaleLine, error) {
	rows, err := q.Query(ctx, `
		SELECT id, sale_id, product_id, cantidad, precio_unitario,
		       descuento_pct, descuento_monto, precio_con_descuento, subtotal
		FROM sale_lines
		WHERE sale_id = $1
		ORDER BY id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []SaleLine
	for rows.Next() {
		var l SaleLine
		var unitPrice, discountPct, discountAmount, discountedPrice, subtotal pgtype.Numeric
		if err := rows.Scan(&l.ID, &l.SaleID, &l.ProductID, &l.Quantity,
			&unitPrice, &discountPct, &discountAmount, &discountedPrice, &subtotal); err != nil {
			return nil, err
		}
		l.UnitPrice = db.Decimal(unitPrice)
		l.DiscountPct = db.Decimal(discountPct)
		l.DiscountAmount = db.Decimal(discountAmount)
		l.DiscountedPrice = db.Decimal(discountedPrice)
		l.Subtotal = db.Decimal(subtotal)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Sale, error) {
	return getSale(ctx, r.pool, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
}

func (r *repository) GetByNumber(ctx context.Context, number string) (*Sale, error) {
	return getSale(ctx, r.pool, `SELECT `+saleColumns+` FROM sales WHERE numero = $1`, number)
}

func (r *repository) List(ctx context.Context, req ListSalesRequest) ([]SaleWithCustomer, int, error) {
	conditions := []string{"TRUE"}
	var args []any
	argPos := 1

	add := func(cond string, val any) {
		conditions = append(conditions, fmt.Sprintf(cond, argPos))
		args = append(args, val)
		argPos++
	}
	if req.Status != nil {
		add("s.estado = $%d", *req.Status)
	}
	if req.Payment != nil {
		add("s.estado_pago = $%d", *req.Payment)
	}
	if req.CustomerID != nil {
		add("s.customer_id = $%d", *req.CustomerID)
	}
	if req.DateFrom != nil {
		add("s.fecha >= $%d", *req.DateFrom)
	}
	if req.DateTo != nil {
		add("s.fecha <= $%d", *req.DateTo)
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM sales s %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := req.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}

	query := fmt.Sprintf(`
		SELECT s.id, s.numero, s.fecha, s.customer_id, s.operator_id, s.payment_method_id,
		       s.payment_reference, s.subtotal, s.descuento_total, s.costo_envio, s.total,
		       s.estado, s.estado_pago, s.notes, s.created_at, s.updated_at,
		       c.name AS customer_name
		FROM sales s
		JOIN customers c ON s.customer_id = c.id
		%s
		ORDER BY s.fecha DESC, s.id DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argPos, argPos+1)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []SaleWithCustomer
	for rows.Next() {
		var sc SaleWithCustomer
		var paymentRef, notes pgtype.Text
		var subtotal, discountTotal, shipping, totalAmt pgtype.Numeric
		err := rows.Scan(
			&sc.ID, &sc.Number, &sc.Date, &sc.CustomerID, &sc.OperatorID, &sc.PaymentMethodID,
			&paymentRef, &subtotal, &discountTotal, &shipping, &totalAmt,
			&sc.Status, &sc.Payment, &notes, &sc.CreatedAt, &sc.UpdatedAt,
			&sc.CustomerName,
		)
		if err != nil {
			return nil, 0, err
		}
		if paymentRef.Valid {
			sc.PaymentReference = &paymentRef.String
		}
		if notes.Valid {
			sc.Notes = &notes.String
		}
		sc.Subtotal = db.Decimal(subtotal)
		sc.DiscountTotal = db.Decimal(discountTotal)
		sc.ShippingCost = db.Decimal(shipping)
		sc.Total = db.Decimal(totalAmt)
		result = append(result, sc)
	}
	return result, total, rows.Err()
}

func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (*Sale, error) {
	return getSale(ctx, t.tx, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id)
}

// NextNumber advances the per-month counter atomically. The upsert
// serializes concurrent callers on the counter row, so two units of work in
// the same month can never observe the same value.
func (t *txRepository) NextNumber(ctx context.Context, at time.Time) (string, error) {
	period := at.Format("012006")
	var counter int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO sale_number_counters (period, counter) VALUES ($1, 1)
		ON CONFLICT (period) DO UPDATE SET counter = sale_number_counters.counter + 1
		RETURNING counter
	`, period).Scan(&counter)
	if err != nil {
		return "", fmt.Errorf("sales: next number for %s: %w", period, err)
	}
	return fmt.Sprintf("VTA-%s-%06d", period, counter), nil
}

func (t *txRepository) InsertSale(ctx context.Context, s Sale) (int64, error) {
	var paymentRef, notes pgtype.Text
	if s.PaymentReference != nil {
		paymentRef = pgtype.Text{String: *s.PaymentReference, Valid: true}
	}
	if s.Notes != nil {
		notes = pgtype.Text{String: *s.Notes, Valid: true}
	}

	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO sales (numero, fecha, customer_id, operator_id, payment_method_id,
		                   payment_reference, subtotal, descuento_total, costo_envio, total,
		                   estado, estado_pago, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`,
		s.Number, s.Date, s.CustomerID, s.OperatorID, s.PaymentMethodID,
		paymentRef, db.Numeric(s.Subtotal), db.Numeric(s.DiscountTotal),
		db.Numeric(s.ShippingCost), db.Numeric(s.Total),
		s.Status, s.Payment, notes,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "sales_numero_key" {
			return 0, errNumberCollision
		}
		return 0, fmt.Errorf("sales: insert sale: %w", err)
	}
	return id, nil
}

func (t *txRepository) UpdateSale(ctx context.Context, id int64, updates map[string]any) error {
	query := "UPDATE sales SET updated_at = NOW()"
	var args []any
	argPos := 1

	// Fixed column order keeps the generated statement deterministic.
	for _, col := range []string{
		"fecha", "payment_method_id", "payment_reference",
		"subtotal", "descuento_total", "costo_envio", "total",
		"estado", "estado_pago", "notes", "operator_id",
	} {
		if v, ok := updates[col]; ok {
			if d, isDecimal := v.(decimal.Decimal); isDecimal {
				v = db.Numeric(d)
			}
			query += fmt.Sprintf(", %s = $%d", col, argPos)
			args = append(args, v)
			argPos++
		}
	}

	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	_, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sales: update sale %d: %w", id, err)
	}
	return nil
}

func (t *txRepository) InsertLine(ctx context.Context, l SaleLine) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO sale_lines (sale_id, product_id, cantidad, precio_unitario,
		                        descuento_pct, descuento_monto, precio_con_descuento, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		l.SaleID, l.ProductID, l.Quantity, db.Numeric(l.UnitPrice),
		db.Numeric(l.DiscountPct), db.Numeric(l.DiscountAmount),
		db.Numeric(l.DiscountedPrice), db.Numeric(l.Subtotal),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("sales: insert line: %w", err)
	}
	return id, nil
}

func (t *txRepository) DeleteLines(ctx context.Context, saleID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM sale_lines WHERE sale_id = $1`, saleID)
	return err
}

func (t *txRepository) DeleteSale(ctx context.Context, saleID int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) ReserveStock(ctx context.Context, productID int64, qty int) error {
	return t.ledger.Reserve(ctx, productID, qty)
}

func (t *txRepository) ReleaseStock(ctx context.Context, productID int64, qty int) error {
	return t.ledger.Release(ctx, productID, qty)
}
