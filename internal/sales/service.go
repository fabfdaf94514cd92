package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/esencia-erp/esencia/internal/inventory"
	"github.com/esencia-erp/esencia/internal/masterdata"
	"github.com/esencia-erp/esencia/internal/shared"
)

// numberRetries bounds recovery from a sale-number unique violation. The
// serialized counter makes a collision exceptional, so a small bound is
// enough.
const numberRetries = 3

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort abstracts the processed-key store.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service coordinates sale mutations. Every operation is one unit of work:
// either all writes (header, lines, stock deltas) commit together or none
// do.
type Service struct {
	repo     Repository
	products inventory.Repository
	master   masterdata.Repository
	audit    AuditPort
	idem     IdempotencyPort
}

// NewService builds a Service. Audit and idempotency are optional.
func NewService(repo Repository, products inventory.Repository, master masterdata.Repository, audit AuditPort, idem IdempotencyPort) *Service {
	return &Service{repo: repo, products: products, master: master, audit: audit, idem: idem}
}

// Get returns one sale with its lines.
func (s *Service) Get(ctx context.Context, id int64) (*Sale, error) {
	return s.repo.Get(ctx, id)
}

// GetByNumber returns one sale by its sale number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Sale, error) {
	return s.repo.GetByNumber(ctx, number)
}

// List returns a filtered page of sales.
func (s *Service) List(ctx context.Context, req ListSalesRequest) ([]SaleWithCustomer, int, error) {
	return s.repo.List(ctx, req)
}

// Create validates references and stock for every line, computes totals and
// persists the sale, its lines and the stock reservations in one unit of
// work. Checks collect every failure before aborting: all missing or
// inactive references are reported at once, as are all stock shortages.
func (s *Service) Create(ctx context.Context, req CreateSaleRequest, operatorID int64) (*Sale, error) {
	if verr := validateCreate(req); verr != nil {
		return nil, verr
	}

	refs, method, err := s.checkHeaderReferences(ctx, req.CustomerID, req.PaymentMethodID)
	if err != nil {
		return nil, err
	}
	products, productRefs, err := s.checkProducts(ctx, req.Lines)
	if err != nil {
		return nil, err
	}
	refs = append(refs, productRefs...)
	if len(refs) > 0 {
		return nil, &ReferenceError{Refs: refs}
	}

	if method.RequiresReference && (req.PaymentReference == nil || *req.PaymentReference == "") {
		return nil, &ValidationError{Fields: []FieldError{
			{Field: "payment_reference", Reason: fmt.Sprintf("payment method %q requires a reference", method.Name)},
		}}
	}

	if serr := checkStock(req.Lines, products); serr != nil {
		return nil, serr
	}

	lines := buildLines(req.Lines, products)
	subtotal, discountTotal, total := Totals(lines, req.ShippingCost)

	date := time.Now()
	if req.Date != nil {
		date = *req.Date
	}

	if req.IdempotencyKey != "" && s.idem != nil {
		// Written outside the unit of work: a crash before commit can
		// orphan the key, answering retries with a conflict until the
		// cleanup job prunes it.
		if err := s.idem.CheckAndInsert(ctx, req.IdempotencyKey, "sales"); err != nil {
			return nil, err
		}
	}

	var saleID int64
	err = s.withNumberRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextNumber(ctx, date)
		if err != nil {
			return err
		}

		id, err := tx.InsertSale(ctx, Sale{
			Number:           number,
			Date:             date,
			CustomerID:       req.CustomerID,
			OperatorID:       operatorID,
			PaymentMethodID:  req.PaymentMethodID,
			PaymentReference: req.PaymentReference,
			Subtotal:         subtotal,
			DiscountTotal:    discountTotal,
			ShippingCost:     req.ShippingCost,
			Total:            total,
			Status:           StatusInProgress,
			Payment:          PaymentPending,
			Notes:            req.Notes,
		})
		if err != nil {
			return err
		}
		saleID = id

		for _, line := range lines {
			line.SaleID = id
			if _, err := tx.InsertLine(ctx, line); err != nil {
				return err
			}
			if err := tx.ReserveStock(ctx, line.ProductID, line.Quantity); err != nil {
				return translateStockErr(err)
			}
		}
		return nil
	})
	if err != nil {
		if req.IdempotencyKey != "" && s.idem != nil {
			_ = s.idem.Delete(ctx, req.IdempotencyKey)
		}
		return nil, err
	}

	s.recordAudit(ctx, operatorID, "sales:create", saleID, map[string]any{
		"total": total.StringFixed(2),
		"lines": len(lines),
	})
	return s.repo.Get(ctx, saleID)
}

// Revise edits a sale, adjusting stock for the quantity delta of each
// replaced line: increased quantities reserve the difference, decreased
// quantities release it.
func (s *Service) Revise(ctx context.Context, id int64, req ReviseSaleRequest, operatorID int64) (*Sale, error) {
	return s.revise(ctx, id, req, operatorID, true)
}

// ReviseCorrective edits a sale without touching stock at all. Meant for
// corrective edits that must not double-count stock already adjusted by the
// original create; the caller is trusted to have reconciled stock
// out-of-band. A genuine quantity change through this path leaves recorded
// stock out of sync with the edited quantities.
func (s *Service) ReviseCorrective(ctx context.Context, id int64, req ReviseSaleRequest, operatorID int64) (*Sale, error) {
	return s.revise(ctx, id, req, operatorID, false)
}

func (s *Service) revise(ctx context.Context, id int64, req ReviseSaleRequest, operatorID int64, adjustStock bool) (*Sale, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanEdit(existing.Status, existing.Payment) {
		return nil, &StateError{SaleID: id, Status: existing.Status, Payment: existing.Payment}
	}

	if verr := validateRevise(req); verr != nil {
		return nil, verr
	}

	var method *masterdata.PaymentMethod
	if req.PaymentMethodID != nil {
		var refs []MissingReference
		refs, method, err = s.checkPaymentMethod(ctx, *req.PaymentMethodID)
		if err != nil {
			return nil, err
		}
		if len(refs) > 0 {
			return nil, &ReferenceError{Refs: refs}
		}
		ref := existing.PaymentReference
		if req.PaymentReference != nil {
			ref = req.PaymentReference
		}
		if method.RequiresReference && (ref == nil || *ref == "") {
			return nil, &ValidationError{Fields: []FieldError{
				{Field: "payment_reference", Reason: fmt.Sprintf("payment method %q requires a reference", method.Name)},
			}}
		}
	}

	var newLines []SaleLine
	var products map[int64]*inventory.Product
	if req.Lines != nil {
		var productRefs []MissingReference
		products, productRefs, err = s.checkProducts(ctx, *req.Lines)
		if err != nil {
			return nil, err
		}
		if len(productRefs) > 0 {
			return nil, &ReferenceError{Refs: productRefs}
		}
		newLines = buildLines(*req.Lines, products)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		// Re-check under lock: a shipment update may have landed since the
		// first read.
		if !CanEdit(locked.Status, locked.Payment) {
			return &StateError{SaleID: id, Status: locked.Status, Payment: locked.Payment}
		}

		updates := map[string]any{}
		if req.Date != nil {
			updates["fecha"] = *req.Date
		}
		if req.PaymentMethodID != nil {
			updates["payment_method_id"] = *req.PaymentMethodID
		}
		if req.PaymentReference != nil {
			updates["payment_reference"] = *req.PaymentReference
		}
		if req.Notes != nil {
			updates["notes"] = *req.Notes
		}
		if req.Payment != nil {
			updates["estado_pago"] = *req.Payment
		}
		updates["operator_id"] = operatorID

		shipping := locked.ShippingCost
		if req.ShippingCost != nil {
			shipping = *req.ShippingCost
		}

		totalsInput := locked.Lines
		if req.Lines != nil {
			totalsInput = newLines
		}
		subtotal, discountTotal, total := Totals(totalsInput, shipping)
		updates["subtotal"] = subtotal
		updates["descuento_total"] = discountTotal
		updates["costo_envio"] = shipping
		updates["total"] = total

		if err := tx.UpdateSale(ctx, id, updates); err != nil {
			return err
		}

		if req.Lines != nil {
			var deltas map[int64]int
			if adjustStock {
				// Deltas come from the lines as they exist under lock, not
				// from the earlier unlocked read; a concurrent revise may
				// have replaced them in between.
				deltas = quantityDeltas(locked.Lines, newLines)
				if serr := checkDeltaStock(deltas, products); serr != nil {
					return serr
				}
			}
			if err := tx.DeleteLines(ctx, id); err != nil {
				return err
			}
			for _, line := range newLines {
				line.SaleID = id
				if _, err := tx.InsertLine(ctx, line); err != nil {
					return err
				}
			}
			for productID, delta := range deltas {
				switch {
				case delta > 0:
					if err := tx.ReserveStock(ctx, productID, delta); err != nil {
						return translateStockErr(err)
					}
				case delta < 0:
					if err := tx.ReleaseStock(ctx, productID, -delta); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	action := "sales:revise"
	if !adjustStock {
		action = "sales:revise_corrective"
	}
	s.recordAudit(ctx, operatorID, action, id, map[string]any{"lines_replaced": req.Lines != nil})
	return s.repo.Get(ctx, id)
}

// Delete removes a sale after restoring the stock of every line. If any
// restoration fails the whole delete fails and nothing changes.
func (s *Service) Delete(ctx context.Context, id int64, operatorID int64) error {
	var released int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanEdit(sale.Status, sale.Payment) {
			return &StateError{SaleID: id, Status: sale.Status, Payment: sale.Payment}
		}

		for _, line := range sale.Lines {
			if err := tx.ReleaseStock(ctx, line.ProductID, line.Quantity); err != nil {
				return err
			}
			released++
		}
		if err := tx.DeleteLines(ctx, id); err != nil {
			return err
		}
		return tx.DeleteSale(ctx, id)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, operatorID, "sales:delete", id, map[string]any{"lines_released": released})
	return nil
}

// withNumberRetry reruns the unit of work when the generated sale number
// collides with an existing row or the counter upsert loses a
// serialization race.
func (s *Service) withNumberRetry(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	var err error
	for attempt := 0; attempt < numberRetries; attempt++ {
		err = s.repo.WithTx(ctx, fn)
		if !retriableNumberErr(err) {
			return err
		}
	}
	return fmt.Errorf("sales: number generation kept colliding after %d attempts: %w", numberRetries, err)
}

func retriableNumberErr(err error) bool {
	if errors.Is(err, errNumberCollision) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func (s *Service) checkHeaderReferences(ctx context.Context, customerID, paymentMethodID int64) ([]MissingReference, *masterdata.PaymentMethod, error) {
	var refs []MissingReference

	customer, err := s.master.GetCustomer(ctx, customerID)
	switch {
	case errors.Is(err, masterdata.ErrCustomerNotFound):
		refs = append(refs, MissingReference{Kind: "customer", ID: customerID, Reason: "not found"})
	case err != nil:
		return nil, nil, err
	case !customer.Active:
		refs = append(refs, MissingReference{Kind: "customer", ID: customerID, Reason: "inactive"})
	}

	methodRefs, method, err := s.checkPaymentMethod(ctx, paymentMethodID)
	if err != nil {
		return nil, nil, err
	}
	refs = append(refs, methodRefs...)
	if method == nil {
		method = &masterdata.PaymentMethod{}
	}
	return refs, method, nil
}

func (s *Service) checkPaymentMethod(ctx context.Context, id int64) ([]MissingReference, *masterdata.PaymentMethod, error) {
	method, err := s.master.GetPaymentMethod(ctx, id)
	switch {
	case errors.Is(err, masterdata.ErrPaymentMethodNotFound):
		return []MissingReference{{Kind: "payment_method", ID: id, Reason: "not found"}}, nil, nil
	case err != nil:
		return nil, nil, err
	case !method.Active:
		return []MissingReference{{Kind: "payment_method", ID: id, Reason: "inactive"}}, method, nil
	}
	return nil, method, nil
}

func (s *Service) checkProducts(ctx context.Context, lines []LineRequest) (map[int64]*inventory.Product, []MissingReference, error) {
	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]bool, len(lines))
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}

	products, err := s.products.GetProducts(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	var refs []MissingReference
	for _, id := range ids {
		p, ok := products[id]
		switch {
		case !ok:
			refs = append(refs, MissingReference{Kind: "product", ID: id, Reason: "not found"})
		case !p.Active:
			refs = append(refs, MissingReference{Kind: "product", ID: id, Reason: "inactive"})
		}
	}
	return products, refs, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, saleID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "sale",
		EntityID: fmt.Sprintf("%d", saleID),
		Meta:     meta,
	})
}

func validateCreate(req CreateSaleRequest) *ValidationError {
	var fields []FieldError
	if req.CustomerID <= 0 {
		fields = append(fields, FieldError{Field: "customer_id", Reason: "required"})
	}
	if req.PaymentMethodID <= 0 {
		fields = append(fields, FieldError{Field: "payment_method_id", Reason: "required"})
	}
	if req.ShippingCost.IsNegative() {
		fields = append(fields, FieldError{Field: "costo_envio", Reason: "must not be negative"})
	}
	if len(req.Lines) == 0 {
		fields = append(fields, FieldError{Field: "lines", Reason: "at least one line required"})
	}
	fields = append(fields, validateLines(req.Lines)...)
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func validateRevise(req ReviseSaleRequest) *ValidationError {
	var fields []FieldError
	if req.ShippingCost != nil && req.ShippingCost.IsNegative() {
		fields = append(fields, FieldError{Field: "costo_envio", Reason: "must not be negative"})
	}
	if req.Payment != nil && *req.Payment != PaymentPending && *req.Payment != PaymentPaid {
		fields = append(fields, FieldError{Field: "estado_pago", Reason: "unknown payment status"})
	}
	if req.Lines != nil {
		if len(*req.Lines) == 0 {
			fields = append(fields, FieldError{Field: "lines", Reason: "at least one line required"})
		}
		fields = append(fields, validateLines(*req.Lines)...)
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func validateLines(lines []LineRequest) []FieldError {
	var fields []FieldError
	for i, l := range lines {
		if l.ProductID <= 0 {
			fields = append(fields, FieldError{Field: fmt.Sprintf("lines[%d].product_id", i), Reason: "required"})
		}
		if l.Quantity < 1 {
			fields = append(fields, FieldError{Field: fmt.Sprintf("lines[%d].cantidad", i), Reason: "must be at least 1"})
		}
		if l.UnitPrice != nil && l.UnitPrice.IsNegative() {
			fields = append(fields, FieldError{Field: fmt.Sprintf("lines[%d].precio_unitario", i), Reason: "must not be negative"})
		}
		if l.DiscountPct.IsNegative() || l.DiscountPct.GreaterThan(hundred) {
			fields = append(fields, FieldError{Field: fmt.Sprintf("lines[%d].descuento_pct", i), Reason: "must be between 0 and 100"})
		}
	}
	return fields
}

// checkStock collects every shortage for the requested lines against the
// current product rows. Quantities of repeated products accumulate.
func checkStock(lines []LineRequest, products map[int64]*inventory.Product) *StockError {
	requested := make(map[int64]int)
	for _, l := range lines {
		requested[l.ProductID] += l.Quantity
	}

	var shortages []Shortage
	for _, l := range lines {
		qty, pending := requested[l.ProductID]
		if !pending {
			continue
		}
		delete(requested, l.ProductID)
		p := products[l.ProductID]
		if p == nil {
			continue
		}
		if p.Stock < qty {
			shortages = append(shortages, Shortage{
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   qty,
				Available:   p.Stock,
			})
		}
	}
	if len(shortages) > 0 {
		return &StockError{Shortages: shortages}
	}
	return nil
}

// checkDeltaStock collects shortages for positive quantity deltas. A
// positive delta implies the product appears in the new lines, so the
// catalog map always carries it; negative deltas are releases and cannot
// fall short.
func checkDeltaStock(deltas map[int64]int, products map[int64]*inventory.Product) *StockError {
	var shortages []Shortage
	for productID, delta := range deltas {
		if delta <= 0 {
			continue
		}
		p := products[productID]
		if p == nil {
			continue
		}
		if p.Stock < delta {
			shortages = append(shortages, Shortage{
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   delta,
				Available:   p.Stock,
			})
		}
	}
	if len(shortages) > 0 {
		return &StockError{Shortages: shortages}
	}
	return nil
}

func buildLines(reqs []LineRequest, products map[int64]*inventory.Product) []SaleLine {
	lines := make([]SaleLine, 0, len(reqs))
	for _, r := range reqs {
		unitPrice := decimal.Zero
		if r.UnitPrice != nil {
			unitPrice = *r.UnitPrice
		} else if p := products[r.ProductID]; p != nil {
			unitPrice = p.UnitPrice
		}
		discountAmount, discountedPrice, subtotal := LineAmounts(unitPrice, r.DiscountPct, r.Quantity)
		lines = append(lines, SaleLine{
			ProductID:       r.ProductID,
			Quantity:        r.Quantity,
			UnitPrice:       unitPrice,
			DiscountPct:     r.DiscountPct,
			DiscountAmount:  discountAmount,
			DiscountedPrice: discountedPrice,
			Subtotal:        subtotal,
		})
	}
	return lines
}

// quantityDeltas computes per-product quantity changes between the old and
// new line sets.
func quantityDeltas(oldLines, newLines []SaleLine) map[int64]int {
	deltas := make(map[int64]int)
	for _, l := range newLines {
		deltas[l.ProductID] += l.Quantity
	}
	for _, l := range oldLines {
		deltas[l.ProductID] -= l.Quantity
	}
	for id, d := range deltas {
		if d == 0 {
			delete(deltas, id)
		}
	}
	return deltas
}

// translateStockErr converts a ledger shortage raised under lock into the
// service-level StockError shape.
func translateStockErr(err error) error {
	var short *inventory.InsufficientStockError
	if errors.As(err, &short) {
		return &StockError{Shortages: []Shortage{{
			ProductID:   short.ProductID,
			ProductName: short.ProductName,
			Requested:   short.Requested,
			Available:   short.Available,
		}}}
	}
	return err
}
