package shipments

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esencia-erp/esencia/internal/masterdata"
	"github.com/esencia-erp/esencia/internal/sales"
	"github.com/esencia-erp/esencia/internal/shared"
)

type fakeSaleRow struct {
	ID       int64
	Number   string
	Date     time.Time
	Status   sales.SaleStatus
	Payment  sales.PaymentStatus
	Total    decimal.Decimal
	Items    int
	Customer masterdata.Customer
}

// fakeStore backs the fake repository. WithTx serializes on the mutex and
// restores a snapshot on error, mirroring commit/rollback.
type fakeStore struct {
	mu       sync.Mutex
	records  map[int64]*ShipmentRecord
	saleRows map[int64]*fakeSaleRow
	counters map[string]int64
	nextRec  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records:  make(map[int64]*ShipmentRecord),
		saleRows: make(map[int64]*fakeSaleRow),
		counters: make(map[string]int64),
	}
}

func (st *fakeStore) snapshot() *fakeStore {
	snap := newFakeStore()
	for id, r := range st.records {
		cp := *r
		snap.records[id] = &cp
	}
	for id, s := range st.saleRows {
		cp := *s
		snap.saleRows[id] = &cp
	}
	for k, v := range st.counters {
		snap.counters[k] = v
	}
	snap.nextRec = st.nextRec
	return snap
}

func (st *fakeStore) restore(snap *fakeStore) {
	st.records = snap.records
	st.saleRows = snap.saleRows
	st.counters = snap.counters
	st.nextRec = snap.nextRec
}

type fakeRepo struct {
	store *fakeStore
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	snap := r.store.snapshot()
	if err := fn(ctx, &fakeTx{store: r.store}); err != nil {
		r.store.restore(snap)
		return err
	}
	return nil
}

func (r *fakeRepo) GetRecord(ctx context.Context, id int64) (*ShipmentRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rec, ok := r.store.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeRepo) ListByBatch(ctx context.Context, batchID string) ([]ShipmentRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []ShipmentRecord
	for id := int64(1); id <= r.store.nextRec; id++ {
		if rec, ok := r.store.records[id]; ok && rec.BatchID == batchID {
			out = append(out, *rec)
		}
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (r *fakeRepo) ListManifestRows(ctx context.Context, batchID string) ([]ManifestRow, error) {
	records, err := r.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rows := make([]ManifestRow, 0, len(records))
	for _, rec := range records {
		sale := r.store.saleRows[rec.SaleID]
		rows = append(rows, ManifestRow{
			ShipmentID: rec.ID,
			SaleNumber: sale.Number,
			Customer:   sale.Customer,
			Items:      sale.Items,
			Amount:     sale.Total,
			Status:     rec.Status,
			Payment:    rec.Payment,
			CreatedAt:  rec.CreatedAt,
		})
	}
	return rows, nil
}

type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) ListCandidates(ctx context.Context, req GenerateBatchRequest) ([]Candidate, error) {
	wanted := make(map[int64]bool, len(req.SaleIDs))
	for _, id := range req.SaleIDs {
		wanted[id] = true
	}

	var out []Candidate
	for id := int64(1); id <= int64(len(t.store.saleRows))+100; id++ {
		s, ok := t.store.saleRows[id]
		if !ok {
			continue
		}
		if s.Status != sales.StatusInProgress && s.Status != sales.StatusRescheduled {
			continue
		}
		if len(req.SaleIDs) > 0 && !wanted[s.ID] {
			continue
		}
		if req.DateFrom != nil && s.Date.Before(*req.DateFrom) {
			continue
		}
		if req.DateTo != nil && s.Date.After(*req.DateTo) {
			continue
		}
		out = append(out, Candidate{
			SaleID:     s.ID,
			SaleNumber: s.Number,
			Status:     s.Status,
			Total:      s.Total,
			ItemCount:  s.Items,
			Customer:   s.Customer,
		})
	}
	return out, nil
}

func (t *fakeTx) NextBatchSequence(ctx context.Context, day string) (int64, error) {
	t.store.counters[day]++
	return t.store.counters[day], nil
}

func (t *fakeTx) InsertRecord(ctx context.Context, rec ShipmentRecord) (int64, error) {
	t.store.nextRec++
	rec.ID = t.store.nextRec
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	t.store.records[rec.ID] = &rec
	return rec.ID, nil
}

func (t *fakeTx) GetRecordForUpdate(ctx context.Context, id int64) (*ShipmentRecord, error) {
	rec, ok := t.store.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (t *fakeTx) UpdateRecord(ctx context.Context, id int64, updates map[string]any) error {
	rec, ok := t.store.records[id]
	if !ok {
		return ErrNotFound
	}
	for col, v := range updates {
		switch col {
		case "estado":
			rec.Status = v.(DeliveryStatus)
		case "estado_pago":
			rec.Payment = v.(PaymentOutcome)
		case "notes":
			n := v.(string)
			rec.Notes = &n
		case "updated_by":
			rec.UpdatedBy = v.(int64)
		default:
			return fmt.Errorf("fake: unknown column %s", col)
		}
	}
	rec.UpdatedAt = time.Now()
	return nil
}

func (t *fakeTx) GetSaleState(ctx context.Context, saleID int64) (sales.SaleStatus, sales.PaymentStatus, error) {
	s, ok := t.store.saleRows[saleID]
	if !ok {
		return "", "", ErrNotFound
	}
	return s.Status, s.Payment, nil
}

func (t *fakeTx) SetSaleStatus(ctx context.Context, saleID int64, status sales.SaleStatus) error {
	s, ok := t.store.saleRows[saleID]
	if !ok {
		return ErrNotFound
	}
	s.Status = status
	return nil
}

func (t *fakeTx) SetSalePayment(ctx context.Context, saleID int64, payment sales.PaymentStatus) error {
	s, ok := t.store.saleRows[saleID]
	if !ok {
		return ErrNotFound
	}
	s.Payment = payment
	return nil
}

type fakeSaleReader struct {
	store *fakeStore
}

func (f *fakeSaleReader) Get(ctx context.Context, id int64) (*sales.Sale, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	s, ok := f.store.saleRows[id]
	if !ok {
		return nil, sales.ErrNotFound
	}
	return &sales.Sale{
		ID:      s.ID,
		Number:  s.Number,
		Status:  s.Status,
		Payment: s.Payment,
		Total:   s.Total,
	}, nil
}

func completeCustomer(id int64, name string) masterdata.Customer {
	return masterdata.Customer{
		ID: id, Name: name, Street: "Av. Corrientes", StreetNumber: "3480",
		PostalCode: "1193", City: "Buenos Aires", Province: "CABA", Phone: "11-5555-0101", Active: true,
	}
}

func seedStore() *fakeStore {
	store := newFakeStore()
	store.saleRows[1] = &fakeSaleRow{
		ID: 1, Number: "VTA-082026-000001", Date: time.Now(), Status: sales.StatusInProgress,
		Payment: sales.PaymentPending, Total: dec("3200"), Items: 3, Customer: completeCustomer(1, "Ana Gomez"),
	}
	store.saleRows[2] = &fakeSaleRow{
		ID: 2, Number: "VTA-082026-000002", Date: time.Now(), Status: sales.StatusRescheduled,
		Payment: sales.PaymentPending, Total: dec("750"), Items: 1, Customer: completeCustomer(2, "Bruno Diaz"),
	}
	return store
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestService(store *fakeStore) *Service {
	return NewService(nil, &fakeRepo{store: store}, &fakeSaleReader{store: store}, nil, nil)
}

func TestGenerateBatch_CreatesRecordsAndShipsSales(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)

	summary, err := svc.GenerateBatch(context.Background(), GenerateBatchRequest{}, 7)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^ENV-\d{8}-\d{4}-\d{2}$`), summary.BatchID)
	assert.Equal(t, 2, summary.Members)
	assert.Equal(t, 4, summary.Items)

	require.Len(t, store.records, 2)
	for _, rec := range store.records {
		assert.Equal(t, summary.BatchID, rec.BatchID)
		assert.Equal(t, DeliveryPending, rec.Status)
		assert.Equal(t, OutcomePending, rec.Payment)
		assert.Equal(t, int64(7), rec.UpdatedBy)
	}
	assert.Equal(t, sales.StatusShipped, store.saleRows[1].Status)
	assert.Equal(t, sales.StatusShipped, store.saleRows[2].Status)
}

func TestGenerateBatch_IncompleteAddressAbortsWhole(t *testing.T) {
	store := seedStore()
	store.saleRows[2].Customer.PostalCode = ""
	store.saleRows[2].Customer.City = ""
	svc := newTestService(store)

	_, err := svc.GenerateBatch(context.Background(), GenerateBatchRequest{}, 1)

	var aerr *IncompleteAddressError
	require.ErrorAs(t, err, &aerr)
	require.Len(t, aerr.Sales, 1)
	assert.Equal(t, "VTA-082026-000002", aerr.Sales[0].SaleNumber)
	assert.ElementsMatch(t, []string{"postal_code", "city"}, aerr.Sales[0].Missing)

	assert.Empty(t, store.records, "no partial batch")
	assert.Equal(t, sales.StatusInProgress, store.saleRows[1].Status, "statuses unchanged")
	assert.Equal(t, sales.StatusRescheduled, store.saleRows[2].Status)
}

func TestGenerateBatch_ExplicitSelection(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)

	summary, err := svc.GenerateBatch(context.Background(), GenerateBatchRequest{SaleIDs: []int64{2}}, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Members)
	assert.Equal(t, sales.StatusInProgress, store.saleRows[1].Status, "unselected sale untouched")
	assert.Equal(t, sales.StatusShipped, store.saleRows[2].Status)
}

func TestGenerateBatch_NoCandidates(t *testing.T) {
	store := seedStore()
	store.saleRows[1].Status = sales.StatusShipped
	store.saleRows[2].Status = sales.StatusDelivered
	svc := newTestService(store)

	_, err := svc.GenerateBatch(context.Background(), GenerateBatchRequest{}, 1)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestGenerateBatch_ShippedSaleNotEligibleAgain(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)

	_, err := svc.GenerateBatch(context.Background(), GenerateBatchRequest{}, 1)
	require.NoError(t, err)

	_, err = svc.GenerateBatch(context.Background(), GenerateBatchRequest{}, 1)
	assert.ErrorIs(t, err, ErrNoCandidates, "shipped sales must not join a second batch")
}

func TestGenerateBatch_DailySequenceIncrements(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)

	first, err := svc.GenerateBatch(context.Background(), GenerateBatchRequest{SaleIDs: []int64{1}}, 1)
	require.NoError(t, err)
	second, err := svc.GenerateBatch(context.Background(), GenerateBatchRequest{SaleIDs: []int64{2}}, 1)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`-01$`), first.BatchID)
	assert.Regexp(t, regexp.MustCompile(`-02$`), second.BatchID)
}

func shipAll(t *testing.T, svc *Service) string {
	t.Helper()
	summary, err := svc.GenerateBatch(context.Background(), GenerateBatchRequest{}, 1)
	require.NoError(t, err)
	return summary.BatchID
}

func TestUpdateShipment_PropagatesDeliveredAndPaid(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)
	shipAll(t, svc)

	delivered := DeliveryDelivered
	paid := OutcomePaid
	rec, sale, err := svc.UpdateShipment(context.Background(), 1, UpdateShipmentRequest{
		Delivery: &delivered,
		Payment:  &paid,
	}, 9)
	require.NoError(t, err)

	assert.Equal(t, DeliveryDelivered, rec.Status)
	assert.Equal(t, OutcomePaid, rec.Payment)
	assert.Equal(t, int64(9), rec.UpdatedBy)

	assert.Equal(t, sales.StatusDelivered, sale.Status)
	assert.Equal(t, sales.PaymentPaid, sale.Payment)
	assert.Equal(t, sales.StatusDelivered, store.saleRows[rec.SaleID].Status)
	assert.Equal(t, sales.PaymentPaid, store.saleRows[rec.SaleID].Payment)
}

func TestUpdateShipment_RejectedPaymentResetsPending(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)
	shipAll(t, svc)
	store.saleRows[1].Payment = sales.PaymentPaid

	rejected := OutcomeRejected
	rec, sale, err := svc.UpdateShipment(context.Background(), 1, UpdateShipmentRequest{Payment: &rejected}, 1)
	require.NoError(t, err)

	assert.Equal(t, OutcomeRejected, rec.Payment)
	assert.Equal(t, sales.PaymentPending, sale.Payment, "rejected collection returns the sale to pending")
}

func TestUpdateShipment_NotFoundOutcomeLeavesSaleShipped(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)
	shipAll(t, svc)

	notFound := DeliveryNotFound
	rec, sale, err := svc.UpdateShipment(context.Background(), 1, UpdateShipmentRequest{Delivery: &notFound}, 1)
	require.NoError(t, err)

	assert.Equal(t, DeliveryNotFound, rec.Status)
	assert.Equal(t, sales.StatusShipped, sale.Status, "no definitive outcome, sale stays shipped")
}

func TestUpdateShipment_RescheduledReentersEligibility(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)
	shipAll(t, svc)

	rescheduled := DeliveryRescheduled
	_, sale, err := svc.UpdateShipment(context.Background(), 2, UpdateShipmentRequest{Delivery: &rescheduled}, 1)
	require.NoError(t, err)
	assert.Equal(t, sales.StatusRescheduled, sale.Status)

	// The rescheduled sale can go out again.
	summary, err := svc.GenerateBatch(context.Background(), GenerateBatchRequest{}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Members)
}

func TestUpdateShipment_UnknownStatusRejected(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)
	shipAll(t, svc)

	bogus := DeliveryStatus("PERDIDO")
	_, _, err := svc.UpdateShipment(context.Background(), 1, UpdateShipmentRequest{Delivery: &bogus}, 1)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateBatch_ReportsPerMemberOutcomes(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)
	batchID := shipAll(t, svc)

	delivered := DeliveryDelivered
	outcomes, err := svc.UpdateBatch(context.Background(), batchID, []BatchUpdateItem{
		{ShipmentID: 1, UpdateShipmentRequest: UpdateShipmentRequest{Delivery: &delivered}},
		{ShipmentID: 99, UpdateShipmentRequest: UpdateShipmentRequest{Delivery: &delivered}},
	}, 1)
	require.NoError(t, err)

	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Updated)
	assert.False(t, outcomes[1].Updated)
	assert.Equal(t, "not found", outcomes[1].Reason)

	assert.Equal(t, sales.StatusDelivered, store.saleRows[1].Status)
	assert.Equal(t, sales.StatusShipped, store.saleRows[2].Status, "untouched member unchanged")
}

func TestUpdateBatch_ForeignRecordNotUpdated(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)
	first, err := svc.GenerateBatch(context.Background(), GenerateBatchRequest{SaleIDs: []int64{1}}, 1)
	require.NoError(t, err)
	_, err = svc.GenerateBatch(context.Background(), GenerateBatchRequest{SaleIDs: []int64{2}}, 1)
	require.NoError(t, err)

	delivered := DeliveryDelivered
	outcomes, err := svc.UpdateBatch(context.Background(), first.BatchID, []BatchUpdateItem{
		{ShipmentID: 2, UpdateShipmentRequest: UpdateShipmentRequest{Delivery: &delivered}},
	}, 1)
	require.NoError(t, err)

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Updated)
	assert.Equal(t, "not in batch", outcomes[0].Reason)
	assert.Equal(t, sales.StatusShipped, store.saleRows[2].Status)
}

func TestGetBatch_Manifest(t *testing.T) {
	store := seedStore()
	svc := newTestService(store)
	batchID := shipAll(t, svc)

	manifest, err := svc.GetBatch(context.Background(), batchID)
	require.NoError(t, err)

	assert.Equal(t, batchID, manifest.BatchID)
	require.Len(t, manifest.Entries, 2)
	assert.Equal(t, "VTA-082026-000001", manifest.Entries[0].SaleNumber)
	assert.Equal(t, "Ana Gomez", manifest.Entries[0].CustomerName)
	assert.Contains(t, manifest.Entries[0].Address, "Av. Corrientes 3480")
	assert.Equal(t, 3, manifest.Entries[0].Items)
	assert.Equal(t, shared.FormatAmount(dec("3200")), manifest.Entries[0].Amount)
	assert.Equal(t, shared.FormatAmount(dec("3950")), manifest.TotalAmount)
}

func TestGetBatch_UnknownBatch(t *testing.T) {
	svc := newTestService(seedStore())
	_, err := svc.GetBatch(context.Background(), "ENV-19700101-0000-01")
	assert.ErrorIs(t, err, ErrNotFound)
}
