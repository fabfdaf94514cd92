package sales

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/esencia-erp/esencia/internal/platform/httpx"
	"github.com/esencia-erp/esencia/internal/shared"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	req := ListSalesRequest{
		Page:    parseInt(r.URL.Query().Get("page"), 1),
		PerPage: parseInt(r.URL.Query().Get("per_page"), 20),
	}
	if v := r.URL.Query().Get("estado"); v != "" {
		s := SaleStatus(v)
		req.Status = &s
	}
	if v := r.URL.Query().Get("estado_pago"); v != "" {
		p := PaymentStatus(v)
		req.Payment = &p
	}
	if v := r.URL.Query().Get("customer_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			req.CustomerID = &id
		}
	}
	req.DateFrom = parseDate(r.URL.Query().Get("date_from"))
	req.DateTo = parseDate(r.URL.Query().Get("date_to"))

	sales, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list sales failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "failed to list sales")
		return
	}
	if sales == nil {
		sales = []SaleWithCustomer{}
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"data": sales,
		"meta": shared.NewPagination(req.Page, req.PerPage, total),
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
		return
	}

	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get sale")
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	sale, err := h.service.GetByNumber(r.Context(), chi.URLParam(r, "numero"))
	if err != nil {
		h.respondError(w, err, "get sale by number")
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	req.IdempotencyKey = r.Header.Get("Idempotency-Key")

	sale, err := h.service.Create(r.Context(), req, operatorID(r))
	if err != nil {
		h.respondError(w, err, "create sale")
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) Revise(w http.ResponseWriter, r *http.Request) {
	h.revise(w, r, h.service.Revise)
}

// ReviseCorrective applies an edit without stock adjustment. Exposed as a
// separate route so the caller states the intent explicitly instead of
// toggling a flag.
func (h *Handler) ReviseCorrective(w http.ResponseWriter, r *http.Request) {
	h.revise(w, r, h.service.ReviseCorrective)
}

func (h *Handler) revise(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id int64, req ReviseSaleRequest, operatorID int64) (*Sale, error)) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
		return
	}

	var req ReviseSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}

	sale, err := apply(r.Context(), id, req, operatorID(r))
	if err != nil {
		h.respondError(w, err, "revise sale")
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
		return
	}

	if err := h.service.Delete(r.Context(), id, operatorID(r)); err != nil {
		h.respondError(w, err, "delete sale")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondError maps the service error taxonomy onto problem responses.
// Enumerable failures (validation fields, missing references, shortages)
// travel in the causes list so the client sees every problem at once.
func (h *Handler) respondError(w http.ResponseWriter, err error, op string) {
	var verr *ValidationError
	var rerr *ReferenceError
	var serr *StockError
	var sterr *StateError

	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "sale not found")
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", "request already processed")
	case errors.As(err, &verr):
		httpx.ProblemWithCauses(w, http.StatusBadRequest, "Validation Failed",
			"one or more fields are invalid", toCauses(verr.Fields))
	case errors.As(err, &rerr):
		httpx.ProblemWithCauses(w, http.StatusUnprocessableEntity, "Invalid References",
			"one or more referenced entities are missing or inactive", toCauses(rerr.Refs))
	case errors.As(err, &serr):
		httpx.ProblemWithCauses(w, http.StatusConflict, "Insufficient Stock",
			"one or more products lack stock", toCauses(serr.Shortages))
	case errors.As(err, &sterr):
		httpx.Problem(w, http.StatusConflict, "Not Editable", sterr.Error())
	default:
		h.logger.Error(op+" failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected failure")
	}
}

func toCauses[T any](items []T) []any {
	causes := make([]any, len(items))
	for i, it := range items {
		causes[i] = it
	}
	return causes
}

// operatorID reads the acting operator from the X-Operator-ID header set by
// the fronting gateway. Falls back to the system operator.
func operatorID(r *http.Request) int64 {
	if v := r.Header.Get("X-Operator-ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			return id
		}
	}
	return 1
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}
