package shipments

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/esencia-erp/esencia/internal/platform/httpx"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) GenerateBatch(w http.ResponseWriter, r *http.Request) {
	var req GenerateBatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}

	summary, err := h.service.GenerateBatch(r.Context(), req, operatorID(r))
	if err != nil {
		h.respondError(w, err, "generate batch")
		return
	}
	httpx.JSON(w, http.StatusCreated, summary)
}

func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	manifest, err := h.service.GetBatch(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		h.respondError(w, err, "get batch")
		return
	}
	httpx.JSON(w, http.StatusOK, manifest)
}

func (h *Handler) UpdateBatch(w http.ResponseWriter, r *http.Request) {
	var items []BatchUpdateItem
	if err := httpx.DecodeJSON(r, &items); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}

	outcomes, err := h.service.UpdateBatch(r.Context(), chi.URLParam(r, "batchID"), items, operatorID(r))
	if err != nil {
		h.respondError(w, err, "update batch")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"outcomes": outcomes})
}

func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid shipment id")
		return
	}

	rec, err := h.service.GetRecord(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get shipment")
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid shipment id")
		return
	}

	var req UpdateShipmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}

	rec, sale, err := h.service.UpdateShipment(r.Context(), id, req, operatorID(r))
	if err != nil {
		h.respondError(w, err, "update shipment")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"shipment": rec, "sale": sale})
}

func (h *Handler) respondError(w http.ResponseWriter, err error, op string) {
	var aerr *IncompleteAddressError
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "shipment or batch not found")
	case errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, ErrNoCandidates):
		httpx.Problem(w, http.StatusUnprocessableEntity, "No Candidates", "no eligible sales match the selection")
	case errors.As(err, &aerr):
		causes := make([]any, len(aerr.Sales))
		for i, s := range aerr.Sales {
			causes[i] = s
		}
		httpx.ProblemWithCauses(w, http.StatusUnprocessableEntity, "Incomplete Addresses",
			"one or more sales lack a complete delivery address", causes)
	default:
		h.logger.Error(op+" failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected failure")
	}
}

func operatorID(r *http.Request) int64 {
	if v := r.Header.Get("X-Operator-ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			return id
		}
	}
	return 1
}
