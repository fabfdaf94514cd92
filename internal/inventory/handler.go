package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/esencia-erp/esencia/internal/platform/httpx"
)

type Handler struct {
	logger *slog.Logger
	repo   Repository
}

func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}

	product, err := h.repo.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "product not found")
			return
		}
		h.logger.Error("get product failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected failure")
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.ListBelowMinimum(r.Context())
	if err != nil {
		h.logger.Error("list low stock failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected failure")
		return
	}
	if products == nil {
		products = []Product{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": products})
}
