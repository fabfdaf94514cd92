package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/esencia-erp/esencia/internal/inventory"
	"github.com/esencia-erp/esencia/internal/platform/httpx"
	"github.com/esencia-erp/esencia/internal/sales"
	"github.com/esencia-erp/esencia/internal/shipments"
)

// RouterParams carries the handlers the router mounts.
type RouterParams struct {
	Logger    *slog.Logger
	Config    *Config
	Sales     *sales.Handler
	Shipments *shipments.Handler
	Inventory *inventory.Handler
}

// NewRouter assembles the HTTP surface.
func NewRouter(p RouterParams) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(p.Logger, p.Config) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Mount("/sales", sales.Routes(p.Sales))
		api.Mount("/shipments", shipments.Routes(p.Shipments))
		api.Mount("/products", inventory.Routes(p.Inventory))
	})

	return r
}
