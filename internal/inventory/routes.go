package inventory

import "github.com/go-chi/chi/v5"

// Routes mounts the read-only product endpoints.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/low-stock", h.ListLowStock)
	r.Get("/{id}", h.Get)
	return r
}
