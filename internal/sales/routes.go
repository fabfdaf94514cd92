package sales

import "github.com/go-chi/chi/v5"

// Routes mounts the sales endpoints.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/numero/{numero}", h.GetByNumber)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Revise)
	r.Put("/{id}/corrective", h.ReviseCorrective)
	r.Delete("/{id}", h.Delete)
	return r
}
