package shipments

import "github.com/go-chi/chi/v5"

// Routes mounts the shipment endpoints.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/batches", h.GenerateBatch)
	r.Get("/batches/{batchID}", h.GetBatch)
	r.Put("/batches/{batchID}", h.UpdateBatch)
	r.Get("/{id}", h.GetRecord)
	r.Put("/{id}", h.UpdateRecord)
	return r
}
