package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": Version})
		})

		// Cache
		r.Get("/files", h.ListFiles)
		r.Put("/files", h.UpdateFile)
		r.Delete("/files", h.EvictFile)
		r.Post("/initialize", h.Initialize)
		r.Get("/aggregates", h.Aggregates)

		// Queries
		r.Get("/completions", h.Completions)
		r.Post("/diagnostics", h.Diagnostics)
		r.Get("/hover", h.Hover)
	})
}
