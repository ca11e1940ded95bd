/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/runs/*        Pay run lifecycle, revisions, capture, verification
  /api/snapshots/*   Snapshot reads, projection, diffs
  /api/amendments/*  Amendment approval workflow

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Run routes
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.ListRuns)
			r.Post("/", h.CreateRun)
			r.Get("/{id}", h.GetRun)
			r.Post("/{id}/status", h.UpdateRunStatus)
			r.Get("/{id}/revisions", h.ListRevisions)
			r.Post("/{id}/revisions", h.CreateRevision)
			r.Post("/{id}/snapshots", h.CaptureSnapshot)
			r.Get("/{id}/snapshots/latest", h.GetLatestSnapshot)
			r.Get("/{id}/verify", h.VerifyRun)
			r.Get("/{id}/amendments", h.ListAmendments)
			r.Post("/{id}/amendments", h.CreateAmendment)
		})

		// Snapshot routes
		r.Route("/snapshots", func(r chi.Router) {
			r.Get("/{id}", h.GetSnapshot)
			r.Get("/{id}/employees", h.ListSnapshotEmployees)
			r.Get("/{id}/verify", h.VerifySnapshot)
			r.Get("/{from}/diff/{to}", h.DiffSnapshots)
		})

		// Amendment routes
		r.Route("/amendments", func(r chi.Router) {
			r.Get("/{id}", h.GetAmendment)
			r.Post("/{id}/approve", h.ApproveAmendment)
			r.Post("/{id}/reject", h.RejectAmendment)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	return r
}
