/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for dashboards

ROUTE GROUPS:
  /health                 Liveness
  /metrics                Prometheus (when enabled)
  /api/assets/*           Asset lifecycle, history, journal, proofs
  /api/proofs/*           Proof reconstruction
  /api/integrity          Integrity scans
  /api/export             Ledger export
  /api/attribution/*      Attribution ingest and lookup
  /api/reconcile          Attribution reconciliation
  /api/scenarios/*        Demo scenarios (dev only)

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cli/serve.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	EnableMetrics  bool
}

// DefaultRouterOptions matches config.Default().
func DefaultRouterOptions() RouterOptions {
	return RouterOptions{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		EnableMetrics:  true,
	}
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)
	if opts.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// Asset routes
		r.Route("/assets", func(r chi.Router) {
			r.Get("/", h.ListAssets)
			r.Post("/", h.CreateAsset)
			r.Get("/{id}", h.GetAsset)
			r.Post("/{id}/allocate", h.AllocateAsset)
			r.Post("/{id}/utilize", h.UtilizeAsset)
			r.Post("/{id}/depreciate", h.DepreciateAsset)
			r.Post("/{id}/retire", h.RetireAsset)
			r.Get("/{id}/history", h.GetHistory)
			r.Get("/{id}/journal", h.GetJournal)
			r.Post("/{id}/proofs", h.CreateProof)
			r.Get("/{id}/proofs/verify", h.VerifyProofs)
		})

		// Proof routes
		r.Get("/proofs/{id}", h.GetProof)

		// Audit routes
		r.Get("/integrity", h.CheckIntegrity)
		r.Get("/integrity/last", h.LastIntegrity)
		r.Get("/export", h.Export)

		// Attribution routes
		r.Post("/attribution", h.IngestAttribution)
		r.Get("/attribution/{assetID}", h.GetAttribution)
		r.Post("/reconcile", h.Reconcile)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetStore)
		})
	})

	return r
}
