package desk

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hedgedesk/exposure-engine/internal/metrics"
)

// NewRouter wires the desk API. hub and rl may be nil.
func NewRouter(svc *Service, hub *WSHub, rl *RateLimiter) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	// No RealIP: the rate limiter keys on RemoteAddr, which forwarded
	// headers must not be able to rewrite.
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"exposure-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for live RFQ rankings.
		if hub != nil {
			r.Get("/ws", hub.HandleWS)
		}

		r.Group(func(r chi.Router) {
			if rl != nil {
				r.Use(rl.Middleware)
			}

			// Exposure and coverage.
			r.Get("/net-exposure", svc.NetExposure)
			r.Get("/exposures/pending", svc.PendingExposures)
			r.Post("/hedges/check", svc.CheckHedge)

			// Valuation.
			r.Get("/hedges/{hedgeID}/mtm", svc.HedgeMTM)
			r.Get("/mtm/snapshots", svc.ListSnapshots)
			r.Post("/mtm/snapshots", svc.CreateSnapshot)
			r.Get("/settlements", svc.Settlements)
			r.Post("/market-prices", svc.CreateMarketPrice)

			// Quotation.
			r.Get("/rfqs/{rfqID}/ranking", svc.RfqRanking)
			r.Post("/rfqs/{rfqID}/quotes", svc.CreateQuote)
			r.Post("/rfqs/preview-legs", svc.PreviewLegs)
		})
	})

	return r
}
