package desk

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hedgedesk/exposure-engine/internal/coverage"
	"github.com/hedgedesk/exposure-engine/internal/exposure"
	"github.com/hedgedesk/exposure-engine/internal/metrics"
	"github.com/hedgedesk/exposure-engine/internal/model"
	"github.com/hedgedesk/exposure-engine/internal/store"
)

// NetExposureResponse is the JSON body of GET /net-exposure.
type NetExposureResponse struct {
	Rows   []model.NetExposureRow `json:"rows"`
	Totals exposure.Totals        `json:"totals"`
}

// CheckHedgeResponse is the JSON body of POST /hedges/check.
type CheckHedgeResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// NetExposure handles GET /api/v1/net-exposure
// Aggregates the book per product|period, optionally filtered by
// ?product= and ?period=, sorted by product.
func (s *Service) NetExposure(w http.ResponseWriter, r *http.Request) {
	book, err := store.LoadBook(r.Context(), s.store)
	if err != nil {
		slog.Error("load book failed", "err", err)
		writeError(w, "failed to load book", http.StatusInternalServerError)
		return
	}

	rows := exposure.Aggregate(book.Exposures, book.Hedges, book.SalesOrders)
	metrics.AggregationsTotal.Inc()
	metrics.NetBuckets.Set(float64(len(rows)))

	q := r.URL.Query()
	rows = exposure.SortRows(exposure.FilterRows(rows, q.Get("product"), q.Get("period")))

	slog.Debug("net exposure aggregated", "buckets", len(rows))

	writeJSON(w, http.StatusOK, NetExposureResponse{
		Rows:   rows,
		Totals: exposure.Sum(rows),
	})
}

// PendingExposures handles GET /api/v1/exposures/pending
// Returns active orders whose hedge is not concluded.
func (s *Service) PendingExposures(w http.ResponseWriter, r *http.Request) {
	book, err := store.LoadBook(r.Context(), s.store)
	if err != nil {
		slog.Error("load book failed", "err", err)
		writeError(w, "failed to load book", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, coverage.Pending(book))
}

// CheckHedge handles POST /api/v1/hedges/check
// Validates a proposed hedge against the over-hedge limits.
func (s *Service) CheckHedge(w http.ResponseWriter, r *http.Request) {
	var proposed model.Hedge
	if err := json.NewDecoder(r.Body).Decode(&proposed); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !proposed.QuantityMT.IsPositive() {
		writeError(w, "quantity_mt must be positive", http.StatusBadRequest)
		return
	}
	if s.limiter == nil {
		writeJSON(w, http.StatusOK, CheckHedgeResponse{Allowed: true})
		return
	}

	book, err := store.LoadBook(r.Context(), s.store)
	if err != nil {
		slog.Error("load book failed", "err", err)
		writeError(w, "failed to load book", http.StatusInternalServerError)
		return
	}

	err = s.limiter.CheckHedge(proposed, book)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, CheckHedgeResponse{Allowed: true})
	case errors.Is(err, coverage.ErrUnknownSalesOrder):
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		metrics.OverHedgeRejections.Inc()
		slog.Info("hedge rejected",
			"so_id", proposed.SOID,
			"qty", proposed.QuantityMT.String(),
			"err", err,
		)
		writeJSON(w, http.StatusConflict, CheckHedgeResponse{Allowed: false, Reason: err.Error()})
	}
}
