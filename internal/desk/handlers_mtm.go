package desk

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hedgedesk/exposure-engine/internal/metrics"
	"github.com/hedgedesk/exposure-engine/internal/model"
	"github.com/hedgedesk/exposure-engine/internal/mtm"
	"github.com/hedgedesk/exposure-engine/internal/store"
)

// HedgeMTMResponse is the JSON body of GET /hedges/{hedgeID}/mtm.
type HedgeMTMResponse struct {
	HedgeID   string        `json:"hedge_id"`
	Status    string        `json:"status"`
	Valuation mtm.Valuation `json:"valuation"`
	Display   string        `json:"display"`
	Market    *mtm.Result   `json:"market,omitempty"` // set when a market price for the symbol exists
}

// SnapshotListResponse is the JSON body of GET /mtm/snapshots.
type SnapshotListResponse struct {
	Snapshots []model.MTMSnapshot `json:"snapshots"`
	Count     int                 `json:"count"`
	TotalMTM  decimal.Decimal     `json:"total_mtm"`
}

// HedgeMTM handles GET /api/v1/hedges/{hedgeID}/mtm
//
// The valuation follows the hedge's own fields, marked at the latest price
// for the symbol when one is stored. Closed and cancelled hedges only report
// an upstream mtm_value. With a price on file the response also carries the
// market computation, including FX conversion and the haircut scenario when
// requested.
func (s *Service) HedgeMTM(w http.ResponseWriter, r *http.Request) {
	hedgeID := chi.URLParam(r, "hedgeID")
	ctx := r.Context()

	conv, err := s.conventionParam(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	haircut, err := decimalParam(r, "haircut_pct")
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if haircut.Valid && (haircut.Decimal.IsNegative() || haircut.Decimal.GreaterThan(decimal.NewFromInt(100))) {
		writeError(w, mtm.ErrInvalidHaircut.Error(), http.StatusBadRequest)
		return
	}

	h, err := s.store.GetHedge(ctx, hedgeID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "hedge not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("get hedge failed", "hedge_id", hedgeID, "err", err)
		writeError(w, "failed to load hedge", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	opts := mtm.Options{
		Symbol:     q.Get("symbol"),
		Source:     q.Get("source"),
		FXSymbol:   q.Get("fx_symbol"),
		HaircutPct: haircut,
		Convention: conv,
	}
	symbol := opts.Symbol
	if symbol == "" {
		symbol = h.Instrument
	}

	var prices []model.MarketPrice
	if symbol != "" {
		// FX rates live under their own symbol, so load everything.
		prices, err = s.store.ListMarketPrices(ctx, "")
		if err != nil {
			slog.Error("list market prices failed", "symbol", symbol, "err", err)
			writeError(w, "failed to load market prices", http.StatusInternalServerError)
			return
		}
	}

	var latest *model.MarketPrice
	if p, ok := mtm.LatestPrice(prices, symbol, opts.Source, false); ok {
		latest = &p
	}

	val := mtm.ValueHedge(*h, latest, conv)
	metrics.ValuationsTotal.WithLabelValues(string(val.Source)).Inc()

	resp := HedgeMTMResponse{
		HedgeID:   h.ID,
		Status:    h.Status,
		Valuation: val,
		Display:   val.Display(),
	}

	// FX or haircut requests need the market computation; its errors (no
	// price, no rate, inactive hedge) are reported rather than dropped.
	wantsMarket := opts.FXSymbol != "" || opts.HaircutPct.Valid
	if wantsMarket || (latest != nil && h.Status == model.HedgeActive) {
		res, err := mtm.ComputeHedge(*h, prices, opts)
		if err != nil {
			writeError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		resp.Market = res
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListSnapshots handles GET /api/v1/mtm/snapshots
// Filters by object_type, object_id, product and period; ?latest=true keeps
// only the newest match.
func (s *Service) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	latest := false
	if raw := q.Get("latest"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, "latest must be a boolean", http.StatusBadRequest)
			return
		}
		latest = v
	}

	all, err := s.store.ListMTMSnapshots(r.Context())
	if err != nil {
		slog.Error("list snapshots failed", "err", err)
		writeError(w, "failed to list snapshots", http.StatusInternalServerError)
		return
	}

	snaps := mtm.FilterSnapshots(all, mtm.SnapshotFilter{
		ObjectType: q.Get("object_type"),
		ObjectID:   q.Get("object_id"),
		Product:    q.Get("product"),
		Period:     q.Get("period"),
	})
	if latest && len(snaps) > 1 {
		snaps = snaps[:1]
	}

	writeJSON(w, http.StatusOK, SnapshotListResponse{
		Snapshots: snaps,
		Count:     len(snaps),
		TotalMTM:  mtm.TotalMTM(snaps),
	})
}

// CreateSnapshot handles POST /api/v1/mtm/snapshots
// Values a hedge, exposure or net bucket at the given price and records it.
func (s *Service) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req mtm.SnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Convention == "" {
		req.Convention = s.convention
	} else {
		conv, err := mtm.ParseConvention(string(req.Convention))
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.Convention = conv
	}
	if req.AsOfDate == "" {
		req.AsOfDate = s.today()
	} else if _, err := time.Parse(dateLayout, req.AsOfDate); err != nil {
		writeError(w, "as_of_date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	book, err := store.LoadBook(ctx, s.store)
	if err != nil {
		slog.Error("load book failed", "err", err)
		writeError(w, "failed to load book", http.StatusInternalServerError)
		return
	}

	snap, err := mtm.BuildSnapshot(req, book)
	switch {
	case errors.Is(err, mtm.ErrObjectNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap.ID = uuid.New().String()
	if err := s.store.InsertMTMSnapshot(ctx, &snap); err != nil {
		slog.Error("insert snapshot failed", "err", err)
		writeError(w, "failed to record snapshot", http.StatusInternalServerError)
		return
	}
	metrics.SnapshotsCreated.WithLabelValues(snap.ObjectType).Inc()

	slog.Info("mtm snapshot created",
		"id", snap.ID,
		"object_type", snap.ObjectType,
		"object_id", snap.ObjectID,
		"bucket", snap.Product+"|"+snap.Period,
		"price", snap.Price.String(),
	)

	writeJSON(w, http.StatusCreated, snap)
}

// Settlements handles GET /api/v1/settlements
// Lists expected settlements of active hedges on or after ?from=YYYY-MM-DD
// (default today).
func (s *Service) Settlements(w http.ResponseWriter, r *http.Request) {
	from := s.now().UTC()
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			writeError(w, "from must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		from = t
	}

	hedges, err := s.store.ListHedges(r.Context())
	if err != nil {
		slog.Error("list hedges failed", "err", err)
		writeError(w, "failed to list hedges", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, mtm.Settlements(hedges, s.calendar, from))
}

// CreateMarketPrice handles POST /api/v1/market-prices
// Records a quotation used by hedge MTM.
func (s *Service) CreateMarketPrice(w http.ResponseWriter, r *http.Request) {
	var p model.MarketPrice
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if p.Symbol == "" {
		writeError(w, "symbol is required", http.StatusBadRequest)
		return
	}
	if !p.Price.IsPositive() {
		writeError(w, "price must be positive", http.StatusBadRequest)
		return
	}

	p.ID = uuid.New().String()
	if p.Source == "" {
		p.Source = "manual"
	}
	if p.Currency == "" {
		p.Currency = "USD"
	}
	if p.AsOf.IsZero() {
		p.AsOf = s.now().UTC()
	}

	if err := s.store.InsertMarketPrice(r.Context(), &p); err != nil {
		slog.Error("insert market price failed", "symbol", p.Symbol, "err", err)
		writeError(w, "failed to record market price", http.StatusInternalServerError)
		return
	}

	slog.Info("market price recorded", "symbol", p.Symbol, "price", p.Price.String(), "fx", p.FX)
	writeJSON(w, http.StatusCreated, p)
}
