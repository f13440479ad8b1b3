package desk

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hedgedesk/exposure-engine/internal/metrics"
	"github.com/hedgedesk/exposure-engine/internal/model"
	"github.com/hedgedesk/exposure-engine/internal/ranking"
	"github.com/hedgedesk/exposure-engine/internal/rfqleg"
	"github.com/hedgedesk/exposure-engine/internal/store"
)

// RankingResponse is the JSON body of GET /rfqs/{rfqID}/ranking.
type RankingResponse struct {
	RfqID       string          `json:"rfq_id"`
	Ranking     ranking.Ranking `json:"ranking"`
	Best        string          `json:"best"`
	WinnerIndex int             `json:"winner_index"`
}

// QuoteRequest is the JSON body for POST /rfqs/{rfqID}/quotes.
type QuoteRequest struct {
	CounterpartyID   string              `json:"counterparty_id"`
	CounterpartyName string              `json:"counterparty_name"`
	QuotePrice       decimal.NullDecimal `json:"quote_price"`
	QuoteGroupID     string              `json:"quote_group_id"`
	LegSide          string              `json:"leg_side"`
	QuotedAt         string              `json:"quoted_at"`
}

// QuoteResponse is the JSON body returned from POST /rfqs/{rfqID}/quotes.
type QuoteResponse struct {
	Quote   model.RfqQuote  `json:"quote"`
	Ranking RankingResponse `json:"ranking"`
}

// PreviewRequest is the JSON body for POST /rfqs/preview-legs.
type PreviewRequest struct {
	Company string              `json:"company"`
	Trades  []rfqleg.TradeInput `json:"trades"`
}

// RfqRanking handles GET /api/v1/rfqs/{rfqID}/ranking
func (s *Service) RfqRanking(w http.ResponseWriter, r *http.Request) {
	rfqID := chi.URLParam(r, "rfqID")

	resp, err := s.rank(r.Context(), rfqID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "rfq not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("rank rfq failed", "rfq_id", rfqID, "err", err)
		writeError(w, "failed to rank rfq", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateQuote handles POST /api/v1/rfqs/{rfqID}/quotes
// Records a counterparty quote, re-ranks the RFQ and broadcasts the new
// ranking to WebSocket clients.
func (s *Service) CreateQuote(w http.ResponseWriter, r *http.Request) {
	rfqID := chi.URLParam(r, "rfqID")

	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// --- Input validation ---
	if req.CounterpartyID == "" {
		writeError(w, "counterparty_id is required", http.StatusBadRequest)
		return
	}
	if req.QuotePrice.Valid && req.QuotePrice.Decimal.IsNegative() {
		writeError(w, "quote_price must not be negative", http.StatusBadRequest)
		return
	}
	switch req.LegSide {
	case "", model.SideBuy, model.SideSell:
	default:
		writeError(w, "leg_side must be buy or sell", http.StatusBadRequest)
		return
	}

	quote := model.RfqQuote{
		ID:               uuid.New().String(),
		CounterpartyID:   req.CounterpartyID,
		CounterpartyName: req.CounterpartyName,
		QuotePrice:       req.QuotePrice,
		QuoteGroupID:     req.QuoteGroupID,
		LegSide:          req.LegSide,
		QuotedAt:         req.QuotedAt,
		Status:           "quoted",
	}
	if quote.QuotedAt == "" {
		quote.QuotedAt = s.now().UTC().Format(time.RFC3339Nano)
	}

	ctx := r.Context()

	// Serialize quote intake.
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.InsertQuote(ctx, rfqID, &quote); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "rfq not found", http.StatusNotFound)
			return
		}
		slog.Error("insert quote failed", "rfq_id", rfqID, "err", err)
		writeError(w, "failed to record quote", http.StatusInternalServerError)
		return
	}

	legSide := quote.LegSide
	if legSide == "" {
		legSide = "single"
	}
	metrics.QuotesTotal.WithLabelValues(legSide).Inc()

	ranked, err := s.rank(ctx, rfqID)
	if err != nil {
		slog.Error("rank rfq failed", "rfq_id", rfqID, "err", err)
		writeError(w, "quote recorded but ranking failed", http.StatusInternalServerError)
		return
	}

	slog.Info("quote received",
		"rfq_id", rfqID,
		"quote_id", quote.ID,
		"counterparty", quote.CounterpartyID,
		"price", nullString(quote.QuotePrice),
		"best", ranked.Best,
	)

	// Broadcast ranking update via WebSocket.
	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:    "rfq_ranking",
			RfqID:   rfqID,
			QuoteID: quote.ID,
			Best:    ranked.Best,
			Ranking: &ranked.Ranking,
		})
	}

	writeJSON(w, http.StatusCreated, QuoteResponse{Quote: quote, Ranking: ranked})
}

// PreviewLegs handles POST /api/v1/rfqs/preview-legs
// Validates every trade of an RFQ form. The first failure aborts the
// preview with its user-facing message.
func (s *Service) PreviewLegs(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	trades, err := rfqleg.BuildTrades(req.Trades, req.Company)
	if err != nil {
		metrics.LegValidationFailures.WithLabelValues(failureReason(err)).Inc()
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, trades)
}

func (s *Service) rank(ctx context.Context, rfqID string) (RankingResponse, error) {
	rfq, err := s.store.GetRfq(ctx, rfqID)
	if err != nil {
		return RankingResponse{}, err
	}

	rk := ranking.RankRfq(*rfq)
	metrics.RankingsTotal.WithLabelValues(rk.Side).Inc()

	return RankingResponse{
		RfqID:       rfq.ID,
		Ranking:     rk,
		Best:        rk.BestDisplay(),
		WinnerIndex: rk.WinnerIndex(*rfq),
	}, nil
}

// failureReason maps a leg validation error to a bounded metric label.
func failureReason(err error) string {
	switch {
	case errors.Is(err, rfqleg.ErrMissingPriceType):
		return "missing_price_type"
	case errors.Is(err, rfqleg.ErrAVGMonthYear):
		return "avg_month_year"
	case errors.Is(err, rfqleg.ErrAVGInterDates):
		return "avg_inter_dates"
	case errors.Is(err, rfqleg.ErrFixingDate):
		return "fixing_date"
	case errors.Is(err, rfqleg.ErrTradeQuantity):
		return "trade_quantity"
	case errors.Is(err, rfqleg.ErrNoTrades):
		return "no_trades"
	case rfqleg.IsValidation(err):
		return "unknown_type"
	default:
		return "other"
	}
}

func nullString(v decimal.NullDecimal) string {
	if !v.Valid {
		return "null"
	}
	return v.Decimal.String()
}
