// Package desk provides the HTTP handlers of the hedging desk: net exposure,
// pending coverage, mark-to-market, settlements and RFQ quotation.
//
// Handlers load a consistent book from the store and delegate every
// calculation to the engine packages. All monetary values use
// shopspring/decimal.
package desk

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hedgedesk/exposure-engine/internal/coverage"
	"github.com/hedgedesk/exposure-engine/internal/mtm"
	"github.com/hedgedesk/exposure-engine/internal/store"
)

const dateLayout = "2006-01-02"

// Service handles desk operations. Quote intake is serialized so that
// ranking broadcasts follow insertion order (single-instance).
type Service struct {
	store      store.Store
	limiter    *coverage.Limiter
	calendar   *mtm.Calendar
	convention mtm.Convention
	mu         sync.Mutex
	wsHub      *WSHub // optional WebSocket hub for ranking broadcasts

	now func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLimiter enables the over-hedge check.
func WithLimiter(l *coverage.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithCalendar sets the holiday calendar used for settlement dates.
func WithCalendar(c *mtm.Calendar) Option {
	return func(s *Service) { s.calendar = c }
}

// WithConvention sets the default MTM sign convention.
func WithConvention(c mtm.Convention) Option {
	return func(s *Service) { s.convention = c }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new desk service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, hub *WSHub, opts ...Option) *Service {
	s := &Service{
		store:      st,
		convention: mtm.ConventionBought,
		wsHub:      hub,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// today is the service date in UTC.
func (s *Service) today() string {
	return s.now().UTC().Format(dateLayout)
}

// conventionParam reads ?convention=, falling back to the service default.
func (s *Service) conventionParam(r *http.Request) (mtm.Convention, error) {
	raw := r.URL.Query().Get("convention")
	if raw == "" {
		return s.convention, nil
	}
	return mtm.ParseConvention(raw)
}

// decimalParam parses an optional decimal query parameter.
func decimalParam(r *http.Request, name string) (decimal.NullDecimal, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, errors.New(name + " must be a number")
	}
	return decimal.NewNullDecimal(v), nil
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
