package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/hedgedesk/exposure-engine/internal/model"
)

// MemoryStore implements Store with in-memory slices. Used for testing,
// development and the CLI. Not suitable for production (no persistence).
type MemoryStore struct {
	mu             sync.RWMutex
	exposures      []model.Exposure
	hedges         []model.Hedge
	purchaseOrders []model.PurchaseOrder
	salesOrders    []model.SalesOrder
	prices         []model.MarketPrice
	snapshots      []model.MTMSnapshot // newest first
	rfqs           map[string]*model.Rfq
}

// NewMemoryStore creates a new, empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rfqs: make(map[string]*model.Rfq)}
}

// Load replaces the store contents with a copy of book.
func (s *MemoryStore) Load(book model.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exposures = append([]model.Exposure(nil), book.Exposures...)
	s.hedges = append([]model.Hedge(nil), book.Hedges...)
	s.purchaseOrders = append([]model.PurchaseOrder(nil), book.PurchaseOrders...)
	s.salesOrders = append([]model.SalesOrder(nil), book.SalesOrders...)
	s.prices = append([]model.MarketPrice(nil), book.MarketPrices...)
	s.snapshots = append([]model.MTMSnapshot(nil), book.MTMSnapshots...)

	s.rfqs = make(map[string]*model.Rfq, len(book.Rfqs))
	for _, r := range book.Rfqs {
		c := copyRfq(r)
		s.rfqs[r.ID] = &c
	}
}

func (s *MemoryStore) ListExposures(_ context.Context) ([]model.Exposure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Exposure{}, s.exposures...), nil
}

func (s *MemoryStore) ListHedges(_ context.Context) ([]model.Hedge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Hedge{}, s.hedges...), nil
}

func (s *MemoryStore) GetHedge(_ context.Context, id string) (*model.Hedge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, h := range s.hedges {
		if h.ID == id {
			c := h
			return &c, nil
		}
	}
	return nil, fmt.Errorf("hedge %s: %w", id, ErrNotFound)
}

func (s *MemoryStore) ListPurchaseOrders(_ context.Context) ([]model.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.PurchaseOrder{}, s.purchaseOrders...), nil
}

func (s *MemoryStore) ListSalesOrders(_ context.Context) ([]model.SalesOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.SalesOrder{}, s.salesOrders...), nil
}

func (s *MemoryStore) ListMarketPrices(_ context.Context, symbol string) ([]model.MarketPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.MarketPrice, 0, len(s.prices))
	for _, p := range s.prices {
		if symbol == "" || p.Symbol == symbol {
			result = append(result, p)
		}
	}
	return result, nil
}

func (s *MemoryStore) ListMTMSnapshots(_ context.Context) ([]model.MTMSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.MTMSnapshot{}, s.snapshots...), nil
}

func (s *MemoryStore) GetRfq(_ context.Context, id string) (*model.Rfq, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rfqs[id]
	if !ok {
		return nil, fmt.Errorf("rfq %s: %w", id, ErrNotFound)
	}
	c := copyRfq(*r)
	return &c, nil
}

func (s *MemoryStore) InsertMTMSnapshot(_ context.Context, snap *model.MTMSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots = append([]model.MTMSnapshot{*snap}, s.snapshots...)
	return nil
}

func (s *MemoryStore) InsertMarketPrice(_ context.Context, price *model.MarketPrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices = append(s.prices, *price)
	return nil
}

func (s *MemoryStore) InsertQuote(_ context.Context, rfqID string, quote *model.RfqQuote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rfqs[rfqID]
	if !ok {
		return fmt.Errorf("rfq %s: %w", rfqID, ErrNotFound)
	}
	r.CounterpartyQuotes = append(r.CounterpartyQuotes, *quote)
	return nil
}

// copyRfq detaches the quote and invitation slices from the stored record.
func copyRfq(r model.Rfq) model.Rfq {
	r.CounterpartyQuotes = append([]model.RfqQuote{}, r.CounterpartyQuotes...)
	r.Invitations = append([]model.RfqInvitation(nil), r.Invitations...)
	return r
}
