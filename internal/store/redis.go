package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hedgedesk/exposure-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
//
// Market prices are never cached: MTM must always see the latest quotation.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) InsertMTMSnapshot(ctx context.Context, snap *model.MTMSnapshot) error {
	if err := s.primary.InsertMTMSnapshot(ctx, snap); err != nil {
		return err
	}
	s.rdb.Del(ctx, snapshotsKey)
	return nil
}

func (s *CachedStore) InsertQuote(ctx context.Context, rfqID string, quote *model.RfqQuote) error {
	if err := s.primary.InsertQuote(ctx, rfqID, quote); err != nil {
		return err
	}
	// Invalidate; the next ranking re-reads every quote.
	s.rdb.Del(ctx, rfqKey(rfqID))
	return nil
}

func (s *CachedStore) InsertMarketPrice(ctx context.Context, price *model.MarketPrice) error {
	return s.primary.InsertMarketPrice(ctx, price)
}

// --- Read-through (check cache first) ---

func (s *CachedStore) ListExposures(ctx context.Context) ([]model.Exposure, error) {
	return readThrough(ctx, s, exposuresKey, s.primary.ListExposures)
}

func (s *CachedStore) ListHedges(ctx context.Context) ([]model.Hedge, error) {
	return readThrough(ctx, s, hedgesKey, s.primary.ListHedges)
}

func (s *CachedStore) GetHedge(ctx context.Context, id string) (*model.Hedge, error) {
	return readThrough(ctx, s, hedgeKey(id), func(ctx context.Context) (*model.Hedge, error) {
		return s.primary.GetHedge(ctx, id)
	})
}

func (s *CachedStore) ListPurchaseOrders(ctx context.Context) ([]model.PurchaseOrder, error) {
	return readThrough(ctx, s, purchaseOrdersKey, s.primary.ListPurchaseOrders)
}

func (s *CachedStore) ListSalesOrders(ctx context.Context) ([]model.SalesOrder, error) {
	return readThrough(ctx, s, salesOrdersKey, s.primary.ListSalesOrders)
}

func (s *CachedStore) ListMTMSnapshots(ctx context.Context) ([]model.MTMSnapshot, error) {
	return readThrough(ctx, s, snapshotsKey, s.primary.ListMTMSnapshots)
}

func (s *CachedStore) GetRfq(ctx context.Context, id string) (*model.Rfq, error) {
	return readThrough(ctx, s, rfqKey(id), func(ctx context.Context) (*model.Rfq, error) {
		return s.primary.GetRfq(ctx, id)
	})
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListMarketPrices(ctx context.Context, symbol string) ([]model.MarketPrice, error) {
	return s.primary.ListMarketPrices(ctx, symbol)
}

// --- Cache helpers ---

// readThrough returns the cached value under key, or loads it from the
// primary and caches it. Redis errors fall back to the primary silently.
func readThrough[T any](ctx context.Context, s *CachedStore, key string, load func(context.Context) (T, error)) (T, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var v T
		if json.Unmarshal(data, &v) == nil {
			return v, nil
		}
	}

	// Cache miss.
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
	return v, nil
}

const (
	exposuresKey      = "book:exposures"
	hedgesKey         = "book:hedges"
	purchaseOrdersKey = "book:purchase_orders"
	salesOrdersKey    = "book:sales_orders"
	snapshotsKey      = "mtm:snapshots"
)

func hedgeKey(id string) string { return fmt.Sprintf("hedge:%s", id) }
func rfqKey(id string) string   { return fmt.Sprintf("rfq:%s", id) }
