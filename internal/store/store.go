// Package store defines the persistence interface for the exposure engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and the CLI).
//
// The engine never writes back business records. The only writes are the
// append-only ones the desk performs on the engine's behalf: MTM snapshots,
// market prices, and RFQ quotes.
package store

import (
	"context"
	"errors"

	"github.com/hedgedesk/exposure-engine/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Book reads ---

	// ListExposures returns every exposure with its hedge tasks.
	ListExposures(ctx context.Context) ([]model.Exposure, error)

	// ListHedges returns every hedge, whatever its status.
	ListHedges(ctx context.Context) ([]model.Hedge, error)

	// GetHedge retrieves a hedge by its ID.
	GetHedge(ctx context.Context, id string) (*model.Hedge, error)

	// ListPurchaseOrders returns every purchase order.
	ListPurchaseOrders(ctx context.Context) ([]model.PurchaseOrder, error)

	// ListSalesOrders returns every sales order.
	ListSalesOrders(ctx context.Context) ([]model.SalesOrder, error)

	// ListMarketPrices returns quotations for symbol, or all when symbol is empty.
	ListMarketPrices(ctx context.Context, symbol string) ([]model.MarketPrice, error)

	// ListMTMSnapshots returns snapshots newest first.
	ListMTMSnapshots(ctx context.Context) ([]model.MTMSnapshot, error)

	// GetRfq retrieves an RFQ with its quotes and invitations.
	GetRfq(ctx context.Context, id string) (*model.Rfq, error)

	// --- Append-only writes ---

	// InsertMTMSnapshot appends a valuation record.
	InsertMTMSnapshot(ctx context.Context, snap *model.MTMSnapshot) error

	// InsertMarketPrice appends a quotation.
	InsertMarketPrice(ctx context.Context, price *model.MarketPrice) error

	// InsertQuote appends a counterparty quote to an RFQ.
	InsertQuote(ctx context.Context, rfqID string, quote *model.RfqQuote) error
}

// LoadBook reads the collections the engine works on into one snapshot.
func LoadBook(ctx context.Context, s Store) (model.Book, error) {
	var (
		book model.Book
		err  error
	)
	if book.Exposures, err = s.ListExposures(ctx); err != nil {
		return model.Book{}, err
	}
	if book.Hedges, err = s.ListHedges(ctx); err != nil {
		return model.Book{}, err
	}
	if book.PurchaseOrders, err = s.ListPurchaseOrders(ctx); err != nil {
		return model.Book{}, err
	}
	if book.SalesOrders, err = s.ListSalesOrders(ctx); err != nil {
		return model.Book{}, err
	}
	return book, nil
}
