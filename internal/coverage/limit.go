package coverage

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/hedgedesk/exposure-engine/internal/bucket"
	"github.com/hedgedesk/exposure-engine/internal/exposure"
	"github.com/hedgedesk/exposure-engine/internal/model"
)

var (
	// ErrSalesOrderOverHedged is returned when a hedge would push the hedged
	// quantity of its sales order beyond the order quantity.
	ErrSalesOrderOverHedged = errors.New("coverage: hedge exceeds sales order quantity")

	// ErrBucketOverHedged is returned when a hedge would leave its
	// product|period bucket shorter than the tolerated net.
	ErrBucketOverHedged = errors.New("coverage: hedge exceeds bucket net exposure")

	// ErrUnknownSalesOrder is returned when the hedge references an SO not in the book.
	ErrUnknownSalesOrder = errors.New("coverage: unknown sales order")
)

// Limiter rejects hedges that would over-hedge the book.
type Limiter struct {
	// MaxNetShort is the most negative net a bucket may reach after the
	// hedge, as an absolute quantity. Zero forbids any net short.
	MaxNetShort decimal.Decimal
}

// NewLimiter creates a limiter. A negative maxNetShort is treated as zero.
func NewLimiter(maxNetShort decimal.Decimal) *Limiter {
	if maxNetShort.IsNegative() {
		maxNetShort = decimal.Zero
	}
	return &Limiter{MaxNetShort: maxNetShort}
}

// CheckHedge validates a proposed hedge against the book. Only the sales
// order cap applies to hedges without an SO reference.
func (l *Limiter) CheckHedge(proposed model.Hedge, book model.Book) error {
	// 1. Sales order cap.
	if proposed.SOID != "" {
		var order *model.SalesOrder
		for i := range book.SalesOrders {
			if book.SalesOrders[i].ID == proposed.SOID {
				order = &book.SalesOrders[i]
				break
			}
		}
		if order == nil {
			return ErrUnknownSalesOrder
		}
		hedged := HedgedBySalesOrder(book.Hedges)[proposed.SOID].Add(proposed.QuantityMT)
		if hedged.GreaterThan(order.TotalQuantityMT.Add(tolerance)) {
			return ErrSalesOrderOverHedged
		}
	}

	// 2. Bucket net after the hedge.
	key := bucket.ForHedge(proposed, exposure.SalesOrderProducts(book.SalesOrders))
	net := decimal.Zero
	for _, r := range exposure.FilterRows(exposure.Aggregate(book.Exposures, book.Hedges, book.SalesOrders), key.Product, key.Period) {
		net = net.Add(r.Net)
	}
	if net.Sub(proposed.QuantityMT).LessThan(l.MaxNetShort.Neg()) {
		return ErrBucketOverHedged
	}

	return nil
}
