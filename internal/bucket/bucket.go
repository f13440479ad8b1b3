// Package bucket derives the product|period key used to net exposures and
// hedges against each other.
//
// Every function here is total: missing or malformed input degrades to a
// documented literal, never to an error.
package bucket

import (
	"regexp"
	"strings"

	"github.com/hedgedesk/exposure-engine/internal/model"
)

const (
	// DefaultProduct labels records that carry no product.
	DefaultProduct = "Commodity"

	// UnknownPeriod is the period of an exposure with no usable date.
	UnknownPeriod = "unknown"

	// NoPeriod is the period of an order with no usable period or date.
	NoPeriod = "—"
)

// monthRegex matches the YYYY-MM prefix of an ISO date or timestamp.
var monthRegex = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// Key identifies one aggregation bucket.
type Key struct {
	Product string
	Period  string
}

// String renders the key as "product|period".
func (k Key) String() string {
	return k.Product + "|" + k.Period
}

// Month truncates an ISO date to YYYY-MM. ok is false when the value is
// empty or does not start with a valid year-month.
func Month(date string) (string, bool) {
	date = strings.TrimSpace(date)
	if len(date) < 7 {
		return "", false
	}
	m := date[:7]
	if !monthRegex.MatchString(m) {
		return "", false
	}
	return m, true
}

// Product returns the explicit product, or DefaultProduct.
func Product(product string) string {
	if p := strings.TrimSpace(product); p != "" {
		return p
	}
	return DefaultProduct
}

// FirstMonth returns the YYYY-MM of the first candidate date that resolves.
func FirstMonth(dates ...string) (string, bool) {
	for _, d := range dates {
		if m, ok := Month(d); ok {
			return m, true
		}
	}
	return "", false
}

// ExposurePeriod resolves delivery_date, then sale_date, then payment_date.
func ExposurePeriod(e model.Exposure) string {
	if m, ok := FirstMonth(e.DeliveryDate, e.SaleDate, e.PaymentDate); ok {
		return m
	}
	return UnknownPeriod
}

// OrderPeriod resolves the period of an order that has no exposure record:
// pricing_period as-is (e.g. "M+1"), then expected delivery, fixing deadline
// and creation date truncated to YYYY-MM.
func OrderPeriod(o model.Order) string {
	if p := strings.TrimSpace(o.PricingPeriod); p != "" {
		return p
	}
	if m, ok := FirstMonth(o.ExpectedDeliveryDate, o.FixingDeadline, o.CreatedAt); ok {
		return m
	}
	return NoPeriod
}

// HedgePeriod returns the hedge's own period, or UnknownPeriod.
func HedgePeriod(h model.Hedge) string {
	if p := strings.TrimSpace(h.Period); p != "" {
		return p
	}
	return UnknownPeriod
}

// ForExposure derives the bucket key of an exposure.
func ForExposure(e model.Exposure) Key {
	return Key{Product: Product(e.Product), Period: ExposurePeriod(e)}
}

// ForHedge derives the bucket key of a hedge. The product comes from the
// sales order the hedge references, looked up in products (SO id → product).
func ForHedge(h model.Hedge, products map[string]string) Key {
	return Key{Product: Product(products[h.SOID]), Period: HedgePeriod(h)}
}
