package ranking

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/hedgedesk/exposure-engine/internal/model"
)

// Offer is a counterparty's response shape. It is either a Single price or
// a Spread between trades; no other implementations exist.
type Offer interface {
	Score(side string) decimal.Decimal
	Display() string
	Kind() string
	offer()
}

// Offer kinds.
const (
	KindSingle = "single"
	KindSpread = "spread"
)

// Single is a one-trade response scored on its price.
type Single struct {
	Price decimal.Decimal
}

// Score is −price for buy RFQs (lower is better) and +price otherwise.
func (s Single) Score(side string) decimal.Decimal {
	if side == model.SideBuy {
		return s.Price.Neg()
	}
	return s.Price
}

func (s Single) Display() string { return formatMoney(s.Price) }
func (s Single) Kind() string    { return KindSingle }
func (Single) offer()            {}

// Spread is a multi-trade response scored on the move between its earliest
// and latest quoted trade.
type Spread struct {
	First TradeScore
	Last  TradeScore
}

func newSpread(trades []TradeScore) Spread {
	ordered := make([]TradeScore, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].QuotedAt < ordered[j].QuotedAt
	})
	return Spread{First: ordered[0], Last: ordered[len(ordered)-1]}
}

// Value is last.BuyPrice − first.BuyPrice.
func (s Spread) Value() decimal.Decimal {
	return s.Last.BuyPrice.Sub(s.First.BuyPrice)
}

// Score is the spread itself; a wider spread ranks higher on either side.
func (s Spread) Score(string) decimal.Decimal { return s.Value() }

func (s Spread) Display() string { return "Δ " + formatMoney(s.Value()) }
func (s Spread) Kind() string    { return KindSpread }
func (Spread) offer()            {}

func formatMoney(v decimal.Decimal) string {
	return "USD " + v.StringFixed(2)
}
