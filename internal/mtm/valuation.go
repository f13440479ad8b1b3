// Package mtm values hedges and exposures against market prices
// (mark-to-market) and queries valuation snapshots.
//
// Money is shopspring/decimal throughout.
// The package is stateless: prices and positions are passed as arguments.
//
// Sign convention: for a bought position MTM = (market − contract) × qty;
// for a sold position the sign is inverted. The convention is always an
// explicit argument and is echoed back in every Valuation.
package mtm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hedgedesk/exposure-engine/internal/model"
)

// Placeholder is displayed for an undefined valuation. It is never zero.
const Placeholder = "—"

var (
	// ErrUnknownConvention is returned when a sign convention cannot be parsed.
	ErrUnknownConvention = errors.New("mtm: unknown sign convention")
)

// Convention selects the sign of a mark-to-market value.
type Convention string

const (
	// ConventionBought values a long position: gains when the market rises.
	ConventionBought Convention = "bought"

	// ConventionSold values a short position: gains when the market falls.
	ConventionSold Convention = "sold"
)

// ParseConvention accepts bought/buy/long and sold/sell/short. An empty
// string yields ConventionBought.
func ParseConvention(s string) (Convention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bought", "buy", "long":
		return ConventionBought, nil
	case "sold", "sell", "short":
		return ConventionSold, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownConvention, s)
	}
}

// Label is the desk's display label for the convention.
func (c Convention) Label() string {
	if c == ConventionSold {
		return "ponta vendida"
	}
	return "ponta comprada"
}

func (c Convention) orDefault() Convention {
	if c == "" {
		return ConventionBought
	}
	return c
}

// Source says where a valuation came from.
type Source string

const (
	SourceUpstream  Source = "upstream"  // hedge carried an explicit mtm_value
	SourceComputed  Source = "computed"  // computed from a market price
	SourceUndefined Source = "undefined" // no price available
)

// Valuation is the MTM of one position.
type Valuation struct {
	Value      decimal.NullDecimal `json:"mtm_value"`
	Price      decimal.NullDecimal `json:"price"`
	Convention Convention          `json:"convention"`
	Label      string              `json:"convention_label"`
	Source     Source              `json:"source"`
}

// Defined reports whether the valuation has a value.
func (v Valuation) Defined() bool {
	return v.Value.Valid
}

// Display renders the value as "USD x.xx", or Placeholder when undefined.
func (v Valuation) Display() string {
	if !v.Value.Valid {
		return Placeholder
	}
	return FormatUSD(v.Value.Decimal)
}

// FormatUSD renders an amount with two decimals.
func FormatUSD(v decimal.Decimal) string {
	return "USD " + v.StringFixed(2)
}

// MarkToMarket computes (market − contract) × qty under the convention.
func MarkToMarket(contract, market, qty decimal.Decimal, conv Convention) decimal.Decimal {
	v := market.Sub(contract).Mul(qty)
	if conv.orDefault() == ConventionSold {
		return v.Neg()
	}
	return v
}

// ValueHedge values a hedge.
//
// An explicit hedge.MTMValue is authoritative and is passed through
// unchanged. Otherwise an active hedge is computed from price, falling back
// to the hedge's own current_market_price. Closed and cancelled hedges are
// never marked, and without any price the valuation is undefined.
func ValueHedge(h model.Hedge, price *model.MarketPrice, conv Convention) Valuation {
	conv = conv.orDefault()
	v := Valuation{Convention: conv, Label: conv.Label()}

	if h.MTMValue.Valid {
		v.Value = h.MTMValue
		v.Price = h.CurrentMarketPrice
		v.Source = SourceUpstream
		return v
	}
	if h.Status != model.HedgeActive {
		v.Source = SourceUndefined
		return v
	}

	var market decimal.NullDecimal
	switch {
	case price != nil:
		market = decimal.NewNullDecimal(price.Price)
	case h.CurrentMarketPrice.Valid:
		market = h.CurrentMarketPrice
	}
	if !market.Valid {
		v.Source = SourceUndefined
		return v
	}

	v.Price = market
	v.Value = decimal.NewNullDecimal(MarkToMarket(h.ContractPrice, market.Decimal, h.QuantityMT, conv))
	v.Source = SourceComputed
	return v
}

// HedgeValuation pairs a hedge id with its valuation.
type HedgeValuation struct {
	HedgeID string `json:"hedge_id"`
	Valuation
}

// ValueActive values every active hedge, preserving input order.
func ValueActive(hedges []model.Hedge, conv Convention) []HedgeValuation {
	out := make([]HedgeValuation, 0, len(hedges))
	for _, h := range hedges {
		if h.Status != model.HedgeActive {
			continue
		}
		out = append(out, HedgeValuation{HedgeID: h.ID, Valuation: ValueHedge(h, nil, conv)})
	}
	return out
}

// TotalDefined sums the defined valuations. Undefined ones are skipped,
// never priced.
func TotalDefined(vals []HedgeValuation) decimal.Decimal {
	total := decimal.Zero
	for _, v := range vals {
		if v.Value.Valid {
			total = total.Add(v.Value.Decimal)
		}
	}
	return total
}
