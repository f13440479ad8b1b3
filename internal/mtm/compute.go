package mtm

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hedgedesk/exposure-engine/internal/model"
)

var (
	// ErrHedgeInactive is returned when valuing a hedge that is not active.
	ErrHedgeInactive = errors.New("mtm: hedge is not active")

	// ErrNoMarketPrice is returned when no quotation matches the symbol.
	ErrNoMarketPrice = errors.New("mtm: no market price for symbol")

	// ErrNoFXRate is returned when an FX symbol was requested but not found.
	ErrNoFXRate = errors.New("mtm: no fx rate for symbol")

	// ErrInvalidHaircut is returned for a haircut outside [0, 100].
	ErrInvalidHaircut = errors.New("mtm: haircut_pct must be between 0 and 100")
)

var hundred = decimal.NewFromInt(100)

// LatestPrice returns the most recent quotation for symbol. An empty source
// matches any source. fx selects FX rates or commodity prices.
func LatestPrice(prices []model.MarketPrice, symbol, source string, fx bool) (model.MarketPrice, bool) {
	var best model.MarketPrice
	found := false
	for _, p := range prices {
		if p.Symbol != symbol || p.FX != fx {
			continue
		}
		if source != "" && p.Source != source {
			continue
		}
		if !found || p.AsOf.After(best.AsOf) {
			best = p
			found = true
		}
	}
	return best, found
}

// Options tune ComputeHedge.
type Options struct {
	Symbol     string              // defaults to the hedge's instrument
	Source     string              // empty matches any source
	FXSymbol   string              // when set, the MTM is converted by the latest FX rate
	HaircutPct decimal.NullDecimal // when set, a stressed scenario is also computed
	Convention Convention
}

// Result is a fresh valuation of one hedge from market data.
type Result struct {
	HedgeID          string              `json:"hedge_id"`
	Symbol           string              `json:"symbol"`
	Price            decimal.Decimal     `json:"price"`
	AsOf             time.Time           `json:"as_of"`
	MTMValue         decimal.Decimal     `json:"mtm_value"`
	FXRate           decimal.NullDecimal `json:"fx_rate"`
	ScenarioMTMValue decimal.NullDecimal `json:"scenario_mtm_value"`
	Convention       Convention          `json:"convention"`
}

// ComputeHedge values an active hedge at the latest market price.
//
// With an FX symbol the value is multiplied by the latest rate. With a
// haircut the scenario value is computed at price × (1 − haircut/100) and
// converted the same way.
func ComputeHedge(h model.Hedge, prices []model.MarketPrice, opts Options) (*Result, error) {
	if h.Status != model.HedgeActive {
		return nil, fmt.Errorf("%w: %s (%s)", ErrHedgeInactive, h.ID, h.Status)
	}
	if opts.HaircutPct.Valid {
		pct := opts.HaircutPct.Decimal
		if pct.IsNegative() || pct.GreaterThan(hundred) {
			return nil, ErrInvalidHaircut
		}
	}

	symbol := opts.Symbol
	if symbol == "" {
		symbol = h.Instrument
	}
	price, ok := LatestPrice(prices, symbol, opts.Source, false)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoMarketPrice, symbol)
	}

	conv := opts.Convention.orDefault()
	res := &Result{
		HedgeID:    h.ID,
		Symbol:     symbol,
		Price:      price.Price,
		AsOf:       price.AsOf,
		MTMValue:   MarkToMarket(h.ContractPrice, price.Price, h.QuantityMT, conv),
		Convention: conv,
	}

	rate := decimal.NewFromInt(1)
	if opts.FXSymbol != "" {
		fx, ok := LatestPrice(prices, opts.FXSymbol, opts.Source, true)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNoFXRate, opts.FXSymbol)
		}
		rate = fx.Price
		res.FXRate = decimal.NewNullDecimal(rate)
		res.MTMValue = res.MTMValue.Mul(rate)
	}

	if opts.HaircutPct.Valid {
		factor := decimal.NewFromInt(1).Sub(opts.HaircutPct.Decimal.Div(hundred))
		stressed := price.Price.Mul(factor)
		scenario := MarkToMarket(h.ContractPrice, stressed, h.QuantityMT, conv).Mul(rate)
		res.ScenarioMTMValue = decimal.NewNullDecimal(scenario)
	}

	return res, nil
}
