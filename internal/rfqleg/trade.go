package rfqleg

import (
	"github.com/shopspring/decimal"

	"github.com/hedgedesk/exposure-engine/internal/model"
)

// TradeType is the structure of a trade.
type TradeType string

const (
	TradeSwap    TradeType = "Swap"    // two legs, both required
	TradeForward TradeType = "Forward" // second leg optional
)

// TradeInput is one trade as entered on the RFQ form.
type TradeInput struct {
	Quantity  decimal.Decimal `json:"quantity"`
	TradeType TradeType       `json:"trade_type"`
	SyncPPT   bool            `json:"sync_ppt"`
	Leg1      LegInput        `json:"leg1"`
	Leg2      LegInput        `json:"leg2"`
}

// Trade is a validated trade ready for preview.
type Trade struct {
	TradeType             TradeType `json:"trade_type"`
	Leg1                  Leg       `json:"leg1"`
	Leg2                  *Leg      `json:"leg2,omitempty"`
	SyncPPT               bool      `json:"sync_ppt"`
	CompanyHeader         string    `json:"company_header,omitempty"`
	CompanyLabelForPayoff string    `json:"company_label_for_payoff,omitempty"`
}

// BuildTrade validates a trade. A Swap validates both legs; a Forward
// validates its second leg only when a price type was chosen for it.
func BuildTrade(in TradeInput) (*Trade, error) {
	if !in.Quantity.IsPositive() {
		return nil, ErrTradeQuantity
	}

	typ := in.TradeType
	if typ == "" {
		typ = TradeSwap
	}
	if typ != TradeSwap && typ != TradeForward {
		return nil, ErrUnknownTradeType
	}

	in.Leg1.Side = defaultSide(in.Leg1.Side, model.SideBuy)
	in.Leg2.Side = defaultSide(in.Leg2.Side, model.SideSell)

	leg1, err := BuildLegPayload(in, in.Leg1)
	if err != nil {
		return nil, err
	}
	out := &Trade{TradeType: typ, Leg1: *leg1, SyncPPT: in.SyncPPT}

	if typ == TradeSwap || in.Leg2.PriceType != "" {
		leg2, err := BuildLegPayload(in, in.Leg2)
		if err != nil {
			return nil, err
		}
		out.Leg2 = leg2
	}
	return out, nil
}

// BuildTrades validates every trade, stopping at the first error. The company
// header is carried on the first trade only; the payoff label on all of them.
func BuildTrades(trades []TradeInput, company string) ([]Trade, error) {
	if len(trades) == 0 {
		return nil, ErrNoTrades
	}

	out := make([]Trade, 0, len(trades))
	for i, in := range trades {
		t, err := BuildTrade(in)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			t.CompanyHeader = company
		}
		t.CompanyLabelForPayoff = company
		out = append(out, *t)
	}
	return out, nil
}
