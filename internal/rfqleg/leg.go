// Package rfqleg validates RFQ trade legs and builds the canonical leg
// structures consumed by the preview text generator.
//
// Validation errors are user-facing: their messages are shown verbatim and
// abort the whole trade, so no partial output is ever returned.
package rfqleg

import (
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hedgedesk/exposure-engine/internal/model"
)

// PriceType selects how a leg is priced.
type PriceType string

const (
	PriceAVG      PriceType = "AVG"      // monthly average
	PriceAVGInter PriceType = "AVGInter" // average over a date range
	PriceFix      PriceType = "Fix"
	PriceC2R      PriceType = "C2R"
)

// OrderType is how a Fix or C2R leg is worked.
type OrderType string

const (
	OrderAtMarket OrderType = "At Market"
	OrderLimit    OrderType = "Limit"
	OrderResting  OrderType = "Resting"
)

// Validation errors, returned as-is.
var (
	ErrMissingPriceType = errors.New("Selecione o Price Type em todas as legs.")
	ErrAVGMonthYear     = errors.New("Informe mês e ano para AVG.")
	ErrAVGInterDates    = errors.New("Informe start/end date para AVG Period.")
	ErrFixingDate       = errors.New("Informe Fixing Date para Fix ou C2R.")
	ErrTradeQuantity    = errors.New("Informe quantidade (>0) em todos os trades.")
	ErrNoTrades         = errors.New("Adicione pelo menos um trade.")
	ErrUnknownPriceType = errors.New("Price Type inválido.")
	ErrUnknownTradeType = errors.New("Trade Type inválido.")
	ErrUnknownOrderType = errors.New("Order Type inválido.")
)

var validationErrors = []error{
	ErrMissingPriceType, ErrAVGMonthYear, ErrAVGInterDates, ErrFixingDate,
	ErrTradeQuantity, ErrNoTrades, ErrUnknownPriceType, ErrUnknownTradeType, ErrUnknownOrderType,
}

var months = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// IsValidation reports whether err is one of the user-correctable errors above.
func IsValidation(err error) bool {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

// LegInput is one leg as entered on the RFQ form.
type LegInput struct {
	Side          string          `json:"side"`
	PriceType     PriceType       `json:"price_type"`
	Month         string          `json:"month,omitempty"`
	Year          string          `json:"year,omitempty"`
	StartDate     string          `json:"start_date,omitempty"`
	EndDate       string          `json:"end_date,omitempty"`
	FixingDate    string          `json:"fixing_date,omitempty"`
	OrderType     OrderType       `json:"order_type,omitempty"`
	OrderValidity string          `json:"order_validity,omitempty"`
	LimitPrice    decimal.Decimal `json:"limit_price"`
}

// Order is attached to Fix and C2R legs that are not worked at market.
type Order struct {
	OrderType  OrderType        `json:"order_type"`
	Validity   string           `json:"validity,omitempty"`
	LimitPrice *decimal.Decimal `json:"limit_price,omitempty"`
}

// Leg is a validated leg. Only the fields its price type needs are set.
type Leg struct {
	Side       string          `json:"side"`
	PriceType  PriceType       `json:"price_type"`
	QuantityMT decimal.Decimal `json:"quantity_mt"`
	MonthName  string          `json:"month_name,omitempty"`
	Year       int             `json:"year,omitempty"`
	StartDate  string          `json:"start_date,omitempty"`
	EndDate    string          `json:"end_date,omitempty"`
	FixingDate string          `json:"fixing_date,omitempty"`
	Order      *Order          `json:"order,omitempty"`
}

// BuildLegPayload validates leg for the given trade and returns the
// canonical leg.
func BuildLegPayload(trade TradeInput, leg LegInput) (*Leg, error) {
	if leg.PriceType == "" {
		return nil, ErrMissingPriceType
	}

	out := &Leg{
		Side:       leg.Side,
		PriceType:  leg.PriceType,
		QuantityMT: trade.Quantity,
	}

	switch leg.PriceType {
	case PriceAVG:
		month, ok := monthName(leg.Month)
		if !ok {
			return nil, ErrAVGMonthYear
		}
		year, err := strconv.Atoi(strings.TrimSpace(leg.Year))
		if err != nil || year <= 0 {
			return nil, ErrAVGMonthYear
		}
		out.MonthName = month
		out.Year = year

	case PriceAVGInter:
		if strings.TrimSpace(leg.StartDate) == "" || strings.TrimSpace(leg.EndDate) == "" {
			return nil, ErrAVGInterDates
		}
		out.StartDate = leg.StartDate
		out.EndDate = leg.EndDate

	case PriceFix, PriceC2R:
		if strings.TrimSpace(leg.FixingDate) == "" {
			return nil, ErrFixingDate
		}
		out.FixingDate = leg.FixingDate

		switch leg.OrderType {
		case "", OrderAtMarket:
		case OrderLimit, OrderResting:
			out.Order = &Order{OrderType: leg.OrderType, Validity: leg.OrderValidity}
			if leg.OrderType == OrderLimit && leg.LimitPrice.IsPositive() {
				p := leg.LimitPrice
				out.Order.LimitPrice = &p
			}
		default:
			return nil, ErrUnknownOrderType
		}

	default:
		return nil, ErrUnknownPriceType
	}

	return out, nil
}

// monthName accepts an English month name in any case, or its number 1-12.
func monthName(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return "", false
		}
		return months[n-1], true
	}
	for _, m := range months {
		if strings.EqualFold(m, s) {
			return m, true
		}
	}
	return "", false
}

func defaultSide(side, fallback string) string {
	if s := strings.ToLower(strings.TrimSpace(side)); s == model.SideBuy || s == model.SideSell {
		return s
	}
	return fallback
}
