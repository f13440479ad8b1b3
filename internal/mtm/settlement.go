package mtm

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hedgedesk/exposure-engine/internal/model"
)

const dateLayout = "2006-01-02"

// SettlementLag is the number of business days between maturity and settlement.
const SettlementLag = 2

// Calendar holds market holidays. The zero value and nil skip weekends only.
type Calendar struct {
	holidays map[string]struct{}
}

// NewCalendar builds a calendar from YYYY-MM-DD holiday strings.
func NewCalendar(holidays []string) (*Calendar, error) {
	c := &Calendar{holidays: make(map[string]struct{}, len(holidays))}
	for _, h := range holidays {
		t, err := time.Parse(dateLayout, h)
		if err != nil {
			return nil, fmt.Errorf("mtm: invalid holiday %q: %w", h, err)
		}
		c.holidays[t.Format(dateLayout)] = struct{}{}
	}
	return c, nil
}

// IsBusinessDay reports whether t is neither a weekend nor a holiday.
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	if c == nil {
		return true
	}
	_, holiday := c.holidays[t.Format(dateLayout)]
	return !holiday
}

// AddBusinessDays moves forward n business days from t.
func (c *Calendar) AddBusinessDays(t time.Time, n int) time.Time {
	for n > 0 {
		t = t.AddDate(0, 0, 1)
		if c.IsBusinessDay(t) {
			n--
		}
	}
	return t
}

// Settlement is one expected cash movement from a maturing hedge.
type Settlement struct {
	HedgeID        string              `json:"hedge_id"`
	CounterpartyID string              `json:"counterparty_id"`
	Instrument     string              `json:"instrument,omitempty"`
	MaturityDate   string              `json:"maturity_date"`
	SettlementDate string              `json:"settlement_date"`
	QuantityMT     decimal.Decimal     `json:"quantity_mt"`
	Value          decimal.NullDecimal `json:"value"`
}

// Settlements lists the settlement of every active hedge with a parseable
// maturity date, keeping those that settle on or after from, ordered by
// settlement date.
//
// The value proxy is the hedge's mtm_value, else
// (current_market_price − contract_price) × qty, else undefined.
func Settlements(hedges []model.Hedge, cal *Calendar, from time.Time) []Settlement {
	cutoff := from.Format(dateLayout)
	out := make([]Settlement, 0)
	for _, h := range hedges {
		if h.Status != model.HedgeActive || len(h.MaturityDate) < len(dateLayout) {
			continue
		}
		maturity, err := time.Parse(dateLayout, h.MaturityDate[:len(dateLayout)])
		if err != nil {
			continue
		}
		settle := cal.AddBusinessDays(maturity, SettlementLag).Format(dateLayout)
		if settle < cutoff {
			continue
		}

		s := Settlement{
			HedgeID:        h.ID,
			CounterpartyID: h.CounterpartyID,
			Instrument:     h.Instrument,
			MaturityDate:   maturity.Format(dateLayout),
			SettlementDate: settle,
			QuantityMT:     h.QuantityMT,
		}
		switch {
		case h.MTMValue.Valid:
			s.Value = h.MTMValue
		case h.CurrentMarketPrice.Valid:
			s.Value = decimal.NewNullDecimal(h.CurrentMarketPrice.Decimal.Sub(h.ContractPrice).Mul(h.QuantityMT))
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SettlementDate < out[j].SettlementDate
	})
	return out
}
