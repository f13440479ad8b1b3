// Package ranking groups RFQ quotes into counterparty offers and orders them
// best-first.
//
// RankRfq is recomputed from scratch on every call. Nothing is cached, so the
// best response always reflects the quotes currently loaded.
package ranking

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hedgedesk/exposure-engine/internal/model"
)

const (
	// DefaultCounterpartyName labels quotes with no counterparty name.
	DefaultCounterpartyName = "Contraparte"

	// NoResponses is displayed when an RFQ has no ranked entries.
	NoResponses = "Sem respostas"

	// NoTimestamp sorts missing or unparseable quote times after any real one.
	NoTimestamp int64 = math.MaxInt64
)

// TradeScore is one quote group: a single- or multi-leg trade.
type TradeScore struct {
	GroupID   string              `json:"group_id"`
	BuyPrice  decimal.Decimal     `json:"buy_price"`
	SellPrice decimal.NullDecimal `json:"sell_price"`
	QuotedAt  int64               `json:"quoted_at"` // unix millis, NoTimestamp when unknown
	QuoteIDs  []string            `json:"quote_ids"`
}

// RankedEntry is one counterparty's response.
type RankedEntry struct {
	CounterpartyID   string          `json:"counterparty_id,omitempty"`
	CounterpartyName string          `json:"counterparty_name"`
	Score            decimal.Decimal `json:"score"`
	Display          string          `json:"display"`
	Kind             string          `json:"kind"`
	Offer            Offer           `json:"-"`
	Trades           []TradeScore    `json:"trades"`
}

// Ranking is the ordered result for one RFQ.
type Ranking struct {
	Side    string        `json:"side"`
	Entries []RankedEntry `json:"entries"`
}

// Best returns the top-ranked entry. ok is false when there are no quotes.
func (r Ranking) Best() (RankedEntry, bool) {
	if len(r.Entries) == 0 {
		return RankedEntry{}, false
	}
	return r.Entries[0], true
}

// BestDisplay renders the best response, or NoResponses.
func (r Ranking) BestDisplay() string {
	best, ok := r.Best()
	if !ok {
		return NoResponses
	}
	return best.CounterpartyName + " " + best.Display
}

// WinnerIndex returns the index of the entry holding the RFQ's winner quote,
// or -1 when the RFQ has no winner or it is not among the entries.
func (r Ranking) WinnerIndex(rfq model.Rfq) int {
	if rfq.WinnerQuoteID == "" {
		return -1
	}
	for i, e := range r.Entries {
		for _, t := range e.Trades {
			for _, id := range t.QuoteIDs {
				if id == rfq.WinnerQuoteID {
					return i
				}
			}
		}
	}
	return -1
}

// RankRfq scores every counterparty that answered the RFQ.
//
// Entries are ordered by score descending, then by the first trade's
// QuotedAt ascending. Remaining ties keep first-seen counterparty order.
func RankRfq(rfq model.Rfq) Ranking {
	side := normalizeSide(rfq.Side)

	byCounterparty := make(map[string][]model.RfqQuote)
	var order []string
	for i, q := range rfq.CounterpartyQuotes {
		k := counterpartyKey(q, i)
		if _, ok := byCounterparty[k]; !ok {
			order = append(order, k)
		}
		byCounterparty[k] = append(byCounterparty[k], q)
	}

	entries := make([]RankedEntry, 0, len(order))
	for _, k := range order {
		quotes := byCounterparty[k]
		trades := groupTrades(quotes)

		var offer Offer
		if len(trades) <= 1 {
			offer = Single{Price: trades[0].BuyPrice}
		} else {
			offer = newSpread(trades)
		}

		name := quotes[0].CounterpartyName
		if name == "" {
			name = DefaultCounterpartyName
		}
		entries = append(entries, RankedEntry{
			CounterpartyID:   quotes[0].CounterpartyID,
			CounterpartyName: name,
			Score:            offer.Score(side),
			Display:          offer.Display(),
			Kind:             offer.Kind(),
			Offer:            offer,
			Trades:           trades,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if c := entries[i].Score.Cmp(entries[j].Score); c != 0 {
			return c > 0
		}
		return firstQuotedAt(entries[i]) < firstQuotedAt(entries[j])
	})

	return Ranking{Side: side, Entries: entries}
}

func normalizeSide(side string) string {
	s := strings.ToLower(strings.TrimSpace(side))
	if s == "" {
		return model.SideBuy
	}
	return s
}

func counterpartyKey(q model.RfqQuote, idx int) string {
	if q.CounterpartyID != "" {
		return q.CounterpartyID
	}
	if q.CounterpartyName != "" {
		return "cp-" + q.CounterpartyName
	}
	return "cp-" + strconv.Itoa(idx)
}

func groupKey(q model.RfqQuote, idx int) string {
	if q.QuoteGroupID != "" {
		return q.QuoteGroupID
	}
	if q.ID != "" {
		return "q-" + q.ID
	}
	return "q-" + strconv.Itoa(idx)
}

// groupTrades sub-partitions one counterparty's quotes into trades, in
// first-seen group order.
func groupTrades(quotes []model.RfqQuote) []TradeScore {
	byGroup := make(map[string][]model.RfqQuote)
	var order []string
	for i, q := range quotes {
		k := groupKey(q, i)
		if _, ok := byGroup[k]; !ok {
			order = append(order, k)
		}
		byGroup[k] = append(byGroup[k], q)
	}

	trades := make([]TradeScore, 0, len(order))
	for _, k := range order {
		trades = append(trades, scoreTrade(k, byGroup[k]))
	}
	return trades
}

func scoreTrade(groupID string, legs []model.RfqQuote) TradeScore {
	buy, sell, other := -1, -1, -1
	for i, l := range legs {
		if buy < 0 && strings.EqualFold(l.LegSide, model.SideBuy) {
			buy = i
		}
	}
	// The leg that supplies BuyPrice never doubles as the second leg.
	first := buy
	if first < 0 {
		first = 0
	}
	for i, l := range legs {
		if i == first {
			continue
		}
		if other < 0 {
			other = i
		}
		if sell < 0 && strings.EqualFold(l.LegSide, model.SideSell) {
			sell = i
		}
	}

	t := TradeScore{GroupID: groupID, QuotedAt: NoTimestamp}

	switch {
	case buy >= 0 && legs[buy].QuotePrice.Valid:
		t.BuyPrice = legs[buy].QuotePrice.Decimal
	case legs[0].QuotePrice.Valid:
		t.BuyPrice = legs[0].QuotePrice.Decimal
	default:
		t.BuyPrice = decimal.Zero
	}

	switch {
	case sell >= 0 && legs[sell].QuotePrice.Valid:
		t.SellPrice = legs[sell].QuotePrice
	case other >= 0:
		t.SellPrice = legs[other].QuotePrice
	}

	for _, l := range legs {
		if at := ParseQuotedAt(l.QuotedAt); at < t.QuotedAt {
			t.QuotedAt = at
		}
		if l.ID != "" {
			t.QuoteIDs = append(t.QuoteIDs, l.ID)
		}
	}
	return t
}

var quotedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseQuotedAt converts a quote timestamp to unix millis, or NoTimestamp.
func ParseQuotedAt(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return NoTimestamp
	}
	for _, layout := range quotedAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}
	return NoTimestamp
}

func firstQuotedAt(e RankedEntry) int64 {
	if len(e.Trades) == 0 {
		return NoTimestamp
	}
	return e.Trades[0].QuotedAt
}
