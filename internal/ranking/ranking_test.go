package ranking

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgedesk/exposure-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func price(f float64) decimal.NullDecimal {
	return decimal.NewNullDecimal(d(f))
}

func quote(id, cp string, p float64, at string) model.RfqQuote {
	return model.RfqQuote{ID: id, CounterpartyID: cp, CounterpartyName: "Bank " + cp, QuotePrice: price(p), QuotedAt: at}
}

func TestRankRfq_BuySideLowestPriceWins(t *testing.T) {
	rfq := model.Rfq{
		Side: "buy",
		CounterpartyQuotes: []model.RfqQuote{
			quote("1", "A", 2310, "2025-03-01T10:00:00Z"),
			quote("2", "B", 2295.5, "2025-03-01T10:05:00Z"),
			quote("3", "C", 2400, "2025-03-01T09:00:00Z"),
		},
	}

	r := RankRfq(rfq)
	require.Len(t, r.Entries, 3)
	assert.Equal(t, "buy", r.Side)
	assert.Equal(t, "B", r.Entries[0].CounterpartyID)
	assert.Equal(t, "A", r.Entries[1].CounterpartyID)
	assert.Equal(t, "C", r.Entries[2].CounterpartyID)

	best, ok := r.Best()
	require.True(t, ok)
	assert.Equal(t, "USD 2295.50", best.Display)
	assert.Equal(t, KindSingle, best.Kind)
	assert.True(t, best.Score.Equal(d(-2295.5)))
	assert.Equal(t, "Bank B USD 2295.50", r.BestDisplay())
}

func TestRankRfq_SellSideHighestPriceWins(t *testing.T) {
	rfq := model.Rfq{
		Side: "sell",
		CounterpartyQuotes: []model.RfqQuote{
			quote("1", "A", 2310, ""),
			quote("2", "B", 2295, ""),
		},
	}
	r := RankRfq(rfq)
	require.Len(t, r.Entries, 2)
	assert.Equal(t, "A", r.Entries[0].CounterpartyID)
}

func TestRankRfq_DefaultSideIsBuy(t *testing.T) {
	r := RankRfq(model.Rfq{CounterpartyQuotes: []model.RfqQuote{quote("1", "A", 10, "")}})
	assert.Equal(t, "buy", r.Side)
	assert.True(t, r.Entries[0].Score.Equal(d(-10)))
}

func TestRankRfq_Spread(t *testing.T) {
	rfq := model.Rfq{
		Side: "sell",
		CounterpartyQuotes: []model.RfqQuote{
			// listed out of time order on purpose
			{ID: "2", CounterpartyID: "A", QuotePrice: price(120), QuoteGroupID: "g2", LegSide: "buy", QuotedAt: "2025-03-01T11:00:00Z"},
			{ID: "1", CounterpartyID: "A", QuotePrice: price(100), QuoteGroupID: "g1", LegSide: "buy", QuotedAt: "2025-03-01T10:00:00Z"},
		},
	}

	r := RankRfq(rfq)
	require.Len(t, r.Entries, 1)
	e := r.Entries[0]
	assert.Equal(t, KindSpread, e.Kind)
	assert.True(t, e.Score.Equal(d(20)), "score = %s", e.Score)
	assert.Equal(t, "Δ USD 20.00", e.Display)

	spread, ok := e.Offer.(Spread)
	require.True(t, ok)
	assert.Equal(t, "g1", spread.First.GroupID)
	assert.Equal(t, "g2", spread.Last.GroupID)
}

func TestRankRfq_SpreadIgnoresSide(t *testing.T) {
	quotes := []model.RfqQuote{
		{ID: "1", CounterpartyID: "A", QuotePrice: price(100), QuoteGroupID: "g1", QuotedAt: "2025-03-01T10:00:00Z"},
		{ID: "2", CounterpartyID: "A", QuotePrice: price(120), QuoteGroupID: "g2", QuotedAt: "2025-03-01T11:00:00Z"},
	}
	buy := RankRfq(model.Rfq{Side: "buy", CounterpartyQuotes: quotes})
	sell := RankRfq(model.Rfq{Side: "sell", CounterpartyQuotes: quotes})
	assert.True(t, buy.Entries[0].Score.Equal(sell.Entries[0].Score))
}

func TestRankRfq_TieBreakByEarliestQuote(t *testing.T) {
	rfq := model.Rfq{
		Side: "buy",
		CounterpartyQuotes: []model.RfqQuote{
			quote("1", "late", 100, "2025-03-01T12:00:00Z"),
			quote("2", "nodate", 100, ""),
			quote("3", "early", 100, "2025-03-01T08:00:00Z"),
		},
	}
	r := RankRfq(rfq)
	got := []string{r.Entries[0].CounterpartyID, r.Entries[1].CounterpartyID, r.Entries[2].CounterpartyID}
	assert.Equal(t, []string{"early", "late", "nodate"}, got)
}

func TestRankRfq_Empty(t *testing.T) {
	r := RankRfq(model.Rfq{Side: "sell"})
	assert.NotNil(t, r.Entries)
	assert.Empty(t, r.Entries)
	_, ok := r.Best()
	assert.False(t, ok)
	assert.Equal(t, NoResponses, r.BestDisplay())
}

func TestRankRfq_MissingPriceScoresAsZero(t *testing.T) {
	rfq := model.Rfq{
		Side: "sell",
		CounterpartyQuotes: []model.RfqQuote{
			{ID: "1", CounterpartyID: "A"},
			quote("2", "B", -5, ""),
		},
	}
	r := RankRfq(rfq)
	require.Len(t, r.Entries, 2, "a quote without price is never excluded")
	assert.Equal(t, "A", r.Entries[0].CounterpartyID)
	assert.True(t, r.Entries[0].Score.IsZero())
}

func TestRankRfq_PartialCounterpartyData(t *testing.T) {
	rfq := model.Rfq{
		Side: "buy",
		CounterpartyQuotes: []model.RfqQuote{
			{QuotePrice: price(10)},
			{QuotePrice: price(11)},
			{CounterpartyName: "Trafigura", QuotePrice: price(12)},
			{CounterpartyName: "Trafigura", QuotePrice: price(13), QuoteGroupID: "x"},
		},
	}
	r := RankRfq(rfq)
	require.Len(t, r.Entries, 3)

	names := map[string]int{}
	for _, e := range r.Entries {
		names[e.CounterpartyName]++
	}
	assert.Equal(t, 2, names[DefaultCounterpartyName])
	assert.Equal(t, 1, names["Trafigura"])
}

func TestScoreTrade_Legs(t *testing.T) {
	legs := []model.RfqQuote{
		{ID: "s", LegSide: "SELL", QuotePrice: price(99)},
		{ID: "b", LegSide: "buy", QuotePrice: price(101)},
	}
	tr := scoreTrade("g", legs)
	assert.True(t, tr.BuyPrice.Equal(d(101)))
	require.True(t, tr.SellPrice.Valid)
	assert.True(t, tr.SellPrice.Decimal.Equal(d(99)))
	assert.Equal(t, []string{"s", "b"}, tr.QuoteIDs)
	assert.Equal(t, NoTimestamp, tr.QuotedAt)

	// no explicit sides: first leg is buy, the other is the second leg
	tr = scoreTrade("g", []model.RfqQuote{{QuotePrice: price(1)}, {QuotePrice: price(2)}})
	assert.True(t, tr.BuyPrice.Equal(d(1)))
	assert.True(t, tr.SellPrice.Decimal.Equal(d(2)))

	// single leg has no second leg
	tr = scoreTrade("g", []model.RfqQuote{{QuotePrice: price(1)}})
	assert.False(t, tr.SellPrice.Valid)
}

func TestRankRfq_SingleQuoteHasNoSecondLeg(t *testing.T) {
	rfq := model.Rfq{Side: model.SideBuy, CounterpartyQuotes: []model.RfqQuote{
		{ID: "1", CounterpartyID: "c1", QuotePrice: price(100)},
	}}
	rk := RankRfq(rfq)
	require.Len(t, rk.Entries, 1)
	require.Len(t, rk.Entries[0].Trades, 1)

	tr := rk.Entries[0].Trades[0]
	assert.True(t, tr.BuyPrice.Equal(d(100)))
	assert.False(t, tr.SellPrice.Valid, "the buy leg must not double as the sell leg")

	// A lone sell-side quote supplies the buy price and nothing else.
	tr = scoreTrade("g", []model.RfqQuote{{LegSide: model.SideSell, QuotePrice: price(7)}})
	assert.True(t, tr.BuyPrice.Equal(d(7)))
	assert.False(t, tr.SellPrice.Valid)
}

func TestParseQuotedAt(t *testing.T) {
	assert.Equal(t, NoTimestamp, ParseQuotedAt(""))
	assert.Equal(t, NoTimestamp, ParseQuotedAt("yesterday"))
	assert.Less(t, ParseQuotedAt("2025-03-01"), ParseQuotedAt("2025-03-01T00:00:01Z"))
	assert.Equal(t, ParseQuotedAt("2025-03-01T10:00:00Z"), ParseQuotedAt("2025-03-01T10:00:00.000Z"))
}

func TestWinnerIndex(t *testing.T) {
	rfq := model.Rfq{
		Side: "buy",
		CounterpartyQuotes: []model.RfqQuote{
			quote("1", "A", 200, ""),
			quote("2", "B", 100, ""),
		},
		WinnerQuoteID: "1",
	}
	r := RankRfq(rfq)
	assert.Equal(t, 1, r.WinnerIndex(rfq))

	rfq.WinnerQuoteID = ""
	assert.Equal(t, -1, r.WinnerIndex(rfq))
	rfq.WinnerQuoteID = "999"
	assert.Equal(t, -1, r.WinnerIndex(rfq))
}

func TestRankRfq_Idempotent(t *testing.T) {
	rfq := model.Rfq{
		Side: "buy",
		CounterpartyQuotes: []model.RfqQuote{
			quote("1", "A", 200, "2025-03-01T10:00:00Z"),
			quote("2", "B", 100, ""),
			{ID: "3", CounterpartyID: "C", QuotePrice: price(5), QuoteGroupID: "g1"},
			{ID: "4", CounterpartyID: "C", QuotePrice: price(7), QuoteGroupID: "g2"},
		},
	}
	assert.True(t, reflect.DeepEqual(RankRfq(rfq), RankRfq(rfq)))
}
