// Package model defines the domain records shared across the exposure engine.
// All monetary values and quantities use shopspring/decimal, never float64.
//
// Records are read models supplied by the persistence layer. Dates that come
// from upstream forms are kept as ISO strings (empty = absent) so that a
// malformed value degrades through the fallback chains instead of failing
// decoding.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Exposure types.
const (
	ExposureActive  = "active"  // receivable / sale side
	ExposurePassive = "passive" // payable / purchase side
)

// Exposure statuses.
const (
	ExposureOpen   = "open"
	ExposureHedged = "hedged"
	ExposureClosed = "closed"
)

// Hedge statuses. Only active hedges count toward netting and MTM.
const (
	HedgeActive    = "active"
	HedgeClosed    = "closed"
	HedgeCancelled = "cancelled"
)

// Order statuses.
const (
	OrderDraft     = "draft"
	OrderActive    = "active"
	OrderCompleted = "completed"
	OrderCancelled = "cancelled"
)

// Object types shared by exposures (source_type) and MTM snapshots.
const (
	ObjectHedge     = "hedge"
	ObjectPO        = "po"
	ObjectSO        = "so"
	ObjectPortfolio = "portfolio"
	ObjectExposure  = "exposure"
	ObjectNet       = "net"
)

// RFQ sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// HedgeTask tracks the hedging workflow of one exposure.
type HedgeTask struct {
	ID        string `json:"id"`
	Status    string `json:"status"` // pending, in_progress, hedged, completed, cancelled
	CreatedAt string `json:"created_at,omitempty"`
}

// Exposure is a risk position derived from a commercial order.
type Exposure struct {
	ID           string          `json:"id" db:"id"`
	SourceType   string          `json:"source_type" db:"source_type"` // po, so, hedge, ...
	SourceID     string          `json:"source_id" db:"source_id"`
	ExposureType string          `json:"exposure_type" db:"exposure_type"`
	QuantityMT   decimal.Decimal `json:"quantity_mt" db:"quantity_mt"`
	Product      string          `json:"product,omitempty" db:"product"`
	PaymentDate  string          `json:"payment_date,omitempty" db:"payment_date"`
	DeliveryDate string          `json:"delivery_date,omitempty" db:"delivery_date"`
	SaleDate     string          `json:"sale_date,omitempty" db:"sale_date"`
	Status       string          `json:"status" db:"status"`
	Tasks        []HedgeTask     `json:"tasks"`
	CreatedAt    string          `json:"created_at,omitempty" db:"created_at"`
}

// Hedge is a derivative position offsetting price risk for a period.
type Hedge struct {
	ID                 string              `json:"id" db:"id"`
	SOID               string              `json:"so_id,omitempty" db:"so_id"`
	CounterpartyID     string              `json:"counterparty_id" db:"counterparty_id"`
	QuantityMT         decimal.Decimal     `json:"quantity_mt" db:"quantity_mt"`
	ContractPrice      decimal.Decimal     `json:"contract_price" db:"contract_price"`
	CurrentMarketPrice decimal.NullDecimal `json:"current_market_price" db:"current_market_price"`
	MTMValue           decimal.NullDecimal `json:"mtm_value" db:"mtm_value"`
	Period             string              `json:"period" db:"period"`
	Instrument         string              `json:"instrument,omitempty" db:"instrument"`
	MaturityDate       string              `json:"maturity_date,omitempty" db:"maturity_date"`
	Status             string              `json:"status" db:"status"`
}

// MarketPrice is an append-only, timestamped quotation.
type MarketPrice struct {
	ID            string          `json:"id" db:"id"`
	Source        string          `json:"source" db:"source"`
	Symbol        string          `json:"symbol" db:"symbol"`
	ContractMonth string          `json:"contract_month,omitempty" db:"contract_month"`
	Price         decimal.Decimal `json:"price" db:"price"`
	Currency      string          `json:"currency" db:"currency"`
	AsOf          time.Time       `json:"as_of" db:"as_of"`
	FX            bool            `json:"fx" db:"fx"`
}

// MTMSnapshot is a persisted valuation record.
type MTMSnapshot struct {
	ID         string              `json:"id" db:"id"`
	ObjectType string              `json:"object_type" db:"object_type"`
	ObjectID   string              `json:"object_id,omitempty" db:"object_id"`
	Product    string              `json:"product,omitempty" db:"product"`
	Period     string              `json:"period,omitempty" db:"period"`
	Price      decimal.Decimal     `json:"price" db:"price"`
	QuantityMT decimal.Decimal     `json:"quantity_mt" db:"quantity_mt"`
	MTMValue   decimal.NullDecimal `json:"mtm_value" db:"mtm_value"`
	AsOfDate   string              `json:"as_of_date" db:"as_of_date"`
}

// Order carries the fields shared by purchase and sales orders.
type Order struct {
	ID                   string          `json:"id" db:"id"`
	Product              string          `json:"product,omitempty" db:"product"`
	TotalQuantityMT      decimal.Decimal `json:"total_quantity_mt" db:"total_quantity_mt"`
	PricingPeriod        string          `json:"pricing_period,omitempty" db:"pricing_period"`
	ExpectedDeliveryDate string          `json:"expected_delivery_date,omitempty" db:"expected_delivery_date"`
	FixingDeadline       string          `json:"fixing_deadline,omitempty" db:"fixing_deadline"`
	Status               string          `json:"status" db:"status"`
	CreatedAt            string          `json:"created_at,omitempty" db:"created_at"`
}

// PurchaseOrder is the payable side of the book.
type PurchaseOrder struct {
	Order
	PONumber string `json:"po_number" db:"po_number"`
}

// SalesOrder is the receivable side of the book.
type SalesOrder struct {
	Order
	SONumber string `json:"so_number" db:"so_number"`
}

// NetExposureRow is one product|period bucket. Net = GrossActive - GrossPassive - Hedged.
type NetExposureRow struct {
	Product      string          `json:"product"`
	Period       string          `json:"period"`
	GrossActive  decimal.Decimal `json:"gross_active"`
	GrossPassive decimal.Decimal `json:"gross_passive"`
	Hedged       decimal.Decimal `json:"hedged"`
	Net          decimal.Decimal `json:"net"` // signed
}

// RfqQuote is a single price point from a counterparty. Quotes sharing a
// QuoteGroupID form one multi-leg trade.
type RfqQuote struct {
	ID               string              `json:"id,omitempty" db:"id"`
	CounterpartyID   string              `json:"counterparty_id,omitempty" db:"counterparty_id"`
	CounterpartyName string              `json:"counterparty_name,omitempty" db:"counterparty_name"`
	QuotePrice       decimal.NullDecimal `json:"quote_price" db:"quote_price"`
	QuoteGroupID     string              `json:"quote_group_id,omitempty" db:"quote_group_id"`
	LegSide          string              `json:"leg_side,omitempty" db:"leg_side"`
	QuotedAt         string              `json:"quoted_at,omitempty" db:"quoted_at"`
	Status           string              `json:"status" db:"status"`
}

// RfqInvitation records that a counterparty was asked to quote.
type RfqInvitation struct {
	ID               string `json:"id,omitempty"`
	CounterpartyID   string `json:"counterparty_id"`
	CounterpartyName string `json:"counterparty_name,omitempty"`
	Status           string `json:"status"` // draft, sent, answered, expired, refused, winner, lost
	SentAt           string `json:"sent_at,omitempty"`
	RespondedAt      string `json:"responded_at,omitempty"`
	ExpiresAt        string `json:"expires_at,omitempty"`
}

// Rfq is one request-for-quote negotiation round.
type Rfq struct {
	ID                 string          `json:"id" db:"id"`
	RfqNumber          string          `json:"rfq_number" db:"rfq_number"`
	SOID               string          `json:"so_id" db:"so_id"`
	QuantityMT         decimal.Decimal `json:"quantity_mt" db:"quantity_mt"`
	Period             string          `json:"period" db:"period"`
	Side               string          `json:"side,omitempty" db:"side"`
	Status             string          `json:"status" db:"status"`
	CounterpartyQuotes []RfqQuote      `json:"counterparty_quotes"`
	Invitations        []RfqInvitation `json:"invitations,omitempty"`
	WinnerQuoteID      string          `json:"winner_quote_id,omitempty" db:"winner_quote_id"`
}

// Book is an explicit snapshot of the collections the engine works on.
// Callers build one per request; nothing in the engine holds on to it.
type Book struct {
	Exposures      []Exposure      `json:"exposures"`
	Hedges         []Hedge         `json:"hedges"`
	PurchaseOrders []PurchaseOrder `json:"purchase_orders"`
	SalesOrders    []SalesOrder    `json:"sales_orders"`
	MarketPrices   []MarketPrice   `json:"market_prices"`
	MTMSnapshots   []MTMSnapshot   `json:"mtm_snapshots"`
	Rfqs           []Rfq           `json:"rfqs"`
}
