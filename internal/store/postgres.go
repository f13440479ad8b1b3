package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hedgedesk/exposure-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values and quantities are stored as NUMERIC for exact decimal
// precision and read back as TEXT. Dates are read back as ISO text so the
// engine's fallback chains see the same shapes the desk forms produce.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) ListExposures(ctx context.Context) ([]model.Exposure, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source_type, source_id, exposure_type, quantity_mt::TEXT,
		        COALESCE(product, ''),
		        COALESCE(payment_date::TEXT, ''), COALESCE(delivery_date::TEXT, ''), COALESCE(sale_date::TEXT, ''),
		        status, created_at::TEXT
		 FROM exposures ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exposures []model.Exposure
	index := make(map[string]int)
	for rows.Next() {
		var e model.Exposure
		var qty string
		if err := rows.Scan(&e.ID, &e.SourceType, &e.SourceID, &e.ExposureType, &qty,
			&e.Product, &e.PaymentDate, &e.DeliveryDate, &e.SaleDate,
			&e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.QuantityMT, _ = decimal.NewFromString(qty)
		index[e.ID] = len(exposures)
		exposures = append(exposures, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Attach hedge tasks.
	taskRows, err := s.pool.Query(ctx,
		`SELECT id, exposure_id, status, created_at::TEXT FROM hedge_tasks ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer taskRows.Close()

	for taskRows.Next() {
		var t model.HedgeTask
		var exposureID string
		if err := taskRows.Scan(&t.ID, &exposureID, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		if i, ok := index[exposureID]; ok {
			exposures[i].Tasks = append(exposures[i].Tasks, t)
		}
	}
	return exposures, taskRows.Err()
}

const hedgeColumns = `id, COALESCE(so_id, ''), counterparty_id, quantity_mt::TEXT, contract_price::TEXT,
		        current_market_price::TEXT, mtm_value::TEXT,
		        COALESCE(period, ''), COALESCE(instrument, ''), COALESCE(maturity_date::TEXT, ''), status`

func (s *PostgresStore) ListHedges(ctx context.Context) ([]model.Hedge, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+hedgeColumns+` FROM hedges ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hedges []model.Hedge
	for rows.Next() {
		h, err := scanHedge(rows)
		if err != nil {
			return nil, err
		}
		hedges = append(hedges, *h)
	}
	return hedges, rows.Err()
}

func (s *PostgresStore) GetHedge(ctx context.Context, id string) (*model.Hedge, error) {
	h, err := scanHedge(s.pool.QueryRow(ctx, `SELECT `+hedgeColumns+` FROM hedges WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("hedge %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get hedge %s: %w", id, err)
	}
	return h, nil
}

func (s *PostgresStore) ListPurchaseOrders(ctx context.Context) ([]model.PurchaseOrder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+`, COALESCE(po_number, '') FROM purchase_orders ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.PurchaseOrder
	for rows.Next() {
		var po model.PurchaseOrder
		var qty string
		if err := rows.Scan(append(orderDest(&po.Order, &qty), &po.PONumber)...); err != nil {
			return nil, err
		}
		po.TotalQuantityMT, _ = decimal.NewFromString(qty)
		orders = append(orders, po)
	}
	return orders, rows.Err()
}

func (s *PostgresStore) ListSalesOrders(ctx context.Context) ([]model.SalesOrder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+`, COALESCE(so_number, '') FROM sales_orders ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.SalesOrder
	for rows.Next() {
		var so model.SalesOrder
		var qty string
		if err := rows.Scan(append(orderDest(&so.Order, &qty), &so.SONumber)...); err != nil {
			return nil, err
		}
		so.TotalQuantityMT, _ = decimal.NewFromString(qty)
		orders = append(orders, so)
	}
	return orders, rows.Err()
}

func (s *PostgresStore) ListMarketPrices(ctx context.Context, symbol string) ([]model.MarketPrice, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, symbol, COALESCE(contract_month, ''), price::TEXT, currency, as_of, fx
		 FROM market_prices
		 WHERE $1 = '' OR symbol = $1
		 ORDER BY as_of`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []model.MarketPrice
	for rows.Next() {
		var p model.MarketPrice
		var price string
		if err := rows.Scan(&p.ID, &p.Source, &p.Symbol, &p.ContractMonth, &price, &p.Currency, &p.AsOf, &p.FX); err != nil {
			return nil, err
		}
		p.Price, _ = decimal.NewFromString(price)
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

func (s *PostgresStore) ListMTMSnapshots(ctx context.Context) ([]model.MTMSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, object_type, COALESCE(object_id, ''), COALESCE(product, ''), COALESCE(period, ''),
		        price::TEXT, quantity_mt::TEXT, mtm_value::TEXT, as_of_date::TEXT
		 FROM mtm_snapshots
		 ORDER BY as_of_date DESC, created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []model.MTMSnapshot
	for rows.Next() {
		var m model.MTMSnapshot
		var price, qty string
		var mtm *string
		if err := rows.Scan(&m.ID, &m.ObjectType, &m.ObjectID, &m.Product, &m.Period,
			&price, &qty, &mtm, &m.AsOfDate); err != nil {
			return nil, err
		}
		m.Price, _ = decimal.NewFromString(price)
		m.QuantityMT, _ = decimal.NewFromString(qty)
		m.MTMValue = nullDecimal(mtm)
		snaps = append(snaps, m)
	}
	return snaps, rows.Err()
}

func (s *PostgresStore) GetRfq(ctx context.Context, id string) (*model.Rfq, error) {
	var r model.Rfq
	var qty string
	err := s.pool.QueryRow(ctx,
		`SELECT id, rfq_number, COALESCE(so_id, ''), quantity_mt::TEXT, COALESCE(period, ''),
		        side, status, COALESCE(winner_quote_id, '')
		 FROM rfqs WHERE id = $1`, id).
		Scan(&r.ID, &r.RfqNumber, &r.SOID, &qty, &r.Period, &r.Side, &r.Status, &r.WinnerQuoteID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("rfq %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get rfq %s: %w", id, err)
	}
	r.QuantityMT, _ = decimal.NewFromString(qty)

	rows, err := s.pool.Query(ctx,
		`SELECT id, COALESCE(counterparty_id, ''), COALESCE(counterparty_name, ''), quote_price::TEXT,
		        COALESCE(quote_group_id, ''), COALESCE(leg_side, ''), COALESCE(quoted_at::TEXT, ''), status
		 FROM rfq_quotes WHERE rfq_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	r.CounterpartyQuotes = []model.RfqQuote{}
	for rows.Next() {
		var q model.RfqQuote
		var price *string
		if err := rows.Scan(&q.ID, &q.CounterpartyID, &q.CounterpartyName, &price,
			&q.QuoteGroupID, &q.LegSide, &q.QuotedAt, &q.Status); err != nil {
			return nil, err
		}
		q.QuotePrice = nullDecimal(price)
		r.CounterpartyQuotes = append(r.CounterpartyQuotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	invRows, err := s.pool.Query(ctx,
		`SELECT id, counterparty_id, COALESCE(counterparty_name, ''), status,
		        COALESCE(sent_at::TEXT, ''), COALESCE(responded_at::TEXT, ''), COALESCE(expires_at::TEXT, '')
		 FROM rfq_invitations WHERE rfq_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer invRows.Close()

	for invRows.Next() {
		var inv model.RfqInvitation
		if err := invRows.Scan(&inv.ID, &inv.CounterpartyID, &inv.CounterpartyName, &inv.Status,
			&inv.SentAt, &inv.RespondedAt, &inv.ExpiresAt); err != nil {
			return nil, err
		}
		r.Invitations = append(r.Invitations, inv)
	}
	return &r, invRows.Err()
}

func (s *PostgresStore) InsertMTMSnapshot(ctx context.Context, m *model.MTMSnapshot) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO mtm_snapshots (id, object_type, object_id, product, period, price, quantity_mt, mtm_value, as_of_date)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9::DATE)`,
		m.ID, m.ObjectType, m.ObjectID, m.Product, m.Period,
		m.Price.String(), m.QuantityMT.String(), nullDecimalArg(m.MTMValue), m.AsOfDate,
	)
	return err
}

func (s *PostgresStore) InsertMarketPrice(ctx context.Context, p *model.MarketPrice) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO market_prices (id, source, symbol, contract_month, price, currency, as_of, fx)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5::NUMERIC, $6, $7, $8)`,
		p.ID, p.Source, p.Symbol, p.ContractMonth, p.Price.String(), p.Currency, p.AsOf, p.FX,
	)
	return err
}

func (s *PostgresStore) InsertQuote(ctx context.Context, rfqID string, q *model.RfqQuote) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO rfq_quotes (id, rfq_id, counterparty_id, counterparty_name, quote_price, quote_group_id, leg_side, quoted_at, status)
		 SELECT $1, r.id, NULLIF($3, ''), NULLIF($4, ''), $5::NUMERIC, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, '')::TIMESTAMPTZ, $9
		 FROM rfqs r WHERE r.id = $2`,
		q.ID, rfqID, q.CounterpartyID, q.CounterpartyName, nullDecimalArg(q.QuotePrice),
		q.QuoteGroupID, q.LegSide, q.QuotedAt, q.Status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rfq %s: %w", rfqID, ErrNotFound)
	}
	return nil
}

// --- Scan helpers ---

const orderColumns = `id, COALESCE(product, ''), total_quantity_mt::TEXT, COALESCE(pricing_period, ''),
		        COALESCE(expected_delivery_date::TEXT, ''), COALESCE(fixing_deadline::TEXT, ''),
		        status, created_at::TEXT`

func orderDest(o *model.Order, qty *string) []any {
	return []any{&o.ID, &o.Product, qty, &o.PricingPeriod,
		&o.ExpectedDeliveryDate, &o.FixingDeadline, &o.Status, &o.CreatedAt}
}

func scanHedge(row pgx.Row) (*model.Hedge, error) {
	var h model.Hedge
	var qty, contract string
	var market, mtm *string
	if err := row.Scan(&h.ID, &h.SOID, &h.CounterpartyID, &qty, &contract,
		&market, &mtm, &h.Period, &h.Instrument, &h.MaturityDate, &h.Status); err != nil {
		return nil, err
	}
	h.QuantityMT, _ = decimal.NewFromString(qty)
	h.ContractPrice, _ = decimal.NewFromString(contract)
	h.CurrentMarketPrice = nullDecimal(market)
	h.MTMValue = nullDecimal(mtm)
	return &h, nil
}

// nullDecimal converts a nullable NUMERIC read as TEXT.
func nullDecimal(s *string) decimal.NullDecimal {
	if s == nil {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func nullDecimalArg(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}
