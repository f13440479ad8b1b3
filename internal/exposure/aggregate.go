// Package exposure folds exposures and hedges into net risk buckets per
// product|period.
//
// Aggregation is a pure function of its inputs: no locking, no I/O, and the
// same inputs always produce the same rows in the same order.
package exposure

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/hedgedesk/exposure-engine/internal/bucket"
	"github.com/hedgedesk/exposure-engine/internal/model"
)

// Aggregate nets exposures against active hedges.
//
// Rows are returned in the order their bucket was first seen: exposures
// first, then buckets created only by hedges.
func Aggregate(exposures []model.Exposure, hedges []model.Hedge, salesOrders []model.SalesOrder) []model.NetExposureRow {
	type bucketAgg struct {
		key          bucket.Key
		grossActive  decimal.Decimal
		grossPassive decimal.Decimal
		hedged       decimal.Decimal
	}

	agg := make(map[bucket.Key]*bucketAgg)
	var order []bucket.Key

	get := func(k bucket.Key) *bucketAgg {
		b, ok := agg[k]
		if !ok {
			b = &bucketAgg{key: k}
			agg[k] = b
			order = append(order, k)
		}
		return b
	}

	// Pass 1: accumulate.
	for _, e := range exposures {
		b := get(bucket.ForExposure(e))
		if e.ExposureType == model.ExposureActive {
			b.grossActive = b.grossActive.Add(e.QuantityMT)
		} else {
			b.grossPassive = b.grossPassive.Add(e.QuantityMT)
		}
	}

	products := SalesOrderProducts(salesOrders)
	for _, h := range hedges {
		if h.Status != model.HedgeActive {
			continue
		}
		b := get(bucket.ForHedge(h, products))
		b.hedged = b.hedged.Add(h.QuantityMT)
	}

	// Pass 2: derive net.
	rows := make([]model.NetExposureRow, 0, len(order))
	for _, k := range order {
		b := agg[k]
		rows = append(rows, model.NetExposureRow{
			Product:      k.Product,
			Period:       k.Period,
			GrossActive:  b.grossActive,
			GrossPassive: b.grossPassive,
			Hedged:       b.hedged,
			Net:          b.grossActive.Sub(b.grossPassive).Sub(b.hedged),
		})
	}
	return rows
}

// SalesOrderProducts maps sales order id to product. The first order wins
// when ids repeat.
func SalesOrderProducts(salesOrders []model.SalesOrder) map[string]string {
	products := make(map[string]string, len(salesOrders))
	for _, so := range salesOrders {
		if _, ok := products[so.ID]; !ok {
			products[so.ID] = so.Product
		}
	}
	return products
}

// FilterRows keeps rows matching product and period. Empty filters match everything.
func FilterRows(rows []model.NetExposureRow, product, period string) []model.NetExposureRow {
	out := make([]model.NetExposureRow, 0, len(rows))
	for _, r := range rows {
		if product != "" && r.Product != product {
			continue
		}
		if period != "" && r.Period != period {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SortRows orders rows by product, then period. The input is not modified.
func SortRows(rows []model.NetExposureRow) []model.NetExposureRow {
	out := make([]model.NetExposureRow, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Product != out[j].Product {
			return out[i].Product < out[j].Product
		}
		return out[i].Period < out[j].Period
	})
	return out
}

// Totals sums every column across rows.
type Totals struct {
	GrossActive  decimal.Decimal `json:"gross_active"`
	GrossPassive decimal.Decimal `json:"gross_passive"`
	Hedged       decimal.Decimal `json:"hedged"`
	Net          decimal.Decimal `json:"net"`
}

// Sum computes the totals of a set of rows.
func Sum(rows []model.NetExposureRow) Totals {
	var t Totals
	for _, r := range rows {
		t.GrossActive = t.GrossActive.Add(r.GrossActive)
		t.GrossPassive = t.GrossPassive.Add(r.GrossPassive)
		t.Hedged = t.Hedged.Add(r.Hedged)
		t.Net = t.Net.Add(r.Net)
	}
	return t
}
