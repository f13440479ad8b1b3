// Package coverage classifies how much of each open commercial order is
// already hedged and lists the orders that still need hedging.
//
// Coverage is tracked per sales order: the hedged quantity of an SO is the
// sum of every non-cancelled hedge that references it. Purchase orders are
// only ever concluded through their exposure record.
package coverage

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hedgedesk/exposure-engine/internal/bucket"
	"github.com/hedgedesk/exposure-engine/internal/model"
)

// Coverage statuses as shown on the desk.
const (
	StatusConcluded = "Hedge concluído"
	StatusPartial   = "Hedge parcial"
	StatusNone      = "Sem hedge"
)

// NoCommodity labels rows whose exposure and order both lack a product.
const NoCommodity = "—"

// tolerance absorbs rounding when comparing hedged and ordered quantities.
var tolerance = decimal.New(1, -6)

// PendingRow is one order that is not fully hedged.
type PendingRow struct {
	Reference  string          `json:"reference"`
	SourceType string          `json:"source_type"`
	OrderID    string          `json:"order_id"`
	Commodity  string          `json:"commodity"`
	QuantityMT decimal.Decimal `json:"quantity_mt"`
	HedgedMT   decimal.Decimal `json:"hedged_mt"`
	Period     string          `json:"period"`
	Status     string          `json:"status"`
}

// HedgedBySalesOrder sums non-cancelled hedge quantity per SO id.
func HedgedBySalesOrder(hedges []model.Hedge) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, h := range hedges {
		if h.Status == model.HedgeCancelled || h.SOID == "" {
			continue
		}
		out[h.SOID] = out[h.SOID].Add(h.QuantityMT)
	}
	return out
}

// ExposureConcluded reports whether an exposure needs no further hedging:
// its status is hedged or closed, or it has tasks and every one of them is
// hedged or completed.
func ExposureConcluded(e *model.Exposure) bool {
	if e == nil {
		return false
	}
	switch strings.ToLower(e.Status) {
	case model.ExposureHedged, model.ExposureClosed:
		return true
	}
	if len(e.Tasks) == 0 {
		return false
	}
	for _, t := range e.Tasks {
		if t.Status != "hedged" && t.Status != "completed" {
			return false
		}
	}
	return true
}

// Pending lists active POs and SOs that are not fully hedged, sorted by
// reference.
func Pending(book model.Book) []PendingRow {
	exposures := indexExposures(book.Exposures)
	hedged := HedgedBySalesOrder(book.Hedges)

	rows := make([]PendingRow, 0)

	for _, po := range book.PurchaseOrders {
		if po.Status != model.OrderActive {
			continue
		}
		exp := exposures[model.ObjectPO+":"+po.ID]
		if ExposureConcluded(exp) {
			continue
		}
		rows = append(rows, newRow(model.ObjectPO, po.Order, reference(po.PONumber, "PO-", po.ID), exp, decimal.Zero, StatusNone))
	}

	for _, so := range book.SalesOrders {
		if so.Status != model.OrderActive {
			continue
		}
		exp := exposures[model.ObjectSO+":"+so.ID]
		qty := hedged[so.ID]
		if ExposureConcluded(exp) || qty.GreaterThanOrEqual(so.TotalQuantityMT.Sub(tolerance)) {
			continue
		}
		status := StatusNone
		if qty.IsPositive() {
			status = StatusPartial
		}
		rows = append(rows, newRow(model.ObjectSO, so.Order, reference(so.SONumber, "SO-", so.ID), exp, qty, status))
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Reference < rows[j].Reference
	})
	return rows
}

// Classify returns the coverage status of one sales order, including
// StatusConcluded.
func Classify(so model.SalesOrder, exp *model.Exposure, hedged decimal.Decimal) string {
	switch {
	case ExposureConcluded(exp) || hedged.GreaterThanOrEqual(so.TotalQuantityMT.Sub(tolerance)):
		return StatusConcluded
	case hedged.IsPositive():
		return StatusPartial
	default:
		return StatusNone
	}
}

func newRow(sourceType string, o model.Order, ref string, exp *model.Exposure, hedged decimal.Decimal, status string) PendingRow {
	return PendingRow{
		Reference:  ref,
		SourceType: sourceType,
		OrderID:    o.ID,
		Commodity:  commodity(exp, o),
		QuantityMT: o.TotalQuantityMT,
		HedgedMT:   hedged,
		Period:     period(exp, o),
		Status:     status,
	}
}

// indexExposures keys exposures by "source_type:source_id". Later records
// replace earlier ones.
func indexExposures(exposures []model.Exposure) map[string]*model.Exposure {
	out := make(map[string]*model.Exposure, len(exposures))
	for i := range exposures {
		e := &exposures[i]
		out[strings.ToLower(e.SourceType)+":"+e.SourceID] = e
	}
	return out
}

func reference(number, prefix, id string) string {
	if number != "" {
		return number
	}
	return prefix + id
}

func commodity(exp *model.Exposure, o model.Order) string {
	if exp != nil && exp.Product != "" {
		return exp.Product
	}
	if o.Product != "" {
		return o.Product
	}
	return NoCommodity
}

func period(exp *model.Exposure, o model.Order) string {
	if exp != nil {
		if m, ok := bucket.FirstMonth(exp.DeliveryDate, exp.SaleDate, exp.PaymentDate); ok {
			return m
		}
	}
	return bucket.OrderPeriod(o)
}
