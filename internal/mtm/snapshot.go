package mtm

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hedgedesk/exposure-engine/internal/bucket"
	"github.com/hedgedesk/exposure-engine/internal/exposure"
	"github.com/hedgedesk/exposure-engine/internal/model"
)

var (
	// ErrUnknownObjectType is returned for snapshot object types the engine cannot value.
	ErrUnknownObjectType = errors.New("mtm: unknown object type")

	// ErrMissingObjectID is returned when a hedge or exposure snapshot names no object.
	ErrMissingObjectID = errors.New("mtm: object_id is required for hedge and exposure snapshots")

	// ErrObjectNotFound is returned when the named hedge or exposure is not in the book.
	ErrObjectNotFound = errors.New("mtm: object not found")

	// ErrInvalidPrice is returned for a negative snapshot price.
	ErrInvalidPrice = errors.New("mtm: price must not be negative")
)

// SnapshotFilter is a conjunctive predicate. Empty fields match everything.
type SnapshotFilter struct {
	ObjectType string
	ObjectID   string
	Product    string
	Period     string
}

// Match reports whether s satisfies every set field.
func (f SnapshotFilter) Match(s model.MTMSnapshot) bool {
	if f.ObjectType != "" && s.ObjectType != f.ObjectType {
		return false
	}
	if f.ObjectID != "" && s.ObjectID != f.ObjectID {
		return false
	}
	if f.Product != "" && s.Product != f.Product {
		return false
	}
	if f.Period != "" && s.Period != f.Period {
		return false
	}
	return true
}

// FilterSnapshots keeps matching snapshots in input order.
func FilterSnapshots(snapshots []model.MTMSnapshot, f SnapshotFilter) []model.MTMSnapshot {
	out := make([]model.MTMSnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

// TotalMTM sums mtm_value, counting missing values as zero.
func TotalMTM(snapshots []model.MTMSnapshot) decimal.Decimal {
	total := decimal.Zero
	for _, s := range snapshots {
		if s.MTMValue.Valid {
			total = total.Add(s.MTMValue.Decimal)
		}
	}
	return total
}

// SnapshotRequest describes a valuation to record.
type SnapshotRequest struct {
	ObjectType string          `json:"object_type"`
	ObjectID   string          `json:"object_id,omitempty"`
	Product    string          `json:"product,omitempty"`
	Period     string          `json:"period,omitempty"`
	Price      decimal.Decimal `json:"price"`
	AsOfDate   string          `json:"as_of_date,omitempty"`
	Convention Convention      `json:"convention,omitempty"`
}

// BuildSnapshot values the requested object at req.Price. The snapshot id is
// left empty for the caller to assign.
//
//   - hedge: MarkToMarket of the hedge at the given price (fresh, on request)
//   - exposure: price × qty, positive for active, negative for passive
//   - net: price × net of the product|period bucket
func BuildSnapshot(req SnapshotRequest, book model.Book) (model.MTMSnapshot, error) {
	if req.Price.IsNegative() {
		return model.MTMSnapshot{}, ErrInvalidPrice
	}

	snap := model.MTMSnapshot{
		ObjectType: req.ObjectType,
		ObjectID:   req.ObjectID,
		Product:    req.Product,
		Period:     req.Period,
		Price:      req.Price,
		AsOfDate:   req.AsOfDate,
	}

	switch req.ObjectType {
	case model.ObjectHedge:
		if req.ObjectID == "" {
			return model.MTMSnapshot{}, ErrMissingObjectID
		}
		h, ok := findHedge(book.Hedges, req.ObjectID)
		if !ok {
			return model.MTMSnapshot{}, fmt.Errorf("%w: hedge %s", ErrObjectNotFound, req.ObjectID)
		}
		key := bucket.ForHedge(h, exposure.SalesOrderProducts(book.SalesOrders))
		snap.Product = firstNonEmpty(req.Product, key.Product)
		snap.Period = firstNonEmpty(req.Period, key.Period)
		snap.QuantityMT = h.QuantityMT
		snap.MTMValue = decimal.NewNullDecimal(MarkToMarket(h.ContractPrice, req.Price, h.QuantityMT, req.Convention))

	case model.ObjectExposure:
		if req.ObjectID == "" {
			return model.MTMSnapshot{}, ErrMissingObjectID
		}
		e, ok := findExposure(book.Exposures, req.ObjectID)
		if !ok {
			return model.MTMSnapshot{}, fmt.Errorf("%w: exposure %s", ErrObjectNotFound, req.ObjectID)
		}
		key := bucket.ForExposure(e)
		snap.Product = firstNonEmpty(req.Product, key.Product)
		snap.Period = firstNonEmpty(req.Period, key.Period)
		snap.QuantityMT = e.QuantityMT
		v := req.Price.Mul(e.QuantityMT)
		if e.ExposureType != model.ExposureActive {
			v = v.Neg()
		}
		snap.MTMValue = decimal.NewNullDecimal(v)

	case model.ObjectNet:
		snap.Product = bucket.Product(req.Product)
		snap.Period = firstNonEmpty(req.Period, bucket.UnknownPeriod)
		net := decimal.Zero
		rows := exposure.Aggregate(book.Exposures, book.Hedges, book.SalesOrders)
		for _, r := range exposure.FilterRows(rows, snap.Product, snap.Period) {
			net = net.Add(r.Net)
		}
		// Quantities stay non-negative; a short bucket shows in the sign of
		// the MTM value.
		snap.QuantityMT = net.Abs()
		snap.MTMValue = decimal.NewNullDecimal(req.Price.Mul(net))

	default:
		return model.MTMSnapshot{}, fmt.Errorf("%w: %q", ErrUnknownObjectType, req.ObjectType)
	}

	return snap, nil
}

func findHedge(hedges []model.Hedge, id string) (model.Hedge, bool) {
	for _, h := range hedges {
		if h.ID == id {
			return h, true
		}
	}
	return model.Hedge{}, false
}

func findExposure(exposures []model.Exposure, id string) (model.Exposure, bool) {
	for _, e := range exposures {
		if e.ID == id {
			return e, true
		}
	}
	return model.Exposure{}, false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
