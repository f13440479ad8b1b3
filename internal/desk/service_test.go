package desk_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hedgedesk/exposure-engine/internal/coverage"
	"github.com/hedgedesk/exposure-engine/internal/desk"
	"github.com/hedgedesk/exposure-engine/internal/model"
	"github.com/hedgedesk/exposure-engine/internal/mtm"
	"github.com/hedgedesk/exposure-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var testNow = time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

// seedBook is a small desk: one aluminium sale partly hedged against a
// purchase, plus an unhedged copper sale.
func seedBook() model.Book {
	return model.Book{
		Exposures: []model.Exposure{
			{ID: "e1", SourceType: model.ObjectSO, SourceID: "s1", ExposureType: model.ExposureActive, QuantityMT: d(500), Product: "Aluminum", DeliveryDate: "2025-03-10", Status: model.ExposureOpen},
			{ID: "e2", SourceType: model.ObjectPO, SourceID: "p1", ExposureType: model.ExposurePassive, QuantityMT: d(200), Product: "Aluminum", DeliveryDate: "2025-03-20", Status: model.ExposureOpen},
			{ID: "e3", SourceType: model.ObjectSO, SourceID: "s2", ExposureType: model.ExposureActive, QuantityMT: d(100), Product: "Copper", DeliveryDate: "2025-04-01", Status: model.ExposureOpen},
		},
		Hedges: []model.Hedge{
			{ID: "h1", SOID: "s1", CounterpartyID: "cp1", QuantityMT: d(50), ContractPrice: d(2200), Period: "2025-03", Instrument: "ALI", MaturityDate: "2025-03-14", Status: model.HedgeActive},
			{ID: "h2", SOID: "s1", CounterpartyID: "cp2", QuantityMT: d(100), ContractPrice: d(2100), Period: "2025-03", Instrument: "ALI", MaturityDate: "2025-03-14", Status: model.HedgeCancelled},
		},
		SalesOrders: []model.SalesOrder{
			{Order: model.Order{ID: "s1", Product: "Aluminum", TotalQuantityMT: d(500), Status: model.OrderActive}, SONumber: "SO-1"},
			{Order: model.Order{ID: "s2", Product: "Copper", TotalQuantityMT: d(100), Status: model.OrderCompleted}, SONumber: "SO-2"},
		},
		PurchaseOrders: []model.PurchaseOrder{
			{Order: model.Order{ID: "p1", Product: "Aluminum", TotalQuantityMT: d(200), Status: model.OrderActive}, PONumber: "PO-1"},
		},
		MarketPrices: []model.MarketPrice{
			{ID: "m1", Source: "LME", Symbol: "ALI", Price: d(2250), Currency: "USD", AsOf: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
			{ID: "m2", Source: "LME", Symbol: "ALI", Price: d(2300), Currency: "USD", AsOf: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
			{ID: "m3", Source: "BCB", Symbol: "USDBRL", Price: d(5), Currency: "BRL", AsOf: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), FX: true},
		},
		Rfqs: []model.Rfq{
			{
				ID: "r1", RfqNumber: "RFQ-1", SOID: "s1", QuantityMT: d(50), Period: "2025-03", Side: model.SideBuy, Status: "sent",
				CounterpartyQuotes: []model.RfqQuote{
					{ID: "q1", CounterpartyID: "A", CounterpartyName: "Bank A", QuotePrice: decimal.NewNullDecimal(d(10)), QuotedAt: "2025-03-01T10:00:00Z", Status: "quoted"},
					{ID: "q2", CounterpartyID: "B", CounterpartyName: "Bank B", QuotePrice: decimal.NewNullDecimal(d(9)), QuotedAt: "2025-03-01T11:00:00Z", Status: "quoted"},
				},
				WinnerQuoteID: "q2",
			},
		},
	}
}

// newTestEnv creates a test Service with in-memory store and the desk router.
func newTestEnv(t *testing.T, opts ...desk.Option) (*desk.Service, *store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	ms.Load(seedBook())

	opts = append([]desk.Option{
		desk.WithLimiter(coverage.NewLimiter(decimal.Zero)),
		desk.WithClock(func() time.Time { return testNow }),
	}, opts...)
	svc := desk.NewService(ms, nil, opts...)
	return svc, ms, desk.NewRouter(svc, nil, nil)
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response: %v (%s)", err, w.Body.String())
	}
	return v
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, w)["error"]
}

// --- Net exposure ---

func TestNetExposure(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doRequest(t, router, "GET", "/api/v1/net-exposure", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decode[desk.NetExposureResponse](t, w)
	if len(resp.Rows) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(resp.Rows))
	}

	al := resp.Rows[0]
	if al.Product != "Aluminum" || al.Period != "2025-03" {
		t.Fatalf("expected Aluminum|2025-03 first, got %s|%s", al.Product, al.Period)
	}
	// 500 active − 200 passive − 50 hedged; the cancelled hedge is ignored.
	if !al.Net.Equal(d(250)) {
		t.Errorf("net = %s, want 250", al.Net)
	}
	if !al.Hedged.Equal(d(50)) {
		t.Errorf("hedged = %s, want 50", al.Hedged)
	}
	if !resp.Totals.Net.Equal(d(350)) {
		t.Errorf("total net = %s, want 350", resp.Totals.Net)
	}
}

func TestNetExposure_Filtered(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doRequest(t, router, "GET", "/api/v1/net-exposure?product=Copper", nil)
	resp := decode[desk.NetExposureResponse](t, w)
	if len(resp.Rows) != 1 || resp.Rows[0].Product != "Copper" {
		t.Fatalf("expected only Copper, got %+v", resp.Rows)
	}
	if !resp.Totals.GrossActive.Equal(d(100)) {
		t.Errorf("gross active = %s, want 100", resp.Totals.GrossActive)
	}

	w = doRequest(t, router, "GET", "/api/v1/net-exposure?period=2030-01", nil)
	resp = decode[desk.NetExposureResponse](t, w)
	if len(resp.Rows) != 0 {
		t.Errorf("expected no rows, got %d", len(resp.Rows))
	}
}

// --- Pending coverage ---

func TestPendingExposures(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doRequest(t, router, "GET", "/api/v1/exposures/pending", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	rows := decode[[]coverage.PendingRow](t, w)
	if len(rows) != 2 {
		t.Fatalf("expected PO-1 and SO-1, got %+v", rows)
	}
	if rows[0].Reference != "PO-1" || rows[0].Status != coverage.StatusNone {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].Reference != "SO-1" || rows[1].Status != coverage.StatusPartial {
		t.Errorf("row 1 = %+v", rows[1])
	}
	if !rows[1].HedgedMT.Equal(d(50)) {
		t.Errorf("SO-1 hedged = %s, want 50", rows[1].HedgedMT)
	}
}

// --- Over-hedge check ---

func TestCheckHedge(t *testing.T) {
	_, _, router := newTestEnv(t)

	tests := []struct {
		name    string
		hedge   model.Hedge
		status  int
		allowed bool
	}{
		{"within bucket", model.Hedge{SOID: "s1", QuantityMT: d(100), Period: "2025-03"}, http.StatusOK, true},
		{"bucket goes short", model.Hedge{SOID: "s1", QuantityMT: d(400), Period: "2025-03"}, http.StatusConflict, false},
		{"sales order over-hedged", model.Hedge{SOID: "s1", QuantityMT: d(500), Period: "2025-03"}, http.StatusConflict, false},
		{"unknown sales order", model.Hedge{SOID: "nope", QuantityMT: d(10), Period: "2025-03"}, http.StatusUnprocessableEntity, false},
		{"zero quantity", model.Hedge{SOID: "s1", Period: "2025-03"}, http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, "POST", "/api/v1/hedges/check", tt.hedge)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if tt.status == http.StatusOK || tt.status == http.StatusConflict {
				resp := decode[desk.CheckHedgeResponse](t, w)
				if resp.Allowed != tt.allowed {
					t.Errorf("allowed = %v, want %v", resp.Allowed, tt.allowed)
				}
				if !tt.allowed && resp.Reason == "" {
					t.Error("expected a rejection reason")
				}
			}
		})
	}
}

func TestCheckHedge_NoLimiter(t *testing.T) {
	ms := store.NewMemoryStore()
	ms.Load(seedBook())
	router := desk.NewRouter(desk.NewService(ms, nil), nil, nil)

	w := doRequest(t, router, "POST", "/api/v1/hedges/check", model.Hedge{SOID: "s1", QuantityMT: d(5000)})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 without limiter, got %d", w.Code)
	}
}

// --- Hedge MTM ---

func TestHedgeMTM_LatestPrice(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doRequest(t, router, "GET", "/api/v1/hedges/h1/mtm", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decode[desk.HedgeMTMResponse](t, w)
	// (2300 − 2200) × 50 at the newest ALI price.
	if !resp.Valuation.Value.Valid || !resp.Valuation.Value.Decimal.Equal(d(5000)) {
		t.Errorf("mtm = %v, want 5000", resp.Valuation.Value)
	}
	if resp.Valuation.Source != mtm.SourceComputed {
		t.Errorf("source = %s, want computed", resp.Valuation.Source)
	}
	if resp.Display != "USD 5000.00" {
		t.Errorf("display = %q", resp.Display)
	}
	if resp.Market == nil || !resp.Market.Price.Equal(d(2300)) {
		t.Fatalf("expected market result at 2300, got %+v", resp.Market)
	}
}

func TestHedgeMTM_FXAndHaircut(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doRequest(t, router, "GET", "/api/v1/hedges/h1/mtm?fx_symbol=USDBRL", nil)
	resp := decode[desk.HedgeMTMResponse](t, w)
	if resp.Market == nil || !resp.Market.MTMValue.Equal(d(25000)) {
		t.Fatalf("fx mtm = %+v, want 25000", resp.Market)
	}

	w = doRequest(t, router, "GET", "/api/v1/hedges/h1/mtm?haircut_pct=10", nil)
	resp = decode[desk.HedgeMTMResponse](t, w)
	if resp.Market == nil || !resp.Market.ScenarioMTMValue.Valid {
		t.Fatalf("expected a scenario value, got %+v", resp.Market)
	}
	// 2300 × 0.9 = 2070; (2070 − 2200) × 50.
	if !resp.Market.ScenarioMTMValue.Decimal.Equal(d(-6500)) {
		t.Errorf("scenario = %s, want -6500", resp.Market.ScenarioMTMValue.Decimal)
	}
}

func TestHedgeMTM_SoldConvention(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doRequest(t, router, "GET", "/api/v1/hedges/h1/mtm?convention=sold", nil)
	resp := decode[desk.HedgeMTMResponse](t, w)
	if !resp.Valuation.Value.Decimal.Equal(d(-5000)) {
		t.Errorf("sold mtm = %s, want -5000", resp.Valuation.Value.Decimal)
	}
	if resp.Valuation.Label != "ponta vendida" {
		t.Errorf("label = %q", resp.Valuation.Label)
	}
}

func TestHedgeMTM_DefaultConventionFromService(t *testing.T) {
	_, _, router := newTestEnv(t, desk.WithConvention(mtm.ConventionSold))

	w := doRequest(t, router, "GET", "/api/v1/hedges/h1/mtm", nil)
	resp := decode[desk.HedgeMTMResponse](t, w)
	if resp.Valuation.Convention != mtm.ConventionSold {
		t.Errorf("convention = %s, want sold", resp.Valuation.Convention)
	}
}

func TestHedgeMTM_Errors(t *testing.T) {
	_, _, router := newTestEnv(t)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/v1/hedges/missing/mtm", http.StatusNotFound},
		{"/api/v1/hedges/h1/mtm?haircut_pct=150", http.StatusBadRequest},
		{"/api/v1/hedges/h1/mtm?haircut_pct=abc", http.StatusBadRequest},
		{"/api/v1/hedges/h1/mtm?convention=flat", http.StatusBadRequest},
		{"/api/v1/hedges/h1/mtm?fx_symbol=EURUSD", http.StatusUnprocessableEntity},
		// no commodity price for the symbol, so FX and haircut cannot be applied
		{"/api/v1/hedges/h1/mtm?symbol=ZNC&fx_symbol=USDBRL", http.StatusUnprocessableEntity},
		{"/api/v1/hedges/h1/mtm?symbol=ZNC&haircut_pct=10", http.StatusUnprocessableEntity},
		{"/api/v1/hedges/h2/mtm?haircut_pct=10", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		w := doRequest(t, router, "GET", tt.path, nil)
		if w.Code != tt.status {
			t.Errorf("%s: expected %d, got %d: %s", tt.path, tt.status, w.Code, w.Body.String())
		}
	}
}

func TestHedgeMTM_UndefinedWithoutPrice(t *testing.T) {
	_, _, router := newTestEnv(t)

	// No price is stored for this symbol and the hedge carries none.
	w := doRequest(t, router, "GET", "/api/v1/hedges/h1/mtm?symbol=ZNC", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode[desk.HedgeMTMResponse](t, w)
	if resp.Valuation.Defined() {
		t.Errorf("expected undefined valuation, got %v", resp.Valuation.Value)
	}
	if resp.Display != mtm.Placeholder {
		t.Errorf("display = %q, want placeholder", resp.Display)
	}
	if resp.Market != nil {
		t.Error("no market result expected without a price")
	}
}

func TestHedgeMTM_CancelledHedgeNotMarked(t *testing.T) {
	_, _, router := newTestEnv(t)

	// h2 is cancelled; ALI prices are on file but must not mark it.
	w := doRequest(t, router, "GET", "/api/v1/hedges/h2/mtm", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[desk.HedgeMTMResponse](t, w)
	if resp.Status != model.HedgeCancelled {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.Valuation.Defined() || resp.Valuation.Source != mtm.SourceUndefined {
		t.Errorf("cancelled hedge valued: %+v", resp.Valuation)
	}
	if resp.Market != nil {
		t.Errorf("no market result expected for a cancelled hedge, got %+v", resp.Market)
	}
}

func TestCreateMarketPrice_FeedsMTM(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doRequest(t, router, "POST", "/api/v1/market-prices", model.MarketPrice{Symbol: "ALI", Price: d(2400)})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	p := decode[model.MarketPrice](t, w)
	if p.ID == "" || p.Source != "manual" || !p.AsOf.Equal(testNow) {
		t.Errorf("unexpected defaults: %+v", p)
	}

	w = doRequest(t, router, "GET", "/api/v1/hedges/h1/mtm", nil)
	resp := decode[desk.HedgeMTMResponse](t, w)
	if !resp.Valuation.Value.Decimal.Equal(d(10000)) {
		t.Errorf("mtm = %s, want 10000 at the new price", resp.Valuation.Value.Decimal)
	}

	w = doRequest(t, router, "POST", "/api/v1/market-prices", model.MarketPrice{Symbol: "ALI"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for zero price, got %d", w.Code)
	}
}

// --- Snapshots ---

func TestCreateAndListSnapshots(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doRequest(t, router, "POST", "/api/v1/mtm/snapshots", mtm.SnapshotRequest{
		ObjectType: model.ObjectHedge, ObjectID: "h1", Price: d(2300),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	snap := decode[model.MTMSnapshot](t, w)
	if snap.ID == "" {
		t.Error("expected generated id")
	}
	if snap.AsOfDate != "2025-03-05" {
		t.Errorf("as_of_date = %q, want today", snap.AsOfDate)
	}
	if snap.Product != "Aluminum" || snap.Period != "2025-03" {
		t.Errorf("bucket = %s|%s", snap.Product, snap.Period)
	}

	w = doRequest(t, router, "POST", "/api/v1/mtm/snapshots", mtm.SnapshotRequest{
		ObjectType: model.ObjectNet, Product: "Aluminum", Period: "2025-03", Price: d(10), AsOfDate: "2025-03-04",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(t, router, "GET", "/api/v1/mtm/snapshots?object_type=hedge", nil)
	list := decode[desk.SnapshotListResponse](t, w)
	if list.Count != 1 || !list.TotalMTM.Equal(d(5000)) {
		t.Errorf("hedge snapshots: count %d total %s", list.Count, list.TotalMTM)
	}

	w = doRequest(t, router, "GET", "/api/v1/mtm/snapshots?product=Aluminum", nil)
	list = decode[desk.SnapshotListResponse](t, w)
	// 5000 from the hedge plus 10 × 250 net.
	if list.Count != 2 || !list.TotalMTM.Equal(d(7500)) {
		t.Errorf("aluminum snapshots: count %d total %s", list.Count, list.TotalMTM)
	}

	w = doRequest(t, router, "GET", "/api/v1/mtm/snapshots?latest=true", nil)
	list = decode[desk.SnapshotListResponse](t, w)
	if list.Count != 1 || list.Snapshots[0].ObjectType != model.ObjectNet {
		t.Errorf("latest should be the net snapshot, got %+v", list.Snapshots)
	}
}

func TestCreateSnapshot_Errors(t *testing.T) {
	_, _, router := newTestEnv(t)

	tests := []struct {
		name   string
		req    mtm.SnapshotRequest
		status int
	}{
		{"unknown type", mtm.SnapshotRequest{ObjectType: "portfolio", Price: d(1)}, http.StatusBadRequest},
		{"missing id", mtm.SnapshotRequest{ObjectType: model.ObjectHedge, Price: d(1)}, http.StatusBadRequest},
		{"missing hedge", mtm.SnapshotRequest{ObjectType: model.ObjectHedge, ObjectID: "nope", Price: d(1)}, http.StatusNotFound},
		{"negative price", mtm.SnapshotRequest{ObjectType: model.ObjectNet, Price: d(-1)}, http.StatusBadRequest},
		{"bad date", mtm.SnapshotRequest{ObjectType: model.ObjectNet, Price: d(1), AsOfDate: "05/03/2025"}, http.StatusBadRequest},
		{"bad convention", mtm.SnapshotRequest{ObjectType: model.ObjectNet, Price: d(1), Convention: "flat"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, "POST", "/api/v1/mtm/snapshots", tt.req)
			if w.Code != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
		})
	}
}

// --- Settlements ---

func TestSettlements(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doRequest(t, router, "GET", "/api/v1/settlements", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	rows := decode[[]mtm.Settlement](t, w)
	if len(rows) != 1 {
		t.Fatalf("expected only the active hedge, got %d", len(rows))
	}
	// Friday 14th + 2 business days.
	if rows[0].SettlementDate != "2025-03-18" {
		t.Errorf("settlement date = %s, want 2025-03-18", rows[0].SettlementDate)
	}

	w = doRequest(t, router, "GET", "/api/v1/settlements?from=2025-03-19", nil)
	if rows := decode[[]mtm.Settlement](t, w); len(rows) != 0 {
		t.Errorf("expected nothing after the 19th, got %d", len(rows))
	}

	w = doRequest(t, router, "GET", "/api/v1/settlements?from=tomorrow", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSettlements_Holidays(t *testing.T) {
	cal, err := mtm.NewCalendar([]string{"2025-03-17"})
	if err != nil {
		t.Fatal(err)
	}
	_, _, router := newTestEnv(t, desk.WithCalendar(cal))

	w := doRequest(t, router, "GET", "/api/v1/settlements?from=2025-03-01", nil)
	rows := decode[[]mtm.Settlement](t, w)
	if len(rows) != 1 || rows[0].SettlementDate != "2025-03-19" {
		t.Errorf("expected the holiday to push settlement to the 19th, got %+v", rows)
	}
}

func TestHealth(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doRequest(t, router, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if decode[map[string]string](t, w)["status"] != "ok" {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}
