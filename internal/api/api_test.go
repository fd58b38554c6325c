package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tokenbot/gotrader/internal/domain"
	"github.com/tokenbot/gotrader/internal/registry"
	"github.com/tokenbot/gotrader/internal/whitelist"
)

type fakeControls struct {
	stopRequested    bool
	sellAllRequested bool
	stopCleared      bool
	stopActive       bool
	sellAllActive    bool
	halted           bool
}

func (f *fakeControls) RequestStop()        { f.stopRequested = true; f.stopActive = true }
func (f *fakeControls) ClearStop() error    { f.stopCleared = true; f.stopActive = false; return nil }
func (f *fakeControls) RequestSellAll()     { f.sellAllRequested = true }
func (f *fakeControls) StopActive() bool    { return f.stopActive }
func (f *fakeControls) SellAllActive() bool { return f.sellAllActive }
func (f *fakeControls) TradingHalted() bool { return f.halted }

type fakePrices struct {
	prices map[string]decimal.Decimal
}

func (f *fakePrices) TokenPrice(_ context.Context, chainID uint64, token string, _ int32) (decimal.Decimal, error) {
	if p, ok := f.prices[domain.TokenKey(chainID, token)]; ok {
		return p, nil
	}
	return decimal.Zero, context.DeadlineExceeded
}

type testEnv struct {
	reg     *registry.Registry
	wl      *whitelist.Store
	control *fakeControls
	prices  *fakePrices
	router  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	reg, err := registry.Open(filepath.Join(dir, "registry.db"))
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })

	wl, err := whitelist.Open(filepath.Join(dir, "whitelist.db"))
	if err != nil {
		t.Fatalf("open whitelist: %v", err)
	}
	t.Cleanup(func() { _ = wl.Close() })

	control := &fakeControls{}
	prices := &fakePrices{prices: map[string]decimal.Decimal{}}
	srv := New(reg, wl, prices, control)
	return &testEnv{reg: reg, wl: wl, control: control, prices: prices, router: srv.Router()}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var parsed map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, parsed
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	w, body := e.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field = %v", body["status"])
	}
	if body["stop_flag"] != false {
		t.Fatalf("stop_flag = %v", body["stop_flag"])
	}
}

func TestPositions_LivePnL(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	pos := &domain.Position{
		Token:      "0xaaa0000000000000000000000000000000000001",
		ChainID:    8453,
		Symbol:     "TEST",
		Decimals:   18,
		EntryPrice: dec("100"),
		Amount:     dec("2"),
		TakeProfit: dec("102"),
		StopLoss:   dec("98"),
		FeeTier:    3000,
		QuoteToken: "USDC",
	}
	if err := e.reg.CreatePosition(ctx, pos); err != nil {
		t.Fatalf("create position: %v", err)
	}
	e.prices.prices[domain.TokenKey(8453, pos.Token)] = dec("110")

	w, body := e.do(t, http.MethodGet, "/api/positions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if body["count"].(float64) != 1 {
		t.Fatalf("count = %v", body["count"])
	}
	views := body["positions"].([]any)
	view := views[0].(map[string]any)
	if view["current_price"] != "110" {
		t.Fatalf("current_price = %v", view["current_price"])
	}
	// (110-100)×2 = 20
	if view["unrealized_pnl"] != "20" {
		t.Fatalf("unrealized_pnl = %v", view["unrealized_pnl"])
	}
	if view["chain_name"] != "Base" {
		t.Fatalf("chain_name = %v", view["chain_name"])
	}
}

func TestPositions_PriceUnavailableFallsBackToEntry(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	pos := &domain.Position{
		Token:      "0xbbb0000000000000000000000000000000000002",
		ChainID:    1,
		Symbol:     "NOPRICE",
		Decimals:   18,
		EntryPrice: dec("5"),
		Amount:     dec("10"),
		TakeProfit: dec("5.1"),
		StopLoss:   dec("4.9"),
		FeeTier:    3000,
		QuoteToken: "USDC",
	}
	if err := e.reg.CreatePosition(ctx, pos); err != nil {
		t.Fatalf("create position: %v", err)
	}

	_, body := e.do(t, http.MethodGet, "/api/positions", nil)
	view := body["positions"].([]any)[0].(map[string]any)
	if view["current_price"] != "5" {
		t.Fatalf("current_price = %v, want entry price", view["current_price"])
	}
	if view["unrealized_pnl"] != "0" {
		t.Fatalf("unrealized_pnl = %v", view["unrealized_pnl"])
	}
}

func TestTrades_LimitAndTotals(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := e.reg.RecordTrade(ctx, &domain.Trade{
			Side: domain.TradeSideSell, Token: "0xccc", ChainID: 8453,
			Symbol: "X", Price: dec("1"), Amount: dec("1"), PnL: dec("2.5"),
		}); err != nil {
			t.Fatalf("record trade: %v", err)
		}
	}

	w, body := e.do(t, http.MethodGet, "/api/trades?limit=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["count"].(float64) != 2 {
		t.Fatalf("count = %v", body["count"])
	}
	if body["total_pnl"] != "7.5" {
		t.Fatalf("total_pnl = %v", body["total_pnl"])
	}
}

func TestWallet_EmptyAndLatest(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	w, body := e.do(t, http.MethodGet, "/api/wallet", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["address"] != "" {
		t.Fatalf("expected empty snapshot, got address %v", body["address"])
	}

	snap := &domain.WalletSnapshot{
		Address: "0xDEAD", ETH: dec("1.5"), WETH: dec("0.2"),
		USDC: dec("100"), ETHPrice: dec("2500"),
	}
	if err := e.reg.SaveWalletSnapshot(ctx, snap); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	_, body = e.do(t, http.MethodGet, "/api/wallet", nil)
	if body["eth"] != "1.5" {
		t.Fatalf("eth = %v", body["eth"])
	}
	if body["eth_price"] != "2500" {
		t.Fatalf("eth_price = %v", body["eth_price"])
	}
}

func TestDashboard_Summary(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	if err := e.reg.RecordTrade(ctx, &domain.Trade{
		Side: domain.TradeSideBuy, Token: "0x01", ChainID: 8453, Symbol: "A",
		Price: dec("1"), Amount: dec("1"),
	}); err != nil {
		t.Fatalf("record buy: %v", err)
	}
	if err := e.reg.RecordTrade(ctx, &domain.Trade{
		Side: domain.TradeSideSell, Token: "0x01", ChainID: 8453, Symbol: "A",
		Price: dec("1.1"), Amount: dec("1"), PnL: dec("0.1"),
	}); err != nil {
		t.Fatalf("record sell: %v", err)
	}

	w, body := e.do(t, http.MethodGet, "/api/dashboard", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	summary := body["summary"].(map[string]any)
	if summary["total_trades"].(float64) != 2 {
		t.Fatalf("total_trades = %v", summary["total_trades"])
	}
	if summary["closed_trades"].(float64) != 1 {
		t.Fatalf("closed_trades = %v", summary["closed_trades"])
	}
	if summary["win_rate"] != "100" {
		t.Fatalf("win_rate = %v", summary["win_rate"])
	}
	completed := body["completed"].([]any)
	if len(completed) != 1 {
		t.Fatalf("completed = %d entries", len(completed))
	}
}

func TestEmergencyControls(t *testing.T) {
	e := newTestEnv(t)

	w, body := e.do(t, http.MethodPost, "/api/emergency-stop", nil)
	if w.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("emergency-stop: %d %v", w.Code, body)
	}
	if !e.control.stopRequested {
		t.Fatal("stop not forwarded to controls")
	}

	_, _ = e.do(t, http.MethodPost, "/api/clear-stop", nil)
	if !e.control.stopCleared {
		t.Fatal("clear-stop not forwarded to controls")
	}

	_, _ = e.do(t, http.MethodPost, "/api/sell-all", nil)
	if !e.control.sellAllRequested {
		t.Fatal("sell-all not forwarded to controls")
	}
}

func TestWhitelistSenders_CRUD(t *testing.T) {
	e := newTestEnv(t)

	w, _ := e.do(t, http.MethodPost, "/api/whitelist/senders", map[string]any{
		"address": "0xAbC0000000000000000000000000000000000099",
		"label":   "treasury",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("add sender: %d %s", w.Code, w.Body.String())
	}

	_, body := e.do(t, http.MethodGet, "/api/whitelist/senders", nil)
	if body["count"].(float64) != 1 {
		t.Fatalf("count = %v", body["count"])
	}

	w, _ = e.do(t, http.MethodDelete, "/api/whitelist/senders/0xabc0000000000000000000000000000000000099", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("remove sender: %d", w.Code)
	}
	_, body = e.do(t, http.MethodGet, "/api/whitelist/senders", nil)
	if body["count"].(float64) != 0 {
		t.Fatalf("count after delete = %v", body["count"])
	}
}

func TestWhitelistSenders_RejectsEmptyAddress(t *testing.T) {
	e := newTestEnv(t)
	w, _ := e.do(t, http.MethodPost, "/api/whitelist/senders", map[string]any{"label": "x"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestWhitelistTokens_AddAndBlock(t *testing.T) {
	e := newTestEnv(t)
	addr := "0xddd0000000000000000000000000000000000003"

	w, _ := e.do(t, http.MethodPost, "/api/whitelist/tokens", map[string]any{
		"address": addr, "chain_id": 8453, "symbol": "BLK",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("add token: %d %s", w.Code, w.Body.String())
	}

	w, _ = e.do(t, http.MethodPost, "/api/whitelist/tokens/"+addr+"/block", map[string]any{
		"chain_id": 8453,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("block token: %d %s", w.Code, w.Body.String())
	}

	ok, err := e.wl.IsTokenWhitelisted(context.Background(), addr, 8453)
	if err != nil {
		t.Fatalf("check whitelist: %v", err)
	}
	if ok {
		t.Fatal("blocked token still reported tradable")
	}

	// 拉黑的代币默认列表里不出现
	_, body := e.do(t, http.MethodGet, "/api/whitelist/tokens", nil)
	if body["count"].(float64) != 0 {
		t.Fatalf("count = %v, blocked token should be hidden", body["count"])
	}
}
