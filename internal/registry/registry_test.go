package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tokenbot/gotrader/internal/domain"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestPositionLifecycle(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	p := &domain.Position{
		Token:      "0xAbC0000000000000000000000000000000000001",
		ChainID:    8453,
		Symbol:     "TEST",
		Decimals:   18,
		EntryPrice: dec("100"),
		Amount:     dec("5"),
		TakeProfit: dec("102"),
		StopLoss:   dec("98"),
		FeeTier:    3000,
		QuoteToken: "USDC",
	}
	if err := r.CreatePosition(ctx, p); err != nil {
		t.Fatalf("create position: %v", err)
	}
	if p.ID == "" {
		t.Fatalf("expected generated position id")
	}

	// 地址应被规范化为小写
	got, err := r.GetOpenPosition(ctx, 8453, "0xabc0000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("get open position: %v", err)
	}
	if got == nil {
		t.Fatalf("expected open position")
	}
	if got.Status != domain.PositionStatusHolding {
		t.Fatalf("expected HOLDING, got %s", got.Status)
	}

	if err := r.MarkExitPending(ctx, p.ID, domain.CloseReasonTakeProfit); err != nil {
		t.Fatalf("mark exit pending: %v", err)
	}
	// 触发原因在 EXIT_PENDING 阶段就已落库，重试时要用
	pending, err := r.GetPosition(ctx, p.ID)
	if err != nil {
		t.Fatalf("get pending position: %v", err)
	}
	if pending.Status != domain.PositionStatusExitPending || pending.Reason != domain.CloseReasonTakeProfit {
		t.Fatalf("expected EXIT_PENDING/TP, got %s/%s", pending.Status, pending.Reason)
	}

	if err := r.ClosePosition(ctx, p.ID, dec("103.5"), "0xdeadbeef", dec("17.5"), domain.CloseReasonTakeProfit); err != nil {
		t.Fatalf("close position: %v", err)
	}

	closed, err := r.GetPosition(ctx, p.ID)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if closed.Status != domain.PositionStatusClosed {
		t.Fatalf("expected CLOSED, got %s", closed.Status)
	}
	if !closed.ExitPrice.Equal(dec("103.5")) {
		t.Fatalf("expected exit price 103.5, got %s", closed.ExitPrice)
	}
	if closed.ExitTx != "0xdeadbeef" {
		t.Fatalf("expected exit tx recorded, got %q", closed.ExitTx)
	}
	if closed.Reason != domain.CloseReasonTakeProfit {
		t.Fatalf("expected reason TP, got %s", closed.Reason)
	}
	if closed.ClosedAt == nil {
		t.Fatalf("expected closed_at set")
	}

	// 平仓后可以重新建仓
	open, err := r.GetOpenPosition(ctx, 8453, p.Token)
	if err != nil {
		t.Fatalf("get open after close: %v", err)
	}
	if open != nil {
		t.Fatalf("expected no open position after close")
	}
}

func TestPositionTransition_NoReverse(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	p := &domain.Position{
		Token:      "0x0000000000000000000000000000000000000002",
		ChainID:    1,
		EntryPrice: dec("1"),
		Amount:     dec("1"),
		TakeProfit: dec("1.02"),
		StopLoss:   dec("0.98"),
	}
	if err := r.CreatePosition(ctx, p); err != nil {
		t.Fatalf("create position: %v", err)
	}

	// HOLDING 不允许直接 CLOSED
	if err := r.ClosePosition(ctx, p.ID, dec("1"), "", dec("0"), domain.CloseReasonStopLoss); err != domain.ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition closing from HOLDING, got %v", err)
	}

	if err := r.MarkExitPending(ctx, p.ID, domain.CloseReasonStopLoss); err != nil {
		t.Fatalf("mark exit pending: %v", err)
	}
	// EXIT_PENDING 重复触发应失败
	if err := r.MarkExitPending(ctx, p.ID, domain.CloseReasonStopLoss); err != domain.ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition on second trigger, got %v", err)
	}

	if err := r.ClosePosition(ctx, p.ID, dec("0.97"), "0x1", dec("-0.03"), domain.CloseReasonStopLoss); err != nil {
		t.Fatalf("close position: %v", err)
	}
	// CLOSED 之后不允许任何状态变更
	if err := r.MarkExitPending(ctx, p.ID, domain.CloseReasonStopLoss); err != domain.ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition after close, got %v", err)
	}
	if err := r.ClosePosition(ctx, p.ID, dec("2"), "0x2", dec("1"), domain.CloseReasonTakeProfit); err != domain.ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition on double close, got %v", err)
	}
}

func TestCreatePosition_RejectsSecondOpen(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	first := &domain.Position{
		Token:      "0x0000000000000000000000000000000000000003",
		ChainID:    42161,
		EntryPrice: dec("10"),
		Amount:     dec("2"),
		TakeProfit: dec("10.2"),
		StopLoss:   dec("9.8"),
	}
	if err := r.CreatePosition(ctx, first); err != nil {
		t.Fatalf("create first: %v", err)
	}

	second := &domain.Position{
		Token:      "0x0000000000000000000000000000000000000003",
		ChainID:    42161,
		EntryPrice: dec("11"),
		Amount:     dec("1"),
		TakeProfit: dec("11.22"),
		StopLoss:   dec("10.78"),
	}
	if err := r.CreatePosition(ctx, second); err != ErrPositionExists {
		t.Fatalf("expected ErrPositionExists, got %v", err)
	}

	// 不同链上的同名代币互不影响
	otherChain := &domain.Position{
		Token:      "0x0000000000000000000000000000000000000003",
		ChainID:    8453,
		EntryPrice: dec("11"),
		Amount:     dec("1"),
		TakeProfit: dec("11.22"),
		StopLoss:   dec("10.78"),
	}
	if err := r.CreatePosition(ctx, otherChain); err != nil {
		t.Fatalf("create on other chain: %v", err)
	}
}

func TestPosition_EntryPriceImmutable(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	p := &domain.Position{
		Token:      "0x0000000000000000000000000000000000000004",
		ChainID:    1,
		EntryPrice: dec("123.456789"),
		Amount:     dec("1"),
		TakeProfit: dec("125.9259"),
		StopLoss:   dec("120.9876"),
	}
	if err := r.CreatePosition(ctx, p); err != nil {
		t.Fatalf("create position: %v", err)
	}
	if err := r.MarkExitPending(ctx, p.ID, domain.CloseReasonTakeProfit); err != nil {
		t.Fatalf("mark exit pending: %v", err)
	}
	if err := r.ClosePosition(ctx, p.ID, dec("130"), "0xaa", dec("6.5"), domain.CloseReasonTakeProfit); err != nil {
		t.Fatalf("close position: %v", err)
	}

	got, err := r.GetPosition(ctx, p.ID)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if !got.EntryPrice.Equal(dec("123.456789")) {
		t.Fatalf("entry price changed: %s", got.EntryPrice)
	}
}

func TestUpsertToken_PreservesActiveAndFirstSeen(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	tok := &domain.Token{
		Address:  "0x0000000000000000000000000000000000000005",
		ChainID:  8453,
		Symbol:   "AAA",
		Name:     "Token A",
		Decimals: 18,
		Active:   true,
	}
	if err := r.UpsertToken(ctx, tok); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	firstSeen := tok.FirstSeen

	if err := r.SetTokenActive(ctx, 8453, tok.Address, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	// 扫描再次发现同一代币：不得重新激活，也不得覆盖 first_seen
	again := &domain.Token{
		Address:  tok.Address,
		ChainID:  8453,
		Symbol:   "",
		Name:     "",
		Decimals: 18,
		Active:   true,
	}
	if err := r.UpsertToken(ctx, again); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	got, err := r.GetToken(ctx, 8453, tok.Address)
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if got == nil {
		t.Fatalf("expected token")
	}
	if got.Active {
		t.Fatalf("deactivated token must stay inactive after rescan")
	}
	if got.Symbol != "AAA" {
		t.Fatalf("empty symbol must not overwrite, got %q", got.Symbol)
	}
	if !got.FirstSeen.Equal(firstSeen) {
		t.Fatalf("first_seen changed: %s vs %s", got.FirstSeen, firstSeen)
	}

	active, err := r.GetActiveTokens(ctx)
	if err != nil {
		t.Fatalf("get active tokens: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active tokens, got %d", len(active))
	}
}

func TestGetBestPool_MaxLiquidityIgnoresStale(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	token := "0x0000000000000000000000000000000000000006"

	// 过期记录：流动性最高但超过 24h
	stale := &domain.Pool{
		ChainID:      8453,
		Token:        token,
		Address:      "0x00000000000000000000000000000000000000a1",
		FeeTier:      500,
		QuoteToken:   "WETH",
		Liquidity:    dec("999999999"),
		DiscoveredAt: time.Now().Add(-25 * time.Hour),
	}
	if err := r.SavePool(ctx, stale); err != nil {
		t.Fatalf("save stale pool: %v", err)
	}

	small := &domain.Pool{
		ChainID:    8453,
		Token:      token,
		Address:    "0x00000000000000000000000000000000000000a2",
		FeeTier:    10000,
		QuoteToken: "USDC",
		Liquidity:  dec("1000"),
	}
	big := &domain.Pool{
		ChainID:     8453,
		Token:       token,
		Address:     "0x00000000000000000000000000000000000000a3",
		FeeTier:     3000,
		QuoteToken:  "USDC",
		Liquidity:   dec("50000"),
		TokenIsZero: true,
	}
	if err := r.SavePool(ctx, small); err != nil {
		t.Fatalf("save small pool: %v", err)
	}
	if err := r.SavePool(ctx, big); err != nil {
		t.Fatalf("save big pool: %v", err)
	}

	best, err := r.GetBestPool(ctx, 8453, token)
	if err != nil {
		t.Fatalf("get best pool: %v", err)
	}
	if best == nil {
		t.Fatalf("expected a pool")
	}
	if best.FeeTier != 3000 {
		t.Fatalf("expected fee tier 3000, got %d", best.FeeTier)
	}
	if !best.TokenIsZero {
		t.Fatalf("expected token_is_zero preserved")
	}

	// 只剩过期记录时返回 nil
	other := "0x0000000000000000000000000000000000000007"
	staleOnly := &domain.Pool{
		ChainID:      8453,
		Token:        other,
		Address:      "0x00000000000000000000000000000000000000a4",
		FeeTier:      500,
		QuoteToken:   "USDC",
		Liquidity:    dec("1"),
		DiscoveredAt: time.Now().Add(-30 * time.Hour),
	}
	if err := r.SavePool(ctx, staleOnly); err != nil {
		t.Fatalf("save stale-only pool: %v", err)
	}
	best, err = r.GetBestPool(ctx, 8453, other)
	if err != nil {
		t.Fatalf("get best pool: %v", err)
	}
	if best != nil {
		t.Fatalf("expected nil for stale-only pool, got %+v", best)
	}
}

func TestTrades_RecentAndTotalPnL(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	buy := &domain.Trade{
		Side:    domain.TradeSideBuy,
		Token:   "0x0000000000000000000000000000000000000008",
		ChainID: 1,
		Price:   dec("2"),
		Amount:  dec("10"),
		Time:    time.Now().Add(-2 * time.Minute),
	}
	sell1 := &domain.Trade{
		Side:    domain.TradeSideSell,
		Token:   "0x0000000000000000000000000000000000000008",
		ChainID: 1,
		Price:   dec("2.2"),
		Amount:  dec("10"),
		PnL:     dec("1.75"),
		TxHash:  "0xf1",
		Time:    time.Now().Add(-time.Minute),
	}
	sell2 := &domain.Trade{
		Side:    domain.TradeSideSell,
		Token:   "0x0000000000000000000000000000000000000009",
		ChainID: 1,
		Price:   dec("0.9"),
		Amount:  dec("100"),
		PnL:     dec("-0.5"),
		TxHash:  "0xf2",
		Time:    time.Now(),
	}
	for _, tr := range []*domain.Trade{buy, sell1, sell2} {
		if err := r.RecordTrade(ctx, tr); err != nil {
			t.Fatalf("record trade: %v", err)
		}
	}

	recent, err := r.RecentTrades(ctx, 2)
	if err != nil {
		t.Fatalf("recent trades: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(recent))
	}
	if recent[0].TxHash != "0xf2" {
		t.Fatalf("expected newest first, got %q", recent[0].TxHash)
	}

	total, err := r.TotalPnL(ctx)
	if err != nil {
		t.Fatalf("total pnl: %v", err)
	}
	// BUY 记录不计入盈亏合计
	if !total.Equal(dec("1.25")) {
		t.Fatalf("expected total pnl 1.25, got %s", total)
	}
}

func TestWalletSnapshot_Latest(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	none, err := r.LatestWalletSnapshot(ctx)
	if err != nil {
		t.Fatalf("latest on empty: %v", err)
	}
	if none != nil {
		t.Fatalf("expected nil on empty table")
	}

	older := &domain.WalletSnapshot{
		Address:  "0x00000000000000000000000000000000000000b1",
		ETH:      dec("1.5"),
		USDC:     dec("100"),
		ETHPrice: dec("2500"),
		Time:     time.Now().Add(-time.Hour),
	}
	newer := &domain.WalletSnapshot{
		Address:  "0x00000000000000000000000000000000000000b1",
		ETH:      dec("1.2"),
		WETH:     dec("0.3"),
		USDC:     dec("140"),
		ETHPrice: dec("2550"),
		Time:     time.Now(),
	}
	if err := r.SaveWalletSnapshot(ctx, older); err != nil {
		t.Fatalf("save older: %v", err)
	}
	if err := r.SaveWalletSnapshot(ctx, newer); err != nil {
		t.Fatalf("save newer: %v", err)
	}

	got, err := r.LatestWalletSnapshot(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got == nil {
		t.Fatalf("expected snapshot")
	}
	if !got.USDC.Equal(dec("140")) {
		t.Fatalf("expected latest snapshot, got usdc=%s", got.USDC)
	}
}
