package whitelist

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "whitelist.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSenders_CaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddSender(ctx, "0xDEPLOYERaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "deployer", "admin"); err != nil {
		t.Fatalf("add sender: %v", err)
	}

	ok, err := s.IsSenderWhitelisted(ctx, "0xdeployeraaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	if err != nil {
		t.Fatalf("is whitelisted: %v", err)
	}
	if !ok {
		t.Fatalf("expected case-insensitive sender match")
	}

	senders, err := s.ListSenders(ctx)
	if err != nil {
		t.Fatalf("list senders: %v", err)
	}
	if len(senders) != 1 {
		t.Fatalf("expected 1 sender, got %d", len(senders))
	}
	if senders[0].Label != "deployer" {
		t.Fatalf("expected label deployer, got %q", senders[0].Label)
	}

	if err := s.RemoveSender(ctx, "0xDeployerAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", "admin"); err != nil {
		t.Fatalf("remove sender: %v", err)
	}
	ok, err = s.IsSenderWhitelisted(ctx, "0xdeployeraaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	if err != nil {
		t.Fatalf("is whitelisted after remove: %v", err)
	}
	if ok {
		t.Fatalf("expected sender removed")
	}

	// 再次移除应报错
	if err := s.RemoveSender(ctx, "0xdeployeraaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "admin"); err == nil {
		t.Fatalf("expected error removing unknown sender")
	}
}

func TestWhitelistToken_BlockedWinsOnConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addr := "0x00000000000000000000000000000000000000c1"

	if err := s.WhitelistToken(ctx, &Token{Address: addr, ChainID: 8453, Symbol: "AAA", Sender: "0xS1", Auto: true}); err != nil {
		t.Fatalf("whitelist token: %v", err)
	}
	ok, err := s.IsTokenWhitelisted(ctx, addr, 8453)
	if err != nil {
		t.Fatalf("is token whitelisted: %v", err)
	}
	if !ok {
		t.Fatalf("expected token whitelisted")
	}

	if err := s.BlockToken(ctx, addr, 8453, "admin"); err != nil {
		t.Fatalf("block token: %v", err)
	}
	ok, err = s.IsTokenWhitelisted(ctx, addr, 8453)
	if err != nil {
		t.Fatalf("is token whitelisted after block: %v", err)
	}
	if ok {
		t.Fatalf("blocked token must not be whitelisted")
	}

	// 扫描器再次发现同一代币：blocked 状态必须保持
	if err := s.WhitelistToken(ctx, &Token{Address: addr, ChainID: 8453, Symbol: "AAA", Auto: true}); err != nil {
		t.Fatalf("re-whitelist blocked token: %v", err)
	}
	tokens, err := s.ListTokens(ctx, TokenStatusBlocked)
	if err != nil {
		t.Fatalf("list blocked: %v", err)
	}
	if len(tokens) != 1 {
		t.Fatalf("expected blocked token to stay blocked, got %d rows", len(tokens))
	}

	// 非拉黑列表不应包含它
	visible, err := s.ListTokens(ctx, "")
	if err != nil {
		t.Fatalf("list tokens: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("expected blocked token hidden, got %d", len(visible))
	}
}

func TestTokenPipeline_StatusFlow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addr := "0x00000000000000000000000000000000000000c2"

	if err := s.WhitelistToken(ctx, &Token{Address: addr, ChainID: 1, Symbol: "BBB", Auto: true}); err != nil {
		t.Fatalf("whitelist token: %v", err)
	}

	pending, err := s.PendingTokens(ctx, 1)
	if err != nil {
		t.Fatalf("pending tokens: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending token, got %d", len(pending))
	}
	if pending[0].Status != TokenStatusPending {
		t.Fatalf("expected pending status, got %s", pending[0].Status)
	}

	if err := s.SetTokenStatus(ctx, addr, 1, TokenStatusActive, ""); err != nil {
		t.Fatalf("set active: %v", err)
	}
	pending, err = s.PendingTokens(ctx, 1)
	if err != nil {
		t.Fatalf("pending tokens: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending tokens after activation")
	}

	active, err := s.ListTokens(ctx, TokenStatusActive)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active token, got %d", len(active))
	}

	// 其他链的 pending 查询不应看到它
	pendingOther, err := s.PendingTokens(ctx, 8453)
	if err != nil {
		t.Fatalf("pending other chain: %v", err)
	}
	if len(pendingOther) != 0 {
		t.Fatalf("expected no pending tokens on other chain")
	}
}

func TestEvents_AuditTrail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddSender(ctx, "0x00000000000000000000000000000000000000d1", "bridge", "admin"); err != nil {
		t.Fatalf("add sender: %v", err)
	}
	if err := s.WhitelistToken(ctx, &Token{Address: "0x00000000000000000000000000000000000000d2", ChainID: 8453, Auto: true}); err != nil {
		t.Fatalf("whitelist token: %v", err)
	}
	if err := s.LogTransfer(ctx, &Event{
		Token:   "0x00000000000000000000000000000000000000d2",
		ChainID: 8453,
		Sender:  "0x00000000000000000000000000000000000000d1",
		Amount:  "1000000000000000000",
		Block:   123456,
		TxHash:  "0xabc",
	}); err != nil {
		t.Fatalf("log transfer: %v", err)
	}

	events, err := s.RecentEvents(ctx, 10)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	// 每次变更都要留痕：加发送者、加代币、到账
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for _, e := range events {
		if e.ID == "" {
			t.Fatalf("expected uuid event id")
		}
	}
	if events[0].Type != EventTransferIn {
		t.Fatalf("expected newest event transfer_in, got %s", events[0].Type)
	}
	if events[0].Amount != "1000000000000000000" {
		t.Fatalf("expected raw amount preserved, got %q", events[0].Amount)
	}
}
