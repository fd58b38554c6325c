package whitelist

import (
	"context"
	"fmt"
	"time"

	"github.com/tokenbot/gotrader/internal/domain"
)

// WhitelistToken 代币进入白名单
// 冲突时保留已有的 symbol/sender 非空值；blocked 状态永远不会被自动流程改回 pending。
func (s *Store) WhitelistToken(ctx context.Context, t *Token) error {
	addr := domain.NormalizeAddress(t.Address)
	if addr == "" {
		return fmt.Errorf("代币地址为空")
	}
	if t.Status == "" {
		t.Status = TokenStatusPending
	}
	auto := 0
	if t.Auto {
		auto = 1
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO whitelisted_tokens (address, chain_id, symbol, sender, auto_whitelisted, status, added_at)
VALUES (?,?,?,?,?,?,?)
ON CONFLICT(address, chain_id) DO UPDATE SET
  symbol=CASE WHEN excluded.symbol != '' THEN excluded.symbol ELSE whitelisted_tokens.symbol END,
  sender=CASE WHEN excluded.sender != '' THEN excluded.sender ELSE whitelisted_tokens.sender END,
  status=CASE WHEN whitelisted_tokens.status = 'blocked' THEN 'blocked' ELSE excluded.status END
`, addr, t.ChainID, t.Symbol, domain.NormalizeAddress(t.Sender), auto, string(t.Status),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("whitelist token: %w", err)
	}
	return s.appendEvent(ctx, &Event{
		Token:   addr,
		ChainID: t.ChainID,
		Sender:  domain.NormalizeAddress(t.Sender),
		Type:    EventTokenWhitelisted,
		Detail:  fmt.Sprintf(`{"symbol":%q,"auto":%t}`, t.Symbol, t.Auto),
	})
}

// IsTokenWhitelisted 代币是否可交易（在白名单且未拉黑）
func (s *Store) IsTokenWhitelisted(ctx context.Context, address string, chainID uint64) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT COUNT(1) FROM whitelisted_tokens WHERE address=? AND chain_id=? AND status != 'blocked'
`, domain.NormalizeAddress(address), chainID)
	var n int
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetTokenStatus 推进代币流水线状态
func (s *Store) SetTokenStatus(ctx context.Context, address string, chainID uint64, status TokenStatus, actor string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE whitelisted_tokens SET status=? WHERE address=? AND chain_id=?
`, string(status), domain.NormalizeAddress(address), chainID)
	if err != nil {
		return fmt.Errorf("set token status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("代币 %d:%s 不在白名单", chainID, address)
	}
	return s.appendEvent(ctx, &Event{
		Token:   domain.NormalizeAddress(address),
		ChainID: chainID,
		Type:    EventStatusChanged,
		Actor:   actor,
		Detail:  fmt.Sprintf(`{"status":%q}`, string(status)),
	})
}

// BlockToken 拉黑代币，之后任何自动流程不再碰它
func (s *Store) BlockToken(ctx context.Context, address string, chainID uint64, actor string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE whitelisted_tokens SET status='blocked' WHERE address=? AND chain_id=?
`, domain.NormalizeAddress(address), chainID)
	if err != nil {
		return fmt.Errorf("block token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("代币 %d:%s 不在白名单", chainID, address)
	}
	return s.appendEvent(ctx, &Event{
		Token:   domain.NormalizeAddress(address),
		ChainID: chainID,
		Type:    EventTokenBlocked,
		Actor:   actor,
	})
}

// PendingTokens 等待处理的代币，chainID=0 表示所有链，按添加时间正序
func (s *Store) PendingTokens(ctx context.Context, chainID uint64) ([]Token, error) {
	if chainID != 0 {
		return s.queryTokens(ctx, `WHERE status='pending' AND chain_id=? ORDER BY added_at ASC`, chainID)
	}
	return s.queryTokens(ctx, `WHERE status='pending' ORDER BY added_at ASC`)
}

// ListTokens 按状态筛选白名单代币；status 为空表示所有未拉黑代币
func (s *Store) ListTokens(ctx context.Context, status TokenStatus) ([]Token, error) {
	if status != "" {
		return s.queryTokens(ctx, `WHERE status=? ORDER BY added_at DESC`, string(status))
	}
	return s.queryTokens(ctx, `WHERE status != 'blocked' ORDER BY added_at DESC`)
}

func (s *Store) queryTokens(ctx context.Context, clause string, args ...any) ([]Token, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT address, chain_id, symbol, sender, auto_whitelisted, status, added_at
FROM whitelisted_tokens `+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Token
	for rows.Next() {
		var t Token
		var auto int
		var status, addedAt string
		if err := rows.Scan(&t.Address, &t.ChainID, &t.Symbol, &t.Sender, &auto, &status, &addedAt); err != nil {
			return nil, err
		}
		t.Auto = auto == 1
		t.Status = TokenStatus(status)
		t.AddedAt, _ = time.Parse(time.RFC3339Nano, addedAt)
		out = append(out, t)
	}
	return out, rows.Err()
}
