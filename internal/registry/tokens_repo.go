package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tokenbot/gotrader/internal/domain"
)

// UpsertToken 新代币插入，已存在则更新元数据
// first_seen 与 active 在冲突时保持原值：操作员手工停用的代币不会被扫描重新激活。
func (r *Registry) UpsertToken(ctx context.Context, t *domain.Token) error {
	now := time.Now()
	if t.FirstSeen.IsZero() {
		t.FirstSeen = now
	}
	active := 0
	if t.Active {
		active = 1
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO tokens (chain_id,address,symbol,name,decimals,active,first_seen,updated_at)
VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT(chain_id,address) DO UPDATE SET
  symbol=CASE WHEN excluded.symbol != '' THEN excluded.symbol ELSE tokens.symbol END,
  name=CASE WHEN excluded.name != '' THEN excluded.name ELSE tokens.name END,
  decimals=excluded.decimals,
  updated_at=excluded.updated_at
`, t.ChainID, domain.NormalizeAddress(t.Address), t.Symbol, t.Name, t.Decimals, active,
		t.FirstSeen.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

// SetTokenActive 激活/停用代币
func (r *Registry) SetTokenActive(ctx context.Context, chainID uint64, address string, active bool) error {
	v := 0
	if active {
		v = 1
	}
	res, err := r.db.ExecContext(ctx, `UPDATE tokens SET active=?, updated_at=? WHERE chain_id=? AND address=?`,
		v, time.Now().Format(time.RFC3339Nano), chainID, domain.NormalizeAddress(address))
	if err != nil {
		return fmt.Errorf("set token active: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("token %d:%s 不存在", chainID, address)
	}
	return nil
}

// GetToken 按链与地址查询代币，不存在返回 nil
func (r *Registry) GetToken(ctx context.Context, chainID uint64, address string) (*domain.Token, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT chain_id,address,symbol,name,decimals,active,first_seen,updated_at
FROM tokens WHERE chain_id=? AND address=?
`, chainID, domain.NormalizeAddress(address))
	t, err := scanToken(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// GetActiveTokens 监控循环使用的激活代币列表
func (r *Registry) GetActiveTokens(ctx context.Context) ([]domain.Token, error) {
	return r.listTokens(ctx, `WHERE active=1`)
}

// ListTokens 所有已知代币（含停用）
func (r *Registry) ListTokens(ctx context.Context) ([]domain.Token, error) {
	return r.listTokens(ctx, ``)
}

func (r *Registry) listTokens(ctx context.Context, where string) ([]domain.Token, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT chain_id,address,symbol,name,decimals,active,first_seen,updated_at
FROM tokens `+where+` ORDER BY first_seen DESC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Token
	for rows.Next() {
		t, err := scanToken(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanToken(scan func(dest ...any) error) (*domain.Token, error) {
	var t domain.Token
	var active int
	var firstSeen, updatedAt string
	if err := scan(&t.ChainID, &t.Address, &t.Symbol, &t.Name, &t.Decimals, &active, &firstSeen, &updatedAt); err != nil {
		return nil, err
	}
	t.Active = active == 1
	t.FirstSeen = parseTime(firstSeen)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

// SavePool 记录链上发现的池子，同键重复发现时覆盖流动性与时间
func (r *Registry) SavePool(ctx context.Context, p *domain.Pool) error {
	if p.DiscoveredAt.IsZero() {
		p.DiscoveredAt = time.Now()
	}
	tokenIsZero := 0
	if p.TokenIsZero {
		tokenIsZero = 1
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO pools (chain_id,token,pool_address,fee_tier,quote_token,liquidity,token_is_zero,discovered_at)
VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT(chain_id,token,quote_token,fee_tier) DO UPDATE SET
  pool_address=excluded.pool_address,
  liquidity=excluded.liquidity,
  token_is_zero=excluded.token_is_zero,
  discovered_at=excluded.discovered_at
`, p.ChainID, domain.NormalizeAddress(p.Token), domain.NormalizeAddress(p.Address), p.FeeTier, p.QuoteToken,
		p.Liquidity.String(), tokenIsZero, p.DiscoveredAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save pool: %w", err)
	}
	return nil
}

// GetBestPool 取该代币流动性最高的未过期池子记录
// 超过 24 小时的记录视为过期，调用方需要重新链上发现；没有可用记录返回 nil。
func (r *Registry) GetBestPool(ctx context.Context, chainID uint64, token string) (*domain.Pool, error) {
	pools, err := r.GetPools(ctx, chainID, token)
	if err != nil {
		return nil, err
	}
	var best *domain.Pool
	for i := range pools {
		p := &pools[i]
		if p.Stale(24 * time.Hour) {
			continue
		}
		if best == nil || p.Liquidity.GreaterThan(best.Liquidity) {
			best = p
		}
	}
	return best, nil
}

// GetPools 该代币的全部池子记录
func (r *Registry) GetPools(ctx context.Context, chainID uint64, token string) ([]domain.Pool, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT chain_id,token,pool_address,fee_tier,quote_token,liquidity,token_is_zero,discovered_at
FROM pools WHERE chain_id=? AND token=?
`, chainID, domain.NormalizeAddress(token))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Pool
	for rows.Next() {
		var p domain.Pool
		var liquidity, discoveredAt string
		var tokenIsZero int
		if err := rows.Scan(&p.ChainID, &p.Token, &p.Address, &p.FeeTier, &p.QuoteToken, &liquidity, &tokenIsZero, &discoveredAt); err != nil {
			return nil, err
		}
		p.Liquidity = parseDec(liquidity)
		p.TokenIsZero = tokenIsZero == 1
		p.DiscoveredAt = parseTime(discoveredAt)
		out = append(out, p)
	}
	return out, rows.Err()
}
