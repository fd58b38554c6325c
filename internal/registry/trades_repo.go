package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tokenbot/gotrader/internal/domain"
)

// RecordTrade 追加一条成交流水
func (r *Registry) RecordTrade(ctx context.Context, t *domain.Trade) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Time.IsZero() {
		t.Time = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO trades (id,side,token,chain_id,symbol,price,amount,pnl,tx_hash,gas_native,gas_usd,ts)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
`, t.ID, string(t.Side), domain.NormalizeAddress(t.Token), t.ChainID, t.Symbol,
		t.Price.String(), t.Amount.String(), t.PnL.String(), t.TxHash,
		t.GasNative.String(), t.GasUSD.String(), t.Time.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// RecentTrades 按时间倒序取最近成交，limit<=0 时默认 50
func (r *Registry) RecentTrades(ctx context.Context, limit int) ([]domain.Trade, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id,side,token,chain_id,symbol,price,amount,pnl,tx_hash,gas_native,gas_usd,ts
FROM trades ORDER BY ts DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var side string
		var price, amount, pnl string
		var gasNative, gasUSD string
		var ts string
		if err := rows.Scan(&t.ID, &side, &t.Token, &t.ChainID, &t.Symbol,
			&price, &amount, &pnl, &t.TxHash, &gasNative, &gasUSD, &ts); err != nil {
			return nil, err
		}
		t.Side = domain.TradeSide(side)
		t.Price = parseDec(price)
		t.Amount = parseDec(amount)
		t.PnL = parseDec(pnl)
		t.GasNative = parseDec(gasNative)
		t.GasUSD = parseDec(gasUSD)
		t.Time = parseTime(ts)
		out = append(out, t)
	}
	return out, rows.Err()
}

// TotalPnL 所有卖出成交的净盈亏合计
// 在 Go 侧按 decimal 累加，避免 SQL 浮点聚合引入误差。
func (r *Registry) TotalPnL(ctx context.Context) (decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT pnl FROM trades WHERE side=?`, string(domain.TradeSideSell))
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var pnl string
		if err := rows.Scan(&pnl); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(parseDec(pnl))
	}
	return total, rows.Err()
}

// TradeStats 成交统计汇总
type TradeStats struct {
	TotalTrades int             // 全部成交（含 BUY 入场）
	Sells       int             // 平仓笔数
	Wins        int             // 盈利平仓笔数
	TotalPnL    decimal.Decimal // 净盈亏合计
	WinRate     decimal.Decimal // 盈利平仓占比（%），无平仓时为 0
}

// Stats 聚合成交统计，胜率按平仓笔数算
func (r *Registry) Stats(ctx context.Context) (*TradeStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT side, pnl FROM trades`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	s := &TradeStats{TotalPnL: decimal.Zero, WinRate: decimal.Zero}
	for rows.Next() {
		var side, pnl string
		if err := rows.Scan(&side, &pnl); err != nil {
			return nil, err
		}
		s.TotalTrades++
		if domain.TradeSide(side) != domain.TradeSideSell {
			continue
		}
		s.Sells++
		v := parseDec(pnl)
		s.TotalPnL = s.TotalPnL.Add(v)
		if v.IsPositive() {
			s.Wins++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if s.Sells > 0 {
		s.WinRate = decimal.NewFromInt(int64(s.Wins)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(s.Sells))).
			Round(2)
	}
	return s, nil
}

// SaveWalletSnapshot 记录钱包余额快照（启动与每笔成交后各一次）
func (r *Registry) SaveWalletSnapshot(ctx context.Context, s *domain.WalletSnapshot) error {
	if s.Time.IsZero() {
		s.Time = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO wallet_snapshots (address,eth,weth,usdc,eth_price,ts)
VALUES (?,?,?,?,?,?)
`, domain.NormalizeAddress(s.Address), s.ETH.String(), s.WETH.String(), s.USDC.String(),
		s.ETHPrice.String(), s.Time.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert wallet snapshot: %w", err)
	}
	return nil
}

// LatestWalletSnapshot 最近一次钱包快照，没有返回 nil
func (r *Registry) LatestWalletSnapshot(ctx context.Context) (*domain.WalletSnapshot, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT address,eth,weth,usdc,eth_price,ts
FROM wallet_snapshots ORDER BY id DESC LIMIT 1
`)
	var s domain.WalletSnapshot
	var eth, weth, usdc string
	var ethPrice, ts string
	if err := row.Scan(&s.Address, &eth, &weth, &usdc, &ethPrice, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.ETH = parseDec(eth)
	s.WETH = parseDec(weth)
	s.USDC = parseDec(usdc)
	s.ETHPrice = parseDec(ethPrice)
	s.Time = parseTime(ts)
	return &s, nil
}
