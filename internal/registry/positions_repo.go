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

// ErrPositionExists 同一 (chain, token) 已有未平仓仓位
var ErrPositionExists = errors.New("该代币已有未平仓仓位")

// CreatePosition 建仓，写入后入场价不再可变
// 同一 (chain, token) 最多一个未平仓仓位，违反时返回 ErrPositionExists。
func (r *Registry) CreatePosition(ctx context.Context, p *domain.Position) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = domain.PositionStatusHolding
	}
	if p.EntryTime.IsZero() {
		p.EntryTime = time.Now()
	}
	p.Token = domain.NormalizeAddress(p.Token)

	existing, err := r.GetOpenPosition(ctx, p.ChainID, p.Token)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrPositionExists
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO positions (id,token,chain_id,symbol,decimals,entry_price,entry_time,amount,take_profit,stop_loss,volatility,fee_tier,quote_token,status)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
`, p.ID, p.Token, p.ChainID, p.Symbol, p.Decimals,
		p.EntryPrice.String(), p.EntryTime.Format(time.RFC3339Nano), p.Amount.String(),
		p.TakeProfit.String(), p.StopLoss.String(), p.Volatility.String(),
		p.FeeTier, p.QuoteToken, string(p.Status))
	if err != nil {
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// MarkExitPending HOLDING → EXIT_PENDING，触发原因一并落库
// 退出失败的仓位停在 EXIT_PENDING 重试，靠这里的原因决定平仓标签。
// 仓位不处于 HOLDING 时返回 ErrInvalidTransition，状态机不允许回退。
func (r *Registry) MarkExitPending(ctx context.Context, id string, reason domain.CloseReason) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE positions SET status=?, reason=? WHERE id=? AND status=?
`, string(domain.PositionStatusExitPending), string(reason), id, string(domain.PositionStatusHolding))
	if err != nil {
		return fmt.Errorf("mark exit pending: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// ClosePosition EXIT_PENDING → CLOSED，记录出场价/交易哈希/净盈亏/原因
func (r *Registry) ClosePosition(ctx context.Context, id string, exitPrice decimal.Decimal, txHash string, pnl decimal.Decimal, reason domain.CloseReason) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE positions
SET status=?, exit_price=?, exit_tx=?, pnl=?, reason=?, closed_at=?
WHERE id=? AND status=?
`, string(domain.PositionStatusClosed), exitPrice.String(), txHash, pnl.String(), string(reason),
		time.Now().Format(time.RFC3339Nano), id, string(domain.PositionStatusExitPending))
	if err != nil {
		return fmt.Errorf("close position: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// GetPosition 按 ID 查询，不存在返回 nil
func (r *Registry) GetPosition(ctx context.Context, id string) (*domain.Position, error) {
	row := r.db.QueryRowContext(ctx, positionSelect+` WHERE id=?`, id)
	p, err := scanPosition(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// GetOpenPosition 该代币当前未平仓仓位，没有返回 nil
func (r *Registry) GetOpenPosition(ctx context.Context, chainID uint64, token string) (*domain.Position, error) {
	row := r.db.QueryRowContext(ctx, positionSelect+` WHERE chain_id=? AND token=? AND status != ?`,
		chainID, domain.NormalizeAddress(token), string(domain.PositionStatusClosed))
	p, err := scanPosition(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// GetOpenPositions 所有未平仓仓位（HOLDING 与 EXIT_PENDING）
func (r *Registry) GetOpenPositions(ctx context.Context) ([]domain.Position, error) {
	return r.listPositions(ctx, `WHERE status != ?`, string(domain.PositionStatusClosed))
}

// ListPositions 最近的仓位历史，limit<=0 时默认 50
func (r *Registry) ListPositions(ctx context.Context, limit int) ([]domain.Position, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return r.listPositions(ctx, `ORDER BY entry_time DESC LIMIT ?`, limit)
}

const positionSelect = `
SELECT id,token,chain_id,symbol,decimals,entry_price,entry_time,amount,take_profit,stop_loss,volatility,fee_tier,quote_token,status,exit_price,exit_tx,pnl,reason,closed_at
FROM positions`

func (r *Registry) listPositions(ctx context.Context, clause string, args ...any) ([]domain.Position, error) {
	rows, err := r.db.QueryContext(ctx, positionSelect+` `+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPosition(scan func(dest ...any) error) (*domain.Position, error) {
	var (
		p          domain.Position
		entryPrice string
		entryTime  string
		amount     string
		takeProfit string
		stopLoss   string
		volatility string
		status     string
		exitPrice  sql.NullString
		exitTx     sql.NullString
		pnl        sql.NullString
		reason     sql.NullString
		closedAt   sql.NullString
	)
	if err := scan(&p.ID, &p.Token, &p.ChainID, &p.Symbol, &p.Decimals,
		&entryPrice, &entryTime, &amount, &takeProfit, &stopLoss, &volatility,
		&p.FeeTier, &p.QuoteToken, &status,
		&exitPrice, &exitTx, &pnl, &reason, &closedAt); err != nil {
		return nil, err
	}
	p.EntryPrice = parseDec(entryPrice)
	p.EntryTime = parseTime(entryTime)
	p.Amount = parseDec(amount)
	p.TakeProfit = parseDec(takeProfit)
	p.StopLoss = parseDec(stopLoss)
	p.Volatility = parseDec(volatility)
	p.Status = domain.PositionStatus(status)
	if exitPrice.Valid {
		p.ExitPrice = parseDec(exitPrice.String)
	}
	if exitTx.Valid {
		p.ExitTx = exitTx.String
	}
	if pnl.Valid {
		p.PnL = parseDec(pnl.String)
	}
	if reason.Valid {
		p.Reason = domain.CloseReason(reason.String)
	}
	if closedAt.Valid {
		t := parseTime(closedAt.String)
		p.ClosedAt = &t
	}
	return &p, nil
}
