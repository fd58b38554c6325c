package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidTransition 仓位状态只能单向推进
var ErrInvalidTransition = errors.New("仓位状态不允许回退")

// PositionStatus 仓位状态
type PositionStatus string

const (
	PositionStatusHolding     PositionStatus = "HOLDING"      // 持有中，监控 TP/SL
	PositionStatusExitPending PositionStatus = "EXIT_PENDING" // 已触发退出，等待链上成交
	PositionStatusClosed      PositionStatus = "CLOSED"       // 已平仓
)

// CloseReason 平仓原因
type CloseReason string

const (
	CloseReasonTakeProfit CloseReason = "TP"       // 止盈
	CloseReasonStopLoss   CloseReason = "SL"       // 止损
	CloseReasonSellAll    CloseReason = "SELL_ALL" // 操作员清仓
)

// Position 仓位领域模型
// 每个 (token, chain) 同时最多一个未平仓仓位；入场价写入后不可变。
type Position struct {
	ID         string          // 仓位 ID (uuid)
	Token      string          // 代币地址（小写 hex）
	ChainID    uint64          // 持仓所在链
	Symbol     string          // 代币符号
	Decimals   int32           // 代币精度
	EntryPrice decimal.Decimal // 入场价格（USD，池子读数，不可变）
	EntryTime  time.Time       // 入场时间
	Amount     decimal.Decimal // 持仓数量（人类单位）
	TakeProfit decimal.Decimal // 止盈触发价（绝对价格）
	StopLoss   decimal.Decimal // 止损触发价（绝对价格）
	Volatility decimal.Decimal // 入场时的波动率%（采样失败为 0）
	FeeTier    uint32          // 池子费率档位
	QuoteToken string          // 池子报价币种: USDC 或 WETH
	Status     PositionStatus  // 仓位状态

	ExitPrice decimal.Decimal // 出场价格（平仓后有值）
	ExitTx    string          // 出场交易哈希
	PnL       decimal.Decimal // 净盈亏（USD，已扣 gas）
	Reason    CloseReason     // 平仓原因
	ClosedAt  *time.Time      // 平仓时间
}

// IsOpen 是否未平仓
func (p *Position) IsOpen() bool {
	return p.Status != PositionStatusClosed
}

// CanTransitionTo 状态机只允许 HOLDING → EXIT_PENDING → CLOSED
func (p *Position) CanTransitionTo(next PositionStatus) bool {
	switch p.Status {
	case PositionStatusHolding:
		return next == PositionStatusExitPending
	case PositionStatusExitPending:
		return next == PositionStatusClosed
	default:
		return false
	}
}

// MarkExitPending 触发退出
func (p *Position) MarkExitPending() error {
	if !p.CanTransitionTo(PositionStatusExitPending) {
		return ErrInvalidTransition
	}
	p.Status = PositionStatusExitPending
	return nil
}

// Close 平仓，记录出场信息
func (p *Position) Close(exitPrice decimal.Decimal, txHash string, pnl decimal.Decimal, reason CloseReason) error {
	if !p.CanTransitionTo(PositionStatusClosed) {
		return ErrInvalidTransition
	}
	now := time.Now()
	p.Status = PositionStatusClosed
	p.ExitPrice = exitPrice
	p.ExitTx = txHash
	p.PnL = pnl
	p.Reason = reason
	p.ClosedAt = &now
	return nil
}

// UnrealizedPnL 未实现盈亏（USD），不含 gas
func (p *Position) UnrealizedPnL(currentPrice decimal.Decimal) decimal.Decimal {
	return currentPrice.Sub(p.EntryPrice).Mul(p.Amount)
}

// ChangePct 当前价相对入场价的涨跌幅（百分比）
func (p *Position) ChangePct(currentPrice decimal.Decimal) decimal.Decimal {
	if p.EntryPrice.IsZero() {
		return decimal.Zero
	}
	return currentPrice.Sub(p.EntryPrice).Div(p.EntryPrice).Mul(decimal.NewFromInt(100))
}

// Value 仓位市值（USD）
func (p *Position) Value(currentPrice decimal.Decimal) decimal.Decimal {
	return currentPrice.Mul(p.Amount)
}
