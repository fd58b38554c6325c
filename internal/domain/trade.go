package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide 成交方向
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"  // 建仓（HOLD 入场，不发交易）
	TradeSideSell TradeSide = "SELL" // 链上退出
)

// Trade 成交流水
// BUY 代表记录入场（持有已到账的代币，不发链上交易），SELL 代表链上退出。
type Trade struct {
	ID        string
	Side      TradeSide
	Token     string // 小写 hex
	ChainID   uint64
	Symbol    string
	Price     decimal.Decimal // 成交时的池子价格（USD）
	Amount    decimal.Decimal // 数量（人类单位）
	PnL       decimal.Decimal // 净盈亏（卖出时有值）
	TxHash    string          // 链上交易哈希（HOLD 入场为空）
	GasNative decimal.Decimal // gas 消耗（原生币）
	GasUSD    decimal.Decimal // gas 消耗（USD）
	Time      time.Time
}

// WalletSnapshot 启动与每笔成交后的钱包快照（跨链汇总）
type WalletSnapshot struct {
	Address  string
	ETH      decimal.Decimal // 各链原生币合计
	WETH     decimal.Decimal
	USDC     decimal.Decimal
	ETHPrice decimal.Decimal // 主网 ETH/USDC 价格
	Time     time.Time
}
