package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NormalizeAddress 地址统一转小写，避免大小写混用导致查找不到
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Token 被跟踪的代币
type Token struct {
	Address   string // 小写 hex
	ChainID   uint64
	Symbol    string
	Name      string
	Decimals  int32
	Active    bool // 激活后才参与监控与交易
	FirstSeen time.Time
	UpdatedAt time.Time
}

// Key 仓位/缓存使用的 "chainID:address" 键
func (t *Token) Key() string {
	return TokenKey(t.ChainID, t.Address)
}

// TokenKey 组合链 ID 与代币地址
func TokenKey(chainID uint64, address string) string {
	return strconv.FormatUint(chainID, 10) + ":" + NormalizeAddress(address)
}

// Pool 链上发现的池子引用（只追加，不离线推导）
type Pool struct {
	ChainID      uint64
	Token        string // 小写 hex
	Address      string // 池子地址（V3）
	FeeTier      uint32
	QuoteToken   string          // USDC 或 WETH
	Liquidity    decimal.Decimal // 发现时读到的流动性
	TokenIsZero  bool            // 代币是否为 token0（价格换算需要反转判断）
	DiscoveredAt time.Time
}

// Stale 超过 maxAge 的池子记录视为过期，需要重新链上发现
func (p *Pool) Stale(maxAge time.Duration) bool {
	return time.Since(p.DiscoveredAt) > maxAge
}
