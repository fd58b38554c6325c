package risk

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// ErrTradingHalted 熔断已打开，链上执行一律拒绝
var ErrTradingHalted = errors.New("风控熔断已触发，暂停链上执行")

// BreakerConfig 熔断配置
// 约定：阈值 <= 0 表示关闭对应限制。
type BreakerConfig struct {
	// MaxConsecutiveFailures 连续链上执行失败上限（发交易失败/回执回滚等）
	MaxConsecutiveFailures int64

	// DailyLossLimitUSD 当日已实现亏损上限（USD），达到即熔断
	DailyLossLimitUSD float64
}

// Breaker 链上执行熔断器
// 退出路径每个 tick 都会查询，用原子变量走快路径；
// 日亏损额在内部按美分整数累计，decimal 只出现在边界。
type Breaker struct {
	halted atomic.Bool

	failures       atomic.Int64
	dailyLossCents atomic.Int64
	dayKey         atomic.Int64 // YYYYMMDD

	maxFailures    atomic.Int64
	lossLimitCents atomic.Int64
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	b := &Breaker{}
	b.maxFailures.Store(cfg.MaxConsecutiveFailures)
	b.lossLimitCents.Store(int64(cfg.DailyLossLimitUSD * 100))
	return b
}

// Allow 检查当前是否允许发起链上执行
func (b *Breaker) Allow() error {
	if b == nil {
		return nil
	}
	if b.halted.Load() {
		return ErrTradingHalted
	}

	if max := b.maxFailures.Load(); max > 0 && b.failures.Load() >= max {
		b.halted.Store(true)
		return ErrTradingHalted
	}

	if limit := b.lossLimitCents.Load(); limit > 0 {
		b.rollDayIfNeeded()
		if b.dailyLossCents.Load() >= limit {
			b.halted.Store(true)
			return ErrTradingHalted
		}
	}
	return nil
}

// RecordSuccess 一次链上执行确认成功，清空连续失败计数
func (b *Breaker) RecordSuccess() {
	if b == nil {
		return
	}
	b.failures.Store(0)
}

// RecordFailure 一次链上执行失败，累计连续失败计数
func (b *Breaker) RecordFailure() {
	if b == nil {
		return
	}
	b.failures.Add(1)
}

// RecordPnL 平仓后登记已实现盈亏（USD），亏损累计进当日额度
func (b *Breaker) RecordPnL(pnlUSD decimal.Decimal) {
	if b == nil || pnlUSD.Sign() >= 0 {
		return
	}
	b.rollDayIfNeeded()
	b.dailyLossCents.Add(pnlUSD.Neg().Mul(decimal.NewFromInt(100)).IntPart())
}

// Tripped 熔断当前是否已打开
func (b *Breaker) Tripped() bool {
	return b != nil && b.halted.Load()
}

// Reset 人工恢复，连续失败计数一并清零
// 当日亏损额不清：额度确实用掉了，恢复后再亏照样二次熔断。
func (b *Breaker) Reset() {
	if b == nil {
		return
	}
	b.halted.Store(false)
	b.failures.Store(0)
}

func (b *Breaker) rollDayIfNeeded() {
	// YYYYMMDD，本地时间即可，风控额度不要求跨时区精确
	now := time.Now()
	key := int64(now.Year()*10000 + int(now.Month())*100 + now.Day())
	prev := b.dayKey.Load()
	if prev == key {
		return
	}
	if b.dayKey.CompareAndSwap(prev, key) {
		b.dailyLossCents.Store(0)
	}
}
