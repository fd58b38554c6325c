package risk

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestBreaker_ConsecutiveFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxConsecutiveFailures: 3})

	for i := 0; i < 2; i++ {
		b.RecordFailure()
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("2 次失败不该熔断: %v", err)
	}

	// 成功清零计数，再失败两次仍在限内
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	if err := b.Allow(); err != nil {
		t.Fatalf("成功后计数应清零: %v", err)
	}

	b.RecordFailure()
	if err := b.Allow(); err != ErrTradingHalted {
		t.Fatalf("3 连败应熔断, got %v", err)
	}
	if !b.Tripped() {
		t.Fatal("熔断状态应置位")
	}

	b.Reset()
	if err := b.Allow(); err != nil {
		t.Fatalf("恢复后应放行: %v", err)
	}
}

func TestBreaker_DailyLossLimit(t *testing.T) {
	b := NewBreaker(BreakerConfig{DailyLossLimitUSD: 100})

	b.RecordPnL(decimal.NewFromFloat(-60))
	if err := b.Allow(); err != nil {
		t.Fatalf("亏损未达上限不该熔断: %v", err)
	}

	// 盈利不抵扣亏损额度
	b.RecordPnL(decimal.NewFromFloat(500))
	b.RecordPnL(decimal.NewFromFloat(-40))
	if err := b.Allow(); err != ErrTradingHalted {
		t.Fatalf("当日亏损达到上限应熔断, got %v", err)
	}

	// Reset 不清当日亏损额，立即再次熔断
	b.Reset()
	if err := b.Allow(); err != ErrTradingHalted {
		t.Fatalf("恢复不补额度, got %v", err)
	}
}

func TestBreaker_Disabled(t *testing.T) {
	b := NewBreaker(BreakerConfig{})
	for i := 0; i < 100; i++ {
		b.RecordFailure()
	}
	b.RecordPnL(decimal.NewFromInt(-1000000))
	if err := b.Allow(); err != nil {
		t.Fatalf("阈值为 0 表示关闭限制: %v", err)
	}

	var nilBreaker *Breaker
	if err := nilBreaker.Allow(); err != nil {
		t.Fatalf("nil 熔断器应放行: %v", err)
	}
	nilBreaker.RecordFailure()
	nilBreaker.RecordPnL(decimal.NewFromInt(-1))
}
