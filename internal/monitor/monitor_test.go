package monitor

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tokenbot/gotrader/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestEvaluate_AbsoluteThresholds(t *testing.T) {
	pos := &domain.Position{
		EntryPrice: dec("100"),
		TakeProfit: dec("102"),
		StopLoss:   dec("98"),
	}

	cases := []struct {
		price     string
		reason    domain.CloseReason
		triggered bool
	}{
		{"100.5", "", false}, // 区间内持有不动
		{"101.999", "", false},
		{"102", domain.CloseReasonTakeProfit, true}, // 触发价本身算触发
		{"102.01", domain.CloseReasonTakeProfit, true},
		{"98.001", "", false},
		{"98", domain.CloseReasonStopLoss, true},
		{"97.99", domain.CloseReasonStopLoss, true},
	}
	for _, c := range cases {
		reason, triggered := Evaluate(pos, dec(c.price), 2, 2)
		if triggered != c.triggered || reason != c.reason {
			t.Fatalf("price %s: expected (%q,%t), got (%q,%t)",
				c.price, c.reason, c.triggered, reason, triggered)
		}
	}
}

func TestEvaluate_DefaultFallback(t *testing.T) {
	// 没有绝对触发价的仓位按默认百分比从入场价推导
	pos := &domain.Position{EntryPrice: dec("50")}

	if reason, ok := Evaluate(pos, dec("51"), 2, 2); !ok || reason != domain.CloseReasonTakeProfit {
		t.Fatalf("expected TP at 51, got (%q,%t)", reason, ok)
	}
	if reason, ok := Evaluate(pos, dec("49"), 2, 2); !ok || reason != domain.CloseReasonStopLoss {
		t.Fatalf("expected SL at 49, got (%q,%t)", reason, ok)
	}
	if _, ok := Evaluate(pos, dec("50.5"), 2, 2); ok {
		t.Fatal("50.5 在区间内不应触发")
	}
}

func TestEvaluate_VolatilityBasedThresholds(t *testing.T) {
	// 波动率入场的仓位触发价可以不对称
	pos := &domain.Position{
		EntryPrice: dec("10"),
		TakeProfit: dec("10.45"), // entry*(1+1.5*3%/100)
		StopLoss:   dec("9.7"),   // entry*(1-1.0*3%/100)
	}
	if reason, ok := Evaluate(pos, dec("10.45"), 2, 2); !ok || reason != domain.CloseReasonTakeProfit {
		t.Fatalf("expected TP, got (%q,%t)", reason, ok)
	}
	if reason, ok := Evaluate(pos, dec("9.69"), 2, 2); !ok || reason != domain.CloseReasonStopLoss {
		t.Fatalf("expected SL, got (%q,%t)", reason, ok)
	}
	// 默认 2% 档位（10.2/9.8）之间的价格也不该误触发
	if _, ok := Evaluate(pos, dec("10.3"), 2, 2); ok {
		t.Fatal("10.3 低于波动率止盈线，不应触发")
	}
}
