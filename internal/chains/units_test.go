package chains

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFromWei(t *testing.T) {
	wei, _ := new(big.Int).SetString("1500000000000000000", 10)
	got := FromWei(wei, 18)
	if !got.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("expected 1.5, got %s", got)
	}

	usdc := big.NewInt(2500000)
	got = FromWei(usdc, 6)
	if !got.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("expected 2.5, got %s", got)
	}

	if !FromWei(nil, 18).IsZero() {
		t.Fatalf("expected zero for nil amount")
	}
}

func TestToWei(t *testing.T) {
	got := ToWei(decimal.RequireFromString("1.5"), 18)
	want, _ := new(big.Int).SetString("1500000000000000000", 10)
	if got.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, got)
	}

	// 超出精度的小数位截断而不是四舍五入
	got = ToWei(decimal.RequireFromString("0.0000019"), 6)
	if got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected 1, got %s", got)
	}
}

func TestWeiRoundTrip(t *testing.T) {
	orig := decimal.RequireFromString("123.456789")
	back := FromWei(ToWei(orig, 6), 6)
	if !back.Equal(orig) {
		t.Fatalf("round trip mismatch: %s vs %s", back, orig)
	}
}
