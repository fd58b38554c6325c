package pricing

import (
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// 构造 sqrtPriceX96 = ratio << 96
func sqrtX96(ratio int64) *big.Int {
	return new(big.Int).Lsh(big.NewInt(ratio), 96)
}

func TestPriceFromSqrtX96_TokenIsToken1(t *testing.T) {
	// USDC/WETH 池：token0=USDC(6) token1=WETH(18)
	// ratio=20000 ⇒ raw=4e8，human=4e8*10^(6-18)=4e-4 WETH/USDC，倒数=2500 USDC/WETH
	price, err := PriceFromSqrtX96(sqrtX96(20000), 18, 6, false)
	if err != nil {
		t.Fatalf("price error: %v", err)
	}
	want := decimal.NewFromInt(2500)
	if !withinTolerance(price, want) {
		t.Fatalf("expected ~2500, got %s", price)
	}
}

func TestPriceFromSqrtX96_TokenIsToken0(t *testing.T) {
	// TKN(18)/USDC(6) 池，TKN 是 token0
	// human = raw*10^(18-6)，ratio=2e-6 ⇒ raw=4e-12 ⇒ human=4 USDC/TKN
	// sqrtPriceX96 = 2e-6 * 2^96 = 2^97/1e6
	sqrt := new(big.Int).Lsh(big.NewInt(2), 96)
	sqrt.Div(sqrt, big.NewInt(1_000_000))
	price, err := PriceFromSqrtX96(sqrt, 18, 6, true)
	if err != nil {
		t.Fatalf("price error: %v", err)
	}
	want := decimal.NewFromInt(4)
	if !withinTolerance(price, want) {
		t.Fatalf("expected ~4, got %s", price)
	}
}

func TestPriceFromSqrtX96_ZeroSqrt(t *testing.T) {
	if _, err := PriceFromSqrtX96(big.NewInt(0), 18, 6, true); err == nil {
		t.Fatalf("expected error for zero sqrtPriceX96")
	}
	if _, err := PriceFromSqrtX96(nil, 18, 6, true); err == nil {
		t.Fatalf("expected error for nil sqrtPriceX96")
	}
}

// 相对误差 < 1e-9
func withinTolerance(got, want decimal.Decimal) bool {
	if want.IsZero() {
		return got.IsZero()
	}
	diff := got.Sub(want).Abs()
	return diff.Div(want.Abs()).LessThan(decimal.New(1, -9))
}

func TestNewPoolKey_Ordering(t *testing.T) {
	low := common.HexToAddress("0x0000000000000000000000000000000000000001")
	high := common.HexToAddress("0x00000000000000000000000000000000000000ff")

	k, tokenIsZero := NewPoolKey(low, high, 3000)
	if !tokenIsZero {
		t.Fatalf("expected low address token to be currency0")
	}
	if k.Currency0 != low || k.Currency1 != high {
		t.Fatalf("wrong currency ordering: %s / %s", k.Currency0.Hex(), k.Currency1.Hex())
	}
	if k.TickSpacing.Int64() != 60 {
		t.Fatalf("expected tick spacing 60 for fee 3000, got %d", k.TickSpacing.Int64())
	}

	// 调换方向必须得到同一个 PoolKey，poolId 一致
	k2, tokenIsZero2 := NewPoolKey(high, low, 3000)
	if tokenIsZero2 {
		t.Fatalf("expected high address token to be currency1")
	}
	id1, err := k.ID()
	if err != nil {
		t.Fatalf("poolkey id: %v", err)
	}
	id2, err := k2.ID()
	if err != nil {
		t.Fatalf("poolkey id: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("pool id depends on argument order: %s vs %s", id1.Hex(), id2.Hex())
	}
}

func TestNewPoolKey_TickSpacingPerFee(t *testing.T) {
	a := common.HexToAddress("0x0000000000000000000000000000000000000001")
	b := common.HexToAddress("0x0000000000000000000000000000000000000002")
	cases := map[uint32]int64{100: 1, 500: 10, 3000: 60, 10000: 200}
	for fee, spacing := range cases {
		k, _ := NewPoolKey(a, b, fee)
		if k.TickSpacing.Int64() != spacing {
			t.Fatalf("fee %d: expected spacing %d, got %d", fee, spacing, k.TickSpacing.Int64())
		}
	}
}

func TestStdevPctChanges(t *testing.T) {
	// 单个涨跌幅取绝对值
	vol, ok := stdevPctChanges([]float64{100, 102})
	if !ok {
		t.Fatalf("expected ok")
	}
	if math.Abs(vol-2.0) > 1e-9 {
		t.Fatalf("expected 2.0, got %f", vol)
	}

	// 价格不变 ⇒ 波动率 0
	vol, ok = stdevPctChanges([]float64{100, 100, 100, 100})
	if !ok {
		t.Fatalf("expected ok")
	}
	if vol != 0 {
		t.Fatalf("expected 0 volatility, got %f", vol)
	}

	// 两个涨跌幅 a, b 的样本标准差 = |a-b|/sqrt(2)
	vol, ok = stdevPctChanges([]float64{100, 101, 99.99})
	if !ok {
		t.Fatalf("expected ok")
	}
	a := (101.0 - 100.0) / 100.0 * 100
	b := (99.99 - 101.0) / 101.0 * 100
	want := math.Abs(a-b) / math.Sqrt2
	if math.Abs(vol-want) > 1e-9 {
		t.Fatalf("expected %f, got %f", want, vol)
	}

	// 样本不足
	if _, ok := stdevPctChanges([]float64{100}); ok {
		t.Fatalf("expected not ok for single sample")
	}
	if _, ok := stdevPctChanges(nil); ok {
		t.Fatalf("expected not ok for no samples")
	}
}
