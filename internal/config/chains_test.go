package config

import "testing"

func TestGetChain(t *testing.T) {
	cfg, ok := GetChain(8453)
	if !ok {
		t.Fatal("8453 应该在链地址表里")
	}
	if cfg.Name != "Base" || cfg.ChainID != 8453 {
		t.Fatalf("8453 配置不对: %+v", cfg)
	}

	if _, ok := GetChain(999999); ok {
		t.Fatal("未定义的 chain_id 应返回 false")
	}
}

func TestPricingChainID(t *testing.T) {
	// 测试网映射到对应主网，主网保持不变
	cases := map[uint64]uint64{
		84532:    8453,
		421614:   42161,
		11155111: 1,
		1:        1,
		137:      137,
	}
	for in, want := range cases {
		if got := PricingChainID(in); got != want {
			t.Fatalf("PricingChainID(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestIsTestnet(t *testing.T) {
	if !IsTestnet(84532) {
		t.Fatal("84532 是测试网")
	}
	if IsTestnet(8453) {
		t.Fatal("8453 不是测试网")
	}
	if IsTestnet(999999) {
		t.Fatal("未定义的链不算测试网")
	}
}
