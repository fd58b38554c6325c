package trader

import (
	"path/filepath"
	"testing"

	"github.com/tokenbot/gotrader/internal/config"
)

func newTestFlags(t *testing.T) *Flags {
	t.Helper()
	dir := t.TempDir()
	return NewFlags(config.FlagsConfig{
		StopFlag:    filepath.Join(dir, "stop"),
		SellAllFlag: filepath.Join(dir, "sell_all"),
	})
}

func TestFlags_StopLifecycle(t *testing.T) {
	f := newTestFlags(t)

	if f.StopSet() {
		t.Fatal("fresh flags should not report stop")
	}
	if err := f.SetStop(); err != nil {
		t.Fatalf("SetStop: %v", err)
	}
	if !f.StopSet() {
		t.Fatal("stop flag not visible after SetStop")
	}
	if err := f.ClearStop(); err != nil {
		t.Fatalf("ClearStop: %v", err)
	}
	if f.StopSet() {
		t.Fatal("stop flag still set after clear")
	}
}

func TestFlags_SellAllLifecycle(t *testing.T) {
	f := newTestFlags(t)

	if f.SellAllSet() {
		t.Fatal("fresh flags should not report sell-all")
	}
	if err := f.SetSellAll(); err != nil {
		t.Fatalf("SetSellAll: %v", err)
	}
	if !f.SellAllSet() {
		t.Fatal("sell-all flag not visible after SetSellAll")
	}
	if err := f.ClearSellAll(); err != nil {
		t.Fatalf("ClearSellAll: %v", err)
	}
	if f.SellAllSet() {
		t.Fatal("sell-all flag still set after clear")
	}
}

func TestFlags_ClearMissingIsNoError(t *testing.T) {
	f := newTestFlags(t)

	if err := f.ClearStop(); err != nil {
		t.Fatalf("clearing absent stop flag: %v", err)
	}
	if err := f.ClearSellAll(); err != nil {
		t.Fatalf("clearing absent sell-all flag: %v", err)
	}
}
