package trader

import (
	"os"

	"github.com/tokenbot/gotrader/internal/config"
)

// Flags 兼容旧部署的标志文件
// 外部脚本 touch 文件即可触发，循环每个 tick 检查一次。
type Flags struct {
	stopPath    string
	sellAllPath string
}

// NewFlags 按配置路径创建
func NewFlags(cfg config.FlagsConfig) *Flags {
	return &Flags{stopPath: cfg.StopFlag, sellAllPath: cfg.SellAllFlag}
}

// StopSet 停止标志是否存在
func (f *Flags) StopSet() bool {
	_, err := os.Stat(f.stopPath)
	return err == nil
}

// SetStop 写停止标志
func (f *Flags) SetStop() error {
	return os.WriteFile(f.stopPath, []byte("stop\n"), 0o644)
}

// ClearStop 移除停止标志，文件不存在不算错误
func (f *Flags) ClearStop() error {
	err := os.Remove(f.stopPath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// SellAllSet 清仓标志是否存在
func (f *Flags) SellAllSet() bool {
	_, err := os.Stat(f.sellAllPath)
	return err == nil
}

// SetSellAll 写清仓标志
func (f *Flags) SetSellAll() error {
	return os.WriteFile(f.sellAllPath, []byte("sell\n"), 0o644)
}

// ClearSellAll 移除清仓标志
func (f *Flags) ClearSellAll() error {
	err := os.Remove(f.sellAllPath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
