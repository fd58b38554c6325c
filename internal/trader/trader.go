package trader

import (
	"context"
	"time"

	"github.com/tokenbot/gotrader/internal/chains"
	"github.com/tokenbot/gotrader/internal/config"
	"github.com/tokenbot/gotrader/internal/executor"
	"github.com/tokenbot/gotrader/internal/monitor"
	"github.com/tokenbot/gotrader/internal/pricing"
	"github.com/tokenbot/gotrader/internal/registry"
	"github.com/tokenbot/gotrader/internal/risk"
	"github.com/tokenbot/gotrader/internal/scanner"
	"github.com/tokenbot/gotrader/internal/whitelist"
	"github.com/tokenbot/gotrader/pkg/logger"
	"github.com/tokenbot/gotrader/pkg/sigchan"
	"github.com/tokenbot/gotrader/pkg/wallet"
)

// Deps 主循环的依赖集合
type Deps struct {
	Config    *config.Config
	Chains    *chains.Manager
	Registry  *registry.Registry
	Whitelist *whitelist.Store
	Pricer    *pricing.Reader
	Scanner   *scanner.Scanner
	Monitor   *monitor.Monitor
	Executor  *executor.Executor
	Wallet    *wallet.Wallet
	Breaker   *risk.Breaker
}

// Trader 自动交易主循环
// 所有仓位变更都在这一个 goroutine 里串行发生，没有任何并发写仓位的路径。
type Trader struct {
	cfg     *config.Config
	chains  *chains.Manager
	reg     *registry.Registry
	wl      *whitelist.Store
	pricer  *pricing.Reader
	scanner *scanner.Scanner
	monitor *monitor.Monitor
	exec    *executor.Executor
	wallet  *wallet.Wallet
	breaker *risk.Breaker

	flags     *Flags
	stopCh    *sigchan.Chan
	sellAllCh *sigchan.Chan

	lastStatus      time.Time
	ticksSinceEntry int
}

// New 创建主循环
func New(d Deps) *Trader {
	return &Trader{
		cfg:       d.Config,
		chains:    d.Chains,
		reg:       d.Registry,
		wl:        d.Whitelist,
		pricer:    d.Pricer,
		scanner:   d.Scanner,
		monitor:   d.Monitor,
		exec:      d.Executor,
		wallet:    d.Wallet,
		breaker:   d.Breaker,
		flags:     NewFlags(d.Config.Flags),
		stopCh:    sigchan.New(1),
		sellAllCh: sigchan.New(1),
	}
}

// RequestStop API 触发的紧急停止：写标志文件并通知循环
func (t *Trader) RequestStop() {
	if err := t.flags.SetStop(); err != nil {
		logger.Warnf("写停止标志失败: %v", err)
	}
	t.stopCh.Emit()
}

// ClearStop 清除停止标志并复位熔断，允许继续执行
func (t *Trader) ClearStop() error {
	t.breaker.Reset()
	return t.flags.ClearStop()
}

// RequestSellAll API 触发的清仓
func (t *Trader) RequestSellAll() {
	t.sellAllCh.Emit()
}

// StopActive 停止标志当前是否生效
func (t *Trader) StopActive() bool {
	return t.flags.StopSet()
}

// SellAllActive 清仓标志当前是否生效
func (t *Trader) SellAllActive() bool {
	return t.flags.SellAllSet()
}

// TradingHalted 风控熔断是否已打开
func (t *Trader) TradingHalted() bool {
	return t.breaker.Tripped()
}

// Run 启动快照 + 扫描后进入 1 秒 tick 的单 goroutine 循环
func (t *Trader) Run(ctx context.Context) error {
	t.startup(ctx)

	ticker := time.NewTicker(t.cfg.Trading.TickInterval)
	defer ticker.Stop()

	logger.Info("多链交易主循环启动")
	for {
		select {
		case <-ctx.Done():
			logger.Info("收到退出信号，停止主循环")
			return nil
		case <-t.stopCh.C():
			logger.Warn("紧急停止，退出主循环")
			return nil
		case <-t.sellAllCh.C():
			t.handleSellAll(ctx)
		case <-ticker.C:
			if t.tick(ctx) {
				return nil
			}
		}
	}
}

// tick 每秒一轮，返回 true 表示要求退出
func (t *Trader) tick(ctx context.Context) bool {
	// 1. 停止标志文件（兼容外部脚本）
	if t.flags.StopSet() {
		logger.Warn("检测到停止标志文件，退出主循环")
		return true
	}

	// 2. 清仓标志文件，处理完移除
	if t.flags.SellAllSet() {
		t.handleSellAll(ctx)
		if err := t.flags.ClearSellAll(); err != nil {
			logger.Warnf("移除清仓标志失败: %v", err)
		}
	}

	// 3. 状态行
	if time.Since(t.lastStatus) >= t.cfg.Trading.StatusInterval {
		t.lastStatus = time.Now()
		t.logStatus(ctx)
	}

	// 4. TP/SL 判定
	if closed := t.monitor.CheckPositions(ctx); closed > 0 {
		t.postTrade(ctx)
	}

	// 5. 入场检查
	t.ticksSinceEntry++
	if t.ticksSinceEntry >= t.cfg.Trading.EntryIntervalTicks {
		t.ticksSinceEntry = 0
		if entered := t.entryPass(ctx); entered > 0 {
			t.postTrade(ctx)
		}
	}
	return false
}

func (t *Trader) handleSellAll(ctx context.Context) {
	if closed := t.monitor.SellAll(ctx); closed > 0 {
		t.postTrade(ctx)
	}
}

// startup 启动快照 + 唯一的一次启动扫描
func (t *Trader) startup(ctx context.Context) {
	snap := t.snapshotWallet(ctx)
	t.logBanner(ctx, snap)
	t.scanner.Scan(ctx)
}

// postTrade 成交后的钩子：重扫钱包 + 更新快照
// 除启动以外，这里是扫描器唯一的调用点，循环里没有定时扫描。
func (t *Trader) postTrade(ctx context.Context) {
	t.scanner.Scan(ctx)
	t.snapshotWallet(ctx)
}
