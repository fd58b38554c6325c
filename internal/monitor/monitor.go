package monitor

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/tokenbot/gotrader/internal/chains"
	"github.com/tokenbot/gotrader/internal/config"
	"github.com/tokenbot/gotrader/internal/domain"
	"github.com/tokenbot/gotrader/internal/executor"
	"github.com/tokenbot/gotrader/internal/pricing"
	"github.com/tokenbot/gotrader/internal/registry"
	"github.com/tokenbot/gotrader/internal/risk"
	"github.com/tokenbot/gotrader/pkg/logger"
)

// PositionSeller 监控器对执行器的依赖面
type PositionSeller interface {
	SellPosition(ctx context.Context, pos *domain.Position, label string) (*executor.SellResult, error)
}

// Monitor 持仓监控：每个 tick 对所有未平仓仓位做一次 TP/SL 判定
type Monitor struct {
	chains     *chains.Manager
	reg        *registry.Registry
	pricer     *pricing.Reader
	seller     PositionSeller
	walletAddr common.Address
	cfg        config.TradingConfig
	breaker    *risk.Breaker
}

// NewMonitor 创建监控器
func NewMonitor(m *chains.Manager, reg *registry.Registry, pricer *pricing.Reader, seller PositionSeller, walletAddr common.Address, cfg config.TradingConfig, breaker *risk.Breaker) *Monitor {
	return &Monitor{
		chains:     m,
		reg:        reg,
		pricer:     pricer,
		seller:     seller,
		walletAddr: walletAddr,
		cfg:        cfg,
		breaker:    breaker,
	}
}

// Evaluate 判断仓位是否触发退出
// TP/SL 是入场时固定的绝对触发价；触发价缺失的老仓位按默认百分比从入场价推导。
func Evaluate(pos *domain.Position, current decimal.Decimal, defaultTPPct, defaultSLPct float64) (domain.CloseReason, bool) {
	tp, sl := pos.TakeProfit, pos.StopLoss
	if tp.IsZero() || sl.IsZero() {
		hundred := decimal.NewFromInt(100)
		tp = pos.EntryPrice.Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(defaultTPPct).Div(hundred)))
		sl = pos.EntryPrice.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(defaultSLPct).Div(hundred)))
	}
	if current.GreaterThanOrEqual(tp) {
		return domain.CloseReasonTakeProfit, true
	}
	if current.LessThanOrEqual(sl) {
		return domain.CloseReasonStopLoss, true
	}
	return "", false
}

// CheckPositions 对所有未平仓仓位做一轮判定，返回本轮平掉的仓位数
// 读不到价格的仓位本轮跳过，绝不在缺价的情况下做退出决策。
func (m *Monitor) CheckPositions(ctx context.Context) int {
	positions, err := m.reg.GetOpenPositions(ctx)
	if err != nil {
		logger.Errorf("读取未平仓仓位失败: %v", err)
		return 0
	}
	if len(positions) == 0 {
		return 0
	}

	ethPrice := m.ethPriceOrDefault(ctx)
	closed := 0
	for i := range positions {
		if m.checkOne(ctx, &positions[i], ethPrice) {
			closed++
		}
	}
	return closed
}

func (m *Monitor) checkOne(ctx context.Context, pos *domain.Position, ethPrice decimal.Decimal) bool {
	cctx, ok := m.chains.Get(pos.ChainID)
	if !ok {
		return false
	}

	current, err := m.pricer.TokenPriceRetry(ctx, pos.ChainID, pos.Token, pos.Decimals)
	if err != nil {
		logger.Warnf("%s 价格读取失败，本轮跳过: %v", pos.Symbol, err)
		return false
	}

	// 之前退出失败的仓位直接重试，不再重新判定
	if pos.Status == domain.PositionStatusExitPending {
		return m.executeExit(ctx, pos, current, ethPrice)
	}

	reason, triggered := Evaluate(pos, current, m.cfg.TakeProfitPct, m.cfg.StopLossPct)
	if !triggered {
		return false
	}

	// 主网止盈先算 gas 账：毛利覆盖不了退出 gas 的不动
	// 止损无条件执行，亏损只能止不能省。
	if reason == domain.CloseReasonTakeProfit && !cctx.Config.Testnet {
		estUSD, _, err := cctx.EstimateSwapGasUSD(ctx, m.cfg.SwapGasLimit, ethPrice)
		if err != nil {
			logger.Debugf("预估退出 gas 失败，按 0 处理: %v", err)
			estUSD = decimal.Zero
		}
		gross := pos.UnrealizedPnL(current)
		if gross.LessThanOrEqual(estUSD) {
			logger.Infof("跳过止盈 %s: 毛利 $%s <= gas $%s",
				pos.Symbol, gross.StringFixed(4), estUSD.StringFixed(4))
			return false
		}
	}

	if err := m.reg.MarkExitPending(ctx, pos.ID, reason); err != nil {
		logger.Errorf("%s 标记退出失败: %v", pos.Symbol, err)
		return false
	}
	pos.Status = domain.PositionStatusExitPending
	pos.Reason = reason
	return m.executeExit(ctx, pos, current, ethPrice)
}

// executeExit 执行退出并平仓落库
// 执行失败时仓位停留在 EXIT_PENDING，下个 tick 继续重试。
func (m *Monitor) executeExit(ctx context.Context, pos *domain.Position, current, ethPrice decimal.Decimal) bool {
	res, err := m.seller.SellPosition(ctx, pos, string(pos.Reason))
	if err != nil {
		logger.Errorf("%s %s 退出失败，下个 tick 重试: %v", pos.Reason, pos.Symbol, err)
		return false
	}

	gasUSD := res.GasNative.Mul(ethPrice)
	gross := pos.UnrealizedPnL(current)
	net := gross.Sub(gasUSD)

	if err := m.reg.ClosePosition(ctx, pos.ID, current, res.TxHash, net, pos.Reason); err != nil {
		logger.Errorf("%s 平仓落库失败: %v", pos.Symbol, err)
		return false
	}
	// 成交后的缓存价已经失真，立即失效
	m.pricer.Invalidate(pos.ChainID, pos.Token)
	// 已实现亏损计入当日熔断额度
	m.breaker.RecordPnL(net)

	if err := m.reg.RecordTrade(ctx, &domain.Trade{
		Side:      domain.TradeSideSell,
		Token:     pos.Token,
		ChainID:   pos.ChainID,
		Symbol:    pos.Symbol,
		Price:     current,
		Amount:    pos.Amount,
		PnL:       net,
		TxHash:    res.TxHash,
		GasNative: res.GasNative,
		GasUSD:    gasUSD,
	}); err != nil {
		logger.Errorf("记录卖出成交失败: %v", err)
	}

	chainName := ""
	if cctx, ok := m.chains.Get(pos.ChainID); ok {
		chainName = cctx.Config.Name
	}
	logger.Infof("%s %s [%s] $%s (入场 $%s, %s%%, gas $%s, 净 $%s)",
		pos.Reason, pos.Symbol, chainName,
		current.StringFixed(6), pos.EntryPrice.StringFixed(6),
		pos.ChangePct(current).StringFixed(2),
		gasUSD.StringFixed(4), net.StringFixed(4))
	return true
}

// SellAll 清仓：所有未平仓仓位兑回 USDC
// 储备不足的链整条跳过，仓位留在原状态等储备补足。
func (m *Monitor) SellAll(ctx context.Context) int {
	positions, err := m.reg.GetOpenPositions(ctx)
	if err != nil {
		logger.Errorf("读取未平仓仓位失败: %v", err)
		return 0
	}
	if len(positions) == 0 {
		return 0
	}

	logger.Warnf("紧急清仓: %d 个仓位兑回 USDC", len(positions))
	ethPrice := m.ethPriceOrDefault(ctx)

	closed := 0
	for i := range positions {
		pos := &positions[i]
		cctx, ok := m.chains.Get(pos.ChainID)
		if !ok {
			logger.Warnf("链 %d 未连接，跳过 %s", pos.ChainID, pos.Symbol)
			continue
		}
		if err := cctx.CheckGasReserve(ctx, m.walletAddr); err != nil {
			logger.Warnf("%s 跳过清仓: %v", cctx.Config.Name, err)
			continue
		}

		current, err := m.pricer.TokenPriceRetry(ctx, pos.ChainID, pos.Token, pos.Decimals)
		if err != nil {
			// 清仓是强制动作，读不到价就按入场价记账：
			// 这笔成交流水的 PnL 会约等于零（只剩 gas），是降级记账不是算错
			logger.Warnf("%s 清仓读价失败，按入场价记账: %v", pos.Symbol, err)
			current = pos.EntryPrice
		}

		if pos.Status == domain.PositionStatusHolding {
			if err := m.reg.MarkExitPending(ctx, pos.ID, domain.CloseReasonSellAll); err != nil {
				logger.Errorf("%s 标记清仓失败: %v", pos.Symbol, err)
				continue
			}
			pos.Status = domain.PositionStatusExitPending
			pos.Reason = domain.CloseReasonSellAll
		}

		if m.executeExit(ctx, pos, current, ethPrice) {
			closed++
		}
	}

	logger.Warnf("紧急清仓完成: %d/%d", closed, len(positions))
	return closed
}

// ethPriceOrDefault 读不到主网 ETH 价时按 2000 粗估
// 只影响 gas 成本换算，不参与任何退出判定价格。
func (m *Monitor) ethPriceOrDefault(ctx context.Context) decimal.Decimal {
	price, err := m.pricer.ETHPriceUSD(ctx)
	if err != nil {
		logger.Debugf("读取 ETH 价格失败，gas 换算按 2000: %v", err)
		return decimal.NewFromInt(2000)
	}
	return price
}
