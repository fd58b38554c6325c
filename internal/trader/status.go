package trader

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tokenbot/gotrader/internal/chains"
	"github.com/tokenbot/gotrader/internal/domain"
	"github.com/tokenbot/gotrader/pkg/logger"
)

// snapshotWallet 汇总各链原生币/WETH/USDC 余额并落一条快照
// 读不到的链记 0 继续，快照宁可偏低也不中断启动。
func (t *Trader) snapshotWallet(ctx context.Context) *domain.WalletSnapshot {
	snap := &domain.WalletSnapshot{
		Address: t.wallet.Address.Hex(),
		Time:    time.Now(),
	}

	for _, cctx := range t.chains.All() {
		native, err := cctx.NativeBalance(ctx, t.wallet.Address)
		if err != nil {
			logger.Debugf("读取 %s 原生币余额失败: %v", cctx.Config.Name, err)
		} else {
			snap.ETH = snap.ETH.Add(chains.FromWei(native, 18))
		}

		weth, err := cctx.BalanceOf(ctx, cctx.Config.WETH, t.wallet.Address)
		if err != nil {
			logger.Debugf("读取 %s WETH 余额失败: %v", cctx.Config.Name, err)
		} else {
			snap.WETH = snap.WETH.Add(chains.FromWei(weth, cctx.Config.WETHDecimals))
		}

		usdc, err := cctx.BalanceOf(ctx, cctx.Config.USDC, t.wallet.Address)
		if err != nil {
			logger.Debugf("读取 %s USDC 余额失败: %v", cctx.Config.Name, err)
		} else {
			snap.USDC = snap.USDC.Add(chains.FromWei(usdc, cctx.Config.USDCDecimals))
		}
	}

	if price, err := t.pricer.ETHPriceUSD(ctx); err == nil {
		snap.ETHPrice = price
	} else {
		logger.Debugf("读取 ETH 价格失败: %v", err)
	}

	if err := t.reg.SaveWalletSnapshot(ctx, snap); err != nil {
		logger.Errorf("保存钱包快照失败: %v", err)
	}
	return snap
}

// logBanner 启动时打印一次完整配置与持仓概况
func (t *Trader) logBanner(ctx context.Context, snap *domain.WalletSnapshot) {
	names := make([]string, 0, len(t.chains.All()))
	for _, cctx := range t.chains.All() {
		names = append(names, cctx.Config.Name)
	}
	sort.Strings(names)

	open, err := t.reg.GetOpenPositions(ctx)
	if err != nil {
		logger.Errorf("读取未平仓仓位失败: %v", err)
	}

	logger.Info("==========================================")
	logger.Info("多链自动交易机器人")
	logger.Infof("钱包: %s", snap.Address)
	logger.Infof("链: %s", strings.Join(names, ", "))
	logger.Infof("止盈 %.1f%% / 止损 %.1f%% (波动率采样 %d 次)",
		t.cfg.Trading.TakeProfitPct, t.cfg.Trading.StopLossPct, t.cfg.Trading.VolatilitySamples)
	logger.Infof("tick %s, 每 %d tick 检查建仓, gas 保留 %.4f",
		t.cfg.Trading.TickInterval, t.cfg.Trading.EntryIntervalTicks, t.cfg.Trading.GasReserveETH)
	logger.Infof("余额: %s ETH / %s WETH / %s USDC (ETH $%s)",
		snap.ETH.StringFixed(4), snap.WETH.StringFixed(4), snap.USDC.StringFixed(2),
		snap.ETHPrice.StringFixed(2))
	logger.Infof("未平仓仓位: %d", len(open))
	if t.cfg.Trading.DryRun {
		logger.Warn("纸交易模式: 不会发出任何链上交易")
	}
	logger.Infof("API 监听 %s", t.cfg.API.Listen)
	logger.Info("==========================================")
}

// logStatus 周期状态行: ETH 价、活跃代币数、持仓数、累计盈亏、各链块高
func (t *Trader) logStatus(ctx context.Context) {
	ethPrice := t.ethPriceOrDefault(ctx)

	active, err := t.reg.GetActiveTokens(ctx)
	if err != nil {
		logger.Debugf("读取活跃代币失败: %v", err)
	}
	open, err := t.reg.GetOpenPositions(ctx)
	if err != nil {
		logger.Debugf("读取未平仓仓位失败: %v", err)
	}
	pnl, err := t.reg.TotalPnL(ctx)
	if err != nil {
		logger.Debugf("读取累计盈亏失败: %v", err)
		pnl = decimal.Zero
	}

	logger.Infof("[状态] ETH $%s | 活跃 %d | 持仓 %d | 累计盈亏 $%s | %s",
		ethPrice.StringFixed(2), len(active), len(open), pnl.StringFixed(4), t.blockHeights(ctx))
}

// blockHeights 各链最新块高，链名取前三个字母
func (t *Trader) blockHeights(ctx context.Context) string {
	ids := make([]uint64, 0, len(t.chains.All()))
	for id := range t.chains.All() {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		cctx, _ := t.chains.Get(id)
		short := cctx.Config.Name
		if len(short) > 3 {
			short = short[:3]
		}
		height, err := cctx.Client().BlockNumber(ctx)
		if err != nil {
			parts = append(parts, short+":?")
			continue
		}
		parts = append(parts, short+":"+strconv.FormatUint(height, 10))
	}
	return strings.Join(parts, " ")
}
