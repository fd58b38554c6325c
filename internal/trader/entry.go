package trader

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/tokenbot/gotrader/internal/chains"
	"github.com/tokenbot/gotrader/internal/domain"
	"github.com/tokenbot/gotrader/internal/registry"
	"github.com/tokenbot/gotrader/pkg/logger"
)

// entryPass 对所有没有未平仓仓位的活跃代币做一轮建仓检查
// 建仓是 HOLD：代币已经在钱包里，只按池子价记一笔仓位，不发任何链上交易。
func (t *Trader) entryPass(ctx context.Context) int {
	tokens, err := t.reg.GetActiveTokens(ctx)
	if err != nil {
		logger.Errorf("读取活跃代币失败: %v", err)
		return 0
	}

	entered := 0
	for i := range tokens {
		tok := &tokens[i]
		cctx, ok := t.chains.Get(tok.ChainID)
		if !ok {
			continue
		}

		open, err := t.reg.GetOpenPosition(ctx, tok.ChainID, tok.Address)
		if err != nil {
			logger.Errorf("查询 %s 持仓失败: %v", tok.Symbol, err)
			continue
		}
		if open != nil {
			continue
		}

		balance, err := cctx.BalanceOf(ctx, common.HexToAddress(tok.Address), t.wallet.Address)
		if err != nil {
			logger.Debugf("读取 %s 余额失败: %v", tok.Symbol, err)
			continue
		}
		amount := chains.FromWei(balance, tok.Decimals)
		if !amount.IsPositive() {
			continue
		}

		if t.enterPosition(ctx, cctx, tok, amount) {
			entered++
		}
	}
	return entered
}

func (t *Trader) enterPosition(ctx context.Context, cctx *chains.Context, tok *domain.Token, amount decimal.Decimal) bool {
	price, err := t.pricer.TokenPriceRetry(ctx, tok.ChainID, tok.Address, tok.Decimals)
	if err != nil {
		logger.Warnf("%s 池子读价失败，跳过建仓: %v", tok.Symbol, err)
		return false
	}
	if !price.IsPositive() {
		logger.Warnf("%s 池子价格非正，跳过建仓", tok.Symbol)
		return false
	}

	// 主网建仓前先算账：预期止盈连退出 gas 都覆盖不了的不进场
	if !cctx.Config.Testnet {
		ethPrice := t.ethPriceOrDefault(ctx)
		estUSD, _, err := cctx.EstimateSwapGasUSD(ctx, t.cfg.Trading.SwapGasLimit, ethPrice)
		if err != nil {
			logger.Debugf("预估退出 gas 失败，按 0 处理: %v", err)
			estUSD = decimal.Zero
		}
		posValue := amount.Mul(price)
		expectedTP := posValue.Mul(decimal.NewFromFloat(t.cfg.Trading.TakeProfitPct)).Div(decimal.NewFromInt(100))
		if estUSD.GreaterThanOrEqual(expectedTP) {
			logger.Infof("跳过建仓 %s: 退出 gas $%s >= 预期止盈 $%s",
				tok.Symbol, estUSD.StringFixed(4), expectedTP.StringFixed(4))
			return false
		}
	}

	pool, err := t.reg.GetBestPool(ctx, tok.ChainID, tok.Address)
	if err != nil || pool == nil {
		logger.Warnf("%s 没有可用池子记录，跳过建仓", tok.Symbol)
		return false
	}

	tp, sl, vol := t.thresholds(ctx, tok, price)
	pos := &domain.Position{
		Token:      tok.Address,
		ChainID:    tok.ChainID,
		Symbol:     tok.Symbol,
		Decimals:   tok.Decimals,
		EntryPrice: price,
		Amount:     amount,
		TakeProfit: tp,
		StopLoss:   sl,
		Volatility: vol,
		FeeTier:    pool.FeeTier,
		QuoteToken: pool.QuoteToken,
	}
	if err := t.reg.CreatePosition(ctx, pos); err != nil {
		if errors.Is(err, registry.ErrPositionExists) {
			return false
		}
		logger.Errorf("%s 建仓落库失败: %v", tok.Symbol, err)
		return false
	}

	if err := t.reg.RecordTrade(ctx, &domain.Trade{
		Side:    domain.TradeSideBuy,
		Token:   tok.Address,
		ChainID: tok.ChainID,
		Symbol:  tok.Symbol,
		Price:   price,
		Amount:  amount,
	}); err != nil {
		logger.Errorf("记录建仓成交失败: %v", err)
	}

	// 提前授权，真正退出时不用再等两笔 approve
	if err := t.exec.EnsurePermit2(ctx, tok.ChainID, common.HexToAddress(tok.Address)); err != nil {
		logger.Warnf("%s 预授权失败，退出时会重试: %v", tok.Symbol, err)
	}

	logger.Infof("HOLD %s [%s]: %s @ $%s (TP $%s, SL $%s, 市值 $%s)",
		tok.Symbol, cctx.Config.Name, amount.StringFixed(6), price.StringFixed(6),
		tp.StringFixed(6), sl.StringFixed(6), amount.Mul(price).StringFixed(4))
	return true
}

// thresholds 波动率采样定触发价，采样不可用时回落到固定百分比
func (t *Trader) thresholds(ctx context.Context, tok *domain.Token, entry decimal.Decimal) (tp, sl, vol decimal.Decimal) {
	hundred := decimal.NewFromInt(100)
	vol, ok := t.pricer.SampleVolatility(ctx, tok.ChainID, tok.Address, tok.Decimals, t.cfg.Trading.VolatilitySamples)
	if ok && vol.IsPositive() {
		// TP 放在 1.5 倍波动之上，SL 收在 1 倍波动之内
		tp = entry.Mul(decimal.NewFromInt(1).Add(vol.Mul(decimal.NewFromFloat(1.5)).Div(hundred)))
		sl = entry.Mul(decimal.NewFromInt(1).Sub(vol.Div(hundred)))
		logger.Infof("[波动率] %s: %s%% → TP $%s, SL $%s",
			tok.Symbol, vol.StringFixed(2), tp.StringFixed(4), sl.StringFixed(4))
		return tp, sl, vol
	}

	tp = entry.Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(t.cfg.Trading.TakeProfitPct).Div(hundred)))
	sl = entry.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(t.cfg.Trading.StopLossPct).Div(hundred)))
	logger.Infof("[波动率] %s: 采样不可用，按默认档 → TP $%s, SL $%s",
		tok.Symbol, tp.StringFixed(4), sl.StringFixed(4))
	return tp, sl, decimal.Zero
}

// ethPriceOrDefault 读不到主网 ETH 价时按 2000 粗估，只用于 gas 换算
func (t *Trader) ethPriceOrDefault(ctx context.Context) decimal.Decimal {
	price, err := t.pricer.ETHPriceUSD(ctx)
	if err != nil {
		logger.Debugf("读取 ETH 价格失败，gas 换算按 2000: %v", err)
		return decimal.NewFromInt(2000)
	}
	return price
}
