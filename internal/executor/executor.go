package executor

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/tokenbot/gotrader/internal/chains"
	"github.com/tokenbot/gotrader/internal/config"
	"github.com/tokenbot/gotrader/internal/domain"
	"github.com/tokenbot/gotrader/internal/risk"
	"github.com/tokenbot/gotrader/pkg/logger"
	"github.com/tokenbot/gotrader/pkg/wallet"
)

const defaultReceiptTimeout = 120 * time.Second

// SellResult 一次退出的链上结果
type SellResult struct {
	TxHash     string
	GasNative  decimal.Decimal // gas 消耗（原生币）
	AmountSold decimal.Decimal // 实际卖出数量（人类单位）
}

// Executor 链上兑换执行
// 只做强制退出：amountOutMinimum 恒为 0，宁可吃滑点也要平掉仓位。
type Executor struct {
	chains  *chains.Manager
	wallet  *wallet.Wallet
	breaker *risk.Breaker

	permit2ABI abi.ABI
	routerABI  abi.ABI

	swapDeadline   time.Duration
	swapGasLimit   uint64
	receiptTimeout time.Duration
	dryRun         bool
}

// NewExecutor 创建执行器
func NewExecutor(m *chains.Manager, w *wallet.Wallet, cfg *config.Config, breaker *risk.Breaker) (*Executor, error) {
	permit2ABI, err := abi.JSON(strings.NewReader(Permit2ABI))
	if err != nil {
		return nil, fmt.Errorf("解析Permit2 ABI失败: %w", err)
	}
	routerABI, err := abi.JSON(strings.NewReader(UniversalRouterABI))
	if err != nil {
		return nil, fmt.Errorf("解析UniversalRouter ABI失败: %w", err)
	}
	return &Executor{
		chains:         m,
		wallet:         w,
		breaker:        breaker,
		permit2ABI:     permit2ABI,
		routerABI:      routerABI,
		swapDeadline:   cfg.Trading.SwapDeadline,
		swapGasLimit:   cfg.Trading.SwapGasLimit,
		receiptTimeout: defaultReceiptTimeout,
		dryRun:         cfg.Trading.DryRun,
	}, nil
}

// SellPosition 把仓位兑回 USDC
// USDC 报价的池子直接兑，WETH 报价的先兑 WETH 再按 500 档兑 USDC。
// 钱包里代币已经不足仓位数量时按实际余额卖，余额为零视为空成交。
func (e *Executor) SellPosition(ctx context.Context, pos *domain.Position, label string) (*SellResult, error) {
	if err := e.breaker.Allow(); err != nil {
		return nil, err
	}
	cctx, ok := e.chains.Get(pos.ChainID)
	if !ok {
		return nil, fmt.Errorf("链 %d 未连接", pos.ChainID)
	}
	if err := cctx.CheckGasReserve(ctx, e.wallet.Address); err != nil {
		return nil, err
	}

	token := common.HexToAddress(pos.Token)
	balance, err := cctx.BalanceOf(ctx, token, e.wallet.Address)
	if err != nil {
		return nil, fmt.Errorf("读取代币余额失败: %w", err)
	}
	if balance.Sign() == 0 {
		logger.Warnf("%s %s 余额为零，按空成交平仓", label, pos.Symbol)
		return &SellResult{}, nil
	}

	sellAmount := chains.ToWei(pos.Amount, pos.Decimals)
	if balance.Cmp(sellAmount) < 0 {
		sellAmount = balance
	}

	cfg := cctx.Config
	if strings.EqualFold(pos.QuoteToken, "WETH") {
		return e.sellViaWETH(ctx, cctx, pos, token, sellAmount, label)
	}

	txHash, gasNative, err := e.swap(ctx, cctx, token, cfg.USDC, sellAmount, pos.FeeTier,
		fmt.Sprintf("%s %s→USDC", label, pos.Symbol))
	if err != nil {
		return nil, err
	}
	return &SellResult{
		TxHash:     txHash,
		GasNative:  gasNative,
		AmountSold: chains.FromWei(sellAmount, pos.Decimals),
	}, nil
}

// sellViaWETH 两跳退出: token→WETH 按仓位费率档，WETH→USDC 固定 500
// 第二跳失败只告警，第一跳已经落账，仓位照常平掉。
func (e *Executor) sellViaWETH(ctx context.Context, cctx *chains.Context, pos *domain.Position, token common.Address, sellAmount *big.Int, label string) (*SellResult, error) {
	cfg := cctx.Config
	txHash, gasNative, err := e.swap(ctx, cctx, token, cfg.WETH, sellAmount, pos.FeeTier,
		fmt.Sprintf("%s %s→WETH", label, pos.Symbol))
	if err != nil {
		return nil, err
	}

	wethBalance, err := cctx.BalanceOf(ctx, cfg.WETH, e.wallet.Address)
	if err == nil && wethBalance.Sign() > 0 {
		_, gas2, err := e.swap(ctx, cctx, cfg.WETH, cfg.USDC, wethBalance, config.MainnetFeeTier, "WETH→USDC")
		if err != nil {
			logger.Warnf("WETH→USDC 第二跳失败，WETH 留在钱包: %v", err)
		} else {
			gasNative = gasNative.Add(gas2)
		}
	}

	return &SellResult{
		TxHash:     txHash,
		GasNative:  gasNative,
		AmountSold: chains.FromWei(sellAmount, pos.Decimals),
	}, nil
}

// swap 单池 exact-in 兑换，等待回执后返回 gas 消耗
func (e *Executor) swap(ctx context.Context, cctx *chains.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier uint32, label string) (string, decimal.Decimal, error) {
	if err := e.EnsurePermit2(ctx, cctx.ChainID(), tokenIn); err != nil {
		return "", decimal.Zero, err
	}

	commands, inputs, err := encodeV4Swap(tokenIn, tokenOut, amountIn, big.NewInt(0), feeTier)
	if err != nil {
		return "", decimal.Zero, err
	}
	deadline := big.NewInt(time.Now().Add(e.swapDeadline).Unix())
	data, err := e.routerABI.Pack("execute", commands, inputs, deadline)
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("打包execute参数失败: %w", err)
	}

	if e.dryRun {
		logger.Infof("[纸交易] %s amount_in=%s fee=%d", label, amountIn, feeTier)
		return "", decimal.Zero, nil
	}

	tx, err := cctx.SubmitTx(ctx, e.wallet, cctx.Config.UniversalRouter, big.NewInt(0), data, e.swapGasLimit)
	if err != nil {
		e.breaker.RecordFailure()
		return "", decimal.Zero, fmt.Errorf("发送兑换交易失败: %w", err)
	}
	logger.Infof("%s [%s] tx: %s...", label, cctx.Config.Name, tx.Hash().Hex()[:16])

	receipt, err := cctx.WaitReceipt(ctx, tx.Hash(), e.receiptTimeout)
	if err != nil {
		e.breaker.RecordFailure()
		return "", decimal.Zero, fmt.Errorf("等待兑换回执失败: %w", err)
	}
	if receipt.Status != 1 {
		e.breaker.RecordFailure()
		return "", decimal.Zero, fmt.Errorf("兑换交易回滚: %s", tx.Hash().Hex())
	}
	e.breaker.RecordSuccess()

	gasWei := new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), receipt.EffectiveGasPrice)
	gasNative := chains.FromWei(gasWei, 18)
	logger.Infof("%s 确认 (gas %d units, %s ETH)", label, receipt.GasUsed, gasNative)
	return tx.Hash().Hex(), gasNative, nil
}
