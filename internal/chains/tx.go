package chains

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/tokenbot/gotrader/pkg/logger"
	"github.com/tokenbot/gotrader/pkg/wallet"
)

// ErrGasReserve 原生币余额低于 gas 储备线，拒绝发交易
var ErrGasReserve = errors.New("原生币余额低于 gas 储备线")

// GasParams 当前链的 gas 行情
type GasParams struct {
	GasPrice *big.Int // 建议 gas 价格 (wei)
	TipCap   *big.Int // 建议小费，链不支持 EIP-1559 时为 nil
}

// GasParams 读取 gas 行情，10 秒内复用缓存
func (c *Context) GasParams(ctx context.Context) (GasParams, error) {
	if gp, ok := c.gasCache.Get(c.Config.ChainID); ok {
		return gp, nil
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return GasParams{}, fmt.Errorf("获取gas价格失败: %w", err)
	}
	gp := GasParams{GasPrice: gasPrice}
	if tip, err := c.client.SuggestGasTipCap(ctx); err == nil {
		gp.TipCap = tip
	} else {
		logger.Debugf("链 %d 获取小费失败: %v", c.Config.ChainID, err)
	}

	c.gasCache.Set(c.Config.ChainID, gp, 0)
	return gp, nil
}

// EstimateSwapGasUSD 按给定 gas 上限预估一笔兑换的成本
// 返回 (USD, 原生币)。入场前和止盈前用它判断交易是否划得来。
func (c *Context) EstimateSwapGasUSD(ctx context.Context, gasLimit uint64, ethPrice decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	params, err := c.GasParams(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	costWei := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), params.GasPrice)
	costNative := FromWei(costWei, 18)
	return costNative.Mul(ethPrice), costNative, nil
}

// NativeBalance 原生币余额 (wei)
func (c *Context) NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	balance, err := c.client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("读取原生币余额失败: %w", err)
	}
	return balance, nil
}

// CheckGasReserve 发交易前的 gas 储备检查
// 余额读不到同样拒绝：宁可不交易，不能在无法确认 gas 的情况下上链。
func (c *Context) CheckGasReserve(ctx context.Context, addr common.Address) error {
	balance, err := c.NativeBalance(ctx, addr)
	if err != nil {
		return fmt.Errorf("gas 储备检查失败: %w", err)
	}
	reserve := ToWei(c.gasReserve, 18)
	if balance.Cmp(reserve) < 0 {
		return fmt.Errorf("%w: 余额 %s wei < 储备 %s wei (chain_id=%d)",
			ErrGasReserve, balance.String(), reserve.String(), c.Config.ChainID)
	}
	return nil
}

// SubmitTx 打包好的 calldata 上链：nonce → gas → 签名 → 发送
// gasLimit 为 0 时走链上估算。
func (c *Context) SubmitTx(ctx context.Context, w *wallet.Wallet, to common.Address, value *big.Int, data []byte, gasLimit uint64) (*ethtypes.Transaction, error) {
	if value == nil {
		value = big.NewInt(0)
	}

	nonce, err := c.client.PendingNonceAt(ctx, w.Address)
	if err != nil {
		return nil, fmt.Errorf("获取nonce失败: %w", err)
	}

	gp, err := c.GasParams(ctx)
	if err != nil {
		return nil, err
	}

	if gasLimit == 0 {
		gasLimit, err = c.client.EstimateGas(ctx, ethereum.CallMsg{
			From:  w.Address,
			To:    &to,
			Data:  data,
			Value: value,
		})
		if err != nil {
			return nil, fmt.Errorf("估算gas失败: %w", err)
		}
	}

	tx := ethtypes.NewTransaction(nonce, to, value, gasLimit, gp.GasPrice, data)
	chainID := new(big.Int).SetUint64(c.Config.ChainID)
	signedTx, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(chainID), w.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("签名交易失败: %w", err)
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("发送交易失败: %w", err)
	}
	return signedTx, nil
}

// WaitReceipt 轮询等待交易上链，超时返回错误
func (c *Context) WaitReceipt(ctx context.Context, txHash common.Hash, timeout time.Duration) (*ethtypes.Receipt, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := c.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("获取交易回执失败: %w", err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("等待交易 %s 确认超时 (%s)", txHash.Hex(), timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
