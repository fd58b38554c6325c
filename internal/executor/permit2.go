package executor

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/tokenbot/gotrader/internal/chains"
	"github.com/tokenbot/gotrader/pkg/logger"
)

// Permit2Address 官方 Permit2 合约，各链同地址
var Permit2Address = common.HexToAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3")

// Permit2ABI allowance 三元组读取与授权
const Permit2ABI = `[
	{
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "token", "type": "address"},
			{"name": "spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [
			{"name": "amount", "type": "uint160"},
			{"name": "expiration", "type": "uint48"},
			{"name": "nonce", "type": "uint48"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "token", "type": "address"},
			{"name": "spender", "type": "address"},
			{"name": "amount", "type": "uint160"},
			{"name": "expiration", "type": "uint48"}
		],
		"name": "approve",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

const (
	approveGasLimit   = uint64(100000)
	permit2Expiry     = 30 * 24 * time.Hour // 授权有效期 30 天
	permit2ExpirySlop = int64(3600)         // 剩余不足 1 小时就续期
)

var (
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	maxUint160 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 160), big.NewInt(1))
	// 低于 2^128 视为额度不足，重新授到最大
	approvalFloor = new(big.Int).Lsh(big.NewInt(1), 128)
)

// EnsurePermit2 V4 交易前的两步授权
// 第一步 ERC20 授给 Permit2，第二步 Permit2 授给 UniversalRouter。
// 额度充足且未临期时两步都不发交易。
func (e *Executor) EnsurePermit2(ctx context.Context, chainID uint64, token common.Address) error {
	cctx, ok := e.chains.Get(chainID)
	if !ok {
		return fmt.Errorf("链 %d 未连接", chainID)
	}
	router := cctx.Config.UniversalRouter

	// 第一步: ERC20 → Permit2
	allowance, err := cctx.Allowance(ctx, token, e.wallet.Address, Permit2Address)
	if err != nil {
		return fmt.Errorf("读取ERC20授权额度失败: %w", err)
	}
	if allowance.Cmp(approvalFloor) < 0 {
		if err := e.approveERC20(ctx, cctx, token); err != nil {
			return err
		}
	}

	// 第二步: Permit2 → UniversalRouter
	amount, expiration, err := e.permit2Allowance(ctx, cctx, token, router)
	if err != nil {
		return fmt.Errorf("读取Permit2授权额度失败: %w", err)
	}
	now := time.Now().Unix()
	if amount.Cmp(approvalFloor) < 0 || expiration < now+permit2ExpirySlop {
		if err := e.approvePermit2(ctx, cctx, token, router); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) approveERC20(ctx context.Context, cctx *chains.Context, token common.Address) error {
	if e.dryRun {
		logger.Infof("[纸交易] 跳过 ERC20→Permit2 授权 %s", token.Hex())
		return nil
	}
	data, err := cctx.ERC20ApproveData(Permit2Address, maxUint256)
	if err != nil {
		return err
	}
	tx, err := cctx.SubmitTx(ctx, e.wallet, token, big.NewInt(0), data, approveGasLimit)
	if err != nil {
		return fmt.Errorf("发送ERC20授权交易失败: %w", err)
	}
	receipt, err := cctx.WaitReceipt(ctx, tx.Hash(), e.receiptTimeout)
	if err != nil {
		return fmt.Errorf("等待ERC20授权回执失败: %w", err)
	}
	if receipt.Status != 1 {
		return fmt.Errorf("ERC20授权交易回滚: %s", tx.Hash().Hex())
	}
	logger.Infof("ERC20→Permit2 已授权: %s...", tx.Hash().Hex()[:16])
	return nil
}

func (e *Executor) permit2Allowance(ctx context.Context, cctx *chains.Context, token, spender common.Address) (*big.Int, int64, error) {
	data, err := e.permit2ABI.Pack("allowance", e.wallet.Address, token, spender)
	if err != nil {
		return nil, 0, fmt.Errorf("打包allowance参数失败: %w", err)
	}
	result, err := cctx.Client().CallContract(ctx, ethereum.CallMsg{To: &Permit2Address, Data: data}, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("调用Permit2 allowance失败: %w", err)
	}
	vals, err := e.permit2ABI.Unpack("allowance", result)
	if err != nil {
		return nil, 0, fmt.Errorf("解析Permit2 allowance结果失败: %w", err)
	}
	amount, ok := vals[0].(*big.Int)
	if !ok {
		return nil, 0, fmt.Errorf("Permit2 allowance amount 类型异常")
	}
	expiration, ok := vals[1].(*big.Int)
	if !ok {
		return nil, 0, fmt.Errorf("Permit2 allowance expiration 类型异常")
	}
	return amount, expiration.Int64(), nil
}

func (e *Executor) approvePermit2(ctx context.Context, cctx *chains.Context, token, spender common.Address) error {
	if e.dryRun {
		logger.Infof("[纸交易] 跳过 Permit2→Router 授权 %s", token.Hex())
		return nil
	}
	expiration := big.NewInt(time.Now().Add(permit2Expiry).Unix())
	data, err := e.permit2ABI.Pack("approve", token, spender, maxUint160, expiration)
	if err != nil {
		return fmt.Errorf("打包Permit2 approve参数失败: %w", err)
	}
	tx, err := cctx.SubmitTx(ctx, e.wallet, Permit2Address, big.NewInt(0), data, approveGasLimit)
	if err != nil {
		return fmt.Errorf("发送Permit2授权交易失败: %w", err)
	}
	receipt, err := cctx.WaitReceipt(ctx, tx.Hash(), e.receiptTimeout)
	if err != nil {
		return fmt.Errorf("等待Permit2授权回执失败: %w", err)
	}
	if receipt.Status != 1 {
		return fmt.Errorf("Permit2授权交易回滚: %s", tx.Hash().Hex())
	}
	logger.Infof("Permit2→Router 已授权: %s...", tx.Hash().Hex()[:16])
	return nil
}
