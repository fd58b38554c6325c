package pricing

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/tokenbot/gotrader/internal/chains"
)

// V3PoolABI V3 池子的 slot0/token0
const V3PoolABI = `[
	{
		"inputs": [],
		"name": "slot0",
		"outputs": [
			{"name": "sqrtPriceX96", "type": "uint160"},
			{"name": "tick", "type": "int24"},
			{"name": "observationIndex", "type": "uint16"},
			{"name": "observationCardinality", "type": "uint16"},
			{"name": "observationCardinalityNext", "type": "uint16"},
			{"name": "feeProtocol", "type": "uint8"},
			{"name": "unlocked", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "token0",
		"outputs": [{"name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// PoolManagerABI V4 PoolManager 的 getSlot0(poolId)
const PoolManagerABI = `[
	{
		"inputs": [{"name": "poolId", "type": "bytes32"}],
		"name": "getSlot0",
		"outputs": [
			{"name": "sqrtPriceX96", "type": "uint160"},
			{"name": "tick", "type": "int24"},
			{"name": "protocolFee", "type": "uint24"},
			{"name": "lpFee", "type": "uint24"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// PriceFromSqrtX96 sqrtPriceX96 换算为代币的报价币价格
// raw = (sqrt/2^96)^2 按 token0/token1 精度差缩放；代币是 token1 时取倒数。
func PriceFromSqrtX96(sqrtPriceX96 *big.Int, tokenDecimals, quoteDecimals int32, tokenIsZero bool) (decimal.Decimal, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return decimal.Zero, fmt.Errorf("sqrtPriceX96 为零")
	}

	var d0, d1 int32
	if tokenIsZero {
		d0, d1 = tokenDecimals, quoteDecimals
	} else {
		d0, d1 = quoteDecimals, tokenDecimals
	}

	sq := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	human := decimal.NewFromBigInt(sq, 0).Shift(d0 - d1).DivRound(decimal.NewFromBigInt(q192, 0), 40)

	if tokenIsZero {
		return human, nil
	}
	if human.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("池子价格非法")
	}
	return decimal.NewFromInt(1).DivRound(human, 40), nil
}

// v3SqrtPrice 定价链上经工厂定位 V3 池子并读 slot0
func (r *Reader) v3SqrtPrice(ctx context.Context, priceCtx *chains.Context, token, quote common.Address, feeTier uint32) (*big.Int, bool, error) {
	pool, err := priceCtx.V3GetPool(ctx, token, quote, feeTier)
	if err != nil {
		return nil, false, err
	}
	if (pool == common.Address{}) {
		return nil, false, fmt.Errorf("定价链 %d 上没有 %s/%d 的 V3 池子", priceCtx.ChainID(), quote.Hex(), feeTier)
	}

	data, err := r.v3PoolABI.Pack("slot0")
	if err != nil {
		return nil, false, fmt.Errorf("打包slot0参数失败: %w", err)
	}
	raw, err := priceCtx.Client().CallContract(ctx, ethereum.CallMsg{To: &pool, Data: data}, nil)
	if err != nil {
		return nil, false, fmt.Errorf("调用slot0失败: %w", err)
	}
	vals, err := r.v3PoolABI.Unpack("slot0", raw)
	if err != nil || len(vals) == 0 {
		return nil, false, fmt.Errorf("解析slot0结果失败: %w", err)
	}
	sqrtPrice, ok := vals[0].(*big.Int)
	if !ok {
		return nil, false, fmt.Errorf("slot0 返回类型异常")
	}

	var token0 common.Address
	data, err = r.v3PoolABI.Pack("token0")
	if err != nil {
		return nil, false, fmt.Errorf("打包token0参数失败: %w", err)
	}
	raw, err = priceCtx.Client().CallContract(ctx, ethereum.CallMsg{To: &pool, Data: data}, nil)
	if err != nil {
		return nil, false, fmt.Errorf("调用token0失败: %w", err)
	}
	if err := r.v3PoolABI.UnpackIntoInterface(&token0, "token0", raw); err != nil {
		return nil, false, fmt.Errorf("解析token0结果失败: %w", err)
	}

	return sqrtPrice, token == token0, nil
}

// v4SqrtPrice 通过 PoolManager 读 V4 池子的 slot0
func (r *Reader) v4SqrtPrice(ctx context.Context, priceCtx *chains.Context, token, quote common.Address, feeTier uint32) (*big.Int, bool, error) {
	if (priceCtx.Config.PoolManager == common.Address{}) {
		return nil, false, fmt.Errorf("链 %d 未配置 PoolManager", priceCtx.ChainID())
	}

	key, tokenIsZero := NewPoolKey(token, quote, feeTier)
	poolID, err := key.ID()
	if err != nil {
		return nil, false, err
	}

	data, err := r.poolMgrABI.Pack("getSlot0", poolID)
	if err != nil {
		return nil, false, fmt.Errorf("打包getSlot0参数失败: %w", err)
	}
	raw, err := priceCtx.Client().CallContract(ctx, ethereum.CallMsg{To: &priceCtx.Config.PoolManager, Data: data}, nil)
	if err != nil {
		return nil, false, fmt.Errorf("调用getSlot0失败: %w", err)
	}
	vals, err := r.poolMgrABI.Unpack("getSlot0", raw)
	if err != nil || len(vals) == 0 {
		return nil, false, fmt.Errorf("解析getSlot0结果失败: %w", err)
	}
	sqrtPrice, ok := vals[0].(*big.Int)
	if !ok {
		return nil, false, fmt.Errorf("getSlot0 返回类型异常")
	}
	return sqrtPrice, tokenIsZero, nil
}
