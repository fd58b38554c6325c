package executor

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/tokenbot/gotrader/internal/pricing"
)

// UniversalRouter 指令编码
// 参考: https://docs.uniswap.org/contracts/v4/quickstart/swap
const (
	commandV4Swap = 0x10

	actionSwapExactInSingle = 0x06
	actionSettleAll         = 0x0c
	actionTakeAll           = 0x0f
)

// UniversalRouterABI execute 入口
const UniversalRouterABI = `[
	{
		"inputs": [
			{"name": "commands", "type": "bytes"},
			{"name": "inputs", "type": "bytes[]"},
			{"name": "deadline", "type": "uint256"}
		],
		"name": "execute",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	}
]`

var (
	swapParamsArgs   abi.Arguments
	settleTakeArgs   abi.Arguments
	routerInputsArgs abi.Arguments
)

func init() {
	poolKeyTy, err := abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "currency0", Type: "address"},
		{Name: "currency1", Type: "address"},
		{Name: "fee", Type: "uint24"},
		{Name: "tickSpacing", Type: "int24"},
		{Name: "hooks", Type: "address"},
	})
	if err != nil {
		panic(err)
	}
	boolTy, _ := abi.NewType("bool", "", nil)
	uint128Ty, _ := abi.NewType("uint128", "", nil)
	addressTy, _ := abi.NewType("address", "", nil)
	bytesTy, _ := abi.NewType("bytes", "", nil)
	bytesArrTy, _ := abi.NewType("bytes[]", "", nil)

	// ExactInputSingleParams: (PoolKey, zeroForOne, amountIn, amountOutMinimum, hookData)
	swapParamsArgs = abi.Arguments{
		{Type: poolKeyTy}, {Type: boolTy}, {Type: uint128Ty}, {Type: uint128Ty}, {Type: bytesTy},
	}
	// SETTLE_ALL / TAKE_ALL: (currency, amount)
	settleTakeArgs = abi.Arguments{{Type: addressTy}, {Type: uint128Ty}}
	// V4_SWAP 输入: (actions, params[])
	routerInputsArgs = abi.Arguments{{Type: bytesTy}, {Type: bytesArrTy}}
}

// encodeV4Swap 编码一笔 exact-in 单池兑换
// 返回 execute 的 commands 与 inputs 两个参数。
func encodeV4Swap(tokenIn, tokenOut common.Address, amountIn, minAmountOut *big.Int, feeTier uint32) ([]byte, [][]byte, error) {
	key, zeroForOne := pricing.NewPoolKey(tokenIn, tokenOut, feeTier)

	swapParams, err := swapParamsArgs.Pack(key, zeroForOne, amountIn, minAmountOut, []byte{})
	if err != nil {
		return nil, nil, fmt.Errorf("编码swap参数失败: %w", err)
	}
	settleParams, err := settleTakeArgs.Pack(tokenIn, amountIn)
	if err != nil {
		return nil, nil, fmt.Errorf("编码settle参数失败: %w", err)
	}
	takeParams, err := settleTakeArgs.Pack(tokenOut, minAmountOut)
	if err != nil {
		return nil, nil, fmt.Errorf("编码take参数失败: %w", err)
	}

	actions := []byte{actionSwapExactInSingle, actionSettleAll, actionTakeAll}
	input, err := routerInputsArgs.Pack(actions, [][]byte{swapParams, settleParams, takeParams})
	if err != nil {
		return nil, nil, fmt.Errorf("编码V4输入失败: %w", err)
	}

	commands := []byte{commandV4Swap}
	return commands, [][]byte{input}, nil
}
