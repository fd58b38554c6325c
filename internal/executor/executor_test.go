package executor

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	tokenLow  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	tokenHigh = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

// 解出 V4_SWAP 输入里的 actions 与 params
func decodeV4Input(t *testing.T, input []byte) ([]byte, [][]byte) {
	t.Helper()
	vals, err := routerInputsArgs.Unpack(input)
	if err != nil {
		t.Fatalf("解码V4输入失败: %v", err)
	}
	actions, ok := vals[0].([]byte)
	if !ok {
		t.Fatalf("actions 类型异常: %T", vals[0])
	}
	params, ok := vals[1].([][]byte)
	if !ok {
		t.Fatalf("params 类型异常: %T", vals[1])
	}
	return actions, params
}

func TestEncodeV4Swap_CommandsAndActions(t *testing.T) {
	commands, inputs, err := encodeV4Swap(tokenLow, tokenHigh, big.NewInt(1000), big.NewInt(0), 3000)
	if err != nil {
		t.Fatalf("encodeV4Swap 失败: %v", err)
	}
	if len(commands) != 1 || commands[0] != 0x10 {
		t.Fatalf("expected commands [0x10], got %x", commands)
	}
	if len(inputs) != 1 {
		t.Fatalf("expected 1 input, got %d", len(inputs))
	}

	actions, params := decodeV4Input(t, inputs[0])
	if !bytes.Equal(actions, []byte{0x06, 0x0c, 0x0f}) {
		t.Fatalf("expected actions 06 0c 0f, got %x", actions)
	}
	if len(params) != 3 {
		t.Fatalf("expected 3 params, got %d", len(params))
	}
}

func TestEncodeV4Swap_Direction(t *testing.T) {
	amountIn := big.NewInt(123456)

	_, fwdInputs, err := encodeV4Swap(tokenLow, tokenHigh, amountIn, big.NewInt(0), 3000)
	if err != nil {
		t.Fatalf("encodeV4Swap 失败: %v", err)
	}
	_, revInputs, err := encodeV4Swap(tokenHigh, tokenLow, amountIn, big.NewInt(0), 3000)
	if err != nil {
		t.Fatalf("encodeV4Swap 失败: %v", err)
	}

	_, fwdParams := decodeV4Input(t, fwdInputs[0])
	_, revParams := decodeV4Input(t, revInputs[0])
	fwdSwap, revSwap := fwdParams[0], revParams[0]

	// PoolKey 按地址排序，两个方向的前 5 个字必须完全一致
	if !bytes.Equal(fwdSwap[:160], revSwap[:160]) {
		t.Fatal("PoolKey 编码应与交易方向无关")
	}
	// 小地址卖大地址是 zeroForOne
	if fwdSwap[191] != 1 {
		t.Fatalf("expected zeroForOne=1, got %d", fwdSwap[191])
	}
	if revSwap[191] != 0 {
		t.Fatalf("expected zeroForOne=0, got %d", revSwap[191])
	}

	// amountIn 在第 7 个字
	got := new(big.Int).SetBytes(fwdSwap[192:224])
	if got.Cmp(amountIn) != 0 {
		t.Fatalf("expected amountIn %s, got %s", amountIn, got)
	}
}

func TestEncodeV4Swap_PoolKeyFields(t *testing.T) {
	_, inputs, err := encodeV4Swap(tokenLow, tokenHigh, big.NewInt(1), big.NewInt(0), 3000)
	if err != nil {
		t.Fatalf("encodeV4Swap 失败: %v", err)
	}
	_, params := decodeV4Input(t, inputs[0])
	swap := params[0]

	if got := common.BytesToAddress(swap[0:32]); got != tokenLow {
		t.Fatalf("currency0 应为小地址，got %s", got.Hex())
	}
	if got := common.BytesToAddress(swap[32:64]); got != tokenHigh {
		t.Fatalf("currency1 应为大地址，got %s", got.Hex())
	}
	if fee := new(big.Int).SetBytes(swap[64:96]); fee.Int64() != 3000 {
		t.Fatalf("expected fee 3000, got %s", fee)
	}
	if spacing := new(big.Int).SetBytes(swap[96:128]); spacing.Int64() != 60 {
		t.Fatalf("expected tickSpacing 60, got %s", spacing)
	}
	if hooks := common.BytesToAddress(swap[128:160]); hooks != (common.Address{}) {
		t.Fatalf("hooks 应为零地址，got %s", hooks.Hex())
	}
}

func TestEncodeV4Swap_SettleAndTake(t *testing.T) {
	amountIn := big.NewInt(5555)
	_, inputs, err := encodeV4Swap(tokenHigh, tokenLow, amountIn, big.NewInt(0), 500)
	if err != nil {
		t.Fatalf("encodeV4Swap 失败: %v", err)
	}
	_, params := decodeV4Input(t, inputs[0])

	// SETTLE_ALL 付出的是 tokenIn
	settle := params[1]
	if got := common.BytesToAddress(settle[0:32]); got != tokenHigh {
		t.Fatalf("settle currency 应为 tokenIn，got %s", got.Hex())
	}
	if got := new(big.Int).SetBytes(settle[32:64]); got.Cmp(amountIn) != 0 {
		t.Fatalf("settle amount 应为 amountIn，got %s", got)
	}

	// TAKE_ALL 收回的是 tokenOut，强制退出时最低所得为 0
	take := params[2]
	if got := common.BytesToAddress(take[0:32]); got != tokenLow {
		t.Fatalf("take currency 应为 tokenOut，got %s", got.Hex())
	}
	if got := new(big.Int).SetBytes(take[32:64]); got.Sign() != 0 {
		t.Fatalf("take minAmount 应为 0，got %s", got)
	}
}
