package pricing

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/tokenbot/gotrader/internal/config"
)

// PoolKey Uniswap V4 池子标识
// currency0 必须是地址数值较小的一方，poolId = keccak256(abi.encode(PoolKey))。
type PoolKey struct {
	Currency0   common.Address
	Currency1   common.Address
	Fee         *big.Int
	TickSpacing *big.Int
	Hooks       common.Address
}

// NewPoolKey 按 token/quote 构造 PoolKey，返回 token 是否为 currency0
func NewPoolKey(token, quote common.Address, feeTier uint32) (PoolKey, bool) {
	tokenIsZero := bytes.Compare(token.Bytes(), quote.Bytes()) < 0
	k := PoolKey{
		Fee:         new(big.Int).SetUint64(uint64(feeTier)),
		TickSpacing: big.NewInt(int64(config.TickSpacingForFee(feeTier))),
	}
	if tokenIsZero {
		k.Currency0, k.Currency1 = token, quote
	} else {
		k.Currency0, k.Currency1 = quote, token
	}
	return k, tokenIsZero
}

var poolKeyArgs = func() abi.Arguments {
	addr, _ := abi.NewType("address", "", nil)
	uint24, _ := abi.NewType("uint24", "", nil)
	int24, _ := abi.NewType("int24", "", nil)
	return abi.Arguments{
		{Type: addr}, {Type: addr}, {Type: uint24}, {Type: int24}, {Type: addr},
	}
}()

// ID 计算 V4 poolId
func (k PoolKey) ID() (common.Hash, error) {
	packed, err := poolKeyArgs.Pack(k.Currency0, k.Currency1, k.Fee, k.TickSpacing, k.Hooks)
	if err != nil {
		return common.Hash{}, fmt.Errorf("编码PoolKey失败: %w", err)
	}
	return crypto.Keccak256Hash(packed), nil
}
