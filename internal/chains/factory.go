package chains

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// V3FactoryABI Uniswap V3 工厂合约的 getPool
const V3FactoryABI = `[
	{
		"inputs": [
			{"name": "tokenA", "type": "address"},
			{"name": "tokenB", "type": "address"},
			{"name": "fee", "type": "uint24"}
		],
		"name": "getPool",
		"outputs": [{"name": "pool", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// V3GetPool 工厂查询池子地址，不存在时返回零地址
func (c *Context) V3GetPool(ctx context.Context, tokenA, tokenB common.Address, fee uint32) (common.Address, error) {
	if (c.Config.V3Factory == common.Address{}) {
		return common.Address{}, fmt.Errorf("链 %d 未配置 V3 工厂地址", c.Config.ChainID)
	}
	data, err := c.v3FactoryABI.Pack("getPool", tokenA, tokenB, new(big.Int).SetUint64(uint64(fee)))
	if err != nil {
		return common.Address{}, fmt.Errorf("打包getPool参数失败: %w", err)
	}
	result, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &c.Config.V3Factory, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("调用getPool失败: %w", err)
	}
	var pool common.Address
	if err := c.v3FactoryABI.UnpackIntoInterface(&pool, "getPool", result); err != nil {
		return common.Address{}, fmt.Errorf("解析getPool结果失败: %w", err)
	}
	return pool, nil
}
