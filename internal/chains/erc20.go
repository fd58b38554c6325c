package chains

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/tokenbot/gotrader/pkg/logger"
)

// ERC20ABI ERC20标准ABI（余额/元数据/授权）
const ERC20ABI = `[
	{
		"inputs": [{"name": "account", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "symbol",
		"outputs": [{"name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "name",
		"outputs": [{"name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "spender", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// BalanceOf ERC20 余额（最小单位）
func (c *Context) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	data, err := c.erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("打包balanceOf参数失败: %w", err)
	}
	result, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("调用balanceOf失败: %w", err)
	}
	var balance *big.Int
	if err := c.erc20ABI.UnpackIntoInterface(&balance, "balanceOf", result); err != nil {
		return nil, fmt.Errorf("解析balanceOf结果失败: %w", err)
	}
	return balance, nil
}

// Allowance ERC20 授权额度
func (c *Context) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	data, err := c.erc20ABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("打包allowance参数失败: %w", err)
	}
	result, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("调用allowance失败: %w", err)
	}
	var allowance *big.Int
	if err := c.erc20ABI.UnpackIntoInterface(&allowance, "allowance", result); err != nil {
		return nil, fmt.Errorf("解析allowance结果失败: %w", err)
	}
	return allowance, nil
}

// ERC20ApproveData approve 调用的 calldata，配合 SubmitTx 使用
func (c *Context) ERC20ApproveData(spender common.Address, amount *big.Int) ([]byte, error) {
	data, err := c.erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("打包approve参数失败: %w", err)
	}
	return data, nil
}

// TokenSymbol 代币符号，读不到时返回 "???"
// 个别老代币的 symbol 不是标准 string，读失败不拦截流程。
func (c *Context) TokenSymbol(ctx context.Context, token common.Address) string {
	var symbol string
	if err := c.callView(ctx, token, "symbol", &symbol); err != nil {
		logger.Debugf("读取 %s symbol 失败: %v", token.Hex(), err)
		return "???"
	}
	return symbol
}

// TokenName 代币名称，读不到时返回 "Unknown"
func (c *Context) TokenName(ctx context.Context, token common.Address) string {
	var name string
	if err := c.callView(ctx, token, "name", &name); err != nil {
		logger.Debugf("读取 %s name 失败: %v", token.Hex(), err)
		return "Unknown"
	}
	return name
}

// TokenDecimals 代币精度，读不到时按 18 处理
func (c *Context) TokenDecimals(ctx context.Context, token common.Address) int32 {
	var decimals uint8
	if err := c.callView(ctx, token, "decimals", &decimals); err != nil {
		logger.Debugf("读取 %s decimals 失败: %v", token.Hex(), err)
		return 18
	}
	return int32(decimals)
}

func (c *Context) callView(ctx context.Context, to common.Address, method string, out any) error {
	data, err := c.erc20ABI.Pack(method)
	if err != nil {
		return fmt.Errorf("打包%s参数失败: %w", method, err)
	}
	result, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("调用%s失败: %w", method, err)
	}
	if err := c.erc20ABI.UnpackIntoInterface(out, method, result); err != nil {
		return fmt.Errorf("解析%s结果失败: %w", method, err)
	}
	return nil
}
