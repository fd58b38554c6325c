package pricing

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/tokenbot/gotrader/internal/chains"
	"github.com/tokenbot/gotrader/internal/config"
	"github.com/tokenbot/gotrader/internal/domain"
)

// QuoterV2ABI 主网 QuoterV2 的 quoteExactInputSingle
const QuoterV2ABI = `[
	{
		"inputs": [
			{
				"components": [
					{"name": "tokenIn", "type": "address"},
					{"name": "tokenOut", "type": "address"},
					{"name": "amountIn", "type": "uint256"},
					{"name": "fee", "type": "uint24"},
					{"name": "sqrtPriceLimitX96", "type": "uint160"}
				],
				"name": "params",
				"type": "tuple"
			}
		],
		"name": "quoteExactInputSingle",
		"outputs": [
			{"name": "amountOut", "type": "uint256"},
			{"name": "sqrtPriceX96After", "type": "uint160"},
			{"name": "initializedTicksCrossed", "type": "uint32"},
			{"name": "gasEstimate", "type": "uint256"}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

var oneETH = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ETHPriceUSD 主网 ETH/USDC 价格
// 经主网 QuoterV2 报 1 WETH → USDC（0.05% 池），结果走价格缓存。
func (r *Reader) ETHPriceUSD(ctx context.Context) (decimal.Decimal, error) {
	wethKey := domain.NormalizeAddress(config.MainnetWETH.Hex())
	if price, ok := r.cache.Get(1, wethKey); ok {
		return price, nil
	}

	mainnet, ok := r.chains.Get(1)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: 需要以太坊主网 RPC", ErrPricingChainDown)
	}

	params := struct {
		TokenIn           common.Address
		TokenOut          common.Address
		AmountIn          *big.Int
		Fee               *big.Int
		SqrtPriceLimitX96 *big.Int
	}{
		TokenIn:           config.MainnetWETH,
		TokenOut:          config.MainnetUSDC,
		AmountIn:          new(big.Int).Set(oneETH),
		Fee:               new(big.Int).SetUint64(uint64(config.MainnetFeeTier)),
		SqrtPriceLimitX96: big.NewInt(0),
	}

	data, err := r.quoterABI.Pack("quoteExactInputSingle", params)
	if err != nil {
		return decimal.Zero, fmt.Errorf("打包quoteExactInputSingle参数失败: %w", err)
	}
	quoter := config.MainnetQuoterV2
	raw, err := mainnet.Client().CallContract(ctx, ethereum.CallMsg{To: &quoter, Data: data}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("调用quoteExactInputSingle失败: %w", err)
	}
	vals, err := r.quoterABI.Unpack("quoteExactInputSingle", raw)
	if err != nil || len(vals) == 0 {
		return decimal.Zero, fmt.Errorf("解析quoteExactInputSingle结果失败: %w", err)
	}
	amountOut, ok := vals[0].(*big.Int)
	if !ok {
		return decimal.Zero, fmt.Errorf("quoteExactInputSingle 返回类型异常")
	}

	price := chains.FromWei(amountOut, 6)
	if price.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("ETH 报价非法: %s", price)
	}
	r.cache.Set(1, wethKey, price)
	return price, nil
}
