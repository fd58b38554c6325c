package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/tokenbot/gotrader/internal/chains"
	"github.com/tokenbot/gotrader/internal/config"
	"github.com/tokenbot/gotrader/internal/domain"
	"github.com/tokenbot/gotrader/internal/registry"
	"github.com/tokenbot/gotrader/pkg/cache"
	"github.com/tokenbot/gotrader/pkg/logger"
)

// ErrNoPool 没有可用的池子记录，代币无法定价
var ErrNoPool = errors.New("没有可用的池子记录")

// ErrPricingChainDown 定价链未连接
var ErrPricingChainDown = errors.New("定价链未连接")

const (
	priceRetryAttempts = 3
	priceRetryDelay    = 500 * time.Millisecond
)

// Reader 链上价格读取器
// 只读主网池子：测试网持仓按 TESTNET→MAINNET 映射到主网定价，永不使用链下行情。
type Reader struct {
	chains *chains.Manager
	reg    *registry.Registry
	cache  *cache.PriceCache

	v3PoolABI  abi.ABI
	poolMgrABI abi.ABI
	quoterABI  abi.ABI
}

// NewReader 创建价格读取器
func NewReader(m *chains.Manager, reg *registry.Registry) (*Reader, error) {
	v3PoolABI, err := abi.JSON(strings.NewReader(V3PoolABI))
	if err != nil {
		return nil, fmt.Errorf("解析V3池子 ABI失败: %w", err)
	}
	poolMgrABI, err := abi.JSON(strings.NewReader(PoolManagerABI))
	if err != nil {
		return nil, fmt.Errorf("解析PoolManager ABI失败: %w", err)
	}
	quoterABI, err := abi.JSON(strings.NewReader(QuoterV2ABI))
	if err != nil {
		return nil, fmt.Errorf("解析QuoterV2 ABI失败: %w", err)
	}
	return &Reader{
		chains:     m,
		reg:        reg,
		cache:      cache.NewPriceCache(cache.DefaultPriceTTL),
		v3PoolABI:  v3PoolABI,
		poolMgrABI: poolMgrABI,
		quoterABI:  quoterABI,
	}, nil
}

// TokenPrice 代币的 USD 价格，15 秒内命中缓存不上链
func (r *Reader) TokenPrice(ctx context.Context, chainID uint64, token string, tokenDecimals int32) (decimal.Decimal, error) {
	token = domain.NormalizeAddress(token)
	if price, ok := r.cache.Get(chainID, token); ok {
		return price, nil
	}

	price, err := r.tokenPriceFresh(ctx, chainID, token, tokenDecimals)
	if err != nil {
		return decimal.Zero, err
	}
	r.cache.Set(chainID, token, price)
	return price, nil
}

// TokenPriceRetry 带重试的价格读取，供退出决策使用
// 读不到价格绝不猜测：重试用尽后返回错误，调用方本轮跳过该仓位。
func (r *Reader) TokenPriceRetry(ctx context.Context, chainID uint64, token string, tokenDecimals int32) (decimal.Decimal, error) {
	var lastErr error
	for attempt := 1; attempt <= priceRetryAttempts; attempt++ {
		price, err := r.TokenPrice(ctx, chainID, token, tokenDecimals)
		if err == nil {
			return price, nil
		}
		lastErr = err
		if attempt < priceRetryAttempts {
			select {
			case <-ctx.Done():
				return decimal.Zero, ctx.Err()
			case <-time.After(priceRetryDelay):
			}
		}
	}
	return decimal.Zero, fmt.Errorf("价格读取重试 %d 次仍失败: %w", priceRetryAttempts, lastErr)
}

// Invalidate 清掉某代币的缓存价格（成交后强制下轮重新读链）
func (r *Reader) Invalidate(chainID uint64, token string) {
	r.cache.Invalidate(chainID, domain.NormalizeAddress(token))
}

// tokenPriceFresh 绕过缓存直接读链
func (r *Reader) tokenPriceFresh(ctx context.Context, chainID uint64, token string, tokenDecimals int32) (decimal.Decimal, error) {
	pool, err := r.reg.GetBestPool(ctx, chainID, token)
	if err != nil {
		return decimal.Zero, err
	}
	if pool == nil {
		return decimal.Zero, fmt.Errorf("%w: %d:%s", ErrNoPool, chainID, token)
	}
	return r.poolPrice(ctx, chainID, token, pool, tokenDecimals)
}

// poolPrice 主网池子读价，先 V3 工厂定位，找不到再试 V4 PoolManager
func (r *Reader) poolPrice(ctx context.Context, chainID uint64, token string, pool *domain.Pool, tokenDecimals int32) (decimal.Decimal, error) {
	priceChainID := config.PricingChainID(chainID)
	priceCtx, ok := r.chains.Get(priceChainID)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: chain_id=%d", ErrPricingChainDown, priceChainID)
	}

	// 报价币按符号解析到定价链上的地址
	var quoteAddr common.Address
	var quoteDecimals int32
	switch strings.ToUpper(pool.QuoteToken) {
	case "USDC", "USDT":
		quoteAddr = priceCtx.Config.USDC
		quoteDecimals = priceCtx.Config.USDCDecimals
	default:
		quoteAddr = priceCtx.Config.WETH
		quoteDecimals = priceCtx.Config.WETHDecimals
	}
	tokenAddr := common.HexToAddress(token)

	sqrtPrice, tokenIsZero, err := r.v3SqrtPrice(ctx, priceCtx, tokenAddr, quoteAddr, pool.FeeTier)
	if err != nil {
		logger.Debugf("V3 读价失败，改试 V4: %v", err)
		sqrtPrice, tokenIsZero, err = r.v4SqrtPrice(ctx, priceCtx, tokenAddr, quoteAddr, pool.FeeTier)
		if err != nil {
			return decimal.Zero, err
		}
	}

	priceInQuote, err := PriceFromSqrtX96(sqrtPrice, tokenDecimals, quoteDecimals, tokenIsZero)
	if err != nil {
		return decimal.Zero, err
	}

	// 报价币换算 USD
	switch strings.ToUpper(pool.QuoteToken) {
	case "USDC", "USDT", "DAI":
		return priceInQuote, nil
	default:
		ethPrice, err := r.ETHPriceUSD(ctx)
		if err != nil {
			return decimal.Zero, fmt.Errorf("WETH 报价换算 USD 失败: %w", err)
		}
		return priceInQuote.Mul(ethPrice), nil
	}
}
