package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/tokenbot/gotrader/internal/chains"
	"github.com/tokenbot/gotrader/internal/config"
	"github.com/tokenbot/gotrader/internal/domain"
	"github.com/tokenbot/gotrader/internal/registry"
	"github.com/tokenbot/gotrader/pkg/logger"
)

// ErrNoPoolFound 工厂上没有该代币的任何池子
// 找不到池子的代币无法定价，必须排除在监控之外，不做任何兜底。
var ErrNoPoolFound = errors.New("没有发现可用池子")

// v3PoolLiquidityABI 候选池子的流动性读数
const v3PoolLiquidityABI = `[
	{
		"inputs": [],
		"name": "liquidity",
		"outputs": [{"name": "", "type": "uint128"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// Scout 链上池子发现：V3 工厂按 报价币 × 费率 穷举
type Scout struct {
	chains  *chains.Manager
	reg     *registry.Registry
	poolABI abi.ABI
}

// NewScout 创建池子发现器
func NewScout(m *chains.Manager, reg *registry.Registry) (*Scout, error) {
	poolABI, err := abi.JSON(strings.NewReader(v3PoolLiquidityABI))
	if err != nil {
		return nil, fmt.Errorf("解析池子流动性 ABI失败: %w", err)
	}
	return &Scout{chains: m, reg: reg, poolABI: poolABI}, nil
}

// EnsurePool 取代币的最优池子，库里没有新鲜记录时触发链上发现
func (s *Scout) EnsurePool(ctx context.Context, chainID uint64, token string) (*domain.Pool, error) {
	pool, err := s.reg.GetBestPool(ctx, chainID, token)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		return pool, nil
	}
	return s.DiscoverPools(ctx, chainID, token)
}

// DiscoverPools 工厂穷举 {WETH, USDC} × {500, 3000, 10000}
// 每个非零池子连同链上流动性读数入库，返回流动性最高的一个。
func (s *Scout) DiscoverPools(ctx context.Context, chainID uint64, token string) (*domain.Pool, error) {
	cctx, ok := s.chains.Get(chainID)
	if !ok {
		return nil, fmt.Errorf("链 %d 未连接", chainID)
	}
	cfg := cctx.Config
	tokenAddr := common.HexToAddress(token)

	quotes := []struct {
		addr common.Address
		sym  string
	}{
		{cfg.WETH, "WETH"},
		{cfg.USDC, "USDC"},
	}

	var best *domain.Pool
	for _, q := range quotes {
		if q.addr == tokenAddr {
			continue
		}
		for _, fee := range config.V3FeeTiers {
			poolAddr, err := cctx.V3GetPool(ctx, tokenAddr, q.addr, fee)
			if err != nil {
				logger.Debugf("getPool %s/%s fee=%d 失败: %v", token, q.sym, fee, err)
				continue
			}
			if (poolAddr == common.Address{}) {
				continue
			}

			liquidity := s.poolLiquidity(ctx, cctx, poolAddr)
			p := &domain.Pool{
				ChainID:      chainID,
				Token:        domain.NormalizeAddress(token),
				Address:      domain.NormalizeAddress(poolAddr.Hex()),
				FeeTier:      fee,
				QuoteToken:   q.sym,
				Liquidity:    liquidity,
				TokenIsZero:  bytes.Compare(tokenAddr.Bytes(), q.addr.Bytes()) < 0,
				DiscoveredAt: time.Now(),
			}
			if err := s.reg.SavePool(ctx, p); err != nil {
				logger.Warnf("池子入库失败: %v", err)
			}
			logger.Infof("[V3] 发现 %s 池子 chain=%s fee=%d liquidity=%s (%s)",
				q.sym, cfg.Name, fee, liquidity, p.Address[:10]+"...")

			if best == nil || p.Liquidity.GreaterThan(best.Liquidity) {
				best = p
			}
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: %d:%s", ErrNoPoolFound, chainID, token)
	}
	return best, nil
}

// poolLiquidity 读池子流动性，失败按 0 处理（池子仍然入库）
func (s *Scout) poolLiquidity(ctx context.Context, cctx *chains.Context, pool common.Address) decimal.Decimal {
	data, err := s.poolABI.Pack("liquidity")
	if err != nil {
		return decimal.Zero
	}
	raw, err := cctx.Client().CallContract(ctx, ethereum.CallMsg{To: &pool, Data: data}, nil)
	if err != nil {
		logger.Debugf("读取池子 %s 流动性失败: %v", pool.Hex(), err)
		return decimal.Zero
	}
	var liquidity *big.Int
	if err := s.poolABI.UnpackIntoInterface(&liquidity, "liquidity", raw); err != nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(liquidity, 0)
}
