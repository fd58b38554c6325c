package chains

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/tokenbot/gotrader/internal/config"
	"github.com/tokenbot/gotrader/pkg/cache"
	"github.com/tokenbot/gotrader/pkg/logger"
)

// Context 单条链的上下文：RPC 客户端、合约地址与已解析的 ABI
type Context struct {
	Config config.ChainConfig
	RPCURL string // 原始 RPC 端点，转账扫描直接走 JSON-RPC 需要

	client       *ethclient.Client
	erc20ABI     abi.ABI
	v3FactoryABI abi.ABI
	gasCache     *cache.InMemoryCache[uint64, GasParams]
	gasReserve   decimal.Decimal
}

// Manager 所有启用链的上下文集合
// 启用与否由链的 RPC 环境变量决定；连不上的链跳过，不让单链故障拖垮整体。
type Manager struct {
	contexts map[uint64]*Context
}

// NewManager 按配置连接所有启用链
func NewManager(cfg *config.Config) (*Manager, error) {
	erc20ABI, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("解析ERC20 ABI失败: %w", err)
	}
	v3FactoryABI, err := abi.JSON(strings.NewReader(V3FactoryABI))
	if err != nil {
		return nil, fmt.Errorf("解析V3工厂 ABI失败: %w", err)
	}

	gasCache := cache.NewInMemoryCache[uint64, GasParams](10 * time.Second)
	reserve := decimal.NewFromFloat(cfg.Trading.GasReserveETH)

	m := &Manager{contexts: make(map[uint64]*Context)}
	for chainID, rpcURL := range cfg.EnabledChains() {
		chainCfg, ok := config.GetChain(chainID)
		if !ok {
			logger.Warnf("链 %d 未在地址表中定义，跳过", chainID)
			continue
		}
		client, err := ethclient.Dial(rpcURL)
		if err != nil {
			logger.Warnf("连接 %s RPC 失败，跳过该链: %v", chainCfg.Name, err)
			continue
		}
		m.contexts[chainID] = &Context{
			Config:       chainCfg,
			RPCURL:       rpcURL,
			client:       client,
			erc20ABI:     erc20ABI,
			v3FactoryABI: v3FactoryABI,
			gasCache:     gasCache,
			gasReserve:   reserve,
		}
		logger.Infof("已连接链 %s (chain_id=%d)", chainCfg.Name, chainID)
	}

	if len(m.contexts) == 0 {
		return nil, fmt.Errorf("没有可用的链，请检查 RPC 环境变量")
	}
	return m, nil
}

// Get 取指定链的上下文
func (m *Manager) Get(chainID uint64) (*Context, bool) {
	c, ok := m.contexts[chainID]
	return c, ok
}

// All 所有已连接链的上下文
func (m *Manager) All() map[uint64]*Context {
	return m.contexts
}

// Close 关闭所有 RPC 连接
func (m *Manager) Close() {
	for _, c := range m.contexts {
		c.client.Close()
	}
}

// ChainID 链 ID
func (c *Context) ChainID() uint64 {
	return c.Config.ChainID
}

// Client 底层 ethclient，供价格读取与交易执行复用
func (c *Context) Client() *ethclient.Client {
	return c.client
}
