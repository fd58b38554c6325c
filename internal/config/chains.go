package config

import (
	"github.com/ethereum/go-ethereum/common"
)

// Permit2Address Permit2 在所有链上使用同一地址
var Permit2Address = common.HexToAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3")

// Uniswap V3 Factory 地址
// 来源: https://docs.uniswap.org/contracts/v3/reference/deployments/
var (
	v3FactoryMainnet = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	v3FactorySepolia = common.HexToAddress("0x0227628f3F023bb0B980b67D528571c95c6DaC1c")
)

// 主网定价固定使用以太坊主网的 USDC/WETH 0.05% 池
var (
	MainnetWETH     = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	MainnetUSDC     = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	MainnetQuoterV2 = common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e")
	MainnetFeeTier  = uint32(500)
)

// V3FeeTiers 池子发现时尝试的费率档位
var V3FeeTiers = []uint32{500, 3000, 10000}

// TickSpacingForFee V4 PoolKey 的 tickSpacing 由费率决定
func TickSpacingForFee(fee uint32) int32 {
	switch fee {
	case 100:
		return 1
	case 500:
		return 10
	case 3000:
		return 60
	case 10000:
		return 200
	default:
		return 60
	}
}

// ChainConfig 单条链的合约地址与元数据
// 地址来源: https://docs.uniswap.org/contracts/v4/deployments
type ChainConfig struct {
	ChainID         uint64
	Name            string
	RPCEnvKey       string // RPC URL 环境变量名
	PoolManager     common.Address
	UniversalRouter common.Address
	V3Factory       common.Address
	USDC            common.Address
	WETH            common.Address
	USDCDecimals    int32
	WETHDecimals    int32
	Testnet         bool
}

// Chains 支持的链（主网 + 测试网）
var Chains = map[uint64]ChainConfig{
	1: {
		ChainID:         1,
		Name:            "Ethereum",
		RPCEnvKey:       "MAINNET_RPC_URL",
		PoolManager:     common.HexToAddress("0x000000000004444c5dc75cB358380D2e3dE08A90"),
		UniversalRouter: common.HexToAddress("0x66a9893cc07d91d95644aedd05d03f95e1dba8af"),
		V3Factory:       v3FactoryMainnet,
		USDC:            MainnetUSDC,
		WETH:            MainnetWETH,
		USDCDecimals:    6,
		WETHDecimals:    18,
	},
	8453: {
		ChainID:         8453,
		Name:            "Base",
		RPCEnvKey:       "BASE_RPC_URL",
		PoolManager:     common.HexToAddress("0x498581ff718922c3f8e6a244956af099b2652b2b"),
		UniversalRouter: common.HexToAddress("0x6ff5693b99212da76ad316178a184ab56d299b43"),
		V3Factory:       v3FactoryMainnet,
		USDC:            common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		WETH:            common.HexToAddress("0x4200000000000000000000000000000000000006"),
		USDCDecimals:    6,
		WETHDecimals:    18,
	},
	42161: {
		ChainID:         42161,
		Name:            "Arbitrum",
		RPCEnvKey:       "ARBITRUM_RPC_URL",
		PoolManager:     common.HexToAddress("0x360e68faccca8ca495c1b759fd9eee466db9fb32"),
		UniversalRouter: common.HexToAddress("0xa51afafe0263b40edaef0df8781ea9aa03e381a3"),
		V3Factory:       v3FactoryMainnet,
		USDC:            common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"),
		WETH:            common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"),
		USDCDecimals:    6,
		WETHDecimals:    18,
	},
	137: {
		ChainID:         137,
		Name:            "Polygon",
		RPCEnvKey:       "POLYGON_RPC_URL",
		PoolManager:     common.HexToAddress("0x67366782805870060151383f4bbff9dab53e5cd6"),
		UniversalRouter: common.HexToAddress("0x1095692a6237d83c6a72f3f5efedb9a670c49223"),
		V3Factory:       v3FactoryMainnet,
		USDC:            common.HexToAddress("0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"),
		WETH:            common.HexToAddress("0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619"),
		USDCDecimals:    6,
		WETHDecimals:    18,
	},
	10: {
		ChainID:         10,
		Name:            "Optimism",
		RPCEnvKey:       "OPTIMISM_RPC_URL",
		PoolManager:     common.HexToAddress("0x9a13f98cb987694c9f086b1f5eb990eea8264ec3"),
		UniversalRouter: common.HexToAddress("0x851116d9223fabed8e56c0e6b8ad0c31d98b3507"),
		V3Factory:       v3FactoryMainnet,
		USDC:            common.HexToAddress("0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"),
		WETH:            common.HexToAddress("0x4200000000000000000000000000000000000006"),
		USDCDecimals:    6,
		WETHDecimals:    18,
	},
	84532: {
		ChainID:         84532,
		Name:            "Base Sepolia",
		RPCEnvKey:       "BASE_SEPOLIA_RPC_URL",
		PoolManager:     common.HexToAddress("0x05E73354cFDd6745C338b50BcFDfA3Aa6fA03408"),
		UniversalRouter: common.HexToAddress("0x492e6456d9528771018deb9e87ef7750ef184104"),
		V3Factory:       v3FactorySepolia,
		USDC:            common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
		WETH:            common.HexToAddress("0x4200000000000000000000000000000000000006"),
		USDCDecimals:    6,
		WETHDecimals:    18,
		Testnet:         true,
	},
	421614: {
		ChainID:         421614,
		Name:            "Arbitrum Sepolia",
		RPCEnvKey:       "ARBITRUM_SEPOLIA_RPC_URL",
		PoolManager:     common.HexToAddress("0xFB3e0C6F74eB1a21CC1Da29aeC80D2Dfe6C9a317"),
		UniversalRouter: common.HexToAddress("0xefd1d4bd4cf1e86da286bb4cb1b8bced9c10ba47"),
		V3Factory:       v3FactorySepolia,
		USDC:            common.HexToAddress("0x75faf114eafb1BDbe2F0316DF893fd58CE46AA4d"),
		WETH:            common.HexToAddress("0x980B62Da83eFf3D4576C647993b0c1D7faf17c73"),
		USDCDecimals:    6,
		WETHDecimals:    18,
		Testnet:         true,
	},
	11155111: {
		ChainID:         11155111,
		Name:            "Ethereum Sepolia",
		RPCEnvKey:       "SEPOLIA_RPC_URL",
		PoolManager:     common.HexToAddress("0xE03A1074c86CFeDd5C142C4F04F1a1536e203543"),
		UniversalRouter: common.HexToAddress("0x3a9d48ab9751398bbfa63ad67599bb04e4bdf98b"),
		V3Factory:       v3FactorySepolia,
		USDC:            common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"),
		WETH:            common.HexToAddress("0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14"),
		USDCDecimals:    6,
		WETHDecimals:    18,
		Testnet:         true,
	},
}

// testnetToMainnet 测试网交易使用对应主网的池子定价
var testnetToMainnet = map[uint64]uint64{
	84532:    8453,
	421614:   42161,
	11155111: 1,
}

// GetChain 获取链配置，未定义的 chain_id 返回 false
func GetChain(chainID uint64) (ChainConfig, bool) {
	cfg, ok := Chains[chainID]
	return cfg, ok
}

// IsTestnet 是否测试网
func IsTestnet(chainID uint64) bool {
	cfg, ok := Chains[chainID]
	return ok && cfg.Testnet
}

// PricingChainID 返回定价所用的链：主网返回自身，测试网映射到对应主网
func PricingChainID(chainID uint64) uint64 {
	if mainnet, ok := testnetToMainnet[chainID]; ok {
		return mainnet
	}
	return chainID
}
