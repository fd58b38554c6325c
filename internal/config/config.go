package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tokenbot/gotrader/pkg/secretstore"
)

// 交易默认参数
const (
	DefaultTakeProfitPct = 2.0  // 止盈 2%
	DefaultStopLossPct   = 2.0  // 止损 2%
	DefaultGasReserveETH = 0.01 // 每条链保留的原生币下限

	DefaultEntryIntervalTicks = 10               // 每 N 个 tick 检查一次建仓
	DefaultTickInterval       = 1 * time.Second  // 主循环 tick
	DefaultStatusInterval     = 15 * time.Second // 状态日志间隔
	DefaultSwapDeadline       = 300 * time.Second
	DefaultSwapGasLimit       = uint64(600000)
	DefaultVolatilitySamples  = 20

	DefaultMaxConsecutiveFailures = 5 // 连续执行失败熔断阈值
)

// WalletConfig 钱包配置（私钥优先，其次助记词派生）
type WalletConfig struct {
	PrivateKey     string
	Mnemonic       string
	DerivationPath string
}

// TradingConfig 交易参数
type TradingConfig struct {
	TakeProfitPct      float64       // 止盈百分比（2.0 = 2%）
	StopLossPct        float64       // 止损百分比
	GasReserveETH      float64       // gas 保留下限（原生币单位）
	EntryIntervalTicks int           // 建仓检查间隔（tick 数）
	TickInterval       time.Duration // 主循环 tick
	StatusInterval     time.Duration // 状态日志间隔
	SwapDeadline       time.Duration // 交易 deadline
	SwapGasLimit       uint64        // 交易 gas 上限
	VolatilitySamples  int           // 波动率采样次数
	DryRun             bool          // 纸交易模式：不发真实交易

	MaxConsecutiveFailures int     // 连续链上执行失败熔断阈值，0 关闭
	DailyLossLimitUSD      float64 // 当日已实现亏损熔断上限（USD），0 关闭
}

// StorageConfig 持久化路径
type StorageConfig struct {
	RegistryPath    string // 代币/仓位/成交 SQLite
	WhitelistPath   string // 白名单 SQLite
	SecretStorePath string // badger 密钥库（可选）
}

// APIConfig 控制面 REST 服务
type APIConfig struct {
	Listen string // 监听地址，例如 :4000
}

// ScanConfig 转账扫描数据源
type ScanConfig struct {
	AlchemyAPIKey   string
	EtherscanAPIKey string
}

// FlagsConfig 兼容旧部署的控制标志文件
type FlagsConfig struct {
	StopFlag    string
	SellAllFlag string
}

// Config 应用配置
type Config struct {
	Wallet   WalletConfig
	Trading  TradingConfig
	Storage  StorageConfig
	API      APIConfig
	Scan     ScanConfig
	Flags    FlagsConfig
	LogLevel string
	LogFile  string
}

// ConfigFile 配置文件结构（YAML 解析）
type ConfigFile struct {
	Trading struct {
		TakeProfitPct      float64 `yaml:"take_profit_pct"`
		StopLossPct        float64 `yaml:"stop_loss_pct"`
		GasReserveETH      float64 `yaml:"gas_reserve_eth"`
		EntryIntervalTicks int     `yaml:"entry_interval_ticks"`
		VolatilitySamples  int     `yaml:"volatility_samples"`
		DryRun             bool    `yaml:"dry_run"`

		MaxConsecutiveFailures int     `yaml:"max_consecutive_failures"`
		DailyLossLimitUSD      float64 `yaml:"daily_loss_limit_usd"`
	} `yaml:"trading"`
	Storage struct {
		RegistryPath    string `yaml:"registry_path"`
		WhitelistPath   string `yaml:"whitelist_path"`
		SecretStorePath string `yaml:"secret_store_path"`
	} `yaml:"storage"`
	API struct {
		Listen string `yaml:"listen"`
	} `yaml:"api"`
	Flags struct {
		StopFlag    string `yaml:"stop_flag"`
		SellAllFlag string `yaml:"sell_all_flag"`
	} `yaml:"flags"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

var globalConfig *Config
var configFilePath string

// SetConfigPath 设置配置文件路径
func SetConfigPath(path string) {
	configFilePath = path
}

// Get 获取全局配置（如果已加载）
func Get() *Config {
	return globalConfig
}

// Load 加载配置：.env → 配置文件 → 环境变量 → 密钥库回退
func Load() (*Config, error) {
	return LoadFromFile(configFilePath)
}

// LoadFromFile 从指定文件加载配置
func LoadFromFile(filePath string) (*Config, error) {
	// .env 不存在不算错误
	_ = godotenv.Load()

	var cf ConfigFile
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("读取配置文件失败 %s: %w", filePath, err)
			}
		} else if err := yaml.Unmarshal(data, &cf); err != nil {
			return nil, fmt.Errorf("解析 YAML 配置文件失败 %s: %w", filePath, err)
		}
	}

	config := &Config{
		Wallet: WalletConfig{
			PrivateKey:     getEnv("PRIVATE_KEY", getEnv("ETHEREUM_PRIVATE_KEY", "")),
			Mnemonic:       getEnv("MNEMONIC", ""),
			DerivationPath: getEnv("DERIVATION_PATH", ""),
		},
		Trading: TradingConfig{
			TakeProfitPct:      pickFloat(cf.Trading.TakeProfitPct, parseFloatEnv("TAKE_PROFIT_PCT", DefaultTakeProfitPct)),
			StopLossPct:        pickFloat(cf.Trading.StopLossPct, parseFloatEnv("STOP_LOSS_PCT", DefaultStopLossPct)),
			GasReserveETH:      pickFloat(cf.Trading.GasReserveETH, parseFloatEnv("GAS_RESERVE_ETH", DefaultGasReserveETH)),
			EntryIntervalTicks: pickInt(cf.Trading.EntryIntervalTicks, parseIntEnv("ENTRY_INTERVAL_TICKS", DefaultEntryIntervalTicks)),
			TickInterval:       DefaultTickInterval,
			StatusInterval:     DefaultStatusInterval,
			SwapDeadline:       DefaultSwapDeadline,
			SwapGasLimit:       DefaultSwapGasLimit,
			VolatilitySamples:  pickInt(cf.Trading.VolatilitySamples, parseIntEnv("VOLATILITY_SAMPLES", DefaultVolatilitySamples)),
			DryRun:             cf.Trading.DryRun || parseBoolEnv("DRY_RUN", false),

			MaxConsecutiveFailures: pickInt(cf.Trading.MaxConsecutiveFailures, parseIntEnv("MAX_CONSECUTIVE_FAILURES", DefaultMaxConsecutiveFailures)),
			DailyLossLimitUSD:      pickFloat(cf.Trading.DailyLossLimitUSD, parseFloatEnv("DAILY_LOSS_LIMIT_USD", 0)),
		},
		Storage: StorageConfig{
			RegistryPath:    pickString(cf.Storage.RegistryPath, getEnv("REGISTRY_DB", "data/registry.db")),
			WhitelistPath:   pickString(cf.Storage.WhitelistPath, getEnv("WHITELIST_DB", "data/whitelist.db")),
			SecretStorePath: pickString(cf.Storage.SecretStorePath, getEnv("SECRET_STORE_PATH", "")),
		},
		API: APIConfig{
			Listen: pickString(cf.API.Listen, getEnv("API_LISTEN", ":4000")),
		},
		Scan: ScanConfig{
			AlchemyAPIKey:   getEnv("ALCHEMY_API_KEY", ""),
			EtherscanAPIKey: getEnv("ETHERSCAN_API_KEY", ""),
		},
		Flags: FlagsConfig{
			StopFlag:    pickString(cf.Flags.StopFlag, getEnv("STOP_FLAG", "/tmp/trader_stop")),
			SellAllFlag: pickString(cf.Flags.SellAllFlag, getEnv("SELL_ALL_FLAG", "/tmp/trader_sell_all")),
		},
		LogLevel: pickString(cf.LogLevel, getEnv("LOG_LEVEL", "info")),
		LogFile:  pickString(cf.LogFile, getEnv("LOG_FILE", "logs/trader.log")),
	}

	// 环境变量没有私钥时，尝试从加密密钥库读取
	if config.Wallet.PrivateKey == "" && config.Wallet.Mnemonic == "" && config.Storage.SecretStorePath != "" {
		if err := loadWalletFromSecretStore(config); err != nil {
			return nil, fmt.Errorf("从密钥库加载钱包失败: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	globalConfig = config
	configFilePath = filePath
	return config, nil
}

func loadWalletFromSecretStore(config *Config) error {
	encKey, err := secretstore.ParseKey(os.Getenv("SECRET_STORE_KEY"))
	if err != nil {
		return err
	}
	store, err := secretstore.Open(secretstore.OpenOptions{
		Path:          config.Storage.SecretStorePath,
		EncryptionKey: encKey,
		ReadOnly:      true,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	if v, ok, err := store.GetString("PRIVATE_KEY"); err != nil {
		return err
	} else if ok {
		config.Wallet.PrivateKey = v
	}
	if config.Wallet.PrivateKey == "" {
		if v, ok, err := store.GetString("MNEMONIC"); err != nil {
			return err
		} else if ok {
			config.Wallet.Mnemonic = v
		}
	}
	if config.Scan.AlchemyAPIKey == "" {
		if v, ok, _ := store.GetString("ALCHEMY_API_KEY"); ok {
			config.Scan.AlchemyAPIKey = v
		}
	}
	if config.Scan.EtherscanAPIKey == "" {
		if v, ok, _ := store.GetString("ETHERSCAN_API_KEY"); ok {
			config.Scan.EtherscanAPIKey = v
		}
	}
	return nil
}

// EnabledChains 根据环境变量里配置的 RPC URL 决定启用哪些链
func (c *Config) EnabledChains() map[uint64]string {
	enabled := make(map[uint64]string)
	for chainID, chain := range Chains {
		if url := strings.TrimSpace(os.Getenv(chain.RPCEnvKey)); url != "" {
			enabled[chainID] = url
		}
	}
	return enabled
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Wallet.PrivateKey == "" && c.Wallet.Mnemonic == "" {
		return fmt.Errorf("PRIVATE_KEY 或 MNEMONIC 至少需要配置一个")
	}
	if c.Trading.TakeProfitPct <= 0 {
		return fmt.Errorf("TAKE_PROFIT_PCT 必须大于 0")
	}
	if c.Trading.StopLossPct <= 0 || c.Trading.StopLossPct >= 100 {
		return fmt.Errorf("STOP_LOSS_PCT 必须在 0 到 100 之间")
	}
	if c.Trading.GasReserveETH < 0 {
		return fmt.Errorf("GAS_RESERVE_ETH 不能为负数")
	}
	if c.Trading.EntryIntervalTicks <= 0 {
		return fmt.Errorf("ENTRY_INTERVAL_TICKS 必须大于 0")
	}
	if c.Storage.RegistryPath == "" {
		return fmt.Errorf("REGISTRY_DB 不能为空")
	}
	if c.Storage.WhitelistPath == "" {
		return fmt.Errorf("WHITELIST_DB 不能为空")
	}
	return nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv 解析整数环境变量
func parseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// parseFloatEnv 解析浮点数环境变量
func parseFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// parseBoolEnv 解析布尔环境变量
func parseBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// pickString 配置文件优先，其次环境变量/默认值
func pickString(fileValue, envValue string) string {
	if fileValue != "" {
		return fileValue
	}
	return envValue
}

func pickInt(fileValue, envValue int) int {
	if fileValue > 0 {
		return fileValue
	}
	return envValue
}

func pickFloat(fileValue, envValue float64) float64 {
	if fileValue > 0 {
		return fileValue
	}
	return envValue
}
