package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tokenbot/gotrader/internal/api"
	"github.com/tokenbot/gotrader/internal/chains"
	"github.com/tokenbot/gotrader/internal/config"
	"github.com/tokenbot/gotrader/internal/discovery"
	"github.com/tokenbot/gotrader/internal/executor"
	"github.com/tokenbot/gotrader/internal/monitor"
	"github.com/tokenbot/gotrader/internal/pricing"
	"github.com/tokenbot/gotrader/internal/registry"
	"github.com/tokenbot/gotrader/internal/risk"
	"github.com/tokenbot/gotrader/internal/scanner"
	"github.com/tokenbot/gotrader/internal/trader"
	"github.com/tokenbot/gotrader/internal/whitelist"
	"github.com/tokenbot/gotrader/pkg/logger"
	"github.com/tokenbot/gotrader/pkg/shutdown"
	"github.com/tokenbot/gotrader/pkg/wallet"
)

func main() {
	configPath := flag.String("config", "", "YAML 配置文件路径（可选，默认环境变量）")
	flag.Parse()

	if *configPath != "" {
		config.SetConfigPath(*configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: cfg.LogFile,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	w, err := loadWallet(cfg)
	if err != nil {
		logger.Errorf("加载钱包失败: %v", err)
		os.Exit(1)
	}
	logger.Infof("交易钱包: %s", w.Address.Hex())

	shutdownMgr := shutdown.NewManager()

	reg, err := registry.Open(cfg.Storage.RegistryPath)
	if err != nil {
		logger.Errorf("打开仓位库失败: %v", err)
		os.Exit(1)
	}
	shutdownMgr.OnShutdown(func(context.Context) { _ = reg.Close() })

	wl, err := whitelist.Open(cfg.Storage.WhitelistPath)
	if err != nil {
		logger.Errorf("打开白名单库失败: %v", err)
		os.Exit(1)
	}
	shutdownMgr.OnShutdown(func(context.Context) { _ = wl.Close() })

	chainMgr, err := chains.NewManager(cfg)
	if err != nil {
		logger.Errorf("连接链 RPC 失败: %v", err)
		os.Exit(1)
	}
	shutdownMgr.OnShutdown(func(context.Context) { chainMgr.Close() })

	pricer, err := pricing.NewReader(chainMgr, reg)
	if err != nil {
		logger.Errorf("初始化价格读取失败: %v", err)
		os.Exit(1)
	}
	scout, err := discovery.NewScout(chainMgr, reg)
	if err != nil {
		logger.Errorf("初始化池子发现失败: %v", err)
		os.Exit(1)
	}
	breaker := risk.NewBreaker(risk.BreakerConfig{
		MaxConsecutiveFailures: int64(cfg.Trading.MaxConsecutiveFailures),
		DailyLossLimitUSD:      cfg.Trading.DailyLossLimitUSD,
	})
	exec, err := executor.NewExecutor(chainMgr, w, cfg, breaker)
	if err != nil {
		logger.Errorf("初始化交易执行失败: %v", err)
		os.Exit(1)
	}

	scan := scanner.NewScanner(chainMgr, reg, wl, scout, w.Address, cfg.Scan)
	mon := monitor.NewMonitor(chainMgr, reg, pricer, exec, w.Address, cfg.Trading, breaker)

	bot := trader.New(trader.Deps{
		Config:    cfg,
		Chains:    chainMgr,
		Registry:  reg,
		Whitelist: wl,
		Pricer:    pricer,
		Scanner:   scan,
		Monitor:   mon,
		Executor:  exec,
		Wallet:    w,
		Breaker:   breaker,
	})

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// 控制面 API 独立 goroutine，与主循环只通过仓位库和信号通道往来
	apiSrv := api.New(reg, wl, pricer, bot)
	httpSrv := &http.Server{
		Addr:              cfg.API.Listen,
		Handler:           apiSrv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infof("API 服务监听 %s", cfg.API.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("API 服务异常退出: %v", err)
		}
	}()

	runErr := make(chan error, 1)
	go func() { runErr <- bot.Run(rootCtx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Infof("收到信号 %s，开始关闭", sig)
		rootCancel()
		<-runErr
	case err := <-runErr:
		if err != nil {
			logger.Errorf("主循环退出: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(shutdownCtx)
	shutdownMgr.Shutdown(shutdownCtx)
	logger.Info("交易机器人已停止")
}

// loadWallet 私钥优先，没有私钥再用助记词推导
// 密钥库回退已在 config.Load 里完成，这里拿到的就是最终凭据。
func loadWallet(cfg *config.Config) (*wallet.Wallet, error) {
	if cfg.Wallet.PrivateKey != "" {
		return wallet.FromPrivateKey(cfg.Wallet.PrivateKey)
	}
	if cfg.Wallet.Mnemonic != "" {
		return wallet.FromMnemonic(cfg.Wallet.Mnemonic, cfg.Wallet.DerivationPath)
	}
	return nil, fmt.Errorf("未配置 PRIVATE_KEY 或 MNEMONIC")
}
