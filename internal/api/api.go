package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tokenbot/gotrader/internal/registry"
	"github.com/tokenbot/gotrader/internal/whitelist"
)

// Controls 主循环暴露给 API 的控制面
type Controls interface {
	RequestStop()
	ClearStop() error
	RequestSellAll()
	StopActive() bool
	SellAllActive() bool
	TradingHalted() bool
}

// PriceSource 实时价格来源，仓位接口用它算未实现盈亏
// 读不到价不算错误，接口按入场价降级返回。
type PriceSource interface {
	TokenPrice(ctx context.Context, chainID uint64, token string, tokenDecimals int32) (decimal.Decimal, error)
}

// Server 面板与紧急控制的 HTTP 服务
type Server struct {
	reg     *registry.Registry
	wl      *whitelist.Store
	pricer  PriceSource
	control Controls
}

// New 创建 API 服务，pricer 传 nil 时仓位接口不带实时价格
func New(reg *registry.Registry, wl *whitelist.Store, pricer PriceSource, control Controls) *Server {
	return &Server{reg: reg, wl: wl, pricer: pricer, control: control}
}

// Router 组装路由
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)
	r.GET("/ws", s.handleWS)

	api := r.Group("/api")
	api.GET("/positions", s.handlePositions)
	api.GET("/trades", s.handleTrades)
	api.GET("/wallet", s.handleWallet)
	api.GET("/tokens", s.handleTokens)
	api.GET("/dashboard", s.handleDashboard)

	api.POST("/emergency-stop", s.handleEmergencyStop)
	api.POST("/clear-stop", s.handleClearStop)
	api.POST("/sell-all", s.handleSellAll)

	wlg := api.Group("/whitelist")
	wlg.GET("/senders", s.handleSendersList)
	wlg.POST("/senders", s.handleSendersAdd)
	wlg.DELETE("/senders/:address", s.handleSendersRemove)
	wlg.GET("/tokens", s.handleWLTokensList)
	wlg.POST("/tokens", s.handleWLTokensAdd)
	wlg.POST("/tokens/:address/block", s.handleWLTokenBlock)

	return r
}
