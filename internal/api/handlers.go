package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tokenbot/gotrader/internal/config"
	"github.com/tokenbot/gotrader/internal/domain"
	"github.com/tokenbot/gotrader/pkg/logger"
)

type positionView struct {
	ID           string          `json:"id"`
	Token        string          `json:"token"`
	ChainID      uint64          `json:"chain_id"`
	ChainName    string          `json:"chain_name"`
	Symbol       string          `json:"symbol"`
	Status       string          `json:"status"`
	EntryPrice   decimal.Decimal `json:"entry_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Amount       decimal.Decimal `json:"amount"`
	ValueUSD     decimal.Decimal `json:"value_usd"`
	TakeProfit   decimal.Decimal `json:"take_profit"`
	StopLoss     decimal.Decimal `json:"stop_loss"`
	PnL          decimal.Decimal `json:"unrealized_pnl"`
	PnLPct       decimal.Decimal `json:"unrealized_pnl_pct"`
	Reason       string          `json:"reason,omitempty"`
	EntryTime    time.Time       `json:"entry_time"`
}

type tradeView struct {
	ID        string          `json:"id"`
	Side      string          `json:"side"`
	Token     string          `json:"token"`
	ChainID   uint64          `json:"chain_id"`
	ChainName string          `json:"chain_name"`
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	PnL       decimal.Decimal `json:"pnl"`
	TxHash    string          `json:"tx_hash,omitempty"`
	GasNative decimal.Decimal `json:"gas_native"`
	GasUSD    decimal.Decimal `json:"gas_usd"`
	Time      time.Time       `json:"timestamp"`
}

type walletView struct {
	Address  string          `json:"address"`
	ETH      decimal.Decimal `json:"eth"`
	WETH     decimal.Decimal `json:"weth"`
	USDC     decimal.Decimal `json:"usdc"`
	ETHPrice decimal.Decimal `json:"eth_price"`
	Time     time.Time       `json:"updated_at"`
}

type poolView struct {
	Address    string          `json:"address"`
	FeeTier    uint32          `json:"fee_tier"`
	QuoteToken string          `json:"quote_token"`
	Liquidity  decimal.Decimal `json:"liquidity"`
}

type tokenView struct {
	Address   string    `json:"address"`
	ChainID   uint64    `json:"chain_id"`
	ChainName string    `json:"chain_name"`
	Symbol    string    `json:"symbol"`
	Decimals  int32     `json:"decimals"`
	Active    bool      `json:"active"`
	Pool      *poolView `json:"pool,omitempty"`
}

func chainName(chainID uint64) string {
	if cfg, ok := config.GetChain(chainID); ok {
		return cfg.Name
	}
	return strconv.FormatUint(chainID, 10)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"stop_flag":      s.control.StopActive(),
		"sell_all_flag":  s.control.SellAllActive(),
		"trading_halted": s.control.TradingHalted(),
	})
}

func (s *Server) handlePositions(c *gin.Context) {
	views, err := s.positionViews(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": views, "count": len(views)})
}

// positionViews 未平仓仓位加上实时价与未实现盈亏
// 读不到价时按入场价渲染，不让面板因为一条链的 RPC 抖动空白。
func (s *Server) positionViews(ctx context.Context) ([]positionView, error) {
	open, err := s.reg.GetOpenPositions(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]positionView, 0, len(open))
	for i := range open {
		p := &open[i]
		current := p.EntryPrice
		if s.pricer != nil {
			if live, err := s.pricer.TokenPrice(ctx, p.ChainID, p.Token, p.Decimals); err == nil && live.IsPositive() {
				current = live
			}
		}
		pnl := current.Sub(p.EntryPrice).Mul(p.Amount)
		pct := decimal.Zero
		if p.EntryPrice.IsPositive() {
			pct = current.Div(p.EntryPrice).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100)).Round(4)
		}
		views = append(views, positionView{
			ID:           p.ID,
			Token:        p.Token,
			ChainID:      p.ChainID,
			ChainName:    chainName(p.ChainID),
			Symbol:       p.Symbol,
			Status:       string(p.Status),
			EntryPrice:   p.EntryPrice,
			CurrentPrice: current,
			Amount:       p.Amount,
			ValueUSD:     current.Mul(p.Amount),
			TakeProfit:   p.TakeProfit,
			StopLoss:     p.StopLoss,
			PnL:          pnl,
			PnLPct:       pct,
			Reason:       string(p.Reason),
			EntryTime:    p.EntryTime,
		})
	}
	return views, nil
}

func (s *Server) handleTrades(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	trades, err := s.reg.RecentTrades(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	total, err := s.reg.TotalPnL(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"trades":    tradeViews(trades),
		"count":     len(trades),
		"total_pnl": total,
	})
}

func tradeViews(trades []domain.Trade) []tradeView {
	views := make([]tradeView, 0, len(trades))
	for i := range trades {
		t := &trades[i]
		views = append(views, tradeView{
			ID:        t.ID,
			Side:      string(t.Side),
			Token:     t.Token,
			ChainID:   t.ChainID,
			ChainName: chainName(t.ChainID),
			Symbol:    t.Symbol,
			Price:     t.Price,
			Amount:    t.Amount,
			PnL:       t.PnL,
			TxHash:    t.TxHash,
			GasNative: t.GasNative,
			GasUSD:    t.GasUSD,
			Time:      t.Time,
		})
	}
	return views
}

func (s *Server) handleWallet(c *gin.Context) {
	snap, err := s.reg.LatestWalletSnapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, walletViewOf(snap))
}

func walletViewOf(snap *domain.WalletSnapshot) walletView {
	if snap == nil {
		return walletView{}
	}
	return walletView{
		Address:  snap.Address,
		ETH:      snap.ETH,
		WETH:     snap.WETH,
		USDC:     snap.USDC,
		ETHPrice: snap.ETHPrice,
		Time:     snap.Time,
	}
}

func (s *Server) handleTokens(c *gin.Context) {
	ctx := c.Request.Context()
	tokens, err := s.reg.GetActiveTokens(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": s.tokenViews(ctx, tokens)})
}

func (s *Server) tokenViews(ctx context.Context, tokens []domain.Token) []tokenView {
	views := make([]tokenView, 0, len(tokens))
	for i := range tokens {
		t := &tokens[i]
		v := tokenView{
			Address:   t.Address,
			ChainID:   t.ChainID,
			ChainName: chainName(t.ChainID),
			Symbol:    t.Symbol,
			Decimals:  t.Decimals,
			Active:    t.Active,
		}
		if pool, err := s.reg.GetBestPool(ctx, t.ChainID, t.Address); err == nil && pool != nil {
			v.Pool = &poolView{
				Address:    pool.Address,
				FeeTier:    pool.FeeTier,
				QuoteToken: pool.QuoteToken,
				Liquidity:  pool.Liquidity,
			}
		}
		views = append(views, v)
	}
	return views
}

func (s *Server) handleDashboard(c *gin.Context) {
	dash, err := s.buildDashboard(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dash)
}

// buildDashboard 汇总面板快照，HTTP 与 WebSocket 共用
func (s *Server) buildDashboard(ctx context.Context) (gin.H, error) {
	stats, err := s.reg.Stats(ctx)
	if err != nil {
		return nil, err
	}
	positions, err := s.positionViews(ctx)
	if err != nil {
		return nil, err
	}
	trades, err := s.reg.RecentTrades(ctx, 50)
	if err != nil {
		return nil, err
	}
	snap, err := s.reg.LatestWalletSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	tokens, err := s.reg.GetActiveTokens(ctx)
	if err != nil {
		return nil, err
	}

	completed := make([]tradeView, 0, 30)
	for _, v := range tradeViews(trades) {
		if v.Side == string(domain.TradeSideSell) && len(completed) < 30 {
			completed = append(completed, v)
		}
	}

	return gin.H{
		"summary": gin.H{
			"total_trades":   stats.TotalTrades,
			"closed_trades":  stats.Sells,
			"win_rate":       stats.WinRate,
			"total_pnl":      stats.TotalPnL,
			"open_positions": len(positions),
			"active_tokens":  len(tokens),
		},
		"wallet":    walletViewOf(snap),
		"positions": positions,
		"tokens":    s.tokenViews(ctx, tokens),
		"trades":    tradeViews(trades),
		"completed": completed,
		"emergency": gin.H{
			"stop_active":     s.control.StopActive(),
			"sell_all_active": s.control.SellAllActive(),
		},
	}, nil
}

func (s *Server) handleEmergencyStop(c *gin.Context) {
	s.control.RequestStop()
	logger.Warn("API 触发紧急停止")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "停止标志已写入，主循环下个 tick 退出",
	})
}

func (s *Server) handleClearStop(c *gin.Context) {
	if err := s.control.ClearStop(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "停止标志已清除"})
}

func (s *Server) handleSellAll(c *gin.Context) {
	s.control.RequestSellAll()
	logger.Warn("API 触发全部清仓")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "清仓指令已发出，所有持仓将换回 USDC",
	})
}
