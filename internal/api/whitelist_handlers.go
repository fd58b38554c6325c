package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tokenbot/gotrader/internal/whitelist"
)

// API 变更走统一的操作者标识，审计事件里与自动流程区分开
const apiActor = "api"

func (s *Server) handleSendersList(c *gin.Context) {
	senders, err := s.wl.ListSenders(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"senders": senders, "count": len(senders)})
}

type addSenderRequest struct {
	Address string `json:"address"`
	Label   string `json:"label"`
}

func (s *Server) handleSendersAdd(c *gin.Context) {
	var req addSenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 JSON 请求体"})
		return
	}
	req.Address = strings.TrimSpace(req.Address)
	if req.Address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address 不能为空"})
		return
	}
	if err := s.wl.AddSender(c.Request.Context(), req.Address, req.Label, apiActor); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "address": req.Address, "label": req.Label})
}

func (s *Server) handleSendersRemove(c *gin.Context) {
	addr := strings.TrimSpace(c.Param("address"))
	if addr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address 不能为空"})
		return
	}
	if err := s.wl.RemoveSender(c.Request.Context(), addr, apiActor); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "address": addr})
}

func (s *Server) handleWLTokensList(c *gin.Context) {
	status := whitelist.TokenStatus(c.Query("status"))
	tokens, err := s.wl.ListTokens(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens, "count": len(tokens)})
}

type addTokenRequest struct {
	Address string `json:"address"`
	ChainID uint64 `json:"chain_id"`
	Symbol  string `json:"symbol"`
}

func (s *Server) handleWLTokensAdd(c *gin.Context) {
	var req addTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 JSON 请求体"})
		return
	}
	req.Address = strings.TrimSpace(req.Address)
	if req.Address == "" || req.ChainID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address 与 chain_id 不能为空"})
		return
	}
	err := s.wl.WhitelistToken(c.Request.Context(), &whitelist.Token{
		Address: req.Address,
		ChainID: req.ChainID,
		Symbol:  req.Symbol,
		Auto:    false,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "address": req.Address, "chain_id": req.ChainID})
}

type blockTokenRequest struct {
	ChainID uint64 `json:"chain_id"`
}

func (s *Server) handleWLTokenBlock(c *gin.Context) {
	addr := strings.TrimSpace(c.Param("address"))
	var req blockTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 JSON 请求体"})
		return
	}
	if addr == "" || req.ChainID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address 与 chain_id 不能为空"})
		return
	}
	if err := s.wl.BlockToken(c.Request.Context(), addr, req.ChainID, apiActor); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "address": addr, "chain_id": req.ChainID})
}
