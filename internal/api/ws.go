package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tokenbot/gotrader/pkg/logger"
)

const (
	wsPushInterval  = 2 * time.Second
	wsWriteDeadline = 10 * time.Second
)

// 面板同源或本机访问，不做 Origin 校验
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWS 把面板快照按固定间隔推给客户端，连接断开即停
func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Debugf("WebSocket 升级失败: %v", err)
		return
	}
	defer conn.Close()

	// 客户端不发有效载荷，读循环只用来感知断开
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPushInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		dash, err := s.buildDashboard(ctx)
		if err != nil {
			logger.Debugf("构建面板快照失败: %v", err)
		} else {
			conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
			if err := conn.WriteJSON(dash); err != nil {
				return
			}
		}

		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
