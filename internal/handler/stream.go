package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"raffle/internal/notify"
)

// StreamHandler pushes observations to websocket clients as they happen.
type StreamHandler struct {
	Hub    *notify.Hub
	Logger *zap.Logger
	// OriginPatterns is passed to websocket.Accept; empty allows same origin only.
	OriginPatterns []string
}

func (h *StreamHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/raffle/stream", h.stream)
}

// @Summary Observation stream (websocket)
// @Tags raffle
// @Router /api/v1/raffle/stream [get]
func (h *StreamHandler) stream(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.OriginPatterns,
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Debug("websocket accept failed", zap.Error(err))
		}
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	// Clients only listen; CloseRead cancels ctx when they go away.
	ctx := conn.CloseRead(c.Request.Context())
	obsCh, cancel := h.Hub.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case obs, ok := <-obsCh:
			if !ok {
				return
			}
			payload, err := json.Marshal(obs)
			if err != nil {
				continue
			}
			wctx, wcancel := context.WithTimeout(ctx, 5*time.Second)
			err = conn.Write(wctx, websocket.MessageText, payload)
			wcancel()
			if err != nil {
				if h.Logger != nil {
					h.Logger.Debug("websocket write failed", zap.Error(err))
				}
				return
			}
		}
	}
}
