package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"raffle/internal/payout"
	"raffle/internal/raffle"
)

type HealthHandler struct {
	// DB is nil when the journal is disabled; readiness then ignores it.
	DB     *gorm.DB
	Raffle *raffle.Raffle
	Bank   *payout.Bank
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
}

// @Summary Liveness check
// @Tags health
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func (h *HealthHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Readiness check
// @Description Pings the journal database and checks that escrow covers the pooled balance.
// @Tags health
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /readyz [get]
func (h *HealthHandler) ready(c *gin.Context) {
	out := gin.H{"status": "ready", "db": "disabled"}
	if h.DB != nil {
		sqlDB, err := h.DB.DB()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_error"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unreachable"})
			return
		}
		out["db"] = "ok"
	}
	if h.Raffle == nil {
		c.JSON(http.StatusOK, out)
		return
	}

	snap := h.Raffle.Snapshot()
	out["state"] = snap.State.String()
	out["round"] = snap.Round
	out["players"] = len(snap.Players)
	out["draw_overdue"] = h.Raffle.DrawExpired()
	if snap.Outstanding != nil {
		out["request_id"] = snap.Outstanding.ID
	}
	if h.Bank != nil {
		escrow := h.Bank.BalanceOf(h.Bank.Escrow())
		out["escrow"] = escrow.Dec()
		// A pool the escrow cannot cover would fail at payout.
		if escrow.Lt(snap.Balance) {
			out["status"] = "escrow_shortfall"
			out["pool"] = snap.Balance.Dec()
			c.JSON(http.StatusServiceUnavailable, out)
			return
		}
	}
	c.JSON(http.StatusOK, out)
}
