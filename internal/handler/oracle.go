package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"raffle/internal/auth"
	"raffle/internal/oracle"
	"raffle/internal/service"
)

// OracleHandler receives randomness. The callback route is for a remote
// coordinator; the local routes drive the in-process coordinator.
type OracleHandler struct {
	Service *service.RaffleService
	Local   *oracle.LocalCoordinator
	JWT     auth.JWT
	Logger  *zap.Logger
	// DevRoutes exposes the local coordinator controls. They let the
	// caller choose the random words, so they stay off outside dev.
	DevRoutes bool
}

// CallbackPath is exempt from the gateway bearer check.
const CallbackPath = "/api/v1/oracle/fulfill"

func (h *OracleHandler) Register(r *gin.Engine) {
	r.POST(CallbackPath, auth.RequireOracle(h.JWT), h.fulfill)
	if h.Local != nil && h.DevRoutes {
		g := r.Group("/api/v1/oracle/local")
		g.GET("/pending", h.localPending)
		g.POST("/fulfill", h.localFulfill)
	}
}

type fulfillRequest struct {
	RequestID   string   `json:"request_id"`
	RandomWords []string `json:"random_words"`
}

func (r fulfillRequest) words() ([]*uint256.Int, error) {
	out := make([]*uint256.Int, 0, len(r.RandomWords))
	for _, raw := range r.RandomWords {
		raw = strings.TrimSpace(raw)
		var (
			v   *uint256.Int
			err error
		)
		if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
			digits := strings.TrimLeft(raw[2:], "0")
			if digits == "" {
				digits = "0"
			}
			v, err = uint256.FromHex("0x" + digits)
		} else {
			v, err = uint256.FromDecimal(raw)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// @Summary Oracle fulfillment callback
// @Description Requires an HS256 bearer token signed with oracle.callback_secret.
// @Tags oracle
// @Param body body fulfillRequest true "random words"
// @Success 200 {object} apiResponse
// @Failure 401 {object} apiResponse
// @Failure 403 {object} apiResponse
// @Failure 502 {object} apiResponse
// @Router /api/v1/oracle/fulfill [post]
func (h *OracleHandler) fulfill(c *gin.Context) {
	var req fulfillRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.RequestID) == "" {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	words, err := req.words()
	if err != nil || len(words) == 0 {
		Error(c, http.StatusBadRequest, "random_words must hold at least one 256-bit integer", nil)
		return
	}
	result, err := h.Service.Fulfill(c.Request.Context(), strings.TrimSpace(req.RequestID), words[0])
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("oracle callback rejected", zap.String("request_id", req.RequestID), zap.Error(err))
		}
		Fail(c, err)
		return
	}
	Ok(c, map[string]any{
		"round":        result.Round,
		"request_id":   result.RequestID,
		"winner_index": result.WinnerIndex,
		"winner":       result.Winner.Hex(),
		"amount":       result.Amount.Dec(),
		"players":      result.Players,
	}, nil)
}

func (h *OracleHandler) localPending(c *gin.Context) {
	Ok(c, h.Local.Pending(), nil)
}

// @Summary Settle a local request (dev only)
// @Tags oracle
// @Router /api/v1/oracle/local/fulfill [post]
func (h *OracleHandler) localFulfill(c *gin.Context) {
	var req fulfillRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.RequestID) == "" {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	words, err := req.words()
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid random_words", nil)
		return
	}
	id := strings.TrimSpace(req.RequestID)
	if len(words) > 0 {
		err = h.Local.FulfillWithWords(c.Request.Context(), id, words)
	} else {
		err = h.Local.Fulfill(c.Request.Context(), id)
	}
	if err != nil {
		Fail(c, err)
		return
	}
	out := map[string]any{"request_id": id, "state": h.Service.Raffle.State().String()}
	if w, ok := h.Service.Raffle.RecentWinner(); ok {
		out["recent_winner"] = w.Hex()
	}
	Ok(c, out, nil)
}
