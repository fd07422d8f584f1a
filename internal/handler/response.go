package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"raffle/internal/oracle"
	"raffle/internal/payout"
	"raffle/internal/raffle"
	"raffle/internal/service"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// Fail maps a domain error to its HTTP status.
func Fail(c *gin.Context, err error) {
	var notNeeded *raffle.UpkeepNotNeededError
	if errors.As(err, &notNeeded) {
		Error(c, http.StatusConflict, err.Error(), map[string]any{
			"balance":     notNeeded.Balance.Dec(),
			"num_players": notNeeded.NumPlayers,
			"state":       notNeeded.State.String(),
		})
		return
	}
	Error(c, statusFor(err), err.Error(), nil)
}

func statusFor(err error) int {
	// Payout failures wrap the payer's error, so they are matched first.
	switch {
	case errors.Is(err, raffle.ErrPayoutFailed):
		return http.StatusBadGateway
	case errors.Is(err, raffle.ErrUnknownRequest):
		return http.StatusForbidden
	case errors.Is(err, raffle.ErrInsufficientFee),
		errors.Is(err, raffle.ErrInvalidParticipant),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, payout.ErrInsufficientFunds),
		errors.Is(err, payout.ErrInvalidAmount),
		errors.Is(err, payout.ErrSelfTransfer):
		return http.StatusBadRequest
	case errors.Is(err, raffle.ErrRoundNotOpen),
		errors.Is(err, raffle.ErrUpkeepNotNeeded),
		errors.Is(err, raffle.ErrDrawNotExpired),
		errors.Is(err, raffle.ErrNoOutstandingRequest),
		errors.Is(err, raffle.ErrRandomnessMismatch):
		return http.StatusConflict
	case errors.Is(err, raffle.ErrIndexOutOfRange),
		errors.Is(err, oracle.ErrNonexistentRequest):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// amountView renders minor units next to their major-unit form.
type amountView struct {
	Raw     string `json:"raw"`
	Display string `json:"display"`
}

func formatAmount(v *uint256.Int, decimals int32) amountView {
	if v == nil {
		v = new(uint256.Int)
	}
	d, err := decimal.NewFromString(v.Dec())
	if err != nil {
		return amountView{Raw: v.Dec(), Display: v.Dec()}
	}
	return amountView{Raw: v.Dec(), Display: d.Shift(-decimals).String()}
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func boolPtr(v bool) *bool { return &v }

func paginationMeta(limit, offset int, total int64) map[string]any {
	if limit <= 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	hasNext := int64(offset+limit) < total
	return map[string]any{
		"limit":    limit,
		"offset":   offset,
		"total":    total,
		"has_next": hasNext,
	}
}
