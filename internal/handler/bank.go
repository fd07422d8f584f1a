package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"

	"raffle/internal/payout"
	"raffle/internal/service"
)

type BankHandler struct {
	Bank          *payout.Bank
	FaucetEnabled bool
	FaucetAmount  *uint256.Int
	Decimals      int32
}

func (h *BankHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/bank")
	g.GET("/accounts/:address", h.account)
	g.POST("/faucet", h.faucet)
	g.POST("/halt", h.halt)
	g.POST("/resume", h.resume)
}

// @Summary Account balance
// @Tags bank
// @Param address path string true "account address"
// @Success 200 {object} apiResponse
// @Router /api/v1/bank/accounts/{address} [get]
func (h *BankHandler) account(c *gin.Context) {
	addr, err := service.ParseParticipant(c.Param("address"))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, map[string]any{
		"address": addr.Hex(),
		"balance": formatAmount(h.Bank.BalanceOf(addr), h.Decimals),
		"escrow":  addr == h.Bank.Escrow(),
	}, nil)
}

type faucetRequest struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// @Summary Fund an account from the faucet
// @Tags bank
// @Success 200 {object} apiResponse
// @Failure 403 {object} apiResponse
// @Router /api/v1/bank/faucet [post]
func (h *BankHandler) faucet(c *gin.Context) {
	if !h.FaucetEnabled {
		Error(c, http.StatusForbidden, "faucet disabled", nil)
		return
	}
	var req faucetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	addr, err := service.ParseParticipant(req.Address)
	if err != nil {
		Fail(c, err)
		return
	}
	amount := h.FaucetAmount
	if strings.TrimSpace(req.Amount) != "" {
		if amount, err = service.ParseAmount(req.Amount); err != nil {
			Fail(c, err)
			return
		}
	}
	if addr == h.Bank.Escrow() {
		Error(c, http.StatusBadRequest, "cannot fund the escrow account", nil)
		return
	}
	balance, err := h.Bank.Fund(addr, amount)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, map[string]any{
		"address": addr.Hex(),
		"balance": formatAmount(balance, h.Decimals),
	}, nil)
}

func (h *BankHandler) halt(c *gin.Context) {
	h.Bank.Halt()
	Ok(c, map[string]any{"halted": true}, nil)
}

func (h *BankHandler) resume(c *gin.Context) {
	h.Bank.Resume()
	Ok(c, map[string]any{"halted": false}, nil)
}
