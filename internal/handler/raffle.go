package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"raffle/internal/raffle"
	"raffle/internal/repository"
	"raffle/internal/service"
)

type RaffleHandler struct {
	Service  *service.RaffleService
	Repo     repository.Repository
	Decimals int32
}

func (h *RaffleHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/raffle")
	g.GET("", h.status)
	g.POST("/enter", h.enter)
	g.GET("/players/:index", h.player)
	g.GET("/upkeep", h.checkUpkeep)
	g.POST("/upkeep", h.performUpkeep)
	g.POST("/draw/cancel", h.cancelDraw)
	g.GET("/events", h.events)
	g.GET("/draws", h.draws)
	g.GET("/draws/:request_id", h.draw)
}

type statusView struct {
	State         string             `json:"state"`
	StateCode     uint8              `json:"state_code"`
	Round         uint64             `json:"round"`
	EntranceFee   amountView         `json:"entrance_fee"`
	Interval      string             `json:"interval"`
	DrawTimeout   string             `json:"draw_timeout,omitempty"`
	NumPlayers    int                `json:"num_players"`
	Players       []string           `json:"players"`
	Balance       amountView         `json:"balance"`
	LastTimestamp time.Time          `json:"last_timestamp"`
	RecentWinner  string             `json:"recent_winner,omitempty"`
	Outstanding   *outstandingView   `json:"outstanding,omitempty"`
	Upkeep        raffle.UpkeepCheck `json:"upkeep"`
}

type outstandingView struct {
	RequestID   string    `json:"request_id"`
	IssuedAt    time.Time `json:"issued_at"`
	PinnedValue string    `json:"pinned_value,omitempty"`
}

// @Summary Round snapshot
// @Tags raffle
// @Success 200 {object} apiResponse
// @Router /api/v1/raffle [get]
func (h *RaffleHandler) status(c *gin.Context) {
	s := h.Service.Status()
	players := make([]string, len(s.Players))
	for i, p := range s.Players {
		players[i] = p.Hex()
	}
	view := statusView{
		State:         s.State.String(),
		StateCode:     uint8(s.State),
		Round:         s.Round,
		EntranceFee:   formatAmount(s.EntranceFee, h.Decimals),
		Interval:      s.Interval.String(),
		NumPlayers:    len(players),
		Players:       players,
		Balance:       formatAmount(s.Balance, h.Decimals),
		LastTimestamp: s.LastTimestamp,
		Upkeep:        s.Upkeep,
	}
	if s.Outstanding != nil {
		view.Outstanding = &outstandingView{RequestID: s.Outstanding.ID, IssuedAt: s.Outstanding.IssuedAt}
		if s.Outstanding.Pinned != nil {
			view.Outstanding.PinnedValue = s.Outstanding.Pinned.Dec()
		}
	}
	if s.DrawTimeout > 0 {
		view.DrawTimeout = s.DrawTimeout.String()
	}
	if s.RecentWinner != nil {
		view.RecentWinner = s.RecentWinner.Hex()
	}
	Ok(c, view, nil)
}

type enterRequest struct {
	Participant string `json:"participant"`
	// Amount in minor units; defaults to the entrance fee.
	Amount string `json:"amount"`
}

// @Summary Enter the current round
// @Description Escrows amount (default: the entrance fee) from participant.
// @Tags raffle
// @Param body body enterRequest true "entry"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/raffle/enter [post]
func (h *RaffleHandler) enter(c *gin.Context) {
	var req enterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	participant, err := service.ParseParticipant(req.Participant)
	if err != nil {
		Fail(c, err)
		return
	}
	amount := h.Service.Raffle.EntranceFee()
	if strings.TrimSpace(req.Amount) != "" {
		if amount, err = service.ParseAmount(req.Amount); err != nil {
			Fail(c, err)
			return
		}
	}
	obs, err := h.Service.Enter(c.Request.Context(), participant, amount)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, obs, map[string]any{"num_players": h.Service.Raffle.NumPlayers()})
}

// @Summary Participant at index
// @Tags raffle
// @Param index path int true "entry index"
// @Success 200 {object} apiResponse
// @Router /api/v1/raffle/players/{index} [get]
func (h *RaffleHandler) player(c *gin.Context) {
	idx, err := strconv.Atoi(strings.TrimSpace(c.Param("index")))
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid index", nil)
		return
	}
	p, err := h.Service.Raffle.Player(idx)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, map[string]any{"index": idx, "participant": p.Hex()}, nil)
}

// @Summary Check upkeep
// @Tags raffle
// @Success 200 {object} apiResponse
// @Router /api/v1/raffle/upkeep [get]
func (h *RaffleHandler) checkUpkeep(c *gin.Context) {
	Ok(c, h.Service.Raffle.CheckUpkeep(), nil)
}

// @Summary Perform upkeep
// @Tags raffle
// @Success 200 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v1/raffle/upkeep [post]
func (h *RaffleHandler) performUpkeep(c *gin.Context) {
	requestID, err := h.Service.PerformUpkeep(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, map[string]any{"request_id": requestID, "round": h.Service.Raffle.Round()}, nil)
}

// @Summary Cancel a timed-out draw
// @Tags raffle
// @Success 200 {object} apiResponse
// @Router /api/v1/raffle/draw/cancel [post]
func (h *RaffleHandler) cancelDraw(c *gin.Context) {
	requestID, err := h.Service.CancelStale(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, map[string]any{"request_id": requestID, "state": h.Service.Raffle.State().String()}, nil)
}

// @Summary List journaled observations
// @Tags journal
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Param kind query string false "observation kind"
// @Param participant query string false "participant address"
// @Param round query int false "round"
// @Param since query string false "RFC3339 lower bound on observed_at"
// @Param order query string false "asc|desc by id"
// @Success 200 {object} apiResponse
// @Failure 503 {object} apiResponse
// @Router /api/v1/raffle/events [get]
func (h *RaffleHandler) events(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusServiceUnavailable, "journal disabled", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	params := repository.ListRaffleEventsParams{
		Limit:   limit,
		Offset:  offset,
		OrderBy: "id",
		Asc:     boolPtr(strings.EqualFold(c.Query("order"), "asc")),
	}
	if v := strings.TrimSpace(c.Query("kind")); v != "" {
		params.Kind = &v
	}
	if v := strings.TrimSpace(c.Query("participant")); v != "" {
		params.Participant = &v
	}
	if v := strings.TrimSpace(c.Query("round")); v != "" {
		round, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid round", nil)
			return
		}
		params.Round = &round
	}
	if v := strings.TrimSpace(c.Query("since")); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid since, want RFC3339", nil)
			return
		}
		params.Since = &since
	}
	items, err := h.Repo.ListRaffleEvents(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountRaffleEvents(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary List draws
// @Tags journal
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Param state query string false "pending|paid|payout_failed|cancelled"
// @Param winner query string false "winner address"
// @Success 200 {object} apiResponse
// @Router /api/v1/raffle/draws [get]
func (h *RaffleHandler) draws(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusServiceUnavailable, "journal disabled", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListDrawsParams{
		Limit:   limit,
		Offset:  offset,
		OrderBy: "requested_at",
		Asc:     boolPtr(false),
	}
	if v := strings.TrimSpace(c.Query("state")); v != "" {
		params.State = &v
	}
	if v := strings.TrimSpace(c.Query("winner")); v != "" {
		params.Winner = &v
	}
	items, err := h.Repo.ListDraws(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountDraws(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Get one draw
// @Tags journal
// @Param request_id path string true "randomness request id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/raffle/draws/{request_id} [get]
func (h *RaffleHandler) draw(c *gin.Context) {
	if h.Service.Repo == nil {
		Error(c, http.StatusServiceUnavailable, "journal disabled", nil)
		return
	}
	item, err := h.Service.Draw(c.Request.Context(), strings.TrimSpace(c.Param("request_id")))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "draw not found", nil)
		return
	}
	Ok(c, item, nil)
}
