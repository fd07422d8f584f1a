package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"raffle/internal/models"
	"raffle/internal/payout"
	"raffle/internal/raffle"
	"raffle/internal/repository"
)

var ErrInvalidAmount = errors.New("raffle: amount must be a non-negative decimal integer")

const defaultPublishTimeout = 10 * time.Second

// Escrow holds entrance fees until the raffle pays them out.
type Escrow interface {
	Escrow() common.Address
	Deposit(ctx context.Context, from common.Address, amount *uint256.Int) error
	Refund(ctx context.Context, to common.Address, amount *uint256.Int) error
}

// ObservationSink receives observations after the operation that produced
// them has released the service lock. It reports how many deliveries failed.
type ObservationSink interface {
	Publish(ctx context.Context, obs raffle.Observation) int
}

// RequestForgetter is implemented by oracles that keep their own record of
// pending requests.
type RequestForgetter interface {
	Forget(requestID string)
}

// RaffleService composes the automaton with escrow, the event journal and
// the observation sinks. Compound steps and journal writes run under one
// lock so journal order matches automaton order; sinks run outside it.
type RaffleService struct {
	Raffle *raffle.Raffle
	Escrow Escrow
	Repo   repository.Repository
	Sinks  ObservationSink
	Oracle RequestForgetter
	Logger *zap.Logger

	// PublishTimeout bounds one sink delivery. Zero means 10s.
	PublishTimeout time.Duration

	mu sync.Mutex
}

func ParseParticipant(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, raffle.ErrInvalidParticipant
	}
	return common.HexToAddress(raw), nil
}

func ParseAmount(raw string) (*uint256.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidAmount
	}
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, ErrInvalidAmount
	}
	return v, nil
}

// Enter escrows amount from participant and records the entry. The
// deposit is refunded if the raffle rejects it.
func (s *RaffleService) Enter(ctx context.Context, participant common.Address, amount *uint256.Int) (raffle.Observation, error) {
	obs, err := s.enter(ctx, participant, amount)
	if err != nil {
		return raffle.Observation{}, err
	}
	s.publish(ctx, obs)
	return obs, nil
}

func (s *RaffleService) enter(ctx context.Context, participant common.Address, amount *uint256.Int) (raffle.Observation, error) {
	if amount == nil {
		return raffle.Observation{}, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if participant == (common.Address{}) {
		return raffle.Observation{}, raffle.ErrInvalidParticipant
	}
	if s.Escrow != nil && participant == s.Escrow.Escrow() {
		return raffle.Observation{}, fmt.Errorf("%w: escrow account cannot enter", raffle.ErrInvalidParticipant)
	}
	if amount.Lt(s.Raffle.EntranceFee()) {
		return raffle.Observation{}, raffle.ErrInsufficientFee
	}
	if s.Escrow != nil {
		if err := s.Escrow.Deposit(ctx, participant, amount); err != nil {
			return raffle.Observation{}, err
		}
	}
	obs, err := s.Raffle.Enter(participant, amount)
	if err != nil {
		if s.Escrow != nil {
			if rerr := s.Escrow.Refund(ctx, participant, amount); rerr != nil && s.Logger != nil {
				s.Logger.Error("refund after rejected entry failed",
					zap.String("participant", participant.Hex()),
					zap.String("amount", amount.Dec()),
					zap.Error(rerr),
				)
			}
		}
		return raffle.Observation{}, err
	}
	s.journal(ctx, obs)
	return obs, nil
}

// PerformUpkeep starts a draw when upkeep is needed.
func (s *RaffleService) PerformUpkeep(ctx context.Context) (string, error) {
	requestID, obs, err := s.performUpkeep(ctx)
	if err != nil {
		return "", err
	}
	s.publish(ctx, obs)
	return requestID, nil
}

func (s *RaffleService) performUpkeep(ctx context.Context) (string, raffle.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	players := s.Raffle.Snapshot().Players
	requestID, obs, err := s.Raffle.BeginDraw(ctx)
	if err != nil {
		return "", raffle.Observation{}, err
	}
	s.insertDraw(ctx, obs, players)
	s.journal(ctx, obs)
	return requestID, obs, nil
}

// Fulfill settles the outstanding draw with the oracle's random value.
func (s *RaffleService) Fulfill(ctx context.Context, requestID string, value *uint256.Int) (raffle.FulfillResult, error) {
	result, obs, err := s.fulfill(ctx, requestID, value)
	s.publish(ctx, obs)
	return result, err
}

func (s *RaffleService) fulfill(ctx context.Context, requestID string, value *uint256.Int) (raffle.FulfillResult, raffle.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, obs, err := s.Raffle.Fulfill(ctx, requestID, value)
	if err != nil {
		if obs.Kind != raffle.ObservationPayoutFailed {
			return raffle.FulfillResult{}, raffle.Observation{}, err
		}
		msg := obs.Error
		s.settle(ctx, requestID, repository.DrawSettlement{
			State:       models.DrawStatePayoutFailed,
			RandomValue: decPtr(value),
			Winner:      addrHexPtr(obs.Winner),
			Amount:      decPtr(obs.Amount),
			LastError:   &msg,
		}, obs)
		return raffle.FulfillResult{}, obs, err
	}

	settledAt := obs.At
	idx := result.WinnerIndex
	winner := result.Winner.Hex()
	s.settle(ctx, requestID, repository.DrawSettlement{
		State:       models.DrawStatePaid,
		RandomValue: decPtr(result.RandomValue),
		WinnerIndex: &idx,
		Winner:      &winner,
		Amount:      decPtr(result.Amount),
		SettledAt:   &settledAt,
	}, obs)
	return result, obs, nil
}

// ConsumeWords adapts Fulfill to the oracle consumer callback. Only the
// first word is used.
func (s *RaffleService) ConsumeWords(ctx context.Context, requestID string, words []*uint256.Int) error {
	if len(words) == 0 {
		return fmt.Errorf("no random words for %s", requestID)
	}
	_, err := s.Fulfill(ctx, requestID, words[0])
	return err
}

// CancelStale drops an expired draw and reopens the round.
func (s *RaffleService) CancelStale(ctx context.Context) (string, error) {
	requestID, obs, err := s.cancelStale(ctx)
	if err != nil {
		return "", err
	}
	s.publish(ctx, obs)
	return requestID, nil
}

func (s *RaffleService) cancelStale(ctx context.Context) (string, raffle.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requestID, obs, err := s.Raffle.CancelDraw()
	if err != nil {
		return "", raffle.Observation{}, err
	}
	if s.Oracle != nil {
		s.Oracle.Forget(requestID)
	}
	settledAt := obs.At
	s.settle(ctx, requestID, repository.DrawSettlement{
		State:     models.DrawStateCancelled,
		SettledAt: &settledAt,
	}, obs)
	return requestID, obs, nil
}

func (s *RaffleService) Status() raffle.Snapshot {
	return s.Raffle.Snapshot()
}

// Draw returns the stored record of one draw, or nil when unknown.
func (s *RaffleService) Draw(ctx context.Context, requestID string) (*models.Draw, error) {
	if s.Repo == nil {
		return nil, nil
	}
	return s.Repo.GetDrawByRequestID(ctx, requestID)
}

func (s *RaffleService) journal(ctx context.Context, obs raffle.Observation) {
	if obs.Empty() || s.Repo == nil {
		return
	}
	if err := s.Repo.InsertRaffleEvent(ctx, eventFromObservation(obs)); err != nil && s.Logger != nil {
		s.Logger.Warn("journal observation failed",
			zap.String("kind", string(obs.Kind)),
			zap.Uint64("round", obs.Round),
			zap.Error(err),
		)
	}
}

// settle writes the draw outcome and its journal entry in one transaction.
func (s *RaffleService) settle(ctx context.Context, requestID string, update repository.DrawSettlement, obs raffle.Observation) {
	if s.Repo == nil {
		return
	}
	err := s.Repo.InTx(ctx, func(repo repository.Repository) error {
		if err := repo.UpdateDrawSettlement(ctx, requestID, update); err != nil {
			return err
		}
		return repo.InsertRaffleEvent(ctx, eventFromObservation(obs))
	})
	if err != nil && s.Logger != nil {
		s.Logger.Warn("settle draw failed",
			zap.String("request_id", requestID),
			zap.String("state", update.State),
			zap.Error(err),
		)
	}
}

// publish runs after the lock is released. Delivery is detached from the
// caller's cancellation and bounded by PublishTimeout.
func (s *RaffleService) publish(ctx context.Context, obs raffle.Observation) {
	if obs.Empty() || s.Sinks == nil {
		return
	}
	timeout := s.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	s.Sinks.Publish(pubCtx, obs)
}

func (s *RaffleService) insertDraw(ctx context.Context, obs raffle.Observation, players []common.Address) {
	if s.Repo == nil {
		return
	}
	hexes := make([]string, len(players))
	for i, p := range players {
		hexes[i] = p.Hex()
	}
	raw, _ := json.Marshal(hexes)
	item := &models.Draw{
		Round:        obs.Round,
		RequestID:    obs.RequestID,
		State:        models.DrawStatePending,
		Players:      len(players),
		Participants: datatypes.JSON(raw),
		RequestedAt:  obs.At,
	}
	if err := s.Repo.InsertDraw(ctx, item); err != nil && s.Logger != nil {
		s.Logger.Warn("insert draw failed", zap.String("request_id", obs.RequestID), zap.Error(err))
	}
}

func eventFromObservation(obs raffle.Observation) *models.RaffleEvent {
	payload, _ := json.Marshal(obs)
	item := &models.RaffleEvent{
		Kind:        string(obs.Kind),
		Round:       obs.Round,
		Participant: addrHexPtr(obs.Participant),
		Winner:      addrHexPtr(obs.Winner),
		Amount:      decPtr(obs.Amount),
		Payload:     datatypes.JSON(payload),
		ObservedAt:  obs.At,
	}
	if obs.RequestID != "" {
		id := obs.RequestID
		item.RequestID = &id
	}
	if item.ObservedAt.IsZero() {
		item.ObservedAt = time.Now().UTC()
	}
	return item
}

func addrHexPtr(a *common.Address) *string {
	if a == nil {
		return nil
	}
	v := a.Hex()
	return &v
}

func decPtr(v *uint256.Int) *string {
	if v == nil {
		return nil
	}
	d := v.Dec()
	return &d
}

var _ Escrow = (*payout.Bank)(nil)
