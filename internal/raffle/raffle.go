package raffle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Payer moves the pooled balance to the winner. It must either pay the full
// amount or nothing.
type Payer interface {
	Pay(ctx context.Context, to common.Address, amount *uint256.Int) error
}

type Config struct {
	EntranceFee *uint256.Int
	Interval    time.Duration
	// DrawTimeout enables CancelDraw once a request has been outstanding this
	// long. Zero leaves a stalled draw in CALCULATING.
	DrawTimeout time.Duration
}

func (c Config) Validate() error {
	if c.EntranceFee == nil || c.EntranceFee.IsZero() {
		return errors.New("raffle: entrance fee must be positive")
	}
	if c.Interval <= 0 {
		return errors.New("raffle: interval must be positive")
	}
	if c.DrawTimeout < 0 {
		return errors.New("raffle: draw timeout must not be negative")
	}
	return nil
}

// Raffle is the OPEN -> CALCULATING -> OPEN automaton. Every method runs
// under one lock, so operations never interleave.
type Raffle struct {
	mu sync.Mutex

	cfg       Config
	clock     Clock
	payer     Payer
	ledger    *EntryLedger
	requester *RandomnessRequester

	lastTimestamp time.Time
	recentWinner  *common.Address
	round         uint64
}

func New(cfg Config, oracle Oracle, payer Payer, clock Clock) (*Raffle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if payer == nil {
		return nil, errors.New("raffle: payer not configured")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Raffle{
		cfg:           cfg,
		clock:         clock,
		payer:         payer,
		ledger:        NewEntryLedger(cfg.EntranceFee),
		requester:     NewRandomnessRequester(oracle),
		lastTimestamp: clock.Now(),
		round:         1,
	}, nil
}

// state is derived from the requester: a draw is in flight iff a request is.
func (r *Raffle) state() State {
	if r.requester.outstanding != nil {
		return StateCalculating
	}
	return StateOpen
}

func (r *Raffle) Enter(participant common.Address, amount *uint256.Int) (Observation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if participant == (common.Address{}) {
		return Observation{}, ErrInvalidParticipant
	}
	if amount == nil || amount.Lt(r.cfg.EntranceFee) {
		return Observation{}, ErrInsufficientFee
	}
	if r.state() != StateOpen {
		return Observation{}, ErrRoundNotOpen
	}
	if err := r.ledger.Deposit(participant, amount); err != nil {
		return Observation{}, err
	}
	return Observation{
		Kind:        ObservationEntered,
		Round:       r.round,
		Participant: addrPtr(participant),
		Amount:      new(uint256.Int).Set(amount),
		At:          r.clock.Now(),
	}, nil
}

func (r *Raffle) CheckUpkeep() UpkeepCheck {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.checkUpkeepLocked(r.clock.Now())
}

func (r *Raffle) checkUpkeepLocked(now time.Time) UpkeepCheck {
	return EvaluateUpkeep(now, r.lastTimestamp, r.cfg.Interval, r.state(), r.ledger.Count(), r.ledger.balance)
}

// BeginDraw asks the oracle for randomness and moves the round to CALCULATING.
func (r *Raffle) BeginDraw(ctx context.Context) (string, Observation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	if !r.checkUpkeepLocked(now).UpkeepNeeded {
		return "", Observation{}, &UpkeepNotNeededError{
			Balance:    r.ledger.Balance(),
			NumPlayers: r.ledger.Count(),
			State:      r.state(),
		}
	}
	requestID, err := r.requester.Request(ctx, now)
	if err != nil {
		return "", Observation{}, err
	}
	return requestID, Observation{
		Kind:      ObservationDrawRequested,
		Round:     r.round,
		RequestID: requestID,
		At:        now,
	}, nil
}

// FulfillResult describes a completed payout.
type FulfillResult struct {
	Round       uint64
	RequestID   string
	RandomValue *uint256.Int
	WinnerIndex int
	Winner      common.Address
	Amount      *uint256.Int
	Players     int
}

// Fulfill settles the draw for requestID. It is all-or-nothing: if the
// payout fails the round stays CALCULATING with the request still live and
// randomValue pinned to it, so only the same value can settle it later.
func (r *Raffle) Fulfill(ctx context.Context, requestID string, randomValue *uint256.Int) (FulfillResult, Observation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, err := r.requester.Check(requestID)
	if err != nil {
		return FulfillResult{}, Observation{}, err
	}
	if randomValue == nil {
		return FulfillResult{}, Observation{}, errors.New("raffle: missing random value")
	}
	if req.Pinned != nil && !req.Pinned.Eq(randomValue) {
		return FulfillResult{}, Observation{}, ErrRandomnessMismatch
	}

	count := r.ledger.Count()
	idx, err := SelectWinner(randomValue, count)
	if err != nil {
		return FulfillResult{}, Observation{}, err
	}
	winner, err := r.ledger.ParticipantAt(idx)
	if err != nil {
		return FulfillResult{}, Observation{}, err
	}
	amount := r.ledger.Balance()
	now := r.clock.Now()

	if err := r.payer.Pay(ctx, winner, amount); err != nil {
		_ = r.requester.Pin(requestID, randomValue)
		return FulfillResult{}, Observation{
			Kind:      ObservationPayoutFailed,
			Round:     r.round,
			RequestID: requestID,
			Winner:    addrPtr(winner),
			Amount:    amount,
			Error:     err.Error(),
			At:        now,
		}, fmt.Errorf("%w: %w", ErrPayoutFailed, err)
	}

	if _, err := r.requester.Accept(requestID, randomValue); err != nil {
		return FulfillResult{}, Observation{}, err
	}
	result := FulfillResult{
		Round:       r.round,
		RequestID:   requestID,
		RandomValue: new(uint256.Int).Set(randomValue),
		WinnerIndex: idx,
		Winner:      winner,
		Amount:      amount,
		Players:     count,
	}
	r.ledger.clear()
	r.lastTimestamp = now
	r.recentWinner = addrPtr(winner)
	r.round++

	return result, Observation{
		Kind:      ObservationWinnerPicked,
		Round:     result.Round,
		RequestID: requestID,
		Winner:    addrPtr(winner),
		Amount:    new(uint256.Int).Set(amount),
		At:        now,
	}, nil
}

// CancelDraw drops a request that has been outstanding longer than the
// configured draw timeout and reopens the round with its entries intact.
func (r *Raffle) CancelDraw() (string, Observation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req := r.requester.outstanding
	if req == nil {
		return "", Observation{}, ErrNoOutstandingRequest
	}
	now := r.clock.Now()
	if r.cfg.DrawTimeout <= 0 || now.Sub(req.IssuedAt) < r.cfg.DrawTimeout {
		return "", Observation{}, ErrDrawNotExpired
	}
	if _, err := r.requester.Cancel(); err != nil {
		return "", Observation{}, err
	}
	r.lastTimestamp = now
	return req.ID, Observation{
		Kind:      ObservationDrawCancelled,
		Round:     r.round,
		RequestID: req.ID,
		At:        now,
	}, nil
}

// DrawExpired reports whether CancelDraw would succeed now.
func (r *Raffle) DrawExpired() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	req := r.requester.outstanding
	if req == nil || r.cfg.DrawTimeout <= 0 {
		return false
	}
	return r.clock.Now().Sub(req.IssuedAt) >= r.cfg.DrawTimeout
}

func (r *Raffle) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state()
}

func (r *Raffle) Player(index int) (common.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ledger.ParticipantAt(index)
}

func (r *Raffle) NumPlayers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ledger.Count()
}

func (r *Raffle) Balance() *uint256.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ledger.Balance()
}

func (r *Raffle) LastTimestamp() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastTimestamp
}

// RecentWinner returns the previous round's winner, or false before the
// first payout.
func (r *Raffle) RecentWinner() (common.Address, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recentWinner == nil {
		return common.Address{}, false
	}
	return *r.recentWinner, true
}

// Round is the number of the round currently accepting entries or drawing.
func (r *Raffle) Round() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.round
}

func (r *Raffle) EntranceFee() *uint256.Int { return new(uint256.Int).Set(r.cfg.EntranceFee) }

func (r *Raffle) Interval() time.Duration { return r.cfg.Interval }

func (r *Raffle) Outstanding() *OutstandingRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requester.Outstanding()
}

type Snapshot struct {
	State         State
	Round         uint64
	EntranceFee   *uint256.Int
	Interval      time.Duration
	DrawTimeout   time.Duration
	Players       []common.Address
	Balance       *uint256.Int
	LastTimestamp time.Time
	RecentWinner  *common.Address
	Outstanding   *OutstandingRequest
	Upkeep        UpkeepCheck
}

func (r *Raffle) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Snapshot{
		State:         r.state(),
		Round:         r.round,
		EntranceFee:   new(uint256.Int).Set(r.cfg.EntranceFee),
		Interval:      r.cfg.Interval,
		DrawTimeout:   r.cfg.DrawTimeout,
		Players:       r.ledger.Participants(),
		Balance:       r.ledger.Balance(),
		LastTimestamp: r.lastTimestamp,
		Outstanding:   r.requester.Outstanding(),
		Upkeep:        r.checkUpkeepLocked(r.clock.Now()),
	}
	if r.recentWinner != nil {
		s.RecentWinner = addrPtr(*r.recentWinner)
	}
	return s
}
