package raffle

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

var (
	ErrInsufficientFee           = errors.New("raffle: not enough paid to enter")
	ErrRoundNotOpen              = errors.New("raffle: round is not open")
	ErrInvalidParticipant        = errors.New("raffle: invalid participant address")
	ErrUpkeepNotNeeded           = errors.New("raffle: upkeep not needed")
	ErrUnknownRequest            = errors.New("raffle: unknown randomness request")
	ErrRandomnessMismatch        = errors.New("raffle: random value differs from pinned fulfillment")
	ErrRequestAlreadyOutstanding = errors.New("raffle: randomness request already outstanding")
	ErrNoOutstandingRequest      = errors.New("raffle: no randomness request outstanding")
	ErrDrawNotExpired            = errors.New("raffle: draw has not timed out")
	ErrPayoutFailed              = errors.New("raffle: payout failed")
	ErrIndexOutOfRange           = errors.New("raffle: participant index out of range")
	ErrNoParticipants            = errors.New("raffle: no participants")
	ErrBalanceOverflow           = errors.New("raffle: pooled balance overflow")
)

// UpkeepNotNeededError reports the values the upkeep check saw when it
// refused to start a draw.
type UpkeepNotNeededError struct {
	Balance    *uint256.Int
	NumPlayers int
	State      State
}

func (e *UpkeepNotNeededError) Error() string {
	return fmt.Sprintf("%s (balance=%s players=%d state=%s)", ErrUpkeepNotNeeded, e.Balance.Dec(), e.NumPlayers, e.State)
}

func (e *UpkeepNotNeededError) Unwrap() error { return ErrUpkeepNotNeeded }
