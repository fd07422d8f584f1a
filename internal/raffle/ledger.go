package raffle

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EntryLedger holds the participants and pooled balance of the current round.
// It is not safe for concurrent use; the Raffle serializes access.
type EntryLedger struct {
	entranceFee  *uint256.Int
	participants []common.Address
	balance      *uint256.Int
}

func NewEntryLedger(entranceFee *uint256.Int) *EntryLedger {
	return &EntryLedger{
		entranceFee: new(uint256.Int).Set(entranceFee),
		balance:     new(uint256.Int),
	}
}

// Deposit appends one entry for participant. Any amount at or above the
// entrance fee is accepted and pooled in full; overpayment is not refunded.
func (l *EntryLedger) Deposit(participant common.Address, amount *uint256.Int) error {
	if amount == nil || amount.Lt(l.entranceFee) {
		return ErrInsufficientFee
	}
	sum, overflow := new(uint256.Int).AddOverflow(l.balance, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	l.participants = append(l.participants, participant)
	l.balance = sum
	return nil
}

func (l *EntryLedger) ParticipantAt(index int) (common.Address, error) {
	if index < 0 || index >= len(l.participants) {
		return common.Address{}, ErrIndexOutOfRange
	}
	return l.participants[index], nil
}

func (l *EntryLedger) Participants() []common.Address {
	out := make([]common.Address, len(l.participants))
	copy(out, l.participants)
	return out
}

func (l *EntryLedger) Count() int { return len(l.participants) }

func (l *EntryLedger) Balance() *uint256.Int { return new(uint256.Int).Set(l.balance) }

func (l *EntryLedger) EntranceFee() *uint256.Int { return new(uint256.Int).Set(l.entranceFee) }

func (l *EntryLedger) clear() {
	l.participants = nil
	l.balance = new(uint256.Int)
}
