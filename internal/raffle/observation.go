package raffle

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type ObservationKind string

const (
	ObservationEntered       ObservationKind = "entered"
	ObservationDrawRequested ObservationKind = "draw_requested"
	ObservationWinnerPicked  ObservationKind = "winner_picked"
	ObservationDrawCancelled ObservationKind = "draw_cancelled"
	ObservationPayoutFailed  ObservationKind = "payout_failed"
)

// Observation is the record an operation leaves behind for monitoring.
// The zero value (empty Kind) means nothing was observed.
type Observation struct {
	Kind        ObservationKind
	Round       uint64
	Participant *common.Address
	RequestID   string
	Winner      *common.Address
	Amount      *uint256.Int
	Error       string
	At          time.Time
}

func (o Observation) Empty() bool { return o.Kind == "" }

type observationJSON struct {
	Kind        ObservationKind `json:"kind"`
	Round       uint64          `json:"round"`
	Participant *common.Address `json:"participant,omitempty"`
	RequestID   string          `json:"request_id,omitempty"`
	Winner      *common.Address `json:"winner,omitempty"`
	Amount      string          `json:"amount,omitempty"`
	Error       string          `json:"error,omitempty"`
	At          time.Time       `json:"at"`
}

func (o Observation) MarshalJSON() ([]byte, error) {
	out := observationJSON{
		Kind:        o.Kind,
		Round:       o.Round,
		Participant: o.Participant,
		RequestID:   o.RequestID,
		Winner:      o.Winner,
		Error:       o.Error,
		At:          o.At,
	}
	if o.Amount != nil {
		out.Amount = o.Amount.Dec()
	}
	return json.Marshal(out)
}

func (o *Observation) UnmarshalJSON(b []byte) error {
	var in observationJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*o = Observation{
		Kind:        in.Kind,
		Round:       in.Round,
		Participant: in.Participant,
		RequestID:   in.RequestID,
		Winner:      in.Winner,
		Error:       in.Error,
		At:          in.At,
	}
	if in.Amount != "" {
		amount, err := uint256.FromDecimal(in.Amount)
		if err != nil {
			return err
		}
		o.Amount = amount
	}
	return nil
}

func addrPtr(a common.Address) *common.Address { return &a }
