package raffle

import (
	"fmt"
	"strings"
	"time"
)

// State is the automaton state. OPEN is 0 and CALCULATING is 1 on the
// wire.
type State uint8

const (
	StateOpen State = iota
	StateCalculating
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateCalculating:
		return "CALCULATING"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(b))) {
	case "OPEN", "0":
		*s = StateOpen
	case "CALCULATING", "1":
		*s = StateCalculating
	default:
		return fmt.Errorf("unknown raffle state %q", string(b))
	}
	return nil
}

// Clock is the time source for interval comparisons.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
