package raffle

import (
	"time"

	"github.com/holiman/uint256"
)

// UpkeepCheck breaks the upkeep predicate into its sub-conditions.
type UpkeepCheck struct {
	IsOpen       bool `json:"is_open"`
	TimePassed   bool `json:"time_passed"`
	HasPlayers   bool `json:"has_players"`
	HasBalance   bool `json:"has_balance"`
	UpkeepNeeded bool `json:"upkeep_needed"`
}

// NeedsUpkeep reports whether a new draw may start.
func NeedsUpkeep(now, lastRoundStart time.Time, interval time.Duration, state State, participantCount int, balance *uint256.Int) bool {
	return EvaluateUpkeep(now, lastRoundStart, interval, state, participantCount, balance).UpkeepNeeded
}

func EvaluateUpkeep(now, lastRoundStart time.Time, interval time.Duration, state State, participantCount int, balance *uint256.Int) UpkeepCheck {
	c := UpkeepCheck{
		IsOpen:     state == StateOpen,
		TimePassed: now.Sub(lastRoundStart) >= interval,
		HasPlayers: participantCount > 0,
		HasBalance: balance != nil && !balance.IsZero(),
	}
	c.UpkeepNeeded = c.IsOpen && c.TimePassed && c.HasPlayers && c.HasBalance
	return c
}
