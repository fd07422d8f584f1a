package models

import (
	"time"

	"gorm.io/datatypes"
)

// RaffleEvent is the journal of observations emitted by the automaton.
type RaffleEvent struct {
	ID    uint64 `gorm:"primaryKey;autoIncrement"`
	Kind  string `gorm:"type:varchar(32);not null;index"`
	Round uint64 `gorm:"not null;index"`

	Participant *string `gorm:"type:varchar(42);index"`
	RequestID   *string `gorm:"type:varchar(128);index"`
	Winner      *string `gorm:"type:varchar(42);index"`
	// Amounts are stored as decimal strings of minor units (uint256 range).
	Amount *string `gorm:"type:numeric(78,0)"`

	Payload    datatypes.JSON `gorm:"type:jsonb"`
	ObservedAt time.Time      `gorm:"type:timestamptz;not null;index"`
	CreatedAt  time.Time      `gorm:"type:timestamptz;autoCreateTime"`
}

func (RaffleEvent) TableName() string {
	return "raffle_events"
}
