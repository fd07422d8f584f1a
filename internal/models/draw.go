package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	DrawStatePending      = "pending"
	DrawStatePaid         = "paid"
	DrawStateCancelled    = "cancelled"
	DrawStatePayoutFailed = "payout_failed"
)

// Draw is one randomness request and how it was settled.
type Draw struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	Round     uint64 `gorm:"not null;index"`
	RequestID string `gorm:"type:varchar(128);not null;uniqueIndex"`
	State     string `gorm:"type:varchar(20);not null;index"`

	Players      int            `gorm:"not null"`
	Participants datatypes.JSON `gorm:"type:jsonb"`
	RandomValue  *string        `gorm:"type:numeric(78,0)"`
	WinnerIndex  *int
	Winner       *string `gorm:"type:varchar(42);index"`
	Amount       *string `gorm:"type:numeric(78,0)"`
	LastError    *string `gorm:"type:text"`

	RequestedAt time.Time  `gorm:"type:timestamptz;not null;index"`
	SettledAt   *time.Time `gorm:"type:timestamptz"`
	UpdatedAt   time.Time  `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Draw) TableName() string {
	return "draws"
}
