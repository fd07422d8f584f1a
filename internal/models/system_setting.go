package models

import "time"

// SystemSetting is one persisted raffle switch, keyed by feature name
// (feature.keeper, feature.stale_draw_cancel, ...). No row means the
// built-in default applies.
type SystemSetting struct {
	Key         string    `gorm:"type:varchar(64);primaryKey"`
	Enabled     bool      `gorm:"not null"`
	Description string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (SystemSetting) TableName() string {
	return "raffle_switches"
}
