package repository

import (
	"context"
	"time"

	"raffle/internal/models"
)

type Repository interface {
	// InTx runs fn against a repository bound to one transaction.
	InTx(ctx context.Context, fn func(repo Repository) error) error

	// Observation journal.
	InsertRaffleEvent(ctx context.Context, item *models.RaffleEvent) error
	ListRaffleEvents(ctx context.Context, params ListRaffleEventsParams) ([]models.RaffleEvent, error)
	CountRaffleEvents(ctx context.Context, params ListRaffleEventsParams) (int64, error)

	// Draw records.
	InsertDraw(ctx context.Context, item *models.Draw) error
	UpdateDrawSettlement(ctx context.Context, requestID string, update DrawSettlement) error
	GetDrawByRequestID(ctx context.Context, requestID string) (*models.Draw, error)
	ListDraws(ctx context.Context, params ListDrawsParams) ([]models.Draw, error)
	CountDraws(ctx context.Context, params ListDrawsParams) (int64, error)

	// Feature switches.
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
}

type ListRaffleEventsParams struct {
	Limit       int
	Offset      int
	Kind        *string
	Round       *uint64
	Participant *string
	Since       *time.Time
	OrderBy     string
	Asc         *bool
}

type ListDrawsParams struct {
	Limit   int
	Offset  int
	State   *string
	Winner  *string
	OrderBy string
	Asc     *bool
}

// DrawSettlement is the mutable tail of a draw record.
type DrawSettlement struct {
	State       string
	RandomValue *string
	WinnerIndex *int
	Winner      *string
	Amount      *string
	LastError   *string
	SettledAt   *time.Time
}

type ListSystemSettingsParams struct {
	Limit   int
	Offset  int
	Prefix  *string
	OrderBy string
	Asc     *bool
}
