package service

import (
	"context"
	"errors"

	"raffle/internal/models"
	"raffle/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
type stubRepo struct {
	events   []models.RaffleEvent
	draws    map[string]*models.Draw
	settings map[string]models.SystemSetting
	failAll  bool
}

func newStubRepo() *stubRepo {
	return &stubRepo{draws: map[string]*models.Draw{}, settings: map[string]models.SystemSetting{}}
}

var errStub = errors.New("stub repo down")

func (s *stubRepo) InTx(ctx context.Context, fn func(repo repository.Repository) error) error {
	if s.failAll {
		return errStub
	}
	return fn(s)
}

func (s *stubRepo) InsertRaffleEvent(ctx context.Context, item *models.RaffleEvent) error {
	if s.failAll {
		return errStub
	}
	s.events = append(s.events, *item)
	return nil
}

func (s *stubRepo) ListRaffleEvents(ctx context.Context, params repository.ListRaffleEventsParams) ([]models.RaffleEvent, error) {
	return s.events, nil
}

func (s *stubRepo) CountRaffleEvents(ctx context.Context, params repository.ListRaffleEventsParams) (int64, error) {
	return int64(len(s.events)), nil
}

func (s *stubRepo) InsertDraw(ctx context.Context, item *models.Draw) error {
	if s.failAll {
		return errStub
	}
	cp := *item
	s.draws[item.RequestID] = &cp
	return nil
}

func (s *stubRepo) UpdateDrawSettlement(ctx context.Context, requestID string, update repository.DrawSettlement) error {
	d, ok := s.draws[requestID]
	if !ok {
		return nil
	}
	d.State = update.State
	if update.RandomValue != nil {
		d.RandomValue = update.RandomValue
	}
	if update.WinnerIndex != nil {
		d.WinnerIndex = update.WinnerIndex
	}
	if update.Winner != nil {
		d.Winner = update.Winner
	}
	if update.Amount != nil {
		d.Amount = update.Amount
	}
	if update.LastError != nil {
		d.LastError = update.LastError
	}
	if update.SettledAt != nil {
		d.SettledAt = update.SettledAt
	}
	return nil
}

func (s *stubRepo) GetDrawByRequestID(ctx context.Context, requestID string) (*models.Draw, error) {
	d, ok := s.draws[requestID]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (s *stubRepo) ListDraws(ctx context.Context, params repository.ListDrawsParams) ([]models.Draw, error) {
	out := make([]models.Draw, 0, len(s.draws))
	for _, d := range s.draws {
		out = append(out, *d)
	}
	return out, nil
}

func (s *stubRepo) CountDraws(ctx context.Context, params repository.ListDrawsParams) (int64, error) {
	return int64(len(s.draws)), nil
}

func (s *stubRepo) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	s.settings[item.Key] = *item
	return nil
}

func (s *stubRepo) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	item, ok := s.settings[key]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *stubRepo) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	out := make([]models.SystemSetting, 0, len(s.settings))
	for _, item := range s.settings {
		out = append(out, item)
	}
	return out, nil
}

var _ repository.Repository = (*stubRepo)(nil)
