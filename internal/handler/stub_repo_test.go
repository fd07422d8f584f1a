package handler

import (
	"context"
	"strings"
	"sync"

	"raffle/internal/models"
	"raffle/internal/repository"
)

// memRepo keeps journal rows in memory and remembers the last event filter.
type memRepo struct {
	mu         sync.Mutex
	events     []models.RaffleEvent
	draws      map[string]*models.Draw
	lastEvents repository.ListRaffleEventsParams
	txs        int
}

func newMemRepo() *memRepo {
	return &memRepo{draws: map[string]*models.Draw{}}
}

func (m *memRepo) InTx(ctx context.Context, fn func(repo repository.Repository) error) error {
	m.mu.Lock()
	m.txs++
	m.mu.Unlock()
	return fn(m)
}

func (m *memRepo) InsertRaffleEvent(ctx context.Context, item *models.RaffleEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = uint64(len(m.events) + 1)
	m.events = append(m.events, *item)
	return nil
}

func (m *memRepo) ListRaffleEvents(ctx context.Context, params repository.ListRaffleEventsParams) ([]models.RaffleEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastEvents = params
	out := make([]models.RaffleEvent, 0, len(m.events))
	for _, e := range m.events {
		if params.Since != nil && e.ObservedAt.Before(*params.Since) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memRepo) CountRaffleEvents(ctx context.Context, params repository.ListRaffleEventsParams) (int64, error) {
	items, _ := m.ListRaffleEvents(ctx, params)
	return int64(len(items)), nil
}

func (m *memRepo) InsertDraw(ctx context.Context, item *models.Draw) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *item
	m.draws[item.RequestID] = &cp
	return nil
}

func (m *memRepo) UpdateDrawSettlement(ctx context.Context, requestID string, update repository.DrawSettlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.draws[requestID]
	if !ok {
		return nil
	}
	d.State = update.State
	d.Winner = update.Winner
	d.Amount = update.Amount
	return nil
}

func (m *memRepo) GetDrawByRequestID(ctx context.Context, requestID string) (*models.Draw, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.draws[strings.TrimSpace(requestID)]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *memRepo) ListDraws(ctx context.Context, params repository.ListDrawsParams) ([]models.Draw, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Draw, 0, len(m.draws))
	for _, d := range m.draws {
		out = append(out, *d)
	}
	return out, nil
}

func (m *memRepo) CountDraws(ctx context.Context, params repository.ListDrawsParams) (int64, error) {
	items, _ := m.ListDraws(ctx, params)
	return int64(len(items)), nil
}

func (m *memRepo) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	return nil
}

func (m *memRepo) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	return nil, nil
}

func (m *memRepo) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	return nil, nil
}

var _ repository.Repository = (*memRepo)(nil)
