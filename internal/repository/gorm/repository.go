package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"raffle/internal/models"
	"raffle/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ repository.Repository = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(repo repository.Repository) error) error {
	if s == nil || s.db == nil {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

// --- observation journal ----------------------------------------------------

func (s *Store) InsertRaffleEvent(ctx context.Context, item *models.RaffleEvent) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListRaffleEvents(ctx context.Context, params repository.ListRaffleEventsParams) ([]models.RaffleEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyRaffleEventFilters(s.db.WithContext(ctx).Model(&models.RaffleEvent{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "id")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.RaffleEvent
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountRaffleEvents(ctx context.Context, params repository.ListRaffleEventsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := applyRaffleEventFilters(s.db.WithContext(ctx).Model(&models.RaffleEvent{}), params)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func applyRaffleEventFilters(query *gorm.DB, params repository.ListRaffleEventsParams) *gorm.DB {
	if params.Kind != nil && strings.TrimSpace(*params.Kind) != "" {
		query = query.Where("kind = ?", strings.TrimSpace(*params.Kind))
	}
	if params.Round != nil {
		query = query.Where("round = ?", *params.Round)
	}
	if params.Participant != nil && strings.TrimSpace(*params.Participant) != "" {
		query = query.Where("participant = ?", strings.TrimSpace(*params.Participant))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("observed_at >= ?", *params.Since)
	}
	return query
}

// --- draws ------------------------------------------------------------------

func (s *Store) InsertDraw(ctx context.Context, item *models.Draw) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.RequestID = strings.TrimSpace(item.RequestID)
	if item.RequestID == "" {
		return errors.New("draw request id is empty")
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}},
		DoNothing: true,
	}).Create(item).Error
}

func (s *Store) UpdateDrawSettlement(ctx context.Context, requestID string, update repository.DrawSettlement) error {
	if s == nil || s.db == nil {
		return nil
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil
	}
	updates := map[string]any{"state": update.State}
	if update.RandomValue != nil {
		updates["random_value"] = *update.RandomValue
	}
	if update.WinnerIndex != nil {
		updates["winner_index"] = *update.WinnerIndex
	}
	if update.Winner != nil {
		updates["winner"] = *update.Winner
	}
	if update.Amount != nil {
		updates["amount"] = *update.Amount
	}
	if update.LastError != nil {
		updates["last_error"] = *update.LastError
	}
	if update.SettledAt != nil {
		updates["settled_at"] = *update.SettledAt
	}
	return s.db.WithContext(ctx).
		Model(&models.Draw{}).
		Where("request_id = ?", requestID).
		Updates(updates).Error
}

func (s *Store) GetDrawByRequestID(ctx context.Context, requestID string) (*models.Draw, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, nil
	}
	var item models.Draw
	err := s.db.WithContext(ctx).Model(&models.Draw{}).Where("request_id = ?", requestID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListDraws(ctx context.Context, params repository.ListDrawsParams) ([]models.Draw, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyDrawFilters(s.db.WithContext(ctx).Model(&models.Draw{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "requested_at")
	limit := normalizeLimit(params.Limit, 50)
	offset := normalizeOffset(params.Offset)
	var items []models.Draw
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountDraws(ctx context.Context, params repository.ListDrawsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := applyDrawFilters(s.db.WithContext(ctx).Model(&models.Draw{}), params)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func applyDrawFilters(query *gorm.DB, params repository.ListDrawsParams) *gorm.DB {
	if params.State != nil && strings.TrimSpace(*params.State) != "" {
		query = query.Where("state = ?", strings.TrimSpace(*params.State))
	}
	if params.Winner != nil && strings.TrimSpace(*params.Winner) != "" {
		query = query.Where("winner = ?", strings.TrimSpace(*params.Winner))
	}
	return query
}

// --- system settings --------------------------------------------------------

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"enabled",
			"description",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Model(&models.SystemSetting{}).Where("key = ?", key).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.SystemSetting{})
	if params.Prefix != nil && strings.TrimSpace(*params.Prefix) != "" {
		query = query.Where("key LIKE ?", strings.TrimSpace(*params.Prefix)+"%")
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "key")
	limit := normalizeLimit(params.Limit, 500)
	offset := normalizeOffset(params.Offset)
	var items []models.SystemSetting
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

var orderColumns = map[string]struct{}{
	"id": {}, "round": {}, "kind": {}, "observed_at": {}, "created_at": {},
	"requested_at": {}, "settled_at": {}, "state": {}, "key": {}, "updated_at": {},
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if _, ok := orderColumns[column]; !ok {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
