package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"raffle/internal/models"
	"raffle/internal/repository"
)

const (
	FeatureKeeper           = "feature.keeper"
	FeatureStaleDrawCancel  = "feature.stale_draw_cancel"
	FeatureLocalAutoFulfill = "feature.local_autofulfill"
)

var switchDescriptions = map[string]string{
	FeatureKeeper:           "cron keeper performs upkeep",
	FeatureStaleDrawCancel:  "keeper cancels draws past raffle.draw_timeout",
	FeatureLocalAutoFulfill: "local coordinator answers its own requests",
}

func DefaultFeatureSwitches() map[string]bool {
	return map[string]bool{
		FeatureKeeper:           true,
		FeatureStaleDrawCancel:  true,
		FeatureLocalAutoFulfill: true,
	}
}

// SystemSettingsService reads and writes feature switches. Without a
// repository the switches live in memory for the life of the process.
type SystemSettingsService struct {
	Repo   repository.Repository
	Logger *zap.Logger

	mu     sync.RWMutex
	memory map[string]bool
}

func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	now := time.Now().UTC()
	for key, enabled := range DefaultFeatureSwitches() {
		existing, err := s.Repo.GetSystemSettingByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		item := &models.SystemSetting{
			Key:         key,
			Enabled:     enabled,
			Description: switchDescriptions[key],
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil {
		return fallback
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	if s.Repo == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if v, ok := s.memory[key]; ok {
			return v
		}
		return fallback
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil || item == nil {
		return fallback
	}
	return item.Enabled
}

func (s *SystemSettingsService) SetEnabled(ctx context.Context, key string, enabled bool) error {
	if s == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	if s.Repo == nil {
		s.mu.Lock()
		if s.memory == nil {
			s.memory = map[string]bool{}
		}
		s.memory[key] = enabled
		s.mu.Unlock()
		return nil
	}
	item := &models.SystemSetting{
		Key:         key,
		Enabled:     enabled,
		Description: switchDescriptions[key],
		UpdatedAt:   time.Now().UTC(),
	}
	return s.Repo.UpsertSystemSetting(ctx, item)
}

type FeatureSwitch struct {
	Key         string     `json:"key"`
	Enabled     bool       `json:"enabled"`
	Description string     `json:"description,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Switches lists every known switch with its effective value. Stored rows
// are read in one query; unknown stored keys are ignored.
func (s *SystemSettingsService) Switches(ctx context.Context) []FeatureSwitch {
	defaults := DefaultFeatureSwitches()
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	stored := map[string]models.SystemSetting{}
	if s != nil && s.Repo != nil {
		prefix := "feature."
		items, err := s.Repo.ListSystemSettings(ctx, repository.ListSystemSettingsParams{Prefix: &prefix, Limit: len(keys) * 4})
		if err != nil && s.Logger != nil {
			s.Logger.Warn("list switches failed, using defaults", zap.Error(err))
		}
		for _, item := range items {
			stored[item.Key] = item
		}
	}

	out := make([]FeatureSwitch, 0, len(keys))
	for _, k := range keys {
		sw := FeatureSwitch{Key: k, Enabled: defaults[k], Description: switchDescriptions[k]}
		if s != nil && s.Repo == nil {
			sw.Enabled = s.IsEnabled(ctx, k, defaults[k])
		}
		if item, ok := stored[k]; ok {
			sw.Enabled = item.Enabled
			updated := item.UpdatedAt
			sw.UpdatedAt = &updated
		}
		out = append(out, sw)
	}
	return out
}

func IsKnownSwitch(key string) bool {
	_, ok := DefaultFeatureSwitches()[strings.TrimSpace(key)]
	return ok
}
