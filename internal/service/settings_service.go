package service

import (
	"context"
	"strings"

	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/repository"
)

// SettingsService reads and updates the event settings singleton.
type SettingsService struct {
	store repository.SettingsStore
}

// NewSettingsService returns a SettingsService.
func NewSettingsService(store repository.SettingsStore) *SettingsService {
	return &SettingsService{store: store}
}

// Get returns the current settings (defaults until first save).
func (s *SettingsService) Get(ctx context.Context) (model.EventSettings, error) {
	return s.store.GetSettings(ctx)
}

// Update merges patch into the stored settings and saves the result.
// Empty fields in patch keep their stored value.
func (s *SettingsService) Update(ctx context.Context, patch model.EventSettings) (model.EventSettings, error) {
	patch.EventName = strings.TrimSpace(patch.EventName)
	patch.EventPlace = strings.TrimSpace(patch.EventPlace)
	current, err := s.store.GetSettings(ctx)
	if err != nil {
		return model.EventSettings{}, err
	}
	next := current.Merge(patch)
	if err := s.store.SaveSettings(ctx, next); err != nil {
		return model.EventSettings{}, err
	}
	return next, nil
}
