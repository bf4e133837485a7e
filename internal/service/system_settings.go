package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"propdesk/internal/domain"
	"propdesk/internal/repository"
)

const (
	FeatureSweep        = "feature.sweep"
	FeaturePriceRefresh = "feature.price_refresh"
	FeatureTradeChecks  = "feature.trade_checks"
)

func DefaultFeatureSwitches() map[string]bool {
	return map[string]bool{
		FeatureSweep:        true,
		FeaturePriceRefresh: true,
		FeatureTradeChecks:  true,
	}
}

type Setting struct {
	Key     string `json:"key"`
	Enabled bool   `json:"enabled"`
}

type SystemSettingsService struct {
	Repo repository.Repository
}

// EnsureDefaultSwitches creates missing switches. Existing values are kept.
func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	for key, enabled := range DefaultFeatureSwitches() {
		_, ok, err := s.Repo.GetSetting(ctx, key)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		raw, _ := json.Marshal(enabled)
		if err := s.Repo.UpsertSetting(ctx, key, raw, "feature switch"); err != nil {
			return err
		}
	}
	return nil
}

func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil || s.Repo == nil {
		return fallback
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	raw, ok, err := s.Repo.GetSetting(ctx, key)
	if err != nil || !ok || len(raw) == 0 {
		return fallback
	}
	var enabled bool
	if err := json.Unmarshal(raw, &enabled); err != nil {
		return fallback
	}
	return enabled
}

func (s *SystemSettingsService) SetEnabled(ctx context.Context, key string, enabled bool) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if _, known := DefaultFeatureSwitches()[key]; !known {
		return domain.Validation("set_setting", "unknown setting %q", key)
	}
	raw, _ := json.Marshal(enabled)
	return s.Repo.UpsertSetting(ctx, key, raw, "feature switch")
}

func (s *SystemSettingsService) List(ctx context.Context) ([]Setting, error) {
	if s == nil || s.Repo == nil {
		return nil, nil
	}
	stored, err := s.Repo.ListSettings(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Setting, 0, len(stored))
	for key, raw := range stored {
		var enabled bool
		if err := json.Unmarshal(raw, &enabled); err != nil {
			continue
		}
		out = append(out, Setting{Key: key, Enabled: enabled})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
