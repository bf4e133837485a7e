package service

import (
	"context"
	"errors"
	"testing"

	"propdesk/internal/domain"
	"propdesk/internal/repository/memory"
)

func TestSystemSettingsSwitches(t *testing.T) {
	ctx := context.Background()
	s := &SystemSettingsService{Repo: memory.New()}
	if err := s.EnsureDefaultSwitches(ctx); err != nil {
		t.Fatalf("EnsureDefaultSwitches err=%v", err)
	}
	if !s.IsEnabled(ctx, FeatureSweep, false) {
		t.Fatalf("sweep should default to enabled")
	}
	if err := s.SetEnabled(ctx, FeatureSweep, false); err != nil {
		t.Fatalf("SetEnabled err=%v", err)
	}
	if s.IsEnabled(ctx, FeatureSweep, true) {
		t.Fatalf("sweep should be disabled")
	}
	if err := s.EnsureDefaultSwitches(ctx); err != nil {
		t.Fatalf("EnsureDefaultSwitches err=%v", err)
	}
	if s.IsEnabled(ctx, FeatureSweep, true) {
		t.Fatalf("EnsureDefaultSwitches must not overwrite an operator choice")
	}
	if err := s.SetEnabled(ctx, "feature.unknown", true); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err=%v want ErrValidation", err)
	}
	items, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List err=%v", err)
	}
	if len(items) != len(DefaultFeatureSwitches()) {
		t.Fatalf("items=%d want %d", len(items), len(DefaultFeatureSwitches()))
	}
}

func TestSystemSettingsNilIsFallback(t *testing.T) {
	var s *SystemSettingsService
	if !s.IsEnabled(context.Background(), FeatureSweep, true) {
		t.Fatalf("nil service should return fallback")
	}
}
