package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/sitefocus/internal/model"
	"github.com/rs/zerolog"
)

func TestThresholdRule(t *testing.T) {
	rule, err := NewThresholdRule(ThresholdConfig{ThresholdSeconds: 3600, VisitThreshold: 10}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewThresholdRule failed: %v", err)
	}

	tests := []struct {
		name     string
		features model.Features
		want     bool
	}{
		{name: "below both", features: model.Features{TimeSeconds: 3599, Visits: 10}, want: false},
		{name: "time at threshold", features: model.Features{TimeSeconds: 3600, Visits: 1}, want: true},
		{name: "visits over threshold", features: model.Features{TimeSeconds: 5, Visits: 11}, want: true},
		{name: "both", features: model.Features{TimeSeconds: 7200, Visits: 40}, want: true},
		{name: "blocked flag alone", features: model.Features{UserBlocked: true}, want: false},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rule.Distracting(ctx, tt.features)
			if err != nil {
				t.Fatalf("Distracting failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Distracting(%+v) = %v, want %v", tt.features, got, tt.want)
			}
		})
	}
}

func TestThresholdRulePolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.rego")
	policy := `package sitefocus.recommend

import rego.v1

default distracting := false

distracting if input.user_blocked
`
	if err := os.WriteFile(path, []byte(policy), 0644); err != nil {
		t.Fatalf("Failed to write policy: %v", err)
	}

	rule, err := NewThresholdRule(ThresholdConfig{PolicyFile: path}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewThresholdRule failed: %v", err)
	}

	got, err := rule.Distracting(context.Background(), model.Features{UserBlocked: true})
	if err != nil {
		t.Fatalf("Distracting failed: %v", err)
	}
	if !got {
		t.Error("Expected custom policy to flag blocked site")
	}
}

func TestThresholdRuleBadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.rego")
	if err := os.WriteFile(path, []byte("package sitefocus.recommend\n\ndistracting if {"), 0644); err != nil {
		t.Fatalf("Failed to write policy: %v", err)
	}

	if _, err := NewThresholdRule(ThresholdConfig{PolicyFile: path}, zerolog.Nop()); err == nil {
		t.Error("Expected error for unparsable policy")
	}

	if _, err := NewThresholdRule(ThresholdConfig{PolicyFile: filepath.Join(t.TempDir(), "missing.rego")}, zerolog.Nop()); err == nil {
		t.Error("Expected error for missing policy file")
	}
}

func TestWorkHours(t *testing.T) {
	tests := []struct {
		hour int
		want bool
	}{
		{hour: 8, want: false},
		{hour: 9, want: true},
		{hour: 13, want: true},
		{hour: 17, want: true},
		{hour: 18, want: false},
	}

	for _, tt := range tests {
		clock := &TestClock{CurrentTime: time.Date(2024, 3, 4, tt.hour, 30, 0, 0, time.Local)}
		if got := WorkHours(Hour(clock), 9, 17); got != tt.want {
			t.Errorf("WorkHours(%d) = %v, want %v", tt.hour, got, tt.want)
		}
	}
}
