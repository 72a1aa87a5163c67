package model

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// testTree blocks manually blocked sites, and otherwise anything over an hour
const testTree = `{
	"children_left":  [1, 3, -1, -1, -1],
	"children_right": [2, 4, -1, -1, -1],
	"feature":        [3, 0, -2, -2, -2],
	"threshold":      [0.5, 60.0, -2.0, -2.0, -2.0],
	"value": [
		[[3.0, 3.0]],
		[[3.0, 1.0]],
		[[0.0, 2.0]],
		[[3.0, 0.0]],
		[[0.0, 1.0]]
	]
}`

func TestParseAndPredict(t *testing.T) {
	tree, err := Parse([]byte(testTree))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	tests := []struct {
		name     string
		features Features
		want     bool
	}{
		{name: "short visit", features: Features{TimeSeconds: 600, Visits: 2}, want: false},
		{name: "exactly threshold", features: Features{TimeSeconds: 3600, Visits: 2}, want: false},
		{name: "over an hour", features: Features{TimeSeconds: 3660, Visits: 2}, want: true},
		{name: "manually blocked", features: Features{TimeSeconds: 1, UserBlocked: true}, want: true},
		{name: "work hours ignored", features: Features{TimeSeconds: 60, WorkHours: true}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tree.Predict(tt.features); got != tt.want {
				t.Errorf("Predict(%+v) = %v, want %v", tt.features, got, tt.want)
			}
		})
	}
}

func TestFeaturesVector(t *testing.T) {
	v := Features{TimeSeconds: 90, Visits: 4, WorkHours: true}.Vector()
	if v[FeatureTimeMinutes] != 1.5 {
		t.Errorf("Expected 1.5 minutes, got %v", v[FeatureTimeMinutes])
	}
	if v[FeatureVisits] != 4 || v[FeatureWorkHours] != 1 || v[FeatureUserBlocked] != 0 {
		t.Errorf("Unexpected vector: %v", v)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "not json", doc: `{`},
		{name: "empty", doc: `{}`},
		{name: "length mismatch", doc: `{"children_left":[-1],"children_right":[-1,-1],"feature":[-2],"threshold":[-2],"value":[[[1,0]]]}`},
		{name: "backwards child", doc: `{"children_left":[0,-1],"children_right":[1,-1],"feature":[0,-2],"threshold":[1,-2],"value":[[[1,0]],[[1,0]]]}`},
		{name: "unknown feature", doc: `{"children_left":[1,-1,-1],"children_right":[2,-1,-1],"feature":[7,-2,-2],"threshold":[1,-2,-2],"value":[[[1,1]],[[1,0]],[[0,1]]]}`},
		{name: "leaf without values", doc: `{"children_left":[-1],"children_right":[-1],"feature":[-2],"threshold":[-2],"value":[[]]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestLoaderFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decision_tree.json")
	if err := os.WriteFile(path, []byte(testTree), 0644); err != nil {
		t.Fatalf("Failed to write model: %v", err)
	}

	loader := NewLoader(Config{Source: path, RetryDelay: time.Millisecond}, zerolog.Nop())
	if loader.Loaded() {
		t.Fatal("Expected loader to start unloaded")
	}

	if err := loader.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loader.Loaded() {
		t.Fatal("Expected model to be loaded")
	}
	if _, ok := loader.Model(); !ok {
		t.Error("Expected Model to return the tree")
	}
}

func TestLoaderRetriesThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			http.Error(w, "not yet", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(testTree))
	}))
	defer server.Close()

	loader := NewLoader(Config{Source: server.URL, MaxAttempts: 5, RetryDelay: time.Millisecond}, zerolog.Nop())
	loader.Start(context.Background())

	select {
	case <-loader.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Loader did not finish")
	}

	if !loader.Loaded() {
		t.Fatal("Expected model to be loaded after retries")
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("Expected 3 fetches, got %d", got)
	}
}

func TestLoaderGivesUpAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	loader := NewLoader(Config{Source: server.URL, MaxAttempts: 5, RetryDelay: time.Millisecond}, zerolog.Nop())
	if err := loader.Load(context.Background()); err == nil {
		t.Fatal("Expected load to fail")
	}

	if got := hits.Load(); got != 5 {
		t.Errorf("Expected 5 attempts, got %d", got)
	}
	if loader.Loaded() {
		t.Error("Expected model to stay unloaded")
	}

	// Later calls do not try again
	if err := loader.Load(context.Background()); err == nil {
		t.Error("Expected cached failure")
	}
	if got := hits.Load(); got != 5 {
		t.Errorf("Expected no further attempts, got %d", got)
	}
}

func TestLoaderStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loader := NewLoader(Config{Source: filepath.Join(t.TempDir(), "missing.json"), RetryDelay: time.Hour}, zerolog.Nop())
	if err := loader.Load(ctx); err == nil {
		t.Fatal("Expected error for cancelled load")
	}
	if loader.Loaded() {
		t.Error("Expected model to stay unloaded")
	}
}

func TestNewLoaderDefaults(t *testing.T) {
	tests := []struct {
		name         string
		config       Config
		wantAttempts int
		wantDelay    time.Duration
	}{
		{name: "zero values", config: Config{}, wantAttempts: 5, wantDelay: 0},
		{name: "negative delay", config: Config{RetryDelay: -time.Second}, wantAttempts: 5, wantDelay: 2 * time.Second},
		{name: "explicit", config: Config{MaxAttempts: 2, RetryDelay: time.Minute}, wantAttempts: 2, wantDelay: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := NewLoader(tt.config, zerolog.Nop())
			if loader.config.MaxAttempts != tt.wantAttempts {
				t.Errorf("MaxAttempts = %d, want %d", loader.config.MaxAttempts, tt.wantAttempts)
			}
			if loader.config.RetryDelay != tt.wantDelay {
				t.Errorf("RetryDelay = %v, want %v", loader.config.RetryDelay, tt.wantDelay)
			}
		})
	}
}
