// Package recommend decides which tracked sites look distracting enough to
// suggest adding to the block list.
package recommend

import (
	"context"
	"sort"
	"strings"

	"github.com/goodtune/sitefocus/internal/config"
	"github.com/goodtune/sitefocus/internal/metrics"
	"github.com/goodtune/sitefocus/internal/model"
	"github.com/goodtune/sitefocus/internal/policy"
	"github.com/goodtune/sitefocus/internal/storage"
	"github.com/rs/zerolog"
)

// ModelSource provides the decision tree once it has loaded
type ModelSource interface {
	Model() (*model.Tree, bool)
}

// Rule classifies a single site
type Rule interface {
	Distracting(ctx context.Context, f model.Features) (bool, error)
}

// Config controls classification
type Config struct {
	Mode            string
	ExcludedDomains []string
	WorkHoursStart  int
	WorkHoursEnd    int
}

// Engine evaluates usage against the configured classifier. It holds no
// state between evaluations.
type Engine struct {
	config Config
	models ModelSource
	rule   Rule
	clock  policy.Clock
	logger zerolog.Logger
}

// NewEngine creates a recommendation engine. models is consulted in model
// mode and rule in threshold mode; either may be nil when unused.
func NewEngine(cfg Config, models ModelSource, rule Rule, clock policy.Clock, logger zerolog.Logger) *Engine {
	if cfg.Mode == "" {
		cfg.Mode = config.ModeModel
	}
	if cfg.WorkHoursStart == 0 && cfg.WorkHoursEnd == 0 {
		cfg.WorkHoursStart, cfg.WorkHoursEnd = 9, 17
	}
	if clock == nil {
		clock = policy.RealClock{}
	}

	return &Engine{
		config: cfg,
		models: models,
		rule:   rule,
		clock:  clock,
		logger: logger.With().Str("component", "recommend").Logger(),
	}
}

// Evaluate returns the sorted hostnames classified as distracting. Excluded
// domains are never returned.
func (e *Engine) Evaluate(ctx context.Context, usage map[string]storage.UsageRecord, blocked map[string]struct{}) []string {
	classify, ok := e.classifier()
	if !ok {
		metrics.Recommendations.Set(0)
		return []string{}
	}

	workHours := policy.WorkHours(policy.Hour(e.clock), e.config.WorkHoursStart, e.config.WorkHoursEnd)

	sites := []string{}
	for host, rec := range usage {
		if e.Excluded(host) {
			continue
		}

		_, userBlocked := blocked[host]
		features := model.Features{
			TimeSeconds: rec.TimeSeconds,
			Visits:      rec.Visits,
			WorkHours:   workHours,
			UserBlocked: userBlocked,
		}

		distracting, err := classify(ctx, features)
		if err != nil {
			e.logger.Warn().Err(err).Str("host", host).Msg("Failed to classify site")
			continue
		}
		if distracting {
			sites = append(sites, host)
		}
	}

	sort.Strings(sites)
	metrics.Recommendations.Set(float64(len(sites)))

	e.logger.Debug().
		Int("evaluated", len(usage)).
		Strs("sites", sites).
		Msg("Recommendations evaluated")

	return sites
}

// Excluded reports whether host contains any excluded domain
func (e *Engine) Excluded(host string) bool {
	for _, domain := range e.config.ExcludedDomains {
		if domain != "" && strings.Contains(host, domain) {
			return true
		}
	}
	return false
}

func (e *Engine) classifier() (func(context.Context, model.Features) (bool, error), bool) {
	switch e.config.Mode {
	case config.ModeThreshold:
		if e.rule == nil {
			return nil, false
		}
		return e.rule.Distracting, true
	default:
		if e.models == nil {
			return nil, false
		}
		tree, ok := e.models.Model()
		if !ok {
			e.logger.Debug().Msg("Model not loaded, no recommendations")
			return nil, false
		}
		return func(_ context.Context, f model.Features) (bool, error) {
			return tree.Predict(f), nil
		}, true
	}
}
