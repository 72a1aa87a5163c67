package policy

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/goodtune/sitefocus/internal/model"
	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"
)

//go:embed threshold.rego
var defaultThresholdPolicy string

const thresholdQuery = "data.sitefocus.recommend.distracting"

// ThresholdConfig parameterizes the threshold policy
type ThresholdConfig struct {
	ThresholdSeconds int64
	VisitThreshold   int64
	PolicyFile       string // optional override of the built-in policy
}

// ThresholdRule classifies a site as distracting when its time or visit
// count crosses a configured threshold
type ThresholdRule struct {
	config ThresholdConfig
	query  rego.PreparedEvalQuery
	logger zerolog.Logger
}

// NewThresholdRule compiles the threshold policy
func NewThresholdRule(config ThresholdConfig, logger zerolog.Logger) (*ThresholdRule, error) {
	r := &ThresholdRule{
		config: config,
		logger: logger.With().Str("component", "opa").Logger(),
	}

	name := "threshold.rego"
	source := defaultThresholdPolicy
	if config.PolicyFile != "" {
		content, err := os.ReadFile(config.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy file %s: %w", config.PolicyFile, err)
		}
		name = config.PolicyFile
		source = string(content)
	}

	// Parse the module
	module, err := ast.ParseModule(name, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy %s: %w", name, err)
	}

	query, err := rego.New(
		rego.Query(thresholdQuery),
		rego.Module(name, source),
	).PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare threshold query: %w", err)
	}
	r.query = query

	r.logger.Info().
		Str("policy", name).
		Str("package", module.Package.Path.String()).
		Int64("threshold_seconds", config.ThresholdSeconds).
		Int64("visit_threshold", config.VisitThreshold).
		Msg("Threshold policy prepared")

	return r, nil
}

// Distracting evaluates the policy for one hostname's features
func (r *ThresholdRule) Distracting(ctx context.Context, f model.Features) (bool, error) {
	startTime := time.Now()

	input := map[string]interface{}{
		"time_seconds":      f.TimeSeconds,
		"visits":            f.Visits,
		"work_hours":        f.WorkHours,
		"user_blocked":      f.UserBlocked,
		"threshold_seconds": r.config.ThresholdSeconds,
		"visit_threshold":   r.config.VisitThreshold,
	}

	// Evaluate the query
	results, err := r.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("threshold query evaluation failed: %w", err)
	}

	r.logger.Debug().Dur("duration_ms", time.Since(startTime)).Msg("Threshold query evaluated")

	// Extract result
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, fmt.Errorf("no results from threshold query")
	}

	distracting, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("threshold result is not a bool: %T", results[0].Expressions[0].Value)
	}

	return distracting, nil
}
