package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/sitefocus/internal/config"
	"github.com/goodtune/sitefocus/internal/hostname"
	"github.com/goodtune/sitefocus/internal/policy"
	"github.com/goodtune/sitefocus/internal/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	checkTime      time.Duration
	checkVisits    int64
	checkHour      int
	checkFocus     bool
	checkNoStorage bool
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] URL",
	Short: "Check enforcement and classification for a URL",
	Long: `Check what sitefocus would do for a URL: whether focus mode would redirect
it, whether it is excluded from recommendations and how the configured
recommendation mode classifies the given usage.`,
	Example: `  sitefocus check https://www.youtube.com/watch --time 90m --visits 12
  sitefocus -c config.yaml check --focus --hour 22 https://news.example.com/`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().DurationVar(&checkTime, "time", 0, "Time spent on the site")
	checkCmd.Flags().Int64Var(&checkVisits, "visits", 1, "Number of visits")
	checkCmd.Flags().IntVar(&checkHour, "hour", -1, "Hour of day to evaluate at (default: now)")
	checkCmd.Flags().BoolVar(&checkFocus, "focus", false, "Assume focus mode is on instead of reading it from storage")
	checkCmd.Flags().BoolVar(&checkNoStorage, "no-storage", false, "Do not read the block list and focus mode from storage")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	host, err := hostname.Resolve(args[0])
	if err != nil {
		return fmt.Errorf("cannot track %s: %w", args[0], err)
	}

	blocked := map[string]struct{}{}
	if mandatory, err := hostname.Canonical(cfg.Enforcement.MandatorySite); err == nil {
		blocked[mandatory] = struct{}{}
	}
	focus := checkFocus

	if !checkNoStorage {
		store, err := openStorage(cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()

		sites, err := store.State().GetBlockedSites(ctx)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to read blocked sites: %w", err)
		}
		for _, site := range sites {
			blocked[site] = struct{}{}
		}

		if !checkFocus {
			focus, err = store.State().GetFocusMode(ctx)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("failed to read focus mode: %w", err)
			}
		}
	}

	var clock policy.Clock = policy.RealClock{}
	if checkHour >= 0 {
		now := time.Now()
		clock = &policy.TestClock{CurrentTime: time.Date(now.Year(), now.Month(), now.Day(), checkHour, 0, 0, 0, now.Location())}
	}

	loader := newModelLoader(cfg.Model, zerolog.Nop())
	if cfg.Recommendation.Mode == config.ModeModel {
		if err := loader.Load(ctx); err != nil {
			return fmt.Errorf("failed to load model: %w", err)
		}
	}
	engine, err := newRecommender(cfg, loader, clock, zerolog.Nop())
	if err != nil {
		return err
	}

	usage := map[string]storage.UsageRecord{
		host: {TimeSeconds: int64(checkTime / time.Second), Visits: checkVisits},
	}
	recommended := engine.Evaluate(ctx, usage, blocked)

	bold := color.New(color.Bold)
	red := color.New(color.FgRed, color.Bold)
	green := color.New(color.FgGreen)

	_, isBlocked := blocked[host]

	_, _ = bold.Fprintf(out, "Host:        %s\n", host)
	_, _ = fmt.Fprintf(out, "Block list:  %v\n", isBlocked)
	_, _ = fmt.Fprintf(out, "Focus mode:  %v\n", focus)
	if focus && isBlocked {
		_, _ = red.Fprintf(out, "Enforcement: redirect to %s on next tick\n", cfg.Enforcement.BlockedPage)
	} else {
		_, _ = green.Fprintln(out, "Enforcement: allowed")
	}

	switch {
	case engine.Excluded(host):
		_, _ = green.Fprintln(out, "Recommend:   never (excluded domain)")
	case len(recommended) > 0:
		_, _ = red.Fprintf(out, "Recommend:   distracting (%s mode)\n", cfg.Recommendation.Mode)
	default:
		_, _ = green.Fprintf(out, "Recommend:   not distracting (%s mode)\n", cfg.Recommendation.Mode)
	}

	return nil
}
