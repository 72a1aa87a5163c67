package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/goodtune/sitefocus/internal/config"
	"github.com/goodtune/sitefocus/internal/policy"
	"github.com/goodtune/sitefocus/internal/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var recommendJSON bool

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Print sites recommended for blocking",
	Long: `Evaluate the persisted usage against the configured recommendation mode
and print the sites that would be suggested for blocking. The server must not
hold the bolt database open.`,
	Args: cobra.NoArgs,
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().BoolVar(&recommendJSON, "json", false, "Print the recommendation set as JSON")
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	usage, err := store.State().GetTrackingData(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to read tracking data: %w", err)
	}
	sites, err := store.State().GetBlockedSites(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to read blocked sites: %w", err)
	}
	blocked := make(map[string]struct{}, len(sites))
	for _, site := range sites {
		blocked[site] = struct{}{}
	}

	loader := newModelLoader(cfg.Model, zerolog.Nop())
	if cfg.Recommendation.Mode == config.ModeModel {
		if err := loader.Load(ctx); err != nil {
			return fmt.Errorf("failed to load model: %w", err)
		}
	}

	engine, err := newRecommender(cfg, loader, policy.RealClock{}, zerolog.Nop())
	if err != nil {
		return err
	}

	recommended := engine.Evaluate(ctx, usage, blocked)

	if recommendJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(recommended)
	}

	bold := color.New(color.Bold)
	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)

	_, _ = bold.Fprintf(out, "Evaluated %d site(s) in %s mode\n", len(usage), cfg.Recommendation.Mode)
	if len(recommended) == 0 {
		_, _ = green.Fprintln(out, "No sites recommended for blocking")
		return nil
	}
	for _, site := range recommended {
		rec := usage[site]
		_, _ = yellow.Fprintf(out, "  %-40s %6d min %5d visits\n", site, rec.TimeSeconds/60, rec.Visits)
	}
	return nil
}
