package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/sitefocus/internal/config"
	"github.com/goodtune/sitefocus/internal/model"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	validateDump      bool
	validateSkipModel bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the sitefocus configuration file and check that the recommendation model loads.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	validateCmd.Flags().BoolVar(&validateSkipModel, "skip-model", false, "Do not try to load the recommendation model")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	// Check for unknown keys (always, not just with --dump)
	unknownKeys, err := config.UnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(out, "✅ Configuration is valid: %s\n", displayPath(configPath))

	// Warn about unknown keys
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		_, _ = fmt.Fprintln(out)
		_, _ = red.Fprintf(out, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			_, _ = red.Fprintf(out, "   - %s\n", key)
		}
		_, _ = fmt.Fprintln(out, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	if cfg.Recommendation.Mode == config.ModeModel && !validateSkipModel {
		if err := checkModel(cmd.Context(), cfg.Model); err != nil {
			fmt.Fprintf(os.Stderr, "❌ Model check failed: %v\n", err)
			return err
		}
		_, _ = fmt.Fprintf(out, "✅ Model loads: %s\n", cfg.Model.Source)
	}

	// If dump requested, show full configuration with defaults highlighted
	if validateDump {
		_, _ = fmt.Fprintln(out, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(out, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(out, strings.Repeat("=", 80))

		dumpConfig(out, cfg, config.Defaults(), unknownKeys)
	}

	return nil
}

// checkModel makes a single attempt to fetch and parse the model
func checkModel(ctx context.Context, cfg config.ModelConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	loader := model.NewLoader(model.Config{
		Source:      cfg.Source,
		MaxAttempts: 1,
		HTTPTimeout: parseDuration(cfg.HTTPTimeout, 10*time.Second),
	}, zerolog.Nop())
	return loader.Load(ctx)
}

func displayPath(path string) string {
	if path == "" {
		return "(defaults and environment)"
	}
	return path
}

// dumpConfig dumps configuration with color highlighting for non-default values
func dumpConfig(out io.Writer, cfg, defaultCfg *config.Config, unknownKeys []string) {
	// Setup colors (only if terminal supports it)
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	dumpSection(out, "", reflect.ValueOf(*cfg), reflect.ValueOf(*defaultCfg), cyan, yellow, green)

	// Display unknown keys if any
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)

		_, _ = cyan.Fprintln(out, "\n[UNKNOWN KEYS - These will be ignored!]")
		for _, key := range unknownKeys {
			_, _ = red.Fprintf(out, "  %s = (unknown key - check for typos)\n", key)
		}
	}

	_, _ = fmt.Fprintln(out, "\n"+strings.Repeat("=", 80))
}

// dumpSection walks a config struct using its mapstructure names
func dumpSection(out io.Writer, prefix string, value, defaultValue reflect.Value, header, modifiedColor, defaultColor *color.Color) {
	t := value.Type()
	indent := strings.Repeat("  ", strings.Count(prefix, ".")+1)
	if prefix == "" {
		indent = ""
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Tag.Get("mapstructure")
		if name == "" {
			name = strings.ToLower(field.Name)
		}

		if field.Type.Kind() == reflect.Struct {
			key := name
			if prefix != "" {
				key = prefix + "." + name
			}
			_, _ = header.Fprintf(out, "\n%s[%s]\n", indent, key)
			dumpSection(out, key, value.Field(i), defaultValue.Field(i), header, modifiedColor, defaultColor)
			continue
		}

		v, d := value.Field(i).Interface(), defaultValue.Field(i).Interface()
		if name == "password" {
			v, d = redactPassword(v.(string)), redactPassword(d.(string))
		}
		dumpField(out, indent+name, v, d, modifiedColor, defaultColor)
	}
}

// dumpField prints a field with color if it differs from default
func dumpField(out io.Writer, name string, value, defaultValue interface{}, modifiedColor, defaultColor *color.Color) {
	// Deep equal comparison
	isDefault := reflect.DeepEqual(value, defaultValue)

	valueStr := fmt.Sprintf("%v", value)

	if isDefault {
		_, _ = defaultColor.Fprintf(out, "%s = %s\n", name, valueStr)
	} else {
		_, _ = modifiedColor.Fprintf(out, "%s = %s  (modified from default: %v)\n", name, valueStr, defaultValue)
	}
}

// redactPassword redacts password if not empty
func redactPassword(password string) string {
	if password == "" {
		return ""
	}
	return "***REDACTED***"
}
