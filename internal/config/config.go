package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/miekg/dns"
	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Storage        StorageConfig        `mapstructure:"storage"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Tracking       TrackingConfig       `mapstructure:"tracking"`
	Enforcement    EnforcementConfig    `mapstructure:"enforcement"`
	Model          ModelConfig          `mapstructure:"model"`
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
}

// ServerConfig defines server ports and addresses
type ServerConfig struct {
	APIPort      int      `mapstructure:"api_port"`
	MetricsPort  int      `mapstructure:"metrics_port"`
	BindAddress  string   `mapstructure:"bind_address"`
	AllowOrigins []string `mapstructure:"allow_origins"` // add-on origins permitted by CORS
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Path  string      `mapstructure:"path"`
	Type  string      `mapstructure:"type"` // "bolt" or "redis"
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	KeyPrefix    string `mapstructure:"key_prefix"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"` // empty logs to stdout
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// TrackingConfig defines the session tick and flush cadence
type TrackingConfig struct {
	TickInterval      string `mapstructure:"tick_interval"`
	FlushEveryTicks   int    `mapstructure:"flush_every_ticks"`
	FlushInterval     string `mapstructure:"flush_interval"`
	HostnameCacheSize int    `mapstructure:"hostname_cache_size"`
}

// EnforcementConfig defines focus mode enforcement
type EnforcementConfig struct {
	BlockedPage   string `mapstructure:"blocked_page"`
	MandatorySite string `mapstructure:"mandatory_site"`
}

// ModelConfig defines where the decision tree comes from
type ModelConfig struct {
	Source      string `mapstructure:"source"` // file path or http(s) URL
	MaxAttempts int    `mapstructure:"max_attempts"`
	RetryDelay  string `mapstructure:"retry_delay"`
	HTTPTimeout string `mapstructure:"http_timeout"`
}

// RecommendationConfig defines how distracting sites are classified
type RecommendationConfig struct {
	Mode             string   `mapstructure:"mode"` // "model" or "threshold"
	ThresholdSeconds int64    `mapstructure:"threshold_seconds"`
	VisitThreshold   int64    `mapstructure:"visit_threshold"`
	PolicyFile       string   `mapstructure:"policy_file"` // optional rego override for threshold mode
	WorkHoursStart   int      `mapstructure:"work_hours_start"`
	WorkHoursEnd     int      `mapstructure:"work_hours_end"`
	ExcludedDomains  []string `mapstructure:"excluded_domains"`
}

// Recommendation modes
const (
	ModeModel     = "model"
	ModeThreshold = "threshold"
)

// DefaultExcludedDomains are productivity and learning sites never recommended for blocking
var DefaultExcludedDomains = []string{
	"linkedin.com",
	"github.com",
	"trello.com",
	"slack.com",
	"notion.so",
	"whatsapp.com",
	"mail.google.com",
	"outlook.live.com",
	"coursera.org",
	"udemy.com",
	"khanacademy.org",
	"stackoverflow.com",
	"gitlab.com",
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// UnknownKeys returns keys present in the config file that no setting reads
func UnknownKeys(configPath string) ([]string, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}

	defaults := viper.New()
	setDefaults(defaults)
	known := make(map[string]struct{})
	for _, key := range defaults.AllKeys() {
		known[key] = struct{}{}
	}

	var unknown []string
	for _, key := range v.AllKeys() {
		if _, ok := known[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown, nil
}

func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetEnvPrefix("SITEFOCUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath == "" {
		return v, nil
	}

	// Read config file
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return v, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.api_port", 8787)
	v.SetDefault("server.metrics_port", 9787)
	v.SetDefault("server.bind_address", "127.0.0.1")
	v.SetDefault("server.allow_origins", []string{"chrome-extension://*", "moz-extension://*"})

	// Storage defaults
	v.SetDefault("storage.path", filepath.Join(xdg.DataHome, "sitefocus", "sitefocus.bolt"))
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 4)
	v.SetDefault("storage.redis.min_idle_conns", 1)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.redis.key_prefix", "sitefocus")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)

	// Tracking defaults
	v.SetDefault("tracking.tick_interval", "1s")
	v.SetDefault("tracking.flush_every_ticks", 5)
	v.SetDefault("tracking.flush_interval", "30s")
	v.SetDefault("tracking.hostname_cache_size", 512)

	// Enforcement defaults
	v.SetDefault("enforcement.blocked_page", "blocked.html")
	v.SetDefault("enforcement.mandatory_site", "web.whatsapp.com")

	// Model defaults
	v.SetDefault("model.source", "decision_tree.json")
	v.SetDefault("model.max_attempts", 5)
	v.SetDefault("model.retry_delay", "2s")
	v.SetDefault("model.http_timeout", "10s")

	// Recommendation defaults
	v.SetDefault("recommendation.mode", ModeModel)
	v.SetDefault("recommendation.threshold_seconds", 3600)
	v.SetDefault("recommendation.visit_threshold", 10)
	v.SetDefault("recommendation.policy_file", "")
	v.SetDefault("recommendation.work_hours_start", 9)
	v.SetDefault("recommendation.work_hours_end", 17)
	v.SetDefault("recommendation.excluded_domains", DefaultExcludedDomains)
}

// validate validates the configuration
func validate(cfg *Config) error {
	// Validate ports
	if cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535 {
		return fmt.Errorf("invalid API port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "bolt"
	}
	switch cfg.Storage.Type {
	case "bolt":
		// Validate storage path
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("redis host is required")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}

	// Validate durations
	for name, value := range map[string]string{
		"tracking.tick_interval":  cfg.Tracking.TickInterval,
		"tracking.flush_interval": cfg.Tracking.FlushInterval,
		"model.retry_delay":       cfg.Model.RetryDelay,
		"model.http_timeout":      cfg.Model.HTTPTimeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 && name != "model.retry_delay" {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if cfg.Tracking.FlushEveryTicks <= 0 {
		return fmt.Errorf("tracking.flush_every_ticks must be positive: %d", cfg.Tracking.FlushEveryTicks)
	}
	if cfg.Tracking.HostnameCacheSize <= 0 {
		return fmt.Errorf("tracking.hostname_cache_size must be positive: %d", cfg.Tracking.HostnameCacheSize)
	}

	if cfg.Enforcement.BlockedPage == "" {
		return fmt.Errorf("enforcement.blocked_page is required")
	}
	site := strings.ToLower(strings.TrimSpace(cfg.Enforcement.MandatorySite))
	if _, ok := dns.IsDomainName(site); site == "" || !ok {
		return fmt.Errorf("invalid enforcement.mandatory_site: %q", cfg.Enforcement.MandatorySite)
	}

	if cfg.Model.MaxAttempts <= 0 {
		return fmt.Errorf("model.max_attempts must be positive: %d", cfg.Model.MaxAttempts)
	}

	switch cfg.Recommendation.Mode {
	case ModeModel:
		if cfg.Model.Source == "" {
			return fmt.Errorf("model.source is required in %s mode", ModeModel)
		}
	case ModeThreshold:
	default:
		return fmt.Errorf("unknown recommendation mode: %s", cfg.Recommendation.Mode)
	}

	start, end := cfg.Recommendation.WorkHoursStart, cfg.Recommendation.WorkHoursEnd
	if start < 0 || start > 23 || end < 0 || end > 23 || start > end {
		return fmt.Errorf("invalid work hours: %d-%d", start, end)
	}

	return nil
}
