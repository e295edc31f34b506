// Package config loads and validates run configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage and notification backends.
const (
	BackendS3     = "s3"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
	BackendLocal  = "local"

	NotifyNtfy   = "ntfy"
	NotifyPubSub = "pubsub"
	NotifyLog    = "log"
)

// Config captures all run configuration knobs loaded via Viper.
type Config struct {
	Run     RunConfig     `mapstructure:"run"`
	Browser BrowserConfig `mapstructure:"browser"`
	Source  SourceConfig  `mapstructure:"source"`
	Storage StorageConfig `mapstructure:"storage"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	RunLog  RunLogConfig  `mapstructure:"runlog"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// RunConfig bounds the daily workload.
type RunConfig struct {
	MaxPages           int    `mapstructure:"max_pages"`
	MaxAuctions        int    `mapstructure:"max_auctions"`
	PoolSize           int    `mapstructure:"pool_size"`
	KeyPrefix          string `mapstructure:"key_prefix"`
	FailOnPersistError bool   `mapstructure:"fail_on_persist_error"`
}

// BrowserConfig configures headless Chrome sessions.
type BrowserConfig struct {
	Headless             bool    `mapstructure:"headless"`
	UserAgent            string  `mapstructure:"user_agent"`
	ExecPath             string  `mapstructure:"exec_path"`
	NavTimeoutSeconds    int     `mapstructure:"nav_timeout_seconds"`
	SettleMillis         int     `mapstructure:"settle_millis"`
	NavigationsPerSecond float64 `mapstructure:"navigations_per_second"`
}

// SourceConfig locates the auction site.
type SourceConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	ListingPath string `mapstructure:"listing_path"`
}

// StorageConfig selects where batches are written.
type StorageConfig struct {
	Backend         string `mapstructure:"backend"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	LocalDir        string `mapstructure:"local_dir"`
}

// NotifyConfig selects the alert side channel.
type NotifyConfig struct {
	Backend    string `mapstructure:"backend"`
	Topic      string `mapstructure:"topic"`
	NtfyServer string `mapstructure:"ntfy_server"`
	ProjectID  string `mapstructure:"project_id"`
}

// RunLogConfig enables the Postgres run ledger when DSN is set.
type RunLogConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// MetricsConfig enables pushing run metrics when PushgatewayURL is set.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CARSNBIDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("run.max_pages", 2)
	v.SetDefault("run.max_auctions", 10)
	v.SetDefault("run.pool_size", 10)
	v.SetDefault("run.key_prefix", "carsnbids")
	v.SetDefault("run.fail_on_persist_error", false)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.nav_timeout_seconds", 45)
	v.SetDefault("browser.settle_millis", 500)
	v.SetDefault("browser.navigations_per_second", 0)
	v.SetDefault("source.base_url", "https://carsandbids.com")
	v.SetDefault("source.listing_path", "/past-auctions/")
	v.SetDefault("storage.backend", BackendS3)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.local_dir", "out")
	v.SetDefault("notify.backend", NotifyNtfy)
	v.SetDefault("notify.topic", "")
	v.SetDefault("notify.ntfy_server", "https://ntfy.sh")
	v.SetDefault("notify.project_id", "")
	v.SetDefault("runlog.dsn", "")
	v.SetDefault("runlog.table", "carsnbids_runs")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "carsnbids")
	v.SetDefault("logging.development", false)
}

// bindLegacyEnv keeps the environment names of the original deployment working.
// The prefixed name always wins.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"storage.bucket":            {"CARSNBIDS_STORAGE_BUCKET", "DBT_ENV_S3_BUCKET"},
		"storage.region":            {"CARSNBIDS_STORAGE_REGION", "DBT_ENV_SECRET_AWS_REGION"},
		"storage.access_key_id":     {"CARSNBIDS_STORAGE_ACCESS_KEY_ID", "DBT_ENV_SECRET_AWS_ACCESS_KEY_ID"},
		"storage.secret_access_key": {"CARSNBIDS_STORAGE_SECRET_ACCESS_KEY", "DBT_ENV_SECRET_AWS_SECRET_ACCESS_KEY"},
		"notify.topic":              {"CARSNBIDS_NOTIFY_TOPIC", "NTFY_TOPIC"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Run.MaxPages <= 0 {
		return fmt.Errorf("run.max_pages must be > 0")
	}
	if c.Run.MaxAuctions <= 0 {
		return fmt.Errorf("run.max_auctions must be > 0")
	}
	if c.Run.PoolSize <= 0 {
		return fmt.Errorf("run.pool_size must be > 0")
	}
	if c.Browser.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("browser.nav_timeout_seconds must be > 0")
	}
	if c.Browser.NavigationsPerSecond < 0 {
		return fmt.Errorf("browser.navigations_per_second must be >= 0")
	}
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url is required")
	}
	switch c.Storage.Backend {
	case BackendS3:
		if c.Storage.Region == "" {
			return fmt.Errorf("storage.region is required for the s3 backend")
		}
		fallthrough
	case BackendGCS:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the %s backend", c.Storage.Backend)
		}
	case BackendLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	switch c.Notify.Backend {
	case NotifyPubSub:
		if c.Notify.ProjectID == "" {
			return fmt.Errorf("notify.project_id is required for the pubsub backend")
		}
		fallthrough
	case NotifyNtfy:
		if c.Notify.Topic == "" {
			return fmt.Errorf("notify.topic is required for the %s backend", c.Notify.Backend)
		}
	case NotifyLog:
	default:
		return fmt.Errorf("unknown notify.backend %q", c.Notify.Backend)
	}
	return nil
}

// NavigationTimeout converts the browser timeout into a duration.
func (c Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSeconds) * time.Second
}

// Settle converts the post-navigation settle delay into a duration.
func (c Config) Settle() time.Duration {
	return time.Duration(c.Browser.SettleMillis) * time.Millisecond
}
