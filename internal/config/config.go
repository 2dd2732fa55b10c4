// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage modes selecting where downloaded documents end up.
const (
	StorageLocal  = "local"
	StorageRemote = "remote"
	StorageBoth   = "both"
)

// Catalog backends for the persisted record tables.
const (
	CatalogCSV    = "csv"
	CatalogSQLite = "sqlite"
)

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	DataDir   string          `mapstructure:"data_dir"`
	Portal    PortalConfig    `mapstructure:"portal"`
	Download  DownloadConfig  `mapstructure:"download"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// PortalConfig governs access to the portal's listing pages.
type PortalConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	PortletID      string `mapstructure:"portlet_id"`
	ItemsPerPage   int    `mapstructure:"items_per_page"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	// InsecureSkipVerify works around the portal host's certificate defect.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
}

// PageTimeout returns the per-page request timeout.
func (c PortalConfig) PageTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DownloadConfig controls the file transfer engine.
type DownloadConfig struct {
	Concurrency       int     `mapstructure:"concurrency"`
	RateLimit         float64 `mapstructure:"rate_limit"`
	RetryAttempts     int     `mapstructure:"retry_attempts"`
	RetryDelaySeconds float64 `mapstructure:"retry_delay_seconds"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
}

// RetryDelay returns the linear backoff base delay.
func (c DownloadConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds * float64(time.Second))
}

// Timeout returns the per-transfer timeout.
func (c DownloadConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StorageConfig selects catalog backend and document storage mode.
type StorageConfig struct {
	Mode    string   `mapstructure:"mode"`
	Catalog string   `mapstructure:"catalog"`
	R2      R2Config `mapstructure:"r2"`
}

// R2Config holds S3-compatible object storage credentials.
type R2Config struct {
	AccountID       string `mapstructure:"account_id"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	PublicURLBase   string `mapstructure:"public_url_base"`
	Verify          bool   `mapstructure:"verify"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// TelemetryConfig controls the optional metrics endpoint.
type TelemetryConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Credentials follow the R2_* convention used by the deploy tooling.
	for key, env := range map[string]string{
		"storage.r2.account_id":        "R2_ACCOUNT_ID",
		"storage.r2.access_key_id":     "R2_ACCESS_KEY_ID",
		"storage.r2.secret_access_key": "R2_SECRET_ACCESS_KEY",
		"storage.r2.bucket":            "R2_BUCKET_NAME",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
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
	v.SetDefault("data_dir", "data")
	v.SetDefault("portal.base_url", "https://irdai.gov.in")
	v.SetDefault("portal.portlet_id", "com_irdai_document_media_IRDAIDocumentMediaPortlet")
	v.SetDefault("portal.items_per_page", 60)
	v.SetDefault("portal.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	v.SetDefault("portal.timeout_seconds", 60)
	v.SetDefault("portal.insecure_skip_verify", true)
	v.SetDefault("download.concurrency", 10)
	v.SetDefault("download.rate_limit", 10.0)
	v.SetDefault("download.retry_attempts", 3)
	v.SetDefault("download.retry_delay_seconds", 2.0)
	v.SetDefault("download.timeout_seconds", 300)
	v.SetDefault("storage.mode", StorageLocal)
	v.SetDefault("storage.catalog", CatalogCSV)
	v.SetDefault("storage.r2.verify", true)
	v.SetDefault("logging.development", false)
	v.SetDefault("telemetry.metrics_addr", "")
}

// Validate checks configuration invariants.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Portal.BaseURL == "" {
		return fmt.Errorf("portal.base_url is required")
	}
	if c.Portal.ItemsPerPage <= 0 {
		return fmt.Errorf("portal.items_per_page must be positive")
	}
	if c.Download.Concurrency <= 0 {
		return fmt.Errorf("download.concurrency must be positive")
	}
	if c.Download.RateLimit < 0 {
		return fmt.Errorf("download.rate_limit must be >= 0")
	}
	if c.Download.RetryAttempts <= 0 {
		return fmt.Errorf("download.retry_attempts must be positive")
	}
	switch c.Storage.Mode {
	case StorageLocal, StorageRemote, StorageBoth:
	default:
		return fmt.Errorf("storage.mode must be one of %s, %s, %s", StorageLocal, StorageRemote, StorageBoth)
	}
	switch c.Storage.Catalog {
	case CatalogCSV, CatalogSQLite:
	default:
		return fmt.Errorf("storage.catalog must be %s or %s", CatalogCSV, CatalogSQLite)
	}
	return nil
}
