package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "https://irdai.gov.in", cfg.Portal.BaseURL)
	assert.Equal(t, "com_irdai_document_media_IRDAIDocumentMediaPortlet", cfg.Portal.PortletID)
	assert.Equal(t, 60, cfg.Portal.ItemsPerPage)
	assert.Equal(t, 60*time.Second, cfg.Portal.PageTimeout())
	assert.True(t, cfg.Portal.InsecureSkipVerify)

	assert.Equal(t, 10, cfg.Download.Concurrency)
	assert.Equal(t, 10.0, cfg.Download.RateLimit)
	assert.Equal(t, 3, cfg.Download.RetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.Download.RetryDelay())
	assert.Equal(t, 5*time.Minute, cfg.Download.Timeout())

	assert.Equal(t, StorageLocal, cfg.Storage.Mode)
	assert.Equal(t, CatalogCSV, cfg.Storage.Catalog)
	assert.True(t, cfg.Storage.R2.Verify)
	assert.False(t, cfg.Logging.Development)
	assert.Empty(t, cfg.Telemetry.MetricsAddr)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/harvester
download:
  concurrency: 4
  rate_limit: 2.5
storage:
  mode: both
  catalog: sqlite
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/harvester", cfg.DataDir)
	assert.Equal(t, 4, cfg.Download.Concurrency)
	assert.Equal(t, 2.5, cfg.Download.RateLimit)
	assert.Equal(t, StorageBoth, cfg.Storage.Mode)
	assert.Equal(t, CatalogSQLite, cfg.Storage.Catalog)
	// Unset keys keep defaults.
	assert.Equal(t, 60, cfg.Portal.ItemsPerPage)
}

func TestLoadR2CredentialsFromEnv(t *testing.T) {
	t.Setenv("R2_ACCOUNT_ID", "acct-123")
	t.Setenv("R2_ACCESS_KEY_ID", "key-id")
	t.Setenv("R2_SECRET_ACCESS_KEY", "secret")
	t.Setenv("R2_BUCKET_NAME", "irdai-docs")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "acct-123", cfg.Storage.R2.AccountID)
	assert.Equal(t, "key-id", cfg.Storage.R2.AccessKeyID)
	assert.Equal(t, "secret", cfg.Storage.R2.SecretAccessKey)
	assert.Equal(t, "irdai-docs", cfg.Storage.R2.Bucket)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"EmptyDataDir", func(c *Config) { c.DataDir = "" }},
		{"EmptyBaseURL", func(c *Config) { c.Portal.BaseURL = "" }},
		{"ZeroItemsPerPage", func(c *Config) { c.Portal.ItemsPerPage = 0 }},
		{"ZeroConcurrency", func(c *Config) { c.Download.Concurrency = 0 }},
		{"NegativeRateLimit", func(c *Config) { c.Download.RateLimit = -1 }},
		{"ZeroRetries", func(c *Config) { c.Download.RetryAttempts = 0 }},
		{"BadStorageMode", func(c *Config) { c.Storage.Mode = "ftp" }},
		{"BadCatalog", func(c *Config) { c.Storage.Catalog = "parquet" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("DefaultsAreValid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})
}
