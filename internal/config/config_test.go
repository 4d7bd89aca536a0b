package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WEALTH_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "BRL", cfg.ReportingCurrency)
	assert.Equal(t, 5*time.Minute, cfg.RateRefreshInterval)
	assert.Equal(t, 0.0001, cfg.MaterialityThreshold)
	assert.Equal(t, 250000.0, cfg.InsuranceLimit)
	assert.Equal(t, 1000000.0, cfg.InsuranceTotalLimit)
	assert.Equal(t, 4, cfg.SnapshotWorkers)
	assert.False(t, cfg.Backup.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WEALTH_DATA_DIR", t.TempDir())
	t.Setenv("REPORTING_CURRENCY", "usd")
	t.Setenv("RATE_REFRESH_INTERVAL", "30s")
	t.Setenv("SNAPSHOT_WORKERS", "8")
	t.Setenv("INSURANCE_LIMIT", "100000")
	t.Setenv("MATERIALITY_THRESHOLD", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "USD", cfg.ReportingCurrency)
	assert.Equal(t, 30*time.Second, cfg.RateRefreshInterval)
	assert.Equal(t, 8, cfg.SnapshotWorkers)
	assert.Equal(t, 100000.0, cfg.InsuranceLimit)
	assert.Equal(t, 0.0001, cfg.MaterialityThreshold, "unparseable values fall back to the default")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ReportingCurrency:   "BRL",
			RateRefreshInterval: time.Minute,
			SnapshotWorkers:     1,
			InsuranceLimit:      250000,
			InsuranceTotalLimit: 1000000,
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad currency", func(c *Config) { c.ReportingCurrency = "REAL" }},
		{"no workers", func(c *Config) { c.SnapshotWorkers = 0 }},
		{"zero interval", func(c *Config) { c.RateRefreshInterval = 0 }},
		{"negative threshold", func(c *Config) { c.MaterialityThreshold = -1 }},
		{"zero limit", func(c *Config) { c.InsuranceLimit = 0 }},
		{"total below per issuer", func(c *Config) { c.InsuranceTotalLimit = 1000 }},
		{"backup without credentials", func(c *Config) { c.Backup.Bucket = "wealth" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
