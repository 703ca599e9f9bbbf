package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	t.Setenv("PRICECHART_ASSET", "ETHUSDT")

	path := writeFile(t, "pricechart.yaml", `
Source:
  Provider: Binance
  Asset: ${PRICECHART_ASSET}
  Days: 3
  Timeout: 2s
Query:
  StaleTime: 1m
  Retries: -1
Chart:
  Width: 800
  Margin: 40
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "binance", cfg.Source.Provider)
	assert.Equal(t, "ETHUSDT", cfg.Source.Asset)
	assert.Equal(t, 3, cfg.Source.Days)
	assert.Equal(t, 2*time.Second, cfg.Source.Timeout)
	assert.Equal(t, time.Minute, cfg.Query.StaleTime)
	assert.Equal(t, 30*time.Minute, cfg.Query.CacheTime)
	assert.Equal(t, 800, cfg.Chart.Width)
	assert.Equal(t, 400, cfg.Chart.Height)
	assert.Equal(t, 40.0, cfg.Chart.Margin)
	assert.Equal(t, "ETHUSDT • 3d", cfg.Chart.Title)

	opts := cfg.SourceOptions()
	assert.Equal(t, "ETHUSDT", opts.Asset)
	assert.Equal(t, 2*time.Second, opts.Timeout)
	assert.Equal(t, time.Minute, cfg.QueryOptions().StaleTime)
	assert.Equal(t, -1, cfg.QueryOptions().Retries)
	assert.Equal(t, time.Second, cfg.QueryOptions().RetryDelay)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	assert.Equal(t, "coingecko", cfg.Source.Provider)
	assert.Equal(t, "bitcoin", cfg.Source.Asset)
	assert.Equal(t, "usd", cfg.Source.Currency)
	assert.Equal(t, 7, cfg.Source.Days)
	assert.Equal(t, 50.0, cfg.Chart.Margin)
	assert.Equal(t, 600, cfg.Chart.Width)
	assert.Equal(t, 300, cfg.Chart.MinWidth)
	assert.Equal(t, 32.0, cfg.Chart.Padding)
	assert.Equal(t, 5*time.Minute, cfg.Query.StaleTime)
	assert.Equal(t, 3, cfg.Query.Retries)
	assert.Equal(t, time.Second, cfg.Query.RetryDelay)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "zero value", cfg: Config{}},
		{name: "unknown provider", cfg: Config{Source: SourceConf{Provider: "yahoo"}}, wantErr: true},
		{name: "negative days", cfg: Config{Source: SourceConf{Days: -1}}, wantErr: true},
		{name: "negative stale time", cfg: Config{Query: QueryConf{StaleTime: -time.Second}}, wantErr: true},
		{name: "negative retry delay", cfg: Config{Query: QueryConf{RetryDelay: -time.Second}}, wantErr: true},
		{name: "negative margin", cfg: Config{Chart: ChartConf{Margin: -1}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	path := writeFile(t, "bad.yaml", "Source:\n  Provider: yahoo\n")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadDotenv(t *testing.T) {
	path := writeFile(t, "test.env", "PRICECHART_DOTENV_PROBE=from-file\n")
	t.Setenv("PRICECHART_DOTENV_PROBE", "")
	t.Setenv("ENV_FILE", path)
	t.Setenv("DOTENV_OVERLOAD", "1")
	t.Setenv("NO_DOTENV", "")

	loadDotenv()
	assert.Equal(t, "from-file", os.Getenv("PRICECHART_DOTENV_PROBE"))
}
