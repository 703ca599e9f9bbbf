package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"

	"pricechart/internal/market"
	"pricechart/internal/query"
)

type SourceConf struct {
	Provider string        `json:",default=coingecko"`
	BaseURL  string        `json:",optional"`
	Asset    string        `json:",optional"`
	Currency string        `json:",default=usd"`
	Days     int           `json:",default=7"`
	Interval string        `json:",default=1h"` // binance only
	Timeout  time.Duration `json:",default=10s"`
}

type QueryConf struct {
	StaleTime  time.Duration `json:",default=5m"`
	CacheTime  time.Duration `json:",default=30m"`
	CacheLimit int           `json:",default=16"`
	// Retries below zero disable retrying a first fetch that failed.
	Retries    int           `json:",default=3"`
	RetryDelay time.Duration `json:",default=1s"`
}

type ChartConf struct {
	Title    string  `json:",optional"`
	Width    int     `json:",default=600"`
	Height   int     `json:",default=400"`
	MinWidth int     `json:",default=300"`
	Margin   float64 `json:",default=50"`
	// Padding is the space between the window edge and the chart panel.
	Padding float64 `json:",default=32"`
}

type Config struct {
	Source SourceConf   `json:",optional"`
	Query  QueryConf    `json:",optional"`
	Chart  ChartConf    `json:",optional"`
	Log    logx.LogConf `json:",optional"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{Chart: ChartConf{Padding: 32}}
	_ = cfg.Validate()
	return cfg
}

// Load reads path, expanding ${VAR} references from the environment after
// any .env file has been applied. A missing file yields Default.
func Load(path string) (*Config, error) {
	LoadDotenvOnce()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %s: %w", path, err)
	}
	if _, err := os.Stat(absPath); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	var cfg Config
	if err := conf.Load(absPath, &cfg, conf.UseEnv()); err != nil {
		return nil, fmt.Errorf("load config %s: %w", absPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unusable values and fills zero values with defaults, so a
// partially written file still produces a working chart.
func (c *Config) Validate() error {
	if err := c.Source.validate(); err != nil {
		return err
	}
	if err := c.Query.validate(); err != nil {
		return err
	}
	return c.Chart.validate(c.Source)
}

func (s *SourceConf) validate() error {
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))
	switch s.Provider {
	case "":
		s.Provider = market.ProviderCoinGecko
	case market.ProviderCoinGecko, market.ProviderBinance:
	default:
		return fmt.Errorf("config: source.provider must be one of %s|%s, got %q",
			market.ProviderCoinGecko, market.ProviderBinance, s.Provider)
	}
	if s.Days < 0 {
		return errors.New("config: source.days must not be negative")
	}
	if s.Timeout < 0 {
		return errors.New("config: source.timeout must not be negative")
	}
	if s.Days == 0 {
		s.Days = 7
	}
	if s.Timeout == 0 {
		s.Timeout = 10 * time.Second
	}
	if s.Interval == "" {
		s.Interval = "1h"
	}
	if s.Currency == "" {
		s.Currency = "usd"
	}
	if strings.TrimSpace(s.Asset) == "" {
		if s.Provider == market.ProviderBinance {
			s.Asset = "BTCUSDT"
		} else {
			s.Asset = "bitcoin"
		}
	}
	return nil
}

func (q *QueryConf) validate() error {
	if q.StaleTime < 0 || q.CacheTime < 0 || q.CacheLimit < 0 || q.RetryDelay < 0 {
		return errors.New("config: query settings must not be negative")
	}
	if q.StaleTime == 0 {
		q.StaleTime = 5 * time.Minute
	}
	if q.CacheTime == 0 {
		q.CacheTime = 30 * time.Minute
	}
	if q.CacheLimit == 0 {
		q.CacheLimit = 16
	}
	if q.Retries == 0 {
		q.Retries = 3
	}
	if q.RetryDelay == 0 {
		q.RetryDelay = time.Second
	}
	return nil
}

func (ch *ChartConf) validate(src SourceConf) error {
	if ch.Width < 0 || ch.Height < 0 || ch.MinWidth < 0 || ch.Margin < 0 || ch.Padding < 0 {
		return errors.New("config: chart dimensions must not be negative")
	}
	if ch.Width == 0 {
		ch.Width = 600
	}
	if ch.Height == 0 {
		ch.Height = 400
	}
	if ch.MinWidth == 0 {
		ch.MinWidth = 300
	}
	if ch.Margin == 0 {
		ch.Margin = 50
	}
	if ch.Title == "" {
		ch.Title = fmt.Sprintf("%s • %dd", strings.ToUpper(src.Asset), src.Days)
	}
	return nil
}

// SourceOptions maps the source section onto market.Options.
func (c *Config) SourceOptions() market.Options {
	return market.Options{
		BaseURL:  c.Source.BaseURL,
		Asset:    c.Source.Asset,
		Currency: c.Source.Currency,
		Days:     c.Source.Days,
		Interval: c.Source.Interval,
		Timeout:  c.Source.Timeout,
	}
}

// QueryOptions maps the query section onto query.Options.
func (c *Config) QueryOptions() query.Options {
	return query.Options{
		StaleTime:  c.Query.StaleTime,
		CacheTime:  c.Query.CacheTime,
		CacheLimit: c.Query.CacheLimit,
		Retries:    c.Query.Retries,
		RetryDelay: c.Query.RetryDelay,
	}
}
