package market

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrFetchFailed is wrapped by every error a Source returns. Transport
// failures, non-2xx responses and malformed payloads are not told apart.
var ErrFetchFailed = errors.New("fetch failed")

const (
	ProviderCoinGecko = "coingecko"
	ProviderBinance   = "binance"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultDays     = 7
	defaultInterval = "1h"
)

// Source fetches the price history of a single asset.
type Source interface {
	// Fetch performs one outbound request and returns the series in upstream order.
	Fetch(ctx context.Context) (Series, error)
	// Key identifies the asset and window, for caching.
	Key() string
}

// Options configures a Source.
type Options struct {
	BaseURL  string
	Asset    string
	Currency string
	Days     int
	Interval string
	Timeout  time.Duration

	// Client overrides the HTTP client built from Timeout.
	Client *http.Client
	// Now overrides the clock used to compute window boundaries.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Days <= 0 {
		o.Days = defaultDays
	}
	if o.Interval == "" {
		o.Interval = defaultInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.Client == nil {
		o.Client = &http.Client{
			Timeout: o.Timeout,
		}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	return o
}

// NewSource builds the Source for the named provider.
func NewSource(provider string, opts Options) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", ProviderCoinGecko:
		return NewCoinGecko(opts), nil
	case ProviderBinance:
		return NewBinance(opts), nil
	default:
		return nil, fmt.Errorf("unknown market data provider %q", provider)
	}
}

func getBody(ctx context.Context, client *http.Client, url, asset string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request [%s]: %w", ErrFetchFailed, asset, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: HTTP request failed [%s]: %w", ErrFetchFailed, asset, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: API error [%s]: %s - %s", ErrFetchFailed, asset, resp.Status, string(bodyBytes))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: body read error [%s]: %w", ErrFetchFailed, asset, err)
	}
	return body, nil
}

func malformed(asset, format string, args ...any) error {
	return fmt.Errorf("%w: malformed payload [%s]: %s", ErrFetchFailed, asset, fmt.Sprintf(format, args...))
}
