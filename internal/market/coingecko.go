package market

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
)

const coinGeckoURL = "https://api.coingecko.com"

// CoinGecko reads the market_chart endpoint, whose "prices" field holds
// [timestampMillis, price] pairs.
type CoinGecko struct {
	baseURL  string
	asset    string
	currency string
	days     int
	client   *http.Client
}

func NewCoinGecko(opts Options) *CoinGecko {
	opts = opts.withDefaults()
	if opts.BaseURL == "" {
		opts.BaseURL = coinGeckoURL
	}
	if opts.Asset == "" {
		opts.Asset = "bitcoin"
	}
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	return &CoinGecko{
		baseURL:  opts.BaseURL,
		asset:    opts.Asset,
		currency: opts.Currency,
		days:     opts.Days,
		client:   opts.Client,
	}
}

func (c *CoinGecko) Key() string {
	return fmt.Sprintf("%s:%s:%s:%d", ProviderCoinGecko, c.asset, c.currency, c.days)
}

func (c *CoinGecko) Fetch(ctx context.Context) (Series, error) {
	endpoint := fmt.Sprintf("%s/api/v3/coins/%s/market_chart?vs_currency=%s&days=%d",
		c.baseURL, url.PathEscape(c.asset), url.QueryEscape(c.currency), c.days)

	body, err := getBody(ctx, c.client, endpoint, c.asset)
	if err != nil {
		return nil, err
	}
	return parseMarketChart(body, c.asset)
}

func parseMarketChart(body []byte, asset string) (Series, error) {
	if !gjson.ValidBytes(body) {
		return nil, malformed(asset, "invalid JSON")
	}
	prices := gjson.GetBytes(body, "prices")
	if !prices.IsArray() {
		return nil, malformed(asset, "missing prices array")
	}

	rows := prices.Array()
	series := make(Series, 0, len(rows))
	for i, row := range rows {
		pair := row.Array()
		if len(pair) < 2 || pair[0].Type != gjson.Number || pair[1].Type != gjson.Number {
			return nil, malformed(asset, "sample %d is not a [time, price] pair: %s", i, row.Raw)
		}
		series = append(series, PricePoint{
			Timestamp: time.UnixMilli(pair[0].Int()),
			Price:     pair[1].Float(),
		})
	}
	return series, nil
}
