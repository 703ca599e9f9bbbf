package market

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	binanceURL       = "https://api.binance.com"
	binanceMaxKlines = 1000
)

// Binance reads close prices from the klines endpoint. Each kline row is
// [openTime, open, high, low, close, volume, closeTime, ...] with prices as
// decimal strings.
type Binance struct {
	baseURL  string
	symbol   string
	interval string
	days     int
	client   *http.Client
	now      func() time.Time
}

func NewBinance(opts Options) *Binance {
	opts = opts.withDefaults()
	if opts.BaseURL == "" {
		opts.BaseURL = binanceURL
	}
	if opts.Asset == "" {
		opts.Asset = "BTCUSDT"
	}
	return &Binance{
		baseURL:  opts.BaseURL,
		symbol:   strings.ToUpper(opts.Asset),
		interval: opts.Interval,
		days:     opts.Days,
		client:   opts.Client,
		now:      opts.Now,
	}
}

func (b *Binance) Key() string {
	return fmt.Sprintf("%s:%s:%s:%d", ProviderBinance, b.symbol, b.interval, b.days)
}

func (b *Binance) Fetch(ctx context.Context) (Series, error) {
	end := b.now()
	start := end.Add(-time.Duration(b.days) * 24 * time.Hour)

	q := url.Values{}
	q.Set("symbol", b.symbol)
	q.Set("interval", b.interval)
	q.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	q.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	q.Set("limit", strconv.Itoa(binanceMaxKlines))

	body, err := getBody(ctx, b.client, b.baseURL+"/api/v3/klines?"+q.Encode(), b.symbol)
	if err != nil {
		return nil, err
	}
	return parseKlines(body, b.symbol)
}

func parseKlines(body []byte, symbol string) (Series, error) {
	if !gjson.ValidBytes(body) {
		return nil, malformed(symbol, "invalid JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, malformed(symbol, "expected kline array, got %s", root.Type)
	}

	rows := root.Array()
	series := make(Series, 0, len(rows))
	for i, row := range rows {
		fields := row.Array()
		if len(fields) < 5 || fields[0].Type != gjson.Number {
			return nil, malformed(symbol, "kline %d is too short: %s", i, row.Raw)
		}
		price, err := strconv.ParseFloat(fields[4].String(), 64)
		if err != nil {
			return nil, malformed(symbol, "invalid price format in kline %d: %v, Received Price: %s", i, err, fields[4].Raw)
		}
		series = append(series, PricePoint{
			Timestamp: time.UnixMilli(fields[0].Int()),
			Price:     price,
		})
	}
	return series, nil
}
