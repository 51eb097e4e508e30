// Package hyperliquid fetches historical candles from the Hyperliquid
// info endpoint.
package hyperliquid

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/rustyeddy/perptrader/market"
)

const (
	MainnetURL = "https://api.hyperliquid.xyz"
	TestnetURL = "https://api.hyperliquid-testnet.xyz"

	// maxCandles is the most the endpoint returns per request.
	maxCandles = 5000
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	Retries int // resty-level retries on transport errors
}

// Client implements market.Provider.
type Client struct {
	client *resty.Client
	now    func() time.Time
}

func New(cfg Config) *Client {
	base := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = MainnetURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(10*time.Second).
		SetHeader("Content-Type", "application/json")

	return &Client{client: client, now: time.Now}
}

type candleRequest struct {
	Type string     `json:"type"`
	Req  candleBody `json:"req"`
}

type candleBody struct {
	Coin      string `json:"coin"`
	Interval  string `json:"interval"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
}

// wireCandle is one element of a candleSnapshot response. Prices and
// volume arrive as decimal strings.
type wireCandle struct {
	OpenTime  int64  `json:"t"`
	CloseTime int64  `json:"T"`
	Symbol    string `json:"s"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Close     string `json:"c"`
	Volume    string `json:"v"`
	Trades    int    `json:"n"`
}

// Interval maps timeframes such as "4H" or "1D" onto the exchange's
// interval names.
func Interval(timeframe string) (string, error) {
	tf := strings.TrimSpace(timeframe)
	if _, err := market.ParseTimeframe(tf); err != nil {
		return "", err
	}
	n, unit := tf[:len(tf)-1], tf[len(tf)-1]
	switch unit {
	case 'H', 'D', 'W':
		unit += 'a' - 'A'
	}
	return n + string(unit), nil
}

// FetchOHLCV returns candles covering the last lookbackDays, paging
// through the endpoint's per-request limit.
func (c *Client) FetchOHLCV(ctx context.Context, symbol string, lookbackDays int, timeframe string) ([]market.Candle, error) {
	interval, err := Interval(timeframe)
	if err != nil {
		return nil, errors.Wrap(err, "hyperliquid")
	}
	if lookbackDays <= 0 {
		return nil, errors.Errorf("hyperliquid: lookback days must be positive, got %d", lookbackDays)
	}

	end := c.now().UTC()
	start := end.Add(-time.Duration(lookbackDays) * 24 * time.Hour)
	coin := strings.ToUpper(strings.TrimSpace(symbol))

	var out []market.Candle
	from := start.UnixMilli()
	for from < end.UnixMilli() {
		page, err := c.snapshot(ctx, candleBody{
			Coin:      coin,
			Interval:  interval,
			StartTime: from,
			EndTime:   end.UnixMilli(),
		})
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		last := from
		for _, w := range page {
			cd, err := w.candle()
			if err != nil {
				return nil, errors.Wrapf(err, "hyperliquid %s", coin)
			}
			out = append(out, cd)
			if w.CloseTime > last {
				last = w.CloseTime
			}
		}
		if len(page) < maxCandles || last <= from {
			break
		}
		from = last + 1
	}
	return market.Sort(out), nil
}

func (c *Client) snapshot(ctx context.Context, body candleBody) ([]wireCandle, error) {
	var page []wireCandle
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(candleRequest{Type: "candleSnapshot", Req: body}).
		SetResult(&page).
		Post("/info")
	if err != nil {
		return nil, errors.Wrapf(err, "hyperliquid candleSnapshot %s", body.Coin)
	}
	if resp.IsError() {
		return nil, errors.Errorf("hyperliquid http non-2xx: %s %s", resp.Status(), strings.TrimSpace(resp.String()))
	}
	return page, nil
}

func (w wireCandle) candle() (market.Candle, error) {
	vals := make([]float64, 5)
	for i, s := range []string{w.Open, w.High, w.Low, w.Close, w.Volume} {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return market.Candle{}, errors.Wrapf(err, "candle %d", w.OpenTime)
		}
		vals[i] = v
	}
	return market.Candle{
		Time:   time.UnixMilli(w.OpenTime).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
