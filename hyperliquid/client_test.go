package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func newTestClient(url string) *Client {
	c := New(Config{BaseURL: url, Timeout: 5 * time.Second})
	c.now = func() time.Time { return now }
	return c
}

func wire(t time.Time, close float64) map[string]any {
	return map[string]any{
		"t": t.UnixMilli(),
		"T": t.Add(4*time.Hour).UnixMilli() - 1,
		"s": "BTC",
		"i": "4h",
		"o": fmt.Sprint(close - 1),
		"h": fmt.Sprint(close + 2),
		"l": fmt.Sprint(close - 2),
		"c": fmt.Sprint(close),
		"v": "12.5",
		"n": 42,
	}
}

func TestInterval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{"4H", "4h", false},
		{"1D", "1d", false},
		{"15m", "15m", false},
		{"1h", "1h", false},
		{"1W", "1w", false},
		{"bogus", "", true},
	}
	for _, tt := range tests {
		got, err := Interval(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestFetchOHLCV(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/info", r.URL.Path)

		var req candleRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "candleSnapshot", req.Type)
		assert.Equal(t, "BTC", req.Req.Coin)
		assert.Equal(t, "4h", req.Req.Interval)
		assert.Equal(t, now.UnixMilli(), req.Req.EndTime)
		assert.Equal(t, now.AddDate(0, 0, -2).UnixMilli(), req.Req.StartTime)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			wire(now.Add(-8*time.Hour), 101),
			wire(now.Add(-12*time.Hour), 100),
			wire(now.Add(-4*time.Hour), 102),
		})
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).FetchOHLCV(context.Background(), "btc", 2, "4H")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, now.Add(-12*time.Hour), got[0].Time)
	assert.Equal(t, 100.0, got[0].Close)
	assert.Equal(t, 102.0, got[2].Close)
	assert.Equal(t, 104.0, got[2].High)
	assert.Equal(t, 12.5, got[2].Volume)
}

func TestFetchOHLCVPages(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	start := now.AddDate(0, 0, -1000)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req candleRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		n := calls.Add(1)

		from := time.UnixMilli(req.Req.StartTime).UTC()
		size := maxCandles
		if n > 1 {
			size = 10
		}
		page := make([]map[string]any, 0, size)
		for i := 0; i < size; i++ {
			page = append(page, wire(from.Add(time.Duration(i)*4*time.Hour), 100))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).FetchOHLCV(context.Background(), "BTC", 1000, "4h")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, got, maxCandles+10)
	assert.Equal(t, start, got[0].Time)
}

func TestFetchOHLCVErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.FetchOHLCV(context.Background(), "BTC", 1, "4h")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	_, err = c.FetchOHLCV(context.Background(), "BTC", 0, "4h")
	assert.Error(t, err)

	_, err = c.FetchOHLCV(context.Background(), "BTC", 1, "4y")
	assert.Error(t, err)
}

func TestFetchOHLCVBadNumber(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := wire(now.Add(-4*time.Hour), 100)
		c["c"] = "n/a"
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{c})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchOHLCV(context.Background(), "BTC", 1, "4h")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hyperliquid BTC")
}
