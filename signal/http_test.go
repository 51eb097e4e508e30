package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/perptrader/indicators"
)

func TestHTTPVoterAsk(t *testing.T) {
	t.Parallel()

	var got voteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"action":"sell","confidence":82,"rationale":"overbought"}`))
	}))
	defer srv.Close()

	v := NewHTTPVoter(HTTPVoterConfig{Name: "gpt", URL: srv.URL + "/vote", APIKey: "secret"})
	assert.Equal(t, "gpt", v.Name())

	sig, err := v.Ask(context.Background(), "BTC", indicators.Snapshot{Close: 101})
	require.NoError(t, err)
	assert.Equal(t, Sell, sig.Action)
	assert.Equal(t, 82.0, sig.Confidence)
	assert.Equal(t, "overbought", sig.Rationale)

	assert.Equal(t, "BTC", got.Symbol)
	assert.Equal(t, 101.0, got.Snapshot.Close)
}

func TestHTTPVoterErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"unknown action", http.StatusOK, `{"action":"HOLD","confidence":50}`},
		{"confidence out of range", http.StatusOK, `{"action":"BUY","confidence":150}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			v := NewHTTPVoter(HTTPVoterConfig{URL: srv.URL})
			_, err := v.Ask(context.Background(), "ETH", indicators.Snapshot{})
			assert.Error(t, err)
		})
	}
}

func TestHTTPVoterTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	v := NewHTTPVoter(HTTPVoterConfig{URL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := v.Ask(context.Background(), "ETH", indicators.Snapshot{})
	assert.Error(t, err)
}
