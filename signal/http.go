package signal

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/rustyeddy/perptrader/indicators"
)

// HTTPVoter asks a JSON endpoint for a signal. The endpoint receives
// {"symbol": ..., "snapshot": {...}} and answers
// {"action": "BUY", "confidence": 80, "rationale": "..."}.
type HTTPVoter struct {
	name   string
	path   string
	client *resty.Client
}

type HTTPVoterConfig struct {
	Name    string
	URL     string // full endpoint URL
	APIKey  string // sent as a bearer token when set
	Timeout time.Duration
}

type voteRequest struct {
	Symbol   string              `json:"symbol"`
	Snapshot indicators.Snapshot `json:"snapshot"`
}

func NewHTTPVoter(cfg HTTPVoterConfig) *HTTPVoter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	name := cfg.Name
	if name == "" {
		name = cfg.URL
	}
	return &HTTPVoter{name: name, path: strings.TrimSpace(cfg.URL), client: client}
}

func (v *HTTPVoter) Name() string { return v.name }

func (v *HTTPVoter) Ask(ctx context.Context, symbol string, snap indicators.Snapshot) (Signal, error) {
	var out Signal
	resp, err := v.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(voteRequest{Symbol: symbol, Snapshot: snap}).
		SetResult(&out).
		Post(v.path)
	if err != nil {
		return Signal{}, errors.Wrapf(err, "voter %s", v.name)
	}
	if !resp.IsSuccess() {
		return Signal{}, errors.Errorf("voter %s: http %d: %s", v.name, resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}

	a, err := ParseAction(string(out.Action))
	if err != nil {
		return Signal{}, errors.Wrapf(err, "voter %s", v.name)
	}
	out.Action = a
	if out.Confidence < 0 || out.Confidence > 100 {
		return Signal{}, errors.Errorf("voter %s: confidence %v out of range", v.name, out.Confidence)
	}
	return out, nil
}
