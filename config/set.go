package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Set assigns value to the dotted key (e.g. "exits.stop_loss_pct") and
// returns the updated, validated copy. Value is parsed as YAML, so
// "5", "true" and "[BTC, ETH]" take their natural types.
func Set(cfg *Config, key, value string) (*Config, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("config: key is required")
	}
	parts := strings.Split(key, ".")

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}

	var v any
	if err := yaml.Unmarshal([]byte(value), &v); err != nil {
		return nil, fmt.Errorf("config: bad value %q: %w", value, err)
	}

	node := tree
	for i, p := range parts {
		cur, ok := node[p]
		if !ok {
			return nil, fmt.Errorf("config: unknown key %q", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if _, isMap := cur.(map[string]any); isMap {
				return nil, fmt.Errorf("config: %q is a section, not a value", key)
			}
			node[p] = v
			break
		}
		next, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("config: %q is not a section", strings.Join(parts[:i+1], "."))
		}
		node = next
	}

	out, err := yaml.Marshal(tree)
	if err != nil {
		return nil, err
	}
	next := Default()
	if err := yaml.Unmarshal(out, next); err != nil {
		return nil, fmt.Errorf("config: %s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return next, nil
}
