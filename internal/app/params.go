package app

import (
	"strings"
	"time"

	"github.com/shinmindoree/llmtradingtest/internal/collector/csvfile"
	"github.com/shinmindoree/llmtradingtest/internal/core"
)

// ParseDate accepts the timestamp forms of csvfile.ParseTime. An empty
// string is an open bound.
func ParseDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	t, err := csvfile.ParseTime(s)
	if err != nil {
		return time.Time{}, core.WrapError(core.ErrConfigInvalid, err)
	}
	return t, nil
}

// ParseGrid parses "key=v1,v2,..." sweep axes. Values stay strings; the
// strategies parse them.
func ParseGrid(axes []string) (map[string][]any, error) {
	grid := make(map[string][]any, len(axes))
	for _, a := range axes {
		k, vs, ok := strings.Cut(a, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" || strings.TrimSpace(vs) == "" {
			return nil, core.Errorf(core.ErrConfigInvalid, "invalid grid axis %q, want key=v1,v2", a)
		}
		for _, v := range strings.Split(vs, ",") {
			if v = strings.TrimSpace(v); v != "" {
				grid[k] = append(grid[k], v)
			}
		}
	}
	return grid, nil
}

// ParseParams parses "key=value" strategy overrides. A later key wins.
func ParseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, core.Errorf(core.ErrConfigInvalid, "invalid param %q, want key=value", p)
		}
		params[k] = strings.TrimSpace(v)
	}
	return params, nil
}
