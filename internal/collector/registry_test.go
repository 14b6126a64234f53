package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinmindoree/llmtradingtest/internal/core"
)

type stubSource struct {
	name string
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FetchBars(ctx context.Context, req Request) (*core.Series, error) {
	return nil, core.ErrDataUnavailable
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubSource{name: "csv"})
	r.Register(&stubSource{name: "binance"})

	s, ok := r.Get("binance")
	require.True(t, ok)
	assert.Equal(t, "binance", s.Name())

	_, ok = r.Get("yahoo")
	assert.False(t, ok)

	assert.Equal(t, []string{"binance", "csv"}, r.Names())
}

func TestRegistry_ReplaceSameName(t *testing.T) {
	r := NewRegistry()
	first := &stubSource{name: "csv"}
	second := &stubSource{name: "csv"}
	r.Register(first)
	r.Register(second)

	s, err := r.MustGet("csv")
	require.NoError(t, err)
	assert.Same(t, second, s)
	assert.Len(t, r.Names(), 1)
}

func TestRegistry_MustGet_NotFound(t *testing.T) {
	_, err := NewRegistry().MustGet("yahoo")
	assert.True(t, errors.Is(err, core.ErrNotFound))
}
