package strategy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinmindoree/llmtradingtest/internal/broker"
	"github.com/shinmindoree/llmtradingtest/internal/core"
)

type mockStrategy struct {
	name  string
	level float64
	calls int
}

func (m *mockStrategy) Name() string        { return m.name }
func (m *mockStrategy) Description() string { return "mock strategy" }
func (m *mockStrategy) Init(cfg Config) error {
	if err := CheckKeys(cfg.Params, "level"); err != nil {
		return err
	}
	v, err := Float(cfg.Params, "level", 1)
	if err != nil {
		return err
	}
	m.level = v
	return nil
}
func (m *mockStrategy) Params() map[string]any { return map[string]any{"level": m.level} }
func (m *mockStrategy) OnBar(h History, s Snapshot) Action {
	m.calls++
	return NoAction()
}

func longPosition(entry float64) broker.Position {
	return broker.Position{Size: 1, EntryPrice: entry}
}

func TestRegistry_NewReturnsFreshInstances(t *testing.T) {
	r := NewRegistry()
	r.Register(func() Strategy { return &mockStrategy{name: "mock"} })

	a, err := r.New("mock", Config{Params: map[string]any{"level": 2}})
	require.NoError(t, err)
	b, err := r.New("mock", Config{})
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, 2.0, a.Params()["level"])
	assert.Equal(t, 1.0, b.Params()["level"])
	assert.True(t, r.Has("mock"))
}

func TestRegistry_Errors(t *testing.T) {
	r := NewRegistry()
	r.Register(func() Strategy { return &mockStrategy{name: "mock"} })

	_, err := r.New("nope", Config{})
	assert.True(t, errors.Is(err, core.ErrUnknownStrategy))

	_, err = r.New("mock", Config{Params: map[string]any{"bogus": 1}})
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestRegistry_NamesAndList(t *testing.T) {
	r := NewRegistry()
	r.Register(func() Strategy { return &mockStrategy{name: "zeta"} })
	r.Register(func() Strategy { return &mockStrategy{name: "alpha"} })
	r.Register(func() Strategy { return &mockStrategy{name: "alpha"} })

	assert.Equal(t, []string{"alpha", "zeta"}, r.Names())

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "mock strategy", list[0].Description)
	assert.Equal(t, map[string]any{"level": 1.0}, list[0].Defaults)
}
