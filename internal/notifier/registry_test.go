package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	name   string
	err    error
	events []Event
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Send(ctx context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&recorder{name: "b"}))
	require.NoError(t, reg.Register(&recorder{name: "a"}))
	assert.Error(t, reg.Register(&recorder{name: "a"}))

	assert.Equal(t, []string{"a", "b"}, reg.Names())
	assert.Equal(t, 2, reg.Len())

	n, err := reg.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", n.Name())

	_, err = reg.Get("missing")
	assert.Error(t, err)
}

func TestRegistry_NotifyAll(t *testing.T) {
	ok := &recorder{name: "ok"}
	bad := &recorder{name: "bad", err: errors.New("down")}

	reg := NewRegistry()
	require.NoError(t, reg.Register(ok))
	require.NoError(t, reg.Register(bad))

	errs := reg.NotifyAll(context.Background(), Event{Type: EventCompleted, RunID: "r1"})

	require.Len(t, errs, 1)
	assert.EqualError(t, errs["bad"], "down")
	require.Len(t, ok.events, 1)
	assert.Equal(t, "r1", ok.events[0].RunID)
	assert.Len(t, bad.events, 1)
}
