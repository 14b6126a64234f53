package strategy

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/shinmindoree/llmtradingtest/internal/core"
)

// Factory returns a fresh, uninitialised strategy instance.
type Factory func() Strategy

// Info describes a registered strategy.
type Info struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Defaults    map[string]any `json:"defaults"`
}

// Registry maps strategy names to factories. Every call to New returns a
// new instance, so concurrent runs never share strategy state.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger ...*zap.Logger) *Registry {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Registry{
		factories: make(map[string]Factory),
		logger:    l,
	}
}

// Register adds a strategy factory under the name its instances report.
func (r *Registry) Register(f Factory) {
	name := f().Name()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		r.logger.Warn("replacing registered strategy", zap.String("strategy", name))
	}
	r.factories[name] = f
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// New creates and initialises the named strategy.
func (r *Registry) New(name string, cfg Config) (Strategy, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, core.Errorf(core.ErrUnknownStrategy, "%q", name)
	}

	s := f()
	if err := s.Init(cfg); err != nil {
		r.logger.Debug("strategy init failed", zap.String("strategy", name), zap.Error(err))
		var ce *core.Error
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, core.WrapError(core.ErrConfigInvalid, err)
	}
	return s, nil
}

// Names returns registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List describes every registered strategy with its default parameters.
func (r *Registry) List() []Info {
	names := r.Names()
	out := make([]Info, 0, len(names))
	for _, name := range names {
		s, err := r.New(name, Config{})
		if err != nil {
			r.logger.Warn("strategy rejects its own defaults", zap.String("strategy", name), zap.Error(err))
			continue
		}
		out = append(out, Info{Name: name, Description: s.Description(), Defaults: s.Params()})
	}
	return out
}
