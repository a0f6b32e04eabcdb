package retrieval

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/hyperjump/kotae/internal/metrics"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned for an unknown session ID.
var ErrSessionNotFound = errors.New("session not found")

// EngineFactory creates a fresh engine for a new session.
type EngineFactory func() (*Engine, error)

// Registry maps session IDs to independent engines, so a rebuild in one
// session is never visible to another.
type Registry struct {
	mu      sync.Mutex
	engines map[string]*Engine
	factory EngineFactory
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger for session lifecycle events.
func WithRegistryLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRegistryMetrics reports the live session count.
func WithRegistryMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(factory EngineFactory, opts ...RegistryOption) *Registry {
	r := &Registry{
		engines: make(map[string]*Engine),
		factory: factory,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultSession is the session the server pre-creates and the watcher rebuilds.
const DefaultSession = "default"

// Create starts a session with a random ID.
func (r *Registry) Create() (string, *Engine, error) {
	id := uuid.NewString()
	e, err := r.GetOrCreate(id)
	if err != nil {
		return "", nil, err
	}
	return id, e, nil
}

// Get returns the engine of session id.
func (r *Registry) Get(id string) (*Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.engines[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e, nil
}

// GetOrCreate returns the engine of session id, creating it if needed.
func (r *Registry) GetOrCreate(id string) (*Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.engines[id]; ok {
		return e, nil
	}
	e, err := r.factory()
	if err != nil {
		return nil, fmt.Errorf("create engine for session %s: %w", id, err)
	}
	r.engines[id] = e
	r.metrics.SetSessions(len(r.engines))
	r.logger.Info("session created", zap.String("session", id))
	return e, nil
}

// Delete removes session id and closes its engine.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	e, ok := r.engines[id]
	delete(r.engines, id)
	r.metrics.SetSessions(len(r.engines))
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	r.logger.Info("session deleted", zap.String("session", id))
	return e.Close()
}

// IDs returns the live session IDs in lexical order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.engines))
	for id := range r.engines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close closes every engine and empties the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	engines := r.engines
	r.engines = make(map[string]*Engine)
	r.metrics.SetSessions(0)
	r.mu.Unlock()
	var errs []error
	for _, e := range engines {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
