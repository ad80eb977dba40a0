// Package registry keeps the named, validated sources an agent can query.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/gear6io/dataagent/pkg/errors"
	"github.com/gear6io/dataagent/server/sources"
	"github.com/gear6io/dataagent/server/types"
	"github.com/rs/zerolog"
)

// Factory builds an unvalidated driver from a config
type Factory func(types.SourceConfig) (types.Source, error)

type entry struct {
	config types.SourceConfig
	source types.Source
	// calls counts FetchData and GetSchema calls still using source
	calls sync.WaitGroup
}

// Registry maps source names to drivers. The lock guards only the map and
// the insertion order; driver calls happen outside it.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string

	factory Factory
	logger  zerolog.Logger
}

// Option customizes a Registry
type Option func(*Registry)

// WithFactory replaces the driver factory
func WithFactory(f Factory) Option {
	return func(r *Registry) {
		r.factory = f
	}
}

// New creates an empty registry
func New(logger zerolog.Logger, opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		logger:  logger.With().Str("component", "registry").Logger(),
	}
	r.factory = func(cfg types.SourceConfig) (types.Source, error) {
		return sources.New(cfg, logger)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register builds and validates a source, then publishes it under its name.
// A source already registered under that name is replaced in place and
// closed once the calls already running against it return.
func (r *Registry) Register(ctx context.Context, cfg types.SourceConfig) (string, error) {
	if cfg.Name == "" {
		return "", types.NewValidation("", "Data source name is required")
	}

	src, err := r.factory(cfg)
	if err != nil {
		return "", asValidation(cfg.Name, err)
	}
	if err := src.Validate(ctx); err != nil {
		if cerr := src.Close(); cerr != nil {
			r.logger.Warn().Err(cerr).Str("source", cfg.Name).Msg("Failed to close rejected source")
		}
		return "", asValidation(cfg.Name, err)
	}

	r.mu.Lock()
	old, exists := r.entries[cfg.Name]
	r.entries[cfg.Name] = &entry{config: cfg, source: src}
	if !exists {
		r.order = append(r.order, cfg.Name)
	}
	r.mu.Unlock()

	if exists {
		r.retire(cfg.Name, old)
	}

	r.logger.Info().
		Str("source", cfg.Name).
		Str("type", cfg.Type.String()).
		Bool("replaced", exists).
		Msg("Data source registered")
	return fmt.Sprintf("Data source '%s' registered (%s)", cfg.Name, cfg.Type), nil
}

// Unregister removes a source and closes it after its running calls return
func (r *Registry) Unregister(name string) string {
	r.mu.Lock()
	e, exists := r.entries[name]
	if exists {
		delete(r.entries, name)
		for i, n := range r.order {
			if n == name {
				r.order = append(r.order[:i:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	if !exists {
		return fmt.Sprintf("Data source '%s' not found", name)
	}
	r.retire(name, e)
	r.logger.Info().Str("source", name).Msg("Data source removed")
	return fmt.Sprintf("Data source '%s' removed", name)
}

// List returns source names in registration order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.order...)
}

// Describe returns name, type and description for every source in
// registration order
func (r *Registry) Describe() []types.SourceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.SourceInfo, 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		out = append(out, types.SourceInfo{
			Name:        name,
			Type:        e.config.Type,
			Description: e.config.Description,
		})
	}
	return out
}

// Get returns the named source or a not-found error listing what exists.
// Unlike FetchData and GetSchema, a caller holding the result is not waited
// for when the source is replaced or removed.
func (r *Registry) Get(name string) (types.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.entries[name]; ok {
		return e.source, nil
	}
	return nil, types.NewSourceNotFound(name, append([]string{}, r.order...))
}

// acquire looks up name and counts a call against it. The count is taken
// under the lock, so a retired entry never gains new calls.
func (r *Registry) acquire(name string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, types.NewSourceNotFound(name, append([]string{}, r.order...))
	}
	e.calls.Add(1)
	return e, nil
}

// FetchData runs q against the named source
func (r *Registry) FetchData(ctx context.Context, name string, q types.Query) (*types.Result, error) {
	e, err := r.acquire(name)
	if err != nil {
		return nil, err
	}
	defer e.calls.Done()

	res, err := e.source.Fetch(ctx, q)
	if err != nil {
		return nil, classify(name, err)
	}
	return res, nil
}

// GetSchema describes the named source
func (r *Registry) GetSchema(ctx context.Context, name string) (*types.Schema, error) {
	e, err := r.acquire(name)
	if err != nil {
		return nil, err
	}
	defer e.calls.Done()

	schema, err := e.source.Schema(ctx)
	if err != nil {
		return nil, classify(name, err)
	}
	return schema, nil
}

// RegisterAll registers every config, logging and skipping the ones that
// fail. It returns the confirmation of each source that was registered.
func (r *Registry) RegisterAll(ctx context.Context, configs []types.SourceConfig) []string {
	var registered []string
	for _, cfg := range configs {
		if cfg.Type == "" {
			r.logger.Warn().Str("source", cfg.Name).Msg("Skipping source without a type")
			continue
		}
		msg, err := r.Register(ctx, cfg)
		if err != nil {
			r.logger.Warn().Err(err).Str("source", cfg.Name).Msg("Failed to register source")
			continue
		}
		registered = append(registered, msg)
	}
	return registered
}

// Close forgets every source and closes each once its running calls return.
// The first close error is returned.
func (r *Registry) Close() error {
	r.mu.Lock()
	entries := r.entries
	order := r.order
	r.entries = make(map[string]*entry)
	r.order = nil
	r.mu.Unlock()

	var first error
	for _, name := range order {
		e := entries[name]
		e.calls.Wait()
		if err := e.source.Close(); err != nil {
			r.logger.Warn().Err(err).Str("source", name).Msg("Failed to close source")
			if first == nil {
				first = errors.Wrapf(errors.CommonInternal, err, "failed to close source '%s'", name)
			}
		}
	}
	return first
}

// retire closes an entry already removed from the map once its running calls
// have returned
func (r *Registry) retire(name string, e *entry) {
	e.calls.Wait()
	if err := e.source.Close(); err != nil {
		r.logger.Warn().Err(err).Str("source", name).Msg("Failed to close source")
	}
}

// classify keeps coded driver errors and turns anything else into a fetch
// error for the source
func classify(name string, err error) error {
	if errors.GetCode(err) != "" {
		return err
	}
	return types.NewFetch(name, err, "Failed to fetch data from '%s'", name)
}

// asValidation reports any registration failure as a validation error
func asValidation(name string, err error) error {
	if types.IsValidation(err) {
		return errors.AsError(err, types.ErrSourceValidation).AddContext("source", name)
	}
	return errors.Wrapf(types.ErrSourceValidation, err, "Data source '%s' failed validation", name).
		AddContext("source", name)
}
