// Package registry tracks the resources of one API surface and resolves
// relation targets between them.
package registry

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hydrant-api/hydrant/field"
)

// Registry manages all resources in the application. It implements
// field.Resolver, so relations can name their targets and resolve them
// lazily; forward references are fine until ValidateAll runs.
type Registry struct {
	mu        sync.RWMutex
	resources map[string]field.Resource
	order     []string
	logger    *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for registration events.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// New creates a new resource registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		resources: make(map[string]field.Resource),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a resource and binds its field set to it. Relations
// declared against Self settle on the resource right here; relations
// naming other resources stay unresolved until first use, so
// registration order does not matter.
func (r *Registry) Register(res field.Resource) error {
	if res == nil {
		return fmt.Errorf("cannot register a nil resource")
	}
	name := res.Name()
	if name == "" {
		return fmt.Errorf("cannot register a resource without a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.resources[name]; exists {
		return fmt.Errorf("resource %s is already registered", name)
	}
	r.resources[name] = res
	r.order = append(r.order, name)

	res.Fields().Bind(res, r)

	r.logger.Debug("registered resource",
		zap.String("resource", name),
		zap.Int("fields", res.Fields().Len()),
	)
	return nil
}

// Resolve returns the resource registered under name. It implements
// field.Resolver.
func (r *Registry) Resolve(name string) (field.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, exists := r.resources[name]
	if !exists {
		return nil, fmt.Errorf("no resource registered as %q", name)
	}
	return res, nil
}

// Get retrieves a resource by name.
func (r *Registry) Get(name string) (field.Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, exists := r.resources[name]
	return res, exists
}

// Names returns all resource names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// All returns the registered resources in registration order.
func (r *Registry) All() []field.Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]field.Resource, 0, len(r.order))
	for _, name := range r.order {
		all = append(all, r.resources[name])
	}
	return all
}

// Count returns the number of registered resources.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.resources)
}

// Exists checks if a resource is registered.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.resources[name]
	return exists
}

// Clear removes all registered resources (useful for testing).
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resources = make(map[string]field.Resource)
	r.order = nil
}

// ValidateAll forces resolution of every relation target, surfacing the
// dangling references that lazy resolution would otherwise defer to first
// use.
func (r *Registry) ValidateAll() error {
	// Snapshot first: resolving targets re-enters the registry.
	r.mu.RLock()
	snapshot := make([]field.Resource, 0, len(r.order))
	for _, name := range r.order {
		snapshot = append(snapshot, r.resources[name])
	}
	r.mu.RUnlock()

	for _, res := range snapshot {
		for _, f := range res.Fields().Fields() {
			if !f.IsRelated() {
				continue
			}
			if _, err := f.Target(); err != nil {
				return fmt.Errorf("resource %s: %w", res.Name(), err)
			}
		}
	}
	return nil
}
