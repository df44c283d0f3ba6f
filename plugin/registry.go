package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrUnknownType is returned when no loader is registered for a unit type.
var ErrUnknownType = errors.New("no loader factory registered for plugin type")

// LoadOptions are passed to a LoaderFactory.
type LoadOptions struct {
	// WorkDir is a host directory the plugin may read and write. Empty means
	// the plugin gets no filesystem access.
	WorkDir string
	Logger  *zap.Logger
}

// LoaderFactory is a function that creates a new Loader instance.
//
// Factory functions are registered with Register and are called when a unit of
// that type needs to be loaded.
type LoaderFactory func(opts LoadOptions) (Loader, error)

// Registry maps unit type identifiers, such as "wasm", to loader factories.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]LoaderFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]LoaderFactory)}
}

// DefaultRegistry holds the loaders registered from init() functions.
var DefaultRegistry = NewRegistry()

// Register registers a loader factory for a unit type identifier, replacing
// any previous registration.
func (r *Registry) Register(typeIdentifier string, factory LoaderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typeIdentifier] = factory
}

// LoaderFactory retrieves the loader factory for a unit type identifier.
func (r *Registry) LoaderFactory(typeIdentifier string) (LoaderFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[typeIdentifier]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeIdentifier)
	}
	return factory, nil
}

// Types returns the registered type identifiers in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for typeIdentifier := range r.factories {
		types = append(types, typeIdentifier)
	}
	sort.Strings(types)
	return types
}

// RegisterLoader registers a loader factory with DefaultRegistry.
//
// This should be called from init() functions in loader implementations:
//
//	func init() {
//	    RegisterLoader("wasm", func(opts LoadOptions) (Loader, error) {
//	        return NewWASMLoader(opts)
//	    })
//	}
func RegisterLoader(typeIdentifier string, factory LoaderFactory) {
	DefaultRegistry.Register(typeIdentifier, factory)
}

// GetLoaderFactory retrieves a loader factory from DefaultRegistry.
func GetLoaderFactory(typeIdentifier string) (LoaderFactory, error) {
	return DefaultRegistry.LoaderFactory(typeIdentifier)
}

// ListRegisteredPluginTypes returns all type identifiers in DefaultRegistry.
func ListRegisteredPluginTypes() []string {
	return DefaultRegistry.Types()
}
