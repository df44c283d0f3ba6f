package invoke

import (
	"fmt"
	"sort"
	"sync"
)

// Loader resolves type names at run time. It plays the role of a class loader:
// code using Construct and InvokeStatic never imports the types it calls.
type Loader interface {
	LoadType(name string) (*Type, error)
}

// Registry is a Loader backed by explicit registrations. Lookups that miss
// are delegated to the parent, if any.
type Registry struct {
	mu     sync.RWMutex
	types  map[string]*Type
	parent Loader
}

// NewRegistry creates an empty registry. parent may be nil.
func NewRegistry(parent Loader) *Registry {
	return &Registry{
		types:  make(map[string]*Type),
		parent: parent,
	}
}

// Default is the process-wide registry. Packages providing types register
// them here from init().
var Default = NewRegistry(nil)

// Register adds t to the default registry.
//
// Example:
//
//	func init() {
//	    invoke.Register(invoke.NewType("host.LegacyEnvironment").
//	        Constructor(NewLegacyEnvironment))
//	}
func Register(t *Type) {
	Default.Register(t)
}

// Register adds or replaces t.
func (r *Registry) Register(t *Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.Name] = t
}

// LoadType returns the type registered under name.
func (r *Registry) LoadType(name string) (*Type, error) {
	r.mu.RLock()
	t, ok := r.types[name]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}
	if r.parent != nil {
		return r.parent.LoadType(name)
	}
	return nil, fmt.Errorf("%w: %s", ErrTypeNotFound, name)
}

// Names returns the locally registered type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
