package invocation

import (
	"fmt"
	"sync"
)

// ServiceRouter maps an incoming (service, method) path to the
// MethodDescriptor that serves it.
type ServiceRouter interface {
	Lookup(service, method string) (*MethodDescriptor, bool)
}

// Registry is the default ServiceRouter: an in-memory table of
// service/method pairs populated at server startup.
type Registry struct {
	mu      sync.RWMutex
	methods map[string]*MethodDescriptor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{methods: make(map[string]*MethodDescriptor)}
}

// Register adds d, keyed by its Service and Method fields. Registering
// the same (service, method) twice replaces the previous descriptor.
func (r *Registry) Register(d *MethodDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[key(d.Service, d.Method)] = d
}

// Lookup implements ServiceRouter.
func (r *Registry) Lookup(service, method string) (*MethodDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.methods[key(service, method)]
	return d, ok
}

func key(service, method string) string {
	return fmt.Sprintf("%s/%s", service, method)
}
