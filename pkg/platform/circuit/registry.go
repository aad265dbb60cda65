package circuit

import (
	"fmt"
	"sort"
)

// Registry holds one independent breaker per key (for example per environment).
// It is built once at startup and is read-only afterwards.
type Registry struct {
	breakers map[string]*Breaker
}

// NewRegistry builds a breaker for every key, each named "<service>.<key>".
func NewRegistry(service string, keys []string, opts ...Option) *Registry {
	r := &Registry{breakers: make(map[string]*Breaker, len(keys))}
	for _, key := range keys {
		r.breakers[key] = New(fmt.Sprintf("%s.%s", service, key), opts...)
	}
	return r
}

// Get returns the breaker registered for key.
func (r *Registry) Get(key string) (*Breaker, bool) {
	b, ok := r.breakers[key]
	return b, ok
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.breakers))
	for k := range r.breakers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
