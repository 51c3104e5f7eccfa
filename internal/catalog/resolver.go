package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// TypeResolver converts a domain-specific embedded payload (a delegate-type
// parameter) into its native value. A resolver either succeeds with a value
// or fails with a reason; the argument resolver turns a failure into an
// error step, never a panic.
type TypeResolver interface {
	Resolve(ctx context.Context, raw any) (any, error)
}

// ResolverFunc adapts a plain function to the TypeResolver interface.
type ResolverFunc func(ctx context.Context, raw any) (any, error)

// Resolve implements TypeResolver.
func (f ResolverFunc) Resolve(ctx context.Context, raw any) (any, error) {
	return f(ctx, raw)
}

// ResolverRegistry maps delegate-type ids to resolvers. It is an explicit
// value threaded through the argument resolver, scoped to the catalog's
// lifetime; there is no process-wide table.
type ResolverRegistry struct {
	mu        sync.RWMutex
	resolvers map[string]TypeResolver
}

// NewResolverRegistry creates an empty resolver registry.
func NewResolverRegistry() *ResolverRegistry {
	return &ResolverRegistry{
		resolvers: make(map[string]TypeResolver),
	}
}

// Register adds a resolver under the given delegate-type id.
// Registering the same id twice replaces the previous resolver.
func (r *ResolverRegistry) Register(id string, resolver TypeResolver) error {
	if id == "" {
		return ErrResolverIDEmpty
	}
	if resolver == nil {
		return fmt.Errorf("%w: nil resolver for id %q", ErrInvalidSpec, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[id] = resolver
	return nil
}

// Lookup returns the resolver for a delegate-type id.
func (r *ResolverRegistry) Lookup(id string) (TypeResolver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	resolver, ok := r.resolvers[id]
	return resolver, ok
}

// IDs returns all registered delegate-type ids, sorted.
func (r *ResolverRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.resolvers))
	for id := range r.resolvers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
