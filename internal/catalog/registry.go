package catalog

import (
	"fmt"
	"sort"
	"sync"

	"planforge/internal/logging"
)

// Catalog holds all registered operations and provides lookup functionality.
// It is thread-safe; registration normally happens once at startup and the
// catalog is consumed read-only afterwards.
type Catalog struct {
	mu  sync.RWMutex
	ops map[string]*OperationDescriptor

	// byMutability provides fast lookup by mutability class.
	byMutability map[Mutability][]*OperationDescriptor
}

// New creates a new empty operation catalog.
func New() *Catalog {
	return &Catalog{
		ops:          make(map[string]*OperationDescriptor),
		byMutability: make(map[Mutability][]*OperationDescriptor),
	}
}

// Register adds an operation to the catalog.
// Returns an error if the descriptor is invalid or the id already exists.
func (c *Catalog) Register(op *OperationDescriptor) error {
	if err := op.Validate(); err != nil {
		return fmt.Errorf("invalid operation: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.ops[op.ID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, op.ID)
	}

	if op.Mutability == "" {
		op.Mutability = ReadOnly
	}
	if op.Cost == 0 {
		op.Cost = 1
	}

	c.ops[op.ID] = op
	c.byMutability[op.Mutability] = append(c.byMutability[op.Mutability], op)

	logging.CatalogDebug("Registered operation: %s (mutability=%s, cost=%d)", op.ID, op.Mutability, op.Cost)
	return nil
}

// MustRegister registers an operation and panics on error.
// Use this for static catalog construction at init time.
func (c *Catalog) MustRegister(op *OperationDescriptor) {
	if err := c.Register(op); err != nil {
		panic(fmt.Sprintf("failed to register operation %s: %v", op.ID, err))
	}
}

// Get returns an operation by id, or nil if not found.
func (c *Catalog) Get(id string) *OperationDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ops[id]
}

// Has returns true if an operation with the given id is registered.
func (c *Catalog) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ops[id]
	return ok
}

// ByMutability returns all operations in a mutability class, sorted by id.
func (c *Catalog) ByMutability(m Mutability) []*OperationDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ops := make([]*OperationDescriptor, len(c.byMutability[m]))
	copy(ops, c.byMutability[m])
	sort.Slice(ops, func(i, j int) bool { return ops[i].ID < ops[j].ID })
	return ops
}

// All returns all registered operations, sorted by id.
func (c *Catalog) All() []*OperationDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*OperationDescriptor, 0, len(c.ops))
	for _, op := range c.ops {
		result = append(result, op)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// IDs returns all registered operation ids, sorted.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.ops))
	for id := range c.ops {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of registered operations.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ops)
}
