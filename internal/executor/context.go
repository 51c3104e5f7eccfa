package executor

import (
	"fmt"
	"sort"
	"sync"
)

// ActionContext is the shared key/value store steps communicate through.
// Producers write under their declared result key; consumers read the keys
// they declared as required. It is safe for concurrent use, and once frozen
// it rejects all further writes.
type ActionContext struct {
	mu     sync.RWMutex
	values map[string]any
	frozen bool
}

// NewActionContext returns an empty, unfrozen context.
func NewActionContext() *ActionContext {
	return &ActionContext{values: make(map[string]any)}
}

// Get returns the value stored under key and whether it was present.
func (c *ActionContext) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Put stores value under key. Writing to a frozen context or re-writing an
// existing key is an error; each key has exactly one producer.
func (c *ActionContext) Put(key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return fmt.Errorf("%w: cannot write %q", ErrContextFrozen, key)
	}
	if _, exists := c.values[key]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, key)
	}
	c.values[key] = value
	return nil
}

// Freeze permanently disables writes. Calling it again is a no-op.
func (c *ActionContext) Freeze() {
	c.mu.Lock()
	c.frozen = true
	c.mu.Unlock()
}

// Frozen reports whether the context has been frozen.
func (c *ActionContext) Frozen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frozen
}

// Keys returns all stored keys in sorted order.
func (c *ActionContext) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of the current contents.
func (c *ActionContext) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}
