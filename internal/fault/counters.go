package fault

import (
	"sync"
	"sync/atomic"
)

// Counters tracks how many times each "METHOD:path" key has been evaluated.
// Counts live for the lifetime of the process and are safe for
// concurrent use.
type Counters struct {
	m sync.Map // string -> *atomic.Int64
}

// NewCounters creates an empty counter store.
func NewCounters() *Counters {
	return &Counters{}
}

// Key builds the counter key for a request.
func Key(method, path string) string {
	return method + ":" + path
}

// Increment adds one to key and returns the new value.
func (c *Counters) Increment(key string) int64 {
	v, ok := c.m.Load(key)
	if !ok {
		v, _ = c.m.LoadOrStore(key, new(atomic.Int64))
	}
	return v.(*atomic.Int64).Add(1)
}

// Get returns the current value of key.
func (c *Counters) Get(key string) int64 {
	v, ok := c.m.Load(key)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// Snapshot returns a copy of all counters.
func (c *Counters) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	c.m.Range(func(k, v any) bool {
		out[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	return out
}
