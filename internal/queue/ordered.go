package queue

import (
	"slices"
	"sync"
)

// Ordered is a thread-safe FIFO of unique keys. Insertion order is kept
// for the lifetime of each key; removing a key never reorders the rest.
type Ordered[K comparable] struct {
	mu    sync.Mutex
	items []K
}

// NewOrdered creates an empty ordered set.
func NewOrdered[K comparable]() *Ordered[K] {
	return &Ordered[K]{
		items: make([]K, 0),
	}
}

// Append adds key at the tail. Returns false if it is already present.
func (o *Ordered[K]) Append(key K) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if slices.Contains(o.items, key) {
		return false
	}
	o.items = append(o.items, key)
	return true
}

// Remove deletes key. Returns false if it was not present.
func (o *Ordered[K]) Remove(key K) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	i := slices.Index(o.items, key)
	if i < 0 {
		return false
	}
	o.items = slices.Delete(o.items, i, i+1)
	return true
}

// RemoveFunc deletes every key for which del returns true and returns them in queue order.
func (o *Ordered[K]) RemoveFunc(del func(K) bool) []K {
	o.mu.Lock()
	defer o.mu.Unlock()
	var removed []K
	kept := o.items[:0]
	for _, k := range o.items {
		if del(k) {
			removed = append(removed, k)
			continue
		}
		kept = append(kept, k)
	}
	clear(o.items[len(kept):])
	o.items = kept
	return removed
}

// Contains reports whether key is queued.
func (o *Ordered[K]) Contains(key K) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Contains(o.items, key)
}

// Head returns the oldest key.
func (o *Ordered[K]) Head() (K, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.items) == 0 {
		var zero K
		return zero, false
	}
	return o.items[0], true
}

// Items returns a copy of the keys in queue order.
func (o *Ordered[K]) Items() []K {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.items)
}

// Len returns the number of queued keys.
func (o *Ordered[K]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// Clear removes all keys.
func (o *Ordered[K]) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = o.items[:0]
}
