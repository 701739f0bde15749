// Package lock serializes work on a single key within one process.
package lock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Keyed hands out one mutex per key and forgets keys nobody holds.
// The zero value is ready to use.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *Keyed) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[string]*entry)
	}
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			k.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(k.entries, key)
			}
			k.mu.Unlock()
		})
	}
}

// Len reports how many keys are currently held or awaited.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
