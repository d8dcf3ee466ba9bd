// Package lifecycle – per-interaction mutual exclusion.
//
// Within a single interaction, transitions must be strictly serialized: an
// automated finalization and a human decision racing on the same record could
// both resolve it. The critical section is keyed by interaction id, so
// unrelated interactions never block each other, and entries are refcounted
// so the map does not grow with the total number of ids ever seen.
package lifecycle

import "sync"

type kmEntry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex provides a mutex per key. The zero value is ready to use.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*kmEntry
}

// Lock acquires the mutex for key and returns the corresponding unlock
// function. Callers must invoke the returned function exactly once,
// typically via defer.
func (k *KeyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[string]*kmEntry)
	}
	e, ok := k.entries[key]
	if !ok {
		e = &kmEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
