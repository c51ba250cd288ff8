package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/allbus/corebus/internal/busobject"
)

type methodKey struct {
	path          string
	interfaceName string // "" for the bare-member alias row
	member        string
}

// methodEntry carries a reference count so a Lookup can safely outlive a
// concurrent Remove: the handler is only actually discarded once every
// outstanding Release has returned (spec.md §4.2 "Each entry carries a
// reference count so lookups can safely outlive concurrent removals").
type methodEntry struct {
	refs    atomic.Int32
	handler busobject.MethodHandler
	object  *busobject.Object
}

// MethodTable is the endpoint's (path, interface, member) -> handler
// index.
type MethodTable struct {
	mu      sync.RWMutex
	entries map[methodKey]*methodEntry
}

// NewMethodTable creates an empty table.
func NewMethodTable() *MethodTable {
	return &MethodTable{entries: make(map[methodKey]*methodEntry)}
}

// Add inserts the (path, interfaceName, member) -> handler row. When
// interfaceName is non-empty, a second row keyed with interfaceName=""
// is also inserted, but only if no such bare-member row exists yet —
// first-writer-wins for ambiguous member names across interfaces
// (spec.md §4.2, DESIGN.md Open Question 1).
func (t *MethodTable) Add(path, interfaceName, member string, handler busobject.MethodHandler, obj *busobject.Object) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry := &methodEntry{handler: handler, object: obj}
	t.entries[methodKey{path, interfaceName, member}] = entry

	if interfaceName != "" {
		bareKey := methodKey{path, "", member}
		if _, exists := t.entries[bareKey]; !exists {
			t.entries[bareKey] = entry
		}
	}
}

// Remove deletes the (path, interfaceName, member) row and, if the bare-
// member alias still points at the same entry, that alias too.
func (t *MethodTable) Remove(path, interfaceName, member string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := methodKey{path, interfaceName, member}
	entry, ok := t.entries[key]
	if !ok {
		return
	}
	delete(t.entries, key)

	if interfaceName != "" {
		bareKey := methodKey{path, "", member}
		if t.entries[bareKey] == entry {
			delete(t.entries, bareKey)
		}
	}
}

// RemovePath deletes every row registered for path, used when an object
// is unregistered.
func (t *MethodTable) RemovePath(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.entries {
		if k.path == path {
			delete(t.entries, k)
		}
	}
}

// Lookup finds the handler for (path, interfaceName, member), falling
// back to the bare-member alias if interfaceName has no direct entry.
// The returned release func must be called exactly once, after the
// handler has finished executing.
func (t *MethodTable) Lookup(path, interfaceName, member string) (handler busobject.MethodHandler, obj *busobject.Object, release func(), ok bool) {
	t.mu.RLock()
	entry, found := t.entries[methodKey{path, interfaceName, member}]
	if !found {
		entry, found = t.entries[methodKey{path, "", member}]
	}
	if found {
		entry.refs.Add(1)
	}
	t.mu.RUnlock()

	if !found {
		return nil, nil, func() {}, false
	}
	return entry.handler, entry.object, func() { entry.refs.Add(-1) }, true
}
