package proxy

import (
	"context"
	"sync"
	"time"

	"github.com/allbus/corebus/internal/dispatch"
	"github.com/allbus/corebus/internal/ifc"
	"github.com/allbus/corebus/internal/wire"
)

type propertyCache struct {
	mu     sync.RWMutex
	values map[string]map[string]wire.Arg // interfaceName -> propertyName -> value

	listenersMu sync.Mutex
	listeners   []changedListener
}

type changedListener struct {
	interfaceName string
	subset        map[string]struct{} // empty/nil means "all properties"
	handler       PropertiesChangedHandler
}

// PropertiesChangedHandler receives the filtered changed/invalidated
// payload for one PropertiesChanged signal, already restricted to the
// listener's subscribed property subset.
type PropertiesChangedHandler func(changed map[string]wire.Arg, invalidated []string)

// EnablePropertyCache opts this proxy into caching GetProperty results
// and live PropertiesChanged updates (spec.md §4.3 "Property cache.
// Opt-in per proxy"). Object has no GetAll call, so the cache is never
// filled in bulk. It registers a PropertiesChanged signal handler
// scoped to this proxy's (serviceName, path).
func (o *Object) EnablePropertyCache() {
	o.mu.Lock()
	if o.cache != nil {
		o.mu.Unlock()
		return
	}
	o.cache = &propertyCache{values: make(map[string]map[string]wire.Arg)}
	o.mu.Unlock()

	o.endpoint.Signals.Add(ifc.NameProperties, "PropertiesChanged",
		dispatch.MatchRule{Sender: o.serviceName, Path: o.path},
		o.handlePropertiesChanged)
}

func (o *Object) handlePropertiesChanged(msg *wire.Message) {
	if err := wire.UnmarshalArgs(msg, wire.Signature("sa{sv}as")); err != nil {
		o.invalidateAllCaches()
		return
	}
	if len(msg.Args) != 3 {
		o.invalidateAllCaches()
		return
	}
	interfaceName := msg.Args[0].Str
	changed := parseChangedMap(msg.Args[1])
	invalidated := parseInvalidatedList(msg.Args[2])

	if changed == nil || invalidated == nil || len(invalidated) != len(msg.Args[2].Array) {
		o.invalidateCache(interfaceName)
		return
	}

	o.applyChange(interfaceName, changed, invalidated)
	o.notifyListeners(interfaceName, changed, invalidated)
}

func parseChangedMap(a wire.Arg) map[string]wire.Arg {
	if a.Type != wire.TypeArray {
		return nil
	}
	out := make(map[string]wire.Arg, len(a.Array))
	for _, entry := range a.Array {
		if entry.Type != wire.TypeDictEntry || len(entry.Struct) != 2 {
			return nil
		}
		key := entry.Struct[0]
		val := entry.Struct[1]
		if key.Type != wire.TypeString {
			return nil
		}
		if val.Type == wire.TypeVariant && val.Variant != nil {
			out[key.Str] = *val.Variant
		} else {
			out[key.Str] = val
		}
	}
	return out
}

func parseInvalidatedList(a wire.Arg) []string {
	if a.Type != wire.TypeArray {
		return nil
	}
	out := make([]string, 0, len(a.Array))
	for _, e := range a.Array {
		if e.Type == wire.TypeString {
			out = append(out, e.Str)
		}
	}
	return out
}

// applyChange writes changed entries and erases invalidated ones
// (spec.md §4.3 bullet list).
func (o *Object) applyChange(interfaceName string, changed map[string]wire.Arg, invalidated []string) {
	o.mu.RLock()
	cache := o.cache
	o.mu.RUnlock()
	if cache == nil {
		return
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	m, ok := cache.values[interfaceName]
	if !ok {
		m = make(map[string]wire.Arg)
		cache.values[interfaceName] = m
	}
	for name, val := range changed {
		m[name] = val
	}
	for _, name := range invalidated {
		delete(m, name)
	}
}

// invalidateCache conservatively clears the whole cache for one
// interface, used when either list fails to parse (spec.md §4.3 "A
// parse failure of either list conservatively clears the whole cache
// for that interface").
func (o *Object) invalidateCache(interfaceName string) {
	o.mu.RLock()
	cache := o.cache
	o.mu.RUnlock()
	if cache == nil {
		return
	}
	cache.mu.Lock()
	delete(cache.values, interfaceName)
	cache.mu.Unlock()
}

func (o *Object) invalidateAllCaches() {
	o.mu.RLock()
	cache := o.cache
	o.mu.RUnlock()
	if cache == nil {
		return
	}
	cache.mu.Lock()
	cache.values = make(map[string]map[string]wire.Arg)
	cache.mu.Unlock()
}

// AddPropertiesChangedListener registers handler for PropertiesChanged
// signals on interfaceName. properties is the subset to filter on; an
// empty slice means "all properties" (spec.md §4.3 "PropertiesChanged
// listener").
func (o *Object) AddPropertiesChangedListener(interfaceName string, properties []string, handler PropertiesChangedHandler) {
	o.mu.RLock()
	cache := o.cache
	o.mu.RUnlock()
	if cache == nil {
		o.EnablePropertyCache()
		o.mu.RLock()
		cache = o.cache
		o.mu.RUnlock()
	}

	var subset map[string]struct{}
	if len(properties) > 0 {
		subset = make(map[string]struct{}, len(properties))
		for _, p := range properties {
			subset[p] = struct{}{}
		}
	}
	cache.listenersMu.Lock()
	cache.listeners = append(cache.listeners, changedListener{interfaceName: interfaceName, subset: subset, handler: handler})
	cache.listenersMu.Unlock()
}

func (o *Object) notifyListeners(interfaceName string, changed map[string]wire.Arg, invalidated []string) {
	o.mu.RLock()
	cache := o.cache
	o.mu.RUnlock()
	if cache == nil {
		return
	}
	cache.listenersMu.Lock()
	listeners := append([]changedListener(nil), cache.listeners...)
	cache.listenersMu.Unlock()

	for _, l := range listeners {
		if l.interfaceName != interfaceName {
			continue
		}
		fc, fi := filterBySubset(l.subset, changed, invalidated)
		if len(fc) == 0 && len(fi) == 0 {
			continue
		}
		l.handler(fc, fi)
	}
}

func filterBySubset(subset map[string]struct{}, changed map[string]wire.Arg, invalidated []string) (map[string]wire.Arg, []string) {
	if subset == nil {
		return changed, invalidated
	}
	fc := make(map[string]wire.Arg)
	for name, val := range changed {
		if _, ok := subset[name]; ok {
			fc[name] = val
		}
	}
	var fi []string
	for _, name := range invalidated {
		if _, ok := subset[name]; ok {
			fi = append(fi, name)
		}
	}
	return fc, fi
}

// GetProperty returns the named property's value, consulting the cache
// first if enabled; otherwise (or on a cache miss) it issues a
// synchronous Properties.Get call (spec.md §4.3 "Get/GetAll first
// consult the cache; a hit returns synchronously").
func (o *Object) GetProperty(ctx context.Context, interfaceName, propertyName string, timeout time.Duration) (wire.Arg, error) {
	o.mu.RLock()
	cache := o.cache
	o.mu.RUnlock()
	if cache != nil {
		cache.mu.RLock()
		if m, ok := cache.values[interfaceName]; ok {
			if v, ok := m[propertyName]; ok {
				cache.mu.RUnlock()
				return v, nil
			}
		}
		cache.mu.RUnlock()
	}

	args, err := o.Call(ctx, ifc.NameProperties, "Get",
		[]wire.Arg{{Type: wire.TypeString, Str: interfaceName}, {Type: wire.TypeString, Str: propertyName}},
		wire.Signature("ss"), wire.Signature("v"), timeout)
	if err != nil {
		return wire.Arg{}, err
	}
	val := args[0]
	if val.Type == wire.TypeVariant && val.Variant != nil {
		val = *val.Variant
	}
	if cache != nil {
		o.applyChange(interfaceName, map[string]wire.Arg{propertyName: val}, nil)
	}
	return val, nil
}
