// Package busobject implements the bus object tree: path-addressed
// objects carrying an interface set and method handlers, registered
// into an attachment-wide Registry (spec.md §4.2 "Registration", §7).
package busobject

import (
	"fmt"
	"sort"
	"sync"

	"github.com/allbus/corebus/internal/ifc"
	"github.com/allbus/corebus/internal/wire"
)

type handlerKey struct {
	interfaceName string
	member        string
}

// Object is one node of the bus object tree. The parent pointer is
// non-owning (spec.md §9 design note: "BusObject parent pointers are
// non-owning; the registry, not the object, owns lifetime") so a child
// can be freely re-parented without the old parent needing to release
// anything.
type Object struct {
	mu sync.RWMutex

	path     string
	parent   *Object
	children map[string]*Object

	// placeholder is true for nodes auto-created to fill an
	// intermediate path segment (spec.md §4.2 "Registration").
	placeholder bool

	// registered is set by Registry.Register and cleared by
	// Registry.Unregister. AddMethodHandler refuses once it is set
	// (spec.md:49), matching the original's AddMethodHandler check
	// against isRegistered.
	registered bool

	interfaces map[string]*ifc.Description
	announce   map[string]bool
	handlers   map[handlerKey]MethodHandler
	signals    map[handlerKey]SignalHandler

	secureSelf *bool // explicit is-secure flag on this object; nil means "inherit"
	accessor   PropertyAccessor
}

// NewObject creates a detached object at path. path must be a legal
// object path (wire.IsLegalObjectPath).
func NewObject(path string) (*Object, error) {
	if !wire.IsLegalObjectPath(path) {
		return nil, fmt.Errorf("%w: %q", ErrIllegalPath, path)
	}
	return &Object{
		path:       path,
		children:   make(map[string]*Object),
		interfaces: make(map[string]*ifc.Description),
		announce:   make(map[string]bool),
		handlers:   make(map[handlerKey]MethodHandler),
		signals:    make(map[handlerKey]SignalHandler),
	}, nil
}

// Path returns the object's path.
func (o *Object) Path() string { return o.path }

// Parent returns the owning parent, or nil at the tree root.
func (o *Object) Parent() *Object {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.parent
}

// IsPlaceholder reports whether this node was auto-created to fill an
// intermediate path segment rather than explicitly registered.
func (o *Object) IsPlaceholder() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.placeholder
}

// IsRegistered reports whether the object is currently installed in a
// Registry.
func (o *Object) IsRegistered() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.registered
}

// setRegistered is called by Registry.Register/Unregister to track
// registration state for AddMethodHandler's precondition.
func (o *Object) setRegistered(registered bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.registered = registered
}

// SetSecure marks this object's members as requiring an encrypted
// caller. Children inherit their nearest explicitly-set ancestor's
// value through IsSecure, per spec.md §7 "is-secure inheritance".
func (o *Object) SetSecure(secure bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.secureSelf = &secure
}

// IsSecure reports whether this object (or the nearest ancestor that set
// it explicitly) requires encryption.
func (o *Object) IsSecure() bool {
	o.mu.RLock()
	secure := o.secureSelf
	parent := o.parent
	o.mu.RUnlock()
	if secure != nil {
		return *secure
	}
	if parent != nil {
		return parent.IsSecure()
	}
	return false
}

// SetPropertyAccessor installs a native property backend for Get/Set/
// GetAll (spec.md §8 supplemented by the source's GetProperty/SetProperty
// BusObject virtuals).
func (o *Object) SetPropertyAccessor(a PropertyAccessor) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.accessor = a
}

// PropertyAccessor returns the installed accessor, or nil.
func (o *Object) PropertyAccessor() PropertyAccessor {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.accessor
}

// AddInterface attaches an activated interface description to the
// object. announced controls whether this interface is listed in the
// object's About announcement (spec.md §8 AboutData). Standard
// interfaces cannot be added this way (spec.md §6).
func (o *Object) AddInterface(d *ifc.Description, announced bool) error {
	if ifc.IsStandardInterface(d.Name()) {
		return fmt.Errorf("%w: %s", ErrStandardInterface, d.Name())
	}
	if !d.Activated() {
		return fmt.Errorf("busobject: interface %s must be activated before AddInterface", d.Name())
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.interfaces[d.Name()] = d
	o.announce[d.Name()] = announced
	return nil
}

// Interface looks up an added (non-standard) interface by name.
func (o *Object) Interface(name string) (*ifc.Description, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	d, ok := o.interfaces[name]
	return d, ok
}

// Interfaces returns the names of all added interfaces, sorted.
func (o *Object) Interfaces() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, 0, len(o.interfaces))
	for name := range o.interfaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AnnouncedInterfaces returns the names of added interfaces marked for
// About announcement, sorted.
func (o *Object) AnnouncedInterfaces() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var names []string
	for name, yes := range o.announce {
		if yes {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// AddMethodHandler binds handler to (interfaceName, member). The
// interface must already have been added via AddInterface and declare a
// method member with that name.
func (o *Object) AddMethodHandler(interfaceName, member string, handler MethodHandler) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.registered {
		return ErrAlreadyRegistered
	}
	d, ok := o.interfaces[interfaceName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInterfaceNotFound, interfaceName)
	}
	m, ok := d.Member(member)
	if !ok || m.Kind != ifc.MemberMethod {
		return fmt.Errorf("%w: %s.%s", ErrMemberNotFound, interfaceName, member)
	}
	o.handlers[handlerKey{interfaceName, member}] = handler
	return nil
}

// MethodHandler looks up a bound handler by (interfaceName, member).
func (o *Object) MethodHandler(interfaceName, member string) (MethodHandler, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	h, ok := o.handlers[handlerKey{interfaceName, member}]
	return h, ok
}

// AddSignalHandler binds handler to (interfaceName, member) for signals
// this object wants to observe on itself (rare; most signal handling is
// registered through the proxy/observer layer instead).
func (o *Object) AddSignalHandler(interfaceName, member string, handler SignalHandler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.signals[handlerKey{interfaceName, member}] = handler
}

// addChild links child under o, replacing any existing child at the
// same path segment and re-parenting the replaced child's own children
// onto the new one, per spec.md §4.2 "a newly registered object
// replaces an existing object at the same path (existing children are
// re-parented)" as decided for the non-leaf case in DESIGN.md Open
// Question 3.
func (o *Object) addChild(segment string, child *Object) {
	o.mu.Lock()
	existing := o.children[segment]
	o.children[segment] = child
	o.mu.Unlock()

	child.mu.Lock()
	child.parent = o
	child.mu.Unlock()

	if existing != nil && existing != child {
		existing.mu.Lock()
		grandchildren := existing.children
		existing.children = make(map[string]*Object)
		existing.parent = nil
		existing.mu.Unlock()

		child.mu.Lock()
		for seg, gc := range grandchildren {
			gc.mu.Lock()
			gc.parent = child
			gc.mu.Unlock()
			child.children[seg] = gc
		}
		child.mu.Unlock()
	}
}

func (o *Object) child(segment string) (*Object, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	c, ok := o.children[segment]
	return c, ok
}

// removeChild detaches the child at segment, if any, clearing its
// parent pointer.
func (o *Object) removeChild(segment string) {
	o.mu.Lock()
	c, ok := o.children[segment]
	if ok {
		delete(o.children, segment)
	}
	o.mu.Unlock()
	if ok {
		c.mu.Lock()
		c.parent = nil
		c.mu.Unlock()
	}
}

// Children returns the object's direct children, in path-segment sorted
// order.
func (o *Object) Children() []*Object {
	o.mu.RLock()
	defer o.mu.RUnlock()
	segs := make([]string, 0, len(o.children))
	for seg := range o.children {
		segs = append(segs, seg)
	}
	sort.Strings(segs)
	out := make([]*Object, 0, len(segs))
	for _, seg := range segs {
		out = append(out, o.children[seg])
	}
	return out
}
