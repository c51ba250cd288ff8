// Package proxy implements the remote bus object proxy: synchronous and
// asynchronous method calls, the opt-in property cache, PropertiesChanged
// listeners, and child navigation over a tree of placeholder proxies
// (spec.md §4.3).
package proxy

import (
	"sync"

	"github.com/allbus/corebus/internal/dispatch"
	"github.com/allbus/corebus/internal/ifc"
)

// Object is a proxy for one remote bus object: a (service name, object
// path, session) triple plus the interfaces the caller knows it
// implements.
type Object struct {
	mu sync.RWMutex

	endpoint    *dispatch.Endpoint
	serviceName string
	path        string
	sessionID   uint32

	// secure mirrors "caller-security on": when true, calls to an
	// interface whose own security policy is not explicitly Off require
	// an encrypted reply (spec.md §4.3 "checks security preconditions").
	secure bool

	interfaces map[string]*ifc.Description
	cache      *propertyCache
	children   map[string]*Object
	parent     *Object
}

// New creates a proxy rooted at (serviceName, path) over endpoint.
// sessionID is 0 for a sessionless/pre-session proxy.
func New(endpoint *dispatch.Endpoint, serviceName, path string, sessionID uint32) *Object {
	return &Object{
		endpoint:    endpoint,
		serviceName: serviceName,
		path:        path,
		sessionID:   sessionID,
		interfaces:  make(map[string]*ifc.Description),
		children:    make(map[string]*Object),
	}
}

// ServiceName returns the proxy's destination bus name.
func (o *Object) ServiceName() string { return o.serviceName }

// Path returns the proxy's object path.
func (o *Object) Path() string { return o.path }

// SessionID returns the session this proxy's calls are scoped to.
func (o *Object) SessionID() uint32 { return o.sessionID }

// SetSecure marks calls through this proxy as requiring an encrypted
// reply (the "caller-security on" precondition). An interface whose own
// policy is SecurityOff is exempt, and one whose policy is
// SecurityRequired requires encryption whatever this flag says.
func (o *Object) SetSecure(secure bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.secure = secure
}

// AddInterface installs a known interface description on the proxy
// without introspecting the remote object for it — the common case when
// the application already has the description compiled in.
func (o *Object) AddInterface(d *ifc.Description) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.interfaces[d.Name()] = d
}

// Interface looks up a known interface by name.
func (o *Object) Interface(name string) (*ifc.Description, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	d, ok := o.interfaces[name]
	return d, ok
}

// Interfaces returns the names of every interface known on this proxy.
func (o *Object) Interfaces() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, 0, len(o.interfaces))
	for name := range o.interfaces {
		names = append(names, name)
	}
	return names
}

func (o *Object) requiresEncryption(interfaceName string) bool {
	o.mu.RLock()
	secure := o.secure
	d, ok := o.interfaces[interfaceName]
	o.mu.RUnlock()
	if !ok {
		return secure
	}
	switch d.Security() {
	case ifc.SecurityRequired:
		return true
	case ifc.SecurityOff:
		return false
	default:
		return secure
	}
}
