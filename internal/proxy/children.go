package proxy

import "strings"

// Child returns the proxy for the immediate path segment beneath this
// object, creating a placeholder that shares this proxy's service name
// and session if one does not already exist (spec.md §4.3 "Child
// navigation").
func (o *Object) Child(segment string) *Object {
	o.mu.Lock()
	defer o.mu.Unlock()
	if c, ok := o.children[segment]; ok {
		return c
	}
	childPath := joinPath(o.path, segment)
	c := New(o.endpoint, o.serviceName, childPath, o.sessionID)
	c.parent = o
	o.children[segment] = c
	return c
}

// ChildAt resolves a path relative to this proxy (or absolute, if it
// starts with "/") through auto-created placeholder proxies, one
// segment at a time.
func (o *Object) ChildAt(path string) *Object {
	var segments []string
	if strings.HasPrefix(path, "/") {
		segments = splitSegments(path)
		root := o
		for root.parent != nil {
			root = root.parent
		}
		cur := root
		for _, seg := range segments {
			cur = cur.Child(seg)
		}
		return cur
	}

	segments = splitSegments(path)
	cur := o
	for _, seg := range segments {
		cur = cur.Child(seg)
	}
	return cur
}

// Parent returns the proxy this object was navigated from, or nil for
// a root proxy.
func (o *Object) Parent() *Object {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.parent
}

// Children returns every currently materialized child proxy.
func (o *Object) Children() []*Object {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*Object, 0, len(o.children))
	for _, c := range o.children {
		out = append(out, c)
	}
	return out
}

func joinPath(base, segment string) string {
	if base == "/" {
		return "/" + segment
	}
	return base + "/" + segment
}

func splitSegments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
