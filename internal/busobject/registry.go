package busobject

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/allbus/corebus/internal/wire"
)

// Registry is the attachment-wide path index of bus objects, grounded on
// the teacher's registry-by-id store (internal/scheduler.Store): a
// mutex-guarded map plus a handful of tree-shaped invariants layered on
// top for object-path semantics.
type Registry struct {
	mu   sync.RWMutex
	root *Object
	byPath map[string]*Object
}

// NewRegistry creates an empty registry with a placeholder root at "/".
func NewRegistry() *Registry {
	root, err := NewObject("/")
	if err != nil {
		panic(err) // "/" is always a legal path
	}
	root.placeholder = true
	return &Registry{
		root:   root,
		byPath: map[string]*Object{"/": root},
	}
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Register installs obj at its own Path(), auto-creating placeholder
// parents for any intermediate path segments that don't yet exist. If an
// object already exists at that path, it is replaced and its children
// are re-parented onto obj (spec.md §4.2, DESIGN.md Open Question 3).
// Register fails if obj's path is not a legal object path.
func (r *Registry) Register(obj *Object) error {
	path := obj.Path()
	if !wire.IsLegalObjectPath(path) {
		return fmt.Errorf("%w: %q", ErrIllegalPath, path)
	}
	segs := splitPath(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	if path == "/" {
		old := r.root
		old.mu.Lock()
		grandchildren := old.children
		old.children = make(map[string]*Object)
		old.mu.Unlock()
		old.setRegistered(false)

		obj.mu.Lock()
		obj.parent = nil
		for seg, gc := range grandchildren {
			gc.mu.Lock()
			gc.parent = obj
			gc.mu.Unlock()
			obj.children[seg] = gc
		}
		obj.mu.Unlock()

		r.root = obj
		r.byPath["/"] = obj
		obj.setRegistered(true)
		return nil
	}

	cur := r.root
	built := "/"
	for _, seg := range segs[:len(segs)-1] {
		built = joinPath(built, seg)
		next, ok := cur.child(seg)
		if !ok {
			placeholder, err := NewObject(built)
			if err != nil {
				return err
			}
			placeholder.placeholder = true
			cur.addChild(seg, placeholder)
			r.byPath[built] = placeholder
			next = placeholder
		}
		cur = next
	}

	last := segs[len(segs)-1]
	if existing, ok := cur.child(last); ok && existing != obj {
		existing.setRegistered(false)
	}
	cur.addChild(last, obj)
	r.byPath[path] = obj
	obj.setRegistered(true)
	return nil
}

func joinPath(base, seg string) string {
	if base == "/" {
		return "/" + seg
	}
	return base + "/" + seg
}

// Unregister removes the object at path, detaching it from its parent.
// Its own children, if any, are left attached to it (they become
// unreachable from the registry's root but remain a valid subtree, since
// Object does not own lifetime — the caller decides what happens next).
func (r *Registry) Unregister(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj, ok := r.byPath[path]
	if !ok {
		return
	}
	delete(r.byPath, path)
	if obj.parent != nil {
		segs := splitPath(path)
		last := segs[len(segs)-1]
		obj.parent.removeChild(last)
	}
	obj.setRegistered(false)
}

// Lookup returns the object registered (or auto-created as a
// placeholder) at path.
func (r *Registry) Lookup(path string) (*Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.byPath[path]
	return obj, ok
}

// Root returns the registry's root object, "/".
func (r *Registry) Root() *Object {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.root
}

// Walk visits every object in the registry, placeholders included, in
// path order, calling fn for each.
func (r *Registry) Walk(fn func(*Object)) {
	r.mu.RLock()
	paths := make([]string, 0, len(r.byPath))
	for p := range r.byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	objs := make([]*Object, len(paths))
	for i, p := range paths {
		objs[i] = r.byPath[p]
	}
	r.mu.RUnlock()
	for _, o := range objs {
		fn(o)
	}
}
