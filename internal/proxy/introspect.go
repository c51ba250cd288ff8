package proxy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allbus/corebus/internal/dispatch"
	"github.com/allbus/corebus/internal/introspect"
	"github.com/allbus/corebus/internal/wire"
)

// ErrInterfaceMismatch reports that freshly introspected XML disagrees
// with an interface this proxy already has bound (spec.md §4.3
// "InterfaceMismatch").
var ErrInterfaceMismatch = errors.New(string(dispatch.ErrNameInterfaceMismatch))

// IntrospectRemote calls Introspectable.Introspect on the proxy and
// binds the returned interfaces (and auto-creates placeholder children
// for any nested <node> elements), per spec.md §4.3 "introspection
// binding". A previously bound interface that disagrees with the fresh
// XML reports InterfaceMismatch rather than silently overwriting it.
func (o *Object) IntrospectRemote(ctx context.Context, timeout time.Duration) error {
	args, err := o.Call(ctx, "org.freedesktop.DBus.Introspectable", "Introspect",
		nil, wire.Signature(""), wire.Signature("s"), timeout)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("proxy: introspect reply has %d args, want 1", len(args))
	}
	return o.BindXML([]byte(args[0].Str))
}

// BindXML parses introspection XML and installs the described
// interfaces on this proxy, auto-creating placeholder children for any
// nested <node> elements.
func (o *Object) BindXML(doc []byte) error {
	result, err := introspect.Parse(doc)
	if err != nil {
		return err
	}

	o.mu.Lock()
	for _, d := range result.Interfaces {
		if existing, ok := o.interfaces[d.Name()]; ok && !existing.Equal(d) {
			o.mu.Unlock()
			return fmt.Errorf("proxy: %s: %w", d.Name(), ErrInterfaceMismatch)
		}
		o.interfaces[d.Name()] = d
	}
	o.mu.Unlock()

	for _, name := range result.Children {
		o.Child(name)
	}
	return nil
}
