package dispatch

import (
	"github.com/allbus/corebus/internal/busobject"
	"github.com/allbus/corebus/internal/ifc"
	"github.com/allbus/corebus/internal/wire"
)

// builtinHandler returns the endpoint's built-in handling for the three
// implicit standard interfaces (spec.md §4.2 "if none and the interface
// is …DBus.Peer, handle built-ins"; §6 "Introspectable"/"Properties" are
// also implicitly present on every object).
func (e *Endpoint) builtinHandler(interfaceName, member string) (busobject.MethodHandler, bool) {
	switch interfaceName {
	case ifc.NamePeer:
		switch member {
		case "Ping":
			return e.peerPing, true
		case "GetMachineId":
			return e.peerGetMachineID, true
		}
	case ifc.NameIntrospectable, ifc.NameAllJoynIntrospectable:
		if member == "Introspect" {
			return e.introspect, true
		}
	case ifc.NameProperties:
		switch member {
		case "Get":
			return e.propertiesGet, true
		case "Set":
			return e.propertiesSet, true
		case "GetAll":
			return e.propertiesGetAll, true
		}
	}
	return nil, false
}

func (e *Endpoint) peerPing(ctx *busobject.CallContext, _ *wire.Message) {
	_ = ctx.Reply(nil)
}

func (e *Endpoint) peerGetMachineID(ctx *busobject.CallContext, _ *wire.Message) {
	_ = ctx.Reply([]wire.Arg{{Type: wire.TypeString, Str: e.machineID}})
}

func (e *Endpoint) introspect(ctx *busobject.CallContext, msg *wire.Message) {
	if e.introspector == nil {
		_ = ctx.Error(string(ErrNameNoSuchMethod), "introspection not configured")
		return
	}
	path, _ := msg.Path()
	xml, err := e.introspector.IntrospectPath(path)
	if err != nil {
		_ = ctx.Error(string(ErrNameNoSuchObject), err.Error())
		return
	}
	_ = ctx.Reply([]wire.Arg{{Type: wire.TypeString, Str: xml}})
}

func (e *Endpoint) lookupAccessor(msg *wire.Message) (*busobject.Object, busobject.PropertyAccessor, bool) {
	if e.registry == nil {
		return nil, nil, false
	}
	path, ok := msg.Path()
	if !ok {
		return nil, nil, false
	}
	obj, ok := e.registry.Lookup(path)
	if !ok {
		return nil, nil, false
	}
	acc := obj.PropertyAccessor()
	return obj, acc, acc != nil
}

func (e *Endpoint) propertiesGet(ctx *busobject.CallContext, msg *wire.Message) {
	if err := wire.UnmarshalArgs(msg, wire.Signature("ss")); err != nil {
		_ = ctx.Error(string(ErrNameNoSuchMethod), "Get requires (interface, property)")
		return
	}
	_, acc, ok := e.lookupAccessor(msg)
	if !ok {
		_ = ctx.Error(string(ErrNameNoSuchObject), "no property accessor for this object")
		return
	}
	ifaceName := msg.Args[0].Str
	propName := msg.Args[1].Str
	val, err := acc.GetProperty(ifaceName, propName)
	if err != nil {
		_ = ctx.Error(string(ErrNameNoSuchMethod), err.Error())
		return
	}
	_ = ctx.Reply([]wire.Arg{{Type: wire.TypeVariant, Variant: &val}})
}

func (e *Endpoint) propertiesSet(ctx *busobject.CallContext, msg *wire.Message) {
	if err := wire.UnmarshalArgs(msg, wire.Signature("ssv")); err != nil {
		_ = ctx.Error(string(ErrNameNoSuchMethod), "Set requires (interface, property, value)")
		return
	}
	_, acc, ok := e.lookupAccessor(msg)
	if !ok {
		_ = ctx.Error(string(ErrNameNoSuchObject), "no property accessor for this object")
		return
	}
	ifaceName := msg.Args[0].Str
	propName := msg.Args[1].Str
	value := msg.Args[2]
	if value.Type == wire.TypeVariant && value.Variant != nil {
		value = *value.Variant
	}
	if err := acc.SetProperty(ifaceName, propName, value); err != nil {
		_ = ctx.Error(string(ErrNameNoSuchMethod), err.Error())
		return
	}
	_ = ctx.Reply(nil)
}

func (e *Endpoint) propertiesGetAll(ctx *busobject.CallContext, msg *wire.Message) {
	if err := wire.UnmarshalArgs(msg, wire.Signature("s")); err != nil {
		_ = ctx.Error(string(ErrNameNoSuchMethod), "GetAll requires (interface)")
		return
	}
	_, acc, ok := e.lookupAccessor(msg)
	if !ok {
		_ = ctx.Error(string(ErrNameNoSuchObject), "no property accessor for this object")
		return
	}
	ifaceName := msg.Args[0].Str
	all, err := acc.GetAllProperties(ifaceName)
	if err != nil {
		_ = ctx.Error(string(ErrNameNoSuchMethod), err.Error())
		return
	}
	entries := make([]wire.Arg, 0, len(all))
	for name, val := range all {
		v := val
		entries = append(entries, wire.Arg{Type: wire.TypeDictEntry, Struct: []wire.Arg{
			{Type: wire.TypeString, Str: name},
			{Type: wire.TypeVariant, Variant: &v},
		}})
	}
	_ = ctx.Reply([]wire.Arg{{Type: wire.TypeArray, ArraySig: wire.Signature("{sv}"), Array: entries}})
}
