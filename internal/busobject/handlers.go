package busobject

import "github.com/allbus/corebus/internal/wire"

// The source's inheritance hierarchy (BusObject, BusListener, AlarmListener,
// MessageReceiver) becomes a small set of capability interfaces here
// (spec.md §9 design note): composition replaces multiple inheritance.
// A BusObject implements MessageSink and, opt-in per member, the others.

// MethodHandler handles one incoming method-call message and is
// responsible for sending exactly one reply (a return or an error) back
// through the endpoint that invoked it.
type MethodHandler func(ctx *CallContext, msg *wire.Message)

// SignalHandler handles one incoming signal message. Signals have no
// reply.
type SignalHandler func(msg *wire.Message)

// ReplyHandler handles the method-return or error message correlated to
// a previously sent method call, by reply serial.
type ReplyHandler func(msg *wire.Message)

// AlarmHandler fires when a scheduled alarm (e.g. a reply timeout) expires.
type AlarmHandler func()

// PropertyAccessor lets a BusObject serve org.freedesktop.DBus.Properties
// Get/Set/GetAll for interfaces it implements natively instead of from a
// static snapshot.
type PropertyAccessor interface {
	GetProperty(interfaceName, propertyName string) (wire.Arg, error)
	SetProperty(interfaceName, propertyName string, value wire.Arg) error
	GetAllProperties(interfaceName string) (map[string]wire.Arg, error)
}

// Observer is the capability an application implements to receive
// discovery callbacks from internal/observer; declared here so
// busobject and observer can both depend on it without a cycle.
type Observer interface {
	ObjectDiscovered(id ObjectID, interfaces []string, sessionID uint32)
	ObjectLost(id ObjectID)
}

// ObjectID names a remote bus object by (unique bus name, object path),
// the identity an Observer tracks across announcements and sessions.
type ObjectID struct {
	BusName string
	Path    string
}

// CallContext is the minimal per-call context a MethodHandler needs to
// send its reply; internal/dispatch supplies the concrete implementation
// that actually marshals and routes the return/error message.
type CallContext struct {
	Reply func(outArgs []wire.Arg) error
	Error func(name, message string) error
}
