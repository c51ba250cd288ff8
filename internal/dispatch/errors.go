// Package dispatch implements the local endpoint: method and signal
// routing tables, reply correlation, and the worker-pool dispatcher that
// delivers every inbound message to application callbacks on a
// consistent thread context (spec.md §4.2, §5).
package dispatch

import "errors"

// BusError names one of the typed error replies the endpoint sends back
// for a method call it cannot route or authorize (spec.md §4.2 "Method-
// call classification", §7).
type BusError string

const (
	// ErrNameServiceUnknown is sent when no object is registered at the
	// called path, matching the original's Diagnose/HandleMethodCall
	// mapping of ER_BUS_NO_SUCH_OBJECT to this exact wire name (not
	// NoSuchObject below) so a caller checking for ServiceUnknown on the
	// proxy side (as ProxyBusObject.cc does) sees it.
	ErrNameServiceUnknown BusError = "org.freedesktop.DBus.Error.ServiceUnknown"
	// ErrNameNoSuchObject is sent by the built-in handlers: when
	// Properties.Get/Set/GetAll finds no object or no property accessor
	// at the path, and when Introspect cannot render the path.
	ErrNameNoSuchObject         BusError = "org.alljoyn.Bus.NoSuchObject"
	ErrNameNoSuchInterface      BusError = "org.alljoyn.Bus.NoSuchInterface"
	ErrNameNoSuchMethod         BusError = "org.alljoyn.Bus.NoSuchMethod"
	ErrNameSecurityViolation    BusError = "org.alljoyn.Bus.SecurityViolation"
	ErrNameTimeout              BusError = "org.alljoyn.Bus.Timeout"
	ErrNameExiting              BusError = "org.alljoyn.Bus.Exiting"
	ErrNameMethodCallAborted    BusError = "org.alljoyn.Bus.MethodCallAborted"
	ErrNameBlockingCallNotAllowed BusError = "org.alljoyn.Bus.BlockingCallNotAllowed"
	ErrNameInterfaceMismatch    BusError = "org.alljoyn.Bus.InterfaceMismatch"
)

// Sentinel Go errors returned by the endpoint's own API (not wire error
// replies) — spec.md §5 "Cancellation".
var (
	ErrBlockingCallNotAllowed = errors.New("dispatch: synchronous call from a dispatcher thread requires EnableConcurrentCallbacks")
	ErrMethodCallAborted      = errors.New("dispatch: method call aborted")
	ErrTimeout                = errors.New("dispatch: method call timed out")
	ErrExiting                = errors.New("dispatch: endpoint is shutting down")
	ErrNoReplyContext         = errors.New("dispatch: no reply context for serial")
)
