package proxy

import (
	"context"
	"fmt"
	"time"

	"github.com/allbus/corebus/internal/dispatch"
	"github.com/allbus/corebus/internal/wire"
)

// CallError wraps a remote method-call error reply (an org.*.Error.*
// name plus a human-readable message), as distinct from a local/
// transport failure.
type CallError struct {
	Name    string
	Message string
}

func (e *CallError) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// Call issues a synchronous method call and blocks until the reply
// arrives, the timeout fires, or ctx is cancelled (spec.md §4.3
// "Synchronous method call"). A zero timeout uses the endpoint's
// default.
//
// Cancelling ctx is this port's equivalent of the source's "alert the
// waiter with the Abort sentinel": the caller observes
// dispatch.ErrMethodCallAborted and must not touch any proxy-owned
// memory afterward, exactly as spec.md §4.3 describes for the
// destruction-in-progress case.
func (o *Object) Call(ctx context.Context, interfaceName, member string, inArgs []wire.Arg, inSig wire.Signature, outSig wire.Signature, timeout time.Duration) ([]wire.Arg, error) {
	if !dispatch.CanBlock(ctx) {
		return nil, dispatch.ErrBlockingCallNotAllowed
	}

	msg, serial, err := o.buildCall(interfaceName, member, inArgs, inSig)
	if err != nil {
		return nil, err
	}

	replyCh := make(chan *wire.Message, 1)
	replyCtx := &dispatch.ReplyContext{
		Serial:            serial,
		ExpectedSignature: outSig.String(),
		RequireEncryption: o.requiresEncryption(interfaceName),
		Handler:           func(m *wire.Message) { replyCh <- m },
	}

	onTimeout := func(*dispatch.ReplyContext) {
		replyCh <- wire.NewError(0, serial, string(dispatch.ErrNameTimeout), nil, nil)
	}
	if err := o.endpoint.SendMethodCall(msg, replyCtx, timeout, onTimeout); err != nil {
		return nil, err
	}

	select {
	case reply := <-replyCh:
		return replyArgs(reply, outSig)
	case <-ctx.Done():
		o.endpoint.Replies.Cancel(serial)
		return nil, dispatch.ErrMethodCallAborted
	}
}

// AsyncReplyHandler receives the result of a CallAsync invocation: args
// and a nil error on success, or a nil arg slice and a non-nil error
// (possibly a *CallError) otherwise.
type AsyncReplyHandler func(args []wire.Arg, err error)

// CallAsync issues a method call without blocking; handler runs on the
// endpoint's dispatcher thread when the reply (or timeout) arrives
// (spec.md §4.3 "Asynchronous method call"). The contract is: handler
// is invoked if and only if CallAsync returns nil.
func (o *Object) CallAsync(interfaceName, member string, inArgs []wire.Arg, inSig wire.Signature, outSig wire.Signature, timeout time.Duration, handler AsyncReplyHandler) error {
	msg, serial, err := o.buildCall(interfaceName, member, inArgs, inSig)
	if err != nil {
		return err
	}

	replyCtx := &dispatch.ReplyContext{
		Serial:            serial,
		ExpectedSignature: outSig.String(),
		RequireEncryption: o.requiresEncryption(interfaceName),
		Handler: func(m *wire.Message) {
			args, err := replyArgs(m, outSig)
			handler(args, err)
		},
	}
	onTimeout := func(rc *dispatch.ReplyContext) {
		rc.Handler(wire.NewError(0, serial, string(dispatch.ErrNameTimeout), nil, nil))
	}
	return o.endpoint.SendMethodCall(msg, replyCtx, timeout, onTimeout)
}

func (o *Object) buildCall(interfaceName, member string, inArgs []wire.Arg, inSig wire.Signature) (*wire.Message, uint32, error) {
	serial := o.endpoint.NextSerial()
	msg, err := wire.NewMethodCall(serial, o.path, interfaceName, member, inArgs, inSig)
	if err != nil {
		return nil, 0, err
	}
	msg.SetDestination(o.serviceName)
	if o.sessionID != 0 {
		msg.Header.Set(wire.FieldSessionID, wire.Arg{Type: wire.TypeUint32, Uint32: o.sessionID})
	}
	return msg, serial, nil
}

func replyArgs(reply *wire.Message, outSig wire.Signature) ([]wire.Arg, error) {
	if reply.Type == wire.TypeError {
		name, _ := reply.ErrorName()
		message := ""
		if len(reply.Args) > 0 && reply.Args[0].Type == wire.TypeString {
			message = reply.Args[0].Str
		}
		return nil, &CallError{Name: name, Message: message}
	}
	return reply.Args, nil
}
