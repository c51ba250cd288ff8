package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/allbus/corebus/internal/busobject"
	"github.com/allbus/corebus/internal/wire"
)

// Sender pushes an outbound message toward the transport. internal/proxy
// and internal/observer depend on this narrow interface rather than on a
// concrete transport type, keeping internal/transport a leaf.
type Sender interface {
	Send(msg *wire.Message) error
}

// SecurityHooks is the endpoint's view of internal/security: encrypt/
// decrypt/authorize/violation-report, the four hooks of spec.md §6.
type SecurityHooks interface {
	Encrypt(msg *wire.Message) error
	Decrypt(msg *wire.Message) error
	Authorize(msg *wire.Message) error
	ReportViolation(msg *wire.Message, reason string)
}

// Introspector produces the introspection XML for a path, delegated to
// internal/introspect to keep that package leaf-independent of dispatch.
type Introspector interface {
	IntrospectPath(path string) (string, error)
}

type dispatcherThreadKey struct{}

// WithDispatcherThread marks ctx as running on one of the endpoint's
// worker goroutines. Go has no OS thread-name API to recognize this the
// way the source does (spec.md §4.2 "recognised by thread-name prefix");
// a context value is the idiomatic substitute.
func WithDispatcherThread(ctx context.Context) context.Context {
	return context.WithValue(ctx, dispatcherThreadKey{}, true)
}

// OnDispatcherThread reports whether ctx was produced by
// WithDispatcherThread (directly or by inheriting from a parent that
// was).
func OnDispatcherThread(ctx context.Context) bool {
	v, _ := ctx.Value(dispatcherThreadKey{}).(bool)
	return v
}

type concurrentCallbacksKey struct{}

// EnableConcurrentCallbacks opts a handler's context into making
// synchronous outbound calls from within a callback, the explicit
// reentrancy bit of spec.md §4.2. Without this, a synchronous call
// issued from a dispatcher-thread context fails with
// ErrBlockingCallNotAllowed.
func EnableConcurrentCallbacks(ctx context.Context) context.Context {
	return context.WithValue(ctx, concurrentCallbacksKey{}, true)
}

func concurrentCallbacksAllowed(ctx context.Context) bool {
	v, _ := ctx.Value(concurrentCallbacksKey{}).(bool)
	return v
}

// CanBlock reports whether a synchronous outbound call is permitted on
// ctx: true when ctx is not a dispatcher-thread context, or when it is
// but the handler opted in via EnableConcurrentCallbacks (spec.md §4.2
// "without opt-in, synchronous calls from a callback thread fail with
// BlockingCallNotAllowed").
func CanBlock(ctx context.Context) bool {
	return !OnDispatcherThread(ctx) || concurrentCallbacksAllowed(ctx)
}

// Endpoint is the local bus endpoint: method/signal routing, reply
// correlation, and the worker pool that delivers every inbound message
// on a dispatcher-thread context (spec.md §4.2).
type Endpoint struct {
	log      *slog.Logger
	sender   Sender
	security SecurityHooks
	introspector Introspector
	registry *busobject.Registry
	serials  *wire.SerialAllocator

	Methods *MethodTable
	Signals *SignalTable
	Replies *ReplyMap

	defaultTimeout time.Duration
	machineID      string

	queue   chan queuedMessage
	workers int
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

type queuedMessage struct {
	msg *wire.Message
	ctx context.Context
}

// Config bundles the constructor arguments an Endpoint needs from its
// collaborators.
type Config struct {
	Logger         *slog.Logger
	Sender         Sender
	Security       SecurityHooks
	Introspector   Introspector
	Registry       *busobject.Registry
	Serials        *wire.SerialAllocator
	Workers        int
	DefaultTimeout time.Duration
	MachineID      string
}

// New creates an Endpoint from cfg, defaulting Workers to 4 and
// DefaultTimeout to 25s when unset (busconfig.Default()'s values).
func New(cfg Config) *Endpoint {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	timeout := cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &Endpoint{
		log:            cfg.Logger,
		sender:         cfg.Sender,
		security:       cfg.Security,
		introspector:   cfg.Introspector,
		registry:       cfg.Registry,
		serials:        cfg.Serials,
		Methods:        NewMethodTable(),
		Signals:        NewSignalTable(),
		Replies:        NewReplyMap(),
		defaultTimeout: timeout,
		machineID:      cfg.MachineID,
		queue:          make(chan queuedMessage, 256),
		workers:        workers,
		stopCh:         make(chan struct{}),
	}
}

// Start launches the worker pool.
func (e *Endpoint) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
}

// Stop halts the worker pool and synthesizes an Exiting error for every
// outstanding reply context (spec.md §4.2 "On shutdown, the synthesized
// error is Exiting").
func (e *Endpoint) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopCh)
	e.mu.Unlock()

	e.wg.Wait()

	for _, ctx := range e.Replies.Drain() {
		errMsg := wire.NewError(0, ctx.Serial, string(ErrNameExiting), nil, nil)
		ctx.Handler(errMsg)
	}
}

func (e *Endpoint) worker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		case qm := <-e.queue:
			e.process(qm.ctx, qm.msg)
		}
	}
}

// NextSerial allocates the next outbound message serial.
func (e *Endpoint) NextSerial() uint32 { return e.serials.Next() }

// DefaultTimeout returns the endpoint's configured default reply
// timeout, used by internal/proxy when a call specifies none.
func (e *Endpoint) DefaultTimeout() time.Duration { return e.defaultTimeout }

// SendMethodCall registers ctx in the reply map and pushes msg through
// the endpoint's Sender. If the send fails, the reply context is
// cancelled before returning the error (spec.md §4.3 "pushes the
// message") — unless the handler already fired in the race window
// between Send returning and Cancel running, in which case the contract
// ("the callback is invoked iff the call returns success") is preserved
// by reporting success instead (spec.md §4.3 "Asynchronous method call").
func (e *Endpoint) SendMethodCall(msg *wire.Message, ctx *ReplyContext, timeout time.Duration, onTimeout func(*ReplyContext)) error {
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	e.Replies.Register(ctx, timeout, onTimeout)
	if err := e.sender.Send(msg); err != nil {
		if _, stillPending := e.Replies.Cancel(ctx.Serial); !stillPending {
			return nil
		}
		return err
	}
	return nil
}

// Dispatch routes an inbound message. If ctx is already on a dispatcher
// thread, processing happens inline to avoid self-deadlock; otherwise
// the message is queued for a worker (spec.md §4.2 "Dispatcher").
func (e *Endpoint) Dispatch(ctx context.Context, msg *wire.Message) {
	if OnDispatcherThread(ctx) {
		e.process(ctx, msg)
		return
	}
	select {
	case e.queue <- queuedMessage{msg: msg, ctx: WithDispatcherThread(ctx)}:
	case <-e.stopCh:
	}
}

func (e *Endpoint) process(ctx context.Context, msg *wire.Message) {
	switch msg.Type {
	case wire.TypeMethodCall:
		e.handleMethodCall(ctx, msg)
	case wire.TypeSignal:
		e.handleSignal(msg)
	case wire.TypeMethodReturn, wire.TypeError:
		e.handleReply(msg)
	default:
		e.log.Debug("dropping message of invalid type")
	}
}

// handleReply implements spec.md §4.2 "Reply map": look up by reply
// serial, optionally upgrade an unencrypted reply to an error when the
// caller required encryption, unmarshal with the recorded signature, and
// invoke the handler.
func (e *Endpoint) handleReply(msg *wire.Message) {
	replySerial, ok := msg.ReplySerial()
	if !ok {
		e.log.Debug("reply message missing ReplySerial header")
		return
	}
	ctx, found := e.Replies.Resolve(replySerial)
	if !found {
		e.log.Debug("no reply context for serial, dropping", "serial", replySerial)
		return
	}

	effective := msg
	if ctx.RequireEncryption && !msg.Flags.Has(wire.FlagEncrypted) && msg.Type != wire.TypeError {
		effective = wire.NewError(msg.Serial, replySerial, string(ErrNameSecurityViolation), nil, nil)
	}

	sig := ctx.ExpectedSignature
	if msg.Type == wire.TypeError {
		sig = "*"
	}
	if sig != "" && sig != "*" {
		if err := wire.UnmarshalArgs(effective, wire.Signature(sig)); err != nil {
			e.log.Debug("reply signature mismatch", "error", err)
		}
	} else if sig == "*" {
		_ = wire.UnmarshalArgs(effective, wire.Signature("*"))
	}

	ctx.Handler(effective)
}

func (e *Endpoint) handleSignal(msg *wire.Message) {
	iface, _ := msg.Interface()
	member, _ := msg.Member()
	handlers := e.Signals.Matching(iface, member, msg)
	if len(handlers) == 0 {
		return
	}
	if secureSignal(e.registry, msg) && !msg.Flags.Has(wire.FlagEncrypted) {
		e.security.ReportViolation(msg, "unencrypted signal on secure interface")
		return
	}
	for _, h := range handlers {
		h(msg)
	}
}

func secureSignal(reg *busobject.Registry, msg *wire.Message) bool {
	if reg == nil {
		return false
	}
	path, ok := msg.Path()
	if !ok {
		return false
	}
	obj, ok := reg.Lookup(path)
	if !ok {
		return false
	}
	return obj.IsSecure()
}

// handleMethodCall implements spec.md §4.2 "Method-call classification".
func (e *Endpoint) handleMethodCall(ctx context.Context, msg *wire.Message) {
	path, _ := msg.Path()
	iface, _ := msg.Interface()
	member, _ := msg.Member()

	callCtx := e.replyContextFor(msg)

	if builtin, ok := e.builtinHandler(iface, member); ok {
		builtin(callCtx, msg)
		return
	}

	handler, obj, release, ok := e.Methods.Lookup(path, iface, member)
	if !ok {
		e.replyNotFound(callCtx, path, iface, member)
		return
	}
	defer release()

	if obj != nil && obj.IsSecure() && !msg.Flags.Has(wire.FlagEncrypted) {
		e.security.ReportViolation(msg, "unencrypted call on secure interface")
		_ = callCtx.Error(string(ErrNameSecurityViolation), "call requires encryption")
		return
	}

	handler(callCtx, msg)
}

func (e *Endpoint) replyNotFound(callCtx *busobject.CallContext, path, iface, member string) {
	if e.registry == nil {
		_ = callCtx.Error(string(ErrNameServiceUnknown), path)
		return
	}
	obj, ok := e.registry.Lookup(path)
	switch {
	case !ok:
		_ = callCtx.Error(string(ErrNameServiceUnknown), fmt.Sprintf("no object at %s", path))
	case iface != "" && !objectHasInterface(obj, iface):
		_ = callCtx.Error(string(ErrNameNoSuchInterface), fmt.Sprintf("%s does not implement %s", path, iface))
	default:
		_ = callCtx.Error(string(ErrNameNoSuchMethod), fmt.Sprintf("no method %s.%s on %s", iface, member, path))
	}
}

func objectHasInterface(obj *busobject.Object, name string) bool {
	_, ok := obj.Interface(name)
	return ok
}

// replyContextFor builds the CallContext a handler uses to send exactly
// one reply, wiring Reply/Error to marshal a method-return or error
// message addressed back to the caller and pushed through e.sender.
func (e *Endpoint) replyContextFor(msg *wire.Message) *busobject.CallContext {
	noReply := msg.Flags.Has(wire.FlagNoReplyExpected)
	sender, _ := msg.Sender()

	return &busobject.CallContext{
		Reply: func(outArgs []wire.Arg) error {
			if noReply {
				return nil
			}
			reply := wire.NewMethodReturn(e.serials.Next(), msg.Serial, outArgs, nil)
			reply.SetDestination(sender)
			return e.sender.Send(reply)
		},
		Error: func(name, message string) error {
			if noReply {
				return nil
			}
			var args []wire.Arg
			if message != "" {
				args = []wire.Arg{{Type: wire.TypeString, Str: message}}
			}
			errMsg := wire.NewError(e.serials.Next(), msg.Serial, name, args, nil)
			errMsg.SetDestination(sender)
			return e.sender.Send(errMsg)
		},
	}
}
