package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/allbus/corebus/internal/busobject"
	"github.com/allbus/corebus/internal/ifc"
	"github.com/allbus/corebus/internal/wire"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []*wire.Message
}

func (f *fakeSender) Send(msg *wire.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) last() *wire.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

type noopSecurity struct{ violations int }

func (n *noopSecurity) Encrypt(*wire.Message) error { return nil }
func (n *noopSecurity) Decrypt(*wire.Message) error { return nil }
func (n *noopSecurity) Authorize(*wire.Message) error { return nil }
func (n *noopSecurity) ReportViolation(*wire.Message, string) { n.violations++ }

func newTestEndpoint(t *testing.T) (*Endpoint, *fakeSender, *noopSecurity, *busobject.Registry) {
	t.Helper()
	sender := &fakeSender{}
	sec := &noopSecurity{}
	reg := busobject.NewRegistry()
	ep := New(Config{
		Logger:    slog.Default(),
		Sender:    sender,
		Security:  sec,
		Registry:  reg,
		Serials:   wire.NewSerialAllocator(),
		Workers:   2,
		MachineID: "test-machine",
	})
	ep.Start()
	t.Cleanup(ep.Stop)
	return ep, sender, sec, reg
}

func TestEndpointPeerPing(t *testing.T) {
	ep, sender, _, _ := newTestEndpoint(t)
	call, err := wire.NewMethodCall(1, "/a", ifc.NamePeer, "Ping", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ep.Dispatch(context.Background(), call)

	waitFor(t, func() bool { return sender.last() != nil })
	reply := sender.last()
	if reply.Type != wire.TypeMethodReturn {
		t.Fatalf("expected method return, got %v", reply.Type)
	}
}

func TestEndpointNoSuchObject(t *testing.T) {
	ep, sender, _, _ := newTestEndpoint(t)
	call, _ := wire.NewMethodCall(1, "/missing", "com.example.I", "Foo", nil, nil)
	ep.Dispatch(context.Background(), call)

	waitFor(t, func() bool { return sender.last() != nil })
	reply := sender.last()
	if reply.Type != wire.TypeError {
		t.Fatalf("expected error reply, got %v", reply.Type)
	}
	name, _ := reply.ErrorName()
	if name != string(ErrNameServiceUnknown) {
		t.Fatalf("expected ServiceUnknown, got %s", name)
	}
}

func TestEndpointDispatchesToRegisteredHandler(t *testing.T) {
	ep, sender, _, _ := newTestEndpoint(t)
	invoked := make(chan struct{}, 1)
	ep.Methods.Add("/a", "com.example.I", "Foo", func(ctx *busobject.CallContext, msg *wire.Message) {
		invoked <- struct{}{}
		_ = ctx.Reply(nil)
	}, nil)

	call, _ := wire.NewMethodCall(1, "/a", "com.example.I", "Foo", nil, nil)
	ep.Dispatch(context.Background(), call)

	select {
	case <-invoked:
	case <-time.After(time.Second):
		t.Fatal("expected handler to be invoked")
	}
	waitFor(t, func() bool { return sender.last() != nil })
	if sender.last().Type != wire.TypeMethodReturn {
		t.Fatal("expected method return reply")
	}
}

func TestEndpointSecureObjectRejectsUnencryptedCall(t *testing.T) {
	ep, sender, sec, reg := newTestEndpoint(t)
	obj, _ := busobject.NewObject("/secure")
	obj.SetSecure(true)
	if err := reg.Register(obj); err != nil {
		t.Fatal(err)
	}
	ep.Methods.Add("/secure", "com.example.I", "Foo", func(ctx *busobject.CallContext, msg *wire.Message) {
		_ = ctx.Reply(nil)
	}, obj)

	call, _ := wire.NewMethodCall(1, "/secure", "com.example.I", "Foo", nil, nil)
	ep.Dispatch(context.Background(), call)

	waitFor(t, func() bool { return sender.last() != nil })
	if sec.violations != 1 {
		t.Fatalf("expected 1 reported violation, got %d", sec.violations)
	}
	name, _ := sender.last().ErrorName()
	if name != string(ErrNameSecurityViolation) {
		t.Fatalf("expected SecurityViolation, got %s", name)
	}
}

func TestEndpointInlineDispatchOnDispatcherThread(t *testing.T) {
	ep, _, _, _ := newTestEndpoint(t)
	var invokedSync bool
	ep.Methods.Add("/a", "com.example.I", "Foo", func(ctx *busobject.CallContext, msg *wire.Message) {
		invokedSync = true
		_ = ctx.Reply(nil)
	}, nil)

	call, _ := wire.NewMethodCall(1, "/a", "com.example.I", "Foo", nil, nil)
	ep.Dispatch(WithDispatcherThread(context.Background()), call)

	if !invokedSync {
		t.Fatal("expected inline (synchronous) dispatch on a dispatcher-thread context")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
