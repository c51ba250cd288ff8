package proxy

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/allbus/corebus/internal/busobject"
	"github.com/allbus/corebus/internal/dispatch"
	"github.com/allbus/corebus/internal/ifc"
	"github.com/allbus/corebus/internal/wire"
)

// loopbackSender simulates a remote peer: every sent method call is
// answered by handler on a background goroutine, feeding the reply back
// through the same endpoint's Dispatch.
type loopbackSender struct {
	mu      sync.Mutex
	ep      *dispatch.Endpoint
	handler func(msg *wire.Message) *wire.Message
}

func (l *loopbackSender) Send(msg *wire.Message) error {
	l.mu.Lock()
	h := l.handler
	l.mu.Unlock()
	if h == nil {
		return nil
	}
	reply := h(msg)
	if reply == nil {
		return nil
	}
	go l.ep.Dispatch(context.Background(), reply)
	return nil
}

type noopSecurity struct{}

func (noopSecurity) Encrypt(*wire.Message) error          { return nil }
func (noopSecurity) Decrypt(*wire.Message) error          { return nil }
func (noopSecurity) Authorize(*wire.Message) error        { return nil }
func (noopSecurity) ReportViolation(*wire.Message, string) {}

func newTestProxy(t *testing.T, handler func(msg *wire.Message) *wire.Message) (*Object, *loopbackSender) {
	t.Helper()
	sender := &loopbackSender{handler: handler}
	reg := busobject.NewRegistry()
	ep := dispatch.New(dispatch.Config{
		Logger:   slog.Default(),
		Sender:   sender,
		Security: noopSecurity{},
		Registry: reg,
		Serials:  wire.NewSerialAllocator(),
		Workers:  2,
	})
	sender.ep = ep
	ep.Start()
	t.Cleanup(ep.Stop)

	proxy := New(ep, "com.example.Service", "/obj", 0)
	return proxy, sender
}

func echoHandler(msg *wire.Message) *wire.Message {
	reply := wire.NewMethodReturn(1, msg.Serial, msg.Args, wire.Signature("s"))
	return reply
}

func TestSyncCallReturnsReply(t *testing.T) {
	proxy, _ := newTestProxy(t, echoHandler)

	args, err := proxy.Call(context.Background(), "com.example.Iface", "Echo",
		[]wire.Arg{{Type: wire.TypeString, Str: "hi"}}, wire.Signature("s"), wire.Signature("s"), time.Second)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(args) != 1 || args[0].Str != "hi" {
		t.Fatalf("got args %+v", args)
	}
}

func TestSyncCallTimesOut(t *testing.T) {
	proxy, _ := newTestProxy(t, func(msg *wire.Message) *wire.Message { return nil })

	_, err := proxy.Call(context.Background(), "com.example.Iface", "Echo",
		nil, wire.Signature(""), wire.Signature("s"), 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestSyncCallAbortsOnContextCancel(t *testing.T) {
	proxy, _ := newTestProxy(t, func(msg *wire.Message) *wire.Message { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := proxy.Call(ctx, "com.example.Iface", "Echo", nil, wire.Signature(""), wire.Signature("s"), 5*time.Second)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != dispatch.ErrMethodCallAborted {
			t.Fatalf("got err %v, want ErrMethodCallAborted", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Call did not return after cancel")
	}
}

func TestCallAsyncInvokesHandlerOnSuccess(t *testing.T) {
	proxy, _ := newTestProxy(t, echoHandler)

	result := make(chan []wire.Arg, 1)
	err := proxy.CallAsync("com.example.Iface", "Echo",
		[]wire.Arg{{Type: wire.TypeString, Str: "async"}}, wire.Signature("s"), wire.Signature("s"), time.Second,
		func(args []wire.Arg, err error) {
			if err != nil {
				t.Errorf("async handler got error: %v", err)
				result <- nil
				return
			}
			result <- args
		})
	if err != nil {
		t.Fatalf("CallAsync: %v", err)
	}

	select {
	case args := <-result:
		if len(args) != 1 || args[0].Str != "async" {
			t.Fatalf("got args %+v", args)
		}
	case <-time.After(time.Second):
		t.Fatal("async handler never invoked")
	}
}

func TestCallReportsRemoteError(t *testing.T) {
	proxy, _ := newTestProxy(t, func(msg *wire.Message) *wire.Message {
		return wire.NewError(1, msg.Serial, "com.example.Error.Bad", []wire.Arg{{Type: wire.TypeString, Str: "nope"}}, wire.Signature("s"))
	})

	_, err := proxy.Call(context.Background(), "com.example.Iface", "Echo", nil, wire.Signature(""), wire.Signature("s"), time.Second)
	callErr, ok := err.(*CallError)
	if !ok {
		t.Fatalf("got err %v (%T), want *CallError", err, err)
	}
	if callErr.Name != "com.example.Error.Bad" || callErr.Message != "nope" {
		t.Fatalf("got %+v", callErr)
	}
}

func TestRequiresEncryptionHonorsInterfacePolicy(t *testing.T) {
	proxy, _ := newTestProxy(t, echoHandler)
	d, err := ifc.NewDescription("com.example.Secure", ifc.SecurityRequired)
	if err != nil {
		t.Fatal(err)
	}
	d.Activate()
	proxy.AddInterface(d)

	if !proxy.requiresEncryption("com.example.Secure") {
		t.Fatal("expected SecurityRequired interface to require encryption regardless of proxy flag")
	}
	if proxy.requiresEncryption("com.example.Unknown") {
		t.Fatal("expected unknown interface to defer to proxy's own (false) secure flag")
	}
}
