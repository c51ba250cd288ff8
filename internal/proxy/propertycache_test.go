package proxy

import (
	"context"
	"testing"
	"time"

	"github.com/allbus/corebus/internal/wire"
)

func propertiesGetHandler(value string) func(msg *wire.Message) *wire.Message {
	return func(msg *wire.Message) *wire.Message {
		variant := wire.Arg{Type: wire.TypeString, Str: value}
		return wire.NewMethodReturn(1, msg.Serial, []wire.Arg{{Type: wire.TypeVariant, Variant: &variant}}, wire.Signature("v"))
	}
}

func TestGetPropertyCachesOnSuccessfulGet(t *testing.T) {
	calls := 0
	proxy, sender := newTestProxy(t, nil)
	sender.handler = func(msg *wire.Message) *wire.Message {
		calls++
		return propertiesGetHandler("red")(msg)
	}
	proxy.EnablePropertyCache()

	v, err := proxy.GetProperty(context.Background(), "com.example.Widget", "Color", time.Second)
	if err != nil {
		t.Fatalf("GetProperty: %v", err)
	}
	if v.Str != "red" {
		t.Fatalf("got %q, want red", v.Str)
	}
	if calls != 1 {
		t.Fatalf("got %d remote calls, want 1", calls)
	}

	v2, err := proxy.GetProperty(context.Background(), "com.example.Widget", "Color", time.Second)
	if err != nil {
		t.Fatalf("GetProperty (cached): %v", err)
	}
	if v2.Str != "red" || calls != 1 {
		t.Fatalf("expected cache hit to avoid a second remote call, calls=%d", calls)
	}
}

func TestPropertiesChangedUpdatesCacheAndInvalidates(t *testing.T) {
	proxy, _ := newTestProxy(t, propertiesGetHandler("red"))
	proxy.EnablePropertyCache()

	if _, err := proxy.GetProperty(context.Background(), "com.example.Widget", "Color", time.Second); err != nil {
		t.Fatal(err)
	}
	if _, err := proxy.GetProperty(context.Background(), "com.example.Widget", "Size", time.Second); err != nil {
		t.Fatal(err)
	}

	changedVariant := wire.Arg{Type: wire.TypeVariant, Variant: &wire.Arg{Type: wire.TypeString, Str: "blue"}}
	changedEntry := wire.Arg{Type: wire.TypeDictEntry, Struct: []wire.Arg{
		{Type: wire.TypeString, Str: "Color"}, changedVariant,
	}}
	sig, err := wire.NewSignal(1, "/obj", "org.freedesktop.DBus.Properties", "PropertiesChanged",
		[]wire.Arg{
			{Type: wire.TypeString, Str: "com.example.Widget"},
			{Type: wire.TypeArray, ArraySig: wire.Signature("{sv}"), Array: []wire.Arg{changedEntry}},
			{Type: wire.TypeArray, ArraySig: wire.Signature("s"), Array: []wire.Arg{{Type: wire.TypeString, Str: "Size"}}},
		}, wire.Signature("sa{sv}as"))
	if err != nil {
		t.Fatalf("NewSignal: %v", err)
	}

	proxy.handlePropertiesChanged(sig)

	proxy.mu.RLock()
	cache := proxy.cache
	proxy.mu.RUnlock()
	cache.mu.RLock()
	m := cache.values["com.example.Widget"]
	colorVal, hasColor := m["Color"]
	_, hasSize := m["Size"]
	cache.mu.RUnlock()

	if !hasColor || colorVal.Str != "blue" {
		t.Fatalf("expected Color updated to blue, got %+v present=%v", colorVal, hasColor)
	}
	if hasSize {
		t.Fatal("expected Size to be invalidated (removed) from cache")
	}
}

func TestPropertiesChangedListenerFiltersBySubset(t *testing.T) {
	proxy, _ := newTestProxy(t, echoHandler)
	proxy.EnablePropertyCache()

	received := make(chan map[string]wire.Arg, 1)
	proxy.AddPropertiesChangedListener("com.example.Widget", []string{"Color"}, func(changed map[string]wire.Arg, invalidated []string) {
		received <- changed
	})

	changedVariant := wire.Arg{Type: wire.TypeVariant, Variant: &wire.Arg{Type: wire.TypeString, Str: "blue"}}
	otherVariant := wire.Arg{Type: wire.TypeVariant, Variant: &wire.Arg{Type: wire.TypeUint32, Uint32: 7}}
	entries := []wire.Arg{
		{Type: wire.TypeDictEntry, Struct: []wire.Arg{{Type: wire.TypeString, Str: "Color"}, changedVariant}},
		{Type: wire.TypeDictEntry, Struct: []wire.Arg{{Type: wire.TypeString, Str: "Size"}, otherVariant}},
	}
	sig, err := wire.NewSignal(1, "/obj", "org.freedesktop.DBus.Properties", "PropertiesChanged",
		[]wire.Arg{
			{Type: wire.TypeString, Str: "com.example.Widget"},
			{Type: wire.TypeArray, ArraySig: wire.Signature("{sv}"), Array: entries},
			{Type: wire.TypeArray, ArraySig: wire.Signature("s"), Array: nil},
		}, wire.Signature("sa{sv}as"))
	if err != nil {
		t.Fatalf("NewSignal: %v", err)
	}

	proxy.handlePropertiesChanged(sig)

	select {
	case changed := <-received:
		if len(changed) != 1 {
			t.Fatalf("expected filtered payload with only Color, got %+v", changed)
		}
		if _, ok := changed["Color"]; !ok {
			t.Fatalf("expected Color in filtered payload, got %+v", changed)
		}
	case <-time.After(time.Second):
		t.Fatal("listener was never invoked")
	}
}
