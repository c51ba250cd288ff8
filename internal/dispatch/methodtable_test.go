package dispatch

import (
	"testing"

	"github.com/allbus/corebus/internal/busobject"
	"github.com/allbus/corebus/internal/wire"
)

func TestMethodTableBareAliasFirstWriterWins(t *testing.T) {
	tbl := NewMethodTable()
	var calledA, calledB bool

	tbl.Add("/obj", "com.example.A", "Foo", func(*busobject.CallContext, *wire.Message) { calledA = true }, nil)
	tbl.Add("/obj", "com.example.B", "Foo", func(*busobject.CallContext, *wire.Message) { calledB = true }, nil)

	h, _, release, ok := tbl.Lookup("/obj", "", "Foo")
	if !ok {
		t.Fatal("expected bare-member alias to resolve")
	}
	h(nil, nil)
	release()
	if !calledA || calledB {
		t.Fatal("expected first-registered interface to win the bare-member alias")
	}
}

func TestMethodTableDirectLookupBypassesAlias(t *testing.T) {
	tbl := NewMethodTable()
	var calledB bool
	tbl.Add("/obj", "com.example.A", "Foo", func(*busobject.CallContext, *wire.Message) {}, nil)
	tbl.Add("/obj", "com.example.B", "Foo", func(*busobject.CallContext, *wire.Message) { calledB = true }, nil)

	h, _, release, ok := tbl.Lookup("/obj", "com.example.B", "Foo")
	if !ok {
		t.Fatal("expected direct lookup to succeed")
	}
	h(nil, nil)
	release()
	if !calledB {
		t.Fatal("expected direct interface lookup to invoke its own handler")
	}
}

func TestMethodTableRemoveClearsAliasWhenOwner(t *testing.T) {
	tbl := NewMethodTable()
	tbl.Add("/obj", "com.example.A", "Foo", func(*busobject.CallContext, *wire.Message) {}, nil)
	tbl.Remove("/obj", "com.example.A", "Foo")

	if _, _, _, ok := tbl.Lookup("/obj", "", "Foo"); ok {
		t.Fatal("expected bare alias removed along with its owning entry")
	}
	if _, _, _, ok := tbl.Lookup("/obj", "com.example.A", "Foo"); ok {
		t.Fatal("expected direct entry removed")
	}
}

func TestMethodTableRemovePath(t *testing.T) {
	tbl := NewMethodTable()
	tbl.Add("/obj", "com.example.A", "Foo", func(*busobject.CallContext, *wire.Message) {}, nil)
	tbl.Add("/obj", "com.example.A", "Bar", func(*busobject.CallContext, *wire.Message) {}, nil)
	tbl.RemovePath("/obj")

	if _, _, _, ok := tbl.Lookup("/obj", "com.example.A", "Foo"); ok {
		t.Fatal("expected all rows for path removed")
	}
}
