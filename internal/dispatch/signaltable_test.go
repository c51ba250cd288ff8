package dispatch

import (
	"testing"

	"github.com/allbus/corebus/internal/wire"
)

func signalMsg(t *testing.T, path, iface, member, sender string) *wire.Message {
	t.Helper()
	m, err := wire.NewSignal(1, path, iface, member, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	m.SetSender(sender)
	return m
}

func TestSignalTableMatchesBySenderAndPath(t *testing.T) {
	tbl := NewSignalTable()
	var got []string
	tbl.Add("com.example.I", "Changed", MatchRule{Sender: "com.example.svc"}, func(m *wire.Message) {
		got = append(got, "matched")
	})

	msg := signalMsg(t, "/a", "com.example.I", "Changed", "com.example.svc")
	handlers := tbl.Matching("com.example.I", "Changed", msg)
	if len(handlers) != 1 {
		t.Fatalf("expected 1 matching handler, got %d", len(handlers))
	}
	handlers[0](msg)
	if len(got) != 1 {
		t.Fatal("expected handler invoked")
	}

	other := signalMsg(t, "/a", "com.example.I", "Changed", "com.example.other")
	if handlers := tbl.Matching("com.example.I", "Changed", other); len(handlers) != 0 {
		t.Fatalf("expected sender mismatch to filter out handler, got %d", len(handlers))
	}
}

func TestSignalTableRemove(t *testing.T) {
	tbl := NewSignalTable()
	rule := MatchRule{Path: "/a"}
	tbl.Add("com.example.I", "Changed", rule, func(*wire.Message) {})
	tbl.Remove("com.example.I", "Changed", rule)

	msg := signalMsg(t, "/a", "com.example.I", "Changed", "")
	if handlers := tbl.Matching("com.example.I", "Changed", msg); len(handlers) != 0 {
		t.Fatal("expected handler removed")
	}
}
