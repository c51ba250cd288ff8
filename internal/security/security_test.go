package security

import (
	"testing"

	"github.com/allbus/corebus/internal/wire"
)

func testKey(b byte) [KeySize]byte {
	var k [KeySize]byte
	for i := range k {
		k[i] = b
	}
	return k
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	h := New(nil)
	h.SetSessionKey(7, testKey(1))

	msg, err := wire.NewMethodCall(1, "/obj", "com.example.Widget", "Spin",
		[]wire.Arg{{Type: wire.TypeString, Str: "hello"}}, wire.Signature("s"))
	if err != nil {
		t.Fatal(err)
	}
	msg.Header.Set(wire.FieldSessionID, wire.Arg{Type: wire.TypeUint32, Uint32: 7})

	if err := h.Encrypt(msg); err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if !msg.Flags.Has(wire.FlagEncrypted) {
		t.Fatal("expected FlagEncrypted to be set")
	}
	if len(msg.Args) != 1 || msg.Args[0].Type != wire.TypeArray {
		t.Fatalf("expected args replaced with a single byte array, got %+v", msg.Args)
	}

	if err := h.Decrypt(msg); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if msg.Flags.Has(wire.FlagEncrypted) {
		t.Fatal("expected FlagEncrypted cleared after Decrypt")
	}
	if len(msg.Args) != 1 || msg.Args[0].Str != "hello" {
		t.Fatalf("got args %+v, want [hello]", msg.Args)
	}
}

func TestDecryptFailsWithWrongKey(t *testing.T) {
	sender := New(nil)
	sender.SetSessionKey(1, testKey(1))
	receiver := New(nil)
	receiver.SetSessionKey(1, testKey(2))

	msg, _ := wire.NewMethodCall(1, "/obj", "com.example.Widget", "Spin", nil, wire.Signature(""))
	msg.Header.Set(wire.FieldSessionID, wire.Arg{Type: wire.TypeUint32, Uint32: 1})
	if err := sender.Encrypt(msg); err != nil {
		t.Fatal(err)
	}

	if err := receiver.Decrypt(msg); err != ErrDecryptFailed {
		t.Fatalf("got %v, want ErrDecryptFailed", err)
	}
}

func TestEncryptWithoutKeyFails(t *testing.T) {
	h := New(nil)
	msg, _ := wire.NewMethodCall(1, "/obj", "com.example.Widget", "Spin", nil, wire.Signature(""))
	if err := h.Encrypt(msg); err != ErrNoKey {
		t.Fatalf("got %v, want ErrNoKey", err)
	}
}

func TestAuthorizeFallsBackToGroupKey(t *testing.T) {
	h := New(nil)
	msg, _ := wire.NewMethodCall(1, "/obj", "com.example.Widget", "Spin", nil, wire.Signature(""))
	if err := h.Authorize(msg); err != ErrNoKey {
		t.Fatalf("got %v, want ErrNoKey before any key is set", err)
	}

	h.SetGroupKey(testKey(9))
	if err := h.Authorize(msg); err != nil {
		t.Fatalf("Authorize with group key: %v", err)
	}
}

func TestDecryptRejectsUnmarkedMessage(t *testing.T) {
	h := New(nil)
	h.SetGroupKey(testKey(3))
	msg, _ := wire.NewMethodCall(1, "/obj", "com.example.Widget", "Spin", nil, wire.Signature(""))
	if err := h.Decrypt(msg); err != ErrNotEncrypted {
		t.Fatalf("got %v, want ErrNotEncrypted", err)
	}
}
