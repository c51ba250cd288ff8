package wire

import (
	"bytes"
	"testing"
)

// TestRoundTripMethodCall implements spec.md §8 scenario 1: build a
// method-call message, encode it, decode it on the opposite endian, and
// check that the decoded message normalizes to host endian and preserves
// serial and argument values.
func TestRoundTripMethodCall(t *testing.T) {
	sig, err := ParseSignature("s")
	if err != nil {
		t.Fatalf("ParseSignature: %v", err)
	}
	m, err := NewMethodCall(42, "/a/b", "org.example.I", "Echo",
		[]Arg{{Type: TypeString, Str: "hi"}}, sig)
	if err != nil {
		t.Fatalf("NewMethodCall: %v", err)
	}

	// Force the opposite endian from host so the round trip must swap.
	if HostEndian == LittleEndian {
		m.Endian = BigEndian
	} else {
		m.Endian = LittleEndian
	}

	encoded, err := Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var fixed [16]byte
	copy(fixed[:], encoded[:16])
	decoded, err := DecodeFixedHeader(fixed)
	if err != nil {
		t.Fatalf("DecodeFixedHeader: %v", err)
	}
	if decoded.Endian != HostEndian {
		t.Fatalf("decoded.Endian = %v, want %v (normalized)", decoded.Endian, HostEndian)
	}
	if decoded.Serial != 42 {
		t.Fatalf("decoded.Serial = %d, want 42", decoded.Serial)
	}

	pktSize, err := InterpretHeader(decoded, MaxPacketSize)
	if err != nil {
		t.Fatalf("InterpretHeader: %v", err)
	}
	rest := encoded[16 : 16+pktSize]
	headerPad := pad8(int(decoded.HeaderLen))
	if err := DecodeHeaderFields(decoded, rest[:decoded.HeaderLen]); err != nil {
		t.Fatalf("DecodeHeaderFields: %v", err)
	}
	if err := decoded.HeaderChecks(MaxPacketSize); err != nil {
		t.Fatalf("HeaderChecks: %v", err)
	}
	SetBody(decoded, rest[headerPad:])

	if err := UnmarshalArgs(decoded, sig); err != nil {
		t.Fatalf("UnmarshalArgs: %v", err)
	}
	if len(decoded.Args) != 1 || decoded.Args[0].Str != "hi" {
		t.Fatalf("decoded.Args = %+v, want [\"hi\"]", decoded.Args)
	}

	path, _ := decoded.Path()
	if path != "/a/b" {
		t.Fatalf("decoded.Path() = %q, want /a/b", path)
	}
	member, _ := decoded.Member()
	if member != "Echo" {
		t.Fatalf("decoded.Member() = %q, want Echo", member)
	}
}

func TestHeaderChecksRequiredFields(t *testing.T) {
	m := newMessage(TypeMethodCall, 1)
	if err := m.HeaderChecks(MaxPacketSize); err == nil {
		t.Fatal("expected error for method call missing path/member")
	}
}

func TestHeaderChecksZeroSerial(t *testing.T) {
	m := newMessage(TypeSignal, 0)
	if err := m.HeaderChecks(MaxPacketSize); err == nil {
		t.Fatal("expected error for zero serial")
	}
}

func TestUnmarshalArgsSignatureMismatch(t *testing.T) {
	sig, _ := ParseSignature("s")
	m, _ := NewMethodCall(1, "/a", "", "M", []Arg{{Type: TypeString, Str: "x"}}, sig)
	encoded, err := Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	var fixed [16]byte
	copy(fixed[:], encoded[:16])
	decoded, err := DecodeFixedHeader(fixed)
	if err != nil {
		t.Fatal(err)
	}
	pktSize, err := InterpretHeader(decoded, MaxPacketSize)
	if err != nil {
		t.Fatal(err)
	}
	rest := encoded[16 : 16+pktSize]
	headerPad := pad8(int(decoded.HeaderLen))
	if err := DecodeHeaderFields(decoded, rest[:decoded.HeaderLen]); err != nil {
		t.Fatal(err)
	}
	SetBody(decoded, rest[headerPad:])

	wrongSig, _ := ParseSignature("i")
	if err := UnmarshalArgs(decoded, wrongSig); err == nil {
		t.Fatal("expected signature mismatch error")
	}
}

func TestSerialAllocatorNeverZero(t *testing.T) {
	s := NewSerialAllocator()
	seen := map[uint32]bool{}
	last := uint32(0)
	for i := 0; i < 1000; i++ {
		n := s.Next()
		if n == 0 {
			t.Fatal("serial allocator produced zero")
		}
		if seen[n] {
			t.Fatalf("serial %d reused", n)
		}
		seen[n] = true
		if n <= last {
			t.Fatalf("serial not monotonic: %d after %d", n, last)
		}
		last = n
	}
}

func TestArgStabilizeDeepCopies(t *testing.T) {
	shared := []Arg{{Type: TypeInt32, Int32: 1}, {Type: TypeInt32, Int32: 2}}
	a := Arg{Type: TypeArray, ArraySig: Signature("i"), Array: shared}
	a.Stabilize()
	shared[0].Int32 = 999
	if a.Array[0].Int32 == 999 {
		t.Fatal("Stabilize did not deep-copy array elements")
	}
	if !a.OwnsArgs() || !a.OwnsData() {
		t.Fatal("Stabilize did not set ownership flags")
	}
}

func TestArgEqual(t *testing.T) {
	a := Arg{Type: TypeStruct, Struct: []Arg{{Type: TypeString, Str: "x"}, {Type: TypeInt32, Int32: 5}}}
	b := Arg{Type: TypeStruct, Struct: []Arg{{Type: TypeString, Str: "x"}, {Type: TypeInt32, Int32: 5}}}
	c := Arg{Type: TypeStruct, Struct: []Arg{{Type: TypeString, Str: "x"}, {Type: TypeInt32, Int32: 6}}}
	if !a.Equal(&b) {
		t.Fatal("expected equal structs to compare equal")
	}
	if a.Equal(&c) {
		t.Fatal("expected differing structs to compare unequal")
	}
}

func TestMarshalUnmarshalArray(t *testing.T) {
	sig, err := ParseSignature("as")
	if err != nil {
		t.Fatal(err)
	}
	elems := []Arg{{Type: TypeString, Str: "a"}, {Type: TypeString, Str: "bb"}, {Type: TypeString, Str: "ccc"}}
	m, err := NewMethodCall(7, "/p", "", "M", []Arg{{Type: TypeArray, ArraySig: Signature("s"), Array: elems}}, sig)
	if err != nil {
		t.Fatal(err)
	}
	encoded, err := Marshal(m)
	if err != nil {
		t.Fatal(err)
	}

	var fixed [16]byte
	copy(fixed[:], encoded[:16])
	decoded, err := DecodeFixedHeader(fixed)
	if err != nil {
		t.Fatal(err)
	}
	pktSize, err := InterpretHeader(decoded, MaxPacketSize)
	if err != nil {
		t.Fatal(err)
	}
	rest := encoded[16 : 16+pktSize]
	headerPad := pad8(int(decoded.HeaderLen))
	if err := DecodeHeaderFields(decoded, rest[:decoded.HeaderLen]); err != nil {
		t.Fatal(err)
	}
	SetBody(decoded, rest[headerPad:])
	if err := UnmarshalArgs(decoded, sig); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Args) != 1 || len(decoded.Args[0].Array) != 3 {
		t.Fatalf("decoded args = %+v", decoded.Args)
	}
	for i, want := range []string{"a", "bb", "ccc"} {
		if decoded.Args[0].Array[i].Str != want {
			t.Fatalf("element %d = %q, want %q", i, decoded.Args[0].Array[i].Str, want)
		}
	}
}

func TestGetSizeMatchesEncodedLength(t *testing.T) {
	args := []Arg{
		{Type: TypeUint32, Uint32: 7},
		{Type: TypeString, Str: "hello"},
		{Type: TypeArray, ArraySig: Signature("i"), Array: []Arg{{Type: TypeInt32, Int32: 1}, {Type: TypeInt32, Int32: 2}}},
	}
	for i := range args {
		args[i].Stabilize()
	}
	got := GetSize(args, 0)
	order, _ := LittleEndian.ByteOrder()
	encoded, err := encodeArgs(order, args)
	if err != nil {
		t.Fatal(err)
	}
	if got != len(encoded) {
		t.Fatalf("GetSize = %d, want %d (actual encoded length)", got, len(encoded))
	}
}

func TestReceiverStepDecodesMarshalledMessage(t *testing.T) {
	r := NewReceiver(MaxPacketSize, 0, nil)
	sig, _ := ParseSignature("s")
	m, _ := NewMethodCall(1, "/a", "", "M", []Arg{{Type: TypeString, Str: "x"}}, sig)
	encoded, err := Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := r.Step(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if decoded.Serial != 1 {
		t.Fatalf("decoded.Serial = %d, want 1", decoded.Serial)
	}
}
