package wire

import (
	"fmt"
	"strings"
)

// Arg is a tagged union over the wire type codes (spec.md §3 "Argument").
// A zero Arg has Type == TypeInvalid and carries no value.
type Arg struct {
	Type TypeCode

	// Scalar values. Exactly one of these is meaningful, selected by Type.
	Byte    byte
	Bool    bool
	Int16   int16
	Uint16  uint16
	Int32   int32
	Uint32  uint32
	Int64   int64
	Uint64  uint64
	Double  float64
	Str     string // String, ObjectPath, Signature
	Handle  int32  // file-descriptor index into the message's handle vector

	// Container values.
	Array    []Arg     // TypeArray elements
	ArraySig Signature // element signature, set even for a zero-length array
	Struct   []Arg     // TypeStruct / TypeDictEntry members (len 2 for dict entry)
	Variant  *Arg      // TypeVariant payload

	// ownsData marks that Str/Array/Struct data is independently heap
	// owned by this Arg rather than aliasing a shared buffer (e.g. the
	// decode buffer). ownsArgs marks that Array/Struct/Variant were
	// deep-copied by Stabilize rather than referencing a caller's slice.
	ownsData bool
	ownsArgs bool
}

// OwnsData reports whether this Arg's scalar byte/string data is
// independently owned rather than aliasing shared storage.
func (a *Arg) OwnsData() bool { return a.ownsData }

// OwnsArgs reports whether this Arg's nested Arg children are
// independently owned (the result of a Stabilize call).
func (a *Arg) OwnsArgs() bool { return a.ownsArgs }

// Stabilize deep-copies every byte slice and nested Arg reachable from a
// so the resulting tree is self-contained and safe to retain past the
// lifetime of whatever buffer produced it (e.g. a decoded Message's body).
func (a *Arg) Stabilize() {
	if a == nil {
		return
	}
	switch a.Type {
	case TypeArray:
		sig := append(Signature(nil), a.ArraySig...)
		a.ArraySig = sig
		elems := make([]Arg, len(a.Array))
		copy(elems, a.Array)
		for i := range elems {
			elems[i].Stabilize()
		}
		a.Array = elems
		a.ownsArgs = true
	case TypeStruct, TypeDictEntry:
		members := make([]Arg, len(a.Struct))
		copy(members, a.Struct)
		for i := range members {
			members[i].Stabilize()
		}
		a.Struct = members
		a.ownsArgs = true
	case TypeVariant:
		if a.Variant != nil {
			v := *a.Variant
			v.Stabilize()
			a.Variant = &v
			a.ownsArgs = true
		}
	}
	a.ownsData = true
}

// Equal reports whether a and b carry the same type and value,
// structurally comparing container contents.
func (a *Arg) Equal(b *Arg) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case TypeByte:
		return a.Byte == b.Byte
	case TypeBoolean:
		return a.Bool == b.Bool
	case TypeInt16:
		return a.Int16 == b.Int16
	case TypeUint16:
		return a.Uint16 == b.Uint16
	case TypeInt32:
		return a.Int32 == b.Int32
	case TypeUint32:
		return a.Uint32 == b.Uint32
	case TypeInt64:
		return a.Int64 == b.Int64
	case TypeUint64:
		return a.Uint64 == b.Uint64
	case TypeDouble:
		return a.Double == b.Double
	case TypeString, TypeObjectPath, TypeSignature:
		return a.Str == b.Str
	case TypeHandle:
		return a.Handle == b.Handle
	case TypeArray:
		if string(a.ArraySig) != string(b.ArraySig) || len(a.Array) != len(b.Array) {
			return false
		}
		for i := range a.Array {
			if !a.Array[i].Equal(&b.Array[i]) {
				return false
			}
		}
		return true
	case TypeStruct, TypeDictEntry:
		if len(a.Struct) != len(b.Struct) {
			return false
		}
		for i := range a.Struct {
			if !a.Struct[i].Equal(&b.Struct[i]) {
				return false
			}
		}
		return true
	case TypeVariant:
		return a.Variant.Equal(b.Variant)
	default:
		return false
	}
}

// String renders a diagnostic XML-ish dump of the argument tree. This is
// used only for logging and test failure output, never for wire data.
func (a *Arg) String() string {
	var b strings.Builder
	a.writeXML(&b, 0)
	return b.String()
}

func (a *Arg) writeXML(b *strings.Builder, indent int) {
	pad := strings.Repeat("  ", indent)
	if a == nil {
		fmt.Fprintf(b, "%s<nil/>\n", pad)
		return
	}
	switch a.Type {
	case TypeArray:
		fmt.Fprintf(b, "%s<array sig=%q>\n", pad, a.ArraySig.String())
		for i := range a.Array {
			a.Array[i].writeXML(b, indent+1)
		}
		fmt.Fprintf(b, "%s</array>\n", pad)
	case TypeStruct:
		fmt.Fprintf(b, "%s<struct>\n", pad)
		for i := range a.Struct {
			a.Struct[i].writeXML(b, indent+1)
		}
		fmt.Fprintf(b, "%s</struct>\n", pad)
	case TypeDictEntry:
		fmt.Fprintf(b, "%s<dictEntry>\n", pad)
		for i := range a.Struct {
			a.Struct[i].writeXML(b, indent+1)
		}
		fmt.Fprintf(b, "%s</dictEntry>\n", pad)
	case TypeVariant:
		fmt.Fprintf(b, "%s<variant>\n", pad)
		a.Variant.writeXML(b, indent+1)
		fmt.Fprintf(b, "%s</variant>\n", pad)
	default:
		fmt.Fprintf(b, "%s<arg type=%q>%v</arg>\n", pad, a.Type.String(), a.scalarValue())
	}
}

func (a *Arg) scalarValue() any {
	switch a.Type {
	case TypeByte:
		return a.Byte
	case TypeBoolean:
		return a.Bool
	case TypeInt16:
		return a.Int16
	case TypeUint16:
		return a.Uint16
	case TypeInt32:
		return a.Int32
	case TypeUint32:
		return a.Uint32
	case TypeInt64:
		return a.Int64
	case TypeUint64:
		return a.Uint64
	case TypeDouble:
		return a.Double
	case TypeString, TypeObjectPath, TypeSignature:
		return a.Str
	case TypeHandle:
		return a.Handle
	default:
		return nil
	}
}

// Signature returns the complete-type signature of a.
func (a *Arg) Signature() Signature {
	switch a.Type {
	case TypeArray:
		return append(Signature{byte(TypeArray)}, a.ArraySig...)
	case TypeStruct:
		var b []byte
		b = append(b, byte(TypeStruct))
		for i := range a.Struct {
			b = append(b, a.Struct[i].Signature()...)
		}
		b = append(b, byte(TypeStructEnd))
		return Signature(b)
	case TypeDictEntry:
		var b []byte
		b = append(b, byte(TypeDictEntry))
		for i := range a.Struct {
			b = append(b, a.Struct[i].Signature()...)
		}
		b = append(b, byte(TypeDictEnd))
		return Signature(b)
	default:
		return Signature{byte(a.Type)}
	}
}
