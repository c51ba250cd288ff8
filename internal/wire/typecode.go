// Package wire implements the binary message codec: type codes, complete-type
// signatures, the Arg value tree, and the Message marshal/unmarshal path.
package wire

import "fmt"

// TypeCode identifies a wire type. The set is closed; there is no
// provision for application-defined types.
type TypeCode byte

// Wire type codes, matching the D-Bus/AllJoyn basic and container type
// alphabet.
const (
	TypeInvalid    TypeCode = 0
	TypeByte       TypeCode = 'y'
	TypeBoolean    TypeCode = 'b'
	TypeInt16      TypeCode = 'n'
	TypeUint16     TypeCode = 'q'
	TypeInt32      TypeCode = 'i'
	TypeUint32     TypeCode = 'u'
	TypeInt64      TypeCode = 'x'
	TypeUint64     TypeCode = 't'
	TypeDouble     TypeCode = 'd'
	TypeString     TypeCode = 's'
	TypeObjectPath TypeCode = 'o'
	TypeSignature  TypeCode = 'g'
	TypeHandle     TypeCode = 'h'
	TypeArray      TypeCode = 'a'
	TypeStruct     TypeCode = '('
	TypeStructEnd  TypeCode = ')'
	TypeDictEntry  TypeCode = '{'
	TypeDictEnd    TypeCode = '}'
	TypeVariant    TypeCode = 'v'
)

// Alignment returns the wire alignment in bytes for t, per spec.md §3.
func (t TypeCode) Alignment() int {
	switch t {
	case TypeBoolean, TypeInt32, TypeUint32, TypeHandle, TypeArray:
		return 4
	case TypeInt16, TypeUint16:
		return 2
	case TypeByte, TypeSignature, TypeVariant:
		return 1
	case TypeInt64, TypeUint64, TypeDouble, TypeStruct, TypeDictEntry:
		return 8
	case TypeString, TypeObjectPath:
		return 4
	default:
		return 1
	}
}

// IsBasic reports whether t is a fixed, non-container type usable as a
// dict-entry key or an array element's scalar leaf.
func (t TypeCode) IsBasic() bool {
	switch t {
	case TypeByte, TypeBoolean, TypeInt16, TypeUint16, TypeInt32, TypeUint32,
		TypeInt64, TypeUint64, TypeDouble, TypeString, TypeObjectPath,
		TypeSignature, TypeHandle:
		return true
	default:
		return false
	}
}

// IsContainer reports whether t opens a container type.
func (t TypeCode) IsContainer() bool {
	switch t {
	case TypeArray, TypeStruct, TypeDictEntry, TypeVariant:
		return true
	default:
		return false
	}
}

// String renders the type code as its single wire character, or a
// descriptive placeholder for the invalid code.
func (t TypeCode) String() string {
	if t == TypeInvalid {
		return "<invalid>"
	}
	return string(rune(t))
}

// GoString supports %#v formatting in test failure output.
func (t TypeCode) GoString() string {
	return fmt.Sprintf("TypeCode(%q)", t.String())
}
