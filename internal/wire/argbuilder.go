package wire

import "fmt"

// ArgBuilder is the typed argument builder called for in spec.md §9
// ("replace variadic format-string APIs with a typed argument builder").
// It is the only supported way to construct an Arg tree from application
// code; BuildArgs below retains a string-signature fast path, which
// nothing in this module calls.
type ArgBuilder struct {
	arg Arg
	err error
}

// NewArgBuilder starts building a single Arg.
func NewArgBuilder() *ArgBuilder { return &ArgBuilder{} }

func (b *ArgBuilder) fail(err error) *ArgBuilder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// Byte/Bool/Int16/... set the builder's Arg to the given scalar.

func (b *ArgBuilder) Byte(v byte) *ArgBuilder     { b.arg = Arg{Type: TypeByte, Byte: v}; return b }
func (b *ArgBuilder) Bool(v bool) *ArgBuilder     { b.arg = Arg{Type: TypeBoolean, Bool: v}; return b }
func (b *ArgBuilder) Int16(v int16) *ArgBuilder   { b.arg = Arg{Type: TypeInt16, Int16: v}; return b }
func (b *ArgBuilder) Uint16(v uint16) *ArgBuilder { b.arg = Arg{Type: TypeUint16, Uint16: v}; return b }
func (b *ArgBuilder) Int32(v int32) *ArgBuilder   { b.arg = Arg{Type: TypeInt32, Int32: v}; return b }
func (b *ArgBuilder) Uint32(v uint32) *ArgBuilder { b.arg = Arg{Type: TypeUint32, Uint32: v}; return b }
func (b *ArgBuilder) Int64(v int64) *ArgBuilder   { b.arg = Arg{Type: TypeInt64, Int64: v}; return b }
func (b *ArgBuilder) Uint64(v uint64) *ArgBuilder { b.arg = Arg{Type: TypeUint64, Uint64: v}; return b }
func (b *ArgBuilder) Double(v float64) *ArgBuilder {
	b.arg = Arg{Type: TypeDouble, Double: v}
	return b
}
func (b *ArgBuilder) String(v string) *ArgBuilder { b.arg = Arg{Type: TypeString, Str: v}; return b }
func (b *ArgBuilder) ObjectPath(v string) *ArgBuilder {
	if !IsLegalObjectPath(v) {
		return b.fail(fmt.Errorf("%w: illegal object path %q", ErrBadValue, v))
	}
	b.arg = Arg{Type: TypeObjectPath, Str: v}
	return b
}
func (b *ArgBuilder) Sig(v string) *ArgBuilder {
	if _, err := ParseSignature(v); err != nil {
		return b.fail(err)
	}
	b.arg = Arg{Type: TypeSignature, Str: v}
	return b
}
func (b *ArgBuilder) Handle(idx int32) *ArgBuilder {
	b.arg = Arg{Type: TypeHandle, Handle: idx}
	return b
}

// Array builds a homogeneous array of elem, validating that every
// element's signature matches elemSig.
func (b *ArgBuilder) Array(elemSig string, elems []Arg) *ArgBuilder {
	sig, err := ParseSignature(elemSig)
	if err != nil {
		return b.fail(err)
	}
	for i := range elems {
		if string(elems[i].Signature()) != string(sig) {
			return b.fail(fmt.Errorf("%w: element %d has signature %q, want %q",
				ErrBadTypeForArray, i, elems[i].Signature(), sig))
		}
	}
	b.arg = Arg{Type: TypeArray, ArraySig: sig, Array: elems}
	return b
}

// Struct builds a struct from its ordered member values.
func (b *ArgBuilder) Struct(members ...Arg) *ArgBuilder {
	if len(members) == 0 {
		return b.fail(fmt.Errorf("%w: struct requires at least one member", ErrBadSignature))
	}
	b.arg = Arg{Type: TypeStruct, Struct: members}
	return b
}

// DictEntry builds a single dict-entry {key, value}. key must be a basic
// type.
func (b *ArgBuilder) DictEntry(key, value Arg) *ArgBuilder {
	if !key.Type.IsBasic() {
		return b.fail(fmt.Errorf("%w: dict-entry key must be a basic type", ErrBadValue))
	}
	b.arg = Arg{Type: TypeDictEntry, Struct: []Arg{key, value}}
	return b
}

// Variant wraps value as a variant payload.
func (b *ArgBuilder) Variant(value Arg) *ArgBuilder {
	v := value
	b.arg = Arg{Type: TypeVariant, Variant: &v}
	return b
}

// Build returns the constructed Arg, or the first error encountered.
func (b *ArgBuilder) Build() (Arg, error) {
	if b.err != nil {
		return Arg{}, b.err
	}
	return b.arg, nil
}

// BuildArgs is the retained format-string fast path (spec.md §4.1
// "argument variadic builder"); nothing in this module calls it. sig must
// be a valid signature; vals must supply one Go value per top-level
// complete type in sig, in order (a struct consumes a []any, a variant a
// wire.Arg). Arrays and structs in sig must be fully spelled out (e.g.
// "as" consumes a []string). The '*' wildcard is not accepted, and a dict
// entry is accepted only as an array element supplied in a []Arg.
func BuildArgs(sig string, vals ...any) ([]Arg, error) {
	s, err := ParseSignature(sig)
	if err != nil {
		return nil, err
	}
	var args []Arg
	rest := []byte(s)
	vi := 0
	for len(rest) > 0 {
		var complete Signature
		complete, rest, err = ParseCompleteType(rest)
		if err != nil {
			return nil, err
		}
		if vi >= len(vals) {
			return nil, fmt.Errorf("%w: not enough values for signature %q", ErrBadValue, sig)
		}
		arg, err := fromGoValue(complete, vals[vi])
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		vi++
	}
	return args, nil
}

func fromGoValue(sig Signature, v any) (Arg, error) {
	if len(sig) == 0 {
		return Arg{}, ErrBadSignature
	}
	code := TypeCode(sig[0])
	switch code {
	case TypeByte:
		n, ok := v.(byte)
		if !ok {
			return Arg{}, fmt.Errorf("%w: want byte, got %T", ErrBadValue, v)
		}
		return Arg{Type: TypeByte, Byte: n}, nil
	case TypeBoolean:
		n, ok := v.(bool)
		if !ok {
			return Arg{}, fmt.Errorf("%w: want bool, got %T", ErrBadValue, v)
		}
		return Arg{Type: TypeBoolean, Bool: n}, nil
	case TypeInt16:
		n, ok := v.(int16)
		if !ok {
			return Arg{}, fmt.Errorf("%w: want int16, got %T", ErrBadValue, v)
		}
		return Arg{Type: TypeInt16, Int16: n}, nil
	case TypeUint16:
		n, ok := v.(uint16)
		if !ok {
			return Arg{}, fmt.Errorf("%w: want uint16, got %T", ErrBadValue, v)
		}
		return Arg{Type: TypeUint16, Uint16: n}, nil
	case TypeInt32:
		n, ok := v.(int32)
		if !ok {
			return Arg{}, fmt.Errorf("%w: want int32, got %T", ErrBadValue, v)
		}
		return Arg{Type: TypeInt32, Int32: n}, nil
	case TypeUint32:
		n, ok := v.(uint32)
		if !ok {
			return Arg{}, fmt.Errorf("%w: want uint32, got %T", ErrBadValue, v)
		}
		return Arg{Type: TypeUint32, Uint32: n}, nil
	case TypeInt64:
		n, ok := v.(int64)
		if !ok {
			return Arg{}, fmt.Errorf("%w: want int64, got %T", ErrBadValue, v)
		}
		return Arg{Type: TypeInt64, Int64: n}, nil
	case TypeUint64:
		n, ok := v.(uint64)
		if !ok {
			return Arg{}, fmt.Errorf("%w: want uint64, got %T", ErrBadValue, v)
		}
		return Arg{Type: TypeUint64, Uint64: n}, nil
	case TypeDouble:
		n, ok := v.(float64)
		if !ok {
			return Arg{}, fmt.Errorf("%w: want float64, got %T", ErrBadValue, v)
		}
		return Arg{Type: TypeDouble, Double: n}, nil
	case TypeString:
		n, ok := v.(string)
		if !ok {
			return Arg{}, fmt.Errorf("%w: want string, got %T", ErrBadValue, v)
		}
		return Arg{Type: TypeString, Str: n}, nil
	case TypeObjectPath:
		n, ok := v.(string)
		if !ok || !IsLegalObjectPath(n) {
			return Arg{}, fmt.Errorf("%w: want legal object path, got %v", ErrBadValue, v)
		}
		return Arg{Type: TypeObjectPath, Str: n}, nil
	case TypeSignature:
		n, ok := v.(string)
		if !ok {
			return Arg{}, fmt.Errorf("%w: want signature string, got %T", ErrBadValue, v)
		}
		return Arg{Type: TypeSignature, Str: n}, nil
	case TypeHandle:
		n, ok := v.(int32)
		if !ok {
			return Arg{}, fmt.Errorf("%w: want int32 handle index, got %T", ErrBadValue, v)
		}
		return Arg{Type: TypeHandle, Handle: n}, nil
	case TypeVariant:
		inner, ok := v.(Arg)
		if !ok {
			return Arg{}, fmt.Errorf("%w: want wire.Arg for variant payload, got %T", ErrBadValue, v)
		}
		return Arg{Type: TypeVariant, Variant: &inner}, nil
	case TypeArray:
		elemSig, _, err := ParseCompleteType(sig[1:])
		if err != nil {
			return Arg{}, err
		}
		elems, err := arrayFromGoValue(elemSig, v)
		if err != nil {
			return Arg{}, err
		}
		return Arg{Type: TypeArray, ArraySig: elemSig, Array: elems}, nil
	case TypeStruct:
		vs, ok := v.([]any)
		if !ok {
			return Arg{}, fmt.Errorf("%w: want []any for struct, got %T", ErrBadValue, v)
		}
		members, err := ParseContainerSignature(sig[1 : len(sig)-1])
		if err != nil {
			return Arg{}, err
		}
		if len(members) != len(vs) {
			return Arg{}, fmt.Errorf("%w: struct expects %d members, got %d", ErrBadValue, len(members), len(vs))
		}
		out := make([]Arg, len(vs))
		for i, m := range members {
			arg, err := fromGoValue(m, vs[i])
			if err != nil {
				return Arg{}, err
			}
			out[i] = arg
		}
		return Arg{Type: TypeStruct, Struct: out}, nil
	default:
		return Arg{}, ErrBadSignature
	}
}

// arrayFromGoValue converts a Go slice into array elements of elemSig.
// Supported shapes: []string, []int32, []uint32, []byte (as
// array-of-byte), and []Arg for already-built elements of any type.
// Other slice types ([]int64, []uint64, []float64, []bool, ...) are
// rejected.
func arrayFromGoValue(elemSig Signature, v any) ([]Arg, error) {
	if elems, ok := v.([]Arg); ok {
		for i := range elems {
			if string(elems[i].Signature()) != string(elemSig) {
				return nil, fmt.Errorf("%w: element %d signature %q != %q",
					ErrBadTypeForArray, i, elems[i].Signature(), elemSig)
			}
		}
		return elems, nil
	}
	switch TypeCode(elemSig[0]) {
	case TypeString:
		ss, ok := v.([]string)
		if !ok {
			return nil, fmt.Errorf("%w: want []string, got %T", ErrBadValue, v)
		}
		out := make([]Arg, len(ss))
		for i, s := range ss {
			out[i] = Arg{Type: TypeString, Str: s}
		}
		return out, nil
	case TypeInt32:
		ns, ok := v.([]int32)
		if !ok {
			return nil, fmt.Errorf("%w: want []int32, got %T", ErrBadValue, v)
		}
		out := make([]Arg, len(ns))
		for i, n := range ns {
			out[i] = Arg{Type: TypeInt32, Int32: n}
		}
		return out, nil
	case TypeUint32:
		ns, ok := v.([]uint32)
		if !ok {
			return nil, fmt.Errorf("%w: want []uint32, got %T", ErrBadValue, v)
		}
		out := make([]Arg, len(ns))
		for i, n := range ns {
			out[i] = Arg{Type: TypeUint32, Uint32: n}
		}
		return out, nil
	case TypeByte:
		bs, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("%w: want []byte, got %T", ErrBadValue, v)
		}
		out := make([]Arg, len(bs))
		for i, b := range bs {
			out[i] = Arg{Type: TypeByte, Byte: b}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported array element signature %q in BuildArgs fast path", ErrBadSignature, elemSig)
	}
}
