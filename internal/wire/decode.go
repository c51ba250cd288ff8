package wire

import (
	"encoding/binary"
	"fmt"
)

// DecodeFixedHeader parses the 16-byte fixed header (spec.md §6) and
// returns a Message with Endian/Type/Flags/Version/BodyLen/Serial/
// HeaderLen populated. The returned message's scalar header fields are
// always stored normalized to host endian, per spec.md §4.1.
func DecodeFixedHeader(buf [16]byte) (*Message, error) {
	e := Endian(buf[0])
	order, err := e.ByteOrder()
	if err != nil {
		return nil, ErrBadEndian
	}
	m := &Message{
		Endian:  HostEndian, // normalized; the wire endian only selects how to read
		Type:    MessageType(buf[1]),
		Flags:   Flags(buf[2]),
		Version: buf[3],
	}
	m.BodyLen = order.Uint32(buf[4:8])
	m.Serial = order.Uint32(buf[8:12])
	m.HeaderLen = order.Uint32(buf[12:16])
	m.wireEndian = e
	return m, nil
}

// InterpretHeader validates the fixed header against spec.md §4.1 and
// returns the total packet size to read next (header-fields padded to 8
// bytes, plus the body).
func InterpretHeader(m *Message, maxPacket int) (pktSize int, err error) {
	if !m.wireEndian.Valid() {
		return 0, ErrBadEndian
	}
	if int(m.HeaderLen) > MaxHeaderSize {
		return 0, ErrBadHeaderLen
	}
	pktSize = pad8(int(m.HeaderLen)) + int(m.BodyLen)
	if pktSize > maxPacket {
		return 0, ErrBadBodyLen
	}
	if int(m.BodyLen) > maxPacket {
		return 0, ErrBadBodyLen
	}
	return pktSize, nil
}

// DecodeHeaderFields parses the header-field section (exactly
// m.HeaderLen bytes, not including its padding to 8) into m.Header.
// Header fields are decoded eagerly (unlike the body) because routing
// depends on path/interface/member immediately.
func DecodeHeaderFields(m *Message, buf []byte) error {
	order, err := m.wireEndian.ByteOrder()
	if err != nil {
		return err
	}
	pos := 0
	for pos < len(buf) {
		for pos%8 != 0 {
			pos++
		}
		if pos >= len(buf) {
			break
		}
		id := HeaderFieldID(buf[pos])
		pos++
		if pos >= len(buf) {
			return ErrBadHeaderField
		}
		sigLen := int(buf[pos])
		pos++
		if pos+sigLen+1 > len(buf) {
			return ErrBadHeaderField
		}
		sigBytes := buf[pos : pos+sigLen]
		pos += sigLen + 1 // + NUL
		sig, err := ParseSignature(string(sigBytes))
		if err != nil {
			return err
		}
		if int(id) >= len(FieldType) || TypeCode(sig[0]) != FieldType[id] {
			return ErrBadHeaderField
		}
		arg, newPos, err := decodeValue(buf, pos, order, sig)
		if err != nil {
			return err
		}
		pos = newPos
		if err := m.Header.Set(id, arg); err != nil {
			return err
		}
	}
	return nil
}

// SetBody stashes the raw body bytes for lazy unmarshal by UnmarshalArgs.
func SetBody(m *Message, buf []byte) {
	m.rawBody = buf
	m.argsDone = false
}

// UnmarshalArgs unmarshals the message body according to expectedSig, or
// accepts any encoded signature when expectedSig is the wildcard "*"
// (spec.md §4.1 "Argument unmarshal"). It requires the signature
// declared in the message's own FieldSignature header to exactly match
// expectedSig (unless wildcard). On success the result is cached on m;
// repeated calls are no-ops.
func UnmarshalArgs(m *Message, expectedSig Signature) error {
	if m.argsDone {
		return nil
	}
	declared, _ := m.SignatureStr()
	wantSig := Signature(declared)

	if string(expectedSig) != "*" {
		if string(wantSig) != string(expectedSig) {
			return ErrSignatureMismatch
		}
	}

	order, err := m.wireEndian.ByteOrder()
	if err != nil {
		return err
	}

	args, err := decodeArgsFromSig(m.rawBody, order, wantSig)
	if err != nil {
		return err
	}
	m.Args = args
	m.argsSig = wantSig
	m.argsDone = true
	m.rawBody = nil
	m.Endian = HostEndian
	return nil
}

func decodeArgsFromSig(buf []byte, order binary.ByteOrder, sig Signature) ([]Arg, error) {
	var args []Arg
	rest := sig
	pos := 0
	for len(rest) > 0 {
		var complete Signature
		var err error
		complete, rest, err = ParseCompleteType(rest)
		if err != nil {
			return nil, err
		}
		var arg Arg
		arg, pos, err = decodeValue(buf, pos, order, complete)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

func decodeValue(buf []byte, pos int, order binary.ByteOrder, sig Signature) (Arg, int, error) {
	if len(sig) == 0 {
		return Arg{}, pos, ErrBadSignature
	}
	code := TypeCode(sig[0])
	switch code {
	case TypeByte:
		if pos+1 > len(buf) {
			return Arg{}, pos, ErrBadValue
		}
		return Arg{Type: TypeByte, Byte: buf[pos]}, pos + 1, nil
	case TypeBoolean:
		pos = align(pos, 4)
		v, err := readU32(buf, pos, order)
		if err != nil {
			return Arg{}, pos, err
		}
		return Arg{Type: TypeBoolean, Bool: v != 0}, pos + 4, nil
	case TypeInt16:
		pos = align(pos, 2)
		v, err := readU16(buf, pos, order)
		if err != nil {
			return Arg{}, pos, err
		}
		return Arg{Type: TypeInt16, Int16: int16(v)}, pos + 2, nil
	case TypeUint16:
		pos = align(pos, 2)
		v, err := readU16(buf, pos, order)
		if err != nil {
			return Arg{}, pos, err
		}
		return Arg{Type: TypeUint16, Uint16: v}, pos + 2, nil
	case TypeInt32:
		pos = align(pos, 4)
		v, err := readU32(buf, pos, order)
		if err != nil {
			return Arg{}, pos, err
		}
		return Arg{Type: TypeInt32, Int32: int32(v)}, pos + 4, nil
	case TypeUint32:
		pos = align(pos, 4)
		v, err := readU32(buf, pos, order)
		if err != nil {
			return Arg{}, pos, err
		}
		return Arg{Type: TypeUint32, Uint32: v}, pos + 4, nil
	case TypeHandle:
		pos = align(pos, 4)
		v, err := readU32(buf, pos, order)
		if err != nil {
			return Arg{}, pos, err
		}
		return Arg{Type: TypeHandle, Handle: int32(v)}, pos + 4, nil
	case TypeInt64:
		pos = align(pos, 8)
		v, err := readU64(buf, pos, order)
		if err != nil {
			return Arg{}, pos, err
		}
		return Arg{Type: TypeInt64, Int64: int64(v)}, pos + 8, nil
	case TypeUint64:
		pos = align(pos, 8)
		v, err := readU64(buf, pos, order)
		if err != nil {
			return Arg{}, pos, err
		}
		return Arg{Type: TypeUint64, Uint64: v}, pos + 8, nil
	case TypeDouble:
		pos = align(pos, 8)
		v, err := readU64(buf, pos, order)
		if err != nil {
			return Arg{}, pos, err
		}
		return Arg{Type: TypeDouble, Double: doubleFromBits(v)}, pos + 8, nil
	case TypeString, TypeObjectPath:
		pos = align(pos, 4)
		l, err := readU32(buf, pos, order)
		if err != nil {
			return Arg{}, pos, err
		}
		pos += 4
		if pos+int(l)+1 > len(buf) {
			return Arg{}, pos, ErrBadValue
		}
		s := string(buf[pos : pos+int(l)])
		pos += int(l) + 1
		return Arg{Type: code, Str: s}, pos, nil
	case TypeSignature:
		if pos >= len(buf) {
			return Arg{}, pos, ErrBadValue
		}
		l := int(buf[pos])
		pos++
		if pos+l+1 > len(buf) {
			return Arg{}, pos, ErrBadValue
		}
		s := string(buf[pos : pos+l])
		pos += l + 1
		return Arg{Type: TypeSignature, Str: s}, pos, nil
	case TypeArray:
		pos = align(pos, 4)
		l, err := readU32(buf, pos, order)
		if err != nil {
			return Arg{}, pos, err
		}
		pos += 4
		elemSig, _, err := ParseCompleteType(sig[1:])
		if err != nil {
			return Arg{}, pos, err
		}
		pos = align(pos, firstAlignment(elemSig))
		end := pos + int(l)
		if end > len(buf) {
			return Arg{}, pos, ErrBadValue
		}
		var elems []Arg
		for pos < end {
			var elem Arg
			elem, pos, err = decodeValue(buf, pos, order, elemSig)
			if err != nil {
				return Arg{}, pos, err
			}
			elems = append(elems, elem)
		}
		return Arg{Type: TypeArray, ArraySig: elemSig, Array: elems}, end, nil
	case TypeStruct:
		pos = align(pos, 8)
		members, err := ParseContainerSignature(sig[1 : len(sig)-1])
		if err != nil {
			return Arg{}, pos, err
		}
		out := make([]Arg, 0, len(members))
		for _, msig := range members {
			var elem Arg
			elem, pos, err = decodeValue(buf, pos, order, msig)
			if err != nil {
				return Arg{}, pos, err
			}
			out = append(out, elem)
		}
		return Arg{Type: TypeStruct, Struct: out}, pos, nil
	case TypeDictEntry:
		pos = align(pos, 8)
		members, err := ParseContainerSignature(sig[1 : len(sig)-1])
		if err != nil {
			return Arg{}, pos, err
		}
		if len(members) != 2 {
			return Arg{}, pos, ErrBadSignature
		}
		out := make([]Arg, 0, 2)
		for _, msig := range members {
			var elem Arg
			elem, pos, err = decodeValue(buf, pos, order, msig)
			if err != nil {
				return Arg{}, pos, err
			}
			out = append(out, elem)
		}
		return Arg{Type: TypeDictEntry, Struct: out}, pos, nil
	case TypeVariant:
		if pos >= len(buf) {
			return Arg{}, pos, ErrBadValue
		}
		l := int(buf[pos])
		pos++
		if pos+l+1 > len(buf) {
			return Arg{}, pos, ErrBadValue
		}
		innerSigStr := string(buf[pos : pos+l])
		pos += l + 1
		innerSig, err := ParseSignature(innerSigStr)
		if err != nil {
			return Arg{}, pos, err
		}
		complete, rest, err := ParseCompleteType(innerSig)
		if err != nil {
			return Arg{}, pos, err
		}
		if len(rest) != 0 {
			return Arg{}, pos, ErrBadSignature
		}
		inner, newPos, err := decodeValue(buf, pos, order, complete)
		if err != nil {
			return Arg{}, pos, err
		}
		return Arg{Type: TypeVariant, Variant: &inner}, newPos, nil
	default:
		return Arg{}, pos, fmt.Errorf("%w: unknown type code %q", ErrBadSignature, code)
	}
}

func readU16(buf []byte, pos int, order binary.ByteOrder) (uint16, error) {
	if pos+2 > len(buf) {
		return 0, ErrBadValue
	}
	return order.Uint16(buf[pos : pos+2]), nil
}

func readU32(buf []byte, pos int, order binary.ByteOrder) (uint32, error) {
	if pos+4 > len(buf) {
		return 0, ErrBadValue
	}
	return order.Uint32(buf[pos : pos+4]), nil
}

func readU64(buf []byte, pos int, order binary.ByteOrder) (uint64, error) {
	if pos+8 > len(buf) {
		return 0, ErrBadValue
	}
	return order.Uint64(buf[pos : pos+8]), nil
}
