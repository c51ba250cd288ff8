package wire

import (
	"encoding/binary"
	"fmt"
)

func pad8(n int) int { return align(n, 8) }

// Marshal encodes m into its wire form. Header-field and body alignment
// are computed relative to each section's own start, which is always
// 8-byte aligned in the full packet (the fixed header is 16 bytes, and
// the body starts at pad8(16+headerLen)), so no absolute-offset
// correction is needed inside encodeFields/encodeArgs.
func Marshal(m *Message) ([]byte, error) {
	order, err := m.Endian.ByteOrder()
	if err != nil {
		return nil, err
	}

	headerBuf, err := encodeFields(order, m.Header.Fields())
	if err != nil {
		return nil, err
	}

	bodyBuf, err := encodeArgs(order, m.Args)
	if err != nil {
		return nil, err
	}

	m.HeaderLen = uint32(len(headerBuf))
	m.BodyLen = uint32(len(bodyBuf))

	out := make([]byte, 0, 16+pad8(len(headerBuf))+len(bodyBuf))
	out = append(out, byte(m.Endian), byte(m.Type), byte(m.Flags), m.Version)
	var scratch [4]byte
	order.PutUint32(scratch[:], m.BodyLen)
	out = append(out, scratch[:]...)
	order.PutUint32(scratch[:], m.Serial)
	out = append(out, scratch[:]...)
	order.PutUint32(scratch[:], m.HeaderLen)
	out = append(out, scratch[:]...)

	out = append(out, headerBuf...)
	for len(out)%8 != 0 {
		out = append(out, 0)
	}
	out = append(out, bodyBuf...)
	return out, nil
}

// encodeFields marshals the header-field table: each entry is an
// 8-byte-aligned (id, signature, value) tuple, spec.md §6.
func encodeFields(order binary.ByteOrder, fields []HeaderField) ([]byte, error) {
	var buf []byte
	for _, f := range fields {
		for len(buf)%8 != 0 {
			buf = append(buf, 0)
		}
		sig := f.Value.Signature()
		if len(sig) > 255 {
			return nil, ErrSignatureTooLong
		}
		buf = append(buf, byte(f.ID), byte(len(sig)))
		buf = append(buf, sig...)
		buf = append(buf, 0) // NUL terminator
		var err error
		buf, err = encodeValue(buf, order, &f.Value)
		if err != nil {
			return nil, fmt.Errorf("header field %d: %w", f.ID, err)
		}
	}
	return buf, nil
}

// encodeArgs marshals a top-level argument vector (a message body).
func encodeArgs(order binary.ByteOrder, args []Arg) ([]byte, error) {
	var buf []byte
	for i := range args {
		var err error
		buf, err = encodeValue(buf, order, &args[i])
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func padTo(buf []byte, alignTo int) []byte {
	for len(buf)%alignTo != 0 {
		buf = append(buf, 0)
	}
	return buf
}

func encodeValue(buf []byte, order binary.ByteOrder, a *Arg) ([]byte, error) {
	switch a.Type {
	case TypeByte:
		return append(buf, a.Byte), nil
	case TypeBoolean:
		buf = padTo(buf, 4)
		var v uint32
		if a.Bool {
			v = 1
		}
		var scratch [4]byte
		order.PutUint32(scratch[:], v)
		return append(buf, scratch[:]...), nil
	case TypeInt16:
		buf = padTo(buf, 2)
		var scratch [2]byte
		order.PutUint16(scratch[:], uint16(a.Int16))
		return append(buf, scratch[:]...), nil
	case TypeUint16:
		buf = padTo(buf, 2)
		var scratch [2]byte
		order.PutUint16(scratch[:], a.Uint16)
		return append(buf, scratch[:]...), nil
	case TypeInt32:
		buf = padTo(buf, 4)
		var scratch [4]byte
		order.PutUint32(scratch[:], uint32(a.Int32))
		return append(buf, scratch[:]...), nil
	case TypeUint32:
		buf = padTo(buf, 4)
		var scratch [4]byte
		order.PutUint32(scratch[:], a.Uint32)
		return append(buf, scratch[:]...), nil
	case TypeHandle:
		buf = padTo(buf, 4)
		var scratch [4]byte
		order.PutUint32(scratch[:], uint32(a.Handle))
		return append(buf, scratch[:]...), nil
	case TypeInt64:
		buf = padTo(buf, 8)
		var scratch [8]byte
		order.PutUint64(scratch[:], uint64(a.Int64))
		return append(buf, scratch[:]...), nil
	case TypeUint64:
		buf = padTo(buf, 8)
		var scratch [8]byte
		order.PutUint64(scratch[:], a.Uint64)
		return append(buf, scratch[:]...), nil
	case TypeDouble:
		buf = padTo(buf, 8)
		var scratch [8]byte
		order.PutUint64(scratch[:], doubleBits(a.Double))
		return append(buf, scratch[:]...), nil
	case TypeString, TypeObjectPath:
		buf = padTo(buf, 4)
		var scratch [4]byte
		order.PutUint32(scratch[:], uint32(len(a.Str)))
		buf = append(buf, scratch[:]...)
		buf = append(buf, a.Str...)
		return append(buf, 0), nil
	case TypeSignature:
		if len(a.Str) > 255 {
			return nil, ErrSignatureTooLong
		}
		buf = append(buf, byte(len(a.Str)))
		buf = append(buf, a.Str...)
		return append(buf, 0), nil
	case TypeArray:
		buf = padTo(buf, 4)
		lenPos := len(buf)
		buf = append(buf, 0, 0, 0, 0) // placeholder, patched below
		buf = padTo(buf, firstAlignment(a.ArraySig))
		elemStart := len(buf)
		for i := range a.Array {
			var err error
			buf, err = encodeValue(buf, order, &a.Array[i])
			if err != nil {
				return nil, err
			}
		}
		order.PutUint32(buf[lenPos:lenPos+4], uint32(len(buf)-elemStart))
		return buf, nil
	case TypeStruct, TypeDictEntry:
		buf = padTo(buf, 8)
		for i := range a.Struct {
			var err error
			buf, err = encodeValue(buf, order, &a.Struct[i])
			if err != nil {
				return nil, err
			}
		}
		return buf, nil
	case TypeVariant:
		sig := a.Variant.Signature()
		if len(sig) > 255 {
			return nil, ErrSignatureTooLong
		}
		buf = append(buf, byte(len(sig)))
		buf = append(buf, sig...)
		buf = append(buf, 0)
		return encodeValue(buf, order, a.Variant)
	default:
		return nil, fmt.Errorf("%w: unmarshallable type %v", ErrBadValue, a.Type)
	}
}
