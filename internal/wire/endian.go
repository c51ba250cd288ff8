package wire

import (
	"encoding/binary"
)

// Endian identifies the wire byte order of a message, carried as the
// first byte of the fixed header.
type Endian byte

const (
	LittleEndian Endian = 'l'
	BigEndian    Endian = 'B'
)

// HostEndian is this process's native byte order, used to decide when a
// decoded message needs byte-swapping.
var HostEndian = func() Endian {
	var x uint16 = 1
	b := [2]byte{}
	binary.NativeEndian.PutUint16(b[:], x)
	if b[0] == 1 {
		return LittleEndian
	}
	return BigEndian
}()

// ByteOrder returns the encoding/binary.ByteOrder matching e, or an error
// if e is not one of LittleEndian/BigEndian.
func (e Endian) ByteOrder() (binary.ByteOrder, error) {
	switch e {
	case LittleEndian:
		return binary.LittleEndian, nil
	case BigEndian:
		return binary.BigEndian, nil
	default:
		return nil, ErrBadEndian
	}
}

// Valid reports whether e is a recognized endian byte.
func (e Endian) Valid() bool {
	return e == LittleEndian || e == BigEndian
}
