package wire

// MessageType classifies a Message per spec.md §3.
type MessageType byte

const (
	TypeInvalidMsg MessageType = iota
	TypeMethodCall
	TypeMethodReturn
	TypeError
	TypeSignal
)

func (t MessageType) String() string {
	switch t {
	case TypeMethodCall:
		return "method_call"
	case TypeMethodReturn:
		return "method_return"
	case TypeError:
		return "error"
	case TypeSignal:
		return "signal"
	default:
		return "invalid"
	}
}

// Flags is the message flags bitset (spec.md §3).
type Flags byte

const (
	FlagNoReplyExpected Flags = 1 << iota
	FlagAutoStart
	FlagEncrypted
	FlagSessionless
	FlagGlobalBroadcast
	FlagCompressed
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// HeaderFieldID names a slot in the fixed-index header-field table.
type HeaderFieldID byte

const (
	FieldInvalid HeaderFieldID = iota
	FieldPath
	FieldInterface
	FieldMember
	FieldErrorName
	FieldReplySerial
	FieldDestination
	FieldSender
	FieldSignature
	FieldHandles
	FieldTimestamp
	FieldTTL
	FieldCompressionToken
	FieldSessionID
	numHeaderFields
)

// FieldType maps each header-field id to the wire type its value slot
// must carry (spec.md §3 "Header-field table").
var FieldType = [numHeaderFields]TypeCode{
	FieldPath:             TypeObjectPath,
	FieldInterface:        TypeString,
	FieldMember:           TypeString,
	FieldErrorName:        TypeString,
	FieldReplySerial:      TypeUint32,
	FieldDestination:      TypeString,
	FieldSender:           TypeString,
	FieldSignature:        TypeSignature,
	FieldHandles:          TypeUint32,
	FieldTimestamp:        TypeUint64,
	FieldTTL:              TypeUint32,
	FieldCompressionToken: TypeUint32,
	FieldSessionID:        TypeUint32,
}

// fieldCompressible marks which header fields may be omitted from a
// compressed message and restored from the collaborator's expansion
// table (spec.md §4.1 "Compression").
var fieldCompressible = [numHeaderFields]bool{
	FieldPath:        true,
	FieldInterface:   true,
	FieldMember:      true,
	FieldDestination: true,
	FieldSender:      true,
	FieldSignature:   true,
}

// Compressible reports whether id's slot may be elided under compression.
func (id HeaderFieldID) Compressible() bool {
	if int(id) >= len(fieldCompressible) {
		return false
	}
	return fieldCompressible[id]
}

// HeaderField is one populated slot of the header-field table.
type HeaderField struct {
	ID    HeaderFieldID
	Value Arg
}

// HeaderTable is the fixed-index header-field table keyed by field id.
// A slot whose present flag is false is absent.
type HeaderTable struct {
	present [numHeaderFields]bool
	values  [numHeaderFields]Arg
}

// Set installs value for id, validating that its type matches FieldType[id].
func (h *HeaderTable) Set(id HeaderFieldID, value Arg) error {
	if int(id) == 0 || int(id) >= len(FieldType) {
		return ErrBadHeaderField
	}
	if value.Type != FieldType[id] {
		return ErrBadHeaderField
	}
	h.present[id] = true
	h.values[id] = value
	return nil
}

// Get returns the value at id and whether it is present.
func (h *HeaderTable) Get(id HeaderFieldID) (Arg, bool) {
	if int(id) >= len(FieldType) || !h.present[id] {
		return Arg{}, false
	}
	return h.values[id], true
}

// Clear removes id's value.
func (h *HeaderTable) Clear(id HeaderFieldID) {
	if int(id) < len(FieldType) {
		h.present[id] = false
		h.values[id] = Arg{}
	}
}

// Fields returns every present field as a HeaderField slice, in field-id
// order, for marshalling.
func (h *HeaderTable) Fields() []HeaderField {
	var out []HeaderField
	for id := HeaderFieldID(1); id < numHeaderFields; id++ {
		if h.present[id] {
			out = append(out, HeaderField{ID: id, Value: h.values[id]})
		}
	}
	return out
}

func (h *HeaderTable) pathStr() (string, bool) {
	if v, ok := h.Get(FieldPath); ok {
		return v.Str, true
	}
	return "", false
}

func (h *HeaderTable) stringField(id HeaderFieldID) (string, bool) {
	if v, ok := h.Get(id); ok {
		return v.Str, true
	}
	return "", false
}

func (h *HeaderTable) uint32Field(id HeaderFieldID) (uint32, bool) {
	if v, ok := h.Get(id); ok {
		return v.Uint32, true
	}
	return 0, false
}
