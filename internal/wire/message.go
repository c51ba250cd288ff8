package wire

import "time"

// Message is the decoded/pre-encode form of a bus message (spec.md §3).
type Message struct {
	Endian      Endian
	Type        MessageType
	Flags       Flags
	Version     byte
	BodyLen     uint32
	Serial      uint32
	HeaderLen   uint32
	Header      HeaderTable
	Args        []Arg  // populated lazily by UnmarshalArgs, or eagerly when built
	ReceivedFrom string // unique name of the endpoint this message arrived from, if any
	Handles     []int32
	Timestamp   time.Time
	TTL         time.Duration

	// rawBody holds the still-wire-endian (or already-normalized) body
	// bytes for lazy UnmarshalArgs; nil once Args has been populated and
	// the signature recorded in argsSig matches what was decoded.
	rawBody  []byte
	argsSig  Signature
	argsDone bool

	// wireEndian records the endian byte the message actually arrived in
	// (set by DecodeFixedHeader); Endian above is normalized to host
	// immediately, but header-field and body decoding still need to know
	// which byte order the as-yet-unparsed wire bytes are in.
	wireEndian Endian
}

// CurrentVersion is the major protocol version this codec emits.
const CurrentVersion = 1

// NewMethodCall builds a method-call message. path and member are
// required; interface may be empty.
func NewMethodCall(serial uint32, path, iface, member string, args []Arg, sig Signature) (*Message, error) {
	if !IsLegalObjectPath(path) {
		return nil, ErrBadValue
	}
	if !IsLegalMemberName(member) {
		return nil, ErrBadValue
	}
	m := newMessage(TypeMethodCall, serial)
	m.Header.Set(FieldPath, Arg{Type: TypeObjectPath, Str: path})
	if iface != "" {
		m.Header.Set(FieldInterface, Arg{Type: TypeString, Str: iface})
	}
	m.Header.Set(FieldMember, Arg{Type: TypeString, Str: member})
	if len(sig) > 0 {
		m.Header.Set(FieldSignature, Arg{Type: TypeSignature, Str: sig.String()})
	}
	m.Args = args
	m.argsDone = true
	m.argsSig = sig
	return m, nil
}

// NewSignal builds a signal message. path, interface, and member are
// all required.
func NewSignal(serial uint32, path, iface, member string, args []Arg, sig Signature) (*Message, error) {
	if !IsLegalObjectPath(path) || !IsLegalInterfaceName(iface) || !IsLegalMemberName(member) {
		return nil, ErrBadValue
	}
	m := newMessage(TypeSignal, serial)
	m.Header.Set(FieldPath, Arg{Type: TypeObjectPath, Str: path})
	m.Header.Set(FieldInterface, Arg{Type: TypeString, Str: iface})
	m.Header.Set(FieldMember, Arg{Type: TypeString, Str: member})
	if len(sig) > 0 {
		m.Header.Set(FieldSignature, Arg{Type: TypeSignature, Str: sig.String()})
	}
	m.Args = args
	m.argsDone = true
	m.argsSig = sig
	return m, nil
}

// NewMethodReturn builds a reply to replySerial.
func NewMethodReturn(serial, replySerial uint32, args []Arg, sig Signature) *Message {
	m := newMessage(TypeMethodReturn, serial)
	m.Header.Set(FieldReplySerial, Arg{Type: TypeUint32, Uint32: replySerial})
	if len(sig) > 0 {
		m.Header.Set(FieldSignature, Arg{Type: TypeSignature, Str: sig.String()})
	}
	m.Args = args
	m.argsDone = true
	m.argsSig = sig
	return m
}

// NewError builds an error reply to replySerial.
func NewError(serial, replySerial uint32, errorName string, args []Arg, sig Signature) *Message {
	m := newMessage(TypeError, serial)
	m.Header.Set(FieldReplySerial, Arg{Type: TypeUint32, Uint32: replySerial})
	m.Header.Set(FieldErrorName, Arg{Type: TypeString, Str: errorName})
	if len(sig) > 0 {
		m.Header.Set(FieldSignature, Arg{Type: TypeSignature, Str: sig.String()})
	}
	m.Args = args
	m.argsDone = true
	m.argsSig = sig
	return m
}

func newMessage(t MessageType, serial uint32) *Message {
	return &Message{
		Endian:  HostEndian,
		Type:    t,
		Version: CurrentVersion,
		Serial:  serial,
	}
}

// Path, Interface, Member, ErrorName, ReplySerial, Destination, Sender,
// SignatureStr are convenience accessors over the header table.
func (m *Message) Path() (string, bool)        { return m.Header.stringField(FieldPath) }
func (m *Message) Interface() (string, bool)   { return m.Header.stringField(FieldInterface) }
func (m *Message) Member() (string, bool)      { return m.Header.stringField(FieldMember) }
func (m *Message) ErrorName() (string, bool)   { return m.Header.stringField(FieldErrorName) }
func (m *Message) ReplySerial() (uint32, bool) { return m.Header.uint32Field(FieldReplySerial) }
func (m *Message) Destination() (string, bool) { return m.Header.stringField(FieldDestination) }
func (m *Message) Sender() (string, bool)      { return m.Header.stringField(FieldSender) }
func (m *Message) SignatureStr() (string, bool) { return m.Header.stringField(FieldSignature) }

// SetDestination and SetSender populate routing-only header fields that
// the endpoint/proxy layer fill in after message construction.
func (m *Message) SetDestination(name string) { m.Header.Set(FieldDestination, Arg{Type: TypeString, Str: name}) }
func (m *Message) SetSender(name string)      { m.Header.Set(FieldSender, Arg{Type: TypeString, Str: name}) }

// HeaderChecks enforces the per-type invariants of spec.md §3: body/header
// length caps, nonzero serial, and the required-field set per message
// type. It does not itself validate name well-formedness; callers that
// want the "pedantic" pass should also call PedanticChecks.
func (m *Message) HeaderChecks(maxPacket int) error {
	if !m.Endian.Valid() {
		return ErrBadEndian
	}
	if m.Serial == 0 {
		return ErrMissingHeader
	}
	if int(m.HeaderLen) > MaxHeaderSize {
		return ErrBadHeaderLen
	}
	if int(m.BodyLen) > maxPacket {
		return ErrBadBodyLen
	}
	switch m.Type {
	case TypeMethodCall:
		if _, ok := m.Path(); !ok {
			return ErrMissingHeader
		}
		if _, ok := m.Member(); !ok {
			return ErrMissingHeader
		}
	case TypeSignal:
		if _, ok := m.Path(); !ok {
			return ErrMissingHeader
		}
		if _, ok := m.Interface(); !ok {
			return ErrMissingHeader
		}
		if _, ok := m.Member(); !ok {
			return ErrMissingHeader
		}
	case TypeError:
		if _, ok := m.ErrorName(); !ok {
			return ErrMissingHeader
		}
		if _, ok := m.ReplySerial(); !ok {
			return ErrMissingHeader
		}
	case TypeMethodReturn:
		if _, ok := m.ReplySerial(); !ok {
			return ErrMissingHeader
		}
	default:
		return ErrBadHeaderField
	}
	return nil
}

// PedanticChecks additionally validates name well-formedness of every
// string header field present (spec.md §4.1 "A pedantic pass validates
// name well-formedness").
func (m *Message) PedanticChecks() error {
	if p, ok := m.Path(); ok && !IsLegalObjectPath(p) {
		return ErrBadHeaderField
	}
	if i, ok := m.Interface(); ok && !IsLegalInterfaceName(i) {
		return ErrBadHeaderField
	}
	if mem, ok := m.Member(); ok && !IsLegalMemberName(mem) {
		return ErrBadHeaderField
	}
	if d, ok := m.Destination(); ok && !IsLegalBusName(d) {
		return ErrBadHeaderField
	}
	if s, ok := m.Sender(); ok && !IsLegalBusName(s) {
		return ErrBadHeaderField
	}
	return nil
}
