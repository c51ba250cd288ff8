package wire

// Signature is a sequence of type codes forming zero or more complete
// types. It is immutable once returned from a parse function.
type Signature []byte

// String returns the signature as its wire string form.
func (s Signature) String() string {
	return string(s)
}

// ParseSignature validates that s is a well-formed signature (each byte a
// recognized type code, container nesting balanced and within limits,
// length within MaxSignatureLength) and returns it as a Signature, or
// reports the spec.md §7 Signature/Value error.
func ParseSignature(s string) (Signature, error) {
	if len(s) == 0 {
		return Signature{}, nil
	}
	if len(s) > MaxSignatureLength {
		return nil, ErrSignatureTooLong
	}
	rest := []byte(s)
	for len(rest) > 0 {
		var err error
		_, rest, err = ParseCompleteType(rest)
		if err != nil {
			return nil, err
		}
	}
	return Signature(s), nil
}

// ParseCompleteType consumes exactly one complete type from the front of
// sig and returns that type's signature slice and the remaining bytes.
//
// A complete type is: a basic type code; 'a' followed by a complete type;
// '(' ... ')' with one or more complete types; '{' followed by a basic key
// code and one complete value type, then '}'; or 'v'.
func ParseCompleteType(sig []byte) (Signature, []byte, error) {
	return parseCompleteType(sig, 0, 0)
}

func parseCompleteType(sig []byte, arrayDepth, structDepth int) (Signature, []byte, error) {
	if len(sig) == 0 {
		return nil, nil, ErrBadSignature
	}
	code := TypeCode(sig[0])
	switch {
	case code.IsBasic():
		return Signature(sig[:1]), sig[1:], nil
	case code == TypeVariant:
		return Signature(sig[:1]), sig[1:], nil
	case code == TypeArray:
		if arrayDepth+1 > MaxArrayNesting {
			return nil, nil, ErrNestingTooDeep
		}
		_, rest, err := parseCompleteType(sig[1:], arrayDepth+1, structDepth)
		if err != nil {
			return nil, nil, err
		}
		total := len(sig) - len(rest)
		return Signature(sig[:total]), rest, nil
	case code == TypeStruct:
		if structDepth+1 > MaxStructNesting {
			return nil, nil, ErrNestingTooDeep
		}
		rest := sig[1:]
		count := 0
		for {
			if len(rest) == 0 {
				return nil, nil, ErrBadSignature
			}
			if TypeCode(rest[0]) == TypeStructEnd {
				rest = rest[1:]
				break
			}
			_, next, err := parseCompleteType(rest, arrayDepth, structDepth+1)
			if err != nil {
				return nil, nil, err
			}
			rest = next
			count++
		}
		if count == 0 {
			return nil, nil, ErrBadSignature
		}
		total := len(sig) - len(rest)
		return Signature(sig[:total]), rest, nil
	case code == TypeDictEntry:
		// Dict entries are only complete types inside an array ('a{...}');
		// as a standalone complete type they still parse structurally here,
		// callers (array-of-dict-entry) enforce the context.
		if len(sig) < 2 {
			return nil, nil, ErrBadSignature
		}
		keyCode := TypeCode(sig[1])
		if !keyCode.IsBasic() {
			return nil, nil, ErrBadSignature
		}
		valSig, rest, err := parseCompleteType(sig[2:], arrayDepth, structDepth+1)
		if err != nil {
			return nil, nil, err
		}
		_ = valSig
		if len(rest) == 0 || TypeCode(rest[0]) != TypeDictEnd {
			return nil, nil, ErrBadSignature
		}
		rest = rest[1:]
		total := len(sig) - len(rest)
		return Signature(sig[:total]), rest, nil
	default:
		return nil, nil, ErrBadSignature
	}
}

// ParseContainerSignature parses a container's inner complete types (the
// members of a struct, or the single element type of an array) and
// returns each one's signature, in order; the member count is
// len(members).
func ParseContainerSignature(sig []byte) (members []Signature, err error) {
	rest := sig
	for len(rest) > 0 {
		var m Signature
		m, rest, err = ParseCompleteType(rest)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

// CountCompleteTypes returns how many complete types sig contains,
// validating each in turn.
func CountCompleteTypes(sig []byte) (int, error) {
	n := 0
	rest := sig
	for len(rest) > 0 {
		var err error
		_, rest, err = ParseCompleteType(rest)
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}
