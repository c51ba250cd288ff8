package wire

import "errors"

// ErrCannotExpand is returned when a compressed message's token has no
// known expansion (spec.md §4.1 "Compression"): the application should
// fetch the expansion rule from the sender and retry.
var ErrCannotExpand = errors.New("wire: no expansion rule for compression token")

// CompressionExpander resolves a compression token to the header fields
// it stands for. The core treats compression rules as an external
// collaborator concern (spec.md §1); no implementation of it lives in
// this module.
type CompressionExpander interface {
	Expand(token uint32) (map[HeaderFieldID]Arg, bool)
}

// ApplyCompression overlays any header field that m does not already
// carry with the value from exp's expansion of m's compression token,
// per spec.md §4.1: "overlays any field that was not explicitly
// present". It is a no-op if FlagCompressed is not set.
func ApplyCompression(m *Message, exp CompressionExpander) error {
	if !m.Flags.Has(FlagCompressed) {
		return nil
	}
	token, ok := m.Header.uint32Field(FieldCompressionToken)
	if !ok {
		return ErrCannotExpand
	}
	fields, ok := exp.Expand(token)
	if !ok {
		return ErrCannotExpand
	}
	for id, val := range fields {
		if _, present := m.Header.Get(id); !present {
			if err := m.Header.Set(id, val); err != nil {
				return err
			}
		}
	}
	return nil
}
