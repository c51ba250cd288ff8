package wire

import "strings"

// IsLegalObjectPath reports whether p is a well-formed object path:
// starts with '/', contains only ['A'-'Z']['a'-'z']['0'-'9']['_'] between
// slashes, and is not "/" followed by an empty segment (no "//").
func IsLegalObjectPath(p string) bool {
	if len(p) == 0 || p[0] != '/' {
		return false
	}
	if len(p) > MaxNameLength {
		return false
	}
	if p == "/" {
		return true
	}
	segs := strings.Split(p[1:], "/")
	for _, seg := range segs {
		if seg == "" {
			return false
		}
		for _, c := range seg {
			if !isNameChar(c) {
				return false
			}
		}
	}
	return true
}

func isNameChar(c rune) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// IsLegalInterfaceName reports whether n is a well-formed interface name:
// at least two elements separated by '.', each element starting with a
// letter or underscore and containing only name characters, overall
// length at most MaxNameLength.
func IsLegalInterfaceName(n string) bool {
	return isLegalDottedName(n, 2)
}

// IsLegalBusName reports whether n is a well-formed bus (service) name.
// Unique names (":x.y") are accepted with a leading colon; well-known
// names follow the same dotted-element rule as interface names.
func IsLegalBusName(n string) bool {
	if strings.HasPrefix(n, ":") {
		return isLegalDottedName(n[1:], 2)
	}
	return isLegalDottedName(n, 2)
}

// IsLegalMemberName reports whether n is a well-formed method/signal/
// property member name: a single name-character run, not starting with
// a digit, length at most MaxNameLength.
func IsLegalMemberName(n string) bool {
	if n == "" || len(n) > MaxNameLength {
		return false
	}
	for i, c := range n {
		if !isNameChar(c) {
			return false
		}
		if i == 0 && c >= '0' && c <= '9' {
			return false
		}
	}
	return true
}

func isLegalDottedName(n string, minElements int) bool {
	if n == "" || len(n) > MaxNameLength {
		return false
	}
	elems := strings.Split(n, ".")
	if len(elems) < minElements {
		return false
	}
	for _, e := range elems {
		if e == "" {
			return false
		}
		for i, c := range e {
			if !isNameChar(c) {
				return false
			}
			if i == 0 && c >= '0' && c <= '9' {
				return false
			}
		}
	}
	return true
}
