package introspect

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/allbus/corebus/internal/busobject"
	"github.com/allbus/corebus/internal/ifc"
)

// Generator renders introspection XML for objects in a registry,
// implementing dispatch.Introspector so the endpoint's built-in
// Introspectable.Introspect handler can delegate to it without an
// import cycle between dispatch and busobject (spec.md §6).
type Generator struct {
	Registry *busobject.Registry
}

// NewGenerator wraps reg for introspection rendering.
func NewGenerator(reg *busobject.Registry) *Generator {
	return &Generator{Registry: reg}
}

// IntrospectPath renders the <node> document for path: its own
// non-standard interfaces plus one <node> element per direct child
// segment (children are never expanded recursively, matching the wire
// protocol's per-object Introspect call).
func (g *Generator) IntrospectPath(path string) (string, error) {
	obj, ok := g.Registry.Lookup(path)
	if !ok {
		return "", fmt.Errorf("introspect: no object at %s", path)
	}
	return RenderObject(obj), nil
}

// RenderObject builds the introspection XML document for one object,
// without descending into its children's own interfaces.
func RenderObject(obj *busobject.Object) string {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString("<node>\n")

	for _, name := range obj.Interfaces() {
		if ifc.IsStandardInterface(name) {
			continue
		}
		d, _ := obj.Interface(name)
		writeInterface(&b, d)
	}
	for _, child := range obj.Children() {
		b.WriteString(fmt.Sprintf("  <node name=%q/>\n", childSegment(obj.Path(), child.Path())))
	}
	b.WriteString("</node>\n")
	return b.String()
}

func childSegment(parentPath, childPath string) string {
	trimmed := strings.TrimPrefix(childPath, parentPath)
	return strings.TrimPrefix(trimmed, "/")
}

func writeInterface(b *strings.Builder, d *ifc.Description) {
	fmt.Fprintf(b, "  <interface name=%q>\n", d.Name())
	for _, m := range d.Members() {
		switch m.Kind {
		case ifc.MemberMethod:
			writeMethod(b, m)
		case ifc.MemberSignal:
			writeSignal(b, m)
		}
	}
	for _, p := range d.Properties() {
		writeProperty(b, p)
	}
	b.WriteString("  </interface>\n")
}

func writeMethod(b *strings.Builder, m ifc.Member) {
	fmt.Fprintf(b, "    <method name=%q>\n", m.Name)
	writeArgs(b, m.ArgNames, m.InSig, "in")
	writeArgs(b, nil, m.OutSig, "out")
	b.WriteString("    </method>\n")
}

func writeSignal(b *strings.Builder, m ifc.Member) {
	fmt.Fprintf(b, "    <signal name=%q>\n", m.Name)
	writeArgs(b, m.ArgNames, m.InSig, "")
	b.WriteString("    </signal>\n")
}

func writeArgs(b *strings.Builder, names []string, sig []byte, direction string) {
	types, err := splitSignature(sig)
	if err != nil {
		return
	}
	for i, t := range types {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		if direction == "" {
			if name == "" {
				fmt.Fprintf(b, "      <arg type=%q/>\n", t)
			} else {
				fmt.Fprintf(b, "      <arg name=%q type=%q/>\n", name, t)
			}
			continue
		}
		if name == "" {
			fmt.Fprintf(b, "      <arg type=%q direction=%q/>\n", t, direction)
		} else {
			fmt.Fprintf(b, "      <arg name=%q type=%q direction=%q/>\n", name, t, direction)
		}
	}
}

func writeProperty(b *strings.Builder, p ifc.Property) {
	access := "read"
	switch p.Access {
	case ifc.AccessWrite:
		access = "write"
	case ifc.AccessReadWrite:
		access = "readwrite"
	}
	fmt.Fprintf(b, "    <property name=%q type=%q access=%q/>\n", p.Name, string(p.Sig), access)
}

// splitSignature breaks a concatenated signature (e.g. "siu") into its
// individual complete-type strings.
func splitSignature(sig []byte) ([]string, error) {
	var out []string
	for len(sig) > 0 {
		n, err := completeTypeLen(sig)
		if err != nil {
			return nil, err
		}
		out = append(out, string(sig[:n]))
		sig = sig[n:]
	}
	return out, nil
}

func completeTypeLen(sig []byte) (int, error) {
	if len(sig) == 0 {
		return 0, fmt.Errorf("introspect: empty signature")
	}
	switch sig[0] {
	case 'a':
		n, err := completeTypeLen(sig[1:])
		if err != nil {
			return 0, err
		}
		return n + 1, nil
	case '(', '{':
		open, close := sig[0], complementBracket(sig[0])
		depth := 0
		for i, c := range sig {
			switch c {
			case open:
				depth++
			case close:
				depth--
				if depth == 0 {
					return i + 1, nil
				}
			}
		}
		return 0, fmt.Errorf("introspect: unterminated container in %q", sig)
	default:
		return 1, nil
	}
}

func complementBracket(open byte) byte {
	if open == '(' {
		return ')'
	}
	return '}'
}
