// Package introspect renders and parses D-Bus/AllJoyn introspection XML,
// the wire format the Introspectable.Introspect method exchanges (spec.md
// §6 "Introspection"). Grounded on XmlHelper.cc's traversal of <node>/
// <interface>/<method>/<signal>/<property>/<annotation> elements, using
// encoding/xml instead of a hand-rolled DOM walker.
package introspect

import (
	"encoding/xml"
	"fmt"

	"github.com/allbus/corebus/internal/ifc"
	"github.com/allbus/corebus/internal/wire"
)

type xmlNode struct {
	XMLName    xml.Name       `xml:"node"`
	Name       string         `xml:"name,attr,omitempty"`
	Interfaces []xmlInterface `xml:"interface"`
	Nodes      []xmlNode      `xml:"node"`
}

type xmlInterface struct {
	Name         string          `xml:"name,attr"`
	Methods      []xmlMethod     `xml:"method"`
	Signals      []xmlSignal     `xml:"signal"`
	Properties   []xmlProperty   `xml:"property"`
	Annotations  []xmlAnnotation `xml:"annotation"`
	Descriptions []xmlDescription `xml:"description"`
}

type xmlMethod struct {
	Name         string          `xml:"name,attr"`
	Args         []xmlArg        `xml:"arg"`
	Annotations  []xmlAnnotation `xml:"annotation"`
	Descriptions []xmlDescription `xml:"description"`
}

type xmlSignal struct {
	Name         string          `xml:"name,attr"`
	Args         []xmlArg        `xml:"arg"`
	Annotations  []xmlAnnotation `xml:"annotation"`
	Descriptions []xmlDescription `xml:"description"`
}

type xmlArg struct {
	Name      string `xml:"name,attr,omitempty"`
	Type      string `xml:"type,attr"`
	Direction string `xml:"direction,attr,omitempty"`
}

type xmlProperty struct {
	Name         string          `xml:"name,attr"`
	Type         string          `xml:"type,attr"`
	Access       string          `xml:"access,attr"`
	Annotations  []xmlAnnotation `xml:"annotation"`
	Descriptions []xmlDescription `xml:"description"`
}

type xmlAnnotation struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// xmlDescription is a legacy (pre-16.04) <description> element, either
// inline with a language attribute or, in a per-language XML map,
// implicitly in that map's language (spec.md §4.3 "Legacy multi-
// language introspection merge").
type xmlDescription struct {
	Language string `xml:"language,attr,omitempty"`
	Text     string `xml:",chardata"`
}

const (
	annotationSecure        = "org.alljoyn.Bus.Secure"
	annotationEmitsChanged  = "org.freedesktop.DBus.Property.EmitsChangedSignal"
	annotationSessionless   = "org.alljoyn.Bus.Signal.Sessionless"
	annotationSessioncast   = "org.alljoyn.Bus.Signal.Sessioncast"
	annotationUnicast       = "org.alljoyn.Bus.Signal.Unicast"
	annotationGlobalBroadcast = "org.alljoyn.Bus.Signal.GlobalBroadcast"
)

// ParseResult holds what one <node> introspection document describes:
// the interfaces to register on the bus, and the names of any direct
// child nodes (spec.md §4.3 "child navigation").
type ParseResult struct {
	Interfaces []*ifc.Description
	Children   []string
}

// Parse decodes introspection XML rooted at either a bare <interface> or
// a <node> (XmlHelper.AddInterfaceDefinitions / AddProxyObjects).
func Parse(data []byte) (*ParseResult, error) {
	var node xmlNode
	if err := xml.Unmarshal(data, &node); err != nil {
		var bare struct {
			XMLName xml.Name `xml:"interface"`
			xmlInterface
		}
		if xml.Unmarshal(data, &bare) != nil {
			return nil, fmt.Errorf("introspect: %w", err)
		}
		node = xmlNode{Interfaces: []xmlInterface{bare.xmlInterface}}
	}
	return parseNode(&node)
}

func parseNode(node *xmlNode) (*ParseResult, error) {
	result := &ParseResult{}
	for _, xi := range node.Interfaces {
		if ifc.IsStandardInterface(xi.Name) {
			continue
		}
		d, err := parseInterface(xi)
		if err != nil {
			return nil, err
		}
		result.Interfaces = append(result.Interfaces, d)
	}
	for _, child := range node.Nodes {
		if child.Name != "" {
			result.Children = append(result.Children, child.Name)
		}
	}
	return result, nil
}

func parseInterface(xi xmlInterface) (*ifc.Description, error) {
	security := ifc.SecurityInherit
	for _, a := range xi.Annotations {
		if a.Name == annotationSecure {
			if a.Value == "true" {
				security = ifc.SecurityRequired
			} else if a.Value == "off" {
				security = ifc.SecurityOff
			}
		}
	}

	d, err := ifc.NewDescription(xi.Name, security)
	if err != nil {
		return nil, err
	}
	for _, m := range xi.Methods {
		member, err := argsToMember(ifc.MemberMethod, m.Name, m.Args, m.Annotations)
		if err != nil {
			return nil, err
		}
		if err := d.AddMember(member); err != nil {
			return nil, err
		}
	}
	for _, s := range xi.Signals {
		member, err := argsToMember(ifc.MemberSignal, s.Name, s.Args, s.Annotations)
		if err != nil {
			return nil, err
		}
		for _, a := range s.Annotations {
			switch a.Name {
			case annotationSessionless:
				member.Sessionless = a.Value == "true"
			case annotationSessioncast:
				member.Sessioncast = a.Value == "true"
			case annotationUnicast:
				member.Unicast = a.Value == "true"
			case annotationGlobalBroadcast:
				member.GlobalBroadcast = a.Value == "true"
			}
		}
		if err := d.AddMember(member); err != nil {
			return nil, err
		}
	}
	for _, p := range xi.Properties {
		prop := ifc.Property{
			Name: p.Name,
			Sig:  wire.Signature(p.Type),
		}
		switch p.Access {
		case "read":
			prop.Access = ifc.AccessRead
		case "write":
			prop.Access = ifc.AccessWrite
		case "readwrite":
			prop.Access = ifc.AccessReadWrite
		}
		for _, a := range p.Annotations {
			if a.Name == annotationEmitsChanged {
				prop.EmitsChanged = ifc.ParseEmitsChangedSignal(a.Value)
				prop.Annotations = append(prop.Annotations, ifc.Annotation{Name: a.Name, Value: a.Value})
			} else {
				prop.Annotations = append(prop.Annotations, ifc.Annotation{Name: a.Name, Value: a.Value})
			}
		}
		if err := d.AddProperty(prop); err != nil {
			return nil, err
		}
	}
	d.Activate()
	return d, nil
}

func argsToMember(kind ifc.MemberKind, name string, args []xmlArg, annotations []xmlAnnotation) (ifc.Member, error) {
	m := ifc.Member{Kind: kind, Name: name}
	var inSig, outSig []byte
	for _, a := range args {
		m.ArgNames = append(m.ArgNames, a.Name)
		switch a.Direction {
		case "out":
			outSig = append(outSig, []byte(a.Type)...)
		default:
			inSig = append(inSig, []byte(a.Type)...)
		}
	}
	m.InSig = wire.Signature(inSig)
	m.OutSig = wire.Signature(outSig)
	for _, a := range annotations {
		m.Annotations = append(m.Annotations, ifc.Annotation{Name: a.Name, Value: a.Value})
	}
	return m, nil
}
