// Package ifc describes bus interfaces: their members (methods and
// signals), properties, and annotations, per spec.md §3 "Interface
// description".
package ifc

import (
	"fmt"

	"github.com/allbus/corebus/internal/wire"
)

// SecurityPolicy controls whether a caller must be encrypted to invoke
// members of an interface.
type SecurityPolicy int

const (
	SecurityInherit SecurityPolicy = iota // take the owning object's policy
	SecurityRequired
	SecurityOff
)

// MemberKind distinguishes a method from a signal.
type MemberKind int

const (
	MemberMethod MemberKind = iota
	MemberSignal
)

// Annotation is a free-form key/value pair attached to an interface,
// member, or argument (e.g. "org.alljoyn.Bus.Secure" -> "true").
type Annotation struct {
	Name  string
	Value string
}

// EmitsChangedSignal describes how a property announces mutation,
// per spec.md §3 and §6 (the
// "org.freedesktop.DBus.Property.EmitsChangedSignal" annotation).
type EmitsChangedSignal int

const (
	EmitsUnspecified EmitsChangedSignal = iota
	EmitsTrue
	EmitsInvalidates
	EmitsFalse
	EmitsConst
)

// ParseEmitsChangedSignal maps the XML annotation value to the enum.
func ParseEmitsChangedSignal(v string) EmitsChangedSignal {
	switch v {
	case "true":
		return EmitsTrue
	case "invalidates":
		return EmitsInvalidates
	case "false":
		return EmitsFalse
	case "const":
		return EmitsConst
	default:
		return EmitsUnspecified
	}
}

// Member is one method or signal of an interface.
type Member struct {
	Kind         MemberKind
	Name         string
	InSig        wire.Signature
	OutSig       wire.Signature // unused for signals
	ArgNames     []string
	Annotations  []Annotation
	ArgAnnotations map[string][]Annotation // keyed by argument name

	// Signal emission flags. internal/introspect sets them from the
	// org.alljoyn.Bus.Signal.* annotations on a <signal>; it does not
	// read the unified-XML attributes (sessionless/sessioncast/unicast/
	// globalbroadcast) on the <signal> element itself.
	Sessionless     bool
	Sessioncast     bool
	Unicast         bool
	GlobalBroadcast bool
}

// Property is one property of an interface.
type Property struct {
	Name        string
	Sig         wire.Signature
	Access      PropertyAccess
	EmitsChanged EmitsChangedSignal
	Annotations []Annotation
}

// PropertyAccess is the read/write capability of a property.
type PropertyAccess int

const (
	AccessRead PropertyAccess = iota
	AccessWrite
	AccessReadWrite
)

// Description is an interface's schema: its name, security policy, and
// ordered members/properties. Once Activate is called the description
// is immutable (spec.md §3 "Once activated the description is
// immutable").
type Description struct {
	name      string
	security  SecurityPolicy
	members   []Member
	memberIdx map[string]int
	props     []Property
	propIdx   map[string]int
	activated bool
}

// NewDescription creates an interface description under construction.
// name must be a legal interface name.
func NewDescription(name string, security SecurityPolicy) (*Description, error) {
	if !wire.IsLegalInterfaceName(name) {
		return nil, fmt.Errorf("ifc: illegal interface name %q", name)
	}
	return &Description{
		name:      name,
		security:  security,
		memberIdx: make(map[string]int),
		propIdx:   make(map[string]int),
	}, nil
}

// Name returns the interface's reverse-DNS name.
func (d *Description) Name() string { return d.name }

// Security returns the interface's security policy.
func (d *Description) Security() SecurityPolicy { return d.security }

// AddMember appends a method or signal. It fails once the description
// has been activated, or if a member with the same name already exists.
func (d *Description) AddMember(m Member) error {
	if d.activated {
		return fmt.Errorf("ifc: %s is already activated", d.name)
	}
	if !wire.IsLegalMemberName(m.Name) {
		return fmt.Errorf("ifc: illegal member name %q", m.Name)
	}
	if _, exists := d.memberIdx[m.Name]; exists {
		return fmt.Errorf("ifc: member %q already exists on %s", m.Name, d.name)
	}
	d.memberIdx[m.Name] = len(d.members)
	d.members = append(d.members, m)
	return nil
}

// AddProperty appends a property. Same activation/uniqueness rules as
// AddMember.
func (d *Description) AddProperty(p Property) error {
	if d.activated {
		return fmt.Errorf("ifc: %s is already activated", d.name)
	}
	if !wire.IsLegalMemberName(p.Name) {
		return fmt.Errorf("ifc: illegal property name %q", p.Name)
	}
	if _, exists := d.propIdx[p.Name]; exists {
		return fmt.Errorf("ifc: property %q already exists on %s", p.Name, d.name)
	}
	d.propIdx[p.Name] = len(d.props)
	d.props = append(d.props, p)
	return nil
}

// Activate freezes the description against further AddMember/AddProperty
// calls.
func (d *Description) Activate() { d.activated = true }

// Activated reports whether Activate has been called.
func (d *Description) Activated() bool { return d.activated }

// Member looks up a member by name.
func (d *Description) Member(name string) (Member, bool) {
	i, ok := d.memberIdx[name]
	if !ok {
		return Member{}, false
	}
	return d.members[i], true
}

// Members returns all members in declaration order.
func (d *Description) Members() []Member { return d.members }

// Property looks up a property by name.
func (d *Description) Property(name string) (Property, bool) {
	i, ok := d.propIdx[name]
	if !ok {
		return Property{}, false
	}
	return d.props[i], true
}

// Properties returns all properties in declaration order.
func (d *Description) Properties() []Property { return d.props }

// HasCacheableProperties reports whether any property on this interface
// emits PropertiesChanged (true or invalidates), i.e. is a candidate for
// the proxy property cache (spec.md §4.3).
func (d *Description) HasCacheableProperties() bool {
	for _, p := range d.props {
		if p.EmitsChanged == EmitsTrue || p.EmitsChanged == EmitsInvalidates {
			return true
		}
	}
	return false
}

// Equal reports whether d and other describe the same schema, used by
// the introspection binder to detect InterfaceMismatch on re-registration
// (spec.md §4.3 "ParseXml").
func (d *Description) Equal(other *Description) bool {
	if d.name != other.name || len(d.members) != len(other.members) || len(d.props) != len(other.props) {
		return false
	}
	for name, i := range d.memberIdx {
		j, ok := other.memberIdx[name]
		if !ok {
			return false
		}
		a, b := d.members[i], other.members[j]
		if a.Kind != b.Kind || string(a.InSig) != string(b.InSig) || string(a.OutSig) != string(b.OutSig) {
			return false
		}
	}
	for name, i := range d.propIdx {
		j, ok := other.propIdx[name]
		if !ok {
			return false
		}
		a, b := d.props[i], other.props[j]
		if string(a.Sig) != string(b.Sig) || a.Access != b.Access {
			return false
		}
	}
	return true
}
