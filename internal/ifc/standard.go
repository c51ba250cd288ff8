package ifc

// Standard interface names implicitly present on every bus object
// (spec.md §6 "Standard interfaces"). These cannot be added manually to
// a BusObject's interface set; busobject.Object enforces that.
const (
	NameIntrospectable = "org.freedesktop.DBus.Introspectable"
	NameProperties     = "org.freedesktop.DBus.Properties"
	NamePeer           = "org.freedesktop.DBus.Peer"
	NameAllJoynIntrospectable = "org.alljoyn.Introspectable"
)

// IsStandardInterface reports whether name is one of the implicitly
// present interfaces.
func IsStandardInterface(name string) bool {
	switch name {
	case NameIntrospectable, NameProperties, NamePeer, NameAllJoynIntrospectable:
		return true
	default:
		return false
	}
}

func mustDesc(name string, build func(*Description)) *Description {
	d, err := NewDescription(name, SecurityOff)
	if err != nil {
		panic(err)
	}
	build(d)
	d.Activate()
	return d
}

// IntrospectableDescription returns the schema for org.freedesktop.DBus.Introspectable.
func IntrospectableDescription() *Description {
	return mustDesc(NameIntrospectable, func(d *Description) {
		_ = d.AddMember(Member{
			Kind: MemberMethod, Name: "Introspect",
			OutSig: []byte("s"), ArgNames: []string{"data"},
		})
	})
}

// PropertiesDescription returns the schema for org.freedesktop.DBus.Properties.
func PropertiesDescription() *Description {
	return mustDesc(NameProperties, func(d *Description) {
		_ = d.AddMember(Member{
			Kind: MemberMethod, Name: "Get",
			InSig: []byte("ss"), OutSig: []byte("v"),
			ArgNames: []string{"interface", "property", "value"},
		})
		_ = d.AddMember(Member{
			Kind: MemberMethod, Name: "Set",
			InSig: []byte("ssv"),
			ArgNames: []string{"interface", "property", "value"},
		})
		_ = d.AddMember(Member{
			Kind: MemberMethod, Name: "GetAll",
			InSig: []byte("s"), OutSig: []byte("a{sv}"),
			ArgNames: []string{"interface", "properties"},
		})
		_ = d.AddMember(Member{
			Kind: MemberSignal, Name: "PropertiesChanged",
			InSig:       []byte("sa{sv}as"),
			ArgNames:    []string{"interface", "changed_properties", "invalidated_properties"},
			Sessionless: false,
		})
	})
}

// PeerDescription returns the schema for org.freedesktop.DBus.Peer.
func PeerDescription() *Description {
	return mustDesc(NamePeer, func(d *Description) {
		_ = d.AddMember(Member{Kind: MemberMethod, Name: "Ping"})
		_ = d.AddMember(Member{
			Kind: MemberMethod, Name: "GetMachineId",
			OutSig: []byte("s"), ArgNames: []string{"machine_id"},
		})
	})
}

// StandardDescriptions returns the schemas of the org.freedesktop.DBus
// standard interfaces (Introspectable, Properties, Peer), keyed by name.
// org.alljoyn.Introspectable has no schema here.
func StandardDescriptions() map[string]*Description {
	return map[string]*Description{
		NameIntrospectable: IntrospectableDescription(),
		NameProperties:     PropertiesDescription(),
		NamePeer:           PeerDescription(),
	}
}
