package introspect

import (
	"strings"
	"testing"

	"github.com/allbus/corebus/internal/ifc"
)

const sampleDoc = `<?xml version="1.0"?>
<node>
  <interface name="com.example.Widget">
    <method name="Spin">
      <arg name="speed" type="u" direction="in"/>
      <arg name="result" type="b" direction="out"/>
    </method>
    <signal name="Spun">
      <arg name="speed" type="u"/>
    </signal>
    <property name="Color" type="s" access="readwrite">
      <annotation name="org.freedesktop.DBus.Property.EmitsChangedSignal" value="true"/>
    </property>
    <annotation name="org.alljoyn.Bus.Secure" value="true"/>
  </interface>
  <node name="child1"/>
  <node name="child2"/>
</node>`

func TestParseBasicInterface(t *testing.T) {
	result, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(result.Interfaces) != 1 {
		t.Fatalf("got %d interfaces, want 1", len(result.Interfaces))
	}
	d := result.Interfaces[0]
	if d.Name() != "com.example.Widget" {
		t.Fatalf("got interface name %q", d.Name())
	}
	if d.Security() != ifc.SecurityRequired {
		t.Fatalf("got security %v, want Required", d.Security())
	}
	m, ok := d.Member("Spin")
	if !ok || m.Kind != ifc.MemberMethod {
		t.Fatalf("Spin method not found or wrong kind")
	}
	if string(m.InSig) != "u" || string(m.OutSig) != "b" {
		t.Fatalf("got in=%q out=%q, want u/b", m.InSig, m.OutSig)
	}
	p, ok := d.Property("Color")
	if !ok || p.Access != ifc.AccessReadWrite || p.EmitsChanged != ifc.EmitsTrue {
		t.Fatalf("Color property wrong: %+v", p)
	}
	if len(result.Children) != 2 {
		t.Fatalf("got %d children, want 2", len(result.Children))
	}
}

func TestParseSkipsStandardInterfaces(t *testing.T) {
	doc := `<node><interface name="org.freedesktop.DBus.Properties"></interface></node>`
	result, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(result.Interfaces) != 0 {
		t.Fatalf("expected standard interface to be skipped, got %d", len(result.Interfaces))
	}
}

func TestMergeLegacyDescriptionsAddsDocStringAnnotation(t *testing.T) {
	legacyFrench := `<node>
  <interface name="com.example.Widget">
    <description>Un widget.</description>
    <method name="Spin">
      <description>Faire tourner.</description>
    </method>
  </interface>
</node>`

	result, err := MergeLegacyDescriptions([]byte(sampleDoc), map[string][]byte{"fr": []byte(legacyFrench)})
	if err != nil {
		t.Fatalf("MergeLegacyDescriptions: %v", err)
	}
	d := result.Interfaces[0]
	m, _ := d.Member("Spin")
	var found bool
	for _, a := range m.Annotations {
		if a.Name == "org.alljoyn.Bus.DocString.fr" && a.Value == "Faire tourner." {
			found = true
		}
	}
	if !found {
		t.Fatalf("Spin method missing merged French DocString annotation: %+v", m.Annotations)
	}
}

func TestWriteInterfaceRoundTripsThroughParse(t *testing.T) {
	d, err := ifc.NewDescription("com.example.Gizmo", ifc.SecurityOff)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.AddMember(ifc.Member{Kind: ifc.MemberMethod, Name: "Ping", InSig: nil, OutSig: nil}); err != nil {
		t.Fatal(err)
	}
	d.Activate()

	var b strings.Builder
	b.WriteString("<node>\n")
	writeInterface(&b, d)
	b.WriteString("</node>\n")

	result, err := Parse([]byte(b.String()))
	if err != nil {
		t.Fatalf("Parse generated XML: %v\n%s", err, b.String())
	}
	if len(result.Interfaces) != 1 || result.Interfaces[0].Name() != "com.example.Gizmo" {
		t.Fatalf("round trip lost the interface: %+v", result)
	}
}
