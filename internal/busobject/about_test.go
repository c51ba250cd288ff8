package busobject

import (
	"testing"

	"github.com/allbus/corebus/internal/ifc"
)

func TestBuildObjectDescriptionSkipsPlaceholdersAndUnannounced(t *testing.T) {
	r := NewRegistry()

	announced, _ := NewObject("/service/widget")
	d, err := ifc.NewDescription("org.example.Widget", ifc.SecurityOff)
	if err != nil {
		t.Fatal(err)
	}
	d.Activate()
	if err := announced.AddInterface(d, true); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(announced); err != nil {
		t.Fatal(err)
	}

	silent, _ := NewObject("/service/hidden")
	d2, _ := ifc.NewDescription("org.example.Hidden", ifc.SecurityOff)
	d2.Activate()
	if err := silent.AddInterface(d2, false); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(silent); err != nil {
		t.Fatal(err)
	}

	ann := NewAboutAnnouncer(r, "com.example.service", AboutData{})
	desc := ann.BuildObjectDescription()

	if _, ok := desc["/service"]; ok {
		t.Fatal("placeholder /service should not appear in object description")
	}
	if ifaces, ok := desc["/service/widget"]; !ok || len(ifaces) != 1 || ifaces[0] != "org.example.Widget" {
		t.Fatalf("expected /service/widget announced, got %v", desc)
	}
	if _, ok := desc["/service/hidden"]; ok {
		t.Fatal("unannounced interface should not appear in object description")
	}
}

func TestObjectDescriptionImplementsAll(t *testing.T) {
	desc := ObjectDescription{
		"/a": {"org.example.A", "org.example.B"},
		"/b": {"org.example.A"},
	}
	path, ok := desc.ImplementsAll([]string{"org.example.A", "org.example.B"})
	if !ok || path != "/a" {
		t.Fatalf("expected /a to implement both, got %q %v", path, ok)
	}
	if _, ok := desc.ImplementsAll([]string{"org.example.C"}); ok {
		t.Fatal("expected no match for unimplemented interface")
	}
}

func TestAnnounceAssignsAppID(t *testing.T) {
	r := NewRegistry()
	ann := NewAboutAnnouncer(r, "com.example.service", AboutData{})
	a := ann.Announce(100)
	if a.Data.AppID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Fatal("expected a generated AppID")
	}
	if a.SessionPort != 100 {
		t.Fatalf("expected session port 100, got %d", a.SessionPort)
	}
}
