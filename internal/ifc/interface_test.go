package ifc

import "testing"

func TestAddMemberRejectsAfterActivate(t *testing.T) {
	d, err := NewDescription("org.example.I", SecurityOff)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.AddMember(Member{Kind: MemberMethod, Name: "Foo"}); err != nil {
		t.Fatal(err)
	}
	d.Activate()
	if err := d.AddMember(Member{Kind: MemberMethod, Name: "Bar"}); err == nil {
		t.Fatal("expected error adding member after activation")
	}
}

func TestAddMemberRejectsDuplicate(t *testing.T) {
	d, _ := NewDescription("org.example.I", SecurityOff)
	if err := d.AddMember(Member{Kind: MemberMethod, Name: "Foo"}); err != nil {
		t.Fatal(err)
	}
	if err := d.AddMember(Member{Kind: MemberMethod, Name: "Foo"}); err == nil {
		t.Fatal("expected error for duplicate member name")
	}
}

func TestNewDescriptionRejectsIllegalName(t *testing.T) {
	if _, err := NewDescription("NotDotted", SecurityOff); err == nil {
		t.Fatal("expected error for non-dotted interface name")
	}
}

func TestEqualDetectsMismatch(t *testing.T) {
	a, _ := NewDescription("org.example.I", SecurityOff)
	_ = a.AddMember(Member{Kind: MemberMethod, Name: "Foo", InSig: []byte("s")})
	a.Activate()

	b, _ := NewDescription("org.example.I", SecurityOff)
	_ = b.AddMember(Member{Kind: MemberMethod, Name: "Foo", InSig: []byte("i")})
	b.Activate()

	if a.Equal(b) {
		t.Fatal("expected mismatch between differing input signatures")
	}
}

func TestStandardDescriptionsActivated(t *testing.T) {
	for name, d := range StandardDescriptions() {
		if !d.Activated() {
			t.Errorf("%s: expected standard description to be activated", name)
		}
	}
}

func TestIsStandardInterface(t *testing.T) {
	if !IsStandardInterface(NamePeer) {
		t.Error("Peer should be a standard interface")
	}
	if IsStandardInterface("org.example.Custom") {
		t.Error("custom interface should not be standard")
	}
}
