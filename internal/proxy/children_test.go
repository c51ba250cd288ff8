package proxy

import "testing"

func TestChildCreatesPlaceholderSharingServiceAndSession(t *testing.T) {
	proxy, _ := newTestProxy(t, echoHandler)
	proxy.sessionID = 42

	child := proxy.Child("sub")
	if child.Path() != "/obj/sub" {
		t.Fatalf("got path %q, want /obj/sub", child.Path())
	}
	if child.ServiceName() != proxy.ServiceName() || child.SessionID() != 42 {
		t.Fatalf("child does not inherit service/session: %+v", child)
	}
	if child.Parent() != proxy {
		t.Fatal("expected child's Parent() to return the proxy it was navigated from")
	}

	again := proxy.Child("sub")
	if again != child {
		t.Fatal("expected repeated Child() to return the same placeholder")
	}
}

func TestChildAtResolvesAbsoluteAndRelativePaths(t *testing.T) {
	proxy, _ := newTestProxy(t, echoHandler)

	rel := proxy.ChildAt("a/b")
	if rel.Path() != "/obj/a/b" {
		t.Fatalf("got %q, want /obj/a/b", rel.Path())
	}

	// Absolute paths are still rooted at the proxy's own tree, not at
	// the bus's "/" (spec.md §4.3 "Paths navigate a tree rooted at the
	// proxy"): resolution restarts from the ultimate ancestor (here,
	// proxy itself) and walks the given segments as child names.
	abs := rel.ChildAt("/other/path")
	if abs.Path() != "/obj/other/path" {
		t.Fatalf("got %q, want /obj/other/path", abs.Path())
	}
}

func TestRootProxyPathIsSlash(t *testing.T) {
	ep := New(nil, "com.example.Service", "/", 0)
	if ep.Path() != "/" {
		t.Fatalf("got %q", ep.Path())
	}
	child := ep.Child("obj")
	if child.Path() != "/obj" {
		t.Fatalf("got %q, want /obj", child.Path())
	}
}
