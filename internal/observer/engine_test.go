package observer

import (
	"sync"
	"testing"
	"time"

	"github.com/allbus/corebus/internal/busobject"
)

type fakeJoiner struct {
	mu      sync.Mutex
	joined  []string
	results map[string]uint32 // busName -> sessionID to report, 0 means fail
}

func (f *fakeJoiner) JoinSession(busName string, port uint16, onJoined func(sessionID uint32, ok bool)) {
	f.mu.Lock()
	f.joined = append(f.joined, busName)
	sid, ok := f.results[busName]
	f.mu.Unlock()
	go onJoined(sid, ok && sid != 0)
}

func (f *fakeJoiner) LeaveSession(busName string, sessionID uint32) {}

type recordingObserver struct {
	mu          sync.Mutex
	discovered  []busobject.ObjectID
	lost        []busobject.ObjectID
	discoveredC chan struct{}
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{discoveredC: make(chan struct{}, 16)}
}

func (r *recordingObserver) ObjectDiscovered(id busobject.ObjectID, interfaces []string, sessionID uint32) {
	r.mu.Lock()
	r.discovered = append(r.discovered, id)
	r.mu.Unlock()
	r.discoveredC <- struct{}{}
}

func (r *recordingObserver) ObjectLost(id busobject.ObjectID) {
	r.mu.Lock()
	r.lost = append(r.lost, id)
	r.mu.Unlock()
}

func (r *recordingObserver) count() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.discovered), len(r.lost)
}

func waitForCount(t *testing.T, fn func() (int, int), wantDiscovered int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		d, _ := fn()
		if d >= wantDiscovered {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d discoveries, got %d", wantDiscovered, d)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRegisterIssuesWhoImplementsOnce(t *testing.T) {
	var calls []string
	disc := &stubDiscovery{onWho: func(i []string) { calls = append(calls, combinationKey(i)) }}
	e := New(&fakeJoiner{}, disc)
	e.Start()
	defer e.Stop()

	obs := newRecordingObserver()
	e.Register([]string{"com.example.A"}, obs, false)
	e.Register([]string{"com.example.A"}, obs, false)

	if len(calls) != 1 {
		t.Fatalf("WhoImplements called %d times, want 1", len(calls))
	}
}

type stubDiscovery struct {
	onWho    func([]string)
	onCancel func([]string)
}

func (s *stubDiscovery) WhoImplements(i []string) {
	if s.onWho != nil {
		s.onWho(i)
	}
}
func (s *stubDiscovery) CancelWhoImplements(i []string) {
	if s.onCancel != nil {
		s.onCancel(i)
	}
}

func TestAnnouncementJoinsSessionAndDiscoversObjects(t *testing.T) {
	joiner := &fakeJoiner{results: map[string]uint32{"peer.one": 5}}
	e := New(joiner, &stubDiscovery{})
	e.Start()
	defer e.Stop()

	obs := newRecordingObserver()
	e.Register([]string{"com.example.A"}, obs, false)

	e.HandleAnnouncement(busobject.Announcement{
		BusName:     "peer.one",
		SessionPort: 100,
		Objects:     busobject.ObjectDescription{"/obj": {"com.example.A"}},
	})

	waitForCount(t, obs.count, 1)
}

func TestTriggerOnExistingDeliversSnapshotBeforeEnabling(t *testing.T) {
	joiner := &fakeJoiner{results: map[string]uint32{"peer.one": 5}}
	e := New(joiner, &stubDiscovery{})
	e.Start()
	defer e.Stop()

	bootstrap := newRecordingObserver()
	e.Register([]string{"com.example.A"}, bootstrap, false)
	e.HandleAnnouncement(busobject.Announcement{
		BusName:     "peer.one",
		SessionPort: 100,
		Objects:     busobject.ObjectDescription{"/obj": {"com.example.A"}},
	})
	waitForCount(t, bootstrap.count, 1)

	late := newRecordingObserver()
	e.Register([]string{"com.example.A"}, late, true)
	waitForCount(t, late.count, 1)

	d, l := late.count()
	if d != 1 || l != 0 {
		t.Fatalf("trigger-on-existing got discovered=%d lost=%d, want 1/0", d, l)
	}
}

func TestSessionLostReportsObjectLost(t *testing.T) {
	joiner := &fakeJoiner{results: map[string]uint32{"peer.one": 5}}
	e := New(joiner, &stubDiscovery{})
	e.Start()
	defer e.Stop()

	obs := newRecordingObserver()
	e.Register([]string{"com.example.A"}, obs, false)
	e.HandleAnnouncement(busobject.Announcement{
		BusName:     "peer.one",
		SessionPort: 100,
		Objects:     busobject.ObjectDescription{"/obj": {"com.example.A"}},
	})
	waitForCount(t, obs.count, 1)

	e.HandleSessionLost("peer.one")
	deadline := time.After(time.Second)
	for {
		_, lost := obs.count()
		if lost == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for ObjectLost")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestUnregisterCancelsWhoImplementsWhenLastListenerLeaves(t *testing.T) {
	var canceled bool
	var mu sync.Mutex
	disc := &stubDiscovery{onCancel: func([]string) {
		mu.Lock()
		canceled = true
		mu.Unlock()
	}}
	e := New(&fakeJoiner{}, disc)
	e.Start()
	defer e.Stop()

	obs := newRecordingObserver()
	id := e.Register([]string{"com.example.A"}, obs, false)
	e.Unregister(id)

	// Unregister is queued; give the worker a moment to process it.
	deadline := time.After(time.Second)
	for {
		mu.Lock()
		c := canceled
		mu.Unlock()
		if c {
			return
		}
		select {
		case <-deadline:
			t.Fatal("CancelWhoImplements was never called")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
