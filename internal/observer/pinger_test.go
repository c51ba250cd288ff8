package observer

import (
	"testing"
	"time"

	"github.com/allbus/corebus/internal/busobject"
)

type fakePingGroup struct {
	dead []string
}

func (f *fakePingGroup) Ping(busNames []string) []string { return f.dead }

func TestPingerReportsDeadPeersAsDestinationLost(t *testing.T) {
	joiner := &fakeJoiner{results: map[string]uint32{"peer.one": 7}}
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

	group := &fakePingGroup{dead: []string{"peer.one"}}
	pinger := NewPinger(e, group, 10*time.Millisecond)
	pinger.Start()
	defer pinger.Stop()

	deadline := time.After(time.Second)
	for {
		_, lost := obs.count()
		if lost == 1 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for pinger-driven ObjectLost")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
