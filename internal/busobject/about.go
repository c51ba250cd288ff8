package busobject

import (
	"sort"
	"sync/atomic"

	"github.com/google/uuid"
)

// AboutData is the payload an AboutAnnouncer publishes, modeled on
// AboutObj.cc's Announce() MsgArg bundle: a protocol version, the
// session port peers should join, the announced object/interface
// description, and free-form application metadata keyed by field name
// (AppId, AppName, DeviceId, DeviceName, ...).
//
// This is a minimal port of the source's About feature set (spec.md §8):
// just enough to produce what internal/observer consumes, not a full
// About service.
type AboutData struct {
	Version     uint16
	SessionPort uint16
	AppID       uuid.UUID
	Fields      map[string]string
}

// ObjectDescription maps an announced object path to the set of
// interface names it implements, the shape observer.Engine parses
// incoming announcements into (spec.md §4.4 "parse into
// discovered-object set").
type ObjectDescription map[string][]string

// Announcement is the fully-assembled About announcement: who sent it,
// what port to join, and the object/interface map.
type Announcement struct {
	BusName     string
	SessionPort uint16
	Objects     ObjectDescription
	Data        AboutData
}

// AboutAnnouncer builds Announcement values from a Registry's
// AnnouncedInterfaces, the Go analogue of AboutObj::Announce gathering
// m_objectDescription from every registered, announced BusObject.
type AboutAnnouncer struct {
	registry *Registry
	busName  string
	data     AboutData
	serial   atomic.Uint32
}

// NewAboutAnnouncer creates an announcer for objects registered in reg,
// to be announced under busName (the attachment's own unique or
// well-known name).
func NewAboutAnnouncer(reg *Registry, busName string, data AboutData) *AboutAnnouncer {
	if data.AppID == uuid.Nil {
		data.AppID = uuid.New()
	}
	return &AboutAnnouncer{registry: reg, busName: busName, data: data}
}

// BuildObjectDescription walks the registry and collects every
// non-placeholder object's announced interfaces, keyed by path.
// Placeholders and objects with no announced interfaces are omitted,
// matching AboutObj.cc's behavior of only describing objects that
// carry at least one AnnounceFlag-marked interface.
func (a *AboutAnnouncer) BuildObjectDescription() ObjectDescription {
	desc := make(ObjectDescription)
	a.registry.Walk(func(o *Object) {
		if o.IsPlaceholder() {
			return
		}
		names := o.AnnouncedInterfaces()
		if len(names) == 0 {
			return
		}
		sort.Strings(names)
		desc[o.Path()] = names
	})
	return desc
}

// Announce assembles an Announcement for sessionPort. It does not send
// anything; internal/dispatch or internal/transport is responsible for
// wrapping this into a sessionless signal message and pushing it, and
// internal/transport/mqttbridge wraps it for the MQTT reference feed.
func (a *AboutAnnouncer) Announce(sessionPort uint16) Announcement {
	a.serial.Add(1)
	return Announcement{
		BusName:     a.busName,
		SessionPort: sessionPort,
		Objects:     a.BuildObjectDescription(),
		Data:        a.data,
	}
}

// ImplementsAll reports whether desc describes at least one object that
// implements every interface in required (spec.md §4.4 "CheckRelevance").
func (desc ObjectDescription) ImplementsAll(required []string) (path string, ok bool) {
	for objPath, have := range desc {
		if containsAll(have, required) {
			return objPath, true
		}
	}
	return "", false
}

func containsAll(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}
