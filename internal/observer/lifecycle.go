package observer

import (
	"sort"

	"github.com/allbus/corebus/internal/busobject"
)

// HandleAnnouncement processes one About announcement (spec.md §4.4
// "Peer lifecycle" steps 1, 2, and 4): new-and-relevant peers start an
// async JoinSession; active peers have their object set diffed against
// what was last seen.
func (e *Engine) HandleAnnouncement(ann busobject.Announcement) {
	e.enqueue(func(e *Engine) {
		e.mu.Lock()
		if p, ok := e.active[ann.BusName]; ok {
			e.mu.Unlock()
			e.diffActive(p, ann.Objects)
			return
		}
		if _, alreadyPending := e.pending[ann.BusName]; alreadyPending {
			e.mu.Unlock()
			return
		}
		relevant := e.checkRelevance(ann.Objects)
		e.mu.Unlock()
		if !relevant {
			return
		}

		p := &peer{busName: ann.BusName, port: ann.SessionPort, state: statePending, objects: snapshotObjects(ann.Objects)}
		e.mu.Lock()
		e.pending[ann.BusName] = p
		e.mu.Unlock()

		if e.joiner == nil {
			return
		}
		e.joiner.JoinSession(ann.BusName, ann.SessionPort, func(sessionID uint32, ok bool) {
			e.enqueue(func(e *Engine) { e.handleSessionResult(ann.BusName, sessionID, ok) })
		})
	})
}

// checkRelevance reports whether desc contains an object implementing
// every interface of at least one registered combination (spec.md §4.4
// "CheckRelevance"). Caller must hold e.mu.
func (e *Engine) checkRelevance(desc busobject.ObjectDescription) bool {
	for _, c := range e.combos {
		if _, ok := desc.ImplementsAll(c.interfaces); ok {
			return true
		}
	}
	return false
}

func snapshotObjects(desc busobject.ObjectDescription) map[string][]string {
	out := make(map[string][]string, len(desc))
	for path, ifcs := range desc {
		sorted := append([]string(nil), ifcs...)
		sort.Strings(sorted)
		out[path] = sorted
	}
	return out
}

// handleSessionResult moves a peer from pending to active on a
// successful join, adding it to the ping group and firing initial
// ObjectDiscovered callbacks for every matching combination (spec.md
// §4.4 step 3). A failed join just drops the pending entry.
func (e *Engine) handleSessionResult(busName string, sessionID uint32, ok bool) {
	e.mu.Lock()
	p, stillPending := e.pending[busName]
	if !stillPending {
		e.mu.Unlock()
		return
	}
	delete(e.pending, busName)
	if !ok {
		e.mu.Unlock()
		return
	}
	p.sessionID = sessionID
	p.state = stateActive
	e.active[busName] = p

	var callbacks []func()
	for path, ifcs := range p.objects {
		id := busobject.ObjectID{BusName: busName, Path: path}
		for _, c := range e.combos {
			if !containsAll(ifcs, c.interfaces) {
				continue
			}
			for _, l := range c.listeners {
				if !l.enabled {
					continue
				}
				l, ifcs, id, sid := l, ifcs, id, sessionID
				callbacks = append(callbacks, func() { l.handler.ObjectDiscovered(id, ifcs, sid) })
			}
		}
	}
	e.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// diffActive compares a fresh announcement against what the engine
// last knew about an active peer, firing ObjectLost for removed
// entries and ObjectDiscovered for added ones (spec.md §4.4 step 4). If
// nothing relevant remains afterward, the peer's session is left and
// the peer is dropped.
func (e *Engine) diffActive(p *peer, fresh busobject.ObjectDescription) {
	next := snapshotObjects(fresh)

	type event struct {
		discovered bool
		id         busobject.ObjectID
		ifcs       []string
	}
	var events []event

	e.mu.Lock()
	for path, oldIfcs := range p.objects {
		if _, stillThere := next[path]; !stillThere {
			events = append(events, event{discovered: false, id: busobject.ObjectID{BusName: p.busName, Path: path}, ifcs: oldIfcs})
		}
	}
	for path, newIfcs := range next {
		if _, hadBefore := p.objects[path]; !hadBefore {
			events = append(events, event{discovered: true, id: busobject.ObjectID{BusName: p.busName, Path: path}, ifcs: newIfcs})
		}
	}
	p.objects = next
	stillRelevant := e.checkRelevance(fresh)
	combosSnapshot := e.comboSnapshot()
	sessionID := p.sessionID
	e.mu.Unlock()

	for _, ev := range events {
		for _, c := range combosSnapshot {
			if !containsAll(ev.ifcs, c.interfaces) {
				continue
			}
			for _, l := range c.listeners {
				if !l.enabled {
					continue
				}
				if ev.discovered {
					l.handler.ObjectDiscovered(ev.id, ev.ifcs, sessionID)
				} else {
					l.handler.ObjectLost(ev.id)
				}
			}
		}
	}

	if !stillRelevant {
		e.dropPeer(p.busName)
	}
}

func (e *Engine) comboSnapshot() []*combination {
	out := make([]*combination, 0, len(e.combos))
	for _, c := range e.combos {
		out = append(out, c)
	}
	return out
}

// HandleSessionLost and HandleDestinationLost both remove a peer and
// report ObjectLost for every object it was known to implement (spec.md
// §4.4 step 5).
func (e *Engine) HandleSessionLost(busName string) {
	e.enqueue(func(e *Engine) { e.dropPeer(busName) })
}

func (e *Engine) HandleDestinationLost(busName string) {
	e.enqueue(func(e *Engine) { e.dropPeer(busName) })
}

func (e *Engine) dropPeer(busName string) {
	e.mu.Lock()
	p, ok := e.active[busName]
	if !ok {
		delete(e.pending, busName)
		e.mu.Unlock()
		return
	}
	delete(e.active, busName)
	sessionID := p.sessionID
	combosSnapshot := e.comboSnapshot()

	type lost struct {
		id  busobject.ObjectID
		ifc []string
	}
	var events []lost
	for path, ifcs := range p.objects {
		events = append(events, lost{id: busobject.ObjectID{BusName: busName, Path: path}, ifc: ifcs})
	}
	e.mu.Unlock()

	for _, ev := range events {
		for _, c := range combosSnapshot {
			if !containsAll(ev.ifc, c.interfaces) {
				continue
			}
			for _, l := range c.listeners {
				if !l.enabled {
					continue
				}
				l.handler.ObjectLost(ev.id)
			}
		}
	}

	if e.joiner != nil && sessionID != 0 {
		e.joiner.LeaveSession(busName, sessionID)
	}
}
