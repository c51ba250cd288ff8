// Package observer implements the discovery engine: a single work queue
// that turns About announcements, session lifecycle events, and
// liveness pings into ordered ObjectDiscovered/ObjectLost callbacks for
// application listeners (spec.md §4.4).
package observer

import (
	"sort"
	"strings"
	"sync"

	"github.com/allbus/corebus/internal/busobject"
)

// SessionJoiner abstracts the session layer the engine drives: it asks
// to join a port on a discovered bus name and is told, asynchronously,
// whether the session came up. Non-goal transport/session internals
// (spec.md §1) live behind this interface; the engine only needs the
// lifecycle edge.
type SessionJoiner interface {
	JoinSession(busName string, port uint16, onJoined func(sessionID uint32, ok bool))
	LeaveSession(busName string, sessionID uint32)
}

// Discovery is the WhoImplements/CancelWhoImplements hook issued as
// combination refcounts go 0->1 and 1->0 (spec.md §4.4 "Interface-
// combination table").
type Discovery interface {
	WhoImplements(interfaces []string)
	CancelWhoImplements(interfaces []string)
}

// listener is one application registration against a combination.
type listener struct {
	id                int
	combinationKey    string
	handler           busobject.Observer
	triggerOnExisting bool
	enabled           bool
}

// combination is one entry of the interface-combination table.
type combination struct {
	interfaces []string // sorted, deduplicated
	listeners  []*listener
}

// peerState is pending (session requested, not yet up) or active
// (session live, objects tracked).
type peerState int

const (
	statePending peerState = iota
	stateActive
)

// peer tracks one remote bus attachment's discovered objects.
type peer struct {
	busName   string
	port      uint16
	sessionID uint32
	state     peerState
	// objects maps object path -> sorted interface names last seen for
	// that path, the "last known set" diffed on subsequent announcements
	// (spec.md §4.4 step 4).
	objects map[string][]string
}

// Engine is the discovery engine: one combination table, one peer set,
// and a single-consumer work queue (spec.md §4.4 "Work queue").
type Engine struct {
	joiner    SessionJoiner
	discovery Discovery

	mu         sync.Mutex
	combos     map[string]*combination
	pending    map[string]*peer
	active     map[string]*peer
	nextListID int

	work    chan func(*Engine)
	stopped chan struct{}
	wg      sync.WaitGroup
}

// New creates an Engine. Call Start to begin draining its work queue.
func New(joiner SessionJoiner, discovery Discovery) *Engine {
	return &Engine{
		joiner:    joiner,
		discovery: discovery,
		combos:    make(map[string]*combination),
		pending:   make(map[string]*peer),
		active:    make(map[string]*peer),
		work:      make(chan func(*Engine), 256),
		stopped:   make(chan struct{}),
	}
}

// Start launches the single worker goroutine that drains the queue
// (spec.md §4.4 "serialized on a single worker owned by the
// dispatcher"). Every queued func runs to completion before the next
// one starts — the engine's one concurrency rule.
func (e *Engine) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case fn := <-e.work:
				fn(e)
			case <-e.stopped:
				e.drain()
				return
			}
		}
	}()
}

// drain runs any work items still buffered in the channel after Stop,
// so a registration racing with shutdown is not silently lost.
func (e *Engine) drain() {
	for {
		select {
		case fn := <-e.work:
			fn(e)
		default:
			return
		}
	}
}

// Stop sets the stop bit; no new work is enqueued after Stop returns
// (spec.md §4.4 "Cancellation and shutdown").
func (e *Engine) Stop() {
	close(e.stopped)
}

// Join waits until the worker goroutine has drained the queue and
// exited.
func (e *Engine) Join() {
	e.wg.Wait()
}

func (e *Engine) enqueue(fn func(*Engine)) {
	select {
	case <-e.stopped:
		return
	default:
	}
	e.work <- fn
}

func combinationKey(interfaces []string) string {
	sorted := append([]string(nil), interfaces...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// Register adds an application listener for the given mandatory
// interface set. If this is the first listener for that combination,
// Discovery.WhoImplements is issued. When triggerOnExisting is true the
// listener starts disabled and a trigger-existing work item is
// scheduled so its initial snapshot callbacks cannot interleave with
// live announcements (spec.md §4.4 "Trigger-on-existing semantics").
func (e *Engine) Register(interfaces []string, handler busobject.Observer, triggerOnExisting bool) int {
	key := combinationKey(interfaces)
	id := 0
	done := make(chan struct{})
	e.enqueue(func(e *Engine) {
		e.mu.Lock()
		c, ok := e.combos[key]
		if !ok {
			c = &combination{interfaces: append([]string(nil), interfaces...)}
			sort.Strings(c.interfaces)
			e.combos[key] = c
		}
		e.nextListID++
		id = e.nextListID
		l := &listener{id: id, combinationKey: key, handler: handler, triggerOnExisting: triggerOnExisting, enabled: !triggerOnExisting}
		c.listeners = append(c.listeners, l)
		firstForCombo := len(c.listeners) == 1
		e.mu.Unlock()

		if firstForCombo && e.discovery != nil {
			e.discovery.WhoImplements(c.interfaces)
		}
		close(done)

		if triggerOnExisting {
			e.triggerExisting(key, l)
		}
	})
	<-done
	return id
}

// triggerExisting delivers ObjectDiscovered for every currently known
// object implementing the combination's interfaces, then enables the
// listener for live traffic.
func (e *Engine) triggerExisting(key string, l *listener) {
	e.mu.Lock()
	c, ok := e.combos[key]
	if !ok {
		e.mu.Unlock()
		return
	}
	interfaces := append([]string(nil), c.interfaces...)
	type hit struct {
		id   busobject.ObjectID
		ifcs []string
		sid  uint32
	}
	var hits []hit
	for _, p := range e.active {
		for path, ifcsHave := range p.objects {
			if containsAll(ifcsHave, interfaces) {
				hits = append(hits, hit{id: busobject.ObjectID{BusName: p.busName, Path: path}, ifcs: ifcsHave, sid: p.sessionID})
			}
		}
	}
	e.mu.Unlock()

	for _, h := range hits {
		l.handler.ObjectDiscovered(h.id, h.ifcs, h.sid)
	}

	e.mu.Lock()
	l.enabled = true
	e.mu.Unlock()
}

// Unregister removes a listener by the id Register returned. If it was
// the last listener for its combination, Discovery.CancelWhoImplements
// is issued and the combination entry is dropped.
func (e *Engine) Unregister(id int) {
	e.enqueue(func(e *Engine) {
		e.mu.Lock()
		var key string
		var combo *combination
		for k, c := range e.combos {
			for i, l := range c.listeners {
				if l.id == id {
					c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
					key = k
					combo = c
					break
				}
			}
			if combo != nil {
				break
			}
		}
		if combo == nil {
			e.mu.Unlock()
			return
		}
		empty := len(combo.listeners) == 0
		if empty {
			delete(e.combos, key)
		}
		interfaces := append([]string(nil), combo.interfaces...)
		e.mu.Unlock()

		if empty && e.discovery != nil {
			e.discovery.CancelWhoImplements(interfaces)
		}
	})
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
