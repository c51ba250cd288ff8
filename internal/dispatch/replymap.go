package dispatch

import (
	"sync"
	"time"

	"github.com/allbus/corebus/internal/wire"
)

// ReplyContext is registered against the serial of an outbound method
// call so the matching return or error message can be routed back to
// the caller (spec.md §4.2 "Reply map").
type ReplyContext struct {
	Serial            uint32
	Handler           func(*wire.Message)
	ExpectedSignature string // "*" means accept any signature
	RequireEncryption bool
	timer             *time.Timer
}

// ReplyMap correlates outbound method-call serials to the context that
// should handle the matching reply, with a per-entry timeout timer.
// Grounded on internal/scheduler.Scheduler's map[string]*time.Timer
// pattern and internal/homeassistant/websocket.go's
// pending map[int64]chan wsResponse reply-correlation idiom, generalized
// from "resolve a channel" to "invoke a handler".
type ReplyMap struct {
	mu      sync.Mutex
	entries map[uint32]*ReplyContext
}

// NewReplyMap creates an empty map.
func NewReplyMap() *ReplyMap {
	return &ReplyMap{entries: make(map[uint32]*ReplyContext)}
}

// Register records ctx under ctx.Serial and arms a timeout timer. When
// the timer fires before Resolve/Cancel runs, onTimeout is invoked with
// the context removed from the map exactly once.
func (m *ReplyMap) Register(ctx *ReplyContext, timeout time.Duration, onTimeout func(*ReplyContext)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx.timer = time.AfterFunc(timeout, func() {
		m.mu.Lock()
		_, stillPending := m.entries[ctx.Serial]
		if stillPending {
			delete(m.entries, ctx.Serial)
		}
		m.mu.Unlock()
		if stillPending {
			onTimeout(ctx)
		}
	})
	m.entries[ctx.Serial] = ctx
}

// Resolve removes and returns the context registered for serial, if
// any, stopping its timer. The caller invokes ctx.Handler(msg) itself
// after the map's lock is released (spec.md §5 "Shared-resource
// policy": mutators copy out a minimal snapshot, release the lock, and
// invoke external code with no lock held).
func (m *ReplyMap) Resolve(serial uint32) (*ReplyContext, bool) {
	m.mu.Lock()
	ctx, ok := m.entries[serial]
	if ok {
		delete(m.entries, serial)
	}
	m.mu.Unlock()
	if ok {
		ctx.timer.Stop()
	}
	return ctx, ok
}

// Cancel removes serial's context without invoking it, used when a
// synchronous waiter is aborted (spec.md §5 "Abort sentinel").
func (m *ReplyMap) Cancel(serial uint32) (*ReplyContext, bool) {
	return m.Resolve(serial)
}

// Len reports the number of outstanding reply contexts.
func (m *ReplyMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Drain removes every outstanding context and returns them, stopping
// their timers, so shutdown can synthesize an Exiting reply for each
// (spec.md §4.2 "On shutdown, the synthesized error is Exiting").
func (m *ReplyMap) Drain() []*ReplyContext {
	m.mu.Lock()
	out := make([]*ReplyContext, 0, len(m.entries))
	for serial, ctx := range m.entries {
		out = append(out, ctx)
		delete(m.entries, serial)
	}
	m.mu.Unlock()
	for _, ctx := range out {
		ctx.timer.Stop()
	}
	return out
}
