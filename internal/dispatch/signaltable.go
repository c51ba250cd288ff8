package dispatch

import (
	"sync"

	"github.com/allbus/corebus/internal/busobject"
	"github.com/allbus/corebus/internal/wire"
)

// MatchRule filters which signals a registered handler receives, a
// minimal subset of the D-Bus match-rule grammar: sender and/or path
// filters, each empty meaning "match any".
type MatchRule struct {
	Sender string
	Path   string
}

func (r MatchRule) matches(m *wire.Message) bool {
	if r.Sender != "" {
		sender, _ := m.Sender()
		if r.Sender != sender {
			return false
		}
	}
	if r.Path != "" {
		path, _ := m.Path()
		if r.Path != path {
			return false
		}
	}
	return true
}

type signalRow struct {
	rule    MatchRule
	handler busobject.SignalHandler
}

type signalKey struct {
	interfaceName string
	member        string
}

// SignalTable is the endpoint's (interface, member) -> handler-list
// multimap (spec.md §4.2 "Signal table").
type SignalTable struct {
	mu   sync.Mutex
	rows map[signalKey][]signalRow
}

// NewSignalTable creates an empty table.
func NewSignalTable() *SignalTable {
	return &SignalTable{rows: make(map[signalKey][]signalRow)}
}

// Add registers handler for (interfaceName, member) signals matching
// rule.
func (t *SignalTable) Add(interfaceName, member string, rule MatchRule, handler busobject.SignalHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := signalKey{interfaceName, member}
	t.rows[key] = append(t.rows[key], signalRow{rule: rule, handler: handler})
}

// Remove drops every row for (interfaceName, member) whose rule equals
// rule. There is no handler identity comparison in Go for arbitrary
// funcs, so callers that need precise removal should scope one rule per
// registration (the common case — see internal/proxy).
func (t *SignalTable) Remove(interfaceName, member string, rule MatchRule) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := signalKey{interfaceName, member}
	rows := t.rows[key]
	out := rows[:0]
	for _, r := range rows {
		if r.rule != rule {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		delete(t.rows, key)
	} else {
		t.rows[key] = out
	}
}

// Matching returns a snapshot of handlers whose match rule accepts msg
// for (interfaceName, member). The table's lock is held only while
// copying this slice — matching and invocation happen after release,
// per spec.md §4.2 "the handler list is then copied and released before
// invocation so listeners may re-enter the endpoint".
func (t *SignalTable) Matching(interfaceName, member string, msg *wire.Message) []busobject.SignalHandler {
	t.mu.Lock()
	rows := append([]signalRow(nil), t.rows[signalKey{interfaceName, member}]...)
	t.mu.Unlock()

	var out []busobject.SignalHandler
	for _, r := range rows {
		if r.rule.matches(msg) {
			out = append(out, r.handler)
		}
	}
	return out
}
