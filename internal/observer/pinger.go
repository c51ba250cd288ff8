package observer

import (
	"time"
)

// PingGroup tests liveness of every active peer and reports any that
// failed to respond, feeding the result into HandleDestinationLost
// (spec.md §4.4 "keep-alive pinger (group name OBSERVER, interval
// 30s)"). internal/transport/mqttbridge provides one implementation
// over the reference MQTT feed; tests use an in-process fake.
type PingGroup interface {
	Ping(busNames []string) (dead []string)
}

// Pinger drives PingGroup.Ping on interval and feeds dead bus names to
// the engine as DestinationLost events, as its own goroutine distinct
// from the engine's work-queue worker (spec.md §4.4).
type Pinger struct {
	engine   *Engine
	group    PingGroup
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewPinger creates a keep-alive pinger for engine using group at the
// given interval.
func NewPinger(engine *Engine, group PingGroup, interval time.Duration) *Pinger {
	return &Pinger{
		engine:   engine,
		group:    group,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the pinger's goroutine.
func (p *Pinger) Start() {
	go p.run()
}

func (p *Pinger) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.tick()
		case <-p.stop:
			return
		}
	}
}

func (p *Pinger) tick() {
	p.engine.mu.Lock()
	names := make([]string, 0, len(p.engine.active))
	for name := range p.engine.active {
		names = append(names, name)
	}
	p.engine.mu.Unlock()

	if len(names) == 0 {
		return
	}
	dead := p.group.Ping(names)
	for _, name := range dead {
		p.engine.HandleDestinationLost(name)
	}
}

// Stop halts the pinger and waits for its goroutine to exit.
func (p *Pinger) Stop() {
	close(p.stop)
	<-p.done
}
