package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/allbus/corebus/internal/wire"
)

// ErrLoopbackClosed is returned by Recv once the Loopback pair has been
// closed.
var ErrLoopbackClosed = errors.New("transport: loopback closed")

// Loopback is an in-process Link, one end of a connected pair produced
// by NewLoopbackPair. It exists for tests and for a single-process
// demo attachment that wants two Endpoints talking to each other
// without a real network transport.
type Loopback struct {
	out    chan<- *wire.Message
	in     <-chan *wire.Message
	closed chan struct{}
	once   *sync.Once
}

// NewLoopbackPair returns two Links wired to each other: a message sent
// on one arrives via Recv on the other.
func NewLoopbackPair() (a, b *Loopback) {
	ab := make(chan *wire.Message, 64)
	ba := make(chan *wire.Message, 64)
	closed := make(chan struct{})
	once := new(sync.Once)
	a = &Loopback{out: ab, in: ba, closed: closed, once: once}
	b = &Loopback{out: ba, in: ab, closed: closed, once: once}
	return a, b
}

// SendMessage implements Link.
func (l *Loopback) SendMessage(msg *wire.Message) error {
	select {
	case <-l.closed:
		return ErrLoopbackClosed
	default:
	}
	select {
	case l.out <- msg:
		return nil
	case <-l.closed:
		return ErrLoopbackClosed
	}
}

// Recv implements Link.
func (l *Loopback) Recv(ctx context.Context) (*wire.Message, error) {
	select {
	case msg := <-l.in:
		return msg, nil
	case <-l.closed:
		return nil, ErrLoopbackClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close implements io.Closer / Link. Closing either end of a pair
// unblocks both.
func (l *Loopback) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}
