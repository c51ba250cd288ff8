package wire

import (
	"errors"
	"io"
	"time"
)

// ReceiveState names a step of the receive state machine (spec.md §4.1).
type ReceiveState int

const (
	StateNew ReceiveState = iota
	StateHeaderFields
	StateHeaderBody
	StateComplete
)

// ErrTimeout is returned by a nonblocking Step when fewer bytes are
// available than the current state needs.
var ErrTimeout = errors.New("wire: receive would block")

// FDSource optionally accompanies a transport's byte stream with
// out-of-band file descriptors delivered atomically with a read
// (spec.md §6 transport contract). Implementations that never carry
// handles may return a no-op FDSource.
type FDSource interface {
	// TakeFDs returns (and clears) any file descriptors that arrived
	// with the most recent read, up to max.
	TakeFDs(max int) []int32
}

// Receiver drives the New -> HeaderFields -> HeaderBody -> Complete
// state machine over a byte stream, producing one Message per cycle.
type Receiver struct {
	state     ReceiveState
	fixed     [16]byte
	fixedRead int

	msg        *Message
	pktSize    int
	headerPad  int
	body       []byte
	bodyRead   int
	maxPacket  int
	maxHandles int
	fds        FDSource
}

// NewReceiver creates a Receiver bounded by maxPacket (spec.md §6,
// default 128 KiB) and accepting at most maxHandles file descriptors per
// message. fds may be nil if the transport never carries handles.
func NewReceiver(maxPacket, maxHandles int, fds FDSource) *Receiver {
	return &Receiver{state: StateNew, maxPacket: maxPacket, maxHandles: maxHandles, fds: fds}
}

// Reset returns the receiver to StateNew, discarding any partially read
// message. Used after a framing error to resynchronize (callers
// typically close the connection instead, but Reset supports reuse in
// tests).
func (r *Receiver) Reset() {
	*r = Receiver{state: StateNew, maxPacket: r.maxPacket, maxHandles: r.maxHandles, fds: r.fds}
}

// State returns the receiver's current state.
func (r *Receiver) State() ReceiveState { return r.state }

// Step advances the state machine by reading from src. It returns
// (message, nil) only when a complete message has been decoded; callers
// should loop calling Step until that happens. Step applies no timeout
// of its own: a read blocks for as long as src.Read blocks, and an error
// from src (for example ErrTimeout from a nonblocking wrapper) is
// returned unchanged, except that a short read is reported as io.EOF.
// ScaledTimeout computes the scaled blocking timeout, but Step does not
// use it.
func (r *Receiver) Step(src io.Reader) (*Message, error) {
	for {
		switch r.state {
		case StateNew:
			r.fixedRead = 0
			r.state = StateHeaderFields
			fallthrough
		case StateHeaderFields:
			n, err := io.ReadFull(src, r.fixed[r.fixedRead:])
			r.fixedRead += n
			if err != nil {
				if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
					return nil, io.EOF
				}
				return nil, err
			}
			msg, err := DecodeFixedHeader(r.fixed)
			if err != nil {
				return nil, err
			}
			pktSize, err := InterpretHeader(msg, r.maxPacket)
			if err != nil {
				return nil, err
			}
			r.msg = msg
			r.pktSize = pktSize
			r.headerPad = pad8(int(msg.HeaderLen))
			r.body = make([]byte, pktSize+8) // +8 trailing zero guard bytes (spec.md §4.1)
			r.bodyRead = 0
			r.state = StateHeaderBody
			continue
		case StateHeaderBody:
			n, err := io.ReadFull(src, r.body[r.bodyRead:r.pktSize])
			r.bodyRead += n
			if err != nil {
				if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
					return nil, io.EOF
				}
				return nil, err
			}
			headerBytes := r.body[:r.msg.HeaderLen]
			if err := DecodeHeaderFields(r.msg, headerBytes); err != nil {
				return nil, err
			}
			if err := r.msg.HeaderChecks(r.maxPacket); err != nil {
				return nil, err
			}
			bodyBytes := r.body[r.headerPad:r.pktSize]
			SetBody(r.msg, bodyBytes)
			if r.fds != nil {
				r.msg.Handles = r.fds.TakeFDs(r.maxHandles)
			}
			r.msg.Timestamp = time.Now()
			r.state = StateComplete
			msg := r.msg
			r.state = StateNew
			return msg, nil
		case StateComplete:
			r.state = StateNew
			continue
		}
	}
}

// ScaledTimeout returns the blocking-read timeout for a read that still
// needs countRemaining bytes, per spec.md §4.1: 20s plus half a
// millisecond per remaining byte.
func ScaledTimeout(countRemaining int) time.Duration {
	return 20*time.Second + time.Duration(countRemaining/2)*time.Millisecond
}
