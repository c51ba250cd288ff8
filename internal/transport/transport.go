// Package transport defines the byte-stream contract a concrete
// transport (WebSocket, MQTT bridge, in-process loopback) implements to
// carry wire-encoded messages between an Endpoint and a peer (spec.md
// §5 "Transport"). The codec itself lives in internal/wire; this
// package only moves messages across a link and hands decoded messages
// to an Endpoint's Dispatch.
package transport

import (
	"context"
	"io"

	"github.com/allbus/corebus/internal/wire"
)

// Link is a single point-to-point connection carrying wire messages.
// Loopback hands over the *wire.Message itself, Handles included;
// wstransport.Link sends only what wire.Marshal encodes, which does not
// include the Handles vector. wstransport.Link and Loopback satisfy
// this (mqttbridge does not: it carries JSON announcements, not bus
// messages); internal/dispatch only depends on the narrower Sender interface
// it declares itself, so a Link is typically wrapped in a small adapter
// before being handed to dispatch.Config.Sender.
type Link interface {
	io.Closer

	// SendMessage delivers msg to the peer end of the link.
	SendMessage(msg *wire.Message) error

	// Recv blocks until the next message arrives, the link closes, or
	// ctx is cancelled.
	Recv(ctx context.Context) (*wire.Message, error)
}

// Dispatcher is the subset of *dispatch.Endpoint a transport needs to
// deliver inbound messages, kept narrow so transports don't import
// internal/dispatch just for this.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *wire.Message)
}

// Pump reads from link until it closes or ctx is cancelled, handing
// every decoded message to d.Dispatch. It is the shared read-loop shape
// every concrete transport in this package uses (grounded on
// internal/homeassistant/websocket.go's readLoop), factored out so each
// transport only has to implement Link.
func Pump(ctx context.Context, link Link, d Dispatcher) error {
	for {
		msg, err := link.Recv(ctx)
		if err != nil {
			return err
		}
		d.Dispatch(ctx, msg)
	}
}

// MaxFrame is the largest single encoded message this package will
// accept from a transport frame (wstransport's binary WebSocket
// message). wstransport carries one whole wire message per frame, so
// there is no need for the streaming
// fixed-header-then-body read loop internal/wire's own decoder supports
// over a raw byte stream.
const MaxFrame = 1 << 20

// EncodeFrame marshals msg into a single self-contained frame.
func EncodeFrame(msg *wire.Message) ([]byte, error) {
	return wire.Marshal(msg)
}

// DecodeFrame parses a single self-contained frame produced by
// EncodeFrame. Unlike a streaming reader it does not need to split the
// fixed header from the rest of the packet across separate reads: the
// whole frame is already in memory, so the fixed header, header fields,
// and body are sliced out of the one buffer.
func DecodeFrame(data []byte) (*wire.Message, error) {
	if len(data) < 16 {
		return nil, wire.ErrBadHeaderLen
	}
	var fixed [16]byte
	copy(fixed[:], data[:16])
	msg, err := wire.DecodeFixedHeader(fixed)
	if err != nil {
		return nil, err
	}
	pktSize, err := wire.InterpretHeader(msg, MaxFrame)
	if err != nil {
		return nil, err
	}
	rest := data[16:]
	if len(rest) < pktSize {
		return nil, wire.ErrBadBodyLen
	}
	headerFieldsLen := pad8(int(msg.HeaderLen))
	if err := wire.DecodeHeaderFields(msg, rest[:msg.HeaderLen]); err != nil {
		return nil, err
	}
	body := rest[headerFieldsLen:pktSize]
	wire.SetBody(msg, body)
	return msg, nil
}

func pad8(n int) int {
	if n%8 == 0 {
		return n
	}
	return n + (8 - n%8)
}
