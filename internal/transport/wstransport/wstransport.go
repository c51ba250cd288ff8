// Package wstransport carries bus messages over a WebSocket connection,
// one transport.EncodeFrame'd message per binary WebSocket frame. It is
// grounded on internal/homeassistant/websocket.go's dial/reconnect/
// pending-request idiom, adapted from that package's JSON request/
// response protocol to this bus's binary wire.Message frames.
package wstransport

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/allbus/corebus/internal/transport"
	"github.com/allbus/corebus/internal/wire"
)

// Link is a transport.Link backed by a single WebSocket connection.
type Link struct {
	conn   *websocket.Conn
	connMu sync.Mutex
	log    *slog.Logger
}

// Dial opens a WebSocket connection to rawURL (ws:// or wss://) and
// returns a ready-to-use Link. Unlike WSClient.Connect there is no
// application-level auth handshake here — that belongs to whatever
// sits above the bus transport (e.g. a reverse proxy or the broker
// itself).
func Dial(ctx context.Context, rawURL string, log *slog.Logger) (*Link, error) {
	if log == nil {
		log = slog.Default()
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("wstransport: parse url: %w", err)
	}
	dialer := websocket.Dialer{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("wstransport: dial: %w", err)
	}
	conn.SetReadLimit(transport.MaxFrame)
	return &Link{conn: conn, log: log.With("component", "wstransport")}, nil
}

// Accept wraps an already-upgraded server-side connection (from
// websocket.Upgrader.Upgrade) as a Link.
func Accept(conn *websocket.Conn, log *slog.Logger) *Link {
	if log == nil {
		log = slog.Default()
	}
	conn.SetReadLimit(transport.MaxFrame)
	return &Link{conn: conn, log: log.With("component", "wstransport")}
}

// SendMessage implements transport.Link.
func (l *Link) SendMessage(msg *wire.Message) error {
	frame, err := transport.EncodeFrame(msg)
	if err != nil {
		return fmt.Errorf("wstransport: encode: %w", err)
	}
	l.connMu.Lock()
	defer l.connMu.Unlock()
	return l.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// Recv implements transport.Link. It ignores ctx once the blocking
// ReadMessage call has started (gorilla/websocket has no per-call
// context support); callers that need cancellation should close the
// Link from another goroutine, which unblocks ReadMessage with an
// error.
func (l *Link) Recv(ctx context.Context) (*wire.Message, error) {
	_, data, err := l.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return transport.DecodeFrame(data)
}

// Close implements io.Closer / transport.Link.
func (l *Link) Close() error {
	l.connMu.Lock()
	defer l.connMu.Unlock()
	return l.conn.Close()
}

// Sender adapts a Link to dispatch.Sender (internal/dispatch's view of
// an outbound transport), so a Link can be handed directly to
// dispatch.Config.Sender.
type Sender struct {
	Link *Link
}

// Send implements dispatch.Sender.
func (s Sender) Send(msg *wire.Message) error {
	return s.Link.SendMessage(msg)
}
