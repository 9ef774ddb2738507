package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
)

// transport wraps one live Conn for a session: a cancel func that tears
// down its heartbeat and receive loops, and a write mutex since *websocket.Conn
// (and our Conn abstraction of it) is not safe for concurrent writers.
type transport struct {
	sessionID string
	conn      Conn

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex
	closed  atomic.Bool
}

func newTransport(sessionID string, conn Conn) *transport {
	ctx, cancel := context.WithCancel(context.Background())
	return &transport{sessionID: sessionID, conn: conn, ctx: ctx, cancel: cancel}
}

// send writes one frame, serialized against concurrent senders (the
// heartbeat loop and Orchestrator progress forwarding both call this).
func (t *transport) send(frameType string, payload any, hub *Hub) error {
	if t.closed.Load() {
		return ErrTransportClosed
	}

	data, err := json.Marshal(buildFrame(frameType, payload))
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := t.conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.markClosed(hub)
		return ErrTransportNotReady
	}
	return nil
}

// markClosed tears down the transport at most once, cancelling its loops
// and evicting it from the Hub's registry so a later Send for this session
// correctly reports ErrUnknownSession rather than writing into a dead
// socket.
func (t *transport) markClosed(hub *Hub) {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	t.cancel()
	if hub != nil {
		hub.evictTransport(t.sessionID, t)
	}
}
