package gateway

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdeck/launchdeck/internal/analyzer"
	"github.com/launchdeck/launchdeck/internal/broker"
	"github.com/launchdeck/launchdeck/internal/orchestrator"
	"github.com/launchdeck/launchdeck/internal/pipeline"
	"github.com/launchdeck/launchdeck/internal/progress"
	"github.com/launchdeck/launchdeck/internal/recipe"
	"github.com/launchdeck/launchdeck/internal/session"
)

// fakeConn is an in-memory Conn: inbound frames are queued by the test,
// outbound writes are recorded, and Read blocks until either a queued
// frame is available or the context is cancelled/deadline elapses.
type fakeConn struct {
	mu      sync.Mutex
	inbound [][]byte
	written [][]byte
	closed  bool
}

func newFakeConn(frames ...map[string]any) *fakeConn {
	c := &fakeConn{}
	for _, f := range frames {
		raw, _ := json.Marshal(f)
		c.inbound = append(c.inbound, raw)
	}
	return c
}

func (c *fakeConn) Write(ctx context.Context, typ websocket.MessageType, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.ErrClosedPipe
	}
	cp := append([]byte(nil), data...)
	c.written = append(c.written, cp)
	return nil
}

func (c *fakeConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return 0, nil, io.EOF
		}
		if len(c.inbound) > 0 {
			next := c.inbound[0]
			c.inbound = c.inbound[1:]
			c.mu.Unlock()
			return websocket.MessageText, next, nil
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (c *fakeConn) Close(code websocket.StatusCode, reason string) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) framesOfType(frameType string) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, raw := range c.written {
		var m map[string]any
		if json.Unmarshal(raw, &m) == nil && m["type"] == frameType {
			out = append(out, m)
		}
	}
	return out
}

type fakeProvider struct{ text string }

func (f *fakeProvider) Name() string { return "primary" }
func (f *fakeProvider) Send(ctx context.Context, history []broker.Message, tools []broker.ToolDefinition) (*broker.Response, error) {
	return &broker.Response{Text: f.text}, nil
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return NewHub(func(s *session.Session) *orchestrator.Orchestrator {
		b := broker.NewBroker(&fakeProvider{text: "hello"}, nil, "system", nil)
		eng := &pipeline.Engine{Analyzer: analyzer.New(nil), Recipe: recipe.New(nil), Bus: progress.NewBus()}
		return orchestrator.New(s.ID, s.Context, b, eng, progress.NewBus(), orchestrator.CloudConfig{})
	})
}

func TestGateway_AcceptRequiresInitFrame(t *testing.T) {
	hub := newTestHub(t)
	gw := New(hub, nil)
	conn := newFakeConn(map[string]any{"type": "message", "message": "hi"})

	err := gw.Accept(context.Background(), conn)
	require.Error(t, err)
}

func TestGateway_AcceptSendsConnectedAndReplies(t *testing.T) {
	hub := newTestHub(t)
	gw := New(hub, nil)
	conn := newFakeConn(
		map[string]any{"type": "init", "session_id": "sess-1", "instance_id": "inst-1"},
		map[string]any{"type": "message", "message": "hi there"},
	)

	done := make(chan error, 1)
	go func() { done <- gw.Accept(context.Background(), conn) }()

	require.Eventually(t, func() bool {
		return len(conn.framesOfType(FrameMessage)) > 0
	}, 2*time.Second, 5*time.Millisecond)

	conn.Close(websocket.StatusNormalClosure, "test done")
	<-done

	connected := conn.framesOfType(FrameConnected)
	require.Len(t, connected, 1)
	assert.Equal(t, "sess-1", connected[0]["session_id"])

	messages := conn.framesOfType(FrameMessage)
	require.NotEmpty(t, messages)
}

func TestHub_ReconnectClosesPriorTransport(t *testing.T) {
	hub := newTestHub(t)
	gw := New(hub, nil)

	firstConn := newFakeConn(map[string]any{"type": "init", "session_id": "sess-2", "instance_id": "a"})
	firstDone := make(chan error, 1)
	go func() { firstDone <- gw.Accept(context.Background(), firstConn) }()

	require.Eventually(t, func() bool {
		return len(firstConn.framesOfType(FrameConnected)) > 0
	}, 2*time.Second, 5*time.Millisecond)

	secondConn := newFakeConn(map[string]any{"type": "init", "session_id": "sess-2", "instance_id": "a", "is_reconnect": true})
	secondDone := make(chan error, 1)
	go func() { secondDone <- gw.Accept(context.Background(), secondConn) }()

	require.Eventually(t, func() bool {
		return len(secondConn.framesOfType(FrameConnected)) > 0
	}, 2*time.Second, 5*time.Millisecond)

	firstConn.mu.Lock()
	closed := firstConn.closed
	firstConn.mu.Unlock()
	assert.True(t, closed, "the superseded transport must be closed on reconnect")

	secondConn.Close(websocket.StatusNormalClosure, "test done")
	<-secondDone
}

func TestHub_SendToUnknownSessionFails(t *testing.T) {
	hub := newTestHub(t)
	err := hub.Send("no-such-session", FramePing, map[string]any{})
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestHub_ReclaimSkipsSessionWithLiveTransport(t *testing.T) {
	hub := newTestHub(t)
	gw := New(hub, nil)
	conn := newFakeConn(map[string]any{"type": "init", "session_id": "sess-3", "instance_id": "a"})
	done := make(chan error, 1)
	go func() { done <- gw.Accept(context.Background(), conn) }()

	require.Eventually(t, func() bool {
		return len(conn.framesOfType(FrameConnected)) > 0
	}, 2*time.Second, 5*time.Millisecond)

	assert.False(t, hub.Reclaim("sess-3"), "a session with a live transport must never be reclaimed")

	conn.Close(websocket.StatusNormalClosure, "test done")
	<-done
}
