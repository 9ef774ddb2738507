package gateway

import (
	"errors"
	"sync"
	"time"

	"github.com/launchdeck/launchdeck/internal/orchestrator"
	"github.com/launchdeck/launchdeck/internal/session"
)

// Errors returned by Send, distinguished per spec §4.1 so callers can tell
// "retry later" from "give up".
var (
	ErrUnknownSession    = errors.New("gateway: unknown session")
	ErrTransportNotReady = errors.New("gateway: transport not in a sendable state")
	ErrTransportClosed   = errors.New("gateway: transport already closed")
)

// OrchestratorFactory builds a fresh Orchestrator for a newly created
// Session; the Hub calls it at most once per session id.
type OrchestratorFactory func(s *session.Session) *orchestrator.Orchestrator

// Hub owns the two process-wide registries spec §5 names: session→
// transport and session→orchestrator. Both are guarded by their own mutex
// since cleanup (the sweeper) reads stale state from a different goroutine
// than the Gateway's own message handling (spec §5 "reads by background
// cleanup are tolerated to be stale").
type Hub struct {
	newOrchestrator OrchestratorFactory

	mu         sync.RWMutex
	sessions   map[string]*session.Session
	orchs      map[string]*orchestrator.Orchestrator

	transportsMu sync.RWMutex
	transports   map[string]*transport
}

// NewHub constructs an empty Hub. factory is called once per session id to
// build that session's Orchestrator.
func NewHub(factory OrchestratorFactory) *Hub {
	return &Hub{
		newOrchestrator: factory,
		sessions:        make(map[string]*session.Session),
		orchs:           make(map[string]*orchestrator.Orchestrator),
		transports:      make(map[string]*transport),
	}
}

// sessionAndOrchestrator returns the existing Session/Orchestrator pair for
// id, creating both lazily on first contact (spec §3 "created lazily on
// first message").
func (h *Hub) sessionAndOrchestrator(id, instanceID string) (*session.Session, *orchestrator.Orchestrator) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[id]
	if !ok {
		s = session.New(id, instanceID)
		h.sessions[id] = s
		h.orchs[id] = h.newOrchestrator(s)
	}
	return s, h.orchs[id]
}

// currentTransport returns the live transport bound to a session id, if any.
func (h *Hub) currentTransport(sessionID string) (*transport, bool) {
	h.transportsMu.RLock()
	defer h.transportsMu.RUnlock()
	t, ok := h.transports[sessionID]
	return t, ok
}

// installTransport closes any prior transport for sessionID (cancelling its
// heartbeat) before installing the new one, per spec §4.1 "accept" and
// testable property #1 "Single live transport".
func (h *Hub) installTransport(sessionID string, t *transport) {
	h.transportsMu.Lock()
	prior, ok := h.transports[sessionID]
	h.transports[sessionID] = t
	h.transportsMu.Unlock()

	if ok {
		prior.cancel()
		_ = prior.conn.Close(websocketStatusNormalClosure, "superseded by reconnect")
	}
}

// evictTransport removes the session→transport binding if it still points
// at t (a newer transport may already have replaced it, in which case this
// is a no-op — we must never evict someone else's live transport).
func (h *Hub) evictTransport(sessionID string, t *transport) {
	h.transportsMu.Lock()
	if cur, ok := h.transports[sessionID]; ok && cur == t {
		delete(h.transports, sessionID)
	}
	h.transportsMu.Unlock()
}

// Send implements spec §4.1 "send": look up the session's transport and
// write one frame, distinguishing unknown-session, not-sendable, and
// already-closed failures.
func (h *Hub) Send(sessionID, frameType string, payload any) error {
	t, ok := h.currentTransport(sessionID)
	if !ok {
		return ErrUnknownSession
	}
	return t.send(frameType, payload, h)
}

// SendWithRetry implements the broadcaster retry policy spec §4.1
// prescribes for generic transient send failures: up to 3 attempts, 500ms
// apart. A closed or unknown-session failure is not retried — retrying
// those can't succeed.
func (h *Hub) SendWithRetry(sessionID, frameType string, payload any) error {
	var lastErr error
	for attempt := 0; attempt < sendRetryAttempts; attempt++ {
		err := h.Send(sessionID, frameType, payload)
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrUnknownSession) || errors.Is(err, ErrTransportClosed) {
			return err
		}
		time.Sleep(sendRetryDelay)
	}
	return lastErr
}

// SweepableSessionIDs returns every session id currently transport-less,
// for the cleanup sweeper (spec §5, §9 "Background cleanup sweeper").
func (h *Hub) SweepableSessionIDs() []string {
	h.mu.RLock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	var out []string
	for _, id := range ids {
		if _, hasTransport := h.currentTransport(id); !hasTransport {
			out = append(out, id)
		}
	}
	return out
}

// LastSeen returns the session's last-seen timestamp, or the zero time if
// the session is unknown.
func (h *Hub) LastSeen(sessionID string) time.Time {
	h.mu.RLock()
	s, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return time.Time{}
	}
	return s.LastSeen()
}

// OrchestratorRunning reports whether sessionID's Orchestrator currently
// owns an in-flight pipeline (spec §5 "never reclaim one currently
// executing a pipeline").
func (h *Hub) OrchestratorRunning(sessionID string) bool {
	h.mu.RLock()
	o, ok := h.orchs[sessionID]
	h.mu.RUnlock()
	return ok && o.Running()
}

// Reclaim evicts a transport-less, non-running session's Orchestrator and
// Session from the registries (spec §5 sweeper). It is a no-op if the
// session now has a transport or an active pipeline, so a caller holding a
// stale SweepableSessionIDs snapshot can never reclaim live work.
func (h *Hub) Reclaim(sessionID string) bool {
	if _, hasTransport := h.currentTransport(sessionID); hasTransport {
		return false
	}
	if h.OrchestratorRunning(sessionID) {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	// Re-check under the write lock: both conditions above are snapshots
	// from other locks and could have changed.
	if _, hasTransport := h.currentTransport(sessionID); hasTransport {
		return false
	}
	if o, ok := h.orchs[sessionID]; ok && o.Running() {
		return false
	}
	delete(h.sessions, sessionID)
	delete(h.orchs, sessionID)
	return true
}
