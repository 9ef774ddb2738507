// Package gateway implements the Session Gateway: it terminates the
// bidirectional framed transport, owns the session→transport and
// session→orchestrator registries, and fans outbound messages out to
// clients with retry and drop-on-dead semantics (spec §4.1).
package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
)

// Conn is the subset of *websocket.Conn the Gateway depends on, so tests
// can substitute an in-memory fake instead of a real socket.
type Conn interface {
	Write(ctx context.Context, typ websocket.MessageType, data []byte) error
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Close(code websocket.StatusCode, reason string) error
}

// Inbound frame type names (spec §6).
const (
	frameInit             = "init"
	frameMessage          = "message"
	frameEnvVarsUploaded  = "env_vars_uploaded"
	framePong             = "pong"
)

// Outbound frame type names (spec §6).
const (
	FrameConnected        = "connected"
	FramePing             = "ping"
	FrameTyping           = "typing"
	FrameMessage          = "message"
	FrameDeploymentStarted = "deployment_started"
	FrameProgress         = "progress"
	FrameError            = "error"
)

// envelope is the generic `{"type": "..."}` wrapper every frame carries;
// the Gateway decodes into it first, then re-decodes the raw bytes into a
// type-specific struct once it knows what it's holding.
type envelope struct {
	Type string `json:"type"`
}

// initFrame is the one frame accept() requires as the very first message
// on a transport (spec §4.1 "accept").
type initFrame struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id"`
	InstanceID  string `json:"instance_id"`
	IsReconnect bool   `json:"is_reconnect"`
}

// messageFrame carries a user chat turn.
type messageFrame struct {
	Type     string         `json:"type"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// envVarAssignment is one entry of an env_vars_uploaded frame's variables
// list (spec §6).
type envVarAssignment struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	IsSecret bool   `json:"isSecret"`
}

type envVarsUploadedFrame struct {
	Type      string             `json:"type"`
	Variables []envVarAssignment `json:"variables"`
	Count     int                `json:"count"`
}

func decodeEnvelope(raw []byte) (envelope, error) {
	var env envelope
	err := json.Unmarshal(raw, &env)
	return env, err
}

// mergeOutbound flattens a frame type plus an arbitrary payload map into
// one JSON object with "type" alongside the payload's own fields, matching
// spec §6's flat per-type frame shapes (e.g. `connected {session_id,
// message}` rather than a nested "data" envelope, except for `message`
// frames which nest under "data" per spec).
func mergeOutbound(frameType string, payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out["type"] = frameType
	return out
}

// buildFrame renders an arbitrary payload (map or otherwise) into the wire
// shape for frameType. A map merges flat into the envelope; the message
// frame specifically nests under "data" instead, with its "timestamp" key
// (if present in the payload) hoisted back out as a sibling of "data" per
// spec §6's `message {data:{content, ...}, timestamp}` shape.
func buildFrame(frameType string, payload any) map[string]any {
	if m, ok := payload.(map[string]any); ok {
		if frameType != FrameMessage {
			return mergeOutbound(frameType, m)
		}
		ts, hasTS := m["timestamp"]
		if hasTS {
			rest := make(map[string]any, len(m)-1)
			for k, v := range m {
				if k != "timestamp" {
					rest[k] = v
				}
			}
			return map[string]any{"type": frameType, "data": rest, "timestamp": ts}
		}
	}
	return map[string]any{"type": frameType, "data": payload, "timestamp": time.Now().Format(time.RFC3339)}
}

const (
	initReadTimeout    = 10 * time.Second
	receiveIdleTimeout = 60 * time.Second
	heartbeatInterval  = 30 * time.Second
	sendRetryAttempts  = 3
	sendRetryDelay     = 500 * time.Millisecond
	writeTimeout       = 5 * time.Second
)

// websocketStatusNormalClosure is used when superseding a stale transport.
const websocketStatusNormalClosure = websocket.StatusNormalClosure
