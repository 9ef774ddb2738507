// Package gateway implements the Session Gateway (spec §4.1): accept,
// send, heartbeat loop, and receive loop over a framed JSON transport, plus
// the process-wide session registries (hub.go) and the sweeper's read
// surface onto them.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/coder/websocket"

	"github.com/launchdeck/launchdeck/internal/orchestrator"
	"github.com/launchdeck/launchdeck/internal/session"
	"github.com/launchdeck/launchdeck/internal/taxonomy"
)

// Gateway terminates client transports and drives each session's
// Orchestrator from the frames it receives.
type Gateway struct {
	hub *Hub
	log *slog.Logger
}

// New constructs a Gateway over hub. log may be nil, in which case a
// default logger is used.
func New(hub *Hub, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{hub: hub, log: log}
}

// Accept implements spec §4.1 "accept": read the first frame as an init
// frame, bind (or rebind) the session's transport, announce readiness, then
// run the receive loop and heartbeat loop until the transport dies.
// Accept blocks for the lifetime of the connection.
func (g *Gateway) Accept(parent context.Context, conn Conn) error {
	initCtx, cancel := context.WithTimeout(parent, initReadTimeout)
	typ, raw, err := conn.Read(initCtx)
	cancel()
	if err != nil {
		return err
	}
	if typ != websocket.MessageText {
		return errors.New("gateway: init frame must be text")
	}

	env, err := decodeEnvelope(raw)
	if err != nil || env.Type != frameInit {
		return errors.New("gateway: first frame must be of type init")
	}
	var init initFrame
	if err := json.Unmarshal(raw, &init); err != nil || init.SessionID == "" {
		return errors.New("gateway: init frame missing session_id")
	}

	sess, orch := g.hub.sessionAndOrchestrator(init.SessionID, init.InstanceID)
	sess.Touch()

	t := newTransport(init.SessionID, conn)
	g.hub.installTransport(init.SessionID, t)
	defer g.hub.evictTransport(init.SessionID, t)
	defer t.cancel()

	if err := t.send(FrameConnected, map[string]any{
		"session_id": init.SessionID,
		"message":    "connected",
	}, g.hub); err != nil {
		return err
	}

	go g.heartbeatLoop(t)

	return g.receiveLoop(t, sess, orch)
}

// heartbeatLoop sends a ping every heartbeatInterval until the transport's
// context is cancelled, i.e. it is superseded or dies (spec §4.1
// "heartbeat loop").
func (g *Gateway) heartbeatLoop(t *transport) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			if err := t.send(FramePing, map[string]any{}, g.hub); err != nil {
				return
			}
		}
	}
}

// receiveLoop implements spec §4.1 "receive loop": a read that idles for up
// to receiveIdleTimeout is not fatal (the heartbeat keeps the connection
// alive); any other read error means the transport is gone and Accept
// returns.
func (g *Gateway) receiveLoop(t *transport, sess *session.Session, orch *orchestrator.Orchestrator) error {
	for {
		select {
		case <-t.ctx.Done():
			return nil
		default:
		}

		readCtx, cancel := context.WithTimeout(context.Background(), receiveIdleTimeout)
		typ, raw, err := t.conn.Read(readCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			t.markClosed(g.hub)
			return err
		}
		if typ != websocket.MessageText {
			continue
		}

		sess.Touch()
		if err := g.dispatchInbound(t, sess, orch, raw); err != nil {
			g.log.Error("gateway: dispatch failed", "session_id", sess.ID, "error", err)
		}
	}
}

// dispatchInbound decodes one inbound frame and routes it per spec §6.
func (g *Gateway) dispatchInbound(t *transport, sess *session.Session, orch *orchestrator.Orchestrator, raw []byte) error {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return err
	}

	switch env.Type {
	case frameMessage:
		var frame messageFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return err
		}
		return g.handleMessage(t, orch, frame)
	case frameEnvVarsUploaded:
		var frame envVarsUploadedFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return err
		}
		g.handleEnvVarsUploaded(orch, frame)
		return nil
	case framePong:
		return nil
	default:
		g.log.Warn("gateway: unrecognized inbound frame type", "type", env.Type, "session_id", sess.ID)
		return nil
	}
}

// handleMessage drives the Orchestrator for one chat turn and sends back
// the resulting "message" frame, or an "error" frame on failure (spec
// §4.2, §6).
func (g *Gateway) handleMessage(t *transport, orch *orchestrator.Orchestrator, frame messageFrame) error {
	send := func(frameType string, payload any) error {
		return t.send(frameType, payload, g.hub)
	}

	if err := t.send(FrameTyping, map[string]any{}, g.hub); err != nil {
		return err
	}

	resp, err := orch.Process(context.Background(), frame.Message, orchestrator.SendFunc(send))
	if err != nil {
		code := taxonomy.OutboundCode(taxonomy.KindModelTransient)
		if tErr, ok := err.(*taxonomy.Error); ok {
			code = taxonomy.OutboundCode(tErr.Kind)
		}
		return t.send(FrameError, map[string]any{
			"message":   err.Error(),
			"code":      code,
			"timestamp": time.Now().Format(time.RFC3339),
		}, g.hub)
	}

	payload := map[string]any{
		"content":          resp.Text,
		"request_env_vars": resp.RequestEnvVars,
		"detected_env_vars": resp.DetectedEnvVars,
		"actions":          resp.Actions,
	}
	if resp.Intent != "" {
		payload["intent"] = resp.Intent
	}
	if resp.DeploymentURL != "" {
		payload["deployment_url"] = resp.DeploymentURL
	}
	if resp.Data != nil {
		payload["data"] = resp.Data
	}
	return t.send(FrameMessage, payload, g.hub)
}

// handleEnvVarsUploaded merges an env-vars-uploaded frame into the
// session's ProjectContext, replacing any prior assignment of the same key
// (spec §3 "EnvVars").
func (g *Gateway) handleEnvVarsUploaded(orch *orchestrator.Orchestrator, frame envVarsUploadedFrame) {
	byKey := make(map[string]session.EnvVar, len(orch.Context.EnvVars)+len(frame.Variables))
	for _, v := range orch.Context.EnvVars {
		byKey[v.Key] = v
	}
	for _, v := range frame.Variables {
		byKey[v.Key] = session.EnvVar{Key: v.Key, Value: v.Value, Secret: v.IsSecret}
	}

	merged := make([]session.EnvVar, 0, len(byKey))
	for _, v := range byKey {
		merged = append(merged, v)
	}
	orch.Context.EnvVars = merged
}

// Hub exposes the Gateway's underlying registries, e.g. for the sweeper.
func (g *Gateway) Hub() *Hub { return g.hub }
