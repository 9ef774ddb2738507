package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/launchdeck/launchdeck/internal/broker"
	"github.com/launchdeck/launchdeck/internal/pipeline"
	"github.com/launchdeck/launchdeck/internal/progress"
	"github.com/launchdeck/launchdeck/internal/session"
	"github.com/launchdeck/launchdeck/internal/taxonomy"
)

// SystemInstruction is sent as the first message of every session's chat
// history (spec §6 "both must accept a system-instruction preamble").
const SystemInstruction = `You are a deployment assistant. You can clone and analyze a Git repository,
deploy it to a managed serverless container platform, list the user's
repositories, and fetch logs for a prior deployment. Call the matching
function when the user asks for one of these actions; otherwise reply
conversationally.`

// Orchestrator is the single-session conversational core (spec §4.2). It
// holds the ProjectContext and drives the session's Broker; its Pipeline
// field is shared across sessions (the Pipeline Engine itself carries no
// per-session state beyond what an Input provides).
type Orchestrator struct {
	SessionID string
	Context   *session.ProjectContext
	Broker    *broker.Broker
	Pipeline  *pipeline.Engine
	Bus       *progress.Bus
	Cloud     CloudConfig

	// running is set while a pipeline invoked by this Orchestrator is
	// in-flight, so the sweeper (spec §5 "never reclaim one currently
	// executing a pipeline") can check it without racing the pipeline
	// goroutine.
	running atomic.Bool

	// send is stored at the start of every Process call, before any
	// suspension point, per spec §4.2 "Progress channel"; the owning
	// session id is SessionID, set once by New.
	send SendFunc
}

// New constructs an Orchestrator for a freshly created Session.
func New(sessionID string, projectCtx *session.ProjectContext, b *broker.Broker, eng *pipeline.Engine, bus *progress.Bus, cloud CloudConfig) *Orchestrator {
	return &Orchestrator{
		SessionID: sessionID,
		Context:   projectCtx,
		Broker:    b,
		Pipeline:  eng,
		Bus:       bus,
		Cloud:     cloud,
	}
}

// Running reports whether this Orchestrator currently owns an in-flight
// pipeline, so the sweeper can skip reclaiming it.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// Process implements spec §4.2's single inbound operation. send must be
// installed before the first await so every downstream call, including
// Pipeline stage progress, can reach the client.
func (o *Orchestrator) Process(ctx context.Context, userMessage string, send SendFunc) (Response, error) {
	o.send = send
	o.Broker.SetProgressSink(func(note string) {
		_ = o.send("message", map[string]any{"content": note, "timestamp": timeNowRFC3339()})
	})

	prompt := o.buildPrompt(userMessage)

	resp, err := o.Broker.Send(ctx, prompt)
	if err != nil {
		return Response{}, o.classifyBrokerError(err)
	}
	o.Broker.RecordAssistantTurn(resp)

	if !resp.HasFunctionCall() {
		return Response{Text: resp.Text}, nil
	}

	return o.handleFunctionCall(ctx, resp.FunctionCall)
}

// buildPrompt implements spec §4.2 step 1: inject a compact context prefix,
// collapsing it to a minimal "ready" marker for whitelisted short commands
// once a working copy already exists, to bias the model toward deploy
// rather than clone.
func (o *Orchestrator) buildPrompt(userMessage string) string {
	trimmed := strings.ToLower(strings.TrimSpace(userMessage))

	if o.Context.Ready() && simpleCommands[trimmed] {
		return fmt.Sprintf("[project ready: %s, framework %s] %s",
			o.Context.RepoURL, o.Context.Framework, userMessage)
	}

	var sb strings.Builder
	if o.Context.Ready() {
		sb.WriteString(fmt.Sprintf("[context: repo=%s language=%s framework=%s working_copy=present] ",
			o.Context.RepoURL, o.Context.Language, o.Context.Framework))
	}
	sb.WriteString(userMessage)
	return sb.String()
}

// handleFunctionCall implements spec §4.2 step 3: route, execute, feed the
// result back to the LLM as a tool response, and read the final turn.
func (o *Orchestrator) handleFunctionCall(ctx context.Context, call *broker.ToolCall) (Response, error) {
	result, out, err := o.dispatch(ctx, call)
	if err != nil {
		// Function-level failures are reported to the user directly; we do
		// not send them back to the model as a tool result, since a
		// pipeline failure is not something the model can usefully react
		// to beyond repeating it.
		return out, err
	}

	payload, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		payload = []byte(`{"error":"result encoding failed"}`)
	}

	finalResp, err := o.Broker.SendToolResult(ctx, call.ID, call.Name, string(payload))
	if err != nil {
		return out, o.classifyBrokerError(err)
	}
	o.Broker.RecordAssistantTurn(finalResp)

	out.Text = finalResp.Text
	return out, nil
}

// dispatch routes to the named function and enforces the anti-reclone
// invariant at the routing boundary (spec §4.2 "Critical invariant").
func (o *Orchestrator) dispatch(ctx context.Context, call *broker.ToolCall) (any, Response, error) {
	switch call.Name {
	case FuncCloneAndAnalyze:
		if o.Context.Ready() {
			// Anti-reclone: the context prefix already steers the model
			// away from this, but a model can still emit the call; we
			// refuse it unconditionally rather than trust the prompt.
			return map[string]any{
				"already_analyzed": true,
				"message":          "project already analyzed in this session; reset to analyze a different repository",
			}, Response{Text: "This project is already analyzed. Say \"reset\" to start over with a different repository, or \"deploy\" to continue."}, nil
		}
		return o.runCloneAndAnalyze(ctx, call.Arguments)
	case FuncDeploy:
		return o.runDeploy(ctx, call.Arguments)
	case FuncListRepositories:
		return o.runListRepositories(ctx)
	case FuncGetLogs:
		return o.runGetLogs(ctx, call.Arguments)
	default:
		err := taxonomy.New(taxonomy.KindValidation, "unknown function: "+call.Name, nil)
		return nil, Response{Text: "I don't know how to do that."}, err
	}
}

// classifyBrokerError maps a Broker error onto spec §4.2's error taxonomy
// for process: model quota and model auth get their own kinds; every other
// error, whether a network failure or a generic model error, is reported
// as KindModelTransient with the same retry message.
func (o *Orchestrator) classifyBrokerError(err error) error {
	switch {
	case errors.Is(err, broker.ErrQuotaExhausted):
		return taxonomy.New(taxonomy.KindModelQuota,
			"the model's usage quota is exhausted; configure a backup model key to continue", err)
	case errors.Is(err, broker.ErrAuth):
		return taxonomy.New(taxonomy.KindModelAuth,
			"the model provider rejected our credentials; check the configured API key", err)
	default:
		return taxonomy.New(taxonomy.KindModelTransient, "a transient error occurred talking to the model, please retry", err)
	}
}

func timeNowRFC3339() string {
	return nowFunc().Format("2006-01-02T15:04:05Z07:00")
}

// publishFunctionStage is a small helper the clone-and-analyze path uses to
// drive the Progress Bus the same way the Pipeline Engine does, since
// clone-and-analyze runs stages 1-3 outside of a full pipeline.Run.
func (o *Orchestrator) publishFunctionStage(deploymentID string, stage progress.StageTag, state progress.State, msg string, details map[string]any) {
	if o.Bus == nil {
		return
	}
	_, _ = o.Bus.Publish(deploymentID, stage, state, msg, details)
}

// newOperationID mints an opaque id for a clone-and-analyze run (which is
// not a full deployment but still wants a Progress Bus registration of its
// own, distinct from a real DeploymentRecord's id).
func newOperationID() string {
	return uuid.NewString()
}
