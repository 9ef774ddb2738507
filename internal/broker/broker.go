package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/launchdeck/launchdeck/internal/metrics"
	"github.com/launchdeck/launchdeck/internal/transient"
)

// ProgressSink receives human-readable notes about retry/failover activity
// so the gateway can surface them as progress messages (spec §9 "failover
// visibility").
type ProgressSink func(note string)

// Broker owns one session's conversation with the model layer: the message
// history, the currently-active provider, and the one-way failover switch
// from primary to backup (spec §4.3, testable property #6 "Failover
// idempotence" — once tripped, it stays tripped for the rest of the
// session).
type Broker struct {
	mu sync.Mutex

	primary ProviderClient
	backup  ProviderClient // nil if no backup configured

	systemInstruction string
	tools             []ToolDefinition

	history     []Message
	usingBackup bool

	progress ProgressSink
}

// NewBroker constructs a Broker. backup may be nil.
func NewBroker(primary, backup ProviderClient, systemInstruction string, tools []ToolDefinition) *Broker {
	b := &Broker{
		primary:           primary,
		backup:            backup,
		systemInstruction: systemInstruction,
		tools:             tools,
	}
	b.resetHistoryLocked()
	return b
}

// SetProgressSink installs the callback used to report retry/failover notes.
// A nil sink disables reporting.
func (b *Broker) SetProgressSink(sink ProgressSink) {
	b.mu.Lock()
	b.progress = sink
	b.mu.Unlock()
}

func (b *Broker) note(format string, args ...any) {
	if b.progress != nil {
		b.progress(fmt.Sprintf(format, args...))
	}
}

func (b *Broker) resetHistoryLocked() {
	b.history = []Message{{Role: RoleSystem, Content: b.systemInstruction}}
}

// Send appends a user message to the conversation and returns the next
// model turn, retrying transient failures and failing over to the backup
// provider on quota exhaustion.
func (b *Broker) Send(ctx context.Context, userMessage string) (*Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.history = append(b.history, Message{Role: RoleUser, Content: userMessage})
	return b.dispatchLocked(ctx)
}

// SendToolResult appends the result of a function call the Orchestrator just
// executed and returns the model's next turn.
func (b *Broker) SendToolResult(ctx context.Context, toolCallID, toolName, resultJSON string) (*Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.history = append(b.history, Message{
		Role:       RoleTool,
		Content:    resultJSON,
		ToolCallID: toolCallID,
		ToolName:   toolName,
	})
	return b.dispatchLocked(ctx)
}

// RecordAssistantTurn appends the assistant's own turn (text and/or a
// function call it just requested) to the history, so the next Send/
// SendToolResult call sees a coherent conversation.
func (b *Broker) RecordAssistantTurn(resp *Response) {
	if resp == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	msg := Message{Role: RoleAssistant, Content: resp.Text}
	if resp.FunctionCall != nil {
		msg.ToolCalls = []ToolCall{*resp.FunctionCall}
	}
	b.history = append(b.history, msg)
}

// Reset starts a fresh conversation (explicit user reset), keeping whichever
// provider failover already selected.
func (b *Broker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetHistoryLocked()
}

// UsingBackup reports whether the session has already failed over.
func (b *Broker) UsingBackup() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.usingBackup
}

func (b *Broker) dispatchLocked(ctx context.Context) (*Response, error) {
	client := b.primary
	if b.usingBackup {
		client = b.backup
	}

	resp, err := b.sendWithRetry(ctx, client)
	if err == nil {
		return resp, nil
	}

	if !transient.IsQuotaError(err) {
		if transient.IsAuthError(err) {
			return nil, fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return nil, err
	}

	// Quota error on the currently active provider.
	if b.usingBackup || b.backup == nil {
		return nil, fmt.Errorf("%w: %w", ErrQuotaExhausted, errOrNoBackup(b.backup, err))
	}

	b.note("primary provider reports quota exhaustion, failing over to backup")
	b.usingBackup = true
	metrics.RecordFailover()

	// Re-issue the just-appended message against the backup on a fresh
	// chat history per spec §4.3 ("transparent failover" / §2 "transparent
	// failover"): prior multi-turn context built up against the primary is
	// not portable to the backup's own account, but the caller's current
	// request must still complete rather than be dropped for the caller to
	// retry by hand.
	pending := b.history[len(b.history)-1]
	b.resetHistoryLocked()
	b.history = append(b.history, pending)

	resp, err = b.sendWithRetry(ctx, b.backup)
	if err == nil {
		return resp, nil
	}
	if transient.IsQuotaError(err) {
		return nil, fmt.Errorf("%w: %v", ErrQuotaExhausted, err)
	}
	if transient.IsAuthError(err) {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	return nil, err
}

func errOrNoBackup(backup ProviderClient, err error) error {
	if backup == nil {
		return fmt.Errorf("%w: %v", ErrNoBackupConfigured, err)
	}
	return err
}

const (
	retryMaxElapsed  = 15 * time.Second
	retryBaseDelay   = 1 * time.Second
	retryMaxAttempts = 3
)

// sendWithRetry retries network-transient failures with exponential
// backoff (spec §4.3): at most retryMaxAttempts attempts, starting at
// retryBaseDelay and doubling, leaving quota and auth errors to the caller.
func (b *Broker) sendWithRetry(ctx context.Context, client ProviderClient) (*Response, error) {
	if client == nil {
		return nil, fmt.Errorf("broker: no provider configured")
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryBaseDelay
	bo.MaxElapsedTime = retryMaxElapsed
	bo.MaxInterval = 4 * time.Second
	bo.Multiplier = 2

	var resp *Response
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var sendErr error
		resp, sendErr = client.Send(ctx, b.history, b.tools)
		if sendErr == nil {
			return nil
		}
		if transient.IsNetworkError(sendErr) && attempt < retryMaxAttempts {
			b.note("%s provider request failed (attempt %d), retrying: %v", client.Name(), attempt, sendErr)
			return sendErr
		}
		// Quota/auth/other errors, and a network error on the last
		// attempt, are not retried here; bubble up immediately via
		// backoff.Permanent so Retry stops looping.
		return backoff.Permanent(sendErr)
	}, backoff.WithContext(bo, ctx))

	if err != nil {
		if perm, ok := err.(*backoff.PermanentError); ok {
			return nil, perm.Err
		}
		return nil, err
	}
	return resp, nil
}

