package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is a scripted ProviderClient for exercising Broker's retry and
// failover logic without a network.
type fakeClient struct {
	name  string
	calls int
	// errs[i] is returned on the i-th call (nil means success with resp).
	errs []error
	resp *Response
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Send(ctx context.Context, history []Message, tools []ToolDefinition) (*Response, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	return f.resp, nil
}

func TestBroker_RetriesTransientThenSucceeds(t *testing.T) {
	primary := &fakeClient{
		name: "primary",
		errs: []error{errors.New("connection refused"), nil},
		resp: &Response{Text: "hello"},
	}
	b := NewBroker(primary, nil, "system prompt", nil)

	resp, err := b.Send(context.Background(), "deploy my app")
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
	assert.Equal(t, 2, primary.calls)
}

func TestBroker_FailsOverOnQuotaError(t *testing.T) {
	// Failover is transparent (spec §4.3/§2): the single Send call that
	// trips the primary's quota error must itself complete against the
	// backup, not return an error for the caller to retry by hand.
	primary := &fakeClient{name: "primary", errs: []error{errors.New("429 resource exhausted")}}
	backup := &fakeClient{name: "backup", resp: &Response{Text: "from backup"}}

	b := NewBroker(primary, backup, "system prompt", nil)

	resp, err := b.Send(context.Background(), "deploy my app")
	require.NoError(t, err)
	assert.Equal(t, "from backup", resp.Text)
	assert.True(t, b.UsingBackup())
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, backup.calls)

	// A subsequent call in the same session goes straight to the backup;
	// the primary is never touched again (testable property #6).
	resp, err = b.Send(context.Background(), "deploy my app again")
	require.NoError(t, err)
	assert.Equal(t, "from backup", resp.Text)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 2, backup.calls)
}

func TestBroker_FailoverIsOneWay(t *testing.T) {
	primary := &fakeClient{name: "primary", errs: []error{errors.New("quota")}}
	backup := &fakeClient{name: "backup", errs: []error{errors.New("quota"), errors.New("quota")}}

	b := NewBroker(primary, backup, "system", nil)

	_, err := b.Send(context.Background(), "go")
	require.ErrorIs(t, err, ErrQuotaExhausted)
	assert.True(t, b.UsingBackup())

	// Backup also quota-errors: no third provider to fail over to.
	_, err = b.Send(context.Background(), "go")
	require.ErrorIs(t, err, ErrQuotaExhausted)
	assert.True(t, b.UsingBackup(), "must not flip back to primary")
	assert.Equal(t, 1, primary.calls, "primary must not be retried once backup is active")
}

func TestBroker_QuotaErrorWithNoBackupConfigured(t *testing.T) {
	primary := &fakeClient{name: "primary", errs: []error{errors.New("rate limit exceeded")}}
	b := NewBroker(primary, nil, "system", nil)

	_, err := b.Send(context.Background(), "go")
	require.ErrorIs(t, err, ErrQuotaExhausted)
	require.ErrorIs(t, err, ErrNoBackupConfigured)
}

func TestBroker_AuthErrorIsNotRetried(t *testing.T) {
	primary := &fakeClient{name: "primary", errs: []error{errors.New("401 unauthorized: invalid api key")}}
	b := NewBroker(primary, nil, "system", nil)

	_, err := b.Send(context.Background(), "go")
	require.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, 1, primary.calls, "auth errors must not be retried")
}

func TestBroker_RecordAssistantTurnAppendsToolCall(t *testing.T) {
	b := NewBroker(&fakeClient{name: "primary"}, nil, "system", nil)
	b.RecordAssistantTurn(&Response{FunctionCall: &ToolCall{ID: "1", Name: "deploy_to_cloud_run", Arguments: "{}"}})

	require.Len(t, b.history, 2) // system + assistant
	assert.Equal(t, RoleAssistant, b.history[1].Role)
	require.Len(t, b.history[1].ToolCalls, 1)
	assert.Equal(t, "deploy_to_cloud_run", b.history[1].ToolCalls[0].Name)
}
