package broker

import "context"

// ProviderClient is the capability set the Broker requires of any LLM
// backend (spec §6): send a conversation and get back either text or a
// function-call request. Both the gRPC primary and the Anthropic-SDK
// backup implement this.
type ProviderClient interface {
	// Name identifies the provider in progress notes and logs, e.g.
	// "primary" or "backup".
	Name() string
	// Send submits the full conversation history plus the available tool
	// definitions and returns the next turn.
	Send(ctx context.Context, history []Message, tools []ToolDefinition) (*Response, error)
}
