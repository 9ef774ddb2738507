package broker

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/launchdeck/launchdeck/internal/broker/llmpb"
)

// GRPCClient is the primary ProviderClient, reaching the model service over
// gRPC (grounded on the teacher's pkg/llm.Client).
type GRPCClient struct {
	conn      *grpc.ClientConn
	client    llmpb.LLMServiceClient
	model     string
	maxTokens int32
}

// NewGRPCClient dials addr and configures the model name from
// LAUNCHDECK_MODEL, defaulting to modelDefault, and an optional
// LAUNCHDECK_MODEL_MAX_TOKENS override.
func NewGRPCClient(addr string) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("broker: dial primary LLM service: %w", err)
	}

	model := os.Getenv("LAUNCHDECK_MODEL")
	if model == "" {
		model = modelDefault
	}

	var maxTokens int32
	if n, ok := parseIntEnv("LAUNCHDECK_MODEL_MAX_TOKENS"); ok {
		maxTokens = int32(n)
	}

	return &GRPCClient{
		conn:      conn,
		client:    llmpb.NewLLMServiceClient(conn),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

const modelDefault = "gemini-2.0-flash-thinking-exp-01-21"

// Close releases the underlying connection.
func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) Name() string { return "primary" }

func (c *GRPCClient) Send(ctx context.Context, history []Message, tools []ToolDefinition) (*Response, error) {
	req := &llmpb.GenerateRequest{
		Messages:  toPBMessages(history),
		Tools:     toPBTools(tools),
		Model:     c.model,
		MaxTokens: c.maxTokens,
	}

	resp, err := c.client.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("broker: primary generate: %w", err)
	}

	out := &Response{Text: resp.Text}
	if resp.FunctionCall != nil {
		out.FunctionCall = &ToolCall{
			ID:        resp.FunctionCall.Id,
			Name:      resp.FunctionCall.Name,
			Arguments: resp.FunctionCall.Arguments,
		}
	}
	return out, nil
}

func toPBMessages(history []Message) []*llmpb.Message {
	out := make([]*llmpb.Message, len(history))
	for i, m := range history {
		out[i] = &llmpb.Message{
			Role:       toPBRole(m.Role),
			Content:    m.Content,
			ToolCallId: m.ToolCallID,
			ToolName:   m.ToolName,
		}
	}
	return out
}

func toPBRole(role string) llmpb.Message_Role {
	switch role {
	case RoleSystem:
		return llmpb.Message_ROLE_SYSTEM
	case RoleUser:
		return llmpb.Message_ROLE_USER
	case RoleAssistant:
		return llmpb.Message_ROLE_ASSISTANT
	case RoleTool:
		return llmpb.Message_ROLE_TOOL
	default:
		return llmpb.Message_ROLE_USER
	}
}

func toPBTools(tools []ToolDefinition) []*llmpb.ToolDefinition {
	out := make([]*llmpb.ToolDefinition, len(tools))
	for i, t := range tools {
		out[i] = &llmpb.ToolDefinition{
			Name:             t.Name,
			Description:      t.Description,
			ParametersSchema: t.ParametersSchema,
		}
	}
	return out
}

// parseIntEnv reads an optional numeric tuning override from the
// environment, leaving the provider's own default when unset or invalid.
func parseIntEnv(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
