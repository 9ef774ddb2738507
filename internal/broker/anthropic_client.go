package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient is the backup ProviderClient, used only after the primary
// has reported a quota error (spec §4.3 failover). Grounded on the
// bedrock.SDKClient pattern from the pack, swapped to talk to the Anthropic
// API directly instead of through Bedrock.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

const anthropicModelDefault = "claude-sonnet-4-20250514"

// NewAnthropicClient builds the backup client from LAUNCHDECK_ANTHROPIC_API_KEY
// and LAUNCHDECK_BACKUP_MODEL (falling back to anthropicModelDefault).
func NewAnthropicClient() (*AnthropicClient, error) {
	apiKey := os.Getenv("LAUNCHDECK_ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("broker: LAUNCHDECK_ANTHROPIC_API_KEY not set")
	}

	model := os.Getenv("LAUNCHDECK_BACKUP_MODEL")
	if model == "" {
		model = anthropicModelDefault
	}

	return &AnthropicClient{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: 4096,
	}, nil
}

func (c *AnthropicClient) Name() string { return "backup" }

func (c *AnthropicClient) Send(ctx context.Context, history []Message, tools []ToolDefinition) (*Response, error) {
	system, sdkMessages := toAnthropicMessages(history)
	if len(sdkMessages) == 0 {
		return nil, fmt.Errorf("broker: no messages to send to backup provider")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		Messages:  sdkMessages,
		MaxTokens: c.maxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		unions := make([]anthropic.ToolUnionParam, len(tools))
		for i, t := range tools {
			unions[i] = anthropic.ToolUnionParam{OfTool: toAnthropicTool(t)}
		}
		params.Tools = unions
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("broker: backup generate: %w", err)
	}

	return fromAnthropicMessage(message), nil
}

func toAnthropicMessages(history []Message) (string, []anthropic.MessageParam) {
	var systemParts []string
	var out []anthropic.MessageParam

	for _, m := range history {
		switch m.Role {
		case RoleSystem:
			if m.Content != "" {
				systemParts = append(systemParts, m.Content)
			}
		case RoleUser:
			if m.Content != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		case RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input any
				if tc.Arguments != "" {
					_ = json.Unmarshal([]byte(tc.Arguments), &input)
				}
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		case RoleTool:
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false),
			))
		}
	}

	return strings.Join(systemParts, "\n\n"), out
}

func toAnthropicTool(t ToolDefinition) *anthropic.ToolParam {
	tool := anthropic.ToolParam{
		Name:        t.Name,
		Description: anthropic.String(t.Description),
	}
	if t.ParametersSchema != "" {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal([]byte(t.ParametersSchema), &schema); err == nil {
			tool.InputSchema = schema
		}
	}
	return &tool
}

func fromAnthropicMessage(message *anthropic.Message) *Response {
	resp := &Response{}
	for _, block := range message.Content {
		switch block.Type {
		case "text":
			resp.Text += block.Text
		case "tool_use":
			if resp.FunctionCall != nil {
				continue // the broker's contract is at most one function call per turn
			}
			resp.FunctionCall = &ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(block.Input),
			}
		}
	}
	return resp
}
