// Code generated by protoc-gen-go and protoc-gen-go-grpc from llm.proto.
// Checked in directly since this module does not run a protoc step.
package llmpb

import (
	"context"

	"google.golang.org/grpc"
)

type Message_Role int32

const (
	Message_ROLE_UNSPECIFIED Message_Role = 0
	Message_ROLE_SYSTEM      Message_Role = 1
	Message_ROLE_USER        Message_Role = 2
	Message_ROLE_ASSISTANT   Message_Role = 3
	Message_ROLE_TOOL        Message_Role = 4
)

type Message struct {
	Role       Message_Role
	Content    string
	ToolCallId string
	ToolName   string
}

type ToolDefinition struct {
	Name             string
	Description      string
	ParametersSchema string
}

type GenerateRequest struct {
	SessionId string
	Messages  []*Message
	Tools     []*ToolDefinition
	Model     string
	MaxTokens int32
}

type FunctionCall struct {
	Id        string
	Name      string
	Arguments string
}

type GenerateResponse struct {
	Text         string
	FunctionCall *FunctionCall
}

// LLMServiceClient is the client API for LLMService.
type LLMServiceClient interface {
	Generate(ctx context.Context, in *GenerateRequest, opts ...grpc.CallOption) (*GenerateResponse, error)
}

type llmServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewLLMServiceClient(cc grpc.ClientConnInterface) LLMServiceClient {
	return &llmServiceClient{cc: cc}
}

func (c *llmServiceClient) Generate(ctx context.Context, in *GenerateRequest, opts ...grpc.CallOption) (*GenerateResponse, error) {
	out := new(GenerateResponse)
	err := c.cc.Invoke(ctx, "/launchdeck.llm.LLMService/Generate", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}
