// Package anthropic implements an llm.Sender backed by the Anthropic Claude
// Messages API, adapted from the teacher's features/model/anthropic client:
// same MessagesClient seam for testability, same resolveModelID precedence
// (explicit model name, then role, then default), trimmed to this module's
// narrower model.Message/model.ToolDefinition vocabulary (no thinking
// blocks, no multimodal parts -- §3/§4.3/§4.5 only need text and tool
// calls).
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentforge/agentforge/llm"
	"github.com/agentforge/agentforge/llm/model"
)

// MessagesClient captures the subset of the Anthropic SDK client this
// adapter drives, so tests can substitute a fake instead of a live client.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Options configures model-role resolution and sampling defaults, mirroring
// the teacher adapter's DefaultModel/HighModel/SmallModel/MaxTokens/Temperature
// knobs (§6 "Model Provider": resolve a symbolic role to a concrete model).
type Options struct {
	DefaultModel string
	// RoleModels maps an llm.Options.ModelRole (e.g. "best", "cheapest") to
	// a concrete Claude model identifier.
	RoleModels  map[string]string
	MaxTokens   int
	Temperature float64
}

// Client implements llm.Sender on top of Anthropic's Messages API.
type Client struct {
	msg  MessagesClient
	opts Options
}

// New builds a Client from an already-configured MessagesClient.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("anthropic: default model identifier is required")
	}
	return &Client{msg: msg, opts: opts}, nil
}

// NewFromAPIKey constructs a Client using the SDK's default HTTP transport.
func NewFromAPIKey(apiKey string, opts Options) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Messages, opts)
}

// Send implements llm.Sender (§6 "LLM Message Sender"): one non-streaming
// Messages.New call, translated to/from this module's model vocabulary.
func (c *Client) Send(ctx context.Context, messages []model.Message, toolDefs []model.ToolDefinition, opts llm.Options) (model.CallResult, error) {
	modelID := c.resolveModel(opts)
	if modelID == "" {
		return model.CallResult{}, fmt.Errorf("anthropic: could not resolve a model for role %q", opts.ModelRole)
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.opts.MaxTokens
	}
	if maxTokens <= 0 {
		return model.CallResult{}, errors.New("anthropic: max tokens must be positive")
	}

	toolParams, sanitizedToCanon, err := encodeTools(toolDefs)
	if err != nil {
		return model.CallResult{}, err
	}
	conv, system := encodeMessages(messages)

	params := sdk.MessageNewParams{
		Model:     sdk.Model(modelID),
		MaxTokens: int64(maxTokens),
		Messages:  conv,
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(toolParams) > 0 {
		params.Tools = toolParams
	}
	temp := float64(opts.Temperature)
	if temp <= 0 {
		temp = c.opts.Temperature
	}
	if temp > 0 {
		params.Temperature = sdk.Float(temp)
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return model.CallResult{}, fmt.Errorf("anthropic: messages.new: %w", err)
	}
	return translateResponse(msg, sanitizedToCanon), nil
}

func (c *Client) resolveModel(opts llm.Options) string {
	if opts.Model != "" {
		return opts.Model
	}
	if opts.ModelRole != "" {
		if id, ok := c.opts.RoleModels[opts.ModelRole]; ok && id != "" {
			return id
		}
	}
	return c.opts.DefaultModel
}

func encodeMessages(msgs []model.Message) ([]sdk.MessageParam, []sdk.TextBlockParam) {
	conv := make([]sdk.MessageParam, 0, len(msgs))
	var system []sdk.TextBlockParam

	for _, m := range msgs {
		switch m.Role {
		case model.RoleSystem:
			if m.Content != "" {
				system = append(system, sdk.TextBlockParam{Text: m.Content})
			}
		case model.RoleUser:
			conv = append(conv, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		case model.RoleAssistant:
			blocks := make([]sdk.ContentBlockParamUnion, 0, 1+len(m.ToolCalls))
			if m.Content != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, decodeArguments(tc.Arguments), sanitizeToolName(tc.Name)))
			}
			conv = append(conv, sdk.NewAssistantMessage(blocks...))
		case model.RoleTool:
			conv = append(conv, sdk.NewUserMessage(sdk.NewToolResultBlock(m.ToolCallID, m.Content, m.IsError)))
		}
	}
	return conv, system
}

// decodeArguments unmarshals a tool call's canonical JSON arguments back into
// a plain value, since the SDK's tool_use block constructor takes the input
// as an arbitrary value rather than raw bytes.
func decodeArguments(raw string) any {
	if raw == "" {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return map[string]any{}
	}
	return v
}

func encodeTools(defs []model.ToolDefinition) ([]sdk.ToolUnionParam, map[string]string, error) {
	if len(defs) == 0 {
		return nil, nil, nil
	}
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	sanitizedToCanon := make(map[string]string, len(defs))
	for _, def := range defs {
		if def.Name == "" {
			continue
		}
		sanitized := sanitizeToolName(def.Name)
		sanitizedToCanon[sanitized] = def.Name
		schema := sdk.ToolInputSchemaParam{}
		if def.InputSchema != nil {
			schema.ExtraFields = def.InputSchema
		}
		u := sdk.ToolUnionParamOfTool(schema, sanitized)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(def.Description)
		}
		out = append(out, u)
	}
	return out, sanitizedToCanon, nil
}

// sanitizeToolName mirrors the teacher's tool-name sanitization concern
// (Claude rejects tool names outside [a-zA-Z0-9_-]{1,64}); this module's
// tool names are already well-formed Go identifiers so this is a pass
// through kept only to preserve the seam for future tightening.
func sanitizeToolName(name string) string { return name }

func translateResponse(msg *sdk.Message, sanitizedToCanon map[string]string) model.CallResult {
	var gen model.Generation
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			gen.Text += block.Text
		case "tool_use":
			name := block.Name
			if canon, ok := sanitizedToCanon[name]; ok {
				name = canon
			}
			args, _ := json.Marshal(block.Input)
			gen.ToolCalls = append(gen.ToolCalls, model.ToolCall{
				ID:        block.ID,
				Name:      name,
				Arguments: string(args),
			})
		}
	}
	usage := model.Usage{
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
	return model.CallResult{Generations: []model.Generation{gen}, Usage: usage}
}
