// Package openai implements an llm.Sender backed by the OpenAI Chat
// Completions API, adapted from the teacher's features/model/openai client
// (same ChatClient seam, same model-resolution/encode/translate shape) but
// rebuilt against the official github.com/openai/openai-go SDK that the
// teacher's go.mod already declares, rather than the community fork its
// feature file happened to import.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/agentforge/agentforge/llm"
	"github.com/agentforge/agentforge/llm/model"
)

// ChatClient captures the subset of the SDK's chat completions service this
// adapter drives, so tests can substitute a fake instead of a live client.
type ChatClient interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Options configures model-role resolution and sampling defaults.
type Options struct {
	DefaultModel string
	// RoleModels maps an llm.Options.ModelRole to a concrete OpenAI model
	// identifier, mirroring the Anthropic adapter's RoleModels.
	RoleModels map[string]string
}

// Client implements llm.Sender on top of the Chat Completions API.
type Client struct {
	chat ChatClient
	opts Options
}

// New builds a Client from an already-configured ChatClient.
func New(chat ChatClient, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai: chat client is required")
	}
	if strings.TrimSpace(opts.DefaultModel) == "" {
		return nil, errors.New("openai: default model is required")
	}
	return &Client{chat: chat, opts: opts}, nil
}

// NewFromAPIKey constructs a Client using the SDK's default HTTP transport.
func NewFromAPIKey(apiKey string, opts Options) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Chat.Completions, opts)
}

// Send implements llm.Sender (§6 "LLM Message Sender"): one Chat Completions
// call, translated to/from this module's model vocabulary.
func (c *Client) Send(ctx context.Context, messages []model.Message, toolDefs []model.ToolDefinition, opts llm.Options) (model.CallResult, error) {
	if len(messages) == 0 {
		return model.CallResult{}, errors.New("openai: at least one message is required")
	}
	modelID := c.resolveModel(opts)

	tools, err := encodeTools(toolDefs)
	if err != nil {
		return model.CallResult{}, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(modelID),
		Messages: encodeMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = tools
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(float64(opts.Temperature))
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		return model.CallResult{}, fmt.Errorf("openai: chat completion: %w", err)
	}
	return translateResponse(resp), nil
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

func encodeMessages(msgs []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case model.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case model.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case model.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				calls = append(calls, openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			asst := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
			if m.Content != "" {
				asst.Content.OfString = openai.String(m.Content)
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		case model.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return out
}

func encodeTools(defs []model.ToolDefinition) ([]openai.ChatCompletionToolParam, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	out := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, def := range defs {
		if def.Name == "" {
			continue
		}
		if def.Description == "" {
			return nil, fmt.Errorf("openai: tool %q is missing description", def.Name)
		}
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  openai.FunctionParameters(def.InputSchema),
			},
		})
	}
	return out, nil
}

func translateResponse(resp *openai.ChatCompletion) model.CallResult {
	var gen model.Generation
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		gen.Text = choice.Message.Content
		for _, call := range choice.Message.ToolCalls {
			gen.ToolCalls = append(gen.ToolCalls, model.ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			})
		}
	}
	usage := model.Usage{
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:  int(resp.Usage.TotalTokens),
	}
	return model.CallResult{Generations: []model.Generation{gen}, Usage: usage}
}
