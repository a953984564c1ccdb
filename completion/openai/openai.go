// Package openai provides a completion adapter over the OpenAI Chat
// Completions API (including function/tool calling). It maps the runtime's
// normalized message shape into the SDK's message format and back and
// exposes a ready-to-register completion schema.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/schema"
	"github.com/openai/openai-go"
)

// Options configure the OpenAI completion adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Completion wraps the OpenAI Chat Completions API.
type Completion struct {
	client *openai.Client
	opts   Options
}

// New creates a new adapter using the default client (API key from the
// environment).
func New(optFns ...func(o *Options)) *Completion {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a new adapter from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Completion {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Completion{client: client, opts: opts}
}

// GetCompletion produces the next assistant message.
func (c *Completion) GetCompletion(ctx context.Context, args *core.CompletionArgs) (core.Message, error) {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(args.Messages),
		Model:               c.opts.Model,
		Temperature:         openai.Float(c.opts.Temperature),
		MaxCompletionTokens: openai.Int(c.opts.MaxCompletionTokens),
	}
	if len(args.Tools) > 0 {
		params.Tools = buildTools(args.Tools)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return core.Message{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return core.Message{}, fmt.Errorf("no choices returned")
	}

	choice := resp.Choices[0]
	msg := core.Message{
		Role:      core.RoleAssistant,
		AgentName: args.AgentName,
		Content:   choice.Message.Content,
	}
	for _, tc := range choice.Message.ToolCalls {
		arguments := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &arguments); err != nil {
				return core.Message{}, fmt.Errorf("decode tool call arguments: %w", err)
			}
		}
		msg.ToolCalls = append(msg.ToolCalls, core.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: core.ToolCallFunction{
				Name:      tc.Function.Name,
				Arguments: arguments,
			},
		})
	}
	return msg, nil
}

// Schema exposes the adapter as a registrable completion schema.
func (c *Completion) Schema(name string) schema.Completion {
	return schema.Completion{
		CompletionName: name,
		GetCompletion:  c.GetCompletion,
	}
}

// buildMessages converts normalized messages into OpenAI chat messages.
func buildMessages(messages []core.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case core.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case core.RoleUser:
			out = append(out, openai.UserMessage(msg.Content))
		case core.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(msg.Content))
				continue
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: extractToolCalls(msg.ToolCalls),
				},
			})
		case core.RoleTool:
			if msg.ToolCallID != "" {
				out = append(out, openai.ToolMessage(msg.Content, msg.ToolCallID))
			}
		default:
			// Rescue and flush markers never reach the wire.
		}
	}
	return out
}

func extractToolCalls(calls []core.ToolCall) []openai.ChatCompletionMessageToolCallParam {
	out := make([]openai.ChatCompletionMessageToolCallParam, 0, len(calls))
	for _, call := range calls {
		arguments := "{}"
		if raw, err := json.Marshal(call.Function.Arguments); err == nil && call.Function.Arguments != nil {
			arguments = string(raw)
		}
		out = append(out, openai.ChatCompletionMessageToolCallParam{
			ID:   call.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      call.Function.Name,
				Arguments: arguments,
			},
		})
	}
	return out
}

// buildTools converts function specs into OpenAI tool definitions.
func buildTools(specs []core.FunctionSpec) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, len(specs))
	for i, spec := range specs {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        spec.Name,
				Description: openai.String(spec.Description),
				Parameters:  spec.Parameters,
			},
		}
	}
	return tools
}
