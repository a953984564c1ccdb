// Package anthropic provides a completion adapter over the Anthropic
// Messages API (including tool use). It maps the runtime's normalized
// message shape into the SDK's message format and back and exposes a
// ready-to-register completion schema.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/schema"
)

// Options configure the Anthropic completion adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Completion wraps the Anthropic Messages API.
type Completion struct {
	client *anthropic.Client
	opts   Options
}

// New creates a new adapter using the official client.
func New(optFns ...func(o *Options)) *Completion {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)
	return &Completion{client: &client, opts: opts}
}

// NewFromClient creates a new adapter from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Completion {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Completion{client: client, opts: opts}
}

// GetCompletion produces the next assistant message.
func (c *Completion) GetCompletion(ctx context.Context, args *core.CompletionArgs) (core.Message, error) {
	params := anthropic.MessageNewParams{
		Model:       c.opts.Model,
		Messages:    buildMessages(args.Messages),
		MaxTokens:   c.opts.MaxTokens,
		Temperature: anthropic.Float(c.opts.Temperature),
	}
	if system := extractSystem(args.Messages); len(system) > 0 {
		params.System = system
	}
	if len(args.Tools) > 0 {
		params.Tools = buildTools(args.Tools)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return core.Message{}, fmt.Errorf("anthropic api error: %w", err)
	}

	msg := core.Message{Role: core.RoleAssistant, AgentName: args.AgentName}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			msg.Content += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			arguments := map[string]any{}
			if raw, err := json.Marshal(toolBlock.Input); err == nil {
				_ = json.Unmarshal(raw, &arguments)
			}
			msg.ToolCalls = append(msg.ToolCalls, core.ToolCall{
				ID:   toolBlock.ID,
				Type: "function",
				Function: core.ToolCallFunction{
					Name:      toolBlock.Name,
					Arguments: arguments,
				},
			})
		}
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

// buildMessages converts normalized messages into Anthropic message params.
// Tool results are attached as user-role tool_result blocks right after the
// assistant message carrying the originating tool_use blocks.
func buildMessages(messages []core.Message) []anthropic.MessageParam {
	toolResults := map[string]string{}
	for _, msg := range messages {
		if msg.Role == core.RoleTool && msg.ToolCallID != "" {
			toolResults[msg.ToolCallID] = msg.Content
		}
	}

	var out []anthropic.MessageParam
	for _, msg := range messages {
		switch msg.Role {
		case core.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case core.RoleAssistant:
			var content []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				content = append(content, anthropic.NewTextBlock(msg.Content))
			}
			var results []anthropic.ContentBlockParamUnion
			for _, call := range msg.ToolCalls {
				var input any = map[string]any{}
				if call.Function.Arguments != nil {
					input = call.Function.Arguments
				}
				content = append(content, anthropic.NewToolUseBlock(call.ID, input, call.Function.Name))
				if result, ok := toolResults[call.ID]; ok {
					results = append(results, anthropic.NewToolResultBlock(call.ID, result, false))
					delete(toolResults, call.ID)
				}
			}
			if len(content) > 0 {
				out = append(out, anthropic.NewAssistantMessage(content...))
			}
			if len(results) > 0 {
				out = append(out, anthropic.NewUserMessage(results...))
			}
		default:
			// System handled separately; tool results embedded above;
			// rescue and flush markers never reach the wire.
		}
	}
	return out
}

// extractSystem collects system-role messages into system blocks.
func extractSystem(messages []core.Message) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, msg := range messages {
		if msg.Role == core.RoleSystem && msg.Content != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: msg.Content})
		}
	}
	return blocks
}

// buildTools converts function specs into Anthropic tool params.
func buildTools(specs []core.FunctionSpec) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, len(specs))
	for i, spec := range specs {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if spec.Parameters != nil {
			if properties, ok := spec.Parameters["properties"]; ok {
				inputSchema.Properties = properties
			}
			if required, ok := spec.Parameters["required"]; ok {
				switch req := required.(type) {
				case []string:
					inputSchema.Required = req
				case []any:
					for _, r := range req {
						if s, ok := r.(string); ok {
							inputSchema.Required = append(inputSchema.Required, s)
						}
					}
				}
			}
		}
		tools[i] = anthropic.ToolUnionParamOfTool(inputSchema, spec.Name)
	}
	return tools
}
