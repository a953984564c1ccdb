// Package testutil provides builders and scripted completion back-ends
// shared by the package tests.
package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/schema"
)

// EchoCompletion replies with the content of the last user message.
func EchoCompletion(name string) schema.Completion {
	return schema.Completion{
		CompletionName: name,
		GetCompletion: func(ctx context.Context, args *core.CompletionArgs) (core.Message, error) {
			return core.Message{
				Role:    core.RoleAssistant,
				Content: LastUserContent(args.Messages),
			}, nil
		},
	}
}

// ScriptedCompletion replies with the queued messages in order, repeating
// the last one when the script runs dry. It is safe for concurrent use.
type ScriptedCompletion struct {
	mu     sync.Mutex
	script []core.Message
	// Calls records every request for later inspection.
	Calls []*core.CompletionArgs
}

// NewScriptedCompletion queues msgs.
func NewScriptedCompletion(msgs ...core.Message) *ScriptedCompletion {
	return &ScriptedCompletion{script: msgs}
}

// Schema exposes the scripted back-end as a completion schema.
func (s *ScriptedCompletion) Schema(name string) schema.Completion {
	return schema.Completion{
		CompletionName: name,
		GetCompletion: func(ctx context.Context, args *core.CompletionArgs) (core.Message, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.Calls = append(s.Calls, args)
			if len(s.script) == 0 {
				return core.Message{Role: core.RoleAssistant}, nil
			}
			msg := s.script[0]
			if len(s.script) > 1 {
				s.script = s.script[1:]
			}
			return msg, nil
		},
	}
}

// CallCount returns how many completions were requested.
func (s *ScriptedCompletion) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

// LastUserContent returns the content of the last user-role message.
func LastUserContent(messages []core.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == core.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// ToolCallMessage builds an assistant message carrying the given calls.
func ToolCallMessage(calls ...core.ToolCall) core.Message {
	return core.Message{Role: core.RoleAssistant, ToolCalls: calls}
}

// Call builds a tool call for name with args.
func Call(id, name string, args map[string]any) core.ToolCall {
	return core.ToolCall{
		ID:   id,
		Type: "function",
		Function: core.ToolCallFunction{
			Name:      name,
			Arguments: args,
		},
	}
}
