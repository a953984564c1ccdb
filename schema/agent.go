package schema

import (
	"context"

	"github.com/hupe1980/agentswarm/core"
)

// AgentCallbacks are optional lifecycle hooks fired by the turn engine. Every
// field may be nil.
type AgentCallbacks struct {
	// OnExecute fires when a turn starts.
	OnExecute func(ctx context.Context, clientID, agentName, input string, mode core.ExecutionMode)
	// OnOutput fires after a validated output was published.
	OnOutput func(ctx context.Context, clientID, agentName, output string)
	// OnUserMessage fires when a user message is committed without completion.
	OnUserMessage func(ctx context.Context, clientID, agentName, msg string)
	// OnAssistantMessage fires when an assistant message is committed.
	OnAssistantMessage func(ctx context.Context, clientID, agentName, msg string)
	// OnSystemMessage fires when a system message is committed.
	OnSystemMessage func(ctx context.Context, clientID, agentName, msg string)
	// OnToolOutput fires when a tool result is committed.
	OnToolOutput func(ctx context.Context, toolID, clientID, agentName, content string)
	// OnFlush fires when a flush marker is committed.
	OnFlush func(ctx context.Context, clientID, agentName string)
	// OnResurrect fires when the rescue path recovered from invalid model output.
	OnResurrect func(ctx context.Context, clientID, agentName string, mode core.ExecutionMode, reason string)
	// OnAfterToolCalls fires after the tool-call chain of a turn ended.
	OnAfterToolCalls func(ctx context.Context, clientID, agentName string, toolCalls []core.ToolCall)
	// OnInit / OnDispose frame the agent instance lifecycle.
	OnInit    func(ctx context.Context, clientID, agentName string)
	OnDispose func(ctx context.Context, clientID, agentName string)
}

// Agent describes an LLM-backed conversational unit: its completion binding,
// prompt, tool set and output hooks.
type Agent struct {
	// AgentName is the unique registry key.
	AgentName string
	// Completion names the completion schema used for turns.
	Completion string
	// Prompt is the agent's main system prompt.
	Prompt string
	// System holds additional system preamble lines.
	System []string
	// Tools names the tool schemas the agent may dispatch.
	Tools []string
	// Storages names the storage schemas the agent declares.
	Storages []string
	// States names the state schemas the agent declares.
	States []string
	// DependsOn names agents this agent hands off to; listed for
	// documentation and validation only.
	DependsOn []string
	// MaxToolCalls truncates a turn's tool-call batch before dispatch.
	// Zero means unlimited.
	MaxToolCalls int

	// Validate inspects a candidate output; a non-nil error rejects it and
	// triggers the rescue path. Nil falls back to the configured default.
	Validate func(ctx context.Context, output string) error
	// Transform rewrites a candidate output before validation. Nil falls
	// back to the configured default transform.
	Transform func(ctx context.Context, input, clientID, agentName string) (string, error)
	// Map normalizes the raw completion message (e.g. JSON-encoded tool
	// calls into the canonical tool_calls shape). Nil keeps the message.
	Map func(ctx context.Context, msg core.Message, clientID, agentName string) (core.Message, error)

	Callbacks AgentCallbacks
}
