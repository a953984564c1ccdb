package core

import (
	"github.com/google/uuid"
)

// Role identifies the conversational role of a message.
type Role string

const (
	// RoleAssistant marks model-produced output.
	RoleAssistant Role = "assistant"
	// RoleSystem marks prompt preamble entries.
	RoleSystem Role = "system"
	// RoleTool marks tool execution results referencing a tool call id.
	RoleTool Role = "tool"
	// RoleUser marks client or tool injected input.
	RoleUser Role = "user"
	// RoleResque marks a rescue marker appended before a recovery prompt.
	RoleResque Role = "resque"
	// RoleFlush marks a logical history reset. Messages preceding the most
	// recent flush marker are hidden from the agent projection.
	RoleFlush Role = "flush"
)

// ExecutionMode distinguishes human input from tool-injected input. History
// filters and event payloads carry it alongside the role.
type ExecutionMode string

const (
	// ModeUser is input originating from a connected client.
	ModeUser ExecutionMode = "user"
	// ModeTool is input injected by a running tool.
	ModeTool ExecutionMode = "tool"
)

// ToolCallFunction is the concrete function target of a tool call.
type ToolCallFunction struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolCall is a model-produced request to invoke a named function. The shape
// is normalized across providers so downstream logic never branches per
// vendor.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"` // "function"
	Function ToolCallFunction `json:"function"`
}

// Normalize ensures the call carries an id and the function type marker.
// Missing ids are generated locally and never reconciled with the completion
// back-end.
func (tc ToolCall) Normalize() ToolCall {
	if tc.ID == "" {
		tc.ID = "call_" + uuid.NewString()
	}
	if tc.Type == "" {
		tc.Type = "function"
	}
	return tc
}

// Message is the unit stored in history and exchanged with completion
// back-ends.
type Message struct {
	Role       Role          `json:"role"`
	AgentName  string        `json:"agentName"`
	Mode       ExecutionMode `json:"mode,omitempty"`
	Content    string        `json:"content"`
	ToolCalls  []ToolCall    `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

// FunctionSpec declaratively exposes a callable function to the model.
// Parameters is a JSON Schema object (minimal subset expected).
type FunctionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// CompletionArgs captures the normalized completion input built by the turn
// engine: filtered history plus the wire view of the agent's tools.
type CompletionArgs struct {
	ClientID  string         `json:"clientId"`
	AgentName string         `json:"agentName"`
	Mode      ExecutionMode  `json:"mode"`
	Messages  []Message      `json:"messages"`
	Tools     []FunctionSpec `json:"tools,omitempty"`
}

// ToolDTO is the payload handed to a tool's Call and Validate hooks.
type ToolDTO struct {
	ToolID    string         `json:"toolId"`
	ClientID  string         `json:"clientId"`
	AgentName string         `json:"agentName"`
	Params    map[string]any `json:"params"`
	// ToolCalls is the full (already truncated) batch the call belongs to.
	ToolCalls []ToolCall `json:"toolCalls"`
	// IsLast reports whether this is the final call of the batch.
	IsLast bool `json:"isLast"`
}
