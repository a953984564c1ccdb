package agent

import (
	"context"
	"strings"

	"github.com/hupe1980/agentswarm/core"
)

// The commit methods append to history (or fire coordination signals)
// without triggering a completion. They deliberately bypass the per-agent
// execution queue: a tool running inside a turn commits its output while the
// turn still holds the queue.

// CommitUserMessage appends a user message.
func (c *Client) CommitUserMessage(ctx context.Context, msg string, mode core.ExecutionMode) error {
	msg = strings.TrimSpace(msg)
	if err := c.history.Push(ctx, core.Message{
		Role:      core.RoleUser,
		AgentName: c.schema.AgentName,
		Mode:      mode,
		Content:   msg,
	}); err != nil {
		return err
	}
	if cb := c.schema.Callbacks.OnUserMessage; cb != nil {
		cb(ctx, c.clientID, c.schema.AgentName, msg)
	}
	c.emitBus(ctx, "commit-user-message", map[string]any{"message": msg, "mode": string(mode)}, nil)
	return nil
}

// CommitAssistantMessage appends an assistant message.
func (c *Client) CommitAssistantMessage(ctx context.Context, msg string) error {
	msg = strings.TrimSpace(msg)
	if err := c.history.Push(ctx, core.Message{
		Role:      core.RoleAssistant,
		AgentName: c.schema.AgentName,
		Mode:      core.ModeTool,
		Content:   msg,
	}); err != nil {
		return err
	}
	if cb := c.schema.Callbacks.OnAssistantMessage; cb != nil {
		cb(ctx, c.clientID, c.schema.AgentName, msg)
	}
	c.emitBus(ctx, "commit-assistant-message", map[string]any{"message": msg}, nil)
	return nil
}

// CommitSystemMessage appends a system message.
func (c *Client) CommitSystemMessage(ctx context.Context, msg string) error {
	msg = strings.TrimSpace(msg)
	if err := c.history.Push(ctx, core.Message{
		Role:      core.RoleSystem,
		AgentName: c.schema.AgentName,
		Mode:      core.ModeTool,
		Content:   msg,
	}); err != nil {
		return err
	}
	if cb := c.schema.Callbacks.OnSystemMessage; cb != nil {
		cb(ctx, c.clientID, c.schema.AgentName, msg)
	}
	c.emitBus(ctx, "commit-system-message", map[string]any{"message": msg}, nil)
	return nil
}

// CommitToolOutput appends a tool message referencing toolID and fires the
// tool-commit signal, releasing the dispatcher to the next call.
func (c *Client) CommitToolOutput(ctx context.Context, toolID, content string) error {
	if err := c.history.Push(ctx, core.Message{
		Role:       core.RoleTool,
		AgentName:  c.schema.AgentName,
		Mode:       core.ModeTool,
		Content:    content,
		ToolCallID: toolID,
	}); err != nil {
		return err
	}
	if cb := c.schema.Callbacks.OnToolOutput; cb != nil {
		cb(ctx, toolID, c.clientID, c.schema.AgentName, content)
	}
	c.emitBus(ctx, "commit-tool-output", map[string]any{"tool_call_id": toolID, "content": content}, nil)
	c.toolCommit.Emit(content)
	return nil
}

// CommitFlush appends a flush marker, hiding prior context from the agent
// projection.
func (c *Client) CommitFlush(ctx context.Context) error {
	if err := c.history.Push(ctx, core.Message{
		Role:      core.RoleFlush,
		AgentName: c.schema.AgentName,
		Mode:      core.ModeTool,
	}); err != nil {
		return err
	}
	if cb := c.schema.Callbacks.OnFlush; cb != nil {
		cb(ctx, c.clientID, c.schema.AgentName)
	}
	c.emitBus(ctx, "commit-flush", nil, nil)
	return nil
}

// CommitAgentChange fires the agent-change signal; a tool-call chain
// observing it halts further dispatches.
func (c *Client) CommitAgentChange(ctx context.Context) error {
	c.emitBus(ctx, "commit-agent-change", nil, nil)
	c.agentChange.Emit("")
	return nil
}

// CommitStopTools fires the tool-stop signal with the same halting effect.
func (c *Client) CommitStopTools(ctx context.Context) error {
	c.emitBus(ctx, "commit-stop-tools", nil, nil)
	c.toolStop.Emit("")
	return nil
}
