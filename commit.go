package agentswarm

import (
	"context"

	"github.com/hupe1980/agentswarm/core"
)

// The commit entries append to the active agent's history (or fire
// coordination signals) without triggering a completion. The non-Force
// variants skip silently when agentName is no longer the active agent, since
// a tool that navigated away may still try to commit for its old agent.

// CommitToolOutput appends a tool result for toolID.
func (s *AgentSwarm) CommitToolOutput(ctx context.Context, toolID, content, clientID, agentName string) error {
	if !s.activeAgentIs(ctx, clientID, agentName) {
		return nil
	}
	return s.CommitToolOutputForce(ctx, toolID, content, clientID)
}

// CommitToolOutputForce is CommitToolOutput without the active-agent guard.
func (s *AgentSwarm) CommitToolOutputForce(ctx context.Context, toolID, content, clientID string) error {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "CommitToolOutput"})
	gateway, _, err := s.sessionFor(ctx, clientID, "CommitToolOutput")
	if err != nil {
		return err
	}
	return gateway.CommitToolOutput(ctx, toolID, content)
}

// CommitUserMessage appends a user message without completion.
func (s *AgentSwarm) CommitUserMessage(ctx context.Context, msg, clientID, agentName string) error {
	if !s.activeAgentIs(ctx, clientID, agentName) {
		return nil
	}
	return s.CommitUserMessageForce(ctx, msg, clientID)
}

// CommitUserMessageForce is CommitUserMessage without the active-agent
// guard.
func (s *AgentSwarm) CommitUserMessageForce(ctx context.Context, msg, clientID string) error {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "CommitUserMessage"})
	gateway, _, err := s.sessionFor(ctx, clientID, "CommitUserMessage")
	if err != nil {
		return err
	}
	return gateway.CommitUserMessage(ctx, msg, core.ModeUser)
}

// CommitAssistantMessage appends an assistant message without completion.
func (s *AgentSwarm) CommitAssistantMessage(ctx context.Context, msg, clientID, agentName string) error {
	if !s.activeAgentIs(ctx, clientID, agentName) {
		return nil
	}
	return s.CommitAssistantMessageForce(ctx, msg, clientID)
}

// CommitAssistantMessageForce is CommitAssistantMessage without the
// active-agent guard.
func (s *AgentSwarm) CommitAssistantMessageForce(ctx context.Context, msg, clientID string) error {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "CommitAssistantMessage"})
	gateway, _, err := s.sessionFor(ctx, clientID, "CommitAssistantMessage")
	if err != nil {
		return err
	}
	return gateway.CommitAssistantMessage(ctx, msg)
}

// CommitSystemMessage appends a system message.
func (s *AgentSwarm) CommitSystemMessage(ctx context.Context, msg, clientID, agentName string) error {
	if !s.activeAgentIs(ctx, clientID, agentName) {
		return nil
	}
	return s.CommitSystemMessageForce(ctx, msg, clientID)
}

// CommitSystemMessageForce is CommitSystemMessage without the active-agent
// guard.
func (s *AgentSwarm) CommitSystemMessageForce(ctx context.Context, msg, clientID string) error {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "CommitSystemMessage"})
	gateway, _, err := s.sessionFor(ctx, clientID, "CommitSystemMessage")
	if err != nil {
		return err
	}
	return gateway.CommitSystemMessage(ctx, msg)
}

// CommitFlush appends a flush marker, hiding prior context from the active
// agent's projection.
func (s *AgentSwarm) CommitFlush(ctx context.Context, clientID, agentName string) error {
	if !s.activeAgentIs(ctx, clientID, agentName) {
		return nil
	}
	return s.CommitFlushForce(ctx, clientID)
}

// CommitFlushForce is CommitFlush without the active-agent guard.
func (s *AgentSwarm) CommitFlushForce(ctx context.Context, clientID string) error {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "CommitFlush"})
	gateway, _, err := s.sessionFor(ctx, clientID, "CommitFlush")
	if err != nil {
		return err
	}
	return gateway.CommitFlush(ctx)
}

// CommitStopTools halts the active agent's tool-call chain.
func (s *AgentSwarm) CommitStopTools(ctx context.Context, clientID, agentName string) error {
	if !s.activeAgentIs(ctx, clientID, agentName) {
		return nil
	}
	return s.CommitStopToolsForce(ctx, clientID)
}

// CommitStopToolsForce is CommitStopTools without the active-agent guard.
func (s *AgentSwarm) CommitStopToolsForce(ctx context.Context, clientID string) error {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "CommitStopTools"})
	gateway, _, err := s.sessionFor(ctx, clientID, "CommitStopTools")
	if err != nil {
		return err
	}
	return gateway.CommitStopTools(ctx)
}
