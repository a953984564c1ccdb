package agentswarm

import (
	"context"

	"github.com/hupe1980/agentswarm/core"
)

// ChangeToAgent switches the client's active agent to agentName. The
// outgoing agent's tool-call chain is halted through the agent-change
// signal.
func (s *AgentSwarm) ChangeToAgent(ctx context.Context, agentName, clientID string) error {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "ChangeToAgent", AgentName: agentName})
	sw, swarmName, err := s.swarmFor(ctx, clientID, "ChangeToAgent")
	if err != nil {
		return err
	}
	if err := s.swarmValidation.ValidateAgent(swarmName, agentName, "ChangeToAgent"); err != nil {
		return err
	}

	outgoing, err := sw.GetAgent(ctx)
	if err != nil {
		return err
	}
	if err := sw.SetAgentName(ctx, agentName); err != nil {
		return err
	}
	if err := outgoing.CommitAgentChange(ctx); err != nil {
		return err
	}
	if cb := s.cfg.SwarmAgentChanged; cb != nil {
		cb(ctx, clientID, agentName, swarmName)
	}
	return nil
}

// ChangeAgent is a deprecated alias of ChangeToAgent.
//
// Deprecated: use ChangeToAgent.
func (s *AgentSwarm) ChangeAgent(ctx context.Context, agentName, clientID string) error {
	return s.ChangeToAgent(ctx, agentName, clientID)
}

// ChangeToDefaultAgent activates the swarm's default agent.
func (s *AgentSwarm) ChangeToDefaultAgent(ctx context.Context, clientID string) error {
	swarmName, err := s.sessionValidation.GetSwarm(clientID)
	if err != nil {
		return err
	}
	swarmSchema, err := s.registries.Swarms.Get(swarmName)
	if err != nil {
		return err
	}
	return s.ChangeToAgent(ctx, swarmSchema.DefaultAgent, clientID)
}

// ChangeToPrevAgent pops the navigation stack and activates the popped
// agent, falling back to the swarm default for an empty stack. The entry
// suppresses ambient scopes: it may run inside a tool executing inside a
// turn.
func (s *AgentSwarm) ChangeToPrevAgent(ctx context.Context, clientID string) (string, error) {
	ctx = core.BeginContext(ctx)
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "ChangeToPrevAgent"})

	sw, swarmName, err := s.swarmFor(ctx, clientID, "ChangeToPrevAgent")
	if err != nil {
		return "", err
	}
	outgoing, err := sw.GetAgent(ctx)
	if err != nil {
		return "", err
	}

	name, err := sw.NavigationPop(ctx)
	if err != nil {
		return "", err
	}
	if err := outgoing.CommitAgentChange(ctx); err != nil {
		return "", err
	}
	if cb := s.cfg.SwarmAgentChanged; cb != nil {
		cb(ctx, clientID, name, swarmName)
	}
	return name, nil
}

// GetAgentName returns the client's active agent name.
func (s *AgentSwarm) GetAgentName(ctx context.Context, clientID string) (string, error) {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "GetAgentName"})
	sw, _, err := s.swarmFor(ctx, clientID, "GetAgentName")
	if err != nil {
		return "", err
	}
	return sw.GetAgentName(ctx)
}
