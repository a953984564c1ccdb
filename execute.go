package agentswarm

import (
	"context"

	"github.com/hupe1980/agentswarm/core"
)

// Execute runs one turn on the active agent and returns its output. It is
// the entry used by tools running inside a turn: unlike the session entries
// it bypasses the per-client queue (the queue is held by the turn the tool
// belongs to) and waits on the swarm output directly. The call is skipped
// with an empty result when agentName is no longer the active agent.
func (s *AgentSwarm) Execute(ctx context.Context, msg, clientID, agentName string) (string, error) {
	if !s.activeAgentIs(ctx, clientID, agentName) {
		return "", nil
	}
	return s.ExecuteForce(ctx, msg, clientID)
}

// ExecuteForce is Execute without the active-agent guard.
func (s *AgentSwarm) ExecuteForce(ctx context.Context, msg, clientID string) (string, error) {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "Execute"})
	sw, _, err := s.swarmFor(ctx, clientID, "Execute")
	if err != nil {
		return "", err
	}
	agent, err := sw.GetAgent(ctx)
	if err != nil {
		return "", err
	}

	// Register the output wait before the turn starts.
	out := sw.Output(ctx)
	execErr := make(chan error, 1)
	go func() { execErr <- agent.Execute(ctx, msg, core.ModeTool) }()

	for {
		select {
		case err := <-execErr:
			if err != nil {
				return "", err
			}
			execErr = nil
		case result := <-out:
			return result, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Run performs a stateless completion pass on the active agent. The call is
// skipped with an empty result when agentName is no longer active.
func (s *AgentSwarm) Run(ctx context.Context, msg, clientID, agentName string) (string, error) {
	if !s.activeAgentIs(ctx, clientID, agentName) {
		return "", nil
	}
	return s.RunForce(ctx, msg, clientID)
}

// RunForce is Run without the active-agent guard.
func (s *AgentSwarm) RunForce(ctx context.Context, msg, clientID string) (string, error) {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "Run"})
	gateway, _, err := s.sessionFor(ctx, clientID, "Run")
	if err != nil {
		return "", err
	}
	return gateway.Run(ctx, msg)
}

// Emit publishes msg directly to the client's connector. The call is
// skipped when agentName is no longer active.
func (s *AgentSwarm) Emit(ctx context.Context, msg, clientID, agentName string) error {
	if !s.activeAgentIs(ctx, clientID, agentName) {
		return nil
	}
	return s.EmitForce(ctx, msg, clientID)
}

// EmitForce is Emit without the active-agent guard.
func (s *AgentSwarm) EmitForce(ctx context.Context, msg, clientID string) error {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "Emit"})
	gateway, _, err := s.sessionFor(ctx, clientID, "Emit")
	if err != nil {
		return err
	}
	return gateway.Emit(ctx, msg)
}

// CancelOutput resolves the client's pending output wait with the empty
// string. The call is skipped when agentName is no longer active.
func (s *AgentSwarm) CancelOutput(ctx context.Context, clientID, agentName string) error {
	if !s.activeAgentIs(ctx, clientID, agentName) {
		return nil
	}
	return s.CancelOutputForce(ctx, clientID)
}

// CancelOutputForce is CancelOutput without the active-agent guard.
func (s *AgentSwarm) CancelOutputForce(ctx context.Context, clientID string) error {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "CancelOutput"})
	sw, _, err := s.swarmFor(ctx, clientID, "CancelOutput")
	if err != nil {
		return err
	}
	return sw.CancelOutput(ctx)
}
