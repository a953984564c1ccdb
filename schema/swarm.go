package schema

import "context"

// SwarmCallbacks are optional hooks fired by the client swarm.
type SwarmCallbacks struct {
	// OnAgentChanged fires after the active agent switched.
	OnAgentChanged func(ctx context.Context, clientID, agentName, swarmName string)
	OnInit         func(ctx context.Context, clientID, swarmName string)
	OnDispose      func(ctx context.Context, clientID, swarmName string)
}

// Swarm describes a named collection of agents with a designated default.
type Swarm struct {
	// SwarmName is the unique registry key.
	SwarmName string
	// DefaultAgent is the agent activated for fresh clients and empty
	// navigation stacks. Must be a member of AgentList.
	DefaultAgent string
	// AgentList names the member agents.
	AgentList []string
	// Persist enables the filesystem adapters for active agent and
	// navigation stack. When false both live in process memory only.
	Persist bool

	Callbacks SwarmCallbacks
}
