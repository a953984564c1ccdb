package core

import "context"

// EventSource names the subsystem a bus event originated from.
type EventSource string

const (
	// AgentBus carries turn engine events (execute, output, tool dispatch).
	AgentBus EventSource = "agent-bus"
	// HistoryBus carries history push / flush events.
	HistoryBus EventSource = "history-bus"
	// SessionBus carries session gateway events.
	SessionBus EventSource = "session-bus"
	// StateBus carries state read / write events.
	StateBus EventSource = "state-bus"
	// StorageBus carries storage mutation and search events.
	StorageBus EventSource = "storage-bus"
	// SwarmBus carries active-agent and navigation events.
	SwarmBus EventSource = "swarm-bus"
)

// EventContext pins an event to the resources it concerns. Empty fields mean
// "not applicable".
type EventContext struct {
	AgentName   string `json:"agentName,omitempty"`
	SwarmName   string `json:"swarmName,omitempty"`
	StorageName string `json:"storageName,omitempty"`
	StateName   string `json:"stateName,omitempty"`
}

// Event is the unit delivered through the bus. After emission it should be
// treated as immutable.
type Event struct {
	Source   EventSource    `json:"source"`
	ClientID string         `json:"clientId"`
	Type     string         `json:"type"`
	Input    map[string]any `json:"input,omitempty"`
	Output   map[string]any `json:"output,omitempty"`
	Context  EventContext   `json:"context"`
}

// EventHandler consumes a single bus event. Handlers run serially in
// subscription order; a returned error aborts the emit.
type EventHandler func(ctx context.Context, e Event) error

// EventFilter gates delivery for Once subscriptions.
type EventFilter func(e Event) bool

// EventBus is the emit-side contract consumed by runtime components. The bus
// package provides the full subscribe surface.
type EventBus interface {
	Emit(ctx context.Context, clientID string, e Event) error
}
