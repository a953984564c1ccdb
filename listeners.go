package agentswarm

import (
	"github.com/hupe1980/agentswarm/core"
)

// The listener surface exposes the bus per source. clientID may be the
// wildcard "*" to observe every client; the returned function removes the
// subscription.

// ListenAgentEvent subscribes to turn engine events.
func (s *AgentSwarm) ListenAgentEvent(clientID string, fn core.EventHandler) func() {
	return s.bus.Subscribe(clientID, core.AgentBus, fn)
}

// ListenAgentEventOnce subscribes to the first matching turn engine event.
func (s *AgentSwarm) ListenAgentEventOnce(clientID string, filter core.EventFilter, fn core.EventHandler) func() {
	return s.bus.Once(clientID, core.AgentBus, filter, fn)
}

// ListenHistoryEvent subscribes to history events.
func (s *AgentSwarm) ListenHistoryEvent(clientID string, fn core.EventHandler) func() {
	return s.bus.Subscribe(clientID, core.HistoryBus, fn)
}

// ListenHistoryEventOnce subscribes to the first matching history event.
func (s *AgentSwarm) ListenHistoryEventOnce(clientID string, filter core.EventFilter, fn core.EventHandler) func() {
	return s.bus.Once(clientID, core.HistoryBus, filter, fn)
}

// ListenSessionEvent subscribes to session gateway events.
func (s *AgentSwarm) ListenSessionEvent(clientID string, fn core.EventHandler) func() {
	return s.bus.Subscribe(clientID, core.SessionBus, fn)
}

// ListenSessionEventOnce subscribes to the first matching session event.
func (s *AgentSwarm) ListenSessionEventOnce(clientID string, filter core.EventFilter, fn core.EventHandler) func() {
	return s.bus.Once(clientID, core.SessionBus, filter, fn)
}

// ListenStateEvent subscribes to state events.
func (s *AgentSwarm) ListenStateEvent(clientID string, fn core.EventHandler) func() {
	return s.bus.Subscribe(clientID, core.StateBus, fn)
}

// ListenStateEventOnce subscribes to the first matching state event.
func (s *AgentSwarm) ListenStateEventOnce(clientID string, filter core.EventFilter, fn core.EventHandler) func() {
	return s.bus.Once(clientID, core.StateBus, filter, fn)
}

// ListenStorageEvent subscribes to storage events.
func (s *AgentSwarm) ListenStorageEvent(clientID string, fn core.EventHandler) func() {
	return s.bus.Subscribe(clientID, core.StorageBus, fn)
}

// ListenStorageEventOnce subscribes to the first matching storage event.
func (s *AgentSwarm) ListenStorageEventOnce(clientID string, filter core.EventFilter, fn core.EventHandler) func() {
	return s.bus.Once(clientID, core.StorageBus, filter, fn)
}

// ListenSwarmEvent subscribes to swarm controller events.
func (s *AgentSwarm) ListenSwarmEvent(clientID string, fn core.EventHandler) func() {
	return s.bus.Subscribe(clientID, core.SwarmBus, fn)
}

// ListenSwarmEventOnce subscribes to the first matching swarm event.
func (s *AgentSwarm) ListenSwarmEventOnce(clientID string, filter core.EventFilter, fn core.EventHandler) func() {
	return s.bus.Once(clientID, core.SwarmBus, filter, fn)
}
