// Package history keeps the per-(client, agent) append-only message log and
// computes the filtered projection handed to completion back-ends. The raw
// log is never rewritten; a flush marker hides everything before it from the
// agent projection without deleting entries.
package history

import (
	"context"
	"sync"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
)

// DefaultKeepMessages bounds the filtered projection.
const DefaultKeepMessages = 25

// Filter decides whether a message is part of the agent projection.
type Filter func(msg core.Message) bool

// Callbacks are optional hooks fired by a Store.
type Callbacks struct {
	// OnPush fires after a message was appended.
	OnPush func(ctx context.Context, clientID, agentName string, msg core.Message)
	// OnDispose fires when the store is torn down.
	OnDispose func(ctx context.Context, clientID, agentName string)
}

// Options configures a Store.
type Options struct {
	// KeepMessages bounds the filtered projection (after filtering).
	KeepMessages int
	// Filter overrides the default agent projection filter.
	Filter Filter
	// Bus receives history-bus events; nil disables emission.
	Bus core.EventBus
	// Logger receives store logs.
	Logger logging.Logger

	Callbacks Callbacks
}

// Store is the per-(client, agent) log. It is safe for concurrent use.
type Store struct {
	clientID  string
	agentName string
	keep      int
	filter    Filter
	bus       core.EventBus
	logger    logging.Logger
	callbacks Callbacks

	mu       sync.RWMutex
	messages []core.Message
}

// New creates an empty store for (clientID, agentName).
func New(clientID, agentName string, optFns ...func(o *Options)) *Store {
	opts := Options{
		KeepMessages: DefaultKeepMessages,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	s := &Store{
		clientID:  clientID,
		agentName: agentName,
		keep:      opts.KeepMessages,
		filter:    opts.Filter,
		bus:       opts.Bus,
		logger:    opts.Logger,
		callbacks: opts.Callbacks,
	}
	if s.filter == nil {
		s.filter = s.defaultFilter
	}
	if s.keep <= 0 {
		s.keep = DefaultKeepMessages
	}
	return s
}

// defaultFilter keeps messages addressed to this agent plus the plain
// user/assistant conversation.
func (s *Store) defaultFilter(msg core.Message) bool {
	if msg.AgentName == s.agentName {
		return true
	}
	return msg.Role == core.RoleUser || msg.Role == core.RoleAssistant
}

// Push appends msg in arrival order.
func (s *Store) Push(ctx context.Context, msg core.Message) error {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.logger.Debug("history push", "client_id", s.clientID, "agent_name", s.agentName, "role", string(msg.Role))
	if s.callbacks.OnPush != nil {
		s.callbacks.OnPush(ctx, s.clientID, s.agentName, msg)
	}
	if s.bus != nil {
		return s.bus.Emit(ctx, s.clientID, core.Event{
			Source: core.HistoryBus,
			Type:   "push",
			Input:  map[string]any{"role": string(msg.Role), "content": msg.Content},
			Context: core.EventContext{
				AgentName: s.agentName,
			},
		})
	}
	return nil
}

// ToArrayForRaw returns the entire log in push order.
func (s *Store) ToArrayForRaw(ctx context.Context) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

// ToArrayForAgent returns the prompt/system preamble followed by the
// filtered log: messages after the most recent flush marker that pass the
// agent filter, truncated to the keep-last-N window without splitting a
// tool-call message from its tool-result replies.
func (s *Store) ToArrayForAgent(ctx context.Context, prompt string, system []string) ([]core.Message, error) {
	s.mu.RLock()
	log := make([]core.Message, len(s.messages))
	copy(log, s.messages)
	s.mu.RUnlock()

	out := make([]core.Message, 0, len(log)+len(system)+1)
	if prompt != "" {
		out = append(out, core.Message{Role: core.RoleSystem, AgentName: s.agentName, Content: prompt})
	}
	for _, line := range system {
		out = append(out, core.Message{Role: core.RoleSystem, AgentName: s.agentName, Content: line})
	}

	// Cut at the most recent flush marker.
	start := 0
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].Role == core.RoleFlush {
			start = i + 1
			break
		}
	}

	filtered := make([]core.Message, 0, len(log)-start)
	for _, msg := range log[start:] {
		if msg.Role == core.RoleFlush || msg.Role == core.RoleResque {
			continue
		}
		if !s.filter(msg) {
			continue
		}
		filtered = append(filtered, msg)
	}

	return append(out, truncate(filtered, s.keep)...), nil
}

// truncate keeps the last keep messages, then drops leading tool results
// whose originating tool-call message fell outside the window so a call and
// its replies are never split.
func truncate(msgs []core.Message, keep int) []core.Message {
	if len(msgs) > keep {
		msgs = msgs[len(msgs)-keep:]
	}
	for len(msgs) > 0 && msgs[0].Role == core.RoleTool {
		msgs = msgs[1:]
	}
	return msgs
}

// Dispose tears down the store.
func (s *Store) Dispose(ctx context.Context) error {
	if s.callbacks.OnDispose != nil {
		s.callbacks.OnDispose(ctx, s.clientID, s.agentName)
	}
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()
	return nil
}
