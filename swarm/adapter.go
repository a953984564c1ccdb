package swarm

import (
	"context"
	"sync"

	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/persist"
)

// PersistAdapter stores the active agent and navigation stack of a
// (client, swarm) pair. The stack is exposed as push/pop so adapters can
// persist entries in arrival order instead of rewriting the whole stack.
type PersistAdapter interface {
	GetActiveAgent(ctx context.Context, clientID, defaultAgent string) (string, error)
	SetActiveAgent(ctx context.Context, clientID, agentName string) error
	PushNavigation(ctx context.Context, clientID, agentName string) error
	// PopNavigation removes and returns the most recently pushed agent; ok
	// is false for an empty stack.
	PopNavigation(ctx context.Context, clientID string) (agentName string, ok bool, err error)
}

// MemoryAdapter keeps active agents and stacks in process memory. It is the
// default for swarms that do not opt into persistence.
type MemoryAdapter struct {
	mu     sync.Mutex
	active map[string]string
	stacks map[string][]string
}

// NewMemoryAdapter creates an empty in-memory adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{active: map[string]string{}, stacks: map[string][]string{}}
}

// GetActiveAgent returns the stored active agent or defaultAgent.
func (a *MemoryAdapter) GetActiveAgent(ctx context.Context, clientID, defaultAgent string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if name, ok := a.active[clientID]; ok {
		return name, nil
	}
	return defaultAgent, nil
}

// SetActiveAgent stores the active agent.
func (a *MemoryAdapter) SetActiveAgent(ctx context.Context, clientID, agentName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active[clientID] = agentName
	return nil
}

// PushNavigation appends agentName to the client's stack.
func (a *MemoryAdapter) PushNavigation(ctx context.Context, clientID, agentName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stacks[clientID] = append(a.stacks[clientID], agentName)
	return nil
}

// PopNavigation removes and returns the top of the client's stack.
func (a *MemoryAdapter) PopNavigation(ctx context.Context, clientID string) (string, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	stack := a.stacks[clientID]
	if len(stack) == 0 {
		return "", false, nil
	}
	name := stack[len(stack)-1]
	a.stacks[clientID] = stack[:len(stack)-1]
	return name, true, nil
}

// FileAdapter persists through the filesystem entity layout: the active
// agent as one JSON entity per client, the navigation stack as an ordered
// list store per client (one numeric-key entry per pushed agent).
type FileAdapter struct {
	baseDir   string
	swarmName string
	logger    logging.Logger

	active *persist.EntityStore

	mu     sync.Mutex
	stacks map[string]*persist.ListStore
}

// NewFileAdapter creates an adapter rooted at baseDir for swarmName.
func NewFileAdapter(baseDir, swarmName string, logger logging.Logger) *FileAdapter {
	a := &FileAdapter{
		baseDir:   baseDir,
		swarmName: swarmName,
		logger:    logger,
		stacks:    map[string]*persist.ListStore{},
	}
	a.active = persist.NewEntityStore(persist.ActiveAgentDir(baseDir, swarmName), a.withLogger)
	return a
}

func (a *FileAdapter) withLogger(o *persist.Options) {
	if a.logger != nil {
		o.Logger = a.logger
	}
}

// stackFor lazily opens the client's navigation list store.
func (a *FileAdapter) stackFor(clientID string) *persist.ListStore {
	a.mu.Lock()
	defer a.mu.Unlock()
	if stack, ok := a.stacks[clientID]; ok {
		return stack
	}
	stack := persist.NewListStore(persist.NavigationStackDir(a.baseDir, a.swarmName, clientID), a.withLogger)
	a.stacks[clientID] = stack
	return stack
}

// GetActiveAgent returns the persisted active agent or defaultAgent.
func (a *FileAdapter) GetActiveAgent(ctx context.Context, clientID, defaultAgent string) (string, error) {
	ok, err := a.active.Has(clientID)
	if err != nil {
		return "", err
	}
	if !ok {
		return defaultAgent, nil
	}
	var entity persist.ActiveAgentEntity
	if err := a.active.Read(clientID, &entity); err != nil {
		return "", err
	}
	if entity.AgentName == "" {
		return defaultAgent, nil
	}
	return entity.AgentName, nil
}

// SetActiveAgent persists the active agent.
func (a *FileAdapter) SetActiveAgent(ctx context.Context, clientID, agentName string) error {
	return a.active.Write(clientID, persist.ActiveAgentEntity{AgentName: agentName})
}

// PushNavigation appends a stack entry under the next numeric key.
func (a *FileAdapter) PushNavigation(ctx context.Context, clientID, agentName string) error {
	return a.stackFor(clientID).Push(persist.ActiveAgentEntity{AgentName: agentName})
}

// PopNavigation removes and returns the most recently pushed entry.
func (a *FileAdapter) PopNavigation(ctx context.Context, clientID string) (string, bool, error) {
	var entity persist.ActiveAgentEntity
	ok, err := a.stackFor(clientID).Pop(&entity)
	if err != nil || !ok {
		return "", false, err
	}
	return entity.AgentName, true, nil
}
