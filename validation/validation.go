// Package validation cross-references registered entities and active
// sessions. Each service answers "is X registered" fail-fast with an error
// naming the caller supplied source label, and the composite services walk
// their references (an agent validates its completion, tools, storages and
// states; a swarm validates its member agents).
//
// Name collision policy lives here, not in the registries: Add rejects a name
// that was already added through the same service.
package validation

import (
	"fmt"
	"sync"

	"github.com/hupe1980/agentswarm/schema"
)

// named tracks registration through one validation service and rejects
// duplicates.
type named struct {
	kind  string
	mu    sync.Mutex
	names map[string]struct{}
}

func newNamed(kind string) named {
	return named{kind: kind, names: map[string]struct{}{}}
}

func (n *named) add(name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.names[name]; ok {
		return fmt.Errorf("%s %q already registered", n.kind, name)
	}
	n.names[name] = struct{}{}
	return nil
}

// CompletionValidation answers whether a completion schema is registered.
type CompletionValidation struct {
	named
	registry *schema.Registry[schema.Completion]
}

// NewCompletionValidation creates the service over registry.
func NewCompletionValidation(registry *schema.Registry[schema.Completion]) *CompletionValidation {
	return &CompletionValidation{named: newNamed("completion"), registry: registry}
}

// Add records a registration; duplicates are errors.
func (v *CompletionValidation) Add(name string) error { return v.add(name) }

// Validate fails unless name is registered; source names the caller.
func (v *CompletionValidation) Validate(name, source string) error {
	if !v.registry.Has(name) {
		return fmt.Errorf("completion %q not registered (source=%s)", name, source)
	}
	return nil
}

// EmbeddingValidation answers whether an embedding schema is registered.
type EmbeddingValidation struct {
	named
	registry *schema.Registry[schema.Embedding]
}

// NewEmbeddingValidation creates the service over registry.
func NewEmbeddingValidation(registry *schema.Registry[schema.Embedding]) *EmbeddingValidation {
	return &EmbeddingValidation{named: newNamed("embedding"), registry: registry}
}

// Add records a registration; duplicates are errors.
func (v *EmbeddingValidation) Add(name string) error { return v.add(name) }

// Validate fails unless name is registered; source names the caller.
func (v *EmbeddingValidation) Validate(name, source string) error {
	if !v.registry.Has(name) {
		return fmt.Errorf("embedding %q not registered (source=%s)", name, source)
	}
	return nil
}

// ToolValidation answers whether a tool schema is registered.
type ToolValidation struct {
	named
	registry *schema.Registry[schema.Tool]
}

// NewToolValidation creates the service over registry.
func NewToolValidation(registry *schema.Registry[schema.Tool]) *ToolValidation {
	return &ToolValidation{named: newNamed("tool"), registry: registry}
}

// Add records a registration; duplicates are errors.
func (v *ToolValidation) Add(name string) error { return v.add(name) }

// Validate fails unless name is registered; source names the caller.
func (v *ToolValidation) Validate(name, source string) error {
	if !v.registry.Has(name) {
		return fmt.Errorf("tool %q not registered (source=%s)", name, source)
	}
	return nil
}

// StorageValidation answers whether a storage schema is registered and its
// embedding resolves.
type StorageValidation struct {
	named
	registry  *schema.Registry[schema.Storage]
	embedding *EmbeddingValidation
}

// NewStorageValidation creates the service over registry.
func NewStorageValidation(registry *schema.Registry[schema.Storage], embedding *EmbeddingValidation) *StorageValidation {
	return &StorageValidation{named: newNamed("storage"), registry: registry, embedding: embedding}
}

// Add records a registration; duplicates are errors.
func (v *StorageValidation) Add(name string) error { return v.add(name) }

// Validate fails unless name is registered and its embedding validates.
func (v *StorageValidation) Validate(name, source string) error {
	s, err := v.registry.Get(name)
	if err != nil {
		return fmt.Errorf("storage %q not registered (source=%s)", name, source)
	}
	if s.Embedding != "" {
		if err := v.embedding.Validate(s.Embedding, fmt.Sprintf("storage %s", name)); err != nil {
			return err
		}
	}
	return nil
}

// StateValidation answers whether a state schema is registered.
type StateValidation struct {
	named
	registry *schema.Registry[schema.State]
}

// NewStateValidation creates the service over registry.
func NewStateValidation(registry *schema.Registry[schema.State]) *StateValidation {
	return &StateValidation{named: newNamed("state"), registry: registry}
}

// Add records a registration; duplicates are errors.
func (v *StateValidation) Add(name string) error { return v.add(name) }

// Validate fails unless name is registered; source names the caller.
func (v *StateValidation) Validate(name, source string) error {
	if !v.registry.Has(name) {
		return fmt.Errorf("state %q not registered (source=%s)", name, source)
	}
	return nil
}

// AgentValidation validates an agent and, recursively, everything it
// declares.
type AgentValidation struct {
	named
	registry   *schema.Registry[schema.Agent]
	completion *CompletionValidation
	tool       *ToolValidation
	storage    *StorageValidation
	state      *StateValidation
}

// NewAgentValidation creates the service over registry and its reference
// validators.
func NewAgentValidation(
	registry *schema.Registry[schema.Agent],
	completion *CompletionValidation,
	tool *ToolValidation,
	storage *StorageValidation,
	state *StateValidation,
) *AgentValidation {
	return &AgentValidation{
		named:      newNamed("agent"),
		registry:   registry,
		completion: completion,
		tool:       tool,
		storage:    storage,
		state:      state,
	}
}

// Add records a registration; duplicates are errors.
func (v *AgentValidation) Add(name string) error { return v.add(name) }

// Validate fails unless name is registered and its completion, tools,
// storages and states all validate.
func (v *AgentValidation) Validate(name, source string) error {
	a, err := v.registry.Get(name)
	if err != nil {
		return fmt.Errorf("agent %q not registered (source=%s)", name, source)
	}
	agentSource := fmt.Sprintf("agent %s", name)
	if err := v.completion.Validate(a.Completion, agentSource); err != nil {
		return err
	}
	for _, toolName := range a.Tools {
		if err := v.tool.Validate(toolName, agentSource); err != nil {
			return err
		}
	}
	for _, storageName := range a.Storages {
		if err := v.storage.Validate(storageName, agentSource); err != nil {
			return err
		}
	}
	for _, stateName := range a.States {
		if err := v.state.Validate(stateName, agentSource); err != nil {
			return err
		}
	}
	return nil
}

// HasStorage reports whether the agent declares the named storage.
func (v *AgentValidation) HasStorage(agentName, storageName string) bool {
	a, err := v.registry.Get(agentName)
	if err != nil {
		return false
	}
	for _, name := range a.Storages {
		if name == storageName {
			return true
		}
	}
	return false
}

// HasState reports whether the agent declares the named state.
func (v *AgentValidation) HasState(agentName, stateName string) bool {
	a, err := v.registry.Get(agentName)
	if err != nil {
		return false
	}
	for _, name := range a.States {
		if name == stateName {
			return true
		}
	}
	return false
}

// SwarmValidation validates a swarm and its membership.
type SwarmValidation struct {
	named
	registry *schema.Registry[schema.Swarm]
	agent    *AgentValidation
}

// NewSwarmValidation creates the service over registry.
func NewSwarmValidation(registry *schema.Registry[schema.Swarm], agent *AgentValidation) *SwarmValidation {
	return &SwarmValidation{named: newNamed("swarm"), registry: registry, agent: agent}
}

// Add records a registration; duplicates are errors.
func (v *SwarmValidation) Add(name string) error { return v.add(name) }

// Validate fails unless name is registered, the default agent is a member of
// the agent list, and every member validates.
func (v *SwarmValidation) Validate(name, source string) error {
	s, err := v.registry.Get(name)
	if err != nil {
		return fmt.Errorf("swarm %q not registered (source=%s)", name, source)
	}
	swarmSource := fmt.Sprintf("swarm %s", name)
	if !contains(s.AgentList, s.DefaultAgent) {
		return fmt.Errorf("swarm %q default agent %q is not in its agent list (source=%s)", name, s.DefaultAgent, source)
	}
	for _, agentName := range s.AgentList {
		if err := v.agent.Validate(agentName, swarmSource); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAgent fails unless agentName is a member of the swarm.
func (v *SwarmValidation) ValidateAgent(swarmName, agentName, source string) error {
	s, err := v.registry.Get(swarmName)
	if err != nil {
		return fmt.Errorf("swarm %q not registered (source=%s)", swarmName, source)
	}
	if !contains(s.AgentList, agentName) {
		return fmt.Errorf("agent %q is not a member of swarm %q (source=%s)", agentName, swarmName, source)
	}
	return nil
}

func contains(list []string, name string) bool {
	for _, item := range list {
		if item == name {
			return true
		}
	}
	return false
}
