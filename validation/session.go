package validation

import (
	"fmt"
	"sort"
	"sync"
)

// SessionMode names how a session was established.
type SessionMode string

const (
	// ModeSession is an explicit Session handle.
	ModeSession SessionMode = "session"
	// ModeMakeConnection is a bidirectional connector session.
	ModeMakeConnection SessionMode = "makeConnection"
	// ModeComplete is a one-shot completion session.
	ModeComplete SessionMode = "complete"
	// ModeScheduled is a delay-window batched session.
	ModeScheduled SessionMode = "scheduled"
)

// SessionValidation tracks live sessions: their swarm binding, mode, and the
// per-client usage of agents, histories, storages and states. Agent and
// history usage are multisets (the same agent may be referenced by several
// live holders); storage and state usage are sets.
type SessionValidation struct {
	mu           sync.Mutex
	swarms       map[string]string
	modes        map[string]SessionMode
	agentUsage   map[string]map[string]int
	historyUsage map[string]map[string]int
	storageUsage map[string]map[string]struct{}
	stateUsage   map[string]map[string]struct{}
}

// NewSessionValidation creates an empty tracker.
func NewSessionValidation() *SessionValidation {
	return &SessionValidation{
		swarms:       map[string]string{},
		modes:        map[string]SessionMode{},
		agentUsage:   map[string]map[string]int{},
		historyUsage: map[string]map[string]int{},
		storageUsage: map[string]map[string]struct{}{},
		stateUsage:   map[string]map[string]struct{}{},
	}
}

// AddSession binds clientID to swarmName; a second bind is an error.
func (v *SessionValidation) AddSession(clientID, swarmName string, mode SessionMode) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.swarms[clientID]; ok {
		return fmt.Errorf("session for client %q already exists", clientID)
	}
	v.swarms[clientID] = swarmName
	v.modes[clientID] = mode
	return nil
}

// RemoveSession drops the binding and every usage record for clientID.
func (v *SessionValidation) RemoveSession(clientID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.swarms, clientID)
	delete(v.modes, clientID)
	delete(v.agentUsage, clientID)
	delete(v.historyUsage, clientID)
	delete(v.storageUsage, clientID)
	delete(v.stateUsage, clientID)
}

// HasSession reports whether clientID has a live session.
func (v *SessionValidation) HasSession(clientID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.swarms[clientID]
	return ok
}

// Validate fails unless clientID has a live session.
func (v *SessionValidation) Validate(clientID, source string) error {
	if !v.HasSession(clientID) {
		return fmt.Errorf("session for client %q not found (source=%s)", clientID, source)
	}
	return nil
}

// GetSwarm returns the swarm bound to clientID.
func (v *SessionValidation) GetSwarm(clientID string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	swarmName, ok := v.swarms[clientID]
	if !ok {
		return "", fmt.Errorf("session for client %q not found", clientID)
	}
	return swarmName, nil
}

// GetSessionMode returns the mode of clientID's session.
func (v *SessionValidation) GetSessionMode(clientID string) (SessionMode, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	mode, ok := v.modes[clientID]
	if !ok {
		return "", fmt.Errorf("session for client %q not found", clientID)
	}
	return mode, nil
}

// GetSessionList returns every live clientID sorted.
func (v *SessionValidation) GetSessionList() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	list := make([]string, 0, len(v.swarms))
	for clientID := range v.swarms {
		list = append(list, clientID)
	}
	sort.Strings(list)
	return list
}

// AddAgentUsage records one holder of (clientID, agentName).
func (v *SessionValidation) AddAgentUsage(clientID, agentName string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	addCount(v.agentUsage, clientID, agentName)
}

// RemoveAgentUsage drops one holder of (clientID, agentName).
func (v *SessionValidation) RemoveAgentUsage(clientID, agentName string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	removeCount(v.agentUsage, clientID, agentName)
}

// AddHistoryUsage records one holder of (clientID, agentName) history.
func (v *SessionValidation) AddHistoryUsage(clientID, agentName string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	addCount(v.historyUsage, clientID, agentName)
}

// RemoveHistoryUsage drops one holder of (clientID, agentName) history.
func (v *SessionValidation) RemoveHistoryUsage(clientID, agentName string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	removeCount(v.historyUsage, clientID, agentName)
}

// AddStorageUsage records that clientID touched storageName.
func (v *SessionValidation) AddStorageUsage(clientID, storageName string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.storageUsage[clientID] == nil {
		v.storageUsage[clientID] = map[string]struct{}{}
	}
	v.storageUsage[clientID][storageName] = struct{}{}
}

// AddStateUsage records that clientID touched stateName.
func (v *SessionValidation) AddStateUsage(clientID, stateName string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.stateUsage[clientID] == nil {
		v.stateUsage[clientID] = map[string]struct{}{}
	}
	v.stateUsage[clientID][stateName] = struct{}{}
}

func addCount(m map[string]map[string]int, clientID, name string) {
	if m[clientID] == nil {
		m[clientID] = map[string]int{}
	}
	m[clientID][name]++
}

func removeCount(m map[string]map[string]int, clientID, name string) {
	counts := m[clientID]
	if counts == nil {
		return
	}
	counts[name]--
	if counts[name] <= 0 {
		delete(counts, name)
	}
	if len(counts) == 0 {
		delete(m, clientID)
	}
}
