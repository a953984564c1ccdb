package agentswarm

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentswarm/core"
)

// The storage and state entries are delegated through the connection layer
// with validation that the calling agent declared the named resource.

func (s *AgentSwarm) checkStorageAccess(clientID, agentName, storageName, source string) error {
	if err := s.sessionValidation.Validate(clientID, source); err != nil {
		return err
	}
	if err := s.storageValidation.Validate(storageName, source); err != nil {
		return err
	}
	if !s.agentValidation.HasStorage(agentName, storageName) {
		return fmt.Errorf("agent %q does not declare storage %q (source=%s)", agentName, storageName, source)
	}
	return nil
}

func (s *AgentSwarm) checkStateAccess(clientID, agentName, stateName, source string) error {
	if err := s.sessionValidation.Validate(clientID, source); err != nil {
		return err
	}
	if err := s.stateValidation.Validate(stateName, source); err != nil {
		return err
	}
	if !s.agentValidation.HasState(agentName, stateName) {
		return fmt.Errorf("agent %q does not declare state %q (source=%s)", agentName, stateName, source)
	}
	return nil
}

// StorageTake returns up to total items ranked by similarity against
// search.
func (s *AgentSwarm) StorageTake(ctx context.Context, clientID, agentName, storageName, search string, total int) ([]core.StorageItem, error) {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "StorageTake", AgentName: agentName, StorageName: storageName})
	if err := s.checkStorageAccess(clientID, agentName, storageName, "StorageTake"); err != nil {
		return nil, err
	}
	st, err := s.connections.GetStorage(ctx, clientID, storageName)
	if err != nil {
		return nil, err
	}
	return st.Take(ctx, search, total)
}

// StorageUpsert inserts or replaces an item.
func (s *AgentSwarm) StorageUpsert(ctx context.Context, clientID, agentName, storageName string, item core.StorageItem) error {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "StorageUpsert", AgentName: agentName, StorageName: storageName})
	if err := s.checkStorageAccess(clientID, agentName, storageName, "StorageUpsert"); err != nil {
		return err
	}
	st, err := s.connections.GetStorage(ctx, clientID, storageName)
	if err != nil {
		return err
	}
	return st.Upsert(ctx, item)
}

// StorageRemove deletes the item with id.
func (s *AgentSwarm) StorageRemove(ctx context.Context, clientID, agentName, storageName, id string) error {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "StorageRemove", AgentName: agentName, StorageName: storageName})
	if err := s.checkStorageAccess(clientID, agentName, storageName, "StorageRemove"); err != nil {
		return err
	}
	st, err := s.connections.GetStorage(ctx, clientID, storageName)
	if err != nil {
		return err
	}
	return st.Remove(ctx, id)
}

// StorageGet returns the item with id.
func (s *AgentSwarm) StorageGet(ctx context.Context, clientID, agentName, storageName, id string) (core.StorageItem, bool, error) {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "StorageGet", AgentName: agentName, StorageName: storageName})
	if err := s.checkStorageAccess(clientID, agentName, storageName, "StorageGet"); err != nil {
		return core.StorageItem{}, false, err
	}
	st, err := s.connections.GetStorage(ctx, clientID, storageName)
	if err != nil {
		return core.StorageItem{}, false, err
	}
	return st.Get(ctx, id)
}

// StorageList returns items in insertion order, optionally filtered.
func (s *AgentSwarm) StorageList(ctx context.Context, clientID, agentName, storageName string, filter func(core.StorageItem) bool) ([]core.StorageItem, error) {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "StorageList", AgentName: agentName, StorageName: storageName})
	if err := s.checkStorageAccess(clientID, agentName, storageName, "StorageList"); err != nil {
		return nil, err
	}
	st, err := s.connections.GetStorage(ctx, clientID, storageName)
	if err != nil {
		return nil, err
	}
	return st.List(ctx, filter)
}

// StorageClear removes every item.
func (s *AgentSwarm) StorageClear(ctx context.Context, clientID, agentName, storageName string) error {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "StorageClear", AgentName: agentName, StorageName: storageName})
	if err := s.checkStorageAccess(clientID, agentName, storageName, "StorageClear"); err != nil {
		return err
	}
	st, err := s.connections.GetStorage(ctx, clientID, storageName)
	if err != nil {
		return err
	}
	return st.Clear(ctx)
}

// StateGet returns the client's value of stateName.
func (s *AgentSwarm) StateGet(ctx context.Context, clientID, agentName, stateName string) (any, error) {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "StateGet", AgentName: agentName, StateName: stateName})
	if err := s.checkStateAccess(clientID, agentName, stateName, "StateGet"); err != nil {
		return nil, err
	}
	st, err := s.connections.GetState(ctx, clientID, stateName)
	if err != nil {
		return nil, err
	}
	return st.GetState(ctx)
}

// StateSet writes the client's value of stateName through the schema's
// middleware chain and returns the stored result.
func (s *AgentSwarm) StateSet(ctx context.Context, clientID, agentName, stateName string, value any) (any, error) {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "StateSet", AgentName: agentName, StateName: stateName})
	if err := s.checkStateAccess(clientID, agentName, stateName, "StateSet"); err != nil {
		return nil, err
	}
	st, err := s.connections.GetState(ctx, clientID, stateName)
	if err != nil {
		return nil, err
	}
	return st.SetState(ctx, value)
}
