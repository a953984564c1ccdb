package schema

import (
	"context"

	"github.com/hupe1980/agentswarm/core"
)

// StorageCallbacks are optional hooks fired by storage instances.
type StorageCallbacks struct {
	// OnUpdate fires after a mutation (upsert, remove, clear) settled.
	OnUpdate func(ctx context.Context, items []core.StorageItem, clientID, storageName string)
	// OnSearch fires after a Take ranked its results.
	OnSearch  func(ctx context.Context, search string, items []core.StorageItem, clientID, storageName string)
	OnInit    func(ctx context.Context, clientID, storageName string)
	OnDispose func(ctx context.Context, clientID, storageName string)
}

// Storage describes an embedding-indexed item store.
type Storage struct {
	// StorageName is the unique registry key.
	StorageName string
	// Embedding names the embedding schema used to index items.
	Embedding string
	// Shared makes the storage swarm-wide: one instance serves every client.
	Shared bool
	// Persist enables the filesystem adapter.
	Persist bool
	// CreateIndex renders an item into the text that gets embedded.
	CreateIndex func(ctx context.Context, item core.StorageItem) (string, error)
	// GetDefaultData seeds a fresh (or non-persisted) storage instance.
	GetDefaultData func(ctx context.Context, clientID, storageName string) ([]core.StorageItem, error)

	Callbacks StorageCallbacks
}

// StateCallbacks are optional hooks fired by state instances.
type StateCallbacks struct {
	// OnWrite fires after a SetState settled.
	OnWrite func(ctx context.Context, state any, clientID, stateName string)
	// OnRead fires after a GetState resolved.
	OnRead    func(ctx context.Context, state any, clientID, stateName string)
	OnInit    func(ctx context.Context, clientID, stateName string)
	OnDispose func(ctx context.Context, clientID, stateName string)
}

// StateMiddleware rewrites a state value on write.
type StateMiddleware func(ctx context.Context, state any, clientID, stateName string) (any, error)

// State describes a per-client (or shared) value slot.
type State struct {
	// StateName is the unique registry key.
	StateName string
	// Shared makes the state swarm-wide.
	Shared bool
	// Persist enables the filesystem adapter.
	Persist bool
	// GetDefaultState seeds a fresh instance.
	GetDefaultState func(ctx context.Context, clientID, stateName string) (any, error)
	// Middlewares run in order on every SetState.
	Middlewares []StateMiddleware

	Callbacks StateCallbacks
}
