// Package connection is the memoization layer between the public facade and
// the runtime components. Every factory is memoized by a composite key
// derived from the ambient method context (clientId plus the resource name),
// so two callers with the same key receive the same instance; disposal
// evicts the memo entries and tears the instances down.
package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentswarm/agent"
	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/history"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/persist"
	"github.com/hupe1980/agentswarm/schema"
	"github.com/hupe1980/agentswarm/session"
	"github.com/hupe1980/agentswarm/state"
	"github.com/hupe1980/agentswarm/storage"
	"github.com/hupe1980/agentswarm/swarm"
	"github.com/hupe1980/agentswarm/validation"
)

// Registries bundles the schema registries the service resolves against.
type Registries struct {
	Agents      *schema.Registry[schema.Agent]
	Tools       *schema.Registry[schema.Tool]
	Swarms      *schema.Registry[schema.Swarm]
	Completions *schema.Registry[schema.Completion]
	Embeddings  *schema.Registry[schema.Embedding]
	Storages    *schema.Registry[schema.Storage]
	States      *schema.Registry[schema.State]
}

// Settings carries the runtime knobs the factories hand to the instances
// they build. The facade derives it from its global config.
type Settings struct {
	KeepMessages     int
	SystemPrompt     []string
	HistoryFilter    func(agentName string) history.Filter
	DefaultValidate  func(ctx context.Context, output string) error
	DefaultTransform func(ctx context.Context, input, clientID, agentName string) (string, error)
	DefaultMap       func(ctx context.Context, msg core.Message, clientID, agentName string) (core.Message, error)
	ClientLogger     func(clientID string) *logging.SwarmLogger
	Rescue           agent.RescueOptions
	ToolWatchdog     time.Duration
	SearchSimilarity float64
	SearchPool       int
	PersistBaseDir   string
}

// Options configures a Service.
type Options struct {
	Bus    core.EventBus
	Logger *logging.SwarmLogger
}

// Service builds and caches the per-(client, name) runtime instances.
type Service struct {
	registries Registries
	sessions   *validation.SessionValidation
	settings   Settings
	bus        core.EventBus
	logger     *logging.SwarmLogger

	agents    *memo[*agent.Client]
	histories *memo[*history.Store]
	swarms    *memo[*swarm.Client]
	gateways  *memo[*session.Client]
	storages  *memo[*storage.Client]
	states    *memo[*state.Client]

	sharedMu   sync.Mutex
	sharedRefs *memo[*sharedCount]
}

// sharedCount tracks which clients hold a shared instance so teardown waits
// for the last holder.
type sharedCount struct {
	holders map[string]struct{}
}

// New constructs the service.
func New(registries Registries, sessions *validation.SessionValidation, settings Settings, optFns ...func(o *Options)) *Service {
	opts := Options{Logger: logging.NewLogger(nil)}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Service{
		registries: registries,
		sessions:   sessions,
		settings:   settings,
		bus:        opts.Bus,
		logger:     opts.Logger.WithComponent("connection"),

		agents:     newMemo[*agent.Client](),
		histories:  newMemo[*history.Store](),
		swarms:     newMemo[*swarm.Client](),
		gateways:   newMemo[*session.Client](),
		storages:   newMemo[*storage.Client](),
		states:     newMemo[*state.Client](),
		sharedRefs: newMemo[*sharedCount](),
	}
}

// UpdateSettings replaces the settings used by subsequent factory runs.
func (s *Service) UpdateSettings(settings Settings) { s.settings = settings }

func key(clientID, name string) string { return clientID + "-" + name }

// GetHistory returns the history store for (clientID, agentName).
func (s *Service) GetHistory(ctx context.Context, clientID, agentName string) (*history.Store, error) {
	return s.histories.getOrCreate(key(clientID, agentName), func() (*history.Store, error) {
		s.sessions.AddHistoryUsage(clientID, agentName)
		return history.New(clientID, agentName, func(o *history.Options) {
			o.KeepMessages = s.settings.KeepMessages
			if s.settings.HistoryFilter != nil {
				o.Filter = s.settings.HistoryFilter(agentName)
			}
			o.Bus = s.bus
		}), nil
	})
}

// GetAgent returns the turn engine for (clientID, agentName), building it
// with its completion, tools and history resolved from the registries.
func (s *Service) GetAgent(ctx context.Context, clientID, agentName string) (*agent.Client, error) {
	return s.agents.getOrCreate(key(clientID, agentName), func() (*agent.Client, error) {
		agentSchema, err := s.registries.Agents.Get(agentName)
		if err != nil {
			return nil, err
		}
		completion, err := s.registries.Completions.Get(agentSchema.Completion)
		if err != nil {
			return nil, err
		}
		tools := make([]schema.Tool, 0, len(agentSchema.Tools))
		for _, toolName := range agentSchema.Tools {
			tool, err := s.registries.Tools.Get(toolName)
			if err != nil {
				return nil, err
			}
			tools = append(tools, tool)
		}
		hist, err := s.GetHistory(ctx, clientID, agentName)
		if err != nil {
			return nil, err
		}

		s.sessions.AddAgentUsage(clientID, agentName)
		return agent.New(clientID, agentSchema, completion, tools, hist, func(o *agent.Options) {
			o.SystemPrompt = s.settings.SystemPrompt
			o.ToolWatchdog = s.settings.ToolWatchdog
			o.Rescue = s.settings.Rescue
			o.DefaultValidate = s.settings.DefaultValidate
			o.DefaultTransform = s.settings.DefaultTransform
			o.DefaultMap = s.settings.DefaultMap
			o.Bus = s.bus
			o.Logger = s.logger
			if s.settings.ClientLogger != nil {
				o.Logger = s.settings.ClientLogger(clientID)
			}
		}), nil
	})
}

// GetSwarm returns the swarm controller for (clientID, swarmName) with every
// member agent built and registered.
func (s *Service) GetSwarm(ctx context.Context, clientID, swarmName string) (*swarm.Client, error) {
	return s.swarms.getOrCreate(key(clientID, swarmName), func() (*swarm.Client, error) {
		swarmSchema, err := s.registries.Swarms.Get(swarmName)
		if err != nil {
			return nil, err
		}

		var adapter swarm.PersistAdapter
		if swarmSchema.Persist {
			adapter = swarm.NewFileAdapter(s.baseDir(), swarmName, s.logger)
		}
		sw := swarm.New(clientID, swarmSchema, func(o *swarm.Options) {
			o.Adapter = adapter
			o.Bus = s.bus
			o.Logger = s.logger
		})

		for _, agentName := range swarmSchema.AgentList {
			member, err := s.GetAgent(ctx, clientID, agentName)
			if err != nil {
				return nil, err
			}
			if err := sw.SetAgentRef(ctx, agentName, member); err != nil {
				return nil, err
			}
		}
		return sw, nil
	})
}

// GetSession returns the gateway for clientID bound to swarmName.
func (s *Service) GetSession(ctx context.Context, clientID, swarmName string) (*session.Client, error) {
	return s.gateways.getOrCreate(clientID, func() (*session.Client, error) {
		sw, err := s.GetSwarm(ctx, clientID, swarmName)
		if err != nil {
			return nil, err
		}
		return session.New(clientID, swarmName, sw, func(o *session.Options) {
			o.Bus = s.bus
			o.Logger = s.logger
		}), nil
	})
}

// GetStorage returns the storage instance for (clientID, storageName).
// Shared storages are keyed swarm-wide so every client receives the same
// instance; a refcount delays teardown until the last holder disposes.
func (s *Service) GetStorage(ctx context.Context, clientID, storageName string) (*storage.Client, error) {
	storageSchema, err := s.registries.Storages.Get(storageName)
	if err != nil {
		return nil, err
	}

	memoKey := key(clientID, storageName)
	ownerID := clientID
	if storageSchema.Shared {
		memoKey = key("shared", storageName)
		ownerID = "shared"
		s.holdShared(memoKey, clientID)
	}

	return s.storages.getOrCreate(memoKey, func() (*storage.Client, error) {
		var emb schema.Embedding
		if storageSchema.Embedding != "" {
			emb, err = s.registries.Embeddings.Get(storageSchema.Embedding)
			if err != nil {
				return nil, err
			}
		}

		var store *persist.EntityStore
		if storageSchema.Persist {
			store = persist.NewEntityStore(persist.StorageDir(s.baseDir(), storageName), func(o *persist.Options) {
				o.Logger = s.logger
			})
		}

		s.sessions.AddStorageUsage(clientID, storageName)
		return storage.New(ownerID, storageSchema, emb, func(o *storage.Options) {
			o.SearchSimilarity = s.settings.SearchSimilarity
			o.SearchPool = s.settings.SearchPool
			o.PersistStore = store
			o.Bus = s.bus
			o.Logger = s.logger
		}), nil
	})
}

// GetState returns the state instance for (clientID, stateName), with the
// same shared-instance semantics as GetStorage.
func (s *Service) GetState(ctx context.Context, clientID, stateName string) (*state.Client, error) {
	stateSchema, err := s.registries.States.Get(stateName)
	if err != nil {
		return nil, err
	}

	memoKey := key(clientID, stateName)
	ownerID := clientID
	if stateSchema.Shared {
		memoKey = key("shared", stateName)
		ownerID = "shared"
		s.holdShared(memoKey, clientID)
	}

	return s.states.getOrCreate(memoKey, func() (*state.Client, error) {
		var store *persist.EntityStore
		if stateSchema.Persist {
			store = persist.NewEntityStore(persist.StateDir(s.baseDir(), stateName), func(o *persist.Options) {
				o.Logger = s.logger
			})
		}

		s.sessions.AddStateUsage(clientID, stateName)
		return state.New(ownerID, stateSchema, func(o *state.Options) {
			o.PersistStore = store
			o.Bus = s.bus
			o.Logger = s.logger
		}), nil
	})
}

// Dispose tears down everything held for (clientID, swarmName): the session
// gateway, the swarm controller, every member agent with its history, and
// the client's storage and state instances. Shared instances survive until
// their last holder disposes.
func (s *Service) Dispose(ctx context.Context, clientID, swarmName string) error {
	if gateway, ok := s.gateways.clear(clientID); ok {
		if err := gateway.Dispose(ctx); err != nil {
			return err
		}
	}

	if sw, ok := s.swarms.clear(key(clientID, swarmName)); ok {
		if err := sw.Dispose(ctx); err != nil {
			return err
		}
	}

	swarmSchema, err := s.registries.Swarms.Get(swarmName)
	if err != nil {
		return fmt.Errorf("dispose client %q: %w", clientID, err)
	}
	for _, agentName := range swarmSchema.AgentList {
		if member, ok := s.agents.clear(key(clientID, agentName)); ok {
			s.sessions.RemoveAgentUsage(clientID, agentName)
			if err := member.Dispose(ctx); err != nil {
				return err
			}
		}
		if hist, ok := s.histories.clear(key(clientID, agentName)); ok {
			s.sessions.RemoveHistoryUsage(clientID, agentName)
			if err := hist.Dispose(ctx); err != nil {
				return err
			}
		}
	}

	for _, st := range s.storages.clearPrefix(clientID + "-") {
		if err := st.Dispose(ctx); err != nil {
			return err
		}
	}
	for _, st := range s.states.clearPrefix(clientID + "-") {
		if err := st.Dispose(ctx); err != nil {
			return err
		}
	}
	s.disposeShared(ctx, clientID)

	s.sessions.RemoveSession(clientID)
	return nil
}

// holdShared records clientID as a holder of the shared instance behind
// memoKey.
func (s *Service) holdShared(memoKey, clientID string) {
	s.sharedMu.Lock()
	defer s.sharedMu.Unlock()
	ref, _ := s.sharedRefs.getOrCreate(memoKey, func() (*sharedCount, error) {
		return &sharedCount{holders: map[string]struct{}{}}, nil
	})
	ref.holders[clientID] = struct{}{}
}

// disposeShared releases clientID's holds and tears down shared instances
// whose last holder left.
func (s *Service) disposeShared(ctx context.Context, clientID string) {
	s.sharedMu.Lock()
	defer s.sharedMu.Unlock()
	for _, name := range s.registries.Storages.List() {
		memoKey := key("shared", name)
		if ref, ok := s.sharedRefs.peek(memoKey); ok {
			delete(ref.holders, clientID)
			if len(ref.holders) == 0 {
				s.sharedRefs.clear(memoKey)
				if st, ok := s.storages.clear(memoKey); ok {
					_ = st.Dispose(ctx)
				}
			}
		}
	}
	for _, name := range s.registries.States.List() {
		memoKey := key("shared", name)
		if ref, ok := s.sharedRefs.peek(memoKey); ok {
			delete(ref.holders, clientID)
			if len(ref.holders) == 0 {
				s.sharedRefs.clear(memoKey)
				if st, ok := s.states.clear(memoKey); ok {
					_ = st.Dispose(ctx)
				}
			}
		}
	}
}

func (s *Service) baseDir() string {
	if s.settings.PersistBaseDir != "" {
		return s.settings.PersistBaseDir
	}
	return persist.DefaultBaseDir
}
