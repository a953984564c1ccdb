// Package agentswarm is a runtime for orchestrating multiple cooperating
// LLM-backed agents that share one conversational session per client. A
// client connects, sends messages, and the runtime routes each message to
// the currently active agent of the client's swarm. Agents may invoke tools;
// tools may mutate shared storage and state, commit messages to history, or
// transfer control to another agent mid-turn. The runtime guarantees
// serialized per-client execution, recovery from malformed model output,
// bounded tool-call chains and event-driven observability.
//
// Most applications interact with this package by:
//  1. Creating an AgentSwarm via New() (optionally overriding the config)
//  2. Registering completions, tools, agents and swarms
//  3. Opening sessions (Session, MakeConnection or the one-shot Complete)
package agentswarm

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentswarm/bus"
	"github.com/hupe1980/agentswarm/connection"
	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/schema"
	"github.com/hupe1980/agentswarm/validation"
)

// Options configures an AgentSwarm container.
type Options struct {
	// Config overrides the default runtime configuration.
	Config Config
	// Logger overrides the built-in slog logger.
	Logger logging.Logger
}

// AgentSwarm is the public facade. It owns the schema registries, the
// validation services, the event bus and the connection layer, and every
// public entry opens a method context before delegating.
type AgentSwarm struct {
	cfg    Config
	logger *logging.SwarmLogger
	bus    *bus.Bus

	registries connection.Registries

	agentValidation      *validation.AgentValidation
	toolValidation       *validation.ToolValidation
	swarmValidation      *validation.SwarmValidation
	completionValidation *validation.CompletionValidation
	embeddingValidation  *validation.EmbeddingValidation
	storageValidation    *validation.StorageValidation
	stateValidation      *validation.StateValidation
	sessionValidation    *validation.SessionValidation

	connections *connection.Service
}

// New creates an AgentSwarm container.
func New(optFns ...func(o *Options)) *AgentSwarm {
	opts := Options{Config: DefaultConfig()}
	for _, fn := range optFns {
		fn(&opts)
	}
	cfg := opts.Config

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     cfg.logLevel(),
		Format:    "json",
		ProcessID: cfg.ProcessID,
	})

	eventBus := bus.New(func(o *bus.Options) { o.Logger = logger })

	registries := connection.Registries{
		Agents:      schema.NewRegistry[schema.Agent]("agent"),
		Tools:       schema.NewRegistry[schema.Tool]("tool"),
		Swarms:      schema.NewRegistry[schema.Swarm]("swarm"),
		Completions: schema.NewRegistry[schema.Completion]("completion"),
		Embeddings:  schema.NewRegistry[schema.Embedding]("embedding"),
		Storages:    schema.NewRegistry[schema.Storage]("storage"),
		States:      schema.NewRegistry[schema.State]("state"),
	}

	completionValidation := validation.NewCompletionValidation(registries.Completions)
	embeddingValidation := validation.NewEmbeddingValidation(registries.Embeddings)
	toolValidation := validation.NewToolValidation(registries.Tools)
	storageValidation := validation.NewStorageValidation(registries.Storages, embeddingValidation)
	stateValidation := validation.NewStateValidation(registries.States)
	agentValidation := validation.NewAgentValidation(registries.Agents, completionValidation, toolValidation, storageValidation, stateValidation)
	swarmValidation := validation.NewSwarmValidation(registries.Swarms, agentValidation)
	sessionValidation := validation.NewSessionValidation()

	s := &AgentSwarm{
		cfg:        cfg,
		logger:     logger,
		bus:        eventBus,
		registries: registries,

		agentValidation:      agentValidation,
		toolValidation:       toolValidation,
		swarmValidation:      swarmValidation,
		completionValidation: completionValidation,
		embeddingValidation:  embeddingValidation,
		storageValidation:    storageValidation,
		stateValidation:      stateValidation,
		sessionValidation:    sessionValidation,
	}
	s.connections = connection.New(registries, sessionValidation, s.settings(), func(o *connection.Options) {
		o.Bus = eventBus
		o.Logger = logger
	})
	return s
}

// settings maps the config onto the connection layer knobs.
func (s *AgentSwarm) settings() connection.Settings {
	transform := s.cfg.AgentOutputTransform
	if transform == nil {
		cfg := s.cfg
		transform = cfg.defaultTransform
	}
	return connection.Settings{
		KeepMessages:     s.cfg.KeepMessages,
		SystemPrompt:     s.cfg.AgentSystemPrompt,
		HistoryFilter:    s.cfg.AgentHistoryFilter,
		DefaultValidate:  s.cfg.AgentDefaultValidation,
		DefaultTransform: transform,
		DefaultMap:       s.cfg.AgentOutputMap,
		ClientLogger:     s.cfg.ClientLoggerAdapter,
		Rescue:           s.cfg.rescueOptions(),
		ToolWatchdog:     s.cfg.ToolWatchdog,
		SearchSimilarity: s.cfg.StorageSearchSimilarity,
		SearchPool:       s.cfg.StorageSearchPool,
		PersistBaseDir:   s.cfg.PersistBaseDir,
	}
}

// SetConfig applies a partial override to the runtime configuration.
func (s *AgentSwarm) SetConfig(fn func(c *Config)) {
	fn(&s.cfg)
	s.connections.UpdateSettings(s.settings())
}

// UseLogger replaces the logger the facade itself writes to. The connection
// layer and the bus keep the logger they were constructed with, so agent,
// swarm, session, storage and state instances, whether already memoized or
// built later, do not log through it.
func (s *AgentSwarm) UseLogger(logger *logging.SwarmLogger) {
	if logger == nil {
		return
	}
	s.logger = logger
}

// beginMethod opens a method context for a public entry.
func (s *AgentSwarm) beginMethod(ctx context.Context, mc core.MethodContext) context.Context {
	s.logger.Debug("method enter", "method_name", mc.MethodName, "client_id", mc.ClientID)
	return core.WithMethodContext(ctx, mc)
}

// AddAgent registers an agent schema and returns its name.
func (s *AgentSwarm) AddAgent(agentSchema schema.Agent) (string, error) {
	if agentSchema.AgentName == "" {
		return "", fmt.Errorf("agent schema requires a name")
	}
	if err := s.agentValidation.Add(agentSchema.AgentName); err != nil {
		return "", err
	}
	s.registries.Agents.Register(agentSchema.AgentName, agentSchema)
	return agentSchema.AgentName, nil
}

// AddTool registers a tool schema and returns its name.
func (s *AgentSwarm) AddTool(toolSchema schema.Tool) (string, error) {
	if toolSchema.ToolName == "" {
		return "", fmt.Errorf("tool schema requires a name")
	}
	if toolSchema.Function.Name == "" {
		toolSchema.Function.Name = toolSchema.ToolName
	}
	if err := s.toolValidation.Add(toolSchema.ToolName); err != nil {
		return "", err
	}
	s.registries.Tools.Register(toolSchema.ToolName, toolSchema)
	return toolSchema.ToolName, nil
}

// AddSwarm registers a swarm schema and returns its name.
func (s *AgentSwarm) AddSwarm(swarmSchema schema.Swarm) (string, error) {
	if swarmSchema.SwarmName == "" {
		return "", fmt.Errorf("swarm schema requires a name")
	}
	if err := s.swarmValidation.Add(swarmSchema.SwarmName); err != nil {
		return "", err
	}
	s.registries.Swarms.Register(swarmSchema.SwarmName, swarmSchema)
	return swarmSchema.SwarmName, nil
}

// AddCompletion registers a completion schema and returns its name.
func (s *AgentSwarm) AddCompletion(completionSchema schema.Completion) (string, error) {
	if completionSchema.CompletionName == "" {
		return "", fmt.Errorf("completion schema requires a name")
	}
	if err := s.completionValidation.Add(completionSchema.CompletionName); err != nil {
		return "", err
	}
	s.registries.Completions.Register(completionSchema.CompletionName, completionSchema)
	return completionSchema.CompletionName, nil
}

// AddEmbedding registers an embedding schema and returns its name.
func (s *AgentSwarm) AddEmbedding(embeddingSchema schema.Embedding) (string, error) {
	if embeddingSchema.EmbeddingName == "" {
		return "", fmt.Errorf("embedding schema requires a name")
	}
	if err := s.embeddingValidation.Add(embeddingSchema.EmbeddingName); err != nil {
		return "", err
	}
	s.registries.Embeddings.Register(embeddingSchema.EmbeddingName, embeddingSchema)
	return embeddingSchema.EmbeddingName, nil
}

// AddStorage registers a storage schema and returns its name.
func (s *AgentSwarm) AddStorage(storageSchema schema.Storage) (string, error) {
	if storageSchema.StorageName == "" {
		return "", fmt.Errorf("storage schema requires a name")
	}
	if err := s.storageValidation.Add(storageSchema.StorageName); err != nil {
		return "", err
	}
	s.registries.Storages.Register(storageSchema.StorageName, storageSchema)
	return storageSchema.StorageName, nil
}

// AddState registers a state schema and returns its name.
func (s *AgentSwarm) AddState(stateSchema schema.State) (string, error) {
	if stateSchema.StateName == "" {
		return "", fmt.Errorf("state schema requires a name")
	}
	if err := s.stateValidation.Add(stateSchema.StateName); err != nil {
		return "", err
	}
	s.registries.States.Register(stateSchema.StateName, stateSchema)
	return stateSchema.StateName, nil
}

// attachSession validates the swarm, records the session and warms the
// connection layer.
func (s *AgentSwarm) attachSession(ctx context.Context, clientID, swarmName string, mode validation.SessionMode) error {
	if err := s.swarmValidation.Validate(swarmName, "attachSession"); err != nil {
		return err
	}
	if err := s.sessionValidation.AddSession(clientID, swarmName, mode); err != nil {
		return err
	}
	if _, err := s.connections.GetSession(ctx, clientID, swarmName); err != nil {
		s.sessionValidation.RemoveSession(clientID)
		return err
	}
	return nil
}

// DisposeConnection tears down everything held for (clientID, swarmName).
func (s *AgentSwarm) DisposeConnection(ctx context.Context, clientID, swarmName string) error {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "DisposeConnection", SwarmName: swarmName})
	if err := s.connections.Dispose(ctx, clientID, swarmName); err != nil {
		return err
	}
	s.bus.Dispose(clientID)
	return nil
}

// sessionFor resolves the live gateway for clientID.
func (s *AgentSwarm) sessionFor(ctx context.Context, clientID, source string) (core.Session, string, error) {
	swarmName, err := s.sessionValidation.GetSwarm(clientID)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", source, err)
	}
	gateway, err := s.connections.GetSession(ctx, clientID, swarmName)
	if err != nil {
		return nil, "", err
	}
	return gateway, swarmName, nil
}

// swarmFor resolves the live swarm controller for clientID.
func (s *AgentSwarm) swarmFor(ctx context.Context, clientID, source string) (core.Swarm, string, error) {
	swarmName, err := s.sessionValidation.GetSwarm(clientID)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", source, err)
	}
	sw, err := s.connections.GetSwarm(ctx, clientID, swarmName)
	if err != nil {
		return nil, "", err
	}
	return sw, swarmName, nil
}

// activeAgentIs reports whether agentName is the active agent of clientID.
func (s *AgentSwarm) activeAgentIs(ctx context.Context, clientID, agentName string) bool {
	sw, _, err := s.swarmFor(ctx, clientID, "activeAgentIs")
	if err != nil {
		return false
	}
	active, err := sw.GetAgentName(ctx)
	if err != nil {
		return false
	}
	return active == agentName
}
