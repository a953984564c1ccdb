package connection

import (
	"context"
	"testing"

	"github.com/hupe1980/agentswarm/internal/testutil"
	"github.com/hupe1980/agentswarm/schema"
	"github.com/hupe1980/agentswarm/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *Service {
	t.Helper()
	registries := Registries{
		Agents:      schema.NewRegistry[schema.Agent]("agent"),
		Tools:       schema.NewRegistry[schema.Tool]("tool"),
		Swarms:      schema.NewRegistry[schema.Swarm]("swarm"),
		Completions: schema.NewRegistry[schema.Completion]("completion"),
		Embeddings:  schema.NewRegistry[schema.Embedding]("embedding"),
		Storages:    schema.NewRegistry[schema.Storage]("storage"),
		States:      schema.NewRegistry[schema.State]("state"),
	}
	registries.Completions.Register("mock", testutil.EchoCompletion("mock"))
	registries.Agents.Register("triage", schema.Agent{AgentName: "triage", Completion: "mock"})
	registries.Agents.Register("sales", schema.Agent{AgentName: "sales", Completion: "mock"})
	registries.Swarms.Register("support", schema.Swarm{
		SwarmName:    "support",
		DefaultAgent: "triage",
		AgentList:    []string{"triage", "sales"},
	})
	registries.States.Register("cart", schema.State{StateName: "cart"})
	registries.States.Register("catalog", schema.State{StateName: "catalog", Shared: true})

	return New(registries, validation.NewSessionValidation(), Settings{KeepMessages: 25})
}

func TestService_AgentMemoizationIdentity(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	first, err := s.GetAgent(ctx, "c1", "triage")
	require.NoError(t, err)
	second, err := s.GetAgent(ctx, "c1", "triage")
	require.NoError(t, err)
	assert.Same(t, first, second)

	other, err := s.GetAgent(ctx, "c2", "triage")
	require.NoError(t, err)
	assert.NotSame(t, first, other)
}

func TestService_DisposeEvictsMemo(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	first, err := s.GetAgent(ctx, "c1", "triage")
	require.NoError(t, err)
	_, err = s.GetSwarm(ctx, "c1", "support")
	require.NoError(t, err)

	require.NoError(t, s.Dispose(ctx, "c1", "support"))

	rebuilt, err := s.GetAgent(ctx, "c1", "triage")
	require.NoError(t, err)
	assert.NotSame(t, first, rebuilt)
}

func TestService_SwarmWiresAllMembers(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	sw, err := s.GetSwarm(ctx, "c1", "support")
	require.NoError(t, err)

	// Both members have instances registered; the default one is active.
	active, err := sw.GetAgent(ctx)
	require.NoError(t, err)
	assert.NotNil(t, active)

	require.NoError(t, sw.SetAgentName(ctx, "sales"))
	active, err = sw.GetAgent(ctx)
	require.NoError(t, err)
	assert.NotNil(t, active)
}

func TestService_SessionMemoizedPerClient(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	first, err := s.GetSession(ctx, "c1", "support")
	require.NoError(t, err)
	second, err := s.GetSession(ctx, "c1", "support")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestService_SharedStateSingleInstance(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	a, err := s.GetState(ctx, "c1", "catalog")
	require.NoError(t, err)
	b, err := s.GetState(ctx, "c2", "catalog")
	require.NoError(t, err)
	assert.Same(t, a, b)

	perClientA, err := s.GetState(ctx, "c1", "cart")
	require.NoError(t, err)
	perClientB, err := s.GetState(ctx, "c2", "cart")
	require.NoError(t, err)
	assert.NotSame(t, perClientA, perClientB)
}

func TestService_SharedStateSurvivesFirstDispose(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	a, err := s.GetState(ctx, "c1", "catalog")
	require.NoError(t, err)
	_, err = s.GetState(ctx, "c2", "catalog")
	require.NoError(t, err)

	require.NoError(t, s.Dispose(ctx, "c1", "support"))
	still, err := s.GetState(ctx, "c2", "catalog")
	require.NoError(t, err)
	assert.Same(t, a, still)

	require.NoError(t, s.Dispose(ctx, "c2", "support"))
	rebuilt, err := s.GetState(ctx, "c3", "catalog")
	require.NoError(t, err)
	assert.NotSame(t, a, rebuilt)
}
