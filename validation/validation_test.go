package validation

import (
	"testing"

	"github.com/hupe1980/agentswarm/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type services struct {
	agents      *schema.Registry[schema.Agent]
	tools       *schema.Registry[schema.Tool]
	swarms      *schema.Registry[schema.Swarm]
	completions *schema.Registry[schema.Completion]
	embeddings  *schema.Registry[schema.Embedding]
	storages    *schema.Registry[schema.Storage]
	states      *schema.Registry[schema.State]

	agent      *AgentValidation
	tool       *ToolValidation
	swarm      *SwarmValidation
	completion *CompletionValidation
	embedding  *EmbeddingValidation
	storage    *StorageValidation
	state      *StateValidation
}

func newServices() *services {
	s := &services{
		agents:      schema.NewRegistry[schema.Agent]("agent"),
		tools:       schema.NewRegistry[schema.Tool]("tool"),
		swarms:      schema.NewRegistry[schema.Swarm]("swarm"),
		completions: schema.NewRegistry[schema.Completion]("completion"),
		embeddings:  schema.NewRegistry[schema.Embedding]("embedding"),
		storages:    schema.NewRegistry[schema.Storage]("storage"),
		states:      schema.NewRegistry[schema.State]("state"),
	}
	s.completion = NewCompletionValidation(s.completions)
	s.embedding = NewEmbeddingValidation(s.embeddings)
	s.tool = NewToolValidation(s.tools)
	s.storage = NewStorageValidation(s.storages, s.embedding)
	s.state = NewStateValidation(s.states)
	s.agent = NewAgentValidation(s.agents, s.completion, s.tool, s.storage, s.state)
	s.swarm = NewSwarmValidation(s.swarms, s.agent)
	return s
}

func TestAgentValidation_RecursesIntoReferences(t *testing.T) {
	s := newServices()
	s.completions.Register("mock", schema.Completion{CompletionName: "mock"})
	s.tools.Register("navigate", schema.Tool{ToolName: "navigate"})
	s.agents.Register("triage", schema.Agent{
		AgentName:  "triage",
		Completion: "mock",
		Tools:      []string{"navigate"},
	})

	require.NoError(t, s.agent.Validate("triage", "test"))

	s.agents.Register("broken", schema.Agent{
		AgentName:  "broken",
		Completion: "mock",
		Tools:      []string{"missing"},
	})
	err := s.agent.Validate("broken", "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `tool "missing"`)
	assert.Contains(t, err.Error(), "agent broken")
}

func TestAgentValidation_MissingCompletion(t *testing.T) {
	s := newServices()
	s.agents.Register("a", schema.Agent{AgentName: "a", Completion: "nope"})
	err := s.agent.Validate("a", "here")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `completion "nope"`)
}

func TestSwarmValidation_DefaultAgentMembership(t *testing.T) {
	s := newServices()
	s.completions.Register("mock", schema.Completion{CompletionName: "mock"})
	s.agents.Register("triage", schema.Agent{AgentName: "triage", Completion: "mock"})
	s.swarms.Register("support", schema.Swarm{
		SwarmName:    "support",
		DefaultAgent: "sales",
		AgentList:    []string{"triage"},
	})

	err := s.swarm.Validate("support", "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `default agent "sales"`)
}

func TestSwarmValidation_ValidateAgentMembership(t *testing.T) {
	s := newServices()
	s.swarms.Register("support", schema.Swarm{
		SwarmName:    "support",
		DefaultAgent: "triage",
		AgentList:    []string{"triage", "sales"},
	})
	assert.NoError(t, s.swarm.ValidateAgent("support", "sales", "test"))
	assert.Error(t, s.swarm.ValidateAgent("support", "refund", "test"))
}

func TestValidation_DuplicateAdd(t *testing.T) {
	s := newServices()
	require.NoError(t, s.agent.Add("triage"))
	assert.Error(t, s.agent.Add("triage"))
}

func TestAgentValidation_DeclaredStoragesAndStates(t *testing.T) {
	s := newServices()
	s.agents.Register("a", schema.Agent{
		AgentName: "a",
		Storages:  []string{"kb"},
		States:    []string{"cart"},
	})
	assert.True(t, s.agent.HasStorage("a", "kb"))
	assert.False(t, s.agent.HasStorage("a", "other"))
	assert.True(t, s.agent.HasState("a", "cart"))
	assert.False(t, s.agent.HasState("a", "other"))
}

func TestSessionValidation_Lifecycle(t *testing.T) {
	v := NewSessionValidation()
	require.NoError(t, v.AddSession("c1", "support", ModeSession))
	assert.Error(t, v.AddSession("c1", "support", ModeSession))

	swarmName, err := v.GetSwarm("c1")
	require.NoError(t, err)
	assert.Equal(t, "support", swarmName)

	mode, err := v.GetSessionMode("c1")
	require.NoError(t, err)
	assert.Equal(t, ModeSession, mode)

	require.NoError(t, v.Validate("c1", "test"))
	assert.Error(t, v.Validate("c2", "test"))

	v.AddAgentUsage("c1", "triage")
	v.AddAgentUsage("c1", "triage")
	v.RemoveAgentUsage("c1", "triage")
	v.AddStorageUsage("c1", "kb")

	assert.Equal(t, []string{"c1"}, v.GetSessionList())

	v.RemoveSession("c1")
	assert.False(t, v.HasSession("c1"))
}
