package swarm

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAgent implements just enough of core.Agent for controller tests.
type stubAgent struct {
	core.Agent
	name   string
	output core.Signal[string]
}

func (a *stubAgent) Output() <-chan string { return a.output.Next() }

func (a *stubAgent) WaitForOutput(ctx context.Context) (string, error) {
	return a.output.Wait(ctx)
}

func newTestSwarm(t *testing.T, optFns ...func(o *Options)) (*Client, *stubAgent, *stubAgent) {
	t.Helper()
	c := New("c1", schema.Swarm{
		SwarmName:    "support",
		DefaultAgent: "triage",
		AgentList:    []string{"triage", "sales", "refund"},
	}, optFns...)

	triage := &stubAgent{name: "triage"}
	sales := &stubAgent{name: "sales"}
	require.NoError(t, c.SetAgentRef(context.Background(), "triage", triage))
	require.NoError(t, c.SetAgentRef(context.Background(), "sales", sales))
	return c, triage, sales
}

func TestClient_DefaultAgentIsActive(t *testing.T) {
	c, _, _ := newTestSwarm(t)
	name, err := c.GetAgentName(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "triage", name)
}

func TestClient_SetAgentRefRejectsNonMembers(t *testing.T) {
	c, _, _ := newTestSwarm(t)
	err := c.SetAgentRef(context.Background(), "stranger", &stubAgent{name: "stranger"})
	assert.Error(t, err)
}

func TestClient_SetAgentNameSwitchesAndFiresCallbacks(t *testing.T) {
	var changedTo string
	c := New("c1", schema.Swarm{
		SwarmName:    "support",
		DefaultAgent: "triage",
		AgentList:    []string{"triage", "sales"},
		Callbacks: schema.SwarmCallbacks{
			OnAgentChanged: func(ctx context.Context, clientID, agentName, swarmName string) {
				changedTo = agentName
			},
		},
	})
	require.NoError(t, c.SetAgentRef(context.Background(), "sales", &stubAgent{name: "sales"}))

	require.NoError(t, c.SetAgentName(context.Background(), "sales"))
	name, err := c.GetAgentName(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sales", name)
	assert.Equal(t, "sales", changedTo)

	assert.Error(t, c.SetAgentName(context.Background(), "stranger"))
}

func TestClient_NavigationRoundTrip(t *testing.T) {
	c, _, _ := newTestSwarm(t)
	ctx := context.Background()

	require.NoError(t, c.SetAgentName(ctx, "sales"))
	require.NoError(t, c.SetAgentName(ctx, "refund"))

	popped, err := c.NavigationPop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sales", popped)

	popped, err = c.NavigationPop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "triage", popped)
}

func TestClient_NavigationPopEmptyStackFallsBackToDefault(t *testing.T) {
	c, _, _ := newTestSwarm(t)
	popped, err := c.NavigationPop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "triage", popped)

	name, err := c.GetAgentName(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "triage", name)
}

func TestClient_WaitForOutputReceivesActiveAgentOutput(t *testing.T) {
	c, triage, _ := newTestSwarm(t)

	done := make(chan string, 1)
	go func() {
		out, err := c.WaitForOutput(context.Background())
		require.NoError(t, err)
		done <- out
	}()

	time.Sleep(20 * time.Millisecond)
	triage.output.Emit("hello")

	select {
	case out := <-done:
		assert.Equal(t, "hello", out)
	case <-time.After(time.Second):
		t.Fatal("wait never resolved")
	}
}

func TestClient_WaitForOutputFollowsAgentChange(t *testing.T) {
	c, triage, sales := newTestSwarm(t)

	done := make(chan string, 1)
	go func() {
		out, err := c.WaitForOutput(context.Background())
		require.NoError(t, err)
		done <- out
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, c.SetAgentName(context.Background(), "sales"))
	time.Sleep(20 * time.Millisecond)

	// The outgoing agent's output must no longer satisfy the wait.
	triage.output.Emit("stale")
	time.Sleep(20 * time.Millisecond)
	sales.output.Emit("fresh")

	select {
	case out := <-done:
		assert.Equal(t, "fresh", out)
	case <-time.After(time.Second):
		t.Fatal("wait never resolved")
	}
}

func TestClient_CancelOutputResolvesEmpty(t *testing.T) {
	c, _, _ := newTestSwarm(t)

	done := make(chan string, 1)
	go func() {
		out, err := c.WaitForOutput(context.Background())
		require.NoError(t, err)
		done <- out
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, c.CancelOutput(context.Background()))

	select {
	case out := <-done:
		assert.Empty(t, out)
	case <-time.After(time.Second):
		t.Fatal("wait never resolved")
	}
}

func TestClient_FileAdapterPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	swarmSchema := schema.Swarm{
		SwarmName:    "support",
		DefaultAgent: "triage",
		AgentList:    []string{"triage", "sales"},
		Persist:      true,
	}
	c := New("c1", swarmSchema, func(o *Options) {
		o.Adapter = NewFileAdapter(dir, "support", nil)
	})
	require.NoError(t, c.SetAgentName(ctx, "sales"))

	reopened := New("c1", swarmSchema, func(o *Options) {
		o.Adapter = NewFileAdapter(dir, "support", nil)
	})
	name, err := reopened.GetAgentName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sales", name)

	popped, err := reopened.NavigationPop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "triage", popped)
}

func TestFileAdapter_NavigationPushPopOrder(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	a := NewFileAdapter(dir, "support", nil)

	require.NoError(t, a.PushNavigation(ctx, "c1", "triage"))
	require.NoError(t, a.PushNavigation(ctx, "c1", "sales"))

	// A fresh adapter sees the persisted entries in push order.
	reopened := NewFileAdapter(dir, "support", nil)
	name, ok, err := reopened.PopNavigation(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sales", name)

	name, ok, err = reopened.PopNavigation(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "triage", name)

	_, ok, err = reopened.PopNavigation(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok)
}
