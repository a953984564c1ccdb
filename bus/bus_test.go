package bus

import (
	"context"
	"testing"

	"github.com/hupe1980/agentswarm/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_EmitDeliversInSubscriptionOrder(t *testing.T) {
	b := New()
	var got []string

	b.Subscribe("c1", core.AgentBus, func(ctx context.Context, e core.Event) error {
		got = append(got, "first")
		return nil
	})
	b.Subscribe("c1", core.AgentBus, func(ctx context.Context, e core.Event) error {
		got = append(got, "second")
		return nil
	})

	err := b.Emit(context.Background(), "c1", core.Event{Source: core.AgentBus, Type: "run"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestBus_WildcardObservesAllClients(t *testing.T) {
	b := New()
	var clients []string
	b.Subscribe(Wildcard, core.SessionBus, func(ctx context.Context, e core.Event) error {
		clients = append(clients, e.ClientID)
		return nil
	})

	require.NoError(t, b.Emit(context.Background(), "c1", core.Event{Source: core.SessionBus}))
	require.NoError(t, b.Emit(context.Background(), "c2", core.Event{Source: core.SessionBus}))
	assert.Equal(t, []string{"c1", "c2"}, clients)
}

func TestBus_SourceIsolation(t *testing.T) {
	b := New()
	fired := false
	b.Subscribe("c1", core.AgentBus, func(ctx context.Context, e core.Event) error {
		fired = true
		return nil
	})
	require.NoError(t, b.Emit(context.Background(), "c1", core.Event{Source: core.SwarmBus}))
	assert.False(t, fired)
}

func TestBus_OnceFiresExactlyOnce(t *testing.T) {
	b := New()
	count := 0
	b.Once("c1", core.AgentBus, func(e core.Event) bool { return e.Type == "output" }, func(ctx context.Context, e core.Event) error {
		count++
		return nil
	})

	require.NoError(t, b.Emit(context.Background(), "c1", core.Event{Source: core.AgentBus, Type: "run"}))
	require.NoError(t, b.Emit(context.Background(), "c1", core.Event{Source: core.AgentBus, Type: "output"}))
	require.NoError(t, b.Emit(context.Background(), "c1", core.Event{Source: core.AgentBus, Type: "output"}))
	assert.Equal(t, 1, count)
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	count := 0
	cancel := b.Subscribe("c1", core.AgentBus, func(ctx context.Context, e core.Event) error {
		count++
		return nil
	})
	require.NoError(t, b.Emit(context.Background(), "c1", core.Event{Source: core.AgentBus}))
	cancel()
	require.NoError(t, b.Emit(context.Background(), "c1", core.Event{Source: core.AgentBus}))
	assert.Equal(t, 1, count)
}

func TestBus_DisposeRemovesClientSubscriptions(t *testing.T) {
	b := New()
	count := 0
	b.Subscribe("c1", core.AgentBus, func(ctx context.Context, e core.Event) error {
		count++
		return nil
	})
	b.Dispose("c1")
	require.NoError(t, b.Emit(context.Background(), "c1", core.Event{Source: core.AgentBus}))
	assert.Zero(t, count)
}
