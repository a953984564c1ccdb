package history

import (
	"context"
	"fmt"
	"testing"

	"github.com/hupe1980/agentswarm/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func push(t *testing.T, s *Store, msgs ...core.Message) {
	t.Helper()
	for _, msg := range msgs {
		require.NoError(t, s.Push(context.Background(), msg))
	}
}

func TestStore_RawIsAppendOnlyPrefix(t *testing.T) {
	s := New("c1", "triage")
	push(t, s, core.Message{Role: core.RoleUser, Content: "a"})

	first, err := s.ToArrayForRaw(context.Background())
	require.NoError(t, err)

	push(t, s, core.Message{Role: core.RoleAssistant, AgentName: "triage", Content: "b"})
	second, err := s.ToArrayForRaw(context.Background())
	require.NoError(t, err)

	require.Len(t, second, 2)
	assert.Equal(t, first, second[:1])
}

func TestStore_AgentProjectionPreamble(t *testing.T) {
	s := New("c1", "triage")
	push(t, s, core.Message{Role: core.RoleUser, Content: "hi"})

	msgs, err := s.ToArrayForAgent(context.Background(), "You triage requests.", []string{"Be terse."})
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, core.RoleSystem, msgs[0].Role)
	assert.Equal(t, "You triage requests.", msgs[0].Content)
	assert.Equal(t, "Be terse.", msgs[1].Content)
	assert.Equal(t, core.RoleUser, msgs[2].Role)
}

func TestStore_FilterDropsOtherAgentsToolTraffic(t *testing.T) {
	s := New("c1", "triage")
	push(t, s,
		core.Message{Role: core.RoleUser, Content: "hi"},
		core.Message{Role: core.RoleTool, AgentName: "sales", Content: "other agent tool result"},
		core.Message{Role: core.RoleTool, AgentName: "triage", ToolCallID: "call_1", Content: "own tool result"},
		core.Message{Role: core.RoleAssistant, AgentName: "sales", Content: "crosstalk"},
	)

	msgs, err := s.ToArrayForAgent(context.Background(), "", nil)
	require.NoError(t, err)

	var contents []string
	for _, m := range msgs {
		contents = append(contents, m.Content)
	}
	assert.NotContains(t, contents, "other agent tool result")
	assert.Contains(t, contents, "crosstalk") // assistant role always kept
	assert.Contains(t, contents, "hi")
}

func TestStore_FlushHidesPriorMessages(t *testing.T) {
	s := New("c1", "triage")
	push(t, s,
		core.Message{Role: core.RoleUser, Content: "before"},
		core.Message{Role: core.RoleFlush, AgentName: "triage"},
		core.Message{Role: core.RoleUser, Content: "after"},
	)

	msgs, err := s.ToArrayForAgent(context.Background(), "", nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "after", msgs[0].Content)

	// The raw log still holds everything.
	raw, err := s.ToArrayForRaw(context.Background())
	require.NoError(t, err)
	assert.Len(t, raw, 3)
}

func TestStore_KeepLastNTruncation(t *testing.T) {
	s := New("c1", "triage", func(o *Options) { o.KeepMessages = 5 })
	for i := 0; i < 12; i++ {
		push(t, s, core.Message{Role: core.RoleUser, Content: fmt.Sprintf("m%d", i)})
	}

	msgs, err := s.ToArrayForAgent(context.Background(), "", nil)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	assert.Equal(t, "m7", msgs[0].Content)
	assert.Equal(t, "m11", msgs[4].Content)
}

func TestStore_TruncationNeverSplitsToolPairs(t *testing.T) {
	s := New("c1", "triage", func(o *Options) { o.KeepMessages = 2 })
	push(t, s,
		core.Message{Role: core.RoleAssistant, AgentName: "triage", ToolCalls: []core.ToolCall{{ID: "call_1"}}},
		core.Message{Role: core.RoleTool, AgentName: "triage", ToolCallID: "call_1", Content: "result"},
		core.Message{Role: core.RoleAssistant, AgentName: "triage", Content: "done"},
	)

	msgs, err := s.ToArrayForAgent(context.Background(), "", nil)
	require.NoError(t, err)
	// A window of 2 would lead with an orphan tool result; it must be dropped.
	require.Len(t, msgs, 1)
	assert.Equal(t, "done", msgs[0].Content)
}

func TestStore_ResqueMarkersHiddenFromProjection(t *testing.T) {
	s := New("c1", "triage")
	push(t, s,
		core.Message{Role: core.RoleResque, AgentName: "triage", Content: "invalid model output"},
		core.Message{Role: core.RoleUser, Content: "hello"},
	)
	msgs, err := s.ToArrayForAgent(context.Background(), "", nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestStore_OnPushCallbackAndBusEvent(t *testing.T) {
	var pushed []core.Message
	bus := &captureBus{}
	s := New("c1", "triage", func(o *Options) {
		o.Bus = bus
		o.Callbacks.OnPush = func(ctx context.Context, clientID, agentName string, msg core.Message) {
			pushed = append(pushed, msg)
		}
	})
	push(t, s, core.Message{Role: core.RoleUser, Content: "hi"})

	require.Len(t, pushed, 1)
	require.Len(t, bus.events, 1)
	assert.Equal(t, core.HistoryBus, bus.events[0].Source)
	assert.Equal(t, "push", bus.events[0].Type)
}

type captureBus struct {
	events []core.Event
}

func (b *captureBus) Emit(ctx context.Context, clientID string, e core.Event) error {
	e.ClientID = clientID
	b.events = append(b.events, e)
	return nil
}
