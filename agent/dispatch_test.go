package agent

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/history"
	"github.com/hupe1980/agentswarm/internal/testutil"
	"github.com/hupe1980/agentswarm/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type coreHistory = history.Store

func newDispatchClient(
	t *testing.T,
	agentSchema schema.Agent,
	script *testutil.ScriptedCompletion,
	tools []schema.Tool,
	optFns ...func(o *Options),
) (*Client, *coreHistory) {
	t.Helper()
	if agentSchema.AgentName == "" {
		agentSchema.AgentName = "triage"
	}
	hist := history.New("c1", agentSchema.AgentName)
	return New("c1", agentSchema, script.Schema("mock"), tools, hist, optFns...), hist
}

// committingTool commits its own output, releasing the dispatcher.
func committingTool(name string, c **Client, record *[]string) schema.Tool {
	var mu sync.Mutex
	return schema.Tool{
		ToolName: name,
		Function: core.FunctionSpec{Name: name, Description: "test tool"},
		Call: func(ctx context.Context, dto core.ToolDTO) error {
			mu.Lock()
			*record = append(*record, dto.ToolID)
			mu.Unlock()
			return (*c).CommitToolOutput(ctx, dto.ToolID, "done "+dto.ToolID)
		},
	}
}

func TestDispatch_SequentialCommitChain(t *testing.T) {
	var c *Client
	var dispatched []string
	tool := committingTool("work", &c, &dispatched)

	script := testutil.NewScriptedCompletion(
		testutil.ToolCallMessage(
			testutil.Call("call_1", "work", nil),
			testutil.Call("call_2", "work", nil),
		),
	)
	var hist *coreHistory
	c, hist = newDispatchClient(t, schema.Agent{Tools: []string{"work"}}, script, []schema.Tool{tool})

	require.NoError(t, c.Execute(context.Background(), "go", core.ModeUser))

	assert.Equal(t, []string{"call_1", "call_2"}, dispatched)

	raw, err := hist.ToArrayForRaw(context.Background())
	require.NoError(t, err)
	// user, assistant(tool_calls), tool result, tool result
	require.Len(t, raw, 4)
	assert.Len(t, raw[1].ToolCalls, 2)
	assert.Equal(t, core.RoleTool, raw[2].Role)
	assert.Equal(t, core.RoleTool, raw[3].Role)
}

func TestDispatch_MaxToolCallsTruncatesDispatchNotHistory(t *testing.T) {
	var c *Client
	var dispatched []string
	tool := committingTool("work", &c, &dispatched)

	script := testutil.NewScriptedCompletion(
		testutil.ToolCallMessage(
			testutil.Call("call_1", "work", nil),
			testutil.Call("call_2", "work", nil),
			testutil.Call("call_3", "work", nil),
		),
	)
	var hist *coreHistory
	c, hist = newDispatchClient(t, schema.Agent{Tools: []string{"work"}, MaxToolCalls: 2}, script, []schema.Tool{tool})

	require.NoError(t, c.Execute(context.Background(), "go", core.ModeUser))

	assert.Equal(t, []string{"call_1", "call_2"}, dispatched)

	raw, err := hist.ToArrayForRaw(context.Background())
	require.NoError(t, err)
	// The assistant message keeps the untruncated batch.
	assert.Len(t, raw[1].ToolCalls, 3)
}

func TestDispatch_MissingIDsAreGenerated(t *testing.T) {
	var c *Client
	var dispatched []string
	tool := committingTool("work", &c, &dispatched)

	script := testutil.NewScriptedCompletion(
		testutil.ToolCallMessage(core.ToolCall{Function: core.ToolCallFunction{Name: "work"}}),
	)
	c, _ = newDispatchClient(t, schema.Agent{Tools: []string{"work"}}, script, []schema.Tool{tool})

	require.NoError(t, c.Execute(context.Background(), "go", core.ModeUser))
	require.Len(t, dispatched, 1)
	assert.NotEmpty(t, dispatched[0])
}

func TestDispatch_UnknownFunctionRescues(t *testing.T) {
	script := testutil.NewScriptedCompletion(
		testutil.ToolCallMessage(testutil.Call("call_1", "ghost", nil)),
	)
	c, _ := newDispatchClient(t, schema.Agent{}, script, nil, func(o *Options) {
		o.Rescue.Placeholders = []string{"rescued"}
	})

	got := collectOutput(t, c, func() error {
		return c.Execute(context.Background(), "go", core.ModeUser)
	})
	assert.Equal(t, "rescued", got)
}

func TestDispatch_ValidationFailureRescues(t *testing.T) {
	called := false
	tool := schema.Tool{
		ToolName: "guarded",
		Function: core.FunctionSpec{Name: "guarded"},
		Validate: func(ctx context.Context, dto core.ToolDTO) (bool, error) { return false, nil },
		Call: func(ctx context.Context, dto core.ToolDTO) error {
			called = true
			return nil
		},
	}
	script := testutil.NewScriptedCompletion(
		testutil.ToolCallMessage(testutil.Call("call_1", "guarded", nil)),
	)
	c, _ := newDispatchClient(t, schema.Agent{Tools: []string{"guarded"}}, script, []schema.Tool{tool}, func(o *Options) {
		o.Rescue.Placeholders = []string{"rescued"}
	})

	got := collectOutput(t, c, func() error {
		return c.Execute(context.Background(), "go", core.ModeUser)
	})
	assert.Equal(t, "rescued", got)
	assert.False(t, called)
}

func TestDispatch_SchemaValidationFallback(t *testing.T) {
	var c *Client
	var dispatched []string
	tool := committingTool("typed", &c, &dispatched)
	tool.Function.Parameters = map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to": map[string]any{"type": "string"},
		},
		"required": []string{"to"},
	}

	script := testutil.NewScriptedCompletion(
		testutil.ToolCallMessage(testutil.Call("call_1", "typed", map[string]any{"wrong": 1})),
	)
	c, _ = newDispatchClient(t, schema.Agent{Tools: []string{"typed"}}, script, []schema.Tool{tool}, func(o *Options) {
		o.Rescue.Placeholders = []string{"rescued"}
	})

	got := collectOutput(t, c, func() error {
		return c.Execute(context.Background(), "go", core.ModeUser)
	})
	assert.Equal(t, "rescued", got)
	assert.Empty(t, dispatched)
}

func TestDispatch_ToolErrorRescues(t *testing.T) {
	tool := schema.Tool{
		ToolName: "boom",
		Function: core.FunctionSpec{Name: "boom"},
		Call: func(ctx context.Context, dto core.ToolDTO) error {
			return errors.New("exploded")
		},
	}
	script := testutil.NewScriptedCompletion(
		testutil.ToolCallMessage(testutil.Call("call_1", "boom", nil)),
	)
	rescueReason := ""
	agentSchema := schema.Agent{
		Tools: []string{"boom"},
		Callbacks: schema.AgentCallbacks{
			OnResurrect: func(ctx context.Context, clientID, agentName string, mode core.ExecutionMode, reason string) {
				rescueReason = reason
			},
		},
	}
	c, _ := newDispatchClient(t, agentSchema, script, []schema.Tool{tool}, func(o *Options) {
		o.Rescue.Placeholders = []string{"rescued"}
	})

	got := collectOutput(t, c, func() error {
		return c.Execute(context.Background(), "go", core.ModeUser)
	})
	assert.Equal(t, "rescued", got)
	assert.Equal(t, "function call failed", rescueReason)
}

func TestDispatch_ToolPanicBecomesToolError(t *testing.T) {
	tool := schema.Tool{
		ToolName: "panic",
		Function: core.FunctionSpec{Name: "panic"},
		Call: func(ctx context.Context, dto core.ToolDTO) error {
			panic("ouch")
		},
	}
	script := testutil.NewScriptedCompletion(
		testutil.ToolCallMessage(testutil.Call("call_1", "panic", nil)),
	)
	c, _ := newDispatchClient(t, schema.Agent{Tools: []string{"panic"}}, script, []schema.Tool{tool}, func(o *Options) {
		o.Rescue.Placeholders = []string{"rescued"}
	})

	got := collectOutput(t, c, func() error {
		return c.Execute(context.Background(), "go", core.ModeUser)
	})
	assert.Equal(t, "rescued", got)
}

func TestDispatch_AgentChangeHaltsRemainingCalls(t *testing.T) {
	var c *Client
	var dispatched []string

	changer := schema.Tool{
		ToolName: "navigate",
		Function: core.FunctionSpec{Name: "navigate"},
		Call: func(ctx context.Context, dto core.ToolDTO) error {
			dispatched = append(dispatched, dto.ToolID)
			return c.CommitAgentChange(ctx)
		},
	}
	follower := committingTool("work", &c, &dispatched)

	script := testutil.NewScriptedCompletion(
		testutil.ToolCallMessage(
			testutil.Call("call_1", "navigate", nil),
			testutil.Call("call_2", "work", nil),
		),
	)
	afterCalls := 0
	agentSchema := schema.Agent{
		Tools: []string{"navigate", "work"},
		Callbacks: schema.AgentCallbacks{
			OnAfterToolCalls: func(ctx context.Context, clientID, agentName string, toolCalls []core.ToolCall) {
				afterCalls++
			},
		},
	}
	c, _ = newDispatchClient(t, agentSchema, script, []schema.Tool{changer, follower})

	require.NoError(t, c.Execute(context.Background(), "go", core.ModeUser))
	assert.Equal(t, []string{"call_1"}, dispatched)
	assert.Equal(t, 1, afterCalls)
}

func TestDispatch_StopToolsHaltsRemainingCalls(t *testing.T) {
	var c *Client
	var dispatched []string

	stopper := schema.Tool{
		ToolName: "halt",
		Function: core.FunctionSpec{Name: "halt"},
		Call: func(ctx context.Context, dto core.ToolDTO) error {
			dispatched = append(dispatched, dto.ToolID)
			return c.CommitStopTools(ctx)
		},
	}
	follower := committingTool("work", &c, &dispatched)

	script := testutil.NewScriptedCompletion(
		testutil.ToolCallMessage(
			testutil.Call("call_1", "halt", nil),
			testutil.Call("call_2", "work", nil),
		),
	)
	c, _ = newDispatchClient(t, schema.Agent{Tools: []string{"halt", "work"}}, script, []schema.Tool{stopper, follower})

	require.NoError(t, c.Execute(context.Background(), "go", core.ModeUser))
	assert.Equal(t, []string{"call_1"}, dispatched)
}

func TestDispatch_IsLastMarksFinalCall(t *testing.T) {
	var c *Client
	var lastFlags []bool
	tool := schema.Tool{
		ToolName: "work",
		Function: core.FunctionSpec{Name: "work"},
		Call: func(ctx context.Context, dto core.ToolDTO) error {
			lastFlags = append(lastFlags, dto.IsLast)
			return c.CommitToolOutput(ctx, dto.ToolID, "ok")
		},
	}
	script := testutil.NewScriptedCompletion(
		testutil.ToolCallMessage(
			testutil.Call("call_1", "work", nil),
			testutil.Call("call_2", "work", nil),
		),
	)
	c, _ = newDispatchClient(t, schema.Agent{Tools: []string{"work"}}, script, []schema.Tool{tool})

	require.NoError(t, c.Execute(context.Background(), "go", core.ModeUser))
	assert.Equal(t, []bool{false, true}, lastFlags)
}
