package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/schema"
)

// DefaultToolWatchdog is how long the dispatcher waits for a terminal signal
// before logging a warning. The tool keeps running; tools own their own
// timeouts.
const DefaultToolWatchdog = 15 * time.Second

// Options configures a Client.
type Options struct {
	// SystemPrompt is appended to the agent's own system preamble.
	SystemPrompt []string
	// ToolWatchdog overrides DefaultToolWatchdog.
	ToolWatchdog time.Duration
	// Rescue configures the recovery path.
	Rescue RescueOptions
	// DefaultValidate runs when the agent schema declares no Validate hook.
	DefaultValidate func(ctx context.Context, output string) error
	// DefaultTransform runs when the agent schema declares no Transform hook.
	DefaultTransform func(ctx context.Context, input, clientID, agentName string) (string, error)
	// DefaultMap runs when the agent schema declares no Map hook.
	DefaultMap func(ctx context.Context, msg core.Message, clientID, agentName string) (core.Message, error)
	// Bus receives agent-bus events; nil disables emission.
	Bus core.EventBus
	// Logger receives engine logs.
	Logger *logging.SwarmLogger
}

type toolSchema = schema.Tool

// Client is the turn engine for one (clientID, agentName) pair. It
// implements core.Agent.
type Client struct {
	clientID   string
	schema     schema.Agent
	completion schema.Completion
	toolOrder  []schema.Tool
	tools      map[string]schema.Tool
	history    core.History
	bus        core.EventBus
	logger     *logging.SwarmLogger

	systemPrompt     []string
	watchdog         time.Duration
	rescueOpts       RescueOptions
	defaultValidate  func(ctx context.Context, output string) error
	defaultTransform func(ctx context.Context, input, clientID, agentName string) (string, error)
	defaultMap       func(ctx context.Context, msg core.Message, clientID, agentName string) (core.Message, error)

	queue core.FIFO

	agentChange core.Signal[string]
	toolCommit  core.Signal[string]
	toolError   core.Signal[string]
	toolStop    core.Signal[string]
	rescue      core.Signal[string]
	output      core.Signal[string]
}

// New constructs a turn engine. tools must be resolved in the declaration
// order of the agent schema.
func New(
	clientID string,
	agentSchema schema.Agent,
	completion schema.Completion,
	tools []schema.Tool,
	hist core.History,
	optFns ...func(o *Options),
) *Client {
	opts := Options{
		ToolWatchdog: DefaultToolWatchdog,
		Rescue:       defaultRescueOptions(),
		Logger:       logging.NewLogger(nil),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ToolWatchdog <= 0 {
		opts.ToolWatchdog = DefaultToolWatchdog
	}

	c := &Client{
		clientID:         clientID,
		schema:           agentSchema,
		completion:       completion,
		toolOrder:        tools,
		tools:            make(map[string]schema.Tool, len(tools)),
		history:          hist,
		bus:              opts.Bus,
		logger:           opts.Logger.WithComponent("agent").WithClient(clientID),
		systemPrompt:     opts.SystemPrompt,
		watchdog:         opts.ToolWatchdog,
		rescueOpts:       opts.Rescue,
		defaultValidate:  opts.DefaultValidate,
		defaultTransform: opts.DefaultTransform,
		defaultMap:       opts.DefaultMap,
	}
	for _, t := range tools {
		c.tools[t.Function.Name] = t
	}
	if cb := agentSchema.Callbacks.OnInit; cb != nil {
		cb(context.Background(), clientID, agentSchema.AgentName)
	}
	return c
}

// AgentName returns the schema name of this engine.
func (c *Client) AgentName() string { return c.schema.AgentName }

// Output registers a single-shot waiter for the next published output.
func (c *Client) Output() <-chan string { return c.output.Next() }

// WaitForOutput blocks until the next output is published.
func (c *Client) WaitForOutput(ctx context.Context) (string, error) {
	return c.output.Wait(ctx)
}

// Execute runs one turn. Turns of the same agent instance are serialized.
// Invalid model output is recovered through rescue rather than returned. An
// error is returned when ctx ends while the turn waits in the queue, when a
// collaborator fails (history, the completion back-end, the map or transform
// hook, the rescue strategy), or as a *FatalError when the rescued output is
// still invalid.
func (c *Client) Execute(ctx context.Context, incoming string, mode core.ExecutionMode) error {
	return c.queue.Do(ctx, func() error {
		return c.execute(ctx, incoming, mode)
	})
}

func (c *Client) execute(ctx context.Context, incoming string, mode core.ExecutionMode) error {
	ctx = core.WithExecutionContext(ctx, core.ExecutionContext{
		ClientID:    c.clientID,
		ExecutionID: uuid.NewString(),
	})
	incoming = strings.TrimSpace(incoming)

	if cb := c.schema.Callbacks.OnExecute; cb != nil {
		cb(ctx, c.clientID, c.schema.AgentName, incoming, mode)
	}
	c.emitBus(ctx, "execute", map[string]any{"message": incoming, "mode": string(mode)}, nil)

	if err := c.history.Push(ctx, core.Message{
		Role:      core.RoleUser,
		AgentName: c.schema.AgentName,
		Mode:      mode,
		Content:   incoming,
	}); err != nil {
		return err
	}

	msg, err := c.getCompletion(ctx, mode)
	if err != nil {
		return fmt.Errorf("completion for agent %q: %w", c.schema.AgentName, err)
	}

	if len(msg.ToolCalls) > 0 {
		return c.dispatchToolCalls(ctx, mode, msg)
	}
	return c.emitOutput(ctx, mode, msg.Content)
}

// Run is a stateless completion pass: it reads history but never mutates it
// and returns the validated transformed string, or the empty string when
// tool calls appeared or validation failed.
func (c *Client) Run(ctx context.Context, incoming string) (string, error) {
	incoming = strings.TrimSpace(incoming)
	c.emitBus(ctx, "run", map[string]any{"message": incoming}, nil)

	messages, err := c.history.ToArrayForAgent(ctx, c.schema.Prompt, c.systemPreamble())
	if err != nil {
		return "", err
	}
	messages = append(messages, core.Message{
		Role:      core.RoleUser,
		AgentName: c.schema.AgentName,
		Mode:      core.ModeUser,
		Content:   incoming,
	})

	msg, err := c.complete(ctx, core.ModeUser, messages)
	if err != nil {
		return "", err
	}
	if len(msg.ToolCalls) > 0 {
		c.logger.Debug("stateless run produced tool calls, discarding", "agent_name", c.schema.AgentName)
		return "", nil
	}

	result, err := c.transform(ctx, msg.Content)
	if err != nil {
		return "", err
	}
	if verr := c.validate(ctx, result); verr != nil {
		c.logger.Debug("stateless run output rejected", "agent_name", c.schema.AgentName, "reason", verr.Error())
		return "", nil
	}
	return result, nil
}

// getCompletion builds the prompt projection and calls the back-end.
func (c *Client) getCompletion(ctx context.Context, mode core.ExecutionMode) (core.Message, error) {
	messages, err := c.history.ToArrayForAgent(ctx, c.schema.Prompt, c.systemPreamble())
	if err != nil {
		return core.Message{}, err
	}
	return c.complete(ctx, mode, messages)
}

func (c *Client) complete(ctx context.Context, mode core.ExecutionMode, messages []core.Message) (core.Message, error) {
	args := &core.CompletionArgs{
		ClientID:  c.clientID,
		AgentName: c.schema.AgentName,
		Mode:      mode,
		Messages:  messages,
		Tools:     c.toolSpecs(),
	}

	start := time.Now()
	msg, err := c.completion.GetCompletion(ctx, args)
	c.logger.LogCompletionCall(c.completion.CompletionName, c.schema.AgentName, time.Since(start), err == nil, err)
	if err != nil {
		return core.Message{}, err
	}

	if cb := c.completion.Callbacks.OnComplete; cb != nil {
		cb(ctx, args, msg)
	}

	if msg.Role == "" {
		msg.Role = core.RoleAssistant
	}
	msg.AgentName = c.schema.AgentName

	mapFn := c.schema.Map
	if mapFn == nil {
		mapFn = c.defaultMap
	}
	if mapFn != nil {
		msg, err = mapFn(ctx, msg, c.clientID, c.schema.AgentName)
		if err != nil {
			return core.Message{}, fmt.Errorf("map completion message: %w", err)
		}
	}
	return msg, nil
}

func (c *Client) systemPreamble() []string {
	if len(c.systemPrompt) == 0 {
		return c.schema.System
	}
	out := make([]string, 0, len(c.schema.System)+len(c.systemPrompt))
	out = append(out, c.schema.System...)
	return append(out, c.systemPrompt...)
}

// toolSpecs strips tool schemas down to their wire view.
func (c *Client) toolSpecs() []core.FunctionSpec {
	if len(c.toolOrder) == 0 {
		return nil
	}
	specs := make([]core.FunctionSpec, 0, len(c.toolOrder))
	for _, t := range c.toolOrder {
		specs = append(specs, t.Function)
	}
	return specs
}

// transform applies the agent (or default) output transform.
func (c *Client) transform(ctx context.Context, input string) (string, error) {
	fn := c.schema.Transform
	if fn == nil {
		fn = c.defaultTransform
	}
	if fn == nil {
		return strings.TrimSpace(input), nil
	}
	return fn(ctx, input, c.clientID, c.schema.AgentName)
}

// validate applies the agent (or default) output validation.
func (c *Client) validate(ctx context.Context, output string) error {
	fn := c.schema.Validate
	if fn == nil {
		fn = c.defaultValidate
	}
	if fn == nil {
		return nil
	}
	return fn(ctx, output)
}

// emitOutput transforms and validates rawResult, retrying once through the
// rescue path, then publishes exactly one output. History writes on the
// rescue branch belong to the strategy (recomplete persists its new
// assistant message, flush does not persist the placeholder), so only the
// directly validated result is pushed here.
func (c *Client) emitOutput(ctx context.Context, mode core.ExecutionMode, rawResult string) error {
	result, err := c.transform(ctx, rawResult)
	if err != nil {
		return err
	}

	if verr := c.validate(ctx, result); verr != nil {
		rescued, err := c.resurrect(ctx, mode, "invalid model output")
		if err != nil {
			return err
		}
		result, err = c.transform(ctx, rescued)
		if err != nil {
			return err
		}
		if verr := c.validate(ctx, result); verr != nil {
			return &FatalError{ClientID: c.clientID, AgentName: c.schema.AgentName, Validation: verr.Error()}
		}
		c.publishOutput(ctx, mode, result)
		return nil
	}

	if err := c.history.Push(ctx, core.Message{
		Role:      core.RoleAssistant,
		AgentName: c.schema.AgentName,
		Mode:      mode,
		Content:   result,
	}); err != nil {
		return err
	}
	c.publishOutput(ctx, mode, result)
	return nil
}

// publishOutput delivers a final result to waiters, callbacks and the bus.
func (c *Client) publishOutput(ctx context.Context, mode core.ExecutionMode, result string) {
	c.output.Emit(result)
	if cb := c.schema.Callbacks.OnOutput; cb != nil {
		cb(ctx, c.clientID, c.schema.AgentName, result)
	}
	c.emitBus(ctx, "output", map[string]any{"mode": string(mode)}, map[string]any{"result": result})
}

// emitRescuedOutput runs the rescue path and publishes its result as the
// turn's single output.
func (c *Client) emitRescuedOutput(ctx context.Context, mode core.ExecutionMode, reason string) error {
	result, err := c.resurrect(ctx, mode, reason)
	if err != nil {
		return err
	}
	c.publishOutput(ctx, mode, result)
	return nil
}

// resurrect recovers from invalid model output using the configured
// strategy. Every strategy fires the rescue signal and the OnResurrect
// callback.
func (c *Client) resurrect(ctx context.Context, mode core.ExecutionMode, reason string) (string, error) {
	c.logger.Warn("resurrecting model", "agent_name", c.schema.AgentName, "reason", reason, "strategy", string(c.rescueOpts.Strategy))

	var result string
	switch c.rescueOpts.Strategy {
	case RescueRecomplete:
		if err := c.pushRescueMarker(ctx, reason, c.rescueOpts.RecompletePrompt); err != nil {
			return "", err
		}
		msg, err := c.getCompletion(ctx, mode)
		if err != nil {
			return "", err
		}
		result, err = c.transform(ctx, msg.Content)
		if err != nil {
			return "", err
		}
		if err := c.history.Push(ctx, core.Message{
			Role:      core.RoleAssistant,
			AgentName: c.schema.AgentName,
			Mode:      mode,
			Content:   result,
		}); err != nil {
			return "", err
		}

	case RescueCustom:
		if c.rescueOpts.Custom == nil {
			return "", fmt.Errorf("rescue strategy %q requires a custom function", RescueCustom)
		}
		msg, err := c.rescueOpts.Custom(ctx, c.clientID, c.schema.AgentName)
		if err != nil {
			return "", err
		}
		result = msg.Content

	default: // RescueFlush
		if err := c.pushRescueMarker(ctx, reason, c.rescueOpts.FlushPrompt); err != nil {
			return "", err
		}
		result = c.rescueOpts.placeholder()
	}

	c.rescue.Emit(result)
	if cb := c.schema.Callbacks.OnResurrect; cb != nil {
		cb(ctx, c.clientID, c.schema.AgentName, mode, reason)
	}
	c.emitBus(ctx, "resurrect", map[string]any{"reason": reason, "strategy": string(c.rescueOpts.Strategy)}, nil)
	return result, nil
}

func (c *Client) pushRescueMarker(ctx context.Context, reason, prompt string) error {
	if err := c.history.Push(ctx, core.Message{
		Role:      core.RoleResque,
		AgentName: c.schema.AgentName,
		Mode:      core.ModeTool,
		Content:   reason,
	}); err != nil {
		return err
	}
	return c.history.Push(ctx, core.Message{
		Role:      core.RoleUser,
		AgentName: c.schema.AgentName,
		Mode:      core.ModeTool,
		Content:   prompt,
	})
}

// Dispose tears down the engine.
func (c *Client) Dispose(ctx context.Context) error {
	if cb := c.schema.Callbacks.OnDispose; cb != nil {
		cb(ctx, c.clientID, c.schema.AgentName)
	}
	c.emitBus(ctx, "dispose", nil, nil)
	return nil
}

func (c *Client) emitBus(ctx context.Context, eventType string, input, output map[string]any) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Emit(ctx, c.clientID, core.Event{
		Source:  core.AgentBus,
		Type:    eventType,
		Input:   input,
		Output:  output,
		Context: core.EventContext{AgentName: c.schema.AgentName},
	}); err != nil {
		c.logger.Error("agent bus emit failed", "type", eventType, "error", err)
	}
}
