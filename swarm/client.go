// Package swarm implements the per-client swarm controller: it tracks the
// active agent, keeps the navigation stack, and mediates output waits. Agent
// outputs are forwarded into a swarm-level signal while the emitting agent
// is active, so a mid-turn agent switch transparently hands the wait to the
// new agent and an explicit cancel resolves it with the empty string.
package swarm

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/schema"
)

// Options configures a Client.
type Options struct {
	// Adapter persists the active agent and navigation stack. Nil selects
	// the in-memory adapter.
	Adapter PersistAdapter
	// Bus receives swarm-bus events; nil disables emission.
	Bus core.EventBus
	// Logger receives controller logs.
	Logger *logging.SwarmLogger
}

type agentRef struct {
	agent core.Agent
	stop  chan struct{}
}

// Client is the swarm controller for one clientID. It implements core.Swarm.
type Client struct {
	clientID string
	schema   schema.Swarm
	adapter  PersistAdapter
	bus      core.EventBus
	logger   *logging.SwarmLogger

	mu     sync.Mutex
	agents map[string]*agentRef

	output core.Signal[string]
	cancel core.Signal[string]
}

// New constructs a controller for clientID over swarmSchema.
func New(clientID string, swarmSchema schema.Swarm, optFns ...func(o *Options)) *Client {
	opts := Options{Logger: logging.NewLogger(nil)}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Adapter == nil {
		opts.Adapter = NewMemoryAdapter()
	}
	c := &Client{
		clientID: clientID,
		schema:   swarmSchema,
		adapter:  opts.Adapter,
		bus:      opts.Bus,
		logger:   opts.Logger.WithComponent("swarm").WithClient(clientID),
		agents:   map[string]*agentRef{},
	}
	if cb := swarmSchema.Callbacks.OnInit; cb != nil {
		cb(context.Background(), clientID, swarmSchema.SwarmName)
	}
	return c
}

// SwarmName returns the schema name of this controller.
func (c *Client) SwarmName() string { return c.schema.SwarmName }

// GetAgentName returns the active agent name, falling back to the schema
// default for fresh clients.
func (c *Client) GetAgentName(ctx context.Context) (string, error) {
	return c.adapter.GetActiveAgent(ctx, c.clientID, c.schema.DefaultAgent)
}

// GetAgent returns the active agent instance.
func (c *Client) GetAgent(ctx context.Context) (core.Agent, error) {
	name, err := c.GetAgentName(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ref, ok := c.agents[name]
	if !ok {
		return nil, fmt.Errorf("agent %q of swarm %q has no registered instance for client %q", name, c.schema.SwarmName, c.clientID)
	}
	return ref.agent, nil
}

// SetAgentRef registers a concrete agent instance and starts forwarding its
// outputs. The name must be a member of the swarm's agent list; registering
// a name again replaces the previous instance.
func (c *Client) SetAgentRef(ctx context.Context, name string, agent core.Agent) error {
	if !c.isMember(name) {
		return fmt.Errorf("agent %q is not a member of swarm %q", name, c.schema.SwarmName)
	}
	ref := &agentRef{agent: agent, stop: make(chan struct{})}
	c.mu.Lock()
	if prev, ok := c.agents[name]; ok {
		close(prev.stop)
	}
	c.agents[name] = ref
	c.mu.Unlock()

	go c.forward(name, ref, agent.Output())
	return nil
}

// forward relays outputs of one agent into the swarm-level output signal for
// as long as that agent is active at emission time. The first waiter on the
// agent's output is registered by the caller and each next one right after a
// value arrives, so no output emitted in between is dropped.
func (c *Client) forward(name string, ref *agentRef, out <-chan string) {
	for {
		select {
		case v := <-out:
			out = ref.agent.Output()
			active, err := c.adapter.GetActiveAgent(context.Background(), c.clientID, c.schema.DefaultAgent)
			if err != nil {
				c.logger.Error("output forward lost active agent", "agent_name", name, "error", err)
				return
			}
			if active == name {
				c.output.Emit(v)
			}
		case <-ref.stop:
			return
		}
	}
}

func (c *Client) isMember(name string) bool {
	for _, member := range c.schema.AgentList {
		if member == name {
			return true
		}
	}
	return false
}

// SetAgentName atomically switches the active agent: the prior agent is
// pushed onto the navigation stack, the change is persisted, and callbacks
// plus the bus fire.
func (c *Client) SetAgentName(ctx context.Context, name string) error {
	if !c.isMember(name) {
		return fmt.Errorf("agent %q is not a member of swarm %q", name, c.schema.SwarmName)
	}

	prev, err := c.GetAgentName(ctx)
	if err != nil {
		return err
	}
	if prev != "" && prev != name {
		if err := c.adapter.PushNavigation(ctx, c.clientID, prev); err != nil {
			return err
		}
	}
	if err := c.adapter.SetActiveAgent(ctx, c.clientID, name); err != nil {
		return err
	}
	c.logger.Info("active agent changed", "swarm_name", c.schema.SwarmName, "from", prev, "to", name)

	c.afterAgentChange(ctx, name)
	return nil
}

// NavigationPop pops the stack, activates the popped agent (or the default
// when the stack is empty) and returns its name.
func (c *Client) NavigationPop(ctx context.Context) (string, error) {
	name, ok, err := c.adapter.PopNavigation(ctx, c.clientID)
	if err != nil {
		return "", err
	}
	if !ok {
		name = c.schema.DefaultAgent
	}
	if err := c.adapter.SetActiveAgent(ctx, c.clientID, name); err != nil {
		return "", err
	}
	c.logger.Info("navigation pop", "swarm_name", c.schema.SwarmName, "to", name)

	c.afterAgentChange(ctx, name)
	return name, nil
}

func (c *Client) afterAgentChange(ctx context.Context, name string) {
	if cb := c.schema.Callbacks.OnAgentChanged; cb != nil {
		cb(ctx, c.clientID, name, c.schema.SwarmName)
	}
	if c.bus != nil {
		if err := c.bus.Emit(ctx, c.clientID, core.Event{
			Source:  core.SwarmBus,
			Type:    "agent-changed",
			Output:  map[string]any{"agentName": name},
			Context: core.EventContext{AgentName: name, SwarmName: c.schema.SwarmName},
		}); err != nil {
			c.logger.Error("swarm bus emit failed", "error", err)
		}
	}
}

// Output synchronously registers a waiter resolved by the next output of
// whichever agent is active at emission time, or by a cancel (empty string).
// Registration happens before Output returns, so a caller may start the turn
// afterwards without risking a missed emission.
func (c *Client) Output(ctx context.Context) <-chan string {
	res := make(chan string, 1)
	out := c.output.Next()
	cancel := c.cancel.Next()

	go func() {
		select {
		case v := <-out:
			c.cancel.Forget(cancel)
			res <- v
		case v := <-cancel:
			c.output.Forget(out)
			res <- v
		case <-ctx.Done():
			c.output.Forget(out)
			c.cancel.Forget(cancel)
		}
	}()
	return res
}

// WaitForOutput blocks on Output.
func (c *Client) WaitForOutput(ctx context.Context) (string, error) {
	select {
	case out := <-c.Output(ctx):
		return out, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// CancelOutput converts every outstanding WaitForOutput into an empty-string
// completion.
func (c *Client) CancelOutput(ctx context.Context) error {
	c.cancel.Emit("")
	if c.bus != nil {
		return c.bus.Emit(ctx, c.clientID, core.Event{
			Source:  core.SwarmBus,
			Type:    "cancel-output",
			Context: core.EventContext{SwarmName: c.schema.SwarmName},
		})
	}
	return nil
}

// Dispose tears down the controller. Forwarders stop and pending output
// waits are cancelled.
func (c *Client) Dispose(ctx context.Context) error {
	c.cancel.Emit("")
	c.mu.Lock()
	for _, ref := range c.agents {
		close(ref.stop)
	}
	c.agents = map[string]*agentRef{}
	c.mu.Unlock()
	if cb := c.schema.Callbacks.OnDispose; cb != nil {
		cb(ctx, c.clientID, c.schema.SwarmName)
	}
	return nil
}
