// Package session implements the per-client message gateway. Every entry is
// serialized through a FIFO queue so concurrent calls for one client
// linearize while different clients run independently, and a bidirectional
// connector (send/receive) can be bridged onto the swarm's output stream.
package session

import (
	"context"
	"sync"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
)

// Options configures a Client.
type Options struct {
	// Bus receives session-bus events; nil disables emission.
	Bus core.EventBus
	// Logger receives gateway logs.
	Logger *logging.SwarmLogger
}

// Client is the gateway for one clientID. It implements core.Session.
type Client struct {
	clientID  string
	swarmName string
	swarm     core.Swarm
	bus       core.EventBus
	logger    *logging.SwarmLogger

	queue core.FIFO
	emit  core.Signal[string]

	mu       sync.Mutex
	stopPump context.CancelFunc
}

// New constructs a gateway binding clientID to sw.
func New(clientID, swarmName string, sw core.Swarm, optFns ...func(o *Options)) *Client {
	opts := Options{Logger: logging.NewLogger(nil)}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{
		clientID:  clientID,
		swarmName: swarmName,
		swarm:     sw,
		bus:       opts.Bus,
		logger:    opts.Logger.WithComponent("session").WithClient(clientID),
	}
}

// Execute runs one turn on the active agent and returns its output. Calls
// are linearized per client.
func (c *Client) Execute(ctx context.Context, msg string, mode core.ExecutionMode) (string, error) {
	var out string
	err := c.queue.Do(ctx, func() error {
		agent, err := c.swarm.GetAgent(ctx)
		if err != nil {
			return err
		}

		// Register the output wait before the turn starts, then run both
		// together: a turn that hands off to another agent resolves the wait
		// with the new agent's output.
		result := c.swarm.Output(ctx)
		execErr := make(chan error, 1)
		go func() { execErr <- agent.Execute(ctx, msg, mode) }()

		for {
			select {
			case err := <-execErr:
				if err != nil {
					return err
				}
				execErr = nil // keep draining the output wait
			case out = <-result:
				c.emitBus(ctx, "execute", map[string]any{"message": msg, "mode": string(mode)}, map[string]any{"result": out})
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
	return out, err
}

// Run performs a stateless completion pass on the active agent.
func (c *Client) Run(ctx context.Context, msg string) (string, error) {
	var out string
	err := c.queue.Do(ctx, func() error {
		agent, err := c.swarm.GetAgent(ctx)
		if err != nil {
			return err
		}
		out, err = agent.Run(ctx, msg)
		if err != nil {
			return err
		}
		c.emitBus(ctx, "run", map[string]any{"message": msg}, map[string]any{"result": out})
		return nil
	})
	return out, err
}

// Emit publishes msg directly to the connector send path.
func (c *Client) Emit(ctx context.Context, msg string) error {
	c.emit.Emit(msg)
	c.emitBus(ctx, "emit", map[string]any{"message": msg}, nil)
	return nil
}

// Connect bridges a bidirectional connector: send is invoked for every turn
// output and every server-side Emit; the returned receive feeds incoming
// client messages into Execute.
func (c *Client) Connect(ctx context.Context, send core.SendFn) core.ReceiveFn {
	pumpCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.stopPump = cancel
	c.mu.Unlock()

	// Register the first waiters before returning so an immediately
	// following receive cannot outrun the pump.
	go c.pump(pumpCtx, send, c.emit.Next(), c.swarm.Output(pumpCtx))

	return func(ctx context.Context, incoming string) error {
		// Output delivery happens on the pump; the result here is the same
		// string the pump pushes.
		_, err := c.Execute(ctx, incoming, core.ModeUser)
		return err
	}
}

// pump forwards swarm outputs and server-side emits to the connector.
func (c *Client) pump(ctx context.Context, send core.SendFn, emitted, output <-chan string) {
	for {
		var data string
		select {
		case data = <-emitted:
		case data = <-output:
		case <-ctx.Done():
			c.emit.Forget(emitted)
			return
		}

		agentName, err := c.swarm.GetAgentName(ctx)
		if err != nil {
			c.logger.Error("connector pump lost active agent", "error", err)
			return
		}
		if err := send(core.OutgoingMessage{Data: data, AgentName: agentName, ClientID: c.clientID}); err != nil {
			c.logger.Error("connector send failed", "error", err)
			return
		}

		c.emit.Forget(emitted)
		emitted = c.emit.Next()
		output = c.swarm.Output(ctx)
	}
}

// CommitUserMessage appends a user message without triggering a completion.
func (c *Client) CommitUserMessage(ctx context.Context, msg string, mode core.ExecutionMode) error {
	return c.withAgent(ctx, func(agent core.Agent) error {
		return agent.CommitUserMessage(ctx, msg, mode)
	})
}

// CommitAssistantMessage appends an assistant message.
func (c *Client) CommitAssistantMessage(ctx context.Context, msg string) error {
	return c.withAgent(ctx, func(agent core.Agent) error {
		return agent.CommitAssistantMessage(ctx, msg)
	})
}

// CommitSystemMessage appends a system message.
func (c *Client) CommitSystemMessage(ctx context.Context, msg string) error {
	return c.withAgent(ctx, func(agent core.Agent) error {
		return agent.CommitSystemMessage(ctx, msg)
	})
}

// CommitToolOutput appends a tool result for toolID.
func (c *Client) CommitToolOutput(ctx context.Context, toolID, content string) error {
	return c.withAgent(ctx, func(agent core.Agent) error {
		return agent.CommitToolOutput(ctx, toolID, content)
	})
}

// CommitFlush appends a flush marker.
func (c *Client) CommitFlush(ctx context.Context) error {
	return c.withAgent(ctx, func(agent core.Agent) error {
		return agent.CommitFlush(ctx)
	})
}

// CommitStopTools halts the active agent's tool-call chain.
func (c *Client) CommitStopTools(ctx context.Context) error {
	return c.withAgent(ctx, func(agent core.Agent) error {
		return agent.CommitStopTools(ctx)
	})
}

// withAgent resolves the active agent outside the FIFO queue: commits may be
// issued by tools running inside a queued turn.
func (c *Client) withAgent(ctx context.Context, fn func(agent core.Agent) error) error {
	agent, err := c.swarm.GetAgent(ctx)
	if err != nil {
		return err
	}
	return fn(agent)
}

// Dispose tears down the gateway and stops the connector pump.
func (c *Client) Dispose(ctx context.Context) error {
	c.mu.Lock()
	if c.stopPump != nil {
		c.stopPump()
		c.stopPump = nil
	}
	c.mu.Unlock()
	c.emitBus(ctx, "dispose", nil, nil)
	return nil
}

func (c *Client) emitBus(ctx context.Context, eventType string, input, output map[string]any) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Emit(ctx, c.clientID, core.Event{
		Source:  core.SessionBus,
		Type:    eventType,
		Input:   input,
		Output:  output,
		Context: core.EventContext{SwarmName: c.swarmName},
	}); err != nil {
		c.logger.Error("session bus emit failed", "type", eventType, "error", err)
	}
}
