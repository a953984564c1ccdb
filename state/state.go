// Package state implements the per-client value slot with serialized
// mutation dispatch, an optional middleware chain applied on writes, and
// filesystem persistence.
package state

import (
	"context"
	"sync"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/persist"
	"github.com/hupe1980/agentswarm/schema"
)

// Options configures a Client.
type Options struct {
	// PersistStore persists the value; nil keeps it in memory.
	PersistStore *persist.EntityStore
	// Bus receives state-bus events; nil disables emission.
	Bus core.EventBus
	// Logger receives state logs.
	Logger *logging.SwarmLogger
}

// Client is one state instance, scoped to a client (or to the swarm when the
// schema declares it shared). It implements core.State.
type Client struct {
	clientID string
	schema   schema.State
	bus      core.EventBus
	logger   *logging.SwarmLogger
	store    *persist.EntityStore

	queue core.FIFO

	mu     sync.RWMutex
	loaded bool
	value  any
}

// New constructs a state instance.
func New(clientID string, stateSchema schema.State, optFns ...func(o *Options)) *Client {
	opts := Options{Logger: logging.NewLogger(nil)}
	for _, fn := range optFns {
		fn(&opts)
	}
	c := &Client{
		clientID: clientID,
		schema:   stateSchema,
		bus:      opts.Bus,
		logger:   opts.Logger.WithComponent("state").WithClient(clientID),
		store:    opts.PersistStore,
	}
	if cb := stateSchema.Callbacks.OnInit; cb != nil {
		cb(context.Background(), clientID, stateSchema.StateName)
	}
	return c
}

func (c *Client) waitForInit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}

	if c.store != nil {
		ok, err := c.store.Has(c.clientID)
		if err != nil {
			return err
		}
		if ok {
			var entity persist.StateEntity
			if err := c.store.Read(c.clientID, &entity); err != nil {
				return err
			}
			c.value = entity.State
			c.loaded = true
			return nil
		}
	}

	if c.schema.GetDefaultState != nil {
		value, err := c.schema.GetDefaultState(ctx, c.clientID, c.schema.StateName)
		if err != nil {
			return err
		}
		c.value = value
	}
	c.loaded = true
	return nil
}

// GetState returns the current value, seeding it on first access.
func (c *Client) GetState(ctx context.Context) (any, error) {
	if err := c.waitForInit(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	value := c.value
	c.mu.RUnlock()

	if cb := c.schema.Callbacks.OnRead; cb != nil {
		cb(ctx, value, c.clientID, c.schema.StateName)
	}
	c.emitBus(ctx, "get", nil, map[string]any{"state": value})
	return value, nil
}

// SetState runs the middleware chain over value, stores and persists the
// result, and returns it. Writes are serialized per instance.
func (c *Client) SetState(ctx context.Context, value any) (any, error) {
	var result any
	err := c.queue.Do(ctx, func() error {
		if err := c.waitForInit(ctx); err != nil {
			return err
		}

		next := value
		var err error
		for _, mw := range c.schema.Middlewares {
			next, err = mw(ctx, next, c.clientID, c.schema.StateName)
			if err != nil {
				return err
			}
		}

		c.mu.Lock()
		c.value = next
		c.mu.Unlock()

		if c.store != nil {
			if err := c.store.Write(c.clientID, persist.StateEntity{State: next}); err != nil {
				return err
			}
		}
		if cb := c.schema.Callbacks.OnWrite; cb != nil {
			cb(ctx, next, c.clientID, c.schema.StateName)
		}
		c.emitBus(ctx, "set", map[string]any{"state": value}, map[string]any{"state": next})
		result = next
		return nil
	})
	return result, err
}

// Dispose tears down the instance.
func (c *Client) Dispose(ctx context.Context) error {
	if cb := c.schema.Callbacks.OnDispose; cb != nil {
		cb(ctx, c.clientID, c.schema.StateName)
	}
	c.mu.Lock()
	c.value = nil
	c.loaded = false
	c.mu.Unlock()
	return nil
}

func (c *Client) emitBus(ctx context.Context, eventType string, input, output map[string]any) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Emit(ctx, c.clientID, core.Event{
		Source:  core.StateBus,
		Type:    eventType,
		Input:   input,
		Output:  output,
		Context: core.EventContext{StateName: c.schema.StateName},
	}); err != nil {
		c.logger.Error("state bus emit failed", "type", eventType, "error", err)
	}
}
