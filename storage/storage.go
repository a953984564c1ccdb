// Package storage implements the embedding-indexed client storage. Items are
// embedded once on upsert (via the schema's index text), mutations are
// serialized through a per-instance dispatch queue, and Take ranks items by
// similarity against an embedded search string.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
	"github.com/hupe1980/agentswarm/persist"
	"github.com/hupe1980/agentswarm/schema"
)

const (
	// DefaultSearchSimilarity is the minimum score a ranked item needs to be
	// part of a Take result.
	DefaultSearchSimilarity = 0.65
	// DefaultSearchPool bounds how many ranked candidates are considered
	// before the similarity threshold applies.
	DefaultSearchPool = 5
)

// Options configures a Client.
type Options struct {
	// SearchSimilarity overrides DefaultSearchSimilarity.
	SearchSimilarity float64
	// SearchPool overrides DefaultSearchPool.
	SearchPool int
	// PersistStore persists the item list; nil keeps items in memory even
	// when the schema asks for persistence.
	PersistStore *persist.EntityStore
	// Bus receives storage-bus events; nil disables emission.
	Bus core.EventBus
	// Logger receives storage logs.
	Logger *logging.SwarmLogger
}

type indexedItem struct {
	item      core.StorageItem
	embedding []float64
}

// Client is one storage instance, scoped to a client (or to the swarm when
// the schema declares it shared). It implements core.Storage.
type Client struct {
	clientID  string
	schema    schema.Storage
	embedding schema.Embedding
	bus       core.EventBus
	logger    *logging.SwarmLogger

	similarity float64
	pool       int
	store      *persist.EntityStore

	queue core.FIFO

	mu     sync.RWMutex
	loaded bool
	order  []string
	items  map[string]indexedItem
}

// New constructs a storage instance. embedding must resolve the schema's
// embedding name.
func New(clientID string, storageSchema schema.Storage, embedding schema.Embedding, optFns ...func(o *Options)) *Client {
	opts := Options{
		SearchSimilarity: DefaultSearchSimilarity,
		SearchPool:       DefaultSearchPool,
		Logger:           logging.NewLogger(nil),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	c := &Client{
		clientID:   clientID,
		schema:     storageSchema,
		embedding:  embedding,
		bus:        opts.Bus,
		logger:     opts.Logger.WithComponent("storage").WithClient(clientID),
		similarity: opts.SearchSimilarity,
		pool:       opts.SearchPool,
		store:      opts.PersistStore,
		items:      map[string]indexedItem{},
	}
	if cb := storageSchema.Callbacks.OnInit; cb != nil {
		cb(context.Background(), clientID, storageSchema.StorageName)
	}
	return c
}

// waitForInit loads persisted data or the schema's default seed once.
func (c *Client) waitForInit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}

	var seed []core.StorageItem
	restored := false
	if c.store != nil {
		ok, err := c.store.Has(c.clientID)
		if err != nil {
			return err
		}
		if ok {
			var entity persist.StorageEntity
			if err := c.store.Read(c.clientID, &entity); err != nil {
				return err
			}
			for _, data := range entity.Data {
				item := core.StorageItem{Data: data}
				if id, ok := data["id"].(string); ok {
					item.ID = id
				}
				seed = append(seed, item)
			}
			restored = true
		}
	}
	if !restored && c.schema.GetDefaultData != nil {
		var err error
		seed, err = c.schema.GetDefaultData(ctx, c.clientID, c.schema.StorageName)
		if err != nil {
			return err
		}
	}

	for _, item := range seed {
		emb, err := c.index(ctx, item)
		if err != nil {
			return err
		}
		c.putLocked(item, emb)
	}
	c.loaded = true
	return nil
}

// index renders the item into text and embeds it.
func (c *Client) index(ctx context.Context, item core.StorageItem) ([]float64, error) {
	if c.embedding.CreateEmbedding == nil {
		return nil, nil
	}
	text := item.ID
	if c.schema.CreateIndex != nil {
		var err error
		text, err = c.schema.CreateIndex(ctx, item)
		if err != nil {
			return nil, err
		}
	}
	return c.embedding.CreateEmbedding(ctx, text)
}

func (c *Client) putLocked(item core.StorageItem, embedding []float64) {
	if _, exists := c.items[item.ID]; !exists {
		c.order = append(c.order, item.ID)
	}
	c.items[item.ID] = indexedItem{item: item, embedding: embedding}
}

// Take embeds search and returns up to total items ranked by similarity.
// Only the top pool candidates are considered and items scoring below the
// similarity threshold are dropped.
func (c *Client) Take(ctx context.Context, search string, total int) ([]core.StorageItem, error) {
	if err := c.waitForInit(ctx); err != nil {
		return nil, err
	}
	if c.embedding.CreateEmbedding == nil || c.embedding.CalculateSimilarity == nil {
		return nil, fmt.Errorf("storage %q has no embedding configured for search", c.schema.StorageName)
	}

	needle, err := c.embedding.CreateEmbedding(ctx, search)
	if err != nil {
		return nil, err
	}

	type scored struct {
		item  core.StorageItem
		score float64
	}

	c.mu.RLock()
	candidates := make([]scored, 0, len(c.order))
	for _, id := range c.order {
		indexed := c.items[id]
		score, err := c.embedding.CalculateSimilarity(needle, indexed.embedding)
		if err != nil {
			c.mu.RUnlock()
			return nil, err
		}
		candidates = append(candidates, scored{item: indexed.item, score: score})
	}
	c.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if c.pool > 0 && len(candidates) > c.pool {
		candidates = candidates[:c.pool]
	}

	result := make([]core.StorageItem, 0, total)
	for _, cand := range candidates {
		if cand.score < c.similarity {
			continue
		}
		result = append(result, cand.item)
		if len(result) == total {
			break
		}
	}

	if cb := c.schema.Callbacks.OnSearch; cb != nil {
		cb(ctx, search, result, c.clientID, c.schema.StorageName)
	}
	c.emitBus(ctx, "take", map[string]any{"search": search, "total": total}, map[string]any{"count": len(result)})
	return result, nil
}

// Upsert inserts or replaces an item, re-indexing it.
func (c *Client) Upsert(ctx context.Context, item core.StorageItem) error {
	return c.dispatch(ctx, "upsert", func() error {
		emb, err := c.index(ctx, item)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.putLocked(item, emb)
		c.mu.Unlock()
		return nil
	})
}

// Remove deletes the item with id; unknown ids are fine.
func (c *Client) Remove(ctx context.Context, id string) error {
	return c.dispatch(ctx, "remove", func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.items[id]; !ok {
			return nil
		}
		delete(c.items, id)
		for i, existing := range c.order {
			if existing == id {
				c.order = append(c.order[:i:i], c.order[i+1:]...)
				break
			}
		}
		return nil
	})
}

// Get returns the item with id.
func (c *Client) Get(ctx context.Context, id string) (core.StorageItem, bool, error) {
	if err := c.waitForInit(ctx); err != nil {
		return core.StorageItem{}, false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	indexed, ok := c.items[id]
	return indexed.item, ok, nil
}

// List returns items in insertion order, optionally filtered.
func (c *Client) List(ctx context.Context, filter func(core.StorageItem) bool) ([]core.StorageItem, error) {
	if err := c.waitForInit(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.StorageItem, 0, len(c.order))
	for _, id := range c.order {
		item := c.items[id].item
		if filter != nil && !filter(item) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// Clear removes every item.
func (c *Client) Clear(ctx context.Context) error {
	return c.dispatch(ctx, "clear", func() error {
		c.mu.Lock()
		c.items = map[string]indexedItem{}
		c.order = nil
		c.mu.Unlock()
		return nil
	})
}

// dispatch serializes a mutation, persists the result and fires callbacks.
func (c *Client) dispatch(ctx context.Context, op string, fn func() error) error {
	return c.queue.Do(ctx, func() error {
		if err := c.waitForInit(ctx); err != nil {
			return err
		}
		if err := fn(); err != nil {
			return err
		}
		items, err := c.snapshot()
		if err != nil {
			return err
		}
		if err := c.persistItems(items); err != nil {
			return err
		}
		if cb := c.schema.Callbacks.OnUpdate; cb != nil {
			cb(ctx, items, c.clientID, c.schema.StorageName)
		}
		c.emitBus(ctx, op, nil, map[string]any{"count": len(items)})
		return nil
	})
}

func (c *Client) snapshot() ([]core.StorageItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	items := make([]core.StorageItem, 0, len(c.order))
	for _, id := range c.order {
		items = append(items, c.items[id].item)
	}
	return items, nil
}

func (c *Client) persistItems(items []core.StorageItem) error {
	if c.store == nil {
		return nil
	}
	entity := persist.StorageEntity{Data: make([]map[string]any, 0, len(items))}
	for _, item := range items {
		data := make(map[string]any, len(item.Data)+1)
		for k, v := range item.Data {
			data[k] = v
		}
		data["id"] = item.ID
		entity.Data = append(entity.Data, data)
	}
	return c.store.Write(c.clientID, entity)
}

// Dispose tears down the instance.
func (c *Client) Dispose(ctx context.Context) error {
	if cb := c.schema.Callbacks.OnDispose; cb != nil {
		cb(ctx, c.clientID, c.schema.StorageName)
	}
	c.mu.Lock()
	c.items = map[string]indexedItem{}
	c.order = nil
	c.loaded = false
	c.mu.Unlock()
	return nil
}

func (c *Client) emitBus(ctx context.Context, eventType string, input, output map[string]any) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Emit(ctx, c.clientID, core.Event{
		Source:  core.StorageBus,
		Type:    eventType,
		Input:   input,
		Output:  output,
		Context: core.EventContext{StorageName: c.schema.StorageName},
	}); err != nil {
		c.logger.Error("storage bus emit failed", "type", eventType, "error", err)
	}
}
