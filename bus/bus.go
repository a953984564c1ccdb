// Package bus implements the in-process pub/sub channel connecting runtime
// components to embedder-side listeners. Subscriptions are keyed by
// (clientId, source); the wildcard client "*" observes every client. Emission
// is serial and ordered: Emit returns only after each matching subscriber ran
// in subscription order.
package bus

import (
	"context"
	"sort"
	"sync"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
)

// Wildcard subscribes across all clients.
const Wildcard = "*"

type subKey struct {
	clientID string
	source   core.EventSource
}

type subscription struct {
	seq    uint64
	filter core.EventFilter
	fn     core.EventHandler
	once   bool
}

// Options configures a Bus.
type Options struct {
	Logger logging.Logger
}

// Bus is the default EventBus implementation. The zero value is not usable;
// construct with New.
type Bus struct {
	mu     sync.Mutex
	seq    uint64
	subs   map[subKey][]*subscription
	logger logging.Logger
}

// New creates an empty bus.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Bus{subs: map[subKey][]*subscription{}, logger: opts.Logger}
}

// Subscribe registers fn for every event of source emitted for clientID (or
// for any client when clientID is Wildcard). The returned function removes
// the subscription.
func (b *Bus) Subscribe(clientID string, source core.EventSource, fn core.EventHandler) func() {
	return b.add(clientID, source, nil, fn, false)
}

// Once registers fn for the first event of source matching filter, then
// removes itself. The returned function removes the subscription early.
func (b *Bus) Once(clientID string, source core.EventSource, filter core.EventFilter, fn core.EventHandler) func() {
	return b.add(clientID, source, filter, fn, true)
}

func (b *Bus) add(clientID string, source core.EventSource, filter core.EventFilter, fn core.EventHandler, once bool) func() {
	key := subKey{clientID: clientID, source: source}
	sub := &subscription{filter: filter, fn: fn, once: once}

	b.mu.Lock()
	b.seq++
	sub.seq = b.seq
	b.subs[key] = append(b.subs[key], sub)
	b.mu.Unlock()

	return func() { b.remove(key, sub) }
}

func (b *Bus) remove(key subKey, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[key]
	for i, s := range list {
		if s == sub {
			b.subs[key] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[key]) == 0 {
		delete(b.subs, key)
	}
}

// Emit delivers e to every subscriber matching (clientID, e.Source),
// including wildcard subscribers, serially in subscription order. It returns
// after the last handler ran; a handler error aborts delivery and is
// returned.
func (b *Bus) Emit(ctx context.Context, clientID string, e core.Event) error {
	e.ClientID = clientID

	b.mu.Lock()
	matched := make([]*subscription, 0, 4)
	matched = append(matched, b.subs[subKey{clientID: clientID, source: e.Source}]...)
	if clientID != Wildcard {
		matched = append(matched, b.subs[subKey{clientID: Wildcard, source: e.Source}]...)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	fire := make([]*subscription, 0, len(matched))
	for _, sub := range matched {
		if sub.filter != nil && !sub.filter(e) {
			continue
		}
		fire = append(fire, sub)
	}
	// Once subscriptions are consumed before handlers run so a handler that
	// re-emits does not trigger them twice.
	for _, sub := range fire {
		if sub.once {
			b.removeLocked(sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range fire {
		if err := sub.fn(ctx, e); err != nil {
			b.logger.Error("bus handler failed", "source", string(e.Source), "type", e.Type, "error", err)
			return err
		}
	}
	return nil
}

func (b *Bus) removeLocked(sub *subscription) {
	for key, list := range b.subs {
		for i, s := range list {
			if s == sub {
				b.subs[key] = append(list[:i:i], list[i+1:]...)
				if len(b.subs[key]) == 0 {
					delete(b.subs, key)
				}
				return
			}
		}
	}
}

// Dispose tears down every subscription held for clientID.
func (b *Bus) Dispose(clientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.subs {
		if key.clientID == clientID {
			delete(b.subs, key)
		}
	}
}
