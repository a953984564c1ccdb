package agentswarm

import (
	"context"
	"sync"
	"time"
)

// AutoDisposeOptions configures MakeAutoDispose.
type AutoDisposeOptions struct {
	// Timeout is the inactivity window before the session is torn down.
	Timeout time.Duration
	// OnDestroy observes the teardown.
	OnDestroy func(clientID, swarmName string)
}

// AutoDispose tears a session down after a period without Tick calls.
type AutoDispose struct {
	owner     *AgentSwarm
	clientID  string
	swarmName string
	timeout   time.Duration
	onDestroy func(clientID, swarmName string)

	mu       sync.Mutex
	timer    *time.Timer
	stopped  bool
	disposed bool
}

// MakeAutoDispose arms an inactivity timer for (clientID, swarmName). Call
// Tick on every client activity; after the timeout without a tick the
// session is disposed and OnDestroy fires. Destroy stops the watch without
// disposing.
func (s *AgentSwarm) MakeAutoDispose(ctx context.Context, clientID, swarmName string, optFns ...func(o *AutoDisposeOptions)) *AutoDispose {
	opts := AutoDisposeOptions{Timeout: 15 * time.Minute}
	for _, fn := range optFns {
		fn(&opts)
	}

	a := &AutoDispose{
		owner:     s,
		clientID:  clientID,
		swarmName: swarmName,
		timeout:   opts.Timeout,
		onDestroy: opts.OnDestroy,
	}
	a.timer = time.AfterFunc(a.timeout, func() { a.expire(ctx) })
	return a
}

// Tick records activity and re-arms the timer.
func (a *AutoDispose) Tick() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.timer.Reset(a.timeout)
}

// Destroy stops the watch without disposing the session.
func (a *AutoDispose) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	a.timer.Stop()
}

func (a *AutoDispose) expire(ctx context.Context) {
	a.mu.Lock()
	if a.stopped || a.disposed {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	a.disposed = true
	a.mu.Unlock()

	if err := a.owner.DisposeConnection(ctx, a.clientID, a.swarmName); err != nil {
		a.owner.logger.Error("auto dispose failed", "client_id", a.clientID, "error", err)
	}
	if a.onDestroy != nil {
		a.onDestroy(a.clientID, a.swarmName)
	}
}
