package agentswarm

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/validation"
)

// SessionHandle is the embedder-facing handle of a live session.
type SessionHandle struct {
	owner     *AgentSwarm
	clientID  string
	swarmName string
}

// ClientID returns the session's client identifier.
func (h *SessionHandle) ClientID() string { return h.clientID }

// Complete runs one turn for msg and returns the output.
func (h *SessionHandle) Complete(ctx context.Context, msg string) (string, error) {
	ctx = h.owner.beginMethod(ctx, core.MethodContext{
		ClientID:   h.clientID,
		MethodName: "Session.Complete",
		SwarmName:  h.swarmName,
	})
	gateway, _, err := h.owner.sessionFor(ctx, h.clientID, "Session.Complete")
	if err != nil {
		return "", err
	}
	return gateway.Execute(ctx, msg, core.ModeUser)
}

// Dispose tears the session down.
func (h *SessionHandle) Dispose(ctx context.Context) error {
	return h.owner.DisposeConnection(ctx, h.clientID, h.swarmName)
}

// Session opens (or reuses) a session for clientID on swarmName.
func (s *AgentSwarm) Session(ctx context.Context, clientID, swarmName string) (*SessionHandle, error) {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "Session", SwarmName: swarmName})
	if !s.sessionValidation.HasSession(clientID) {
		if err := s.attachSession(ctx, clientID, swarmName, validation.ModeSession); err != nil {
			return nil, err
		}
	}
	return &SessionHandle{owner: s, clientID: clientID, swarmName: swarmName}, nil
}

// ScheduledSessionHandle batches messages inside a delay window: when a
// newer message arrives while an older one is still waiting, the older one
// is committed as a plain user message and only the newest triggers a
// completion.
type ScheduledSessionHandle struct {
	session *SessionHandle
	delay   time.Duration

	mu  sync.Mutex
	seq uint64
}

// Delay returns the batching window.
func (h *ScheduledSessionHandle) Delay() time.Duration { return h.delay }

// Complete schedules msg. The call blocks for the delay window; when it is
// superseded the message is committed without completion and the empty
// string returns.
func (h *ScheduledSessionHandle) Complete(ctx context.Context, msg string) (string, error) {
	h.mu.Lock()
	h.seq++
	my := h.seq
	h.mu.Unlock()

	select {
	case <-time.After(h.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	h.mu.Lock()
	superseded := my != h.seq
	h.mu.Unlock()

	if superseded {
		if err := h.session.owner.CommitUserMessageForce(ctx, msg, h.session.clientID); err != nil {
			return "", err
		}
		return "", nil
	}
	return h.session.Complete(ctx, msg)
}

// Dispose tears the underlying session down.
func (h *ScheduledSessionHandle) Dispose(ctx context.Context) error {
	return h.session.Dispose(ctx)
}

// SessionScheduled opens a session whose Complete batches messages within
// the delay window.
func (s *AgentSwarm) SessionScheduled(ctx context.Context, clientID, swarmName string, delay time.Duration) (*ScheduledSessionHandle, error) {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "SessionScheduled", SwarmName: swarmName})
	if !s.sessionValidation.HasSession(clientID) {
		if err := s.attachSession(ctx, clientID, swarmName, validation.ModeScheduled); err != nil {
			return nil, err
		}
	}
	return &ScheduledSessionHandle{
		session: &SessionHandle{owner: s, clientID: clientID, swarmName: swarmName},
		delay:   delay,
	}, nil
}

// Complete is the one-shot entry: it opens a session when none exists, runs
// one turn and keeps the session for subsequent calls.
func (s *AgentSwarm) Complete(ctx context.Context, msg, clientID, swarmName string) (string, error) {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "Complete", SwarmName: swarmName})
	if !s.sessionValidation.HasSession(clientID) {
		if err := s.attachSession(ctx, clientID, swarmName, validation.ModeComplete); err != nil {
			return "", err
		}
	}
	gateway, _, err := s.sessionFor(ctx, clientID, "Complete")
	if err != nil {
		return "", err
	}
	return gateway.Execute(ctx, msg, core.ModeUser)
}

// SendMessageFn submits an incoming client message over a connection.
type SendMessageFn func(ctx context.Context, msg string) error

// MakeConnection bridges a bidirectional connector: receive is invoked for
// every turn output and server-side emit; the returned function submits
// incoming client messages.
func (s *AgentSwarm) MakeConnection(ctx context.Context, receive core.SendFn, clientID, swarmName string) (SendMessageFn, error) {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "MakeConnection", SwarmName: swarmName})
	if !s.sessionValidation.HasSession(clientID) {
		if err := s.attachSession(ctx, clientID, swarmName, validation.ModeMakeConnection); err != nil {
			return nil, err
		}
	}
	gateway, _, err := s.sessionFor(ctx, clientID, "MakeConnection")
	if err != nil {
		return nil, err
	}

	incoming := gateway.Connect(ctx, receive)
	return func(ctx context.Context, msg string) error {
		return incoming(ctx, msg)
	}, nil
}

// MakeConnectionScheduled is MakeConnection with delay-window batching of
// incoming messages.
func (s *AgentSwarm) MakeConnectionScheduled(ctx context.Context, receive core.SendFn, clientID, swarmName string, delay time.Duration) (SendMessageFn, error) {
	send, err := s.MakeConnection(ctx, receive, clientID, swarmName)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var seq uint64

	return func(ctx context.Context, msg string) error {
		mu.Lock()
		seq++
		my := seq
		mu.Unlock()

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		mu.Lock()
		superseded := my != seq
		mu.Unlock()

		if superseded {
			return s.CommitUserMessageForce(ctx, msg, clientID)
		}
		return send(ctx, msg)
	}, nil
}
