package agentswarm

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/validation"
)

// historyFor resolves the history store of the client's active agent.
func (s *AgentSwarm) historyFor(ctx context.Context, clientID, source string) (core.History, string, error) {
	sw, _, err := s.swarmFor(ctx, clientID, source)
	if err != nil {
		return nil, "", err
	}
	agentName, err := sw.GetAgentName(ctx)
	if err != nil {
		return nil, "", err
	}
	hist, err := s.connections.GetHistory(ctx, clientID, agentName)
	if err != nil {
		return nil, "", err
	}
	return hist, agentName, nil
}

// GetRawHistory returns the active agent's entire log in push order.
func (s *AgentSwarm) GetRawHistory(ctx context.Context, clientID string) ([]core.Message, error) {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "GetRawHistory"})
	hist, _, err := s.historyFor(ctx, clientID, "GetRawHistory")
	if err != nil {
		return nil, err
	}
	return hist.ToArrayForRaw(ctx)
}

// GetAgentHistory returns the filtered projection the active agent would
// hand to its completion.
func (s *AgentSwarm) GetAgentHistory(ctx context.Context, clientID string) ([]core.Message, error) {
	ctx = s.beginMethod(ctx, core.MethodContext{ClientID: clientID, MethodName: "GetAgentHistory"})
	hist, agentName, err := s.historyFor(ctx, clientID, "GetAgentHistory")
	if err != nil {
		return nil, err
	}
	agentSchema, err := s.registries.Agents.Get(agentName)
	if err != nil {
		return nil, err
	}
	return hist.ToArrayForAgent(ctx, agentSchema.Prompt, agentSchema.System)
}

// GetUserHistory returns the raw log filtered to user-mode user messages.
func (s *AgentSwarm) GetUserHistory(ctx context.Context, clientID string) ([]core.Message, error) {
	raw, err := s.GetRawHistory(ctx, clientID)
	if err != nil {
		return nil, err
	}
	out := make([]core.Message, 0, len(raw))
	for _, msg := range raw {
		if msg.Role == core.RoleUser && msg.Mode == core.ModeUser {
			out = append(out, msg)
		}
	}
	return out, nil
}

// GetAssistantHistory returns the raw log filtered to assistant messages.
func (s *AgentSwarm) GetAssistantHistory(ctx context.Context, clientID string) ([]core.Message, error) {
	raw, err := s.GetRawHistory(ctx, clientID)
	if err != nil {
		return nil, err
	}
	out := make([]core.Message, 0, len(raw))
	for _, msg := range raw {
		if msg.Role == core.RoleAssistant {
			out = append(out, msg)
		}
	}
	return out, nil
}

func lastByRole(raw []core.Message, role core.Role, mode core.ExecutionMode) (core.Message, bool) {
	for i := len(raw) - 1; i >= 0; i-- {
		if raw[i].Role != role {
			continue
		}
		if mode != "" && raw[i].Mode != mode {
			continue
		}
		return raw[i], true
	}
	return core.Message{}, false
}

// GetLastUserMessage returns the content of the most recent user-mode user
// message, or the empty string.
func (s *AgentSwarm) GetLastUserMessage(ctx context.Context, clientID string) (string, error) {
	raw, err := s.GetRawHistory(ctx, clientID)
	if err != nil {
		return "", err
	}
	if msg, ok := lastByRole(raw, core.RoleUser, core.ModeUser); ok {
		return msg.Content, nil
	}
	return "", nil
}

// GetLastAssistantMessage returns the content of the most recent assistant
// message, or the empty string.
func (s *AgentSwarm) GetLastAssistantMessage(ctx context.Context, clientID string) (string, error) {
	raw, err := s.GetRawHistory(ctx, clientID)
	if err != nil {
		return "", err
	}
	if msg, ok := lastByRole(raw, core.RoleAssistant, ""); ok {
		return msg.Content, nil
	}
	return "", nil
}

// GetLastSystemMessage returns the content of the most recent system
// message, or the empty string.
func (s *AgentSwarm) GetLastSystemMessage(ctx context.Context, clientID string) (string, error) {
	raw, err := s.GetRawHistory(ctx, clientID)
	if err != nil {
		return "", err
	}
	if msg, ok := lastByRole(raw, core.RoleSystem, ""); ok {
		return msg.Content, nil
	}
	return "", nil
}

// GetSessionMode returns how the client's session was established.
func (s *AgentSwarm) GetSessionMode(ctx context.Context, clientID string) (validation.SessionMode, error) {
	return s.sessionValidation.GetSessionMode(clientID)
}

// SessionContext is a snapshot of the ambient scopes plus the session
// binding of a client.
type SessionContext struct {
	ClientID    string                 `json:"clientId"`
	SwarmName   string                 `json:"swarmName"`
	ProcessID   string                 `json:"processId"`
	Method      *core.MethodContext    `json:"methodContext,omitempty"`
	Execution   *core.ExecutionContext `json:"executionContext,omitempty"`
	SessionMode validation.SessionMode `json:"sessionMode"`
}

// GetSessionContext snapshots the caller's ambient scopes. It reads the
// scopes as the caller saw them, then opens its own suppressed method scope
// for the internal lookups.
func (s *AgentSwarm) GetSessionContext(ctx context.Context) (SessionContext, error) {
	out := SessionContext{ProcessID: s.cfg.ProcessID}
	if mc, ok := core.MethodContextFrom(ctx); ok {
		mcCopy := mc
		out.Method = &mcCopy
		out.ClientID = mc.ClientID
	}
	if ec, ok := core.ExecutionContextFrom(ctx); ok {
		ecCopy := ec
		out.Execution = &ecCopy
		if out.ClientID == "" {
			out.ClientID = ec.ClientID
		}
	}
	if out.ClientID == "" {
		return out, fmt.Errorf("no ambient client scope to snapshot")
	}

	inner := core.BeginContext(ctx)
	inner = s.beginMethod(inner, core.MethodContext{ClientID: out.ClientID, MethodName: "GetSessionContext"})
	if swarmName, err := s.sessionValidation.GetSwarm(out.ClientID); err == nil {
		out.SwarmName = swarmName
	}
	if mode, err := s.GetSessionMode(inner, out.ClientID); err == nil {
		out.SessionMode = mode
	}
	return out, nil
}
