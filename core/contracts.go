package core

import "context"

// Agent is the per-(client, agent) turn engine contract.
//
// Execute runs one full turn: user input, completion, optional tool call
// dispatch, one output emission. Run is a stateless completion pass that
// reads history but never mutates it. The Commit methods append to history
// (or fire coordination signals) without triggering a completion.
type Agent interface {
	Execute(ctx context.Context, incoming string, mode ExecutionMode) error
	Run(ctx context.Context, incoming string) (string, error)

	// Output registers a single-shot waiter for the next emitted output.
	Output() <-chan string
	// WaitForOutput blocks until the next output is emitted.
	WaitForOutput(ctx context.Context) (string, error)

	CommitUserMessage(ctx context.Context, msg string, mode ExecutionMode) error
	CommitAssistantMessage(ctx context.Context, msg string) error
	CommitSystemMessage(ctx context.Context, msg string) error
	CommitToolOutput(ctx context.Context, toolID, content string) error
	CommitFlush(ctx context.Context) error
	CommitAgentChange(ctx context.Context) error
	CommitStopTools(ctx context.Context) error

	Dispose(ctx context.Context) error
}

// Swarm tracks the active agent for one client and mediates output waits.
type Swarm interface {
	GetAgent(ctx context.Context) (Agent, error)
	GetAgentName(ctx context.Context) (string, error)
	SetAgentRef(ctx context.Context, name string, agent Agent) error
	SetAgentName(ctx context.Context, name string) error
	// Output synchronously registers a waiter resolved by the next output of
	// whichever agent is active (following changes) or by a cancel.
	Output(ctx context.Context) <-chan string
	WaitForOutput(ctx context.Context) (string, error)
	CancelOutput(ctx context.Context) error
	NavigationPop(ctx context.Context) (string, error)
	Dispose(ctx context.Context) error
}

// OutgoingMessage is the payload pushed to a connected client.
type OutgoingMessage struct {
	Data      string `json:"data"`
	AgentName string `json:"agentName"`
	ClientID  string `json:"clientId"`
}

// SendFn delivers an outgoing message to the connector owner.
type SendFn func(msg OutgoingMessage) error

// ReceiveFn feeds an incoming client message into a connected session.
type ReceiveFn func(ctx context.Context, incoming string) error

// Session is the per-client message gateway. Every entry is serialized with
// a FIFO queue so message order is preserved.
type Session interface {
	Execute(ctx context.Context, msg string, mode ExecutionMode) (string, error)
	Run(ctx context.Context, msg string) (string, error)
	Emit(ctx context.Context, msg string) error
	Connect(ctx context.Context, send SendFn) ReceiveFn

	CommitUserMessage(ctx context.Context, msg string, mode ExecutionMode) error
	CommitAssistantMessage(ctx context.Context, msg string) error
	CommitSystemMessage(ctx context.Context, msg string) error
	CommitToolOutput(ctx context.Context, toolID, content string) error
	CommitFlush(ctx context.Context) error
	CommitStopTools(ctx context.Context) error

	Dispose(ctx context.Context) error
}

// History is a per-(client, agent) append-only message log.
type History interface {
	Push(ctx context.Context, msg Message) error
	// ToArrayForRaw returns the entire log in push order.
	ToArrayForRaw(ctx context.Context) ([]Message, error)
	// ToArrayForAgent returns the prompt/system preamble followed by the
	// filtered projection used for the completion call.
	ToArrayForAgent(ctx context.Context, prompt string, system []string) ([]Message, error)
	Dispose(ctx context.Context) error
}

// StorageItem is one row of a client storage, indexed for similarity search.
type StorageItem struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// Storage is an embedding-backed item store scoped to a client (or shared
// swarm-wide when the schema declares it so).
type Storage interface {
	Take(ctx context.Context, search string, total int) ([]StorageItem, error)
	Upsert(ctx context.Context, item StorageItem) error
	Remove(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (StorageItem, bool, error)
	List(ctx context.Context, filter func(StorageItem) bool) ([]StorageItem, error)
	Clear(ctx context.Context) error
	Dispose(ctx context.Context) error
}

// State is a per-client (or shared) value with serialized mutation dispatch.
type State interface {
	GetState(ctx context.Context) (any, error)
	SetState(ctx context.Context, value any) (any, error)
	Dispose(ctx context.Context) error
}
