package agent

import "fmt"

// FatalError escapes a turn when the rescue path itself produced output that
// failed validation. It is observable by the caller of the session entry
// that started the turn.
type FatalError struct {
	ClientID   string
	AgentName  string
	Validation string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf(
		"agent %q output unrecoverable for client %q: %s",
		e.AgentName, e.ClientID, e.Validation,
	)
}
