package agent

import (
	"context"
	"math/rand"

	"github.com/hupe1980/agentswarm/core"
)

// RescueStrategy selects how the engine recovers from invalid model output.
type RescueStrategy string

const (
	// RescueFlush appends a resque marker plus a synthetic user prompt and
	// answers with a placeholder.
	RescueFlush RescueStrategy = "flush"
	// RescueRecomplete appends a resque marker plus a synthetic user prompt
	// and asks the model again with the augmented history.
	RescueRecomplete RescueStrategy = "recomplete"
	// RescueCustom delegates to a configured callback that produces the
	// replacement message.
	RescueCustom RescueStrategy = "custom"
)

// DefaultFlushPrompt is the synthetic user prompt appended by the flush
// strategy.
const DefaultFlushPrompt = "Start the conversation over. Ignore the previous tool output."

// DefaultRecompletePrompt is the synthetic user prompt appended by the
// recomplete strategy.
const DefaultRecompletePrompt = "Please repeat your answer using plain text only."

// DefaultPlaceholders answer for the flush strategy when no placeholder list
// is configured.
var DefaultPlaceholders = []string{
	"Sorry, I missed that. Could you say it again?",
	"I lost the thread there. Can you repeat that, please?",
	"Something went sideways on my end. One more time?",
}

// RescueOptions configures the rescue path of a Client.
type RescueOptions struct {
	Strategy         RescueStrategy
	FlushPrompt      string
	RecompletePrompt string
	// Custom produces the replacement message for RescueCustom.
	Custom func(ctx context.Context, clientID, agentName string) (core.Message, error)
	// Placeholders is the pool the flush strategy draws from.
	Placeholders []string
}

func defaultRescueOptions() RescueOptions {
	return RescueOptions{
		Strategy:         RescueFlush,
		FlushPrompt:      DefaultFlushPrompt,
		RecompletePrompt: DefaultRecompletePrompt,
		Placeholders:     DefaultPlaceholders,
	}
}

func (o RescueOptions) placeholder() string {
	pool := o.Placeholders
	if len(pool) == 0 {
		pool = DefaultPlaceholders
	}
	return pool[rand.Intn(len(pool))]
}
