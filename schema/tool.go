package schema

import (
	"context"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/internal/util"
)

// ToolCallbacks are optional hooks around tool dispatch. Every field may be
// nil.
type ToolCallbacks struct {
	OnBeforeCall func(ctx context.Context, dto core.ToolDTO)
	OnAfterCall  func(ctx context.Context, dto core.ToolDTO)
	OnValidate   func(ctx context.Context, dto core.ToolDTO, ok bool)
	OnCallError  func(ctx context.Context, dto core.ToolDTO, err error)
}

// Tool describes a callable capability exposed to the model.
//
// Call runs the tool body. The dispatcher does not await it directly: the
// body is expected to finish its work by committing a tool output (or
// changing the active agent, or stopping the chain) through the facade, which
// is what releases the turn to the next call. A returned error surfaces as a
// tool-error signal and triggers the rescue path.
type Tool struct {
	// ToolName is the unique registry key.
	ToolName string
	// Function is the wire view sent to the completion back-end.
	Function core.FunctionSpec
	// Call executes the tool.
	Call func(ctx context.Context, dto core.ToolDTO) error
	// Validate gates dispatch. Nil falls back to JSON-schema validation of
	// dto.Params against Function.Parameters.
	Validate func(ctx context.Context, dto core.ToolDTO) (bool, error)

	Callbacks ToolCallbacks
}

// FunctionSpecFromStruct derives a tool's wire view from a Go argument
// struct instead of a hand-written schema map. Field names follow the json
// tag; `description` and `enum` tags flow into the schema.
//
// Example:
//
//	type navigateArgs struct {
//		To string `json:"to" enum:"sales,refund" description:"Target agent name"`
//	}
//
//	spec := schema.FunctionSpecFromStruct(
//		"navigate",
//		"Transfer the conversation to another agent",
//		navigateArgs{},
//	)
func FunctionSpecFromStruct(name, description string, structType any) core.FunctionSpec {
	return core.FunctionSpec{
		Name:        name,
		Description: description,
		Parameters:  util.CreateSchema(structType),
	}
}
