package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/internal/util"
)

// toolStatus is the terminal state of one dispatched call. Statuses chain
// sequentially: the loop records the last observed status so later
// iterations (and the final callback) see whether a terminal state already
// occurred.
type toolStatus string

const (
	statusCommit      toolStatus = "commit"
	statusAgentChange toolStatus = "agent-change"
	statusStop        toolStatus = "stop"
	statusRescue      toolStatus = "rescue"
	statusError       toolStatus = "error"
	statusCancelled   toolStatus = "cancelled"
)

// dispatchToolCalls persists the assistant message and runs its calls
// sequentially by index. Dispatch of a call ends when one of the terminal
// signals fires; the tool body itself is never awaited.
func (c *Client) dispatchToolCalls(ctx context.Context, mode core.ExecutionMode, msg core.Message) error {
	calls := make([]core.ToolCall, len(msg.ToolCalls))
	for i, call := range msg.ToolCalls {
		calls[i] = call.Normalize()
	}
	msg.ToolCalls = calls

	// History keeps the untruncated assistant message.
	if err := c.history.Push(ctx, msg); err != nil {
		return err
	}

	dispatch := calls
	if c.schema.MaxToolCalls > 0 && len(dispatch) > c.schema.MaxToolCalls {
		c.logger.Info("truncating tool call batch",
			"agent_name", c.schema.AgentName,
			"produced", len(dispatch),
			"max_tool_calls", c.schema.MaxToolCalls,
		)
		dispatch = dispatch[:c.schema.MaxToolCalls]
	}

	lastStatus := statusCommit
	for i, call := range dispatch {
		tool, ok := c.tools[call.Function.Name]
		if !ok {
			c.logger.Warn("tool call targets unknown function", "function", call.Function.Name)
			return c.emitRescuedOutput(ctx, mode, "no target function")
		}

		dto := core.ToolDTO{
			ToolID:    call.ID,
			ClientID:  c.clientID,
			AgentName: c.schema.AgentName,
			Params:    call.Function.Arguments,
			ToolCalls: dispatch,
			IsLast:    i == len(dispatch)-1,
		}

		ok, err := c.validateToolCall(ctx, tool, dto)
		if cb := tool.Callbacks.OnValidate; cb != nil {
			cb(ctx, dto, ok && err == nil)
		}
		if err != nil || !ok {
			if err != nil {
				c.logger.Warn("tool validation errored", "function", call.Function.Name, "error", err)
			}
			return c.emitRescuedOutput(ctx, mode, "validation failed")
		}

		if cb := tool.Callbacks.OnBeforeCall; cb != nil {
			cb(ctx, dto)
		}
		c.emitBus(ctx, "tool-call", map[string]any{"function": call.Function.Name, "tool_call_id": call.ID}, nil)

		// Register the waiters before launching so a fast tool cannot fire a
		// signal into the void.
		agentChange := c.agentChange.Next()
		toolCommit := c.toolCommit.Next()
		toolError := c.toolError.Next()
		toolStop := c.toolStop.Next()
		rescue := c.rescue.Next()

		go c.runTool(ctx, tool, dto)

		status, err := c.awaitToolSignal(ctx, call, agentChange, toolCommit, toolError, toolStop, rescue)
		if err != nil {
			return err
		}
		lastStatus = status

		if cb := tool.Callbacks.OnAfterCall; cb != nil {
			cb(ctx, dto)
		}

		switch status {
		case statusCommit:
			continue
		case statusError:
			return c.emitRescuedOutput(ctx, mode, "function call failed")
		default: // agent-change, stop, rescue
			c.afterToolCalls(ctx, dispatch, lastStatus)
			return nil
		}
	}

	c.afterToolCalls(ctx, dispatch, lastStatus)
	return nil
}

// validateToolCall prefers the tool's own hook and falls back to JSON-schema
// validation of the arguments against the declared parameters.
func (c *Client) validateToolCall(ctx context.Context, tool toolSchema, dto core.ToolDTO) (bool, error) {
	if tool.Validate != nil {
		return tool.Validate(ctx, dto)
	}
	if err := util.ValidateParams(dto.Params, tool.Function.Parameters); err != nil {
		c.logger.Debug("tool params rejected", "function", tool.Function.Name, "error", err)
		return false, nil
	}
	return true, nil
}

// runTool executes the tool body. Failures (including panics) surface as the
// tool-error signal, never as a crash of the dispatcher.
func (c *Client) runTool(ctx context.Context, tool toolSchema, dto core.ToolDTO) {
	start := time.Now()
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("tool panicked: %v", r)
			}
		}()
		err = tool.Call(ctx, dto)
	}()

	c.logger.LogToolCall(tool.Function.Name, dto.ToolID, time.Since(start), err == nil, err)
	if err != nil {
		if cb := tool.Callbacks.OnCallError; cb != nil {
			cb(ctx, dto, err)
		}
		c.toolError.Emit(err.Error())
	}
}

// awaitToolSignal races the five terminal signals. The watchdog only warns:
// the tool keeps running and the dispatcher keeps waiting.
func (c *Client) awaitToolSignal(
	ctx context.Context,
	call core.ToolCall,
	agentChange, toolCommit, toolError, toolStop, rescue <-chan string,
) (toolStatus, error) {
	timer := time.NewTimer(c.watchdog)
	defer timer.Stop()
	watchdog := timer.C

	for {
		select {
		case <-toolCommit:
			return statusCommit, nil
		case <-agentChange:
			return statusAgentChange, nil
		case <-toolStop:
			return statusStop, nil
		case <-rescue:
			return statusRescue, nil
		case <-toolError:
			return statusError, nil
		case <-watchdog:
			c.logger.Warn("tool call produced no signal within watchdog window",
				"function", call.Function.Name,
				"tool_call_id", call.ID,
				"watchdog", c.watchdog.String(),
			)
			watchdog = nil
		case <-ctx.Done():
			return statusCancelled, ctx.Err()
		}
	}
}

func (c *Client) afterToolCalls(ctx context.Context, calls []core.ToolCall, last toolStatus) {
	if cb := c.schema.Callbacks.OnAfterToolCalls; cb != nil {
		cb(ctx, c.clientID, c.schema.AgentName, calls)
	}
	c.emitBus(ctx, "after-tool-calls", map[string]any{"count": len(calls), "last_status": string(last)}, nil)
}
