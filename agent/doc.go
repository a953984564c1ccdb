// Package agent implements the per-(client, agent) turn engine. One Execute
// call runs one turn: the incoming message is appended to history, the
// completion back-end produces an assistant message, tool calls are
// dispatched sequentially, and exactly one output is published (the model's
// validated reply or a rescued placeholder).
//
// Tool calls are not awaited directly. A tool may itself drive Execute on the
// same client, which would deadlock on the per-client queue, so the
// dispatcher launches the tool body and waits on a race over the terminal
// signals (agent-change, tool-commit, tool-error, tool-stop, rescue) plus a
// watchdog that only warns.
package agent
