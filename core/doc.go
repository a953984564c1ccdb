// Package core defines the shared vocabulary of the swarm runtime: messages
// and tool calls exchanged with completion back-ends, bus events, ambient
// method / execution scopes, the single-slot Signal used for intra-turn
// coordination, the per-client FIFO queue and the contracts (Agent, Swarm,
// Session, History, ...) wired together by the connection layer.
//
// The package has no dependencies on the rest of the module so every other
// package can import it freely.
package core
