// Package agent defines how orchestrated work is delegated to agents:
// the Executor contract, the Anthropic-backed implementation, and the
// persona registry that maps agent ids to system prompts and models.
package agent

import "context"

// Executor runs one unit of agent work. Implementations receive the
// agent id being addressed, the prompt to execute, and a read-only
// snapshot of the caller's state for context injection.
type Executor interface {
	Execute(ctx context.Context, agentID, prompt string, state map[string]string) (string, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, agentID, prompt string, state map[string]string) (string, error)

// Execute calls fn.
func (fn ExecutorFunc) Execute(ctx context.Context, agentID, prompt string, state map[string]string) (string, error) {
	return fn(ctx, agentID, prompt, state)
}
