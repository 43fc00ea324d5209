package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/calref/maestro/internal/agent"
	"github.com/calref/maestro/internal/store"
	"github.com/calref/maestro/pkg/models"
)

// defaultMaxSteps bounds a single run so loop-back edges with a buggy
// exit condition fail instead of spinning forever.
const defaultMaxSteps = 100

// Engine drives workflow runs. One Execute call is single-threaded: it
// drives one workflow instance to completion, pause, or failure.
// Parallel fan-out across instances is the caller's concern.
type Engine struct {
	executor agent.Executor
	db       *store.DB

	// nodeTimeout bounds each action node's agent call. Zero means no
	// per-node bound beyond the caller's context.
	nodeTimeout time.Duration
	maxSteps    int
	debugLog    func(format string, args ...any)
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore enables durable checkpoints against the shared database.
func WithStore(db *store.DB) Option {
	return func(e *Engine) { e.db = db }
}

// WithNodeTimeout bounds each action node's agent call.
func WithNodeTimeout(d time.Duration) Option {
	return func(e *Engine) { e.nodeTimeout = d }
}

// WithMaxSteps overrides the per-run node execution bound.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithDebugLog sets the debug logging function.
func WithDebugLog(fn func(format string, args ...any)) Option {
	return func(e *Engine) {
		if fn != nil {
			e.debugLog = fn
		}
	}
}

// NewEngine creates an engine delegating action nodes to the executor.
func NewEngine(executor agent.Executor, opts ...Option) *Engine {
	e := &Engine{
		executor: executor,
		maxSteps: defaultMaxSteps,
		debugLog: func(format string, args ...any) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs a workflow from its entry node until it completes,
// pauses, or fails. The input is stored under the "input" state key and
// piped into the first action node. An externally-signaled abort via
// ctx is a failure transition, never undefined behavior.
func (e *Engine) Execute(ctx context.Context, wf *Workflow, input string) (string, error) {
	if wf == nil {
		return "", fmt.Errorf("%w: workflow is required", ErrInvalidInput)
	}
	if wf.Status.Terminal() {
		return "", fmt.Errorf("%w: workflow is %s", ErrInvalidInput, wf.Status)
	}
	if wf.entryID == "" {
		wf.Status = models.RunFailed
		return "", fmt.Errorf("%w: workflow has no entry node", ErrInvalidInput)
	}

	wf.Status = models.RunRunning
	wf.CurrentID = wf.entryID
	if input != "" {
		wf.SetState("input", input)
	}

	e.debugLog("[engine] executing workflow %q from node %q", wf.Name, wf.entryID)
	return e.run(ctx, wf, wf.entryID, input, false)
}

// Resume continues a paused workflow from its current node, supplying
// the external input the pausing node was waiting for.
func (e *Engine) Resume(ctx context.Context, wf *Workflow, input string) (string, error) {
	if wf == nil {
		return "", fmt.Errorf("%w: workflow is required", ErrInvalidInput)
	}
	if wf.Status != models.RunPaused {
		return "", fmt.Errorf("%w: workflow is %s, not paused", ErrInvalidInput, wf.Status)
	}
	if wf.CurrentID == "" {
		return "", fmt.Errorf("%w: paused workflow has no position", ErrInvalidInput)
	}

	wf.Status = models.RunRunning
	if input != "" {
		wf.SetState("input", input)
	}

	e.debugLog("[engine] resuming workflow %q at node %q", wf.Name, wf.CurrentID)
	return e.run(ctx, wf, wf.CurrentID, input, true)
}

// run is the main traversal loop. skipPause suppresses the pause on the
// first node, which is how a resumed input node gets past itself.
func (e *Engine) run(ctx context.Context, wf *Workflow, startID, input string, skipPause bool) (string, error) {
	currentID := startID
	steps := 0

	for {
		if err := ctx.Err(); err != nil {
			wf.Status = models.RunFailed
			return "", fmt.Errorf("workflow aborted: %w", err)
		}
		steps++
		if steps > e.maxSteps {
			wf.Status = models.RunFailed
			return "", fmt.Errorf("workflow exceeded %d steps", e.maxSteps)
		}

		node, err := wf.Node(currentID)
		if err != nil {
			wf.Status = models.RunFailed
			return "", err
		}
		wf.CurrentID = node.ID

		output, execErr := e.executeNode(ctx, wf, node, input, skipPause)
		skipPause = false

		if execErr != nil {
			if node.FallbackID != "" {
				e.debugLog("[engine] node %q failed, taking fallback %q: %v", node.ID, node.FallbackID, execErr)
				currentID = node.FallbackID
				continue
			}
			wf.Status = models.RunFailed
			return "", fmt.Errorf("node %q: %w", node.ID, execErr)
		}

		if wf.Status == models.RunPaused {
			e.debugLog("[engine] workflow %q paused at node %q", wf.Name, node.ID)
			return output, nil
		}

		if output != "" {
			input = output
		}

		// A parallel node repositions the run at its converge node;
		// route from wherever the run actually sits now.
		if wf.CurrentID != node.ID {
			node, err = wf.Node(wf.CurrentID)
			if err != nil {
				wf.Status = models.RunFailed
				return "", err
			}
		}

		// A node with no outgoing edges is terminal.
		if len(node.Edges) == 0 {
			wf.Status = models.RunCompleted
			if final, ok := wf.GetState("output"); ok {
				return final, nil
			}
			return input, nil
		}

		nextID, ok := e.selectEdge(wf, node)
		if !ok {
			if node.FallbackID != "" {
				e.debugLog("[engine] node %q routed nowhere, taking fallback %q", node.ID, node.FallbackID)
				currentID = node.FallbackID
				continue
			}
			wf.Status = models.RunFailed
			return "", fmt.Errorf("node %q: %w", node.ID, ErrNoRoute)
		}
		currentID = nextID
	}
}

// selectEdge picks the first outgoing edge whose condition holds.
// Unconditional edges always match, so an unconditional edge ordered
// last acts as the else branch.
func (e *Engine) selectEdge(wf *Workflow, node *Node) (string, bool) {
	for _, edge := range node.Edges {
		if edge.cond == nil || edge.cond.Eval(wf.GetState) {
			e.debugLog("[engine] node %q -> %q (condition %q)", node.ID, edge.To, edge.Condition)
			return edge.To, true
		}
	}
	return "", false
}

func (e *Engine) executeNode(ctx context.Context, wf *Workflow, node *Node, input string, skipPause bool) (string, error) {
	switch node.Kind {
	case models.NodeAction:
		return e.executeAction(ctx, wf, node, input)

	case models.NodeDecision:
		// Decision nodes evaluate nothing themselves; routing happens
		// on their outgoing edges.
		return "", nil

	case models.NodeInput:
		if skipPause {
			return input, nil
		}
		wf.Status = models.RunPaused
		return "", nil

	case models.NodeParallel:
		return e.executeParallel(ctx, wf, node, input)

	case models.NodeConverge:
		// A converge node reached directly acts like an action when it
		// has an agent, else passes through.
		if node.AgentID != "" {
			return e.executeAction(ctx, wf, node, input)
		}
		return input, nil

	default:
		return "", fmt.Errorf("%w: unknown node kind %q", ErrInvalidInput, node.Kind)
	}
}

func (e *Engine) executeAction(ctx context.Context, wf *Workflow, node *Node, input string) (string, error) {
	if node.AgentID == "" {
		return "", fmt.Errorf("%w: action node %q has no agent assigned", ErrInvalidInput, node.ID)
	}
	if e.executor == nil {
		return "", fmt.Errorf("%w: engine has no executor", ErrInvalidInput)
	}

	prompt := node.Prompt
	if prompt == "" {
		prompt = "Execute task"
	}
	if input != "" {
		prompt = fmt.Sprintf("%s\n\nInput: %s", prompt, input)
	}

	callCtx := ctx
	if e.nodeTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.nodeTimeout)
		defer cancel()
	}

	output, err := e.executor.Execute(callCtx, node.AgentID, prompt, wf.StateSnapshot())
	if err != nil {
		return "", fmt.Errorf("agent %q: %w", node.AgentID, err)
	}

	wf.SetState(fmt.Sprintf("node_%s_result", node.ID), output)
	return output, nil
}

// executeParallel walks each outgoing branch sequentially until the
// branch reaches a converge node, collecting every branch's output into
// run state, then positions the run at the converge node. True
// concurrency is achieved by fanning out workflow instances, not inside
// one engine call.
func (e *Engine) executeParallel(ctx context.Context, wf *Workflow, node *Node, input string) (string, error) {
	if len(node.Edges) == 0 {
		return "", fmt.Errorf("parallel node %q has no branches", node.ID)
	}

	convergeID := ""
	for _, edge := range node.Edges {
		branchOut, reached, err := e.runBranch(ctx, wf, edge.To, input)
		if err != nil {
			return "", fmt.Errorf("branch %q: %w", edge.To, err)
		}
		if convergeID == "" {
			convergeID = reached
		} else if reached != convergeID {
			return "", fmt.Errorf("parallel node %q: branches converge at different nodes (%q vs %q)", node.ID, convergeID, reached)
		}
		wf.SetState(fmt.Sprintf("branch_%s_result", edge.To), branchOut)
	}

	converge, err := wf.Node(convergeID)
	if err != nil {
		return "", err
	}
	wf.CurrentID = converge.ID

	// All branch results are in state; run the converge body once. The
	// outer loop keeps routing from wf.CurrentID, so the run continues
	// along the converge node's edges.
	out, err := e.executeNode(ctx, wf, converge, input, false)
	if err != nil {
		return "", fmt.Errorf("converge node %q: %w", converge.ID, err)
	}
	return out, nil
}

// runBranch executes nodes along one parallel branch until it reaches a
// converge node, returning the branch output and the converge node id.
func (e *Engine) runBranch(ctx context.Context, wf *Workflow, startID, input string) (string, string, error) {
	currentID := startID
	for steps := 0; steps < e.maxSteps; steps++ {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}

		node, err := wf.Node(currentID)
		if err != nil {
			return "", "", err
		}
		if node.Kind == models.NodeConverge {
			return input, node.ID, nil
		}

		output, err := e.executeNode(ctx, wf, node, input, false)
		if err != nil {
			return "", "", err
		}
		if output != "" {
			input = output
		}

		nextID, ok := e.selectEdge(wf, node)
		if !ok {
			return "", "", fmt.Errorf("node %q: %w", node.ID, ErrNoRoute)
		}
		currentID = nextID
	}
	return "", "", fmt.Errorf("branch from %q never reached a converge node", startID)
}
