package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/toefl-tutor-core/server/internal/agent/model"
	errx "github.com/toefl-tutor-core/server/internal/core/error"
	logx "github.com/toefl-tutor-core/server/pkg/logger"
)

// Engine executes one traversal of a Definition at a time. The walk is
// strictly sequential: one node runs, its outgoing edges are evaluated in
// declared order, and the first applicable edge selects the next node.
// The engine itself is stateless and safe to share across traversals.
type Engine struct {
	maxSteps int
	observer Observer
}

// EngineOption customises engine construction.
type EngineOption func(*Engine)

// WithObserver installs a traversal observer. The default logs via logx.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// NewEngine creates an engine with the given step budget per traversal.
// A non-positive maxSteps falls back to a conservative default.
func NewEngine(maxSteps int, opts ...EngineOption) *Engine {
	if maxSteps <= 0 {
		maxSteps = 25
	}
	e := &Engine{maxSteps: maxSteps, observer: loggingObserver{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run walks the graph from its entry node, threading the state through each
// node. A node's returned state is applied only when the node succeeds, so a
// failed node never leaves the traversal with a partially mutated state.
//
// Run fails with errx.ErrStepLimitExceeded when the step budget is spent,
// with errx.ErrNoApplicableEdge when a node has outgoing edges and none
// apply, and with the context error when cancelled between nodes. Both graph
// errors carry the full node path taken.
func (e *Engine) Run(ctx context.Context, def *Definition, state model.ConversationState) (model.ConversationState, error) {
	if def == nil {
		return state, fmt.Errorf("graph definition is nil")
	}

	current := def.entry
	path := make([]string, 0, e.maxSteps)

	for {
		if len(path) >= e.maxSteps {
			err := fmt.Errorf("%w: %d steps, path %s", errx.ErrStepLimitExceeded, len(path), pathString(path))
			logx.Error().Int("max_steps", e.maxSteps).Str("path", pathString(path)).Msg("Traversal exceeded step budget")
			return state, err
		}
		if err := ctx.Err(); err != nil {
			return state, err
		}

		n := def.nodes[current]
		path = append(path, current)
		e.observer.NodeStart(ctx, current, state)

		next, err := n.fn(ctx, state)
		e.observer.NodeEnd(ctx, current, next, err)
		if err != nil {
			return state, fmt.Errorf("node %q: %w", current, err)
		}
		state = next

		outgoing := def.edges[current]
		if n.terminal || len(outgoing) == 0 {
			return state, nil
		}

		nextNode := ""
		for _, edge := range outgoing {
			if edge.guard == nil || edge.guard(state) {
				nextNode = edge.to
				break
			}
		}
		if nextNode == "" {
			err := fmt.Errorf("%w: node %q, path %s", errx.ErrNoApplicableEdge, current, pathString(path))
			logx.Error().Str("node", current).Str("path", pathString(path)).Msg("No applicable edge; graph definition is broken")
			return state, err
		}
		current = nextNode
	}
}

func pathString(path []string) string {
	return strings.Join(path, " -> ")
}
