package graph

import (
	"context"

	"github.com/toefl-tutor-core/server/internal/agent/model"
	logx "github.com/toefl-tutor-core/server/pkg/logger"
)

// Observer receives traversal lifecycle events, one callback pair per node
// execution. Observers must not retain or mutate the states they receive.
type Observer interface {
	NodeStart(ctx context.Context, node string, state model.ConversationState)
	NodeEnd(ctx context.Context, node string, state model.ConversationState, err error)
}

type loggingObserver struct{}

func (loggingObserver) NodeStart(_ context.Context, node string, state model.ConversationState) {
	logx.Debug().
		Str("node", node).
		Int("turns", len(state.Turns)).
		Msg("Node start")
}

func (loggingObserver) NodeEnd(_ context.Context, node string, state model.ConversationState, err error) {
	if err != nil {
		logx.Error().Err(err).Str("node", node).Msg("Node failed")
		return
	}
	logx.Debug().
		Str("node", node).
		Bool("terminal", state.Terminal).
		Bool("has_response", state.Response != "").
		Msg("Node end")
}
