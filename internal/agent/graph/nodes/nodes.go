package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/toefl-tutor-core/server/internal/agent/graph/prompts"
	"github.com/toefl-tutor-core/server/internal/agent/model"
	errx "github.com/toefl-tutor-core/server/internal/core/error"
	"github.com/toefl-tutor-core/server/internal/knowledge"
	logx "github.com/toefl-tutor-core/server/pkg/logger"
)

// Node names used by the tutor graph.
const (
	NodeIntake   = "intake"
	NodeRetrieve = "retrieve"
	NodeRespond  = "respond"
	NodeFallback = "fallback"
)

// Scratch keys. Each key is written by exactly one node.
const (
	// ScratchUserInput carries the current user utterance into the traversal.
	// Written by the runner before the traversal starts, read by intake.
	ScratchUserInput = "user_input"
	// ScratchRetrieved holds the []knowledge.Result produced by retrieve.
	ScratchRetrieved = "retrieved"
)

// NewIntakeNode appends the current user utterance to the turn history.
func NewIntakeNode() func(context.Context, model.ConversationState) (model.ConversationState, error) {
	return func(ctx context.Context, state model.ConversationState) (model.ConversationState, error) {
		input, ok := state.ScratchString(ScratchUserInput)
		if !ok || input == "" {
			return state, fmt.Errorf("%w: missing user input", errx.ErrInvalidArgument)
		}
		return state.WithTurn(model.RoleUser, input), nil
	}
}

// NewRetrievalNode queries the embedding store for examples matching the
// user's last utterance and stores the results in scratch. A store that has
// not been ingested yet degrades to an empty result set so the graph can
// route to the fallback reply instead of failing the whole traversal.
func NewRetrievalNode(store knowledge.Store, topK int) func(context.Context, model.ConversationState) (model.ConversationState, error) {
	return func(ctx context.Context, state model.ConversationState) (model.ConversationState, error) {
		query := state.LastUserText()
		if query == "" {
			return state.WithScratch(ScratchRetrieved, []knowledge.Result{}), nil
		}

		results, err := store.Query(ctx, query, topK)
		if err != nil {
			if errors.Is(err, errx.ErrStoreUnavailable) {
				logx.Warn().Msg("Embedding store not ingested yet; answering without retrieved examples")
				return state.WithScratch(ScratchRetrieved, []knowledge.Result{}), nil
			}
			return state, fmt.Errorf("retrieve examples: %w", err)
		}

		logx.Debug().Int("results", len(results)).Msg("Retrieved examples for query")
		return state.WithScratch(ScratchRetrieved, results), nil
	}
}

// HasRetrievedExamples guards the respond branch: true when retrieval put at
// least one example into scratch.
func HasRetrievedExamples(state model.ConversationState) bool {
	return len(RetrievedExamples(state)) > 0
}

// RetrievedExamples reads the retrieval results out of scratch.
func RetrievedExamples(state model.ConversationState) []knowledge.Result {
	v, ok := state.Scratch[ScratchRetrieved]
	if !ok {
		return nil
	}
	results, _ := v.([]knowledge.Result)
	return results
}

// NewRespondNode composes the retrieval-augmented reply and finishes the
// traversal.
func NewRespondNode(promptCfg *model.TutorPromptConfig) func(context.Context, model.ConversationState) (model.ConversationState, error) {
	return func(ctx context.Context, state model.ConversationState) (model.ConversationState, error) {
		reply, err := prompts.RenderTutorResponse(promptCfg, state.LastUserText(), RetrievedExamples(state))
		if err != nil {
			return state, err
		}
		return state.WithTurn(model.RoleAssistant, reply).WithResponse(reply).WithTerminal(), nil
	}
}

// NewFallbackNode answers when no stored example matched the question.
func NewFallbackNode(promptCfg *model.TutorPromptConfig) func(context.Context, model.ConversationState) (model.ConversationState, error) {
	return func(ctx context.Context, state model.ConversationState) (model.ConversationState, error) {
		reply := prompts.RenderFallback(promptCfg)
		return state.WithTurn(model.RoleAssistant, reply).WithResponse(reply).WithTerminal(), nil
	}
}
