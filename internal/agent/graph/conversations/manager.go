package conversations

import (
	"context"

	"github.com/toefl-tutor-core/server/internal/agent/model"
)

// MessagesManager loads session history into traversal state and persists
// the turns produced by a successful traversal.
type MessagesManager struct {
	conversationRepo model.ConversationRepository
	maxTurns         int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.SessionConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		maxTurns:         config.MaxTurns,
	}
}

// LoadState builds the initial conversation state for one traversal from the
// most recent session turns. Only the trailing maxTurns messages are carried
// so long sessions do not grow the traversal context without bound.
func (cm *MessagesManager) LoadState(ctx context.Context, sessionID string) (model.ConversationState, error) {
	history, err := cm.conversationRepo.LoadHistory(ctx, sessionID)
	if err != nil {
		return model.ConversationState{}, err
	}

	recent := trimTail(history.Messages, cm.maxTurns)
	turns := make([]model.Turn, 0, len(recent))
	for _, msg := range recent {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case model.RoleUser, model.RoleAssistant:
			turns = append(turns, model.Turn{Role: msg.Role, Text: msg.Content})
		}
	}

	return model.NewConversationState(turns), nil
}

// SaveExchange persists the user turn and the agent's reply after a
// successful traversal. Nothing is saved for failed traversals, keeping the
// stored history consistent with what the user actually received.
func (cm *MessagesManager) SaveExchange(ctx context.Context, sessionID, userText, reply string) error {
	if err := cm.conversationRepo.AddMessage(ctx, sessionID, model.UserMessage(userText)); err != nil {
		return err
	}
	return cm.conversationRepo.AddMessage(ctx, sessionID, model.AssistantMessage(reply))
}

// ClearSession drops all stored history for a session.
func (cm *MessagesManager) ClearSession(ctx context.Context, sessionID string) error {
	return cm.conversationRepo.ClearHistory(ctx, sessionID)
}

// ====================== Helper function ======================
func trimTail(messages []*model.Message, maxTurns int) []*model.Message {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		result := make([]*model.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-maxTurns:]
	result := make([]*model.Message, len(source))
	copy(result, source)
	return result
}
