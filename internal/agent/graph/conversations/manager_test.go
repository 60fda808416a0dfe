package conversations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toefl-tutor-core/server/internal/agent/model"
)

type memoryRepo struct {
	msgs map[string][]*model.Message
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{msgs: map[string][]*model.Message{}}
}

func (r *memoryRepo) AddMessage(_ context.Context, id string, m *model.Message) error {
	r.msgs[id] = append(r.msgs[id], m)
	return nil
}
func (r *memoryRepo) LoadHistory(_ context.Context, id string) (*model.ConversationHistory, error) {
	return &model.ConversationHistory{SessionID: id, Messages: r.msgs[id]}, nil
}
func (r *memoryRepo) ClearHistory(_ context.Context, id string) error {
	delete(r.msgs, id)
	return nil
}
func (r *memoryRepo) GetMessageCount(_ context.Context, id string) (int, error) {
	return len(r.msgs[id]), nil
}

func TestLoadStateCarriesRecentTurns(t *testing.T) {
	repo := newMemoryRepo()
	mm := NewMessagesManager(repo, model.SessionConfig{MaxTurns: 10})

	require.NoError(t, mm.SaveExchange(context.Background(), "s1", "question one", "answer one"))

	state, err := mm.LoadState(context.Background(), "s1")

	require.NoError(t, err)
	require.Len(t, state.Turns, 2)
	assert.Equal(t, model.RoleUser, state.Turns[0].Role)
	assert.Equal(t, "question one", state.Turns[0].Text)
	assert.Equal(t, model.RoleAssistant, state.Turns[1].Role)
}

func TestLoadStateTrimsToMaxTurns(t *testing.T) {
	repo := newMemoryRepo()
	mm := NewMessagesManager(repo, model.SessionConfig{MaxTurns: 2})

	require.NoError(t, mm.SaveExchange(context.Background(), "s1", "old question", "old answer"))
	require.NoError(t, mm.SaveExchange(context.Background(), "s1", "new question", "new answer"))

	state, err := mm.LoadState(context.Background(), "s1")

	require.NoError(t, err)
	require.Len(t, state.Turns, 2)
	assert.Equal(t, "new question", state.Turns[0].Text)
	assert.Equal(t, "new answer", state.Turns[1].Text)
}

func TestLoadStateSkipsEmptyAndSystemMessages(t *testing.T) {
	repo := newMemoryRepo()
	require.NoError(t, repo.AddMessage(context.Background(), "s1", &model.Message{Role: model.RoleSystem, Content: "prelude"}))
	require.NoError(t, repo.AddMessage(context.Background(), "s1", &model.Message{Role: model.RoleUser, Content: ""}))
	require.NoError(t, repo.AddMessage(context.Background(), "s1", &model.Message{Role: model.RoleUser, Content: "real question"}))

	mm := NewMessagesManager(repo, model.SessionConfig{MaxTurns: 10})
	state, err := mm.LoadState(context.Background(), "s1")

	require.NoError(t, err)
	require.Len(t, state.Turns, 1)
	assert.Equal(t, "real question", state.Turns[0].Text)
}

func TestClearSession(t *testing.T) {
	repo := newMemoryRepo()
	mm := NewMessagesManager(repo, model.SessionConfig{MaxTurns: 10})

	require.NoError(t, mm.SaveExchange(context.Background(), "s1", "q", "a"))
	require.NoError(t, mm.ClearSession(context.Background(), "s1"))

	count, err := repo.GetMessageCount(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
