package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toefl-tutor-core/server/internal/agent/graph/conversations"
	"github.com/toefl-tutor-core/server/internal/agent/model"
	errx "github.com/toefl-tutor-core/server/internal/core/error"
	"github.com/toefl-tutor-core/server/internal/knowledge"
)

// memoryRepo is an in-memory model.ConversationRepository for tests.
type memoryRepo struct {
	msgs map[string][]*model.Message
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{msgs: map[string][]*model.Message{}}
}

func (r *memoryRepo) AddMessage(_ context.Context, sessionID string, m *model.Message) error {
	r.msgs[sessionID] = append(r.msgs[sessionID], m)
	return nil
}

func (r *memoryRepo) LoadHistory(_ context.Context, sessionID string) (*model.ConversationHistory, error) {
	return &model.ConversationHistory{SessionID: sessionID, Messages: r.msgs[sessionID]}, nil
}

func (r *memoryRepo) ClearHistory(_ context.Context, sessionID string) error {
	delete(r.msgs, sessionID)
	return nil
}

func (r *memoryRepo) GetMessageCount(_ context.Context, sessionID string) (int, error) {
	return len(r.msgs[sessionID]), nil
}

// stubStore returns canned retrieval results.
type stubStore struct {
	results []knowledge.Result
	err     error
}

func (s *stubStore) Ingest(context.Context, []knowledge.Entry) error { return nil }

func (s *stubStore) Query(context.Context, string, int) ([]knowledge.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func (s *stubStore) Len() int { return len(s.results) }

func testConfig(store knowledge.Store, repo model.ConversationRepository) Config {
	return Config{
		Store:     store,
		Sessions:  conversations.NewMessagesManager(repo, model.SessionConfig{MaxTurns: 10}),
		Engine:    model.EngineConfig{MaxSteps: 25},
		Retrieval: model.RetrievalConfig{TopK: 3},
		Prompt:    model.TutorPromptConfig{TutorName: "Rox", Subject: "TOEFL speaking"},
	}
}

func TestInvokeRepliesWithRetrievedExample(t *testing.T) {
	repo := newMemoryRepo()
	store := &stubStore{results: []knowledge.Result{
		{Entry: knowledge.Entry{SourceID: "row_0", Text: "Describe a city you enjoy visiting."}, Score: 0.92},
	}}

	runner, err := BuildTutorGraph(testConfig(store, repo))
	require.NoError(t, err)

	reply, err := runner.Invoke(context.Background(), model.QueryInput{
		SessionID: "s1",
		Query:     "how do I answer a speaking question about cities?",
	})

	require.NoError(t, err)
	assert.Contains(t, reply, "Describe a city you enjoy visiting.")

	// Both the user turn and the reply were persisted.
	count, err := repo.GetMessageCount(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestInvokeFallsBackWhenStoreNotIngested(t *testing.T) {
	repo := newMemoryRepo()
	store := &stubStore{err: errx.ErrStoreUnavailable}

	runner, err := BuildTutorGraph(testConfig(store, repo))
	require.NoError(t, err)

	reply, err := runner.Invoke(context.Background(), model.QueryInput{
		SessionID: "s1",
		Query:     "help me practice",
	})

	require.NoError(t, err)
	assert.Contains(t, reply, "rephrase")
}

func TestInvokeAccumulatesSessionHistory(t *testing.T) {
	repo := newMemoryRepo()
	store := &stubStore{results: []knowledge.Result{
		{Entry: knowledge.Entry{SourceID: "row_0", Text: "example"}, Score: 0.8},
	}}

	runner, err := BuildTutorGraph(testConfig(store, repo))
	require.NoError(t, err)

	for _, q := range []string{"first question", "second question"} {
		_, err := runner.Invoke(context.Background(), model.QueryInput{SessionID: "s1", Query: q})
		require.NoError(t, err)
	}

	count, err := repo.GetMessageCount(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestBuildTutorGraphValidatesDependencies(t *testing.T) {
	repo := newMemoryRepo()

	_, err := BuildTutorGraph(Config{Sessions: conversations.NewMessagesManager(repo, model.SessionConfig{})})
	assert.Error(t, err)

	_, err = BuildTutorGraph(Config{Store: &stubStore{}})
	assert.Error(t, err)
}
