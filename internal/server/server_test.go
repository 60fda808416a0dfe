package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toefl-tutor-core/server/internal/agent/graph/conversations"
	"github.com/toefl-tutor-core/server/internal/agent/model"
	"github.com/toefl-tutor-core/server/internal/knowledge"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRunner struct {
	reply string
	err   error
	seen  model.QueryInput
}

func (r *stubRunner) Invoke(_ context.Context, in model.QueryInput) (string, error) {
	r.seen = in
	if r.err != nil {
		return "", r.err
	}
	return r.reply, nil
}

type stubStore struct{ entries int }

func (s *stubStore) Ingest(context.Context, []knowledge.Entry) error { return nil }
func (s *stubStore) Query(context.Context, string, int) ([]knowledge.Result, error) {
	return nil, nil
}
func (s *stubStore) Len() int { return s.entries }

type memoryRepo struct {
	msgs map[string][]*model.Message
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

func newTestServer(runner *stubRunner, store *stubStore) *Server {
	repo := &memoryRepo{msgs: map[string][]*model.Message{}}
	sessions := conversations.NewMessagesManager(repo, model.SessionConfig{MaxTurns: 10})
	return New(runner, sessions, store)
}

func TestInteractReturnsReplyAndMintsSessionID(t *testing.T) {
	runner := &stubRunner{reply: "here is an example"}
	router := newTestServer(runner, &stubStore{entries: 1}).Router()

	req := httptest.NewRequest(http.MethodPost, "/v1/interact", strings.NewReader(`{"message":"help me"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "here is an example")
	assert.NotEmpty(t, runner.seen.SessionID)
	assert.Equal(t, "help me", runner.seen.Query)
}

func TestInteractKeepsClientSessionID(t *testing.T) {
	runner := &stubRunner{reply: "ok"}
	router := newTestServer(runner, &stubStore{}).Router()

	req := httptest.NewRequest(http.MethodPost, "/v1/interact",
		strings.NewReader(`{"session_id":"abc-123","message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc-123", runner.seen.SessionID)
	assert.Contains(t, rec.Body.String(), "abc-123")
}

func TestInteractRejectsEmptyMessage(t *testing.T) {
	router := newTestServer(&stubRunner{}, &stubStore{}).Router()

	req := httptest.NewRequest(http.MethodPost, "/v1/interact", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInteractHidesInternalErrors(t *testing.T) {
	runner := &stubRunner{err: fmt.Errorf("node \"retrieve\" blew up with secret detail")}
	router := newTestServer(runner, &stubStore{}).Router()

	req := httptest.NewRequest(http.MethodPost, "/v1/interact", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret detail")
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestHealthReportsStoreReadiness(t *testing.T) {
	router := newTestServer(&stubRunner{}, &stubStore{entries: 0}).Router()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"store_ready":false`)
}

func TestClearSession(t *testing.T) {
	router := newTestServer(&stubRunner{}, &stubStore{}).Router()

	req := httptest.NewRequest(http.MethodDelete, "/v1/sessions/abc-123", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
