package conversation_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yongyiq/Persona/internal/config"
	"github.com/yongyiq/Persona/internal/model/chat"
	"github.com/yongyiq/Persona/internal/model/persona"
	"github.com/yongyiq/Persona/internal/service/ai"
	"github.com/yongyiq/Persona/internal/service/backend"
	handler "github.com/yongyiq/Persona/internal/handler/conversation"
	conversationService "github.com/yongyiq/Persona/internal/service/conversation"
)

type stubCompletion struct {
	body string
}

func (s *stubCompletion) StreamChat(ctx context.Context, req ai.ChatRequest) (*ai.DeltaStream, error) {
	return ai.NewDeltaStream(io.NopCloser(strings.NewReader(s.body))), nil
}

func (s *stubCompletion) Complete(ctx context.Context, req ai.ChatRequest) (string, error) {
	return "", nil
}

type stubStore struct{}

func (stubStore) Persona(ctx context.Context, id string) (persona.Persona, error) {
	return persona.Persona{ID: id, Name: "林語"}, nil
}
func (stubStore) History(ctx context.Context, key chat.ConversationKey) ([]chat.Message, error) {
	return nil, nil
}
func (stubStore) GenerateImage(ctx context.Context, m chat.Message) (chat.Message, error) {
	return chat.Message{}, nil
}
func (stubStore) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	return "", nil
}

type stubSyncer struct{}

func (stubSyncer) Enqueue(m chat.Message) {}

func newTestRouter(t *testing.T) (chi.Router, *conversationService.Service) {
	t.Helper()

	engine := conversationService.New(conversationService.Deps{
		Completion:     &stubCompletion{body: "data: {\"choices\":[{\"delta\":{\"content\":\"你好\"}}]}\n\ndata: [DONE]\n\n"},
		Store:          stubStore{},
		Sync:           stubSyncer{},
		Prompt:         ai.NewBuilder("qwen-plus", "qwen-vl-max"),
		UserID:         1,
		StreamResponse: true,
	})

	backendClient := backend.NewClient(config.BackendConfig{BaseURL: "http://127.0.0.1:1", Timeout: 1})

	r := chi.NewRouter()
	handler.New(engine, backendClient, 1).RegisterRoutes(r)
	return r, engine
}

func TestOpenThenSnapshot(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/conversations/3/open", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "林語")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/3", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSnapshotWithoutOpenReturnsNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/3", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitAcceptsAndRunsTurn(t *testing.T) {
	r, engine := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/conversations/3/open", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/conversations/3/messages", strings.NewReader(`{"input":"你好"}`))
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		snap, err := engine.Snapshot("3")
		return err == nil && len(snap.Messages) == 2 && !snap.TurnInFlight
	}, 2*time.Second, 10*time.Millisecond)

	snap, err := engine.Snapshot("3")
	require.NoError(t, err)
	assert.Equal(t, "你好", snap.Messages[1].Text)
}

func TestSubmitRejectsEmptyInput(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/conversations/3/open", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/conversations/3/messages", strings.NewReader(`{"input":""}`))
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCloseRemovesConversation(t *testing.T) {
	r, engine := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/conversations/3/open", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/conversations/3", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err := engine.Snapshot("3")
	assert.ErrorIs(t, err, conversationService.ErrNotOpen)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/conversations/3", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
