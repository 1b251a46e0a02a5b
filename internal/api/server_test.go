package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellora/coach/internal/chat"
	"github.com/wellora/coach/internal/history"
	"github.com/wellora/coach/internal/memory"
	"github.com/wellora/coach/internal/profile"
	"github.com/wellora/coach/internal/protocol"
	"github.com/wellora/coach/internal/testutil"
)

// memHistory is an in-memory chat.HistoryStore for handler tests.
type memHistory struct {
	mu       sync.Mutex
	messages []*history.Message
	typing   map[string]bool
}

func newMemHistory() *memHistory {
	return &memHistory{typing: make(map[string]bool)}
}

func (f *memHistory) Append(_ context.Context, conversationID, role, content string, tokenCount int, metadata map[string]string) (*history.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := &history.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		TokenCount:     tokenCount,
		Metadata:       metadata,
		CreatedAt:      time.Now(),
	}
	f.messages = append(f.messages, m)
	return m, nil
}

func (f *memHistory) List(_ context.Context, conversationID string, limit int, _ *uuid.UUID) ([]*history.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*history.Message
	for i := len(f.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if f.messages[i].ConversationID == conversationID {
			out = append(out, f.messages[i])
		}
	}
	return out, nil
}

func (f *memHistory) ListRecent(ctx context.Context, conversationID string, limit int) ([]*history.Message, error) {
	newest, err := f.List(ctx, conversationID, limit, nil)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(newest)-1; i < j; i, j = i+1, j-1 {
		newest[i], newest[j] = newest[j], newest[i]
	}
	return newest, nil
}

func (f *memHistory) Count(_ context.Context, conversationID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			n++
		}
	}
	return n, nil
}

func (f *memHistory) SetTyping(_ context.Context, conversationID string, typing bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing[conversationID] = typing
	return nil
}

func (f *memHistory) GetTyping(_ context.Context, conversationID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.typing[conversationID], nil
}

// memProfiles is an in-memory chat.ProfileStore for handler tests.
type memProfiles struct {
	mu       sync.Mutex
	profiles map[string]*profile.Profile
}

func newMemProfiles() *memProfiles {
	return &memProfiles{profiles: make(map[string]*profile.Profile)}
}

func (f *memProfiles) GetOrCreate(_ context.Context, conversationID string) (*profile.Profile, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[conversationID]; ok {
		cp := *p
		return &cp, false, nil
	}
	p := &profile.Profile{ConversationID: conversationID, OnboardingCompleted: true, CreatedAt: time.Now()}
	f.profiles[conversationID] = p
	cp := *p
	return &cp, true, nil
}

func (f *memProfiles) Get(_ context.Context, conversationID string) (*profile.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[conversationID]
	if !ok {
		return nil, profile.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *memProfiles) Update(_ context.Context, p *profile.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.profiles[p.ConversationID] = &cp
	return nil
}

type memLister struct{}

func (memLister) List(context.Context, string, int) ([]*memory.Memory, error) { return nil, nil }

type charCounter struct{}

func (charCounter) Count(text string) int { return len(text) / 4 }

func newTestServer(t *testing.T, llmClient *testutil.MockLLM, rateBurst int) (*Server, *memHistory, *memProfiles) {
	t.Helper()

	hist := newMemHistory()
	profiles := newMemProfiles()
	typing := chat.NewTypingIndicator(testutil.NewMemoryCache(), hist, testutil.Logger())

	selector, err := protocol.NewSelector(nil, protocol.StrategyOff, 0, testutil.Logger())
	require.NoError(t, err)

	svc, err := chat.NewService(
		chat.Config{
			MaxMessageLength:   2000,
			HistoryLimit:       6,
			MemoryPool:         20,
			MemoryTopK:         3,
			ExtractionInterval: 0,
			TokenBudget:        1500,
			Temperature:        0.7,
			ResponseMaxTokens:  250,
		},
		hist, profiles, nil,
		memLister{}, memory.Ranker{},
		nil, selector,
		llmClient, charCounter{},
		typing, nil,
		testutil.Logger(),
	)
	require.NoError(t, err)

	srv, err := NewServer(ServerConfig{
		Logger:       testutil.Logger(),
		ChatService:  svc,
		HistoryStore: hist,
		ProfileStore: profiles,
		Typing:       typing,
		RateBurst:    rateBurst,
	})
	require.NoError(t, err)

	return srv, hist, profiles
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, testutil.NewMockLLM("ok"), 0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSendMessage(t *testing.T) {
	srv, _, _ := newTestServer(t, testutil.NewMockLLM("Happy to help! 😊"), 0)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages",
		strings.NewReader(`{"content": "hello coach"}`))
	req.Header.Set(conversationHeader, "Conv-42")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Contains(t, body, `"user_message"`)
	assert.Contains(t, body, `"assistant_message"`)
	assert.Contains(t, body, "Happy to help!")
	assert.Contains(t, body, `"created_at"`)
}

func TestSendMessageNormalizesConversationID(t *testing.T) {
	srv, hist, _ := newTestServer(t, testutil.NewMockLLM("hi"), 0)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages",
		strings.NewReader(`{"content": "hello"}`))
	req.Header.Set(conversationHeader, "  Conv-42  ")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	n, err := hist.Count(context.Background(), "conv-42")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSendMessageMissingConversation(t *testing.T) {
	srv, _, _ := newTestServer(t, testutil.NewMockLLM("hi"), 0)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages",
		strings.NewReader(`{"content": "hello"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing_conversation")
}

func TestSendMessageValidationError(t *testing.T) {
	srv, hist, _ := newTestServer(t, testutil.NewMockLLM("hi"), 0)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages",
		strings.NewReader(`{"content": "`+strings.Repeat("a", 2001)+`"}`))
	req.Header.Set(conversationHeader, "conv-1")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "message_too_long")

	n, err := hist.Count(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Zero(t, n, "rejected input must not persist messages")
}

func TestListMessagesPagination(t *testing.T) {
	srv, hist, _ := newTestServer(t, testutil.NewMockLLM("hi"), 0)

	for _, content := range []string{"one", "two", "three"} {
		_, err := hist.Append(context.Background(), "conv-1", "user", content, 1, nil)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages?limit=2", nil)
	req.Header.Set(conversationHeader, "conv-1")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, `"one"`)
	// Chronological within the page.
	assert.Less(t, strings.Index(body, "two"), strings.Index(body, "three"))
}

func TestListMessagesRejectsBadLimit(t *testing.T) {
	srv, _, _ := newTestServer(t, testutil.NewMockLLM("hi"), 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages?limit=zero", nil)
	req.Header.Set(conversationHeader, "conv-1")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamMessage(t *testing.T) {
	srv, _, _ := newTestServer(t, testutil.NewMockLLM("streaming reply"), 0)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/stream",
		strings.NewReader(`{"content": "hello"}`))
	req.Header.Set(conversationHeader, "conv-1")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "event: chunk")
	assert.Contains(t, body, "event: done")
	assert.Contains(t, body, `"message_id"`)
}

func TestStreamMessageValidationError(t *testing.T) {
	srv, _, _ := newTestServer(t, testutil.NewMockLLM("hi"), 0)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/stream",
		strings.NewReader(`{"content": ""}`))
	req.Header.Set(conversationHeader, "conv-1")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "event: error")
	assert.Contains(t, body, "empty_message")
	assert.NotContains(t, body, "event: done")
}

func TestTypingEndpoint(t *testing.T) {
	srv, hist, _ := newTestServer(t, testutil.NewMockLLM("hi"), 0)
	require.NoError(t, hist.SetTyping(context.Background(), "conv-1", true))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/typing", nil)
	req.Header.Set(conversationHeader, "conv-1")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"typing":true}`, rec.Body.String())
}

func TestProfileEndpoint(t *testing.T) {
	srv, _, profiles := newTestServer(t, testutil.NewMockLLM("hi"), 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	req.Header.Set(conversationHeader, "conv-1")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, _, err := profiles.GetOrCreate(context.Background(), "conv-1")
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"conversation_id":"conv-1"`)
}

func TestRateLimit(t *testing.T) {
	srv, _, _ := newTestServer(t, testutil.NewMockLLM("hi"), 2)

	var lastCode int
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/typing", nil)
		req.Header.Set(conversationHeader, "conv-1")
		req.RemoteAddr = "203.0.113.9:1234"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}
