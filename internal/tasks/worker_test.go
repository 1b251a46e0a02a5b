package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/wellora/coach/internal/history"
	"github.com/wellora/coach/internal/llm"
	"github.com/wellora/coach/internal/testutil"
)

type fakeTurnSource struct {
	messages []*history.Message
	err      error
}

func (f *fakeTurnSource) ListRecent(context.Context, string, int) ([]*history.Message, error) {
	return f.messages, f.err
}

type fakeMemExtractor struct {
	turns []llm.Turn
	err   error
}

func (f *fakeMemExtractor) Extract(_ context.Context, _ string, turns []llm.Turn) (int, error) {
	f.turns = turns
	return len(turns), f.err
}

func msg(role, content string) *history.Message {
	return &history.Message{
		ID: uuid.New(), ConversationID: "conv-1",
		Role: role, Content: content, CreatedAt: time.Now(),
	}
}

func TestHandleMemoryExtract(t *testing.T) {
	source := &fakeTurnSource{messages: []*history.Message{
		msg(llm.RoleUser, "I work night shifts"),
		msg(llm.RoleAssistant, "That can be tough on sleep."),
		msg(llm.RoleSystem, "internal note"),
	}}
	extractor := &fakeMemExtractor{}
	h := NewHandler(source, extractor, 5, testutil.Logger())

	task, err := NewMemoryExtractTask("conv-1")
	if err != nil {
		t.Fatalf("NewMemoryExtractTask() error = %v", err)
	}
	if err := h.HandleMemoryExtract(context.Background(), task); err != nil {
		t.Fatalf("HandleMemoryExtract() error = %v", err)
	}

	// System-authored records never reach extraction.
	if len(extractor.turns) != 2 {
		t.Errorf("extractor received %d turns, want 2", len(extractor.turns))
	}
}

func TestHandleMemoryExtractSwallowsExtractionFailure(t *testing.T) {
	source := &fakeTurnSource{messages: []*history.Message{msg(llm.RoleUser, "hi")}}
	extractor := &fakeMemExtractor{err: errors.New("model returned garbage")}
	h := NewHandler(source, extractor, 5, testutil.Logger())

	task, _ := NewMemoryExtractTask("conv-1")
	if err := h.HandleMemoryExtract(context.Background(), task); err != nil {
		t.Errorf("HandleMemoryExtract() error = %v, want swallowed", err)
	}
}

func TestHandleMemoryExtractRejectsMalformedPayload(t *testing.T) {
	h := NewHandler(&fakeTurnSource{}, &fakeMemExtractor{}, 5, testutil.Logger())

	task := asynq.NewTask(TypeMemoryExtract, []byte("not json"))
	err := h.HandleMemoryExtract(context.Background(), task)
	if err == nil {
		t.Fatal("HandleMemoryExtract() accepted malformed payload")
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("malformed payload error = %v, want SkipRetry", err)
	}
}
