// Package chat is the conversational orchestration core: it validates an
// inbound utterance, assembles model context from history, memories, and
// protocols under a token budget, calls the model, and persists both sides
// of the exchange.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/wellora/coach/internal/history"
	"github.com/wellora/coach/internal/llm"
	"github.com/wellora/coach/internal/memory"
	"github.com/wellora/coach/internal/profile"
	"github.com/wellora/coach/internal/protocol"
)

// Validation failures. Surfaced to the caller as client errors; nothing is
// persisted once one is detected.
var (
	ErrEmptyMessage   = errors.New("message content cannot be empty")
	ErrMessageTooLong = errors.New("message is too long")
)

// apologyContent replaces the assistant reply when the completion call
// fails. The turn still completes and both messages are persisted.
const apologyContent = "I'm having trouble connecting to my systems right now. Please try again in a moment."

// onboardingContent greets a brand-new conversation. Persisted once, as an
// assistant message, when the profile is first created.
const onboardingContent = `Hey there! 👋 I'm your personal AI Health Coach, and I'm excited to help you achieve your health goals!

Feel free to ask me anything about:
• Nutrition and meal planning 🥗
• Exercise and fitness routines 💪
• Sleep and stress management 😴
• General wellness tips 🌟
• Healthy habits and lifestyle changes 🎯

You can also add more details about your health (conditions, medications, dietary preferences) anytime, and I'll provide even more personalized advice.

What would you like to know about today? 😊`

// HistoryStore is the message persistence consumed by the orchestrator.
type HistoryStore interface {
	Append(ctx context.Context, conversationID, role, content string, tokenCount int, metadata map[string]string) (*history.Message, error)
	List(ctx context.Context, conversationID string, limit int, beforeID *uuid.UUID) ([]*history.Message, error)
	ListRecent(ctx context.Context, conversationID string, limit int) ([]*history.Message, error)
	Count(ctx context.Context, conversationID string) (int, error)
	SetTyping(ctx context.Context, conversationID string, typing bool) error
	GetTyping(ctx context.Context, conversationID string) (bool, error)
}

// ProfileStore is the profile persistence consumed by the orchestrator.
type ProfileStore interface {
	GetOrCreate(ctx context.Context, conversationID string) (*profile.Profile, bool, error)
	Get(ctx context.Context, conversationID string) (*profile.Profile, error)
	Update(ctx context.Context, p *profile.Profile) error
}

// ProfileExtractor pulls profile fields from an utterance.
type ProfileExtractor interface {
	Extract(ctx context.Context, message string, existing *profile.Profile) (profile.Extracted, error)
}

// MemoryLister fetches a conversation's memories, importance first.
type MemoryLister interface {
	List(ctx context.Context, conversationID string, limit int) ([]*memory.Memory, error)
}

// MemoryRanker orders memories by relevance to a query.
type MemoryRanker interface {
	Rank(query string, memories []*memory.Memory, k int) []*memory.Memory
}

// ProtocolSource lists active protocols and selects the relevant subset.
type ProtocolSource interface {
	ListActive(ctx context.Context) ([]*protocol.Protocol, error)
}

// ProtocolSelector picks protocols relevant to a query.
type ProtocolSelector interface {
	Select(ctx context.Context, query string, protocols []*protocol.Protocol) []*protocol.Protocol
}

// Dispatcher hands off background memory extraction.
type Dispatcher interface {
	EnqueueMemoryExtract(ctx context.Context, conversationID string) error
}

// Config tunes the orchestration pipeline.
type Config struct {
	MaxMessageLength   int     // inbound content cap, in characters
	HistoryLimit       int     // recent turns submitted as context
	MemoryPool         int     // stored memories considered per query
	MemoryTopK         int     // ranked memories handed to the assembler
	ExtractionInterval int     // dispatch memory extraction every Nth message
	TokenBudget        int     // total-context budget for the completion call
	Temperature        float32 // completion sampling temperature
	ResponseMaxTokens  int     // cap on generated reply length
}

// Result is a completed turn: both persisted messages.
type Result struct {
	UserMessage      *history.Message
	AssistantMessage *history.Message
}

// Service coordinates one request-response transaction per inbound
// utterance. It holds no per-conversation state.
type Service struct {
	cfg       Config
	history   HistoryStore
	profiles  ProfileStore
	extractor ProfileExtractor
	memories  MemoryLister
	ranker    MemoryRanker
	protocols ProtocolSource
	selector  ProtocolSelector
	client    llm.Client
	optimizer *Optimizer
	counter   Counter
	typing    *TypingIndicator
	dispatch  Dispatcher
	logger    *slog.Logger
}

// NewService wires the orchestrator. typing and dispatch may be nil; the
// corresponding side paths are then skipped.
func NewService(
	cfg Config,
	hist HistoryStore,
	profiles ProfileStore,
	extractor ProfileExtractor,
	memories MemoryLister,
	ranker MemoryRanker,
	protocols ProtocolSource,
	selector ProtocolSelector,
	client llm.Client,
	counter Counter,
	typing *TypingIndicator,
	dispatch Dispatcher,
	logger *slog.Logger,
) (*Service, error) {
	switch {
	case hist == nil:
		return nil, fmt.Errorf("history store is required")
	case profiles == nil:
		return nil, fmt.Errorf("profile store is required")
	case client == nil:
		return nil, fmt.Errorf("completion client is required")
	case counter == nil:
		return nil, fmt.Errorf("token counter is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		history:   hist,
		profiles:  profiles,
		extractor: extractor,
		memories:  memories,
		ranker:    ranker,
		protocols: protocols,
		selector:  selector,
		client:    client,
		optimizer: NewOptimizer(counter),
		counter:   counter,
		typing:    typing,
		dispatch:  dispatch,
		logger:    logger,
	}, nil
}

// SendMessage processes one inbound utterance and blocks for the full
// reply. A completion failure degrades to a fixed apology; the turn still
// persists both messages.
func (s *Service) SendMessage(ctx context.Context, conversationID, content string) (*Result, error) {
	return s.process(ctx, conversationID, content, nil)
}

// StreamMessage processes one inbound utterance, forwarding reply fragments
// to fn as they arrive. The complete concatenated reply is persisted exactly
// once after the stream ends, including on premature termination.
func (s *Service) StreamMessage(ctx context.Context, conversationID, content string, fn llm.StreamFunc) (*Result, error) {
	if fn == nil {
		return nil, fmt.Errorf("stream callback is required")
	}
	return s.process(ctx, conversationID, content, fn)
}

func (s *Service) process(ctx context.Context, conversationID, content string, fn llm.StreamFunc) (*Result, error) {
	// Stage 1: validate before any side effect.
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > s.cfg.MaxMessageLength {
		return nil, fmt.Errorf("%w (max %d characters)", ErrMessageTooLong, s.cfg.MaxMessageLength)
	}

	// Stage 2: resolve the profile; a fresh conversation gets exactly one
	// onboarding message in its history.
	prof, created, err := s.profiles.GetOrCreate(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info("new conversation", "conversation_id", conversationID)
		if _, err := s.history.Append(ctx, conversationID, llm.RoleAssistant, onboardingContent, 0,
			map[string]string{"type": "onboarding"}); err != nil {
			return nil, err
		}
	}

	// Stage 3: persist the inbound message.
	userMsg, err := s.history.Append(ctx, conversationID, llm.RoleUser, content,
		s.counter.Count(content), nil)
	if err != nil {
		return nil, err
	}

	if s.typing != nil {
		s.typing.Set(ctx, conversationID, true)
		defer s.typing.Set(ctx, conversationID, false)
	}

	// Stage 4: onboarding extraction. Failures never fail the turn.
	if !prof.OnboardingCompleted {
		prof = s.runOnboarding(ctx, prof, content)
	}

	// Stage 5: gather context, memories, protocols.
	turns, err := s.contextTurns(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	memoryContents := s.relevantMemories(ctx, conversationID, content)
	protocolContents := s.selectedProtocols(ctx, content)

	// Stage 6: assemble, optimize, complete.
	system := llm.Turn{Role: llm.RoleSystem, Content: AssemblePrompt(prof, memoryContents, protocolContents)}
	optimized := s.optimizer.Optimize(append([]llm.Turn{system}, turns...), s.cfg.TokenBudget)

	reply, meta := s.complete(ctx, optimized, fn)

	// Stage 7: persist the outbound message.
	assistantMsg, err := s.history.Append(ctx, conversationID, llm.RoleAssistant, reply.content,
		reply.tokens, meta)
	if err != nil {
		return nil, err
	}

	// Stage 8: periodic memory extraction, off the request path.
	s.maybeDispatchExtraction(ctx, conversationID)

	result := &Result{UserMessage: userMsg, AssistantMessage: assistantMsg}
	if reply.err != nil && fn != nil {
		// Streaming callers need the error marker after the persisted
		// partial content.
		return result, reply.err
	}
	return result, nil
}

type replyOutcome struct {
	content string
	tokens  int
	err     error
}

// complete issues the completion (or stream) call. Upstream failures
// degrade to the apology for blocking calls; for streaming calls whatever
// content arrived is kept and the error is reported alongside.
func (s *Service) complete(ctx context.Context, turns []llm.Turn, fn llm.StreamFunc) (replyOutcome, map[string]string) {
	opts := llm.CompleteOpts{
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.ResponseMaxTokens,
	}

	var resp *llm.Completion
	var err error
	if fn != nil {
		resp, err = s.client.Stream(ctx, turns, opts, fn)
	} else {
		resp, err = s.client.Complete(ctx, turns, opts)
	}

	if err != nil {
		s.logger.Error("completion call failed", "error", err)
		content := apologyContent
		if resp != nil && resp.Content != "" {
			// Premature stream termination: persist what arrived.
			content = resp.Content
		}
		return replyOutcome{content: content, err: err}, map[string]string{"error": "upstream_failure"}
	}

	meta := map[string]string{
		"model":         resp.Model,
		"finish_reason": resp.FinishReason,
	}
	return replyOutcome{content: resp.Content, tokens: resp.TotalTokens}, meta
}

// runOnboarding extracts profile fields from the utterance and marks
// onboarding complete once name and age are known. The transition is
// one-way; extraction errors leave the profile untouched.
func (s *Service) runOnboarding(ctx context.Context, prof *profile.Profile, content string) *profile.Profile {
	if s.extractor == nil {
		return prof
	}

	extracted, err := s.extractor.Extract(ctx, content, prof)
	if err != nil {
		s.logger.Warn("profile extraction failed", "conversation_id", prof.ConversationID, "error", err)
		return prof
	}

	changed := prof.Merge(extracted)
	if prof.OnboardingReady() && !prof.OnboardingCompleted {
		prof.OnboardingCompleted = true
		changed = true
		s.logger.Info("onboarding completed", "conversation_id", prof.ConversationID)
	}
	if changed {
		if err := s.profiles.Update(ctx, prof); err != nil {
			s.logger.Warn("profile update failed", "conversation_id", prof.ConversationID, "error", err)
		}
	}
	return prof
}

// contextTurns builds the bounded recent history, excluding system-authored
// records; the system instruction is assembled fresh each turn.
func (s *Service) contextTurns(ctx context.Context, conversationID string) ([]llm.Turn, error) {
	messages, err := s.history.ListRecent(ctx, conversationID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}

	turns := make([]llm.Turn, 0, len(messages))
	for _, m := range messages {
		if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
			continue
		}
		turns = append(turns, llm.Turn{Role: m.Role, Content: m.Content})
	}
	return turns, nil
}

// maxMemoryTopK caps retrieval regardless of configuration; more than a
// handful of memories dilutes the prompt.
const maxMemoryTopK = 5

// relevantMemories ranks the conversation's memories against the utterance.
// Retrieval failures degrade to no memories.
func (s *Service) relevantMemories(ctx context.Context, conversationID, query string) []string {
	if s.memories == nil || s.ranker == nil || s.cfg.MemoryTopK <= 0 {
		return nil
	}

	pool, err := s.memories.List(ctx, conversationID, s.cfg.MemoryPool)
	if err != nil {
		s.logger.Warn("memory retrieval failed", "conversation_id", conversationID, "error", err)
		return nil
	}

	topK := min(s.cfg.MemoryTopK, maxMemoryTopK)
	ranked := s.ranker.Rank(query, pool, topK)
	contents := make([]string, len(ranked))
	for i, m := range ranked {
		contents[i] = m.Content
	}
	return contents
}

// selectedProtocols picks protocol contents for the utterance. Selection
// failures degrade to none; the persona preamble carries baseline safety.
func (s *Service) selectedProtocols(ctx context.Context, query string) []string {
	if s.protocols == nil || s.selector == nil {
		return nil
	}

	active, err := s.protocols.ListActive(ctx)
	if err != nil {
		s.logger.Warn("protocol listing failed", "error", err)
		return nil
	}

	selected := s.selector.Select(ctx, query, active)
	contents := make([]string, len(selected))
	for i, p := range selected {
		contents[i] = p.Content
	}
	return contents
}

// maybeDispatchExtraction enqueues memory extraction every Nth message.
// Dispatch failures are logged and swallowed.
func (s *Service) maybeDispatchExtraction(ctx context.Context, conversationID string) {
	if s.dispatch == nil || s.cfg.ExtractionInterval <= 0 {
		return
	}

	count, err := s.history.Count(ctx, conversationID)
	if err != nil {
		s.logger.Warn("message count failed", "conversation_id", conversationID, "error", err)
		return
	}
	if count == 0 || count%s.cfg.ExtractionInterval != 0 {
		return
	}

	if err := s.dispatch.EnqueueMemoryExtract(ctx, conversationID); err != nil {
		s.logger.Warn("memory extraction dispatch failed", "conversation_id", conversationID, "error", err)
	}
}
