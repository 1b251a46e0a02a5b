// Package llm provides the language model boundary: role-tagged turns, the
// completion client contract, its OpenAI implementation, and token counting.
package llm

import "context"

// Turn roles. Values match the chat-completion wire format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single role-tagged exchange unit submitted to the completion
// call. Turns are ephemeral: they are built per request from persisted
// messages and never stored.
type Turn struct {
	Role    string
	Content string
}

// CompleteOpts tunes a single completion call.
type CompleteOpts struct {
	Temperature float32
	MaxTokens   int // cap on generated output tokens (0 = provider default)
}

// Completion is the result of a completion call.
type Completion struct {
	Content      string
	Model        string
	TotalTokens  int
	FinishReason string
}

// StreamFunc receives incremental content fragments during a streaming
// completion. Returning an error aborts the stream.
type StreamFunc func(chunk string) error

// Client is the completion contract consumed by the orchestrator and the
// extraction paths.
type Client interface {
	// Complete submits turns and blocks for the full generated text.
	Complete(ctx context.Context, turns []Turn, opts CompleteOpts) (*Completion, error)

	// Stream submits turns and forwards content fragments to fn as they
	// arrive. The returned Completion always carries the concatenated text
	// received so far, including when an error terminated the stream early.
	Stream(ctx context.Context, turns []Turn, opts CompleteOpts, fn StreamFunc) (*Completion, error)
}
