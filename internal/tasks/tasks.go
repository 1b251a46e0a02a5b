// Package tasks moves memory extraction off the request path: the
// orchestrator enqueues a task after every Nth message and a background
// worker runs the model call.
package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TypeMemoryExtract identifies the memory extraction task.
const TypeMemoryExtract = "memory:extract"

// memoryExtractPayload is the task payload.
type memoryExtractPayload struct {
	ConversationID string `json:"conversation_id"`
}

// NewMemoryExtractTask builds a memory extraction task for a conversation.
func NewMemoryExtractTask(conversationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(memoryExtractPayload{ConversationID: conversationID})
	if err != nil {
		return nil, fmt.Errorf("marshaling task payload: %w", err)
	}
	return asynq.NewTask(TypeMemoryExtract, payload, asynq.MaxRetry(2)), nil
}
