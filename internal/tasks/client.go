package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Client enqueues background tasks.
type Client struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewClient creates a task client against the given Redis endpoint.
func NewClient(redisAddr, redisPassword string, redisDB int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     redisAddr,
			Password: redisPassword,
			DB:       redisDB,
		}),
		logger: logger,
	}
}

// EnqueueMemoryExtract schedules memory extraction for a conversation.
func (c *Client) EnqueueMemoryExtract(ctx context.Context, conversationID string) error {
	task, err := NewMemoryExtractTask(conversationID)
	if err != nil {
		return err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueueing %s: %w", TypeMemoryExtract, err)
	}
	c.logger.Debug("enqueued task", "type", TypeMemoryExtract, "id", info.ID, "conversation_id", conversationID)
	return nil
}

// Close releases the underlying Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
