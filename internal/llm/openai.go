package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI implements Client on the OpenAI chat-completion API.
//
// OpenAI is safe for concurrent use by multiple goroutines.
type OpenAI struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI completion client for the given model.
func NewOpenAI(apiKey, model string, logger *slog.Logger) *OpenAI {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAI{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

// Complete submits turns and blocks for the full generated text.
func (o *OpenAI) Complete(ctx context.Context, turns []Turn, opts CompleteOpts) (*Completion, error) {
	resp, err := o.client.CreateChatCompletion(ctx, o.request(turns, opts))
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: empty choices")
	}

	choice := resp.Choices[0]
	o.logger.Debug("completion finished",
		"model", resp.Model,
		"total_tokens", resp.Usage.TotalTokens,
		"finish_reason", choice.FinishReason,
	)

	return &Completion{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		TotalTokens:  resp.Usage.TotalTokens,
		FinishReason: string(choice.FinishReason),
	}, nil
}

// Stream submits turns and forwards content fragments to fn. The returned
// Completion carries whatever text was received, even on early termination.
func (o *OpenAI) Stream(ctx context.Context, turns []Turn, opts CompleteOpts, fn StreamFunc) (*Completion, error) {
	req := o.request(turns, opts)
	req.Stream = true

	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("opening completion stream: %w", err)
	}
	defer stream.Close()

	var sb strings.Builder
	result := &Completion{Model: o.model}

	for {
		resp, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			result.Content = sb.String()
			return result, fmt.Errorf("receiving stream chunk: %w", recvErr)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		choice := resp.Choices[0]
		if choice.FinishReason != "" {
			result.FinishReason = string(choice.FinishReason)
		}
		if choice.Delta.Content == "" {
			continue
		}

		sb.WriteString(choice.Delta.Content)
		if fn != nil {
			if cbErr := fn(choice.Delta.Content); cbErr != nil {
				result.Content = sb.String()
				return result, fmt.Errorf("stream callback: %w", cbErr)
			}
		}
	}

	result.Content = sb.String()
	return result, nil
}

func (o *OpenAI) request(turns []Turn, opts CompleteOpts) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, len(turns))
	for i, t := range turns {
		messages[i] = openai.ChatCompletionMessage{
			Role:    t.Role,
			Content: t.Content,
		}
	}
	return openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
}
