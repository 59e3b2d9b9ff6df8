package agent

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ModelClient abstracts the conversation model so the loop logic is
// identical in sync and streaming modes; only the transport differs.
type ModelClient interface {
	CreateMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
	StreamMessage(ctx context.Context, params anthropic.MessageNewParams, onDelta func(text string)) (*anthropic.Message, error)
}

type anthropicModelClient struct {
	client *anthropic.Client
}

func NewAnthropicModelClient(apiKey string) ModelClient {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &anthropicModelClient{client: &client}
}

func (m *anthropicModelClient) CreateMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	response, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to call Anthropic API: %w", err)
	}

	return response, nil
}

// StreamMessage accumulates the streamed response into a complete message
// while forwarding text deltas as they arrive.
func (m *anthropicModelClient) StreamMessage(ctx context.Context, params anthropic.MessageNewParams, onDelta func(text string)) (*anthropic.Message, error) {
	stream := m.client.Messages.NewStreaming(ctx, params)

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()

		if err := message.Accumulate(event); err != nil {
			return nil, fmt.Errorf("failed to accumulate stream event: %w", err)
		}

		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if onDelta != nil && delta.Text != "" {
					onDelta(delta.Text)
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("failed to stream from Anthropic API: %w", err)
	}

	return &message, nil
}
