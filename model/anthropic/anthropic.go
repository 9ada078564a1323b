// Package anthropic provides a model wrapper for the Anthropic Claude API.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/meetmesh/core"
	"github.com/hupe1980/meetmesh/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string

	// ThinkingBudget enables extended thinking when positive. Thinking
	// deltas are forwarded on the reasoning channel.
	ThinkingBudget int64
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// NewModel creates a new Anthropic model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic model from an existing client
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

// Generate streams a Messages API call and adapts text and thinking deltas
// into model.Response chunks.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.buildParams(req)

		stream := m.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		finishReason := ""
		for stream.Next() {
			event := stream.Current()
			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				var resp model.Response
				switch delta := ev.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					resp = model.Response{Channel: core.ChannelAnswer, Text: delta.Text, Partial: true}
				case anthropic.ThinkingDelta:
					resp = model.Response{Channel: core.ChannelReasoning, Text: delta.Thinking, Partial: true}
				default:
					continue
				}
				if resp.Text == "" {
					continue
				}
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case out <- resp:
				}
			case anthropic.MessageDeltaEvent:
				if ev.Delta.StopReason != "" {
					finishReason = string(ev.Delta.StopReason)
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		if finishReason == "" {
			finishReason = "stop"
		}
		out <- model.Response{Channel: core.ChannelAnswer, FinishReason: finishReason}
	}()

	return out, errCh
}

func (m *Model) buildParams(req model.Request) anthropic.MessageNewParams {
	maxTokens := m.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     m.opts.Model,
		Messages:  buildMessages(req.Messages),
		MaxTokens: maxTokens,
	}

	if systemBlocks := extractSystemMessage(req); len(systemBlocks) > 0 {
		params.System = systemBlocks
	}

	// Extended thinking rejects custom temperatures.
	if m.opts.ThinkingBudget > 0 {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(m.opts.ThinkingBudget)
		return params
	}

	temperature := m.opts.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	params.Temperature = anthropic.Float(temperature)
	return params
}

// buildMessages converts normalized messages to the Anthropic format. The
// API requires alternating roles, so consecutive messages of one role are
// merged into a single message with several text blocks.
func buildMessages(msgs []model.Message) []anthropic.MessageParam {
	var (
		messages []anthropic.MessageParam
		blocks   []anthropic.ContentBlockParamUnion
		lastRole model.Role
	)

	flush := func() {
		if len(blocks) == 0 {
			return
		}
		if lastRole == model.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		} else {
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		}
		blocks = nil
	}

	for _, msg := range msgs {
		if msg.Role == model.RoleSystem || msg.Content == "" {
			continue // System messages handled separately
		}
		role := model.RoleUser
		if msg.Role == model.RoleAssistant {
			role = model.RoleAssistant
		}
		if role != lastRole {
			flush()
			lastRole = role
		}
		blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
	}
	flush()

	return messages
}

// extractSystemMessage collects instructions and system-role messages.
func extractSystemMessage(req model.Request) []anthropic.TextBlockParam {
	var systemBlocks []anthropic.TextBlockParam

	if req.Instructions != "" {
		systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: req.Instructions})
	}
	for _, msg := range req.Messages {
		if msg.Role == model.RoleSystem && msg.Content != "" {
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: msg.Content})
		}
	}

	return systemBlocks
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:              string(m.opts.Model),
		Provider:          "anthropic",
		SupportsReasoning: m.opts.ThinkingBudget > 0,
	}
}
