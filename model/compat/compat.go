// Package compat provides a model.Model for OpenAI-compatible vendors
// (DeepSeek, Qwen, Moonshot, local gateways) on top of
// github.com/sashabaranov/go-openai. Unlike the official SDK it exposes the
// non-standard reasoning_content delta emitted by thinking models.
package compat

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/meetmesh/core"
	"github.com/hupe1980/meetmesh/model"
	openai "github.com/sashabaranov/go-openai"
)

// Options configures the compat adapter.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
	APIKey      string
	BaseURL     string

	// NoSystemRole folds instructions into the first user message for
	// vendors rejecting the system role.
	NoSystemRole bool
}

// Model wraps a go-openai client.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a compat model from options.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &Model{client: openai.NewClientWithConfig(cfg), opts: opts}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		stream, err := m.client.CreateChatCompletionStream(ctx, m.buildRequest(req))
		if err != nil {
			errCh <- fmt.Errorf("compat stream open: %w", err)
			return
		}
		defer stream.Close()

		send := func(resp model.Response) bool {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return false
			case out <- resp:
				return true
			}
		}

		finishReason := ""
		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				errCh <- fmt.Errorf("compat stream read: %w", err)
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			if choice.Delta.ReasoningContent != "" {
				if !send(model.Response{Channel: core.ChannelReasoning, Text: choice.Delta.ReasoningContent, Partial: true}) {
					return
				}
			}
			if choice.Delta.Content != "" {
				if !send(model.Response{Channel: core.ChannelAnswer, Text: choice.Delta.Content, Partial: true}) {
					return
				}
			}
			if choice.FinishReason != "" {
				finishReason = string(choice.FinishReason)
			}
		}

		if finishReason == "" {
			finishReason = "stop"
		}
		out <- model.Response{Channel: core.ChannelAnswer, FinishReason: finishReason}
	}()

	return out, errCh
}

func (m *Model) buildRequest(req model.Request) openai.ChatCompletionRequest {
	temperature := m.opts.Temperature
	if req.Temperature != nil {
		temperature = float32(*req.Temperature)
	}
	maxTokens := m.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	return openai.ChatCompletionRequest{
		Model:       m.opts.Model,
		Messages:    buildMessages(req, m.opts.NoSystemRole),
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      true,
	}
}

func buildMessages(req model.Request, noSystemRole bool) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	system := req.Instructions
	if system != "" && !noSystemRole {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
		system = ""
	}
	for _, msg := range req.Messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case model.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case model.RoleSystem:
			if !noSystemRole {
				role = openai.ChatMessageRoleSystem
			}
		}
		content := msg.Content
		if system != "" && role == openai.ChatMessageRoleUser {
			content = system + "\n\n" + content
			system = ""
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: content})
	}
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: system})
	}
	return messages
}

// Info returns metadata describing this model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:              m.opts.Model,
		Provider:          "compat",
		SupportsReasoning: true,
	}
}
