// Package gemini provides a model wrapper for the Google Gemini API based on
// google.golang.org/genai. Thought parts are forwarded on the reasoning
// channel, regular text parts on the answer channel.
package gemini

import (
	"context"
	"fmt"

	"github.com/hupe1980/meetmesh/core"
	"github.com/hupe1980/meetmesh/model"
	"google.golang.org/genai"
)

// Options configures the Gemini model adapter.
type Options struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	APIKey          string
	BaseURL         string

	// IncludeThoughts requests thought summaries from thinking models.
	IncludeThoughts bool
}

// Model wraps the genai Models service behind the generic model.Model interface.
type Model struct {
	client *genai.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:           "gemini-2.5-flash",
		Temperature:     0.7,
		MaxOutputTokens: 4096,
	}
}

// NewModel creates a new Gemini model. Unlike the other adapters the genai
// client validates its configuration eagerly, hence the error return.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini client: %v", core.ErrConfiguration, err)
	}
	return &Model{client: client, opts: opts}, nil
}

// NewModelFromClient creates a new Gemini model from an existing client
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements model.Model using GenerateContentStream.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		finishReason := ""
		for resp, err := range m.client.Models.GenerateContentStream(ctx, m.opts.Model, buildContents(req.Messages), m.buildConfig(req)) {
			if err != nil {
				errCh <- fmt.Errorf("gemini streaming error: %w", err)
				return
			}
			for _, cand := range resp.Candidates {
				if cand.FinishReason != "" {
					finishReason = string(cand.FinishReason)
				}
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if part == nil || part.Text == "" {
						continue
					}
					ch := core.ChannelAnswer
					if part.Thought {
						ch = core.ChannelReasoning
					}
					select {
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					case out <- model.Response{Channel: ch, Text: part.Text, Partial: true}:
					}
				}
			}
		}

		if finishReason == "" {
			finishReason = "stop"
		}
		out <- model.Response{Channel: core.ChannelAnswer, FinishReason: finishReason}
	}()

	return out, errCh
}

// buildContents maps normalized messages to genai contents. System messages
// are carried by the config's SystemInstruction instead.
func buildContents(msgs []model.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case model.RoleSystem:
			continue
		case model.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return contents
}

func (m *Model) buildConfig(req model.Request) *genai.GenerateContentConfig {
	temperature := m.opts.Temperature
	if req.Temperature != nil {
		temperature = float32(*req.Temperature)
	}
	maxTokens := m.opts.MaxOutputTokens
	if req.MaxTokens > 0 {
		maxTokens = int32(req.MaxTokens)
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		MaxOutputTokens: maxTokens,
	}

	system := req.Instructions
	for _, msg := range req.Messages {
		if msg.Role == model.RoleSystem && msg.Content != "" {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		}
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if m.opts.IncludeThoughts {
		cfg.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}
	return cfg
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:              m.opts.Model,
		Provider:          "gemini",
		SupportsReasoning: m.opts.IncludeThoughts,
	}
}
