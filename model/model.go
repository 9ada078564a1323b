package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/meetmesh/core"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one provider-neutral chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request captures the normalized model input. Instructions become the
// system prompt; providers that do not support a system role fold it into
// the first user message.
type Request struct {
	Instructions string    `json:"instructions"`
	Messages     []Message `json:"messages"`
	// Temperature and MaxTokens override the adapter defaults when set.
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
// Partial chunks carry a delta on Channel; the final chunk carries the
// FinishReason and may carry Usage.
type Response struct {
	Channel      core.Channel `json:"channel"`
	Text         string       `json:"text"`
	Partial      bool         `json:"partial"`
	FinishReason string       `json:"finish_reason,omitempty"`
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name              string `json:"name"`
	Provider          string `json:"provider"` // "openai", "anthropic", "gemini", "compat", "mock"
	SupportsReasoning bool   `json:"supports_reasoning"`
}

// Model is the streaming chat capability consumed by participants and the
// summarizer. Each call opens a fresh upstream stream; the response channel
// is closed when the stream ends and at most one error is sent.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Collect drains a Generate call and returns the concatenated answer text.
func Collect(ctx context.Context, m Model, req Request) (string, error) {
	respCh, errCh := m.Generate(ctx, req)
	var sb strings.Builder
	for resp := range respCh {
		if resp.Partial && resp.Channel == core.ChannelAnswer {
			sb.WriteString(resp.Text)
		}
	}
	if err := <-errCh; err != nil {
		return sb.String(), err
	}
	return sb.String(), nil
}

// Resolver looks up a model by its configured name.
type Resolver interface {
	Resolve(name string) (Model, error)
}

// Registry is a Resolver backed by a name map with an optional default.
// It is safe for concurrent access.
type Registry struct {
	mu       sync.RWMutex
	models   map[string]Model
	fallback string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]Model)}
}

// Register adds or replaces a model. The first registered model becomes the
// default unless SetDefault is called.
func (r *Registry) Register(name string, m Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[name] = m
	if r.fallback == "" {
		r.fallback = name
	}
}

// SetDefault selects the model used for empty names.
func (r *Registry) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = name
}

// Names lists registered model names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.models))
	for n := range r.models {
		names = append(names, n)
	}
	return names
}

// Resolve implements Resolver. An empty name selects the default.
func (r *Registry) Resolve(name string) (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.fallback
	}
	m, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: model %q is not configured", core.ErrConfiguration, name)
	}
	return m, nil
}

// MockModel is a lightweight in‑memory Model useful for tests, demos and
// offline runs. Without canned responses it answers with a deterministic echo.
type MockModel struct {
	info      Info
	mu        sync.Mutex
	responses map[string]string
	reasoning string
	err       error
	calls     int
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock", SupportsReasoning: true},
		responses: make(map[string]string),
	}
}

// AddResponse registers a canned completion for a request whose last
// message contains the given substring.
func (m *MockModel) AddResponse(contains, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[contains] = response
}

// SetReasoning makes every call emit the text on the reasoning channel first.
func (m *MockModel) SetReasoning(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reasoning = text
}

// SetError makes every call fail before producing output.
func (m *MockModel) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Generate was invoked.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Generate implements Model; emits rune-sized partial chunks then a final chunk.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.calls++
	failure, reasoning := m.err, m.reasoning
	var last string
	if len(req.Messages) > 0 {
		last = req.Messages[len(req.Messages)-1].Content
	}
	full := ""
	for k, v := range m.responses {
		if strings.Contains(last, k) {
			full = v
			break
		}
	}
	m.mu.Unlock()

	if full == "" {
		full = fmt.Sprintf("%s: %s", m.info.Name, firstLine(last))
	}

	go func() {
		defer close(respCh)
		defer close(errCh)
		if failure != nil {
			errCh <- failure
			return
		}
		emit := func(ch core.Channel, text string) bool {
			for _, r := range text {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return false
				case respCh <- Response{Channel: ch, Text: string(r), Partial: true}:
				}
			}
			return true
		}
		if reasoning != "" && !emit(core.ChannelReasoning, reasoning) {
			return
		}
		if !emit(core.ChannelAnswer, full) {
			return
		}
		respCh <- Response{Channel: core.ChannelAnswer, FinishReason: "stop"}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
