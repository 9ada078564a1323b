package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/meetmesh/core"
	"github.com/hupe1980/meetmesh/internal/util"
	"github.com/hupe1980/meetmesh/logging"
	"github.com/hupe1980/meetmesh/model"
)

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Role        string
	Profile     core.Profile
	Instruction Instruction
	Retry       RetryPolicy
	// TurnTimeout bounds a single turn including retries; zero disables it.
	TurnTimeout time.Duration
	// MaxHistoryEntries limits how many previous turns are quoted as context.
	MaxHistoryEntries int
	// MaxEntryRunes truncates each quoted turn.
	MaxEntryRunes int
	Temperature   *float64
	MaxTokens     int
	Logger        logging.Logger
}

// ModelAgent is a meeting participant backed by a streaming model.
//
// This participant implementation supports:
//   - Persona system prompts with template placeholders
//   - Quoting previous turns of the meeting as context
//   - Streaming answer and reasoning fragments as they arrive
//   - Retrying a stream that fails before its first fragment
//   - Reporting unrecoverable failures in-band so the turn is still recorded
type ModelAgent struct {
	BaseParticipant
	llm               model.Model
	instruction       Instruction
	retry             RetryPolicy
	turnTimeout       time.Duration
	maxHistoryEntries int
	maxEntryRunes     int
	temperature       *float64
	maxTokens         int
	logger            logging.Logger
}

// NewModelAgent creates a new model-based participant with sensible defaults.
//
// The agent is initialized with:
//   - DefaultInstruction as system prompt
//   - DefaultRetryPolicy (2 retries, exponential backoff)
//   - no per-turn timeout
//   - the last 20 turns quoted as context, each cut at 800 runes
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:       NewInstructionFromText(DefaultInstruction),
		Retry:             DefaultRetryPolicy(),
		MaxHistoryEntries: 20,
		MaxEntryRunes:     800,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &ModelAgent{
		BaseParticipant:   NewBaseParticipant(name, opts.Role, opts.Profile),
		llm:               llm,
		instruction:       opts.Instruction,
		retry:             opts.Retry,
		turnTimeout:       opts.TurnTimeout,
		maxHistoryEntries: opts.MaxHistoryEntries,
		maxEntryRunes:     opts.MaxEntryRunes,
		temperature:       opts.Temperature,
		maxTokens:         opts.MaxTokens,
		logger:            logging.With(opts.Logger, "participant", name),
	}
}

// IsHuman implements core.Participant.
func (a *ModelAgent) IsHuman() bool { return false }

// Model returns the bound model.
func (a *ModelAgent) Model() model.Model { return a.llm }

// Respond aggregates the answer fragments of RespondStream. Upstream
// failures are part of the returned text; only cancellation of ctx is
// reported as an error.
func (a *ModelAgent) Respond(ctx context.Context, req core.TurnRequest) (string, error) {
	var sb strings.Builder
	for f := range a.RespondStream(ctx, req) {
		if f.Channel == core.ChannelAnswer {
			sb.WriteString(f.Text)
		}
	}
	if err := ctx.Err(); err != nil {
		return sb.String(), err
	}
	return sb.String(), nil
}

// RespondStream implements core.Participant. Fragments are forwarded as soon
// as the model produces them. The channel is closed when the turn ends.
func (a *ModelAgent) RespondStream(ctx context.Context, req core.TurnRequest) <-chan core.Fragment {
	out := make(chan core.Fragment, 16)

	go func() {
		defer close(out)

		turnCtx := ctx
		if a.turnTimeout > 0 {
			var cancel context.CancelFunc
			turnCtx, cancel = context.WithTimeout(ctx, a.turnTimeout)
			defer cancel()
		}

		mreq, err := a.BuildRequest(req)
		if err != nil {
			a.fail(ctx, out, false, err)
			return
		}

		start := time.Now()
		started, err := a.stream(turnCtx, mreq, out)
		logging.LogModelCall(a.logger, a.llm.Info().Name, time.Since(start), err)
		if err != nil {
			a.fail(ctx, out, started, err)
		}
	}()

	return out
}

// stream runs the model call with retries. It reports whether any fragment
// was forwarded; once output has started the call is never repeated.
func (a *ModelAgent) stream(ctx context.Context, req model.Request, out chan<- core.Fragment) (bool, error) {
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := a.retry.Delay(attempt)
			a.logger.Warn("Retrying model stream", "attempt", attempt, "max_retries", a.retry.MaxRetries, "delay", delay)
			if err := sleepCtx(ctx, delay); err != nil {
				return false, err
			}
		}

		started, err := a.forward(ctx, req, out)
		if err == nil || started || !IsRetryable(err) || attempt >= a.retry.MaxRetries {
			return started, err
		}
		a.logger.Warn("Model stream failed before output", "attempt", attempt, "error", err)
	}
}

func (a *ModelAgent) forward(ctx context.Context, req model.Request, out chan<- core.Fragment) (bool, error) {
	respCh, errCh := a.llm.Generate(ctx, req)
	started := false
	for resp := range respCh {
		if !resp.Partial || resp.Text == "" {
			continue
		}
		select {
		case <-ctx.Done():
			go drain(respCh, errCh)
			return started, ctx.Err()
		case out <- core.Fragment{Channel: resp.Channel, Text: resp.Text}:
			started = true
		}
	}
	return started, <-errCh
}

func drain(respCh <-chan model.Response, errCh <-chan error) {
	for range respCh {
	}
	<-errCh
}

// fail reports err in-band. Nothing is emitted when the caller's context is
// gone: the turn is abandoned rather than recorded.
func (a *ModelAgent) fail(parent context.Context, out chan<- core.Fragment, started bool, err error) {
	if parent.Err() != nil {
		return
	}
	upErr := core.NewUpstreamError(a.Name(), err)
	a.logger.Error("Participant turn failed", "error", upErr, "partial", started)

	text := FailureText(a.Name(), upErr)
	if started {
		text = "\n\n" + text
	}
	select {
	case <-parent.Done():
	case out <- core.AnswerFragment(text):
	}
}

// FailureText renders the synthetic turn content used when a model call fails.
func FailureText(name string, err error) string {
	return fmt.Sprintf("【%s 发言失败】%v", name, err)
}

// BuildRequest assembles the model request for a turn: the persona
// instruction as system prompt, then one user message quoting earlier turns
// followed by the mode prompt.
func (a *ModelAgent) BuildRequest(req core.TurnRequest) (model.Request, error) {
	instructions, err := a.instruction.Resolve(Scope{
		Name:    a.Name(),
		Role:    a.Role(),
		Profile: a.Profile(),
		Turn:    req,
	})
	if err != nil {
		return model.Request{}, fmt.Errorf("%w: instruction for %s: %v", core.ErrConfiguration, a.Name(), err)
	}

	var sb strings.Builder
	if history := a.previousTurns(req.History); history != "" {
		sb.WriteString(history)
		sb.WriteString("\n")
	}
	sb.WriteString("【本轮任务】\n")
	sb.WriteString(req.Prompt)

	return model.Request{
		Instructions: instructions,
		Messages:     []model.Message{{Role: model.RoleUser, Content: sb.String()}},
		Temperature:  a.temperature,
		MaxTokens:    a.maxTokens,
	}, nil
}

func (a *ModelAgent) previousTurns(history []core.MessageEntry) string {
	turns := core.Turns(history)
	if len(turns) == 0 {
		return ""
	}
	if a.maxHistoryEntries > 0 && len(turns) > a.maxHistoryEntries {
		turns = turns[len(turns)-a.maxHistoryEntries:]
	}
	var sb strings.Builder
	sb.WriteString("【前面的发言】\n")
	for _, e := range turns {
		content := e.Content
		if a.maxEntryRunes > 0 {
			content = util.Truncate(content, a.maxEntryRunes)
		}
		fmt.Fprintf(&sb, "- 第%d轮 %s：%s\n\n", e.Round, e.Speaker, content)
	}
	return sb.String()
}
