package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/hupe1980/meetmesh/agent"
	"github.com/hupe1980/meetmesh/archive"
	"github.com/hupe1980/meetmesh/core"
	"github.com/hupe1980/meetmesh/logging"
	"github.com/hupe1980/meetmesh/mode"
	"github.com/hupe1980/meetmesh/model"
	"github.com/hupe1980/meetmesh/runner"
	"github.com/hupe1980/meetmesh/session"
	"github.com/hupe1980/meetmesh/summary"
)

// Config defines tuning parameters for the Engine's operational behavior.
type Config struct {
	// EventBufferSize sets the channel buffer size of Stream.
	EventBufferSize int

	// DefaultMaxRounds applies to modes without a fixed round count when a
	// meeting does not set its own ceiling. Zero keeps the mode default.
	DefaultMaxRounds int

	// HumanWaitTimeout is the input deadline of human participants.
	HumanWaitTimeout time.Duration

	// Retention is how long ended meetings stay in the registry.
	Retention time.Duration

	// SummaryModel is used by meetings that do not name their own summary
	// model. Empty selects the default model.
	SummaryModel string
}

// DefaultConfig provides the default configuration values.
//
// Configuration values:
//   - EventBufferSize: 100
//   - HumanWaitTimeout: 10 minutes
//   - Retention: 1 hour
var DefaultConfig = Config{
	EventBufferSize:  100,
	HumanWaitTimeout: agent.DefaultHumanInputTimeout,
	Retention:        time.Hour,
}

// Options configures an Engine instance using the functional options pattern.
//
// All services have in-memory defaults so an Engine works out of the box:
//
//	e := New(func(o *Options) {
//	    o.Models = registry
//	    o.Archive = redisArchive
//	    o.Logger = logger
//	})
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Store is the live meeting registry. Defaults to session.InMemoryStore.
	Store core.MeetingStore

	// Archive receives transcripts of ended meetings. Defaults to
	// archive.InMemoryStore.
	Archive core.Archive

	// Models resolves the model names of participant specs. Defaults to a
	// registry holding a single MockModel named "mock".
	Models model.Resolver

	// Summarizer produces closing summaries. Defaults to a summary.Service
	// over Models.
	Summarizer core.Summarizer

	// Callbacks receives lifecycle hooks.
	Callbacks *CallbackManager

	// AgentOptions is applied to every model participant the engine creates.
	AgentOptions []func(o *agent.ModelAgentOptions)

	// Clock returns the current time; defaults to time.Now.
	Clock func() time.Time

	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger
}

// ParticipantSpec describes one participant of a new meeting.
type ParticipantSpec struct {
	Name        string `json:"name" toml:"name"`
	Role        string `json:"role,omitempty" toml:"role"`
	Personality string `json:"personality,omitempty" toml:"personality"`
	Skills      string `json:"skills,omitempty" toml:"skills"`
	// Model selects the backing model; empty uses the default model.
	Model string `json:"model,omitempty" toml:"model"`
	Human bool   `json:"human,omitempty" toml:"human"`
}

// MeetingSpec describes a meeting to create or, when MeetingID names a
// registered meeting, to resume.
type MeetingSpec struct {
	MeetingID    string            `json:"meeting_id,omitempty" toml:"meeting_id"`
	Topic        string            `json:"topic" toml:"topic"`
	Mode         string            `json:"mode" toml:"mode"`
	MaxRounds    int               `json:"max_rounds,omitempty" toml:"max_rounds"`
	SummaryModel string            `json:"summary_model,omitempty" toml:"summary_model"`
	Participants []ParticipantSpec `json:"participants" toml:"participants"`
}

// SubmitResult is the envelope returned for accepted human input.
type SubmitResult struct {
	Success      bool        `json:"success"`
	Message      string      `json:"message"`
	MeetingID    string      `json:"meeting_id"`
	Status       core.Status `json:"status"`
	CurrentRound int         `json:"current_round"`
}

// Engine is the service façade of meetmesh. It creates meetings from specs,
// streams them through the runner while holding the per-meeting lock, routes
// human input, archives ended meetings and evicts them after the retention
// period.
//
// Concurrency model:
//   - different meetings stream in parallel
//   - streams of one meeting are serialised through MeetingStore.Acquire
//   - human input goes straight to the meeting, which guards its own state,
//     so it is accepted even while another client is streaming
type Engine struct {
	store      core.MeetingStore
	archive    core.Archive
	models     model.Resolver
	runner     *runner.Runner
	callbacks  *CallbackManager
	agentOpts  []func(o *agent.ModelAgentOptions)
	config     Config
	now        func() time.Time
	logger     logging.Logger
	rootLogger logging.Logger
}

// New creates a new Engine with in-memory defaults for every service.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:    DefaultConfig,
		Store:     session.NewInMemoryStore(),
		Archive:   archive.NewInMemoryStore(),
		Callbacks: NewCallbackManager(),
		Clock:     time.Now,
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Models == nil {
		reg := model.NewRegistry()
		reg.Register("mock", model.NewMockModel("mock"))
		opts.Models = reg
	}
	if opts.Summarizer == nil {
		opts.Summarizer = summary.NewService(opts.Models, func(o *summary.Options) { o.Logger = opts.Logger })
	}
	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}

	return &Engine{
		store:     opts.Store,
		archive:   opts.Archive,
		models:    opts.Models,
		callbacks: opts.Callbacks,
		agentOpts: opts.AgentOptions,
		config:    opts.Config,
		now:       opts.Clock,
		runner: runner.New(func(o *runner.Options) {
			o.Summarizer = opts.Summarizer
			o.EventBufferSize = opts.Config.EventBufferSize
			o.Logger = opts.Logger
		}),
		logger:     logging.With(opts.Logger, "component", "engine"),
		rootLogger: opts.Logger,
	}
}

// Callbacks returns the callback manager for registration.
func (e *Engine) Callbacks() *CallbackManager { return e.callbacks }

// Archive returns the transcript archive.
func (e *Engine) Archive() core.Archive { return e.archive }

// NormalizeName canonicalises a participant name: NFKC folds full-width and
// compatibility forms, surrounding whitespace is dropped.
func NormalizeName(name string) string {
	return strings.TrimSpace(norm.NFKC.String(name))
}

// Create builds a meeting from spec and registers it in NotStarted.
func (e *Engine) Create(ctx context.Context, spec MeetingSpec) (*core.Meeting, error) {
	if strings.TrimSpace(spec.Topic) == "" {
		return nil, fmt.Errorf("%w: topic is required", core.ErrConfiguration)
	}
	if len(spec.Participants) == 0 {
		return nil, fmt.Errorf("%w: at least one participant is required", core.ErrConfiguration)
	}

	var modeOpts []func(o *mode.Options)
	if e.config.DefaultMaxRounds > 0 {
		modeOpts = append(modeOpts, mode.WithMaxRounds(e.config.DefaultMaxRounds))
	}
	// The mode's own end check must agree with the meeting ceiling.
	if spec.MaxRounds > 0 {
		modeOpts = append(modeOpts, mode.WithMaxRounds(spec.MaxRounds))
	}
	md, err := mode.New(spec.Mode, modeOpts...)
	if err != nil {
		return nil, err
	}

	participants := make([]core.Participant, 0, len(spec.Participants))
	seen := make(map[string]struct{}, len(spec.Participants))
	for _, ps := range spec.Participants {
		name := NormalizeName(ps.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: participant without name", core.ErrConfiguration)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate participant %q", core.ErrConfiguration, name)
		}
		seen[name] = struct{}{}

		p, err := e.participant(name, ps)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}

	summaryModel := spec.SummaryModel
	if summaryModel == "" {
		summaryModel = e.config.SummaryModel
	}

	m, err := core.NewMeeting(strings.TrimSpace(spec.Topic), md, participants, func(o *core.MeetingOptions) {
		o.ID = spec.MeetingID
		o.MaxRounds = spec.MaxRounds
		o.SummaryModel = summaryModel
		o.Clock = e.now
	})
	if err != nil {
		return nil, err
	}
	if err := e.store.Insert(m); err != nil {
		return nil, err
	}

	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackMeetingCreated, &CallbackContext{MeetingID: m.ID()}); err != nil {
		_ = e.store.Delete(m.ID())
		return nil, err
	}

	e.logger.Info("Meeting created", "meeting_id", m.ID(), "mode", md.Name(), "participants", len(participants), "max_rounds", m.MaxRounds())
	return m, nil
}

func (e *Engine) participant(name string, ps ParticipantSpec) (core.Participant, error) {
	profile := core.Profile{Personality: ps.Personality, Skills: ps.Skills}

	if ps.Human {
		return agent.NewHumanAgent(name, func(o *agent.HumanAgentOptions) {
			o.Role = ps.Role
			o.Profile = profile
			if e.config.HumanWaitTimeout > 0 {
				o.InputTimeout = e.config.HumanWaitTimeout
			}
		}), nil
	}

	llm, err := e.models.Resolve(ps.Model)
	if err != nil {
		return nil, fmt.Errorf("participant %q: %w", name, err)
	}
	optFns := append([]func(o *agent.ModelAgentOptions){func(o *agent.ModelAgentOptions) {
		o.Role = ps.Role
		o.Profile = profile
		o.Logger = e.rootLogger
	}}, e.agentOpts...)
	return agent.NewModelAgent(name, llm, optFns...), nil
}

// Stream drives the meeting and returns its events. The events channel is
// closed after the terminal event (waiting_human or meeting_end); a failure
// is delivered on the error channel. Unknown ids fail synchronously.
func (e *Engine) Stream(ctx context.Context, meetingID string) (<-chan core.Event, <-chan error, error) {
	m, err := e.store.Get(meetingID)
	if err != nil {
		return nil, nil, err
	}

	eventsCh := make(chan core.Event, e.config.EventBufferSize)
	errorsCh := make(chan error, 1)

	go func() {
		defer close(eventsCh)
		defer close(errorsCh)

		if err := e.drive(ctx, m, eventsCh); err != nil {
			if ctx.Err() != nil {
				e.logger.Info("Stream interrupted", "meeting_id", m.ID(), "error", err)
				return
			}
			e.logger.Error("Stream failed", "meeting_id", m.ID(), "error", err)
			errorsCh <- err
		}
	}()

	return eventsCh, errorsCh, nil
}

func (e *Engine) drive(ctx context.Context, m *core.Meeting, eventsCh chan<- core.Event) error {
	release, err := e.store.Acquire(ctx, m.ID())
	if err != nil {
		return err
	}
	defer release()

	wasEnded := m.Status() == core.StatusEnded
	hooked := e.callbacks.Has(CallbackEvent)

	err = e.runner.Drive(ctx, m, func(ev core.Event) error {
		if hooked {
			if err := e.callbacks.ExecuteCallbacks(ctx, CallbackEvent, &CallbackContext{MeetingID: m.ID(), Event: &ev}); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case eventsCh <- ev:
			return nil
		}
	})

	if !wasEnded && m.Status() == core.StatusEnded {
		e.onEnded(ctx, m)
	}
	return err
}

// onEnded archives the transcript. Archive failures are logged only; the
// meeting itself has ended either way.
func (e *Engine) onEnded(ctx context.Context, m *core.Meeting) {
	saveCtx := context.WithoutCancel(ctx)
	if err := e.archive.Save(saveCtx, m.Transcript()); err != nil {
		e.logger.Error("Failed to archive transcript", "meeting_id", m.ID(), "error", err)
	}
	if err := e.callbacks.ExecuteCallbacks(saveCtx, CallbackMeetingEnded, &CallbackContext{MeetingID: m.ID()}); err != nil {
		e.logger.Warn("Meeting ended callback failed", "meeting_id", m.ID(), "error", err)
	}
}

// StreamSync drives the meeting and collects all events.
func (e *Engine) StreamSync(ctx context.Context, meetingID string) ([]core.Event, error) {
	eventsCh, errorsCh, err := e.Stream(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	return Collect(ctx, eventsCh, errorsCh)
}

// Collect drains a Stream channel pair.
func Collect(ctx context.Context, eventsCh <-chan core.Event, errorsCh <-chan error) ([]core.Event, error) {
	var events []core.Event
	for {
		select {
		case <-ctx.Done():
			return events, ctx.Err()

		case event, ok := <-eventsCh:
			if !ok {
				select {
				case err := <-errorsCh:
					return events, err
				default:
					return events, nil
				}
			}
			events = append(events, event)

		case err, ok := <-errorsCh:
			if !ok {
				errorsCh = nil
				continue
			}
			if err != nil {
				return events, err
			}
		}
	}
}

// StartOrResume resumes the meeting named by spec.MeetingID when it is
// registered; otherwise it creates a new meeting from spec. The returned
// meeting is the one being streamed.
func (e *Engine) StartOrResume(ctx context.Context, spec MeetingSpec) (*core.Meeting, <-chan core.Event, <-chan error, error) {
	var (
		m   *core.Meeting
		err error
	)
	if spec.MeetingID != "" {
		m, err = e.store.Get(spec.MeetingID)
		if err == nil {
			e.logger.Info("Resuming meeting", "meeting_id", m.ID(), "status", m.Status())
		} else if !errors.Is(err, core.ErrUnknownSession) {
			return nil, nil, nil, err
		}
	}
	if m == nil {
		if m, err = e.Create(ctx, spec); err != nil {
			return nil, nil, nil, err
		}
	}

	eventsCh, errorsCh, err := e.Stream(ctx, m.ID())
	if err != nil {
		return nil, nil, nil, err
	}
	return m, eventsCh, errorsCh, nil
}

// SubmitHumanInput hands a message to a human participant. When that human
// is the current speaker the turn is recorded immediately; otherwise the
// message is buffered and consumed at the participant's next turn.
func (e *Engine) SubmitHumanInput(ctx context.Context, meetingID, participant, message string) (SubmitResult, error) {
	m, err := e.store.Get(meetingID)
	if err != nil {
		return SubmitResult{}, err
	}

	name := NormalizeName(participant)
	recorded, err := m.SubmitHumanInput(name, message)
	if err != nil {
		return SubmitResult{}, err
	}

	msg := fmt.Sprintf("已记录 %s 的发言", name)
	if !recorded {
		msg = fmt.Sprintf("已收到 %s 的输入，将在其下一次发言时使用", name)
	}
	e.logger.Info("Human input accepted", "meeting_id", meetingID, "participant", name, "recorded", recorded)

	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackHumanInput, &CallbackContext{MeetingID: meetingID, Participant: name}); err != nil {
		e.logger.Warn("Human input callback failed", "meeting_id", meetingID, "error", err)
	}

	return SubmitResult{
		Success:      true,
		Message:      msg,
		MeetingID:    meetingID,
		Status:       m.Status(),
		CurrentRound: m.CurrentRound(),
	}, nil
}

// Get returns a snapshot of a registered meeting.
func (e *Engine) Get(meetingID string) (core.MeetingSnapshot, error) {
	m, err := e.store.Get(meetingID)
	if err != nil {
		return core.MeetingSnapshot{}, err
	}
	return m.Snapshot(), nil
}

// List returns snapshots of all registered meetings, oldest first.
func (e *Engine) List() []core.MeetingSnapshot {
	meetings := e.store.List()
	res := make([]core.MeetingSnapshot, len(meetings))
	for i, m := range meetings {
		res[i] = m.Snapshot()
	}
	return res
}

// Transcript loads an archived transcript.
func (e *Engine) Transcript(ctx context.Context, meetingID string) (core.Transcript, error) {
	return e.archive.Load(ctx, meetingID)
}

// SearchTranscripts searches the archive.
func (e *Engine) SearchTranscripts(ctx context.Context, query string, limit int) ([]core.Transcript, error) {
	return e.archive.Search(ctx, query, limit)
}

// HumanTimeouts maps meeting ids to the humans whose wait exceeded the
// deadline at now. Nothing is cancelled; callers decide the policy.
func (e *Engine) HumanTimeouts(now time.Time) map[string][]string {
	res := make(map[string][]string)
	for _, m := range e.store.List() {
		if names := m.HumanTimeouts(now); len(names) > 0 {
			res[m.ID()] = names
		}
	}
	return res
}

// Sweep evicts meetings that ended more than the retention ago.
func (e *Engine) Sweep(now time.Time) []string {
	evicted := e.store.EvictEnded(now, e.config.Retention)
	if len(evicted) > 0 {
		e.logger.Info("Evicted ended meetings", "count", len(evicted), "meeting_ids", evicted)
	}
	return evicted
}

// RunJanitor sweeps and reports human timeouts every interval until ctx is
// done.
func (e *Engine) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := e.now()
			e.Sweep(now)
			for id, names := range e.HumanTimeouts(now) {
				e.logger.Warn("Human input overdue", "meeting_id", id, "participants", names)
			}
		}
	}
}
