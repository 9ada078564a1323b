package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/meetmesh/core"
	"github.com/hupe1980/meetmesh/logging"
	"github.com/hupe1980/meetmesh/summary"
)

// emptyTurnText is recorded when a participant finishes a turn without any
// answer text.
const emptyTurnText = "（本轮未发表意见）"

// Options configures the Runner.
type Options struct {
	// Summarizer produces the closing summary. Defaults to a summary.Service
	// without models, which always yields the deterministic fallback.
	Summarizer core.Summarizer

	// EventBufferSize is the buffer of the channel returned by Run.
	EventBufferSize int

	// Logger for structured logging.
	Logger logging.Logger
}

// Runner drives meetings turn by turn and narrates them as core.Events.
// A Runner is safe for concurrent use across meetings; a single meeting must
// only be driven by one caller at a time.
type Runner struct {
	summarizer      core.Summarizer
	eventBufferSize int
	logger          logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.Mutex
}

// New creates a Runner.
func New(optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize: 100,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Summarizer == nil {
		opts.Summarizer = summary.NewService(nil, func(o *summary.Options) { o.Logger = opts.Logger })
	}
	if opts.EventBufferSize < 0 {
		opts.EventBufferSize = 0
	}

	return &Runner{
		summarizer:      opts.Summarizer,
		eventBufferSize: opts.EventBufferSize,
		logger:          logging.With(opts.Logger, "component", "runner"),
		activeRuns:      make(map[string]context.CancelFunc),
	}
}

// Run drives the meeting in a goroutine. The events channel closes after the
// terminal event (wait or end) or on failure, which is reported on the error
// channel. The returned run id can be passed to Cancel.
func (r *Runner) Run(ctx context.Context, m *core.Meeting) (string, <-chan core.Event, <-chan error) {
	runID := core.NewID()
	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)

	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	go func() {
		defer close(eventsCh)
		defer close(errorsCh)
		defer func() {
			r.mu.Lock()
			delete(r.activeRuns, runID)
			r.mu.Unlock()
			cancel()
		}()

		err := r.Drive(runCtx, m, func(ev core.Event) error {
			select {
			case <-runCtx.Done():
				return runCtx.Err()
			case eventsCh <- ev:
				return nil
			}
		})
		if err != nil {
			errorsCh <- err
		}
	}()

	return runID, eventsCh, errorsCh
}

// Cancel stops an active run.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, ok := r.activeRuns[runID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}
	cancel()
	return nil
}

// ActiveRuns returns the number of runs in flight.
func (r *Runner) ActiveRuns() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.activeRuns)
}

// Drive advances the meeting until it waits for a human or ends, passing
// every event to emit in order. It returns nil in both terminal cases. An
// error from emit or a cancelled ctx stops the drive; turns already recorded
// stand and the meeting can be driven again later.
func (r *Runner) Drive(ctx context.Context, m *core.Meeting, emit func(core.Event) error) error {
	log := logging.With(r.logger, "meeting_id", m.ID())

	switch m.Status() {
	case core.StatusNotStarted:
		if err := m.Start(); err != nil {
			return err
		}
		log.Info("Meeting started", "topic", m.Topic(), "mode", m.Mode().Name(), "max_rounds", m.MaxRounds())
		if err := emit(r.event(m, core.EventMeetingStart, meetingHeader(m))); err != nil {
			return err
		}
	case core.StatusEnded:
		return r.replayEnd(m, emit)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if m.ShouldEnd() {
			return r.finalize(ctx, m, emit, log)
		}

		order, err := m.SpeakingOrder()
		if err != nil {
			return err
		}
		if m.CurrentSpeakerIndex() == 0 {
			log.Debug("Round started", "round", m.CurrentRound(), "order", order)
			if err := emit(r.event(m, core.EventRoundStart, fmt.Sprintf("\n## 第 %d 轮讨论\n\n", m.CurrentRound()))); err != nil {
				return err
			}
		}

		speaker, err := m.CurrentSpeaker()
		if err != nil {
			return err
		}
		waiting, err := r.takeTurn(ctx, m, speaker, emit, log)
		if err != nil {
			return err
		}
		if waiting {
			return nil
		}
	}
}

// takeTurn streams one turn. It reports true when the speaker turned out to
// be a human without input, in which case the meeting is left waiting.
func (r *Runner) takeTurn(ctx context.Context, m *core.Meeting, p core.Participant, emit func(core.Event) error, log logging.Logger) (bool, error) {
	round := m.CurrentRound()
	turnEvent := func(typ core.EventType, text string) core.Event {
		ev := r.event(m, typ, text)
		ev.Speaker = p.Name()
		return ev
	}

	if err := emit(turnEvent(core.EventSpeakerStart, speakerHeader(p))); err != nil {
		return false, err
	}

	req := core.TurnRequest{
		MeetingID: m.ID(),
		Topic:     m.Topic(),
		Round:     round,
		MaxRounds: m.MaxRounds(),
		Prompt:    m.Mode().PromptFor(m.PromptInputFor(p)),
		History:   m.History(),
	}

	start := time.Now()
	fragCh := p.RespondStream(ctx, req)
	abandon := func() {
		go func() {
			for range fragCh {
			}
		}()
	}

	var sb strings.Builder
	for frag := range fragCh {
		if frag.Channel == core.ChannelReasoning {
			if err := emit(turnEvent(core.EventReasoning, frag.Text)); err != nil {
				abandon()
				return false, err
			}
			continue
		}

		if name, ok := core.ParseHumanWaitSentinel(frag.Text); ok {
			abandon()
			if err := m.MarkWaiting(name); err != nil {
				if spoken, ok := lastTurnOf(m, name, round); ok && errors.Is(err, core.ErrInvalidState) {
					// input arrived between the sentinel and the wait
					if err := emit(turnEvent(core.EventContent, spoken)); err != nil {
						return false, err
					}
					return false, emit(turnEvent(core.EventSpeakerEnd, "\n\n"))
				}
				return false, err
			}
			log.Info("Waiting for human input", "participant", name, "round", round)
			ev := turnEvent(core.EventWaitingHuman, fmt.Sprintf("*（等待 %s 输入…）*\n", name))
			ev.Speaker = name
			ev.FinishReason = core.FinishReasonWaitingHuman
			return true, emit(ev)
		}

		sb.WriteString(frag.Text)
		if err := emit(turnEvent(core.EventContent, frag.Text)); err != nil {
			abandon()
			return false, err
		}
	}

	if err := ctx.Err(); err != nil {
		log.Warn("Turn interrupted", "participant", p.Name(), "round", round, "error", err)
		return false, err
	}

	content := sb.String()
	if strings.TrimSpace(content) == "" {
		content = emptyTurnText
		if err := emit(turnEvent(core.EventContent, content)); err != nil {
			return false, err
		}
	}

	if err := m.RecordTurn(p.Name(), content); err != nil {
		return false, err
	}
	log.Debug("Turn recorded", "participant", p.Name(), "round", round, "duration", time.Since(start), "chars", len([]rune(content)))

	return false, emit(turnEvent(core.EventSpeakerEnd, "\n\n"))
}

func (r *Runner) finalize(ctx context.Context, m *core.Meeting, emit func(core.Event) error, log logging.Logger) error {
	if err := emit(r.event(m, core.EventSummaryStart, "\n## 会议总结\n\n")); err != nil {
		return err
	}

	fragCh := r.summarizer.Summarize(ctx, core.SummaryRequest{
		MeetingID:      m.ID(),
		Topic:          m.Topic(),
		History:        m.History(),
		PromptTemplate: m.Mode().SummaryPromptTemplate(),
		ModelSelector:  m.SummaryModel(),
	})

	var sb strings.Builder
	for frag := range fragCh {
		sb.WriteString(frag)
		if err := emit(r.event(m, core.EventSummary, frag)); err != nil {
			go func() {
				for range fragCh {
				}
			}()
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	text := sb.String()
	if text == "" {
		text = summary.Fallback(m.Topic(), m.History())
		if err := emit(r.event(m, core.EventSummary, text)); err != nil {
			return err
		}
	}

	if _, err := m.Finish(text); err != nil {
		return err
	}
	log.Info("Meeting ended", "rounds", m.CurrentRound()-1, "turns", len(core.Turns(m.History())))

	return r.emitEnd(m, emit)
}

// replayEnd answers a drive of an ended meeting with its stored summary.
func (r *Runner) replayEnd(m *core.Meeting, emit func(core.Event) error) error {
	text, _ := m.Summary()
	if err := emit(r.event(m, core.EventSummaryStart, "\n## 会议总结\n\n")); err != nil {
		return err
	}
	if err := emit(r.event(m, core.EventSummary, text)); err != nil {
		return err
	}
	return r.emitEnd(m, emit)
}

func (r *Runner) emitEnd(m *core.Meeting, emit func(core.Event) error) error {
	ev := r.event(m, core.EventMeetingEnd, "\n\n---\n会议结束。\n")
	ev.FinishReason = core.FinishReasonStop
	return emit(ev)
}

func (r *Runner) event(m *core.Meeting, typ core.EventType, text string) core.Event {
	ev := core.NewEvent(m.ID(), typ, text)
	ev.Round = m.CurrentRound()
	return ev
}

func meetingHeader(m *core.Meeting) string {
	names := make([]string, 0, len(m.Participants()))
	for _, p := range m.Participants() {
		names = append(names, core.DescribeParticipant(p))
	}
	return fmt.Sprintf("# 会议：%s\n\n**模式**：%s｜**轮数上限**：%d\n**参与者**：%s\n",
		m.Topic(), m.Mode().Description(), m.MaxRounds(), strings.Join(names, "、"))
}

func lastTurnOf(m *core.Meeting, name string, round int) (string, bool) {
	history := m.History()
	if len(history) == 0 {
		return "", false
	}
	last := history[len(history)-1]
	if last.IsSummary() || last.Speaker != name || last.Round != round {
		return "", false
	}
	return last.Content, true
}

func speakerHeader(p core.Participant) string {
	return fmt.Sprintf("### %s\n\n", core.DescribeParticipant(p))
}

// IsInterrupted reports whether err stems from a cancelled or expired
// context rather than a meeting failure.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
