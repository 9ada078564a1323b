// Package summary implements core.Summarizer on top of a model.Resolver.
// The moderator prompt comes from the meeting mode; when the model cannot be
// resolved or its stream fails the service substitutes a deterministic
// summary so a meeting can always end.
package summary

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

// Options configures the Service.
type Options struct {
	// Timeout bounds one summary generation; zero disables it.
	Timeout time.Duration
	// Temperature of the summary call; nil keeps the model default.
	Temperature *float64
	Logger      logging.Logger
}

// Service is the default core.Summarizer.
type Service struct {
	models model.Resolver
	opts   Options
	logger logging.Logger
}

var _ core.Summarizer = (*Service)(nil)

// NewService creates a summarizer resolving models through models.
func NewService(models model.Resolver, optFns ...func(o *Options)) *Service {
	opts := Options{
		Timeout: 2 * time.Minute,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Service{
		models: models,
		opts:   opts,
		logger: logging.With(opts.Logger, "component", "summary"),
	}
}

// Summarize implements core.Summarizer. The channel never carries an error:
// failures before any output yield Fallback, failures after partial output
// append Fallback after a blank line.
func (s *Service) Summarize(ctx context.Context, req core.SummaryRequest) <-chan string {
	out := make(chan string, 16)

	go func() {
		defer close(out)

		send := func(text string) bool {
			select {
			case <-ctx.Done():
				return false
			case out <- text:
				return true
			}
		}

		fallback := Fallback(req.Topic, req.History)

		if s.models == nil {
			send(fallback)
			return
		}
		m, err := s.models.Resolve(req.ModelSelector)
		if err != nil {
			s.logger.Warn("Summary model unavailable, using fallback", "meeting_id", req.MeetingID, "error", err)
			send(fallback)
			return
		}

		callCtx := ctx
		if s.opts.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
			defer cancel()
		}

		respCh, errCh := m.Generate(callCtx, model.Request{
			Messages:    []model.Message{{Role: model.RoleUser, Content: RenderPrompt(req.PromptTemplate, req.Topic, req.History)}},
			Temperature: s.opts.Temperature,
		})

		started := false
		for resp := range respCh {
			if !resp.Partial || resp.Channel != core.ChannelAnswer || resp.Text == "" {
				continue
			}
			if !send(resp.Text) {
				go func() {
					for range respCh {
					}
					<-errCh
				}()
				return
			}
			started = true
		}

		err = <-errCh
		if err == nil && started {
			return
		}
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = fmt.Errorf("%w: empty summary", core.ErrUpstreamModel)
		}
		s.logger.Warn("Summary generation failed, using fallback", "meeting_id", req.MeetingID, "partial", started, "error", err)
		if started {
			send("\n\n" + fallback)
			return
		}
		send(fallback)
	}()

	return out
}

// SummarizeText drains Summarize into one string.
func (s *Service) SummarizeText(ctx context.Context, req core.SummaryRequest) string {
	var sb strings.Builder
	for frag := range s.Summarize(ctx, req) {
		sb.WriteString(frag)
	}
	return sb.String()
}

// Fallback renders the deterministic summary from the topic and the number
// of recorded turns.
func Fallback(topic string, history []core.MessageEntry) string {
	return fmt.Sprintf("本次会议围绕「%s」展开讨论，共产生 %d 条发言。总结服务暂时不可用，请查阅完整会议记录。", topic, len(core.Turns(history)))
}

// RenderPrompt fills the {topic} and {history} placeholders of a mode's
// summary template.
func RenderPrompt(template, topic string, history []core.MessageEntry) string {
	return util.ReplacePlaceholders(template, map[string]string{
		"topic":   topic,
		"history": FormatHistory(history),
	})
}

// FormatHistory renders turns as "【第N轮】speaker：content" paragraphs.
func FormatHistory(history []core.MessageEntry) string {
	var sb strings.Builder
	for i, e := range core.Turns(history) {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "【第%d轮】%s：%s", e.Round, e.Speaker, e.Content)
	}
	return sb.String()
}
