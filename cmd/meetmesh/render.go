package main

import (
	"fmt"
	"io"

	"github.com/hupe1980/meetmesh/core"
)

// renderer narrates events on a terminal.
type renderer struct {
	w             io.Writer
	st            styles
	showReasoning bool
	inReasoning   bool
}

func newRenderer(w io.Writer, showReasoning bool) *renderer {
	return &renderer{w: w, st: newStyles(w), showReasoning: showReasoning}
}

func (r *renderer) Render(ev core.Event) error {
	var out string
	switch ev.Type {
	case core.EventReasoning:
		if !r.showReasoning {
			return nil
		}
		out = r.st.reasoning.Render(ev.Text)
		r.inReasoning = true
	case core.EventMeetingStart:
		out = paint(r.st.title, ev.Text)
	case core.EventRoundStart:
		out = paint(r.st.round, ev.Text)
	case core.EventSpeakerStart:
		out = paint(r.st.speaker, ev.Text)
	case core.EventWaitingHuman:
		out = paint(r.st.waiting, ev.Text)
	case core.EventSummaryStart:
		out = paint(r.st.summary, ev.Text)
	case core.EventMeetingEnd:
		out = paint(r.st.footer, ev.Text)
	default:
		out = ev.Text
	}

	if ev.Type != core.EventReasoning && r.inReasoning {
		out = "\n" + out
		r.inReasoning = false
	}
	_, err := fmt.Fprint(r.w, out)
	return err
}

func (r *renderer) Prompt(speaker string) error {
	_, err := fmt.Fprint(r.w, r.st.prompt.Render(speaker+">")+" ")
	return err
}

func (r *renderer) Notice(text string) error {
	_, err := fmt.Fprintln(r.w, r.st.footer.Render(text))
	return err
}
