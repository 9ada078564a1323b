package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/hupe1980/meetmesh/core"
	"github.com/hupe1980/meetmesh/engine"
)

func newRunCmd(configPath *string) *cobra.Command {
	var (
		rosterPath    string
		showReasoning bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a meeting in the terminal",
		Long:  "run creates a meeting from a TOML roster and narrates it on stdout. Human participants answer on stdin when it is their turn.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := loadRoster(rosterPath)
			if err != nil {
				return err
			}

			mm, err := loadApp(cmd, *configPath)
			if err != nil {
				return err
			}
			defer mm.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			r := newRenderer(cmd.OutOrStdout(), showReasoning)
			return runMeeting(ctx, mm.Engine(), spec, cmd.InOrStdin(), r)
		},
	}
	cmd.Flags().StringVarP(&rosterPath, "roster", "r", "", "Roster TOML file")
	cmd.Flags().BoolVar(&showReasoning, "reasoning", false, "Print reasoning fragments")
	_ = cmd.MarkFlagRequired("roster")
	return cmd
}

// loadRoster decodes a meeting roster. Unknown keys are rejected so typos in
// participant tables surface early.
func loadRoster(path string) (engine.MeetingSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return engine.MeetingSpec{}, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	var spec engine.MeetingSpec
	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return engine.MeetingSpec{}, fmt.Errorf("%w: roster %s: %s", core.ErrConfiguration, path, strict.String())
		}
		return engine.MeetingSpec{}, fmt.Errorf("%w: roster %s: %v", core.ErrConfiguration, path, err)
	}
	return spec, nil
}

// runMeeting streams the meeting until it ends, reading one line of stdin
// for every human turn.
func runMeeting(ctx context.Context, e *engine.Engine, spec engine.MeetingSpec, in io.Reader, r *renderer) error {
	m, err := e.Create(ctx, spec)
	if err != nil {
		return err
	}

	lines := bufio.NewScanner(in)
	for {
		eventsCh, errorsCh, err := e.Stream(ctx, m.ID())
		if err != nil {
			return err
		}

		var last core.Event
		for ev := range eventsCh {
			if err := r.Render(ev); err != nil {
				return err
			}
			last = ev
		}
		if err, ok := <-errorsCh; ok && err != nil {
			return err
		}

		switch last.Type {
		case core.EventMeetingEnd:
			return nil
		case core.EventWaitingHuman:
		default:
			if err := ctx.Err(); err != nil {
				return err
			}
			return fmt.Errorf("stream of %s stopped without a terminal event", m.ID())
		}

		input, err := readInput(lines, r, last.Speaker)
		if err != nil {
			return err
		}
		res, err := e.SubmitHumanInput(ctx, m.ID(), last.Speaker, input)
		if err != nil {
			return err
		}
		if err := r.Notice(res.Message); err != nil {
			return err
		}
	}
}

func readInput(lines *bufio.Scanner, r *renderer, speaker string) (string, error) {
	for {
		if err := r.Prompt(speaker); err != nil {
			return "", err
		}
		if !lines.Scan() {
			if err := lines.Err(); err != nil {
				return "", fmt.Errorf("read input of %s: %w", speaker, err)
			}
			return "", fmt.Errorf("input closed while waiting for %s", speaker)
		}
		if text := strings.TrimSpace(lines.Text()); text != "" {
			return text, nil
		}
	}
}
