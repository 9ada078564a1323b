package main

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title     lipgloss.Style
	round     lipgloss.Style
	speaker   lipgloss.Style
	reasoning lipgloss.Style
	waiting   lipgloss.Style
	summary   lipgloss.Style
	footer    lipgloss.Style
	prompt    lipgloss.Style
	modeName  lipgloss.Style
	modeMeta  lipgloss.Style
}

// newStyles binds the styles to w so colour is only emitted on terminals.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		round:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("159")),
		speaker:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		reasoning: r.NewStyle().Faint(true).Italic(true),
		waiting:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		summary:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("120")),
		footer:    r.NewStyle().Foreground(lipgloss.Color("245")),
		prompt:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		modeName:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		modeMeta:  r.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// paint styles text without its surrounding newlines so padding and escape
// codes never straddle line breaks.
func paint(s lipgloss.Style, text string) string {
	body := strings.Trim(text, "\n")
	if body == "" {
		return text
	}
	i := strings.Index(text, body)
	return text[:i] + s.Render(body) + text[i+len(body):]
}
