package viewmodel

import (
	"charm.land/lipgloss/v2"

	"prdash/internal/theme"
)

// TaskKind classifies the status line message.
type TaskKind int

const (
	TaskInfo TaskKind = iota
	TaskBusy
	TaskSuccess
	TaskError
)

// spinnerFrames matches the braille spinner used for in-flight tasks.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Status is the rendered status line.
type Status struct {
	Text  string
	Style lipgloss.Style
}

// BuildStatus renders the status line. Busy tasks get a spinner frame
// advanced by the tick counter.
func BuildStatus(kind TaskKind, message string, tick int, th theme.Theme) Status {
	st := Status{Text: message}
	switch kind {
	case TaskBusy:
		st.Text = spinnerFrames[tick%len(spinnerFrames)] + " " + message
		st.Style = lipgloss.NewStyle().Foreground(th.AccentPrimary)
	case TaskSuccess:
		st.Style = lipgloss.NewStyle().Foreground(th.StatusSuccess)
	case TaskError:
		st.Style = lipgloss.NewStyle().Foreground(th.StatusError)
	default:
		st.Style = lipgloss.NewStyle().Foreground(th.TextSecondary)
	}
	return st
}
