package tui

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"prdash/internal/engine"
)

func render(s engine.State) string {
	var b strings.Builder

	b.WriteString(renderHeader(s))
	b.WriteString("\n")

	switch {
	case s.UI.ShowHelp:
		b.WriteString(renderHelp(s))
	case s.Logs != nil:
		b.WriteString(renderLogPanel(s))
	default:
		b.WriteString(renderPRTable(s))
		if s.Bot != nil && s.Bot.VM != nil {
			b.WriteString("\n")
			b.WriteString(renderBotPanel(s))
		}
	}

	b.WriteString("\n")
	b.WriteString(renderStatus(s))
	return b.String()
}

func renderHeader(s engine.State) string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(s.Theme.HeaderFg).
		Background(s.Theme.HeaderBg).
		PaddingLeft(1).
		PaddingRight(1)
	tabStyle := lipgloss.NewStyle().Foreground(s.Theme.TextMuted)
	activeTabStyle := lipgloss.NewStyle().Bold(true).Foreground(s.Theme.AccentPrimary)

	parts := []string{headerStyle.Render("prdash")}
	for i, r := range s.Repos.Repos {
		label := fmt.Sprintf("%d:%s", i+1, r.Repo)
		if i == s.Repos.Selected {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, tabStyle.Render(label))
		}
	}
	if f := s.Repos.Filter.Label(); f != "" {
		parts = append(parts, tabStyle.Render("filter:"+f))
	}
	return strings.Join(parts, " │ ")
}

func renderPRTable(s engine.State) string {
	vm := s.Repos.VM
	emptyStyle := lipgloss.NewStyle().Foreground(s.Theme.TextMuted).Italic(true)
	if vm == nil {
		return emptyStyle.Render("  loading…")
	}
	var b strings.Builder
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(s.Theme.AccentSecondary)
	b.WriteString(titleStyle.Render(vm.Title))
	b.WriteString("\n")
	if len(vm.Rows) == 0 {
		b.WriteString(emptyStyle.Render("  (no open PRs)"))
		return b.String()
	}
	for _, row := range vm.Rows {
		b.WriteString(row.Style.Render(row.Text))
		b.WriteString("\n")
	}
	if vm.TotalCount > len(vm.Rows) {
		b.WriteString(emptyStyle.Render(fmt.Sprintf("  %d-%d of %d",
			vm.ScrollOffset+1, vm.ScrollOffset+len(vm.Rows), vm.TotalCount)))
	}
	return b.String()
}

func renderLogPanel(s engine.State) string {
	emptyStyle := lipgloss.NewStyle().Foreground(s.Theme.TextMuted).Italic(true)
	if s.Logs.Loading || s.Logs.VM == nil {
		return emptyStyle.Render(fmt.Sprintf("  fetching logs of #%d…", s.Logs.PRNumber))
	}
	vm := s.Logs.VM
	var b strings.Builder
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(s.Theme.AccentSecondary)
	b.WriteString(titleStyle.Render(vm.Title))
	if vm.TotalErrors > 0 {
		errStyle := lipgloss.NewStyle().Bold(true).Foreground(s.Theme.StatusError)
		b.WriteString("  ")
		b.WriteString(errStyle.Render(fmt.Sprintf("%d errors", vm.TotalErrors)))
	}
	b.WriteString("\n")
	if len(vm.Rows) == 0 {
		b.WriteString(emptyStyle.Render("  (no CI logs)"))
		return b.String()
	}
	for _, row := range vm.Rows {
		b.WriteString(row.Style.Render(row.Text))
		b.WriteString("\n")
	}
	if vm.TotalRows > len(vm.Rows) {
		b.WriteString(emptyStyle.Render(fmt.Sprintf("  %d-%d of %d",
			vm.ScrollOffset+1, vm.ScrollOffset+len(vm.Rows), vm.TotalRows)))
	}
	return b.String()
}

func renderBotPanel(s engine.State) string {
	vm := s.Bot.VM
	var b strings.Builder
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(s.Theme.AccentSecondary)
	state := "stopped"
	if vm.Running {
		state = "running"
	}
	b.WriteString(titleStyle.Render("merge bot (" + state + ")"))
	b.WriteString("  ")
	b.WriteString(lipgloss.NewStyle().Foreground(s.Theme.TextMuted).Render(vm.Summary))
	b.WriteString("\n")
	for _, row := range vm.Rows {
		b.WriteString(row.Style.Render(row.Text))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderStatus(s engine.State) string {
	if s.Task.VM == nil {
		return ""
	}
	hint := lipgloss.NewStyle().Foreground(s.Theme.TextMuted).
		Render("   ?:help q:quit")
	return s.Task.VM.Style.Render(s.Task.VM.Text) + hint
}

var helpLines = []string{
	"Keys",
	"",
	"  j/k, ↑/↓      move cursor",
	"  tab/shift+tab  next/previous repository",
	"  1-9            select repository",
	"  space          mark/unmark PR",
	"  f              cycle title filter",
	"  r              refresh PR list",
	"",
	"  m              merge marked (or cursor) PRs",
	"  u              update branch of marked PRs",
	"  x              re-run failed CI jobs",
	"  o              open PR in browser",
	"  enter          open CI logs",
	"",
	"  M              start merge bot on marked PRs",
	"  S              stop merge bot",
	"  D              remove cursor PR from merge bot",
	"",
	"Log panel",
	"",
	"  enter/space    expand or collapse node",
	"  e / E          jump to next / previous error",
	"  h/l, ←/→       scroll horizontally",
	"  t              toggle timestamps",
	"  esc            close panel",
	"",
	"  ?              close this help",
}

func renderHelp(s engine.State) string {
	height := max(1, s.UI.Height-4)
	start := min(s.UI.HelpScroll, max(0, len(helpLines)-height))
	end := min(start+height, len(helpLines))
	style := lipgloss.NewStyle().Foreground(s.Theme.TextPrimary)
	var b strings.Builder
	for _, line := range helpLines[start:end] {
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
