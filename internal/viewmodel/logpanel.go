package viewmodel

import (
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/mattn/go-runewidth"

	"prdash/internal/logtree"
	"prdash/internal/theme"
)

// LogRow is one rendered line of the build log panel: either a tree
// node header or a log line.
type LogRow struct {
	Path     logtree.Path
	Text     string
	IsCursor bool
	Style    lipgloss.Style
}

// LogPanel is the cached view model of the build log panel. Only
// visible rows are rendered; TotalRows is the full flattened length so
// the view can draw a scroll position.
type LogPanel struct {
	Title          string
	Rows           []LogRow
	TotalRows      int
	ScrollOffset   int
	TotalErrors    int
	ShowTimestamps bool
}

// BuildLogPanel flattens the expanded tree and renders the rows inside
// the [scroll, scroll+height) window.
func BuildLogPanel(t *logtree.Tree, exp logtree.ExpansionSet, cursor logtree.Path, scroll, hscroll, height int, showTS bool, prNumber int, prTitle string, th theme.Theme) LogPanel {
	vm := LogPanel{
		Title:          fmt.Sprintf("#%d %s", prNumber, prTitle),
		ScrollOffset:   scroll,
		TotalErrors:    t.TotalErrors(),
		ShowTimestamps: showTS,
	}
	i := 0
	for p := range logtree.FlattenVisible(t, exp) {
		if i >= scroll && i < scroll+height {
			vm.Rows = append(vm.Rows, renderLogRow(t, exp, p, cursor.Equal(p), hscroll, showTS, th))
		}
		i++
	}
	vm.TotalRows = i
	return vm
}

func renderLogRow(t *logtree.Tree, exp logtree.ExpansionSet, p logtree.Path, isCursor bool, hscroll int, showTS bool, th theme.Theme) LogRow {
	row := LogRow{Path: p, IsCursor: isCursor}
	indent := strings.Repeat("  ", len(p)-1)

	switch len(p) {
	case 1:
		w := t.Workflows[p[0]]
		row.Text = fmt.Sprintf("%s %s %s%s", expandIcon(t, exp, p), statusGlyph(w.HasFailures), w.Name, errorSuffix(w.ErrorCount))
		row.Style = nodeStyle(w.HasFailures, th).Bold(true)
	case 2:
		j := t.Workflows[p[0]].Jobs[p[1]]
		text := fmt.Sprintf("%s%s %s %s", indent, expandIcon(t, exp, p), statusGlyph(j.HasFailures), j.Name)
		if j.Duration > 0 {
			text += " " + FormatDuration(j.Duration)
		}
		row.Text = text + errorSuffix(j.ErrorCount)
		row.Style = nodeStyle(j.HasFailures, th)
	case 3:
		s := t.Workflows[p[0]].Jobs[p[1]].Steps[p[2]]
		row.Text = fmt.Sprintf("%s%s %s %s%s", indent, expandIcon(t, exp, p), statusGlyph(s.HasFailures), s.Name, errorSuffix(s.ErrorCount))
		row.Style = nodeStyle(s.HasFailures, th)
	case 4:
		l, _ := t.Line(p)
		text := l.Text
		if hscroll > 0 {
			r := []rune(text)
			if hscroll < len(r) {
				text = string(r[hscroll:])
			} else {
				text = ""
			}
		}
		if showTS && l.Timestamp != "" {
			text = l.Timestamp + " " + text
		}
		row.Text = indent + text
		switch {
		case l.IsError:
			row.Style = lipgloss.NewStyle().Foreground(th.StatusError)
		case l.IsCommand:
			row.Style = lipgloss.NewStyle().Foreground(th.AccentPrimary)
		default:
			row.Style = lipgloss.NewStyle().Foreground(th.TextSecondary)
		}
	}
	if isCursor {
		row.Style = row.Style.Background(th.SelectedBg).Foreground(th.SelectedFg)
	}
	return row
}

func expandIcon(t *logtree.Tree, exp logtree.ExpansionSet, p logtree.Path) string {
	if t.ChildCount(p) == 0 {
		return " "
	}
	if exp.Contains(p) {
		return "▼"
	}
	return "▶"
}

func statusGlyph(failing bool) string {
	if failing {
		return "✗"
	}
	return "✓"
}

func errorSuffix(n int) string {
	switch n {
	case 0:
		return ""
	case 1:
		return " (1 error)"
	default:
		return fmt.Sprintf(" (%d errors)", n)
	}
}

func nodeStyle(failing bool, th theme.Theme) lipgloss.Style {
	if failing {
		return lipgloss.NewStyle().Foreground(th.StatusError)
	}
	return lipgloss.NewStyle().Foreground(th.TextPrimary)
}

// FormatDuration renders a duration as "1m 30s" style text, matching
// the job duration column width expectations.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d / time.Minute)
	s := int(d/time.Second) % 60
	if m == 0 {
		return fmt.Sprintf("%ds", s)
	}
	return fmt.Sprintf("%dm %ds", m, s)
}

// padTo right-pads text with spaces to the given display width,
// truncating when wider.
func padTo(text string, width int) string {
	w := runewidth.StringWidth(text)
	if w > width {
		return runewidth.Truncate(text, width, "…")
	}
	return text + strings.Repeat(" ", width-w)
}
