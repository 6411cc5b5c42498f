// Package viewmodel derives display-ready projections from state
// slices. Builders run synchronously inside reducers, so they stay
// pure and cheap: viewport windowing keeps the amount of materialized
// text proportional to the visible screen, not to the data.
package viewmodel

import (
	"fmt"
	"image/color"
	"slices"

	"charm.land/lipgloss/v2"
	"github.com/mattn/go-runewidth"

	"prdash/internal/github"
	"prdash/internal/session"
	"prdash/internal/theme"
)

const titleWidth = 60

// PRRow is one rendered pull request line.
type PRRow struct {
	Number   int
	Text     string
	IsCursor bool
	Selected bool
	Style    lipgloss.Style
}

// PRTable is the cached view model of the repository panel.
type PRTable struct {
	Title        string
	FilterLabel  string
	Rows         []PRRow
	TotalCount   int // PRs after filtering
	ScrollOffset int
}

// FilterPRs returns the PRs whose titles match the filter, preserving
// order. The reducer navigates over this same projection, so cursor
// indices line up with rows.
func FilterPRs(prs []github.PR, f session.Filter) []github.PR {
	if f == session.FilterNone {
		return prs
	}
	var out []github.PR
	for _, pr := range prs {
		if f.Matches(pr.Title) {
			out = append(out, pr)
		}
	}
	return out
}

// BuildPRTable projects the selected repository's PR list. Only rows
// inside the [scroll, scroll+height) window are materialized.
func BuildPRTable(repo session.Repo, prs []github.PR, cursor int, selected []int, filter session.Filter, scroll, height int, th theme.Theme) PRTable {
	visible := FilterPRs(prs, filter)
	vm := PRTable{
		Title:        fmt.Sprintf("%s/%s (%s)", repo.Org, repo.Repo, repo.Branch),
		FilterLabel:  filter.Label(),
		TotalCount:   len(visible),
		ScrollOffset: scroll,
	}
	end := min(scroll+height, len(visible))
	for i := max(scroll, 0); i < end; i++ {
		pr := visible[i]
		isCursor := i == cursor
		isSelected := slices.Contains(selected, pr.Number)

		marker := " "
		if isSelected {
			marker = "●"
		}
		title := pr.Title
		if runewidth.StringWidth(title) > titleWidth {
			title = runewidth.Truncate(title, titleWidth-3, "...")
		}
		glyph, fg := prStatus(pr, th)
		row := PRRow{
			Number:   pr.Number,
			Text:     fmt.Sprintf("%s #%-5d %s %s  %s", marker, pr.Number, glyph, title, pr.Author.Login),
			IsCursor: isCursor,
			Selected: isSelected,
		}
		switch {
		case isCursor:
			row.Style = lipgloss.NewStyle().Bold(true).Foreground(th.SelectedFg).Background(th.SelectedBg)
		default:
			row.Style = lipgloss.NewStyle().Foreground(fg)
		}
		vm.Rows = append(vm.Rows, row)
	}
	return vm
}

// prStatus maps remote PR state to a glyph and color.
func prStatus(pr github.PR, th theme.Theme) (string, color.Color) {
	switch {
	case pr.IsDraft:
		return "◌", th.TextMuted
	case pr.Conflicted():
		return "✗", th.StatusError
	case pr.CIFailing():
		return "✗", th.StatusError
	case pr.CIPending():
		return "⋯", th.StatusWarning
	case pr.BehindBase():
		return "↻", th.StatusWarning
	case pr.Mergeable == "MERGEABLE":
		return "✓", th.StatusSuccess
	default:
		return "?", th.TextSecondary
	}
}
