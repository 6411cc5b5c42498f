package viewmodel

import (
	"fmt"
	"time"

	"charm.land/lipgloss/v2"

	"prdash/internal/mergebot"
	"prdash/internal/theme"
)

// BotRow is one merge bot entry line.
type BotRow struct {
	Number int
	Text   string
	Style  lipgloss.Style
}

// BotPanel is the cached view model of the merge bot panel.
type BotPanel struct {
	Running bool
	Summary string
	Rows    []BotRow
}

// BuildBotPanel projects the bot's entry table. The caller holds the
// convention that a never-started bot has no panel at all. now drives
// the retry countdown on transiently failed entries; rebuilding on
// every tick keeps it current.
func BuildBotPanel(b mergebot.Bot, prTitles map[int]string, now time.Time, th theme.Theme) BotPanel {
	merged, failed := b.Counts()
	vm := BotPanel{
		Running: b.Running,
		Summary: fmt.Sprintf("merged %d · failed %d · in flight %d · total %d",
			merged, failed, b.InFlight(), len(b.Entries)),
	}
	for _, e := range b.Entries {
		title := prTitles[e.Number]
		text := fmt.Sprintf("#%-5d %s %s", e.Number, padTo(e.Phase.String(), 12), title)
		if e.Phase == mergebot.PhaseFailed && e.LastErr != "" {
			text += " — " + e.LastErr
		}
		if e.Attempts > 0 && e.Phase != mergebot.PhaseMerged {
			text += fmt.Sprintf(" (attempt %d)", e.Attempts)
		}
		if e.Phase == mergebot.PhaseFailed && !e.Permanent && !e.RetryAt.IsZero() {
			text += " · retry in " + FormatDuration(max(0, e.RetryAt.Sub(now)))
		}
		vm.Rows = append(vm.Rows, BotRow{
			Number: e.Number,
			Text:   text,
			Style:  phaseStyle(e.Phase, th),
		})
	}
	return vm
}

func phaseStyle(p mergebot.Phase, th theme.Theme) lipgloss.Style {
	switch p {
	case mergebot.PhaseMerged:
		return lipgloss.NewStyle().Foreground(th.StatusSuccess)
	case mergebot.PhaseFailed:
		return lipgloss.NewStyle().Foreground(th.StatusError)
	case mergebot.PhaseRebasing, mergebot.PhaseMerging:
		return lipgloss.NewStyle().Foreground(th.AccentPrimary)
	case mergebot.PhaseWaitingForCI:
		return lipgloss.NewStyle().Foreground(th.StatusWarning)
	default:
		return lipgloss.NewStyle().Foreground(th.TextSecondary)
	}
}
