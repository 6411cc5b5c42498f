// Package tui is a thin shell over the engine: keys become dispatched
// actions, ticks pull a fresh state snapshot, and the view renders the
// cached view models. No domain logic lives here.
package tui

import (
	"time"

	tea "charm.land/bubbletea/v2"

	"prdash/internal/engine"
)

// Engine is the store surface the model needs.
type Engine interface {
	Dispatch(engine.Action)
	CurrentState() engine.State
}

const tickInterval = 200 * time.Millisecond

type Model struct {
	engine   Engine
	snapshot engine.State
}

type tickMsg time.Time

func NewModel(eng Engine) Model {
	return Model{engine: eng, snapshot: eng.CurrentState()}
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.engine.Dispatch(engine.SetViewport{Width: msg.Width, Height: msg.Height})
		return m, nil

	case tickMsg:
		m.engine.Dispatch(engine.Tick{Now: time.Time(msg)})
		m.snapshot = m.engine.CurrentState()
		if m.snapshot.UI.Quitting {
			return m, func() tea.Msg { return tea.QuitMsg{} }
		}
		return m, tickCmd()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Quitting works from anywhere.
	if key == "ctrl+c" || (key == "q" && !m.snapshot.UI.ShowHelp && m.snapshot.Logs == nil) {
		m.engine.Dispatch(engine.Quit{})
		return m, nil
	}

	if m.snapshot.UI.ShowHelp {
		switch key {
		case "?", "esc", "q":
			m.engine.Dispatch(engine.ToggleHelp{})
		case "up", "k":
			m.engine.Dispatch(engine.HelpScroll{Delta: -1})
		case "down", "j":
			m.engine.Dispatch(engine.HelpScroll{Delta: 1})
		}
		return m, nil
	}

	if m.snapshot.Logs != nil {
		m.dispatchLogKey(key)
		return m, nil
	}

	switch key {
	case "?":
		m.engine.Dispatch(engine.ToggleHelp{})
	case "up", "k":
		m.engine.Dispatch(engine.CursorUp{})
	case "down", "j":
		m.engine.Dispatch(engine.CursorDown{})
	case "tab":
		m.engine.Dispatch(engine.NextRepo{})
	case "shift+tab":
		m.engine.Dispatch(engine.PrevRepo{})
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		m.engine.Dispatch(engine.SelectRepo{Index: int(key[0] - '1')})
	case " ":
		m.engine.Dispatch(engine.ToggleSelect{})
	case "f":
		m.engine.Dispatch(engine.CycleFilter{})
	case "r":
		m.engine.Dispatch(engine.Refresh{})
	case "m":
		m.engine.Dispatch(engine.MergeSelected{})
	case "u":
		m.engine.Dispatch(engine.RebaseSelected{})
	case "x":
		m.engine.Dispatch(engine.RerunFailedSelected{})
	case "o":
		m.engine.Dispatch(engine.OpenInBrowser{})
	case "enter":
		m.engine.Dispatch(engine.OpenBuildLogs{})
	case "M":
		m.engine.Dispatch(engine.StartBot{})
	case "S":
		m.engine.Dispatch(engine.StopBot{})
	case "D":
		if pr, ok := m.snapshot.Repos.CursorPR(); ok {
			m.engine.Dispatch(engine.BotRemoveEntry{Number: pr.Number})
		}
	}
	return m, nil
}

func (m Model) dispatchLogKey(key string) {
	switch key {
	case "esc", "q":
		m.engine.Dispatch(engine.CloseLogPanel{})
	case "up", "k":
		m.engine.Dispatch(engine.LogCursorUp{})
	case "down", "j":
		m.engine.Dispatch(engine.LogCursorDown{})
	case "enter", " ":
		m.engine.Dispatch(engine.LogToggle{})
	case "e", "n":
		m.engine.Dispatch(engine.LogNextError{})
	case "E", "N":
		m.engine.Dispatch(engine.LogPrevError{})
	case "h", "left":
		m.engine.Dispatch(engine.LogScrollLeft{})
	case "l", "right":
		m.engine.Dispatch(engine.LogScrollRight{})
	case "t":
		m.engine.Dispatch(engine.LogToggleTimestamps{})
	case "?":
		m.engine.Dispatch(engine.ToggleHelp{})
	}
}

func (m Model) View() tea.View {
	v := tea.NewView(render(m.snapshot))
	v.AltScreen = true
	return v
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
