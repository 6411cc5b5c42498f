// Package engine is the reactive core of the dashboard. All state
// lives in a single State value owned by the Store's run loop; the
// only way to change it is to dispatch an Action, and the only way
// the reducer reaches the outside world is by returning Effects. The
// reducer itself is pure: same state and action, same result.
package engine

import (
	"time"

	"prdash/internal/github"
	"prdash/internal/logtree"
	"prdash/internal/mergebot"
	"prdash/internal/session"
	"prdash/internal/theme"
	"prdash/internal/viewmodel"
)

// State is the complete application state. Reducers treat it as
// immutable: they return a modified copy and clone any nested slice
// before touching it, so a snapshot handed to the view never changes
// underneath it.
type State struct {
	UI    UIState
	Repos ReposState
	Logs  *LogsState // nil while the log panel is closed
	Bot   *BotState  // nil until the merge bot is first started
	Task  TaskState
	Theme theme.Theme
}

// UIState holds viewport geometry and overlay flags.
type UIState struct {
	Width      int
	Height     int
	ShowHelp   bool
	HelpScroll int
	Tick       int
	Now        time.Time // wall clock of the latest time-stamped action
	Quitting   bool
}

// ReposState is the repository panel slice. PRs and the cached table
// always describe the selected repository; switching repositories
// drops both until the next load completes.
type ReposState struct {
	Repos    []session.Repo
	Selected int
	// Cursors holds one cursor per repository, indexing into the
	// filtered PR list. Persisted with the session.
	Cursors []int
	Filter  session.Filter
	// PRs is nil until a load for the selected repository completes.
	PRs    []github.PR
	Loaded bool
	// Marked holds the PR numbers of the multi-selection.
	Marked []int
	Scroll int
	VM     *viewmodel.PRTable
}

// Repo returns the selected repository.
func (r ReposState) Repo() session.Repo {
	if r.Selected < 0 || r.Selected >= len(r.Repos) {
		return session.Repo{}
	}
	return r.Repos[r.Selected]
}

// Cursor returns the selected repository's cursor.
func (r ReposState) Cursor() int {
	if r.Selected < 0 || r.Selected >= len(r.Cursors) {
		return 0
	}
	return r.Cursors[r.Selected]
}

// Visible returns the PRs after the title filter.
func (r ReposState) Visible() []github.PR {
	return viewmodel.FilterPRs(r.PRs, r.Filter)
}

// CursorPR returns the PR under the cursor in the filtered view.
func (r ReposState) CursorPR() (github.PR, bool) {
	v := r.Visible()
	c := r.Cursor()
	if c < 0 || c >= len(v) {
		return github.PR{}, false
	}
	return v[c], true
}

// LogsState is the build log panel slice.
type LogsState struct {
	PRNumber       int
	PRTitle        string
	Loading        bool
	Tree           *logtree.Tree
	Expanded       logtree.ExpansionSet
	Cursor         logtree.Path
	Scroll         int
	HScroll        int
	ShowTimestamps bool
	VM             *viewmodel.LogPanel
}

// BotState is the merge bot slice. Repo is pinned at start time so
// switching the selected repository mid-run cannot redirect the bot's
// operations.
type BotState struct {
	Repo session.Repo
	Bot  mergebot.Bot
	VM   *viewmodel.BotPanel
}

// TaskState is the status line slice.
type TaskState struct {
	Kind    viewmodel.TaskKind
	Message string
	VM      *viewmodel.Status
}
