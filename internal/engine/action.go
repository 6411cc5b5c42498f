package engine

import (
	"time"

	"prdash/internal/github"
	"prdash/internal/mergebot"
	"prdash/internal/session"
)

// Action is a closed description of something that happened: a key
// press, a finished network call, a timer firing. Actions carry data,
// never behavior. An action the reducer does not recognize is a no-op.
type Action interface{ isAction() }

// Lifecycle and UI actions.
type (
	// Bootstrap kicks off session loading; dispatched once at startup.
	Bootstrap struct{}

	// SessionLoaded carries the restored (possibly empty) session.
	SessionLoaded struct{ Session session.Session }

	// SessionLoadFailed reports a corrupt or unreadable session file.
	// The dashboard starts from an empty session.
	SessionLoadFailed struct{ Err string }

	// Quit asks the engine to persist the session and shut down.
	Quit struct{}

	// Tick advances the spinner and other time-based display state.
	// Now is the wall clock at dispatch; the reducer stores it so
	// countdown displays stay pure.
	Tick struct{ Now time.Time }

	// SetViewport records a terminal resize.
	SetViewport struct{ Width, Height int }

	// ToggleHelp shows or hides the help overlay.
	ToggleHelp struct{}

	// HelpScroll scrolls the help overlay by Delta lines.
	HelpScroll struct{ Delta int }
)

// Repository panel actions.
type (
	SelectRepo struct{ Index int }
	NextRepo   struct{}
	PrevRepo   struct{}

	CursorUp   struct{}
	CursorDown struct{}

	// ToggleSelect marks or unmarks the PR under the cursor.
	ToggleSelect struct{}

	// CycleFilter advances the title filter to its next value.
	CycleFilter struct{}

	// Refresh reloads the selected repository's PR list.
	Refresh struct{}

	// RefreshDue is the periodic refresh timer firing.
	RefreshDue struct{}

	PRsLoaded struct {
		Repo session.Repo
		PRs  []github.PR
	}
	PRsLoadFailed struct {
		Repo session.Repo
		Err  string
	}
)

// PR operation actions. "Selected" operations act on the marked PRs,
// falling back to the PR under the cursor when nothing is marked.
type (
	MergeSelected       struct{}
	RebaseSelected      struct{}
	RerunFailedSelected struct{}
	OpenInBrowser       struct{}

	MergeFinished struct {
		Number int
		Err    string
	}
	RebaseFinished struct {
		Number int
		Err    string
	}
	RerunFinished struct {
		Number int
		Err    string
	}
)

// Build log panel actions.
type (
	// OpenBuildLogs opens the log panel for the PR under the cursor.
	OpenBuildLogs struct{}

	LogsLoaded struct {
		Number int
		Title  string
		Jobs   []github.JobLog
	}
	LogsLoadFailed struct {
		Number int
		Err    string
	}

	CloseLogPanel struct{}

	LogCursorUp   struct{}
	LogCursorDown struct{}

	// LogToggle expands or collapses the node under the cursor.
	LogToggle struct{}

	// LogNextError jumps to the next error line in document order.
	LogNextError struct{}
	// LogPrevError jumps to the previous error line.
	LogPrevError struct{}

	LogScrollLeft  struct{}
	LogScrollRight struct{}

	LogToggleTimestamps struct{}
)

// Merge bot actions.
type (
	// StartBot queues the marked PRs (or the cursor PR) and starts
	// working through them.
	StartBot struct{}
	// StopBot freezes the bot; entries keep their last phase.
	StopBot struct{}

	BotStatusChecked struct {
		Number int
		Status mergebot.Status
		Err    string
		Now    time.Time
	}
	BotRebaseFinished struct {
		Number int
		Err    string
		Now    time.Time
	}
	BotMergeFinished struct {
		Number int
		Err    string
		Now    time.Time
	}
	BotPollDue  struct{ Number int }
	BotRetryDue struct{ Number int }

	BotRemoveEntry struct{ Number int }
)

func (Bootstrap) isAction()         {}
func (SessionLoaded) isAction()     {}
func (SessionLoadFailed) isAction() {}
func (Quit) isAction()              {}
func (Tick) isAction()              {}
func (SetViewport) isAction()       {}
func (ToggleHelp) isAction()        {}
func (HelpScroll) isAction()        {}

func (SelectRepo) isAction()    {}
func (NextRepo) isAction()      {}
func (PrevRepo) isAction()      {}
func (CursorUp) isAction()      {}
func (CursorDown) isAction()    {}
func (ToggleSelect) isAction()  {}
func (CycleFilter) isAction()   {}
func (Refresh) isAction()       {}
func (RefreshDue) isAction()    {}
func (PRsLoaded) isAction()     {}
func (PRsLoadFailed) isAction() {}

func (MergeSelected) isAction()       {}
func (RebaseSelected) isAction()      {}
func (RerunFailedSelected) isAction() {}
func (OpenInBrowser) isAction()       {}
func (MergeFinished) isAction()       {}
func (RebaseFinished) isAction()      {}
func (RerunFinished) isAction()       {}

func (OpenBuildLogs) isAction()       {}
func (LogsLoaded) isAction()          {}
func (LogsLoadFailed) isAction()      {}
func (CloseLogPanel) isAction()       {}
func (LogCursorUp) isAction()         {}
func (LogCursorDown) isAction()       {}
func (LogToggle) isAction()           {}
func (LogNextError) isAction()        {}
func (LogPrevError) isAction()        {}
func (LogScrollLeft) isAction()       {}
func (LogScrollRight) isAction()      {}
func (LogToggleTimestamps) isAction() {}

func (StartBot) isAction()          {}
func (StopBot) isAction()           {}
func (BotStatusChecked) isAction()  {}
func (BotRebaseFinished) isAction() {}
func (BotMergeFinished) isAction()  {}
func (BotPollDue) isAction()        {}
func (BotRetryDue) isAction()       {}
func (BotRemoveEntry) isAction()    {}
