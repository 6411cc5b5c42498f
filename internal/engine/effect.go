package engine

import (
	"time"

	"prdash/internal/github"
	"prdash/internal/session"
)

// Effect is a side effect requested by the reducer. The executor runs
// effects concurrently; whatever an effect learns re-enters the engine
// as a follow-up Action. Effect failures become failure Actions, never
// panics or lost errors.
type Effect interface{ isEffect() }

type (
	// LoadSession reads the persisted session from disk.
	LoadSession struct{}
	// SaveSession writes the session to disk. Fire and forget: a
	// failed save is logged, not surfaced.
	SaveSession struct{ Session session.Session }

	// LoadRepoPRs lists the open PRs of a repository.
	LoadRepoPRs struct{ Repo session.Repo }

	// DoMerge merges one PR with the configured method.
	DoMerge struct {
		Repo   session.Repo
		Number int
	}
	// DoRebase updates one PR branch onto its base.
	DoRebase struct {
		Repo   session.Repo
		Number int
	}
	// DoRerun re-queues the failed CI jobs of one PR.
	DoRerun struct {
		Repo session.Repo
		PR   github.PR
	}

	// LoadBuildLogs fetches and splits the CI logs of one PR.
	LoadBuildLogs struct {
		Repo session.Repo
		PR   github.PR
	}

	// OpenBrowser opens a URL with the system opener.
	OpenBrowser struct{ URL string }

	// BotCheckStatus fetches fresh merge/CI status for a bot entry.
	BotCheckStatus struct {
		Repo   session.Repo
		Number int
	}
	// BotRebase rebases a bot entry's branch.
	BotRebase struct {
		Repo   session.Repo
		Number int
	}
	// BotMerge merges a bot entry.
	BotMerge struct {
		Repo   session.Repo
		Number int
	}

	// StartTimer dispatches Then after the delay, unless the timer's
	// subsystem is cancelled first.
	StartTimer struct {
		Subsystem string
		After     time.Duration
		Then      Action
	}
	// CancelSubsystem cancels every outstanding timer and operation
	// started under the subsystem. Nothing started under it dispatches
	// afterwards.
	CancelSubsystem struct{ Subsystem string }
)

func (LoadSession) isEffect()     {}
func (SaveSession) isEffect()     {}
func (LoadRepoPRs) isEffect()     {}
func (DoMerge) isEffect()         {}
func (DoRebase) isEffect()        {}
func (DoRerun) isEffect()         {}
func (LoadBuildLogs) isEffect()   {}
func (OpenBrowser) isEffect()     {}
func (BotCheckStatus) isEffect()  {}
func (BotRebase) isEffect()       {}
func (BotMerge) isEffect()        {}
func (StartTimer) isEffect()      {}
func (CancelSubsystem) isEffect() {}
