// Package mergebot holds the per-entry merge state machine and the
// queue scheduler. Everything here is pure: transitions take a Bot
// value and return a new one plus command descriptors; the engine
// turns commands into effects and feeds completions back in as
// further transitions.
package mergebot

import (
	"slices"
	"time"

	"prdash/internal/github"
)

// Phase is the per-entry machine state.
type Phase int

const (
	PhaseQueued Phase = iota
	PhaseNeedsRebase
	PhaseRebasing
	PhaseWaitingForCI
	PhaseReadyToMerge
	PhaseMerging
	PhaseMerged
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseQueued:
		return "queued"
	case PhaseNeedsRebase:
		return "needs rebase"
	case PhaseRebasing:
		return "rebasing"
	case PhaseWaitingForCI:
		return "waiting for CI"
	case PhaseReadyToMerge:
		return "ready to merge"
	case PhaseMerging:
		return "merging"
	case PhaseMerged:
		return "merged"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is the classified remote state of a pull request, the input
// that drives Queued and WaitingForCI branching.
type Status int

const (
	StatusUnknown Status = iota
	StatusBehind
	StatusConflicted
	StatusCIPending
	StatusCIFailing
	StatusClean
)

// Classify reduces a pull request to the status the machine branches
// on. Order matters: a conflicted or behind PR needs a rebase before
// its CI result is interesting.
func Classify(pr github.PR) Status {
	switch {
	case pr.Conflicted():
		return StatusConflicted
	case pr.BehindBase():
		return StatusBehind
	case pr.CIFailing():
		return StatusCIFailing
	case pr.CIPending():
		return StatusCIPending
	case pr.Mergeable == "MERGEABLE":
		return StatusClean
	default:
		return StatusUnknown
	}
}

// Entry tracks one pull request through the machine. Owned solely by
// the merge-bot state slice.
type Entry struct {
	Number    int
	Phase     Phase
	Attempts  int
	LastErr   string
	Permanent bool      // retry budget exhausted, terminal
	RetryAt   time.Time // deadline of the pending backoff retry, zero when none
}

// Config is the bot tuning; none of these values are hardcoded
// anywhere else.
type Config struct {
	MaxInFlight  int
	RetryBudget  int
	PollInterval time.Duration
	Backoff      time.Duration
}

// Bot is the orchestrator slice value.
type Bot struct {
	Running bool
	Cfg     Config
	Entries []Entry
}

// Commands describe work the engine must schedule. They carry enough
// data to execute independently of bot state.
type Command interface{ isCommand() }

// CheckStatus requests a fresh PR status fetch for the entry.
type CheckStatus struct{ Number int }

// Rebase requests an update-branch operation.
type Rebase struct{ Number int }

// Merge requests the merge operation.
type Merge struct{ Number int }

// Poll requests a CI re-check after the poll interval elapses.
type Poll struct {
	Number int
	After  time.Duration
}

// Retry requests a backoff timer after which the entry is re-queued.
type Retry struct {
	Number int
	After  time.Duration
}

func (CheckStatus) isCommand() {}
func (Rebase) isCommand()      {}
func (Merge) isCommand()       {}
func (Poll) isCommand()        {}
func (Retry) isCommand()       {}

// Start builds a running bot over the given PR numbers and emits one
// status check per entry. Status checks are cheap and not subject to
// the in-flight bound; only rebase and merge operations are.
func Start(cfg Config, numbers []int) (Bot, []Command) {
	b := Bot{Running: true, Cfg: cfg, Entries: make([]Entry, 0, len(numbers))}
	cmds := make([]Command, 0, len(numbers))
	for _, n := range numbers {
		b.Entries = append(b.Entries, Entry{Number: n, Phase: PhaseQueued})
		cmds = append(cmds, CheckStatus{Number: n})
	}
	return b, cmds
}

// Stop halts the bot. Entries keep their last-known phase; the engine
// cancels the bot's outstanding timers and polls separately.
func Stop(b Bot) Bot {
	b.Running = false
	return b
}

// Done reports whether every entry reached a terminal phase.
func (b Bot) Done() bool {
	for _, e := range b.Entries {
		if e.Phase != PhaseMerged && !(e.Phase == PhaseFailed && e.Permanent) {
			return false
		}
	}
	return len(b.Entries) > 0
}

// InFlight counts entries with a mutating network operation
// outstanding.
func (b Bot) InFlight() int {
	n := 0
	for _, e := range b.Entries {
		if e.Phase == PhaseRebasing || e.Phase == PhaseMerging {
			n++
		}
	}
	return n
}

// Entry returns the entry for a PR number.
func (b Bot) Entry(number int) (Entry, bool) {
	for _, e := range b.Entries {
		if e.Number == number {
			return e, true
		}
	}
	return Entry{}, false
}

// Counts summarizes terminal progress for display.
func (b Bot) Counts() (merged, failed int) {
	for _, e := range b.Entries {
		switch {
		case e.Phase == PhaseMerged:
			merged++
		case e.Phase == PhaseFailed && e.Permanent:
			failed++
		}
	}
	return merged, failed
}

// HandleStatus applies a completed status check. For a Queued entry
// this is the initial branch; for WaitingForCI it is the poll result.
// Any other phase ignores the update, which makes late or duplicate
// check completions harmless. now anchors the retry deadline when the
// check fails the entry; passing it in keeps the transition pure.
func HandleStatus(b Bot, number int, st Status, now time.Time) (Bot, []Command) {
	if !b.Running {
		return b, nil
	}
	i, ok := b.index(number)
	if !ok {
		return b, nil
	}
	b.Entries = slices.Clone(b.Entries)
	e := &b.Entries[i]

	switch e.Phase {
	case PhaseQueued:
		switch st {
		case StatusBehind, StatusConflicted:
			e.Phase = PhaseNeedsRebase
		case StatusCIPending:
			e.Phase = PhaseWaitingForCI
			return schedule(b, Poll{Number: number, After: b.Cfg.PollInterval})
		case StatusCIFailing:
			return fail(b, i, "CI failing", now)
		case StatusClean:
			e.Phase = PhaseReadyToMerge
		default:
			// Status unknown yet; ask again on the poll cadence.
			return b, []Command{Poll{Number: number, After: b.Cfg.PollInterval}}
		}
		return schedule(b)

	case PhaseWaitingForCI:
		switch st {
		case StatusClean:
			e.Phase = PhaseReadyToMerge
			return schedule(b)
		case StatusCIFailing:
			return fail(b, i, "CI failed", now)
		case StatusBehind, StatusConflicted:
			// Base moved while we waited; back through rebase.
			e.Phase = PhaseNeedsRebase
			return schedule(b)
		default:
			return b, []Command{Poll{Number: number, After: b.Cfg.PollInterval}}
		}

	default:
		return b, nil
	}
}

// HandleRebaseResult applies a finished rebase. Success moves the
// entry to CI waiting (the rebase invalidates previous runs); failure
// charges the retry budget.
func HandleRebaseResult(b Bot, number int, errMsg string, now time.Time) (Bot, []Command) {
	if !b.Running {
		return b, nil
	}
	i, ok := b.index(number)
	if !ok || b.Entries[i].Phase != PhaseRebasing {
		return b, nil
	}
	b.Entries = slices.Clone(b.Entries)
	if errMsg != "" {
		return fail(b, i, "rebase: "+errMsg, now)
	}
	b.Entries[i].Phase = PhaseWaitingForCI
	return schedule(b, Poll{Number: number, After: b.Cfg.PollInterval})
}

// HandleMergeResult applies a finished merge.
func HandleMergeResult(b Bot, number int, errMsg string, now time.Time) (Bot, []Command) {
	if !b.Running {
		return b, nil
	}
	i, ok := b.index(number)
	if !ok || b.Entries[i].Phase != PhaseMerging {
		return b, nil
	}
	b.Entries = slices.Clone(b.Entries)
	if errMsg != "" {
		return fail(b, i, "merge: "+errMsg, now)
	}
	b.Entries[i].Phase = PhaseMerged
	b.Entries[i].LastErr = ""
	return schedule(b)
}

// HandlePollDue re-issues the CI check when a poll timer fires.
func HandlePollDue(b Bot, number int) (Bot, []Command) {
	if !b.Running {
		return b, nil
	}
	e, ok := b.Entry(number)
	if !ok {
		return b, nil
	}
	switch e.Phase {
	case PhaseWaitingForCI, PhaseQueued:
		return b, []Command{CheckStatus{Number: number}}
	}
	return b, nil
}

// HandleRetryDue re-queues a retryable failed entry when its backoff
// elapses. The fresh status check routes it back to NeedsRebase or
// WaitingForCI according to the PR's actual state.
func HandleRetryDue(b Bot, number int) (Bot, []Command) {
	if !b.Running {
		return b, nil
	}
	i, ok := b.index(number)
	if !ok {
		return b, nil
	}
	e := b.Entries[i]
	if e.Phase != PhaseFailed || e.Permanent {
		return b, nil
	}
	b.Entries = slices.Clone(b.Entries)
	b.Entries[i].Phase = PhaseQueued
	b.Entries[i].RetryAt = time.Time{}
	return b, []Command{CheckStatus{Number: number}}
}

// Remove drops an entry from the queue (user action). In-flight
// operations for it complete but their results will no longer match
// an entry and fall through as no-ops.
func Remove(b Bot, number int) Bot {
	i, ok := b.index(number)
	if !ok {
		return b
	}
	b.Entries = slices.Delete(slices.Clone(b.Entries), i, i+1)
	return b
}

// schedule starts rebase/merge operations for entries that are ready,
// while keeping the number of in-flight mutating operations within
// the configured bound. Entries beyond the bound simply stay in their
// current phase until a slot frees.
func schedule(b Bot, extra ...Command) (Bot, []Command) {
	cmds := slices.Clone(extra)
	slots := b.Cfg.MaxInFlight - b.InFlight()
	for i := range b.Entries {
		if slots <= 0 {
			break
		}
		e := &b.Entries[i]
		switch e.Phase {
		case PhaseNeedsRebase:
			e.Phase = PhaseRebasing
			cmds = append(cmds, Rebase{Number: e.Number})
			slots--
		case PhaseReadyToMerge:
			e.Phase = PhaseMerging
			cmds = append(cmds, Merge{Number: e.Number})
			slots--
		}
	}
	return b, cmds
}

// fail records a failure on entry i, charging the retry budget. Under
// budget, a backoff timer re-queues the entry later and the entry
// remembers the deadline so the panel can count down to it; over
// budget the failure is permanent and other entries continue
// unaffected.
func fail(b Bot, i int, reason string, now time.Time) (Bot, []Command) {
	e := &b.Entries[i]
	e.Phase = PhaseFailed
	e.Attempts++
	e.LastErr = reason
	if e.Attempts > b.Cfg.RetryBudget {
		e.Permanent = true
		e.RetryAt = time.Time{}
		// The freed slot may unblock a waiting entry.
		return schedule(b)
	}
	e.RetryAt = now.Add(b.Cfg.Backoff)
	return schedule(b, Retry{Number: e.Number, After: b.Cfg.Backoff})
}

func (b Bot) index(number int) (int, bool) {
	for i, e := range b.Entries {
		if e.Number == number {
			return i, true
		}
	}
	return 0, false
}
