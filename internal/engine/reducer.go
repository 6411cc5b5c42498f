package engine

import (
	"fmt"
	"slices"
	"time"

	"prdash/internal/github"
	"prdash/internal/mergebot"
	"prdash/internal/session"
	"prdash/internal/viewmodel"
)

// Options is the engine's tuning, sourced from configuration. The
// reducer takes it as an explicit argument so reductions stay pure.
type Options struct {
	RefreshInterval time.Duration
	MergeMethod     string // squash | merge
	Bot             mergebot.Config
	// SeedRepos populates the repository list when no session exists.
	SeedRepos []session.Repo
}

// Timer subsystems. Cancelling a subsystem guarantees that nothing
// started under it dispatches afterwards.
const (
	subRefresh = "refresh"
	subBot     = "bot"
)

// Reduce applies one action to the state and returns the next state
// plus the effects to run. Unrecognized actions return the state
// unchanged with no effects.
func Reduce(s State, a Action, o Options) (State, []Effect) {
	switch a := a.(type) {
	case Bootstrap:
		s = setTask(s, viewmodel.TaskBusy, "loading session")
		return s, []Effect{LoadSession{}}

	case SessionLoaded:
		return reduceSessionLoaded(s, a.Session, o)

	case SessionLoadFailed:
		s = setTask(s, viewmodel.TaskError, "session: "+a.Err)
		return reduceSessionLoaded(s, session.Session{}, o)

	case Quit:
		s.UI.Quitting = true
		return s, []Effect{
			SaveSession{Session: SessionSnapshot(s)},
			CancelSubsystem{Subsystem: subBot},
			CancelSubsystem{Subsystem: subRefresh},
		}

	case Tick:
		s.UI.Tick++
		s.UI.Now = a.Now
		if s.Task.Kind == viewmodel.TaskBusy {
			s = refreshTaskVM(s)
		}
		if botCountdownPending(s) {
			s = refreshBotVM(s)
		}
		return s, nil

	case SetViewport:
		s.UI.Width, s.UI.Height = a.Width, a.Height
		return refreshAllVMs(s), nil

	case ToggleHelp:
		s.UI.ShowHelp = !s.UI.ShowHelp
		s.UI.HelpScroll = 0
		return s, nil

	case HelpScroll:
		if s.UI.ShowHelp {
			s.UI.HelpScroll = max(0, s.UI.HelpScroll+a.Delta)
		}
		return s, nil

	case SelectRepo:
		return selectRepo(s, a.Index, o)
	case NextRepo:
		if n := len(s.Repos.Repos); n > 0 {
			return selectRepo(s, (s.Repos.Selected+1)%n, o)
		}
		return s, nil
	case PrevRepo:
		if n := len(s.Repos.Repos); n > 0 {
			return selectRepo(s, (s.Repos.Selected+n-1)%n, o)
		}
		return s, nil

	case CursorUp:
		return moveCursor(s, -1), nil
	case CursorDown:
		return moveCursor(s, +1), nil

	case ToggleSelect:
		pr, ok := s.Repos.CursorPR()
		if !ok {
			return s, nil
		}
		marked := slices.Clone(s.Repos.Marked)
		if i := slices.Index(marked, pr.Number); i >= 0 {
			marked = slices.Delete(marked, i, i+1)
		} else {
			marked = append(marked, pr.Number)
		}
		s.Repos.Marked = marked
		return refreshPRTable(s), nil

	case CycleFilter:
		s.Repos.Filter = s.Repos.Filter.Next()
		s = setRepoCursor(s, 0)
		s.Repos.Scroll = 0
		s = refreshPRTable(s)
		return s, []Effect{SaveSession{Session: SessionSnapshot(s)}}

	case Refresh:
		if len(s.Repos.Repos) == 0 {
			return s, nil
		}
		s = setTask(s, viewmodel.TaskBusy, "refreshing "+s.Repos.Repo().String())
		return s, []Effect{LoadRepoPRs{Repo: s.Repos.Repo()}}

	case RefreshDue:
		rearm := StartTimer{Subsystem: subRefresh, After: o.RefreshInterval, Then: RefreshDue{}}
		if len(s.Repos.Repos) == 0 {
			return s, []Effect{rearm}
		}
		return s, []Effect{LoadRepoPRs{Repo: s.Repos.Repo()}, rearm}

	case PRsLoaded:
		if a.Repo != s.Repos.Repo() {
			return s, nil // stale load for a repo no longer selected
		}
		s.Repos.PRs = a.PRs
		s.Repos.Loaded = true
		s.Repos.Marked = retainMarked(s.Repos.Marked, a.PRs)
		s = setRepoCursor(s, s.Repos.Cursor())
		if s.Task.Kind == viewmodel.TaskBusy {
			s = setTask(s, viewmodel.TaskSuccess, fmt.Sprintf("%d open PRs", len(a.PRs)))
		}
		return refreshPRTable(s), nil

	case PRsLoadFailed:
		if a.Repo != s.Repos.Repo() {
			return s, nil
		}
		return setTask(s, viewmodel.TaskError, "load PRs: "+a.Err), nil

	case MergeSelected:
		targets := targetPRs(s)
		if len(targets) == 0 {
			return s, nil
		}
		var effs []Effect
		for _, pr := range targets {
			effs = append(effs, DoMerge{Repo: s.Repos.Repo(), Number: pr.Number})
		}
		return setTask(s, viewmodel.TaskBusy, fmt.Sprintf("merging %d PR(s)", len(targets))), effs

	case RebaseSelected:
		targets := targetPRs(s)
		if len(targets) == 0 {
			return s, nil
		}
		var effs []Effect
		for _, pr := range targets {
			effs = append(effs, DoRebase{Repo: s.Repos.Repo(), Number: pr.Number})
		}
		return setTask(s, viewmodel.TaskBusy, fmt.Sprintf("rebasing %d PR(s)", len(targets))), effs

	case RerunFailedSelected:
		targets := targetPRs(s)
		if len(targets) == 0 {
			return s, nil
		}
		var effs []Effect
		for _, pr := range targets {
			effs = append(effs, DoRerun{Repo: s.Repos.Repo(), PR: pr})
		}
		return setTask(s, viewmodel.TaskBusy, fmt.Sprintf("re-running failed jobs of %d PR(s)", len(targets))), effs

	case OpenInBrowser:
		pr, ok := s.Repos.CursorPR()
		if !ok || pr.URL == "" {
			return s, nil
		}
		return s, []Effect{OpenBrowser{URL: pr.URL}}

	case MergeFinished:
		return opFinished(s, "merge", a.Number, a.Err)
	case RebaseFinished:
		return opFinished(s, "rebase", a.Number, a.Err)
	case RerunFinished:
		if a.Err != "" {
			return setTask(s, viewmodel.TaskError, fmt.Sprintf("rerun #%d: %s", a.Number, a.Err)), nil
		}
		return setTask(s, viewmodel.TaskSuccess, fmt.Sprintf("re-queued failed jobs of #%d", a.Number)), nil

	case OpenBuildLogs, LogsLoaded, LogsLoadFailed, CloseLogPanel,
		LogCursorUp, LogCursorDown, LogToggle, LogNextError, LogPrevError,
		LogScrollLeft, LogScrollRight, LogToggleTimestamps:
		return reduceLogs(s, a)

	case StartBot, StopBot, BotStatusChecked, BotRebaseFinished,
		BotMergeFinished, BotPollDue, BotRetryDue, BotRemoveEntry:
		return reduceBot(s, a, o)
	}
	return s, nil
}

func reduceSessionLoaded(s State, sess session.Session, o Options) (State, []Effect) {
	repos := sess.Repos
	if len(repos) == 0 {
		repos = o.SeedRepos
	}
	s.Repos.Repos = repos
	s.Repos.Selected = min(max(sess.SelectedRepo, 0), max(len(repos)-1, 0))
	s.Repos.Filter = sess.Filter
	s.Repos.Cursors = make([]int, len(repos))
	copy(s.Repos.Cursors, sess.Cursors)

	rearm := StartTimer{Subsystem: subRefresh, After: o.RefreshInterval, Then: RefreshDue{}}
	if len(repos) == 0 {
		s = setTask(s, viewmodel.TaskInfo, "no repositories configured")
		return s, []Effect{rearm}
	}
	s = setTask(s, viewmodel.TaskBusy, "loading "+s.Repos.Repo().String())
	return s, []Effect{LoadRepoPRs{Repo: s.Repos.Repo()}, rearm}
}

func selectRepo(s State, idx int, o Options) (State, []Effect) {
	if idx < 0 || idx >= len(s.Repos.Repos) || idx == s.Repos.Selected {
		return s, nil
	}
	s.Repos.Selected = idx
	s.Repos.PRs = nil
	s.Repos.Loaded = false
	s.Repos.Marked = nil
	s.Repos.Scroll = 0
	s.Repos.VM = nil
	s = setTask(s, viewmodel.TaskBusy, "loading "+s.Repos.Repo().String())
	return s, []Effect{
		LoadRepoPRs{Repo: s.Repos.Repo()},
		SaveSession{Session: SessionSnapshot(s)},
	}
}

func moveCursor(s State, delta int) State {
	n := len(s.Repos.Visible())
	if n == 0 {
		return s
	}
	s = setRepoCursor(s, s.Repos.Cursor()+delta)
	s.Repos.Scroll = ensureVisible(s.Repos.Scroll, s.Repos.Cursor(), prTableHeight(s))
	return refreshPRTable(s)
}

// setRepoCursor clamps and stores the selected repo's cursor.
func setRepoCursor(s State, c int) State {
	n := len(s.Repos.Visible())
	c = min(max(c, 0), max(n-1, 0))
	cursors := slices.Clone(s.Repos.Cursors)
	for len(cursors) <= s.Repos.Selected {
		cursors = append(cursors, 0)
	}
	cursors[s.Repos.Selected] = c
	s.Repos.Cursors = cursors
	return s
}

func opFinished(s State, op string, number int, errMsg string) (State, []Effect) {
	if errMsg != "" {
		return setTask(s, viewmodel.TaskError, fmt.Sprintf("%s #%d: %s", op, number, errMsg)), nil
	}
	s = setTask(s, viewmodel.TaskSuccess, fmt.Sprintf("%s #%d done", op, number))
	if len(s.Repos.Repos) == 0 {
		return s, nil
	}
	return s, []Effect{LoadRepoPRs{Repo: s.Repos.Repo()}}
}

// targetPRs resolves the marked PRs, falling back to the cursor PR.
func targetPRs(s State) []github.PR {
	if len(s.Repos.Marked) > 0 {
		var out []github.PR
		for _, pr := range s.Repos.PRs {
			if slices.Contains(s.Repos.Marked, pr.Number) {
				out = append(out, pr)
			}
		}
		return out
	}
	if pr, ok := s.Repos.CursorPR(); ok {
		return []github.PR{pr}
	}
	return nil
}

func retainMarked(marked []int, prs []github.PR) []int {
	var out []int
	for _, n := range marked {
		if slices.ContainsFunc(prs, func(p github.PR) bool { return p.Number == n }) {
			out = append(out, n)
		}
	}
	return out
}

// SessionSnapshot extracts the persistable part of the state.
func SessionSnapshot(s State) session.Session {
	return session.Session{
		Repos:        s.Repos.Repos,
		SelectedRepo: s.Repos.Selected,
		Filter:       s.Repos.Filter,
		Cursors:      s.Repos.Cursors,
	}
}

// Panel heights leave room for the header, panel borders and the
// status line. Kept in one place so reducers and view agree.
func prTableHeight(s State) int  { return max(1, s.UI.Height-7) }
func logPanelHeight(s State) int { return max(1, s.UI.Height-8) }

// ensureVisible slides the scroll offset the minimum amount needed to
// bring idx inside the window.
func ensureVisible(scroll, idx, height int) int {
	if idx < scroll {
		return idx
	}
	if idx >= scroll+height {
		return idx - height + 1
	}
	return scroll
}

func setTask(s State, kind viewmodel.TaskKind, msg string) State {
	s.Task.Kind = kind
	s.Task.Message = msg
	return refreshTaskVM(s)
}

func refreshTaskVM(s State) State {
	vm := viewmodel.BuildStatus(s.Task.Kind, s.Task.Message, s.UI.Tick, s.Theme)
	s.Task.VM = &vm
	return s
}

func refreshPRTable(s State) State {
	if !s.Repos.Loaded {
		s.Repos.VM = nil
		return s
	}
	vm := viewmodel.BuildPRTable(s.Repos.Repo(), s.Repos.PRs, s.Repos.Cursor(),
		s.Repos.Marked, s.Repos.Filter, s.Repos.Scroll, prTableHeight(s), s.Theme)
	s.Repos.VM = &vm
	return s
}

func refreshAllVMs(s State) State {
	s = refreshPRTable(s)
	s = refreshLogVM(s)
	s = refreshBotVM(s)
	return refreshTaskVM(s)
}
