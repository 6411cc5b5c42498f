package engine

import (
	"fmt"
	"slices"

	"prdash/internal/logtree"
	"prdash/internal/viewmodel"
)

const hscrollStep = 8

// reduceLogs handles the build log panel. Every branch that changes
// display-relevant state recomputes the cached panel VM before
// returning.
func reduceLogs(s State, a Action) (State, []Effect) {
	switch a := a.(type) {
	case OpenBuildLogs:
		pr, ok := s.Repos.CursorPR()
		if !ok {
			return s, nil
		}
		s.Logs = &LogsState{
			PRNumber: pr.Number,
			PRTitle:  pr.Title,
			Loading:  true,
		}
		s = setTask(s, viewmodel.TaskBusy, fmt.Sprintf("fetching logs of #%d", pr.Number))
		return s, []Effect{LoadBuildLogs{Repo: s.Repos.Repo(), PR: pr}}

	case LogsLoaded:
		if s.Logs == nil || s.Logs.PRNumber != a.Number {
			return s, nil // panel closed or switched while loading
		}
		inputs := make([]logtree.JobInput, 0, len(a.Jobs))
		for _, j := range a.Jobs {
			inputs = append(inputs, logtree.JobInput{
				Workflow: j.Workflow,
				Name:     j.Name,
				Status:   jobStatus(j.Conclusion),
				Duration: j.Duration,
				Log:      j.Log,
			})
		}
		t := logtree.FromJobs(inputs)
		logs := *s.Logs
		logs.Loading = false
		logs.Tree = t
		logs.Expanded = logtree.DefaultExpansion(t)
		logs.Cursor = nil
		if len(t.Workflows) > 0 {
			logs.Cursor = logtree.Path{0}
		}
		logs.Scroll = 0
		logs.HScroll = 0
		s.Logs = &logs
		if n := t.TotalErrors(); n > 0 {
			s = setTask(s, viewmodel.TaskError, fmt.Sprintf("%d errors in CI logs", n))
		} else {
			s = setTask(s, viewmodel.TaskSuccess, "CI logs loaded")
		}
		return refreshLogVM(s), nil

	case LogsLoadFailed:
		if s.Logs == nil || s.Logs.PRNumber != a.Number {
			return s, nil
		}
		s.Logs = nil
		return setTask(s, viewmodel.TaskError, "load logs: "+a.Err), nil

	case CloseLogPanel:
		s.Logs = nil
		return s, nil

	case LogCursorUp:
		return moveLogCursor(s, -1), nil
	case LogCursorDown:
		return moveLogCursor(s, +1), nil

	case LogToggle:
		if s.Logs == nil || s.Logs.Tree == nil || s.Logs.Cursor == nil {
			return s, nil
		}
		logs := *s.Logs
		logs.Expanded = logtree.Toggle(logs.Tree, logs.Expanded, logs.Cursor)
		// Collapsing shrinks the visible list; keep scroll in range.
		total := len(logtree.VisiblePaths(logs.Tree, logs.Expanded))
		logs.Scroll = min(logs.Scroll, max(0, total-logPanelHeight(s)))
		s.Logs = &logs
		return refreshLogVM(s), nil

	case LogNextError:
		return jumpToError(s, logtree.Forward), nil
	case LogPrevError:
		return jumpToError(s, logtree.Backward), nil

	case LogScrollLeft:
		if s.Logs == nil {
			return s, nil
		}
		logs := *s.Logs
		logs.HScroll = max(0, logs.HScroll-hscrollStep)
		s.Logs = &logs
		return refreshLogVM(s), nil
	case LogScrollRight:
		if s.Logs == nil {
			return s, nil
		}
		logs := *s.Logs
		logs.HScroll += hscrollStep
		s.Logs = &logs
		return refreshLogVM(s), nil

	case LogToggleTimestamps:
		if s.Logs == nil {
			return s, nil
		}
		logs := *s.Logs
		logs.ShowTimestamps = !logs.ShowTimestamps
		s.Logs = &logs
		return refreshLogVM(s), nil
	}
	return s, nil
}

func moveLogCursor(s State, delta int) State {
	if s.Logs == nil || s.Logs.Tree == nil {
		return s
	}
	logs := *s.Logs
	paths := logtree.VisiblePaths(logs.Tree, logs.Expanded)
	if len(paths) == 0 {
		return s
	}
	idx := slices.IndexFunc(paths, func(p logtree.Path) bool { return p.Equal(logs.Cursor) })
	idx = min(max(idx+delta, 0), len(paths)-1)
	logs.Cursor = paths[idx]
	logs.Scroll = ensureVisible(logs.Scroll, idx, logPanelHeight(s))
	s.Logs = &logs
	return refreshLogVM(s)
}

// jumpToError moves the cursor to the nearest error line in the given
// direction, expanding collapsed ancestors so it becomes visible. With
// no further error in that direction the cursor stays put.
func jumpToError(s State, dir logtree.Direction) State {
	if s.Logs == nil || s.Logs.Tree == nil {
		return s
	}
	logs := *s.Logs
	target, ok := logtree.FindNextError(logs.Tree, logs.Cursor, dir)
	if !ok {
		return setTask(s, viewmodel.TaskInfo, "no further errors")
	}
	logs.Cursor = target
	logs.Expanded = logtree.ExpandAncestors(logs.Tree, logs.Expanded, target)
	paths := logtree.VisiblePaths(logs.Tree, logs.Expanded)
	if idx := slices.IndexFunc(paths, func(p logtree.Path) bool { return p.Equal(target) }); idx >= 0 {
		logs.Scroll = ensureVisible(logs.Scroll, idx, logPanelHeight(s))
	}
	s.Logs = &logs
	return refreshLogVM(s)
}

func jobStatus(conclusion string) logtree.JobStatus {
	switch conclusion {
	case "success":
		return logtree.StatusSuccess
	case "failure":
		return logtree.StatusFailure
	case "cancelled":
		return logtree.StatusCancelled
	case "skipped":
		return logtree.StatusSkipped
	case "":
		return logtree.StatusInProgress
	default:
		return logtree.StatusUnknown
	}
}

func refreshLogVM(s State) State {
	if s.Logs == nil {
		return s
	}
	logs := *s.Logs
	if logs.Tree == nil {
		logs.VM = nil
		s.Logs = &logs
		return s
	}
	vm := viewmodel.BuildLogPanel(logs.Tree, logs.Expanded, logs.Cursor,
		logs.Scroll, logs.HScroll, logPanelHeight(s), logs.ShowTimestamps,
		logs.PRNumber, logs.PRTitle, s.Theme)
	logs.VM = &vm
	s.Logs = &logs
	return s
}
