package engine

import (
	"fmt"

	"prdash/internal/mergebot"
	"prdash/internal/viewmodel"
)

// reduceBot drives the merge bot. Pure transitions live in the
// mergebot package; this layer converts its commands into effects and
// keeps the panel VM current.
func reduceBot(s State, a Action, o Options) (State, []Effect) {
	switch a := a.(type) {
	case StartBot:
		if s.Bot != nil && s.Bot.Bot.Running {
			return s, nil
		}
		targets := targetPRs(s)
		if len(targets) == 0 {
			return setTask(s, viewmodel.TaskError, "no PRs to queue"), nil
		}
		numbers := make([]int, 0, len(targets))
		for _, pr := range targets {
			numbers = append(numbers, pr.Number)
		}
		b, cmds := mergebot.Start(o.Bot, numbers)
		s.Bot = &BotState{Repo: s.Repos.Repo(), Bot: b}
		s = setTask(s, viewmodel.TaskInfo, fmt.Sprintf("merge bot started with %d PR(s)", len(numbers)))
		return refreshBotVM(s), botEffects(s, cmds)

	case StopBot:
		if s.Bot == nil || !s.Bot.Bot.Running {
			return s, nil
		}
		s.Bot = &BotState{Repo: s.Bot.Repo, Bot: mergebot.Stop(s.Bot.Bot)}
		s = setTask(s, viewmodel.TaskInfo, "merge bot stopped")
		return refreshBotVM(s), []Effect{CancelSubsystem{Subsystem: subBot}}

	case BotStatusChecked:
		st := a.Status
		if a.Err != "" {
			// A failed status fetch is not a verdict on the PR; treat
			// it as unknown and let the poll cadence retry.
			st = mergebot.StatusUnknown
		}
		s.UI.Now = a.Now
		return applyBot(s, o, func(b mergebot.Bot) (mergebot.Bot, []mergebot.Command) {
			return mergebot.HandleStatus(b, a.Number, st, a.Now)
		})

	case BotRebaseFinished:
		s.UI.Now = a.Now
		return applyBot(s, o, func(b mergebot.Bot) (mergebot.Bot, []mergebot.Command) {
			return mergebot.HandleRebaseResult(b, a.Number, a.Err, a.Now)
		})

	case BotMergeFinished:
		s.UI.Now = a.Now
		s, effs := applyBot(s, o, func(b mergebot.Bot) (mergebot.Bot, []mergebot.Command) {
			return mergebot.HandleMergeResult(b, a.Number, a.Err, a.Now)
		})
		merged := false
		if s.Bot != nil {
			if e, ok := s.Bot.Bot.Entry(a.Number); ok {
				merged = e.Phase == mergebot.PhaseMerged
			}
		}
		if a.Err == "" && merged && s.Bot.Repo == s.Repos.Repo() {
			// The merged PR is gone from the open list; refresh it.
			effs = append(effs, LoadRepoPRs{Repo: s.Bot.Repo})
		}
		return s, effs

	case BotPollDue:
		return applyBot(s, o, func(b mergebot.Bot) (mergebot.Bot, []mergebot.Command) {
			return mergebot.HandlePollDue(b, a.Number)
		})

	case BotRetryDue:
		return applyBot(s, o, func(b mergebot.Bot) (mergebot.Bot, []mergebot.Command) {
			return mergebot.HandleRetryDue(b, a.Number)
		})

	case BotRemoveEntry:
		if s.Bot == nil {
			return s, nil
		}
		s.Bot = &BotState{Repo: s.Bot.Repo, Bot: mergebot.Remove(s.Bot.Bot, a.Number)}
		return refreshBotVM(s), nil
	}
	return s, nil
}

// applyBot runs one pure bot transition and converts the resulting
// commands into effects. With no bot in state the action is a no-op,
// which makes late results after a reset harmless. When the
// transition brings the last entry to a terminal phase, whichever
// phase that is, the run summary is surfaced once.
func applyBot(s State, o Options, fn func(mergebot.Bot) (mergebot.Bot, []mergebot.Command)) (State, []Effect) {
	if s.Bot == nil {
		return s, nil
	}
	wasDone := s.Bot.Bot.Done()
	b, cmds := fn(s.Bot.Bot)
	s.Bot = &BotState{Repo: s.Bot.Repo, Bot: b}
	if !wasDone && b.Done() {
		merged, failed := b.Counts()
		s = setTask(s, viewmodel.TaskSuccess, fmt.Sprintf("merge bot done: %d merged, %d failed", merged, failed))
	}
	return refreshBotVM(s), botEffects(s, cmds)
}

// botEffects maps bot commands onto engine effects. Timed commands run
// under the bot subsystem so StopBot cancels them all at once.
func botEffects(s State, cmds []mergebot.Command) []Effect {
	if len(cmds) == 0 {
		return nil
	}
	repo := s.Bot.Repo
	effs := make([]Effect, 0, len(cmds))
	for _, c := range cmds {
		switch c := c.(type) {
		case mergebot.CheckStatus:
			effs = append(effs, BotCheckStatus{Repo: repo, Number: c.Number})
		case mergebot.Rebase:
			effs = append(effs, BotRebase{Repo: repo, Number: c.Number})
		case mergebot.Merge:
			effs = append(effs, BotMerge{Repo: repo, Number: c.Number})
		case mergebot.Poll:
			effs = append(effs, StartTimer{Subsystem: subBot, After: c.After, Then: BotPollDue{Number: c.Number}})
		case mergebot.Retry:
			effs = append(effs, StartTimer{Subsystem: subBot, After: c.After, Then: BotRetryDue{Number: c.Number}})
		}
	}
	return effs
}

func refreshBotVM(s State) State {
	if s.Bot == nil {
		return s
	}
	titles := make(map[int]string, len(s.Repos.PRs))
	for _, pr := range s.Repos.PRs {
		titles[pr.Number] = pr.Title
	}
	vm := viewmodel.BuildBotPanel(s.Bot.Bot, titles, s.UI.Now, s.Theme)
	s.Bot = &BotState{Repo: s.Bot.Repo, Bot: s.Bot.Bot, VM: &vm}
	return s
}

// botCountdownPending reports whether any entry is waiting out a
// backoff, meaning the panel shows a countdown that ticks need to
// keep fresh.
func botCountdownPending(s State) bool {
	if s.Bot == nil || !s.Bot.Bot.Running {
		return false
	}
	for _, e := range s.Bot.Bot.Entries {
		if e.Phase == mergebot.PhaseFailed && !e.Permanent && !e.RetryAt.IsZero() {
			return true
		}
	}
	return false
}
