package engine

import (
	"context"
	"log/slog"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"prdash/internal/github"
	"prdash/internal/mergebot"
	"prdash/internal/session"
)

// API is the remote surface the executor needs. Satisfied by
// *github.Client; tests substitute a fake.
type API interface {
	ListOpenPRs(ctx context.Context, org, repo, base string) ([]github.PR, error)
	GetPR(ctx context.Context, org, repo string, number int) (*github.PR, error)
	MergePR(ctx context.Context, org, repo string, number int, method string) error
	UpdateBranch(ctx context.Context, org, repo string, number int) error
	RerunFailedJobs(ctx context.Context, org, repo string, pr github.PR) error
	FetchBuildLogs(ctx context.Context, org, repo string, pr github.PR) ([]github.JobLog, error)
}

// SessionStore persists UI sessions. Satisfied by *session.Store.
type SessionStore interface {
	Load() (session.Session, error)
	Save(session.Session) error
}

// Executor runs effects. Each effect runs in its own goroutine and
// reports back by dispatching a follow-up action. Effects started
// under a subsystem share a cancelable context: once the subsystem is
// cancelled, none of its effects dispatch anything.
type Executor struct {
	api         API
	sessions    SessionStore
	mergeMethod string
	logger      *slog.Logger

	// openURL is swappable for tests.
	openURL func(ctx context.Context, url string) error

	mu   sync.Mutex
	subs map[string]*subsystem
}

type subsystem struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func NewExecutor(api API, sessions SessionStore, mergeMethod string, logger *slog.Logger) *Executor {
	return &Executor{
		api:         api,
		sessions:    sessions,
		mergeMethod: mergeMethod,
		logger:      logger,
		openURL:     openWithSystemBrowser,
		subs:        make(map[string]*subsystem),
	}
}

// Execute starts one effect. Never blocks the caller.
func (x *Executor) Execute(ctx context.Context, e Effect, dispatch func(Action)) {
	switch e := e.(type) {
	case LoadSession:
		go func() {
			sess, err := x.sessions.Load()
			if err != nil {
				dispatch(SessionLoadFailed{Err: err.Error()})
				return
			}
			dispatch(SessionLoaded{Session: sess})
		}()

	case SaveSession:
		go func() {
			if err := x.sessions.Save(e.Session); err != nil {
				x.logger.Warn("session save failed", "error", err)
			}
		}()

	case LoadRepoPRs:
		go func() {
			prs, err := x.api.ListOpenPRs(ctx, e.Repo.Org, e.Repo.Repo, e.Repo.Branch)
			if err != nil {
				dispatch(PRsLoadFailed{Repo: e.Repo, Err: err.Error()})
				return
			}
			dispatch(PRsLoaded{Repo: e.Repo, PRs: prs})
		}()

	case DoMerge:
		go func() {
			err := x.api.MergePR(ctx, e.Repo.Org, e.Repo.Repo, e.Number, x.mergeMethod)
			dispatch(MergeFinished{Number: e.Number, Err: errString(err)})
		}()

	case DoRebase:
		go func() {
			err := x.api.UpdateBranch(ctx, e.Repo.Org, e.Repo.Repo, e.Number)
			dispatch(RebaseFinished{Number: e.Number, Err: errString(err)})
		}()

	case DoRerun:
		go func() {
			err := x.api.RerunFailedJobs(ctx, e.Repo.Org, e.Repo.Repo, e.PR)
			dispatch(RerunFinished{Number: e.PR.Number, Err: errString(err)})
		}()

	case LoadBuildLogs:
		go func() {
			jobs, err := x.api.FetchBuildLogs(ctx, e.Repo.Org, e.Repo.Repo, e.PR)
			if err != nil {
				dispatch(LogsLoadFailed{Number: e.PR.Number, Err: err.Error()})
				return
			}
			dispatch(LogsLoaded{Number: e.PR.Number, Title: e.PR.Title, Jobs: jobs})
		}()

	case OpenBrowser:
		go func() {
			if err := x.openURL(ctx, e.URL); err != nil {
				x.logger.Warn("open browser failed", "url", e.URL, "error", err)
			}
		}()

	case BotCheckStatus:
		sub := x.subsystem(ctx, subBot)
		go func() {
			pr, err := x.api.GetPR(sub.ctx, e.Repo.Org, e.Repo.Repo, e.Number)
			if sub.ctx.Err() != nil {
				return
			}
			if err != nil {
				dispatch(BotStatusChecked{Number: e.Number, Err: err.Error(), Now: time.Now()})
				return
			}
			dispatch(BotStatusChecked{Number: e.Number, Status: mergebot.Classify(*pr), Now: time.Now()})
		}()

	case BotRebase:
		sub := x.subsystem(ctx, subBot)
		go func() {
			err := x.api.UpdateBranch(sub.ctx, e.Repo.Org, e.Repo.Repo, e.Number)
			if sub.ctx.Err() != nil {
				return
			}
			dispatch(BotRebaseFinished{Number: e.Number, Err: errString(err), Now: time.Now()})
		}()

	case BotMerge:
		sub := x.subsystem(ctx, subBot)
		go func() {
			err := x.api.MergePR(sub.ctx, e.Repo.Org, e.Repo.Repo, e.Number, x.mergeMethod)
			if sub.ctx.Err() != nil {
				return
			}
			dispatch(BotMergeFinished{Number: e.Number, Err: errString(err), Now: time.Now()})
		}()

	case StartTimer:
		sub := x.subsystem(ctx, e.Subsystem)
		go func() {
			t := time.NewTimer(e.After)
			defer t.Stop()
			select {
			case <-sub.ctx.Done():
			case <-t.C:
				dispatch(e.Then)
			}
		}()

	case CancelSubsystem:
		x.cancelSubsystem(e.Subsystem)
	}
}

// subsystem returns the live context for a named subsystem, creating
// it on first use. A cancelled subsystem is replaced by a fresh one on
// the next request, so a restarted bot gets a clean context.
func (x *Executor) subsystem(parent context.Context, name string) *subsystem {
	x.mu.Lock()
	defer x.mu.Unlock()
	if sub, ok := x.subs[name]; ok && sub.ctx.Err() == nil {
		return sub
	}
	ctx, cancel := context.WithCancel(parent)
	sub := &subsystem{ctx: ctx, cancel: cancel}
	x.subs[name] = sub
	return sub
}

func (x *Executor) cancelSubsystem(name string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if sub, ok := x.subs[name]; ok {
		sub.cancel()
		delete(x.subs, name)
	}
}

func errString(err error) string {
	if err != nil {
		return err.Error()
	}
	return ""
}

func openWithSystemBrowser(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	return cmd.Run()
}
