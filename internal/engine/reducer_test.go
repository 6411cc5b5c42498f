package engine

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"prdash/internal/github"
	"prdash/internal/logtree"
	"prdash/internal/mergebot"
	"prdash/internal/session"
	"prdash/internal/theme"
	"prdash/internal/viewmodel"
)

func testOptions() Options {
	return Options{
		RefreshInterval: 30 * time.Second,
		MergeMethod:     "squash",
		Bot: mergebot.Config{
			MaxInFlight:  2,
			RetryBudget:  2,
			PollInterval: 10 * time.Second,
			Backoff:      5 * time.Second,
		},
	}
}

func testState() State {
	s := State{Theme: theme.Dark()}
	s.UI.Width, s.UI.Height = 120, 40
	s.Repos.Repos = []session.Repo{
		{Org: "acme", Repo: "widgets", Branch: "main"},
		{Org: "acme", Repo: "gadgets", Branch: "main"},
	}
	s.Repos.Cursors = []int{0, 0}
	s.Repos.PRs = []github.PR{
		{Number: 1, Title: "feat: one", URL: "https://x/1", Mergeable: "MERGEABLE"},
		{Number: 2, Title: "fix: two", URL: "https://x/2", Mergeable: "MERGEABLE"},
		{Number: 3, Title: "feat: three", URL: "https://x/3", Mergeable: "MERGEABLE"},
	}
	s.Repos.Loaded = true
	return refreshAllVMs(s)
}

type unknownAction struct{}

func (unknownAction) isAction() {}

func TestReduceUnknownActionIsNoOp(t *testing.T) {
	t.Parallel()
	s := testState()
	next, effs := Reduce(s, unknownAction{}, testOptions())
	if effs != nil {
		t.Fatalf("unexpected effects: %v", effs)
	}
	if !reflect.DeepEqual(s, next) {
		t.Fatal("state changed by unhandled action")
	}
	// No-op reductions keep cached view models, not rebuild them.
	if next.Repos.VM != s.Repos.VM {
		t.Fatal("PR table VM rebuilt on no-op")
	}
}

func TestReduceDeterministic(t *testing.T) {
	t.Parallel()
	s := testState()
	a, ea := Reduce(s, CursorDown{}, testOptions())
	b, eb := Reduce(s, CursorDown{}, testOptions())
	if !reflect.DeepEqual(a, b) || !reflect.DeepEqual(ea, eb) {
		t.Fatal("same state and action produced different results")
	}
}

func TestSessionLoadedStartsLoadAndRefreshTimer(t *testing.T) {
	t.Parallel()
	s := State{Theme: theme.Dark()}
	sess := session.Session{
		Repos:        []session.Repo{{Org: "acme", Repo: "widgets", Branch: "main"}},
		SelectedRepo: 0,
	}
	next, effs := Reduce(s, SessionLoaded{Session: sess}, testOptions())
	if len(next.Repos.Repos) != 1 {
		t.Fatalf("repos = %d, want 1", len(next.Repos.Repos))
	}
	var haveLoad, haveTimer bool
	for _, e := range effs {
		switch e := e.(type) {
		case LoadRepoPRs:
			haveLoad = true
		case StartTimer:
			if e.Subsystem == subRefresh {
				haveTimer = true
			}
		}
	}
	if !haveLoad || !haveTimer {
		t.Fatalf("effects = %v, want LoadRepoPRs and refresh StartTimer", effs)
	}
}

func TestSessionLoadedFallsBackToSeedRepos(t *testing.T) {
	t.Parallel()
	o := testOptions()
	o.SeedRepos = []session.Repo{{Org: "seed", Repo: "repo", Branch: "main"}}
	next, _ := Reduce(State{Theme: theme.Dark()}, SessionLoaded{}, o)
	if len(next.Repos.Repos) != 1 || next.Repos.Repos[0].Org != "seed" {
		t.Fatalf("repos = %v, want seed repo", next.Repos.Repos)
	}
}

func TestPRsLoadedStaleRepoIgnored(t *testing.T) {
	t.Parallel()
	s := testState()
	stale := PRsLoaded{
		Repo: session.Repo{Org: "acme", Repo: "gadgets", Branch: "main"},
		PRs:  []github.PR{{Number: 99}},
	}
	next, _ := Reduce(s, stale, testOptions())
	if len(next.Repos.PRs) != 3 {
		t.Fatal("stale PR load replaced current repo data")
	}
}

func TestCursorMovesClampAndRebuildVM(t *testing.T) {
	t.Parallel()
	s := testState()
	o := testOptions()

	next, _ := Reduce(s, CursorUp{}, o)
	if next.Repos.Cursor() != 0 {
		t.Fatalf("cursor = %d, want clamp at 0", next.Repos.Cursor())
	}
	for range 10 {
		next, _ = Reduce(next, CursorDown{}, o)
	}
	if next.Repos.Cursor() != 2 {
		t.Fatalf("cursor = %d, want clamp at 2", next.Repos.Cursor())
	}
	if next.Repos.VM == s.Repos.VM {
		t.Fatal("PR table VM not rebuilt after cursor move")
	}
	if !next.Repos.VM.Rows[2].IsCursor {
		t.Fatal("VM cursor row out of sync")
	}
}

func TestToggleSelectRoundTrip(t *testing.T) {
	t.Parallel()
	s := testState()
	o := testOptions()
	next, _ := Reduce(s, ToggleSelect{}, o)
	if len(next.Repos.Marked) != 1 || next.Repos.Marked[0] != 1 {
		t.Fatalf("Marked = %v, want [1]", next.Repos.Marked)
	}
	next, _ = Reduce(next, ToggleSelect{}, o)
	if len(next.Repos.Marked) != 0 {
		t.Fatalf("Marked = %v, want empty after second toggle", next.Repos.Marked)
	}
	if len(s.Repos.Marked) != 0 {
		t.Fatal("original state mutated")
	}
}

func TestCycleFilterResetsCursorAndSaves(t *testing.T) {
	t.Parallel()
	s := testState()
	s = setRepoCursor(s, 2)
	next, effs := Reduce(s, CycleFilter{}, testOptions())
	if next.Repos.Filter != session.FilterFeat {
		t.Fatalf("Filter = %v, want FilterFeat", next.Repos.Filter)
	}
	if next.Repos.Cursor() != 0 {
		t.Fatalf("cursor = %d, want reset to 0", next.Repos.Cursor())
	}
	if len(effs) != 1 {
		t.Fatalf("effects = %v, want one SaveSession", effs)
	}
	if _, ok := effs[0].(SaveSession); !ok {
		t.Fatalf("effect = %T, want SaveSession", effs[0])
	}
	if next.Repos.VM.TotalCount != 2 {
		t.Fatalf("filtered VM TotalCount = %d, want 2", next.Repos.VM.TotalCount)
	}
}

func TestMergeSelectedFallsBackToCursor(t *testing.T) {
	t.Parallel()
	s := testState()
	_, effs := Reduce(s, MergeSelected{}, testOptions())
	if len(effs) != 1 {
		t.Fatalf("effects = %d, want 1", len(effs))
	}
	m, ok := effs[0].(DoMerge)
	if !ok || m.Number != 1 {
		t.Fatalf("effect = %#v, want DoMerge for #1", effs[0])
	}
}

func TestMergeSelectedUsesMarks(t *testing.T) {
	t.Parallel()
	s := testState()
	s.Repos.Marked = []int{1, 3}
	_, effs := Reduce(s, MergeSelected{}, testOptions())
	if len(effs) != 2 {
		t.Fatalf("effects = %d, want 2", len(effs))
	}
	want := []int{1, 3}
	for i, e := range effs {
		if m := e.(DoMerge); m.Number != want[i] {
			t.Fatalf("effect %d merges #%d, want #%d", i, m.Number, want[i])
		}
	}
}

func TestOpenInBrowserUsesCursorPR(t *testing.T) {
	t.Parallel()
	s := testState()
	s = setRepoCursor(s, 1)
	_, effs := Reduce(s, OpenInBrowser{}, testOptions())
	if len(effs) != 1 {
		t.Fatalf("effects = %d, want 1", len(effs))
	}
	if o := effs[0].(OpenBrowser); o.URL != "https://x/2" {
		t.Fatalf("URL = %q", o.URL)
	}
}

func TestQuitSavesSessionAndCancelsTimers(t *testing.T) {
	t.Parallel()
	next, effs := Reduce(testState(), Quit{}, testOptions())
	if !next.UI.Quitting {
		t.Fatal("Quitting not set")
	}
	var haveSave bool
	cancelled := map[string]bool{}
	for _, e := range effs {
		switch e := e.(type) {
		case SaveSession:
			haveSave = true
		case CancelSubsystem:
			cancelled[e.Subsystem] = true
		}
	}
	if !haveSave || !cancelled[subBot] || !cancelled[subRefresh] {
		t.Fatalf("effects = %v", effs)
	}
}

const failingLog = "##[group]compile\nok\n##[error]boom\n##[endgroup]\n"

func stateWithLogs(t *testing.T) State {
	t.Helper()
	s := testState()
	s, effs := Reduce(s, OpenBuildLogs{}, testOptions())
	if len(effs) != 1 {
		t.Fatalf("open: effects = %v", effs)
	}
	if _, ok := effs[0].(LoadBuildLogs); !ok {
		t.Fatalf("open: effect = %T", effs[0])
	}
	loaded := LogsLoaded{
		Number: 1,
		Title:  "feat: one",
		Jobs: []github.JobLog{
			{Workflow: "CI", Name: "build", Conclusion: "failure", Log: failingLog},
			{Workflow: "CI", Name: "lint", Conclusion: "success", Log: "##[group]vet\nclean\n##[endgroup]\n"},
		},
	}
	s, _ = Reduce(s, loaded, testOptions())
	return s
}

func TestLogsLoadedBuildsPanel(t *testing.T) {
	t.Parallel()
	s := stateWithLogs(t)
	if s.Logs == nil || s.Logs.Tree == nil {
		t.Fatal("log panel absent after load")
	}
	if s.Logs.VM == nil {
		t.Fatal("log VM absent after load")
	}
	if s.Logs.Tree.TotalErrors() != 1 {
		t.Fatalf("TotalErrors = %d, want 1", s.Logs.Tree.TotalErrors())
	}
	if !s.Logs.Cursor.Equal(logtree.Path{0}) {
		t.Fatalf("cursor = %v, want [0]", s.Logs.Cursor)
	}
}

func TestLogsLoadedForClosedPanelIgnored(t *testing.T) {
	t.Parallel()
	s := testState()
	next, _ := Reduce(s, LogsLoaded{Number: 1, Jobs: nil}, testOptions())
	if next.Logs != nil {
		t.Fatal("log panel materialized without an open request")
	}
}

func TestSmartJumpExpandsAndLands(t *testing.T) {
	t.Parallel()
	o := testOptions()
	s := stateWithLogs(t)
	// Collapse everything so the jump has to expand ancestors itself.
	collapsed := *s.Logs
	collapsed.Expanded = logtree.NewExpansionSet()
	s.Logs = &collapsed

	next, _ := Reduce(s, LogNextError{}, o)
	cur := next.Logs.Cursor
	line, ok := next.Logs.Tree.Line(cur)
	if !ok || !line.IsError {
		t.Fatalf("cursor %v not on an error line", cur)
	}
	for p := cur.Parent(); p != nil; p = p.Parent() {
		if !next.Logs.Expanded.Contains(p) {
			t.Fatalf("ancestor %v not expanded after jump", p)
		}
	}
	// No further errors forward: cursor stays.
	again, _ := Reduce(next, LogNextError{}, o)
	if !again.Logs.Cursor.Equal(cur) {
		t.Fatal("cursor moved despite no further errors")
	}
}

func TestLogCursorAndToggle(t *testing.T) {
	t.Parallel()
	o := testOptions()
	s := stateWithLogs(t)

	next, _ := Reduce(s, LogCursorDown{}, o)
	if next.Logs.Cursor.Equal(s.Logs.Cursor) {
		t.Fatal("cursor did not move")
	}
	before := len(logtree.VisiblePaths(next.Logs.Tree, next.Logs.Expanded))
	toggled, _ := Reduce(next, LogToggle{}, o)
	after := len(logtree.VisiblePaths(toggled.Logs.Tree, toggled.Logs.Expanded))
	if after >= before {
		t.Fatalf("collapse did not shrink visible rows: %d -> %d", before, after)
	}
	if s.Logs.Expanded.Contains(logtree.Path{0}) != true {
		t.Fatal("original expansion set mutated")
	}
}

func TestCloseLogPanel(t *testing.T) {
	t.Parallel()
	s := stateWithLogs(t)
	next, _ := Reduce(s, CloseLogPanel{}, testOptions())
	if next.Logs != nil {
		t.Fatal("log panel still present")
	}
	if s.Logs == nil {
		t.Fatal("original state mutated")
	}
}

func TestStartBotQueuesAndChecks(t *testing.T) {
	t.Parallel()
	s := testState()
	s.Repos.Marked = []int{1, 2, 3}
	next, effs := Reduce(s, StartBot{}, testOptions())
	if next.Bot == nil || !next.Bot.Bot.Running {
		t.Fatal("bot not running")
	}
	if len(next.Bot.Bot.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(next.Bot.Bot.Entries))
	}
	checks := 0
	for _, e := range effs {
		if _, ok := e.(BotCheckStatus); ok {
			checks++
		}
	}
	if checks != 3 {
		t.Fatalf("status checks = %d, want 3", checks)
	}
	if next.Bot.VM == nil {
		t.Fatal("bot VM absent")
	}
}

func TestBotCleanStatusSchedulesMergeWithinBound(t *testing.T) {
	t.Parallel()
	o := testOptions()
	s := testState()
	s.Repos.Marked = []int{1, 2, 3}
	s, _ = Reduce(s, StartBot{}, o)

	var merges int
	for _, n := range []int{1, 2, 3} {
		var effs []Effect
		s, effs = Reduce(s, BotStatusChecked{Number: n, Status: mergebot.StatusClean}, o)
		for _, e := range effs {
			if _, ok := e.(BotMerge); ok {
				merges++
			}
		}
	}
	if merges != o.Bot.MaxInFlight {
		t.Fatalf("merges started = %d, want bound %d", merges, o.Bot.MaxInFlight)
	}
	// A finished merge frees a slot for the waiting entry.
	s, effs := Reduce(s, BotMergeFinished{Number: 1}, o)
	var refilled bool
	for _, e := range effs {
		if _, ok := e.(BotMerge); ok {
			refilled = true
		}
	}
	if !refilled {
		t.Fatalf("freed slot not refilled: %v", effs)
	}
	if e, _ := s.Bot.Bot.Entry(1); e.Phase != mergebot.PhaseMerged {
		t.Fatalf("phase = %v, want Merged", e.Phase)
	}
}

func TestBotStatusFetchFailureRepolls(t *testing.T) {
	t.Parallel()
	o := testOptions()
	s := testState()
	s, _ = Reduce(s, StartBot{}, o) // queues cursor PR #1
	s, effs := Reduce(s, BotStatusChecked{Number: 1, Err: "rate limited"}, o)
	var repoll bool
	for _, e := range effs {
		if st, ok := e.(StartTimer); ok && st.Subsystem == subBot {
			if _, ok := st.Then.(BotPollDue); ok {
				repoll = true
			}
		}
	}
	if !repoll {
		t.Fatalf("no poll scheduled after failed status fetch: %v", effs)
	}
	if e, _ := s.Bot.Bot.Entry(1); e.Phase != mergebot.PhaseQueued {
		t.Fatalf("phase = %v, want still Queued", e.Phase)
	}
}

func TestBotRetryCountdownTicksDown(t *testing.T) {
	t.Parallel()
	o := testOptions()
	s := testState()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	s, _ = Reduce(s, StartBot{}, o) // queues cursor PR #1
	s, _ = Reduce(s, BotStatusChecked{Number: 1, Status: mergebot.StatusCIFailing, Now: t0}, o)
	if e, _ := s.Bot.Bot.Entry(1); e.RetryAt.IsZero() {
		t.Fatal("retryable failure recorded no deadline")
	}
	row := s.Bot.VM.Rows[0].Text
	if !strings.Contains(row, "retry in "+viewmodel.FormatDuration(o.Bot.Backoff)) {
		t.Fatalf("row missing countdown: %q", row)
	}

	// Ticks keep the countdown current while the backoff runs out.
	before := s.Bot.VM
	s, _ = Reduce(s, Tick{Now: t0.Add(2 * time.Second)}, o)
	if s.Bot.VM == before {
		t.Fatal("tick did not refresh the countdown")
	}
	want := "retry in " + viewmodel.FormatDuration(o.Bot.Backoff-2*time.Second)
	if row := s.Bot.VM.Rows[0].Text; !strings.Contains(row, want) {
		t.Fatalf("row = %q, want countdown %q", row, want)
	}
}

func TestTickLeavesBotVMWithoutCountdown(t *testing.T) {
	t.Parallel()
	o := testOptions()
	s := testState()
	s, _ = Reduce(s, StartBot{}, o)

	before := s.Bot.VM
	s, _ = Reduce(s, Tick{Now: time.Now()}, o)
	if s.Bot.VM != before {
		t.Fatal("tick rebuilt the bot VM with no countdown pending")
	}
}

func TestBotDoneSummaryOnPermanentFailure(t *testing.T) {
	t.Parallel()
	o := testOptions()
	o.Bot.RetryBudget = 0
	s := testState()

	s, _ = Reduce(s, StartBot{}, o) // queues cursor PR #1
	s, _ = Reduce(s, BotStatusChecked{Number: 1, Status: mergebot.StatusCIFailing}, o)
	e, _ := s.Bot.Bot.Entry(1)
	if !e.Permanent {
		t.Fatalf("entry not terminal: %+v", e)
	}
	if !strings.Contains(s.Task.Message, "merge bot done") {
		t.Fatalf("task = %q, want the run summary", s.Task.Message)
	}
	if !strings.Contains(s.Task.Message, "1 failed") {
		t.Fatalf("task = %q, want the failure count", s.Task.Message)
	}
}

func TestStopBotFreezesAndLateResultsNoOp(t *testing.T) {
	t.Parallel()
	o := testOptions()
	s := testState()
	s.Repos.Marked = []int{1, 2}
	s, _ = Reduce(s, StartBot{}, o)
	s, _ = Reduce(s, BotStatusChecked{Number: 1, Status: mergebot.StatusClean}, o)

	s, effs := Reduce(s, StopBot{}, o)
	if s.Bot.Bot.Running {
		t.Fatal("bot still running")
	}
	if len(effs) != 1 {
		t.Fatalf("effects = %v, want CancelSubsystem only", effs)
	}
	if c := effs[0].(CancelSubsystem); c.Subsystem != subBot {
		t.Fatalf("cancelled %q, want %q", c.Subsystem, subBot)
	}

	frozen := s.Bot.Bot
	s, effs = Reduce(s, BotMergeFinished{Number: 1}, o)
	if len(effs) != 0 {
		t.Fatalf("late result produced effects: %v", effs)
	}
	if !reflect.DeepEqual(frozen.Entries, s.Bot.Bot.Entries) {
		t.Fatal("late result mutated frozen entries")
	}
}

func TestBotPinnedRepoSurvivesRepoSwitch(t *testing.T) {
	t.Parallel()
	o := testOptions()
	s := testState()
	s, _ = Reduce(s, StartBot{}, o)
	botRepo := s.Bot.Repo

	s, _ = Reduce(s, NextRepo{}, o)
	_, effs := Reduce(s, BotPollDue{Number: 1}, o)
	for _, e := range effs {
		if c, ok := e.(BotCheckStatus); ok && c.Repo != botRepo {
			t.Fatalf("bot command routed to %v, want pinned %v", c.Repo, botRepo)
		}
	}
}

func TestTickRebuildsOnlyBusyTaskVM(t *testing.T) {
	t.Parallel()
	o := testOptions()
	s := testState()
	s = setTask(s, viewmodel.TaskSuccess, "done")

	next, _ := Reduce(s, Tick{}, o)
	if next.Task.VM != s.Task.VM {
		t.Fatal("idle task VM rebuilt on tick")
	}
	if next.Repos.VM != s.Repos.VM {
		t.Fatal("PR table VM rebuilt on tick")
	}

	s = setTask(s, viewmodel.TaskBusy, "working")
	a, _ := Reduce(s, Tick{}, o)
	b, _ := Reduce(a, Tick{}, o)
	if a.Task.VM.Text == b.Task.VM.Text {
		t.Fatal("spinner frame did not advance")
	}
}
