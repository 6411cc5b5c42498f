package logtree

import (
	"testing"
	"time"
)

const sampleLog = `2024-05-01T10:00:00.0000000Z ##[group]Set up job
2024-05-01T10:00:00.1000000Z Runner version 2.316
2024-05-01T10:00:01.0000000Z ##[endgroup]
2024-05-01T10:00:02.0000000Z ##[group]Run tests
2024-05-01T10:00:02.5000000Z [command]go test ./...
2024-05-01T10:00:05.0000000Z --- FAIL: TestThing
2024-05-01T10:00:05.1000000Z ##[error]Process completed with exit code 1.
2024-05-01T10:00:05.2000000Z ` + "\x1b[31m" + `main.go:10: error: undefined symbol` + "\x1b[0m" + `
`

func TestParseJobLogSteps(t *testing.T) {
	t.Parallel()

	steps := ParseJobLog(sampleLog)
	if len(steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(steps))
	}
	if steps[0].Name != "Set up job" || steps[1].Name != "Run tests" {
		t.Fatalf("step names = %q, %q", steps[0].Name, steps[1].Name)
	}
	run := steps[1]
	if len(run.Lines) != 4 {
		t.Fatalf("run step has %d lines, want 4", len(run.Lines))
	}
	if !run.Lines[0].IsCommand || run.Lines[0].Text != "go test ./..." {
		t.Errorf("command line parsed as %+v", run.Lines[0])
	}
	if !run.Lines[2].IsError || run.Lines[2].Text != "Process completed with exit code 1." {
		t.Errorf("##[error] line parsed as %+v", run.Lines[2])
	}
	// ANSI stripped, heuristic error detection applied.
	if run.Lines[3].Text != "main.go:10: error: undefined symbol" {
		t.Errorf("ansi not stripped: %q", run.Lines[3].Text)
	}
	if !run.Lines[3].IsError {
		t.Error("heuristic error line not flagged")
	}
}

func TestParseJobLogTimestamps(t *testing.T) {
	t.Parallel()

	steps := ParseJobLog(sampleLog)
	got := steps[0].Lines[0].Timestamp
	if got != "2024-05-01T10:00:00.1000000Z" {
		t.Fatalf("timestamp = %q", got)
	}

	// Lines without a timestamp keep their full text.
	steps = ParseJobLog("##[group]s\nplain line\n")
	if steps[0].Lines[0].Text != "plain line" || steps[0].Lines[0].Timestamp != "" {
		t.Fatalf("untimestamped line parsed as %+v", steps[0].Lines[0])
	}
}

func TestParseJobLogPreamble(t *testing.T) {
	t.Parallel()

	steps := ParseJobLog("stray line before any group\n##[group]real\ncontent\n")
	if len(steps) != 2 || steps[0].Name != "output" {
		t.Fatalf("preamble handling wrong: %+v", steps)
	}
}

func TestParseJobLogErrorCommandSyntax(t *testing.T) {
	t.Parallel()

	steps := ParseJobLog("::group::build\n::error file=main.go,line=3::compile failed\n")
	l := steps[0].Lines[0]
	if !l.IsError || l.Text != "compile failed" {
		t.Fatalf("::error:: parsed as %+v", l)
	}
}

func TestFromJobsGroupsByWorkflow(t *testing.T) {
	t.Parallel()

	tr := FromJobs([]JobInput{
		{Workflow: "CI", Name: "test", Status: StatusFailure, Duration: 90 * time.Second, Log: sampleLog},
		{Workflow: "CI", Name: "lint", Status: StatusSuccess, Log: "##[group]lint\nclean\n"},
		{Workflow: "Release", Name: "empty", Log: ""},
	})
	if len(tr.Workflows) != 1 {
		t.Fatalf("got %d workflows, want 1 (empty job dropped)", len(tr.Workflows))
	}
	w := tr.Workflows[0]
	if w.Name != "CI" || len(w.Jobs) != 2 {
		t.Fatalf("workflow = %q with %d jobs", w.Name, len(w.Jobs))
	}
	// Jobs sorted by name: lint before test.
	if w.Jobs[0].Name != "lint" || w.Jobs[1].Name != "test" {
		t.Fatalf("job order = %q, %q", w.Jobs[0].Name, w.Jobs[1].Name)
	}
	if !w.HasFailures || w.ErrorCount != 2 {
		t.Fatalf("aggregate = (%v, %d), want (true, 2)", w.HasFailures, w.ErrorCount)
	}
	if w.Jobs[1].Duration != 90*time.Second {
		t.Errorf("duration not carried: %v", w.Jobs[1].Duration)
	}
}
