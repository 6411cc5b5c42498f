package logtree

import (
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
)

// JobInput is one job's worth of raw CI log text plus run metadata,
// as handed over by the log source.
type JobInput struct {
	Workflow string
	Name     string
	Status   JobStatus
	Duration time.Duration
	Log      string
}

// FromJobs parses raw job logs and assembles the workflow forest.
// Jobs with an empty log body are dropped. Aggregates and ordering
// are handled by New.
func FromJobs(jobs []JobInput) *Tree {
	byWorkflow := make(map[string]*Workflow)
	var order []string
	for _, in := range jobs {
		steps := ParseJobLog(in.Log)
		if len(steps) == 0 {
			continue
		}
		w, ok := byWorkflow[in.Workflow]
		if !ok {
			w = &Workflow{Name: in.Workflow}
			byWorkflow[in.Workflow] = w
			order = append(order, in.Workflow)
		}
		w.Jobs = append(w.Jobs, Job{
			Name:     in.Name,
			Steps:    steps,
			Duration: in.Duration,
			Status:   in.Status,
		})
	}
	ws := make([]Workflow, 0, len(order))
	for _, name := range order {
		ws = append(ws, *byWorkflow[name])
	}
	return New(ws)
}

// ParseJobLog splits a raw job log into steps. A ##[group]title line
// opens a step; everything up to the next group marker belongs to it,
// including lines after ##[endgroup]. Lines before the first group go
// into a synthetic "output" step. Timestamps, ANSI escapes and
// workflow command prefixes are stripped from the display text.
func ParseJobLog(raw string) []Step {
	var steps []Step
	var cur *Step
	flush := func() {
		if cur != nil && len(cur.Lines) > 0 {
			steps = append(steps, *cur)
		}
		cur = nil
	}
	for rawLine := range strings.Lines(raw) {
		line, ts := splitTimestamp(strings.TrimRight(rawLine, "\r\n"))
		line = ansi.Strip(line)

		if title, ok := strings.CutPrefix(line, "##[group]"); ok {
			flush()
			cur = &Step{Name: strings.TrimSpace(title)}
			continue
		}
		if title, ok := strings.CutPrefix(line, "::group::"); ok {
			flush()
			cur = &Step{Name: strings.TrimSpace(title)}
			continue
		}
		if line == "##[endgroup]" || line == "::endgroup::" {
			continue
		}
		parsed := parseLine(line, ts)
		if parsed.Text == "" && !parsed.IsError {
			continue
		}
		if cur == nil {
			cur = &Step{Name: "output"}
		}
		cur.Lines = append(cur.Lines, parsed)
	}
	flush()
	return steps
}

func parseLine(line, ts string) Line {
	l := Line{Text: line, Timestamp: ts}
	switch {
	case strings.HasPrefix(line, "##[error]"):
		l.Text = strings.TrimPrefix(line, "##[error]")
		l.IsError = true
	case strings.HasPrefix(line, "::error"):
		// ::error file=...,line=...::message
		if _, msg, ok := strings.Cut(line, "::"); ok {
			if _, after, ok2 := strings.Cut(msg, "::"); ok2 {
				l.Text = after
			}
		}
		l.IsError = true
	case strings.HasPrefix(line, "##[warning]"):
		l.Text = strings.TrimPrefix(line, "##[warning]")
	case strings.HasPrefix(line, "##[debug]"):
		l.Text = strings.TrimPrefix(line, "##[debug]")
	case strings.HasPrefix(line, "[command]"):
		l.Text = strings.TrimPrefix(line, "[command]")
		l.IsCommand = true
	default:
		l.IsError = IsErrorText(line)
	}
	return l
}

// IsErrorText is the fallback heuristic for lines without an explicit
// error annotation.
func IsErrorText(s string) bool {
	return strings.Contains(strings.ToLower(s), "error:")
}

// splitTimestamp peels the leading RFC3339-ish timestamp GitHub
// prepends to every raw log line. Returns the remainder and the
// timestamp, or the input untouched when no timestamp is present.
func splitTimestamp(line string) (rest, ts string) {
	// 2024-05-01T12:34:56.7891234Z <content>
	sp := strings.IndexByte(line, ' ')
	if sp < 20 {
		return line, ""
	}
	candidate := line[:sp]
	if _, err := time.Parse(time.RFC3339Nano, candidate); err != nil {
		return line, ""
	}
	return line[sp+1:], candidate
}
