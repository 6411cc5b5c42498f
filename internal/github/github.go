// Package github wraps the gh CLI as the repository data source, CI
// log source and mutating-operation backend. Callers get typed data
// and typed failures; wire-level request construction stays in here.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Remote failure taxonomy. Wrapped into every error returned by the
// client so callers can branch with errors.Is.
var (
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limited")
	ErrAuthFailed  = errors.New("authentication failed")
)

type Client struct {
	logger *slog.Logger
}

func NewClient(logger *slog.Logger) *Client {
	return &Client{logger: logger}
}

// PR is the pull request shape consumed by the dashboard and the
// merge bot.
type PR struct {
	Number           int    `json:"number"`
	Title            string `json:"title"`
	HeadRef          string `json:"headRefName"`
	HeadOID          string `json:"headRefOid"`
	BaseRef          string `json:"baseRefName"`
	URL              string `json:"url"`
	IsDraft          bool   `json:"isDraft"`
	Author           Author `json:"author"`
	Mergeable        string `json:"mergeable"`        // MERGEABLE | CONFLICTING | UNKNOWN
	MergeStateStatus string `json:"mergeStateStatus"` // BEHIND | BLOCKED | CLEAN | DIRTY | UNSTABLE | ...
	Checks           []Check
	Raw              []checkNode `json:"statusCheckRollup"`
}

type Author struct {
	Login string `json:"login"`
}

type checkNode struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	Context    string `json:"context"`
	State      string `json:"state"`
}

type Check struct {
	Name       string
	Status     string // COMPLETED | IN_PROGRESS | QUEUED
	Conclusion string // success | failure | ...
}

// BehindBase reports whether the PR trails its base branch.
func (p PR) BehindBase() bool { return p.MergeStateStatus == "BEHIND" }

// Conflicted reports a merge conflict with the base branch.
func (p PR) Conflicted() bool { return p.Mergeable == "CONFLICTING" }

// CIFailing reports at least one failed check.
func (p PR) CIFailing() bool {
	for _, c := range p.Checks {
		if c.Conclusion == "failure" {
			return true
		}
	}
	return false
}

// CIPending reports at least one check still running.
func (p PR) CIPending() bool {
	for _, c := range p.Checks {
		if c.Conclusion == "" && c.Status != "COMPLETED" {
			return true
		}
	}
	return false
}

const prFields = "number,title,headRefName,headRefOid,baseRefName,url,isDraft,author,mergeable,mergeStateStatus,statusCheckRollup"

// ListOpenPRs returns the open pull requests against the given base
// branch.
func (c *Client) ListOpenPRs(ctx context.Context, org, repo, base string) ([]PR, error) {
	args := []string{
		"pr", "list",
		"-R", org + "/" + repo,
		"--json", prFields,
		"--limit", "100",
	}
	if base != "" {
		args = append(args, "-B", base)
	}
	out, err := c.gh(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("list PRs for %s/%s: %w", org, repo, err)
	}
	var prs []PR
	if err := json.Unmarshal(out, &prs); err != nil {
		return nil, fmt.Errorf("parse PR list: %w", err)
	}
	for i := range prs {
		prs[i].Checks = normalizeChecks(prs[i].Raw)
		prs[i].Raw = nil
	}
	return prs, nil
}

// GetPR fetches a single pull request with fresh merge and CI status.
func (c *Client) GetPR(ctx context.Context, org, repo string, number int) (*PR, error) {
	out, err := c.gh(ctx, "pr", "view", fmt.Sprintf("%d", number),
		"-R", org+"/"+repo, "--json", prFields)
	if err != nil {
		return nil, fmt.Errorf("get PR #%d: %w", number, err)
	}
	var pr PR
	if err := json.Unmarshal(out, &pr); err != nil {
		return nil, fmt.Errorf("parse PR #%d: %w", number, err)
	}
	pr.Checks = normalizeChecks(pr.Raw)
	pr.Raw = nil
	return &pr, nil
}

// MergePR merges via the given method (squash or merge). Safe to
// retry: merging an already-merged PR fails with a not-found style
// error that callers treat as terminal, not as corruption.
func (c *Client) MergePR(ctx context.Context, org, repo string, number int, method string) error {
	args := []string{"pr", "merge", fmt.Sprintf("%d", number), "-R", org + "/" + repo}
	if method == "merge" {
		args = append(args, "--merge")
	} else {
		args = append(args, "--squash")
	}
	if _, err := c.gh(ctx, args...); err != nil {
		return fmt.Errorf("merge PR #%d: %w", number, err)
	}
	return nil
}

// UpdateBranch rebases the PR branch onto its base. Idempotent: an
// already up-to-date branch is a successful no-op on the GitHub side.
func (c *Client) UpdateBranch(ctx context.Context, org, repo string, number int) error {
	_, err := c.gh(ctx, "pr", "update-branch", fmt.Sprintf("%d", number),
		"-R", org+"/"+repo, "--rebase")
	if err != nil {
		return fmt.Errorf("update branch PR #%d: %w", number, err)
	}
	return nil
}

// Run is one workflow run attached to a commit.
type Run struct {
	ID         int64  `json:"databaseId"`
	Workflow   string `json:"workflowName"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
}

// ListRuns returns the workflow runs for a head commit.
func (c *Client) ListRuns(ctx context.Context, org, repo, headOID string) ([]Run, error) {
	out, err := c.gh(ctx, "run", "list", "-R", org+"/"+repo,
		"--commit", headOID,
		"--json", "databaseId,workflowName,status,conclusion")
	if err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", headOID, err)
	}
	var runs []Run
	if err := json.Unmarshal(out, &runs); err != nil {
		return nil, fmt.Errorf("parse run list: %w", err)
	}
	return runs, nil
}

// RerunFailedJobs re-queues the failed jobs of every failed run on the
// PR's head commit.
func (c *Client) RerunFailedJobs(ctx context.Context, org, repo string, pr PR) error {
	runs, err := c.ListRuns(ctx, org, repo, pr.HeadOID)
	if err != nil {
		return err
	}
	for _, r := range runs {
		if r.Conclusion != "failure" {
			continue
		}
		if _, err := c.gh(ctx, "run", "rerun", fmt.Sprintf("%d", r.ID),
			"-R", org+"/"+repo, "--failed"); err != nil {
			return fmt.Errorf("rerun run %d: %w", r.ID, err)
		}
	}
	return nil
}

// JobLog is the raw log text of one CI job plus its metadata. Keyed by
// "{workflow}:{job}" when consumers need a lookup key.
type JobLog struct {
	Workflow   string
	Name       string
	Conclusion string // success | failure | cancelled | skipped | "" while running
	Duration   time.Duration
	Log        string
}

// Key returns the "{workflow}:{job}" identity of this log.
func (j JobLog) Key() string { return j.Workflow + ":" + j.Name }

type jobsResponse struct {
	Jobs []struct {
		Name        string    `json:"name"`
		Status      string    `json:"status"`
		Conclusion  string    `json:"conclusion"`
		StartedAt   time.Time `json:"started_at"`
		CompletedAt time.Time `json:"completed_at"`
	} `json:"jobs"`
}

// FetchBuildLogs downloads and splits the job logs of every workflow
// run on the PR's head commit.
func (c *Client) FetchBuildLogs(ctx context.Context, org, repo string, pr PR) ([]JobLog, error) {
	runs, err := c.ListRuns(ctx, org, repo, pr.HeadOID)
	if err != nil {
		return nil, err
	}
	var logs []JobLog
	for _, run := range runs {
		out, err := c.gh(ctx, "api",
			fmt.Sprintf("repos/%s/%s/actions/runs/%d/jobs", org, repo, run.ID))
		if err != nil {
			return nil, fmt.Errorf("list jobs of run %d: %w", run.ID, err)
		}
		var resp jobsResponse
		if err := json.Unmarshal(out, &resp); err != nil {
			return nil, fmt.Errorf("parse jobs of run %d: %w", run.ID, err)
		}

		raw, err := c.gh(ctx, "run", "view", fmt.Sprintf("%d", run.ID),
			"-R", org+"/"+repo, "--log")
		if err != nil {
			return nil, fmt.Errorf("download logs of run %d: %w", run.ID, err)
		}
		byJob := SplitRunLog(string(raw))

		for _, j := range resp.Jobs {
			var dur time.Duration
			if !j.StartedAt.IsZero() && !j.CompletedAt.IsZero() {
				dur = j.CompletedAt.Sub(j.StartedAt)
			}
			logs = append(logs, JobLog{
				Workflow:   run.Workflow,
				Name:       j.Name,
				Conclusion: j.Conclusion,
				Duration:   dur,
				Log:        byJob[j.Name],
			})
		}
	}
	return logs, nil
}

// SplitRunLog demultiplexes `gh run view --log` output, in which every
// line is "job<TAB>step<TAB>content", back into per-job log text.
func SplitRunLog(raw string) map[string]string {
	var order []string
	bufs := make(map[string]*strings.Builder)
	for line := range strings.Lines(raw) {
		line = strings.TrimRight(line, "\n")
		job, rest, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		_, content, ok := strings.Cut(rest, "\t")
		if !ok {
			continue
		}
		b := bufs[job]
		if b == nil {
			b = &strings.Builder{}
			bufs[job] = b
			order = append(order, job)
		}
		b.WriteString(content)
		b.WriteByte('\n')
	}
	out := make(map[string]string, len(order))
	for _, job := range order {
		out[job] = bufs[job].String()
	}
	return out
}

func (c *Client) gh(ctx context.Context, args ...string) ([]byte, error) {
	c.logger.Debug("gh", "args", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, "gh", args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr := string(exitErr.Stderr)
			return nil, fmt.Errorf("%w: %s", classify(stderr), strings.TrimSpace(stderr))
		}
		return nil, err
	}
	return out, nil
}

// classify maps gh stderr output onto the failure taxonomy. Unmatched
// output stays a generic error.
func classify(stderr string) error {
	s := strings.ToLower(stderr)
	switch {
	case strings.Contains(s, "could not resolve") || strings.Contains(s, "not found") || strings.Contains(s, "404"):
		return ErrNotFound
	case strings.Contains(s, "rate limit") || strings.Contains(s, "403 api rate"):
		return ErrRateLimited
	case strings.Contains(s, "authentication") || strings.Contains(s, "gh auth login") || strings.Contains(s, "bad credentials") || strings.Contains(s, "401"):
		return ErrAuthFailed
	default:
		return errors.New("gh command failed")
	}
}

func normalizeChecks(nodes []checkNode) []Check {
	var checks []Check
	for _, n := range nodes {
		name := n.Name
		if name == "" {
			name = n.Context
		}
		status := n.Status
		if status == "" {
			status = n.State
		}
		conclusion := n.Conclusion
		if conclusion == "" && n.State == "SUCCESS" {
			conclusion = "success"
		}
		if conclusion == "" && n.State == "FAILURE" {
			conclusion = "failure"
		}
		checks = append(checks, Check{
			Name:       name,
			Status:     strings.ToUpper(status),
			Conclusion: strings.ToLower(conclusion),
		})
	}
	return checks
}
