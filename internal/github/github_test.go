package github

import (
	"errors"
	"testing"
)

func TestNormalizeChecks(t *testing.T) {
	t.Parallel()

	checks := normalizeChecks([]checkNode{
		{Name: "build", Status: "COMPLETED", Conclusion: "SUCCESS"},
		{Context: "legacy-ci", State: "FAILURE"},
		{Name: "lint", Status: "in_progress"},
	})
	if len(checks) != 3 {
		t.Fatalf("got %d checks, want 3", len(checks))
	}
	if checks[0].Conclusion != "success" {
		t.Errorf("conclusion not lowercased: %q", checks[0].Conclusion)
	}
	if checks[1].Name != "legacy-ci" || checks[1].Conclusion != "failure" {
		t.Errorf("legacy status check not normalized: %+v", checks[1])
	}
	if checks[2].Status != "IN_PROGRESS" || checks[2].Conclusion != "" {
		t.Errorf("pending check not normalized: %+v", checks[2])
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		stderr string
		want   error
	}{
		{"GraphQL: Could not resolve to a Repository", ErrNotFound},
		{"HTTP 404: Not Found", ErrNotFound},
		{"API rate limit exceeded for user", ErrRateLimited},
		{"To get started with GitHub CLI, please run: gh auth login", ErrAuthFailed},
		{"HTTP 401: Bad credentials", ErrAuthFailed},
	}
	for _, tc := range cases {
		if got := classify(tc.stderr); !errors.Is(got, tc.want) {
			t.Errorf("classify(%q) = %v, want %v", tc.stderr, got, tc.want)
		}
	}
	if got := classify("something else entirely"); errors.Is(got, ErrNotFound) ||
		errors.Is(got, ErrRateLimited) || errors.Is(got, ErrAuthFailed) {
		t.Errorf("unmatched stderr should stay generic, got %v", got)
	}
}

func TestPRStatusPredicates(t *testing.T) {
	t.Parallel()

	pr := PR{
		MergeStateStatus: "BEHIND",
		Mergeable:        "CONFLICTING",
		Checks: []Check{
			{Name: "a", Status: "COMPLETED", Conclusion: "success"},
			{Name: "b", Status: "IN_PROGRESS"},
			{Name: "c", Status: "COMPLETED", Conclusion: "failure"},
		},
	}
	if !pr.BehindBase() || !pr.Conflicted() || !pr.CIPending() || !pr.CIFailing() {
		t.Fatalf("predicates wrong for %+v", pr)
	}

	clean := PR{Mergeable: "MERGEABLE", MergeStateStatus: "CLEAN",
		Checks: []Check{{Name: "a", Status: "COMPLETED", Conclusion: "success"}}}
	if clean.BehindBase() || clean.Conflicted() || clean.CIPending() || clean.CIFailing() {
		t.Fatalf("clean PR misclassified: %+v", clean)
	}
}

func TestSplitRunLog(t *testing.T) {
	t.Parallel()

	raw := "build\tCompile\t2024-05-01T10:00:00Z line one\n" +
		"build\tCompile\t2024-05-01T10:00:01Z line two\n" +
		"test\tRun tests\t2024-05-01T10:00:02Z другое\n" +
		"garbage without tabs\n"

	got := SplitRunLog(raw)
	if len(got) != 2 {
		t.Fatalf("got %d jobs, want 2: %v", len(got), got)
	}
	if got["build"] != "2024-05-01T10:00:00Z line one\n2024-05-01T10:00:01Z line two\n" {
		t.Errorf("build log = %q", got["build"])
	}
	if got["test"] != "2024-05-01T10:00:02Z другое\n" {
		t.Errorf("test log = %q", got["test"])
	}
}

func TestJobLogKey(t *testing.T) {
	t.Parallel()

	j := JobLog{Workflow: "CI", Name: "lint (ubuntu-latest)"}
	if j.Key() != "CI:lint (ubuntu-latest)" {
		t.Fatalf("Key = %q", j.Key())
	}
}
