package session

import (
	"path/filepath"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "session.yaml")
	store, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}

	want := Session{
		Repos: []Repo{
			{Org: "acme", Repo: "widgets", Branch: "main"},
			{Org: "acme", Repo: "gadgets", Branch: "develop"},
		},
		SelectedRepo: 1,
		Filter:       FilterFix,
		Cursors:      []int{0, 4},
	}
	if err := store.Save(want); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Repos) != 2 || got.Repos[1].Repo != "gadgets" {
		t.Fatalf("repos = %+v", got.Repos)
	}
	if got.SelectedRepo != 1 || got.Filter != FilterFix {
		t.Fatalf("got %+v", got)
	}
	if len(got.Cursors) != 2 || got.Cursors[1] != 4 {
		t.Fatalf("cursors = %v", got.Cursors)
	}
}

func TestLoadMissingFileIsEmptySession(t *testing.T) {
	t.Parallel()

	store, err := NewStore(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(got.Repos) != 0 || got.SelectedRepo != 0 {
		t.Fatalf("got %+v, want zero session", got)
	}
}

func TestLoadClampsSelectedRepo(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.yaml")
	store, _ := NewStore(path)
	if err := store.Save(Session{
		Repos:        []Repo{{Org: "a", Repo: "b", Branch: "main"}},
		SelectedRepo: 7,
	}); err != nil {
		t.Fatal(err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.SelectedRepo != 0 {
		t.Fatalf("selected repo not clamped: %d", got.SelectedRepo)
	}
}

func TestFilterCycleAndMatch(t *testing.T) {
	t.Parallel()

	f := FilterNone
	seen := map[Filter]bool{}
	for range 4 {
		seen[f] = true
		f = f.Next()
	}
	if f != FilterNone || len(seen) != 4 {
		t.Fatalf("filter cycle broken: %v back to %v", seen, f)
	}

	if !FilterFeat.Matches("feat: add button") || FilterFeat.Matches("fix: typo") {
		t.Error("feat filter wrong")
	}
	if !FilterFix.Matches("Fix: Typo") {
		t.Error("filter should match case-insensitively")
	}
	if !FilterNone.Matches("anything at all") {
		t.Error("none filter must match everything")
	}
}
