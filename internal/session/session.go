// Package session persists the tracked repository list and the last
// session's UI state between runs.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Repo identifies one tracked repository.
type Repo struct {
	Org    string `yaml:"org"`
	Repo   string `yaml:"repo"`
	Branch string `yaml:"branch"`
}

func (r Repo) String() string { return r.Org + "/" + r.Repo }

// Filter is the PR title filter, persisted across sessions.
type Filter int

const (
	FilterNone Filter = iota
	FilterFeat
	FilterFix
	FilterChore
)

func (f Filter) Label() string {
	switch f {
	case FilterFeat:
		return "Feat"
	case FilterFix:
		return "Fix"
	case FilterChore:
		return "Chore"
	default:
		return "All"
	}
}

// Next cycles to the following filter.
func (f Filter) Next() Filter {
	if f == FilterChore {
		return FilterNone
	}
	return f + 1
}

// Matches applies the filter to a PR title.
func (f Filter) Matches(title string) bool {
	t := strings.ToLower(title)
	switch f {
	case FilterFeat:
		return strings.Contains(t, "feat")
	case FilterFix:
		return strings.Contains(t, "fix")
	case FilterChore:
		return strings.Contains(t, "chore")
	default:
		return true
	}
}

// Session is the state written at shutdown and restored at startup.
type Session struct {
	Repos        []Repo `yaml:"repos"`
	SelectedRepo int    `yaml:"selected_repo"`
	Filter       Filter `yaml:"filter"`
	Cursors      []int  `yaml:"cursors,omitempty"` // per-repo PR cursor, parallel to Repos
}

// Store reads and writes the session file.
type Store struct {
	path string
}

// NewStore uses an explicit path, or the default under the user
// config dir when path is empty.
func NewStore(path string) (*Store, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config dir: %w", err)
		}
		path = filepath.Join(dir, "prdash", "session.yaml")
	}
	return &Store{path: path}, nil
}

// Load reads the persisted session. A missing file is not an error; it
// returns an empty session.
func (s *Store) Load() (Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Session{}, nil
		}
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	var sess Session
	if err := yaml.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("parse session: %w", err)
	}
	if sess.SelectedRepo < 0 || sess.SelectedRepo >= len(sess.Repos) {
		sess.SelectedRepo = 0
	}
	return sess, nil
}

// Save writes the session, creating the parent directory if needed.
func (s *Store) Save(sess Session) error {
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create session dir: %w", err)
		}
	}
	data, err := yaml.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}
