// Package logtree holds the build-log tree model and the navigation
// algorithms that operate on it: visibility flattening, expansion
// toggling and error traversal. The tree is an ordered forest of
// Workflow → Job → Step → Line nodes addressed by child-index paths.
package logtree

import (
	"iter"
	"slices"
	"strconv"
	"strings"
	"time"
)

// JobStatus is the conclusion reported by CI for a single job.
type JobStatus int

const (
	StatusUnknown JobStatus = iota
	StatusSuccess
	StatusFailure
	StatusCancelled
	StatusSkipped
	StatusInProgress
)

// Line is a leaf node: one log line of a step.
type Line struct {
	// Text is the display content with ANSI escapes and workflow
	// command prefixes removed.
	Text string
	// Timestamp is the extracted log timestamp, if the line had one.
	Timestamp string
	// IsError marks lines flagged by an ##[error] annotation or
	// matching the error heuristic.
	IsError bool
	// IsCommand marks command invocation lines ([command] prefix).
	IsCommand bool
}

// Step groups the lines of one ##[group] section of a job log.
type Step struct {
	Name        string
	Lines       []Line
	ErrorCount  int
	HasFailures bool
}

// Job is one CI job of a workflow run.
type Job struct {
	Name        string
	Steps       []Step
	Duration    time.Duration
	Status      JobStatus
	ErrorCount  int
	HasFailures bool
}

// Workflow is the root node type of the forest.
type Workflow struct {
	Name        string
	Jobs        []Job
	ErrorCount  int
	HasFailures bool
}

// Tree is an immutable snapshot of parsed build logs. Aggregates are
// computed once by New; nothing mutates a Tree after construction.
type Tree struct {
	Workflows []Workflow
}

// New builds a tree from workflows, recomputing every ErrorCount and
// HasFailures aggregate bottom-up. Caller-supplied aggregate values
// are ignored. Workflows are ordered failing-first, then by name;
// jobs within a workflow by name.
func New(workflows []Workflow) *Tree {
	ws := slices.Clone(workflows)
	for wi := range ws {
		ws[wi].Jobs = slices.Clone(ws[wi].Jobs)
		w := &ws[wi]
		w.ErrorCount = 0
		w.HasFailures = false
		for ji := range w.Jobs {
			j := &w.Jobs[ji]
			j.Steps = slices.Clone(j.Steps)
			j.ErrorCount = 0
			for si := range j.Steps {
				s := &j.Steps[si]
				s.ErrorCount = 0
				for _, l := range s.Lines {
					if l.IsError {
						s.ErrorCount++
					}
				}
				s.HasFailures = s.ErrorCount > 0
				j.ErrorCount += s.ErrorCount
			}
			j.HasFailures = j.ErrorCount > 0 || j.Status == StatusFailure
			w.ErrorCount += j.ErrorCount
			w.HasFailures = w.HasFailures || j.HasFailures
		}
		slices.SortStableFunc(w.Jobs, func(a, b Job) int {
			return strings.Compare(a.Name, b.Name)
		})
	}
	slices.SortStableFunc(ws, func(a, b Workflow) int {
		if a.HasFailures != b.HasFailures {
			if a.HasFailures {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})
	return &Tree{Workflows: ws}
}

// Path addresses a node as the sequence of child indices from the
// root: [workflow], [workflow job], [workflow job step] or
// [workflow job step line].
type Path []int

// Key renders the path as a colon-joined string, usable as a set or
// map key.
func (p Path) Key() string {
	var b strings.Builder
	for i, n := range p {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

func (p Path) Equal(q Path) bool { return slices.Equal(p, q) }

// Compare orders paths in document order. A parent sorts before its
// descendants.
func (p Path) Compare(q Path) int { return slices.Compare(p, q) }

// Parent returns the path with the last index dropped, or nil for a
// root path.
func (p Path) Parent() Path {
	if len(p) <= 1 {
		return nil
	}
	return p[:len(p)-1]
}

// Valid reports whether every index of the path addresses an existing
// node in t.
func (t *Tree) Valid(p Path) bool {
	if len(p) == 0 || len(p) > 4 {
		return false
	}
	if p[0] < 0 || p[0] >= len(t.Workflows) {
		return false
	}
	w := &t.Workflows[p[0]]
	if len(p) == 1 {
		return true
	}
	if p[1] < 0 || p[1] >= len(w.Jobs) {
		return false
	}
	j := &w.Jobs[p[1]]
	if len(p) == 2 {
		return true
	}
	if p[2] < 0 || p[2] >= len(j.Steps) {
		return false
	}
	s := &j.Steps[p[2]]
	if len(p) == 3 {
		return true
	}
	return p[3] >= 0 && p[3] < len(s.Lines)
}

// ChildCount returns how many children the node at p has, or 0 for an
// invalid path.
func (t *Tree) ChildCount(p Path) int {
	if !t.Valid(p) {
		return 0
	}
	switch len(p) {
	case 1:
		return len(t.Workflows[p[0]].Jobs)
	case 2:
		return len(t.Workflows[p[0]].Jobs[p[1]].Steps)
	case 3:
		return len(t.Workflows[p[0]].Jobs[p[1]].Steps[p[2]].Lines)
	}
	return 0
}

// Line returns the line node at a depth-4 path.
func (t *Tree) Line(p Path) (Line, bool) {
	if len(p) != 4 || !t.Valid(p) {
		return Line{}, false
	}
	return t.Workflows[p[0]].Jobs[p[1]].Steps[p[2]].Lines[p[3]], true
}

// TotalErrors sums error counts across the forest.
func (t *Tree) TotalErrors() int {
	n := 0
	for _, w := range t.Workflows {
		n += w.ErrorCount
	}
	return n
}

// ExpansionSet records which node paths are currently expanded. It is
// independent of any particular tree snapshot.
type ExpansionSet map[string]struct{}

func NewExpansionSet() ExpansionSet { return make(ExpansionSet) }

func (e ExpansionSet) Contains(p Path) bool {
	_, ok := e[p.Key()]
	return ok
}

func (e ExpansionSet) Add(p Path)    { e[p.Key()] = struct{}{} }
func (e ExpansionSet) Remove(p Path) { delete(e, p.Key()) }

// Clone returns an independent copy, so reducers can treat expansion
// state as copy-on-write.
func (e ExpansionSet) Clone() ExpansionSet {
	c := make(ExpansionSet, len(e))
	for k := range e {
		c[k] = struct{}{}
	}
	return c
}

// Toggle flips the expansion of the node at p. Nodes without children
// are left alone. The receiver is not modified; the updated set is
// returned.
func Toggle(t *Tree, e ExpansionSet, p Path) ExpansionSet {
	if t.ChildCount(p) == 0 {
		return e
	}
	c := e.Clone()
	if c.Contains(p) {
		c.Remove(p)
	} else {
		c.Add(p)
	}
	return c
}

// DefaultExpansion expands every workflow plus all jobs and steps that
// carry errors, so failures are visible as soon as a tree loads.
func DefaultExpansion(t *Tree) ExpansionSet {
	e := NewExpansionSet()
	for wi, w := range t.Workflows {
		e.Add(Path{wi})
		for ji, j := range w.Jobs {
			if j.ErrorCount == 0 {
				continue
			}
			e.Add(Path{wi, ji})
			for si, s := range j.Steps {
				if s.ErrorCount > 0 {
					e.Add(Path{wi, ji, si})
				}
			}
		}
	}
	return e
}

// ExpandAncestors returns e with every ancestor of p expanded, so the
// node at p appears in the flattened view. e itself is untouched.
func ExpandAncestors(t *Tree, e ExpansionSet, p Path) ExpansionSet {
	c := e.Clone()
	for a := p.Parent(); a != nil; a = a.Parent() {
		if t.Valid(a) {
			c.Add(a)
		}
	}
	return c
}

// FlattenVisible walks the forest depth-first in pre-order, yielding
// the path of every visible node. A node's children are visited only
// when its path is in the expansion set. The sequence is re-derived
// from scratch on every call; callers that need caching do it a layer
// up.
func FlattenVisible(t *Tree, e ExpansionSet) iter.Seq[Path] {
	return func(yield func(Path) bool) {
		for wi, w := range t.Workflows {
			wp := Path{wi}
			if !yield(wp) {
				return
			}
			if !e.Contains(wp) {
				continue
			}
			for ji, j := range w.Jobs {
				jp := Path{wi, ji}
				if !yield(jp) {
					return
				}
				if !e.Contains(jp) {
					continue
				}
				for si, s := range j.Steps {
					sp := Path{wi, ji, si}
					if !yield(sp) {
						return
					}
					if !e.Contains(sp) {
						continue
					}
					for li := range s.Lines {
						if !yield(Path{wi, ji, si, li}) {
							return
						}
					}
				}
			}
		}
	}
}

// VisiblePaths collects FlattenVisible into a slice.
func VisiblePaths(t *Tree, e ExpansionSet) []Path {
	var out []Path
	for p := range FlattenVisible(t, e) {
		out = append(out, p)
	}
	return out
}
