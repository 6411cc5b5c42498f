package logtree

// Direction selects which way an error scan walks the tree.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// FindNextError locates the nearest error line relative to the cursor
// in the given direction. The scan cascades outward: remaining lines
// of the current step first, then sibling steps, sibling jobs and
// sibling workflows, always landing on a concrete error line. The
// ordering is document order, in which a parent precedes its
// descendants, so a cursor positioned on any node scans correctly no
// matter its depth.
//
// The second return is false when no further error exists in that
// direction. That is a normal terminal result; the cursor should stay
// where it is. Expansion state is irrelevant here: a failing line is
// found even when its ancestors are collapsed.
func FindNextError(t *Tree, cursor Path, dir Direction) (Path, bool) {
	if dir == Backward {
		var best Path
		for p := range errorLines(t) {
			if p.Compare(cursor) >= 0 {
				break
			}
			best = p
		}
		return best, best != nil
	}
	for p := range errorLines(t) {
		if p.Compare(cursor) > 0 {
			return p, true
		}
	}
	return nil, false
}

// errorLines yields the path of every error-flagged line in document
// order.
func errorLines(t *Tree) func(yield func(Path) bool) {
	return func(yield func(Path) bool) {
		for wi, w := range t.Workflows {
			if !w.HasFailures {
				continue
			}
			for ji, j := range w.Jobs {
				if j.ErrorCount == 0 {
					continue
				}
				for si, s := range j.Steps {
					if s.ErrorCount == 0 {
						continue
					}
					for li, l := range s.Lines {
						if !l.IsError {
							continue
						}
						if !yield(Path{wi, ji, si, li}) {
							return
						}
					}
				}
			}
		}
	}
}
