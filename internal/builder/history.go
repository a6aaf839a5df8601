package builder

// History is a linear undo/redo stack of tree snapshots. A commit after an
// undo discards the redo branch.
type History struct {
	snapshots []Tree
	cursor    int
	limit     int
}

// NewHistory starts at a single empty snapshot. limit caps the number of
// snapshots kept, dropping the oldest; 0 keeps everything.
func NewHistory(limit int) *History {
	return &History{snapshots: []Tree{{}}, limit: max(0, limit)}
}

// Commit records tree as the newest snapshot
func (h *History) Commit(tree Tree) {
	h.snapshots = append(h.snapshots[:h.cursor+1], tree)
	h.cursor = len(h.snapshots) - 1

	if h.limit > 0 && len(h.snapshots) > h.limit {
		drop := len(h.snapshots) - h.limit
		h.snapshots = append([]Tree(nil), h.snapshots[drop:]...)
		h.cursor -= drop
	}
}

// Undo steps back one snapshot
func (h *History) Undo() (Tree, bool) {
	if !h.CanUndo() {
		return h.Current(), false
	}
	h.cursor--
	return h.Current(), true
}

// Redo steps forward one snapshot
func (h *History) Redo() (Tree, bool) {
	if !h.CanRedo() {
		return h.Current(), false
	}
	h.cursor++
	return h.Current(), true
}

func (h *History) CanUndo() bool { return h.cursor > 0 }

func (h *History) CanRedo() bool { return h.cursor < len(h.snapshots)-1 }

// Current returns the live snapshot
func (h *History) Current() Tree {
	return h.snapshots[h.cursor]
}

// Reset drops all history and starts over from tree
func (h *History) Reset(tree Tree) {
	if tree == nil {
		tree = Tree{}
	}
	h.snapshots = []Tree{tree}
	h.cursor = 0
}

// Len returns the number of snapshots held
func (h *History) Len() int { return len(h.snapshots) }
