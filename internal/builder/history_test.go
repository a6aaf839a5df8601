package builder

import (
	"fmt"
	"testing"
)

// buildHistory commits n successive trees, each one widget longer
func buildHistory(h *History, n int) []Tree {
	trees := make([]Tree, 0, n)
	tree := Tree{}
	for i := 0; i < n; i++ {
		tree = InsertAt(tree, leaf(fmt.Sprintf("w%d", i)), End)
		h.Commit(tree)
		trees = append(trees, tree)
	}
	return trees
}

func TestHistory_Initial(t *testing.T) {
	h := NewHistory(0)
	if h.Len() != 1 || len(h.Current()) != 0 {
		t.Fatalf("initial history should hold one empty snapshot")
	}
	if h.CanUndo() || h.CanRedo() {
		t.Error("nothing to undo or redo initially")
	}
	if _, ok := h.Undo(); ok {
		t.Error("Undo on initial history should report false")
	}
	if _, ok := h.Redo(); ok {
		t.Error("Redo on initial history should report false")
	}
}

func TestHistory_UndoRedoLinearity(t *testing.T) {
	for _, n := range []int{1, 2, 5, 12} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			h := NewHistory(0)
			trees := buildHistory(h, n)

			for i := 0; i < n; i++ {
				if _, ok := h.Undo(); !ok {
					t.Fatalf("undo %d failed", i)
				}
			}
			if len(h.Current()) != 0 || h.CanUndo() {
				t.Fatalf("after %d undos the canvas should be empty, got %d widgets", n, len(h.Current()))
			}

			for i := 0; i < n; i++ {
				if _, ok := h.Redo(); !ok {
					t.Fatalf("redo %d failed", i)
				}
			}
			if !equalIDs(h.Current(), ids(trees[n-1])...) || h.CanRedo() {
				t.Fatalf("after %d redos: %v", n, ids(h.Current()))
			}
		})
	}
}

func TestHistory_CommitAfterUndoDropsRedo(t *testing.T) {
	h := NewHistory(0)
	trees := buildHistory(h, 4)

	h.Undo()
	h.Undo()
	if !h.CanRedo() {
		t.Fatal("expected redo to be available")
	}

	branch := InsertAt(trees[1], leaf("branch"), End)
	h.Commit(branch)
	if h.CanRedo() {
		t.Error("commit after undo should discard the redo branch")
	}
	if h.Len() != 4 {
		t.Errorf("len = %d, want initial + 2 kept + branch", h.Len())
	}
	if !equalIDs(h.Current(), "w0", "w1", "branch") {
		t.Errorf("current = %v", ids(h.Current()))
	}

	h.Undo()
	if !equalIDs(h.Current(), "w0", "w1") {
		t.Errorf("undo after branch = %v", ids(h.Current()))
	}
}

func TestHistory_Limit(t *testing.T) {
	h := NewHistory(3)
	buildHistory(h, 5)

	if h.Len() != 3 {
		t.Fatalf("len = %d, want 3", h.Len())
	}
	undos := 0
	for h.CanUndo() {
		h.Undo()
		undos++
	}
	if undos != 2 {
		t.Errorf("undos = %d, want 2", undos)
	}
	if !equalIDs(h.Current(), "w0", "w1", "w2") {
		t.Errorf("oldest kept snapshot = %v", ids(h.Current()))
	}
}

func TestHistory_Reset(t *testing.T) {
	h := NewHistory(0)
	buildHistory(h, 3)

	h.Reset(Tree{leaf("loaded")})
	if h.Len() != 1 || h.CanUndo() || !equalIDs(h.Current(), "loaded") {
		t.Errorf("reset history: len=%d current=%v", h.Len(), ids(h.Current()))
	}
}
