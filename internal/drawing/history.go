package drawing

import "github.com/paulmach/orb/geojson"

// History is a linear undo/redo stack of polygon snapshots.
// Pushing a new snapshot discards everything that could have been redone.
type History struct {
	undo []*geojson.Feature
	redo []*geojson.Feature
}

// NewHistory creates an empty history
func NewHistory() *History {
	return &History{}
}

// Push records a snapshot and clears redo
func (h *History) Push(snapshot *geojson.Feature) {
	h.undo = append(h.undo, snapshot)
	h.redo = nil
}

// Undo moves the most recent snapshot onto redo and returns the snapshot
// now on top of undo, which is nil when undo became empty.
// ok is false when there was nothing to undo.
func (h *History) Undo() (top *geojson.Feature, ok bool) {
	if len(h.undo) == 0 {
		return nil, false
	}
	last := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, last)
	return h.Top(), true
}

// Redo moves the most recently undone snapshot back onto undo and returns it
func (h *History) Redo() (*geojson.Feature, bool) {
	if len(h.redo) == 0 {
		return nil, false
	}
	next := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, next)
	return next, true
}

// Top is the most recent snapshot, or nil
func (h *History) Top() *geojson.Feature {
	if len(h.undo) == 0 {
		return nil
	}
	return h.undo[len(h.undo)-1]
}

// Reset empties both stacks
func (h *History) Reset() {
	h.undo = nil
	h.redo = nil
}

func (h *History) UndoLen() int { return len(h.undo) }
func (h *History) RedoLen() int { return len(h.redo) }
func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }
