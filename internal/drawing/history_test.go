package drawing

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
)

func snapshot(x float64) *geojson.Feature {
	return geojson.NewFeature(orb.Polygon{{{x, 0}, {x + 1, 0}, {x + 1, 1}, {x, 0}}})
}

func TestHistoryPushClearsRedo(t *testing.T) {
	h := NewHistory()
	h.Push(snapshot(0))
	h.Push(snapshot(1))
	h.Undo()
	assert.True(t, h.CanRedo())

	h.Push(snapshot(2))

	assert.Equal(t, 2, h.UndoLen())
	assert.Zero(t, h.RedoLen())
}

func TestHistoryUndoRedo(t *testing.T) {
	h := NewHistory()
	a, b := snapshot(0), snapshot(1)
	h.Push(a)
	h.Push(b)

	top, ok := h.Undo()
	assert.True(t, ok)
	assert.Same(t, a, top)

	top, ok = h.Undo()
	assert.True(t, ok)
	assert.Nil(t, top)

	_, ok = h.Undo()
	assert.False(t, ok)

	next, ok := h.Redo()
	assert.True(t, ok)
	assert.Same(t, a, next)
	next, ok = h.Redo()
	assert.True(t, ok)
	assert.Same(t, b, next)

	_, ok = h.Redo()
	assert.False(t, ok)
}

func TestHistoryReset(t *testing.T) {
	h := NewHistory()
	h.Push(snapshot(0))
	h.Push(snapshot(1))
	h.Undo()

	h.Reset()

	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())
	assert.Nil(t, h.Top())
}
