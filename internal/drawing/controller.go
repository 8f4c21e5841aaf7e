package drawing

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"land-portal/land-portal-backend/internal/mapsession"
	"land-portal/land-portal-backend/pkg/geospatial"
	"land-portal/land-portal-backend/pkg/workflows"
)

var (
	ErrReadOnly         = errors.New("drawing is disabled in read-only mode")
	ErrInvalidMode      = errors.New("invalid draw mode transition")
	ErrTooFewVertices   = errors.New("a polygon needs at least 3 vertices")
	ErrSelfIntersection = errors.New("polygon edges must not intersect")
	ErrShapeNotFound    = errors.New("shape not found")
	ErrDuplicateVertex  = errors.New("vertex repeats the previous one")
)

// Options configures a controller
type Options struct {
	ReadOnly bool
	Logger   *zap.Logger
}

// Controller turns drawing gestures into area measurements and a linear
// undo/redo history. It is not safe for concurrent use; callers serialize access.
type Controller struct {
	session *mapsession.Session
	layer   *mapsession.LayerGroup
	history *History
	modes   *workflows.StateMachine
	logger  *zap.Logger

	readOnly  bool
	mode      string
	vertices  []orb.Point
	editingID string
	area      float64
	listeners []Listener
}

// NewController binds a controller to the session's drawn-shapes layer
func NewController(session *mapsession.Session, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		session:  session,
		layer:    session.Shapes(),
		history:  NewHistory(),
		modes:    workflows.NewDrawModeMachine(),
		logger:   logger,
		readOnly: opts.ReadOnly,
		mode:     workflows.ModeIdle,
	}
}

// Subscribe registers a listener for every subsequent event
func (c *Controller) Subscribe(l Listener) {
	c.listeners = append(c.listeners, l)
}

// Mode is one of the workflows.Mode* constants
func (c *Controller) Mode() string { return c.mode }

// ReadOnly reports whether gestures are disabled
func (c *Controller) ReadOnly() bool { return c.readOnly }

// Area is the last reported area in hectares
func (c *Controller) Area() float64 { return c.area }

// History exposes the undo/redo stacks for inspection
func (c *Controller) History() *History { return c.history }

// CurrentPolygon is the snapshot on top of the undo stack
func (c *Controller) CurrentPolygon() *geojson.Feature { return c.history.Top() }

// OnShapeCreated renders a finished shape, records it and reports its area
func (c *Controller) OnShapeCreated(shape mapsession.Shape) error {
	if err := c.layer.Add(shape); err != nil {
		return err
	}

	hectares := shape.AreaHectares()
	snapshot := shape.Feature()
	c.history.Push(snapshot)
	c.report(EventCreated, hectares, snapshot, []mapsession.Shape{shape})
	return nil
}

// OnShapeEdited replaces the edited shapes, records one snapshot per shape and
// reports the sum of their areas. Shapes not part of the batch do not count.
func (c *Controller) OnShapeEdited(shapes []mapsession.Shape) error {
	if len(shapes) == 0 {
		return nil
	}
	normalized := make([]mapsession.Shape, 0, len(shapes))
	for _, sh := range shapes {
		if err := validateRing(sh.Ring); err != nil {
			return fmt.Errorf("shape %s: %w", sh.ID, err)
		}
		if sh.ID == "" {
			sh = mapsession.NewShape(sh.Ring)
		}
		sh.Ring = geospatial.CloseRing(sh.Ring)
		normalized = append(normalized, sh)
	}
	shapes = normalized

	if err := c.layer.Reset(mergeShapes(c.layer.Shapes(), shapes)); err != nil {
		return err
	}

	var total float64
	var last *geojson.Feature
	for _, sh := range shapes {
		total += sh.AreaHectares()
		last = sh.Feature()
		c.history.Push(last)
	}
	c.report(EventEdited, total, last, shapes)
	return nil
}

// Undo steps back one snapshot. It is a no-op when there is nothing to undo.
// Confirm or cancel an edit first.
func (c *Controller) Undo() error {
	if c.mode == workflows.ModeEditing {
		return fmt.Errorf("%w: editing", ErrInvalidMode)
	}
	if !c.history.CanUndo() {
		return nil
	}
	top, _ := c.history.Undo()
	if top == nil {
		if err := c.layer.Clear(); err != nil {
			return err
		}
		c.report(EventUndone, 0, nil, nil)
		return nil
	}

	shape, err := c.restore(top)
	if err != nil {
		return err
	}
	c.report(EventUndone, shape.AreaHectares(), top, []mapsession.Shape{shape})
	return nil
}

// Redo re-applies the most recently undone snapshot. It is a no-op when
// there is nothing to redo.
func (c *Controller) Redo() error {
	if c.mode == workflows.ModeEditing {
		return fmt.Errorf("%w: editing", ErrInvalidMode)
	}
	next, ok := c.history.Redo()
	if !ok {
		return nil
	}

	shape, err := c.restore(next)
	if err != nil {
		return err
	}
	c.report(EventRedone, shape.AreaHectares(), next, []mapsession.Shape{shape})
	return nil
}

// Clear removes every shape and forgets the history
func (c *Controller) Clear() error {
	if c.readOnly {
		return ErrReadOnly
	}
	if err := c.layer.Clear(); err != nil {
		return err
	}
	c.history.Reset()
	c.report(EventCleared, 0, nil, nil)
	return nil
}

// LoadInitial renders an existing polygon, reports its area and fits the
// viewport to it. It is not recorded in history.
func (c *Controller) LoadInitial(feature *geojson.Feature) error {
	shape, err := mapsession.ShapeFromFeature(feature)
	if err != nil {
		return err
	}
	if err := validateRing(shape.Ring); err != nil {
		return err
	}
	if err := c.layer.Add(shape); err != nil {
		return err
	}
	if err := c.session.FitBounds(shape.Bound()); err != nil {
		return err
	}
	c.report(EventLoaded, shape.AreaHectares(), shape.Feature(), []mapsession.Shape{shape})
	return nil
}

// StartDrawing enters drawing mode with no vertices placed
func (c *Controller) StartDrawing() error {
	if c.readOnly {
		return ErrReadOnly
	}
	if err := c.transition(workflows.ModeDrawing); err != nil {
		return err
	}
	c.vertices = nil
	return nil
}

// AddVertex places the next vertex. A vertex whose edge would cross the
// polygon is rejected and not placed. Clicking the first vertex again once
// three are placed finishes the polygon.
func (c *Controller) AddVertex(ll geospatial.LatLng) error {
	if c.mode != workflows.ModeDrawing {
		return fmt.Errorf("%w: not drawing", ErrInvalidMode)
	}
	p := ll.Point()
	if n := len(c.vertices); n > 0 {
		if p.Equal(c.vertices[n-1]) {
			return ErrDuplicateVertex
		}
		if n >= 3 && p.Equal(c.vertices[0]) {
			_, err := c.FinishDrawing()
			return err
		}
	}
	if geospatial.NewEdgeIntersects(c.vertices, p) {
		return ErrSelfIntersection
	}
	c.vertices = append(c.vertices, p)
	return nil
}

// Vertices returns the vertices placed so far
func (c *Controller) Vertices() []geospatial.LatLng {
	out := make([]geospatial.LatLng, 0, len(c.vertices))
	for _, p := range c.vertices {
		out = append(out, geospatial.FromPoint(p))
	}
	return out
}

// PreviewArea is the area the polygon would have if the cursor were the next vertex
func (c *Controller) PreviewArea(cursor geospatial.LatLng) (float64, error) {
	if c.mode != workflows.ModeDrawing {
		return 0, fmt.Errorf("%w: not drawing", ErrInvalidMode)
	}
	ring := make(orb.Ring, 0, len(c.vertices)+2)
	ring = append(ring, c.vertices...)
	ring = append(ring, cursor.Point())
	return geospatial.AreaHectares(ring), nil
}

// FinishDrawing closes the ring and emits a created event
func (c *Controller) FinishDrawing() (mapsession.Shape, error) {
	if c.mode != workflows.ModeDrawing {
		return mapsession.Shape{}, fmt.Errorf("%w: not drawing", ErrInvalidMode)
	}
	if !geospatial.EnclosesArea(orb.Ring(c.vertices)) {
		return mapsession.Shape{}, ErrTooFewVertices
	}
	if geospatial.ClosingEdgeIntersects(c.vertices) {
		return mapsession.Shape{}, ErrSelfIntersection
	}

	shape := mapsession.NewShape(orb.Ring(c.vertices))
	if err := c.transition(workflows.ModeIdle); err != nil {
		return mapsession.Shape{}, err
	}
	c.vertices = nil

	if err := c.OnShapeCreated(shape); err != nil {
		return mapsession.Shape{}, err
	}
	return shape, nil
}

// CancelDrawing drops the vertices placed so far without touching history
func (c *Controller) CancelDrawing() error {
	if c.mode != workflows.ModeDrawing {
		return fmt.Errorf("%w: not drawing", ErrInvalidMode)
	}
	c.vertices = nil
	return c.transition(workflows.ModeIdle)
}

// BeginEdit enters editing mode for a rendered shape
func (c *Controller) BeginEdit(shapeID string) error {
	if c.readOnly {
		return ErrReadOnly
	}
	if !c.hasShape(shapeID) {
		return fmt.Errorf("%w: %s", ErrShapeNotFound, shapeID)
	}
	if err := c.transition(workflows.ModeEditing); err != nil {
		return err
	}
	c.editingID = shapeID
	return nil
}

// EditingShape is the id passed to BeginEdit while editing
func (c *Controller) EditingShape() string { return c.editingID }

// ConfirmEdit applies the edited shapes and returns to idle. On a rejected
// shape the controller stays in editing mode.
func (c *Controller) ConfirmEdit(shapes []mapsession.Shape) error {
	if c.mode != workflows.ModeEditing {
		return fmt.Errorf("%w: not editing", ErrInvalidMode)
	}
	if err := c.OnShapeEdited(shapes); err != nil {
		return err
	}
	c.editingID = ""
	return c.transition(workflows.ModeIdle)
}

// CancelEdit leaves editing mode without changes
func (c *Controller) CancelEdit() error {
	if c.mode != workflows.ModeEditing {
		return fmt.Errorf("%w: not editing", ErrInvalidMode)
	}
	c.editingID = ""
	return c.transition(workflows.ModeIdle)
}

func (c *Controller) transition(to string) error {
	if !c.modes.CanTransition(c.mode, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidMode, c.mode, to)
	}
	c.mode = to
	return nil
}

func (c *Controller) restore(snapshot *geojson.Feature) (mapsession.Shape, error) {
	shape, err := mapsession.ShapeFromFeature(snapshot)
	if err != nil {
		return mapsession.Shape{}, fmt.Errorf("restore snapshot: %w", err)
	}
	if err := c.layer.Reset([]mapsession.Shape{shape}); err != nil {
		return mapsession.Shape{}, err
	}
	return shape, nil
}

func (c *Controller) hasShape(id string) bool {
	for _, sh := range c.layer.Shapes() {
		if sh.ID == id {
			return true
		}
	}
	return false
}

func (c *Controller) report(kind EventKind, hectares float64, polygon *geojson.Feature, shapes []mapsession.Shape) {
	c.area = hectares
	ev := Event{
		Kind:         kind,
		AreaHectares: hectares,
		Polygon:      polygon,
		Shapes:       shapes,
		UndoDepth:    c.history.UndoLen(),
		RedoDepth:    c.history.RedoLen(),
	}
	c.logger.Debug("Draw event",
		zap.String("kind", string(kind)),
		zap.Float64("area_ha", hectares),
		zap.Int("undo_depth", ev.UndoDepth),
		zap.Int("redo_depth", ev.RedoDepth))

	for _, l := range c.listeners {
		l(ev)
	}
}

func validateRing(ring orb.Ring) error {
	closed := geospatial.CloseRing(ring)
	if !geospatial.EnclosesArea(closed) {
		return ErrTooFewVertices
	}
	if geospatial.RingSelfIntersects(closed) {
		return ErrSelfIntersection
	}
	return nil
}

// mergeShapes replaces shapes by id and appends the ones not yet rendered
func mergeShapes(current, edited []mapsession.Shape) []mapsession.Shape {
	out := make([]mapsession.Shape, len(current))
	copy(out, current)
	index := make(map[string]int, len(out))
	for i, sh := range out {
		index[sh.ID] = i
	}
	for _, sh := range edited {
		if i, ok := index[sh.ID]; ok {
			out[i] = sh
			continue
		}
		index[sh.ID] = len(out)
		out = append(out, sh)
	}
	return out
}
