package mapsession

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"land-portal/land-portal-backend/pkg/geospatial"
)

// Shape is a drawn polygon: an id plus its closed outer ring in (lng, lat) order
type Shape struct {
	ID   string   `json:"id"`
	Ring orb.Ring `json:"ring"`
}

// NewShape closes ring and assigns a fresh id
func NewShape(ring orb.Ring) Shape {
	return Shape{ID: uuid.NewString(), Ring: geospatial.CloseRing(ring)}
}

// ShapeFromFeature reads the outer ring of a Feature<Polygon>.
// The shape id is taken from the "shape_id" property when present.
func ShapeFromFeature(f *geojson.Feature) (Shape, error) {
	if f == nil {
		return Shape{}, geospatial.ErrNoGeometry
	}
	ring, err := geospatial.OuterRing(f.Geometry)
	if err != nil {
		return Shape{}, fmt.Errorf("read shape: %w", err)
	}
	id := f.Properties.MustString("shape_id", "")
	if id == "" {
		id = uuid.NewString()
	}
	return Shape{ID: id, Ring: ring}, nil
}

// AreaHectares measures the shape
func (s Shape) AreaHectares() float64 {
	return geospatial.AreaHectares(s.Ring)
}

// Feature serializes the shape with its area attached
func (s Shape) Feature() *geojson.Feature {
	return geospatial.NewPolygonFeature(s.Ring, geojson.Properties{
		"shape_id": s.ID,
		"area_ha":  s.AreaHectares(),
	})
}

// Bound is the shape's bounding box
func (s Shape) Bound() orb.Bound {
	return s.Ring.Bound()
}

// LayerGroup is the session's mutable set of drawn shapes
type LayerGroup struct {
	session *Session
}

// Add renders a shape
func (g *LayerGroup) Add(shape Shape) error {
	s := g.session
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	s.shapes = append(s.shapes, shape)
	view := s.viewLocked()
	s.mu.Unlock()

	s.render(view)
	return nil
}

// Clear removes every rendered shape
func (g *LayerGroup) Clear() error {
	s := g.session
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	s.shapes = nil
	view := s.viewLocked()
	s.mu.Unlock()

	s.render(view)
	return nil
}

// Reset replaces every rendered shape in a single redraw
func (g *LayerGroup) Reset(shapes []Shape) error {
	s := g.session
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	s.shapes = make([]Shape, len(shapes))
	copy(s.shapes, shapes)
	view := s.viewLocked()
	s.mu.Unlock()

	s.render(view)
	return nil
}

// Shapes returns a copy of the rendered shapes
func (g *LayerGroup) Shapes() []Shape {
	s := g.session
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Shape, len(s.shapes))
	copy(out, s.shapes)
	return out
}

// Len is the number of rendered shapes
func (g *LayerGroup) Len() int {
	s := g.session
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shapes)
}

// Bound covers every rendered shape
func (g *LayerGroup) Bound() (orb.Bound, bool) {
	shapes := g.Shapes()
	if len(shapes) == 0 {
		return orb.Bound{}, false
	}
	b := shapes[0].Bound()
	for _, sh := range shapes[1:] {
		b = b.Union(sh.Bound())
	}
	return b, true
}
