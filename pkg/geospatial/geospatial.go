package geospatial

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

var (
	ErrNoGeometry          = errors.New("invalid GeoJSON: no geometry")
	ErrUnsupportedGeometry = errors.New("unsupported geometry: expected a single polygon")
	ErrEmptyRing           = errors.New("polygon has no outer ring")
)

// LatLng is a geographic point in the order users and map widgets speak it.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point converts to orb's (lng, lat) order.
func (ll LatLng) Point() orb.Point {
	return orb.Point{ll.Lng, ll.Lat}
}

// FromPoint converts an orb point back to LatLng.
func FromPoint(p orb.Point) LatLng {
	return LatLng{Lat: p.Lat(), Lng: p.Lon()}
}

// ParseFeature decodes a GeoJSON feature and rejects features without geometry.
func ParseFeature(data []byte) (*geojson.Feature, error) {
	if !json.Valid(data) {
		return nil, errors.New("invalid GeoJSON: malformed JSON")
	}

	feature, err := geojson.UnmarshalFeature(data)
	if err != nil {
		return nil, err
	}

	if feature.Geometry == nil {
		return nil, ErrNoGeometry
	}

	return feature, nil
}

// OuterRing returns the closed outer ring of a polygon geometry. Holes are ignored.
func OuterRing(geometry orb.Geometry) (orb.Ring, error) {
	var ring orb.Ring
	switch g := geometry.(type) {
	case orb.Polygon:
		if len(g) == 0 {
			return nil, ErrEmptyRing
		}
		ring = g[0]
	case orb.Ring:
		ring = g
	case nil:
		return nil, ErrNoGeometry
	default:
		return nil, fmt.Errorf("%w: got %s", ErrUnsupportedGeometry, g.GeoJSONType())
	}

	if len(ring) == 0 {
		return nil, ErrEmptyRing
	}
	return CloseRing(ring), nil
}

// CloseRing returns a copy of ring whose last point equals its first.
func CloseRing(ring orb.Ring) orb.Ring {
	if len(ring) == 0 {
		return orb.Ring{}
	}
	out := make(orb.Ring, len(ring), len(ring)+1)
	copy(out, ring)
	if !ring.Closed() {
		out = append(out, ring[0])
	}
	return out
}

// RingFromLatLngs builds a closed ring from (lat, lng) points.
func RingFromLatLngs(points []LatLng) orb.Ring {
	ring := make(orb.Ring, 0, len(points)+1)
	for _, p := range points {
		ring = append(ring, p.Point())
	}
	return CloseRing(ring)
}

// CalculateArea calculates the area in square meters for a geometry
func CalculateArea(geometry orb.Geometry) float64 {
	return geo.Area(geometry)
}

// AreaHectares is the geodesic area of an outer ring in hectares.
// Rings with fewer than three distinct vertices have no area.
func AreaHectares(ring orb.Ring) float64 {
	closed := CloseRing(ring)
	if len(closed) < 4 {
		return 0
	}
	return ConvertToHectares(CalculateArea(orb.Polygon{closed}))
}

// EnclosesArea reports whether a ring has at least 3 distinct vertices and
// a non-zero planar area. The ring may be open or closed.
func EnclosesArea(ring orb.Ring) bool {
	distinct := make(map[orb.Point]struct{}, len(ring))
	for _, p := range ring {
		distinct[p] = struct{}{}
	}
	if len(distinct) < 3 {
		return false
	}
	return planar.Area(CloseRing(ring)) != 0
}

// FeatureAreaHectares measures the outer ring of a polygon feature.
func FeatureAreaHectares(feature *geojson.Feature) (float64, error) {
	if feature == nil {
		return 0, ErrNoGeometry
	}
	ring, err := OuterRing(feature.Geometry)
	if err != nil {
		return 0, err
	}
	return AreaHectares(ring), nil
}

// CalculateCentroid calculates the centroid of a geometry
func CalculateCentroid(geometry orb.Geometry) orb.Point {
	centroid, _ := planar.CentroidArea(geometry)
	return centroid
}

// ConvertToHectares converts square meters to hectares
func ConvertToHectares(sqMeters float64) float64 {
	return sqMeters / 10000
}

// NewPolygonFeature wraps a ring into a Feature<Polygon>.
func NewPolygonFeature(ring orb.Ring, props geojson.Properties) *geojson.Feature {
	feature := geojson.NewFeature(orb.Polygon{CloseRing(ring)})
	for k, v := range props {
		feature.Properties[k] = v
	}
	return feature
}
