package mapsession

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"land-portal/land-portal-backend/pkg/geospatial"
)

var (
	ErrNotInitialized   = errors.New("map session is not initialized")
	ErrTornDown         = errors.New("map session was torn down")
	ErrUnknownBaseLayer = errors.New("unknown base layer")
)

const (
	DefaultMaxZoom       = 19
	DefaultLocateZoom    = 15
	DefaultLocateTimeout = 10 * time.Second

	tileSize         = 256
	worldMercatorLen = 2 * math.Pi * orb.EarthRadius
)

// View is a snapshot of everything a client needs to redraw the map
type View struct {
	ContainerID string            `json:"container_id"`
	Center      geospatial.LatLng `json:"center"`
	Zoom        int               `json:"zoom"`
	BaseLayers  []BaseLayer       `json:"base_layers"`
	Shapes      []Shape           `json:"shapes"`
	Loading     bool              `json:"loading"`
}

// Renderer receives the view synchronously after every mutation
type Renderer interface {
	Render(view View)
}

// RendererFunc adapts a function to Renderer
type RendererFunc func(view View)

func (f RendererFunc) Render(view View) { f(view) }

// Options configures a session
type Options struct {
	Tiles         TileSources
	MaxZoom       int
	WidthPx       int
	HeightPx      int
	LocateTimeout time.Duration
	Renderer      Renderer
}

// Session owns one map viewport, its base layer selection and its drawn shapes
type Session struct {
	opts   Options
	layers map[BaseLayerKind]BaseLayer

	mu          sync.Mutex
	initialized bool
	tornDown    bool
	containerID string
	center      geospatial.LatLng
	zoom        int
	attached    []BaseLayerKind
	shapes      []Shape
	pending     map[*Task]struct{}

	group *LayerGroup
}

// New creates a session. Nothing is allocated until Initialize.
func New(opts Options) *Session {
	if opts.MaxZoom <= 0 {
		opts.MaxZoom = DefaultMaxZoom
	}
	if opts.WidthPx <= 0 {
		opts.WidthPx = 800
	}
	if opts.HeightPx <= 0 {
		opts.HeightPx = 600
	}
	if opts.LocateTimeout <= 0 {
		opts.LocateTimeout = DefaultLocateTimeout
	}
	s := &Session{
		opts:    opts,
		layers:  NewBaseLayers(opts.Tiles),
		pending: make(map[*Task]struct{}),
	}
	s.group = &LayerGroup{session: s}
	return s
}

// Initialize creates the viewport. Calling it again while initialized is a no-op.
func (s *Session) Initialize(containerID string, center geospatial.LatLng, zoom int) error {
	s.mu.Lock()
	if s.tornDown {
		s.mu.Unlock()
		return ErrTornDown
	}
	if s.initialized {
		s.mu.Unlock()
		return nil
	}
	s.initialized = true
	s.containerID = containerID
	s.center = center
	s.zoom = s.clampZoom(zoom)
	s.attached = []BaseLayerKind{BaseStreet}
	s.shapes = nil
	view := s.viewLocked()
	s.mu.Unlock()

	s.render(view)
	return nil
}

// Initialized reports whether the viewport exists
func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// SetBaseLayer detaches every base layer and attaches exactly one
func (s *Session) SetBaseLayer(kind BaseLayerKind) error {
	if _, ok := s.layers[kind]; !ok {
		return ErrUnknownBaseLayer
	}

	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	s.attached = s.attached[:0]
	s.attached = append(s.attached, kind)
	view := s.viewLocked()
	s.mu.Unlock()

	s.render(view)
	return nil
}

// BaseLayer returns the currently attached base layer kind
func (s *Session) BaseLayer() BaseLayerKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.attached) == 0 {
		return ""
	}
	return s.attached[len(s.attached)-1]
}

// AttachedBaseLayers lists the attached base layers with their tile sources
func (s *Session) AttachedBaseLayers() []BaseLayer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attachedLocked()
}

// Shapes is the drawn-shapes layer group
func (s *Session) Shapes() *LayerGroup {
	return s.group
}

// SetView moves the viewport
func (s *Session) SetView(center geospatial.LatLng, zoom int) error {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	s.center = center
	s.zoom = s.clampZoom(zoom)
	view := s.viewLocked()
	s.mu.Unlock()

	s.render(view)
	return nil
}

// FitBounds centers on bound at the highest zoom that keeps it inside the container
func (s *Session) FitBounds(bound orb.Bound) error {
	center := geospatial.FromPoint(bound.Center())
	return s.SetView(center, s.fitZoom(bound))
}

// Center returns the viewport center
func (s *Session) Center() geospatial.LatLng {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.center
}

// Zoom returns the viewport zoom
func (s *Session) Zoom() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

// Loading reports whether an async lookup is in flight
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) > 0
}

// View returns the current snapshot
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Teardown releases the viewport, all layers and pending lookups.
// The session cannot be initialized again afterwards.
func (s *Session) Teardown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tornDown {
		return ErrTornDown
	}
	if !s.initialized {
		return ErrNotInitialized
	}

	for task := range s.pending {
		task.cancel()
	}
	s.pending = make(map[*Task]struct{})
	s.attached = nil
	s.shapes = nil
	s.initialized = false
	s.tornDown = true
	return nil
}

func (s *Session) attachedLocked() []BaseLayer {
	out := make([]BaseLayer, 0, len(s.attached))
	for _, kind := range s.attached {
		out = append(out, s.layers[kind])
	}
	return out
}

func (s *Session) viewLocked() View {
	shapes := make([]Shape, len(s.shapes))
	copy(shapes, s.shapes)
	return View{
		ContainerID: s.containerID,
		Center:      s.center,
		Zoom:        s.zoom,
		BaseLayers:  s.attachedLocked(),
		Shapes:      shapes,
		Loading:     len(s.pending) > 0,
	}
}

func (s *Session) render(view View) {
	if s.opts.Renderer != nil {
		s.opts.Renderer.Render(view)
	}
}

func (s *Session) clampZoom(zoom int) int {
	if zoom < 0 {
		return 0
	}
	if zoom > s.opts.MaxZoom {
		return s.opts.MaxZoom
	}
	return zoom
}

// fitZoom picks the zoom level at which bound spans at most the container size
func (s *Session) fitZoom(bound orb.Bound) int {
	lo := project.WGS84.ToMercator(bound.Min)
	hi := project.WGS84.ToMercator(bound.Max)
	spanX := math.Abs(hi[0] - lo[0])
	spanY := math.Abs(hi[1] - lo[1])
	if spanX == 0 && spanY == 0 {
		return s.opts.MaxZoom
	}

	zoom := math.Inf(1)
	if spanX > 0 {
		zoom = math.Min(zoom, math.Log2(float64(s.opts.WidthPx)*worldMercatorLen/(tileSize*spanX)))
	}
	if spanY > 0 {
		zoom = math.Min(zoom, math.Log2(float64(s.opts.HeightPx)*worldMercatorLen/(tileSize*spanY)))
	}
	return s.clampZoom(int(math.Floor(zoom)))
}
