package drawsessions

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"land-portal/land-portal-backend/internal/drawing"
	"land-portal/land-portal-backend/internal/listingform"
	"land-portal/land-portal-backend/internal/mapsession"
	"land-portal/land-portal-backend/pkg/geospatial"
)

var ErrSessionNotFound = errors.New("draw session not found")

// Publisher receives every view and draw event of every session
type Publisher interface {
	Publish(sessionID, msgType string, data interface{})
	CloseSession(sessionID string)
}

// Settings are the defaults applied to new sessions
type Settings struct {
	Center        geospatial.LatLng
	Zoom          int
	MaxZoom       int
	Tiles         mapsession.TileSources
	LocateTimeout time.Duration
	IdleTimeout   time.Duration
}

// CreateRequest opens a session. Zero center and zoom take the defaults.
type CreateRequest struct {
	Center         *geospatial.LatLng `json:"center"`
	Zoom           int                `json:"zoom"`
	ReadOnly       bool               `json:"read_only"`
	InitialPolygon *geojson.Feature   `json:"initial_polygon"`
}

// Entry is one hosted map session with its controller and form bridge
type Entry struct {
	ID         string
	Session    *mapsession.Session
	Controller *drawing.Controller
	Bridge     *listingform.Bridge
	CreatedAt  time.Time

	mu       sync.Mutex
	lastUsed time.Time
}

// Registry hosts draw sessions. Access to one session is serialized.
type Registry struct {
	settings  Settings
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Entry

	cron *cron.Cron
}

// NewRegistry creates an empty registry. publisher may be nil.
func NewRegistry(settings Settings, publisher Publisher, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.Zoom <= 0 {
		settings.Zoom = 13
	}
	return &Registry{
		settings:  settings,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		sessions:  make(map[string]*Entry),
	}
}

// Create opens and initializes a new session
func (r *Registry) Create(req CreateRequest) (*Entry, error) {
	id := uuid.New().String()

	opts := mapsession.Options{
		Tiles:         r.settings.Tiles,
		MaxZoom:       r.settings.MaxZoom,
		LocateTimeout: r.settings.LocateTimeout,
	}
	if r.publisher != nil {
		opts.Renderer = mapsession.RendererFunc(func(v mapsession.View) {
			r.publisher.Publish(id, MessageTypeView, v)
		})
	}
	session := mapsession.New(opts)

	center := r.settings.Center
	if req.Center != nil {
		center = *req.Center
	}
	zoom := r.settings.Zoom
	if req.Zoom > 0 {
		zoom = req.Zoom
	}
	if err := session.Initialize(id, center, zoom); err != nil {
		return nil, err
	}

	controller := drawing.NewController(session, drawing.Options{
		ReadOnly: req.ReadOnly,
		Logger:   r.logger.With(zap.String("session_id", id)),
	})
	if r.publisher != nil {
		controller.Subscribe(func(ev drawing.Event) {
			r.publisher.Publish(id, MessageTypeEvent, ev)
		})
	}
	entry := &Entry{
		ID:         id,
		Session:    session,
		Controller: controller,
		Bridge:     listingform.NewBridge(controller),
		CreatedAt:  r.now(),
		lastUsed:   r.now(),
	}

	if req.InitialPolygon != nil {
		if err := controller.LoadInitial(req.InitialPolygon); err != nil {
			_ = session.Teardown()
			return nil, fmt.Errorf("initial polygon: %w", err)
		}
	}

	r.mu.Lock()
	r.sessions[id] = entry
	r.mu.Unlock()

	r.logger.Info("Draw session created", zap.String("session_id", id), zap.Bool("read_only", req.ReadOnly))
	return entry, nil
}

// With runs fn while holding the session's lock
func (r *Registry) With(id string, fn func(*Entry) error) error {
	r.mu.RLock()
	entry, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.lastUsed = r.now()
	return fn(entry)
}

// Delete tears a session down and disconnects its subscribers
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	entry, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return r.teardown(entry)
}

// Len returns the number of open sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep tears down sessions idle longer than the idle timeout
func (r *Registry) Sweep() int {
	if r.settings.IdleTimeout <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.settings.IdleTimeout)

	var idle []*Entry
	r.mu.Lock()
	for id, entry := range r.sessions {
		entry.mu.Lock()
		stale := entry.lastUsed.Before(cutoff)
		entry.mu.Unlock()
		if stale {
			idle = append(idle, entry)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, entry := range idle {
		if err := r.teardown(entry); err != nil {
			r.logger.Warn("Failed to tear down idle session", zap.String("session_id", entry.ID), zap.Error(err))
		}
	}
	if len(idle) > 0 {
		r.logger.Info("Swept idle draw sessions", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// StartSweeper runs Sweep on a cron schedule until Stop
func (r *Registry) StartSweeper(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { r.Sweep() }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	r.cron = c
	c.Start()
	return nil
}

// Stop ends the sweeper and tears down every session
func (r *Registry) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}

	r.mu.Lock()
	entries := make([]*Entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		entries = append(entries, e)
	}
	r.sessions = make(map[string]*Entry)
	r.mu.Unlock()

	for _, e := range entries {
		_ = r.teardown(e)
	}
}

func (r *Registry) teardown(entry *Entry) error {
	entry.mu.Lock()
	err := entry.Session.Teardown()
	entry.mu.Unlock()

	if r.publisher != nil {
		r.publisher.CloseSession(entry.ID)
	}
	r.logger.Info("Draw session closed", zap.String("session_id", entry.ID))
	return err
}
