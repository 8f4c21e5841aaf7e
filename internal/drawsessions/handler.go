package drawsessions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"land-portal/land-portal-backend/internal/drawing"
	"land-portal/land-portal-backend/internal/lands"
	"land-portal/land-portal-backend/internal/listingform"
	"land-portal/land-portal-backend/internal/mapsession"
	"land-portal/land-portal-backend/pkg/geospatial"
	"land-portal/land-portal-backend/pkg/workflows"
)

// ListingCreator persists a submitted listing
type ListingCreator interface {
	CreateLand(ctx context.Context, req lands.CreateLandRequest) (*lands.Land, error)
}

// State is the JSON view of a draw session
type State struct {
	ID           string              `json:"id"`
	Mode         string              `json:"mode"`
	ReadOnly     bool                `json:"read_only"`
	BaseLayer    string              `json:"base_layer"`
	View         mapsession.View     `json:"view"`
	Vertices     []geospatial.LatLng `json:"vertices,omitempty"`
	EditingShape string              `json:"editing_shape,omitempty"`
	AreaHectares float64             `json:"area_ha"`
	Polygon      *geojson.Feature    `json:"polygon"`
	UndoDepth    int                 `json:"undo_depth"`
	RedoDepth    int                 `json:"redo_depth"`
}

func stateOf(e *Entry) State {
	c := e.Controller
	return State{
		ID:           e.ID,
		Mode:         c.Mode(),
		ReadOnly:     c.ReadOnly(),
		BaseLayer:    string(e.Session.BaseLayer()),
		View:         e.Session.View(),
		Vertices:     c.Vertices(),
		EditingShape: c.EditingShape(),
		AreaHectares: e.Bridge.CurrentArea,
		Polygon:      e.Bridge.CurrentPolygonGeoJSON,
		UndoDepth:    c.History().UndoLen(),
		RedoDepth:    c.History().RedoLen(),
	}
}

type baseLayerRequest struct {
	Kind string `json:"kind" binding:"required"`
}

type editRequest struct {
	Shapes []*geojson.Feature `json:"shapes"`
}

type beginEditRequest struct {
	ShapeID string `json:"shape_id" binding:"required"`
}

type viewRequest struct {
	Center *geospatial.LatLng `json:"center" binding:"required"`
	Zoom   int                `json:"zoom"`
}

// boundsRequest is a geocode result's bounding box
type boundsRequest struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

var (
	errInvalidBounds = errors.New("bounds must have south <= north and west <= east")
	errNoShapes      = errors.New("no shapes to fit")
)

func (r boundsRequest) bound() (orb.Bound, error) {
	if r.South > r.North || r.West > r.East {
		return orb.Bound{}, errInvalidBounds
	}
	return orb.Bound{
		Min: orb.Point{r.West, r.South},
		Max: orb.Point{r.East, r.North},
	}, nil
}

type locateRequest struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Error string  `json:"error"`
}

// Handler exposes draw sessions over HTTP and websockets
type Handler struct {
	registry *Registry
	hub      *Hub
	listings ListingCreator
	logger   *zap.Logger
}

// NewHandler creates a draw session handler. hub and listings may be nil.
func NewHandler(registry *Registry, hub *Hub, listings ListingCreator, logger *zap.Logger) *Handler {
	return &Handler{
		registry: registry,
		hub:      hub,
		listings: listings,
		logger:   logger,
	}
}

// RegisterRoutes registers draw session routes
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	sessions := router.Group("/draw-sessions")
	{
		sessions.POST("", h.create)
		sessions.GET("/:id", h.get)
		sessions.DELETE("/:id", h.delete)
		sessions.PUT("/:id/base-layer", h.setBaseLayer)
		sessions.PUT("/:id/view", h.setView)
		sessions.POST("/:id/fit-bounds", h.fitBounds)
		sessions.POST("/:id/fit-shapes", h.fitShapes)

		sessions.POST("/:id/draw/start", h.startDrawing)
		sessions.POST("/:id/draw/vertex", h.addVertex)
		sessions.POST("/:id/draw/preview", h.preview)
		sessions.POST("/:id/draw/finish", h.finishDrawing)
		sessions.POST("/:id/draw/cancel", h.cancelDrawing)

		sessions.POST("/:id/edit/begin", h.beginEdit)
		sessions.POST("/:id/edit", h.edit)
		sessions.POST("/:id/edit/cancel", h.cancelEdit)

		sessions.POST("/:id/undo", h.undo)
		sessions.POST("/:id/redo", h.redo)
		sessions.POST("/:id/clear", h.clear)

		sessions.POST("/:id/submit", h.submit)
		sessions.POST("/:id/locate", h.locate)
		sessions.GET("/:id/ws", h.subscribe)
	}
}

// create handles POST /draw-sessions
func (h *Handler) create(c *gin.Context) {
	var req CreateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	entry, err := h.registry.Create(req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var state State
	_ = h.registry.With(entry.ID, func(e *Entry) error {
		state = stateOf(e)
		return nil
	})
	c.JSON(http.StatusCreated, state)
}

// get handles GET /draw-sessions/:id
func (h *Handler) get(c *gin.Context) {
	h.respond(c, func(*Entry) error { return nil })
}

// delete handles DELETE /draw-sessions/:id
func (h *Handler) delete(c *gin.Context) {
	if err := h.registry.Delete(c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// setBaseLayer handles PUT /draw-sessions/:id/base-layer
func (h *Handler) setBaseLayer(c *gin.Context) {
	var req baseLayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind, err := mapsession.ParseBaseLayerKind(req.Kind)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.respond(c, func(e *Entry) error { return e.Session.SetBaseLayer(kind) })
}

// setView handles PUT /draw-sessions/:id/view after the client pans or zooms
func (h *Handler) setView(c *gin.Context) {
	var req viewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, func(e *Entry) error { return e.Session.SetView(*req.Center, req.Zoom) })
}

// fitBounds handles POST /draw-sessions/:id/fit-bounds when a geocode result is picked
func (h *Handler) fitBounds(c *gin.Context) {
	var req boundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bound, err := req.bound()
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.respond(c, func(e *Entry) error { return e.Session.FitBounds(bound) })
}

// fitShapes handles POST /draw-sessions/:id/fit-shapes
func (h *Handler) fitShapes(c *gin.Context) {
	h.respond(c, func(e *Entry) error {
		bound, ok := e.Session.Shapes().Bound()
		if !ok {
			return errNoShapes
		}
		return e.Session.FitBounds(bound)
	})
}

func (h *Handler) startDrawing(c *gin.Context) {
	h.respond(c, func(e *Entry) error { return e.Controller.StartDrawing() })
}

func (h *Handler) addVertex(c *gin.Context) {
	var ll geospatial.LatLng
	if err := c.ShouldBindJSON(&ll); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, func(e *Entry) error { return e.Controller.AddVertex(ll) })
}

// preview handles POST /draw-sessions/:id/draw/preview, the live tooltip area
func (h *Handler) preview(c *gin.Context) {
	var cursor geospatial.LatLng
	if err := c.ShouldBindJSON(&cursor); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var area float64
	err := h.registry.With(c.Param("id"), func(e *Entry) error {
		var err error
		area, err = e.Controller.PreviewArea(cursor)
		return err
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"area_ha": area})
}

func (h *Handler) finishDrawing(c *gin.Context) {
	h.respond(c, func(e *Entry) error {
		_, err := e.Controller.FinishDrawing()
		return err
	})
}

func (h *Handler) cancelDrawing(c *gin.Context) {
	h.respond(c, func(e *Entry) error { return e.Controller.CancelDrawing() })
}

func (h *Handler) beginEdit(c *gin.Context) {
	var req beginEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, func(e *Entry) error { return e.Controller.BeginEdit(req.ShapeID) })
}

// edit handles POST /draw-sessions/:id/edit: a batch of edited shapes. It
// confirms a pending edit, or applies the batch directly when idle.
func (h *Handler) edit(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	shapes := make([]mapsession.Shape, 0, len(req.Shapes))
	for _, f := range req.Shapes {
		sh, err := mapsession.ShapeFromFeature(f)
		if err != nil {
			h.writeError(c, err)
			return
		}
		shapes = append(shapes, sh)
	}

	h.respond(c, func(e *Entry) error {
		ctrl := e.Controller
		if ctrl.Mode() == workflows.ModeEditing {
			return ctrl.ConfirmEdit(shapes)
		}
		if ctrl.ReadOnly() {
			return drawing.ErrReadOnly
		}
		if ctrl.Mode() != workflows.ModeIdle {
			return drawing.ErrInvalidMode
		}
		return ctrl.OnShapeEdited(shapes)
	})
}

func (h *Handler) cancelEdit(c *gin.Context) {
	h.respond(c, func(e *Entry) error { return e.Controller.CancelEdit() })
}

func (h *Handler) undo(c *gin.Context) {
	h.respond(c, func(e *Entry) error { return e.Controller.Undo() })
}

func (h *Handler) redo(c *gin.Context) {
	h.respond(c, func(e *Entry) error { return e.Controller.Redo() })
}

func (h *Handler) clear(c *gin.Context) {
	h.respond(c, func(e *Entry) error { return e.Controller.Clear() })
}

// submit handles POST /draw-sessions/:id/submit
func (h *Handler) submit(c *gin.Context) {
	if h.listings == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "listing submission is not configured"})
		return
	}
	var form listingform.FormFields
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var sub listingform.Submission
	if err := h.registry.With(c.Param("id"), func(e *Entry) error {
		sub = e.Bridge.Submission(form)
		return nil
	}); err != nil {
		h.writeError(c, err)
		return
	}

	req := lands.CreateLandRequest{
		Title:           sub.Title,
		Region:          sub.Region,
		District:        sub.District,
		Location:        sub.Location,
		Description:     sub.Description,
		SelectedArea:    sub.SelectedArea,
		PricePerHectare: sub.PricePerHectare,
	}
	if sub.PolygonGeoJSON != nil {
		raw, err := json.Marshal(sub.PolygonGeoJSON)
		if err != nil {
			h.writeError(c, err)
			return
		}
		req.PolygonGeoJSON = datatypes.JSON(raw)
	}

	land, err := h.listings.CreateLand(c.Request.Context(), req)
	if err != nil {
		h.logger.Warn("Listing submission rejected", zap.String("session_id", c.Param("id")), zap.Error(err))
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, land)
}

// locate handles POST /draw-sessions/:id/locate. The body carries the
// browser's geolocation fix, or the error it reported.
func (h *Handler) locate(c *gin.Context) {
	var req locateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	locator := mapsession.LocatorFunc(func(ctx context.Context) (geospatial.LatLng, error) {
		if req.Error != "" {
			return geospatial.LatLng{}, errors.New(req.Error)
		}
		return geospatial.LatLng{Lat: req.Lat, Lng: req.Lng}, nil
	})

	var task *mapsession.Task
	if err := h.registry.With(c.Param("id"), func(e *Entry) error {
		var err error
		task, err = e.Session.Locate(c.Request.Context(), locator)
		return err
	}); err != nil {
		h.writeError(c, err)
		return
	}

	select {
	case <-task.Done():
	case <-c.Request.Context().Done():
		task.Cancel()
		return
	}
	if err := task.Err(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, func(*Entry) error { return nil })
}

// subscribe handles GET /draw-sessions/:id/ws
func (h *Handler) subscribe(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream is not configured"})
		return
	}
	id := c.Param("id")
	if err := h.registry.With(id, func(*Entry) error { return nil }); err != nil {
		h.writeError(c, err)
		return
	}
	if _, err := h.hub.Serve(c.Writer, c.Request, id); err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.String("session_id", id), zap.Error(err))
	}
}

// respond runs op under the session lock and replies with the resulting state
func (h *Handler) respond(c *gin.Context, op func(*Entry) error) {
	var state State
	err := h.registry.With(c.Param("id"), func(e *Entry) error {
		if err := op(e); err != nil {
			return err
		}
		state = stateOf(e)
		return nil
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, drawing.ErrShapeNotFound), errors.Is(err, errNoShapes):
		status = http.StatusNotFound
	case errors.Is(err, drawing.ErrReadOnly):
		status = http.StatusForbidden
	case errors.Is(err, drawing.ErrInvalidMode):
		status = http.StatusConflict
	case errors.Is(err, drawing.ErrTooFewVertices),
		errors.Is(err, drawing.ErrSelfIntersection),
		errors.Is(err, drawing.ErrDuplicateVertex):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, mapsession.ErrNotInitialized), errors.Is(err, mapsession.ErrTornDown):
		status = http.StatusGone
	case errors.Is(err, mapsession.ErrUnknownBaseLayer),
		errors.Is(err, geospatial.ErrNoGeometry),
		errors.Is(err, geospatial.ErrUnsupportedGeometry),
		errors.Is(err, geospatial.ErrEmptyRing),
		errors.Is(err, lands.ErrInvalidListing),
		errors.Is(err, errInvalidBounds):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("Draw session request failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
