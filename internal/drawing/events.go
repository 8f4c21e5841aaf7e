package drawing

import (
	"github.com/paulmach/orb/geojson"

	"land-portal/land-portal-backend/internal/mapsession"
)

// EventKind tags what changed the drawn polygons
type EventKind string

const (
	EventCreated EventKind = "created"
	EventEdited  EventKind = "edited"
	EventUndone  EventKind = "undone"
	EventRedone  EventKind = "redone"
	EventCleared EventKind = "cleared"
	EventLoaded  EventKind = "loaded"
)

// Event is delivered to listeners after every change, on the caller's goroutine.
// Polygon is the current polygon snapshot, nil when nothing is left.
type Event struct {
	Kind         EventKind          `json:"kind"`
	AreaHectares float64            `json:"area_ha"`
	Polygon      *geojson.Feature   `json:"polygon"`
	Shapes       []mapsession.Shape `json:"shapes,omitempty"`
	UndoDepth    int                `json:"undo_depth"`
	RedoDepth    int                `json:"redo_depth"`
}

// Listener receives controller events
type Listener func(Event)
