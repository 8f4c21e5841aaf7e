package listingform

import (
	"github.com/paulmach/orb/geojson"

	"land-portal/land-portal-backend/internal/drawing"
)

// FormFields are the values a user types next to the map
type FormFields struct {
	Title           string  `json:"title"`
	Region          string  `json:"region"`
	District        string  `json:"district"`
	Location        string  `json:"location"`
	Description     string  `json:"description"`
	PricePerHectare float64 `json:"pricePerHectare"`
}

// Submission is the payload sent to the listing API
type Submission struct {
	Title           string           `json:"title,omitempty"`
	Region          string           `json:"region"`
	District        string           `json:"district"`
	Location        string           `json:"location,omitempty"`
	Description     string           `json:"description"`
	SelectedArea    float64          `json:"selectedArea"`
	PricePerHectare float64          `json:"pricePerHectare"`
	PolygonGeoJSON  *geojson.Feature `json:"polygonGeoJSON"`
}

// Bridge mirrors the controller's current polygon and area for the
// surrounding form. It does no validation and no I/O.
type Bridge struct {
	CurrentArea           float64
	CurrentPolygonGeoJSON *geojson.Feature

	onChange []func(*Bridge)
}

// NewBridge subscribes a bridge to every controller event
func NewBridge(c *drawing.Controller) *Bridge {
	b := &Bridge{}
	c.Subscribe(b.Handle)
	return b
}

// Handle applies a controller event
func (b *Bridge) Handle(ev drawing.Event) {
	b.CurrentArea = ev.AreaHectares
	b.CurrentPolygonGeoJSON = ev.Polygon
	for _, fn := range b.onChange {
		fn(b)
	}
}

// OnChange registers a callback run after every update
func (b *Bridge) OnChange(fn func(*Bridge)) {
	b.onChange = append(b.onChange, fn)
}

// Submission combines the form fields with the current polygon and area
func (b *Bridge) Submission(form FormFields) Submission {
	return Submission{
		Title:           form.Title,
		Region:          form.Region,
		District:        form.District,
		Location:        form.Location,
		Description:     form.Description,
		SelectedArea:    b.CurrentArea,
		PricePerHectare: form.PricePerHectare,
		PolygonGeoJSON:  b.CurrentPolygonGeoJSON,
	}
}
