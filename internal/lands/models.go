package lands

import (
	"net/url"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Land is a listed parcel
type Land struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title           string         `json:"title"`
	Region          string         `gorm:"not null;index" json:"region"`
	District        string         `gorm:"not null;index" json:"district"`
	Location        string         `json:"location"`
	Description     string         `json:"description"`
	SelectedArea    float64        `gorm:"not null" json:"selectedArea"`    // hectares
	PricePerHectare float64        `gorm:"not null" json:"pricePerHectare"` // UZS
	ImageURL        string         `gorm:"-" json:"imageUrl"` // signed on read
	ImageKey        string         `json:"-"`
	PolygonGeoJSON  datatypes.JSON `json:"polygonGeoJSON"` // GeoJSON Feature<Polygon>
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// TotalPrice is the asking price for the whole parcel
func (l *Land) TotalPrice() float64 {
	return l.SelectedArea * l.PricePerHectare
}

// LandDetail is the detail view, including the derived total price
type LandDetail struct {
	Land
	TotalPrice float64 `json:"totalPrice"`
}

// NewLandDetail wraps a land with its derived fields
func NewLandDetail(l *Land) *LandDetail {
	return &LandDetail{Land: *l, TotalPrice: l.TotalPrice()}
}

// LandFilter narrows the listing query
type LandFilter struct {
	Region   string
	District string
}

// CacheKey identifies a filtered listing in the cache
func (f LandFilter) CacheKey() string {
	return listCachePrefix + url.Values{
		"region":   {f.Region},
		"district": {f.District},
	}.Encode()
}

// CreateLandRequest is the body of POST /lands/create
type CreateLandRequest struct {
	Title           string         `json:"title"`
	Region          string         `json:"region"`
	District        string         `json:"district"`
	Location        string         `json:"location"`
	Description     string         `json:"description"`
	SelectedArea    float64        `json:"selectedArea"`
	PricePerHectare float64        `json:"pricePerHectare"`
	PolygonGeoJSON  datatypes.JSON `json:"polygonGeoJSON"`
}
