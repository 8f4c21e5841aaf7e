package mapsession

import "fmt"

// BaseLayerKind names one of the selectable background layers
type BaseLayerKind string

const (
	BaseStreet    BaseLayerKind = "street"
	BaseSatellite BaseLayerKind = "satellite"
	BaseHybrid    BaseLayerKind = "hybrid"
)

const (
	DefaultStreetURL    = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	DefaultSatelliteURL = "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}"

	streetAttribution    = "© OpenStreetMap contributors"
	satelliteAttribution = "Tiles © Esri, Source: Esri, i-cubed, USDA, USGS, AEX, GeoEye, Getmapping, Aerogrid, IGN, IGP, UPR-EGP, and the GIS User Community"

	hybridOverlayOpacity = 0.7
)

// ParseBaseLayerKind validates a layer name coming from a client
func ParseBaseLayerKind(s string) (BaseLayerKind, error) {
	switch k := BaseLayerKind(s); k {
	case BaseStreet, BaseSatellite, BaseHybrid:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBaseLayer, s)
	}
}

// TileLayer is a single raster tile source
type TileLayer struct {
	URLTemplate string  `json:"url_template"`
	Attribution string  `json:"attribution"`
	Opacity     float64 `json:"opacity"`
}

// BaseLayer is what gets attached under the drawn shapes.
// Hybrid is a composite: imagery with a semi-transparent street overlay.
type BaseLayer struct {
	Kind  BaseLayerKind `json:"kind"`
	Tiles []TileLayer   `json:"tiles"`
}

// TileSources holds the URL templates used to build the base layer set
type TileSources struct {
	StreetURL    string
	SatelliteURL string
}

// NewBaseLayers builds the {street, satellite, hybrid} set
func NewBaseLayers(src TileSources) map[BaseLayerKind]BaseLayer {
	if src.StreetURL == "" {
		src.StreetURL = DefaultStreetURL
	}
	if src.SatelliteURL == "" {
		src.SatelliteURL = DefaultSatelliteURL
	}

	street := TileLayer{URLTemplate: src.StreetURL, Attribution: streetAttribution, Opacity: 1}
	satellite := TileLayer{URLTemplate: src.SatelliteURL, Attribution: satelliteAttribution, Opacity: 1}
	overlay := street
	overlay.Opacity = hybridOverlayOpacity

	return map[BaseLayerKind]BaseLayer{
		BaseStreet:    {Kind: BaseStreet, Tiles: []TileLayer{street}},
		BaseSatellite: {Kind: BaseSatellite, Tiles: []TileLayer{satellite}},
		BaseHybrid:    {Kind: BaseHybrid, Tiles: []TileLayer{satellite, overlay}},
	}
}
