package export

import "time"

// Listing is the flattened row the exporters render
type Listing struct {
	ID              string
	Title           string
	Region          string
	District        string
	Location        string
	Description     string
	SelectedArea    float64 // hectares
	PricePerHectare float64
	TotalPrice      float64
	ImageURL        string
	CentroidLat     float64
	CentroidLng     float64
	HasCentroid     bool
	CreatedAt       time.Time
}

var listingColumns = []string{
	"ID", "Sarlavha", "Viloyat", "Tuman", "Manzil",
	"Maydon (ga)", "1 ga narxi", "Umumiy narx", "Yaratilgan",
}

func (l Listing) values() []interface{} {
	return []interface{}{
		l.ID, l.Title, l.Region, l.District, l.Location,
		l.SelectedArea, l.PricePerHectare, l.TotalPrice, l.CreatedAt,
	}
}
