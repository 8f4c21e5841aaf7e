package landclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"land-portal/land-portal-backend/pkg/geospatial"
)

const DefaultBaseURL = "http://localhost:9090"

// ErrLoadFailed is the one error callers see for any failed listing query
var ErrLoadFailed = errors.New("failed to load listings")

// Land is a listing as returned by the API
type Land struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Region          string           `json:"region"`
	District        string           `json:"district"`
	Location        string           `json:"location"`
	Description     string           `json:"description"`
	SelectedArea    float64          `json:"selectedArea"`
	PricePerHectare float64          `json:"pricePerHectare"`
	TotalPrice      float64          `json:"totalPrice"`
	ImageURL        string           `json:"imageUrl"`
	Polygon         *geojson.Feature `json:"-"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// DisplayTitle is the card title: the explicit title, or "region - district"
func (l *Land) DisplayTitle() string {
	if l.Title != "" {
		return l.Title
	}
	return l.Region + " - " + l.District
}

// UnmarshalJSON tolerates a missing or malformed polygon
func (l *Land) UnmarshalJSON(data []byte) error {
	type plain Land
	var raw struct {
		plain
		PolygonGeoJSON json.RawMessage `json:"polygonGeoJSON"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = Land(raw.plain)
	if len(raw.PolygonGeoJSON) > 0 {
		if f, err := geospatial.ParseFeature(raw.PolygonGeoJSON); err == nil {
			l.Polygon = f
		}
	}
	if l.TotalPrice == 0 {
		l.TotalPrice = l.SelectedArea * l.PricePerHectare
	}
	return nil
}

// Client queries the listing API. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetAll fetches every listing, optionally filtered by region and district
func (c *Client) GetAll(ctx context.Context, region, district string) ([]Land, error) {
	q := url.Values{}
	if region != "" {
		q.Set("region", region)
	}
	if district != "" {
		q.Set("district", district)
	}
	path := "/lands/getAll"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []Land
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Land{}
	}
	return out, nil
}

// GetByID fetches one listing
func (c *Client) GetByID(ctx context.Context, id string) (*Land, error) {
	var out Land
	if err := c.get(ctx, "/lands/getId/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Listing request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.logger.Warn("Listing request rejected", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: status %d", ErrLoadFailed, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrLoadFailed, err)
	}
	return nil
}
