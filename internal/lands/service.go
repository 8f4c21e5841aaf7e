package lands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"land-portal/land-portal-backend/internal/lands/export"
	"land-portal/land-portal-backend/pkg/geospatial"
	"land-portal/land-portal-backend/pkg/storage"
)

var (
	ErrInvalidListing = errors.New("invalid listing")
	ErrNoImageStorage = errors.New("image storage is not configured")
	ErrImageNotFound  = errors.New("listing has no image")
)

// Service is the listing business logic
type Service interface {
	CreateLand(ctx context.Context, req CreateLandRequest) (*Land, error)
	GetLand(ctx context.Context, id uuid.UUID) (*LandDetail, error)
	ListLands(ctx context.Context, filter LandFilter) ([]Land, error)
	DeleteLand(ctx context.Context, id uuid.UUID) error
	UploadImage(ctx context.Context, id uuid.UUID, filename string, body io.Reader) (*Land, error)
	OpenImage(ctx context.Context, id uuid.UUID) (io.ReadCloser, string, error)
	WarmCache(ctx context.Context) error
	ExportXLSX(ctx context.Context, filter LandFilter, w io.Writer) error
	ExportCSV(ctx context.Context, filter LandFilter, w io.Writer) error
	ListingSheetPDF(ctx context.Context, id uuid.UUID, w io.Writer) error
}

// ImageStore is where listing photos go. Only object keys are persisted;
// image URLs are signed whenever a listing is read. With Proxy set the URL
// points at GET /lands/:id/image instead, for stores nothing else can reach.
type ImageStore struct {
	Client    storage.S3Client
	Bucket    string
	URLExpiry time.Duration
	Proxy     bool
}

func (s *ImageStore) url(ctx context.Context, land *Land) (string, error) {
	if s.Proxy {
		return "/lands/" + land.ID.String() + "/image", nil
	}
	return s.Client.GetPresignedURL(ctx, s.Bucket, land.ImageKey, s.URLExpiry)
}

type landService struct {
	repo   Repository
	cache  ListCache
	images *ImageStore
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires a listing service. cache and images may be nil.
func NewService(repo Repository, cache ListCache, images *ImageStore, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &landService{
		repo:   repo,
		cache:  cache,
		images: images,
		logger: logger,
		now:    time.Now,
	}
}

func (s *landService) CreateLand(ctx context.Context, req CreateLandRequest) (*Land, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	land := &Land{
		ID:              uuid.New(),
		Title:           strings.TrimSpace(req.Title),
		Region:          strings.TrimSpace(req.Region),
		District:        strings.TrimSpace(req.District),
		Location:        strings.TrimSpace(req.Location),
		Description:     req.Description,
		SelectedArea:    req.SelectedArea,
		PricePerHectare: req.PricePerHectare,
		CreatedAt:       s.now(),
		UpdatedAt:       s.now(),
	}

	if hasPolygon(req.PolygonGeoJSON) {
		feature, err := geospatial.ParseFeature(req.PolygonGeoJSON)
		if err != nil {
			return nil, fmt.Errorf("%w: polygonGeoJSON: %v", ErrInvalidListing, err)
		}
		ring, err := geospatial.OuterRing(feature.Geometry)
		if err != nil {
			return nil, fmt.Errorf("%w: polygonGeoJSON: %v", ErrInvalidListing, err)
		}
		ring = geospatial.CloseRing(ring)
		if geospatial.RingSelfIntersects(ring) {
			return nil, fmt.Errorf("%w: polygon edges intersect", ErrInvalidListing)
		}
		if !geospatial.EnclosesArea(ring) {
			return nil, fmt.Errorf("%w: polygon needs at least 3 vertices enclosing an area", ErrInvalidListing)
		}
		land.PolygonGeoJSON = datatypes.JSON(req.PolygonGeoJSON)

		// Calculate area if not provided
		if land.SelectedArea <= 0 {
			land.SelectedArea = geospatial.AreaHectares(ring)
		}
	}
	if land.SelectedArea <= 0 {
		return nil, fmt.Errorf("%w: selectedArea must be positive", ErrInvalidListing)
	}

	if err := s.repo.Create(ctx, land); err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	s.logger.Info("Land listing created",
		zap.String("land_id", land.ID.String()),
		zap.String("region", land.Region),
		zap.Float64("area_ha", land.SelectedArea))
	return land, nil
}

func validateCreate(req CreateLandRequest) error {
	var missing []string
	if strings.TrimSpace(req.Region) == "" {
		missing = append(missing, "region")
	}
	if strings.TrimSpace(req.District) == "" {
		missing = append(missing, "district")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrInvalidListing, strings.Join(missing, ", "))
	}
	if req.PricePerHectare <= 0 {
		return fmt.Errorf("%w: pricePerHectare must be positive", ErrInvalidListing)
	}
	if req.SelectedArea < 0 {
		return fmt.Errorf("%w: selectedArea must not be negative", ErrInvalidListing)
	}
	return nil
}

func (s *landService) GetLand(ctx context.Context, id uuid.UUID) (*LandDetail, error) {
	land, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.signImage(ctx, land)
	return NewLandDetail(land), nil
}

func (s *landService) ListLands(ctx context.Context, filter LandFilter) ([]Land, error) {
	key := filter.CacheKey()
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("Listing cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return s.signImages(ctx, cached), nil
		}
	}

	out, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Land{}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, out); err != nil {
			s.logger.Warn("Listing cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return s.signImages(ctx, out), nil
}

// signImages returns a copy of lands with image URLs filled in, leaving
// the cached slice untouched
func (s *landService) signImages(ctx context.Context, lands []Land) []Land {
	out := make([]Land, len(lands))
	copy(out, lands)
	for i := range out {
		s.signImage(ctx, &out[i])
	}
	return out
}

func (s *landService) signImage(ctx context.Context, land *Land) {
	land.ImageURL = ""
	if land.ImageKey == "" || s.images == nil || s.images.Client == nil {
		return
	}
	url, err := s.images.url(ctx, land)
	if err != nil {
		s.logger.Warn("Failed to sign listing image URL",
			zap.String("land_id", land.ID.String()),
			zap.String("key", land.ImageKey),
			zap.Error(err))
		return
	}
	land.ImageURL = url
}

func (s *landService) DeleteLand(ctx context.Context, id uuid.UUID) error {
	land, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)

	if land.ImageKey != "" && s.images != nil {
		if err := s.images.Client.Delete(ctx, s.images.Bucket, land.ImageKey); err != nil {
			s.logger.Warn("Failed to delete listing image", zap.String("key", land.ImageKey), zap.Error(err))
		}
	}
	s.logger.Info("Land listing deleted", zap.String("land_id", id.String()))
	return nil
}

func (s *landService) UploadImage(ctx context.Context, id uuid.UUID, filename string, body io.Reader) (*Land, error) {
	if s.images == nil || s.images.Client == nil {
		return nil, ErrNoImageStorage
	}
	land, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("lands/%s/%s%s", id, uuid.NewString(), strings.ToLower(path.Ext(filename)))
	if err := s.images.Client.Upload(ctx, s.images.Bucket, key, body); err != nil {
		return nil, err
	}

	previous := land.ImageKey
	land.ImageKey = key
	land.ImageURL = ""
	land.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, land); err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	if previous != "" {
		if err := s.images.Client.Delete(ctx, s.images.Bucket, previous); err != nil {
			s.logger.Warn("Failed to delete replaced image", zap.String("key", previous), zap.Error(err))
		}
	}

	out := *land
	s.signImage(ctx, &out)
	return &out, nil
}

// OpenImage streams a listing's image and reports its content type
func (s *landService) OpenImage(ctx context.Context, id uuid.UUID) (io.ReadCloser, string, error) {
	if s.images == nil || s.images.Client == nil {
		return nil, "", ErrNoImageStorage
	}
	land, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if land.ImageKey == "" {
		return nil, "", ErrImageNotFound
	}

	body, err := s.images.Client.Download(ctx, s.images.Bucket, land.ImageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", fmt.Errorf("%w: %v", ErrImageNotFound, err)
		}
		return nil, "", err
	}
	contentType := mime.TypeByExtension(path.Ext(land.ImageKey))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return body, contentType, nil
}

// WarmCache reloads the unfiltered listing into the cache
func (s *landService) WarmCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	s.invalidate(ctx)
	out, err := s.ListLands(ctx, LandFilter{})
	if err != nil {
		return fmt.Errorf("failed to warm listing cache: %w", err)
	}
	s.logger.Debug("Listing cache warmed", zap.Int("count", len(out)))
	return nil
}

func (s *landService) ExportXLSX(ctx context.Context, filter LandFilter, w io.Writer) error {
	rows, err := s.exportRows(ctx, filter)
	if err != nil {
		return err
	}

	e := export.NewExcelExporter(export.DefaultExcelOptions())
	defer e.Close()
	if err := e.WriteListings(rows); err != nil {
		return fmt.Errorf("failed to build workbook: %w", err)
	}
	return e.WriteTo(w)
}

func (s *landService) ExportCSV(ctx context.Context, filter LandFilter, w io.Writer) error {
	rows, err := s.exportRows(ctx, filter)
	if err != nil {
		return err
	}
	if err := export.NewCSVExporter(w, export.DefaultCSVOptions()).WriteListings(rows); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

func (s *landService) exportRows(ctx context.Context, filter LandFilter) ([]export.Listing, error) {
	lands, err := s.ListLands(ctx, filter)
	if err != nil {
		return nil, err
	}
	rows := make([]export.Listing, 0, len(lands))
	for i := range lands {
		rows = append(rows, toListing(&lands[i]))
	}
	return rows, nil
}

func (s *landService) ListingSheetPDF(ctx context.Context, id uuid.UUID, w io.Writer) error {
	land, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	s.signImage(ctx, land)
	g := export.NewPDFGenerator(export.DefaultPDFOptions())
	if err := g.RenderListing(toListing(land), s.now()); err != nil {
		return fmt.Errorf("failed to render listing sheet: %w", err)
	}
	return g.WriteTo(w)
}

func (s *landService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPrefix(ctx, listCachePrefix); err != nil {
		s.logger.Warn("Listing cache invalidation failed", zap.Error(err))
	}
}

func hasPolygon(raw datatypes.JSON) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null"
}

func toListing(l *Land) export.Listing {
	out := export.Listing{
		ID:              l.ID.String(),
		Title:           l.Title,
		Region:          l.Region,
		District:        l.District,
		Location:        l.Location,
		Description:     l.Description,
		SelectedArea:    l.SelectedArea,
		PricePerHectare: l.PricePerHectare,
		TotalPrice:      l.TotalPrice(),
		ImageURL:        l.ImageURL,
		CreatedAt:       l.CreatedAt,
	}
	if hasPolygon(l.PolygonGeoJSON) {
		if f, err := geospatial.ParseFeature(l.PolygonGeoJSON); err == nil {
			c := geospatial.CalculateCentroid(f.Geometry)
			out.CentroidLat, out.CentroidLng, out.HasCentroid = c.Lat(), c.Lon(), true
		}
	}
	return out
}
