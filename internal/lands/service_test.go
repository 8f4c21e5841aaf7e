package lands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"land-portal/land-portal-backend/pkg/storage"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, land *Land) error {
	args := m.Called(ctx, land)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Land, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Land), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, filter LandFilter) ([]Land, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Land), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, land *Land) error {
	args := m.Called(ctx, land)
	return args.Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

const tashkentPolygon = `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[69.2406,41.3111],[69.2450,41.3150],[69.2500,41.3130],[69.2406,41.3111]]]}}`

func TestCreateLandComputesAreaFromPolygon(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := NewService(mockRepo, nil, nil, nil)

	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*lands.Land")).Return(nil)

	land, err := svc.CreateLand(context.Background(), CreateLandRequest{
		Region:          "toshkent",
		District:        "yunusobod",
		PricePerHectare: 10000000,
		PolygonGeoJSON:  datatypes.JSON(tashkentPolygon),
	})

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, land.ID)
	assert.Greater(t, land.SelectedArea, 10.0)
	assert.Less(t, land.SelectedArea, 25.0)
	assert.JSONEq(t, tashkentPolygon, string(land.PolygonGeoJSON))
	mockRepo.AssertExpectations(t)
}

func TestCreateLandKeepsProvidedArea(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := NewService(mockRepo, nil, nil, nil)
	mockRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	land, err := svc.CreateLand(context.Background(), CreateLandRequest{
		Region:          "toshkent",
		District:        "yunusobod",
		SelectedArea:    3.5,
		PricePerHectare: 10000000,
		PolygonGeoJSON:  datatypes.JSON(tashkentPolygon),
	})

	require.NoError(t, err)
	assert.Equal(t, 3.5, land.SelectedArea)
}

func TestCreateLandValidation(t *testing.T) {
	bowtie := `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[2,2],[2,0],[0,2],[0,0]]]}}`
	point := `{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[69.24,41.31]}}`
	flat := `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[69.24,41.31],[69.25,41.31],[69.26,41.31],[69.24,41.31]]]}}`

	tests := []struct {
		name string
		req  CreateLandRequest
		msg  string
	}{
		{"missing region", CreateLandRequest{District: "yunusobod", PricePerHectare: 1, SelectedArea: 1}, "region"},
		{"missing both", CreateLandRequest{PricePerHectare: 1, SelectedArea: 1}, "region, district"},
		{"zero price", CreateLandRequest{Region: "r", District: "d", SelectedArea: 1}, "pricePerHectare"},
		{"no area and no polygon", CreateLandRequest{Region: "r", District: "d", PricePerHectare: 1}, "selectedArea"},
		{"malformed polygon", CreateLandRequest{Region: "r", District: "d", PricePerHectare: 1, PolygonGeoJSON: datatypes.JSON(`{"type":`)}, "polygonGeoJSON"},
		{"point geometry", CreateLandRequest{Region: "r", District: "d", PricePerHectare: 1, PolygonGeoJSON: datatypes.JSON(point)}, "polygonGeoJSON"},
		{"self intersecting", CreateLandRequest{Region: "r", District: "d", PricePerHectare: 1, PolygonGeoJSON: datatypes.JSON(bowtie)}, "intersect"},
		{"zero area polygon", CreateLandRequest{Region: "r", District: "d", PricePerHectare: 1, PolygonGeoJSON: datatypes.JSON(flat)}, "enclosing an area"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			svc := NewService(mockRepo, nil, nil, nil)

			_, err := svc.CreateLand(context.Background(), tt.req)

			assert.ErrorIs(t, err, ErrInvalidListing)
			assert.Contains(t, err.Error(), tt.msg)
			mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestGetLandIncludesTotalPrice(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := NewService(mockRepo, nil, nil, nil)
	id := uuid.New()
	mockRepo.On("GetByID", mock.Anything, id).Return(&Land{ID: id, SelectedArea: 2.5, PricePerHectare: 4000000}, nil)

	detail, err := svc.GetLand(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, 10000000.0, detail.TotalPrice)
}

func TestListLandsUsesCacheUntilWrite(t *testing.T) {
	mockRepo := new(MockRepository)
	cache := NewMemoryCache(time.Minute)
	defer cache.Stop()
	svc := NewService(mockRepo, cache, nil, nil)
	ctx := context.Background()

	listed := []Land{{ID: uuid.New(), Region: "toshkent"}}
	mockRepo.On("List", mock.Anything, LandFilter{}).Return(listed, nil).Twice()
	mockRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	first, err := svc.ListLands(ctx, LandFilter{})
	require.NoError(t, err)
	second, err := svc.ListLands(ctx, LandFilter{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	mockRepo.AssertNumberOfCalls(t, "List", 1)

	_, err = svc.CreateLand(ctx, CreateLandRequest{Region: "r", District: "d", PricePerHectare: 1, SelectedArea: 1})
	require.NoError(t, err)

	_, err = svc.ListLands(ctx, LandFilter{})
	require.NoError(t, err)
	mockRepo.AssertNumberOfCalls(t, "List", 2)
}

func TestListLandsNeverReturnsNil(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := NewService(mockRepo, nil, nil, nil)
	mockRepo.On("List", mock.Anything, LandFilter{Region: "xorazm"}).Return(nil, nil)

	out, err := svc.ListLands(context.Background(), LandFilter{Region: "xorazm"})

	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestUploadImageReplacesPrevious(t *testing.T) {
	mockRepo := new(MockRepository)
	store := storage.NewMemoryClient("http://files.local")
	svc := NewService(mockRepo, nil, &ImageStore{Client: store, Bucket: "lands"}, nil)
	ctx := context.Background()
	id := uuid.New()

	land := &Land{ID: id}
	mockRepo.On("GetByID", mock.Anything, id).Return(land, nil)
	mockRepo.On("Update", mock.Anything, land).Return(nil)

	first, err := svc.UploadImage(ctx, id, "photo.JPG", strings.NewReader("one"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.ImageURL, "http://files.local/lands/lands/"+id.String()+"/"))
	assert.True(t, strings.HasSuffix(first.ImageKey, ".jpg"))
	assert.Empty(t, land.ImageURL, "only the key is persisted")
	firstKey := first.ImageKey

	second, err := svc.UploadImage(ctx, id, "photo2.png", strings.NewReader("two"))
	require.NoError(t, err)
	assert.NotEqual(t, firstKey, second.ImageKey)
	assert.Equal(t, 1, store.Len())

	_, err = store.Download(ctx, "lands", firstKey)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestImageURLsAreSignedOnRead(t *testing.T) {
	mockRepo := new(MockRepository)
	cache := NewMemoryCache(time.Minute)
	defer cache.Stop()
	store := storage.NewMemoryClient("http://files.local")
	svc := NewService(mockRepo, cache, &ImageStore{Client: store, Bucket: "lands", URLExpiry: time.Hour}, nil)
	ctx := context.Background()
	id := uuid.New()

	stored := Land{ID: id, Region: "toshkent", ImageKey: "lands/" + id.String() + "/a.jpg"}
	mockRepo.On("List", mock.Anything, LandFilter{}).Return([]Land{stored}, nil).Once()
	mockRepo.On("GetByID", mock.Anything, id).Return(&stored, nil)

	want := "http://files.local/lands/" + stored.ImageKey
	for i := 0; i < 2; i++ {
		out, err := svc.ListLands(ctx, LandFilter{})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, want, out[0].ImageURL)
	}

	cached, ok, err := cache.Get(ctx, LandFilter{}.CacheKey())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, cached[0].ImageURL)

	detail, err := svc.GetLand(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, want, detail.ImageURL)
}

func TestProxiedImageURL(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := NewService(mockRepo, nil, &ImageStore{Client: storage.NewMemoryClient(""), Bucket: "lands", Proxy: true}, nil)
	id := uuid.New()
	mockRepo.On("GetByID", mock.Anything, id).Return(&Land{ID: id, ImageKey: "lands/x.png"}, nil)

	detail, err := svc.GetLand(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, "/lands/"+id.String()+"/image", detail.ImageURL)
}

func TestOpenImage(t *testing.T) {
	mockRepo := new(MockRepository)
	store := storage.NewMemoryClient("")
	svc := NewService(mockRepo, nil, &ImageStore{Client: store, Bucket: "lands", Proxy: true}, nil)
	ctx := context.Background()
	withImage, withoutImage, dangling := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, store.Upload(ctx, "lands", "lands/a.jpg", strings.NewReader("jpeg")))

	mockRepo.On("GetByID", mock.Anything, withImage).Return(&Land{ID: withImage, ImageKey: "lands/a.jpg"}, nil)
	mockRepo.On("GetByID", mock.Anything, withoutImage).Return(&Land{ID: withoutImage}, nil)
	mockRepo.On("GetByID", mock.Anything, dangling).Return(&Land{ID: dangling, ImageKey: "lands/gone.jpg"}, nil)

	body, contentType, err := svc.OpenImage(ctx, withImage)
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))
	assert.Equal(t, "image/jpeg", contentType)

	_, _, err = svc.OpenImage(ctx, withoutImage)
	assert.ErrorIs(t, err, ErrImageNotFound)
	_, _, err = svc.OpenImage(ctx, dangling)
	assert.ErrorIs(t, err, ErrImageNotFound)

	_, _, err = NewService(mockRepo, nil, nil, nil).OpenImage(ctx, withImage)
	assert.ErrorIs(t, err, ErrNoImageStorage)
}

func TestUploadImageWithoutStorage(t *testing.T) {
	svc := NewService(new(MockRepository), nil, nil, nil)

	_, err := svc.UploadImage(context.Background(), uuid.New(), "a.jpg", strings.NewReader("x"))

	assert.ErrorIs(t, err, ErrNoImageStorage)
}

func TestDeleteLandRemovesImage(t *testing.T) {
	mockRepo := new(MockRepository)
	store := storage.NewMemoryClient("")
	svc := NewService(mockRepo, nil, &ImageStore{Client: store, Bucket: "lands"}, nil)
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, store.Upload(ctx, "lands", "lands/x.jpg", strings.NewReader("x")))

	mockRepo.On("GetByID", mock.Anything, id).Return(&Land{ID: id, ImageKey: "lands/x.jpg"}, nil)
	mockRepo.On("Delete", mock.Anything, id).Return(nil)

	require.NoError(t, svc.DeleteLand(ctx, id))
	assert.Zero(t, store.Len())
	mockRepo.AssertExpectations(t)
}

func TestDeleteLandNotFound(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := NewService(mockRepo, nil, nil, nil)
	id := uuid.New()
	mockRepo.On("GetByID", mock.Anything, id).Return(nil, ErrLandNotFound)

	err := svc.DeleteLand(context.Background(), id)

	assert.ErrorIs(t, err, ErrLandNotFound)
	mockRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestWarmCacheRefreshes(t *testing.T) {
	mockRepo := new(MockRepository)
	cache := NewMemoryCache(time.Minute)
	defer cache.Stop()
	svc := NewService(mockRepo, cache, nil, nil)
	mockRepo.On("List", mock.Anything, LandFilter{}).Return([]Land{}, nil)

	require.NoError(t, svc.WarmCache(context.Background()))
	require.NoError(t, svc.WarmCache(context.Background()))

	mockRepo.AssertNumberOfCalls(t, "List", 2)
	assert.Equal(t, 1, cache.Size())
}

func TestWarmCacheReportsRepositoryFailure(t *testing.T) {
	mockRepo := new(MockRepository)
	cache := NewMemoryCache(time.Minute)
	defer cache.Stop()
	svc := NewService(mockRepo, cache, nil, nil)
	mockRepo.On("List", mock.Anything, LandFilter{}).Return(nil, errors.New("connection refused"))

	err := svc.WarmCache(context.Background())

	assert.ErrorContains(t, err, "connection refused")
}

func TestExports(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := NewService(mockRepo, nil, nil, nil)
	id := uuid.New()
	land := Land{ID: id, Region: "toshkent", District: "yunusobod", SelectedArea: 2, PricePerHectare: 3, PolygonGeoJSON: datatypes.JSON(tashkentPolygon)}
	mockRepo.On("List", mock.Anything, LandFilter{}).Return([]Land{land}, nil)
	mockRepo.On("GetByID", mock.Anything, id).Return(&land, nil)

	var xlsx bytes.Buffer
	require.NoError(t, svc.ExportXLSX(context.Background(), LandFilter{}, &xlsx))
	assert.True(t, bytes.HasPrefix(xlsx.Bytes(), []byte("PK")))

	var csvOut bytes.Buffer
	require.NoError(t, svc.ExportCSV(context.Background(), LandFilter{}, &csvOut))
	assert.Contains(t, csvOut.String(), id.String()+",,toshkent,yunusobod,,2,3,6,")

	var pdf bytes.Buffer
	require.NoError(t, svc.ListingSheetPDF(context.Background(), id, &pdf))
	assert.True(t, bytes.HasPrefix(pdf.Bytes(), []byte("%PDF-")))
}

func TestToListingCentroid(t *testing.T) {
	l := toListing(&Land{SelectedArea: 2, PricePerHectare: 5, PolygonGeoJSON: datatypes.JSON(tashkentPolygon)})

	assert.True(t, l.HasCentroid)
	assert.InDelta(t, 41.313, l.CentroidLat, 0.01)
	assert.InDelta(t, 69.245, l.CentroidLng, 0.01)
	assert.Equal(t, 10.0, l.TotalPrice)

	l = toListing(&Land{PolygonGeoJSON: datatypes.JSON("null")})
	assert.False(t, l.HasCentroid)
}
