package mapsession

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"land-portal/land-portal-backend/pkg/geospatial"
)

var tashkent = geospatial.LatLng{Lat: 41.3111, Lng: 69.2406}

type recordingRenderer struct {
	views []View
}

func (r *recordingRenderer) Render(view View) { r.views = append(r.views, view) }

func newInitialized(t *testing.T) (*Session, *recordingRenderer) {
	t.Helper()
	r := &recordingRenderer{}
	s := New(Options{Renderer: r})
	require.NoError(t, s.Initialize("map", tashkent, 13))
	return s, r
}

func TestInitializeIsIdempotent(t *testing.T) {
	s, r := newInitialized(t)

	require.NoError(t, s.Initialize("other", geospatial.LatLng{Lat: 1, Lng: 2}, 3))

	assert.Equal(t, tashkent, s.Center())
	assert.Equal(t, 13, s.Zoom())
	assert.Len(t, r.views, 1, "second initialize must not redraw")
	assert.Equal(t, BaseStreet, s.BaseLayer())
}

func TestOperationsBeforeInitialize(t *testing.T) {
	s := New(Options{})

	assert.ErrorIs(t, s.SetBaseLayer(BaseSatellite), ErrNotInitialized)
	assert.ErrorIs(t, s.SetView(tashkent, 10), ErrNotInitialized)
	assert.ErrorIs(t, s.Shapes().Add(NewShape(orb.Ring{{0, 0}, {1, 0}, {1, 1}})), ErrNotInitialized)
	assert.ErrorIs(t, s.Teardown(), ErrNotInitialized)
}

func TestSetBaseLayerAttachesExactlyOne(t *testing.T) {
	s, r := newInitialized(t)

	for _, kind := range []BaseLayerKind{BaseSatellite, BaseHybrid, BaseStreet, BaseHybrid} {
		require.NoError(t, s.SetBaseLayer(kind))
		attached := s.AttachedBaseLayers()
		require.Len(t, attached, 1)
		assert.Equal(t, kind, attached[0].Kind)
	}

	last := r.views[len(r.views)-1]
	require.Len(t, last.BaseLayers, 1)
	assert.Equal(t, BaseHybrid, last.BaseLayers[0].Kind)
}

func TestHybridIsImageryPlusStreetOverlay(t *testing.T) {
	layers := NewBaseLayers(TileSources{})

	hybrid := layers[BaseHybrid]
	require.Len(t, hybrid.Tiles, 2)
	assert.Equal(t, DefaultSatelliteURL, hybrid.Tiles[0].URLTemplate)
	assert.Equal(t, DefaultStreetURL, hybrid.Tiles[1].URLTemplate)
	assert.InDelta(t, 0.7, hybrid.Tiles[1].Opacity, 1e-9)
	assert.InDelta(t, 1.0, layers[BaseStreet].Tiles[0].Opacity, 1e-9)
}

func TestSetBaseLayerRejectsUnknown(t *testing.T) {
	s, _ := newInitialized(t)

	assert.ErrorIs(t, s.SetBaseLayer("terrain"), ErrUnknownBaseLayer)
	assert.Equal(t, BaseStreet, s.BaseLayer())

	_, err := ParseBaseLayerKind("terrain")
	assert.ErrorIs(t, err, ErrUnknownBaseLayer)
}

func TestLayerGroupRendersSynchronously(t *testing.T) {
	s, r := newInitialized(t)
	shape := NewShape(orb.Ring{{69.2406, 41.3111}, {69.2450, 41.3150}, {69.2500, 41.3130}})

	require.NoError(t, s.Shapes().Add(shape))
	require.Len(t, r.views[len(r.views)-1].Shapes, 1)
	assert.Equal(t, shape.ID, r.views[len(r.views)-1].Shapes[0].ID)

	require.NoError(t, s.Shapes().Clear())
	assert.Empty(t, r.views[len(r.views)-1].Shapes)
	assert.Zero(t, s.Shapes().Len())
}

func TestFitBounds(t *testing.T) {
	s, _ := newInitialized(t)
	shape := NewShape(orb.Ring{{69.2406, 41.3111}, {69.2450, 41.3150}, {69.2500, 41.3130}})

	require.NoError(t, s.FitBounds(shape.Bound()))

	center := s.Center()
	assert.InDelta(t, 69.2453, center.Lng, 1e-3)
	assert.InDelta(t, 41.31305, center.Lat, 1e-3)
	// about 1 km across in an 800x600 container
	assert.GreaterOrEqual(t, s.Zoom(), 15)
	assert.LessOrEqual(t, s.Zoom(), 17)
}

func TestFitBoundsOnPointUsesMaxZoom(t *testing.T) {
	s, _ := newInitialized(t)

	require.NoError(t, s.FitBounds(orb.Bound{Min: tashkent.Point(), Max: tashkent.Point()}))

	assert.Equal(t, DefaultMaxZoom, s.Zoom())
}

func TestTeardown(t *testing.T) {
	s, _ := newInitialized(t)
	require.NoError(t, s.Shapes().Add(NewShape(orb.Ring{{0, 0}, {1, 0}, {1, 1}})))

	require.NoError(t, s.Teardown())

	assert.False(t, s.Initialized())
	assert.Empty(t, s.AttachedBaseLayers())
	assert.Zero(t, s.Shapes().Len())
	assert.ErrorIs(t, s.Teardown(), ErrTornDown)
	assert.ErrorIs(t, s.Initialize("map", tashkent, 13), ErrTornDown)
}

func TestLocateRecentersAndClearsLoading(t *testing.T) {
	s, _ := newInitialized(t)
	release := make(chan struct{})
	target := geospatial.LatLng{Lat: 39.6542, Lng: 66.9597}

	task, err := s.Locate(context.Background(), LocatorFunc(func(ctx context.Context) (geospatial.LatLng, error) {
		<-release
		return target, nil
	}))
	require.NoError(t, err)
	assert.True(t, s.Loading())

	close(release)
	waitDone(t, task)

	assert.NoError(t, task.Err())
	assert.False(t, s.Loading())
	assert.Equal(t, target, s.Center())
	assert.Equal(t, DefaultLocateZoom, s.Zoom())
}

func TestLocateFailureOnlyClearsLoading(t *testing.T) {
	s, _ := newInitialized(t)
	denied := errors.New("permission denied")

	task, err := s.Locate(context.Background(), LocatorFunc(func(ctx context.Context) (geospatial.LatLng, error) {
		return geospatial.LatLng{}, denied
	}))
	require.NoError(t, err)
	waitDone(t, task)

	assert.ErrorIs(t, task.Err(), denied)
	assert.False(t, s.Loading())
	assert.Equal(t, tashkent, s.Center())
}

func TestTeardownDiscardsPendingLocate(t *testing.T) {
	s, _ := newInitialized(t)

	task, err := s.Locate(context.Background(), LocatorFunc(func(ctx context.Context) (geospatial.LatLng, error) {
		<-ctx.Done()
		return geospatial.LatLng{Lat: 1, Lng: 1}, nil
	}))
	require.NoError(t, err)

	require.NoError(t, s.Teardown())
	waitDone(t, task)

	assert.ErrorIs(t, task.Err(), context.Canceled)
	assert.False(t, s.Loading())
}

func waitDone(t *testing.T, task *Task) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("locate task did not finish")
	}
}
