package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingsJSON = `[
  {"id":"a1","region":"toshkent","district":"yunusobod","selectedArea":2,"pricePerHectare":1000000},
  {"id":"b2","title":"Bog' uchastkasi","region":"samarqand","district":"mirzo_ulugbek","selectedArea":3.5,"pricePerHectare":2000000}
]`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestListPrintsTitlesAndTotals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lands/getAll", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(listingsJSON))
	}))
	defer srv.Close()

	out, err := run(t, "list", "--api", srv.URL)

	require.NoError(t, err)
	assert.Contains(t, out, "toshkent - yunusobod")
	assert.Contains(t, out, "Bog' uchastkasi")
	assert.Contains(t, out, "Jami: 2 ta, 5.50 ga, 9000000 so'm")
}

func TestListPassesFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "toshkent", r.URL.Query().Get("region"))
		assert.Equal(t, "yunusobod", r.URL.Query().Get("district"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	out, err := run(t, "list", "--api", srv.URL, "--region", "toshkent", "--district", "yunusobod")

	require.NoError(t, err)
	assert.Contains(t, out, "Yer maydonlari topilmadi")
}

func TestListFailureShowsLoadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	out, err := run(t, "list", "--api", srv.URL)

	assert.Error(t, err)
	assert.Contains(t, out, loadFailedMessage)
}

func TestShowPrintsTotalPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lands/getId/a1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"a1","region":"toshkent","district":"yunusobod","selectedArea":2.5,"pricePerHectare":4000000,"description":"Sug'oriladigan"}`))
	}))
	defer srv.Close()

	out, err := run(t, "show", "a1", "--api", srv.URL)

	require.NoError(t, err)
	assert.Contains(t, out, "toshkent - yunusobod")
	assert.Contains(t, out, "Umumiy narx: 10000000 so'm")
	assert.Contains(t, out, "Sug'oriladigan")
}

func TestAreaMeasuresPolygonFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parcel.geojson")
	feature := `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[69.2406,41.3111],[69.2450,41.3150],[69.2500,41.3130],[69.2406,41.3111]]]}}`
	require.NoError(t, os.WriteFile(path, []byte(feature), 0o600))

	out, err := run(t, "area", path)

	require.NoError(t, err)
	assert.Regexp(t, `^\d+\.\d{2} ga\n$`, out)
}

func TestAreaRejectsMissingGeometry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"Feature","properties":{},"geometry":null}`), 0o600))

	_, err := run(t, "area", path)

	assert.Error(t, err)
}
