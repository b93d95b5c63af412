package commune

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acceslibre/erpsync/internal/model"
)

func TestGeoAPI_Communes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/communes", r.URL.Path)
		assert.Equal(t, "code,nom,codesPostaux,centre,codeDepartement,population", r.URL.Query().Get("fields"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"code":"01004","nom":"Ambérieu-en-Bugey","codesPostaux":["01500"],"codeDepartement":"01","population":14514,
			 "centre":{"type":"Point","coordinates":[5.3729,45.9608]}},
			{"code":"","nom":"broken"}
		]`))
	}))
	defer srv.Close()

	got, err := NewGeoAPI(srv.URL, srv.Client()).Communes(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Commune{
		Code: "01004", Nom: "Ambérieu-en-Bugey", Departement: "01",
		CodesPostaux: []string{"01500"}, Population: 14514,
		Centre: &model.Point{Lat: 45.9608, Lon: 5.3729},
	}, got[0])
}

func TestGeoAPI_Contour(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/communes/34120":
			assert.Equal(t, "contour,centre", r.URL.Query().Get("fields"))
			_, _ = w.Write([]byte(`{"contour":{"type":"Polygon","coordinates":[[[3.1,43.1],[3.2,43.1],[3.2,43.2],[3.1,43.1]]]}}`))
		case "/communes/99999":
			w.WriteHeader(http.StatusNotFound)
		case "/communes/00001":
			_, _ = w.Write([]byte(`{"contour":null}`))
		default:
			_, _ = w.Write([]byte(`{`))
		}
	}))
	defer srv.Close()

	api := NewGeoAPI(srv.URL, srv.Client())

	out, err := api.Contour(context.Background(), "34120")
	require.NoError(t, err)
	assert.Equal(t, 1, decodeMultiPolygon(t, out).NumPolygons())

	_, err = api.Contour(context.Background(), "99999")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = api.Contour(context.Background(), "00001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no contour")

	_, err = api.Contour(context.Background(), "00002")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode geo api response")
}

func TestGeoAPI_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	api := NewGeoAPI(srv.URL, srv.Client())
	api.retry.InitialBackoff = 0

	got, err := api.Communes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(2), calls.Load())
}
