package placesvc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/place"
)

const searchBody = `{
	"status": "OK",
	"results": [
		{
			"place_id": "pid-1",
			"name": "Chez Tonton",
			"formatted_address": "1 Av. du Commerce, Kinshasa",
			"geometry": {"location": {"lat": -4.3, "lng": 15.3}},
			"photos": [{"photo_reference": "ref-1"}]
		},
		{
			"place_id": "pid-2",
			"name": "Mama Kitoko",
			"formatted_address": "2 Bd du 30 Juin, Kinshasa",
			"geometry": {"location": {"lat": -4.31, "lng": 15.31}}
		},
		{"place_id": "", "name": "dropped"}
	]
}`

func newTestProvider(t *testing.T, handler http.HandlerFunc) (place.Provider, *int32) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	conf := &core.Config{}
	conf.Places.APIKey = "test-key"
	conf.Places.BaseURL = srv.URL + "/"
	conf.Places.CacheTTL = time.Minute
	conf.Places.PhotoMaxWidth = 400
	conf.Places.PhotoMaxHeight = 300
	return NewGoogleProvider(conf, srv.Client()), &calls
}

func TestGoogleProvider_Search(t *testing.T) {
	var gotQuery url.Values
	provider, calls := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, textSearchPath, r.URL.Path)
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(searchBody))
	})

	near := &place.LatLng{Lat: -4.3, Lng: 15.3}
	results, err := provider.Search(context.Background(), "restaurant", near)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "restaurant", gotQuery.Get("query"))
	assert.Equal(t, "-4.3,15.3", gotQuery.Get("location"))
	assert.Equal(t, "test-key", gotQuery.Get("key"))

	first := results[0]
	assert.Equal(t, "pid-1", first.PlaceID)
	assert.Equal(t, "Chez Tonton", first.Name)
	assert.Equal(t, "1 Av. du Commerce, Kinshasa", first.Address)
	assert.Equal(t, -4.3, first.Lat)
	assert.Equal(t, 15.3, first.Lng)

	photo, err := url.Parse(first.PhotoURL)
	require.NoError(t, err)
	assert.Equal(t, photoPath, photo.Path)
	assert.Equal(t, "400", photo.Query().Get("maxwidth"))
	assert.Equal(t, "300", photo.Query().Get("maxheight"))
	assert.Equal(t, "ref-1", photo.Query().Get("photo_reference"))

	assert.Empty(t, results[1].PhotoURL)

	// cached
	_, err = provider.Search(context.Background(), "restaurant", near)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestGoogleProvider_SearchStatuses(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		code    int
		wantLen int
		wantErr bool
	}{
		{name: "zero results", body: `{"status": "ZERO_RESULTS", "results": []}`, code: http.StatusOK},
		{name: "denied", body: `{"status": "REQUEST_DENIED", "error_message": "bad key"}`, code: http.StatusOK, wantErr: true},
		{name: "http error", body: `oops`, code: http.StatusInternalServerError, wantErr: true},
		{name: "invalid json", body: `{`, code: http.StatusOK, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			})
			results, err := provider.Search(context.Background(), "anything", nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, results, tt.wantLen)
		})
	}
}

func TestGoogleProvider_SearchEmptyQuery(t *testing.T) {
	provider, calls := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	results, err := provider.Search(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestGoogleProvider_Details(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, detailsPath, r.URL.Path)
		assert.Equal(t, detailsFields, r.URL.Query().Get("fields"))

		switch r.URL.Query().Get("place_id") {
		case "pid-1":
			_, _ = w.Write([]byte(`{
				"status": "OK",
				"result": {
					"place_id": "pid-1",
					"name": "Chez Tonton",
					"formatted_address": "1 Av. du Commerce, Kinshasa",
					"geometry": {"location": {"lat": -4.3, "lng": 15.3}}
				}
			}`))
		case "unknown":
			_, _ = w.Write([]byte(`{"status": "NOT_FOUND"}`))
		default:
			_, _ = w.Write([]byte(`{"status": "OVER_QUERY_LIMIT"}`))
		}
	})

	pr, err := provider.Details(context.Background(), "pid-1")
	require.NoError(t, err)
	assert.Equal(t, place.PlaceResult{
		PlaceID: "pid-1",
		Name:    "Chez Tonton",
		Address: "1 Av. du Commerce, Kinshasa",
		Lat:     -4.3,
		Lng:     15.3,
	}, pr)

	_, err = provider.Details(context.Background(), "unknown")
	assert.Equal(t, place.ErrPlaceNotFound, err)

	_, err = provider.Details(context.Background(), "limited")
	assert.Error(t, err)
	assert.NotEqual(t, place.ErrPlaceNotFound, err)
}

func TestGoogleProvider_SearchCanceled(t *testing.T) {
	provider, calls := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(searchBody))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := provider.Search(ctx, "restaurant", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), err)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))

	// nothing was cached: a live context goes through
	results, err := provider.Search(context.Background(), "restaurant", nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
