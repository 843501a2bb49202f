package place_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/grade"
	"github.com/trezcool/placegrade/core/place"
	"github.com/trezcool/placegrade/services/places"
	"github.com/trezcool/placegrade/storage/database/inmem"
	"github.com/trezcool/placegrade/tests"
)

var (
	tonton = place.PlaceResult{
		PlaceID: "pid-tonton", Name: "Chez Tonton", Address: "1 Av. du Commerce", Lat: -4.30, Lng: 15.30,
		PhotoURL: "https://photos.test/tonton.jpg",
	}
	kitoko = place.PlaceResult{PlaceID: "pid-kitoko", Name: "Mama Kitoko", Address: "2 Bd du 30 Juin", Lat: -4.31, Lng: 15.31}
)

func setup(t *testing.T) (place.Service, place.Repository) {
	conf := testutil.NewConfig()
	conf.Map.MarkerCacheTTL = time.Minute
	repo := inmemdb.NewPlaceRepository(inmemdb.Open())
	return place.NewService(repo, placesvc.NewProviderMock(tonton, kitoko), conf), repo
}

func fPtr(f float64) *float64 { return &f }

func TestColor(t *testing.T) {
	tests := []struct {
		grade grade.Grade
		want  string
	}{
		{grade.APlus, "#22c55e"},
		{grade.AMinus, "#22c55e"},
		{grade.B, "#3b82f6"},
		{grade.CPlus, "#eab308"},
		{grade.DMinus, "#f97316"},
		{grade.F, "#ef4444"},
	}
	for _, tt := range tests {
		t.Run(tt.grade.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, place.Color(tt.grade))
		})
	}
}

func TestService_GetOrCreate(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	// from the provider details
	est, err := svc.GetOrCreate(ctx, place.NewEstablishment{GooglePlaceID: " pid-tonton "})
	require.NoError(t, err)
	assert.NotEmpty(t, est.ID)
	assert.Equal(t, "pid-tonton", est.GooglePlaceID)
	assert.Equal(t, tonton.Name, est.Name)
	assert.Equal(t, tonton.Address, est.Address)
	assert.Equal(t, tonton.Lat, est.Lat)
	assert.Equal(t, tonton.PhotoURL, est.PhotoURL)
	assert.Nil(t, est.AverageGrade)
	assert.Zero(t, est.ReviewCount)

	// deduplicated on the place ID
	again, err := svc.GetOrCreate(ctx, place.NewEstablishment{GooglePlaceID: "pid-tonton", Name: "Other name"})
	require.NoError(t, err)
	assert.Equal(t, est.ID, again.ID)
	assert.Equal(t, tonton.Name, again.Name)

	// given fields take precedence over the provider ones
	custom, err := svc.GetOrCreate(ctx, place.NewEstablishment{
		GooglePlaceID: "pid-kitoko", Name: "Kitoko", Address: "Gombe", Lat: fPtr(-4.2), Lng: fPtr(15.2),
	})
	require.NoError(t, err)
	assert.Equal(t, "Kitoko", custom.Name)
	assert.Equal(t, -4.2, custom.Lat)

	// without a place ID
	manual, err := svc.GetOrCreate(ctx, place.NewEstablishment{Name: "Street food", Address: "Matonge", Lat: fPtr(-4.33), Lng: fPtr(15.31)})
	require.NoError(t, err)
	assert.Empty(t, manual.GooglePlaceID)

	// errors
	var verr *core.ValidationError
	_, err = svc.GetOrCreate(ctx, place.NewEstablishment{GooglePlaceID: "unknown"})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "google_place_id", verr.Fields[0].Field)

	_, err = svc.GetOrCreate(ctx, place.NewEstablishment{Name: "No coordinates", Address: "Nowhere"})
	assert.True(t, errors.As(err, &verr))
}

func TestService_SearchLookup(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	est, err := svc.GetOrCreate(ctx, place.NewEstablishment{GooglePlaceID: tonton.PlaceID})
	require.NoError(t, err)

	results, err := svc.Search(ctx, "  chez ", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, est.ID, results[0].EstablishmentID)

	results, err = svc.Search(ctx, "mama", &place.LatLng{Lat: -4.3, Lng: 15.3})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].EstablishmentID)

	found, err := svc.Lookup(ctx, tonton.PlaceID)
	require.NoError(t, err)
	assert.Equal(t, est.ID, found.ID)

	_, err = svc.Lookup(ctx, kitoko.PlaceID)
	assert.Equal(t, place.ErrNotFound, err)
	_, err = svc.Lookup(ctx, " ")
	assert.Equal(t, place.ErrNotFound, err)
}

func TestService_AverageAndMarkers(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	graded := testutil.CreateEstablishment(t, repo, "Graded", "pid-1", -4.3, 15.3)
	ungraded := testutil.CreateEstablishment(t, repo, "Ungraded", "pid-2", -4.4, 15.4)

	est, err := svc.RefreshAverage(ctx, graded.ID, []grade.Grade{grade.APlus, grade.F})
	require.NoError(t, err)
	require.NotNil(t, est.AverageGrade)
	assert.Equal(t, grade.CPlus, *est.AverageGrade)
	assert.Equal(t, 2, est.ReviewCount)

	markers, err := svc.Markers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []place.Marker{{
		ID: graded.ID, Name: "Graded", Lat: -4.3, Lng: 15.3, Grade: grade.CPlus, Color: "#eab308",
	}}, markers)

	// cached until invalidated
	_, err = svc.RefreshAverage(ctx, ungraded.ID, []grade.Grade{grade.A})
	require.NoError(t, err)
	markers, err = svc.Markers(ctx)
	require.NoError(t, err)
	assert.Len(t, markers, 1)

	svc.InvalidateMarkers()
	markers, err = svc.Markers(ctx)
	require.NoError(t, err)
	assert.Len(t, markers, 2)

	// no reviews left: no average, no marker
	est, err = svc.RefreshAverage(ctx, graded.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, est.AverageGrade)
	assert.Zero(t, est.ReviewCount)

	svc.InvalidateMarkers()
	markers, err = svc.Markers(ctx)
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, ungraded.ID, markers[0].ID)
	assert.Equal(t, "#22c55e", markers[0].Color)

	_, err = svc.RefreshAverage(ctx, "unknown", nil)
	assert.Equal(t, place.ErrNotFound, errors.Cause(err))
}

// queryHookRepository runs onQuery once a query has read its rows.
type queryHookRepository struct {
	place.Repository
	queries int
	onQuery func()
}

func (repo *queryHookRepository) QueryEstablishments(ctx context.Context, filter *place.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]place.Establishment, error) {
	repo.queries++
	ests, err := repo.Repository.QueryEstablishments(ctx, filter, ordering, exec...)
	if repo.onQuery != nil {
		hook := repo.onQuery
		repo.onQuery = nil
		hook()
	}
	return ests, err
}

func TestService_MarkersInvalidatedDuringQuery(t *testing.T) {
	conf := testutil.NewConfig()
	conf.Map.MarkerCacheTTL = time.Minute
	inner := inmemdb.NewPlaceRepository(inmemdb.Open())
	repo := &queryHookRepository{Repository: inner}
	svc := place.NewService(repo, placesvc.NewProviderMock(), conf)
	ctx := context.Background()

	first := testutil.CreateEstablishment(t, inner, "First", "pid-1", -4.3, 15.3)
	second := testutil.CreateEstablishment(t, inner, "Second", "pid-2", -4.4, 15.4)
	_, err := svc.RefreshAverage(ctx, first.ID, []grade.Grade{grade.A})
	require.NoError(t, err)

	// a review lands while the markers are being read
	repo.onQuery = func() {
		_, err := svc.RefreshAverage(ctx, second.ID, []grade.Grade{grade.B})
		require.NoError(t, err)
		svc.InvalidateMarkers()
	}
	markers, err := svc.Markers(ctx)
	require.NoError(t, err)
	assert.Len(t, markers, 1)

	// the outdated read was not cached
	markers, err = svc.Markers(ctx)
	require.NoError(t, err)
	assert.Len(t, markers, 2)
	assert.Equal(t, 2, repo.queries)

	_, err = svc.Markers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.queries)
}

func TestService_Query(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	now := time.Now().UTC()
	a := testutil.CreateEstablishment(t, repo, "Alpha", "", 0, 0, now.Add(2*time.Hour))
	b := testutil.CreateEstablishment(t, repo, "Bravo", "", 0, 0, now.Add(1*time.Hour))
	c := testutil.CreateEstablishment(t, repo, "Charlie", "", 0, 0, now)

	a, _ = svc.RefreshAverage(ctx, a.ID, []grade.Grade{grade.B})
	b, _ = svc.RefreshAverage(ctx, b.ID, []grade.Grade{grade.A, grade.AMinus})

	minB := grade.B
	tests := []struct {
		name     string
		filter   *place.QueryFilter
		ordering []core.DBOrdering
		want     []place.Establishment
	}{
		{name: "all, by name", want: []place.Establishment{a, b, c}},
		{name: "search", filter: &place.QueryFilter{Search: " RAV "}, want: []place.Establishment{b}},
		{name: "search address", filter: &place.QueryFilter{Search: "charlie street"}, want: []place.Establishment{c}},
		{name: "min grade", filter: &place.QueryFilter{MinGrade: &minB}, want: []place.Establishment{a, b}},
		{
			name: "by -created_at", ordering: []core.DBOrdering{{Field: "created_at"}},
			want: []place.Establishment{a, b, c},
		},
		{
			name: "by created_at", ordering: []core.DBOrdering{{Field: "created_at", Ascending: true}},
			want: []place.Establishment{c, b, a},
		},
		{
			name: "by -review_count,name", ordering: []core.DBOrdering{{Field: "review_count"}, {Field: "name", Ascending: true}},
			want: []place.Establishment{b, a, c},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Query(ctx, tt.filter, tt.ordering)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
