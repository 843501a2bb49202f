package place

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/kat-co/vala"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/grade"
)

const markersKey = "markers"

var (
	nowFunc = time.Now // mockable

	// errors
	ErrNotFound      = errors.New("establishment not found")
	ErrExists        = errors.New("establishment already exists")
	ErrPlaceNotFound = errors.New("place not found")

	// marker colors by grade letter
	colors = map[byte]string{
		'A': "#22c55e",
		'B': "#3b82f6",
		'C': "#eab308",
		'D': "#f97316",
		'F': "#ef4444",
	}
)

type (
	// Provider is an external places directory.
	Provider interface {
		// Search finds places matching a free text query, biased towards `near` when set.
		Search(ctx context.Context, query string, near *LatLng) ([]PlaceResult, error)
		// Details returns a single place, or ErrPlaceNotFound.
		Details(ctx context.Context, placeID string) (PlaceResult, error)
	}

	Repository interface {
		CreateEstablishment(ctx context.Context, e Establishment, exec ...core.DBExecutor) (Establishment, error)
		GetEstablishment(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Establishment, error)
		QueryEstablishments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Establishment, error)
		QueryEstablishmentsByPlaceID(ctx context.Context, placeIDs []string, exec ...core.DBExecutor) ([]Establishment, error)
		UpdateAverage(ctx context.Context, upd AverageUpdate, exec ...core.DBExecutor) (Establishment, error)
	}

	Service interface {
		// Search returns the Provider results annotated with the IDs of already reviewed places.
		Search(ctx context.Context, query string, near *LatLng) ([]PlaceResult, error)
		// Lookup returns the Establishment of a provider place, or ErrNotFound.
		Lookup(ctx context.Context, placeID string) (Establishment, error)
		GetOrCreate(ctx context.Context, ne NewEstablishment, exec ...core.DBExecutor) (Establishment, error)
		Get(ctx context.Context, id string, exec ...core.DBExecutor) (Establishment, error)
		// Lock gets an Establishment, locking it against concurrent average updates within `exec`'s transaction.
		Lock(ctx context.Context, id string, exec ...core.DBExecutor) (Establishment, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Establishment, error)
		// Markers returns the map markers of all graded establishments.
		Markers(ctx context.Context) ([]Marker, error)
		InvalidateMarkers()
		// RefreshAverage stores the average of `grades` as the Establishment's average grade.
		RefreshAverage(ctx context.Context, id string, grades []grade.Grade, exec ...core.DBExecutor) (Establishment, error)
	}

	service struct {
		markersGen uint64 // bumped on every invalidation; first for 64-bit alignment
		repo       Repository
		provider   Provider
		markers    *cache.Cache
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, provider Provider, conf *core.Config) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(provider, "provider"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	ttl := conf.Map.MarkerCacheTTL
	return &service{
		repo:     repo,
		provider: provider,
		markers:  cache.New(ttl, 2*ttl),
	}
}

func now() time.Time {
	return nowFunc().UTC().Truncate(time.Microsecond)
}

// Color returns the marker color of a grade.
func Color(g grade.Grade) string {
	return colors[g.Letter()[0]]
}

func (svc *service) Search(ctx context.Context, query string, near *LatLng) ([]PlaceResult, error) {
	results, err := svc.provider.Search(ctx, core.CleanString(query), near)
	if err != nil {
		return nil, errors.Wrap(err, "searching places")
	}
	if len(results) == 0 {
		return results, nil
	}

	ids := make([]string, 0, len(results))
	for _, pr := range results {
		ids = append(ids, pr.PlaceID)
	}
	existing, err := svc.repo.QueryEstablishmentsByPlaceID(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "querying establishments by place ID")
	}
	byPlaceID := make(map[string]string, len(existing))
	for _, e := range existing {
		byPlaceID[e.GooglePlaceID] = e.ID
	}
	for i := range results {
		results[i].EstablishmentID = byPlaceID[results[i].PlaceID]
	}
	return results, nil
}

func (svc *service) Lookup(ctx context.Context, placeID string) (Establishment, error) {
	placeID = core.CleanString(placeID)
	if placeID == "" {
		return Establishment{}, ErrNotFound
	}
	return svc.repo.GetEstablishment(ctx, GetFilter{GooglePlaceID: placeID})
}

func (svc *service) GetOrCreate(ctx context.Context, ne NewEstablishment, exec ...core.DBExecutor) (Establishment, error) {
	ne.Clean()
	if ne.GooglePlaceID != "" {
		e, err := svc.repo.GetEstablishment(ctx, GetFilter{GooglePlaceID: ne.GooglePlaceID}, exec...)
		if err == nil {
			return e, nil
		}
		if errors.Cause(err) != ErrNotFound {
			return Establishment{}, errors.Wrap(err, "finding establishment by place ID")
		}

		if !ne.complete() {
			pr, err := svc.provider.Details(ctx, ne.GooglePlaceID)
			if err != nil {
				if errors.Cause(err) == ErrPlaceNotFound {
					return Establishment{}, core.NewFieldError("google_place_id", ErrPlaceNotFound)
				}
				return Establishment{}, errors.Wrap(err, "fetching place details")
			}
			ne.fill(pr)
		}
	}
	if !ne.complete() {
		return Establishment{}, core.NewValidationError(errors.New("incomplete establishment"))
	}

	tstamp := now()
	e, err := svc.repo.CreateEstablishment(ctx, Establishment{
		GooglePlaceID: ne.GooglePlaceID,
		Name:          ne.Name,
		Address:       ne.Address,
		Lat:           *ne.Lat,
		Lng:           *ne.Lng,
		PhotoURL:      ne.PhotoURL,
		CreatedAt:     tstamp,
		UpdatedAt:     tstamp,
	}, exec...)
	if err != nil {
		if errors.Cause(err) == ErrExists && ne.GooglePlaceID != "" {
			return svc.repo.GetEstablishment(ctx, GetFilter{GooglePlaceID: ne.GooglePlaceID}, exec...)
		}
		return Establishment{}, errors.Wrap(err, "creating establishment")
	}
	return e, nil
}

func (svc *service) Get(ctx context.Context, id string, exec ...core.DBExecutor) (Establishment, error) {
	return svc.repo.GetEstablishment(ctx, GetFilter{ID: id}, exec...)
}

func (svc *service) Lock(ctx context.Context, id string, exec ...core.DBExecutor) (Establishment, error) {
	return svc.repo.GetEstablishment(ctx, GetFilter{ID: id, ForUpdate: true}, exec...)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Establishment, error) {
	if filter != nil {
		filter.Search = core.CleanString(filter.Search)
	}
	return svc.repo.QueryEstablishments(ctx, filter, ordering)
}

func (svc *service) Markers(ctx context.Context) ([]Marker, error) {
	if cached, ok := svc.markers.Get(markersKey); ok {
		return cached.([]Marker), nil
	}

	gen := atomic.LoadUint64(&svc.markersGen)
	graded := grade.F
	ests, err := svc.repo.QueryEstablishments(ctx, &QueryFilter{MinGrade: &graded}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying graded establishments")
	}
	markers := make([]Marker, 0, len(ests))
	for _, e := range ests {
		if e.AverageGrade == nil {
			continue
		}
		markers = append(markers, Marker{
			ID:    e.ID,
			Name:  e.Name,
			Lat:   e.Lat,
			Lng:   e.Lng,
			Grade: *e.AverageGrade,
			Color: Color(*e.AverageGrade),
		})
	}
	// an invalidation during the query may have raced our read
	if atomic.LoadUint64(&svc.markersGen) == gen {
		svc.markers.SetDefault(markersKey, markers)
	}
	return markers, nil
}

func (svc *service) InvalidateMarkers() {
	atomic.AddUint64(&svc.markersGen, 1)
	svc.markers.Delete(markersKey)
}

func (svc *service) RefreshAverage(ctx context.Context, id string, grades []grade.Grade, exec ...core.DBExecutor) (Establishment, error) {
	upd := AverageUpdate{ID: id, ReviewCount: len(grades), UpdatedAt: now()}
	if avg, ok := grade.Average(grades); ok {
		upd.AverageGrade = &avg
	}
	e, err := svc.repo.UpdateAverage(ctx, upd, exec...)
	if err != nil {
		return Establishment{}, errors.Wrap(err, "updating average grade")
	}
	return e, nil
}
