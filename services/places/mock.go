package placesvc

import (
	"context"
	"strings"

	"github.com/trezcool/placegrade/core/place"
)

type providerMock struct {
	places []place.PlaceResult
}

var _ place.Provider = (*providerMock)(nil)

// NewProviderMock returns a place.Provider serving a fixed set of places.
// Search matches the query against names and addresses, ignoring case.
func NewProviderMock(places ...place.PlaceResult) place.Provider {
	return &providerMock{places: places}
}

func (p *providerMock) Search(_ context.Context, query string, _ *place.LatLng) ([]place.PlaceResult, error) {
	query = strings.ToLower(query)
	results := make([]place.PlaceResult, 0)
	if query == "" {
		return results, nil
	}
	for _, pr := range p.places {
		if strings.Contains(strings.ToLower(pr.Name), query) || strings.Contains(strings.ToLower(pr.Address), query) {
			results = append(results, pr)
		}
	}
	return results, nil
}

func (p *providerMock) Details(_ context.Context, placeID string) (place.PlaceResult, error) {
	for _, pr := range p.places {
		if pr.PlaceID == placeID {
			return pr, nil
		}
	}
	return place.PlaceResult{}, place.ErrPlaceNotFound
}
