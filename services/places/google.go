package placesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/place"
)

const (
	textSearchPath = "/maps/api/place/textsearch/json"
	detailsPath    = "/maps/api/place/details/json"
	photoPath      = "/maps/api/place/photo"

	detailsFields = "place_id,name,formatted_address,geometry,photos"
	searchRadius  = 50000 // meters, when biased towards a location

	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
	statusNotFound    = "NOT_FOUND"
	statusInvalid     = "INVALID_REQUEST"
)

type (
	googlePlace struct {
		PlaceID          string `json:"place_id"`
		Name             string `json:"name"`
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		Photos []struct {
			PhotoReference string `json:"photo_reference"`
		} `json:"photos"`
	}

	searchResponse struct {
		Status       string        `json:"status"`
		ErrorMessage string        `json:"error_message"`
		Results      []googlePlace `json:"results"`
	}

	detailsResponse struct {
		Status       string      `json:"status"`
		ErrorMessage string      `json:"error_message"`
		Result       googlePlace `json:"result"`
	}
)

// googleProvider is a place.Provider backed by the Google Places web service.
type googleProvider struct {
	client    *rest.Client
	baseURL   string
	key       string
	maxWidth  int
	maxHeight int
	cache     *cache.Cache
}

var _ place.Provider = (*googleProvider)(nil)

// NewGoogleProvider returns a place.Provider querying the Google Places API.
// Responses are cached for conf.Places.CacheTTL.
func NewGoogleProvider(conf *core.Config, httpClient ...*http.Client) place.Provider {
	client := &http.Client{Timeout: 10 * time.Second}
	if len(httpClient) > 0 && httpClient[0] != nil {
		client = httpClient[0]
	}
	ttl := conf.Places.CacheTTL
	return &googleProvider{
		client:    &rest.Client{HTTPClient: client},
		baseURL:   strings.TrimSuffix(conf.Places.BaseURL, "/"),
		key:       conf.Places.APIKey,
		maxWidth:  conf.Places.PhotoMaxWidth,
		maxHeight: conf.Places.PhotoMaxHeight,
		cache:     cache.New(ttl, 2*ttl),
	}
}

func (p *googleProvider) Search(ctx context.Context, query string, near *place.LatLng) ([]place.PlaceResult, error) {
	if query == "" {
		return []place.PlaceResult{}, nil
	}
	params := map[string]string{"query": query}
	if near != nil {
		params["location"] = formatLatLng(*near)
		params["radius"] = strconv.Itoa(searchRadius)
	}

	key := "search:" + encodeParams(params)
	if cached, ok := p.cache.Get(key); ok {
		return cached.([]place.PlaceResult), nil
	}

	var res searchResponse
	if err := p.get(ctx, textSearchPath, params, &res); err != nil {
		return nil, errors.Wrap(err, "searching places")
	}
	switch res.Status {
	case statusOK, statusZeroResults:
	default:
		return nil, statusError(res.Status, res.ErrorMessage)
	}

	results := make([]place.PlaceResult, 0, len(res.Results))
	for _, gp := range res.Results {
		if gp.PlaceID == "" || gp.Name == "" {
			continue
		}
		results = append(results, p.placeResult(gp))
	}
	p.cache.SetDefault(key, results)
	return results, nil
}

func (p *googleProvider) Details(ctx context.Context, placeID string) (place.PlaceResult, error) {
	key := "details:" + placeID
	if cached, ok := p.cache.Get(key); ok {
		return cached.(place.PlaceResult), nil
	}

	var res detailsResponse
	params := map[string]string{"place_id": placeID, "fields": detailsFields}
	if err := p.get(ctx, detailsPath, params, &res); err != nil {
		return place.PlaceResult{}, errors.Wrap(err, "fetching place details")
	}
	switch res.Status {
	case statusOK:
	case statusNotFound, statusZeroResults, statusInvalid:
		return place.PlaceResult{}, place.ErrPlaceNotFound
	default:
		return place.PlaceResult{}, statusError(res.Status, res.ErrorMessage)
	}

	pr := p.placeResult(res.Result)
	p.cache.SetDefault(key, pr)
	return pr, nil
}

func (p *googleProvider) get(ctx context.Context, path string, params map[string]string, dest interface{}) error {
	params["key"] = p.key
	req, err := rest.BuildRequestObject(rest.Request{
		Method:      rest.Get,
		BaseURL:     p.baseURL + path,
		Headers:     map[string]string{"Accept": "application/json"},
		QueryParams: params,
	})
	if err != nil {
		return errors.Wrap(err, "building places request")
	}
	httpRes, err := p.client.MakeRequest(req.WithContext(ctx))
	if err != nil {
		return err
	}
	res, err := rest.BuildResponse(httpRes)
	if err != nil {
		return errors.Wrap(err, "reading places response")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("places API status: %d - body: %s", res.StatusCode, res.Body)
	}
	return errors.Wrap(json.Unmarshal([]byte(res.Body), dest), "decoding places response")
}

func (p *googleProvider) placeResult(gp googlePlace) place.PlaceResult {
	pr := place.PlaceResult{
		PlaceID: gp.PlaceID,
		Name:    gp.Name,
		Address: gp.FormattedAddress,
		Lat:     gp.Geometry.Location.Lat,
		Lng:     gp.Geometry.Location.Lng,
	}
	if len(gp.Photos) > 0 && gp.Photos[0].PhotoReference != "" {
		pr.PhotoURL = p.photoURL(gp.Photos[0].PhotoReference)
	}
	return pr
}

func (p *googleProvider) photoURL(ref string) string {
	q := make(url.Values)
	q.Set("maxwidth", strconv.Itoa(p.maxWidth))
	q.Set("maxheight", strconv.Itoa(p.maxHeight))
	q.Set("photo_reference", ref)
	q.Set("key", p.key)
	return p.baseURL + photoPath + "?" + q.Encode()
}

func statusError(status, msg string) error {
	if msg == "" {
		return errors.Errorf("places API status: %s", status)
	}
	return errors.Errorf("places API status: %s - %s", status, msg)
}

func formatLatLng(ll place.LatLng) string {
	return fmt.Sprintf("%s,%s",
		strconv.FormatFloat(ll.Lat, 'f', -1, 64),
		strconv.FormatFloat(ll.Lng, 'f', -1, 64))
}

// encodeParams is a stable cache key for a set of query params.
func encodeParams(params map[string]string) string {
	q := make(url.Values, len(params))
	for k, v := range params {
		q.Set(k, v)
	}
	return q.Encode() // sorted by key
}
