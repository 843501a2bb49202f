package echoapi

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/place"
	"github.com/trezcool/placegrade/core/review"
)

var errSearchRequired = errors.New("enter a search query")

type placeApi struct {
	svc       place.Service
	reviewSvc review.Service
	validate  *validator.Validate
}

func registerPlaceAPI(g *echo.Group, jwt, allowed echo.MiddlewareFunc, deps ServerDeps) {
	api := placeApi{
		svc:       deps.PlaceSvc,
		reviewSvc: deps.ReviewSvc,
		validate:  deps.Validate,
	}

	// provider search, for signed in users only
	pg := g.Group("/places", jwt, allowed)
	pg.GET("/search", api.search)
	pg.GET("/lookup", api.lookup)

	// public endpoints
	eg := g.Group("/establishments")
	eg.GET("", api.query)
	eg.GET("/markers", api.markers)
	eg.GET("/:id", api.retrieve)
}

// Handlers

func (api *placeApi) search(ctx echo.Context) error {
	q := core.CleanString(ctx.QueryParam("q"))
	if q == "" {
		return core.NewFieldError("q", errSearchRequired)
	}
	near, err := bindLatLng(ctx)
	if err != nil {
		return err
	}
	if near != nil {
		if err = api.validate.Struct(near); err != nil {
			return err
		}
	}

	results, err := api.svc.Search(ctx.Request().Context(), q, near)
	if err != nil {
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "searching places"))
		return errPlacesUnavailable
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *placeApi) lookup(ctx echo.Context) error {
	placeID := strings.TrimSpace(ctx.QueryParam("place_id"))
	if placeID == "" {
		return errHttpNotFound
	}
	est, err := api.svc.Lookup(ctx.Request().Context(), placeID)
	if err != nil {
		return errors.Wrap(err, "looking up establishment")
	}
	return ctx.JSON(http.StatusOK, est)
}

func (api *placeApi) query(ctx echo.Context) error {
	filter, err := bindEstablishmentFilter(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	ests, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying establishments")
	}
	if ests == nil {
		ests = []place.Establishment{}
	}
	return ctx.JSON(http.StatusOK, ests)
}

func (api *placeApi) markers(ctx echo.Context) error {
	markers, err := api.svc.Markers(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting markers")
	}
	return ctx.JSON(http.StatusOK, markers)
}

func (api *placeApi) retrieve(ctx echo.Context) error {
	page, err := api.reviewSvc.GetEstablishment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting establishment")
	}
	return ctx.JSON(http.StatusOK, page)
}
