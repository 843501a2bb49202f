package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/grade"
	"github.com/trezcool/placegrade/core/place"
)

var (
	orderingParam = "ordering"

	errInvalidNumber = errors.New("enter a number")
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindEstablishmentFilter reads the `search` and `min_grade` query params.
func bindEstablishmentFilter(ctx echo.Context) (*place.QueryFilter, error) {
	filter := &place.QueryFilter{Search: ctx.QueryParam("search")}
	if val := strings.TrimSpace(ctx.QueryParam("min_grade")); val != "" {
		g, err := grade.Parse(strings.ToUpper(val))
		if err != nil {
			return nil, core.NewFieldError("min_grade", grade.ErrInvalid)
		}
		filter.MinGrade = &g
	}
	return filter, nil
}

// bindLatLng reads the optional `lat` and `lng` query params, which go together.
func bindLatLng(ctx echo.Context) (*place.LatLng, error) {
	lat, lng := strings.TrimSpace(ctx.QueryParam("lat")), strings.TrimSpace(ctx.QueryParam("lng"))
	if lat == "" && lng == "" {
		return nil, nil
	}

	var fldErrs []core.FieldError
	parse := func(name, val string) float64 {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			fldErrs = append(fldErrs, core.FieldError{Field: name, Error: errInvalidNumber.Error()})
		}
		return f
	}
	ll := &place.LatLng{Lat: parse("lat", lat), Lng: parse("lng", lng)}
	if fldErrs != nil {
		return nil, core.NewValidationError(nil, fldErrs...)
	}
	return ll, nil
}
