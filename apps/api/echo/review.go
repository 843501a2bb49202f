package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/grade"
	"github.com/trezcool/placegrade/core/review"
	"github.com/trezcool/placegrade/core/user"
)

type reviewApi struct {
	svc      review.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerReviewAPI(g *echo.Group, jwt, allowed echo.MiddlewareFunc, deps ServerDeps) {
	api := reviewApi{
		svc:      deps.ReviewSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	rg := g.Group("/reviews", jwt, allowed)
	rg.POST("", api.create)
	rg.DELETE("/:id", api.destroy)
}

// Handlers

func (api *reviewApi) create(ctx echo.Context) error {
	var data review.NewReview
	if err := ctx.Bind(&data); err != nil {
		// unknown grade symbols fail while decoding
		if herr, ok := err.(*echo.HTTPError); ok && errors.Is(herr.Internal, grade.ErrInvalid) {
			return core.NewFieldError("grade", grade.ErrInvalid)
		}
		return errors.Wrap(err, "binding to NewReview")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	rvw, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating review")
	}
	return ctx.JSON(http.StatusCreated, rvw)
}

func (api *reviewApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting review")
	}
	return ctx.NoContent(http.StatusNoContent)
}
