package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/placegrade/core/allowlist"
	"github.com/trezcool/placegrade/core/user"
)

type allowlistApi struct {
	svc      allowlist.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerAllowlistAPI(g *echo.Group, jwt, admin echo.MiddlewareFunc, deps ServerDeps) {
	api := allowlistApi{
		svc:      deps.AllowlistSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	ag := g.Group("/allowed-emails", jwt, admin)
	ag.GET("", api.query)
	ag.POST("", api.create)
	ag.DELETE("/:email", api.destroy)
}

// Handlers

func (api *allowlistApi) query(ctx echo.Context) error {
	entries, err := api.svc.Query(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying allowed emails")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *allowlistApi) create(ctx echo.Context) error {
	var data allowlist.NewAllowedEmail
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAllowedEmail")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ae, err := api.svc.Add(ctx.Request().Context(), data, usr)
	if err != nil {
		return errors.Wrap(err, "adding allowed email")
	}
	return ctx.JSON(http.StatusCreated, ae)
}

func (api *allowlistApi) destroy(ctx echo.Context) error {
	if err := api.svc.Remove(ctx.Request().Context(), ctx.Param("email")); err != nil {
		return errors.Wrap(err, "removing allowed email")
	}
	return ctx.NoContent(http.StatusNoContent)
}
