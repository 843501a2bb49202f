package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/allowlist"
	"github.com/trezcool/placegrade/core/user"
)

type userApi struct {
	conf     *core.Config
	svc      user.Service
	allowSvc allowlist.Service
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := userApi{
		conf:     deps.Conf,
		svc:      deps.UserSvc,
		allowSvc: deps.AllowlistSvc,
		validate: deps.Validate,
	}
	limiter := newRateLimiter(deps.Conf.Server.SignInRateLimit, deps.Conf.Server.SignInRateWindow)

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/signin", api.signIn, rateLimitMiddleware(limiter))
	ag.POST("/callback", api.callback)

	// authed endpoints
	ag.POST("/token-refresh", api.refreshToken, jwt)
	ag.GET("/me", api.me, jwt)
}

// Handlers

func (api *userApi) signIn(ctx echo.Context) error {
	var data user.SignInRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SignInRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	ok, err := api.allowSvc.CanSignIn(rctx, data.Email)
	if err != nil {
		return errors.Wrap(err, "checking allowed email")
	}
	if !ok {
		return errEmailNotAllowed
	}

	if err = api.svc.RequestSignIn(rctx, data); err != nil {
		return errors.Wrap(err, "requesting sign-in")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "A sign-in link has been sent to " + data.Email + ". It can only be used once.",
	})
}

func (api *userApi) callback(ctx echo.Context) error {
	var data user.SignInConfirmation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SignInConfirmation")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	usr, err := api.svc.VerifySignIn(rctx, data)
	if err != nil {
		return errors.Wrap(err, "verifying sign-in")
	}
	token, err := authorize(rctx, api.conf, api.allowSvc, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.conf, api.svc, api.allowSvc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	isAdmin, err := api.allowSvc.IsAdmin(ctx.Request().Context(), usr.Email)
	if err != nil {
		return errors.Wrap(err, "checking admin email")
	}
	return ctx.JSON(http.StatusOK, MeResponse{User: usr, IsAdmin: isAdmin})
}

type (
	LoginResponse struct {
		Token string `json:"token"`
	}

	MeResponse struct {
		User    user.User `json:"user"`
		IsAdmin bool      `json:"is_admin"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)
