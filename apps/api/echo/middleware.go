package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/trezcool/placegrade/core/allowlist"
)

// allowedMiddleware rejects users whose email has been removed from the allowed list since their token was issued.
func allowedMiddleware(svc allowlist.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			ok, err := svc.CanSignIn(ctx.Request().Context(), claims.Email)
			if err != nil {
				return errors.Wrap(err, "checking allowed email")
			}
			if !ok {
				return errEmailNotAllowed
			}
			return next(ctx)
		}
	}
}

func adminMiddleware(svc allowlist.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if !claims.IsAdmin {
				return errHttpForbidden
			}
			isAdmin, err := svc.IsAdmin(ctx.Request().Context(), claims.Email)
			if err != nil {
				return errors.Wrap(err, "checking admin email")
			}
			if !isAdmin {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

// rateLimiter counts requests per key in fixed windows.
type rateLimiter struct {
	hits  *cache.Cache
	limit int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{hits: cache.New(window, 2*window), limit: limit}
}

func (rl *rateLimiter) allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}
	// first hit of the window
	if err := rl.hits.Add(key, 1, cache.DefaultExpiration); err == nil {
		return true
	}
	n, err := rl.hits.IncrementInt(key, 1)
	if err != nil { // the window expired in between
		_ = rl.hits.Add(key, 1, cache.DefaultExpiration)
		return true
	}
	return n <= rl.limit
}

// rateLimitMiddleware limits the requests of each client IP.
func rateLimitMiddleware(rl *rateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if !rl.allow(ctx.RealIP()) {
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}
