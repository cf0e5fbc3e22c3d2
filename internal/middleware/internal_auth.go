package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// InternalAuthMiddleware guards the service-to-service event routes with a
// shared token carried in X-Internal-Token. A deployment that configures no
// token runs open, which only makes sense on a private network; it is logged
// loudly once at startup.
func InternalAuthMiddleware(token string, log zerolog.Logger) echo.MiddlewareFunc {
	if token == "" {
		log.Warn().Msg("internal event routes are unauthenticated: INTERNAL_EVENT_TOKEN is not set")
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token == "" {
				return next(c)
			}
			got := c.Request().Header.Get("X-Internal-Token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid internal token")
			}
			return next(c)
		}
	}
}
