package middleware

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"

	"github.com/nfdrepairs/repair-ops/internal/cache"
	"github.com/nfdrepairs/repair-ops/internal/model"
)

// APIKeyMiddleware authenticates the public warranty API using the
// X-API-KEY header against the staff-configured key in admin settings.
func APIKeyMiddleware(settings *cache.Settings) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.Request().Header.Get("X-API-KEY"))
			if key == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing api key"})
			}
			expected, ok, err := settings.Get(c.Request().Context(), model.SettingWarrantyAPIKey)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "auth error"})
			}
			if !ok || expected == "" || key != expected {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
			}
			return next(c)
		}
	}
}

// CronAuthMiddleware guards the cron sweep endpoint with a bearer secret.
func CronAuthMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "cron secret not configured"})
			}
			auth := c.Request().Header.Get("Authorization")
			if auth != "Bearer "+secret {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			return next(c)
		}
	}
}
