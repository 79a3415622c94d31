package http

import (
	"net/http"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/nfdrepairs/repair-ops/internal/cache"
	"github.com/nfdrepairs/repair-ops/internal/repository"
)

func listSettingsHandler(settings repository.SettingsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		all, err := settings.All(c.Request().Context())
		if err != nil {
			log.Errorf("list settings failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		return c.JSON(http.StatusOK, map[string]any{"success": true, "settings": all})
	}
}

type putSettingReq struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func putSettingHandler(settings repository.SettingsRepository, settingsCache *cache.Settings) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req putSettingReq
		if err := c.Bind(&req); err != nil || req.Key == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "key is required"})
		}

		if err := settings.Set(c.Request().Context(), req.Key, req.Value); err != nil {
			log.Errorf("set setting failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		settingsCache.Invalidate(c.Request().Context(), req.Key)

		return c.JSON(http.StatusOK, map[string]any{"success": true})
	}
}
