package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"

	"github.com/relaychat/notifier/internal/models"
	"github.com/relaychat/notifier/internal/repositories"
)

// SettingsHandler serves notification preferences
type SettingsHandler struct {
	settingsRepository repositories.SettingsRepository
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(settingsRepo repositories.SettingsRepository) *SettingsHandler {
	return &SettingsHandler{settingsRepository: settingsRepo}
}

// RegisterSettingsRoutes registers settings routes
func (h *SettingsHandler) RegisterSettingsRoutes(g *echo.Group) {
	g.GET("/settings", h.GetSettings)
	g.PUT("/settings", h.UpdateSettings)
}

// GetSettings returns the user's resolved preferences, defaults included
func (h *SettingsHandler) GetSettings(c echo.Context) error {
	uid := uidFromContext(c)
	if uid == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	settings, err := h.settingsRepository.GetSettings(c.Request().Context(), uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"settings": settings}})
}

// UpdateSettings replaces the user's stored settings document. The document
// is stored as sent: fields the client omits stay on their defaults, so a
// partial document is a valid way to override just a few knobs.
func (h *SettingsHandler) UpdateSettings(c echo.Context) error {
	uid := uidFromContext(c)
	if uid == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	// Unmarshalling against the settings shape rejects wrong field types and
	// non-object documents in one step.
	resolved := models.DefaultNotificationSettings()
	if err := json.Unmarshal(body, &resolved); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid settings document")
	}

	if err := h.settingsRepository.UpsertSettings(c.Request().Context(), uid, datatypes.JSON(body)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"settings": resolved}})
}
