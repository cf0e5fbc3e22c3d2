package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"

	"github.com/relaychat/notifier/internal/models"
	"github.com/relaychat/notifier/internal/repositories"
)

// DeviceTokenHandler handles push endpoint registration
type DeviceTokenHandler struct {
	tokenRepository repositories.DeviceTokenRepository
}

// NewDeviceTokenHandler creates a new DeviceTokenHandler
func NewDeviceTokenHandler(tokenRepo repositories.DeviceTokenRepository) *DeviceTokenHandler {
	return &DeviceTokenHandler{tokenRepository: tokenRepo}
}

// RegisterDeviceTokenRoutes registers device token routes
func (h *DeviceTokenHandler) RegisterDeviceTokenRoutes(g *echo.Group) {
	g.POST("/device-tokens", h.RegisterToken)
	g.DELETE("/device-tokens", h.RemoveToken)
}

type registerTokenRequest struct {
	Channel           string          `json:"channel" validate:"omitempty,oneof=native webpush"`
	Token             string          `json:"token"`
	Subscription      json.RawMessage `json:"subscription"`
	DeviceInfo        string          `json:"device_info" validate:"max=256"`
	PermissionGranted *bool           `json:"permission_granted"`
}

type removeTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// RegisterToken registers or refreshes a push endpoint for the current user.
// Native devices send their FCM token; web clients send the full webpush
// subscription, whose endpoint doubles as the unique token value.
func (h *DeviceTokenHandler) RegisterToken(c echo.Context) error {
	uid := uidFromContext(c)
	if uid == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req registerTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	validate := validator.New()
	if err := validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	channel := models.PushChannel(req.Channel)
	if channel == "" {
		channel = models.PushChannelNative
	}

	token := models.DeviceToken{
		UID:               uid,
		Channel:           channel,
		Token:             req.Token,
		DeviceInfo:        req.DeviceInfo,
		Enabled:           true,
		PermissionGranted: true,
	}
	if req.PermissionGranted != nil {
		token.PermissionGranted = *req.PermissionGranted
	}

	if channel == models.PushChannelWebpush {
		var sub struct {
			Endpoint string `json:"endpoint"`
		}
		if err := json.Unmarshal(req.Subscription, &sub); err != nil || sub.Endpoint == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid webpush subscription")
		}
		token.Token = sub.Endpoint
		token.Subscription = datatypes.JSON(req.Subscription)
	} else if token.Token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Token is required")
	}

	if err := h.tokenRepository.Register(c.Request().Context(), &token); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data":    echo.Map{"token": token},
	})
}

// RemoveToken deletes one of the current user's push endpoints
func (h *DeviceTokenHandler) RemoveToken(c echo.Context) error {
	uid := uidFromContext(c)
	if uid == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req removeTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	validate := validator.New()
	if err := validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.tokenRepository.Remove(c.Request().Context(), uid, req.Token); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"success": true}})
}
