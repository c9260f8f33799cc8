package http

import (
	"net/http"
	"strconv"

	"golang-surge-signal/internal/engine/dto"
	"golang-surge-signal/internal/engine/service"
	"golang-surge-signal/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SettingsHandler serves per-user auto-trading settings.
type SettingsHandler struct {
	signalService service.SignalService
	logger        *logger.Logger
}

func NewSettingsHandler(signalService service.SignalService, logger *logger.Logger) *SettingsHandler {
	return &SettingsHandler{signalService: signalService, logger: logger}
}

func (h *SettingsHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/users/:user_id/auto-trading-settings", h.GetSettings)
	g.PUT("/users/:user_id/auto-trading-settings", h.UpdateSettings)
}

// GetSettings godoc
// @Summary Get auto-trading settings
// @Description Returns the user's settings, creating the defaults on first access
// @Tags settings
// @Produce  json
// @Param   user_id  path    int true    "User ID"
// @Success 200 {object} entity.AutoTradingSettings
// @Failure 400 {object} dto.ActionResult
// @Failure 500 {object} dto.ActionResult
// @Router /users/{user_id}/auto-trading-settings [get]
func (h *SettingsHandler) GetSettings(c echo.Context) error {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		return c.JSON(http.StatusBadRequest, dto.ActionResult{Message: "Invalid user ID"})
	}

	settings, err := h.signalService.GetSettings(c.Request().Context(), userID)
	if err != nil {
		h.logger.ErrorContext(c.Request().Context(), "Failed to get settings", logger.Int64Field("user_id", userID), logger.ErrorField(err))
		return c.JSON(statusFor(err), dto.ActionResult{Message: userMessage(err)})
	}
	return c.JSON(http.StatusOK, settings)
}

// UpdateSettings godoc
// @Summary Update auto-trading settings
// @Tags settings
// @Accept  json
// @Produce  json
// @Param   user_id  path    int                       true "User ID"
// @Param   body     body    dto.UpdateSettingsRequest true "New settings"
// @Success 200 {object} entity.AutoTradingSettings
// @Failure 400 {object} dto.ActionResult
// @Failure 500 {object} dto.ActionResult
// @Router /users/{user_id}/auto-trading-settings [put]
func (h *SettingsHandler) UpdateSettings(c echo.Context) error {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		return c.JSON(http.StatusBadRequest, dto.ActionResult{Message: "Invalid user ID"})
	}
	var req dto.UpdateSettingsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ActionResult{Message: err.Error()})
	}

	settings, err := h.signalService.UpdateSettings(c.Request().Context(), userID, req)
	if err != nil {
		return c.JSON(statusFor(err), dto.ActionResult{Message: userMessage(err)})
	}
	return c.JSON(http.StatusOK, settings)
}
