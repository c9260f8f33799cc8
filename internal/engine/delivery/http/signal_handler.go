package http

import (
	"net/http"
	"strconv"
	"strings"

	"golang-surge-signal/internal/engine/dto"
	"golang-surge-signal/internal/engine/service"
	"golang-surge-signal/internal/entity"
	"golang-surge-signal/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SignalHandler handles HTTP requests for signals.
type SignalHandler struct {
	signalService service.SignalService
	logger        *logger.Logger
}

// NewSignalHandler creates a new SignalHandler.
func NewSignalHandler(signalService service.SignalService, logger *logger.Logger) *SignalHandler {
	return &SignalHandler{signalService: signalService, logger: logger}
}

// RegisterRoutes registers the signal routes to the Echo group.
func (h *SignalHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/signals", h.ListSignals)
	g.GET("/signals/:id", h.GetSignal)
	g.POST("/signals/:id/buy", h.BuySignal)
	g.POST("/signals/:id/close", h.CloseSignal)
	g.GET("/users/:user_id/signal-stats", h.GetStats)
}

// RegisterAdminRoutes registers the admin-only signal routes.
func (h *SignalHandler) RegisterAdminRoutes(g *echo.Group) {
	g.POST("/signals", h.CreateSignal)
}

// ListSignals godoc
// @Summary List signals
// @Description Paginated signals, newest first, with the total count across pages
// @Tags signals
// @Produce  json
// @Param   user_id query int    false "Owner user ID"
// @Param   status  query string false "pending, bought, win, lose, closed or expired"
// @Param   market  query string false "Market symbol, e.g. BTCUSDT"
// @Param   limit   query int    false "Page size (default 50, max 200)"
// @Param   offset  query int    false "Rows to skip"
// @Success 200 {object} dto.SignalPage
// @Failure 400 {object} dto.ActionResult
// @Failure 500 {object} dto.ActionResult
// @Router /signals [get]
func (h *SignalHandler) ListSignals(c echo.Context) error {
	var param dto.ListSignalsParam

	if raw := c.QueryParam("user_id"); raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			return c.JSON(http.StatusBadRequest, dto.ActionResult{Message: "Invalid user ID"})
		}
		param.UserID = &userID
	}
	if raw := c.QueryParam("status"); raw != "" {
		status, err := entity.ParseSignalStatus(strings.ToLower(raw))
		if err != nil {
			return c.JSON(http.StatusBadRequest, dto.ActionResult{Message: err.Error()})
		}
		param.Status = &status
	}
	param.Market = strings.ToUpper(strings.TrimSpace(c.QueryParam("market")))

	var err error
	if param.Limit, err = intQuery(c, "limit"); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ActionResult{Message: "Invalid limit"})
	}
	if param.Offset, err = intQuery(c, "offset"); err != nil || param.Offset < 0 {
		return c.JSON(http.StatusBadRequest, dto.ActionResult{Message: "Invalid offset"})
	}

	page, err := h.signalService.List(c.Request().Context(), param)
	if err != nil {
		return c.JSON(statusFor(err), dto.ActionResult{Message: userMessage(err)})
	}
	return c.JSON(http.StatusOK, page)
}

// GetSignal godoc
// @Summary Get a signal by ID
// @Tags signals
// @Produce  json
// @Param   id  path    int true    "Signal ID"
// @Success 200 {object} entity.Signal
// @Failure 400 {object} dto.ActionResult
// @Failure 404 {object} dto.ActionResult
// @Router /signals/{id} [get]
func (h *SignalHandler) GetSignal(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ActionResult{Message: "Invalid signal ID"})
	}

	signal, err := h.signalService.Get(c.Request().Context(), id)
	if err != nil {
		return c.JSON(statusFor(err), dto.ActionResult{Message: userMessage(err)})
	}
	return c.JSON(http.StatusOK, signal)
}

// GetStats godoc
// @Summary Get signal statistics for a user
// @Description Counts, execution rate, win rate and average win/loss. Ratios are 0 when undefined.
// @Tags signals
// @Produce  json
// @Param   user_id  path    int true    "User ID"
// @Success 200 {object} dto.SignalStats
// @Failure 400 {object} dto.ActionResult
// @Failure 500 {object} dto.ActionResult
// @Router /users/{user_id}/signal-stats [get]
func (h *SignalHandler) GetStats(c echo.Context) error {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		return c.JSON(http.StatusBadRequest, dto.ActionResult{Message: "Invalid user ID"})
	}

	stats, err := h.signalService.Stats(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(statusFor(err), dto.ActionResult{Message: userMessage(err)})
	}
	return c.JSON(http.StatusOK, stats)
}

// BuySignal godoc
// @Summary Buy a pending signal
// @Description Places a market buy and re-anchors target and stop on the fill price
// @Tags signals
// @Accept  json
// @Produce  json
// @Param   id   path    int                  true "Signal ID"
// @Param   body body    dto.ManualBuyRequest true "Buyer and optional quote amount"
// @Success 200 {object} dto.ActionResult
// @Failure 400 {object} dto.ActionResult
// @Failure 403 {object} dto.ActionResult
// @Failure 404 {object} dto.ActionResult
// @Failure 409 {object} dto.ActionResult
// @Failure 422 {object} dto.ActionResult
// @Router /signals/{id}/buy [post]
func (h *SignalHandler) BuySignal(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ActionResult{Message: "Invalid signal ID"})
	}
	var req dto.ManualBuyRequest
	if err := bindAndValidate(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ActionResult{Message: err.Error()})
	}

	result, err := h.signalService.ManualBuy(c.Request().Context(), id, req)
	if err != nil {
		h.logger.WarnContext(c.Request().Context(), "Manual buy failed",
			logger.Int64Field("signal_id", id), logger.ErrorField(err))
		return c.JSON(statusFor(err), dto.ActionResult{Message: userMessage(err)})
	}
	return c.JSON(http.StatusOK, dto.ActionResult{Success: true, Message: "Order executed", Data: result})
}

// CloseSignal godoc
// @Summary Close a bought signal
// @Description Closes at the given exit price or the latest market price
// @Tags signals
// @Accept  json
// @Produce  json
// @Param   id   path    int                    true "Signal ID"
// @Param   body body    dto.ManualCloseRequest true "Owner and optional exit price"
// @Success 200 {object} dto.ActionResult
// @Failure 400 {object} dto.ActionResult
// @Failure 403 {object} dto.ActionResult
// @Failure 404 {object} dto.ActionResult
// @Failure 409 {object} dto.ActionResult
// @Router /signals/{id}/close [post]
func (h *SignalHandler) CloseSignal(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ActionResult{Message: "Invalid signal ID"})
	}
	var req dto.ManualCloseRequest
	if err := bindAndValidate(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ActionResult{Message: err.Error()})
	}

	signal, err := h.signalService.ManualClose(c.Request().Context(), id, req)
	if err != nil {
		return c.JSON(statusFor(err), dto.ActionResult{Message: userMessage(err)})
	}
	return c.JSON(http.StatusOK, dto.ActionResult{Success: true, Message: "Signal closed", Data: signal})
}

// CreateSignal godoc
// @Summary Create a manual signal
// @Description Admin entry point. Target and stop follow the user's price policy unless overridden.
// @Tags admin
// @Accept  json
// @Produce  json
// @Param   body body    dto.CreateSignalRequest true "Signal to create"
// @Success 201 {object} dto.ActionResult
// @Failure 400 {object} dto.ActionResult
// @Failure 500 {object} dto.ActionResult
// @Router /admin/signals [post]
func (h *SignalHandler) CreateSignal(c echo.Context) error {
	var req dto.CreateSignalRequest
	if err := bindAndValidate(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ActionResult{Message: err.Error()})
	}

	signal, err := h.signalService.CreateManual(c.Request().Context(), req)
	if err != nil {
		return c.JSON(statusFor(err), dto.ActionResult{Message: userMessage(err)})
	}
	return c.JSON(http.StatusCreated, dto.ActionResult{Success: true, Message: "Signal created", Data: signal})
}

func intQuery(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
