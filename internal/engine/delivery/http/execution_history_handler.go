package http

import (
	"net/http"
	"strconv"

	"golang-surge-signal/internal/engine/service"
	"golang-surge-signal/internal/entity"
	"golang-surge-signal/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ExecutionHistoryHandler handles HTTP requests for execution history.
type ExecutionHistoryHandler struct {
	historyService service.ExecutionHistoryService
	logger         *logger.Logger
}

// NewExecutionHistoryHandler creates a new ExecutionHistoryHandler.
func NewExecutionHistoryHandler(historyService service.ExecutionHistoryService, logger *logger.Logger) *ExecutionHistoryHandler {
	return &ExecutionHistoryHandler{historyService: historyService, logger: logger}
}

// RegisterRoutes registers the execution history routes to the Echo group.
func (h *ExecutionHistoryHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetExecutionHistories)
	g.GET("/:id", h.GetExecutionHistoryByID)
}

// GetExecutionHistories godoc
// @Summary List sweep runs
// @Description Most recent runs first, optionally filtered by task type
// @Tags executions
// @Produce  json
// @Param   task_type query string false "signal_scan or position_monitor"
// @Param   limit     query int    false "Max rows (default 100)"
// @Success 200 {array} dto.ExecutionHistoryResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /executions [get]
func (h *ExecutionHistoryHandler) GetExecutionHistories(c echo.Context) error {
	limit, err := intQuery(c, "limit")
	if err != nil || limit < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid limit"})
	}

	histories, err := h.historyService.GetExecutionHistories(c.Request().Context(), entity.TaskType(c.QueryParam("task_type")), limit)
	if err != nil {
		h.logger.Error("Failed to get execution histories", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to get execution histories"})
	}
	return c.JSON(http.StatusOK, histories)
}

// GetExecutionHistoryByID godoc
// @Summary Get an execution history by ID
// @Tags executions
// @Produce  json
// @Param   id  path    int true    "Execution History ID"
// @Success 200 {object} dto.ExecutionHistoryResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /executions/{id} [get]
func (h *ExecutionHistoryHandler) GetExecutionHistoryByID(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid history ID"})
	}

	history, err := h.historyService.GetExecutionHistoryByID(c.Request().Context(), uint(id))
	if err != nil {
		return c.JSON(statusFor(err), echo.Map{"error": userMessage(err)})
	}
	return c.JSON(http.StatusOK, history)
}
