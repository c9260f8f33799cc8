package http

import (
	"context"
	"net/http"
	"time"

	"golang-surge-signal/internal/engine/dto"
	"golang-surge-signal/internal/engine/service"
	"golang-surge-signal/internal/entity"
	"golang-surge-signal/pkg/logger"

	"github.com/labstack/echo/v4"
)

const stopTimeout = 30 * time.Second

// SchedulerHandler exposes start, stop, status and on-demand runs of the sweeps.
type SchedulerHandler struct {
	scheduler service.SchedulerService
	// appCtx outlives requests; cron jobs started over HTTP run under it.
	appCtx context.Context
	logger *logger.Logger
}

func NewSchedulerHandler(appCtx context.Context, scheduler service.SchedulerService, logger *logger.Logger) *SchedulerHandler {
	return &SchedulerHandler{scheduler: scheduler, appCtx: appCtx, logger: logger}
}

// RegisterRoutes registers the scheduler routes to the admin group.
func (h *SchedulerHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/scheduler/start", h.Start)
	g.POST("/scheduler/stop", h.Stop)
	g.GET("/scheduler/status", h.Status)
	g.POST("/scheduler/tasks/:type/run", h.RunTask)
}

// Start godoc
// @Summary Start the scheduler
// @Tags admin
// @Produce  json
// @Success 200 {object} dto.ActionResult
// @Failure 409 {object} dto.ActionResult
// @Router /admin/scheduler/start [post]
func (h *SchedulerHandler) Start(c echo.Context) error {
	if err := h.scheduler.Start(h.appCtx); err != nil {
		return c.JSON(statusFor(err), dto.ActionResult{Message: err.Error()})
	}
	h.logger.InfoContext(c.Request().Context(), "Scheduler started over HTTP")
	return c.JSON(http.StatusOK, dto.ActionResult{Success: true, Message: "Scheduler started", Data: h.scheduler.Status()})
}

// Stop godoc
// @Summary Stop the scheduler
// @Description Stops new runs and waits for running sweeps to finish
// @Tags admin
// @Produce  json
// @Success 200 {object} dto.ActionResult
// @Failure 409 {object} dto.ActionResult
// @Router /admin/scheduler/stop [post]
func (h *SchedulerHandler) Stop(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), stopTimeout)
	defer cancel()

	if err := h.scheduler.Stop(ctx); err != nil {
		return c.JSON(statusFor(err), dto.ActionResult{Message: err.Error()})
	}
	h.logger.InfoContext(c.Request().Context(), "Scheduler stopped over HTTP")
	return c.JSON(http.StatusOK, dto.ActionResult{Success: true, Message: "Scheduler stopped", Data: h.scheduler.Status()})
}

// Status godoc
// @Summary Scheduler status
// @Tags admin
// @Produce  json
// @Success 200 {object} dto.SchedulerStatus
// @Router /admin/scheduler/status [get]
func (h *SchedulerHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.scheduler.Status())
}

// RunTask godoc
// @Summary Run a sweep now
// @Description Runs signal_scan or position_monitor synchronously and returns its run record
// @Tags admin
// @Produce  json
// @Param   type  path    string true    "Task type"
// @Success 200 {object} dto.ActionResult
// @Failure 400 {object} dto.ActionResult
// @Failure 409 {object} dto.ActionResult
// @Failure 500 {object} dto.ActionResult
// @Router /admin/scheduler/tasks/{type}/run [post]
func (h *SchedulerHandler) RunTask(c echo.Context) error {
	taskType := entity.TaskType(c.Param("type"))

	history, err := h.scheduler.RunNow(c.Request().Context(), taskType)
	if err != nil {
		h.logger.WarnContext(c.Request().Context(), "Manual sweep failed",
			logger.StringField("task_type", string(taskType)), logger.ErrorField(err))
		return c.JSON(statusFor(err), dto.ActionResult{Message: userMessage(err)})
	}

	result := service.MapExecutionHistory(history)
	return c.JSON(http.StatusOK, dto.ActionResult{
		Success: history.Status != entity.StatusFailed,
		Message: "Sweep " + string(history.Status),
		Data:    result,
	})
}
