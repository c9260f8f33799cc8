package http

import (
	"errors"
	"net/http"
	"strings"

	"golang-surge-signal/internal/engine/repository"
	"golang-surge-signal/internal/engine/service"
	"golang-surge-signal/internal/entity"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// RequestValidator plugs go-playground/validator into echo.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

// Validate implements echo.Validator and returns readable field messages.
func (v *RequestValidator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if fe.Tag() == "required" {
			messages = append(messages, field+" is required")
		} else {
			messages = append(messages, field+" is invalid")
		}
	}
	return errors.New(strings.Join(messages, "; "))
}

// bindAndValidate decodes the body and runs the registered validator.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return errors.New("invalid request payload")
	}
	if c.Echo().Validator != nil {
		if err := c.Validate(req); err != nil {
			return err
		}
	}
	return nil
}

// statusFor maps domain errors onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrSignalNotFound), errors.Is(err, repository.ErrSettingsNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSignalNotOwned):
		return http.StatusForbidden
	case errors.Is(err, entity.ErrInvalidTransition), errors.Is(err, entity.ErrOrderAlreadySet),
		errors.Is(err, repository.ErrConcurrentUpdate), errors.Is(err, service.ErrTaskAlreadyRunning),
		errors.Is(err, service.ErrSchedulerRunning), errors.Is(err, service.ErrSchedulerStopped):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidSettings), errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidMarket), errors.Is(err, entity.ErrInvalidPrice),
		errors.Is(err, service.ErrUnknownTask):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrInsufficientBalance), errors.Is(err, repository.ErrMarketClosed),
		errors.Is(err, repository.ErrOrderRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, repository.ErrRateLimited), errors.Is(err, repository.ErrTransient):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// userMessage never exposes raw internal errors.
func userMessage(err error) string {
	switch statusFor(err) {
	case http.StatusInternalServerError:
		return "internal error"
	case http.StatusServiceUnavailable:
		return "exchange temporarily unavailable, try again"
	case http.StatusUnprocessableEntity:
		return "order rejected: " + rootMessage(err)
	}
	return err.Error()
}

func rootMessage(err error) string {
	for _, sentinel := range []error{repository.ErrInsufficientBalance, repository.ErrMarketClosed, repository.ErrOrderRejected} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
