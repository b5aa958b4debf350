package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/automation"
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/monitor"
	"github.com/frostdev-ops/adpilot-backend-go/pkg/errors"
	"github.com/frostdev-ops/adpilot-backend-go/pkg/utils"
	"github.com/gin-gonic/gin"
)

// toAppError maps domain errors to API errors
func toAppError(err error) *errors.AppError {
	var (
		appErr *errors.AppError
		verr   *automation.ValidationError
	)
	switch {
	case stderrors.As(err, &appErr):
		return appErr
	case stderrors.As(err, &verr):
		return errors.WithDetails(errors.Wrap(http.StatusBadRequest, "Rule validation failed", err), verr.Errors)
	case stderrors.Is(err, automation.ErrRuleNotFound):
		return errors.Wrap(http.StatusNotFound, "Rule not found", err)
	case stderrors.Is(err, monitor.ErrAlertNotFound):
		return errors.Wrap(http.StatusNotFound, "Alert not found", err)
	case stderrors.Is(err, automation.ErrRuleExists):
		return errors.Wrap(http.StatusConflict, "Rule already exists", err)
	case stderrors.Is(err, automation.ErrCycleInProgress):
		return errors.Wrap(http.StatusConflict, "Automation cycle already in progress", err)
	case stderrors.Is(err, errors.ErrCircuitOpen):
		return errors.Wrap(http.StatusServiceUnavailable, "Ad platform temporarily unavailable", err)
	default:
		return errors.Wrap(http.StatusInternalServerError, "Internal server error", err)
	}
}

// fail writes the error response, logging server-side failures
func (h *Handlers) fail(c *gin.Context, err error) {
	appErr := toAppError(err)
	if appErr.Code >= http.StatusInternalServerError {
		h.log.WithFields(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).WithError(err).Error("Request failed")
	}
	utils.SendAppError(c, appErr)
}

func badRequest(c *gin.Context, message string, err error) {
	appErr := errors.New(http.StatusBadRequest, message)
	if err != nil {
		appErr = errors.WithDetails(appErr, err.Error())
	}
	utils.SendAppError(c, appErr)
}
