package handlers

import (
	"errors"
	"net/http"
	"os"
	"time"

	"market-clearing/internal/api/models"
	"market-clearing/internal/metrics"
	"market-clearing/internal/model"

	"github.com/gin-gonic/gin"
)

func abort(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Error: models.ErrorDetail{Code: code, Message: message},
	})
}

// errorDetail maps an error from loading or clearing onto an HTTP status and
// an error body.
func errorDetail(err error) (int, models.ErrorDetail) {
	d := models.ErrorDetail{Message: err.Error(), Details: map[string]interface{}{}}
	status := http.StatusInternalServerError

	switch metrics.ErrorKind(err) {
	case "domain":
		status, d.Code = http.StatusBadRequest, "INVALID_INPUT"
	case "lookup":
		status, d.Code = http.StatusUnprocessableEntity, "LOOKUP_FAILED"
	case "timeout":
		status, d.Code = http.StatusGatewayTimeout, "SOLVER_TIMEOUT"
	case "solver_failure":
		d.Code = "SOLVER_FAILURE"
	default:
		d.Code = "INTERNAL_ERROR"
	}

	var stepErr *model.StepError
	if errors.As(err, &stepErr) {
		d.Details["time_step"] = stepErr.TimeStep.Format(time.RFC3339)
	}
	var lookupErr *model.LookupError
	if errors.As(err, &lookupErr) {
		d.Details["table"] = lookupErr.Table
		d.Details["key"] = lookupErr.Key
	}
	var domainErr *model.DomainError
	if errors.As(err, &domainErr) {
		d.Details["field"] = domainErr.Field
		if domainErr.Unit != "" {
			d.Details["unit"] = domainErr.Unit
		}
	}
	if len(d.Details) == 0 {
		d.Details = nil
	}
	return status, d
}

func writeError(c *gin.Context, err error) {
	status, d := errorDetail(err)
	c.JSON(status, models.ErrorResponse{Error: d})
}

// writeInputError handles errors raised before any clearing starts, where
// anything that is not a lookup failure is the caller's fault.
func writeInputError(c *gin.Context, err error) {
	if errors.Is(err, os.ErrNotExist) {
		abort(c, http.StatusNotFound, "FLEET_NOT_FOUND", err.Error())
		return
	}
	status, d := errorDetail(err)
	if d.Code == "INTERNAL_ERROR" {
		status, d.Code = http.StatusBadRequest, "INVALID_INPUT"
	}
	c.JSON(status, models.ErrorResponse{Error: d})
}
