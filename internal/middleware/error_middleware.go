package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yigit/placementdesk/internal/app/models/dto"
	"github.com/yigit/placementdesk/internal/pkg/apperrors"
	"github.com/yigit/placementdesk/internal/pkg/logger"
)

// StatusClientClosedRequest is reported when the caller went away mid-request.
const StatusClientClosedRequest = 499

// HandleAPIError maps a service error onto a status code and error envelope.
// The message of the error itself is returned; the precise kind is carried in
// the reason field.
func HandleAPIError(c *gin.Context, err error) {
	status, code := classify(err)

	detail := dto.NewErrorDetail(code, err.Error())
	if reason := apperrors.CodeOf(err); reason != "" {
		detail = detail.WithReason(reason)
	}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("Request failed")
		if status == http.StatusInternalServerError {
			detail.Message = "Internal server error"
		}
	case status == StatusClientClosedRequest:
		logger.Debug().Err(err).Str("path", c.FullPath()).Msg("Request cancelled by client")
	}

	c.JSON(status, dto.APIResponse{
		Success:   false,
		Error:     detail,
		Timestamp: time.Now(),
	})
}

func classify(err error) (int, dto.ErrorCode) {
	switch {
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, dto.ErrorCodeExternalServiceError
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, dto.ErrorCodeExternalServiceError
	case errors.Is(err, apperrors.ErrValidationFailed):
		return http.StatusBadRequest, dto.ErrorCodeValidationFailed
	case errors.Is(err, apperrors.ErrPermissionDenied):
		return http.StatusForbidden, dto.ErrorCodeForbidden
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, dto.ErrorCodeResourceNotFound
	case errors.Is(err, apperrors.ErrLockedAssignment):
		return http.StatusLocked, dto.ErrorCodeLockedAssignment
	case errors.Is(err, apperrors.ErrNotEligible):
		return http.StatusConflict, dto.ErrorCodeNotEligible
	case errors.Is(err, apperrors.ErrAlreadyAwarded):
		return http.StatusConflict, dto.ErrorCodeAlreadyAwarded
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, dto.ErrorCodeConflict
	case errors.Is(err, apperrors.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, dto.ErrorCodeExternalServiceError
	default:
		return http.StatusInternalServerError, dto.ErrorCodeInternalServer
	}
}
