package handlers

import (
	"log/slog"
	"net/http"

	"github.com/geocoder89/shifthub/internal/apperr"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get("request_id")

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, string(apperr.CodeInvalidInput), message, details)
}

// StatusFor maps a failure code onto its HTTP status.
func StatusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperr.CodeForbidden:
		return http.StatusForbidden
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeInvalidInput:
		return http.StatusBadRequest
	case apperr.CodeAlreadyActive, apperr.CodeNoActiveShift, apperr.CodeConflict:
		return http.StatusConflict
	case apperr.CodeOutsideGeofence, apperr.CodeNoOrganization:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// RespondAppError renders err in the error envelope. Internal failures are
// logged with their cause and shown only as a generic message.
func RespondAppError(ctx *gin.Context, err error) {
	appErr := apperr.From(err)
	status := StatusFor(appErr.Code)

	if status == http.StatusInternalServerError {
		slog.Default().ErrorContext(ctx.Request.Context(), "request failed",
			"err", err,
			"route", ctx.FullPath(),
			"request_id", requestIDFrom(ctx),
		)
		RespondError(ctx, status, string(apperr.CodeInternal), "Internal server error", nil)
		return
	}

	RespondError(ctx, status, string(appErr.Code), appErr.Message, nil)
}
