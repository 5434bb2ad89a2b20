package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/shifthub/internal/analytics"
	"github.com/gin-gonic/gin"
)

type AnalyticsService interface {
	ShiftAnalytics(ctx context.Context) (analytics.ShiftAnalytics, error)
	UserShiftSummaries(ctx context.Context) ([]analytics.UserShiftSummary, error)
}

type AnalyticsHandler struct {
	svc AnalyticsService
}

func NewAnalyticsHandler(svc AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

func (h *AnalyticsHandler) Shifts(ctx *gin.Context) {
	out, err := h.svc.ShiftAnalytics(ctx.Request.Context())
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, out)
}

func (h *AnalyticsHandler) Users(ctx *gin.Context) {
	out, err := h.svc.UserShiftSummaries(ctx.Request.Context())
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": out,
		"count": len(out),
	})
}
