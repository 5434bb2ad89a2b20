package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/geocoder89/shifthub/internal/app"
	"github.com/geocoder89/shifthub/internal/domain/shift"
	"github.com/gin-gonic/gin"
)

type ShiftsService interface {
	Shifts(ctx context.Context, q app.ShiftsQuery) (app.ShiftPage, error)
	ActiveShifts(ctx context.Context) ([]shift.Shift, error)
	CurrentShift(ctx context.Context) (*shift.Shift, error)
	CanClockIn(ctx context.Context, loc shift.Location) (bool, error)
	ClockIn(ctx context.Context, loc shift.Location, note *string) (shift.Shift, error)
	ClockOut(ctx context.Context, loc shift.Location, note *string) (shift.Shift, error)
}

type ShiftsHandler struct {
	svc ShiftsService
}

func NewShiftsHandler(svc ShiftsService) *ShiftsHandler {
	return &ShiftsHandler{svc: svc}
}

// List handles GET /api/shifts?userId=&limit=&cursor=
func (h *ShiftsHandler) List(ctx *gin.Context) {
	var q app.ShiftsQuery

	if v := strings.TrimSpace(ctx.Query("userId")); v != "" {
		q.UserID = &v
	}

	if v := strings.TrimSpace(ctx.Query("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > app.MaxShiftsLimit {
			RespondBadRequest(ctx, "limit must be between 1 and 200", nil)
			return
		}
		q.Limit = n
	}

	q.Cursor = strings.TrimSpace(ctx.Query("cursor"))

	page, err := h.svc.Shifts(ctx.Request.Context(), q)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items":      page.Items,
		"count":      len(page.Items),
		"limit":      effectiveLimit(q.Limit),
		"nextCursor": page.NextCursor,
		"hasMore":    page.NextCursor != nil,
	})
}

func effectiveLimit(n int) int {
	if n == 0 {
		return app.DefaultShiftsLimit
	}
	return n
}

func (h *ShiftsHandler) Active(ctx *gin.Context) {
	items, err := h.svc.ActiveShifts(ctx.Request.Context())
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// Current returns {"shift": null} while the caller is not clocked in.
func (h *ShiftsHandler) Current(ctx *gin.Context) {
	sh, err := h.svc.CurrentShift(ctx.Request.Context())
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"shift": sh})
}

// CanClockIn handles GET /api/shifts/can-clock-in?lat=&lng=
func (h *ShiftsHandler) CanClockIn(ctx *gin.Context) {
	loc, ok := locationFromQuery(ctx)
	if !ok {
		return
	}

	allowed, err := h.svc.CanClockIn(ctx.Request.Context(), loc)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"canClockIn": allowed})
}

func (h *ShiftsHandler) ClockIn(ctx *gin.Context) {
	var req shift.ClockRequest
	if !BindJSON(ctx, &req) {
		return
	}

	sh, err := h.svc.ClockIn(ctx.Request.Context(), req.Location.Value(), req.Note)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, sh)
}

func (h *ShiftsHandler) ClockOut(ctx *gin.Context) {
	var req shift.ClockRequest
	if !BindJSON(ctx, &req) {
		return
	}

	sh, err := h.svc.ClockOut(ctx.Request.Context(), req.Location.Value(), req.Note)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, sh)
}

func locationFromQuery(ctx *gin.Context) (shift.Location, bool) {
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(ctx.Query("lat")), 64)
	lng, lngErr := strconv.ParseFloat(strings.TrimSpace(ctx.Query("lng")), 64)

	if latErr != nil || lngErr != nil {
		RespondBadRequest(ctx, "lat and lng query parameters must be numbers", nil)
		return shift.Location{}, false
	}

	return shift.Location{Lat: lat, Lng: lng}, true
}
