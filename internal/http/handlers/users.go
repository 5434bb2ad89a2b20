package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/shifthub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type UsersService interface {
	CurrentUser(ctx context.Context) (user.User, error)
	CreateUser(ctx context.Context, req user.CreateUserRequest) (user.User, error)
	UpdateUserRole(ctx context.Context, userID string, role user.Role) (user.User, error)
}

type UsersHandler struct {
	svc UsersService
}

func NewUsersHandler(svc UsersService) *UsersHandler {
	return &UsersHandler{svc: svc}
}

func (h *UsersHandler) GetMe(ctx *gin.Context) {
	u, err := h.svc.CurrentUser(ctx.Request.Context())
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) CreateMe(ctx *gin.Context) {
	var req user.CreateUserRequest
	if !BindJSON(ctx, &req) {
		return
	}

	u, err := h.svc.CreateUser(ctx.Request.Context(), req)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, u)
}

func (h *UsersHandler) UpdateRole(ctx *gin.Context) {
	var req user.UpdateRoleRequest
	if !BindJSON(ctx, &req) {
		return
	}

	u, err := h.svc.UpdateUserRole(ctx.Request.Context(), ctx.Param("id"), req.Role)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, u)
}
