package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/shifthub/internal/domain/organization"
	"github.com/geocoder89/shifthub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type OrganizationsService interface {
	CurrentOrganization(ctx context.Context) (*organization.Organization, error)
	ListOrganizations(ctx context.Context) ([]organization.Summary, error)
	CreateOrganization(ctx context.Context, req organization.CreateOrganizationRequest) (organization.Organization, error)
	AssignMember(ctx context.Context, email string) (user.User, error)
}

type OrganizationsHandler struct {
	svc OrganizationsService
}

func NewOrganizationsHandler(svc OrganizationsService) *OrganizationsHandler {
	return &OrganizationsHandler{svc: svc}
}

// GetCurrent returns {"organization": null} for users not yet assigned.
func (h *OrganizationsHandler) GetCurrent(ctx *gin.Context) {
	org, err := h.svc.CurrentOrganization(ctx.Request.Context())
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"organization": org})
}

func (h *OrganizationsHandler) List(ctx *gin.Context) {
	list, err := h.svc.ListOrganizations(ctx.Request.Context())
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": list,
		"count": len(list),
	})
}

func (h *OrganizationsHandler) Create(ctx *gin.Context) {
	var req organization.CreateOrganizationRequest
	if !BindJSON(ctx, &req) {
		return
	}

	org, err := h.svc.CreateOrganization(ctx.Request.Context(), req)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, org)
}

func (h *OrganizationsHandler) AssignMember(ctx *gin.Context) {
	var req user.AssignMemberRequest
	if !BindJSON(ctx, &req) {
		return
	}

	u, err := h.svc.AssignMember(ctx.Request.Context(), req.Email)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, u)
}
