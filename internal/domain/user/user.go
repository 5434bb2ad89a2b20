package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleManager    Role = "MANAGER"
	RoleCareWorker Role = "CARE_WORKER"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleManager, RoleCareWorker:
		return true
	default:
		return false
	}
}

type User struct {
	ID             string    `json:"id"`
	ExternalID     string    `json:"externalId"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Role           Role      `json:"role"`
	OrganizationID *string   `json:"organizationId"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// HasOrganization reports whether the user has been assigned to an organization.
func (u User) HasOrganization() bool {
	return u.OrganizationID != nil && *u.OrganizationID != ""
}

// InOrganization reports whether the user belongs to orgID.
func (u User) InOrganization(orgID string) bool {
	return u.HasOrganization() && *u.OrganizationID == orgID
}

func (u User) IsManager() bool {
	return u.Role == RoleManager
}

var (
	ErrNotFound      = errors.New("user not found")
	ErrAlreadyExists = errors.New("user already exists")
)

type CreateUserRequest struct {
	Name string `json:"name" binding:"omitempty,max=120"`
	Role Role   `json:"role" binding:"required,oneof=MANAGER CARE_WORKER"`
}

type UpdateRoleRequest struct {
	Role Role `json:"role" binding:"required,oneof=MANAGER CARE_WORKER"`
}

type AssignMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// NewFromProfile builds the user record created on first profile completion.
// An empty name falls back to the name claimed by the identity provider.
func NewFromProfile(externalID, email, claimedName string, req CreateUserRequest, now time.Time) User {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.TrimSpace(claimedName)
	}

	return User{
		ID:         uuid.NewString(),
		ExternalID: externalID,
		Email:      email,
		Name:       name,
		Role:       req.Role,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
