// Package policy decides whether a resolved user may perform an operation.
// Role grants live in a casbin RBAC model; ownership and organization
// scoping are checked on top of the role grant.
package policy

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/geocoder89/shifthub/internal/apperr"
	"github.com/geocoder89/shifthub/internal/domain/user"
)

//go:embed model.conf
var modelText string

type Action string

const (
	ActionViewOwnShifts      Action = "shift.view_own"
	ActionViewAnyShifts      Action = "shift.view_any"
	ActionClock              Action = "shift.clock"
	ActionViewActiveShifts   Action = "shift.view_active"
	ActionViewAnalytics      Action = "analytics.view"
	ActionCreateOrganization Action = "organization.create"
	ActionAssignMember       Action = "organization.assign_member"
	ActionUpdateUserRole     Action = "user.update_role"
)

const (
	subjectCareWorker = "role:care_worker"
	subjectManager    = "role:manager"
)

var grants = [][]string{
	{subjectCareWorker, string(ActionViewOwnShifts)},
	{subjectCareWorker, string(ActionClock)},
	{subjectManager, string(ActionViewAnyShifts)},
	{subjectManager, string(ActionViewActiveShifts)},
	{subjectManager, string(ActionViewAnalytics)},
	{subjectManager, string(ActionCreateOrganization)},
	{subjectManager, string(ActionAssignMember)},
	{subjectManager, string(ActionUpdateUserRole)},
}

type Policy struct {
	enforcer *casbin.SyncedEnforcer
}

func New() (*Policy, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("load policy model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}

	if _, err := enforcer.AddPolicies(grants); err != nil {
		return nil, fmt.Errorf("seed grants: %w", err)
	}

	// a manager is also a worker in this model
	if _, err := enforcer.AddGroupingPolicy(subjectManager, subjectCareWorker); err != nil {
		return nil, fmt.Errorf("seed role links: %w", err)
	}

	return &Policy{enforcer: enforcer}, nil
}

func subjectFor(role user.Role) string {
	return "role:" + strings.ToLower(string(role))
}

// Allows reports whether role carries the grant for action.
func (p *Policy) Allows(role user.Role, action Action) bool {
	if !role.IsValid() {
		return false
	}
	ok, err := p.enforcer.Enforce(subjectFor(role), string(action))
	return err == nil && ok
}

// Authorize fails with forbidden unless actor's role carries action.
func (p *Policy) Authorize(actor user.User, action Action) error {
	if !p.Allows(actor.Role, action) {
		return apperr.Forbidden(deniedMessage(action))
	}
	return nil
}

// AuthorizeOrgScoped is Authorize plus the requirement that the actor has an
// organization to scope the operation to. It returns that organization id.
func (p *Policy) AuthorizeOrgScoped(actor user.User, action Action) (string, error) {
	if err := p.Authorize(actor, action); err != nil {
		return "", err
	}
	if !actor.HasOrganization() {
		return "", apperr.Forbidden("Manager access required")
	}
	return *actor.OrganizationID, nil
}

// AuthorizeViewShiftsOf allows a user to read their own shifts, and a manager
// to read those of any member of the manager's organization.
func (p *Policy) AuthorizeViewShiftsOf(actor, target user.User) error {
	if actor.ID == target.ID {
		return p.Authorize(actor, ActionViewOwnShifts)
	}
	if !p.Allows(actor.Role, ActionViewAnyShifts) {
		return apperr.Forbidden("Not authorized to view other user shifts")
	}
	if !actor.HasOrganization() || !target.InOrganization(*actor.OrganizationID) {
		return apperr.Forbidden("User is not a member of your organization")
	}
	return nil
}

// AuthorizeManageMember checks a manager acting on another user of the same
// organization (role changes).
func (p *Policy) AuthorizeManageMember(actor, target user.User, action Action) error {
	orgID, err := p.AuthorizeOrgScoped(actor, action)
	if err != nil {
		return err
	}
	if !target.InOrganization(orgID) {
		return apperr.Forbidden("User is not a member of your organization")
	}
	return nil
}

func deniedMessage(action Action) string {
	switch action {
	case ActionViewOwnShifts, ActionClock:
		return "Not authorized"
	default:
		return "Manager access required"
	}
}
