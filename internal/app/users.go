package app

import (
	"context"
	"strings"

	"github.com/geocoder89/shifthub/internal/actorctx"
	"github.com/geocoder89/shifthub/internal/apperr"
	"github.com/geocoder89/shifthub/internal/domain/user"
	"github.com/geocoder89/shifthub/internal/policy"
	"github.com/google/uuid"
)

func (s *Service) CurrentUser(ctx context.Context) (_ user.User, err error) {
	ctx, span := s.start(ctx, "CurrentUser")
	defer func() { finish(span, err) }()

	u, _, err := s.actor(ctx)
	return u, err
}

// CreateUser completes the caller's profile. It may run once per identity.
func (s *Service) CreateUser(ctx context.Context, req user.CreateUserRequest) (_ user.User, err error) {
	ctx, span := s.start(ctx, "CreateUser")
	defer func() { finish(span, err) }()

	id, ok := actorctx.IdentityFrom(ctx)
	if !ok {
		return user.User{}, apperr.Unauthenticated()
	}
	if !req.Role.IsValid() {
		return user.User{}, apperr.InvalidInput("Role must be MANAGER or CARE_WORKER")
	}
	if len([]rune(strings.TrimSpace(req.Name))) > 120 {
		return user.User{}, apperr.InvalidInput("Name must be at most 120 characters")
	}

	created, err := s.store.CreateUser(ctx, user.NewFromProfile(id.ExternalID, id.Email, id.Name, req, s.now()))
	if err != nil {
		return user.User{}, apperr.From(err)
	}

	s.log.InfoContext(ctx, "user created", "user_id", created.ID, "role", created.Role)
	return created, nil
}

// UpdateUserRole lets a manager change the role of a member of their organization.
func (s *Service) UpdateUserRole(ctx context.Context, userID string, role user.Role) (_ user.User, err error) {
	ctx, span := s.start(ctx, "UpdateUserRole")
	defer func() { finish(span, err) }()

	actor, _, err := s.actor(ctx)
	if err != nil {
		return user.User{}, err
	}
	if err := s.policy.Authorize(actor, policy.ActionUpdateUserRole); err != nil {
		return user.User{}, err
	}
	if !role.IsValid() {
		return user.User{}, apperr.InvalidInput("Role must be MANAGER or CARE_WORKER")
	}

	targetID, err := parseUserID(userID)
	if err != nil {
		return user.User{}, err
	}
	target, err := s.store.GetUserByID(ctx, targetID)
	if err != nil {
		return user.User{}, apperr.From(err)
	}
	if err := s.policy.AuthorizeManageMember(actor, target, policy.ActionUpdateUserRole); err != nil {
		return user.User{}, err
	}

	updated, err := s.store.UpdateUserRole(ctx, target.ID, role, s.now())
	if err != nil {
		return user.User{}, apperr.From(err)
	}

	// member listings in the summaries carry the role
	if updated.HasOrganization() {
		s.analytics.Invalidate(ctx, *updated.OrganizationID)
	}

	s.log.InfoContext(ctx, "user role updated",
		"user_id", updated.ID,
		"role", updated.Role,
		"by", actor.ID,
	)
	return updated, nil
}

// parseUserID accepts only canonical user ids; anything else is bad input, not a lookup miss.
func parseUserID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", apperr.InvalidInput("userId must be a valid UUID")
	}
	return id.String(), nil
}
