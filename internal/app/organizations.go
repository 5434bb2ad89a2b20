package app

import (
	"context"
	"errors"
	"strings"

	"github.com/geocoder89/shifthub/internal/apperr"
	"github.com/geocoder89/shifthub/internal/domain/organization"
	"github.com/geocoder89/shifthub/internal/domain/user"
	"github.com/geocoder89/shifthub/internal/geo"
	"github.com/geocoder89/shifthub/internal/policy"
)

const maxPerimeterRadius = 100000

// CurrentOrganization is the caller's organization, nil when unassigned.
func (s *Service) CurrentOrganization(ctx context.Context) (_ *organization.Organization, err error) {
	ctx, span := s.start(ctx, "CurrentOrganization")
	defer func() { finish(span, err) }()

	_, org, err := s.actor(ctx)
	return org, err
}

func (s *Service) ListOrganizations(ctx context.Context) (_ []organization.Summary, err error) {
	ctx, span := s.start(ctx, "ListOrganizations")
	defer func() { finish(span, err) }()

	if _, _, err := s.actor(ctx); err != nil {
		return nil, err
	}

	list, err := s.store.ListOrganizations(ctx)
	if err != nil {
		return nil, apperr.From(err)
	}
	return list, nil
}

// CreateOrganization creates an organization and makes it the calling
// manager's organization.
func (s *Service) CreateOrganization(ctx context.Context, req organization.CreateOrganizationRequest) (_ organization.Organization, err error) {
	ctx, span := s.start(ctx, "CreateOrganization")
	defer func() { finish(span, err) }()

	actor, _, err := s.actor(ctx)
	if err != nil {
		return organization.Organization{}, err
	}
	if err := s.policy.Authorize(actor, policy.ActionCreateOrganization); err != nil {
		return organization.Organization{}, err
	}
	if err := validateOrganization(req); err != nil {
		return organization.Organization{}, err
	}

	org, err := s.store.CreateOrganizationForManager(ctx, organization.NewFromCreateRequest(req, s.now()), actor.ID)
	if err != nil {
		return organization.Organization{}, apperr.From(err)
	}

	s.log.InfoContext(ctx, "organization created",
		"organization_id", org.ID,
		"manager_id", actor.ID,
		"perimeter_radius", org.PerimeterRadius,
	)
	return org, nil
}

// AssignMember adds the user registered under email to the manager's
// organization. Users of another organization are not taken over.
func (s *Service) AssignMember(ctx context.Context, email string) (_ user.User, err error) {
	ctx, span := s.start(ctx, "AssignMember")
	defer func() { finish(span, err) }()

	actor, _, err := s.actor(ctx)
	if err != nil {
		return user.User{}, err
	}
	orgID, err := s.policy.AuthorizeOrgScoped(actor, policy.ActionAssignMember)
	if err != nil {
		return user.User{}, err
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return user.User{}, apperr.InvalidInput("Email is required")
	}

	target, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, user.ErrNotFound) {
		return user.User{}, apperr.Wrap(apperr.CodeNotFound, "No user registered with this email", err)
	}
	if err != nil {
		return user.User{}, apperr.From(err)
	}
	if target.InOrganization(orgID) {
		return target, nil
	}
	if target.HasOrganization() {
		return user.User{}, apperr.Forbidden("User belongs to another organization")
	}

	assigned, err := s.store.SetUserOrganization(ctx, target.ID, orgID, s.now())
	if err != nil {
		return user.User{}, apperr.From(err)
	}

	// the new member must show up in the organization's summaries right away
	s.analytics.Invalidate(ctx, orgID)

	s.log.InfoContext(ctx, "member assigned",
		"user_id", assigned.ID,
		"organization_id", orgID,
		"by", actor.ID,
	)
	return assigned, nil
}

func validateOrganization(req organization.CreateOrganizationRequest) error {
	name := []rune(strings.TrimSpace(req.Name))
	if len(name) < 2 || len(name) > 120 {
		return apperr.InvalidInput("Name must be between 2 and 120 characters")
	}
	if req.Location.Lat == nil || req.Location.Lng == nil {
		return apperr.InvalidInput("Location is required")
	}
	if err := (geo.Point{Lat: *req.Location.Lat, Lng: *req.Location.Lng}).Validate(); err != nil {
		return apperr.From(err)
	}
	if req.PerimeterRadius <= 0 || req.PerimeterRadius > maxPerimeterRadius {
		return apperr.InvalidInput("Perimeter radius must be between 1 and 100000 meters")
	}
	return nil
}
