// Package app composes policy, the shift state machine and the analytics
// aggregator into the operations exposed to clients. Every operation reads
// the caller's identity from the context and fails with unauthenticated when
// there is none.
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/geocoder89/shifthub/internal/actorctx"
	"github.com/geocoder89/shifthub/internal/analytics"
	"github.com/geocoder89/shifthub/internal/apperr"
	"github.com/geocoder89/shifthub/internal/domain/organization"
	"github.com/geocoder89/shifthub/internal/domain/shift"
	"github.com/geocoder89/shifthub/internal/domain/user"
	"github.com/geocoder89/shifthub/internal/policy"
	"github.com/geocoder89/shifthub/internal/shifts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Store interface {
	shifts.Store
	analytics.Store

	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUserByID(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	FindUserWithOrganization(ctx context.Context, externalID string) (user.User, *organization.Organization, error)
	UpdateUserRole(ctx context.Context, id string, role user.Role, now time.Time) (user.User, error)
	SetUserOrganization(ctx context.Context, id, orgID string, now time.Time) (user.User, error)

	CreateOrganizationForManager(ctx context.Context, org organization.Organization, managerID string) (organization.Organization, error)
	GetOrganizationByID(ctx context.Context, id string) (organization.Organization, error)
	ListOrganizations(ctx context.Context) ([]organization.Summary, error)

	Ping(ctx context.Context) error
}

type Service struct {
	store     Store
	policy    *policy.Policy
	shifts    *shifts.Service
	analytics *analytics.Aggregator
	log       *slog.Logger
	now       func() time.Time
	tracer    trace.Tracer
}

type Deps struct {
	Store     Store
	Policy    *policy.Policy
	Shifts    *shifts.Service
	Analytics *analytics.Aggregator
	Log       *slog.Logger
	Now       func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		store:     d.Store,
		policy:    d.Policy,
		shifts:    d.Shifts,
		analytics: d.Analytics,
		log:       d.Log,
		now:       d.Now,
		tracer:    otel.Tracer("shifthub/app"),
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Ping reports store reachability for readiness probes.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) start(ctx context.Context, op string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "app."+op)
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("app.error_code", string(apperr.CodeOf(err))))
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// actor resolves the caller's user record and organization.
func (s *Service) actor(ctx context.Context) (user.User, *organization.Organization, error) {
	id, ok := actorctx.IdentityFrom(ctx)
	if !ok {
		return user.User{}, nil, apperr.Unauthenticated()
	}

	u, org, err := s.store.FindUserWithOrganization(ctx, id.ExternalID)
	if errors.Is(err, user.ErrNotFound) {
		return user.User{}, nil, apperr.Wrap(apperr.CodeNotFound, "User profile not found", err)
	}
	if err != nil {
		return user.User{}, nil, apperr.From(err)
	}
	return u, org, nil
}

func (s *Service) withOwners(ctx context.Context, orgID string, list []shift.Shift) ([]shift.Shift, error) {
	if len(list) == 0 {
		return list, nil
	}

	members, err := s.store.ListUsersByOrganization(ctx, orgID)
	if err != nil {
		return nil, apperr.From(err)
	}

	owners := make(map[string]*shift.Owner, len(members))
	for _, m := range members {
		owners[m.ID] = &shift.Owner{ID: m.ID, Name: m.Name, Email: m.Email}
	}
	for i := range list {
		list[i].User = owners[list[i].UserID]
	}
	return list, nil
}
