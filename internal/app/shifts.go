package app

import (
	"context"

	"github.com/geocoder89/shifthub/internal/analytics"
	"github.com/geocoder89/shifthub/internal/apperr"
	"github.com/geocoder89/shifthub/internal/domain/shift"
	"github.com/geocoder89/shifthub/internal/policy"
	"github.com/geocoder89/shifthub/internal/utils"
)

const (
	DefaultShiftsLimit = 50
	MaxShiftsLimit     = 200
)

type ShiftsQuery struct {
	UserID *string
	Limit  int
	Cursor string
}

type ShiftPage struct {
	Items      []shift.Shift `json:"items"`
	NextCursor *string       `json:"nextCursor"`
}

// Shifts lists shifts newest first. Without a user id a care worker sees
// their own shifts and a manager the whole organization.
func (s *Service) Shifts(ctx context.Context, q ShiftsQuery) (_ ShiftPage, err error) {
	ctx, span := s.start(ctx, "Shifts")
	defer func() { finish(span, err) }()

	actor, org, err := s.actor(ctx)
	if err != nil {
		return ShiftPage{}, err
	}
	if org == nil {
		return ShiftPage{}, apperr.New(apperr.CodeNoOrganization, "User is not part of an organization")
	}

	limit := q.Limit
	if limit == 0 {
		limit = DefaultShiftsLimit
	}
	if limit < 1 || limit > MaxShiftsLimit {
		return ShiftPage{}, apperr.InvalidInput("limit must be between 1 and 200")
	}

	filter := shift.Filter{Limit: limit + 1}

	switch {
	case q.UserID != nil && *q.UserID != actor.ID:
		// decided before any lookup so the answer never depends on whether the id exists
		if err := s.policy.Authorize(actor, policy.ActionViewAnyShifts); err != nil {
			return ShiftPage{}, err
		}
		targetID, err := parseUserID(*q.UserID)
		if err != nil {
			return ShiftPage{}, err
		}
		target, err := s.store.GetUserByID(ctx, targetID)
		if err != nil {
			return ShiftPage{}, apperr.From(err)
		}
		if err := s.policy.AuthorizeViewShiftsOf(actor, target); err != nil {
			return ShiftPage{}, err
		}
		filter.UserID = &target.ID
	case q.UserID == nil && s.policy.Allows(actor.Role, policy.ActionViewAnyShifts):
		// whole organization
	default:
		if err := s.policy.Authorize(actor, policy.ActionViewOwnShifts); err != nil {
			return ShiftPage{}, err
		}
		filter.UserID = &actor.ID
	}

	if q.Cursor != "" {
		c, err := utils.DecodeShiftCursor(q.Cursor)
		if err != nil {
			return ShiftPage{}, apperr.InvalidInput("invalid cursor")
		}
		filter.AfterClockIn = &c.ClockInTime
		filter.AfterID = &c.ID
	}

	items, err := s.store.FindShiftsForOrganization(ctx, org.ID, filter)
	if err != nil {
		return ShiftPage{}, apperr.From(err)
	}

	var next *string
	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		c, err := utils.EncodeShiftCursor(last.ClockInTime, last.ID)
		if err != nil {
			return ShiftPage{}, apperr.Internal(err)
		}
		next = &c
	}

	items, err = s.withOwners(ctx, org.ID, items)
	if err != nil {
		return ShiftPage{}, err
	}
	return ShiftPage{Items: items, NextCursor: next}, nil
}

// ActiveShifts lists the open shifts of the manager's organization.
func (s *Service) ActiveShifts(ctx context.Context) (_ []shift.Shift, err error) {
	ctx, span := s.start(ctx, "ActiveShifts")
	defer func() { finish(span, err) }()

	actor, _, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	orgID, err := s.policy.AuthorizeOrgScoped(actor, policy.ActionViewActiveShifts)
	if err != nil {
		return nil, err
	}

	open := true
	items, err := s.store.FindShiftsForOrganization(ctx, orgID, shift.Filter{Open: &open})
	if err != nil {
		return nil, apperr.From(err)
	}
	return s.withOwners(ctx, orgID, items)
}

func (s *Service) CurrentShift(ctx context.Context) (_ *shift.Shift, err error) {
	ctx, span := s.start(ctx, "CurrentShift")
	defer func() { finish(span, err) }()

	actor, _, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(actor, policy.ActionViewOwnShifts); err != nil {
		return nil, err
	}
	return s.shifts.CurrentShift(ctx, actor)
}

func (s *Service) CanClockIn(ctx context.Context, loc shift.Location) (_ bool, err error) {
	ctx, span := s.start(ctx, "CanClockIn")
	defer func() { finish(span, err) }()

	actor, org, err := s.actor(ctx)
	if err != nil {
		return false, err
	}
	if err := s.policy.Authorize(actor, policy.ActionClock); err != nil {
		return false, err
	}
	return s.shifts.CanClockIn(ctx, actor, org, loc)
}

func (s *Service) ClockIn(ctx context.Context, loc shift.Location, note *string) (_ shift.Shift, err error) {
	ctx, span := s.start(ctx, "ClockIn")
	defer func() { finish(span, err) }()

	actor, org, err := s.actor(ctx)
	if err != nil {
		return shift.Shift{}, err
	}
	if err := s.policy.Authorize(actor, policy.ActionClock); err != nil {
		return shift.Shift{}, err
	}
	return s.shifts.ClockIn(ctx, actor, org, loc, note)
}

func (s *Service) ClockOut(ctx context.Context, loc shift.Location, note *string) (_ shift.Shift, err error) {
	ctx, span := s.start(ctx, "ClockOut")
	defer func() { finish(span, err) }()

	actor, _, err := s.actor(ctx)
	if err != nil {
		return shift.Shift{}, err
	}
	if err := s.policy.Authorize(actor, policy.ActionClock); err != nil {
		return shift.Shift{}, err
	}
	return s.shifts.ClockOut(ctx, actor, loc, note)
}

func (s *Service) ShiftAnalytics(ctx context.Context) (_ analytics.ShiftAnalytics, err error) {
	ctx, span := s.start(ctx, "ShiftAnalytics")
	defer func() { finish(span, err) }()

	actor, _, err := s.actor(ctx)
	if err != nil {
		return analytics.ShiftAnalytics{}, err
	}
	orgID, err := s.policy.AuthorizeOrgScoped(actor, policy.ActionViewAnalytics)
	if err != nil {
		return analytics.ShiftAnalytics{}, err
	}

	out, err := s.analytics.ShiftAnalytics(ctx, orgID)
	if err != nil {
		return analytics.ShiftAnalytics{}, apperr.From(err)
	}
	return out, nil
}

func (s *Service) UserShiftSummaries(ctx context.Context) (_ []analytics.UserShiftSummary, err error) {
	ctx, span := s.start(ctx, "UserShiftSummaries")
	defer func() { finish(span, err) }()

	actor, _, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	orgID, err := s.policy.AuthorizeOrgScoped(actor, policy.ActionViewAnalytics)
	if err != nil {
		return nil, err
	}

	out, err := s.analytics.UserShiftSummaries(ctx, orgID)
	if err != nil {
		return nil, apperr.From(err)
	}
	return out, nil
}
