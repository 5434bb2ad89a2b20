// Package shifts is the clock-in/clock-out state machine. A worker is Active
// exactly when an open shift exists for them; nothing else is stored.
package shifts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/geocoder89/shifthub/internal/apperr"
	"github.com/geocoder89/shifthub/internal/domain/organization"
	"github.com/geocoder89/shifthub/internal/domain/shift"
	"github.com/geocoder89/shifthub/internal/domain/user"
	"github.com/geocoder89/shifthub/internal/geo"
	"github.com/geocoder89/shifthub/internal/observability"
)

const (
	actionClockIn  = "clock_in"
	actionClockOut = "clock_out"
)

// Store must reject a second open shift for the same user on CreateShift
// with shift.ErrAlreadyActive, and close a shift at most once.
type Store interface {
	FindOpenShiftForUser(ctx context.Context, userID string) (shift.Shift, error)
	CreateShift(ctx context.Context, s shift.Shift) (shift.Shift, error)
	CloseShift(ctx context.Context, shiftID string, out shift.ClockOut) (shift.Shift, error)
}

type Service struct {
	store    Store
	log      *slog.Logger
	prom     *observability.Prom
	now      func() time.Time
	onChange func(ctx context.Context, orgID string)
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithChangeHook registers fn to run after every successful clock-in or
// clock-out, with the organization of the affected shift.
func WithChangeHook(fn func(ctx context.Context, orgID string)) Option {
	return func(s *Service) { s.onChange = fn }
}

func NewService(store Store, log *slog.Logger, prom *observability.Prom, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   log,
		prom:  prom,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// ClockIn moves worker from Idle to Active inside org. The open-shift lookup
// only produces a friendlier early failure; the store's uniqueness guarantee
// decides concurrent attempts.
func (s *Service) ClockIn(ctx context.Context, worker user.User, org *organization.Organization, loc shift.Location, note *string) (sh shift.Shift, err error) {
	defer func() { s.observe(actionClockIn, err) }()

	if org == nil || !worker.HasOrganization() {
		return shift.Shift{}, apperr.New(apperr.CodeNoOrganization, "User must belong to an organization")
	}
	if !worker.InOrganization(org.ID) {
		return shift.Shift{}, apperr.Forbidden("User is not a member of this organization")
	}

	note, err = normalizeNote(note)
	if err != nil {
		return shift.Shift{}, err
	}

	within, err := withinPerimeter(loc, org)
	if err != nil {
		return shift.Shift{}, err
	}
	if !within {
		return shift.Shift{}, apperr.New(apperr.CodeOutsideGeofence, "You are outside the organization perimeter")
	}

	if _, err := s.store.FindOpenShiftForUser(ctx, worker.ID); err == nil {
		return shift.Shift{}, apperr.From(shift.ErrAlreadyActive)
	} else if !errors.Is(err, shift.ErrNotFound) {
		return shift.Shift{}, apperr.From(err)
	}

	created, err := s.store.CreateShift(ctx, shift.NewClockIn(worker.ID, org.ID, loc, note, s.now()))
	if err != nil {
		return shift.Shift{}, apperr.From(err)
	}

	s.log.InfoContext(ctx, "clocked in",
		"shift_id", created.ID,
		"user_id", worker.ID,
		"organization_id", org.ID,
	)
	s.changed(ctx, created.OrganizationID)

	return created, nil
}

// ClockOut closes the worker's open shift. The perimeter is not re-checked.
func (s *Service) ClockOut(ctx context.Context, worker user.User, loc shift.Location, note *string) (sh shift.Shift, err error) {
	defer func() { s.observe(actionClockOut, err) }()

	if err := (geo.Point{Lat: loc.Lat, Lng: loc.Lng}).Validate(); err != nil {
		return shift.Shift{}, apperr.From(err)
	}

	note, err = normalizeNote(note)
	if err != nil {
		return shift.Shift{}, err
	}

	open, err := s.store.FindOpenShiftForUser(ctx, worker.ID)
	if errors.Is(err, shift.ErrNotFound) {
		return shift.Shift{}, apperr.From(shift.ErrNoActiveShift)
	}
	if err != nil {
		return shift.Shift{}, apperr.From(err)
	}

	closed, err := s.store.CloseShift(ctx, open.ID, shift.ClockOut{
		Time:     s.now(),
		Location: loc,
		Note:     note,
	})
	if err != nil {
		return shift.Shift{}, apperr.From(err)
	}

	s.log.InfoContext(ctx, "clocked out",
		"shift_id", closed.ID,
		"user_id", worker.ID,
		"organization_id", closed.OrganizationID,
		"duration_minutes", *closed.DurationMinutes(),
	)
	s.changed(ctx, closed.OrganizationID)

	return closed, nil
}

// CurrentShift returns the worker's open shift, or nil when Idle.
func (s *Service) CurrentShift(ctx context.Context, worker user.User) (*shift.Shift, error) {
	open, err := s.store.FindOpenShiftForUser(ctx, worker.ID)
	if errors.Is(err, shift.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.From(err)
	}
	return &open, nil
}

// CanClockIn answers the perimeter question only. A worker without an
// organization gets false rather than an error.
func (s *Service) CanClockIn(_ context.Context, worker user.User, org *organization.Organization, loc shift.Location) (bool, error) {
	if org == nil || !worker.InOrganization(org.ID) {
		return false, nil
	}
	return withinPerimeter(loc, org)
}

func withinPerimeter(loc shift.Location, org *organization.Organization) (bool, error) {
	within, err := geo.WithinPerimeter(
		geo.Point{Lat: loc.Lat, Lng: loc.Lng},
		geo.Point{Lat: org.LocationLat, Lng: org.LocationLng},
		float64(org.PerimeterRadius),
	)
	if err != nil {
		return false, apperr.From(err)
	}
	return within, nil
}

func normalizeNote(note *string) (*string, error) {
	if note == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > shift.MaxNoteLength {
		return nil, apperr.InvalidInput("Note must be at most 500 characters")
	}
	return &trimmed, nil
}

func (s *Service) observe(action string, err error) {
	result := "ok"
	if err != nil {
		result = string(apperr.CodeOf(err))
	}
	s.prom.ObserveClock(action, result)
}

func (s *Service) changed(ctx context.Context, orgID string) {
	if s.onChange != nil {
		s.onChange(ctx, orgID)
	}
}
