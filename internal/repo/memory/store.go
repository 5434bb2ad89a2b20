package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/shifthub/internal/domain/organization"
	"github.com/geocoder89/shifthub/internal/domain/shift"
	"github.com/geocoder89/shifthub/internal/domain/user"
)

// Store keeps users, organizations and shifts in process memory. A single
// mutex serializes writes, which gives the same guarantees as the unique
// constraints of the postgres schema: one external id per user and at most
// one open shift per user.
type Store struct {
	mu     sync.RWMutex
	users  map[string]user.User // by id
	orgs   map[string]organization.Organization
	shifts map[string]shift.Shift
}

func NewStore() *Store {
	return &Store{
		users:  make(map[string]user.User),
		orgs:   make(map[string]organization.Organization),
		shifts: make(map[string]shift.Shift),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Users

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.ExternalID == u.ExternalID {
			return user.User{}, user.ErrAlreadyExists
		}
	}

	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (s *Store) FindUserWithOrganization(ctx context.Context, externalID string) (user.User, *organization.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.ExternalID != externalID {
			continue
		}
		if !u.HasOrganization() {
			return u, nil, nil
		}
		org, ok := s.orgs[*u.OrganizationID]
		if !ok {
			return u, nil, nil
		}
		return u, &org, nil
	}
	return user.User{}, nil, user.ErrNotFound
}

func (s *Store) UpdateUserRole(ctx context.Context, id string, role user.Role, now time.Time) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = now
	s.users[id] = u
	return u, nil
}

func (s *Store) SetUserOrganization(ctx context.Context, id, orgID string, now time.Time) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.setUserOrganizationLocked(id, orgID, now)
}

func (s *Store) setUserOrganizationLocked(id, orgID string, now time.Time) (user.User, error) {
	u, ok := s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if _, ok := s.orgs[orgID]; !ok {
		return user.User{}, organization.ErrNotFound
	}
	u.OrganizationID = &orgID
	u.UpdatedAt = now
	s.users[id] = u
	return u, nil
}

func (s *Store) ListUsersByOrganization(ctx context.Context, orgID string) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]user.User, 0)
	for _, u := range s.users {
		if u.InOrganization(orgID) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Organizations

func (s *Store) CreateOrganizationForManager(ctx context.Context, org organization.Organization, managerID string) (organization.Organization, error) {
	if org.PerimeterRadius <= 0 {
		return organization.Organization{}, organization.ErrInvalidRadius
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[managerID]; !ok {
		return organization.Organization{}, user.ErrNotFound
	}

	s.orgs[org.ID] = org
	if _, err := s.setUserOrganizationLocked(managerID, org.ID, org.CreatedAt); err != nil {
		delete(s.orgs, org.ID)
		return organization.Organization{}, err
	}
	return org, nil
}

func (s *Store) GetOrganizationByID(ctx context.Context, id string) (organization.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, ok := s.orgs[id]
	if !ok {
		return organization.Organization{}, organization.ErrNotFound
	}
	return org, nil
}

func (s *Store) ListOrganizations(ctx context.Context) ([]organization.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]organization.Summary, 0, len(s.orgs))
	for _, org := range s.orgs {
		out = append(out, organization.Summary{ID: org.ID, Name: org.Name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Shifts

func (s *Store) FindOpenShiftForUser(ctx context.Context, userID string) (shift.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sh, ok := s.openShiftLocked(userID); ok {
		return sh, nil
	}
	return shift.Shift{}, shift.ErrNotFound
}

func (s *Store) openShiftLocked(userID string) (shift.Shift, bool) {
	for _, sh := range s.shifts {
		if sh.UserID == userID && sh.Active() {
			return sh, true
		}
	}
	return shift.Shift{}, false
}

// CreateShift inserts sh. A second open shift for the same user is refused
// with shift.ErrAlreadyActive regardless of what the caller checked before.
func (s *Store) CreateShift(ctx context.Context, sh shift.Shift) (shift.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sh.Active() {
		if _, exists := s.openShiftLocked(sh.UserID); exists {
			return shift.Shift{}, shift.ErrAlreadyActive
		}
	}

	s.shifts[sh.ID] = sh
	return sh, nil
}

// CloseShift writes the clock-out fields once. Closing a missing or already
// closed shift fails with shift.ErrNoActiveShift.
func (s *Store) CloseShift(ctx context.Context, shiftID string, out shift.ClockOut) (shift.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shifts[shiftID]
	if !ok || !sh.Active() {
		return shift.Shift{}, shift.ErrNoActiveShift
	}

	t := out.Time
	lat, lng := out.Location.Lat, out.Location.Lng
	sh.ClockOutTime = &t
	sh.ClockOutLat = &lat
	sh.ClockOutLng = &lng
	sh.ClockOutNote = out.Note
	sh.UpdatedAt = out.Time

	s.shifts[shiftID] = sh
	return sh, nil
}

func (s *Store) FindShiftsForOrganization(ctx context.Context, orgID string, filter shift.Filter) ([]shift.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]shift.Shift, 0)
	for _, sh := range s.shifts {
		if sh.OrganizationID == orgID && matches(sh, filter) {
			out = append(out, sh)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ClockInTime.Equal(out[j].ClockInTime) {
			return out[i].ClockInTime.After(out[j].ClockInTime)
		}
		return out[i].ID > out[j].ID
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) CountShifts(ctx context.Context, orgID string, filter shift.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, sh := range s.shifts {
		if sh.OrganizationID == orgID && matches(sh, filter) {
			n++
		}
	}
	return n, nil
}

func matches(sh shift.Shift, f shift.Filter) bool {
	if f.UserID != nil && sh.UserID != *f.UserID {
		return false
	}
	if f.Open != nil && sh.Active() != *f.Open {
		return false
	}
	if f.ClockInFrom != nil && sh.ClockInTime.Before(*f.ClockInFrom) {
		return false
	}
	if f.AfterClockIn != nil {
		// keyset (clock_in_time, id) < (after, afterID) in descending order
		if sh.ClockInTime.After(*f.AfterClockIn) {
			return false
		}
		if sh.ClockInTime.Equal(*f.AfterClockIn) && (f.AfterID == nil || sh.ID >= *f.AfterID) {
			return false
		}
	}
	return true
}
