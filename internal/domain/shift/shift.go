package shift

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

const MaxNoteLength = 500

type Shift struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	OrganizationID string     `json:"organizationId"`
	ClockInTime    time.Time  `json:"clockInTime"`
	ClockInLat     float64    `json:"clockInLat"`
	ClockInLng     float64    `json:"clockInLng"`
	ClockInNote    *string    `json:"clockInNote"`
	ClockOutTime   *time.Time `json:"clockOutTime"`
	ClockOutLat    *float64   `json:"clockOutLat"`
	ClockOutLng    *float64   `json:"clockOutLng"`
	ClockOutNote   *string    `json:"clockOutNote"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`

	// User is filled in by listings; stores leave it nil.
	User *Owner `json:"user,omitempty"`
}

// Owner is the user projection attached to listed shifts.
type Owner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Active reports whether the shift has not been clocked out yet.
func (s Shift) Active() bool {
	return s.ClockOutTime == nil
}

// Elapsed is clockOut - clockIn; zero and false while the shift is active.
func (s Shift) Elapsed() (time.Duration, bool) {
	if s.ClockOutTime == nil {
		return 0, false
	}
	return s.ClockOutTime.Sub(s.ClockInTime), true
}

// DurationMinutes is the whole-minute length of a closed shift, nil while active.
func (s Shift) DurationMinutes() *int {
	d, ok := s.Elapsed()
	if !ok {
		return nil
	}
	m := int(d / time.Minute)
	return &m
}

// MarshalJSON adds the derived duration (whole minutes, null while active).
func (s Shift) MarshalJSON() ([]byte, error) {
	type plain Shift
	return json.Marshal(struct {
		plain
		Duration *int `json:"duration"`
	}{
		plain:    plain(s),
		Duration: s.DurationMinutes(),
	})
}

var (
	ErrNotFound      = errors.New("shift not found")
	ErrAlreadyActive = errors.New("user already has an active shift")
	ErrNoActiveShift = errors.New("no active shift found")
)

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type LocationInput struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

func (l LocationInput) Value() Location {
	var out Location
	if l.Lat != nil {
		out.Lat = *l.Lat
	}
	if l.Lng != nil {
		out.Lng = *l.Lng
	}
	return out
}

type ClockRequest struct {
	Location LocationInput `json:"location" binding:"required"`
	Note     *string       `json:"note" binding:"omitempty,max=500"`
}

// ClockOut carries the fields written exactly once when a shift is closed.
type ClockOut struct {
	Time     time.Time
	Location Location
	Note     *string
}

func NewClockIn(userID, orgID string, loc Location, note *string, now time.Time) Shift {
	return Shift{
		ID:             uuid.NewString(),
		UserID:         userID,
		OrganizationID: orgID,
		ClockInTime:    now,
		ClockInLat:     loc.Lat,
		ClockInLng:     loc.Lng,
		ClockInNote:    note,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Filter narrows an organization-scoped shift query. Nil fields do not filter;
// Open=false selects closed shifts only.
// AfterClockIn/AfterID continue a clockInTime-descending listing past a cursor.
type Filter struct {
	UserID       *string
	Open         *bool
	ClockInFrom  *time.Time
	AfterClockIn *time.Time
	AfterID      *string
	Limit        int
}
