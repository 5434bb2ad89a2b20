package shifts

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/shifthub/internal/apperr"
	"github.com/geocoder89/shifthub/internal/domain/organization"
	"github.com/geocoder89/shifthub/internal/domain/shift"
	"github.com/geocoder89/shifthub/internal/domain/user"
	"github.com/geocoder89/shifthub/internal/geo"
	"github.com/geocoder89/shifthub/internal/repo/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var center = geo.Point{Lat: 51.5074, Lng: -0.1278}

// north returns the point metersNorth due north of p, an exact distance away.
func north(p geo.Point, metersNorth float64) geo.Point {
	return geo.Point{Lat: p.Lat + (metersNorth/geo.EarthRadiusMeters)*180/math.Pi, Lng: p.Lng}
}

type fixture struct {
	store  *memory.Store
	svc    *Service
	org    organization.Organization
	worker user.User
	now    time.Time
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	ctx := context.Background()
	store := memory.NewStore()
	f := &fixture{store: store, now: time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)}

	manager, err := store.CreateUser(ctx, user.User{ID: "manager-1", ExternalID: "ext-m", Role: user.RoleManager})
	require.NoError(t, err)

	f.org, err = store.CreateOrganizationForManager(ctx, organization.Organization{
		ID:              "org-1",
		Name:            "Riverside Care",
		LocationLat:     center.Lat,
		LocationLng:     center.Lng,
		PerimeterRadius: 2000,
		CreatedAt:       f.now,
	}, manager.ID)
	require.NoError(t, err)

	_, err = store.CreateUser(ctx, user.User{ID: "worker-1", ExternalID: "ext-w", Role: user.RoleCareWorker})
	require.NoError(t, err)
	f.worker, err = store.SetUserOrganization(ctx, "worker-1", f.org.ID, f.now)
	require.NoError(t, err)

	opts = append([]Option{WithClock(func() time.Time { return f.now })}, opts...)
	f.svc = NewService(store, nil, nil, opts...)
	return f
}

func at(p geo.Point) shift.Location {
	return shift.Location{Lat: p.Lat, Lng: p.Lng}
}

func TestClockInAtCenter(t *testing.T) {
	f := newFixture(t)

	sh, err := f.svc.ClockIn(context.Background(), f.worker, &f.org, at(center), nil)
	require.NoError(t, err)

	assert.Nil(t, sh.ClockOutTime)
	assert.True(t, sh.Active())
	assert.Equal(t, f.worker.ID, sh.UserID)
	assert.Equal(t, f.org.ID, sh.OrganizationID)
	assert.Equal(t, f.now, sh.ClockInTime)
}

func TestClockInTwiceFailsAlreadyActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ClockIn(ctx, f.worker, &f.org, at(center), nil)
	require.NoError(t, err)

	_, err = f.svc.ClockIn(ctx, f.worker, &f.org, at(center), nil)
	assert.Equal(t, apperr.CodeAlreadyActive, apperr.CodeOf(err))
}

func TestClockInOutsideGeofence(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ClockIn(context.Background(), f.worker, &f.org, at(north(center, 2001)), nil)
	assert.Equal(t, apperr.CodeOutsideGeofence, apperr.CodeOf(err))

	current, err := f.svc.CurrentShift(context.Background(), f.worker)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestClockInOnPerimeterIsAdmitted(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ClockIn(context.Background(), f.worker, &f.org, at(north(center, 2000)), nil)
	assert.NoError(t, err)
}

func TestClockInWithoutOrganization(t *testing.T) {
	f := newFixture(t)
	loner := user.User{ID: "loner", Role: user.RoleCareWorker}

	_, err := f.svc.ClockIn(context.Background(), loner, nil, at(center), nil)
	assert.Equal(t, apperr.CodeNoOrganization, apperr.CodeOf(err))
}

func TestClockInRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ClockIn(ctx, f.worker, &f.org, shift.Location{Lat: 91, Lng: 0}, nil)
	assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))

	long := make([]byte, shift.MaxNoteLength+1)
	for i := range long {
		long[i] = 'a'
	}
	note := string(long)
	_, err = f.svc.ClockIn(ctx, f.worker, &f.org, at(center), &note)
	assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))
}

func TestClockOutComputesDuration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	note := "  handover done  "
	_, err := f.svc.ClockIn(ctx, f.worker, &f.org, at(center), nil)
	require.NoError(t, err)

	f.now = f.now.Add(90 * time.Minute)

	// far outside the perimeter: clock-out does not check it
	closed, err := f.svc.ClockOut(ctx, f.worker, at(north(center, 50_000)), &note)
	require.NoError(t, err)

	require.NotNil(t, closed.DurationMinutes())
	assert.Equal(t, 90, *closed.DurationMinutes())
	require.NotNil(t, closed.ClockOutNote)
	assert.Equal(t, "handover done", *closed.ClockOutNote)

	current, err := f.svc.CurrentShift(ctx, f.worker)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestClockOutWhenIdle(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ClockOut(context.Background(), f.worker, at(center), nil)
	assert.Equal(t, apperr.CodeNoActiveShift, apperr.CodeOf(err))
}

func TestCanClockIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.svc.CanClockIn(ctx, f.worker, &f.org, at(north(center, 1999)))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.CanClockIn(ctx, f.worker, &f.org, at(north(center, 2001)))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.CanClockIn(ctx, user.User{ID: "loner"}, nil, at(center))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChangeHookRunsOnTransitions(t *testing.T) {
	var calls []string
	f := newFixture(t, WithChangeHook(func(_ context.Context, orgID string) {
		calls = append(calls, orgID)
	}))
	ctx := context.Background()

	_, err := f.svc.ClockIn(ctx, f.worker, &f.org, at(center), nil)
	require.NoError(t, err)
	_, err = f.svc.ClockIn(ctx, f.worker, &f.org, at(center), nil)
	require.Error(t, err)
	_, err = f.svc.ClockOut(ctx, f.worker, at(center), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{f.org.ID, f.org.ID}, calls)
}

// staleReads hides open shifts from the pre-check, as a lagging read would.
type staleReads struct {
	*memory.Store
}

func (staleReads) FindOpenShiftForUser(context.Context, string) (shift.Shift, error) {
	return shift.Shift{}, shift.ErrNotFound
}

func TestStoreConstraintDecidesWhenPrecheckIsStale(t *testing.T) {
	f := newFixture(t)
	svc := NewService(staleReads{f.store}, nil, nil, WithClock(func() time.Time { return f.now }))
	ctx := context.Background()

	_, err := svc.ClockIn(ctx, f.worker, &f.org, at(center), nil)
	require.NoError(t, err)

	_, err = svc.ClockIn(ctx, f.worker, &f.org, at(center), nil)
	assert.Equal(t, apperr.CodeAlreadyActive, apperr.CodeOf(err))

	n, err := f.store.CountShifts(ctx, f.org.ID, shift.Filter{UserID: &f.worker.ID, Open: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConcurrentClockInAdmitsExactlyOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const attempts = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		already int
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ClockIn(ctx, f.worker, &f.org, at(center), nil)

			mu.Lock()
			defer mu.Unlock()
			switch apperr.CodeOf(err) {
			case "":
				ok++
			case apperr.CodeAlreadyActive:
				already++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, already)
}

func boolPtr(b bool) *bool { return &b }
