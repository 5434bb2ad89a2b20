package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/geocoder89/shifthub/internal/domain/organization"
	"github.com/geocoder89/shifthub/internal/domain/shift"
	"github.com/geocoder89/shifthub/internal/notifications"
	"github.com/geocoder89/shifthub/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStore struct {
	orgs    []organization.Summary
	shifts  map[string][]shift.Shift
	listErr error
}

func (f *fakeStore) ListOrganizations(ctx context.Context) ([]organization.Summary, error) {
	return f.orgs, f.listErr
}

func (f *fakeStore) CountShifts(ctx context.Context, orgID string, filter shift.Filter) (int, error) {
	items, _ := f.FindShiftsForOrganization(ctx, orgID, filter)
	return len(items), nil
}

func (f *fakeStore) FindShiftsForOrganization(ctx context.Context, orgID string, filter shift.Filter) ([]shift.Shift, error) {
	out := make([]shift.Shift, 0)
	for _, sh := range f.shifts[orgID] {
		if filter.Open != nil && sh.Active() != *filter.Open {
			continue
		}
		out = append(out, sh)
	}
	return out, nil
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []notifications.StaleShift
	err error
}

func (r *recordingNotifier) NotifyStaleShift(ctx context.Context, in notifications.StaleShift) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, in)
	return r.err
}

func openShift(id, userID, orgID string, at time.Time) shift.Shift {
	return shift.Shift{ID: id, UserID: userID, OrganizationID: orgID, ClockInTime: at}
}

func closedShift(id, userID, orgID string, at time.Time) shift.Shift {
	out := at.Add(time.Hour)
	sh := openShift(id, userID, orgID, at)
	sh.ClockOutTime = &out
	return sh
}

var t0 = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func TestActiveShiftGauge_PublishesPerOrganization(t *testing.T) {
	store := &fakeStore{
		orgs: []organization.Summary{{ID: "org-a"}, {ID: "org-b"}},
		shifts: map[string][]shift.Shift{
			"org-a": {
				openShift("s1", "u1", "org-a", t0),
				openShift("s2", "u2", "org-a", t0),
				closedShift("s3", "u3", "org-a", t0),
			},
			"org-b": {closedShift("s4", "u4", "org-b", t0)},
		},
	}
	prom := observability.NewProm(prometheus.NewRegistry())

	err := ActiveShiftGauge(store, prom)(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(prom.ActiveShifts.WithLabelValues("org-a")))
	assert.Equal(t, 0.0, testutil.ToFloat64(prom.ActiveShifts.WithLabelValues("org-b")))
}

func TestActiveShiftGauge_StoreError(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db down")}

	err := ActiveShiftGauge(store, nil)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestStaleShiftReport_OnlyOldOpenShifts(t *testing.T) {
	store := &fakeStore{
		orgs: []organization.Summary{{ID: "org-a"}},
		shifts: map[string][]shift.Shift{
			"org-a": {
				openShift("old", "u1", "org-a", t0.Add(-20*time.Hour)),
				openShift("fresh", "u2", "org-a", t0.Add(-2*time.Hour)),
				closedShift("closed-old", "u3", "org-a", t0.Add(-30*time.Hour)),
			},
		},
	}
	notifier := &recordingNotifier{}

	job := StaleShiftReport(store, notifier, discardLogger(), StaleShiftReportConfig{
		After: 16 * time.Hour,
		Now:   func() time.Time { return t0 },
	})
	require.NoError(t, job(context.Background()))

	require.Len(t, notifier.got, 1)
	assert.Equal(t, "old", notifier.got[0].ShiftID)
	assert.Equal(t, 20*time.Hour, notifier.got[0].OpenFor)

	// shifts stay untouched
	assert.True(t, store.shifts["org-a"][0].Active())
}

func TestStaleShiftReport_StopsWhenCircuitOpen(t *testing.T) {
	store := &fakeStore{
		orgs: []organization.Summary{{ID: "org-a"}},
		shifts: map[string][]shift.Shift{
			"org-a": {
				openShift("s1", "u1", "org-a", t0.Add(-20*time.Hour)),
				openShift("s2", "u2", "org-a", t0.Add(-21*time.Hour)),
			},
		},
	}
	notifier := &recordingNotifier{err: notifications.ErrCircuitOpen}

	job := StaleShiftReport(store, notifier, discardLogger(), StaleShiftReportConfig{
		After: time.Hour,
		Now:   func() time.Time { return t0 },
	})
	require.NoError(t, job(context.Background()))
	assert.Len(t, notifier.got, 1)
}

func TestScheduler_RunNowAndStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewScheduler(discardLogger(), observability.NewProm(prometheus.NewRegistry()), WithJobTimeout(time.Second))

	var runs atomic.Int32
	done := make(chan struct{}, 1)
	require.NoError(t, s.Register("probe", "@every 1h", func(ctx context.Context) error {
		runs.Add(1)
		done <- struct{}{}
		return nil
	}))

	s.Start()
	require.NoError(t, s.RunNow("probe"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
	s.Stop()

	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_RunNowUnknownJob(t *testing.T) {
	s := NewScheduler(discardLogger(), nil)
	assert.Error(t, s.RunNow("missing"))
}

func TestScheduler_RegisterRejectsDuplicatesAndBadSpecs(t *testing.T) {
	s := NewScheduler(discardLogger(), nil)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Register("a", "@every 30s", noop))
	assert.Error(t, s.Register("a", "@every 30s", noop))
	assert.Error(t, s.Register("b", "not a schedule", noop))
}

func TestRegisterShiftJobs(t *testing.T) {
	s := NewScheduler(discardLogger(), nil)

	err := RegisterShiftJobs(s, Deps{
		Store:           &fakeStore{},
		Notifier:        &recordingNotifier{},
		Log:             discardLogger(),
		StaleShiftAfter: 16 * time.Hour,
	})
	require.NoError(t, err)

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, ActiveShiftGaugeJob, jobs[0].Name)
	assert.Equal(t, StaleShiftReportJob, jobs[1].Name)
}

func TestScheduler_ObservesFailures(t *testing.T) {
	prom := observability.NewProm(prometheus.NewRegistry())
	s := NewScheduler(discardLogger(), prom)

	s.runJob(&Job{Name: "broken", Func: func(context.Context) error { return errors.New("nope") }})

	assert.Equal(t, 1.0, testutil.ToFloat64(prom.JobResults.WithLabelValues("broken", "failed")))
}
