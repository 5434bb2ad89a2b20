package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/shifthub/internal/analytics"
	"github.com/geocoder89/shifthub/internal/app"
	"github.com/geocoder89/shifthub/internal/db"
	"github.com/geocoder89/shifthub/internal/domain/organization"
	"github.com/geocoder89/shifthub/internal/domain/shift"
	"github.com/geocoder89/shifthub/internal/domain/user"
	apphttp "github.com/geocoder89/shifthub/internal/http"
	"github.com/geocoder89/shifthub/internal/identity"
	"github.com/geocoder89/shifthub/internal/policy"
	"github.com/geocoder89/shifthub/internal/repo/postgres"
	"github.com/geocoder89/shifthub/internal/shifts"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// setupStore connects to TEST_DB_DSN, applies migrations and empties the
// tables. Tests skip when no database is configured.
func setupStore(t *testing.T) (*postgres.Store, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set; skipping postgres integration test")
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, dsn, 10)
	if err != nil {
		t.Fatalf("Failed to create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.Migrate(pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	resetDB(t, pool)
	t.Cleanup(func() { resetDB(t, pool) })

	return postgres.NewStore(pool, nil), pool
}

func resetDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	// shifts reference users and organizations
	_, err := pool.Exec(context.Background(), `TRUNCATE shifts, users, organizations CASCADE`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

func seedMember(t *testing.T, store *postgres.Store) (user.User, organization.Organization) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	manager, err := store.CreateUser(ctx, user.User{
		ID: uuid.NewString(), ExternalID: "mgr-" + uuid.NewString(), Email: "m@example.com",
		Name: "Manager", Role: user.RoleManager, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}

	org, err := store.CreateOrganizationForManager(ctx, organization.Organization{
		ID: uuid.NewString(), Name: "Integration Care", LocationLat: 48.8566, LocationLng: 2.3522,
		PerimeterRadius: 500, CreatedAt: now, UpdatedAt: now,
	}, manager.ID)
	if err != nil {
		t.Fatalf("create organization: %v", err)
	}

	worker, err := store.CreateUser(ctx, user.User{
		ID: uuid.NewString(), ExternalID: "w-" + uuid.NewString(), Email: "w@example.com",
		Name: "Worker", Role: user.RoleCareWorker, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("create worker: %v", err)
	}

	worker, err = store.SetUserOrganization(ctx, worker.ID, org.ID, now)
	if err != nil {
		t.Fatalf("assign worker: %v", err)
	}

	return worker, org
}

func TestPostgresMalformedUserIDIsNotFound(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	for _, id := range []string{"abc", uuid.NewString()} {
		if _, err := store.GetUserByID(ctx, id); !errors.Is(err, user.ErrNotFound) {
			t.Fatalf("GetUserByID(%q) err = %v, want user.ErrNotFound", id, err)
		}
	}
}

func TestPostgresRejectsSecondOpenShift(t *testing.T) {
	store, _ := setupStore(t)
	worker, org := seedMember(t, store)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := store.CreateShift(ctx, shift.NewClockIn(worker.ID, org.ID, shift.Location{Lat: 48.8566, Lng: 2.3522}, nil, now))
	if err != nil {
		t.Fatalf("first shift: %v", err)
	}

	_, err = store.CreateShift(ctx, shift.NewClockIn(worker.ID, org.ID, shift.Location{Lat: 48.8566, Lng: 2.3522}, nil, now))
	if err != shift.ErrAlreadyActive {
		t.Fatalf("got %v, want shift.ErrAlreadyActive", err)
	}
}

func TestPostgresConcurrentClockIn(t *testing.T) {
	store, _ := setupStore(t)
	worker, org := seedMember(t, store)

	svc := shifts.NewService(store, nil, nil)
	ctx := context.Background()

	const attempts = 8
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ClockIn(ctx, worker, &org, shift.Location{Lat: 48.8566, Lng: 2.3522}, nil)
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if ok != 1 {
		t.Fatalf("got %d successful clock-ins, want exactly 1", ok)
	}

	open := true
	n, err := store.CountShifts(ctx, org.ID, shift.Filter{UserID: &worker.ID, Open: &open})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("got %d open shifts, want 1", n)
	}
}

func TestPostgresCloseShiftOnce(t *testing.T) {
	store, _ := setupStore(t)
	worker, org := seedMember(t, store)
	ctx := context.Background()
	start := time.Now().UTC().Add(-90 * time.Minute).Truncate(time.Microsecond)

	sh, err := store.CreateShift(ctx, shift.NewClockIn(worker.ID, org.ID, shift.Location{}, nil, start))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	out := shift.ClockOut{Time: start.Add(90 * time.Minute), Location: shift.Location{Lat: 1, Lng: 1}}
	closed, err := store.CloseShift(ctx, sh.ID, out)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if d := closed.DurationMinutes(); d == nil || *d != 90 {
		t.Fatalf("got duration %v, want 90", d)
	}

	if _, err := store.CloseShift(ctx, sh.ID, out); err != shift.ErrNoActiveShift {
		t.Fatalf("second close: got %v, want shift.ErrNoActiveShift", err)
	}
}

func TestPostgresAnalyticsOverHTTP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, _ := setupStore(t)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	pol, err := policy.New()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	agg := analytics.NewAggregator(store, log)
	svc := app.NewService(app.Deps{
		Store:     store,
		Policy:    pol,
		Shifts:    shifts.NewService(store, log, nil, shifts.WithChangeHook(agg.Invalidate)),
		Analytics: agg,
		Log:       log,
	})
	verifier := identity.NewVerifier("test-secret-key", "", "")
	router := apphttp.NewRouter(log, apphttp.Deps{Service: svc, Verifier: verifier}, apphttp.RouterConfig{Env: "test"})

	call := func(ext, method, path, body string) *httptest.ResponseRecorder {
		tok, err := verifier.Issue(identity.Identity{ExternalID: ext, Email: ext + "@example.com", Name: ext}, time.Hour)
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		var rdr io.Reader
		if body != "" {
			rdr = bytes.NewBufferString(body)
		}
		req := httptest.NewRequest(method, path, rdr)
		req.Header.Set("Authorization", "Bearer "+tok)
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	steps := []struct {
		ext, method, path, body string
		want                    int
	}{
		{"boss", http.MethodPost, "/api/me", `{"role":"MANAGER"}`, http.StatusCreated},
		{"nurse", http.MethodPost, "/api/me", `{"role":"CARE_WORKER"}`, http.StatusCreated},
		{"boss", http.MethodPost, "/api/organizations", `{"name":"Paris Care","location":{"lat":48.8566,"lng":2.3522},"perimeterRadius":500}`, http.StatusCreated},
		{"boss", http.MethodPost, "/api/organization/members", `{"email":"nurse@example.com"}`, http.StatusOK},
		{"nurse", http.MethodPost, "/api/shifts/clock-in", `{"location":{"lat":48.8566,"lng":2.3522}}`, http.StatusCreated},
		{"nurse", http.MethodPost, "/api/shifts/clock-in", `{"location":{"lat":48.8566,"lng":2.3522}}`, http.StatusConflict},
		{"nurse", http.MethodGet, "/api/analytics/shifts", "", http.StatusForbidden},
	}

	for _, s := range steps {
		if w := call(s.ext, s.method, s.path, s.body); w.Code != s.want {
			t.Fatalf("%s %s as %s: got %d, want %d, body=%s", s.method, s.path, s.ext, w.Code, s.want, w.Body.String())
		}
	}

	w := call("boss", http.MethodGet, "/api/analytics/shifts", "")
	if w.Code != http.StatusOK {
		t.Fatalf("analytics: got %d, body=%s", w.Code, w.Body.String())
	}

	var stats analytics.ShiftAnalytics
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.ActiveShifts != 1 || stats.TotalUsersToday != 1 {
		t.Fatalf("unexpected analytics %+v", stats)
	}
}
