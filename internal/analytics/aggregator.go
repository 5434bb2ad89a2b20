// Package analytics reduces an organization's shifts into dashboard figures.
// Callers are responsible for authorization; every query here is scoped to
// the organization id it is given.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/shifthub/internal/cache"
	"github.com/geocoder89/shifthub/internal/domain/shift"
	"github.com/geocoder89/shifthub/internal/domain/user"
	"github.com/geocoder89/shifthub/internal/utils"
	"golang.org/x/sync/errgroup"
)

const Week = 7 * 24 * time.Hour

type Store interface {
	CountShifts(ctx context.Context, orgID string, f shift.Filter) (int, error)
	FindShiftsForOrganization(ctx context.Context, orgID string, f shift.Filter) ([]shift.Shift, error)
	ListUsersByOrganization(ctx context.Context, orgID string) ([]user.User, error)
}

type ShiftAnalytics struct {
	AvgHoursPerDay     float64 `json:"avgHoursPerDay"`
	TotalUsersToday    int     `json:"totalUsersToday"`
	TotalHoursThisWeek float64 `json:"totalHoursThisWeek"`
	ActiveShifts       int     `json:"activeShifts"`
}

type UserShiftSummary struct {
	User               user.User `json:"user"`
	TotalHoursThisWeek float64   `json:"totalHoursThisWeek"`
	ShiftsThisWeek     int       `json:"shiftsThisWeek"`
}

type Aggregator struct {
	store    Store
	cache    cache.Store
	cacheTTL time.Duration
	loc      *time.Location
	now      func() time.Time
	log      *slog.Logger
}

type Option func(*Aggregator)

// WithCache keeps results in c for ttl. A nil c or non-positive ttl disables caching.
func WithCache(c cache.Store, ttl time.Duration) Option {
	return func(a *Aggregator) {
		a.cache = c
		a.cacheTTL = ttl
	}
}

// WithLocation sets the time zone whose midnight starts "today".
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(store Store, log *slog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		store: store,
		loc:   time.UTC,
		now:   time.Now,
		log:   log,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	return a
}

// StartOfDay is local midnight of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ShiftAnalytics reports, for orgID: open shifts, shifts started since local
// midnight, hours of shifts closed within the last 7 days (by clock-in) and
// those hours divided by 7.
func (a *Aggregator) ShiftAnalytics(ctx context.Context, orgID string) (ShiftAnalytics, error) {
	key := utils.AnalyticsCacheKey(utils.AnalyticsKindShifts, orgID)

	var out ShiftAnalytics
	if a.cached(ctx, key, &out) {
		return out, nil
	}

	now := a.now()
	today := StartOfDay(now, a.loc)
	weekStart := now.Add(-Week)
	open, closed := true, false

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := a.store.CountShifts(gctx, orgID, shift.Filter{Open: &open})
		if err != nil {
			return fmt.Errorf("count active shifts: %w", err)
		}
		out.ActiveShifts = n
		return nil
	})

	g.Go(func() error {
		n, err := a.store.CountShifts(gctx, orgID, shift.Filter{ClockInFrom: &today})
		if err != nil {
			return fmt.Errorf("count shifts today: %w", err)
		}
		out.TotalUsersToday = n
		return nil
	})

	g.Go(func() error {
		week, err := a.store.FindShiftsForOrganization(gctx, orgID, shift.Filter{Open: &closed, ClockInFrom: &weekStart})
		if err != nil {
			return fmt.Errorf("list week shifts: %w", err)
		}
		out.TotalHoursThisWeek = totalHours(week)
		return nil
	})

	if err := g.Wait(); err != nil {
		return ShiftAnalytics{}, err
	}

	out.AvgHoursPerDay = out.TotalHoursThisWeek / 7

	a.remember(ctx, key, out)
	return out, nil
}

// UserShiftSummaries lists every member of orgID with their closed shifts of
// the last 7 days, members without shifts included with zeros.
func (a *Aggregator) UserShiftSummaries(ctx context.Context, orgID string) ([]UserShiftSummary, error) {
	key := utils.AnalyticsCacheKey(utils.AnalyticsKindUsers, orgID)

	var out []UserShiftSummary
	if a.cached(ctx, key, &out) {
		return out, nil
	}

	weekStart := a.now().Add(-Week)
	closed := false

	var (
		members []user.User
		week    []shift.Shift
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		members, err = a.store.ListUsersByOrganization(gctx, orgID)
		if err != nil {
			return fmt.Errorf("list members: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		week, err = a.store.FindShiftsForOrganization(gctx, orgID, shift.Filter{Open: &closed, ClockInFrom: &weekStart})
		if err != nil {
			return fmt.Errorf("list week shifts: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	byUser := make(map[string][]shift.Shift, len(members))
	for _, sh := range week {
		byUser[sh.UserID] = append(byUser[sh.UserID], sh)
	}

	out = make([]UserShiftSummary, 0, len(members))
	for _, m := range members {
		own := byUser[m.ID]
		out = append(out, UserShiftSummary{
			User:               m,
			TotalHoursThisWeek: totalHours(own),
			ShiftsThisWeek:     len(own),
		})
	}

	a.remember(ctx, key, out)
	return out, nil
}

// Invalidate drops cached results of orgID.
func (a *Aggregator) Invalidate(ctx context.Context, orgID string) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Delete(ctx, utils.AnalyticsCacheKeys(orgID)...); err != nil {
		a.log.WarnContext(ctx, "analytics cache invalidate failed", "organization_id", orgID, "err", err)
	}
}

func totalHours(shifts []shift.Shift) float64 {
	var total time.Duration
	for _, sh := range shifts {
		if d, ok := sh.Elapsed(); ok {
			total += d
		}
	}
	return total.Hours()
}

func (a *Aggregator) cached(ctx context.Context, key string, dst any) bool {
	if a.cache == nil || a.cacheTTL <= 0 {
		return false
	}

	b, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		a.log.WarnContext(ctx, "analytics cache read failed", "key", key, "err", err)
		return false
	}
	if !ok {
		return false
	}

	if err := json.Unmarshal(b, dst); err != nil {
		a.log.WarnContext(ctx, "analytics cache entry unreadable", "key", key, "err", err)
		return false
	}
	return true
}

func (a *Aggregator) remember(ctx context.Context, key string, v any) {
	if a.cache == nil || a.cacheTTL <= 0 {
		return
	}

	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, b, a.cacheTTL); err != nil {
		a.log.WarnContext(ctx, "analytics cache write failed", "key", key, "err", err)
	}
}
