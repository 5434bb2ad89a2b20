package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/shifthub/internal/domain/organization"
	"github.com/geocoder89/shifthub/internal/domain/shift"
	"github.com/geocoder89/shifthub/internal/notifications"
	"github.com/geocoder89/shifthub/internal/observability"
)

const (
	ActiveShiftGaugeJob = "active_shift_gauge"
	StaleShiftReportJob = "stale_shift_report"

	ActiveShiftGaugeSchedule = "@every 30s"
	StaleShiftReportSchedule = "@every 10m"
)

// Store is the read-only slice of the repository the jobs need.
type Store interface {
	ListOrganizations(ctx context.Context) ([]organization.Summary, error)
	CountShifts(ctx context.Context, orgID string, filter shift.Filter) (int, error)
	FindShiftsForOrganization(ctx context.Context, orgID string, filter shift.Filter) ([]shift.Shift, error)
}

// ActiveShiftGauge publishes the number of open shifts per organization.
func ActiveShiftGauge(store Store, prom *observability.Prom) JobFunc {
	return func(ctx context.Context) error {
		orgs, err := store.ListOrganizations(ctx)
		if err != nil {
			return fmt.Errorf("list organizations: %w", err)
		}

		open := true
		for _, org := range orgs {
			n, err := store.CountShifts(ctx, org.ID, shift.Filter{Open: &open})
			if err != nil {
				return fmt.Errorf("count open shifts org=%s: %w", org.ID, err)
			}
			prom.SetActiveShifts(org.ID, n)
		}
		return nil
	}
}

type StaleShiftReportConfig struct {
	After time.Duration
	Now   func() time.Time
}

// StaleShiftReport hands every shift open longer than cfg.After to the notifier.
// Shifts are never modified; closing them stays a worker action.
func StaleShiftReport(store Store, notifier notifications.Notifier, log *slog.Logger, cfg StaleShiftReportConfig) JobFunc {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return func(ctx context.Context) error {
		orgs, err := store.ListOrganizations(ctx)
		if err != nil {
			return fmt.Errorf("list organizations: %w", err)
		}

		now := cfg.Now()
		cutoff := now.Add(-cfg.After)
		open := true
		stale := 0

		for _, org := range orgs {
			shifts, err := store.FindShiftsForOrganization(ctx, org.ID, shift.Filter{Open: &open})
			if err != nil {
				return fmt.Errorf("open shifts org=%s: %w", org.ID, err)
			}

			for _, sh := range shifts {
				if !sh.ClockInTime.Before(cutoff) {
					continue
				}
				stale++

				err := notifier.NotifyStaleShift(ctx, notifications.StaleShift{
					ShiftID:        sh.ID,
					UserID:         sh.UserID,
					OrganizationID: sh.OrganizationID,
					ClockInTime:    sh.ClockInTime,
					OpenFor:        now.Sub(sh.ClockInTime),
				})
				if errors.Is(err, notifications.ErrCircuitOpen) {
					log.WarnContext(ctx, "stale shift notifications suspended", "reported", stale)
					return nil
				}
				if err != nil {
					log.WarnContext(ctx, "stale shift notification failed", "shift_id", sh.ID, "err", err)
				}
			}
		}

		log.InfoContext(ctx, "stale shift report", "organizations", len(orgs), "stale", stale)
		return nil
	}
}

type Deps struct {
	Store           Store
	Notifier        notifications.Notifier
	Prom            *observability.Prom
	Log             *slog.Logger
	StaleShiftAfter time.Duration
}

// RegisterShiftJobs registers the worker's standard job set.
func RegisterShiftJobs(s *Scheduler, deps Deps) error {
	if err := s.Register(ActiveShiftGaugeJob, ActiveShiftGaugeSchedule, ActiveShiftGauge(deps.Store, deps.Prom)); err != nil {
		return err
	}

	report := StaleShiftReport(deps.Store, deps.Notifier, deps.Log, StaleShiftReportConfig{After: deps.StaleShiftAfter})
	return s.Register(StaleShiftReportJob, StaleShiftReportSchedule, report)
}
