package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/shifthub/internal/domain/shift"
	"github.com/geocoder89/shifthub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const shiftColumns = `id, user_id, organization_id,
	clock_in_time, clock_in_lat, clock_in_lng, clock_in_note,
	clock_out_time, clock_out_lat, clock_out_lng, clock_out_note,
	created_at, updated_at`

type ShiftsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewShiftsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ShiftsRepo {
	return &ShiftsRepo{pool: pool, prom: prom}
}

func (r *ShiftsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanShift(row pgx.Row) (shift.Shift, error) {
	var s shift.Shift
	err := row.Scan(
		&s.ID, &s.UserID, &s.OrganizationID,
		&s.ClockInTime, &s.ClockInLat, &s.ClockInLng, &s.ClockInNote,
		&s.ClockOutTime, &s.ClockOutLat, &s.ClockOutLng, &s.ClockOutNote,
		&s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

func (r *ShiftsRepo) FindOpenShiftForUser(ctx context.Context, userID string) (shift.Shift, error) {
	var s shift.Shift

	err := r.observe("shifts.find_open_for_user", func() error {
		var e error
		s, e = scanShift(r.pool.QueryRow(ctx,
			`SELECT `+shiftColumns+` FROM shifts WHERE user_id = $1 AND clock_out_time IS NULL`,
			userID,
		))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shift.Shift{}, shift.ErrNotFound
		}
		return shift.Shift{}, err
	}
	return s, nil
}

// CreateShift inserts s. The partial unique index shifts_one_open_per_user
// rejects a second open shift for the same user; that rejection is reported
// as shift.ErrAlreadyActive.
func (r *ShiftsRepo) CreateShift(ctx context.Context, s shift.Shift) (shift.Shift, error) {
	err := r.observe("shifts.create", func() error {
		_, e := r.pool.Exec(ctx, `
			INSERT INTO shifts (id, user_id, organization_id,
				clock_in_time, clock_in_lat, clock_in_lng, clock_in_note,
				created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			s.ID, s.UserID, s.OrganizationID,
			s.ClockInTime, s.ClockInLat, s.ClockInLng, s.ClockInNote,
			s.CreatedAt, s.UpdatedAt,
		)
		return e
	})

	if err != nil {
		if violates(err, sqlStateUniqueViolation, constraintOneOpenShift) {
			return shift.Shift{}, shift.ErrAlreadyActive
		}
		return shift.Shift{}, err
	}
	return s, nil
}

// CloseShift only touches a row that is still open, so a shift is closed at
// most once even when two clock-outs race.
func (r *ShiftsRepo) CloseShift(ctx context.Context, shiftID string, out shift.ClockOut) (shift.Shift, error) {
	var s shift.Shift

	err := r.observe("shifts.close", func() error {
		var e error
		s, e = scanShift(r.pool.QueryRow(ctx, `
			UPDATE shifts
			SET clock_out_time = $2,
			    clock_out_lat = $3,
			    clock_out_lng = $4,
			    clock_out_note = $5,
			    updated_at = $2
			WHERE id = $1 AND clock_out_time IS NULL
			RETURNING `+shiftColumns,
			shiftID, out.Time, out.Location.Lat, out.Location.Lng, out.Note,
		))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shift.Shift{}, shift.ErrNoActiveShift
		}
		return shift.Shift{}, err
	}
	return s, nil
}

func buildShiftConditions(orgID string, f shift.Filter) (string, []any) {
	conds := []string{"organization_id = $1"}
	args := []any{orgID}
	argsPosition := 2

	if f.UserID != nil {
		conds = append(conds, fmt.Sprintf("user_id = $%d", argsPosition))
		args = append(args, *f.UserID)
		argsPosition++
	}

	if f.Open != nil {
		if *f.Open {
			conds = append(conds, "clock_out_time IS NULL")
		} else {
			conds = append(conds, "clock_out_time IS NOT NULL")
		}
	}

	if f.ClockInFrom != nil {
		conds = append(conds, fmt.Sprintf("clock_in_time >= $%d", argsPosition))
		args = append(args, *f.ClockInFrom)
		argsPosition++
	}

	if f.AfterClockIn != nil {
		afterID := ""
		if f.AfterID != nil {
			afterID = *f.AfterID
		}
		conds = append(conds, fmt.Sprintf("(clock_in_time, id::text) < ($%d, $%d)", argsPosition, argsPosition+1))
		args = append(args, *f.AfterClockIn, afterID)
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *ShiftsRepo) FindShiftsForOrganization(ctx context.Context, orgID string, f shift.Filter) ([]shift.Shift, error) {
	where, args := buildShiftConditions(orgID, f)

	// stable ordering for keyset pagination
	query := `SELECT ` + shiftColumns + ` FROM shifts` + where + ` ORDER BY clock_in_time DESC, id::text DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, f.Limit)
	}

	var rows pgx.Rows
	err := r.observe("shifts.find_for_organization", func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, query, args...)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]shift.Shift, 0)
	for rows.Next() {
		s, scanErr := scanShift(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

func (r *ShiftsRepo) CountShifts(ctx context.Context, orgID string, f shift.Filter) (int, error) {
	where, args := buildShiftConditions(orgID, f)

	var total int
	err := r.observe("shifts.count", func() error {
		return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM shifts`+where, args...).Scan(&total)
	})
	return total, err
}
