package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/shifthub/internal/domain/organization"
	"github.com/geocoder89/shifthub/internal/domain/user"
	"github.com/geocoder89/shifthub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrganizationsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewOrganizationsRepo(pool *pgxpool.Pool, prom *observability.Prom) *OrganizationsRepo {
	return &OrganizationsRepo{pool: pool, prom: prom}
}

func (r *OrganizationsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// CreateOrganizationForManager inserts org and points the manager at it in a
// single transaction.
func (r *OrganizationsRepo) CreateOrganizationForManager(ctx context.Context, org organization.Organization, managerID string) (created organization.Organization, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = r.observe("organizations.create", func() error {
		_, e := tx.Exec(ctx, `
			INSERT INTO organizations (id, name, location_lat, location_lng, perimeter_radius, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			org.ID, org.Name, org.LocationLat, org.LocationLng, org.PerimeterRadius, org.CreatedAt, org.UpdatedAt,
		)
		return e
	})
	if err != nil {
		if violates(err, sqlStateCheckViolation, constraintOrgRadiusCheck) {
			err = organization.ErrInvalidRadius
		}
		return
	}

	var tag pgconn.CommandTag
	err = r.observe("organizations.create.assign_manager", func() error {
		var e error
		tag, e = tx.Exec(ctx,
			`UPDATE users SET organization_id = $2, updated_at = $3 WHERE id = $1`,
			managerID, org.ID, org.CreatedAt,
		)
		return e
	})
	if err != nil {
		return
	}

	if tag.RowsAffected() == 0 {
		err = user.ErrNotFound
		return
	}

	if err = tx.Commit(ctx); err != nil {
		return
	}

	created = org
	return
}

func (r *OrganizationsRepo) GetOrganizationByID(ctx context.Context, id string) (organization.Organization, error) {
	var o organization.Organization

	err := r.observe("organizations.get_by_id", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT id, name, location_lat, location_lng, perimeter_radius, created_at, updated_at
			FROM organizations
			WHERE id = $1`,
			id,
		).Scan(&o.ID, &o.Name, &o.LocationLat, &o.LocationLng, &o.PerimeterRadius, &o.CreatedAt, &o.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return organization.Organization{}, organization.ErrNotFound
		}
		return organization.Organization{}, err
	}
	return o, nil
}

func (r *OrganizationsRepo) ListOrganizations(ctx context.Context) ([]organization.Summary, error) {
	var rows pgx.Rows

	err := r.observe("organizations.list", func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, `SELECT id, name FROM organizations ORDER BY name ASC, id ASC`)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]organization.Summary, 0)
	for rows.Next() {
		var s organization.Summary
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	return out, rows.Err()
}
