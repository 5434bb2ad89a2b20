package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/shifthub/internal/domain/organization"
	"github.com/geocoder89/shifthub/internal/domain/user"
	"github.com/geocoder89/shifthub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, external_id, email, name, role, organization_id, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	var role string

	err := row.Scan(&u.ID, &u.ExternalID, &u.Email, &u.Name, &role, &u.OrganizationID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	u.Role = user.Role(role)
	return u, nil
}

func (r *UsersRepo) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (id, external_id, email, name, role, organization_id, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			u.ID, u.ExternalID, u.Email, u.Name, string(u.Role), u.OrganizationID, u.CreatedAt, u.UpdatedAt,
		)
		return err
	})

	if err != nil {
		if violates(err, sqlStateUniqueViolation, constraintUserExternalID) {
			return user.User{}, user.ErrAlreadyExists
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) getOne(ctx context.Context, op, where string, arg any) (user.User, error) {
	var u user.User

	err := r.observe(op, func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_id", `id = $1`, id)
}

func (r *UsersRepo) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_email", `lower(email) = lower($1)`, email)
}

// FindUserWithOrganization resolves an external identity to its user record
// and, when assigned, the user's organization.
func (r *UsersRepo) FindUserWithOrganization(ctx context.Context, externalID string) (user.User, *organization.Organization, error) {
	var u user.User
	var role string
	var orgID, orgName *string
	var lat, lng *float64
	var radius *int
	var orgCreated, orgUpdated *time.Time

	err := r.observe("users.find_with_organization", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT u.id, u.external_id, u.email, u.name, u.role, u.organization_id, u.created_at, u.updated_at,
			       o.id, o.name, o.location_lat, o.location_lng, o.perimeter_radius, o.created_at, o.updated_at
			FROM users u
			LEFT JOIN organizations o ON o.id = u.organization_id
			WHERE u.external_id = $1`,
			externalID,
		).Scan(
			&u.ID, &u.ExternalID, &u.Email, &u.Name, &role, &u.OrganizationID, &u.CreatedAt, &u.UpdatedAt,
			&orgID, &orgName, &lat, &lng, &radius, &orgCreated, &orgUpdated,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, nil, user.ErrNotFound
		}
		return user.User{}, nil, err
	}
	u.Role = user.Role(role)

	if orgID == nil {
		return u, nil, nil
	}

	org := &organization.Organization{
		ID:              *orgID,
		Name:            *orgName,
		LocationLat:     *lat,
		LocationLng:     *lng,
		PerimeterRadius: *radius,
		CreatedAt:       *orgCreated,
		UpdatedAt:       *orgUpdated,
	}
	return u, org, nil
}

func (r *UsersRepo) UpdateUserRole(ctx context.Context, id string, role user.Role, now time.Time) (user.User, error) {
	var u user.User

	err := r.observe("users.update_role", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx,
			`UPDATE users SET role = $2, updated_at = $3 WHERE id = $1 RETURNING `+userColumns,
			id, string(role), now,
		))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) SetUserOrganization(ctx context.Context, id, orgID string, now time.Time) (user.User, error) {
	var u user.User

	err := r.observe("users.set_organization", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx,
			`UPDATE users SET organization_id = $2, updated_at = $3 WHERE id = $1 RETURNING `+userColumns,
			id, orgID, now,
		))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		if isForeignKeyViolation(err) {
			return user.User{}, organization.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) ListUsersByOrganization(ctx context.Context, orgID string) (users []user.User, err error) {
	var rows pgx.Rows

	err = r.observe("users.list_by_organization", func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx,
			`SELECT `+userColumns+` FROM users WHERE organization_id = $1 ORDER BY name ASC, id ASC`,
			orgID,
		)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users = make([]user.User, 0)
	for rows.Next() {
		u, scanErr := scanUser(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		users = append(users, u)
	}

	return users, rows.Err()
}
