package postgres

import (
	"context"

	"github.com/geocoder89/shifthub/internal/observability"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store groups the repos behind one value so callers can depend on a single
// store interface.
type Store struct {
	*UsersRepo
	*OrganizationsRepo
	*ShiftsRepo

	db *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool, prom *observability.Prom) *Store {
	return &Store{
		UsersRepo:         NewUsersRepo(pool, prom),
		OrganizationsRepo: NewOrganizationsRepo(pool, prom),
		ShiftsRepo:        NewShiftsRepo(pool, prom),
		db:                pool,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
