package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Clark-Hu/cinesocial/internal/domain"
	"github.com/Clark-Hu/cinesocial/internal/store"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = fmt.Errorf("repository: %w", domain.ErrNotFound)
	// ErrConflict indicates a uniqueness constraint rejected the write.
	ErrConflict = fmt.Errorf("repository: conflict: %w", domain.ErrInvalidOperation)
)

const uniqueViolation = "23505"

// Repository aggregates all domain-specific repositories.
type Repository struct {
	Movies  *MoviesRepository
	Reviews *ReviewsRepository
	Users   *UsersRepository
	Follows *FollowsRepository

	st *store.Store
}

// New constructs the repositories on top of st, which owns the pool and
// every transaction they run in.
func New(st *store.Store) *Repository {
	return &Repository{
		Movies:  &MoviesRepository{st: st},
		Reviews: &ReviewsRepository{st: st},
		Users:   &UsersRepository{st: st},
		Follows: &FollowsRepository{st: st},
		st:      st,
	}
}

// InTx delegates to the store so repository calls made with the ctx handed to
// fn join one transaction.
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.st.InTx(ctx, fn)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// validID reports whether id can be compared against a uuid column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
