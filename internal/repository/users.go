package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/cinesocial/internal/domain"
	"github.com/Clark-Hu/cinesocial/internal/store"
)

// UsersRepository reads and seeds user accounts.
type UsersRepository struct {
	st *store.Store
}

// UserCreateParams bundles the fields required to create a user.
type UserCreateParams struct {
	Email      string
	Nickname   string
	ProfileImg *string
}

const userColumns = `id::text, email, nickname, profile_img, created_at`

// Create inserts a user. A duplicate email yields ErrConflict.
func (r *UsersRepository) Create(ctx context.Context, params UserCreateParams) (domain.User, error) {
	email := strings.TrimSpace(params.Email)
	if email == "" || strings.TrimSpace(params.Nickname) == "" {
		return domain.User{}, fmt.Errorf("create user: %w: email and nickname are required", domain.ErrValidation)
	}

	query := fmt.Sprintf(`
        INSERT INTO users (id, email, nickname, profile_img)
        VALUES ($1,$2,$3,$4)
        RETURNING %s
    `, userColumns)
	row := r.st.Conn(ctx).QueryRow(ctx, query, uuid.New(), email, strings.TrimSpace(params.Nickname), params.ProfileImg)
	user, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, ErrConflict
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// GetByID fetches a user by local identifier.
func (r *UsersRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	if !validID(id) {
		return domain.User{}, ErrNotFound
	}
	return r.getOne(ctx, `WHERE id = $1`, uuid.MustParse(id))
}

// GetByEmail fetches a user by the identity email.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	if strings.TrimSpace(email) == "" {
		return domain.User{}, ErrNotFound
	}
	return r.getOne(ctx, `WHERE email = $1`, strings.TrimSpace(email))
}

func (r *UsersRepository) getOne(ctx context.Context, where string, arg any) (domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users %s`, userColumns, where)
	user, err := scanUser(r.st.Conn(ctx).QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.Email, &user.Nickname, &user.ProfileImg, &user.CreatedAt)
	return user, err
}
