package memstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Clark-Hu/cinesocial/internal/domain"
	"github.com/Clark-Hu/cinesocial/internal/repository"
)

type userRow = domain.User

// Users mirrors repository.UsersRepository.
type Users struct {
	s *Store
}

// Create inserts a user; duplicate emails yield repository.ErrConflict.
func (u *Users) Create(ctx context.Context, params repository.UserCreateParams) (domain.User, error) {
	email := strings.TrimSpace(params.Email)
	nickname := strings.TrimSpace(params.Nickname)
	if email == "" || nickname == "" {
		return domain.User{}, fmt.Errorf("create user: %w: email and nickname are required", domain.ErrValidation)
	}
	defer u.s.lock(ctx)()

	if _, exists := u.s.t.byEmail[email]; exists {
		return domain.User{}, repository.ErrConflict
	}
	user := domain.User{
		ID:         uuid.NewString(),
		Email:      email,
		Nickname:   nickname,
		ProfileImg: params.ProfileImg,
		CreatedAt:  u.s.tick(),
	}
	u.s.t.users[user.ID] = user
	u.s.t.byEmail[email] = user.ID
	return user, nil
}

// GetByID fetches a user by local id.
func (u *Users) GetByID(ctx context.Context, id string) (domain.User, error) {
	defer u.s.lock(ctx)()
	user, ok := u.s.t.users[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return user, nil
}

// GetByEmail fetches a user by identity email.
func (u *Users) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	defer u.s.lock(ctx)()
	id, ok := u.s.t.byEmail[strings.TrimSpace(email)]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return u.s.t.users[id], nil
}
