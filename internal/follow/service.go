// Package follow manages the directed follow graph between users.
package follow

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Clark-Hu/cinesocial/internal/domain"
)

// Transactor runs fn as one unit of work.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EdgeStore persists follow edges.
type EdgeStore interface {
	Create(ctx context.Context, followerID, followingID string) (domain.FollowEdge, bool, error)
	Get(ctx context.Context, followerID, followingID string) (domain.FollowEdge, error)
	Delete(ctx context.Context, followerID, followingID string) error
	CountFollowers(ctx context.Context, userID string) (int64, error)
	CountFollowing(ctx context.Context, userID string) (int64, error)
	ListFollowers(ctx context.Context, userID string) ([]domain.UserSummary, error)
	ListFollowing(ctx context.Context, userID string) ([]domain.UserSummary, error)
}

// UserStore resolves users on either side of an edge.
type UserStore interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
}

// Service implements follow graph operations.
type Service struct {
	tx     Transactor
	edges  EdgeStore
	users  UserStore
	logger *log.Logger
}

// NewService wires a Service.
func NewService(tx Transactor, edges EdgeStore, users UserStore, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{tx: tx, edges: edges, users: users, logger: logger}
}

// Follow makes the caller follow followingID. Following someone already
// followed is a no-op.
func (s *Service) Follow(ctx context.Context, followerEmail, followingID string) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		follower, following, err := s.resolvePair(ctx, followerEmail, followingID)
		if err != nil {
			return err
		}
		if follower.ID == following.ID {
			return fmt.Errorf("%w: users cannot follow themselves", domain.ErrInvalidOperation)
		}

		_, created, err := s.edges.Create(ctx, follower.ID, following.ID)
		if err != nil {
			return fmt.Errorf("create follow: %w", err)
		}
		if created {
			s.logger.Printf("follow: %s now follows %s", follower.ID, following.ID)
		}
		return nil
	})
}

// Unfollow removes the caller's edge to followingID. A missing edge is NotFound.
func (s *Service) Unfollow(ctx context.Context, followerEmail, followingID string) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		follower, following, err := s.resolvePair(ctx, followerEmail, followingID)
		if err != nil {
			return err
		}
		if err := s.edges.Delete(ctx, follower.ID, following.ID); err != nil {
			return fmt.Errorf("unfollow %s: %w", following.ID, err)
		}
		return nil
	})
}

// Counts returns the follower and following totals for userID.
func (s *Service) Counts(ctx context.Context, userID string) (domain.FollowCounts, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return domain.FollowCounts{}, fmt.Errorf("user %s: %w", userID, err)
	}
	followers, err := s.edges.CountFollowers(ctx, userID)
	if err != nil {
		return domain.FollowCounts{}, err
	}
	following, err := s.edges.CountFollowing(ctx, userID)
	if err != nil {
		return domain.FollowCounts{}, err
	}
	return domain.FollowCounts{Followers: followers, Following: following}, nil
}

// Followers lists the users following userID.
func (s *Service) Followers(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("user %s: %w", userID, err)
	}
	return s.edges.ListFollowers(ctx, userID)
}

// Following lists the users userID follows.
func (s *Service) Following(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("user %s: %w", userID, err)
	}
	return s.edges.ListFollowing(ctx, userID)
}

// IsFollowing reports whether viewerEmail follows targetID. Anonymous viewers
// and unknown users simply yield false.
func (s *Service) IsFollowing(ctx context.Context, viewerEmail, targetID string) (bool, error) {
	if viewerEmail == "" {
		return false, nil
	}
	viewer, err := s.users.GetByEmail(ctx, viewerEmail)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	target, err := s.users.GetByID(ctx, targetID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	_, err = s.edges.Get(ctx, viewer.ID, target.ID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *Service) resolvePair(ctx context.Context, followerEmail, followingID string) (domain.User, domain.User, error) {
	follower, err := s.users.GetByEmail(ctx, followerEmail)
	if err != nil {
		return domain.User{}, domain.User{}, fmt.Errorf("follower: %w", err)
	}
	following, err := s.users.GetByID(ctx, followingID)
	if err != nil {
		return domain.User{}, domain.User{}, fmt.Errorf("user %s: %w", followingID, err)
	}
	return follower, following, nil
}
