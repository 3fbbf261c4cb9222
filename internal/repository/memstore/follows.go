package memstore

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/Clark-Hu/cinesocial/internal/domain"
	"github.com/Clark-Hu/cinesocial/internal/repository"
)

// Follows mirrors repository.FollowsRepository.
type Follows struct {
	s *Store
}

// Create inserts the edge if absent and reports whether it did.
func (f *Follows) Create(ctx context.Context, followerID, followingID string) (domain.FollowEdge, bool, error) {
	if followerID == followingID {
		return domain.FollowEdge{}, false, fmt.Errorf("create follow: %w: cannot follow self", domain.ErrInvalidOperation)
	}
	defer f.s.lock(ctx)()

	if _, ok := f.s.t.users[followerID]; !ok {
		return domain.FollowEdge{}, false, repository.ErrNotFound
	}
	if _, ok := f.s.t.users[followingID]; !ok {
		return domain.FollowEdge{}, false, repository.ErrNotFound
	}
	key := followKey{follower: followerID, following: followingID}
	if row, ok := f.s.t.follows[key]; ok {
		return edge(key, row), false, nil
	}
	row := followRow{id: uuid.NewString(), createdAt: f.s.tick(), seq: f.s.nextSeq()}
	f.s.t.follows[key] = row
	return edge(key, row), true, nil
}

// Get fetches the edge for an ordered pair.
func (f *Follows) Get(ctx context.Context, followerID, followingID string) (domain.FollowEdge, error) {
	defer f.s.lock(ctx)()
	key := followKey{follower: followerID, following: followingID}
	row, ok := f.s.t.follows[key]
	if !ok {
		return domain.FollowEdge{}, repository.ErrNotFound
	}
	return edge(key, row), nil
}

// Delete removes the edge for an ordered pair.
func (f *Follows) Delete(ctx context.Context, followerID, followingID string) error {
	defer f.s.lock(ctx)()
	key := followKey{follower: followerID, following: followingID}
	if _, ok := f.s.t.follows[key]; !ok {
		return repository.ErrNotFound
	}
	delete(f.s.t.follows, key)
	return nil
}

// CountFollowers returns the in-degree of userID.
func (f *Follows) CountFollowers(ctx context.Context, userID string) (int64, error) {
	defer f.s.lock(ctx)()
	var n int64
	for key := range f.s.t.follows {
		if key.following == userID {
			n++
		}
	}
	return n, nil
}

// CountFollowing returns the out-degree of userID.
func (f *Follows) CountFollowing(ctx context.Context, userID string) (int64, error) {
	defer f.s.lock(ctx)()
	var n int64
	for key := range f.s.t.follows {
		if key.follower == userID {
			n++
		}
	}
	return n, nil
}

// ListFollowers returns users following userID, most recent first.
func (f *Follows) ListFollowers(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	defer f.s.lock(ctx)()
	return f.neighbours(func(key followKey) (string, bool) {
		return key.follower, key.following == userID
	}), nil
}

// ListFollowing returns users userID follows, most recent first.
func (f *Follows) ListFollowing(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	defer f.s.lock(ctx)()
	return f.neighbours(func(key followKey) (string, bool) {
		return key.following, key.follower == userID
	}), nil
}

func (f *Follows) neighbours(pick func(followKey) (string, bool)) []domain.UserSummary {
	type hit struct {
		userID string
		seq    int64
	}
	hits := make([]hit, 0)
	for key, row := range f.s.t.follows {
		if id, ok := pick(key); ok {
			hits = append(hits, hit{userID: id, seq: row.seq})
		}
	}
	slices.SortFunc(hits, func(a, b hit) int { return int(b.seq - a.seq) })

	out := make([]domain.UserSummary, 0, len(hits))
	for _, h := range hits {
		out = append(out, f.s.t.users[h.userID].Summary())
	}
	return out
}

func edge(key followKey, row followRow) domain.FollowEdge {
	return domain.FollowEdge{
		ID:          row.id,
		FollowerID:  key.follower,
		FollowingID: key.following,
		CreatedAt:   row.createdAt,
	}
}
