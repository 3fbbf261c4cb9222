package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/cinesocial/internal/domain"
	"github.com/Clark-Hu/cinesocial/internal/store"
)

// FollowsRepository persists directed follow edges.
type FollowsRepository struct {
	st *store.Store
}

const followColumns = `id::text, follower_id::text, following_id::text, created_at`

// Create inserts the edge if absent. The boolean reports whether this call
// created it; an existing edge is returned unchanged.
func (r *FollowsRepository) Create(ctx context.Context, followerID, followingID string) (domain.FollowEdge, bool, error) {
	if !validID(followerID) || !validID(followingID) {
		return domain.FollowEdge{}, false, ErrNotFound
	}
	if followerID == followingID {
		return domain.FollowEdge{}, false, fmt.Errorf("create follow: %w: cannot follow self", domain.ErrInvalidOperation)
	}

	query := fmt.Sprintf(`
        INSERT INTO follows (id, follower_id, following_id)
        VALUES ($1,$2,$3)
        ON CONFLICT ON CONSTRAINT follows_pair_key DO NOTHING
        RETURNING %s
    `, followColumns)
	edge, err := scanFollow(r.st.Conn(ctx).QueryRow(ctx, query, uuid.New(), uuid.MustParse(followerID), uuid.MustParse(followingID)))
	if err == nil {
		return edge, true, nil
	}
	if isUniqueViolation(err) {
		return domain.FollowEdge{}, false, ErrConflict
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.FollowEdge{}, false, fmt.Errorf("insert follow: %w", err)
	}

	existing, err := r.Get(ctx, followerID, followingID)
	if err != nil {
		return domain.FollowEdge{}, false, err
	}
	return existing, false, nil
}

// Get fetches the edge for an ordered pair.
func (r *FollowsRepository) Get(ctx context.Context, followerID, followingID string) (domain.FollowEdge, error) {
	if !validID(followerID) || !validID(followingID) {
		return domain.FollowEdge{}, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM follows WHERE follower_id = $1 AND following_id = $2`, followColumns)
	edge, err := scanFollow(r.st.Conn(ctx).QueryRow(ctx, query, uuid.MustParse(followerID), uuid.MustParse(followingID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FollowEdge{}, ErrNotFound
		}
		return domain.FollowEdge{}, err
	}
	return edge, nil
}

// Delete removes the edge for an ordered pair; a missing edge is ErrNotFound.
func (r *FollowsRepository) Delete(ctx context.Context, followerID, followingID string) error {
	if !validID(followerID) || !validID(followingID) {
		return ErrNotFound
	}
	tag, err := r.st.Conn(ctx).Exec(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND following_id = $2`,
		uuid.MustParse(followerID), uuid.MustParse(followingID))
	if err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountFollowers returns how many users follow userID.
func (r *FollowsRepository) CountFollowers(ctx context.Context, userID string) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM follows WHERE following_id = $1`, userID)
}

// CountFollowing returns how many users userID follows.
func (r *FollowsRepository) CountFollowing(ctx context.Context, userID string) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM follows WHERE follower_id = $1`, userID)
}

func (r *FollowsRepository) count(ctx context.Context, query, userID string) (int64, error) {
	if !validID(userID) {
		return 0, nil
	}
	var n int64
	if err := r.st.Conn(ctx).QueryRow(ctx, query, uuid.MustParse(userID)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count follows: %w", err)
	}
	return n, nil
}

// ListFollowers returns the users following userID, most recent first.
func (r *FollowsRepository) ListFollowers(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	return r.listUsers(ctx, `
        SELECT u.id::text, u.email, u.nickname, u.profile_img
        FROM follows f
        JOIN users u ON u.id = f.follower_id
        WHERE f.following_id = $1
        ORDER BY f.created_at DESC, u.id
    `, userID)
}

// ListFollowing returns the users userID follows, most recent first.
func (r *FollowsRepository) ListFollowing(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	return r.listUsers(ctx, `
        SELECT u.id::text, u.email, u.nickname, u.profile_img
        FROM follows f
        JOIN users u ON u.id = f.following_id
        WHERE f.follower_id = $1
        ORDER BY f.created_at DESC, u.id
    `, userID)
}

func (r *FollowsRepository) listUsers(ctx context.Context, query, userID string) ([]domain.UserSummary, error) {
	if !validID(userID) {
		return []domain.UserSummary{}, nil
	}
	rows, err := r.st.Conn(ctx).Query(ctx, query, uuid.MustParse(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserSummary, 0)
	for rows.Next() {
		var u domain.UserSummary
		if err := rows.Scan(&u.ID, &u.Email, &u.Nickname, &u.ProfileImg); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanFollow(row pgx.Row) (domain.FollowEdge, error) {
	var edge domain.FollowEdge
	err := row.Scan(&edge.ID, &edge.FollowerID, &edge.FollowingID, &edge.CreatedAt)
	return edge, err
}
