package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/cinesocial/internal/domain"
	"github.com/Clark-Hu/cinesocial/internal/store"
)

// ReviewsRepository persists reviews and reads them joined with author and movie.
type ReviewsRepository struct {
	st *store.Store
}

// ReviewCreateParams captures the payload required to insert a review.
type ReviewCreateParams struct {
	UserID    string
	MovieID   string
	Rating    float64
	Content   string
	CreatedAt time.Time
}

// ReviewUpdateParams captures the mutable fields of a review.
type ReviewUpdateParams struct {
	ID      string
	Rating  float64
	Content string
}

const reviewSelect = `
    SELECT r.id::text,
           r.user_id::text,
           u.email,
           u.nickname,
           r.movie_id::text,
           m.external_id,
           m.title,
           r.rating::float8,
           r.content,
           r.created_at,
           r.updated_at
    FROM reviews r
    JOIN users u ON u.id = r.user_id
    JOIN movies m ON m.id = r.movie_id
`

// Create inserts a review and returns its joined read model.
func (r *ReviewsRepository) Create(ctx context.Context, params ReviewCreateParams) (domain.Review, error) {
	userID, err := uuid.Parse(params.UserID)
	if err != nil {
		return domain.Review{}, ErrNotFound
	}
	movieID, err := uuid.Parse(params.MovieID)
	if err != nil {
		return domain.Review{}, ErrNotFound
	}

	const insert = `
        INSERT INTO reviews (id, user_id, movie_id, rating, content, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$6)
    `
	id := uuid.New()
	conn := r.st.Conn(ctx)
	if _, err := conn.Exec(ctx, insert, id, userID, movieID, params.Rating, params.Content, params.CreatedAt); err != nil {
		return domain.Review{}, fmt.Errorf("insert review: %w", err)
	}
	return r.GetByID(ctx, id.String())
}

// GetByID fetches a single review.
func (r *ReviewsRepository) GetByID(ctx context.Context, id string) (domain.Review, error) {
	if !validID(id) {
		return domain.Review{}, ErrNotFound
	}
	row := r.st.Conn(ctx).QueryRow(ctx, reviewSelect+` WHERE r.id = $1`, uuid.MustParse(id))
	review, err := scanReview(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Review{}, ErrNotFound
		}
		return domain.Review{}, err
	}
	return review, nil
}

// Update replaces rating and content; created_at and ownership are immutable.
func (r *ReviewsRepository) Update(ctx context.Context, params ReviewUpdateParams) (domain.Review, error) {
	if !validID(params.ID) {
		return domain.Review{}, ErrNotFound
	}
	const query = `
        UPDATE reviews
        SET rating = $2, content = $3, updated_at = now()
        WHERE id = $1
    `
	tag, err := r.st.Conn(ctx).Exec(ctx, query, uuid.MustParse(params.ID), params.Rating, params.Content)
	if err != nil {
		return domain.Review{}, fmt.Errorf("update review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Review{}, ErrNotFound
	}
	return r.GetByID(ctx, params.ID)
}

// Delete removes a review.
func (r *ReviewsRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := r.st.Conn(ctx).Exec(ctx, `DELETE FROM reviews WHERE id = $1`, uuid.MustParse(id))
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByMovie returns a movie's reviews, newest first.
func (r *ReviewsRepository) ListByMovie(ctx context.Context, movieID string) ([]domain.Review, error) {
	if !validID(movieID) {
		return []domain.Review{}, nil
	}
	return r.list(ctx, reviewSelect+` WHERE r.movie_id = $1 ORDER BY r.created_at DESC, r.id DESC`, uuid.MustParse(movieID))
}

// ListByUser returns a user's reviews, newest first.
func (r *ReviewsRepository) ListByUser(ctx context.Context, userID string) ([]domain.Review, error) {
	if !validID(userID) {
		return []domain.Review{}, nil
	}
	return r.list(ctx, reviewSelect+` WHERE r.user_id = $1 ORDER BY r.created_at DESC, r.id DESC`, uuid.MustParse(userID))
}

func (r *ReviewsRepository) list(ctx context.Context, query string, args ...any) ([]domain.Review, error) {
	rows, err := r.st.Conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := make([]domain.Review, 0)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

func scanReview(row pgx.Row) (domain.Review, error) {
	var review domain.Review
	err := row.Scan(
		&review.ID,
		&review.UserID,
		&review.AuthorEmail,
		&review.AuthorNickname,
		&review.MovieID,
		&review.MovieExternalID,
		&review.MovieTitle,
		&review.Rating,
		&review.Content,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	return review, err
}
