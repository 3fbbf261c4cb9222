package memstore

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/Clark-Hu/cinesocial/internal/domain"
	"github.com/Clark-Hu/cinesocial/internal/repository"
)

// Reviews mirrors repository.ReviewsRepository.
type Reviews struct {
	s *Store
}

// Create inserts a review; the user and movie must exist.
func (r *Reviews) Create(ctx context.Context, params repository.ReviewCreateParams) (domain.Review, error) {
	if !domain.ValidRating(params.Rating) {
		return domain.Review{}, fmt.Errorf("insert review: %w: rating %v", domain.ErrValidation, params.Rating)
	}
	defer r.s.lock(ctx)()

	if _, ok := r.s.t.users[params.UserID]; !ok {
		return domain.Review{}, repository.ErrNotFound
	}
	if _, ok := r.s.t.movies[params.MovieID]; !ok {
		return domain.Review{}, repository.ErrNotFound
	}
	row := reviewRow{
		id:        uuid.NewString(),
		userID:    params.UserID,
		movieID:   params.MovieID,
		rating:    params.Rating,
		content:   params.Content,
		createdAt: params.CreatedAt,
		updatedAt: params.CreatedAt,
		seq:       r.s.nextSeq(),
	}
	r.s.t.reviews[row.id] = row
	return r.join(row), nil
}

// GetByID fetches one review.
func (r *Reviews) GetByID(ctx context.Context, id string) (domain.Review, error) {
	defer r.s.lock(ctx)()
	row, ok := r.s.t.reviews[id]
	if !ok {
		return domain.Review{}, repository.ErrNotFound
	}
	return r.join(row), nil
}

// Update replaces rating and content.
func (r *Reviews) Update(ctx context.Context, params repository.ReviewUpdateParams) (domain.Review, error) {
	if !domain.ValidRating(params.Rating) {
		return domain.Review{}, fmt.Errorf("update review: %w: rating %v", domain.ErrValidation, params.Rating)
	}
	defer r.s.lock(ctx)()
	row, ok := r.s.t.reviews[params.ID]
	if !ok {
		return domain.Review{}, repository.ErrNotFound
	}
	row.rating = params.Rating
	row.content = params.Content
	row.updatedAt = r.s.tick()
	r.s.t.reviews[row.id] = row
	return r.join(row), nil
}

// Delete removes a review.
func (r *Reviews) Delete(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.t.reviews[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.t.reviews, id)
	return nil
}

// ListByMovie returns a movie's reviews, newest first.
func (r *Reviews) ListByMovie(ctx context.Context, movieID string) ([]domain.Review, error) {
	defer r.s.lock(ctx)()
	return r.filter(func(row reviewRow) bool { return row.movieID == movieID }), nil
}

// ListByUser returns a user's reviews, newest first.
func (r *Reviews) ListByUser(ctx context.Context, userID string) ([]domain.Review, error) {
	defer r.s.lock(ctx)()
	return r.filter(func(row reviewRow) bool { return row.userID == userID }), nil
}

func (r *Reviews) filter(keep func(reviewRow) bool) []domain.Review {
	rows := make([]reviewRow, 0)
	for _, row := range r.s.t.reviews {
		if keep(row) {
			rows = append(rows, row)
		}
	}
	slices.SortFunc(rows, func(a, b reviewRow) int {
		if c := b.createdAt.Compare(a.createdAt); c != 0 {
			return c
		}
		return int(b.seq - a.seq)
	})
	out := make([]domain.Review, len(rows))
	for i, row := range rows {
		out[i] = r.join(row)
	}
	return out
}

func (r *Reviews) join(row reviewRow) domain.Review {
	user := r.s.t.users[row.userID]
	movie := r.s.t.movies[row.movieID].movie
	return domain.Review{
		ID:              row.id,
		UserID:          row.userID,
		AuthorEmail:     user.Email,
		AuthorNickname:  user.Nickname,
		MovieID:         row.movieID,
		MovieExternalID: movie.ExternalID,
		MovieTitle:      movie.Title,
		Rating:          row.rating,
		Content:         row.content,
		CreatedAt:       row.createdAt,
		UpdatedAt:       row.updatedAt,
	}
}
