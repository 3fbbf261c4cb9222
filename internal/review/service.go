// Package review manages the review aggregate: posting reviews against movies
// that may not be in the catalog yet, author-only mutation and per-user views.
package review

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Clark-Hu/cinesocial/internal/domain"
	"github.com/Clark-Hu/cinesocial/internal/repository"
	"github.com/Clark-Hu/cinesocial/internal/tmdb"
)

const (
	calendarDayLayout = "2006-01-02"
	tracerName        = "github.com/Clark-Hu/cinesocial/internal/review"
)

// Transactor runs fn as one unit of work.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// MovieStore is the catalog surface used by reviews.
type MovieStore interface {
	GetByID(ctx context.Context, id string) (domain.Movie, error)
	GetByExternalID(ctx context.Context, externalID int64) (domain.Movie, error)
	Upsert(ctx context.Context, movie domain.Movie) (domain.Movie, bool, error)
}

// ReviewStore persists reviews.
type ReviewStore interface {
	Create(ctx context.Context, params repository.ReviewCreateParams) (domain.Review, error)
	GetByID(ctx context.Context, id string) (domain.Review, error)
	Update(ctx context.Context, params repository.ReviewUpdateParams) (domain.Review, error)
	Delete(ctx context.Context, id string) error
	ListByMovie(ctx context.Context, movieID string) ([]domain.Review, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Review, error)
}

// UserStore resolves review authors.
type UserStore interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
}

// MovieFetcher loads a movie the catalog does not hold yet.
type MovieFetcher interface {
	GetMovie(ctx context.Context, id int64, language string) (*domain.MovieDetail, error)
}

// Deps bundles the collaborators of a Service.
type Deps struct {
	Tx       Transactor
	Movies   MovieStore
	Reviews  ReviewStore
	Users    UserStore
	Fetcher  MovieFetcher
	Language string
	Location *time.Location
	Now      func() time.Time
	Logger   *log.Logger
}

// Service implements the review operations.
type Service struct {
	tx       Transactor
	movies   MovieStore
	reviews  ReviewStore
	users    UserStore
	fetcher  MovieFetcher
	language string
	location *time.Location
	now      func() time.Time
	logger   *log.Logger
}

// PostInput is the payload of PostReview.
type PostInput struct {
	MovieExternalID int64
	Rating          float64
	Content         string
	AuthorEmail     string
}

// NewService wires a Service from deps.
func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		tx:       deps.Tx,
		movies:   deps.Movies,
		reviews:  deps.Reviews,
		users:    deps.Users,
		fetcher:  deps.Fetcher,
		language: deps.Language,
		location: loc,
		now:      now,
		logger:   logger,
	}
}

// ListReviews returns a movie's reviews; an unknown movie has none.
func (s *Service) ListReviews(ctx context.Context, movieID string) ([]domain.Review, error) {
	if _, err := s.movies.GetByID(ctx, movieID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []domain.Review{}, nil
		}
		return nil, fmt.Errorf("lookup movie %s: %w", movieID, err)
	}
	return s.reviews.ListByMovie(ctx, movieID)
}

// ListReviewsByUser returns every review written by userID.
func (s *Service) ListReviewsByUser(ctx context.Context, userID string) ([]domain.Review, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("lookup user %s: %w", userID, err)
	}
	return s.reviews.ListByUser(ctx, userID)
}

// PostReview records a review for the movie with the given external id,
// materializing the movie in the catalog first when needed. The boolean
// reports whether this call created the catalog row.
func (s *Service) PostReview(ctx context.Context, in PostInput) (_ domain.Review, _ bool, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "review.PostReview")
	span.SetAttributes(attribute.Int64("movie.external_id", in.MovieExternalID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "post review")
		}
		span.End()
	}()

	if !domain.ValidRating(in.Rating) {
		return domain.Review{}, false, fmt.Errorf("%w: rating %v must be 0.5..5.0 in 0.5 steps", domain.ErrValidation, in.Rating)
	}
	if in.MovieExternalID <= 0 {
		return domain.Review{}, false, fmt.Errorf("%w: movie id must be positive", domain.ErrValidation)
	}

	candidate, err := s.resolveCandidate(ctx, in.MovieExternalID)
	if err != nil {
		return domain.Review{}, false, err
	}

	var (
		review  domain.Review
		created bool
	)
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		movie := candidate
		if movie.ID == "" {
			var err error
			movie, created, err = s.movies.Upsert(ctx, candidate)
			if err != nil {
				return fmt.Errorf("materialize movie %d: %w", in.MovieExternalID, err)
			}
		}

		author, err := s.users.GetByEmail(ctx, in.AuthorEmail)
		if err != nil {
			return fmt.Errorf("resolve author: %w", err)
		}

		review, err = s.reviews.Create(ctx, repository.ReviewCreateParams{
			UserID:    author.ID,
			MovieID:   movie.ID,
			Rating:    in.Rating,
			Content:   in.Content,
			CreatedAt: s.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("create review: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Review{}, false, err
	}

	if created {
		s.logger.Printf("review: materialized movie %d (%s) for review %s", in.MovieExternalID, review.MovieTitle, review.ID)
	}
	return review, created, nil
}

// resolveCandidate returns the stored movie when present, otherwise an unsaved
// movie built from the provider. The provider call runs outside any transaction.
func (s *Service) resolveCandidate(ctx context.Context, externalID int64) (domain.Movie, error) {
	movie, err := s.movies.GetByExternalID(ctx, externalID)
	if err == nil {
		return movie, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Movie{}, fmt.Errorf("lookup movie %d: %w", externalID, err)
	}

	detail, err := s.fetcher.GetMovie(ctx, externalID, s.language)
	if err != nil {
		if errors.Is(err, tmdb.ErrNotFound) {
			return domain.Movie{}, fmt.Errorf("movie %d: %w", externalID, domain.ErrNotFound)
		}
		return domain.Movie{}, fmt.Errorf("fetch movie %d: %w: %w", externalID, domain.ErrUpstream, err)
	}
	return detail.ToMovie(), nil
}

// UpdateReview changes rating and content of a review owned by actorEmail.
func (s *Service) UpdateReview(ctx context.Context, reviewID string, rating float64, content, actorEmail string) (domain.Review, error) {
	if !domain.ValidRating(rating) {
		return domain.Review{}, fmt.Errorf("%w: rating %v must be 0.5..5.0 in 0.5 steps", domain.ErrValidation, rating)
	}
	var updated domain.Review
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.authorize(ctx, reviewID, actorEmail); err != nil {
			return err
		}
		var err error
		updated, err = s.reviews.Update(ctx, repository.ReviewUpdateParams{ID: reviewID, Rating: rating, Content: content})
		return err
	})
	if err != nil {
		return domain.Review{}, err
	}
	return updated, nil
}

// DeleteReview removes a review owned by actorEmail.
func (s *Service) DeleteReview(ctx context.Context, reviewID, actorEmail string) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.authorize(ctx, reviewID, actorEmail); err != nil {
			return err
		}
		return s.reviews.Delete(ctx, reviewID)
	})
}

func (s *Service) authorize(ctx context.Context, reviewID, actorEmail string) error {
	existing, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return fmt.Errorf("review %s: %w", reviewID, err)
	}
	if !existing.OwnedBy(actorEmail) {
		return fmt.Errorf("review %s: %w", reviewID, domain.ErrForbidden)
	}
	return nil
}

// RatingsCalendar groups a user's reviews by the local calendar day they were
// written on, keyed as YYYY-MM-DD.
func (s *Service) RatingsCalendar(ctx context.Context, userID string) (map[string][]domain.Review, error) {
	reviews, err := s.ListReviewsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	calendar := make(map[string][]domain.Review)
	for _, r := range reviews {
		day := r.CreatedAt.In(s.location).Format(calendarDayLayout)
		calendar[day] = append(calendar[day], r)
	}
	return calendar, nil
}
