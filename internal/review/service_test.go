package review

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Clark-Hu/cinesocial/internal/domain"
	"github.com/Clark-Hu/cinesocial/internal/repository"
	"github.com/Clark-Hu/cinesocial/internal/repository/memstore"
	"github.com/Clark-Hu/cinesocial/internal/tmdb"
)

type fakeFetcher struct {
	calls atomic.Int32
	err   error
}

func (f *fakeFetcher) GetMovie(_ context.Context, id int64, _ string) (*domain.MovieDetail, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.MovieDetail{MovieSummary: domain.MovieSummary{ExternalID: id, Title: "Fetched"}}, nil
}

// failingReviews rejects every insert to exercise transaction rollback.
type failingReviews struct {
	*memstore.Reviews
}

func (failingReviews) Create(context.Context, repository.ReviewCreateParams) (domain.Review, error) {
	return domain.Review{}, errors.New("disk full")
}

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *memstore.Store
	fetcher *fakeFetcher
	clock   time.Time
	svc     *Service
	author  domain.User
	other   domain.User
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memstore.New()
	s.fetcher = &fakeFetcher{}
	s.clock = time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	s.svc = s.newService(s.store.Reviews)

	var err error
	s.author, err = s.store.Users.Create(s.ctx, repository.UserCreateParams{Email: "author@example.com", Nickname: "author"})
	s.Require().NoError(err)
	s.other, err = s.store.Users.Create(s.ctx, repository.UserCreateParams{Email: "other@example.com", Nickname: "other"})
	s.Require().NoError(err)
}

func (s *ServiceSuite) newService(reviews ReviewStore) *Service {
	seoul, err := time.LoadLocation("Asia/Seoul")
	s.Require().NoError(err)
	return NewService(Deps{
		Tx:       s.store,
		Movies:   s.store.Movies,
		Reviews:  reviews,
		Users:    s.store.Users,
		Fetcher:  s.fetcher,
		Language: "ko-KR",
		Location: seoul,
		Now:      func() time.Time { return s.clock },
		Logger:   log.New(io.Discard, "", 0),
	})
}

func (s *ServiceSuite) post(externalID int64, rating float64) (domain.Review, bool, error) {
	return s.svc.PostReview(s.ctx, PostInput{
		MovieExternalID: externalID,
		Rating:          rating,
		Content:         "content",
		AuthorEmail:     s.author.Email,
	})
}

func (s *ServiceSuite) TestPostReviewMaterializesMovieOnce() {
	review, created, err := s.post(550, 4.5)
	s.Require().NoError(err)
	s.True(created)
	s.Equal("Fetched", review.MovieTitle)
	s.Equal(s.author.Email, review.AuthorEmail)
	s.True(review.CreatedAt.Equal(s.clock))

	_, created, err = s.post(550, 3.0)
	s.Require().NoError(err)
	s.False(created)
	s.EqualValues(1, s.fetcher.calls.Load())

	movies, err := s.store.Movies.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Len(movies, 1)
}

func (s *ServiceSuite) TestPostReviewRejectsInvalidRating() {
	_, _, err := s.post(550, 3.7)
	s.ErrorIs(err, domain.ErrValidation)
	s.Zero(s.fetcher.calls.Load())
}

func (s *ServiceSuite) TestPostReviewUpstreamNotFound() {
	s.fetcher.err = tmdb.ErrNotFound
	_, _, err := s.post(404, 4.0)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *ServiceSuite) TestPostReviewUpstreamFailure() {
	s.fetcher.err = errors.New("timeout")
	_, _, err := s.post(500, 4.0)
	s.ErrorIs(err, domain.ErrUpstream)

	_, err = s.store.Movies.GetByExternalID(s.ctx, 500)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *ServiceSuite) TestPostReviewUnknownAuthorLeavesNoMovie() {
	_, _, err := s.svc.PostReview(s.ctx, PostInput{MovieExternalID: 77, Rating: 2.0, AuthorEmail: "ghost@example.com"})
	s.ErrorIs(err, domain.ErrNotFound)

	_, err = s.store.Movies.GetByExternalID(s.ctx, 77)
	s.ErrorIs(err, domain.ErrNotFound, "movie insert must roll back with the review")
}

func (s *ServiceSuite) TestPostReviewInsertFailureRollsBackMovie() {
	svc := s.newService(failingReviews{s.store.Reviews})
	_, _, err := svc.PostReview(s.ctx, PostInput{MovieExternalID: 88, Rating: 5.0, AuthorEmail: s.author.Email})
	s.Require().Error(err)

	_, err = s.store.Movies.GetByExternalID(s.ctx, 88)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *ServiceSuite) TestUpdateReviewAuthorization() {
	review, _, err := s.post(1, 4.0)
	s.Require().NoError(err)

	_, err = s.svc.UpdateReview(s.ctx, review.ID, 1.0, "hijack", s.other.Email)
	s.ErrorIs(err, domain.ErrForbidden)

	_, err = s.svc.UpdateReview(s.ctx, review.ID, 1.0, "anon", "")
	s.ErrorIs(err, domain.ErrForbidden)

	updated, err := s.svc.UpdateReview(s.ctx, review.ID, 1.5, "changed", s.author.Email)
	s.Require().NoError(err)
	s.Equal(1.5, updated.Rating)
	s.Equal("changed", updated.Content)
	s.True(updated.CreatedAt.Equal(review.CreatedAt))

	_, err = s.svc.UpdateReview(s.ctx, "missing", 1.0, "", s.author.Email)
	s.ErrorIs(err, domain.ErrNotFound)

	_, err = s.svc.UpdateReview(s.ctx, review.ID, 6.0, "", s.author.Email)
	s.ErrorIs(err, domain.ErrValidation)
}

func (s *ServiceSuite) TestDeleteReviewAuthorization() {
	review, _, err := s.post(2, 4.0)
	s.Require().NoError(err)

	s.ErrorIs(s.svc.DeleteReview(s.ctx, review.ID, s.other.Email), domain.ErrForbidden)
	s.Require().NoError(s.svc.DeleteReview(s.ctx, review.ID, s.author.Email))
	s.ErrorIs(s.svc.DeleteReview(s.ctx, review.ID, s.author.Email), domain.ErrNotFound)
}

func (s *ServiceSuite) TestListReviews() {
	review, _, err := s.post(3, 4.0)
	s.Require().NoError(err)

	list, err := s.svc.ListReviews(s.ctx, review.MovieID)
	s.Require().NoError(err)
	s.Len(list, 1)

	empty, err := s.svc.ListReviews(s.ctx, "unknown-movie")
	s.Require().NoError(err)
	s.NotNil(empty)
	s.Empty(empty)

	_, err = s.svc.ListReviewsByUser(s.ctx, "unknown-user")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *ServiceSuite) TestRatingsCalendarGroupsByLocalDay() {
	// 10:00 UTC is 19:00 in Seoul on the same day.
	_, _, err := s.post(10, 4.0)
	s.Require().NoError(err)
	// 16:00 UTC is 01:00 the next day in Seoul.
	s.clock = time.Date(2024, time.March, 1, 16, 0, 0, 0, time.UTC)
	_, _, err = s.post(11, 3.0)
	s.Require().NoError(err)
	s.clock = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	_, _, err = s.post(12, 2.0)
	s.Require().NoError(err)

	calendar, err := s.svc.RatingsCalendar(s.ctx, s.author.ID)
	s.Require().NoError(err)
	s.Len(calendar, 2)
	s.Len(calendar["2024-03-01"], 2)
	s.Len(calendar["2024-03-02"], 1)
	s.Equal(3.0, calendar["2024-03-02"][0].Rating)

	_, err = s.svc.RatingsCalendar(s.ctx, "nobody")
	s.ErrorIs(err, domain.ErrNotFound)
}
