package follow

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Clark-Hu/cinesocial/internal/domain"
	"github.com/Clark-Hu/cinesocial/internal/repository"
	"github.com/Clark-Hu/cinesocial/internal/repository/memstore"
)

type ServiceSuite struct {
	suite.Suite
	ctx   context.Context
	store *memstore.Store
	svc   *Service
	alice domain.User
	bob   domain.User
	carol domain.User
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memstore.New()
	s.svc = NewService(s.store, s.store.Follows, s.store.Users, log.New(io.Discard, "", 0))
	s.alice = s.mustUser("alice@example.com")
	s.bob = s.mustUser("bob@example.com")
	s.carol = s.mustUser("carol@example.com")
}

func (s *ServiceSuite) mustUser(email string) domain.User {
	user, err := s.store.Users.Create(s.ctx, repository.UserCreateParams{Email: email, Nickname: email})
	s.Require().NoError(err)
	return user
}

func (s *ServiceSuite) TestFollowIsIdempotent() {
	s.Require().NoError(s.svc.Follow(s.ctx, s.alice.Email, s.bob.ID))
	s.Require().NoError(s.svc.Follow(s.ctx, s.alice.Email, s.bob.ID))

	counts, err := s.svc.Counts(s.ctx, s.bob.ID)
	s.Require().NoError(err)
	s.Equal(domain.FollowCounts{Followers: 1, Following: 0}, counts)
}

func (s *ServiceSuite) TestSelfFollowRejected() {
	err := s.svc.Follow(s.ctx, s.alice.Email, s.alice.ID)
	s.ErrorIs(err, domain.ErrInvalidOperation)
}

func (s *ServiceSuite) TestFollowUnknownUsers() {
	s.ErrorIs(s.svc.Follow(s.ctx, "ghost@example.com", s.bob.ID), domain.ErrNotFound)
	s.ErrorIs(s.svc.Follow(s.ctx, s.alice.Email, "missing"), domain.ErrNotFound)
}

func (s *ServiceSuite) TestUnfollow() {
	s.ErrorIs(s.svc.Unfollow(s.ctx, s.alice.Email, s.bob.ID), domain.ErrNotFound)

	s.Require().NoError(s.svc.Follow(s.ctx, s.alice.Email, s.bob.ID))
	s.Require().NoError(s.svc.Unfollow(s.ctx, s.alice.Email, s.bob.ID))

	following, err := s.svc.IsFollowing(s.ctx, s.alice.Email, s.bob.ID)
	s.Require().NoError(err)
	s.False(following)
}

func (s *ServiceSuite) TestCountsAndLists() {
	s.Require().NoError(s.svc.Follow(s.ctx, s.alice.Email, s.bob.ID))
	s.Require().NoError(s.svc.Follow(s.ctx, s.carol.Email, s.bob.ID))
	s.Require().NoError(s.svc.Follow(s.ctx, s.bob.Email, s.alice.ID))

	counts, err := s.svc.Counts(s.ctx, s.bob.ID)
	s.Require().NoError(err)
	s.Equal(domain.FollowCounts{Followers: 2, Following: 1}, counts)

	followers, err := s.svc.Followers(s.ctx, s.bob.ID)
	s.Require().NoError(err)
	s.ElementsMatch([]domain.UserSummary{s.alice.Summary(), s.carol.Summary()}, followers)

	following, err := s.svc.Following(s.ctx, s.bob.ID)
	s.Require().NoError(err)
	s.Equal([]domain.UserSummary{s.alice.Summary()}, following)

	_, err = s.svc.Counts(s.ctx, "missing")
	s.ErrorIs(err, domain.ErrNotFound)
	_, err = s.svc.Followers(s.ctx, "missing")
	s.ErrorIs(err, domain.ErrNotFound)
	_, err = s.svc.Following(s.ctx, "missing")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *ServiceSuite) TestIsFollowing() {
	s.Require().NoError(s.svc.Follow(s.ctx, s.alice.Email, s.bob.ID))

	cases := []struct {
		name   string
		viewer string
		target string
		want   bool
	}{
		{name: "follower", viewer: s.alice.Email, target: s.bob.ID, want: true},
		{name: "reverse direction", viewer: s.bob.Email, target: s.alice.ID, want: false},
		{name: "anonymous", viewer: "", target: s.bob.ID, want: false},
		{name: "unknown viewer", viewer: "ghost@example.com", target: s.bob.ID, want: false},
		{name: "unknown target", viewer: s.alice.Email, target: "missing", want: false},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			got, err := s.svc.IsFollowing(s.ctx, tc.viewer, tc.target)
			s.Require().NoError(err)
			s.Equal(tc.want, got)
		})
	}
}

func TestConcurrentFollowKeepsSingleEdge(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := NewService(store, store.Follows, store.Users, log.New(io.Discard, "", 0))
	a, err := store.Users.Create(ctx, repository.UserCreateParams{Email: "a@example.com", Nickname: "a"})
	require.NoError(t, err)
	b, err := store.Users.Create(ctx, repository.UserCreateParams{Email: "b@example.com", Nickname: "b"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Follow(ctx, a.Email, b.ID); err != nil {
				t.Errorf("follow: %v", err)
			}
		}()
	}
	wg.Wait()

	counts, err := svc.Counts(ctx, b.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, counts.Followers)
}

// conflictEdges reports a unique violation on every insert.
type conflictEdges struct {
	*memstore.Follows
}

func (conflictEdges) Create(context.Context, string, string) (domain.FollowEdge, bool, error) {
	return domain.FollowEdge{}, false, repository.ErrConflict
}

func TestFollowSurfacesInsertConflict(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := NewService(store, conflictEdges{store.Follows}, store.Users, log.New(io.Discard, "", 0))
	a, err := store.Users.Create(ctx, repository.UserCreateParams{Email: "a@example.com", Nickname: "a"})
	require.NoError(t, err)
	b, err := store.Users.Create(ctx, repository.UserCreateParams{Email: "b@example.com", Nickname: "b"})
	require.NoError(t, err)

	err = svc.Follow(ctx, a.Email, b.ID)
	require.ErrorIs(t, err, repository.ErrConflict)
	require.ErrorIs(t, err, domain.ErrInvalidOperation)
}
