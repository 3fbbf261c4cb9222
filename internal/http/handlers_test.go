package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Clark-Hu/cinesocial/internal/catalog"
	"github.com/Clark-Hu/cinesocial/internal/config"
	"github.com/Clark-Hu/cinesocial/internal/domain"
	"github.com/Clark-Hu/cinesocial/internal/follow"
	"github.com/Clark-Hu/cinesocial/internal/repository"
	"github.com/Clark-Hu/cinesocial/internal/repository/memstore"
	"github.com/Clark-Hu/cinesocial/internal/review"
	"github.com/Clark-Hu/cinesocial/internal/tmdb"
)

type stubFetcher struct{}

func (stubFetcher) GetMovie(_ context.Context, id int64, _ string) (*domain.MovieDetail, error) {
	if id == 404 {
		return nil, tmdb.ErrNotFound
	}
	if id == 500 {
		return nil, errors.New("provider unavailable")
	}
	released := time.Date(2010, 7, 16, 0, 0, 0, 0, time.UTC)
	leo := "/leo.jpg"
	return &domain.MovieDetail{
		MovieSummary: domain.MovieSummary{
			ExternalID:  id,
			Title:       "Inception",
			ReleaseDate: &released,
			VoteAverage: 8.4,
		},
		Runtime:   148,
		Directors: []string{"Christopher Nolan"},
		Cast:      []domain.CastMember{{Name: "Leonardo DiCaprio", Character: "Cobb", ProfilePath: &leo}},
		Posters:   []string{"/p1.jpg"},
	}, nil
}

type stubCatalog struct {
	syncKind  tmdb.ListKind
	syncPage  int
	date      time.Time
	reconcile []catalog.RankedMatch
	err       error
}

func (c *stubCatalog) SyncList(_ context.Context, kind tmdb.ListKind, page int) (catalog.SyncResult, error) {
	c.syncKind, c.syncPage = kind, page
	if c.err != nil {
		return catalog.SyncResult{}, c.err
	}
	return catalog.SyncResult{Kind: kind, Page: page, Fetched: 3, Inserted: 2, Existing: 1}, nil
}

func (c *stubCatalog) ReconcileDailyRanking(_ context.Context, date time.Time) ([]catalog.RankedMatch, error) {
	c.date = date
	return c.reconcile, c.err
}

type testEnv struct {
	handler http.Handler
	store   *memstore.Store
	catalog *stubCatalog
	alice   domain.User
	bob     domain.User
}

var testClock = time.Date(2024, 5, 1, 16, 30, 0, 0, time.UTC)

func newTestEnv(t testing.TB) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := log.New(io.Discard, "", 0)
	store := memstore.New()

	alice, err := store.Users.Create(ctx, repository.UserCreateParams{Email: "alice@example.com", Nickname: "alice"})
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := store.Users.Create(ctx, repository.UserCreateParams{Email: "bob@example.com", Nickname: "bob"})
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}

	seoul, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	now := func() time.Time { return testClock }

	reviews := review.NewService(review.Deps{
		Tx:       store,
		Movies:   store.Movies,
		Reviews:  store.Reviews,
		Users:    store.Users,
		Fetcher:  stubFetcher{},
		Language: "ko-KR",
		Location: seoul,
		Now:      now,
		Logger:   logger,
	})
	follows := follow.NewService(store, store.Follows, store.Users, logger)
	cat := &stubCatalog{}

	srv := New(config.Config{AuthToken: "secret"}, Deps{
		Movies:   store.Movies,
		Users:    store.Users,
		Provider: stubFetcher{},
		Reviews:  reviews,
		Follows:  follows,
		Catalog:  cat,
		Location: seoul,
		Now:      now,
	}, logger)

	return &testEnv{handler: srv.Handler(), store: store, catalog: cat, alice: alice, bob: bob}
}

func (e *testEnv) do(t testing.TB, method, path, caller string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != "" {
		req.Header.Set(userEmailHeader, caller)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t testing.TB, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t testing.TB, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, want, rec.Body.String())
	}
}

func TestHealthzWithoutChecker(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.do(t, http.MethodGet, "/healthz", "", nil), http.StatusOK)
}

func TestReviewLifecycle(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]interface{}{"movieId": 27205, "rating": 4.5, "content": " mind bending "}

	expectStatus(t, env.do(t, http.MethodPost, "/reviews", "", body), http.StatusUnauthorized)

	rec := env.do(t, http.MethodPost, "/reviews", env.alice.Email, body)
	expectStatus(t, rec, http.StatusCreated)
	var posted postReviewResponse
	decodeBody(t, rec, &posted)
	if !posted.MovieCreated {
		t.Fatalf("first review should materialize the movie")
	}
	if posted.Review.Content != "mind bending" || posted.Review.Author.ID != env.alice.ID {
		t.Fatalf("unexpected review: %+v", posted.Review)
	}

	rec = env.do(t, http.MethodPost, "/reviews", env.bob.Email, body)
	expectStatus(t, rec, http.StatusCreated)
	var second postReviewResponse
	decodeBody(t, rec, &second)
	if second.MovieCreated || second.Review.Movie.ID != posted.Review.Movie.ID {
		t.Fatalf("second review should reuse movie %s: %+v", posted.Review.Movie.ID, second)
	}

	rec = env.do(t, http.MethodGet, "/movies/"+posted.Review.Movie.ID+"/reviews", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var listed []reviewResponse
	decodeBody(t, rec, &listed)
	if len(listed) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(listed))
	}

	reviewPath := "/reviews/" + posted.Review.ID
	update := map[string]interface{}{"rating": 3.0, "content": "on reflection"}
	expectStatus(t, env.do(t, http.MethodPut, reviewPath, env.bob.Email, update), http.StatusForbidden)
	expectStatus(t, env.do(t, http.MethodPut, reviewPath, env.alice.Email, map[string]interface{}{"rating": 3.3}), http.StatusUnprocessableEntity)

	rec = env.do(t, http.MethodPut, reviewPath, env.alice.Email, update)
	expectStatus(t, rec, http.StatusOK)
	var updated reviewResponse
	decodeBody(t, rec, &updated)
	if updated.Rating != 3.0 || updated.Content != "on reflection" {
		t.Fatalf("update not applied: %+v", updated)
	}

	expectStatus(t, env.do(t, http.MethodDelete, reviewPath, env.bob.Email, nil), http.StatusForbidden)
	expectStatus(t, env.do(t, http.MethodDelete, reviewPath, env.alice.Email, nil), http.StatusNoContent)
	expectStatus(t, env.do(t, http.MethodDelete, reviewPath, env.alice.Email, nil), http.StatusNotFound)
}

func TestPostReviewValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body interface{}
		want int
	}{
		{"missing rating", map[string]interface{}{"movieId": 1}, http.StatusUnprocessableEntity},
		{"off step rating", map[string]interface{}{"movieId": 1, "rating": 4.2}, http.StatusUnprocessableEntity},
		{"unknown field", map[string]interface{}{"movieId": 1, "rating": 4.0, "stars": 4}, http.StatusBadRequest},
		{"wrong type", map[string]interface{}{"movieId": "one", "rating": 4.0}, http.StatusUnprocessableEntity},
		{"unknown upstream movie", map[string]interface{}{"movieId": 404, "rating": 4.0}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expectStatus(t, env.do(t, http.MethodPost, "/reviews", env.alice.Email, tc.body), tc.want)
		})
	}

	rec := env.do(t, http.MethodPost, "/reviews", "ghost@example.com", map[string]interface{}{"movieId": 7, "rating": 4.0})
	expectStatus(t, rec, http.StatusNotFound)
	rec = env.do(t, http.MethodGet, "/movies", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var movies movieListResponse
	decodeBody(t, rec, &movies)
	if len(movies.Items) != 0 {
		t.Fatalf("failed post must not leave a movie behind, got %d", len(movies.Items))
	}
}

func TestMoviesAndUsersRead(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.do(t, http.MethodPost, "/reviews", env.alice.Email, map[string]interface{}{"movieId": 27205, "rating": 5.0}), http.StatusCreated)

	rec := env.do(t, http.MethodGet, "/movies?q=incep&year=2010", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var movies movieListResponse
	decodeBody(t, rec, &movies)
	if len(movies.Items) != 1 || movies.Items[0].ExternalID != 27205 {
		t.Fatalf("unexpected movies: %+v", movies.Items)
	}
	if movies.Items[0].ReleaseDate == nil || *movies.Items[0].ReleaseDate != "2010-07-16" {
		t.Fatalf("release date not rendered: %+v", movies.Items[0].ReleaseDate)
	}

	expectStatus(t, env.do(t, http.MethodGet, "/movies/"+movies.Items[0].ID, "", nil), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodGet, "/movies/missing", "", nil), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodGet, "/movies?year=abc", "", nil), http.StatusBadRequest)

	rec = env.do(t, http.MethodGet, "/users/"+env.alice.ID, "", nil)
	expectStatus(t, rec, http.StatusOK)
	var user userResponse
	decodeBody(t, rec, &user)
	if user.Nickname != "alice" {
		t.Fatalf("unexpected user: %+v", user)
	}
	expectStatus(t, env.do(t, http.MethodGet, "/users/nobody", "", nil), http.StatusNotFound)

	rec = env.do(t, http.MethodGet, "/users/"+env.alice.ID+"/reviews", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var reviews []reviewResponse
	decodeBody(t, rec, &reviews)
	if len(reviews) != 1 || reviews[0].Movie.Title != "Inception" {
		t.Fatalf("unexpected user reviews: %+v", reviews)
	}
}

func TestProviderMovieDetail(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/movies/external/27205", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var detail movieDetailResponse
	decodeBody(t, rec, &detail)
	if detail.ExternalID != 27205 || detail.Runtime != 148 {
		t.Fatalf("unexpected detail: %+v", detail)
	}
	if len(detail.Directors) != 1 || detail.Directors[0] != "Christopher Nolan" {
		t.Fatalf("directors = %v", detail.Directors)
	}
	if len(detail.Cast) != 1 || detail.Cast[0].Character != "Cobb" {
		t.Fatalf("cast = %+v", detail.Cast)
	}
	if detail.Backdrops == nil || len(detail.Posters) != 1 {
		t.Fatalf("images = %v / %v", detail.Backdrops, detail.Posters)
	}

	expectStatus(t, env.do(t, http.MethodGet, "/movies/external/abc", "", nil), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodGet, "/movies/external/404", "", nil), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodGet, "/movies/external/500", "", nil), http.StatusBadGateway)

	// Looking a movie up does not add it to the catalog.
	rec = env.do(t, http.MethodGet, "/movies", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var movies movieListResponse
	decodeBody(t, rec, &movies)
	if len(movies.Items) != 0 {
		t.Fatalf("provider lookup materialized %d movies", len(movies.Items))
	}
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)

	expectStatus(t, env.do(t, http.MethodGet, "/me", "", nil), http.StatusUnauthorized)
	expectStatus(t, env.do(t, http.MethodGet, "/me", "ghost@example.com", nil), http.StatusNotFound)

	rec := env.do(t, http.MethodGet, "/me", env.bob.Email, nil)
	expectStatus(t, rec, http.StatusOK)
	var me userResponse
	decodeBody(t, rec, &me)
	if me.ID != env.bob.ID || me.Nickname != "bob" {
		t.Fatalf("unexpected profile: %+v", me)
	}
}

func TestListMoviesRejectsForeignCursor(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.do(t, http.MethodGet, "/movies?cursor=eyJpZCI6IngifQ==", "", nil), http.StatusBadRequest)
}

func TestRatingsCalendarUsesLocalDay(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.do(t, http.MethodPost, "/reviews", env.alice.Email, map[string]interface{}{"movieId": 27205, "rating": 4.0}), http.StatusCreated)

	rec := env.do(t, http.MethodGet, "/users/"+env.alice.ID+"/calendar", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var days []calendarDayResponse
	decodeBody(t, rec, &days)
	// 16:30 UTC is already the next day in Seoul.
	if len(days) != 1 || days[0].Date != "2024-05-02" || len(days[0].Reviews) != 1 {
		t.Fatalf("unexpected calendar: %+v", days)
	}

	expectStatus(t, env.do(t, http.MethodGet, "/users/nobody/calendar", "", nil), http.StatusNotFound)
}

func TestFollowEndpoints(t *testing.T) {
	env := newTestEnv(t)
	followBob := "/users/" + env.bob.ID + "/follow"

	expectStatus(t, env.do(t, http.MethodPost, followBob, "", nil), http.StatusUnauthorized)
	expectStatus(t, env.do(t, http.MethodPost, followBob, env.alice.Email, nil), http.StatusNoContent)
	expectStatus(t, env.do(t, http.MethodPost, followBob, env.alice.Email, nil), http.StatusNoContent)
	expectStatus(t, env.do(t, http.MethodPost, "/users/"+env.alice.ID+"/follow", env.alice.Email, nil), http.StatusConflict)

	rec := env.do(t, http.MethodGet, "/users/"+env.bob.ID+"/follow-counts", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var counts followCountsResponse
	decodeBody(t, rec, &counts)
	if counts.Followers != 1 || counts.Following != 0 {
		t.Fatalf("unexpected counts: %+v", counts)
	}

	rec = env.do(t, http.MethodGet, "/users/"+env.bob.ID+"/followers", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var followers []userSummaryResponse
	decodeBody(t, rec, &followers)
	if len(followers) != 1 || followers[0].ID != env.alice.ID {
		t.Fatalf("unexpected followers: %+v", followers)
	}

	rec = env.do(t, http.MethodGet, "/users/"+env.alice.ID+"/following", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var following []userSummaryResponse
	decodeBody(t, rec, &following)
	if len(following) != 1 || following[0].ID != env.bob.ID {
		t.Fatalf("unexpected following: %+v", following)
	}

	var status isFollowingResponse
	rec = env.do(t, http.MethodGet, "/users/"+env.bob.ID+"/is-following", env.alice.Email, nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &status)
	if !status.Following {
		t.Fatalf("alice should follow bob")
	}
	rec = env.do(t, http.MethodGet, "/users/"+env.bob.ID+"/is-following", "", nil)
	expectStatus(t, rec, http.StatusOK)
	status = isFollowingResponse{}
	decodeBody(t, rec, &status)
	if status.Following {
		t.Fatalf("anonymous viewer never follows")
	}

	expectStatus(t, env.do(t, http.MethodDelete, followBob, env.alice.Email, nil), http.StatusNoContent)
	expectStatus(t, env.do(t, http.MethodDelete, followBob, env.alice.Email, nil), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodGet, "/users/nobody/followers", "", nil), http.StatusNotFound)
}

func TestAdminSync(t *testing.T) {
	env := newTestEnv(t)

	expectStatus(t, env.do(t, http.MethodPost, "/admin/sync/popular", "", nil), http.StatusUnauthorized)

	call := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Authorization", "Bearer secret")
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		return rec
	}

	expectStatus(t, call("/admin/sync/trending"), http.StatusBadRequest)
	expectStatus(t, call("/admin/sync/popular?page=0"), http.StatusBadRequest)

	rec := call("/admin/sync/popular?page=3")
	expectStatus(t, rec, http.StatusOK)
	var result syncResponse
	decodeBody(t, rec, &result)
	if env.catalog.syncKind != tmdb.Popular || env.catalog.syncPage != 3 {
		t.Fatalf("catalog called with %s/%d", env.catalog.syncKind, env.catalog.syncPage)
	}
	if result.Inserted != 2 || result.Existing != 1 {
		t.Fatalf("unexpected sync result: %+v", result)
	}

	env.catalog.err = errors.Join(domain.ErrUpstream, errors.New("tmdb down"))
	expectStatus(t, call("/admin/sync/popular"), http.StatusBadGateway)
}

func TestDailyBoxOffice(t *testing.T) {
	env := newTestEnv(t)
	opened := time.Date(2024, 4, 24, 0, 0, 0, 0, time.UTC)
	env.catalog.reconcile = []catalog.RankedMatch{{
		Entry: domain.RankEntry{Rank: 1, Title: "범죄도시4", OpeningDate: &opened},
		Movie: domain.MovieSummary{ExternalID: 1017163, Title: "범죄도시4"},
	}}

	expectStatus(t, env.do(t, http.MethodGet, "/boxoffice/daily?date=20240501", "", nil), http.StatusBadRequest)

	rec := env.do(t, http.MethodGet, "/boxoffice/daily?date=2024-04-30", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var resp dailyBoxOfficeResponse
	decodeBody(t, rec, &resp)
	if resp.Date != "2024-04-30" || len(resp.Items) != 1 || resp.Items[0].Movie.ExternalID != 1017163 {
		t.Fatalf("unexpected ranking: %+v", resp)
	}
	if resp.Items[0].OpeningDate == nil || *resp.Items[0].OpeningDate != "2024-04-24" {
		t.Fatalf("opening date not rendered: %+v", resp.Items[0].OpeningDate)
	}

	rec = env.do(t, http.MethodGet, "/boxoffice/daily", "", nil)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &resp)
	// testClock is 2024-05-02 01:30 in Seoul, so yesterday is 2024-05-01.
	if resp.Date != "2024-05-01" {
		t.Fatalf("default date = %s, want 2024-05-01", resp.Date)
	}

	env.catalog.err = errors.Join(domain.ErrUpstream, errors.New("kofic down"))
	expectStatus(t, env.do(t, http.MethodGet, "/boxoffice/daily", "", nil), http.StatusBadGateway)
}

func BenchmarkPostReview(b *testing.B) {
	env := newTestEnv(b)
	body := map[string]interface{}{"movieId": 27205, "rating": 4.0, "content": "again"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := env.do(b, http.MethodPost, "/reviews", env.alice.Email, body)
		if rec.Code != http.StatusCreated {
			b.Fatalf("status = %d", rec.Code)
		}
	}
}
