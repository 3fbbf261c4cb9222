package catalog

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Clark-Hu/cinesocial/internal/domain"
	"github.com/Clark-Hu/cinesocial/internal/repository/memstore"
	"github.com/Clark-Hu/cinesocial/internal/tmdb"
)

type fakeCatalog struct {
	mu       sync.Mutex
	pages    map[int]*tmdb.Page
	pageErrs map[int]error
	search   func(ctx context.Context, query string) (*tmdb.Page, error)
	requests []string
}

func (f *fakeCatalog) GetMovie(context.Context, int64, string) (*domain.MovieDetail, error) {
	return nil, tmdb.ErrNotFound
}

func (f *fakeCatalog) Search(ctx context.Context, query string, _ int, _ string) (*tmdb.Page, error) {
	f.mu.Lock()
	f.requests = append(f.requests, query)
	f.mu.Unlock()
	return f.search(ctx, query)
}

func (f *fakeCatalog) GetPage(_ context.Context, _ tmdb.ListKind, page int, _, _ string) (*tmdb.Page, error) {
	if err := f.pageErrs[page]; err != nil {
		return nil, err
	}
	if p, ok := f.pages[page]; ok {
		return p, nil
	}
	return &tmdb.Page{Page: page}, nil
}

type fakeRanking struct {
	entries []domain.RankEntry
	err     error
}

func (f *fakeRanking) DailyRanking(context.Context, time.Time) ([]domain.RankEntry, error) {
	return f.entries, f.err
}

func hit(id int64, title string) *tmdb.Page {
	return &tmdb.Page{Page: 1, Results: []tmdb.Result{{ID: id, Title: title, ReleaseDate: "2024-01-01"}}}
}

type EngineSuite struct {
	suite.Suite
	store   *memstore.Store
	catalog *fakeCatalog
	ranking *fakeRanking
	reg     *prometheus.Registry
	engine  *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.store = memstore.New()
	s.catalog = &fakeCatalog{pages: map[int]*tmdb.Page{}, pageErrs: map[int]error{}}
	s.ranking = &fakeRanking{}
	s.reg = prometheus.NewRegistry()
	s.engine = NewEngine(s.catalog, s.ranking, s.store.Movies, Options{
		Language:    "ko-KR",
		Region:      "KR",
		Concurrency: 4,
		Metrics:     NewMetrics(s.reg),
		Logger:      log.New(io.Discard, "", 0),
	})
}

func (s *EngineSuite) TestSyncListInsertsAndSkipsMalformed() {
	s.catalog.pages[1] = &tmdb.Page{Page: 1, Results: []tmdb.Result{
		{ID: 1, Title: "One", ReleaseDate: "2024-01-01"},
		{ID: 2, Title: "Two", ReleaseDate: "bad-date"},
		{ID: 3, Title: "Three"},
	}}

	result, err := s.engine.SyncList(context.Background(), tmdb.NowPlaying, 1)
	s.Require().NoError(err)
	s.Equal(SyncResult{Kind: tmdb.NowPlaying, Page: 1, Fetched: 3, Inserted: 2, Skipped: 1}, result)

	all, err := s.store.Movies.ListAll(context.Background())
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *EngineSuite) TestSyncListNeverOverwrites() {
	s.catalog.pages[1] = &tmdb.Page{Page: 1, Results: []tmdb.Result{{ID: 7, Title: "Original"}}}
	_, err := s.engine.SyncList(context.Background(), tmdb.NowPlaying, 1)
	s.Require().NoError(err)

	s.catalog.pages[1] = &tmdb.Page{Page: 1, Results: []tmdb.Result{{ID: 7, Title: "Retitled", VoteAverage: 9.9}}}
	result, err := s.engine.SyncList(context.Background(), tmdb.NowPlaying, 1)
	s.Require().NoError(err)
	s.Equal(0, result.Inserted)
	s.Equal(1, result.Existing)

	movie, err := s.store.Movies.GetByExternalID(context.Background(), 7)
	s.Require().NoError(err)
	s.Equal("Original", movie.Title)
}

func (s *EngineSuite) TestSyncNowPlayingFetchFailure() {
	s.catalog.pageErrs[1] = errors.New("connection reset")
	err := s.engine.SyncNowPlaying(context.Background(), 1)
	s.Require().ErrorIs(err, domain.ErrUpstream)

	all, err := s.store.Movies.ListAll(context.Background())
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *EngineSuite) TestSyncPagesStopsAtFirstFailure() {
	s.catalog.pages[1] = &tmdb.Page{Page: 1, Results: []tmdb.Result{{ID: 1, Title: "A"}}}
	s.catalog.pageErrs[2] = errors.New("boom")
	s.catalog.pages[3] = &tmdb.Page{Page: 3, Results: []tmdb.Result{{ID: 3, Title: "C"}}}

	results, err := s.engine.SyncPages(context.Background(), tmdb.Popular, 1, 3)
	s.Require().ErrorIs(err, domain.ErrUpstream)
	s.Len(results, 1)

	_, err = s.store.Movies.GetByExternalID(context.Background(), 3)
	s.ErrorIs(err, domain.ErrNotFound)

	_, err = s.engine.SyncPages(context.Background(), tmdb.Popular, 2, 1)
	s.ErrorIs(err, domain.ErrValidation)
}

func (s *EngineSuite) TestReconcileDropsFailedSearchAndKeepsOrder() {
	s.ranking.entries = []domain.RankEntry{
		{Rank: 1, Title: "T1"},
		{Rank: 2, Title: "T2"},
		{Rank: 3, Title: "T3"},
	}
	s.catalog.search = func(_ context.Context, query string) (*tmdb.Page, error) {
		switch query {
		case "T1":
			// Slowest search finishes last but must still be listed first.
			time.Sleep(30 * time.Millisecond)
			return hit(101, "M1"), nil
		case "T2":
			return nil, errors.New("upstream 500")
		default:
			return hit(103, "M3"), nil
		}
	}

	matches, err := s.engine.ReconcileDailyRanking(context.Background(), time.Now())
	s.Require().NoError(err)
	s.Require().Len(matches, 2)
	s.Equal(1, matches[0].Entry.Rank)
	s.Equal(int64(101), matches[0].Movie.ExternalID)
	s.Equal(3, matches[1].Entry.Rank)
	s.Equal(int64(103), matches[1].Movie.ExternalID)
	s.Len(s.catalog.requests, 3)

	all, err := s.store.Movies.ListAll(context.Background())
	s.Require().NoError(err)
	s.Empty(all, "reconciliation must not touch the catalog store")
}

func (s *EngineSuite) TestReconcileDropsEmptySearch() {
	s.ranking.entries = []domain.RankEntry{{Rank: 1, Title: "Unknown"}, {Rank: 2, Title: "Known"}}
	s.catalog.search = func(_ context.Context, query string) (*tmdb.Page, error) {
		if query == "Unknown" {
			return &tmdb.Page{Page: 1}, nil
		}
		return &tmdb.Page{Page: 1, Results: []tmdb.Result{{ID: 5, Title: "First"}, {ID: 6, Title: "Second"}}}, nil
	}

	matches, err := s.engine.ReconcileDailyRanking(context.Background(), time.Now())
	s.Require().NoError(err)
	s.Require().Len(matches, 1)
	s.Equal("Known", matches[0].Entry.Title)
	s.Equal(int64(5), matches[0].Movie.ExternalID, "first search result wins")
}

func (s *EngineSuite) TestReconcileRankingFailure() {
	s.ranking.err = errors.New("feed down")
	_, err := s.engine.ReconcileDailyRanking(context.Background(), time.Now())
	s.ErrorIs(err, domain.ErrUpstream)
}

func (s *EngineSuite) TestReconcileCancelledReturnsPartial() {
	engine := NewEngine(s.catalog, s.ranking, s.store.Movies, Options{Concurrency: 1, Logger: log.New(io.Discard, "", 0)})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.ranking.entries = []domain.RankEntry{{Rank: 1, Title: "A"}, {Rank: 2, Title: "B"}, {Rank: 3, Title: "C"}}
	s.catalog.search = func(_ context.Context, query string) (*tmdb.Page, error) {
		if query == "B" {
			cancel()
			return nil, context.Canceled
		}
		return hit(1, query), nil
	}

	matches, err := engine.ReconcileDailyRanking(ctx, time.Now())
	s.ErrorIs(err, context.Canceled)
	s.Require().Len(matches, 1)
	s.Equal("A", matches[0].Entry.Title)
}

func TestMetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.movie("now_playing", "inserted")
	m.page("now_playing", "ok")
	m.entry("matched")
	m.reconcileTook(time.Second)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 4)

	var nilMetrics *Metrics
	nilMetrics.movie("x", "y")
}
