package httpserver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Clark-Hu/cinesocial/internal/catalog"
	"github.com/Clark-Hu/cinesocial/internal/config"
	"github.com/Clark-Hu/cinesocial/internal/domain"
	"github.com/Clark-Hu/cinesocial/internal/repository"
	"github.com/Clark-Hu/cinesocial/internal/review"
	"github.com/Clark-Hu/cinesocial/internal/tmdb"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// MovieReader serves the catalog read API.
type MovieReader interface {
	GetByID(ctx context.Context, id string) (domain.Movie, error)
	List(ctx context.Context, filters repository.MovieListFilters) (repository.MovieListResult, error)
}

// UserReader resolves user profiles by id or by the caller's email.
type UserReader interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
}

// MovieProvider serves live detail from the external catalog.
type MovieProvider interface {
	GetMovie(ctx context.Context, id int64, language string) (*domain.MovieDetail, error)
}

// ReviewService is the review aggregate as seen by handlers.
type ReviewService interface {
	ListReviews(ctx context.Context, movieID string) ([]domain.Review, error)
	ListReviewsByUser(ctx context.Context, userID string) ([]domain.Review, error)
	PostReview(ctx context.Context, in review.PostInput) (domain.Review, bool, error)
	UpdateReview(ctx context.Context, reviewID string, rating float64, content, actorEmail string) (domain.Review, error)
	DeleteReview(ctx context.Context, reviewID, actorEmail string) error
	RatingsCalendar(ctx context.Context, userID string) (map[string][]domain.Review, error)
}

// FollowService is the follow graph as seen by handlers.
type FollowService interface {
	Follow(ctx context.Context, followerEmail, followingID string) error
	Unfollow(ctx context.Context, followerEmail, followingID string) error
	Counts(ctx context.Context, userID string) (domain.FollowCounts, error)
	Followers(ctx context.Context, userID string) ([]domain.UserSummary, error)
	Following(ctx context.Context, userID string) ([]domain.UserSummary, error)
	IsFollowing(ctx context.Context, viewerEmail, targetID string) (bool, error)
}

// CatalogService exposes sync and reconciliation to operators.
type CatalogService interface {
	SyncList(ctx context.Context, kind tmdb.ListKind, page int) (catalog.SyncResult, error)
	ReconcileDailyRanking(ctx context.Context, date time.Time) ([]catalog.RankedMatch, error)
}

// Deps bundles the collaborators the handlers call into.
type Deps struct {
	Health   HealthChecker
	Movies   MovieReader
	Users    UserReader
	Provider MovieProvider
	Reviews  ReviewService
	Follows  FollowService
	Catalog  CatalogService
	Metrics  http.Handler
	Location *time.Location
	Now      func() time.Time
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg      config.Config
	health   HealthChecker
	movies   MovieReader
	users    UserReader
	provider MovieProvider
	reviews  ReviewService
	follows  FollowService
	catalog  CatalogService
	metrics  http.Handler
	location *time.Location
	now      func() time.Time
	logger   *log.Logger
	router   chi.Router
	httpSrv  *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, deps Deps, logger *log.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

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

	s := &Server{
		cfg:      cfg,
		health:   deps.Health,
		movies:   deps.Movies,
		users:    deps.Users,
		provider: deps.Provider,
		reviews:  deps.Reviews,
		follows:  deps.Follows,
		catalog:  deps.Catalog,
		metrics:  deps.Metrics,
		location: loc,
		now:      now,
		logger:   logger,
		router:   r,
	}
	s.registerRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics)
	}

	s.router.Route("/movies", func(r chi.Router) {
		r.Get("/", s.handleListMovies)
		r.Get("/external/{externalID}", s.handleGetProviderMovie)
		r.Route("/{movieID}", func(r chi.Router) {
			r.Get("/", s.handleGetMovie)
			r.Get("/reviews", s.handleListMovieReviews)
		})
	})

	s.router.Route("/reviews", func(r chi.Router) {
		r.Post("/", s.handlePostReview)
		r.Put("/{reviewID}", s.handleUpdateReview)
		r.Delete("/{reviewID}", s.handleDeleteReview)
	})

	s.router.Get("/me", s.handleMe)

	s.router.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/", s.handleGetUser)
		r.Get("/reviews", s.handleListUserReviews)
		r.Get("/calendar", s.handleRatingsCalendar)
		r.Get("/followers", s.handleFollowers)
		r.Get("/following", s.handleFollowing)
		r.Get("/follow-counts", s.handleFollowCounts)
		r.Get("/is-following", s.handleIsFollowing)
		r.Post("/follow", s.handleFollow)
		r.Delete("/follow", s.handleUnfollow)
	})

	s.router.Get("/boxoffice/daily", s.handleDailyBoxOffice)
	s.router.Post("/admin/sync/{kind}", s.handleAdminSync)
}

// Start boots the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.health != nil {
		if err := s.health.HealthCheck(ctx); err != nil {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
