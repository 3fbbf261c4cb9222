package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/cinesocial/internal/catalog"
	"github.com/Clark-Hu/cinesocial/internal/domain"
	"github.com/Clark-Hu/cinesocial/internal/repository"
	"github.com/Clark-Hu/cinesocial/internal/tmdb"
)

const dateLayout = "2006-01-02"

type movieListResponse struct {
	Items      []movieResponse `json:"items"`
	NextCursor *string         `json:"nextCursor,omitempty"`
}

type movieResponse struct {
	ID          string    `json:"id"`
	ExternalID  int64     `json:"externalId"`
	Title       string    `json:"title"`
	Overview    string    `json:"overview"`
	PosterPath  *string   `json:"posterPath,omitempty"`
	ReleaseDate *string   `json:"releaseDate,omitempty"`
	VoteAverage float64   `json:"voteAverage"`
	CreatedAt   time.Time `json:"createdAt"`
}

type castResponse struct {
	Name        string  `json:"name"`
	Character   string  `json:"character"`
	ProfilePath *string `json:"profilePath,omitempty"`
}

type movieDetailResponse struct {
	summaryResponse
	Runtime   int            `json:"runtime"`
	Genres    []string       `json:"genres"`
	Countries []string       `json:"countries"`
	Directors []string       `json:"directors"`
	Cast      []castResponse `json:"cast"`
	Backdrops []string       `json:"backdrops"`
	Posters   []string       `json:"posters"`
}

type summaryResponse struct {
	ExternalID    int64   `json:"externalId"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"originalTitle,omitempty"`
	Overview      string  `json:"overview"`
	PosterPath    *string `json:"posterPath,omitempty"`
	ReleaseDate   *string `json:"releaseDate,omitempty"`
	VoteAverage   float64 `json:"voteAverage"`
}

type rankedMatchResponse struct {
	Rank        int             `json:"rank"`
	RankedTitle string          `json:"rankedTitle"`
	OpeningDate *string         `json:"openingDate,omitempty"`
	Movie       summaryResponse `json:"movie"`
}

type dailyBoxOfficeResponse struct {
	Date  string                `json:"date"`
	Items []rankedMatchResponse `json:"items"`
}

type syncResponse struct {
	Kind     string `json:"kind"`
	Page     int    `json:"page"`
	Fetched  int    `json:"fetched"`
	Inserted int    `json:"inserted"`
	Existing int    `json:"existing"`
	Skipped  int    `json:"skipped"`
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	filters, err := buildMovieFilters(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	result, err := s.movies.List(r.Context(), filters)
	if err != nil {
		s.respondServiceError(w, "list movies", err)
		return
	}

	items := make([]movieResponse, 0, len(result.Items))
	for _, movie := range result.Items {
		items = append(items, toMovieResponse(movie))
	}
	s.respondJSON(w, http.StatusOK, movieListResponse{Items: items, NextCursor: result.NextCursor})
}

func buildMovieFilters(query url.Values) (repository.MovieListFilters, error) {
	var filters repository.MovieListFilters

	if q := strings.TrimSpace(query.Get("q")); q != "" {
		filters.Query = &q
	}
	if val := strings.TrimSpace(query.Get("year")); val != "" {
		year, err := strconv.Atoi(val)
		if err != nil {
			return filters, fmt.Errorf("invalid year value")
		}
		filters.Year = &year
	}
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil {
			return filters, fmt.Errorf("invalid limit value")
		}
		filters.Limit = limit
	}
	if val := strings.TrimSpace(query.Get("cursor")); val != "" {
		cursor, err := repository.DecodeCursor(val)
		if err != nil {
			return filters, fmt.Errorf("invalid cursor")
		}
		filters.Cursor = cursor
	}
	return filters, nil
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	movie, err := s.movies.GetByID(r.Context(), chi.URLParam(r, "movieID"))
	if err != nil {
		s.respondServiceError(w, "fetch movie", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toMovieResponse(movie))
}

// handleGetProviderMovie returns live provider detail, including credits and
// images, for a movie that may not be in the local catalog.
func (s *Server) handleGetProviderMovie(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "externalID"), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "externalID must be a positive integer")
		return
	}

	detail, err := s.provider.GetMovie(r.Context(), id, s.cfg.TMDBLanguage)
	if err != nil {
		if errors.Is(err, tmdb.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.respondServiceError(w, "fetch provider movie", fmt.Errorf("%w: %w", domain.ErrUpstream, err))
		return
	}
	s.respondJSON(w, http.StatusOK, toMovieDetailResponse(detail))
}

// handleDailyBoxOffice reconciles the ranking for ?date=YYYY-MM-DD, defaulting
// to yesterday in the calendar time zone.
func (s *Server) handleDailyBoxOffice(w http.ResponseWriter, r *http.Request) {
	date := s.now().In(s.location).AddDate(0, 0, -1)
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		parsed, err := time.ParseInLocation(dateLayout, raw, s.location)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "date must follow YYYY-MM-DD format")
			return
		}
		date = parsed
	}

	matches, err := s.catalog.ReconcileDailyRanking(r.Context(), date)
	if err != nil {
		s.respondServiceError(w, "reconcile box office", err)
		return
	}

	items := make([]rankedMatchResponse, 0, len(matches))
	for _, m := range matches {
		items = append(items, toRankedMatchResponse(m))
	}
	s.respondJSON(w, http.StatusOK, dailyBoxOfficeResponse{Date: date.Format(dateLayout), Items: items})
}

func (s *Server) handleAdminSync(w http.ResponseWriter, r *http.Request) {
	if !s.verifyBearer(r.Header.Get("Authorization")) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}
	kind, err := tmdb.ParseListKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	page := 1
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page <= 0 {
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid page value")
			return
		}
	}

	result, err := s.catalog.SyncList(r.Context(), kind, page)
	if err != nil {
		s.respondServiceError(w, "sync catalog", err)
		return
	}
	s.respondJSON(w, http.StatusOK, syncResponse{
		Kind:     string(result.Kind),
		Page:     result.Page,
		Fetched:  result.Fetched,
		Inserted: result.Inserted,
		Existing: result.Existing,
		Skipped:  result.Skipped,
	})
}

func toMovieResponse(movie domain.Movie) movieResponse {
	return movieResponse{
		ID:          movie.ID,
		ExternalID:  movie.ExternalID,
		Title:       movie.Title,
		Overview:    movie.Overview,
		PosterPath:  movie.PosterPath,
		ReleaseDate: formatDate(movie.ReleaseDate),
		VoteAverage: movie.VoteAverage,
		CreatedAt:   movie.CreatedAt,
	}
}

func toRankedMatchResponse(m catalog.RankedMatch) rankedMatchResponse {
	return rankedMatchResponse{
		Rank:        m.Entry.Rank,
		RankedTitle: m.Entry.Title,
		OpeningDate: formatDate(m.Entry.OpeningDate),
		Movie:       toSummaryResponse(m.Movie),
	}
}

func toSummaryResponse(m domain.MovieSummary) summaryResponse {
	return summaryResponse{
		ExternalID:    m.ExternalID,
		Title:         m.Title,
		OriginalTitle: m.OriginalTitle,
		Overview:      m.Overview,
		PosterPath:    m.PosterPath,
		ReleaseDate:   formatDate(m.ReleaseDate),
		VoteAverage:   m.VoteAverage,
	}
}

func toMovieDetailResponse(d *domain.MovieDetail) movieDetailResponse {
	cast := make([]castResponse, 0, len(d.Cast))
	for _, c := range d.Cast {
		cast = append(cast, castResponse{Name: c.Name, Character: c.Character, ProfilePath: c.ProfilePath})
	}
	return movieDetailResponse{
		summaryResponse: toSummaryResponse(d.MovieSummary),
		Runtime:         d.Runtime,
		Genres:          nonNil(d.Genres),
		Countries:       nonNil(d.Countries),
		Directors:       nonNil(d.Directors),
		Cast:            cast,
		Backdrops:       nonNil(d.Backdrops),
		Posters:         nonNil(d.Posters),
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.Format(dateLayout)
	return &formatted
}
