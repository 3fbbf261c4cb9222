package memstore

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/Clark-Hu/cinesocial/internal/domain"
	"github.com/Clark-Hu/cinesocial/internal/repository"
)

type movieRow struct {
	movie domain.Movie
}

// Movies mirrors repository.MoviesRepository.
type Movies struct {
	s *Store
}

// Upsert inserts the movie unless its external id is already present.
func (m *Movies) Upsert(ctx context.Context, movie domain.Movie) (domain.Movie, bool, error) {
	if movie.ExternalID <= 0 {
		return domain.Movie{}, false, fmt.Errorf("upsert movie: %w: external id must be positive", domain.ErrValidation)
	}
	defer m.s.lock(ctx)()

	if id, ok := m.s.t.byExternal[movie.ExternalID]; ok {
		return m.s.t.movies[id].movie, false, nil
	}
	movie.ID = uuid.NewString()
	movie.CreatedAt = m.s.tick()
	m.s.t.movies[movie.ID] = movieRow{movie: movie}
	m.s.t.byExternal[movie.ExternalID] = movie.ID
	return movie, true, nil
}

// GetByID fetches a movie by local id.
func (m *Movies) GetByID(ctx context.Context, id string) (domain.Movie, error) {
	defer m.s.lock(ctx)()
	row, ok := m.s.t.movies[id]
	if !ok {
		return domain.Movie{}, repository.ErrNotFound
	}
	return row.movie, nil
}

// GetByExternalID fetches a movie by provider id.
func (m *Movies) GetByExternalID(ctx context.Context, externalID int64) (domain.Movie, error) {
	defer m.s.lock(ctx)()
	id, ok := m.s.t.byExternal[externalID]
	if !ok {
		return domain.Movie{}, repository.ErrNotFound
	}
	return m.s.t.movies[id].movie, nil
}

// ListAll returns every movie, newest first.
func (m *Movies) ListAll(ctx context.Context) ([]domain.Movie, error) {
	defer m.s.lock(ctx)()
	return m.sorted(), nil
}

// List applies title/year filters and keyset pagination.
func (m *Movies) List(ctx context.Context, filters repository.MovieListFilters) (repository.MovieListResult, error) {
	filters.Limit = repository.ClampLimit(filters.Limit)
	defer m.s.lock(ctx)()

	var query string
	if filters.Query != nil {
		query = strings.ToLower(strings.TrimSpace(*filters.Query))
	}

	items := make([]domain.Movie, 0, filters.Limit)
	for _, movie := range m.sorted() {
		if query != "" && !strings.Contains(strings.ToLower(movie.Title), query) {
			continue
		}
		if filters.Year != nil && (movie.ReleaseDate == nil || movie.ReleaseDate.Year() != *filters.Year) {
			continue
		}
		if c := filters.Cursor; c != nil {
			if movie.CreatedAt.After(c.CreatedAt) || (movie.CreatedAt.Equal(c.CreatedAt) && movie.ID >= c.ID) {
				continue
			}
		}
		items = append(items, movie)
		if len(items) == filters.Limit {
			break
		}
	}

	var next *string
	if len(items) == filters.Limit {
		last := items[len(items)-1]
		token, err := repository.EncodeCursor(repository.MovieCursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return repository.MovieListResult{}, err
		}
		next = &token
	}
	return repository.MovieListResult{Items: items, NextCursor: next}, nil
}

func (m *Movies) sorted() []domain.Movie {
	rows := make([]movieRow, 0, len(m.s.t.movies))
	for _, row := range m.s.t.movies {
		rows = append(rows, row)
	}
	slices.SortFunc(rows, func(a, b movieRow) int {
		if c := b.movie.CreatedAt.Compare(a.movie.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.movie.ID, a.movie.ID)
	})
	out := make([]domain.Movie, len(rows))
	for i, row := range rows {
		out[i] = row.movie
	}
	return out
}
