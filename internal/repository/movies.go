package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/cinesocial/internal/domain"
	"github.com/Clark-Hu/cinesocial/internal/store"
)

// MoviesRepository persists the local movie catalog keyed by external id.
type MoviesRepository struct {
	st *store.Store
}

const movieColumns = `
    id::text,
    external_id,
    title,
    overview,
    poster_path,
    release_date,
    vote_average,
    created_at
`

// MovieListFilters encapsulates search and pagination options.
type MovieListFilters struct {
	Query  *string
	Year   *int
	Limit  int
	Cursor *MovieCursor
}

// MovieCursor allows stable pagination by created_at/id.
type MovieCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

// MovieListResult returns the paginated payload.
type MovieListResult struct {
	Items      []domain.Movie
	NextCursor *string
}

// Upsert inserts the movie unless a row with the same external id already
// exists, in which case the stored row is returned untouched. The boolean
// reports whether this call created the row.
func (r *MoviesRepository) Upsert(ctx context.Context, movie domain.Movie) (domain.Movie, bool, error) {
	if movie.ExternalID <= 0 {
		return domain.Movie{}, false, fmt.Errorf("upsert movie: %w: external id must be positive", domain.ErrValidation)
	}

	query := fmt.Sprintf(`
        INSERT INTO movies (id, external_id, title, overview, poster_path, release_date, vote_average)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (external_id) DO NOTHING
        RETURNING %s
    `, movieColumns)

	row := r.st.Conn(ctx).QueryRow(ctx, query,
		uuid.New(),
		movie.ExternalID,
		movie.Title,
		movie.Overview,
		movie.PosterPath,
		movie.ReleaseDate,
		movie.VoteAverage,
	)
	stored, err := scanMovie(row)
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Movie{}, false, fmt.Errorf("insert movie %d: %w", movie.ExternalID, err)
	}

	existing, err := r.GetByExternalID(ctx, movie.ExternalID)
	if err != nil {
		return domain.Movie{}, false, err
	}
	return existing, false, nil
}

// GetByID fetches a movie by its local identifier.
func (r *MoviesRepository) GetByID(ctx context.Context, id string) (domain.Movie, error) {
	if !validID(id) {
		return domain.Movie{}, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE id = $1`, movieColumns)
	movie, err := scanMovie(r.st.Conn(ctx).QueryRow(ctx, query, uuid.MustParse(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Movie{}, ErrNotFound
		}
		return domain.Movie{}, err
	}
	return movie, nil
}

// GetByExternalID fetches a movie by the provider's identifier.
func (r *MoviesRepository) GetByExternalID(ctx context.Context, externalID int64) (domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE external_id = $1`, movieColumns)
	movie, err := scanMovie(r.st.Conn(ctx).QueryRow(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Movie{}, ErrNotFound
		}
		return domain.Movie{}, err
	}
	return movie, nil
}

// ListAll returns the whole catalog, newest first.
func (r *MoviesRepository) ListAll(ctx context.Context) ([]domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies ORDER BY created_at DESC, id DESC`, movieColumns)
	rows, err := r.st.Conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movies := make([]domain.Movie, 0)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		movies = append(movies, movie)
	}
	return movies, rows.Err()
}

// List returns movies that match the provided filters.
func (r *MoviesRepository) List(ctx context.Context, filters MovieListFilters) (MovieListResult, error) {
	filters.Limit = ClampLimit(filters.Limit)

	where := make([]string, 0)
	args := make([]interface{}, 0)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Query != nil && strings.TrimSpace(*filters.Query) != "" {
		pattern := "%" + strings.TrimSpace(*filters.Query) + "%"
		where = append(where, fmt.Sprintf("title ILIKE %s", arg(pattern)))
	}
	if filters.Year != nil {
		where = append(where, fmt.Sprintf("release_year = %s", arg(*filters.Year)))
	}
	if filters.Cursor != nil {
		cursorID, err := uuid.Parse(filters.Cursor.ID)
		if err != nil {
			return MovieListResult{}, fmt.Errorf("%w: invalid cursor id", domain.ErrValidation)
		}
		cursorCreated := arg(filters.Cursor.CreatedAt)
		where = append(where, fmt.Sprintf("(created_at, id) < (%s, %s)", cursorCreated, arg(cursorID)))
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(movieColumns)
	queryBuilder.WriteString(" FROM movies")

	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(where, " AND "))
	}

	queryBuilder.WriteString(" ORDER BY created_at DESC, id DESC")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", filters.Limit))

	rows, err := r.st.Conn(ctx).Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return MovieListResult{}, err
	}
	defer rows.Close()

	items := make([]domain.Movie, 0)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return MovieListResult{}, err
		}
		items = append(items, movie)
	}
	if err := rows.Err(); err != nil {
		return MovieListResult{}, err
	}

	return pageResult(items, filters.Limit)
}

// ClampLimit normalizes a requested page size into [1, 100], defaulting to 20.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

func pageResult(items []domain.Movie, limit int) (MovieListResult, error) {
	var nextCursor *string
	if len(items) == limit {
		last := items[len(items)-1]
		token, err := EncodeCursor(MovieCursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return MovieListResult{}, err
		}
		nextCursor = &token
	}
	return MovieListResult{Items: items, NextCursor: nextCursor}, nil
}

func scanMovie(row pgx.Row) (domain.Movie, error) {
	var (
		movie       domain.Movie
		posterPath  *string
		releaseDate *time.Time
	)

	err := row.Scan(
		&movie.ID,
		&movie.ExternalID,
		&movie.Title,
		&movie.Overview,
		&posterPath,
		&releaseDate,
		&movie.VoteAverage,
		&movie.CreatedAt,
	)
	if err != nil {
		return domain.Movie{}, err
	}

	movie.PosterPath = posterPath
	movie.ReleaseDate = releaseDate
	return movie, nil
}

// EncodeCursor serializes a cursor into an opaque token.
func EncodeCursor(c MovieCursor) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(payload), nil
}

// DecodeCursor parses a cursor token into a MovieCursor.
func DecodeCursor(token string) (*MovieCursor, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var cursor MovieCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor payload: %w", err)
	}
	if !validID(cursor.ID) || cursor.CreatedAt.IsZero() {
		return nil, fmt.Errorf("invalid cursor position")
	}
	return &cursor, nil
}
