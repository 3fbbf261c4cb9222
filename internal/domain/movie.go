package domain

import "time"

// Movie is a locally cached catalog entry sourced from the external catalog.
type Movie struct {
	ID          string
	ExternalID  int64
	Title       string
	Overview    string
	PosterPath  *string
	ReleaseDate *time.Time
	VoteAverage float64
	CreatedAt   time.Time
}

// MovieSummary is a single entry of an external listing or search page.
type MovieSummary struct {
	ExternalID    int64
	Title         string
	OriginalTitle string
	Overview      string
	PosterPath    *string
	ReleaseDate   *time.Time
	VoteAverage   float64
	Popularity    float64
}

// MovieDetail is the full external record for a single movie.
type MovieDetail struct {
	MovieSummary
	Runtime   int
	Genres    []string
	Countries []string
	Directors []string
	Cast      []CastMember
	Backdrops []string
	Posters   []string
}

// CastMember is one billed performer, in billing order.
type CastMember struct {
	Name        string
	Character   string
	ProfilePath *string
}

// ToMovie converts an external summary into a catalog row candidate.
func (s MovieSummary) ToMovie() Movie {
	return Movie{
		ExternalID:  s.ExternalID,
		Title:       s.Title,
		Overview:    s.Overview,
		PosterPath:  s.PosterPath,
		ReleaseDate: s.ReleaseDate,
		VoteAverage: s.VoteAverage,
	}
}

// RankEntry is one row of a dated external ranking.
type RankEntry struct {
	Rank        int
	Title       string
	OpeningDate *time.Time
}
