package tmdb

import "testing"

func FuzzResultSummary(f *testing.F) {
	f.Add(int64(550), "Fight Club", "1999-10-15", "/poster.jpg")
	f.Add(int64(0), "", "", "")
	f.Add(int64(-3), "x", "2024-13-40", "")

	f.Fuzz(func(t *testing.T, id int64, title, releaseDate, poster string) {
		result := Result{ID: id, Title: title, ReleaseDate: releaseDate, PosterPath: &poster}
		summary, err := result.Summary()
		if err != nil {
			return
		}
		if summary.ExternalID <= 0 {
			t.Fatalf("accepted non-positive id %d", summary.ExternalID)
		}
		if summary.PosterPath != nil && *summary.PosterPath == "" {
			t.Fatalf("empty poster path should be normalized to nil")
		}
	})
}
