package domain

import "time"

// Review is a user's rating and comment for a movie.
type Review struct {
	ID              string
	UserID          string
	AuthorEmail     string
	AuthorNickname  string
	MovieID         string
	MovieExternalID int64
	MovieTitle      string
	Rating          float64
	Content         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OwnedBy reports whether the review was written by the user with the given email.
func (r Review) OwnedBy(email string) bool {
	return email != "" && r.AuthorEmail == email
}
