package domain

import "time"

// User is owned by the identity subsystem; the core only reads it.
type User struct {
	ID         string
	Email      string
	Nickname   string
	ProfileImg *string
	CreatedAt  time.Time
}

// UserSummary is the public projection used in follower lists.
type UserSummary struct {
	ID         string
	Email      string
	Nickname   string
	ProfileImg *string
}

// Summary projects the user into its public summary.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:         u.ID,
		Email:      u.Email,
		Nickname:   u.Nickname,
		ProfileImg: u.ProfileImg,
	}
}
