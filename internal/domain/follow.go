package domain

import "time"

// FollowEdge is a directed follower -> following relationship.
type FollowEdge struct {
	ID          string
	FollowerID  string
	FollowingID string
	CreatedAt   time.Time
}

// FollowCounts holds both sides of a user's follow graph degree.
type FollowCounts struct {
	Followers int64
	Following int64
}
