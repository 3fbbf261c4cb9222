package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/cinesocial/internal/domain"
)

type userSummaryResponse struct {
	ID         string  `json:"id"`
	Email      string  `json:"email"`
	Nickname   string  `json:"nickname"`
	ProfileImg *string `json:"profileImg,omitempty"`
}

type followCountsResponse struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
}

type isFollowingResponse struct {
	Following bool `json:"following"`
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	email, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	if err := s.follows.Follow(r.Context(), email, chi.URLParam(r, "userID")); err != nil {
		s.respondServiceError(w, "follow user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	email, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	if err := s.follows.Unfollow(r.Context(), email, chi.URLParam(r, "userID")); err != nil {
		s.respondServiceError(w, "unfollow user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFollowers(w http.ResponseWriter, r *http.Request) {
	users, err := s.follows.Followers(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.respondServiceError(w, "list followers", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toUserSummaryResponses(users))
}

func (s *Server) handleFollowing(w http.ResponseWriter, r *http.Request) {
	users, err := s.follows.Following(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.respondServiceError(w, "list following", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toUserSummaryResponses(users))
}

func (s *Server) handleFollowCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.follows.Counts(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.respondServiceError(w, "count follows", err)
		return
	}
	s.respondJSON(w, http.StatusOK, followCountsResponse{Followers: counts.Followers, Following: counts.Following})
}

// handleIsFollowing answers for anonymous callers too; they never follow anyone.
func (s *Server) handleIsFollowing(w http.ResponseWriter, r *http.Request) {
	following, err := s.follows.IsFollowing(r.Context(), callerEmail(r), chi.URLParam(r, "userID"))
	if err != nil {
		s.respondServiceError(w, "check follow", err)
		return
	}
	s.respondJSON(w, http.StatusOK, isFollowingResponse{Following: following})
}

func toUserSummaryResponses(users []domain.UserSummary) []userSummaryResponse {
	out := make([]userSummaryResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userSummaryResponse{
			ID:         u.ID,
			Email:      u.Email,
			Nickname:   u.Nickname,
			ProfileImg: u.ProfileImg,
		})
	}
	return out
}
