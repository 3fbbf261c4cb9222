package httpserver

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/cinesocial/internal/domain"
	"github.com/Clark-Hu/cinesocial/internal/review"
)

type reviewSubmitRequest struct {
	MovieID *int64   `json:"movieId"`
	Rating  *float64 `json:"rating"`
	Content *string  `json:"content"`
}

type reviewUpdateRequest struct {
	Rating  *float64 `json:"rating"`
	Content *string  `json:"content"`
}

type reviewAuthorResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

type reviewMovieResponse struct {
	ID         string `json:"id"`
	ExternalID int64  `json:"externalId"`
	Title      string `json:"title"`
}

type reviewResponse struct {
	ID        string               `json:"id"`
	Rating    float64              `json:"rating"`
	Content   string               `json:"content"`
	Author    reviewAuthorResponse `json:"author"`
	Movie     reviewMovieResponse  `json:"movie"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

type postReviewResponse struct {
	Review       reviewResponse `json:"review"`
	MovieCreated bool           `json:"movieCreated"`
}

type calendarDayResponse struct {
	Date    string           `json:"date"`
	Reviews []reviewResponse `json:"reviews"`
}

type userResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Nickname   string    `json:"nickname"`
	ProfileImg *string   `json:"profileImg,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (s *Server) handleListMovieReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.reviews.ListReviews(r.Context(), chi.URLParam(r, "movieID"))
	if err != nil {
		s.respondServiceError(w, "list reviews", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewResponses(reviews))
}

func (s *Server) handlePostReview(w http.ResponseWriter, r *http.Request) {
	email, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	var req reviewSubmitRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.MovieID == nil || req.Rating == nil {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "movieId and rating are required")
		return
	}
	content := ""
	if req.Content != nil {
		content = strings.TrimSpace(*req.Content)
	}

	created, movieCreated, err := s.reviews.PostReview(r.Context(), review.PostInput{
		MovieExternalID: *req.MovieID,
		Rating:          *req.Rating,
		Content:         content,
		AuthorEmail:     email,
	})
	if err != nil {
		s.respondServiceError(w, "post review", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, postReviewResponse{
		Review:       toReviewResponse(created),
		MovieCreated: movieCreated,
	})
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	email, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	var req reviewUpdateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.Rating == nil {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "rating is required")
		return
	}
	content := ""
	if req.Content != nil {
		content = strings.TrimSpace(*req.Content)
	}

	updated, err := s.reviews.UpdateReview(r.Context(), chi.URLParam(r, "reviewID"), *req.Rating, content, email)
	if err != nil {
		s.respondServiceError(w, "update review", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewResponse(updated))
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	email, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	if err := s.reviews.DeleteReview(r.Context(), chi.URLParam(r, "reviewID"), email); err != nil {
		s.respondServiceError(w, "delete review", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetByID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.respondServiceError(w, "fetch user", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(user))
}

// handleMe returns the profile of the calling user.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	email, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	user, err := s.users.GetByEmail(r.Context(), email)
	if err != nil {
		s.respondServiceError(w, "fetch caller", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleListUserReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.reviews.ListReviewsByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.respondServiceError(w, "list user reviews", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewResponses(reviews))
}

// handleRatingsCalendar renders the calendar as days in ascending date order.
func (s *Server) handleRatingsCalendar(w http.ResponseWriter, r *http.Request) {
	calendar, err := s.reviews.RatingsCalendar(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.respondServiceError(w, "build calendar", err)
		return
	}

	days := make([]string, 0, len(calendar))
	for day := range calendar {
		days = append(days, day)
	}
	sort.Strings(days)

	resp := make([]calendarDayResponse, 0, len(days))
	for _, day := range days {
		resp = append(resp, calendarDayResponse{Date: day, Reviews: toReviewResponses(calendar[day])})
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func toUserResponse(user domain.User) userResponse {
	return userResponse{
		ID:         user.ID,
		Email:      user.Email,
		Nickname:   user.Nickname,
		ProfileImg: user.ProfileImg,
		CreatedAt:  user.CreatedAt,
	}
}

func toReviewResponses(reviews []domain.Review) []reviewResponse {
	out := make([]reviewResponse, 0, len(reviews))
	for _, rv := range reviews {
		out = append(out, toReviewResponse(rv))
	}
	return out
}

func toReviewResponse(rv domain.Review) reviewResponse {
	return reviewResponse{
		ID:      rv.ID,
		Rating:  rv.Rating,
		Content: rv.Content,
		Author: reviewAuthorResponse{
			ID:       rv.UserID,
			Email:    rv.AuthorEmail,
			Nickname: rv.AuthorNickname,
		},
		Movie: reviewMovieResponse{
			ID:         rv.MovieID,
			ExternalID: rv.MovieExternalID,
			Title:      rv.MovieTitle,
		},
		CreatedAt: rv.CreatedAt,
		UpdatedAt: rv.UpdatedAt,
	}
}
