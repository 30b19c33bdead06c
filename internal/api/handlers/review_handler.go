package handlers

import (
	"context"
	"net/http"

	"github.com/hearthtable/marketplace/internal/api/middleware"
	"github.com/hearthtable/marketplace/internal/application/services"
	"github.com/hearthtable/marketplace/internal/domain/entities"
)

// ReviewService defines the interface for listing reviews
type ReviewService interface {
	Submit(ctx context.Context, session *entities.Session, listingID string, input services.ReviewInput) (*entities.Review, *entities.RatingSummary, error)
	List(ctx context.Context, listingID string, page, perPage int) ([]*entities.Review, error)
	Mine(ctx context.Context, session *entities.Session, listingID string) (*entities.Review, error)
}

// ReviewHandler handles guest reviews
type ReviewHandler struct {
	service ReviewService
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(service ReviewService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

// ListReviews handles GET /api/listings/{id}/reviews?page=&per_page=
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r)
	reviews, err := h.service.List(r.Context(), r.PathValue("id"), page, perPage)
	if err != nil {
		respondWithAppError(w, r, err, "failed to fetch reviews")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"reviews": reviews})
}

// SubmitReview handles POST /api/listings/{id}/reviews. Resubmitting replaces
// the caller's earlier review.
func (h *ReviewHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var input services.ReviewInput
	if !decodeJSON(w, r, &input) {
		return
	}

	review, summary, err := h.service.Submit(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"), input)
	if err != nil {
		respondWithAppError(w, r, err, "failed to save review")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"review":  review,
		"summary": summary,
	})
}

// MyReview handles GET /api/listings/{id}/reviews/mine
func (h *ReviewHandler) MyReview(w http.ResponseWriter, r *http.Request) {
	review, err := h.service.Mine(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err, "failed to fetch review")
		return
	}

	respondWithJSON(w, http.StatusOK, review)
}
