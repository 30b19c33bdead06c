package handlers

import (
	"context"
	"net/http"

	"github.com/hearthtable/marketplace/internal/api/middleware"
	"github.com/hearthtable/marketplace/internal/domain/entities"
)

// FavoriteService defines the interface for saved listings
type FavoriteService interface {
	Toggle(ctx context.Context, session *entities.Session, listingID string) (*entities.FavoriteState, error)
	Check(ctx context.Context, session *entities.Session, listingID string) (*entities.FavoriteState, error)
	ListMine(ctx context.Context, session *entities.Session) ([]*entities.Listing, error)
}

// FavoriteHandler handles saving listings
type FavoriteHandler struct {
	service FavoriteService
}

// NewFavoriteHandler creates a new favorite handler
func NewFavoriteHandler(service FavoriteService) *FavoriteHandler {
	return &FavoriteHandler{service: service}
}

// ToggleFavorite handles POST /api/listings/{id}/favorite
func (h *FavoriteHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.Toggle(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err, "failed to update favorite")
		return
	}

	respondWithJSON(w, http.StatusOK, state)
}

// GetFavorite handles GET /api/listings/{id}/favorite
func (h *FavoriteHandler) GetFavorite(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.Check(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err, "failed to fetch favorite")
		return
	}

	respondWithJSON(w, http.StatusOK, state)
}

// ListFavorites handles GET /api/favorites
func (h *FavoriteHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.ListMine(r.Context(), middleware.SessionFromContext(r.Context()))
	if err != nil {
		respondWithAppError(w, r, err, "failed to fetch favorites")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"listings": listings,
		"count":    len(listings),
	})
}
