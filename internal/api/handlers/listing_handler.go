package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/hearthtable/marketplace/internal/api/middleware"
	"github.com/hearthtable/marketplace/internal/application/services"
	"github.com/hearthtable/marketplace/internal/domain/entities"
)

// ListingService defines the interface for listing browsing and the host lifecycle
type ListingService interface {
	Browse(ctx context.Context, session *entities.Session, state entities.FilterState) (*services.BrowseResult, error)
	Get(ctx context.Context, session *entities.Session, id string) (*entities.Listing, error)
	ListMine(ctx context.Context, session *entities.Session) ([]*entities.Listing, error)
	Create(ctx context.Context, session *entities.Session, input services.ListingInput) (*entities.Listing, error)
	Update(ctx context.Context, session *entities.Session, id string, input services.ListingInput) (*entities.Listing, error)
	Publish(ctx context.Context, session *entities.Session, id string) (*entities.Listing, error)
	Unpublish(ctx context.Context, session *entities.Session, id string) (*entities.Listing, error)
	Archive(ctx context.Context, session *entities.Session, id string) (*entities.Listing, error)
}

// ListingHandler handles public search and host listing management
type ListingHandler struct {
	service ListingService
}

// NewListingHandler creates a new listing handler
func NewListingHandler(service ListingService) *ListingHandler {
	return &ListingHandler{service: service}
}

// BrowseStays handles GET /api/stays
func (h *ListingHandler) BrowseStays(w http.ResponseWriter, r *http.Request) {
	h.browse(w, r, entities.ListingKindStay, "failed to fetch stays")
}

// BrowseFood handles GET /api/food
func (h *ListingHandler) BrowseFood(w http.ResponseWriter, r *http.Request) {
	h.browse(w, r, entities.ListingKindFood, "failed to fetch food experiences")
}

func (h *ListingHandler) browse(w http.ResponseWriter, r *http.Request, kind entities.ListingKind, failure string) {
	state, err := entities.ParseFilterState(kind, r.URL.Query())
	if err != nil {
		var parseErr *entities.FilterParseError
		if errors.As(err, &parseErr) {
			respondWithJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":  "invalid filters",
				"fields": parseErr.Fields,
			})
			return
		}
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Browse(r.Context(), middleware.SessionFromContext(r.Context()), state)
	if err != nil {
		respondWithAppError(w, r, err, failure)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// GetListing handles GET /api/listings/{id}
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	listing, err := h.service.Get(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err, "failed to fetch listing")
		return
	}

	respondWithJSON(w, http.StatusOK, listing)
}

// ListMine handles GET /api/host/listings
func (h *ListingHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.ListMine(r.Context(), middleware.SessionFromContext(r.Context()))
	if err != nil {
		respondWithAppError(w, r, err, "failed to fetch your listings")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"listings": listings,
		"count":    len(listings),
	})
}

// CreateListing handles POST /api/listings
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var input services.ListingInput
	if !decodeJSON(w, r, &input) {
		return
	}

	listing, err := h.service.Create(r.Context(), middleware.SessionFromContext(r.Context()), input)
	if err != nil {
		respondWithAppError(w, r, err, "failed to create listing")
		return
	}

	respondWithJSON(w, http.StatusCreated, listing)
}

// UpdateListing handles PATCH /api/listings/{id}
func (h *ListingHandler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	var input services.ListingInput
	if !decodeJSON(w, r, &input) {
		return
	}

	listing, err := h.service.Update(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"), input)
	if err != nil {
		respondWithAppError(w, r, err, "failed to update listing")
		return
	}

	respondWithJSON(w, http.StatusOK, listing)
}

// PublishListing handles POST /api/listings/{id}/publish
func (h *ListingHandler) PublishListing(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Publish, "failed to publish listing")
}

// UnpublishListing handles POST /api/listings/{id}/unpublish
func (h *ListingHandler) UnpublishListing(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Unpublish, "failed to unpublish listing")
}

// ArchiveListing handles POST /api/listings/{id}/archive
func (h *ListingHandler) ArchiveListing(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Archive, "failed to archive listing")
}

type transitionFunc func(ctx context.Context, session *entities.Session, id string) (*entities.Listing, error)

func (h *ListingHandler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc, failure string) {
	listing, err := fn(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err, failure)
		return
	}

	respondWithJSON(w, http.StatusOK, listing)
}
