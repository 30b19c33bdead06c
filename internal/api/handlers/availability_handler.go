package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/hearthtable/marketplace/internal/api/middleware"
	"github.com/hearthtable/marketplace/internal/application/services"
	"github.com/hearthtable/marketplace/internal/domain/entities"
)

// AvailabilityService defines the interface for calendars and stay quotes
type AvailabilityService interface {
	Calendar(ctx context.Context, session *entities.Session, listingID string, from, to time.Time) ([]entities.AvailabilitySlot, error)
	QuoteStay(ctx context.Context, session *entities.Session, listingID string, start, end time.Time) (*entities.Quote, error)
	SetSlots(ctx context.Context, session *entities.Session, listingID string, input services.SetSlotsInput) ([]entities.AvailabilitySlot, error)
	ClearSlots(ctx context.Context, session *entities.Session, listingID string, from, to time.Time) (int64, error)
}

// AvailabilityHandler handles listing calendars
type AvailabilityHandler struct {
	service AvailabilityService
}

// NewAvailabilityHandler creates a new availability handler
func NewAvailabilityHandler(service AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

// GetCalendar handles GET /api/listings/{id}/availability?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *AvailabilityHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dayRange(w, r, "from", "to")
	if !ok {
		return
	}

	slots, err := h.service.Calendar(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"), from, to)
	if err != nil {
		respondWithAppError(w, r, err, "failed to fetch availability")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"listing_id": r.PathValue("id"),
		"slots":      slots,
	})
}

// GetQuote handles GET /api/listings/{id}/quote?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *AvailabilityHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	start, end, ok := dayRange(w, r, "start", "end")
	if !ok {
		return
	}

	quote, err := h.service.QuoteStay(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"), start, end)
	if err != nil {
		respondWithAppError(w, r, err, "failed to price stay")
		return
	}

	respondWithJSON(w, http.StatusOK, quote)
}

// SetSlots handles PUT /api/listings/{id}/availability
func (h *AvailabilityHandler) SetSlots(w http.ResponseWriter, r *http.Request) {
	var input services.SetSlotsInput
	if !decodeJSON(w, r, &input) {
		return
	}

	slots, err := h.service.SetSlots(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"), input)
	if err != nil {
		respondWithAppError(w, r, err, "failed to update availability")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"listing_id": r.PathValue("id"),
		"slots":      slots,
	})
}

// ClearSlots handles DELETE /api/listings/{id}/availability?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *AvailabilityHandler) ClearSlots(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dayRange(w, r, "from", "to")
	if !ok {
		return
	}

	removed, err := h.service.ClearSlots(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"), from, to)
	if err != nil {
		respondWithAppError(w, r, err, "failed to clear availability")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

// dayRange reads two required civil-day query parameters
func dayRange(w http.ResponseWriter, r *http.Request, fromKey, toKey string) (time.Time, time.Time, bool) {
	query := r.URL.Query()

	from, err := entities.ParseDay(query.Get(fromKey))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fromKey+" must be a date (YYYY-MM-DD)")
		return time.Time{}, time.Time{}, false
	}
	to, err := entities.ParseDay(query.Get(toKey))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, toKey+" must be a date (YYYY-MM-DD)")
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
