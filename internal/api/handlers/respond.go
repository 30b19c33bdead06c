package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/hearthtable/marketplace/internal/infrastructure/observability"
	apperrors "github.com/hearthtable/marketplace/pkg/errors"
)

// maxJSONBody caps request bodies decoded by decodeJSON
const maxJSONBody = 1 << 20

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps a service error to a status code. Internal and
// external failures are logged and answered with the action-specific fallback
// so backend details never reach the client.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg(fallback)
		respondWithError(w, http.StatusInternalServerError, fallback)
		return
	}

	switch appErr.Type {
	case apperrors.ErrorTypeNotFound:
		respondWithError(w, http.StatusNotFound, appErr.Message)
	case apperrors.ErrorTypeValidation:
		if len(appErr.Fields) > 0 {
			respondWithJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":  appErr.Message,
				"fields": appErr.Fields,
			})
			return
		}
		respondWithError(w, http.StatusBadRequest, appErr.Message)
	case apperrors.ErrorTypeConflict:
		respondWithError(w, http.StatusConflict, appErr.Message)
	case apperrors.ErrorTypeUnauthorized:
		respondWithError(w, http.StatusUnauthorized, appErr.Message)
	case apperrors.ErrorTypeForbidden:
		respondWithError(w, http.StatusForbidden, appErr.Message)
	case apperrors.ErrorTypeExternal:
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg(fallback)
		respondWithError(w, http.StatusBadGateway, fallback)
	default:
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg(fallback)
		respondWithError(w, http.StatusInternalServerError, fallback)
	}
}

// decodeJSON reads a JSON body into dst, rejecting unknown shapes with 400
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// pageParams reads page and per_page, leaving bounds to the service
func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	return page, perPage
}
