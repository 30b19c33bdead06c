package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/hearthtable/marketplace/internal/api/middleware"
	"github.com/hearthtable/marketplace/internal/application/services"
	"github.com/hearthtable/marketplace/internal/domain/entities"
)

// multipartMemory is how much of an upload is held in memory before spilling to disk
const multipartMemory = 32 << 20

// ImageService defines the interface for listing photos
type ImageService interface {
	List(ctx context.Context, session *entities.Session, listingID string) ([]*entities.ImageRecord, error)
	Upload(ctx context.Context, session *entities.Session, listingID string, startOrder int, files []entities.UploadFile) ([]*entities.ImageRecord, error)
	Promote(ctx context.Context, session *entities.Session, listingID, imageID string) (*entities.ImageRecord, error)
	Reorder(ctx context.Context, session *entities.Session, listingID string, input services.ReorderInput) ([]*entities.ImageRecord, error)
	Delete(ctx context.Context, session *entities.Session, listingID, imageID string) error
}

// ImageHandler handles listing photo uploads and gallery management
type ImageHandler struct {
	service      ImageService
	maxBodyBytes int64
}

// NewImageHandler creates a new image handler. maxBodyBytes bounds a whole
// multipart request; per-file limits are enforced by the service.
func NewImageHandler(service ImageService, maxBodyBytes int64) *ImageHandler {
	return &ImageHandler{service: service, maxBodyBytes: maxBodyBytes}
}

// ListImages handles GET /api/listings/{id}/images
func (h *ImageHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	images, err := h.service.List(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err, "failed to fetch images")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"images": images})
}

// UploadImages handles POST /api/listings/{id}/images (multipart field "files",
// optional form value "start_order")
func (h *ImageHandler) UploadImages(w http.ResponseWriter, r *http.Request) {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "upload is too large")
			return
		}
		respondWithError(w, http.StatusBadRequest, "expected a multipart form with files")
		return
	}
	defer r.MultipartForm.RemoveAll()

	startOrder := 0
	if raw := r.FormValue("start_order"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondWithError(w, http.StatusBadRequest, "start_order must be a non-negative integer")
			return
		}
		startOrder = n
	}

	headers := r.MultipartForm.File["files"]
	files := make([]entities.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "could not read "+fh.Filename)
			return
		}
		defer f.Close()

		contentType, err := detectContentType(fh, f)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "could not read "+fh.Filename)
			return
		}
		files = append(files, entities.UploadFile{
			Name:        fh.Filename,
			ContentType: contentType,
			Size:        fh.Size,
			Body:        f,
		})
	}

	images, err := h.service.Upload(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"), startOrder, files)
	if err != nil {
		respondWithAppError(w, r, err, "failed to upload images")
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{"images": images})
}

// ReorderImages handles PUT /api/listings/{id}/images/order
func (h *ImageHandler) ReorderImages(w http.ResponseWriter, r *http.Request) {
	var input services.ReorderInput
	if !decodeJSON(w, r, &input) {
		return
	}

	images, err := h.service.Reorder(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"), input)
	if err != nil {
		respondWithAppError(w, r, err, "failed to reorder images")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"images": images})
}

// PromoteImage handles POST /api/listings/{id}/images/{imageId}/primary
func (h *ImageHandler) PromoteImage(w http.ResponseWriter, r *http.Request) {
	image, err := h.service.Promote(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"), r.PathValue("imageId"))
	if err != nil {
		respondWithAppError(w, r, err, "failed to set primary image")
		return
	}

	respondWithJSON(w, http.StatusOK, image)
}

// DeleteImage handles DELETE /api/listings/{id}/images/{imageId}
func (h *ImageHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"), r.PathValue("imageId")); err != nil {
		respondWithAppError(w, r, err, "failed to delete image")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// detectContentType trusts the part header and sniffs the first bytes when
// the client sent none
func detectContentType(fh *multipart.FileHeader, f multipart.File) (string, error) {
	if ct := fh.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct, nil
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}
