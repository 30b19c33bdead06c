package handlers_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hearthtable/marketplace/internal/api/handlers"
	"github.com/hearthtable/marketplace/internal/application/services"
	"github.com/hearthtable/marketplace/internal/domain/entities"
	apperrors "github.com/hearthtable/marketplace/pkg/errors"
)

type MockImageService struct {
	mock.Mock
}

func (m *MockImageService) List(ctx context.Context, session *entities.Session, listingID string) ([]*entities.ImageRecord, error) {
	args := m.Called(ctx, session, listingID)
	return args.Get(0).([]*entities.ImageRecord), args.Error(1)
}

func (m *MockImageService) Upload(ctx context.Context, session *entities.Session, listingID string, startOrder int, files []entities.UploadFile) ([]*entities.ImageRecord, error) {
	args := m.Called(ctx, session, listingID, startOrder, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.ImageRecord), args.Error(1)
}

func (m *MockImageService) Promote(ctx context.Context, session *entities.Session, listingID, imageID string) (*entities.ImageRecord, error) {
	args := m.Called(ctx, session, listingID, imageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ImageRecord), args.Error(1)
}

func (m *MockImageService) Reorder(ctx context.Context, session *entities.Session, listingID string, input services.ReorderInput) ([]*entities.ImageRecord, error) {
	args := m.Called(ctx, session, listingID, input)
	return args.Get(0).([]*entities.ImageRecord), args.Error(1)
}

func (m *MockImageService) Delete(ctx context.Context, session *entities.Session, listingID, imageID string) error {
	return m.Called(ctx, session, listingID, imageID).Error(0)
}

// pngHeader is enough of a PNG for content sniffing
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func multipartUpload(t *testing.T, startOrder string, parts map[string][]byte, contentTypes map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if startOrder != "" {
		require.NoError(t, mw.WriteField("start_order", startOrder))
	}
	for name, body := range parts {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+name+`"`)
		if ct := contentTypes[name]; ct != "" {
			h.Set("Content-Type", ct)
		}
		pw, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/listings/l1/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetPathValue("id", "l1")
	return signedIn(req, "host-1")
}

func TestImageHandler_UploadImages(t *testing.T) {
	t.Run("sniffs missing content types and keeps the start order", func(t *testing.T) {
		mockService := new(MockImageService)
		handler := handlers.NewImageHandler(mockService, 1<<20)

		mockService.On("Upload", mock.Anything, mock.Anything, "l1", 3, mock.MatchedBy(func(files []entities.UploadFile) bool {
			return len(files) == 1 && files[0].Name == "porch.png" &&
				files[0].ContentType == "image/png" && files[0].Size == int64(len(pngHeader))
		})).Return([]*entities.ImageRecord{{ID: "img-1", DisplayOrder: 3}}, nil)

		w := httptest.NewRecorder()
		handler.UploadImages(w, multipartUpload(t, "3", map[string][]byte{"porch.png": pngHeader}, nil))

		assert.Equal(t, http.StatusCreated, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("declared content types are passed through for the service to check", func(t *testing.T) {
		mockService := new(MockImageService)
		handler := handlers.NewImageHandler(mockService, 1<<20)
		mockService.On("Upload", mock.Anything, mock.Anything, "l1", 0, mock.MatchedBy(func(files []entities.UploadFile) bool {
			return len(files) == 1 && files[0].ContentType == "text/plain"
		})).Return(nil, apperrors.NewFieldValidationError("invalid upload", map[string]string{"files[0]": "must be an image"}))

		w := httptest.NewRecorder()
		handler.UploadImages(w, multipartUpload(t, "", map[string][]byte{"notes.txt": []byte("hello")}, map[string]string{"notes.txt": "text/plain"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "must be an image")
	})

	t.Run("bad start order", func(t *testing.T) {
		mockService := new(MockImageService)
		handler := handlers.NewImageHandler(mockService, 1<<20)

		w := httptest.NewRecorder()
		handler.UploadImages(w, multipartUpload(t, "-1", map[string][]byte{"a.png": pngHeader}, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("request body over the limit", func(t *testing.T) {
		mockService := new(MockImageService)
		handler := handlers.NewImageHandler(mockService, 512)

		w := httptest.NewRecorder()
		handler.UploadImages(w, multipartUpload(t, "", map[string][]byte{"big.png": bytes.Repeat([]byte("x"), 4096)}, nil))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		mockService.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("not multipart", func(t *testing.T) {
		mockService := new(MockImageService)
		handler := handlers.NewImageHandler(mockService, 1<<20)

		req := httptest.NewRequest(http.MethodPost, "/api/listings/l1/images", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		handler.UploadImages(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestImageHandler_Gallery(t *testing.T) {
	mockService := new(MockImageService)
	handler := handlers.NewImageHandler(mockService, 0)

	mockService.On("List", mock.Anything, mock.Anything, "l1").Return([]*entities.ImageRecord{{ID: "a"}, {ID: "b"}}, nil)
	mockService.On("Reorder", mock.Anything, mock.Anything, "l1", services.ReorderInput{ImageIDs: []string{"b", "a"}}).
		Return([]*entities.ImageRecord{{ID: "b", DisplayOrder: 0}, {ID: "a", DisplayOrder: 1}}, nil)
	mockService.On("Promote", mock.Anything, mock.Anything, "l1", "b").Return(&entities.ImageRecord{ID: "b", IsPrimary: true}, nil)
	mockService.On("Delete", mock.Anything, mock.Anything, "l1", "a").Return(nil)
	mockService.On("Delete", mock.Anything, mock.Anything, "l1", "zzz").Return(apperrors.NewNotFoundError("image not found"))

	withIDs := func(req *http.Request, imageID string) *http.Request {
		req.SetPathValue("id", "l1")
		if imageID != "" {
			req.SetPathValue("imageId", imageID)
		}
		return signedIn(req, "host-1")
	}

	w := httptest.NewRecorder()
	handler.ListImages(w, withIDs(httptest.NewRequest(http.MethodGet, "/api/listings/l1/images", nil), ""))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["images"], 2)

	w = httptest.NewRecorder()
	handler.ReorderImages(w, withIDs(httptest.NewRequest(http.MethodPut, "/api/listings/l1/images/order", bytes.NewBufferString(`{"image_ids":["b","a"]}`)), ""))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.PromoteImage(w, withIDs(httptest.NewRequest(http.MethodPost, "/api/listings/l1/images/b/primary", nil), "b"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["is_primary"])

	w = httptest.NewRecorder()
	handler.DeleteImage(w, withIDs(httptest.NewRequest(http.MethodDelete, "/api/listings/l1/images/a", nil), "a"))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	handler.DeleteImage(w, withIDs(httptest.NewRequest(http.MethodDelete, "/api/listings/l1/images/zzz", nil), "zzz"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	mockService.AssertExpectations(t)
}
