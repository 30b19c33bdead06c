package handlers_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/hearthtable/marketplace/internal/api/handlers"
	"github.com/hearthtable/marketplace/internal/application/services"
	"github.com/hearthtable/marketplace/internal/domain/entities"
	apperrors "github.com/hearthtable/marketplace/pkg/errors"
)

type MockFavoriteService struct {
	mock.Mock
}

func (m *MockFavoriteService) Toggle(ctx context.Context, session *entities.Session, listingID string) (*entities.FavoriteState, error) {
	args := m.Called(ctx, session, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.FavoriteState), args.Error(1)
}

func (m *MockFavoriteService) Check(ctx context.Context, session *entities.Session, listingID string) (*entities.FavoriteState, error) {
	args := m.Called(ctx, session, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.FavoriteState), args.Error(1)
}

func (m *MockFavoriteService) ListMine(ctx context.Context, session *entities.Session) ([]*entities.Listing, error) {
	args := m.Called(ctx, session)
	return args.Get(0).([]*entities.Listing), args.Error(1)
}

type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) Submit(ctx context.Context, session *entities.Session, listingID string, input services.ReviewInput) (*entities.Review, *entities.RatingSummary, error) {
	args := m.Called(ctx, session, listingID, input)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*entities.Review), args.Get(1).(*entities.RatingSummary), args.Error(2)
}

func (m *MockReviewService) List(ctx context.Context, listingID string, page, perPage int) ([]*entities.Review, error) {
	args := m.Called(ctx, listingID, page, perPage)
	return args.Get(0).([]*entities.Review), args.Error(1)
}

func (m *MockReviewService) Mine(ctx context.Context, session *entities.Session, listingID string) (*entities.Review, error) {
	args := m.Called(ctx, session, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Review), args.Error(1)
}

type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) ContactHost(ctx context.Context, session *entities.Session, listingID string, input services.MessageInput) (*entities.Conversation, *entities.Message, error) {
	args := m.Called(ctx, session, listingID, input)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*entities.Conversation), args.Get(1).(*entities.Message), args.Error(2)
}

func (m *MockMessageService) Send(ctx context.Context, session *entities.Session, conversationID string, input services.MessageInput) (*entities.Message, error) {
	args := m.Called(ctx, session, conversationID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Message), args.Error(1)
}

func (m *MockMessageService) Inbox(ctx context.Context, session *entities.Session) ([]*entities.Conversation, error) {
	args := m.Called(ctx, session)
	return args.Get(0).([]*entities.Conversation), args.Error(1)
}

func (m *MockMessageService) Thread(ctx context.Context, session *entities.Session, conversationID string, page, perPage int) ([]*entities.Message, error) {
	args := m.Called(ctx, session, conversationID, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Message), args.Error(1)
}

func (m *MockMessageService) MarkRead(ctx context.Context, session *entities.Session, conversationID string) (int64, error) {
	args := m.Called(ctx, session, conversationID)
	return args.Get(0).(int64), args.Error(1)
}

func TestFavoriteHandler(t *testing.T) {
	mockService := new(MockFavoriteService)
	handler := handlers.NewFavoriteHandler(mockService)

	mockService.On("Toggle", mock.Anything, mock.Anything, "l1").Return(&entities.FavoriteState{ListingID: "l1", Favorited: true, TotalSaves: 4}, nil)
	mockService.On("Toggle", mock.Anything, mock.Anything, "gone").Return(nil, apperrors.NewNotFoundError("listing not found"))
	mockService.On("Check", mock.Anything, mock.Anything, "l1").Return(&entities.FavoriteState{ListingID: "l1"}, nil)
	mockService.On("ListMine", mock.Anything, mock.Anything).Return([]*entities.Listing{{ID: "l1"}}, nil)

	req := signedIn(httptest.NewRequest(http.MethodPost, "/api/listings/l1/favorite", nil), "guest-1")
	req.SetPathValue("id", "l1")
	w := httptest.NewRecorder()
	handler.ToggleFavorite(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["favorited"])
	assert.Equal(t, float64(4), body["total_saves"])

	req = signedIn(httptest.NewRequest(http.MethodPost, "/api/listings/gone/favorite", nil), "guest-1")
	req.SetPathValue("id", "gone")
	w = httptest.NewRecorder()
	handler.ToggleFavorite(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req = signedIn(httptest.NewRequest(http.MethodGet, "/api/listings/l1/favorite", nil), "guest-1")
	req.SetPathValue("id", "l1")
	w = httptest.NewRecorder()
	handler.GetFavorite(w, req)
	assert.Equal(t, false, decodeBody(t, w)["favorited"])

	w = httptest.NewRecorder()
	handler.ListFavorites(w, signedIn(httptest.NewRequest(http.MethodGet, "/api/favorites", nil), "guest-1"))
	assert.Equal(t, float64(1), decodeBody(t, w)["count"])
}

func TestReviewHandler(t *testing.T) {
	mockService := new(MockReviewService)
	handler := handlers.NewReviewHandler(mockService)

	mockService.On("List", mock.Anything, "l1", 2, 10).Return([]*entities.Review{{ID: "r1", Rating: 5}}, nil)
	mockService.On("Submit", mock.Anything, mock.Anything, "l1", services.ReviewInput{Rating: 4, Comment: "Cosy"}).
		Return(&entities.Review{ID: "r2", Rating: 4}, &entities.RatingSummary{ListingID: "l1", Rating: 4.5, ReviewCount: 2}, nil)
	mockService.On("Submit", mock.Anything, mock.Anything, "l1", services.ReviewInput{Rating: 9}).
		Return(nil, nil, apperrors.NewFieldValidationError("invalid review", map[string]string{"rating": "must be at most 5"}))
	mockService.On("Mine", mock.Anything, mock.Anything, "l1").Return(&entities.Review{ID: "r2", Rating: 4}, nil)
	mockService.On("Mine", mock.Anything, mock.Anything, "l2").Return(nil, apperrors.NewNotFoundError("review not found"))

	req := httptest.NewRequest(http.MethodGet, "/api/listings/l1/reviews?page=2&per_page=10", nil)
	req.SetPathValue("id", "l1")
	w := httptest.NewRecorder()
	handler.ListReviews(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["reviews"], 1)

	req = signedIn(httptest.NewRequest(http.MethodPost, "/api/listings/l1/reviews", bytes.NewBufferString(`{"rating":4,"comment":"Cosy"}`)), "guest-1")
	req.SetPathValue("id", "l1")
	w = httptest.NewRecorder()
	handler.SubmitReview(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	summary := decodeBody(t, w)["summary"].(map[string]interface{})
	assert.Equal(t, float64(2), summary["review_count"])

	req = signedIn(httptest.NewRequest(http.MethodPost, "/api/listings/l1/reviews", bytes.NewBufferString(`{"rating":9}`)), "guest-1")
	req.SetPathValue("id", "l1")
	w = httptest.NewRecorder()
	handler.SubmitReview(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = signedIn(httptest.NewRequest(http.MethodGet, "/api/listings/l1/reviews/mine", nil), "guest-1")
	req.SetPathValue("id", "l1")
	w = httptest.NewRecorder()
	handler.MyReview(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "r2", decodeBody(t, w)["id"])

	req = signedIn(httptest.NewRequest(http.MethodGet, "/api/listings/l2/reviews/mine", nil), "guest-1")
	req.SetPathValue("id", "l2")
	w = httptest.NewRecorder()
	handler.MyReview(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	mockService.AssertExpectations(t)
}

func TestMessageHandler(t *testing.T) {
	mockService := new(MockMessageService)
	handler := handlers.NewMessageHandler(mockService)

	conv := &entities.Conversation{ID: "c1", ListingID: "l1", GuestID: "guest-1", HostID: "host-1"}
	mockService.On("ContactHost", mock.Anything, mock.Anything, "l1", services.MessageInput{Body: "Hello!"}).
		Return(conv, &entities.Message{ID: "m1", ConversationID: "c1", Body: "Hello!"}, nil)
	mockService.On("Inbox", mock.Anything, mock.Anything).Return([]*entities.Conversation{conv}, nil)
	mockService.On("Thread", mock.Anything, mock.Anything, "c1", 0, 0).Return([]*entities.Message{{ID: "m1"}}, nil)
	mockService.On("Thread", mock.Anything, mock.Anything, "c2", 0, 0).Return(nil, apperrors.NewNotFoundError("conversation not found"))
	mockService.On("Send", mock.Anything, mock.Anything, "c1", services.MessageInput{Body: "Thanks"}).Return(&entities.Message{ID: "m2"}, nil)
	mockService.On("MarkRead", mock.Anything, mock.Anything, "c1").Return(int64(2), nil)

	withConversation := func(req *http.Request, id string) *http.Request {
		req.SetPathValue("id", id)
		return signedIn(req, "guest-1")
	}

	w := httptest.NewRecorder()
	handler.ContactHost(w, withConversation(httptest.NewRequest(http.MethodPost, "/api/listings/l1/messages", bytes.NewBufferString(`{"body":"Hello!"}`)), "l1"))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	handler.Inbox(w, signedIn(httptest.NewRequest(http.MethodGet, "/api/conversations", nil), "guest-1"))
	assert.Len(t, decodeBody(t, w)["conversations"], 1)

	w = httptest.NewRecorder()
	handler.Thread(w, withConversation(httptest.NewRequest(http.MethodGet, "/api/conversations/c1/messages", nil), "c1"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.Thread(w, withConversation(httptest.NewRequest(http.MethodGet, "/api/conversations/c2/messages", nil), "c2"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	handler.Send(w, withConversation(httptest.NewRequest(http.MethodPost, "/api/conversations/c1/messages", bytes.NewBufferString(`{"body":"Thanks"}`)), "c1"))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	handler.MarkRead(w, withConversation(httptest.NewRequest(http.MethodPost, "/api/conversations/c1/read", nil), "c1"))
	assert.Equal(t, float64(2), decodeBody(t, w)["marked"])

	mockService.AssertExpectations(t)
}
