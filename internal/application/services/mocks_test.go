package services_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/query"
)

type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) Create(ctx context.Context, listing *entities.Listing) error {
	return m.Called(ctx, listing).Error(0)
}
func (m *MockListingRepository) GetByID(ctx context.Context, id string) (*entities.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Listing), args.Error(1)
}
func (m *MockListingRepository) GetByIDs(ctx context.Context, ids []string) ([]*entities.Listing, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Listing), args.Error(1)
}
func (m *MockListingRepository) Update(ctx context.Context, listing *entities.Listing) error {
	return m.Called(ctx, listing).Error(0)
}
func (m *MockListingRepository) UpdateStatus(ctx context.Context, id string, status entities.ListingStatus) error {
	return m.Called(ctx, id, status).Error(0)
}
func (m *MockListingRepository) Query(ctx context.Context, q query.Descriptor) ([]*entities.Listing, int, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*entities.Listing), args.Int(1), args.Error(2)
}
func (m *MockListingRepository) ListByHost(ctx context.Context, hostID string) ([]*entities.Listing, error) {
	args := m.Called(ctx, hostID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Listing), args.Error(1)
}

type MockSearchRepository struct {
	mock.Mock
}

func (m *MockSearchRepository) Index(ctx context.Context, listing *entities.Listing) error {
	return m.Called(ctx, listing).Error(0)
}
func (m *MockSearchRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *MockSearchRepository) Search(ctx context.Context, q query.Descriptor) ([]*entities.Listing, int, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*entities.Listing), args.Int(1), args.Error(2)
}

type MockAvailabilityRepository struct {
	mock.Mock
}

func (m *MockAvailabilityRepository) ListRange(ctx context.Context, listingID string, from, to time.Time) ([]entities.AvailabilitySlot, error) {
	args := m.Called(ctx, listingID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.AvailabilitySlot), args.Error(1)
}
func (m *MockAvailabilityRepository) ListRangeForListings(ctx context.Context, listingIDs []string, from, to time.Time) (map[string][]entities.AvailabilitySlot, error) {
	args := m.Called(ctx, listingIDs, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]entities.AvailabilitySlot), args.Error(1)
}
func (m *MockAvailabilityRepository) ListingsWithSlots(ctx context.Context, listingIDs []string) (map[string]bool, error) {
	args := m.Called(ctx, listingIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]bool), args.Error(1)
}
func (m *MockAvailabilityRepository) Upsert(ctx context.Context, slots []entities.AvailabilitySlot) error {
	return m.Called(ctx, slots).Error(0)
}
func (m *MockAvailabilityRepository) DeleteRange(ctx context.Context, listingID string, from, to time.Time) (int64, error) {
	args := m.Called(ctx, listingID, from, to)
	return args.Get(0).(int64), args.Error(1)
}

type MockFavoriteRepository struct {
	mock.Mock
}

func (m *MockFavoriteRepository) Toggle(ctx context.Context, userID, listingID string) (bool, error) {
	args := m.Called(ctx, userID, listingID)
	return args.Bool(0), args.Error(1)
}
func (m *MockFavoriteRepository) Exists(ctx context.Context, userID, listingID string) (bool, error) {
	args := m.Called(ctx, userID, listingID)
	return args.Bool(0), args.Error(1)
}
func (m *MockFavoriteRepository) FavoritedAmong(ctx context.Context, userID string, listingIDs []string) (map[string]bool, error) {
	args := m.Called(ctx, userID, listingIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]bool), args.Error(1)
}
func (m *MockFavoriteRepository) ListByUser(ctx context.Context, userID string) ([]*entities.Favorite, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Favorite), args.Error(1)
}
func (m *MockFavoriteRepository) CountByListing(ctx context.Context, listingID string) (int, error) {
	args := m.Called(ctx, listingID)
	return args.Int(0), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *entities.User) error {
	return m.Called(ctx, user).Error(0)
}
func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}
func (m *MockUserRepository) GetByIDs(ctx context.Context, ids []string) ([]*entities.User, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.User), args.Error(1)
}
func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}
func (m *MockUserRepository) Update(ctx context.Context, user *entities.User) error {
	return m.Called(ctx, user).Error(0)
}

type MockImageRepository struct {
	mock.Mock
}

func (m *MockImageRepository) Create(ctx context.Context, image *entities.ImageRecord) error {
	return m.Called(ctx, image).Error(0)
}
func (m *MockImageRepository) GetByID(ctx context.Context, id string) (*entities.ImageRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ImageRecord), args.Error(1)
}
func (m *MockImageRepository) ListByListing(ctx context.Context, listingID string) ([]*entities.ImageRecord, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.ImageRecord), args.Error(1)
}
func (m *MockImageRepository) ListByListings(ctx context.Context, listingIDs []string) (map[string][]*entities.ImageRecord, error) {
	args := m.Called(ctx, listingIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]*entities.ImageRecord), args.Error(1)
}
func (m *MockImageRepository) HasPrimary(ctx context.Context, listingID string) (bool, error) {
	args := m.Called(ctx, listingID)
	return args.Bool(0), args.Error(1)
}
func (m *MockImageRepository) SetPrimary(ctx context.Context, listingID, imageID string) error {
	return m.Called(ctx, listingID, imageID).Error(0)
}
func (m *MockImageRepository) Reorder(ctx context.Context, listingID string, orderedIDs []string) error {
	return m.Called(ctx, listingID, orderedIDs).Error(0)
}
func (m *MockImageRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockReviewRepository struct {
	mock.Mock
}

func (m *MockReviewRepository) Upsert(ctx context.Context, review *entities.Review) (*entities.RatingSummary, error) {
	args := m.Called(ctx, review)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.RatingSummary), args.Error(1)
}
func (m *MockReviewRepository) ListByListing(ctx context.Context, listingID string, limit, offset int) ([]*entities.Review, error) {
	args := m.Called(ctx, listingID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Review), args.Error(1)
}
func (m *MockReviewRepository) GetByUserAndListing(ctx context.Context, userID, listingID string) (*entities.Review, error) {
	args := m.Called(ctx, userID, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Review), args.Error(1)
}

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) GetOrCreateConversation(ctx context.Context, listingID, guestID, hostID string) (*entities.Conversation, error) {
	args := m.Called(ctx, listingID, guestID, hostID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Conversation), args.Error(1)
}
func (m *MockMessageRepository) GetConversation(ctx context.Context, id string) (*entities.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Conversation), args.Error(1)
}
func (m *MockMessageRepository) ListConversations(ctx context.Context, userID string) ([]*entities.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Conversation), args.Error(1)
}
func (m *MockMessageRepository) CreateMessage(ctx context.Context, message *entities.Message) error {
	return m.Called(ctx, message).Error(0)
}
func (m *MockMessageRepository) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entities.Message, error) {
	args := m.Called(ctx, conversationID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Message), args.Error(1)
}
func (m *MockMessageRepository) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	args := m.Called(ctx, conversationID, readerID)
	return args.Get(0).(int64), args.Error(1)
}

// session returns a signed-in principal for userID
func session(userID string) *entities.Session {
	return &entities.Session{UserID: userID, Email: userID + "@example.com", TokenID: "jti-" + userID, ExpiresAt: time.Now().Add(time.Hour)}
}

// hostedListing is a published listing owned by hostID
func hostedListing(id, hostID string) *entities.Listing {
	l := stayListing(id, 2, 4)
	l.HostID = hostID
	l.Status = entities.ListingStatusPublished
	return l
}
