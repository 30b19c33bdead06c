package loaders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hearthtable/marketplace/internal/domain/entities"
)

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, user *entities.User) error { return nil }
func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*entities.User, error) {
	return nil, nil
}
func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	return nil, nil
}
func (m *mockUserRepo) Update(ctx context.Context, user *entities.User) error { return nil }

func (m *mockUserRepo) GetByIDs(ctx context.Context, ids []string) ([]*entities.User, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.User), args.Error(1)
}

type mockImageRepo struct {
	mock.Mock
}

func (m *mockImageRepo) Create(ctx context.Context, image *entities.ImageRecord) error { return nil }
func (m *mockImageRepo) GetByID(ctx context.Context, id string) (*entities.ImageRecord, error) {
	return nil, nil
}
func (m *mockImageRepo) ListByListing(ctx context.Context, listingID string) ([]*entities.ImageRecord, error) {
	return nil, nil
}
func (m *mockImageRepo) HasPrimary(ctx context.Context, listingID string) (bool, error) {
	return false, nil
}
func (m *mockImageRepo) SetPrimary(ctx context.Context, listingID, imageID string) error { return nil }
func (m *mockImageRepo) Reorder(ctx context.Context, listingID string, orderedIDs []string) error {
	return nil
}
func (m *mockImageRepo) Delete(ctx context.Context, id string) error { return nil }

func (m *mockImageRepo) ListByListings(ctx context.Context, listingIDs []string) (map[string][]*entities.ImageRecord, error) {
	args := m.Called(ctx, listingIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]*entities.ImageRecord), args.Error(1)
}

func TestHostLoaderBatches(t *testing.T) {
	users := new(mockUserRepo)
	users.On("GetByIDs", mock.Anything, mock.MatchedBy(func(ids []string) bool {
		return assert.ElementsMatch(t, []string{"h1", "h2"}, ids)
	})).Return([]*entities.User{
		{ID: "h1", DisplayName: "Ada"},
		{ID: "h2", DisplayName: "Bo"},
	}, nil).Once()

	l := NewLoaders(users, new(mockImageRepo))
	ctx := context.Background()

	profiles, errs := l.HostLoader.LoadMany(ctx, []string{"h1", "h2", "h1"})()
	assert.Empty(t, errs)
	require.Len(t, profiles, 3)
	assert.Equal(t, "Ada", profiles[0].DisplayName)
	assert.Equal(t, "Bo", profiles[1].DisplayName)
	users.AssertExpectations(t)
}

func TestHostLoaderMissingUser(t *testing.T) {
	users := new(mockUserRepo)
	users.On("GetByIDs", mock.Anything, []string{"ghost"}).Return([]*entities.User{}, nil)

	l := NewLoaders(users, new(mockImageRepo))
	_, err := l.HostLoader.Load(context.Background(), "ghost")()
	assert.Error(t, err)
}

func TestImageLoader(t *testing.T) {
	images := new(mockImageRepo)
	images.On("ListByListings", mock.Anything, []string{"l1"}).Return(map[string][]*entities.ImageRecord{}, nil).Once()
	images.On("ListByListings", mock.Anything, []string{"l2"}).Return(nil, errors.New("db down")).Once()

	l := NewLoaders(new(mockUserRepo), images)
	ctx := context.Background()

	got, err := l.ImageLoader.Load(ctx, "l1")()
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = l.ImageLoader.Load(ctx, "l2")()
	assert.Error(t, err)
}

func TestForWithoutLoaders(t *testing.T) {
	_, ok := For(context.Background())
	assert.False(t, ok)

	ctx := WithLoaders(context.Background(), NewLoaders(new(mockUserRepo), new(mockImageRepo)))
	got, ok := For(ctx)
	assert.True(t, ok)
	assert.NotNil(t, got)
}
