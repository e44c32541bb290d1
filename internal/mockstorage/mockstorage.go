// Package mockstorage provides a testify-based mock implementation
// of the storage contract used by the service package.
// It lets HTTP tests simulate storage failures that real backends cannot produce.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/YashLadlapure/meme-vault/internal/models"
	"github.com/YashLadlapure/meme-vault/internal/user"
)

// StorageMock is a testify mock of a storage backend.
type StorageMock struct {
	mock.Mock

	// OnGetNumberOfUsers is an optional function field that can be assigned
	// to define custom mock behavior for GetNumberOfUsers in tests.
	//
	// If set, GetNumberOfUsers will delegate to this function instead of
	// using testify's generic mock handler.
	OnGetNumberOfUsers func(ctx context.Context) (int64, error)
}

// Ping mocks the health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *StorageMock) CreateUser(ctx context.Context, usr *user.User) error {
	args := m.Called(ctx, usr)
	return args.Error(0)
}

func (m *StorageMock) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	args := m.Called(ctx, userID)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Error(1)
}

func (m *StorageMock) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Error(1)
}

func (m *StorageMock) CreateFolder(ctx context.Context, folder *models.Folder) error {
	args := m.Called(ctx, folder)
	return args.Error(0)
}

func (m *StorageMock) GetFolderByID(ctx context.Context, folderID string) (*models.Folder, error) {
	args := m.Called(ctx, folderID)
	folder, _ := args.Get(0).(*models.Folder)
	return folder, args.Error(1)
}

func (m *StorageMock) GetUserFolders(ctx context.Context, userID string) ([]models.Folder, error) {
	args := m.Called(ctx, userID)
	folders, _ := args.Get(0).([]models.Folder)
	return folders, args.Error(1)
}

func (m *StorageMock) UpdateFolder(ctx context.Context, folder *models.Folder) error {
	args := m.Called(ctx, folder)
	return args.Error(0)
}

func (m *StorageMock) DeleteFolder(ctx context.Context, folderID string) ([]models.Meme, error) {
	args := m.Called(ctx, folderID)
	memes, _ := args.Get(0).([]models.Meme)
	return memes, args.Error(1)
}

func (m *StorageMock) CreateMeme(ctx context.Context, meme *models.Meme) error {
	args := m.Called(ctx, meme)
	return args.Error(0)
}

func (m *StorageMock) GetMemeByID(ctx context.Context, memeID string) (*models.Meme, error) {
	args := m.Called(ctx, memeID)
	meme, _ := args.Get(0).(*models.Meme)
	return meme, args.Error(1)
}

func (m *StorageMock) GetMemes(ctx context.Context, filter models.MemeFilter) ([]models.Meme, error) {
	args := m.Called(ctx, filter)
	memes, _ := args.Get(0).([]models.Meme)
	return memes, args.Error(1)
}

func (m *StorageMock) UpdateMeme(ctx context.Context, meme *models.Meme) error {
	args := m.Called(ctx, meme)
	return args.Error(0)
}

func (m *StorageMock) IncrementMemeLikes(ctx context.Context, memeID string) (int64, error) {
	args := m.Called(ctx, memeID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *StorageMock) DeleteMeme(ctx context.Context, memeID string) (*models.Meme, error) {
	args := m.Called(ctx, memeID)
	meme, _ := args.Get(0).(*models.Meme)
	return meme, args.Error(1)
}

// GetNumberOfUsers uses OnGetNumberOfUsers when it is set.
func (m *StorageMock) GetNumberOfUsers(ctx context.Context) (int64, error) {
	if m.OnGetNumberOfUsers != nil {
		return m.OnGetNumberOfUsers(ctx)
	}
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *StorageMock) GetNumberOfFolders(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *StorageMock) GetNumberOfMemes(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
