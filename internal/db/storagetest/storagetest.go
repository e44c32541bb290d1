// Package storagetest holds the behaviour every storage backend must share.
// Backend packages call Run from their own tests.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YashLadlapure/meme-vault/internal/models"
	"github.com/YashLadlapure/meme-vault/internal/user"
)

// Storage is the full contract of a backend.
type Storage interface {
	CreateUser(ctx context.Context, usr *user.User) error
	GetUserByID(ctx context.Context, userID string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)

	CreateFolder(ctx context.Context, folder *models.Folder) error
	GetFolderByID(ctx context.Context, folderID string) (*models.Folder, error)
	GetUserFolders(ctx context.Context, userID string) ([]models.Folder, error)
	UpdateFolder(ctx context.Context, folder *models.Folder) error
	DeleteFolder(ctx context.Context, folderID string) ([]models.Meme, error)

	CreateMeme(ctx context.Context, meme *models.Meme) error
	GetMemeByID(ctx context.Context, memeID string) (*models.Meme, error)
	GetMemes(ctx context.Context, filter models.MemeFilter) ([]models.Meme, error)
	UpdateMeme(ctx context.Context, meme *models.Meme) error
	IncrementMemeLikes(ctx context.Context, memeID string) (int64, error)
	DeleteMeme(ctx context.Context, memeID string) (*models.Meme, error)

	GetNumberOfUsers(ctx context.Context) (int64, error)
	GetNumberOfFolders(ctx context.Context) (int64, error)
	GetNumberOfMemes(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
}

// NewUser builds a user with unique identity fields.
func NewUser(username string) *user.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &user.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$2a$10$hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewFolder builds a folder owned by userID.
func NewFolder(userID, name string, createdAt time.Time) *models.Folder {
	return &models.Folder{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        name,
		Description: "about " + name,
		Color:       models.DefaultFolderColor,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// NewMeme builds a meme owned by userID, optionally inside folderID.
func NewMeme(userID, folderID, title, category string, createdAt time.Time) *models.Meme {
	id := uuid.New().String()
	return &models.Meme{
		ID:        id,
		UserID:    userID,
		FolderID:  folderID,
		Title:     title,
		Category:  category,
		ImageURL:  "https://cdn.example.com/" + id + ".png",
		PublicID:  "meme-vault/" + id,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// Run exercises db against the shared storage contract.
// db must be empty when Run is called.
func Run(t *testing.T, db Storage) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	alice := NewUser("alice")
	bob := NewUser("bob")

	t.Run("users", func(t *testing.T) {
		require.NoError(t, db.CreateUser(ctx, alice))
		require.NoError(t, db.CreateUser(ctx, bob))

		dupName := NewUser("alice")
		dupName.Email = "other@example.com"
		assert.ErrorIs(t, db.CreateUser(ctx, dupName), models.ErrUsernameTaken)

		dupEmail := NewUser("carol")
		dupEmail.Email = "ALICE@example.com"
		assert.ErrorIs(t, db.CreateUser(ctx, dupEmail), models.ErrEmailTaken)

		got, err := db.GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, alice.Username, got.Username)
		assert.Equal(t, alice.PasswordHash, got.PasswordHash)

		got, err = db.GetUserByEmail(ctx, "Alice@Example.com")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)

		_, err = db.GetUserByID(ctx, uuid.New().String())
		assert.ErrorIs(t, err, models.ErrUserNotFound)

		_, err = db.GetUserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, models.ErrUserNotFound)
	})

	funny := NewFolder(alice.ID, "funny", base)
	cats := NewFolder(alice.ID, "cats", base.Add(time.Second))

	t.Run("folders", func(t *testing.T) {
		require.NoError(t, db.CreateFolder(ctx, funny))
		require.NoError(t, db.CreateFolder(ctx, cats))
		assert.ErrorIs(t, db.CreateFolder(ctx, NewFolder(alice.ID, "funny", base)), models.ErrFolderNameTaken)
		require.NoError(t, db.CreateFolder(ctx, NewFolder(bob.ID, "funny", base)))

		folders, err := db.GetUserFolders(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, folders, 2)
		assert.Equal(t, "cats", folders[0].Name)
		assert.Equal(t, "funny", folders[1].Name)

		cats.Description = "only cats"
		cats.Color = "#ff0000"
		require.NoError(t, db.UpdateFolder(ctx, cats))
		got, err := db.GetFolderByID(ctx, cats.ID)
		require.NoError(t, err)
		assert.Equal(t, "only cats", got.Description)
		assert.Equal(t, "#ff0000", got.Color)

		renamed := *cats
		renamed.Name = "funny"
		assert.ErrorIs(t, db.UpdateFolder(ctx, &renamed), models.ErrFolderNameTaken)

		_, err = db.GetFolderByID(ctx, uuid.New().String())
		assert.ErrorIs(t, err, models.ErrFolderNotFound)
	})

	first := NewMeme(alice.ID, funny.ID, "Distracted boyfriend", "classic", base)
	second := NewMeme(alice.ID, cats.ID, "Grumpy cat", "cats", base.Add(time.Second))
	third := NewMeme(alice.ID, "", "Doge", "dogs", base.Add(2*time.Second))
	foreign := NewMeme(bob.ID, "", "Bob's cat", "cats", base.Add(3*time.Second))

	t.Run("memes", func(t *testing.T) {
		for _, meme := range []*models.Meme{first, second, third, foreign} {
			require.NoError(t, db.CreateMeme(ctx, meme))
		}

		memes, err := db.GetMemes(ctx, models.MemeFilter{UserID: alice.ID})
		require.NoError(t, err)
		require.Len(t, memes, 3)
		assert.Equal(t, third.ID, memes[0].ID)
		assert.Equal(t, first.ID, memes[2].ID)

		memes, err = db.GetMemes(ctx, models.MemeFilter{UserID: alice.ID, FolderID: cats.ID})
		require.NoError(t, err)
		require.Len(t, memes, 1)
		assert.Equal(t, second.ID, memes[0].ID)

		memes, err = db.GetMemes(ctx, models.MemeFilter{Category: "cats"})
		require.NoError(t, err)
		assert.Len(t, memes, 2)

		memes, err = db.GetMemes(ctx, models.MemeFilter{UserID: alice.ID, Search: "BOY"})
		require.NoError(t, err)
		require.Len(t, memes, 1)
		assert.Equal(t, first.ID, memes[0].ID)

		memes, err = db.GetMemes(ctx, models.MemeFilter{UserID: alice.ID, Search: "dog"})
		require.NoError(t, err)
		require.Len(t, memes, 1)
		assert.Equal(t, third.ID, memes[0].ID)

		folder, err := db.GetFolderByID(ctx, funny.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), folder.MemeCount)

		likes, err := db.IncrementMemeLikes(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), likes)
		likes, err = db.IncrementMemeLikes(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), likes)

		_, err = db.IncrementMemeLikes(ctx, uuid.New().String())
		assert.ErrorIs(t, err, models.ErrMemeNotFound)

		updated := *third
		updated.Title = "Such wow"
		updated.FolderID = funny.ID
		updated.Likes = 100
		require.NoError(t, db.UpdateMeme(ctx, &updated))

		got, err := db.GetMemeByID(ctx, third.ID)
		require.NoError(t, err)
		assert.Equal(t, "Such wow", got.Title)
		assert.Equal(t, funny.ID, got.FolderID)
		assert.Equal(t, int64(0), got.Likes, "UpdateMeme must not touch the like counter")

		_, err = db.GetMemeByID(ctx, uuid.New().String())
		assert.ErrorIs(t, err, models.ErrMemeNotFound)
	})

	t.Run("stats", func(t *testing.T) {
		users, err := db.GetNumberOfUsers(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), users)

		folders, err := db.GetNumberOfFolders(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), folders)

		memes, err := db.GetNumberOfMemes(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4), memes)
	})

	t.Run("deletion", func(t *testing.T) {
		deleted, err := db.DeleteMeme(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, second.PublicID, deleted.PublicID)

		_, err = db.DeleteMeme(ctx, second.ID)
		assert.ErrorIs(t, err, models.ErrMemeNotFound)

		removed, err := db.DeleteFolder(ctx, funny.ID)
		require.NoError(t, err)
		assert.Len(t, removed, 2)

		_, err = db.GetFolderByID(ctx, funny.ID)
		assert.ErrorIs(t, err, models.ErrFolderNotFound)

		memes, err := db.GetMemes(ctx, models.MemeFilter{UserID: alice.ID})
		require.NoError(t, err)
		assert.Empty(t, memes)

		_, err = db.DeleteFolder(ctx, funny.ID)
		assert.ErrorIs(t, err, models.ErrFolderNotFound)
	})

	t.Run("folder deletion with concurrent uploads", func(t *testing.T) {
		busy := NewFolder(bob.ID, "busy", base)
		require.NoError(t, db.CreateFolder(ctx, busy))
		for i := 0; i < 10; i++ {
			require.NoError(t, db.CreateMeme(ctx, NewMeme(bob.ID, busy.ID, "early", "Other", base)))
		}

		var (
			wg       sync.WaitGroup
			inserted []string
		)
		stop := make(chan struct{})
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				meme := NewMeme(bob.ID, busy.ID, "late", "Other", base.Add(time.Second))
				if db.CreateMeme(ctx, meme) == nil {
					inserted = append(inserted, meme.ID)
				}
			}
		}()

		removed, err := db.DeleteFolder(ctx, busy.ID)
		close(stop)
		wg.Wait()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(removed), 10)

		removedIDs := make(map[string]bool, len(removed))
		for _, meme := range removed {
			removedIDs[meme.ID] = true
		}
		for _, id := range inserted {
			_, err := db.GetMemeByID(ctx, id)
			if errors.Is(err, models.ErrMemeNotFound) {
				assert.True(t, removedIDs[id], "meme %s was deleted without being returned", id)
				continue
			}
			require.NoError(t, err)
			_, err = db.DeleteMeme(ctx, id)
			require.NoError(t, err)
		}
	})

	require.NoError(t, db.Ping(ctx))
}
