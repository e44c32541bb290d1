package jsondb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YashLadlapure/meme-vault/internal/db/storagetest"
)

func TestStorageContract(t *testing.T) {
	theStorage, err := New(filepath.Join(t.TempDir(), "db_test.json"))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, theStorage.Close())
	}()

	storagetest.Run(t, theStorage)
}

func TestPersistence(t *testing.T) {
	t.Run("The database survives a reopen", func(t *testing.T) {
		ctx := context.Background()
		fileName := filepath.Join(t.TempDir(), "db_test.json")

		theStorage, err := New(fileName)
		require.NoError(t, err)

		_, err = os.Stat(fileName)
		require.NoError(t, err, "New() should create the database file")

		usr := storagetest.NewUser("alice")
		require.NoError(t, theStorage.CreateUser(ctx, usr))
		folder := storagetest.NewFolder(usr.ID, "funny", time.Now())
		require.NoError(t, theStorage.CreateFolder(ctx, folder))
		meme := storagetest.NewMeme(usr.ID, folder.ID, "Doge", "dogs", time.Now())
		require.NoError(t, theStorage.CreateMeme(ctx, meme))
		_, err = theStorage.IncrementMemeLikes(ctx, meme.ID)
		require.NoError(t, err)

		reopened, err := New(fileName)
		require.NoError(t, err, "every write should already be on disk")

		gotUser, err := reopened.GetUserByEmail(ctx, usr.Email)
		require.NoError(t, err)
		assert.Equal(t, usr.PasswordHash, gotUser.PasswordHash)

		gotMeme, err := reopened.GetMemeByID(ctx, meme.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), gotMeme.Likes)
		assert.Equal(t, folder.ID, gotMeme.FolderID)

		require.NoError(t, theStorage.Close())
		require.NoError(t, reopened.Close())
	})

	t.Run("A corrupted file is reported", func(t *testing.T) {
		fileName := filepath.Join(t.TempDir(), "broken.json")
		require.NoError(t, os.WriteFile(fileName, []byte("{not json"), 0644))

		_, err := New(fileName)
		assert.Error(t, err)
	})
}
