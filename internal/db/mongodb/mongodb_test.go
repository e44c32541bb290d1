package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/YashLadlapure/meme-vault/internal/db/storagetest"
)

func TestStorageContract(t *testing.T) {
	uri := os.Getenv("TEST_MONGODB_URI") // mongodb://localhost:27017
	if uri == "" {
		t.Skip("TEST_MONGODB_URI is not set")
	}

	db, err := New(
		context.Background(),
		uri,
		"memevault_test",
		10*time.Second,
		WithDropDatabase(true),
	)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, db.Close())
	}()

	storagetest.Run(t, db)
}
