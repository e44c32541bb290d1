package mediastore

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCloudName = "demo"
	testAPIKey    = "123456"
	testAPISecret = "abcd"
)

func TestSign(t *testing.T) {
	// Reference vector from the Cloudinary authentication documentation.
	params := map[string]string{
		"eager":     "w_400,h_300,c_pad|w_260,h_200,c_crop",
		"public_id": "sample_image",
		"timestamp": "1315060510",
	}
	assert.Equal(
		t,
		"bfd09f95f331f558cbd1320e67aa8d488770583e",
		Sign(params, testAPISecret),
	)

	params["empty"] = ""
	assert.Equal(
		t,
		"bfd09f95f331f558cbd1320e67aa8d488770583e",
		Sign(params, testAPISecret),
		"empty params are not signed",
	)
}

func newFakeCloudinary(t *testing.T, destroyResult string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/v1_1/" + testCloudName + "/image/upload":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			signed := map[string]string{
				"folder":    r.FormValue("folder"),
				"timestamp": r.FormValue("timestamp"),
			}
			if r.FormValue("api_key") != testAPIKey || r.FormValue("signature") != Sign(signed, testAPISecret) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":{"message":"Invalid Signature"}}`))
				return
			}
			file, header, err := r.FormFile("file")
			require.NoError(t, err)
			content, err := io.ReadAll(file)
			require.NoError(t, err)
			publicID := r.FormValue("folder") + "/" + strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"public_id":  publicID,
				"secure_url": "https://res.cloudinary.com/demo/image/upload/" + publicID + ".png",
				"bytes":      len(content),
			})
		case "/v1_1/" + testCloudName + "/image/destroy":
			require.NoError(t, r.ParseForm())
			signed := map[string]string{
				"public_id": r.FormValue("public_id"),
				"timestamp": r.FormValue("timestamp"),
			}
			if r.FormValue("signature") != Sign(signed, testAPISecret) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":{"message":"Invalid Signature"}}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"result": destroyResult})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"message":"no route"}}`))
		}
	}))
}

func TestCloudinary(t *testing.T) {
	ctx := context.Background()

	t.Run("Credentials are required", func(t *testing.T) {
		_, err := NewCloudinary(CloudinaryConfig{CloudName: testCloudName})
		assert.Error(t, err)
	})

	t.Run("Upload and destroy are signed", func(t *testing.T) {
		server := newFakeCloudinary(t, "ok")
		defer server.Close()

		store, err := NewCloudinary(CloudinaryConfig{
			BaseURL:   server.URL,
			CloudName: testCloudName,
			APIKey:    testAPIKey,
			APISecret: testAPISecret,
			Folder:    "meme-vault",
		})
		require.NoError(t, err)
		store.now = func() time.Time { return time.Unix(1700000000, 0) }

		uploaded, err := store.Upload(ctx, "doge.png", "image/png", bytes.NewReader([]byte("png bytes")))
		require.NoError(t, err)
		assert.Equal(t, "meme-vault/doge", uploaded.PublicID)
		assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/meme-vault/doge.png", uploaded.URL)

		assert.NoError(t, store.Destroy(ctx, uploaded.PublicID))
	})

	t.Run("A missing image counts as destroyed", func(t *testing.T) {
		server := newFakeCloudinary(t, "not found")
		defer server.Close()

		store, err := NewCloudinary(CloudinaryConfig{
			BaseURL:   server.URL,
			CloudName: testCloudName,
			APIKey:    testAPIKey,
			APISecret: testAPISecret,
		})
		require.NoError(t, err)

		assert.NoError(t, store.Destroy(ctx, "meme-vault/gone"))
	})

	t.Run("API errors carry the host message", func(t *testing.T) {
		server := newFakeCloudinary(t, "ok")
		defer server.Close()

		store, err := NewCloudinary(CloudinaryConfig{
			BaseURL:   server.URL,
			CloudName: testCloudName,
			APIKey:    testAPIKey,
			APISecret: "wrong",
		})
		require.NoError(t, err)

		_, err = store.Upload(ctx, "doge.png", "image/png", bytes.NewReader([]byte("png bytes")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid Signature")

		err = store.Destroy(ctx, "meme-vault/doge")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid Signature")
	})
}

func TestLocalDisk(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "uploads")

	store, err := NewLocalDisk(dir, "http://localhost:5001/")
	require.NoError(t, err)
	assert.Equal(t, dir, store.Dir())

	uploaded, err := store.Upload(ctx, "doge.anything", "image/png", bytes.NewReader([]byte("png bytes")))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(uploaded.PublicID, ".png"))
	assert.Equal(t, "http://localhost:5001/media/"+uploaded.PublicID, uploaded.URL)

	content, err := os.ReadFile(filepath.Join(dir, uploaded.PublicID))
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(content))

	require.NoError(t, store.Destroy(ctx, uploaded.PublicID))
	_, err = os.Stat(filepath.Join(dir, uploaded.PublicID))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Destroy(ctx, uploaded.PublicID), "destroying twice is fine")
	assert.Error(t, store.Destroy(ctx, "../escape.png"))
}
