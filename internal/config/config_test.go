package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJSON = `{
	"server_address": ":3000",
	"base_url": "http://json-config.com",
	"file_storage_path": "json_storage.json",
	"database_dsn": "json-dsn",
	"token_ttl": "1h",
	"db_connection_timeout": "3s",
	"login_rate_limit": 20
}`

func writeTempJSON(t *testing.T, content string) string {
	t.Helper()
	fileName := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(fileName, []byte(content), 0644))
	return fileName
}

func TestDefaults(t *testing.T) {
	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":5001", cfg.RunAddr)
	assert.Equal(t, "http://localhost:5001", cfg.BaseURL)
	assert.Equal(t, "meme-vault", cfg.CloudinaryFolder)
	assert.Equal(t, int64(10485760), cfg.MaxUploadSize)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL)
	assert.False(t, cfg.UseCloudinary())

	secret, err := cfg.JWTSecretBytes()
	require.NoError(t, err)
	assert.Equal(t, "meme-vault-development-secret-key", string(secret))
}

func TestConfigPriorityJSONOnly(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.RunAddr)
	assert.Equal(t, "http://json-config.com", cfg.BaseURL)
	assert.Equal(t, "json_storage.json", cfg.DBFileName)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, 3*time.Second, cfg.DBConnectionTimeout)
	assert.Equal(t, 20, cfg.LoginRateLimit)
	assert.Equal(t, 5*time.Second, cfg.DelayBetweenQueueFetches, "absent keys keep defaults")
	assert.Equal(t, jsonPath, cfg.ConfigFile)
}

func TestConfigPriorityJSONPlusEnv(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)
	t.Setenv("SERVER_ADDRESS", ":4000")
	t.Setenv("BASE_URL", "http://env.com")
	t.Setenv("TOKEN_TTL", "2h")

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.RunAddr) // env overrides json
	assert.Equal(t, "http://env.com", cfg.BaseURL)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN) // from JSON
}

func TestConfigPriorityAllSources(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)
	t.Setenv("SERVER_ADDRESS", ":4000")
	t.Setenv("BASE_URL", "http://env.com")

	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })
	os.Args = []string{
		"testbin",
		"-a", ":6000",
		"-b", "http://cli.com",
		"-t", "10.0.0.0/8",
	}

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, ":6000", cfg.RunAddr) // CLI > ENV > JSON
	assert.Equal(t, "http://cli.com", cfg.BaseURL)
	assert.Equal(t, "10.0.0.0/8", cfg.TrustedSubnet)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN) // from JSON
}

func TestConfigFileFromFlag(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)

	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })
	os.Args = []string{"testbin", "-c", jsonPath}

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.RunAddr)
}

func TestConfigEnvOnly(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", ":7000")
	t.Setenv("BASE_URL", "http://envonly.com")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CLOUDINARY_CLOUD_NAME", "demo")
	t.Setenv("CLOUDINARY_API_KEY", "key")
	t.Setenv("CLOUDINARY_API_SECRET", "secret")

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.RunAddr)
	assert.Equal(t, "http://envonly.com", cfg.BaseURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.UseCloudinary())
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "Unknown log level", env: map[string]string{"LOG_LEVEL": "loud"}},
		{name: "Bad base URL", env: map[string]string{"BASE_URL": "not a url"}},
		{name: "Bad subnet", env: map[string]string{"TRUSTED_SUBNET": "10.0.0.0"}},
		{name: "Secret is not base64url", env: map[string]string{"JWT_SECRET": "not base64!"}},
		{name: "Cloudinary without credentials", env: map[string]string{"CLOUDINARY_CLOUD_NAME": "demo"}},
		{name: "Zero upload size", env: map[string]string{"MAX_UPLOAD_SIZE": "0"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			for key, value := range test.env {
				t.Setenv(key, value)
			}

			_, err := New(WithDisableFlagsParsing(true))
			assert.Error(t, err)
		})
	}

	t.Run("A broken JSON file is reported", func(t *testing.T) {
		t.Setenv("CONFIG", writeTempJSON(t, "{"))

		_, err := New(WithDisableFlagsParsing(true))
		assert.Error(t, err)
	})
}
