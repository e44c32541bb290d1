package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YashLadlapure/meme-vault/internal/db/memorystorage"
	"github.com/YashLadlapure/meme-vault/internal/db/storagetest"
)

var testSecret = []byte("test-secret")

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)

	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))
	assert.False(t, CheckPassword("not a hash", "hunter22"))
}

func TestTokens(t *testing.T) {
	theAuth := New(nil, testSecret, time.Hour)

	t.Run("A fresh token carries the user id", func(t *testing.T) {
		token, err := theAuth.BuildJWTString("user-1")
		require.NoError(t, err)

		userID, err := theAuth.GetUserIDFromToken(token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", userID)
	})

	t.Run("An expired token is rejected", func(t *testing.T) {
		expired := New(nil, testSecret, -time.Minute)
		token, err := expired.BuildJWTString("user-1")
		require.NoError(t, err)

		_, err = theAuth.GetUserIDFromToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("A token signed with another key is rejected", func(t *testing.T) {
		foreign := New(nil, []byte("other-secret"), time.Hour)
		token, err := foreign.BuildJWTString("user-1")
		require.NoError(t, err)

		_, err = theAuth.GetUserIDFromToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("A token with the none algorithm is rejected", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-1"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = theAuth.GetUserIDFromToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Garbage is rejected", func(t *testing.T) {
		_, err := theAuth.GetUserIDFromToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestMiddlewares(t *testing.T) {
	db, err := memorystorage.New()
	require.NoError(t, err)

	usr := storagetest.NewUser("alice")
	require.NoError(t, db.CreateUser(context.Background(), usr))

	theAuth := New(db, testSecret, time.Hour)

	validToken, err := theAuth.BuildJWTString(usr.ID)
	require.NoError(t, err)
	ghostToken, err := theAuth.BuildJWTString("ghost")
	require.NoError(t, err)

	echoUserID := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())
		_, _ = w.Write([]byte(userID))
	})

	tests := []struct {
		name           string
		authorization  string
		handler        http.Handler
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Bearer token identifies the user",
			authorization:  "Bearer " + validToken,
			handler:        theAuth.AuthenticateUser(echoUserID),
			expectedStatus: http.StatusOK,
			expectedBody:   usr.ID,
		},
		{
			name:           "A bare token is accepted",
			authorization:  validToken,
			handler:        theAuth.AuthenticateUser(echoUserID),
			expectedStatus: http.StatusOK,
			expectedBody:   usr.ID,
		},
		{
			name:           "No header passes anonymously",
			handler:        theAuth.AuthenticateUser(echoUserID),
			expectedStatus: http.StatusOK,
			expectedBody:   "",
		},
		{
			name:           "Invalid token is unauthorized",
			authorization:  "Bearer nope",
			handler:        theAuth.AuthenticateUser(echoUserID),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Token of a removed user is unauthorized",
			authorization:  "Bearer " + ghostToken,
			handler:        theAuth.AuthenticateUser(echoUserID),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "RequireUser rejects anonymous requests",
			handler:        theAuth.AuthenticateUser(RequireUser(echoUserID)),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "RequireUser lets identified requests through",
			authorization:  "Bearer " + validToken,
			handler:        theAuth.AuthenticateUser(RequireUser(echoUserID)),
			expectedStatus: http.StatusOK,
			expectedBody:   usr.ID,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if test.authorization != "" {
				request.Header.Set("Authorization", test.authorization)
			}
			recorder := httptest.NewRecorder()

			test.handler.ServeHTTP(recorder, request)

			assert.Equal(t, test.expectedStatus, recorder.Code)
			if test.expectedStatus == http.StatusOK {
				assert.Equal(t, test.expectedBody, recorder.Body.String())
			} else {
				assert.Contains(t, recorder.Body.String(), `"error"`)
			}
		})
	}
}
