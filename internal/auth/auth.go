// Package auth provides password hashing, JWT issuance and verification, and
// middleware identifying the user behind a bearer token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/YashLadlapure/meme-vault/internal/httperror"
	"github.com/YashLadlapure/meme-vault/internal/logger"
	"github.com/YashLadlapure/meme-vault/internal/models"
	"github.com/YashLadlapure/meme-vault/internal/user"
)

// ErrInvalidToken is returned for malformed, expired or foreign tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

type userGetter interface {
	GetUserByID(ctx context.Context, userID string) (*user.User, error)
}

// Auth issues and verifies tokens and authenticates requests.
type Auth struct {
	// db is used to check that the token's user still exists.
	db userGetter

	// signingSecretKey is the key used to sign JWTs.
	signingSecretKey []byte

	// tokenTTL is the lifetime of issued tokens.
	tokenTTL time.Duration
}

// Claims represents the JWT claims used by the system.
// It embeds standard JWT claims and adds a user-specific identifier.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// UserIDKey is the context key used to store and retrieve the authenticated user's ID.
const UserIDKey ContextKey = "userID"

// New creates an Auth with the given user storage, signing secret and token lifetime.
func New(
	db userGetter,
	signingSecretKey []byte,
	tokenTTL time.Duration,
) *Auth {
	return &Auth{
		db:               db,
		signingSecretKey: signingSecretKey,
		tokenTTL:         tokenTTL,
	}
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("in internal/auth/auth.go/HashPassword(): error while `bcrypt.GenerateFromPassword()` calling: %w", err)
	}

	return string(hash), nil
}

// CheckPassword reports whether password matches the bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// UserIDFromContext returns the authenticated user's ID, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

// BuildJWTString issues an HS256 token for userID that expires after the TTL.
func (a *Auth) BuildJWTString(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
		},
		UserID: userID,
	})

	tokenString, err := token.SignedString(a.signingSecretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetUserIDFromToken verifies tokenString and returns its user_id claim.
func (a *Auth) GetUserIDFromToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.signingSecretKey, nil
		},
	)
	if err != nil || !token.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}

	return claims.UserID, nil
}

func getTokenStringFromAuthorizationHeader(request *http.Request) string {
	header := strings.TrimSpace(request.Header.Get("Authorization"))
	if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}

	return header
}

// AuthenticateUser is an HTTP middleware that authenticates requests carrying
// an Authorization header and stores the user ID in the request context.
// Requests without the header pass through anonymously.
func (a *Auth) AuthenticateUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		tokenString := getTokenStringFromAuthorizationHeader(request)
		if tokenString == "" {
			h.ServeHTTP(response, request)
			return
		}

		userID, err := a.GetUserIDFromToken(tokenString)
		if err != nil {
			httperror.RespondWithError(response, httperror.Unauthorized("Invalid or expired token"))
			return
		}

		usr, err := a.db.GetUserByID(request.Context(), userID)
		if errors.Is(err, models.ErrUserNotFound) {
			httperror.RespondWithError(response, httperror.Unauthorized("User no longer exists"))
			return
		}
		if err != nil {
			logger.Log.Debugln("Error calling the `a.db.GetUserByID()`: ", zap.Error(err))
			httperror.RespondWithError(response, err)
			return
		}

		ctx := context.WithValue(request.Context(), UserIDKey, usr.ID)
		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}

// RequireUser rejects requests AuthenticateUser did not identify.
func RequireUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		if _, ok := UserIDFromContext(request.Context()); !ok {
			httperror.RespondWithError(response, httperror.Unauthorized("Authentication required"))
			return
		}

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}
