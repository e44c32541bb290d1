package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/YashLadlapure/meme-vault/internal/auth"
	"github.com/YashLadlapure/meme-vault/internal/logger"
	"github.com/YashLadlapure/meme-vault/internal/models"
	"github.com/YashLadlapure/meme-vault/internal/user"
)

type userKeeper interface {
	CreateUser(ctx context.Context, usr *user.User) error
	GetUserByID(ctx context.Context, userID string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
}

type folderKeeper interface {
	CreateFolder(ctx context.Context, folder *models.Folder) error
	GetFolderByID(ctx context.Context, folderID string) (*models.Folder, error)
	GetUserFolders(ctx context.Context, userID string) ([]models.Folder, error)
	UpdateFolder(ctx context.Context, folder *models.Folder) error
	DeleteFolder(ctx context.Context, folderID string) ([]models.Meme, error)
}

type memeKeeper interface {
	CreateMeme(ctx context.Context, meme *models.Meme) error
	GetMemeByID(ctx context.Context, memeID string) (*models.Meme, error)
	GetMemes(ctx context.Context, filter models.MemeFilter) ([]models.Meme, error)
	UpdateMeme(ctx context.Context, meme *models.Meme) error
	IncrementMemeLikes(ctx context.Context, memeID string) (int64, error)
	DeleteMeme(ctx context.Context, memeID string) (*models.Meme, error)
}

type statsKeeper interface {
	GetNumberOfUsers(ctx context.Context) (int64, error)
	GetNumberOfFolders(ctx context.Context) (int64, error)
	GetNumberOfMemes(ctx context.Context) (int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type storage interface {
	userKeeper
	folderKeeper
	memeKeeper
	statsKeeper
	pinger
}

type mediaUploader interface {
	Upload(ctx context.Context, filename, contentType string, file io.Reader) (*models.UploadedImage, error)
}

type mediaRemover interface {
	EnqueueJob(publicIDs ...string)
}

type eventPublisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

type tokenIssuer interface {
	BuildJWTString(userID string) (string, error)
}

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrForbidden          = errors.New("not allowed to access this resource")
	ErrNoImage            = errors.New("no image file provided")
	ErrUnsupportedImage   = errors.New("only jpg, png, gif and webp images are allowed")
	ErrImageTooLarge      = errors.New("image is too large")
)

type Service struct {
	db            storage
	media         mediaUploader
	mediaRemover  mediaRemover
	publisher     eventPublisher
	tokens        tokenIssuer
	validate      *validator.Validate
	maxUploadSize int64
	now           func() time.Time
	checkPassword func(hash, password string) bool
}

// unknownUserHash is compared against when the email is not registered, so
// a failed login costs one bcrypt comparison either way.
var unknownUserHash = sync.OnceValue(func() string {
	hash, err := auth.HashPassword("meme-vault-unknown-user")
	if err != nil {
		logger.Log.Debugln("Error calling the `auth.HashPassword()`: ", zap.Error(err))
	}
	return hash
})

func New(
	db storage,
	media mediaUploader,
	mediaRemover mediaRemover,
	publisher eventPublisher,
	tokens tokenIssuer,
	maxUploadSize int64,
) *Service {
	return &Service{
		db:            db,
		media:         media,
		mediaRemover:  mediaRemover,
		publisher:     publisher,
		tokens:        tokens,
		validate:      newValidator(),
		maxUploadSize: maxUploadSize,
		now:           func() time.Time { return time.Now().UTC() },
		checkPassword: auth.CheckPassword,
	}
}

// publish never fails the caller: the change is already stored.
func (s *Service) publish(ctx context.Context, subject string, payload any) {
	if err := s.publisher.Publish(ctx, subject, payload); err != nil {
		logger.Log.Debugln("Error calling the `s.publisher.Publish()`: ", zap.String("subject", subject), zap.Error(err))
	}
}

func (s *Service) issueToken(usr *user.User) (*models.AuthResponse, error) {
	token, err := s.tokens.BuildJWTString(usr.ID)
	if err != nil {
		return nil, fmt.Errorf("in internal/service/service.go/issueToken(): error while `s.tokens.BuildJWTString()` calling: %w", err)
	}

	return &models.AuthResponse{
		Success: true,
		Token:   token,
		User:    usr.Public(),
	}, nil
}

// Register creates an account and signs the new user in.
func (s *Service) Register(ctx context.Context, request models.RegisterRequest) (*models.AuthResponse, error) {
	request.Username = strings.TrimSpace(request.Username)
	request.Email = strings.TrimSpace(request.Email)
	if err := s.validateStruct(request); err != nil {
		return nil, err
	}

	passwordHash, err := auth.HashPassword(request.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	usr := &user.User{
		ID:           uuid.New().String(),
		Username:     request.Username,
		Email:        request.Email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.CreateUser(ctx, usr); err != nil {
		return nil, fmt.Errorf("in internal/service/service.go/Register(): error while `s.db.CreateUser()` calling: %w", err)
	}

	return s.issueToken(usr)
}

// Login checks the credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, request models.LoginRequest) (*models.AuthResponse, error) {
	request.Email = strings.TrimSpace(request.Email)
	if err := s.validateStruct(request); err != nil {
		return nil, err
	}

	usr, err := s.db.GetUserByEmail(ctx, request.Email)
	if errors.Is(err, models.ErrUserNotFound) {
		s.checkPassword(unknownUserHash(), request.Password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("in internal/service/service.go/Login(): error while `s.db.GetUserByEmail()` calling: %w", err)
	}

	if !s.checkPassword(usr.PasswordHash, request.Password) {
		return nil, ErrInvalidCredentials
	}

	return s.issueToken(usr)
}

func (s *Service) CurrentUser(ctx context.Context, userID string) (*user.User, error) {
	return s.db.GetUserByID(ctx, userID)
}

func (s *Service) GetStats(ctx context.Context) (*models.StatsResponse, error) {
	users, err := s.db.GetNumberOfUsers(ctx)
	if err != nil {
		return nil, err
	}
	folders, err := s.db.GetNumberOfFolders(ctx)
	if err != nil {
		return nil, err
	}
	memes, err := s.db.GetNumberOfMemes(ctx)
	if err != nil {
		return nil, err
	}

	return &models.StatsResponse{Users: users, Folders: folders, Memes: memes}, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
