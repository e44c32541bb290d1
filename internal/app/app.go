// Package app initializes and runs the meme gallery service.
// It configures logging, storage, the media host, authentication, and routing,
// and handles graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/YashLadlapure/meme-vault/internal/auth"
	"github.com/YashLadlapure/meme-vault/internal/config"
	"github.com/YashLadlapure/meme-vault/internal/db/jsondb"
	"github.com/YashLadlapure/meme-vault/internal/db/memorystorage"
	"github.com/YashLadlapure/meme-vault/internal/db/mongodb"
	"github.com/YashLadlapure/meme-vault/internal/db/postgresdb"
	"github.com/YashLadlapure/meme-vault/internal/events"
	"github.com/YashLadlapure/meme-vault/internal/ipchecker"
	"github.com/YashLadlapure/meme-vault/internal/logger"
	"github.com/YashLadlapure/meme-vault/internal/mediaremover"
	"github.com/YashLadlapure/meme-vault/internal/mediastore"
	"github.com/YashLadlapure/meme-vault/internal/models"
	"github.com/YashLadlapure/meme-vault/internal/ratelimit"
	"github.com/YashLadlapure/meme-vault/internal/router"
	"github.com/YashLadlapure/meme-vault/internal/service"
	"github.com/YashLadlapure/meme-vault/internal/user"
)

const shutdownTimeout = 10 * time.Second

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
	Close() error
}

type mediaStore interface {
	Upload(ctx context.Context, filename, contentType string, file io.Reader) (*models.UploadedImage, error)
	Destroy(ctx context.Context, publicID string) error
}

type limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close() error
}

// App encapsulates the configuration, HTTP handler, storage backend,
// and background services (such as the media remover) needed to run the gallery.
type App struct {
	cfg              *config.Config
	db               storage
	redisClient      *redis.Client
	publisher        publisher
	mediaRemover     *mediaremover.MediaRemover
	stopMediaRemover context.CancelFunc
	httpHandler      http.Handler
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up storage
// - choosing the media host and starting the background media remover
// - connecting the optional Redis limiter and NATS publisher
// - setting up the router and middleware
func New() (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New()
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	jwtSecret, err := app.cfg.JWTSecretBytes()
	if err != nil {
		return nil, fmt.Errorf("in internal/app/app.go/New(): error while `app.cfg.JWTSecretBytes()` calling: %w", err)
	}

	checker, err := ipchecker.New(app.cfg.TrustedSubnet)
	if err != nil {
		return nil, fmt.Errorf("in internal/app/app.go/New(): error while `ipchecker.New()` calling: %w", err)
	}

	db, err := getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}
	app.db = db

	media, mediaDir, err := getMediaStore(app.cfg)
	if err != nil {
		_ = app.closeResources()
		return nil, err
	}

	eventsPublisher, err := getPublisher(app.cfg)
	if err != nil {
		_ = app.closeResources()
		return nil, err
	}
	app.publisher = eventsPublisher

	app.mediaRemover = mediaremover.New(
		media,
		app.cfg.ChannelCapacity,
		app.cfg.DelayBetweenQueueFetches,
	)
	mediaRemoverRunCtx, stopMediaRemover := context.WithCancel(context.Background())
	app.stopMediaRemover = stopMediaRemover

	app.mediaRemover.Run(mediaRemoverRunCtx)
	app.mediaRemover.ListenErrors(func(err error) {
		logger.Log.Debugln("Error passed from the `app.mediaRemover.ListenErrors()`:", zap.Error(err))
	})

	authenticator := auth.New(app.db, jwtSecret, app.cfg.TokenTTL)

	app.httpHandler = router.New(
		service.New(
			app.db,
			media,
			app.mediaRemover,
			app.publisher,
			authenticator,
			app.cfg.MaxUploadSize,
		),
		authenticator,
		app.getLimiter(),
		checker,
		mediaDir,
		app.cfg.MaxUploadSize,
	)

	return app, nil
}

// Run starts the HTTP server with graceful shutdown support.
// It listens for system signals and cleans up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:              a.cfg.RunAddr,
		Handler:           a.httpHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Finishing requests and exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return a.closeResources()

	case err := <-serverErrCh:
		_ = a.closeResources()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	}
}

// closeResources stops the media remover after in-flight requests have
// queued their deletions, then closes the outbound connections.
func (a *App) closeResources() error {
	if a.stopMediaRemover != nil {
		a.stopMediaRemover()
		a.mediaRemover.Wait()
	}

	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.redisClient != nil {
		errs = append(errs, a.redisClient.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}

	return errors.Join(errs...)
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func (a *App) getLimiter() limiter {
	if a.cfg.RedisAddr == "" {
		return ratelimit.NewMemory(a.cfg.LoginRateLimit, a.cfg.LoginRateBurst)
	}

	a.redisClient = redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})

	return ratelimit.NewRedis(a.redisClient, "memevault:throttle", a.cfg.LoginRateLimit, a.cfg.LoginRateBurst)
}

func getMediaStore(cfg *config.Config) (mediaStore, string, error) {
	if cfg.UseCloudinary() {
		store, err := mediastore.NewCloudinary(mediastore.CloudinaryConfig{
			BaseURL:   cfg.CloudinaryBaseURL,
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryFolder,
		})
		return store, "", err
	}

	store, err := mediastore.NewLocalDisk(cfg.MediaDir, cfg.BaseURL)
	if err != nil {
		return nil, "", err
	}

	return store, store.Dir(), nil
}

func getPublisher(cfg *config.Config) (publisher, error) {
	if cfg.NATSURL == "" {
		return events.Noop{}, nil
	}

	natsPublisher, err := events.NewNATS(cfg.NATSURL, cfg.DBConnectionTimeout)
	if err != nil {
		return nil, fmt.Errorf("in internal/app/app.go/getPublisher(): error while `events.NewNATS()` calling: %w", err)
	}

	return natsPublisher, nil
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.MongoDBURI != "" {
		return models.StorageTypeMongoDB
	}

	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypeMongoDB:
		return mongodb.New(
			context.Background(),
			cfg.MongoDBURI,
			cfg.MongoDBDatabase,
			cfg.DBConnectionTimeout,
		)

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
			cfg.MigrationsDir,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New()
}
