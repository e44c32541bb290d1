// Package router exposes the meme gallery as a JSON HTTP API.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/YashLadlapure/meme-vault/internal/auth"
	"github.com/YashLadlapure/meme-vault/internal/gzippedhttp"
	"github.com/YashLadlapure/meme-vault/internal/httperror"
	"github.com/YashLadlapure/meme-vault/internal/ipchecker"
	"github.com/YashLadlapure/meme-vault/internal/logger"
	"github.com/YashLadlapure/meme-vault/internal/models"
	"github.com/YashLadlapure/meme-vault/internal/service"
	"github.com/YashLadlapure/meme-vault/internal/user"
)

const (
	maxJSONBodySize = 1 << 20

	// multipartOverhead leaves room for the text fields next to the image.
	multipartOverhead = 1 << 20
)

type memeService interface {
	Register(ctx context.Context, request models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, request models.LoginRequest) (*models.AuthResponse, error)
	CurrentUser(ctx context.Context, userID string) (*user.User, error)

	CreateFolder(ctx context.Context, userID string, request models.CreateFolderRequest) (*models.Folder, error)
	ListFolders(ctx context.Context, userID string) ([]models.Folder, error)
	GetFolderWithMemes(ctx context.Context, userID, folderID string) (*models.FolderWithMemes, error)
	UpdateFolder(ctx context.Context, userID, folderID string, request models.UpdateFolderRequest) (*models.Folder, error)
	DeleteFolder(ctx context.Context, userID, folderID string) error

	UploadMeme(ctx context.Context, userID string, request models.UploadMemeRequest, filename string, file io.Reader) (*models.Meme, error)
	ListMemes(ctx context.Context, filter models.MemeFilter) ([]models.Meme, error)
	Categories(ctx context.Context, userID string) ([]string, error)
	UpdateMeme(ctx context.Context, userID, memeID string, request models.UpdateMemeRequest) (*models.Meme, error)
	LikeMeme(ctx context.Context, memeID string) (*models.LikeResponse, error)
	DeleteMeme(ctx context.Context, userID, memeID string) (*models.Meme, error)

	GetStats(ctx context.Context) (*models.StatsResponse, error)
	Ping(ctx context.Context) error
}

type authenticator interface {
	AuthenticateUser(h http.Handler) http.Handler
}

type limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Router struct {
	service       memeService
	auth          authenticator
	limiter       limiter
	ipChecker     *ipchecker.IPChecker
	mediaDir      string
	maxUploadSize int64
}

type envelope map[string]any

// New builds the HTTP handler. mediaDir is served under /media/ when not empty.
func New(
	svc memeService,
	authenticator authenticator,
	limiter limiter,
	ipChecker *ipchecker.IPChecker,
	mediaDir string,
	maxUploadSize int64,
) http.Handler {
	r := &Router{
		service:       svc,
		auth:          authenticator,
		limiter:       limiter,
		ipChecker:     ipChecker,
		mediaDir:      mediaDir,
		maxUploadSize: maxUploadSize,
	}

	return r.routes()
}

func (r *Router) routes() http.Handler {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		ipchecker.WithPeerIP,
		middleware.RealIP,
		logger.WithLoggingHTTPMiddleware,
		middleware.Recoverer,
		withCORS,
		gzippedhttp.UngzipJSONRequest,
		gzippedhttp.GzipResponse,
	)

	router.NotFound(func(response http.ResponseWriter, _ *http.Request) {
		httperror.RespondWithError(response, httperror.NotFound("Route not found"))
	})
	router.MethodNotAllowed(func(response http.ResponseWriter, _ *http.Request) {
		httperror.RespondWithError(response, httperror.New(http.StatusMethodNotAllowed, "Method not allowed"))
	})

	router.Get(`/`, r.GetRoot)
	router.Get(`/ping`, r.GetPing)

	router.Route(`/api`, func(api chi.Router) {
		api.Use(withNoStore)

		api.Get(`/`, r.GetRoot)

		api.With(r.throttle).Post(`/auth/register`, r.PostApiauthregister)
		api.With(r.throttle).Post(`/auth/login`, r.PostApiauthlogin)

		api.With(r.ipChecker.TrustedSubnetOnly).Get(`/internal/stats`, r.GetApiinternalstats)

		api.Group(func(protected chi.Router) {
			protected.Use(r.auth.AuthenticateUser, auth.RequireUser)

			protected.Get(`/auth/me`, r.GetApiauthme)

			protected.Post(`/folders`, r.PostApifolders)
			protected.Get(`/folders`, r.GetApifolders)
			protected.Get(`/folders/{id}/memes`, r.GetApifoldersmemes)
			protected.Patch(`/folders/{id}`, r.PatchApifolders)
			protected.Delete(`/folders/{id}`, r.DeleteApifolders)

			protected.Get(`/memes`, r.GetApimemes)
			protected.Get(`/memes/categories`, r.GetApimemescategories)
			protected.Post(`/memes`, r.PostApimemes)
			protected.Post(`/memes/{id}/like`, r.PostApimemeslike)
			protected.Patch(`/memes/{id}`, r.PatchApimemes)
			protected.Delete(`/memes/{id}`, r.DeleteApimemes)
		})
	})

	if r.mediaDir != "" {
		router.Handle(`/media/*`, http.StripPrefix(`/media/`, noDirectoryListing(http.FileServer(http.Dir(r.mediaDir)))))
	}

	return router
}

func withCORS(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		header := response.Header()
		header.Set("Access-Control-Allow-Origin", "*")
		header.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		header.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Content-Encoding, Accept-Encoding")

		if request.Method == http.MethodOptions {
			response.WriteHeader(http.StatusNoContent)
			return
		}

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}

func withNoStore(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		response.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}

func noDirectoryListing(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		if request.URL.Path == "" || strings.HasSuffix(request.URL.Path, "/") {
			httperror.RespondWithError(response, httperror.NotFound(""))
			return
		}

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}

// throttle limits requests per connecting peer. Forwarding headers are not
// part of the key. A failing limiter lets requests through.
func (r *Router) throttle(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		key := request.URL.Path + ":" + r.ipChecker.ClientKey(request)
		allowed, err := r.limiter.Allow(request.Context(), key)
		if err != nil {
			logger.Log.Debugln("Error calling the `r.limiter.Allow()`: ", zap.Error(err))
			allowed = true
		}
		if !allowed {
			response.Header().Set("Retry-After", "60")
			httperror.RespondWithError(response, httperror.TooManyRequests("Too many attempts, try again later"))
			return
		}

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}

// toHTTPError maps domain errors to statuses and client messages.
func toHTTPError(err error) error {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return httperror.BadRequest(validationErr.Message, err)
	case errors.Is(err, models.ErrUsernameTaken),
		errors.Is(err, models.ErrEmailTaken),
		errors.Is(err, models.ErrFolderNameTaken):
		return httperror.Conflict(rootMessage(err))
	case errors.Is(err, service.ErrInvalidCredentials):
		return httperror.Unauthorized("Invalid email or password")
	case errors.Is(err, service.ErrForbidden):
		return httperror.Forbidden("You do not have access to this resource")
	case errors.Is(err, models.ErrUserNotFound):
		return httperror.NotFound("User not found")
	case errors.Is(err, models.ErrFolderNotFound):
		return httperror.NotFound("Folder not found")
	case errors.Is(err, models.ErrMemeNotFound):
		return httperror.NotFound("Meme not found")
	case errors.Is(err, service.ErrNoImage),
		errors.Is(err, service.ErrUnsupportedImage),
		errors.Is(err, service.ErrImageTooLarge):
		return httperror.BadRequest(rootMessage(err), err)
	default:
		return httperror.InternalServer(err)
	}
}

// rootMessage is the message of the innermost wrapped error.
func rootMessage(err error) string {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err.Error()
		}
		err = unwrapped
	}
}

func respondWithError(response http.ResponseWriter, err error) {
	httperror.RespondWithError(response, toHTTPError(err))
}

func decodeJSON(response http.ResponseWriter, request *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(response, request.Body, maxJSONBodySize))
	if err := decoder.Decode(target); err != nil {
		httperror.RespondWithError(response, httperror.BadRequest("Invalid JSON body", err))
		return false
	}

	return true
}

func currentUserID(request *http.Request) string {
	userID, _ := auth.UserIDFromContext(request.Context())
	return userID
}

// GetRoot describes the API.
func (r *Router) GetRoot(response http.ResponseWriter, _ *http.Request) {
	httperror.RespondWithJSON(response, http.StatusOK, envelope{
		"message": "Meme Vault API is running",
		"endpoints": []string{
			"POST /api/auth/register",
			"POST /api/auth/login",
			"GET /api/auth/me",
			"GET /api/folders",
			"POST /api/folders",
			"GET /api/folders/{id}/memes",
			"PATCH /api/folders/{id}",
			"DELETE /api/folders/{id}",
			"GET /api/memes",
			"GET /api/memes/categories",
			"POST /api/memes",
			"POST /api/memes/{id}/like",
			"PATCH /api/memes/{id}",
			"DELETE /api/memes/{id}",
		},
	})
}

func (r *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := r.service.Ping(request.Context()); err != nil {
		logger.Log.Debugln("Error calling the `r.service.Ping()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.WriteHeader(http.StatusOK)
}

func (r *Router) PostApiauthregister(response http.ResponseWriter, request *http.Request) {
	var body models.RegisterRequest
	if !decodeJSON(response, request, &body) {
		return
	}

	result, err := r.service.Register(request.Context(), body)
	if err != nil {
		respondWithError(response, err)
		return
	}

	httperror.RespondWithJSON(response, http.StatusCreated, result)
}

func (r *Router) PostApiauthlogin(response http.ResponseWriter, request *http.Request) {
	var body models.LoginRequest
	if !decodeJSON(response, request, &body) {
		return
	}

	result, err := r.service.Login(request.Context(), body)
	if err != nil {
		respondWithError(response, err)
		return
	}

	httperror.RespondWithJSON(response, http.StatusOK, result)
}

func (r *Router) GetApiauthme(response http.ResponseWriter, request *http.Request) {
	usr, err := r.service.CurrentUser(request.Context(), currentUserID(request))
	if err != nil {
		respondWithError(response, err)
		return
	}

	httperror.RespondWithJSON(response, http.StatusOK, envelope{"success": true, "user": usr.Public()})
}

func (r *Router) PostApifolders(response http.ResponseWriter, request *http.Request) {
	var body models.CreateFolderRequest
	if !decodeJSON(response, request, &body) {
		return
	}

	folder, err := r.service.CreateFolder(request.Context(), currentUserID(request), body)
	if err != nil {
		respondWithError(response, err)
		return
	}

	httperror.RespondWithJSON(response, http.StatusCreated, envelope{"success": true, "folder": folder})
}

func (r *Router) GetApifolders(response http.ResponseWriter, request *http.Request) {
	folders, err := r.service.ListFolders(request.Context(), currentUserID(request))
	if err != nil {
		respondWithError(response, err)
		return
	}
	if folders == nil {
		folders = []models.Folder{}
	}

	httperror.RespondWithJSON(response, http.StatusOK, envelope{"success": true, "folders": folders})
}

func (r *Router) GetApifoldersmemes(response http.ResponseWriter, request *http.Request) {
	result, err := r.service.GetFolderWithMemes(request.Context(), currentUserID(request), chi.URLParam(request, "id"))
	if err != nil {
		respondWithError(response, err)
		return
	}
	memes := result.Memes
	if memes == nil {
		memes = []models.Meme{}
	}

	httperror.RespondWithJSON(response, http.StatusOK, envelope{
		"success": true,
		"folder":  result.Folder,
		"memes":   memes,
	})
}

func (r *Router) PatchApifolders(response http.ResponseWriter, request *http.Request) {
	var body models.UpdateFolderRequest
	if !decodeJSON(response, request, &body) {
		return
	}

	folder, err := r.service.UpdateFolder(request.Context(), currentUserID(request), chi.URLParam(request, "id"), body)
	if err != nil {
		respondWithError(response, err)
		return
	}

	httperror.RespondWithJSON(response, http.StatusOK, envelope{"success": true, "folder": folder})
}

func (r *Router) DeleteApifolders(response http.ResponseWriter, request *http.Request) {
	err := r.service.DeleteFolder(request.Context(), currentUserID(request), chi.URLParam(request, "id"))
	if err != nil {
		respondWithError(response, err)
		return
	}

	httperror.RespondWithJSON(response, http.StatusOK, envelope{"success": true, "message": "Folder deleted successfully"})
}

func (r *Router) GetApimemes(response http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()
	memes, err := r.service.ListMemes(request.Context(), models.MemeFilter{
		UserID:   currentUserID(request),
		FolderID: query.Get("folderId"),
		Category: query.Get("category"),
		Search:   query.Get("search"),
	})
	if err != nil {
		respondWithError(response, err)
		return
	}
	if memes == nil {
		memes = []models.Meme{}
	}

	httperror.RespondWithJSON(response, http.StatusOK, envelope{"success": true, "memes": memes})
}

func (r *Router) GetApimemescategories(response http.ResponseWriter, request *http.Request) {
	categories, err := r.service.Categories(request.Context(), currentUserID(request))
	if err != nil {
		respondWithError(response, err)
		return
	}

	httperror.RespondWithJSON(response, http.StatusOK, envelope{"success": true, "categories": categories})
}

func (r *Router) PostApimemes(response http.ResponseWriter, request *http.Request) {
	request.Body = http.MaxBytesReader(response, request.Body, r.maxUploadSize+multipartOverhead)
	if err := request.ParseMultipartForm(r.maxUploadSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondWithError(response, service.ErrImageTooLarge)
			return
		}
		httperror.RespondWithError(response, httperror.BadRequest("Expected a multipart form with an image field", err))
		return
	}
	defer func() {
		_ = request.MultipartForm.RemoveAll()
	}()

	var (
		reader   io.Reader
		filename string
	)
	file, header, err := request.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		reader = file
		filename = header.Filename
	case errors.Is(err, http.ErrMissingFile):
	default:
		httperror.RespondWithError(response, httperror.BadRequest("Unreadable image field", err))
		return
	}

	body := models.UploadMemeRequest{
		Title:       request.FormValue("title"),
		Description: request.FormValue("description"),
		Category:    request.FormValue("category"),
		FolderID:    request.FormValue("folderId"),
	}

	meme, err := r.service.UploadMeme(request.Context(), currentUserID(request), body, filename, reader)
	if err != nil {
		respondWithError(response, err)
		return
	}

	httperror.RespondWithJSON(response, http.StatusCreated, envelope{"success": true, "meme": meme})
}

func (r *Router) PostApimemeslike(response http.ResponseWriter, request *http.Request) {
	result, err := r.service.LikeMeme(request.Context(), chi.URLParam(request, "id"))
	if err != nil {
		respondWithError(response, err)
		return
	}

	httperror.RespondWithJSON(response, http.StatusOK, result)
}

func (r *Router) PatchApimemes(response http.ResponseWriter, request *http.Request) {
	var body models.UpdateMemeRequest
	if !decodeJSON(response, request, &body) {
		return
	}

	meme, err := r.service.UpdateMeme(request.Context(), currentUserID(request), chi.URLParam(request, "id"), body)
	if err != nil {
		respondWithError(response, err)
		return
	}

	httperror.RespondWithJSON(response, http.StatusOK, envelope{"success": true, "meme": meme})
}

func (r *Router) DeleteApimemes(response http.ResponseWriter, request *http.Request) {
	meme, err := r.service.DeleteMeme(request.Context(), currentUserID(request), chi.URLParam(request, "id"))
	if err != nil {
		respondWithError(response, err)
		return
	}

	httperror.RespondWithJSON(response, http.StatusOK, envelope{
		"success": true,
		"message": "Meme deleted successfully",
		"meme":    meme,
	})
}

func (r *Router) GetApiinternalstats(response http.ResponseWriter, request *http.Request) {
	stats, err := r.service.GetStats(request.Context())
	if err != nil {
		respondWithError(response, err)
		return
	}

	httperror.RespondWithJSON(response, http.StatusOK, stats)
}
