package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/thoas/go-funk"

	"github.com/YashLadlapure/meme-vault/internal/events"
	"github.com/YashLadlapure/meme-vault/internal/models"
)

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// ownedMeme loads the meme and checks that userID owns it.
func (s *Service) ownedMeme(ctx context.Context, userID, memeID string) (*models.Meme, error) {
	meme, err := s.db.GetMemeByID(ctx, memeID)
	if err != nil {
		return nil, err
	}
	if meme.UserID != userID {
		return nil, ErrForbidden
	}

	return meme, nil
}

// readImage reads at most maxUploadSize bytes and sniffs their type.
func (s *Service) readImage(file io.Reader) ([]byte, string, error) {
	if file == nil {
		return nil, "", ErrNoImage
	}

	data, err := io.ReadAll(io.LimitReader(file, s.maxUploadSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("in internal/service/memes.go/readImage(): error while `io.ReadAll()` calling: %w", err)
	}
	if len(data) == 0 {
		return nil, "", ErrNoImage
	}
	if int64(len(data)) > s.maxUploadSize {
		return nil, "", ErrImageTooLarge
	}

	detected := mimetype.Detect(data)
	for _, allowed := range allowedImageTypes {
		if detected.Is(allowed) {
			return data, allowed, nil
		}
	}

	return nil, "", ErrUnsupportedImage
}

func withDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

// UploadMeme stores the image with the media host and records the meme.
func (s *Service) UploadMeme(
	ctx context.Context,
	userID string,
	request models.UploadMemeRequest,
	filename string,
	file io.Reader,
) (*models.Meme, error) {
	request.Title = strings.TrimSpace(request.Title)
	request.Description = strings.TrimSpace(request.Description)
	request.Category = strings.TrimSpace(request.Category)
	request.FolderID = strings.TrimSpace(request.FolderID)
	if err := s.validateStruct(request); err != nil {
		return nil, err
	}

	if request.FolderID != "" {
		if _, err := s.ownedFolder(ctx, userID, request.FolderID); err != nil {
			return nil, err
		}
	}

	data, contentType, err := s.readImage(file)
	if err != nil {
		return nil, err
	}

	uploaded, err := s.media.Upload(ctx, filename, contentType, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("in internal/service/memes.go/UploadMeme(): error while `s.media.Upload()` calling: %w", err)
	}

	now := s.now()
	meme := &models.Meme{
		ID:          uuid.New().String(),
		UserID:      userID,
		FolderID:    request.FolderID,
		Title:       withDefault(request.Title, models.DefaultMemeTitle),
		Description: request.Description,
		Category:    withDefault(request.Category, models.DefaultCategory),
		ImageURL:    uploaded.URL,
		PublicID:    uploaded.PublicID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.CreateMeme(ctx, meme); err != nil {
		s.mediaRemover.EnqueueJob(uploaded.PublicID)
		return nil, fmt.Errorf("in internal/service/memes.go/UploadMeme(): error while `s.db.CreateMeme()` calling: %w", err)
	}

	s.publish(ctx, events.SubjectMemeCreated, meme)

	return meme, nil
}

// ListMemes returns memes matching filter, newest first.
func (s *Service) ListMemes(ctx context.Context, filter models.MemeFilter) ([]models.Meme, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	filter.Search = strings.TrimSpace(filter.Search)

	return s.db.GetMemes(ctx, filter)
}

// UpdateMeme applies the fields present in the request to an owned meme.
func (s *Service) UpdateMeme(
	ctx context.Context,
	userID string,
	memeID string,
	request models.UpdateMemeRequest,
) (*models.Meme, error) {
	if err := s.validateStruct(request); err != nil {
		return nil, err
	}

	meme, err := s.ownedMeme(ctx, userID, memeID)
	if err != nil {
		return nil, err
	}

	if request.Title != nil {
		title := strings.TrimSpace(*request.Title)
		if title == "" {
			return nil, newValidationError("title must not be empty")
		}
		meme.Title = title
	}
	if request.Description != nil {
		meme.Description = strings.TrimSpace(*request.Description)
	}
	if request.Category != nil {
		meme.Category = withDefault(strings.TrimSpace(*request.Category), models.DefaultCategory)
	}
	if request.FolderID != nil {
		folderID := strings.TrimSpace(*request.FolderID)
		if folderID != "" {
			if _, err := s.ownedFolder(ctx, userID, folderID); err != nil {
				return nil, err
			}
		}
		meme.FolderID = folderID
	}
	meme.UpdatedAt = s.now()

	if err := s.db.UpdateMeme(ctx, meme); err != nil {
		return nil, fmt.Errorf("in internal/service/memes.go/UpdateMeme(): error while `s.db.UpdateMeme()` calling: %w", err)
	}

	s.publish(ctx, events.SubjectMemeUpdated, meme)

	return meme, nil
}

// LikeMeme adds one like. Any signed-in user may like any meme, repeatedly.
func (s *Service) LikeMeme(ctx context.Context, memeID string) (*models.LikeResponse, error) {
	likes, err := s.db.IncrementMemeLikes(ctx, memeID)
	if err != nil {
		return nil, err
	}

	result := &models.LikeResponse{ID: memeID, Likes: likes}
	s.publish(ctx, events.SubjectMemeLiked, result)

	return result, nil
}

// DeleteMeme removes an owned meme; its image is removed in the background.
func (s *Service) DeleteMeme(ctx context.Context, userID, memeID string) (*models.Meme, error) {
	if _, err := s.ownedMeme(ctx, userID, memeID); err != nil {
		return nil, err
	}

	meme, err := s.db.DeleteMeme(ctx, memeID)
	if err != nil {
		return nil, err
	}

	s.mediaRemover.EnqueueJob(meme.PublicID)
	s.publish(ctx, events.SubjectMemeDeleted, meme)

	return meme, nil
}

// Categories lists the distinct categories of the user's memes.
func (s *Service) Categories(ctx context.Context, userID string) ([]string, error) {
	memes, err := s.db.GetMemes(ctx, models.MemeFilter{UserID: userID})
	if err != nil {
		return nil, err
	}

	categories := funk.UniqString(funk.Map(memes, func(meme models.Meme) string {
		return meme.Category
	}).([]string))

	return categories, nil
}
