package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/thoas/go-funk"

	"github.com/YashLadlapure/meme-vault/internal/events"
	"github.com/YashLadlapure/meme-vault/internal/models"
)

// ownedFolder loads the folder and checks that userID owns it.
func (s *Service) ownedFolder(ctx context.Context, userID, folderID string) (*models.Folder, error) {
	folder, err := s.db.GetFolderByID(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if folder.UserID != userID {
		return nil, ErrForbidden
	}

	return folder, nil
}

func (s *Service) CreateFolder(ctx context.Context, userID string, request models.CreateFolderRequest) (*models.Folder, error) {
	request.Name = strings.TrimSpace(request.Name)
	request.Description = strings.TrimSpace(request.Description)
	if err := s.validateStruct(request); err != nil {
		return nil, err
	}

	color := request.Color
	if color == "" {
		color = models.DefaultFolderColor
	}

	now := s.now()
	folder := &models.Folder{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        request.Name,
		Description: request.Description,
		Color:       color,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.CreateFolder(ctx, folder); err != nil {
		return nil, fmt.Errorf("in internal/service/folders.go/CreateFolder(): error while `s.db.CreateFolder()` calling: %w", err)
	}

	s.publish(ctx, events.SubjectFolderCreated, folder)

	return folder, nil
}

func (s *Service) ListFolders(ctx context.Context, userID string) ([]models.Folder, error) {
	return s.db.GetUserFolders(ctx, userID)
}

// GetFolderWithMemes returns an owned folder together with its memes.
func (s *Service) GetFolderWithMemes(ctx context.Context, userID, folderID string) (*models.FolderWithMemes, error) {
	folder, err := s.ownedFolder(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}

	memes, err := s.db.GetMemes(ctx, models.MemeFilter{UserID: userID, FolderID: folderID})
	if err != nil {
		return nil, err
	}

	return &models.FolderWithMemes{Folder: folder, Memes: memes}, nil
}

// UpdateFolder applies the fields present in the request.
func (s *Service) UpdateFolder(
	ctx context.Context,
	userID string,
	folderID string,
	request models.UpdateFolderRequest,
) (*models.Folder, error) {
	if err := s.validateStruct(request); err != nil {
		return nil, err
	}

	folder, err := s.ownedFolder(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}

	if request.Name != nil {
		name := strings.TrimSpace(*request.Name)
		if name == "" {
			return nil, newValidationError("name must not be empty")
		}
		folder.Name = name
	}
	if request.Description != nil {
		folder.Description = strings.TrimSpace(*request.Description)
	}
	if request.Color != nil && *request.Color != "" {
		folder.Color = *request.Color
	}
	folder.UpdatedAt = s.now()

	if err := s.db.UpdateFolder(ctx, folder); err != nil {
		return nil, fmt.Errorf("in internal/service/folders.go/UpdateFolder(): error while `s.db.UpdateFolder()` calling: %w", err)
	}

	return folder, nil
}

// DeleteFolder removes an owned folder with its memes and schedules the
// removal of their images.
func (s *Service) DeleteFolder(ctx context.Context, userID, folderID string) error {
	if _, err := s.ownedFolder(ctx, userID, folderID); err != nil {
		return err
	}

	removed, err := s.db.DeleteFolder(ctx, folderID)
	if err != nil {
		return fmt.Errorf("in internal/service/folders.go/DeleteFolder(): error while `s.db.DeleteFolder()` calling: %w", err)
	}

	publicIDs := funk.Map(removed, func(meme models.Meme) string {
		return meme.PublicID
	}).([]string)
	s.mediaRemover.EnqueueJob(publicIDs...)

	s.publish(ctx, events.SubjectFolderDeleted, map[string]any{
		"id":           folderID,
		"userId":       userID,
		"removedMemes": len(removed),
	})

	return nil
}
