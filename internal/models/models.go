package models

import (
	"errors"
	"time"

	"github.com/YashLadlapure/meme-vault/internal/user"
)

const (
	DefaultFolderColor = "#8b5cf6"
	DefaultMemeTitle   = "Untitled Meme"
	DefaultCategory    = "general"
)

const (
	StorageTypeUnknown = iota
	StorageTypeMongoDB
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrFolderNotFound  = errors.New("folder not found")
	ErrMemeNotFound    = errors.New("meme not found")
	ErrUsernameTaken   = errors.New("username is already taken")
	ErrEmailTaken      = errors.New("email is already registered")
	ErrFolderNameTaken = errors.New("a folder with this name already exists")
)

// Folder is a named grouping of memes belonging to one user.
type Folder struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	MemeCount   int64     `json:"memeCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Meme is a user-uploaded image with a caption.
type Meme struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	FolderID    string    `json:"folderId,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"imageUrl"`
	PublicID    string    `json:"publicId"`
	Likes       int64     `json:"likes"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MemeFilter narrows GetMemes. Empty fields do not filter.
type MemeFilter struct {
	UserID   string
	FolderID string
	Category string

	// Search matches a case-insensitive substring of the title or the category.
	Search string
}

// UploadedImage is what the media host returns for stored bytes.
type UploadedImage struct {
	URL      string
	PublicID string
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Success bool            `json:"success"`
	Token   string          `json:"token"`
	User    user.PublicUser `json:"user"`
}

type CreateFolderRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
}

type UpdateFolderRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Color       *string `json:"color" validate:"omitempty,hexcolor"`
}

// UploadMemeRequest holds the text fields of the multipart upload form.
type UploadMemeRequest struct {
	Title       string `json:"title" validate:"max=200"`
	Description string `json:"description" validate:"max=1000"`
	Category    string `json:"category" validate:"max=50"`
	FolderID    string `json:"folderId"`
}

type UpdateMemeRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Category    *string `json:"category" validate:"omitempty,max=50"`

	// FolderID moves the meme; an empty string takes it out of its folder.
	FolderID *string `json:"folderId"`
}

type LikeResponse struct {
	ID    string `json:"id"`
	Likes int64  `json:"likes"`
}

type FolderWithMemes struct {
	Folder *Folder
	Memes  []Meme
}

type StatsResponse struct {
	Users   int64 `json:"users"`
	Folders int64 `json:"folders"`
	Memes   int64 `json:"memes"`
}
