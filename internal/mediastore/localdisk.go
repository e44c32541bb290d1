package mediastore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/YashLadlapure/meme-vault/internal/models"
)

// MediaURLPrefix is the path the router serves local files under.
const MediaURLPrefix = "/media/"

// LocalDisk keeps images in a directory served by the application itself.
type LocalDisk struct {
	dir     string
	baseURL string
}

// NewLocalDisk creates dir when missing.
func NewLocalDisk(dir, baseURL string) (*LocalDisk, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("in internal/mediastore/localdisk.go/NewLocalDisk(): error while `os.MkdirAll()` calling: %w", err)
	}

	return &LocalDisk{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir is the directory holding the files.
func (l *LocalDisk) Dir() string {
	return l.dir
}

// Upload writes the bytes to <uuid><ext>; the extension comes from contentType.
func (l *LocalDisk) Upload(
	_ context.Context,
	_ string,
	contentType string,
	file io.Reader,
) (*models.UploadedImage, error) {
	extension := ""
	if detected := mimetype.Lookup(contentType); detected != nil {
		extension = detected.Extension()
	}
	name := uuid.New().String() + extension

	target, err := os.CreateTemp(l.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("in internal/mediastore/localdisk.go/Upload(): error while `os.CreateTemp()` calling: %w", err)
	}
	_, err = io.Copy(target, file)
	closeErr := target.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(target.Name(), filepath.Join(l.dir, name))
	}
	if err != nil {
		_ = os.Remove(target.Name())
		return nil, fmt.Errorf("in internal/mediastore/localdisk.go/Upload(): error while writing %q: %w", name, err)
	}

	return &models.UploadedImage{
		URL:      l.baseURL + MediaURLPrefix + name,
		PublicID: name,
	}, nil
}

// Destroy removes the file. A missing file counts as removed.
func (l *LocalDisk) Destroy(_ context.Context, publicID string) error {
	if publicID == "" || filepath.Base(publicID) != publicID {
		return fmt.Errorf("in internal/mediastore/localdisk.go/Destroy(): bad public id %q", publicID)
	}

	err := os.Remove(filepath.Join(l.dir, publicID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("in internal/mediastore/localdisk.go/Destroy(): error while `os.Remove()` calling: %w", err)
	}

	return nil
}
