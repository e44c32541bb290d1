// Package jsondb provides a storage implementation that keeps users, folders
// and memes in memory and mirrors them into a single JSON file on disk.
package jsondb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/YashLadlapure/meme-vault/internal/models"
	"github.com/YashLadlapure/meme-vault/internal/user"
)

// JSONDB is a file-backed storage. With an empty file name it never touches
// the disk, which is how memorystorage uses it.
type JSONDB struct {
	fileName string
	mu       sync.RWMutex
	Cache    CacheStruct
}

// CacheStruct is the whole database as it is written to the JSON file.
type CacheStruct struct {
	Users   map[string]*user.User
	Folders map[string]*models.Folder
	Memes   map[string]*models.Meme
}

// NewCache returns an empty, ready to use cache.
func NewCache() CacheStruct {
	return CacheStruct{
		Users:   map[string]*user.User{},
		Folders: map[string]*models.Folder{},
		Memes:   map[string]*models.Meme{},
	}
}

func initDBFile(fileName string) error {
	return writeToJSONFile(fileName, NewCache())
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	tmpFileName := fileName + ".tmp"
	if err := os.WriteFile(tmpFileName, jsonData, 0644); err != nil {
		return fmt.Errorf("error writing to file: %w", err)
	}

	if err := os.Rename(tmpFileName, fileName); err != nil {
		return fmt.Errorf("error replacing the database file: %w", err)
	}

	return nil
}

func parseJSONFile(fileName string, cache *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	err = decoder.Decode(cache)
	if err != nil {
		return err
	}

	return nil
}

// New opens the JSON database stored in fileName, creating the file if it
// does not exist yet.
func New(fileName string) (*JSONDB, error) {
	db := JSONDB{
		fileName: fileName,
		Cache:    NewCache(),
	}

	err := parseJSONFile(db.fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := initDBFile(fileName); err != nil {
			return nil, err
		}
	}
	db.Cache.fillNilMaps()

	return &db, nil
}

func (c *CacheStruct) fillNilMaps() {
	if c.Users == nil {
		c.Users = map[string]*user.User{}
	}
	if c.Folders == nil {
		c.Folders = map[string]*models.Folder{}
	}
	if c.Memes == nil {
		c.Memes = map[string]*models.Meme{}
	}
}

// flush must be called with the write lock held.
func (db *JSONDB) flush() error {
	if db.fileName == "" {
		return nil
	}

	return writeToJSONFile(db.fileName, db.Cache)
}

func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

func (db *JSONDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.flush()
}

func (db *JSONDB) CreateUser(ctx context.Context, usr *user.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.Cache.Users {
		if existing.Username == usr.Username {
			return models.ErrUsernameTaken
		}
		if strings.EqualFold(existing.Email, usr.Email) {
			return models.ErrEmailTaken
		}
	}

	stored := *usr
	db.Cache.Users[usr.ID] = &stored

	return db.flush()
}

func (db *JSONDB) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	usr, ok := db.Cache.Users[userID]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	result := *usr

	return &result, nil
}

func (db *JSONDB) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, usr := range db.Cache.Users {
		if strings.EqualFold(usr.Email, email) {
			result := *usr
			return &result, nil
		}
	}

	return nil, models.ErrUserNotFound
}

func (db *JSONDB) CreateFolder(ctx context.Context, folder *models.Folder) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.folderNameTaken(folder.UserID, folder.Name, "") {
		return models.ErrFolderNameTaken
	}

	stored := *folder
	stored.MemeCount = 0
	db.Cache.Folders[folder.ID] = &stored

	return db.flush()
}

func (db *JSONDB) folderNameTaken(userID, name, exceptFolderID string) bool {
	for _, existing := range db.Cache.Folders {
		if existing.UserID == userID && existing.Name == name && existing.ID != exceptFolderID {
			return true
		}
	}

	return false
}

func (db *JSONDB) GetFolderByID(ctx context.Context, folderID string) (*models.Folder, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	folder, ok := db.Cache.Folders[folderID]
	if !ok {
		return nil, models.ErrFolderNotFound
	}
	result := *folder
	result.MemeCount = db.countMemesInFolder(folderID)

	return &result, nil
}

func (db *JSONDB) countMemesInFolder(folderID string) int64 {
	var count int64
	for _, meme := range db.Cache.Memes {
		if meme.FolderID == folderID {
			count++
		}
	}

	return count
}

func (db *JSONDB) GetUserFolders(ctx context.Context, userID string) ([]models.Folder, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := []models.Folder{}
	for _, folder := range db.Cache.Folders {
		if folder.UserID != userID {
			continue
		}
		item := *folder
		item.MemeCount = db.countMemesInFolder(folder.ID)
		result = append(result, item)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (db *JSONDB) UpdateFolder(ctx context.Context, folder *models.Folder) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.Cache.Folders[folder.ID]; !ok {
		return models.ErrFolderNotFound
	}
	if db.folderNameTaken(folder.UserID, folder.Name, folder.ID) {
		return models.ErrFolderNameTaken
	}

	stored := *folder
	stored.MemeCount = 0
	db.Cache.Folders[folder.ID] = &stored

	return db.flush()
}

func (db *JSONDB) DeleteFolder(ctx context.Context, folderID string) ([]models.Meme, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.Cache.Folders[folderID]; !ok {
		return nil, models.ErrFolderNotFound
	}

	removed := []models.Meme{}
	for id, meme := range db.Cache.Memes {
		if meme.FolderID == folderID {
			removed = append(removed, *meme)
			delete(db.Cache.Memes, id)
		}
	}
	delete(db.Cache.Folders, folderID)

	if err := db.flush(); err != nil {
		return nil, err
	}

	return removed, nil
}

func (db *JSONDB) CreateMeme(ctx context.Context, meme *models.Meme) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored := *meme
	db.Cache.Memes[meme.ID] = &stored

	return db.flush()
}

func (db *JSONDB) GetMemeByID(ctx context.Context, memeID string) (*models.Meme, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	meme, ok := db.Cache.Memes[memeID]
	if !ok {
		return nil, models.ErrMemeNotFound
	}
	result := *meme

	return &result, nil
}

func (db *JSONDB) GetMemes(ctx context.Context, filter models.MemeFilter) ([]models.Meme, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	result := []models.Meme{}
	for _, meme := range db.Cache.Memes {
		if filter.UserID != "" && meme.UserID != filter.UserID {
			continue
		}
		if filter.FolderID != "" && meme.FolderID != filter.FolderID {
			continue
		}
		if filter.Category != "" && meme.Category != filter.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(meme.Title), search) &&
			!strings.Contains(strings.ToLower(meme.Category), search) {
			continue
		}
		result = append(result, *meme)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (db *JSONDB) UpdateMeme(ctx context.Context, meme *models.Meme) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	existing, ok := db.Cache.Memes[meme.ID]
	if !ok {
		return models.ErrMemeNotFound
	}

	stored := *meme
	stored.Likes = existing.Likes
	db.Cache.Memes[meme.ID] = &stored

	return db.flush()
}

func (db *JSONDB) IncrementMemeLikes(ctx context.Context, memeID string) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	meme, ok := db.Cache.Memes[memeID]
	if !ok {
		return 0, models.ErrMemeNotFound
	}
	meme.Likes++

	if err := db.flush(); err != nil {
		return 0, err
	}

	return meme.Likes, nil
}

func (db *JSONDB) DeleteMeme(ctx context.Context, memeID string) (*models.Meme, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	meme, ok := db.Cache.Memes[memeID]
	if !ok {
		return nil, models.ErrMemeNotFound
	}
	delete(db.Cache.Memes, memeID)

	if err := db.flush(); err != nil {
		return nil, err
	}

	return meme, nil
}

func (db *JSONDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Users)), nil
}

func (db *JSONDB) GetNumberOfFolders(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Folders)), nil
}

func (db *JSONDB) GetNumberOfMemes(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Memes)), nil
}
