// Package mongodb provides a document database storage with three
// collections: users, folders and memes.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/YashLadlapure/meme-vault/internal/models"
	"github.com/YashLadlapure/meme-vault/internal/user"
)

const (
	usersCollection   = "users"
	foldersCollection = "folders"
	memesCollection   = "memes"
)

// Index names double as the keys for duplicate key error mapping.
var indexErrors = map[string]error{
	"users_username_unique":       models.ErrUsernameTaken,
	"users_email_lower_unique":    models.ErrEmailTaken,
	"folders_user_id_name_unique": models.ErrFolderNameTaken,
}

type userDocument struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	Email        string    `bson:"email"`
	EmailLower   string    `bson:"email_lower"`
	PasswordHash string    `bson:"password_hash"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

type folderDocument struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"user_id"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	Color       string    `bson:"color"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type memeDocument struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"user_id"`
	FolderID    string    `bson:"folder_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Category    string    `bson:"category"`
	ImageURL    string    `bson:"image_url"`
	PublicID    string    `bson:"public_id"`
	Likes       int64     `bson:"likes"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (d *userDocument) toUser() *user.User {
	return &user.User{
		ID:           d.ID,
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func (d *folderDocument) toFolder() *models.Folder {
	return &models.Folder{
		ID:          d.ID,
		UserID:      d.UserID,
		Name:        d.Name,
		Description: d.Description,
		Color:       d.Color,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func (d *memeDocument) toMeme() *models.Meme {
	return &models.Meme{
		ID:          d.ID,
		UserID:      d.UserID,
		FolderID:    d.FolderID,
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		ImageURL:    d.ImageURL,
		PublicID:    d.PublicID,
		Likes:       d.Likes,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// MongoDB is a MongoDB-backed storage.
type MongoDB struct {
	client            *mongo.Client
	database          *mongo.Database
	users             *mongo.Collection
	folders           *mongo.Collection
	memes             *mongo.Collection
	connectionTimeout time.Duration
}

type initOptions struct {
	dropDatabase bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDropDatabase drops the whole database before the indexes are created.
// It is meant for test setups.
func WithDropDatabase(value bool) InitOption {
	return func(options *initOptions) {
		options.dropDatabase = value
	}
}

// New connects to MongoDB, makes sure the unique indexes exist and returns
// a ready storage.
func New(
	ctx context.Context,
	uri string,
	databaseName string,
	connectionTimeout time.Duration,
	optionsProto ...InitOption,
) (*MongoDB, error) {
	opts := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(opts)
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("in internal/db/mongodb/mongodb.go/New(): error while `mongo.Connect()` calling: %w", err)
	}

	database := client.Database(databaseName)
	result := &MongoDB{
		client:            client,
		database:          database,
		users:             database.Collection(usersCollection),
		folders:           database.Collection(foldersCollection),
		memes:             database.Collection(memesCollection),
		connectionTimeout: connectionTimeout,
	}

	if err := result.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("in internal/db/mongodb/mongodb.go/New(): error while `result.Ping()` calling: %w", err)
	}

	if opts.dropDatabase {
		if err := database.Drop(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("in internal/db/mongodb/mongodb.go/New(): error while `database.Drop()` calling: %w", err)
		}
	}

	if err := result.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("in internal/db/mongodb/mongodb.go/New(): error while `result.ensureIndexes()` calling: %w", err)
	}

	return result, nil
}

func (db *MongoDB) ensureIndexes(ctx context.Context) error {
	_, err := db.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("users_username_unique"),
		},
		{
			Keys:    bson.D{{Key: "email_lower", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("users_email_lower_unique"),
		},
	})
	if err != nil {
		return err
	}

	_, err = db.folders.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("folders_user_id_name_unique"),
	})
	if err != nil {
		return err
	}

	_, err = db.memes.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "folder_id", Value: 1}}},
	})

	return err
}

func mapDuplicateKey(err error) error {
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return err
	}
	for indexName, domainErr := range indexErrors {
		if strings.Contains(err.Error(), indexName) {
			return domainErr
		}
	}

	return err
}

func (db *MongoDB) CreateUser(ctx context.Context, usr *user.User) error {
	_, err := db.users.InsertOne(ctx, userDocument{
		ID:           usr.ID,
		Username:     usr.Username,
		Email:        usr.Email,
		EmailLower:   strings.ToLower(usr.Email),
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
	})

	return mapDuplicateKey(err)
}

func (db *MongoDB) findUser(ctx context.Context, filter bson.M) (*user.User, error) {
	var document userDocument
	err := db.users.FindOne(ctx, filter).Decode(&document)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}

	return document.toUser(), nil
}

func (db *MongoDB) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	return db.findUser(ctx, bson.M{"_id": userID})
}

func (db *MongoDB) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return db.findUser(ctx, bson.M{"email_lower": strings.ToLower(email)})
}

func (db *MongoDB) CreateFolder(ctx context.Context, folder *models.Folder) error {
	_, err := db.folders.InsertOne(ctx, folderDocument{
		ID:          folder.ID,
		UserID:      folder.UserID,
		Name:        folder.Name,
		Description: folder.Description,
		Color:       folder.Color,
		CreatedAt:   folder.CreatedAt,
		UpdatedAt:   folder.UpdatedAt,
	})

	return mapDuplicateKey(err)
}

func (db *MongoDB) withMemeCount(ctx context.Context, document *folderDocument) (*models.Folder, error) {
	folder := document.toFolder()
	count, err := db.memes.CountDocuments(ctx, bson.M{"folder_id": folder.ID})
	if err != nil {
		return nil, err
	}
	folder.MemeCount = count

	return folder, nil
}

func (db *MongoDB) GetFolderByID(ctx context.Context, folderID string) (*models.Folder, error) {
	var document folderDocument
	err := db.folders.FindOne(ctx, bson.M{"_id": folderID}).Decode(&document)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrFolderNotFound
		}
		return nil, err
	}

	return db.withMemeCount(ctx, &document)
}

func (db *MongoDB) GetUserFolders(ctx context.Context, userID string) ([]models.Folder, error) {
	cursor, err := db.folders.Find(
		ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}

	var documents []folderDocument
	if err := cursor.All(ctx, &documents); err != nil {
		return nil, err
	}

	result := make([]models.Folder, 0, len(documents))
	for i := range documents {
		folder, err := db.withMemeCount(ctx, &documents[i])
		if err != nil {
			return nil, err
		}
		result = append(result, *folder)
	}

	return result, nil
}

func (db *MongoDB) UpdateFolder(ctx context.Context, folder *models.Folder) error {
	result, err := db.folders.UpdateOne(
		ctx,
		bson.M{"_id": folder.ID},
		bson.M{"$set": bson.M{
			"name":        folder.Name,
			"description": folder.Description,
			"color":       folder.Color,
			"updated_at":  folder.UpdatedAt,
		}},
	)
	if err != nil {
		return mapDuplicateKey(err)
	}
	if result.MatchedCount == 0 {
		return models.ErrFolderNotFound
	}

	return nil
}

// DeleteFolder removes the folder and its memes. MongoDB transactions need a
// replica set, so the memes are removed first and the folder last: a failure
// half way leaves an existing folder that can be deleted again. Memes are
// deleted by the ids that were read, so every deleted meme is returned even
// when another request adds memes to the folder meanwhile.
func (db *MongoDB) DeleteFolder(ctx context.Context, folderID string) ([]models.Meme, error) {
	if _, err := db.GetFolderByID(ctx, folderID); err != nil {
		return nil, err
	}

	removed := make([]models.Meme, 0)
	for {
		batch, err := db.findMemes(ctx, bson.M{"folder_id": folderID})
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		ids := make([]string, len(batch))
		for i := range batch {
			ids[i] = batch[i].ID
		}
		if _, err := db.memes.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
			return nil, err
		}

		removed = append(removed, batch...)
	}

	result, err := db.folders.DeleteOne(ctx, bson.M{"_id": folderID})
	if err != nil {
		return nil, err
	}
	if result.DeletedCount == 0 {
		return nil, models.ErrFolderNotFound
	}

	return removed, nil
}

func (db *MongoDB) CreateMeme(ctx context.Context, meme *models.Meme) error {
	_, err := db.memes.InsertOne(ctx, memeDocument{
		ID:          meme.ID,
		UserID:      meme.UserID,
		FolderID:    meme.FolderID,
		Title:       meme.Title,
		Description: meme.Description,
		Category:    meme.Category,
		ImageURL:    meme.ImageURL,
		PublicID:    meme.PublicID,
		Likes:       meme.Likes,
		CreatedAt:   meme.CreatedAt,
		UpdatedAt:   meme.UpdatedAt,
	})

	return err
}

func (db *MongoDB) GetMemeByID(ctx context.Context, memeID string) (*models.Meme, error) {
	var document memeDocument
	err := db.memes.FindOne(ctx, bson.M{"_id": memeID}).Decode(&document)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrMemeNotFound
		}
		return nil, err
	}

	return document.toMeme(), nil
}

func (db *MongoDB) findMemes(ctx context.Context, filter bson.M) ([]models.Meme, error) {
	cursor, err := db.memes.Find(
		ctx,
		filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}

	var documents []memeDocument
	if err := cursor.All(ctx, &documents); err != nil {
		return nil, err
	}

	result := make([]models.Meme, 0, len(documents))
	for i := range documents {
		result = append(result, *documents[i].toMeme())
	}

	return result, nil
}

func (db *MongoDB) GetMemes(ctx context.Context, filter models.MemeFilter) ([]models.Meme, error) {
	query := bson.M{}
	if filter.UserID != "" {
		query["user_id"] = filter.UserID
	}
	if filter.FolderID != "" {
		query["folder_id"] = filter.FolderID
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"category": pattern},
		}
	}

	return db.findMemes(ctx, query)
}

func (db *MongoDB) UpdateMeme(ctx context.Context, meme *models.Meme) error {
	result, err := db.memes.UpdateOne(
		ctx,
		bson.M{"_id": meme.ID},
		bson.M{"$set": bson.M{
			"folder_id":   meme.FolderID,
			"title":       meme.Title,
			"description": meme.Description,
			"category":    meme.Category,
			"updated_at":  meme.UpdatedAt,
		}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return models.ErrMemeNotFound
	}

	return nil
}

func (db *MongoDB) IncrementMemeLikes(ctx context.Context, memeID string) (int64, error) {
	var document memeDocument
	err := db.memes.FindOneAndUpdate(
		ctx,
		bson.M{"_id": memeID},
		bson.M{"$inc": bson.M{"likes": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&document)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, models.ErrMemeNotFound
		}
		return 0, err
	}

	return document.Likes, nil
}

func (db *MongoDB) DeleteMeme(ctx context.Context, memeID string) (*models.Meme, error) {
	var document memeDocument
	err := db.memes.FindOneAndDelete(ctx, bson.M{"_id": memeID}).Decode(&document)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrMemeNotFound
		}
		return nil, err
	}

	return document.toMeme(), nil
}

func (db *MongoDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	return db.users.CountDocuments(ctx, bson.M{})
}

func (db *MongoDB) GetNumberOfFolders(ctx context.Context) (int64, error) {
	return db.folders.CountDocuments(ctx, bson.M{})
}

func (db *MongoDB) GetNumberOfMemes(ctx context.Context) (int64, error) {
	return db.memes.CountDocuments(ctx, bson.M{})
}

// Ping verifies connectivity with the primary within the configured timeout.
func (db *MongoDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.client.Ping(ctxWithTimeout, readpref.Primary())
}

// Close disconnects the client.
func (db *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), db.connectionTimeout)
	defer cancel()

	return db.client.Disconnect(ctx)
}
