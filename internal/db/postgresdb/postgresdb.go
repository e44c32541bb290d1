// Package postgresdb provides a PostgreSQL-based implementation of the storage
// for users, folders and memes. The schema is managed by goose migrations.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/YashLadlapure/meme-vault/internal/models"
	"github.com/YashLadlapure/meme-vault/internal/user"
)

const uniqueViolationCode = "23505"

// constraintErrors maps unique constraints from the migrations to domain errors.
var constraintErrors = map[string]error{
	"users_username_unique":       models.ErrUsernameTaken,
	"users_email_lower_unique":    models.ErrEmailTaken,
	"folders_user_id_name_unique": models.ErrFolderNameTaken,
}

const memeColumns = `id, user_id, folder_id, title, description, category, image_url, public_id, likes, created_at, updated_at`

var likePatternEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// PostgresDB is a PostgreSQL-backed storage.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset enables or disables dropping every table before migration.
// It is meant for test setups.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New establishes a connection to the PostgreSQL database,
// runs schema migrations, and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if err := result.prepare(ctx, options, migrationsDir); err != nil {
		_ = database.Close()
		return nil, err
	}

	return result, nil
}

// prepare checks the connection and brings the schema up to date.
func (db *PostgresDB) prepare(ctx context.Context, options *initOptions, migrationsDir string) error {
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/prepare(): error while `db.Ping()` calling: %w",
			err,
		)
	}

	if options.DBPreReset {
		if err := db.resetDB(ctx); err != nil {
			return fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/prepare(): error while `db.resetDB()` calling: %w",
				err,
			)
		}
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/prepare(): error while `goose.SetDialect()` calling: %w",
			err,
		)
	}

	if err := goose.UpContext(ctx, db.database, migrationsDir); err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/prepare(): error while `goose.UpContext()` calling: %w",
			err,
		)
	}

	return nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		if domainErr, ok := constraintErrors[pgErr.ConstraintName]; ok {
			return domainErr
		}
	}

	return err
}

func nullIfEmpty(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

// CreateUser inserts a new user record.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6)
		`,
		usr.ID,
		usr.Username,
		usr.Email,
		usr.PasswordHash,
		usr.CreatedAt,
		usr.UpdatedAt,
	)

	return mapUniqueViolation(err)
}

func scanUser(row rowScanner) (*user.User, error) {
	usr := &user.User{}
	err := row.Scan(&usr.ID, &usr.Username, &usr.Email, &usr.PasswordHash, &usr.CreatedAt, &usr.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}

	return usr, nil
}

// GetUserByID fetches a user by their UUID.
func (db *PostgresDB) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, username, email, password_hash, created_at, updated_at FROM users WHERE id::text = $1`,
		userID,
	)

	return scanUser(row)
}

// GetUserByEmail fetches a user by email, ignoring case.
func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, username, email, password_hash, created_at, updated_at FROM users WHERE LOWER(email) = LOWER($1)`,
		email,
	)

	return scanUser(row)
}

// CreateFolder inserts a new folder.
func (db *PostgresDB) CreateFolder(ctx context.Context, folder *models.Folder) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			INSERT INTO folders (id, user_id, name, description, color, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
		folder.ID,
		folder.UserID,
		folder.Name,
		folder.Description,
		folder.Color,
		folder.CreatedAt,
		folder.UpdatedAt,
	)

	return mapUniqueViolation(err)
}

const folderSelect = `
	SELECT folders.id, folders.user_id, folders.name, folders.description, folders.color,
		(SELECT COUNT(*) FROM memes WHERE memes.folder_id = folders.id),
		folders.created_at, folders.updated_at
	FROM folders
`

func scanFolder(row rowScanner) (*models.Folder, error) {
	folder := &models.Folder{}
	err := row.Scan(
		&folder.ID,
		&folder.UserID,
		&folder.Name,
		&folder.Description,
		&folder.Color,
		&folder.MemeCount,
		&folder.CreatedAt,
		&folder.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrFolderNotFound
		}
		return nil, err
	}

	return folder, nil
}

// GetFolderByID fetches a folder together with the number of memes in it.
func (db *PostgresDB) GetFolderByID(ctx context.Context, folderID string) (*models.Folder, error) {
	row := db.database.QueryRowContext(ctx, folderSelect+` WHERE folders.id::text = $1`, folderID)

	return scanFolder(row)
}

// GetUserFolders returns the user's folders, newest first.
func (db *PostgresDB) GetUserFolders(ctx context.Context, userID string) ([]models.Folder, error) {
	rows, err := db.database.QueryContext(
		ctx,
		folderSelect+` WHERE folders.user_id::text = $1 ORDER BY folders.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.Folder{}
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *folder)
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}

	return result, nil
}

// UpdateFolder overwrites the mutable fields of a folder.
func (db *PostgresDB) UpdateFolder(ctx context.Context, folder *models.Folder) error {
	result, err := db.database.ExecContext(
		ctx,
		`
			UPDATE folders
				SET name = $2, description = $3, color = $4, updated_at = $5
				WHERE id::text = $1
		`,
		folder.ID,
		folder.Name,
		folder.Description,
		folder.Color,
		folder.UpdatedAt,
	)
	if err != nil {
		return mapUniqueViolation(err)
	}

	return expectAffected(result, models.ErrFolderNotFound)
}

func expectAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound
	}

	return nil
}

// DeleteFolder removes the folder and all of its memes in one transaction,
// returning the removed memes.
func (db *PostgresDB) DeleteFolder(ctx context.Context, folderID string) ([]models.Meme, error) {
	transaction, err := db.database.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = transaction.Rollback()
	}()

	removed, err := queryMemes(
		ctx,
		transaction,
		`DELETE FROM memes WHERE folder_id::text = $1 RETURNING `+memeColumns,
		folderID,
	)
	if err != nil {
		return nil, err
	}

	result, err := transaction.ExecContext(ctx, `DELETE FROM folders WHERE id::text = $1`, folderID)
	if err != nil {
		return nil, err
	}
	if err := expectAffected(result, models.ErrFolderNotFound); err != nil {
		return nil, err
	}

	if err := transaction.Commit(); err != nil {
		return nil, err
	}

	return removed, nil
}

// CreateMeme inserts a new meme.
func (db *PostgresDB) CreateMeme(ctx context.Context, meme *models.Meme) error {
	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO memes (`+memeColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		meme.ID,
		meme.UserID,
		nullIfEmpty(meme.FolderID),
		meme.Title,
		meme.Description,
		meme.Category,
		meme.ImageURL,
		meme.PublicID,
		meme.Likes,
		meme.CreatedAt,
		meme.UpdatedAt,
	)

	return err
}

func scanMeme(row rowScanner) (*models.Meme, error) {
	meme := &models.Meme{}
	var folderID sql.NullString
	err := row.Scan(
		&meme.ID,
		&meme.UserID,
		&folderID,
		&meme.Title,
		&meme.Description,
		&meme.Category,
		&meme.ImageURL,
		&meme.PublicID,
		&meme.Likes,
		&meme.CreatedAt,
		&meme.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrMemeNotFound
		}
		return nil, err
	}
	meme.FolderID = folderID.String

	return meme, nil
}

func queryMemes(ctx context.Context, database queryer, query string, args ...any) ([]models.Meme, error) {
	rows, err := database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.Meme{}
	for rows.Next() {
		meme, err := scanMeme(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *meme)
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetMemeByID fetches a single meme.
func (db *PostgresDB) GetMemeByID(ctx context.Context, memeID string) (*models.Meme, error) {
	row := db.database.QueryRowContext(ctx, `SELECT `+memeColumns+` FROM memes WHERE id::text = $1`, memeID)

	return scanMeme(row)
}

// GetMemes returns the memes matching filter, newest first.
func (db *PostgresDB) GetMemes(ctx context.Context, filter models.MemeFilter) ([]models.Meme, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	addCondition := func(template string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(template, len(args)))
	}

	if filter.UserID != "" {
		addCondition("user_id::text = $%d", filter.UserID)
	}
	if filter.FolderID != "" {
		addCondition("folder_id::text = $%d", filter.FolderID)
	}
	if filter.Category != "" {
		addCondition("category = $%d", filter.Category)
	}
	if filter.Search != "" {
		args = append(args, "%"+likePatternEscaper.Replace(filter.Search)+"%")
		conditions = append(
			conditions,
			fmt.Sprintf("(title ILIKE $%[1]d OR category ILIKE $%[1]d)", len(args)),
		)
	}

	return queryMemes(
		ctx,
		db.database,
		`SELECT `+memeColumns+` FROM memes WHERE `+strings.Join(conditions, " AND ")+` ORDER BY created_at DESC`,
		args...,
	)
}

// UpdateMeme overwrites the editable fields of a meme. The like counter is
// only ever changed by IncrementMemeLikes.
func (db *PostgresDB) UpdateMeme(ctx context.Context, meme *models.Meme) error {
	result, err := db.database.ExecContext(
		ctx,
		`
			UPDATE memes
				SET folder_id = $2, title = $3, description = $4, category = $5, updated_at = $6
				WHERE id::text = $1
		`,
		meme.ID,
		nullIfEmpty(meme.FolderID),
		meme.Title,
		meme.Description,
		meme.Category,
		meme.UpdatedAt,
	)
	if err != nil {
		return err
	}

	return expectAffected(result, models.ErrMemeNotFound)
}

// IncrementMemeLikes atomically adds one like and returns the new total.
func (db *PostgresDB) IncrementMemeLikes(ctx context.Context, memeID string) (int64, error) {
	row := db.database.QueryRowContext(
		ctx,
		`UPDATE memes SET likes = likes + 1 WHERE id::text = $1 RETURNING likes`,
		memeID,
	)
	var likes int64
	err := row.Scan(&likes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, models.ErrMemeNotFound
		}
		return 0, err
	}

	return likes, nil
}

// DeleteMeme removes a meme and returns what was removed.
func (db *PostgresDB) DeleteMeme(ctx context.Context, memeID string) (*models.Meme, error) {
	row := db.database.QueryRowContext(
		ctx,
		`DELETE FROM memes WHERE id::text = $1 RETURNING `+memeColumns,
		memeID,
	)

	return scanMeme(row)
}

func (db *PostgresDB) count(ctx context.Context, table string) (int64, error) {
	row := db.database.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+pq.QuoteIdentifier(table))
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

func (db *PostgresDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	return db.count(ctx, "users")
}

func (db *PostgresDB) GetNumberOfFolders(ctx context.Context) (int64, error) {
	return db.count(ctx, "folders")
}

func (db *PostgresDB) GetNumberOfMemes(ctx context.Context) (int64, error) {
	return db.count(ctx, "memes")
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	rows, err := db.database.QueryContext(ctx, `SELECT tablename FROM pg_tables WHERE schemaname = 'public'`)
	if err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/resetDB(): error while `db.database.QueryContext()` calling: %w",
			err,
		)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return err
		}
		tables = append(tables, table)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, table := range tables {
		_, err := db.database.ExecContext(ctx, `DROP TABLE IF EXISTS `+pq.QuoteIdentifier(table)+` CASCADE`)
		if err != nil {
			return fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/resetDB(): error while dropping %q: %w",
				table,
				err,
			)
		}
	}

	return nil
}
