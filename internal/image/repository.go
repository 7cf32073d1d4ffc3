// Package image implements image metadata persistence and the upload
// confirmation protocol.
package image

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Image is the metadata record for a confirmed upload. The blob itself lives
// in object storage under StorageKey; a record exists only after confirmation
// succeeded.
type Image struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	Filename    string    `json:"filename"`
	StorageKey  string    `json:"storageKey"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	PublicURL   string    `json:"publicUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ErrNotFound is returned when an image does not exist or is not visible to
// the requesting owner.
var ErrNotFound = errors.New("image not found")

// ErrDuplicateKey is returned when an insert hits the unique index on the
// storage key. The index, not the pre-insert read, is what guarantees at most
// one record per key under concurrent confirmation.
var ErrDuplicateKey = errors.New("storage key already registered")

// Repository is the persistence interface for image records.
type Repository interface {
	Create(ctx context.Context, img *Image) (*Image, error)
	GetByKey(ctx context.Context, storageKey string) (*Image, error)
	GetByID(ctx context.Context, id int64) (*Image, error)
	GetByIDAndOwner(ctx context.Context, id, ownerID int64) (*Image, error)
	Delete(ctx context.Context, id int64) error
	ListByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]*Image, error)
	CountByOwner(ctx context.Context, ownerID int64) (int64, error)
	ListAll(ctx context.Context, offset, limit int) ([]*Image, error)
	CountAll(ctx context.Context) (int64, error)
	AggregateUsage(ctx context.Context) (totalBytes, count int64, err error)
}

// PostgresRepository handles all image database operations.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgresRepository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const imageColumns = `id, user_id, filename, storage_key, content_type, size_bytes, public_url, created_at`

// Create inserts a new image record and returns it with the assigned id and
// timestamp. A unique violation on the storage key maps to ErrDuplicateKey.
func (r *PostgresRepository) Create(ctx context.Context, img *Image) (*Image, error) {
	created := &Image{}
	err := r.db.QueryRow(ctx,
		`INSERT INTO images (user_id, filename, storage_key, content_type, size_bytes, public_url)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+imageColumns,
		img.UserID, img.Filename, img.StorageKey, img.ContentType, img.SizeBytes, img.PublicURL,
	).Scan(&created.ID, &created.UserID, &created.Filename, &created.StorageKey,
		&created.ContentType, &created.SizeBytes, &created.PublicURL, &created.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("create image: %w", err)
	}
	return created, nil
}

// GetByKey fetches an image by its storage key.
func (r *PostgresRepository) GetByKey(ctx context.Context, storageKey string) (*Image, error) {
	return r.get(ctx, `SELECT `+imageColumns+` FROM images WHERE storage_key = $1`, storageKey)
}

// GetByID fetches any image by id regardless of owner (privileged path).
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Image, error) {
	return r.get(ctx, `SELECT `+imageColumns+` FROM images WHERE id = $1`, id)
}

// GetByIDAndOwner fetches an image by id, visible only to its owner. Someone
// else's image and a missing image are both ErrNotFound.
func (r *PostgresRepository) GetByIDAndOwner(ctx context.Context, id, ownerID int64) (*Image, error) {
	return r.get(ctx, `SELECT `+imageColumns+` FROM images WHERE id = $1 AND user_id = $2`, id, ownerID)
}

// Delete removes the image record by id.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByOwner returns one owner's images newest-first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]*Image, error) {
	return r.list(ctx,
		`SELECT `+imageColumns+` FROM images
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 OFFSET $2 LIMIT $3`,
		ownerID, offset, limit)
}

// CountByOwner returns the number of images one owner has.
func (r *PostgresRepository) CountByOwner(ctx context.Context, ownerID int64) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(id) FROM images WHERE user_id = $1`, ownerID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return total, nil
}

// ListAll returns every user's images newest-first (privileged path).
func (r *PostgresRepository) ListAll(ctx context.Context, offset, limit int) ([]*Image, error) {
	return r.list(ctx,
		`SELECT `+imageColumns+` FROM images
		 ORDER BY created_at DESC
		 OFFSET $1 LIMIT $2`,
		offset, limit)
}

// CountAll returns the total number of image records.
func (r *PostgresRepository) CountAll(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(id) FROM images`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return total, nil
}

// AggregateUsage sums stored bytes and counts records across all users.
// Aggregating in the database avoids listing the bucket through the storage
// API on every stats request.
func (r *PostgresRepository) AggregateUsage(ctx context.Context) (int64, int64, error) {
	var totalBytes, count int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(size_bytes), 0), COUNT(id) FROM images`,
	).Scan(&totalBytes, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("aggregate usage: %w", err)
	}
	return totalBytes, count, nil
}

func (r *PostgresRepository) get(ctx context.Context, query string, args ...interface{}) (*Image, error) {
	img := &Image{}
	err := r.db.QueryRow(ctx, query, args...).
		Scan(&img.ID, &img.UserID, &img.Filename, &img.StorageKey,
			&img.ContentType, &img.SizeBytes, &img.PublicURL, &img.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	return img, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...interface{}) ([]*Image, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	images := []*Image{}
	for rows.Next() {
		img := &Image{}
		if err := rows.Scan(&img.ID, &img.UserID, &img.Filename, &img.StorageKey,
			&img.ContentType, &img.SizeBytes, &img.PublicURL, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// isUniqueViolation checks whether an error is a PostgreSQL unique_violation (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
